package config

import (
	"fmt"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/mitchellh/mapstructure"
	"github.com/moby/patternmatcher"
)

// Duration is a time.Duration that reads and writes as a Go duration string
// ("750ms", "24h") in YAML, TOML and JSON.
type Duration time.Duration

// D returns the value as a time.Duration.
func (d Duration) D() time.Duration { return time.Duration(d) }

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	*d = Duration(v)
	return nil
}

// JSONSchema describes Duration as a duration string.
func (Duration) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:        "string",
		Pattern:     `^([0-9]+(\.[0-9]+)?(ns|us|µs|ms|s|m|h))+$`,
		Description: "Go duration string, e.g. 750ms or 24h",
	}
}

// Config is the top-level hud.yml / hud.toml document.
type Config struct {
	Version    string                 `yaml:"version,omitempty" toml:"version,omitempty" json:"version,omitempty" jsonschema:"description=Configuration version (e.g. '1.0')"`
	Daemon     DaemonConfig           `yaml:"daemon,omitempty" toml:"daemon,omitempty" json:"daemon,omitempty" jsonschema:"description=Daemon socket, event log and ingest settings"`
	Liveness   LivenessConfig         `yaml:"liveness,omitempty" toml:"liveness,omitempty" json:"liveness,omitempty" jsonschema:"description=Process liveness probing"`
	Lock       LockConfig             `yaml:"lock,omitempty" toml:"lock,omitempty" json:"lock,omitempty" jsonschema:"description=Filesystem lock fallback"`
	Routing    RoutingConfig          `yaml:"routing,omitempty" toml:"routing,omitempty" json:"routing,omitempty" jsonschema:"description=Activation routing policy"`
	Activation ActivationConfig       `yaml:"activation,omitempty" toml:"activation,omitempty" json:"activation,omitempty" jsonschema:"description=Activation side effects"`
	Extensions map[string]interface{} `yaml:"extensions,omitempty" toml:"extensions,omitempty" json:"extensions,omitempty" jsonschema:"description=Free-form sections such as logging"`
}

// DaemonConfig configures the event-ingest daemon.
type DaemonConfig struct {
	SocketPath     string   `yaml:"socket_path,omitempty" toml:"socket_path,omitempty" json:"socket_path,omitempty" jsonschema:"description=Unix socket path (default: runtime dir)"`
	EventLogPath   string   `yaml:"event_log_path,omitempty" toml:"event_log_path,omitempty" json:"event_log_path,omitempty" jsonschema:"description=SQLite event log path (default: state dir)"`
	RequestTimeout Duration `yaml:"request_timeout,omitempty" toml:"request_timeout,omitempty" json:"request_timeout,omitempty" jsonschema:"description=Bound on every ingest and query round trip"`
	IngestQueue    int      `yaml:"ingest_queue,omitempty" toml:"ingest_queue,omitempty" json:"ingest_queue,omitempty" jsonschema:"minimum=1,description=Capacity of the single-writer ingest queue"`
	TombstoneTTL   Duration `yaml:"tombstone_ttl,omitempty" toml:"tombstone_ttl,omitempty" json:"tombstone_ttl,omitempty" jsonschema:"description=How long an ended session blocks late events"`
	ActivityLimit  int      `yaml:"activity_limit,omitempty" toml:"activity_limit,omitempty" json:"activity_limit,omitempty" jsonschema:"minimum=1,description=Number of activity entries kept in memory"`
}

// LivenessConfig configures the process liveness tracker.
type LivenessConfig struct {
	CacheTTL     Duration `yaml:"cache_ttl,omitempty" toml:"cache_ttl,omitempty" json:"cache_ttl,omitempty" jsonschema:"description=How long a probe result is reused"`
	ProbeTimeout Duration `yaml:"probe_timeout,omitempty" toml:"probe_timeout,omitempty" json:"probe_timeout,omitempty" jsonschema:"description=Bound on a single liveness probe"`
	ReapAfter    Duration `yaml:"reap_after,omitempty" toml:"reap_after,omitempty" json:"reap_after,omitempty" jsonschema:"description=Dead sessions older than this are ended by the daemon"`
}

// LockConfig configures the filesystem lock fallback.
type LockConfig struct {
	Dir          string   `yaml:"dir,omitempty" toml:"dir,omitempty" json:"dir,omitempty" jsonschema:"description=Lock directory (default: state dir/locks)"`
	PollInterval Duration `yaml:"poll_interval,omitempty" toml:"poll_interval,omitempty" json:"poll_interval,omitempty" jsonschema:"description=Lock-holder poll interval"`
	MaxLifetime  Duration `yaml:"max_lifetime,omitempty" toml:"max_lifetime,omitempty" json:"max_lifetime,omitempty" jsonschema:"description=Lock-holder forced release age"`
	PartialGrace Duration `yaml:"partial_grace,omitempty" toml:"partial_grace,omitempty" json:"partial_grace,omitempty" jsonschema:"description=Age after which a half-written lock is reclaimed"`
}

// Routing modes reported through GetHealth.
const (
	RoutingEnabled  = "enabled"
	RoutingShadow   = "shadow"
	RoutingDisabled = "disabled"
)

// RoutingConfig configures evidence gathering and the activation resolver.
type RoutingConfig struct {
	Mode             string   `yaml:"mode,omitempty" toml:"mode,omitempty" json:"mode,omitempty" jsonschema:"enum=enabled,enum=shadow,enum=disabled,description=Routing gate reported to callers"`
	PreferTmux       *bool    `yaml:"prefer_tmux,omitempty" toml:"prefer_tmux,omitempty" json:"prefer_tmux,omitempty" jsonschema:"description=Prefer tmux targets when a client is attached"`
	KnownTerminals   []string `yaml:"known_terminals,omitempty" toml:"known_terminals,omitempty" json:"known_terminals,omitempty" jsonschema:"description=Terminal apps that can be focused"`
	IgnorePaths      []string `yaml:"ignore_paths,omitempty" toml:"ignore_paths,omitempty" json:"ignore_paths,omitempty" jsonschema:"description=Glob patterns of evidence paths never used for routing"`
	StaleAfter       Duration `yaml:"stale_after,omitempty" toml:"stale_after,omitempty" json:"stale_after,omitempty" jsonschema:"description=Evidence older than this loses trust"`
	TmuxInterval     Duration `yaml:"tmux_interval,omitempty" toml:"tmux_interval,omitempty" json:"tmux_interval,omitempty" jsonschema:"description=tmux snapshot interval"`
	TerminalInterval Duration `yaml:"terminal_interval,omitempty" toml:"terminal_interval,omitempty" json:"terminal_interval,omitempty" jsonschema:"description=Terminal ownership probe interval"`
}

// ActivationConfig configures what an activation does.
type ActivationConfig struct {
	FallbackCommand []string `yaml:"fallback_command,omitempty" toml:"fallback_command,omitempty" json:"fallback_command,omitempty" jsonschema:"description=Command run when no target can be focused; {path} and {slug} are substituted"`
	Timeout         Duration `yaml:"timeout,omitempty" toml:"timeout,omitempty" json:"timeout,omitempty" jsonschema:"description=Bound on one activation"`
}

// PreferTmuxEnabled reports the effective prefer_tmux setting.
func (r RoutingConfig) PreferTmuxEnabled() bool {
	return r.PreferTmux == nil || *r.PreferTmux
}

// DefaultKnownTerminals lists terminal apps the activation layer can focus.
var DefaultKnownTerminals = []string{"Ghostty", "iTerm2", "Terminal", "Alacritty", "kitty", "WezTerm", "Warp"}

// SetDefaults fills every unset field.
func (c *Config) SetDefaults() {
	if c.Version == "" {
		c.Version = "1.0"
	}

	d := &c.Daemon
	if d.RequestTimeout == 0 {
		d.RequestTimeout = Duration(750 * time.Millisecond)
	}
	if d.IngestQueue == 0 {
		d.IngestQueue = 256
	}
	if d.TombstoneTTL == 0 {
		d.TombstoneTTL = Duration(10 * time.Minute)
	}
	if d.ActivityLimit == 0 {
		d.ActivityLimit = 500
	}

	l := &c.Liveness
	if l.CacheTTL == 0 {
		l.CacheTTL = Duration(2 * time.Second)
	}
	if l.ProbeTimeout == 0 {
		l.ProbeTimeout = Duration(200 * time.Millisecond)
	}
	if l.ReapAfter == 0 {
		l.ReapAfter = Duration(5 * time.Minute)
	}

	k := &c.Lock
	if k.PollInterval == 0 {
		k.PollInterval = Duration(time.Second)
	}
	if k.MaxLifetime == 0 {
		k.MaxLifetime = Duration(24 * time.Hour)
	}
	if k.PartialGrace == 0 {
		k.PartialGrace = Duration(2 * time.Second)
	}

	r := &c.Routing
	if r.Mode == "" {
		r.Mode = RoutingEnabled
	}
	if len(r.KnownTerminals) == 0 {
		r.KnownTerminals = append([]string(nil), DefaultKnownTerminals...)
	}
	if r.StaleAfter == 0 {
		r.StaleAfter = Duration(10 * time.Minute)
	}
	if r.TmuxInterval == 0 {
		r.TmuxInterval = Duration(2 * time.Second)
	}
	if r.TerminalInterval == 0 {
		r.TerminalInterval = Duration(5 * time.Second)
	}

	if c.Activation.Timeout == 0 {
		c.Activation.Timeout = Duration(2 * time.Second)
	}
}

// Validate performs semantic checks the schema cannot express.
func (c *Config) Validate() error {
	switch c.Routing.Mode {
	case RoutingEnabled, RoutingShadow, RoutingDisabled:
	default:
		return fmt.Errorf("routing.mode must be enabled, shadow or disabled, got %q", c.Routing.Mode)
	}
	if c.Lock.PollInterval.D() > c.Lock.MaxLifetime.D() {
		return fmt.Errorf("lock.poll_interval (%s) exceeds lock.max_lifetime (%s)",
			c.Lock.PollInterval.D(), c.Lock.MaxLifetime.D())
	}
	if c.Daemon.RequestTimeout.D() <= 0 {
		return fmt.Errorf("daemon.request_timeout must be positive")
	}
	if _, err := patternmatcher.New(c.Routing.IgnorePaths); err != nil {
		return fmt.Errorf("routing.ignore_paths: %w", err)
	}
	return nil
}

// UnmarshalExtension decodes a specific extension's configuration from the
// loaded hud config into the provided target struct. The target must be a pointer.
//
// Example:
//
//	var logCfg logging.Config
//	err := cfg.UnmarshalExtension("logging", &logCfg)
func (c *Config) UnmarshalExtension(key string, target interface{}) error {
	extensionConfig, ok := c.Extensions[key]
	if !ok {
		// A missing key leaves the target zero-valued.
		return nil
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		TagName:          "yaml",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create mapstructure decoder: %w", err)
	}

	if err := decoder.Decode(extensionConfig); err != nil {
		return fmt.Errorf("failed to decode extension config for '%s': %w", key, err)
	}

	return nil
}
