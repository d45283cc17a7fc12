// Package routing decides which terminal or tmux target an activation for a
// project should focus. Gather collects evidence (and does all the I/O);
// Resolve is a pure ranking over that evidence and returns a decision with a
// trace of every candidate.
package routing

import (
	"fmt"
	"time"

	"github.com/petekp/claude-hud-sub008/config"
	"github.com/petekp/claude-hud-sub008/pkg/models"
	"github.com/petekp/claude-hud-sub008/pkg/terminal"
	"github.com/petekp/claude-hud-sub008/util/pathutil"
)

// Mode gates the routing subsystem during rollout.
type Mode string

const (
	// ModeEnabled resolves and advertises daemon routing as trusted.
	ModeEnabled Mode = "enabled"
	// ModeShadow resolves normally, but health tells callers to keep using
	// fallback routing.
	ModeShadow Mode = "shadow"
	// ModeDisabled answers every request with ROUTING_DISABLED.
	ModeDisabled Mode = "disabled"
)

// ParseMode validates a configured mode; empty means enabled.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeEnabled:
		return ModeEnabled, nil
	case ModeShadow, ModeDisabled:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown routing mode %q", s)
}

// Trusted reports whether callers should act on daemon decisions.
func (m Mode) Trusted() bool { return m == ModeEnabled }

const DefaultStaleAfter = 10 * time.Minute

// Trust ranks by evidence source. Stale evidence drops to TrustStale.
const (
	TrustSession     = 4
	TrustShell       = 3
	TrustTmux        = 2
	TrustTerminalApp = 1
	TrustStale       = 0
)

// Options configures gathering and ranking.
type Options struct {
	Mode           Mode
	PreferTmux     bool
	KnownTerminals []string
	// IgnorePaths are patternmatcher globs; matching evidence is filtered.
	IgnorePaths []string
	StaleAfter  time.Duration
}

// DefaultOptions returns the built-in routing policy.
func DefaultOptions() Options {
	return Options{
		Mode:           ModeEnabled,
		PreferTmux:     true,
		KnownTerminals: terminal.DefaultKnown,
		StaleAfter:     DefaultStaleAfter,
	}
}

// FromConfig builds Options from the routing section of a loaded config.
// The config is expected to be defaulted and validated.
func FromConfig(cfg config.RoutingConfig) (Options, error) {
	mode, err := ParseMode(cfg.Mode)
	if err != nil {
		return Options{}, err
	}
	opts := DefaultOptions()
	opts.Mode = mode
	opts.PreferTmux = cfg.PreferTmuxEnabled()
	if len(cfg.KnownTerminals) > 0 {
		opts.KnownTerminals = cfg.KnownTerminals
	}
	opts.IgnorePaths = cfg.IgnorePaths
	if cfg.StaleAfter > 0 {
		opts.StaleAfter = cfg.StaleAfter.D()
	}
	return opts, nil
}

// Request asks for the target of one project.
type Request struct {
	// ProjectPath must be canonical; see NewRequest.
	ProjectPath string
	WorkspaceID string
}

// NewRequest canonicalizes path so it compares equal to gathered evidence.
func NewRequest(projectPath, workspaceID string) Request {
	p, err := pathutil.CanonicalPath(projectPath)
	if err != nil {
		p = projectPath
	}
	return Request{ProjectPath: p, WorkspaceID: workspaceID}
}

// Slug is the project's canonical short name.
func (r Request) Slug() string { return pathutil.Slug(r.ProjectPath) }

// Snapshot is everything Gather reads, copied out of the daemon store.
type Snapshot struct {
	Sessions       []models.SessionRecord
	Shells         []models.ShellRecord
	TmuxClients    []models.TmuxClient
	TmuxSessions   []models.TmuxSession
	TmuxCapturedAt time.Time
	// Terminals maps a tty to its owning terminal app.
	Terminals map[string]models.TerminalOwner
	// PIDTTYs is the controlling tty of tracked pids.
	PIDTTYs map[int]string
}
