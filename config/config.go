package config

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/petekp/claude-hud-sub008/errors"
	"github.com/petekp/claude-hud-sub008/pkg/paths"
	"gopkg.in/yaml.v3"
)

var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

// ConfigNames lists the file names searched in the config directory, in order.
var ConfigNames = []string{"hud.yml", "hud.yaml", "hud.toml"}

// Format identifies a config file syntax.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// FormatFor returns the syntax of a config file based on its extension.
func FormatFor(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return FormatTOML
	}
	return FormatYAML
}

// Default returns a Config with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.SetDefaults()
	return cfg
}

// Load reads, validates and defaults the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.ConfigNotFound(path)
		}
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to read config file").
			WithDetail("path", path)
	}

	cfg, err := LoadFromBytes(data, FormatFor(path))
	if err != nil {
		if hudErr, ok := errors.As(err); ok {
			return nil, hudErr.WithDetail("path", path)
		}
		return nil, err
	}
	return cfg, nil
}

// LoadDefault loads the config found by FindConfigFile. When the search path
// holds no file the defaults are returned. A file named by HUD_CONFIG that
// does not exist, or any file that is invalid, is an error.
func LoadDefault() (*Config, error) {
	path, err := FindConfigFile()
	if err != nil {
		if os.Getenv("HUD_CONFIG") == "" && errors.Is(err, errors.ErrCodeConfigNotFound) {
			return Default(), nil
		}
		return nil, err
	}
	return Load(path)
}

// LoadFromBytes parses configuration data in the given syntax.
func LoadFromBytes(data []byte, format Format) (*Config, error) {
	expanded := []byte(expandEnvVars(string(data)))

	// Validate the raw document first so unknown keys are reported.
	var raw map[string]interface{}
	if err := unmarshal(expanded, format, &raw); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to parse configuration").
			WithDetail("format", string(format))
	}
	if raw != nil {
		validator, err := SchemaValidator()
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to build config schema")
		}
		if err := validator.Validate(raw); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeConfigValidation, "schema validation failed")
		}
	}

	var cfg Config
	if err := unmarshal(expanded, format, &cfg); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to decode configuration")
	}

	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "semantic validation failed")
	}

	return &cfg, nil
}

// Marshal renders the config in the given syntax.
func Marshal(cfg *Config, format Format) ([]byte, error) {
	if format == FormatTOML {
		var buf bytes.Buffer
		enc := toml.NewEncoder(&buf)
		if err := enc.Encode(cfg); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
	return yaml.Marshal(cfg)
}

func unmarshal(data []byte, format Format, target interface{}) error {
	if format == FormatTOML {
		return toml.Unmarshal(data, target)
	}
	return yaml.Unmarshal(data, target)
}

// FindConfigFile returns the config file to load:
// 1. HUD_CONFIG, when set
// 2. the first of ConfigNames inside the config directory
func FindConfigFile() (string, error) {
	if explicit := os.Getenv("HUD_CONFIG"); explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", errors.ConfigNotFound(explicit)
		}
		return explicit, nil
	}

	dir := paths.ConfigDir()
	for _, name := range ConfigNames {
		path := filepath.Join(dir, name)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, nil
		}
	}

	return "", errors.ConfigNotFound(dir).WithDetail("searchPath", dir)
}

// expandEnvVars replaces ${VAR} with environment variable values
func expandEnvVars(content string) string {
	return envVarRegex.ReplaceAllStringFunc(content, func(match string) string {
		varName := envVarRegex.FindStringSubmatch(match)[1]

		// Handle default values: ${VAR:-default}
		parts := strings.SplitN(varName, ":-", 2)
		varName = parts[0]
		defaultValue := ""
		if len(parts) > 1 {
			defaultValue = parts[1]
		}

		if value := os.Getenv(varName); value != "" {
			return value
		}

		return defaultValue
	})
}

// SocketPath returns the configured socket path or the XDG default.
func (c *Config) SocketPath() string {
	if c.Daemon.SocketPath != "" {
		return expandHome(c.Daemon.SocketPath)
	}
	return paths.SocketPath()
}

// EventLogPath returns the configured event log path or the XDG default.
func (c *Config) EventLogPath() string {
	if c.Daemon.EventLogPath != "" {
		return expandHome(c.Daemon.EventLogPath)
	}
	return paths.EventLogPath()
}

// LocksDir returns the configured lock directory or the XDG default.
func (c *Config) LocksDir() string {
	if c.Lock.Dir != "" {
		return expandHome(c.Lock.Dir)
	}
	return paths.LocksDir()
}

func expandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
