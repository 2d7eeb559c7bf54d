// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/remcon/remcon/pkg/types"
)

const (
	// ColorSchemeAuto detects the terminal color scheme automatically.
	ColorSchemeAuto ColorScheme = "auto"
	// ColorSchemeDark forces dark color scheme.
	ColorSchemeDark ColorScheme = "dark"
	// ColorSchemeLight forces light color scheme.
	ColorSchemeLight ColorScheme = "light"

	// ScriptStoreFile keeps saved scripts as files under a directory.
	ScriptStoreFile ScriptStoreKind = "file"
	// ScriptStoreRedis keeps saved scripts in a Redis hash.
	ScriptStoreRedis ScriptStoreKind = "redis"
)

var (
	// ErrInvalidColorScheme is returned when a ColorScheme value is not recognized.
	ErrInvalidColorScheme = errors.New("invalid color scheme")
	// ErrInvalidScriptStoreKind is returned when a ScriptStoreKind value is not recognized.
	ErrInvalidScriptStoreKind = errors.New("invalid script store")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// ColorScheme specifies the terminal color scheme preference.
	ColorScheme string

	// InvalidColorSchemeError wraps ErrInvalidColorScheme.
	InvalidColorSchemeError struct {
		Value ColorScheme
	}

	// ScriptStoreKind selects the saved-script backend.
	ScriptStoreKind string

	// InvalidScriptStoreKindError wraps ErrInvalidScriptStoreKind.
	InvalidScriptStoreKindError struct {
		Value ScriptStoreKind
	}

	// InvalidConfigError collects field-level validation errors.
	// It wraps ErrInvalidConfig for errors.Is() compatibility.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// Config holds the application configuration.
	Config struct {
		// Server configures the socket transport.
		Server ServerConfig `json:"server" mapstructure:"server"`
		// FileChannel configures the filesystem fallback transport.
		FileChannel FileChannelConfig `json:"file_channel" mapstructure:"file_channel"`
		// Scripts configures the saved-script store.
		Scripts ScriptsConfig `json:"scripts" mapstructure:"scripts"`
		// Metrics configures the Prometheus HTTP endpoint.
		Metrics MetricsConfig `json:"metrics" mapstructure:"metrics"`
		// UI configures the client's terminal output.
		UI UIConfig `json:"ui" mapstructure:"ui"`
	}

	// ServerConfig configures the socket transport.
	ServerConfig struct {
		Host string `json:"host" mapstructure:"host"`
		// Port is the preferred listen port; 0 lets the system pick one.
		Port            types.ListenPort `json:"port" mapstructure:"port"`
		StartupTimeout  time.Duration    `json:"startup_timeout" mapstructure:"startup_timeout"`
		ShutdownTimeout time.Duration    `json:"shutdown_timeout" mapstructure:"shutdown_timeout"`
	}

	// FileChannelConfig configures the filesystem fallback transport.
	FileChannelConfig struct {
		// BaseDirs lists candidate base directories (primary, secondary,
		// tertiary). Values are shell-expanded at load time.
		BaseDirs     []string      `json:"base_dirs" mapstructure:"base_dirs"`
		PollInterval time.Duration `json:"poll_interval" mapstructure:"poll_interval"`
		// Workers bounds how many file sessions run at once.
		Workers int `json:"workers" mapstructure:"workers"`
		// OrphanTimeout is how long a session directory may lack input.txt
		// before it is removed.
		OrphanTimeout time.Duration `json:"orphan_timeout" mapstructure:"orphan_timeout"`
		// Retention is how long a completed session is kept for its client.
		Retention time.Duration `json:"retention" mapstructure:"retention"`
		// Watch enables fsnotify wake-ups in addition to polling.
		Watch bool `json:"watch" mapstructure:"watch"`
	}

	// ScriptsConfig configures the saved-script store.
	ScriptsConfig struct {
		Store ScriptStoreKind `json:"store" mapstructure:"store"`
		// Dir overrides the file store directory (default <base>/scripts).
		Dir   string      `json:"dir" mapstructure:"dir"`
		Redis RedisConfig `json:"redis" mapstructure:"redis"`
	}

	// RedisConfig addresses the Redis script store.
	RedisConfig struct {
		Addr   string `json:"addr" mapstructure:"addr"`
		Prefix string `json:"prefix" mapstructure:"prefix"`
		DB     int    `json:"db" mapstructure:"db"`
	}

	// MetricsConfig configures the Prometheus HTTP endpoint.
	MetricsConfig struct {
		Enabled bool   `json:"enabled" mapstructure:"enabled"`
		Address string `json:"address" mapstructure:"address"`
	}

	// UIConfig configures the user interface.
	UIConfig struct {
		// Verbose enables debug logging and error chains.
		Verbose bool `json:"verbose" mapstructure:"verbose"`
		// ColorScheme selects the glamour style for issue rendering.
		ColorScheme ColorScheme `json:"color_scheme" mapstructure:"color_scheme"`
	}
)

func (cs ColorScheme) String() string { return string(cs) }

// Validate returns nil for auto, dark and light.
func (cs ColorScheme) Validate() error {
	switch cs {
	case ColorSchemeAuto, ColorSchemeDark, ColorSchemeLight:
		return nil
	default:
		return &InvalidColorSchemeError{Value: cs}
	}
}

func (e *InvalidColorSchemeError) Error() string {
	return fmt.Sprintf("invalid color scheme %q (expected auto, dark or light)", e.Value)
}

func (e *InvalidColorSchemeError) Unwrap() error { return ErrInvalidColorScheme }

func (k ScriptStoreKind) String() string { return string(k) }

// Validate returns nil for file and redis.
func (k ScriptStoreKind) Validate() error {
	switch k {
	case ScriptStoreFile, ScriptStoreRedis:
		return nil
	default:
		return &InvalidScriptStoreKindError{Value: k}
	}
}

func (e *InvalidScriptStoreKindError) Error() string {
	return fmt.Sprintf("invalid script store %q (expected file or redis)", e.Value)
}

func (e *InvalidScriptStoreKindError) Unwrap() error { return ErrInvalidScriptStoreKind }

func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("invalid config: %d field error(s): %v", len(e.FieldErrors), errors.Join(e.FieldErrors...))
}

func (e *InvalidConfigError) Unwrap() error { return ErrInvalidConfig }

// Validate checks the constraints the CUE schema cannot see after defaults
// and environment overrides have been merged.
func (c *Config) Validate() error {
	var errs []error
	if err := c.Server.Port.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("server.port: %w", err))
	}
	if c.FileChannel.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("file_channel.poll_interval: must be positive, got %s", c.FileChannel.PollInterval))
	}
	if c.FileChannel.Workers < 1 {
		errs = append(errs, fmt.Errorf("file_channel.workers: must be at least 1, got %d", c.FileChannel.Workers))
	}
	if len(c.FileChannel.BaseDirs) == 0 {
		errs = append(errs, errors.New("file_channel.base_dirs: at least one directory is required"))
	}
	if err := c.Scripts.Store.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("scripts.store: %w", err))
	}
	if c.Scripts.Store == ScriptStoreRedis && c.Scripts.Redis.Addr == "" {
		errs = append(errs, errors.New("scripts.redis.addr: required when scripts.store is redis"))
	}
	if err := c.UI.ColorScheme.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("ui.color_scheme: %w", err))
	}
	if len(errs) > 0 {
		return &InvalidConfigError{FieldErrors: errs}
	}
	return nil
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "127.0.0.1",
			Port:            types.DefaultListenPort,
			StartupTimeout:  10 * time.Second,
			ShutdownTimeout: 5 * time.Second,
		},
		FileChannel: FileChannelConfig{
			BaseDirs: []string{
				"${XDG_RUNTIME_DIR:-/tmp}/remcon",
				"${XDG_DATA_HOME:-$HOME/.local/share}/remcon",
				"${TMPDIR:-/tmp}/remcon-shared",
			},
			PollInterval:  200 * time.Millisecond,
			Workers:       4,
			OrphanTimeout: 30 * time.Second,
			Retention:     5 * time.Minute,
			Watch:         true,
		},
		Scripts: ScriptsConfig{
			Store: ScriptStoreFile,
			Redis: RedisConfig{
				Addr:   "127.0.0.1:6379",
				Prefix: "remcon:scripts",
			},
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Address: "127.0.0.1:9464",
		},
		UI: UIConfig{
			ColorScheme: ColorSchemeAuto,
		},
	}
}
