// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/remcon/remcon/internal/cueutil"
	"github.com/remcon/remcon/internal/issue"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/spf13/viper"
	"mvdan.cc/sh/v3/shell"
)

const (
	// AppName is the application name.
	AppName = "remcon"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "config"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "cue"
	// EnvPrefix prefixes environment overrides, e.g. REMCON_SERVER_PORT.
	EnvPrefix = "REMCON"
)

//go:embed config_schema.cue
var configSchema string

// ConfigDir returns the remcon configuration directory using platform-specific
// conventions: Windows uses %APPDATA%, macOS uses ~/Library/Application Support,
// and Linux/others use $XDG_CONFIG_HOME (defaulting to ~/.config).
//
//nolint:revive // ConfigDir is more descriptive than Dir for external callers
func ConfigDir() (string, error) {
	if configDirOverride != "" {
		return configDirOverride, nil
	}

	var configDir string

	switch runtime.GOOS {
	case "windows":
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, "Library", "Application Support")
	default:
		configDir = os.Getenv("XDG_CONFIG_HOME")
		if configDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			configDir = filepath.Join(home, ".config")
		}
	}

	return filepath.Join(configDir, AppName), nil
}

// loadWithOptions performs option-driven config loading and returns the path
// of the file that was used ("" when only defaults apply).
func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	resolvedPath := ""

	if opts.ConfigFilePath != "" {
		if !fileExists(opts.ConfigFilePath) {
			return nil, "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(opts.ConfigFilePath).
				WithSuggestion("Verify the file path is correct").
				WithSuggestion("Use 'remcon config show' to see the default configuration").
				WithIssue(issue.ConfigLoadFailedId).
				Wrap(fmt.Errorf("config file not found: %s", opts.ConfigFilePath)).
				BuildError()
		}
		if err := loadCUEIntoViper(v, opts.ConfigFilePath); err != nil {
			return nil, "", wrapLoadError(opts.ConfigFilePath, err)
		}
		resolvedPath = opts.ConfigFilePath
	} else {
		cfgDir, err := configDirWithOverride(opts.ConfigDirPath)
		if err != nil {
			return nil, "", err
		}

		for _, candidate := range []string{
			filepath.Join(cfgDir, ConfigFileName+"."+ConfigFileExt),
			ConfigFileName + "." + ConfigFileExt,
		} {
			if !fileExists(candidate) {
				continue
			}
			if err := loadCUEIntoViper(v, candidate); err != nil {
				return nil, "", wrapLoadError(candidate, err)
			}
			resolvedPath = candidate
			break
		}
		// No config file found: defaults apply.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}

	if err := expandPaths(&cfg); err != nil {
		return nil, "", wrapLoadError(resolvedPath, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", issue.NewErrorContext().
			WithOperation("validate configuration").
			WithResource(resolvedPath).
			WithSuggestion("Fix the listed fields or remove them to use the defaults").
			WithIssue(issue.ConfigLoadFailedId).
			Wrap(err).
			BuildError()
	}

	return &cfg, resolvedPath, nil
}

func wrapLoadError(path string, err error) error {
	return issue.NewErrorContext().
		WithOperation("load configuration").
		WithResource(path).
		WithSuggestion("Check that the file contains valid CUE syntax").
		WithSuggestion("Verify the configuration values match the expected schema").
		WithSuggestion("See 'remcon config --help' for configuration options").
		WithIssue(issue.ConfigLoadFailedId).
		Wrap(err).
		BuildError()
}

func setDefaults(v *viper.Viper, defaults *Config) {
	v.SetDefault("server.host", defaults.Server.Host)
	v.SetDefault("server.port", int(defaults.Server.Port))
	v.SetDefault("server.startup_timeout", defaults.Server.StartupTimeout)
	v.SetDefault("server.shutdown_timeout", defaults.Server.ShutdownTimeout)
	v.SetDefault("file_channel.base_dirs", defaults.FileChannel.BaseDirs)
	v.SetDefault("file_channel.poll_interval", defaults.FileChannel.PollInterval)
	v.SetDefault("file_channel.workers", defaults.FileChannel.Workers)
	v.SetDefault("file_channel.orphan_timeout", defaults.FileChannel.OrphanTimeout)
	v.SetDefault("file_channel.retention", defaults.FileChannel.Retention)
	v.SetDefault("file_channel.watch", defaults.FileChannel.Watch)
	v.SetDefault("scripts.store", string(defaults.Scripts.Store))
	v.SetDefault("scripts.dir", defaults.Scripts.Dir)
	v.SetDefault("scripts.redis.addr", defaults.Scripts.Redis.Addr)
	v.SetDefault("scripts.redis.prefix", defaults.Scripts.Redis.Prefix)
	v.SetDefault("scripts.redis.db", defaults.Scripts.Redis.DB)
	v.SetDefault("metrics.enabled", defaults.Metrics.Enabled)
	v.SetDefault("metrics.address", defaults.Metrics.Address)
	v.SetDefault("ui.verbose", defaults.UI.Verbose)
	v.SetDefault("ui.color_scheme", string(defaults.UI.ColorScheme))
}

// expandPaths applies shell parameter expansion to directory values.
func expandPaths(cfg *Config) error {
	for i, dir := range cfg.FileChannel.BaseDirs {
		expanded, err := ExpandPath(dir)
		if err != nil {
			return fmt.Errorf("file_channel.base_dirs[%d]: %w", i, err)
		}
		cfg.FileChannel.BaseDirs[i] = expanded
	}
	if cfg.Scripts.Dir != "" {
		expanded, err := ExpandPath(cfg.Scripts.Dir)
		if err != nil {
			return fmt.Errorf("scripts.dir: %w", err)
		}
		cfg.Scripts.Dir = expanded
	}
	return nil
}

// ExpandPath expands $VAR, ${VAR} and ${VAR:-default} references against the
// process environment and cleans the result.
func ExpandPath(p string) (string, error) {
	expanded, err := shell.Expand(p, nil)
	if err != nil {
		return "", fmt.Errorf("expand %q: %w", p, err)
	}
	if expanded == "" {
		return "", fmt.Errorf("expand %q: result is empty", p)
	}
	return filepath.Clean(expanded), nil
}

// configDirWithOverride resolves the configuration directory, honoring
// explicit provider options before platform defaults.
func configDirWithOverride(configDirPath string) (string, error) {
	if configDirPath != "" {
		return configDirPath, nil
	}

	return ConfigDir()
}

// loadCUEIntoViper parses a CUE file, validates it against the #Config schema,
// and merges its contents into Viper.
//
// Concrete(false) is used because every field is optional; Viper keeps the
// defaults for whatever the file leaves out.
func loadCUEIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := cueutil.CheckFileSize(data, cueutil.DefaultMaxFileSize, path); err != nil {
		return err
	}

	ctx := cuecontext.New()

	schemaValue := ctx.CompileString(configSchema)
	if schemaValue.Err() != nil {
		return fmt.Errorf("internal error: failed to compile config schema: %w", schemaValue.Err())
	}

	userValue := ctx.CompileBytes(data, cue.Filename(path))
	if userValue.Err() != nil {
		return cueutil.FormatError(userValue.Err(), path)
	}

	schema := schemaValue.LookupPath(cue.ParsePath("#Config"))
	unified := schema.Unify(userValue)
	if err := unified.Validate(cue.Concrete(false)); err != nil {
		return cueutil.FormatError(err, path)
	}

	var configMap map[string]any
	if err := unified.Decode(&configMap); err != nil {
		return cueutil.FormatError(err, path)
	}

	if err := v.MergeConfigMap(configMap); err != nil {
		return fmt.Errorf("failed to merge config: %w", err)
	}

	return nil
}

// fileExists checks if a file exists and is not a directory
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false
	}
	return err == nil && !info.IsDir()
}

// EnsureConfigDir creates the config directory if it doesn't exist
func EnsureConfigDir() error {
	cfgDir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(cfgDir, 0o755)
}

// CreateDefaultConfig writes the default config file unless one exists. It
// returns the file path and whether it was created.
func CreateDefaultConfig() (string, bool, error) {
	cfgDir, err := ConfigDir()
	if err != nil {
		return "", false, err
	}

	if err := os.MkdirAll(cfgDir, 0o755); err != nil {
		return "", false, fmt.Errorf("failed to create config directory: %w", err)
	}

	cfgPath := filepath.Join(cfgDir, ConfigFileName+"."+ConfigFileExt)
	if _, err := os.Stat(cfgPath); err == nil {
		return cfgPath, false, nil
	}

	if err := os.WriteFile(cfgPath, []byte(GenerateCUE(DefaultConfig())), 0o644); err != nil {
		return "", false, fmt.Errorf("failed to write config file: %w", err)
	}

	return cfgPath, true, nil
}

// GenerateCUE generates a CUE representation of the configuration.
func GenerateCUE(cfg *Config) string {
	var sb strings.Builder

	sb.WriteString("// remcon configuration file\n\n")

	sb.WriteString("server: {\n")
	fmt.Fprintf(&sb, "\thost:             %q\n", cfg.Server.Host)
	fmt.Fprintf(&sb, "\tport:             %d\n", cfg.Server.Port)
	fmt.Fprintf(&sb, "\tstartup_timeout:  %q\n", cfg.Server.StartupTimeout.String())
	fmt.Fprintf(&sb, "\tshutdown_timeout: %q\n", cfg.Server.ShutdownTimeout.String())
	sb.WriteString("}\n")

	sb.WriteString("\nfile_channel: {\n")
	sb.WriteString("\tbase_dirs: [\n")
	for _, dir := range cfg.FileChannel.BaseDirs {
		fmt.Fprintf(&sb, "\t\t%q,\n", dir)
	}
	sb.WriteString("\t]\n")
	fmt.Fprintf(&sb, "\tpoll_interval:  %q\n", cfg.FileChannel.PollInterval.String())
	fmt.Fprintf(&sb, "\tworkers:        %d\n", cfg.FileChannel.Workers)
	fmt.Fprintf(&sb, "\torphan_timeout: %q\n", cfg.FileChannel.OrphanTimeout.String())
	fmt.Fprintf(&sb, "\tretention:      %q\n", cfg.FileChannel.Retention.String())
	fmt.Fprintf(&sb, "\twatch:          %v\n", cfg.FileChannel.Watch)
	sb.WriteString("}\n")

	sb.WriteString("\nscripts: {\n")
	fmt.Fprintf(&sb, "\tstore: %q\n", cfg.Scripts.Store)
	if cfg.Scripts.Dir != "" {
		fmt.Fprintf(&sb, "\tdir:   %q\n", cfg.Scripts.Dir)
	}
	sb.WriteString("\tredis: {\n")
	fmt.Fprintf(&sb, "\t\taddr:   %q\n", cfg.Scripts.Redis.Addr)
	fmt.Fprintf(&sb, "\t\tprefix: %q\n", cfg.Scripts.Redis.Prefix)
	fmt.Fprintf(&sb, "\t\tdb:     %d\n", cfg.Scripts.Redis.DB)
	sb.WriteString("\t}\n")
	sb.WriteString("}\n")

	sb.WriteString("\nmetrics: {\n")
	fmt.Fprintf(&sb, "\tenabled: %v\n", cfg.Metrics.Enabled)
	fmt.Fprintf(&sb, "\taddress: %q\n", cfg.Metrics.Address)
	sb.WriteString("}\n")

	sb.WriteString("\nui: {\n")
	fmt.Fprintf(&sb, "\tverbose:      %v\n", cfg.UI.Verbose)
	fmt.Fprintf(&sb, "\tcolor_scheme: %q\n", cfg.UI.ColorScheme)
	sb.WriteString("}\n")

	return sb.String()
}
