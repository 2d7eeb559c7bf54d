// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/remcon/remcon/internal/config"
	"github.com/remcon/remcon/internal/issue"
	"github.com/remcon/remcon/pkg/types"

	"github.com/spf13/cobra"
)

// newConfigCommand creates the `remcon config` command tree.
func newConfigCommand(app *App) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage remcon configuration",
		Long: `Manage remcon configuration.

Configuration is stored in:
  - Linux: $XDG_CONFIG_HOME/remcon/config.cue (default ~/.config)
  - macOS: ~/Library/Application Support/remcon/config.cue
  - Windows: %APPDATA%\remcon\config.cue

Any value can be overridden from the environment with the REMCON_ prefix,
for example REMCON_SERVER_PORT=12000.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showConfig(cmd.Context(), app)
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Create the default configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(app)
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showConfigPath(app)
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "dump",
		Short: "Output the effective configuration as CUE",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.loadConfig(cmd.Context())
			if err != nil {
				return app.fail(err, types.ExitCommandFailed, nil)
			}
			fmt.Fprint(app.stdout, config.GenerateCUE(cfg))
			return nil
		},
	})

	return cfgCmd
}

func showConfig(ctx context.Context, app *App) error {
	cfg, path, err := config.Resolve(ctx, config.LoadOptions{ConfigFilePath: app.cfgFile})
	if err != nil {
		fmt.Fprintln(app.stderr, ErrorStyle.Render("Error:")+" "+formatErrorForDisplay(err, app.verbose))
		rendered, _ := issue.Get(issue.ConfigLoadFailedId).Render("dark")
		fmt.Fprint(app.stderr, rendered)
		return &ExitError{Code: types.ExitCommandFailed, Err: err}
	}

	keyStyle := CmdStyle
	valueStyle := SuccessStyle
	kv := func(indent, key string, value any) {
		fmt.Fprintf(app.stdout, "%s%s: %s\n", indent, keyStyle.Render(key), valueStyle.Render(fmt.Sprint(value)))
	}

	fmt.Fprintln(app.stdout, TitleStyle.Render("Current Configuration"))
	fmt.Fprintln(app.stdout)
	if path != "" {
		fmt.Fprintf(app.stdout, "%s: %s\n", keyStyle.Render("Config file"), path)
	} else {
		fmt.Fprintf(app.stdout, "%s: %s\n", keyStyle.Render("Config file"), SubtitleStyle.Render("(using defaults)"))
	}

	fmt.Fprintf(app.stdout, "\n%s:\n", keyStyle.Render("server"))
	kv("  ", "host", cfg.Server.Host)
	kv("  ", "port", cfg.Server.Port)
	kv("  ", "startup_timeout", cfg.Server.StartupTimeout)
	kv("  ", "shutdown_timeout", cfg.Server.ShutdownTimeout)

	fmt.Fprintf(app.stdout, "\n%s:\n", keyStyle.Render("file_channel"))
	fmt.Fprintf(app.stdout, "  %s:\n", keyStyle.Render("base_dirs"))
	for _, dir := range cfg.FileChannel.BaseDirs {
		fmt.Fprintf(app.stdout, "    - %s\n", valueStyle.Render(dir))
	}
	kv("  ", "poll_interval", cfg.FileChannel.PollInterval)
	kv("  ", "workers", cfg.FileChannel.Workers)
	kv("  ", "orphan_timeout", cfg.FileChannel.OrphanTimeout)
	kv("  ", "retention", cfg.FileChannel.Retention)
	kv("  ", "watch", cfg.FileChannel.Watch)

	fmt.Fprintf(app.stdout, "\n%s:\n", keyStyle.Render("scripts"))
	kv("  ", "store", cfg.Scripts.Store)
	if cfg.Scripts.Dir != "" {
		kv("  ", "dir", cfg.Scripts.Dir)
	} else {
		fmt.Fprintf(app.stdout, "  %s: %s\n", keyStyle.Render("dir"), SubtitleStyle.Render("(<base>/scripts)"))
	}
	kv("  ", "redis.addr", cfg.Scripts.Redis.Addr)
	kv("  ", "redis.prefix", cfg.Scripts.Redis.Prefix)

	fmt.Fprintf(app.stdout, "\n%s:\n", keyStyle.Render("metrics"))
	kv("  ", "enabled", cfg.Metrics.Enabled)
	kv("  ", "address", cfg.Metrics.Address)

	fmt.Fprintf(app.stdout, "\n%s:\n", keyStyle.Render("ui"))
	kv("  ", "verbose", cfg.UI.Verbose)
	kv("  ", "color_scheme", cfg.UI.ColorScheme)

	return nil
}

func initConfig(app *App) error {
	path, created, err := config.CreateDefaultConfig()
	if err != nil {
		return app.fail(fmt.Errorf("failed to create config: %w", err), types.ExitCommandFailed, nil)
	}
	if !created {
		fmt.Fprintf(app.stdout, "%s Configuration already exists at %s\n", WarningStyle.Render("!"), path)
		return nil
	}
	fmt.Fprintf(app.stdout, "%s Created default configuration at %s\n", SuccessStyle.Render("✓"), path)
	return nil
}

func showConfigPath(app *App) error {
	cfgDir, err := config.ConfigDir()
	if err != nil {
		return app.fail(err, types.ExitCommandFailed, nil)
	}
	fmt.Fprintf(app.stdout, "Config directory: %s\n", cfgDir)
	fmt.Fprintf(app.stdout, "Config file: %s\n", filepath.Join(cfgDir, config.ConfigFileName+"."+config.ConfigFileExt))
	return nil
}
