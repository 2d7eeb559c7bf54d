// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"

	"github.com/remcon/remcon/internal/transport"
	"github.com/remcon/remcon/pkg/types"

	"github.com/spf13/cobra"
)

type serveOptions struct {
	port    int
	metrics bool
}

func newServeCommand(app *App) *cobra.Command {
	opts := &serveOptions{port: -1}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Host a console with the built-in commands",
		Long: `Host a console with the built-in commands until interrupted.

The socket transport is tried first. When the port cannot be bound the
console falls back to the file channel in the transport base directory.
The chosen port is published in <base>/methods_port for clients.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), app, cmd, opts)
		},
	}
	cmd.Flags().IntVarP(&opts.port, "port", "p", -1, "listen port (overrides server.port; 0 picks a free port)")
	cmd.Flags().BoolVar(&opts.metrics, "metrics", false, "serve Prometheus metrics (overrides metrics.enabled)")
	return cmd
}

func runServe(ctx context.Context, app *App, cmd *cobra.Command, opts *serveOptions) error {
	cfg, err := app.loadConfig(ctx)
	if err != nil {
		return app.fail(err, types.ExitCommandFailed, nil)
	}
	if cmd.Flags().Changed("port") {
		port := types.ListenPort(opts.port)
		if err := port.Validate(); err != nil {
			return app.fail(err, types.ExitCommandFailed, cfg)
		}
		cfg.Server.Port = port
	}
	if cmd.Flags().Changed("metrics") {
		cfg.Metrics.Enabled = opts.metrics
	}

	h, err := newHost(app, cfg, true)
	if err != nil {
		return app.fail(err, exitCodeFor(err), cfg)
	}
	if err := h.start(ctx); err != nil {
		_ = h.close()
		return app.fail(err, types.ExitCommandFailed, cfg)
	}

	switch h.manager.Mode() {
	case transport.ModeSocket:
		fmt.Fprintf(app.stdout, "%s console listening on %s\n", SuccessStyle.Render("✓"), CmdStyle.Render(h.manager.Address()))
	default:
		fmt.Fprintf(app.stdout, "%s console serving the file channel in %s\n", WarningStyle.Render("!"), CmdStyle.Render(h.manager.BaseDir()))
	}
	if h.metricsServer != nil {
		fmt.Fprintf(app.stdout, "%s metrics on http://%s/metrics\n", SuccessStyle.Render("✓"), h.metricsServer.Address())
	}

	<-ctx.Done()
	h.logger.Info("shutting down")
	if err := h.close(); err != nil {
		h.logger.Warn("shutdown finished with errors", "error", err)
	}
	return nil
}
