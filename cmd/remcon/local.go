// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/remcon/remcon/internal/console"
	"github.com/remcon/remcon/pkg/types"

	"github.com/spf13/cobra"
)

func newLocalCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "local <command> [args...]",
		Short: "Run one command line in-process without a transport",
		Long: `Run one command line against a console built inside this process.

No socket or file channel is involved, so transport commands such as port
report that no transport is configured. Saved scripts use the same store as
a console started with serve.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLocal(cmd.Context(), app, strings.Join(args, " "))
		},
	}
	cmd.Flags().SetInterspersed(false)
	return cmd
}

func runLocal(ctx context.Context, app *App, line string) error {
	cfg, err := app.loadConfig(ctx)
	if err != nil {
		return app.fail(err, types.ExitCommandFailed, nil)
	}
	h, err := newHost(app, cfg, false)
	if err != nil {
		return app.fail(err, types.ExitCommandFailed, cfg)
	}
	defer func() {
		if err := h.close(); err != nil {
			h.logger.Warn("cleanup failed", "error", err)
		}
	}()

	prompter := newTerminalPrompter(app.stdin, app.stdout)
	out := h.execute(ctx, line, console.NewWriterSink(ctx, app.stdout), prompter)
	if text := out.Text(); text != "" {
		fmt.Fprint(app.stdout, text)
		if !strings.HasSuffix(text, "\n") {
			fmt.Fprintln(app.stdout)
		}
	}
	if !out.OK() {
		return &ExitError{Code: types.ExitCommandFailed}
	}
	return nil
}
