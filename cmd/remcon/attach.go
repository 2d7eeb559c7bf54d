// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/remcon/remcon/internal/sessionserver"
	"github.com/remcon/remcon/internal/transport"
	"github.com/remcon/remcon/pkg/types"

	"github.com/spf13/cobra"
	"golang.org/x/exp/slices"
)

// attachExitLines end an attach session on the client side.
var attachExitLines = []string{"exit", "quit"}

func newAttachCommand(app *App) *cobra.Command {
	var baseDir string
	cmd := &cobra.Command{
		Use:   "attach",
		Short: "Open an interactive session on a running console",
		Long: `Open an interactive session on a running console over its socket.

Each line typed is one command. Commands that read input, such as
script_interactive, take over the prompt until they finish. Type exit or
quit, or send EOF, to leave. The file channel cannot carry interactive
sessions, so attach needs the socket transport.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAttach(cmd.Context(), app, baseDir)
		},
	}
	cmd.Flags().StringVar(&baseDir, "base-dir", "", "transport base directory (default: probed from file_channel.base_dirs)")
	return cmd
}

func runAttach(ctx context.Context, app *App, baseDir string) error {
	cfg, err := app.loadConfig(ctx)
	if err != nil {
		return app.fail(err, types.ExitCommandFailed, nil)
	}
	if baseDir == "" {
		baseDir, err = app.baseDir(cfg)
		if err != nil {
			return app.fail(err, exitCodeFor(err), cfg)
		}
	}

	client := &transport.Client{BaseDir: baseDir, Host: cfg.Server.Host}
	conn, err := client.Dial(ctx)
	if err != nil {
		return app.fail(err, types.ExitUnreachable, cfg)
	}
	defer conn.Close()

	fmt.Fprintln(app.stdout, SubtitleStyle.Render("connected; type help for commands, exit to leave"))
	prompter := newTerminalPrompter(app.stdin, app.stdout)
	for {
		fmt.Fprint(app.stdout, promptStyle.Render("remcon> "))
		line, err := prompter.readLine()
		if err != nil {
			if errors.Is(err, io.EOF) {
				fmt.Fprintln(app.stdout)
				return nil
			}
			return app.fail(err, types.ExitCommandFailed, cfg)
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if slices.Contains(attachExitLines, line) {
			return nil
		}
		if _, err := conn.Execute(ctx, line, app.stdout, prompter); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return app.fail(fmt.Errorf("session ended: %w", err), types.ExitUnreachable, cfg)
		}
	}
}

var _ sessionserver.Prompter = (*terminalPrompter)(nil)
