// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"strings"
	"time"

	"github.com/remcon/remcon/internal/transport"
	"github.com/remcon/remcon/pkg/types"

	"github.com/spf13/cobra"
)

const defaultFileTimeout = 30 * time.Second

type execOptions struct {
	fileTimeout time.Duration
	baseDir     string
}

func newExecCommand(app *App) *cobra.Command {
	opts := &execOptions{}
	cmd := &cobra.Command{
		Use:   "exec <command> [args...]",
		Short: "Run one command line on a running console",
		Long: `Run one command line on a running console and print its output.

The socket named by the port record is tried first; when it does not answer
the line is sent through the file channel. Input requests are answered from
stdin, secrets without echo when stdin is a terminal.

Exit status is 0 on success, 1 when the command failed and 69 when no
transport reached the console.`,
		Args:               cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExec(cmd.Context(), app, opts, strings.Join(args, " "))
		},
	}
	cmd.Flags().DurationVar(&opts.fileTimeout, "file-timeout", defaultFileTimeout, "how long to wait for a file channel result")
	cmd.Flags().StringVar(&opts.baseDir, "base-dir", "", "transport base directory (default: probed from file_channel.base_dirs)")
	// Everything after the command name belongs to the console line.
	cmd.Flags().SetInterspersed(false)
	return cmd
}

func runExec(ctx context.Context, app *App, opts *execOptions, line string) error {
	cfg, err := app.loadConfig(ctx)
	if err != nil {
		return app.fail(err, types.ExitCommandFailed, nil)
	}
	base := opts.baseDir
	if base == "" {
		base, err = app.baseDir(cfg)
		if err != nil {
			return app.fail(err, exitCodeFor(err), cfg)
		}
	}

	client := &transport.Client{
		BaseDir:     base,
		Host:        cfg.Server.Host,
		FilePoll:    cfg.FileChannel.PollInterval,
		FileTimeout: opts.fileTimeout,
		Prompter:    newTerminalPrompter(app.stdin, app.stdout),
	}
	res, err := client.Execute(ctx, line, app.stdout)
	if err != nil {
		return app.fail(err, exitCodeFor(err), cfg)
	}
	app.logger("remcon").Debug("command finished", "transport", res.Mode, "status", res.Status)
	if !res.OK() {
		return &ExitError{Code: types.ExitCommandFailed}
	}
	return nil
}
