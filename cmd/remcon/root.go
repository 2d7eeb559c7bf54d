// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// NewRootCommand builds the command tree bound to app.
func NewRootCommand(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "remcon",
		Short: "An in-process remote command console",
		Long: TitleStyle.Render("remcon") + SubtitleStyle.Render(" - an in-process remote command console") + `

remcon hosts a console of named commands inside a process and lets clients
invoke them over a local socket, or over a file channel when the socket
cannot be bound. Commands exchange line-oriented input and output, can ask
for masked secrets, and can evaluate Lua against live state.

` + SubtitleStyle.Render("Examples:") + `
  remcon serve              Host a console with the built-in commands
  remcon exec help          Print the help of every command
  remcon exec script 1+1    Evaluate Lua in the system domain
  remcon attach             Open an interactive session
  remcon local system       Run a command in-process`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().BoolVarP(&app.verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&app.cfgFile, "config", "", "config file (default is $XDG_CONFIG_HOME/remcon/config.cue)")

	rootCmd.AddCommand(
		newServeCommand(app),
		newExecCommand(app),
		newAttachCommand(app),
		newLocalCommand(app),
		newConfigCommand(app),
	)
	rootCmd.SetIn(app.stdin)
	rootCmd.SetOut(app.stdout)
	rootCmd.SetErr(app.stderr)
	return rootCmd
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Main runs the CLI with the process streams and returns the exit code.
func Main() int {
	app := NewApp(Dependencies{})
	return run(context.Background(), NewRootCommand(app))
}

// Execute runs the CLI and exits the process. It is called by main.main.
func Execute() {
	os.Exit(Main())
}

func run(ctx context.Context, rootCmd *cobra.Command) int {
	err := fang.Execute(
		ctx,
		rootCmd,
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
		fang.WithErrorHandler(reportError),
	)
	if err == nil {
		return 0
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return int(exitErr.Code)
	}
	return 1
}

// reportError leaves ExitErrors alone; their handlers already printed them.
func reportError(w io.Writer, styles fang.Styles, err error) {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return
	}
	fang.DefaultErrorHandler(w, styles, err)
}
