// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/remcon/remcon/internal/config"
	"github.com/remcon/remcon/internal/issue"
	"github.com/remcon/remcon/internal/transport"
	"github.com/remcon/remcon/pkg/types"

	"github.com/charmbracelet/log"
)

type (
	// App wires CLI services and shared dependencies. Every Cobra handler
	// receives an App and reads configuration, streams and loggers from it.
	App struct {
		Config config.Provider

		stdin  io.Reader
		stdout io.Writer
		stderr io.Writer

		verbose bool
		cfgFile string
	}

	// Dependencies defines the injection points for building an App. Nil
	// fields are replaced with production defaults by NewApp.
	Dependencies struct {
		Config config.Provider
		Stdin  io.Reader
		Stdout io.Writer
		Stderr io.Writer
	}
)

// NewApp creates an App with defaults for omitted dependencies.
func NewApp(deps Dependencies) *App {
	if deps.Config == nil {
		deps.Config = config.NewProvider()
	}
	if deps.Stdin == nil {
		deps.Stdin = os.Stdin
	}
	if deps.Stdout == nil {
		deps.Stdout = os.Stdout
	}
	if deps.Stderr == nil {
		deps.Stderr = os.Stderr
	}
	return &App{
		Config: deps.Config,
		stdin:  deps.Stdin,
		stdout: deps.Stdout,
		stderr: deps.Stderr,
	}
}

// loadConfig loads the configuration named by --config, or the default one.
// ui.verbose in the file turns on verbose output when the flag did not.
func (a *App) loadConfig(ctx context.Context) (*config.Config, error) {
	cfg, err := a.Config.Load(ctx, config.LoadOptions{ConfigFilePath: a.cfgFile})
	if err != nil {
		return nil, err
	}
	if cfg.UI.Verbose {
		a.verbose = true
	}
	return cfg, nil
}

// logger returns a component logger writing to stderr.
func (a *App) logger(prefix string) *log.Logger {
	level := log.InfoLevel
	if a.verbose {
		level = log.DebugLevel
	}
	return log.NewWithOptions(a.stderr, log.Options{Prefix: prefix, Level: level})
}

// baseDir resolves the transport base directory the same way the host does,
// so clients find the host's port record and file sessions.
func (a *App) baseDir(cfg *config.Config) (string, error) {
	marker, err := transport.DefaultMarkerPath()
	if err != nil {
		a.logger("remcon").Debug("base directory marker unavailable", "error", err)
		marker = ""
	}
	return transport.Probe(cfg.FileChannel.BaseDirs, marker)
}

// fail prints err with its guidance and turns it into an ExitError.
func (a *App) fail(err error, code types.ExitCode, cfg *config.Config) error {
	fmt.Fprintln(a.stderr, ErrorStyle.Render("Error:")+" "+formatErrorForDisplay(err, a.verbose))
	if ae, ok := issue.As(err); ok && ae.Issue != 0 {
		if iss := issue.Get(ae.Issue); iss != nil {
			if rendered, renderErr := iss.Render(glamourStyle(cfg)); renderErr == nil {
				fmt.Fprint(a.stderr, rendered)
			}
		}
	}
	return &ExitError{Code: code, Err: err}
}

// exitCodeFor maps transport failures to ExitUnreachable.
func exitCodeFor(err error) types.ExitCode {
	if ae, ok := issue.As(err); ok {
		switch ae.Issue {
		case issue.ServerUnreachableId, issue.FileChannelTimeoutId, issue.BaseDirUnavailableId:
			return types.ExitUnreachable
		}
	}
	return types.ExitCommandFailed
}

// formatErrorForDisplay formats an error for user display. ActionableErrors
// carry their suggestions; verbose mode adds the error chain.
func formatErrorForDisplay(err error, verboseMode bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verboseMode)
	}
	return err.Error()
}

// glamourStyle maps the configured color scheme to a glamour style.
func glamourStyle(cfg *config.Config) string {
	if cfg == nil {
		return "auto"
	}
	switch cfg.UI.ColorScheme {
	case config.ColorSchemeDark:
		return "dark"
	case config.ColorSchemeLight:
		return "light"
	default:
		return "auto"
	}
}
