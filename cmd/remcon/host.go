// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/remcon/remcon/internal/commands"
	"github.com/remcon/remcon/internal/config"
	"github.com/remcon/remcon/internal/console"
	"github.com/remcon/remcon/internal/issue"
	"github.com/remcon/remcon/internal/metrics"
	"github.com/remcon/remcon/internal/scripting"
	"github.com/remcon/remcon/internal/scriptstore"
	"github.com/remcon/remcon/internal/transport"

	"github.com/charmbracelet/log"
)

// host is a console with the built-in commands, optionally served over the
// socket or file channel transport.
type host struct {
	cfg     *config.Config
	logger  *log.Logger
	baseDir string

	metrics  *metrics.Metrics
	runners  *scripting.Runners
	store    scriptstore.Store
	registry *console.Registry

	manager       *transport.Manager
	metricsServer *metrics.Server
}

// newHost assembles a host. With serve set it also builds the transport
// manager and, when enabled, the metrics server; nothing is bound until start.
func newHost(app *App, cfg *config.Config, serve bool) (*host, error) {
	h := &host{
		cfg:     cfg,
		logger:  app.logger("remcon"),
		metrics: metrics.New(),
	}

	base, err := app.baseDir(cfg)
	if err != nil {
		if serve {
			return nil, err
		}
		h.logger.Warn("no base directory, saved scripts are unavailable", "error", err)
	}
	h.baseDir = base

	h.runners = scripting.NewRunners(
		scripting.WithLogger(app.logger("scripting")),
		scripting.WithCreateHook(h.metrics.SetScriptRunners),
	)

	if base != "" || cfg.Scripts.Store == config.ScriptStoreRedis {
		store, err := scriptstore.Open(cfg.Scripts, base)
		if err != nil {
			h.close()
			return nil, issue.NewErrorContext().
				WithOperation("open script store").
				WithResource(string(cfg.Scripts.Store)).
				WithSuggestion("Check scripts.store and scripts.dir in the configuration").
				WithIssue(issue.ScriptStoreUnavailableId).
				Wrap(err).
				BuildError()
		}
		h.store = store
	}

	h.registry = console.NewRegistry(
		console.WithObserver(h.metrics),
		console.WithLogger(app.logger("console")),
	)

	deps := commands.Deps{
		Runners: h.runners,
		Store:   h.store,
		Metrics: h.metrics,
		Started: time.Now(),
	}

	if serve {
		mcfg := transport.ManagerConfigFrom(cfg)
		// The directory is already chosen; the manager only re-checks it.
		mcfg.BaseDirs = []string{base}
		mcfg.Executor = h.registry
		mcfg.Observer = h.metrics
		mcfg.OnFileResult = h.metrics.ObserveFileSession
		mcfg.Values = hostValues()
		mcfg.Logger = app.logger("transport")
		mgr, err := transport.NewManager(mcfg)
		if err != nil {
			h.close()
			return nil, err
		}
		h.manager = mgr
		deps.Transport = mgr

		if cfg.Metrics.Enabled {
			srv, err := metrics.NewServer(metrics.ServerConfig{
				Address: cfg.Metrics.Address,
				Metrics: h.metrics,
				Ready:   func() bool { return mgr.Mode() != transport.ModeNone },
				Logger:  app.logger("metrics"),
			})
			if err != nil {
				h.close()
				return nil, err
			}
			h.metricsServer = srv
		}
	}

	if err := commands.Register(h.registry, deps); err != nil {
		h.close()
		return nil, fmt.Errorf("register commands: %w", err)
	}
	h.registry.Seal()
	return h, nil
}

// start binds the transports. A metrics server that cannot bind is logged
// and skipped; the console itself keeps running.
func (h *host) start(ctx context.Context) error {
	if h.manager == nil {
		return nil
	}
	if err := h.manager.Start(ctx); err != nil {
		return err
	}
	if h.metricsServer != nil {
		if err := h.metricsServer.Start(ctx); err != nil {
			h.logger.Warn("metrics endpoint unavailable", "address", h.cfg.Metrics.Address, "error", err)
			h.metricsServer = nil
		}
	}
	return nil
}

// execute dispatches line in-process.
func (h *host) execute(ctx context.Context, line string, sink console.Sink, input console.LineReader) console.Outcome {
	return h.registry.Execute(ctx, line, console.ExecOptions{
		Sink:      sink,
		Input:     input,
		Transport: console.TransportLocal,
		Values:    hostValues(),
	})
}

// close stops everything that was started and releases the stores.
func (h *host) close() error {
	var errs []error
	if h.metricsServer != nil {
		errs = append(errs, h.metricsServer.Stop())
	}
	if h.manager != nil {
		errs = append(errs, h.manager.Stop())
	}
	if h.runners != nil {
		errs = append(errs, h.runners.Close())
	}
	if h.store != nil {
		errs = append(errs, h.store.Close())
	}
	return errors.Join(errs...)
}

// hostValues are exposed to scripts through getContext().
func hostValues() map[string]string {
	values := map[string]string{"app": config.AppName, "version": Version}
	if name, err := os.Hostname(); err == nil {
		values["hostname"] = name
	}
	return values
}
