// SPDX-License-Identifier: MPL-2.0

package commands

import (
	"context"
	"errors"
	"time"

	"github.com/remcon/remcon/internal/console"
	"github.com/remcon/remcon/internal/core/clock"
	"github.com/remcon/remcon/internal/metrics"
	"github.com/remcon/remcon/internal/scripting"
	"github.com/remcon/remcon/internal/scriptstore"
	"github.com/remcon/remcon/internal/transport"
	"github.com/remcon/remcon/pkg/types"
)

var (
	// ErrNoScriptStore is returned by store-backed script subcommands when
	// the host has no store.
	ErrNoScriptStore = errors.New("no script store configured")
	// ErrNoTransport is returned by port when the host runs without one.
	ErrNoTransport = errors.New("no transport in this process")
	// ErrNoMetrics is returned by metrics when the host collects none.
	ErrNoMetrics = errors.New("metrics are not enabled")
)

type (
	// Transport is the part of transport.Manager the port command needs.
	Transport interface {
		Mode() transport.Mode
		Port() types.ListenPort
		BaseDir() string
		Rebind(ctx context.Context, port types.ListenPort) error
	}

	// Deps are the host services commands act on. Runners is required; the
	// rest are optional and their commands report when they are missing.
	Deps struct {
		Runners   *scripting.Runners
		Store     scriptstore.Store
		Metrics   *metrics.Metrics
		Transport Transport
		// Started is the host start time reported by system.
		Started time.Time
		Clock   clock.Clock
	}
)

var _ Transport = (*transport.Manager)(nil)

// ErrNoRunners is returned by Register without script runners.
var ErrNoRunners = errors.New("commands: no script runners configured")

// Register adds every command to r.
func Register(r *console.Registry, deps Deps) error {
	if deps.Runners == nil {
		return ErrNoRunners
	}
	deps.Clock = clock.OrReal(deps.Clock)
	if deps.Started.IsZero() {
		deps.Started = deps.Clock.Now()
	}

	sc := &scriptCommands{runners: deps.Runners, store: deps.Store}
	rt := &runtimeCommands{started: deps.Started, clock: deps.Clock}

	cmds := []console.Command{
		console.NewInteractiveWhen("script", scriptHelp, sc.script, startsREPL),
		console.NewCommand("srun", srunHelp, sc.srun),
		console.NewInteractiveCommand("sinteractive", sinteractiveHelp, sc.interactive),
		console.NewInteractiveCommand("script_interactive", sinteractiveHelp, sc.interactive),
		console.NewCommand("svars", svarsHelp, sc.vars),
		console.NewCommand("sclear", sclearHelp, sc.clear),
		console.NewCommand("output_test", outputTestHelp, outputTest),
		console.NewInteractiveCommand("interactive_test", interactiveTestHelp, interactiveTest),
		console.NewCommand("gc", gcHelp, rt.gc),
		console.NewCommand("memory", memoryHelp, rt.memory),
		console.NewCommand("goroutines", goroutinesHelp, rt.goroutines),
		console.NewCommand("system", systemHelp, rt.system),
		console.NewCommand("metrics", metricsHelp, metricsCommand(deps.Metrics)),
		console.NewCommand("port", portHelp, portCommand(deps.Transport)),
	}
	for _, cmd := range cmds {
		if err := r.Register(cmd); err != nil {
			return err
		}
	}
	return nil
}

// NewRegistry builds a sealed registry holding every command.
func NewRegistry(deps Deps, opts ...console.RegistryOption) (*console.Registry, error) {
	r := console.NewRegistry(opts...)
	if err := Register(r, deps); err != nil {
		return nil, err
	}
	r.Seal()
	return r, nil
}
