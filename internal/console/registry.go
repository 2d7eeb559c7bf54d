// SPDX-License-Identifier: MPL-2.0

package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// HelpCommandName is the name of the built-in help command.
const HelpCommandName = "help"

const helpText = `help [name]
    Without arguments, prints the help of every command.
    With a name, prints that command's help.
`

type (
	// Registry maps command names to handlers. Lookups are safe for
	// concurrent use; registration is expected at startup, before Seal.
	Registry struct {
		mu       sync.RWMutex
		order    []Command
		byName   map[string]Command
		sealed   bool
		observer Observer
		logger   *log.Logger
		now      func() time.Time
	}

	// RegistryOption configures a Registry.
	RegistryOption func(*Registry)
)

// WithObserver reports every dispatch to o.
func WithObserver(o Observer) RegistryOption {
	return func(r *Registry) { r.observer = o }
}

// WithLogger sets the logger used for handler panics.
func WithLogger(l *log.Logger) RegistryOption {
	return func(r *Registry) { r.logger = l }
}

// NewRegistry creates a registry holding the built-in help command.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		byName: make(map[string]Command),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "console"})
	}
	// Cannot fail on an empty registry.
	_ = r.Register(NewCommand(HelpCommandName, helpText, r.runHelp))
	return r
}

// Register adds cmd. It fails on an empty or taken name and after Seal.
func (r *Registry) Register(cmd Command) error {
	name := cmd.Name()
	if name == "" || strings.ContainsAny(name, " \t\r\n") {
		return fmt.Errorf("invalid command name %q", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return ErrRegistrySealed
	}
	if _, exists := r.byName[name]; exists {
		return &DuplicateCommandError{Name: name}
	}
	r.byName[name] = cmd
	r.order = append(r.order, cmd)
	return nil
}

// MustRegister is Register for startup code; it panics on error.
func (r *Registry) MustRegister(cmds ...Command) {
	for _, cmd := range cmds {
		if err := r.Register(cmd); err != nil {
			panic(err)
		}
	}
}

// Seal freezes membership. Later Register calls return ErrRegistrySealed.
func (r *Registry) Seal() {
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
}

// Lookup returns the command registered under name.
func (r *Registry) Lookup(name string) (Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmd, ok := r.byName[name]
	return cmd, ok
}

// List returns all commands in registration order.
func (r *Registry) List() []Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Command, len(r.order))
	copy(out, r.order)
	return out
}

// Names returns all command names in registration order.
func (r *Registry) Names() []string {
	cmds := r.List()
	names := make([]string, len(cmds))
	for i, cmd := range cmds {
		names[i] = cmd.Name()
	}
	return names
}

// AggregateHelp concatenates the help text of every command in registration
// order.
func (r *Registry) AggregateHelp() string {
	var sb strings.Builder
	for _, cmd := range r.List() {
		sb.WriteString(cmd.Help())
	}
	return sb.String()
}

func (r *Registry) runHelp(_ context.Context, ec *ExecContext) (string, error) {
	if len(ec.Args) == 0 {
		return r.AggregateHelp(), nil
	}
	cmd, ok := r.Lookup(ec.Args[0])
	if !ok {
		// Reported as a result, not a failure: help always answers.
		return (&UnknownCommandError{Name: ec.Args[0], Known: r.Names()}).Error(), nil
	}
	return cmd.Help(), nil
}

// Dispatch runs the command named by ec. It recovers handler panics and
// never returns without an Outcome.
func (r *Registry) Dispatch(ctx context.Context, ec *ExecContext) (out Outcome) {
	start := r.now()
	out.Command = ec.Name

	defer func() {
		ec.setState(StateDone)
		out.Duration = r.now().Sub(start)
		if r.observer != nil {
			r.observer.ObserveCommand(out.Command, out.Status, out.Duration)
		}
	}()

	cmd, ok := r.Lookup(ec.Name)
	if !ok {
		out.Err = &UnknownCommandError{Name: ec.Name, Known: r.Names()}
		out.Status = StatusUnknown
		return out
	}

	result, err := r.run(ctx, cmd, ec)
	out.Result = result
	out.Err = err
	out.Status = classify(err)
	return out
}

func (r *Registry) run(ctx context.Context, cmd Command, ec *ExecContext) (result string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("command panicked", "command", cmd.Name(), "panic", rec, "stack", string(debug.Stack()))
			err = fmt.Errorf("command %s panicked: %v", cmd.Name(), rec)
		}
	}()
	ec.setState(StateRunning)
	return cmd.Run(ctx, ec)
}

// Execute parses line and dispatches it. Parse failures become error
// Outcomes; an empty line yields the usage hint.
func (r *Registry) Execute(ctx context.Context, line string, ec ExecOptions) Outcome {
	inv, err := ParseLine(line)
	if err != nil {
		return Outcome{Status: StatusError, Err: err}
	}
	for _, opt := range inv.Ignored {
		r.logger.Warn("ignoring unknown option", "option", opt, "command", inv.Name)
	}
	execCtx := NewExecContext(inv, ec.Sink, ec.Input).WithValues(ec.Values)
	execCtx.Transport = ec.Transport
	return r.Dispatch(ctx, execCtx)
}

// Executor runs one command line. Transports depend on this rather than on
// *Registry.
type Executor interface {
	Execute(ctx context.Context, line string, opts ExecOptions) Outcome
}

// ExecOptions carries the transport side of an invocation.
type ExecOptions struct {
	Sink      Sink
	Input     LineReader
	Transport string
	Values    map[string]string
}

// IsInterrupted reports whether err means the invocation was cancelled.
func IsInterrupted(err error) bool {
	return errors.Is(err, ErrInterrupted) || errors.Is(err, context.Canceled)
}

// IsEOF reports whether err means the client closed its input.
func IsEOF(err error) bool {
	return errors.Is(err, io.EOF)
}
