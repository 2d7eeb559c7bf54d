// SPDX-License-Identifier: MPL-2.0

package console

import (
	"context"
	"fmt"
	"maps"
	"strings"
	"sync/atomic"
)

// ExecState is the observable state of an invocation.
type ExecState int32

const (
	// StateRunning means the handler is executing.
	StateRunning ExecState = iota
	// StateAwaitingLine means the handler is blocked on ReadLine or ReadPassword.
	StateAwaitingLine
	// StateDone means the handler returned.
	StateDone
)

func (s ExecState) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateAwaitingLine:
		return "awaiting-line"
	case StateDone:
		return "done"
	default:
		return fmt.Sprintf("unknown(%d)", int32(s))
	}
}

// LineReader supplies interactive input. ReadLine returns io.EOF when the
// client has gone away; the owning REPL treats that as an implicit exit.
//
// ReadPassword asks the transport to suppress echo. Transports that cannot
// do that still return the line, without secrecy.
type LineReader interface {
	ReadLine(ctx context.Context, prompt string) (string, error)
	ReadPassword(ctx context.Context, prompt string) (string, error)
}

// NoInput is a LineReader for transports without a live client channel.
var NoInput LineReader = noInput{}

type noInput struct{}

func (noInput) ReadLine(context.Context, string) (string, error)     { return "", ErrNoInput }
func (noInput) ReadPassword(context.Context, string) (string, error) { return "", ErrNoInput }

// Transport names.
const (
	TransportSocket = "socket"
	TransportFile   = "file"
	TransportLocal  = "local"
)

// ExecContext is created for one invocation and discarded when it returns.
type ExecContext struct {
	// Name is the command being run.
	Name string
	// Args are the positional arguments.
	Args []string
	// Raw is the unsplit argument text.
	Raw string
	// Domain is the target isolation domain.
	Domain Domain
	// Transport names the channel the invocation arrived on ("socket", "file", "local").
	Transport string

	sink   Sink
	input  LineReader
	values map[string]string
	state  atomic.Int32
}

// NewExecContext builds the context for inv. A nil input behaves like NoInput.
func NewExecContext(inv Invocation, sink Sink, input LineReader) *ExecContext {
	if sink == nil {
		sink = Discard
	}
	if input == nil {
		input = NoInput
	}
	return &ExecContext{
		Name:   inv.Name,
		Args:   inv.Args,
		Raw:    inv.Raw,
		Domain: inv.Domain,
		sink:   sink,
		input:  input,
	}
}

// WithValues attaches host-provided key/value pairs, exposed to scripts via
// getContext().
func (c *ExecContext) WithValues(values map[string]string) *ExecContext {
	c.values = maps.Clone(values)
	return c
}

// Values returns a copy of the host-provided values.
func (c *ExecContext) Values() map[string]string {
	return maps.Clone(c.values)
}

// Sink returns the output sink.
func (c *ExecContext) Sink() Sink { return c.sink }

// State returns the current invocation state.
func (c *ExecContext) State() ExecState { return ExecState(c.state.Load()) }

func (c *ExecContext) setState(s ExecState) { c.state.Store(int32(s)) }

// Arg returns the i-th argument or "".
func (c *ExecContext) Arg(i int) string {
	if i < 0 || i >= len(c.Args) {
		return ""
	}
	return c.Args[i]
}

// ArgsFrom joins the arguments starting at i with single spaces.
func (c *ExecContext) ArgsFrom(i int) string {
	if i >= len(c.Args) {
		return ""
	}
	return strings.Join(c.Args[i:], " ")
}

func (c *ExecContext) Print(s string) error   { return c.sink.Print(s) }
func (c *ExecContext) Println(s string) error { return c.sink.Println(s) }

func (c *ExecContext) Printf(format string, args ...any) error {
	return c.sink.Print(fmt.Sprintf(format, args...))
}

// Progress overwrites the current output line.
func (c *ExecContext) Progress(s string) error { return c.sink.Progress(s) }

// ReadLine blocks until the client sends a line.
func (c *ExecContext) ReadLine(ctx context.Context, prompt string) (string, error) {
	c.setState(StateAwaitingLine)
	defer c.setState(StateRunning)
	return c.input.ReadLine(ctx, prompt)
}

// ReadPassword blocks until the client sends a line, with echo suppressed
// where the transport allows it.
func (c *ExecContext) ReadPassword(ctx context.Context, prompt string) (string, error) {
	c.setState(StateAwaitingLine)
	defer c.setState(StateRunning)
	return c.input.ReadPassword(ctx, prompt)
}
