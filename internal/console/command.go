// SPDX-License-Identifier: MPL-2.0

package console

import "context"

type (
	// Command is a named handler. Run returns the result text reported to the
	// client once the command finishes; streaming output goes through the
	// ExecContext sink instead.
	Command interface {
		Name() string
		Help() string
		Run(ctx context.Context, ec *ExecContext) (string, error)
	}

	// Interactive is implemented by REPL-style commands that keep reading
	// lines from the client until an exit sentinel or disconnect. args are
	// the invocation arguments, for commands where only some subcommands
	// start a REPL.
	Interactive interface {
		Interactive(args []string) bool
	}

	// CommandFunc is the run operation of a Command.
	CommandFunc func(ctx context.Context, ec *ExecContext) (string, error)

	funcCommand struct {
		name        string
		help        func() string
		run         CommandFunc
		interactive func(args []string) bool
	}
)

// NewCommand builds a Command with static help text.
func NewCommand(name, help string, run CommandFunc) Command {
	return &funcCommand{name: name, help: func() string { return help }, run: run}
}

// NewDynamicCommand builds a Command whose help text is generated on demand.
func NewDynamicCommand(name string, help func() string, run CommandFunc) Command {
	return &funcCommand{name: name, help: help, run: run}
}

// NewInteractiveCommand builds a REPL-style Command.
func NewInteractiveCommand(name, help string, run CommandFunc) Command {
	return NewInteractiveWhen(name, help, run, func([]string) bool { return true })
}

// NewInteractiveWhen builds a Command that is REPL-style only for the
// arguments accepted by when.
func NewInteractiveWhen(name, help string, run CommandFunc, when func(args []string) bool) Command {
	return &funcCommand{name: name, help: func() string { return help }, run: run, interactive: when}
}

func (c *funcCommand) Name() string { return c.name }
func (c *funcCommand) Help() string { return c.help() }

func (c *funcCommand) Interactive(args []string) bool {
	return c.interactive != nil && c.interactive(args)
}

func (c *funcCommand) Run(ctx context.Context, ec *ExecContext) (string, error) {
	return c.run(ctx, ec)
}

// IsInteractive reports whether invoking cmd with args starts a REPL.
func IsInteractive(cmd Command, args []string) bool {
	i, ok := cmd.(Interactive)
	return ok && i.Interactive(args)
}
