// SPDX-License-Identifier: MPL-2.0

package scripting

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/remcon/remcon/internal/console"
)

// Prompt is sent with every REPL read.
const Prompt = ">>> "

// IsExitSentinel reports whether a REPL line ends the session. The check is
// case-sensitive after trimming surrounding whitespace.
func IsExitSentinel(line string) bool {
	switch strings.TrimSpace(line) {
	case "exit", "quit":
		return true
	default:
		return false
	}
}

// REPLStats summarizes one REPL session.
type REPLStats struct {
	// Statements counts evaluated lines; empty lines are not counted.
	Statements int
	// Errors counts statements that failed.
	Errors int
	// EOF is true when the client went away instead of sending an exit sentinel.
	EOF bool
}

// RunREPL reads lines through ec and evaluates each with runner until an
// exit sentinel, EOF or cancellation. Statement errors are reported inline
// and do not end the loop.
func RunREPL(ctx context.Context, runner *Runner, ec *console.ExecContext) (REPLStats, error) {
	var stats REPLStats

	_ = ec.Println("====== script interactive mode (" + runner.Domain().String() + ") ======")
	_ = ec.Println("Type 'exit' or 'quit' to leave.")
	_ = ec.Println("")

	env := Env{Sink: ec.Sink(), Values: ec.Values(), Transport: ec.Transport}

	for {
		line, err := ec.ReadLine(ctx, Prompt)
		if err != nil {
			if console.IsEOF(err) {
				stats.EOF = true
				_ = ec.Println("")
				return stats, nil
			}
			if console.IsInterrupted(err) || ctx.Err() != nil {
				return stats, console.ErrInterrupted
			}
			return stats, err
		}

		if IsExitSentinel(line) {
			_ = ec.Println("Bye.")
			return stats, nil
		}

		code := strings.TrimSpace(line)
		if code == "" {
			continue
		}
		stats.Statements++

		result, err := runner.Eval(ctx, env, code)
		switch {
		case errors.Is(err, console.ErrInterrupted):
			if ctx.Err() != nil {
				return stats, console.ErrInterrupted
			}
			stats.Errors++
			_ = ec.Println("interrupted")
		case err != nil:
			stats.Errors++
			if werr := ec.Println(errorText(err)); werr != nil {
				return stats, werr
			}
		case result != "":
			if werr := ec.Println(result); werr != nil {
				return stats, werr
			}
		}
	}
}

func errorText(err error) string {
	var evalErr *EvalError
	if errors.As(err, &evalErr) {
		return "error: " + evalErr.Message
	}
	return fmt.Sprintf("error: %v", err)
}
