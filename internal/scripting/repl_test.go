// SPDX-License-Identifier: MPL-2.0

package scripting

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/remcon/remcon/internal/console"
)

// scriptedInput replays lines and then reports EOF.
type scriptedInput struct {
	lines   []string
	prompts []string
}

func (s *scriptedInput) ReadLine(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", console.ErrInterrupted
	}
	s.prompts = append(s.prompts, prompt)
	if len(s.lines) == 0 {
		return "", io.EOF
	}
	line := s.lines[0]
	s.lines = s.lines[1:]
	return line, nil
}

func (s *scriptedInput) ReadPassword(ctx context.Context, prompt string) (string, error) {
	return s.ReadLine(ctx, prompt)
}

func runREPL(t *testing.T, r *Runner, lines ...string) (REPLStats, string, *scriptedInput, error) {
	t.Helper()
	in := &scriptedInput{lines: lines}
	sink := &console.BufferSink{}
	ec := console.NewExecContext(console.Invocation{Name: "script_interactive"}, sink, in)
	stats, err := RunREPL(context.Background(), r, ec)
	return stats, sink.String(), in, err
}

func TestREPL_ExitSentinel(t *testing.T) {
	t.Parallel()

	r := newTestRunners(t).System()
	stats, out, in, err := runREPL(t, r, "x = 2", "", "x * 21", "  quit  ", "never = true")
	if err != nil {
		t.Fatalf("RunREPL returned error: %v", err)
	}
	if stats.Statements != 2 || stats.EOF {
		t.Errorf("stats = %+v, want 2 statements without EOF", stats)
	}
	if !strings.Contains(out, "42\n") {
		t.Errorf("output missing result 42:\n%s", out)
	}
	if !strings.Contains(out, "exit") || !strings.Contains(out, "Bye.") {
		t.Errorf("output missing banner or goodbye:\n%s", out)
	}
	if len(in.lines) != 1 {
		t.Errorf("lines after the sentinel were consumed: %v", in.lines)
	}
	for _, p := range in.prompts {
		if p != Prompt {
			t.Errorf("prompt = %q, want %q", p, Prompt)
		}
	}
	if got, _ := evalString(t, r, "never"); got != "" {
		t.Errorf("statement after sentinel was evaluated")
	}
}

func TestREPL_ErrorsContinueAndEOF(t *testing.T) {
	t.Parallel()

	r := newTestRunners(t).System()
	stats, out, _, err := runREPL(t, r, "error('bad')", "println('still here')")
	if err != nil {
		t.Fatalf("RunREPL returned error: %v", err)
	}
	if stats.Statements != 2 || stats.Errors != 1 || !stats.EOF {
		t.Errorf("stats = %+v", stats)
	}
	if !strings.Contains(out, "error: ") || !strings.Contains(out, "bad") {
		t.Errorf("error not reported inline:\n%s", out)
	}
	if !strings.Contains(out, "still here\n") {
		t.Errorf("later statement did not run:\n%s", out)
	}
}

func TestREPL_Interrupted(t *testing.T) {
	t.Parallel()

	r := newTestRunners(t).System()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ec := console.NewExecContext(console.Invocation{}, &console.BufferSink{}, &scriptedInput{lines: []string{"1"}})
	if _, err := RunREPL(ctx, r, ec); !errors.Is(err, console.ErrInterrupted) {
		t.Errorf("expected ErrInterrupted, got %v", err)
	}
}

func TestIsExitSentinel(t *testing.T) {
	t.Parallel()

	tests := map[string]bool{
		"exit":     true,
		"quit":     true,
		" exit\t":  true,
		"Exit":     false,
		"exit()":   false,
		"":         false,
		"quitting": false,
	}
	for line, want := range tests {
		if got := IsExitSentinel(line); got != want {
			t.Errorf("IsExitSentinel(%q) = %v, want %v", line, got, want)
		}
	}
}
