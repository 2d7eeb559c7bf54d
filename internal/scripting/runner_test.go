// SPDX-License-Identifier: MPL-2.0

package scripting

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/remcon/remcon/internal/console"

	"github.com/charmbracelet/log"
)

func newTestRunners(t *testing.T, opts ...Option) *Runners {
	t.Helper()
	opts = append([]Option{WithLogger(log.New(io.Discard))}, opts...)
	rs := NewRunners(opts...)
	t.Cleanup(func() { _ = rs.Close() })
	return rs
}

func evalString(t *testing.T, r *Runner, code string) (string, string) {
	t.Helper()
	sink := &console.BufferSink{}
	result, err := r.Eval(context.Background(), Env{Sink: sink}, code)
	if err != nil {
		t.Fatalf("Eval(%q) returned error: %v", code, err)
	}
	return result, sink.String()
}

func TestRunner_ExpressionAndStatement(t *testing.T) {
	t.Parallel()

	r := newTestRunners(t).System()

	tests := []struct {
		code string
		want string
	}{
		{"1 + 2", "3"},
		{"'a' .. 'b'", "ab"},
		{"x = 10", ""},
		{"x * 2", "20"},
		{"nil", ""},
		{"{1, 2, 3}", "{1, 2, 3}"},
		{"{a = 'x'}", `{a = "x"}`},
		{"true, 5", "true\t5"},
	}

	for _, tt := range tests {
		got, _ := evalString(t, r, tt.code)
		if got != tt.want {
			t.Errorf("Eval(%q) = %q, want %q", tt.code, got, tt.want)
		}
	}
}

func TestRunner_PrintBuiltins(t *testing.T) {
	t.Parallel()

	r := newTestRunners(t).System()

	tests := []struct {
		code string
		want string
	}{
		{"print('a', 1, true)", "a1true"},
		{"println('line')", "line\n"},
		{"printf('%d-%s', 7, 'x')", "7-x"},
		{"for i in range(1, 4) do print(i) end", "123"},
	}

	for _, tt := range tests {
		_, out := evalString(t, r, tt.code)
		if out != tt.want {
			t.Errorf("output of %q = %q, want %q", tt.code, out, tt.want)
		}
	}
}

func TestRunner_ErrorsDoNotPoisonState(t *testing.T) {
	t.Parallel()

	r := newTestRunners(t).System()
	evalString(t, r, "y = 1")

	_, err := r.Eval(context.Background(), Env{}, "error('boom')")
	if !errors.Is(err, ErrScript) {
		t.Fatalf("expected ErrScript, got %v", err)
	}
	var evalErr *EvalError
	if !errors.As(err, &evalErr) || !strings.Contains(evalErr.Message, "boom") {
		t.Errorf("expected message containing boom, got %v", err)
	}

	if _, err := r.Eval(context.Background(), Env{}, "this is not lua"); !errors.Is(err, ErrScript) {
		t.Errorf("expected compile error to be ErrScript, got %v", err)
	}

	got, _ := evalString(t, r, "y + 1")
	if got != "2" {
		t.Errorf("state after error: got %q, want 2", got)
	}
	if n := r.Evaluations(); n != 4 {
		t.Errorf("Evaluations() = %d, want 4", n)
	}
}

func TestRunner_SleepInterrupted(t *testing.T) {
	t.Parallel()

	r := newTestRunners(t).System()
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := r.Eval(ctx, Env{}, "sleep(10000)")
	if !errors.Is(err, console.ErrInterrupted) {
		t.Fatalf("expected ErrInterrupted, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("sleep was not interrupted promptly: %v", elapsed)
	}

	got, _ := evalString(t, r, "1")
	if got != "1" {
		t.Errorf("runner unusable after interrupt: got %q", got)
	}
}

func TestRunner_VarsAndReset(t *testing.T) {
	t.Parallel()

	r := newTestRunners(t).System()
	evalString(t, r, "b = 'two'")
	evalString(t, r, "a = 1")

	vars := r.Vars()
	if len(vars) != 2 {
		t.Fatalf("Vars() = %+v, want 2 entries", vars)
	}
	if vars[0].Name != "a" || vars[0].Type != "number" || vars[0].Value != "1" {
		t.Errorf("vars[0] = %+v", vars[0])
	}
	if vars[1].Name != "b" || vars[1].Value != "two" {
		t.Errorf("vars[1] = %+v", vars[1])
	}

	if n := r.Reset(); n != 2 {
		t.Errorf("Reset() = %d, want 2", n)
	}
	if vars := r.Vars(); len(vars) != 0 {
		t.Errorf("Vars() after Reset = %+v", vars)
	}
	if got, _ := evalString(t, r, "type(range)"); got != "function" {
		t.Errorf("builtin removed by Reset: type(range) = %q", got)
	}
}

func TestRunner_Context(t *testing.T) {
	t.Parallel()

	r := newTestRunners(t).Get("pkg.ctx")
	sink := &console.BufferSink{}
	env := Env{Sink: sink, Values: map[string]string{"user": "ops"}, Transport: "socket"}

	got, err := r.Eval(context.Background(), env, "getContext().user .. '/' .. getContext().transport .. '/' .. getDomain()")
	if err != nil {
		t.Fatalf("Eval returned error: %v", err)
	}
	if got != "ops/socket/pkg.ctx" {
		t.Errorf("got %q", got)
	}
}

func TestRunner_CallbackGlobals(t *testing.T) {
	t.Parallel()

	r := newTestRunners(t).System()
	evalString(t, r, "calls = 0")
	evalString(t, r, "tick = asRunnable(function() calls = calls + 1 end)")
	evalString(t, r, "double = asFunction(function(x) return x * 2 end)")

	run, ok := r.RunnableGlobal("tick")
	if !ok {
		t.Fatal("RunnableGlobal(tick) not found")
	}
	if err := run(); err != nil {
		t.Fatalf("run() returned error: %v", err)
	}
	if got, _ := evalString(t, r, "calls"); got != "1" {
		t.Errorf("calls = %q, want 1", got)
	}

	fn, ok := r.FunctionGlobal("double")
	if !ok {
		t.Fatal("FunctionGlobal(double) not found")
	}
	v, err := fn(21)
	if err != nil {
		t.Fatalf("fn(21) returned error: %v", err)
	}
	if v != int64(42) {
		t.Errorf("fn(21) = %v (%T), want 42", v, v)
	}

	if got, _ := evalString(t, r, "double(4) .. ',' .. double:apply(5)"); got != "8,10" {
		t.Errorf("adapter call = %q", got)
	}

	if _, ok := r.RunnableGlobal("calls"); ok {
		t.Error("non-callable global reported as runnable")
	}
}

func TestRunner_RunLater(t *testing.T) {
	t.Parallel()

	rs := newTestRunners(t)
	r := rs.System()
	evalString(t, r, "done = false")
	evalString(t, r, "runLater(function() done = true end)")

	rs.Pool().Wait()

	if got, _ := evalString(t, r, "done"); got != "true" {
		t.Errorf("done = %q, want true", got)
	}
}

func TestRunner_SafeExecutorOrder(t *testing.T) {
	t.Parallel()

	r := newTestRunners(t).System()
	evalString(t, r, "seen = {}")
	evalString(t, r, "ex = createSafeExecutor()")
	evalString(t, r, "for i in range(1, 6) do ex:submit(function() seen[#seen + 1] = i end) end")
	evalString(t, r, "ex:close()")

	deadline := time.Now().Add(5 * time.Second)
	for {
		got, _ := evalString(t, r, "table.concat(seen, ',')")
		if got == "1,2,3,4,5" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("executor did not run jobs in order, got %q", got)
		}
		time.Sleep(10 * time.Millisecond)
	}

	if _, err := r.Eval(context.Background(), Env{}, "ex:submit(function() end)"); !errors.Is(err, ErrScript) {
		t.Errorf("submit after close: expected script error, got %v", err)
	}
}

func TestRunner_Analyze(t *testing.T) {
	t.Parallel()

	r := newTestRunners(t).System()

	_, out := evalString(t, r, "analyze({1, 2, name = 'x'})")
	for _, want := range []string{"type: table", "length: 2", "name:"} {
		if !strings.Contains(out, want) {
			t.Errorf("analyze(table) output missing %q:\n%s", want, out)
		}
	}

	_, out = evalString(t, r, "analyze(range(1, 3))")
	for _, want := range []string{"type: userdata", "go_type: scripting.Range", "Begin"} {
		if !strings.Contains(out, want) {
			t.Errorf("analyze(range) output missing %q:\n%s", want, out)
		}
	}

	_, out = evalString(t, r, "analyze(function(a, b) end)")
	if !strings.Contains(out, "parameters: 2") {
		t.Errorf("analyze(function) output missing parameters:\n%s", out)
	}
}

func TestRunner_Bind(t *testing.T) {
	t.Parallel()

	r := newTestRunners(t).System()
	if err := r.Bind("cfg", map[string]any{"port": 8080, "tags": []string{"a", "b"}}); err != nil {
		t.Fatalf("Bind returned error: %v", err)
	}

	if got, _ := evalString(t, r, "cfg.port .. cfg.tags[2]"); got != "8080b" {
		t.Errorf("got %q", got)
	}
	if vars := r.Vars(); len(vars) != 0 {
		t.Errorf("bound globals must not be listed as user vars: %+v", vars)
	}
}

func TestRunner_Closed(t *testing.T) {
	t.Parallel()

	rs := newTestRunners(t)
	r := rs.Get("pkg.closed")
	if err := r.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
	if _, err := r.Eval(context.Background(), Env{}, "1"); !errors.Is(err, ErrRunnerClosed) {
		t.Errorf("expected ErrRunnerClosed, got %v", err)
	}
	if err := r.Close(); err != nil {
		t.Errorf("second Close returned error: %v", err)
	}
}
