// SPDX-License-Identifier: MPL-2.0

package scripting

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/remcon/remcon/internal/console"

	"github.com/charmbracelet/log"
	lua "github.com/yuin/gopher-lua"
)

const chunkName = "script"

type (
	// Runnable is the host calling convention produced by asRunnable.
	Runnable func() error

	// Function is the host calling convention produced by asFunction.
	Function func(arg any) (any, error)

	// Env is the caller side of one evaluation.
	Env struct {
		// Sink receives print/println output.
		Sink console.Sink
		// Values are exposed through getContext().
		Values map[string]string
		// Transport is exposed through getContext().transport.
		Transport string
	}

	// Var is one user-defined global.
	Var struct {
		Name  string
		Type  string
		Value string
	}

	// Runner owns the Lua state of one isolation domain.
	Runner struct {
		domain console.Domain
		logger *log.Logger
		pool   *Pool
		bgSink console.Sink

		mu        sync.Mutex
		L         *lua.LState
		closed    bool
		env       Env
		baseline  map[string]struct{}
		executors []*SafeExecutor
		evals     int

		workers sync.WaitGroup
	}
)

func newRunner(domain console.Domain, pool *Pool, logger *log.Logger) *Runner {
	r := &Runner{
		domain: domain,
		logger: logger,
		pool:   pool,
		L:      lua.NewState(),
	}
	r.bgSink = newLogSink(logger.With("domain", domain.String()))
	r.installBuiltins()
	r.baseline = make(map[string]struct{})
	r.L.G.Global.ForEach(func(k, _ lua.LValue) {
		r.baseline[k.String()] = struct{}{}
	})
	return r
}

// Domain returns the isolation domain this runner belongs to.
func (r *Runner) Domain() console.Domain { return r.domain }

// Evaluations returns how many statements were evaluated successfully or not.
func (r *Runner) Evaluations() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.evals
}

// Eval evaluates one chunk. The chunk is first compiled as an expression
// ("return <code>"); if that does not compile it runs as a statement block.
// Non-nil results are rendered and joined with tabs.
//
// A cancelled ctx aborts the running chunk and yields console.ErrInterrupted.
func (r *Runner) Eval(ctx context.Context, env Env, code string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return "", ErrRunnerClosed
	}
	r.evals++

	fn, err := r.compile(code)
	if err != nil {
		return "", &EvalError{Message: luaErrorMessage(err)}
	}

	if env.Sink == nil {
		env.Sink = console.Discard
	}
	r.env = env
	defer func() { r.env = Env{} }()

	L := r.L
	L.SetContext(ctx)
	defer L.RemoveContext()

	top := L.GetTop()
	L.Push(fn)
	if err := L.PCall(0, lua.MultRet, nil); err != nil {
		L.SetTop(top)
		if ctx.Err() != nil {
			return "", console.ErrInterrupted
		}
		return "", &EvalError{Message: luaErrorMessage(err)}
	}

	n := L.GetTop() - top
	parts := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		if v := L.Get(top + i); v != lua.LNil {
			parts = append(parts, r.render(v, 0))
		}
	}
	L.SetTop(top)

	return strings.Join(parts, "\t"), nil
}

func (r *Runner) compile(code string) (*lua.LFunction, error) {
	if fn, err := r.L.Load(strings.NewReader("return "+code), chunkName); err == nil {
		return fn, nil
	}
	return r.L.Load(strings.NewReader(code), chunkName)
}

// callBackground runs fn outside of any evaluation, with output going to the
// log. Used by runLater, safe executors and host callbacks.
func (r *Runner) callBackground(ctx context.Context, fn *lua.LFunction, nret int, args ...lua.LValue) ([]lua.LValue, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrRunnerClosed
	}

	r.env = Env{Sink: r.bgSink}
	defer func() { r.env = Env{} }()

	L := r.L
	L.SetContext(ctx)
	defer L.RemoveContext()

	top := L.GetTop()
	if err := L.CallByParam(lua.P{Fn: fn, NRet: nret, Protect: true}, args...); err != nil {
		L.SetTop(top)
		if ctx.Err() != nil {
			return nil, console.ErrInterrupted
		}
		return nil, &EvalError{Message: luaErrorMessage(err)}
	}
	results := make([]lua.LValue, 0, nret)
	for i := top + 1; i <= L.GetTop(); i++ {
		results = append(results, L.Get(i))
	}
	L.SetTop(top)
	return results, nil
}

// Vars lists user-defined globals sorted by name.
func (r *Runner) Vars() []Var {
	r.mu.Lock()
	defer r.mu.Unlock()

	var vars []Var
	r.L.G.Global.ForEach(func(k, v lua.LValue) {
		name := k.String()
		if _, builtin := r.baseline[name]; builtin {
			return
		}
		vars = append(vars, Var{Name: name, Type: v.Type().String(), Value: r.render(v, 1)})
	})
	sort.Slice(vars, func(i, j int) bool { return vars[i].Name < vars[j].Name })
	return vars
}

// Reset removes every user-defined global and reports how many were removed.
// Built-ins survive.
func (r *Runner) Reset() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	var names []string
	r.L.G.Global.ForEach(func(k, _ lua.LValue) {
		if _, builtin := r.baseline[k.String()]; !builtin {
			names = append(names, k.String())
		}
	})
	for _, name := range names {
		r.L.SetGlobal(name, lua.LNil)
	}
	return len(names)
}

// RunnableGlobal returns the host callback stored in a global created with
// asRunnable (or a plain Lua function).
func (r *Runner) RunnableGlobal(name string) (Runnable, bool) {
	fn, ok := r.globalCallable(name)
	if !ok {
		return nil, false
	}
	return func() error {
		_, err := r.callBackground(context.Background(), fn, 0)
		return err
	}, true
}

// FunctionGlobal returns the host callback stored in a global created with
// asFunction (or a plain Lua function).
func (r *Runner) FunctionGlobal(name string) (Function, bool) {
	fn, ok := r.globalCallable(name)
	if !ok {
		return nil, false
	}
	return func(arg any) (any, error) {
		r.mu.Lock()
		larg := toLua(r.L, arg)
		r.mu.Unlock()

		results, err := r.callBackground(context.Background(), fn, 1, larg)
		if err != nil {
			return nil, err
		}
		return toGo(results[0]), nil
	}, true
}

func (r *Runner) globalCallable(name string) (*lua.LFunction, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, false
	}
	return callableOf(r.L.GetGlobal(name))
}

// Close releases the Lua state. Pending executor work is dropped.
func (r *Runner) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	executors := r.executors
	r.executors = nil
	r.L.Close()
	r.mu.Unlock()

	for _, ex := range executors {
		ex.Close()
	}
	r.workers.Wait()
	return nil
}

// luaErrorMessage strips the Go stack trace gopher-lua attaches.
func luaErrorMessage(err error) string {
	var apiErr *lua.ApiError
	if errors.As(err, &apiErr) && apiErr.Object != nil {
		return apiErr.Object.String()
	}
	return err.Error()
}

// render formats a value for the REPL.
func (r *Runner) render(v lua.LValue, depth int) string {
	switch val := v.(type) {
	case lua.LString:
		return string(val)
	case *lua.LTable:
		return r.renderTable(val, depth)
	case *lua.LUserData:
		if mt, ok := r.L.GetMetatable(val).(*lua.LTable); ok && mt.RawGetString("__tostring") != lua.LNil {
			return r.L.ToStringMeta(val).String()
		}
		return fmt.Sprintf("userdata<%T>", val.Value)
	default:
		return v.String()
	}
}

const maxRenderItems = 32

func (r *Runner) renderTable(t *lua.LTable, depth int) string {
	if depth >= 2 {
		return "{...}"
	}

	var items []string
	n := t.Len()
	for i := 1; i <= n && len(items) < maxRenderItems; i++ {
		items = append(items, r.renderNested(t.RawGetInt(i), depth))
	}

	var keyed []string
	t.ForEach(func(k, v lua.LValue) {
		if num, ok := k.(lua.LNumber); ok && float64(num) == float64(int(num)) && int(num) >= 1 && int(num) <= n {
			return
		}
		keyed = append(keyed, fmt.Sprintf("%s = %s", k.String(), r.renderNested(v, depth)))
	})
	sort.Strings(keyed)
	items = append(items, keyed...)

	if len(items) > maxRenderItems {
		items = append(items[:maxRenderItems], "...")
	}
	return "{" + strings.Join(items, ", ") + "}"
}

func (r *Runner) renderNested(v lua.LValue, depth int) string {
	if s, ok := v.(lua.LString); ok {
		return fmt.Sprintf("%q", string(s))
	}
	return r.render(v, depth+1)
}
