// SPDX-License-Identifier: MPL-2.0

package scripting

import (
	"context"
	"os"
	"strings"
	"time"

	lua "github.com/yuin/gopher-lua"
)

const (
	runnableTypeName = "runnable"
	functionTypeName = "function_adapter"
)

// luaCallback is the userdata value behind asRunnable and asFunction.
type luaCallback struct {
	fn   *lua.LFunction
	kind string
}

func (r *Runner) installBuiltins() {
	L := r.L

	for name, fn := range map[string]lua.LGFunction{
		"print":              r.luaPrint,
		"println":            r.luaPrintln,
		"printf":             r.luaPrintf,
		"sleep":              r.luaSleep,
		"range":              luaRange,
		"analyze":            r.luaAnalyze,
		"getDomain":          r.luaGetDomain,
		"getHostName":        luaGetHostName,
		"getPid":             luaGetPid,
		"getEnv":             luaGetEnv,
		"getContext":         r.luaGetContext,
		"createSafeExecutor": r.luaCreateSafeExecutor,
		"asRunnable":         luaAsRunnable,
		"asFunction":         luaAsFunction,
		"runLater":           r.luaRunLater,
	} {
		L.SetGlobal(name, L.NewFunction(fn))
	}

	registerRangeType(L)
	r.registerExecutorType()

	runnable := L.NewTypeMetatable(runnableTypeName)
	L.SetField(runnable, "__index", L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"run": callbackInvoke(runnableTypeName, 0),
	}))
	L.SetField(runnable, "__call", L.NewFunction(callbackCall(0)))
	L.SetField(runnable, "__tostring", L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LString("runnable"))
		return 1
	}))

	function := L.NewTypeMetatable(functionTypeName)
	L.SetField(function, "__index", L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"apply": callbackInvoke(functionTypeName, 1),
	}))
	L.SetField(function, "__call", L.NewFunction(callbackCall(1)))
	L.SetField(function, "__tostring", L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LString("function adapter"))
		return 1
	}))
}

// concatArgs joins the arguments with tostring semantics and no separator.
func concatArgs(L *lua.LState) string {
	var sb strings.Builder
	for i := 1; i <= L.GetTop(); i++ {
		sb.WriteString(L.ToStringMeta(L.Get(i)).String())
	}
	return sb.String()
}

func (r *Runner) write(L *lua.LState, s string) {
	sink := r.env.Sink
	if sink == nil {
		sink = r.bgSink
	}
	if err := sink.Print(s); err != nil {
		L.RaiseError("%s", err.Error())
	}
}

func (r *Runner) luaPrint(L *lua.LState) int {
	r.write(L, concatArgs(L))
	return 0
}

func (r *Runner) luaPrintln(L *lua.LState) int {
	r.write(L, concatArgs(L)+"\n")
	return 0
}

// luaPrintf formats with Lua's string.format.
func (r *Runner) luaPrintf(L *lua.LState) int {
	format := L.GetField(L.GetGlobal("string"), "format")
	args := make([]lua.LValue, 0, L.GetTop())
	for i := 1; i <= L.GetTop(); i++ {
		args = append(args, L.Get(i))
	}
	if err := L.CallByParam(lua.P{Fn: format, NRet: 1, Protect: false}, args...); err != nil {
		L.RaiseError("%s", err.Error())
	}
	out := L.Get(-1)
	L.Pop(1)
	r.write(L, out.String())
	return 0
}

// luaSleep pauses for the given milliseconds, returning early with an error
// when the evaluation is cancelled.
func (r *Runner) luaSleep(L *lua.LState) int {
	d := time.Duration(L.CheckNumber(1) * lua.LNumber(time.Millisecond))
	ctx := L.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
		L.RaiseError("interrupted")
	}
	return 0
}

func (r *Runner) luaGetDomain(L *lua.LState) int {
	L.Push(lua.LString(r.domain.String()))
	return 1
}

func luaGetHostName(L *lua.LState) int {
	name, err := os.Hostname()
	if err != nil {
		L.Push(lua.LNil)
		L.Push(lua.LString(err.Error()))
		return 2
	}
	L.Push(lua.LString(name))
	return 1
}

func luaGetPid(L *lua.LState) int {
	L.Push(lua.LNumber(os.Getpid()))
	return 1
}

func luaGetEnv(L *lua.LState) int {
	value, ok := os.LookupEnv(L.CheckString(1))
	if !ok {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(lua.LString(value))
	return 1
}

// luaGetContext returns a table of host-provided values for this evaluation.
func (r *Runner) luaGetContext(L *lua.LState) int {
	t := L.NewTable()
	for k, v := range r.env.Values {
		t.RawSetString(k, lua.LString(v))
	}
	t.RawSetString("domain", lua.LString(r.domain.String()))
	t.RawSetString("pid", lua.LNumber(os.Getpid()))
	if r.env.Transport != "" {
		t.RawSetString("transport", lua.LString(r.env.Transport))
	}
	L.Push(t)
	return 1
}

func luaAsRunnable(L *lua.LState) int {
	return wrapCallback(L, runnableTypeName)
}

func luaAsFunction(L *lua.LState) int {
	return wrapCallback(L, functionTypeName)
}

func wrapCallback(L *lua.LState, kind string) int {
	ud := L.NewUserData()
	ud.Value = &luaCallback{fn: L.CheckFunction(1), kind: kind}
	L.SetMetatable(ud, L.GetTypeMetatable(kind))
	L.Push(ud)
	return 1
}

// callbackInvoke implements r:run() and f:apply(x).
func callbackInvoke(kind string, nargs int) lua.LGFunction {
	return func(L *lua.LState) int {
		ud := L.CheckUserData(1)
		cb, ok := ud.Value.(*luaCallback)
		if !ok || cb.kind != kind {
			L.ArgError(1, kind+" expected")
			return 0
		}
		return invokeCallback(L, cb, nargs)
	}
}

// callbackCall implements calling the adapter directly: r() or f(x).
func callbackCall(nargs int) lua.LGFunction {
	return func(L *lua.LState) int {
		cb, ok := L.CheckUserData(1).Value.(*luaCallback)
		if !ok {
			L.ArgError(1, "callback expected")
			return 0
		}
		return invokeCallback(L, cb, nargs)
	}
}

func invokeCallback(L *lua.LState, cb *luaCallback, nargs int) int {
	args := make([]lua.LValue, 0, nargs)
	for i := 0; i < nargs; i++ {
		args = append(args, L.Get(2+i))
	}
	nret := 0
	if nargs > 0 {
		nret = 1
	}
	if err := L.CallByParam(lua.P{Fn: cb.fn, NRet: nret, Protect: false}, args...); err != nil {
		L.RaiseError("%s", err.Error())
	}
	return nret
}

// callableOf accepts a Lua function or an asRunnable/asFunction adapter.
func callableOf(v lua.LValue) (*lua.LFunction, bool) {
	switch val := v.(type) {
	case *lua.LFunction:
		return val, true
	case *lua.LUserData:
		if cb, ok := val.Value.(*luaCallback); ok {
			return cb.fn, true
		}
	}
	return nil, false
}

// luaRunLater detaches fn onto the background pool. Its errors are logged
// and never reach the caller.
func (r *Runner) luaRunLater(L *lua.LState) int {
	fn, ok := callableOf(L.Get(1))
	if !ok {
		L.ArgError(1, "function expected")
		return 0
	}
	if !r.pool.Go("runLater", func(ctx context.Context) error {
		_, err := r.callBackground(ctx, fn, 0)
		return err
	}) {
		L.RaiseError("background pool is closed")
	}
	return 0
}
