// SPDX-License-Identifier: MPL-2.0

package scripting

import (
	"context"
	"sync"

	lua "github.com/yuin/gopher-lua"
)

const executorTypeName = "safe_executor"

// SafeExecutor runs submitted work one item at a time on a single worker, in
// submission order. Submit never blocks, so scripts can submit while holding
// the runner lock.
type SafeExecutor struct {
	mu      sync.Mutex
	queue   []func()
	closed  bool
	running bool
	wake    chan struct{}
	done    chan struct{}
}

func newSafeExecutor() *SafeExecutor {
	return &SafeExecutor{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// Submit queues job.
func (e *SafeExecutor) Submit(job func()) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrExecutorClosed
	}
	e.queue = append(e.queue, job)
	e.mu.Unlock()

	select {
	case e.wake <- struct{}{}:
	default:
	}
	return nil
}

// Pending returns the number of queued jobs, including the one running.
func (e *SafeExecutor) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := len(e.queue)
	if e.running {
		n++
	}
	return n
}

// Close stops accepting work. Queued jobs still run; Done is closed after
// the last one.
func (e *SafeExecutor) Close() {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()

	select {
	case e.wake <- struct{}{}:
	default:
	}
}

// Done is closed when the worker has exited.
func (e *SafeExecutor) Done() <-chan struct{} { return e.done }

func (e *SafeExecutor) loop() {
	defer close(e.done)
	for {
		e.mu.Lock()
		if len(e.queue) == 0 {
			closed := e.closed
			e.mu.Unlock()
			if closed {
				return
			}
			<-e.wake
			continue
		}
		job := e.queue[0]
		e.queue = e.queue[1:]
		e.running = true
		e.mu.Unlock()

		job()

		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
	}
}

func (r *Runner) registerExecutorType() {
	L := r.L

	submit := func(L *lua.LState) int {
		ex := checkExecutor(L)
		fn, ok := callableOf(L.Get(2))
		if !ok {
			L.ArgError(2, "function expected")
			return 0
		}
		if err := ex.Submit(func() {
			if _, err := r.callBackground(context.Background(), fn, 0); err != nil {
				r.logger.Warn("safe executor task failed", "domain", r.domain.String(), "err", err)
			}
		}); err != nil {
			L.RaiseError("%s", err.Error())
		}
		return 0
	}

	mt := L.NewTypeMetatable(executorTypeName)
	L.SetField(mt, "__index", L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"submit": submit,
		"close": func(L *lua.LState) int {
			checkExecutor(L).Close()
			return 0
		},
		"pending": func(L *lua.LState) int {
			L.Push(lua.LNumber(checkExecutor(L).Pending()))
			return 1
		},
	}))
	L.SetField(mt, "__call", L.NewFunction(submit))
	L.SetField(mt, "__tostring", L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LString("safe executor"))
		return 1
	}))
}

func checkExecutor(L *lua.LState) *SafeExecutor {
	ex, ok := L.CheckUserData(1).Value.(*SafeExecutor)
	if !ok {
		L.ArgError(1, "safe executor expected")
	}
	return ex
}

// luaCreateSafeExecutor starts a new single-worker executor owned by the runner.
func (r *Runner) luaCreateSafeExecutor(L *lua.LState) int {
	ex := newSafeExecutor()
	r.executors = append(r.executors, ex)
	r.workers.Add(1)
	go func() {
		defer r.workers.Done()
		ex.loop()
	}()

	ud := L.NewUserData()
	ud.Value = ex
	L.SetMetatable(ud, L.GetTypeMetatable(executorTypeName))
	L.Push(ud)
	return 1
}
