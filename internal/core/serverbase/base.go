// SPDX-License-Identifier: MPL-2.0

package serverbase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// ErrNotRunning is returned by operations that need a running component.
var ErrNotRunning = errors.New("not running")

// Base provides the lifecycle fields shared by console components.
// Concrete components embed this struct.
//
// A Base is single-use: once stopped or failed, create a new instance.
type Base struct {
	name string

	state   atomic.Int32
	stateMu sync.Mutex

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	startedCh chan struct{}
	stoppedCh chan struct{}
	errCh     chan error
	lastErr   error
	closeOnce sync.Once
}

// NewBase creates a new Base with the given options.
// Default error channel buffer size is 1.
func NewBase(opts ...Option) *Base {
	b := &Base{
		name:      "server",
		startedCh: make(chan struct{}),
		stoppedCh: make(chan struct{}),
		errCh:     make(chan error, 1),
	}
	b.state.Store(int32(StateCreated))

	for _, opt := range opts {
		opt(b)
	}

	return b
}

// Name returns the component name given with WithName.
func (b *Base) Name() string {
	return b.name
}

// State returns the current state (atomic, lock-free read).
func (b *Base) State() State {
	return State(b.state.Load())
}

// IsRunning returns true if the component is in the Running state.
func (b *Base) IsRunning() bool {
	return b.State() == StateRunning
}

// RequireRunning returns an error wrapping ErrNotRunning unless the
// component is running.
func (b *Base) RequireRunning() error {
	if st := b.State(); st != StateRunning {
		return fmt.Errorf("%s is %s: %w", b.name, st, ErrNotRunning)
	}
	return nil
}

// Err returns a channel for receiving async errors.
// The channel is closed once the component has fully stopped.
func (b *Base) Err() <-chan error {
	return b.errCh
}

// LastError returns the error that caused the Failed state, or nil.
func (b *Base) LastError() error {
	b.stateMu.Lock()
	defer b.stateMu.Unlock()
	return b.lastErr
}

// TransitionToStarting moves Created -> Starting and creates the lifecycle
// context. It fails when the caller's context is already cancelled or the
// component was started before. Must be the first call in Start.
func (b *Base) TransitionToStarting(ctx context.Context) error {
	// A cancelled caller context must fail here, before any goroutine could
	// move the state to Running.
	select {
	case <-ctx.Done():
		b.TransitionToFailed(fmt.Errorf("context cancelled before start: %w", ctx.Err()))
		return b.LastError()
	default:
	}

	if !b.state.CompareAndSwap(int32(StateCreated), int32(StateStarting)) {
		return fmt.Errorf("cannot start %s in state %s", b.name, b.State())
	}

	b.ctx, b.cancel = context.WithCancel(context.Background())

	return nil
}

// TransitionToRunning marks the component as running and closes the
// started channel.
func (b *Base) TransitionToRunning() {
	if b.state.CompareAndSwap(int32(StateStarting), int32(StateRunning)) {
		close(b.startedCh)
	}
}

// TransitionToFailed records err and moves to the terminal Failed state.
func (b *Base) TransitionToFailed(err error) {
	b.stateMu.Lock()
	b.lastErr = err
	b.stateMu.Unlock()

	b.state.Store(int32(StateFailed))

	if b.cancel != nil {
		b.cancel()
	}

	b.SendError(err)
}

// TransitionToStopping attempts to transition to Stopping state.
// Returns true if this call owns the shutdown, false when the component is
// already stopped, stopping, or was never started.
func (b *Base) TransitionToStopping() bool {
	for {
		current := b.State()
		switch current {
		case StateStopped, StateFailed, StateStopping:
			return false
		case StateCreated:
			if b.state.CompareAndSwap(int32(StateCreated), int32(StateStopped)) {
				b.markStopped()
				return false
			}
		case StateStarting, StateRunning:
			if !b.state.CompareAndSwap(int32(current), int32(StateStopping)) {
				continue
			}
			if b.cancel != nil {
				b.cancel()
			}
			return true
		default:
			return false
		}
	}
}

// TransitionToStopped marks the component as fully stopped.
// Must be called after all goroutines have exited.
func (b *Base) TransitionToStopped() {
	b.state.Store(int32(StateStopped))
	b.markStopped()
}

// Shutdown runs the standard stop sequence: own the Stopping transition,
// call release (close listeners, wake pollers), wait for every tracked
// goroutine, then mark Stopped and close the error channel. Calls after the
// first one only wait for the goroutines.
func (b *Base) Shutdown(release func() error) error {
	if !b.TransitionToStopping() {
		b.WaitForShutdown()
		return nil
	}

	var err error
	if release != nil {
		err = release()
	}

	b.WaitForShutdown()
	b.TransitionToStopped()
	b.CloseErrChannel()

	return err
}

// WaitForReady blocks until the component is running or ctx is cancelled.
func (b *Base) WaitForReady(ctx context.Context) error {
	select {
	case <-b.startedCh:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for %s ready: %w", b.name, ctx.Err())
	}
}

// WaitForShutdown blocks until all goroutines tracked by Go have completed.
func (b *Base) WaitForShutdown() {
	b.wg.Wait()
}

// Context returns the lifecycle context, cancelled on Stop or failure.
// Returns nil before Start.
func (b *Base) Context() context.Context {
	return b.ctx
}

// Go runs fn on a tracked goroutine with the lifecycle context.
func (b *Base) Go(fn func(ctx context.Context)) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		fn(b.ctx)
	}()
}

// AddGoroutine increments the WaitGroup counter.
// Must be called before starting a goroutine.
func (b *Base) AddGoroutine() {
	b.wg.Add(1)
}

// DoneGoroutine decrements the WaitGroup counter.
// Must be deferred at the start of each goroutine.
func (b *Base) DoneGoroutine() {
	b.wg.Done()
}

// SendError sends an error to the error channel (non-blocking).
// If the channel is full, the error is dropped.
func (b *Base) SendError(err error) {
	defer func() {
		// The channel may already be closed by a finished shutdown.
		_ = recover()
	}()
	select {
	case b.errCh <- err:
	default:
	}
}

// CloseErrChannel closes the error channel to signal consumers.
func (b *Base) CloseErrChannel() {
	b.closeOnce.Do(func() { close(b.errCh) })
}

// StartedChannel returns a channel closed when the component is running.
func (b *Base) StartedChannel() <-chan struct{} {
	return b.startedCh
}

// StoppedChannel returns a channel closed when the component reached Stopped.
func (b *Base) StoppedChannel() <-chan struct{} {
	return b.stoppedCh
}

func (b *Base) markStopped() {
	b.stateMu.Lock()
	defer b.stateMu.Unlock()
	select {
	case <-b.stoppedCh:
	default:
		close(b.stoppedCh)
	}
}
