// SPDX-License-Identifier: MPL-2.0

package serverbase

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestStateTransitions(t *testing.T) {
	t.Parallel()

	t.Run("Created to Starting to Running to Stopped", func(t *testing.T) {
		t.Parallel()

		b := NewBase(WithName("broker"))

		if b.State() != StateCreated {
			t.Errorf("expected StateCreated, got %s", b.State())
		}
		if err := b.TransitionToStarting(context.Background()); err != nil {
			t.Fatalf("TransitionToStarting failed: %v", err)
		}
		if err := b.RequireRunning(); !errors.Is(err, ErrNotRunning) {
			t.Errorf("RequireRunning() while starting = %v, want ErrNotRunning", err)
		}

		b.TransitionToRunning()
		if !b.IsRunning() {
			t.Error("IsRunning should return true")
		}
		if err := b.RequireRunning(); err != nil {
			t.Errorf("RequireRunning() = %v", err)
		}

		if !b.TransitionToStopping() {
			t.Error("TransitionToStopping should return true")
		}
		b.TransitionToStopped()
		if b.State() != StateStopped {
			t.Errorf("expected StateStopped, got %s", b.State())
		}

		select {
		case <-b.StoppedChannel():
		default:
			t.Error("stopped channel should be closed")
		}
	})

	t.Run("Starting to Failed", func(t *testing.T) {
		t.Parallel()

		b := NewBase()
		if err := b.TransitionToStarting(context.Background()); err != nil {
			t.Fatalf("TransitionToStarting failed: %v", err)
		}

		testErr := errors.New("bind refused")
		b.TransitionToFailed(testErr)

		if b.State() != StateFailed {
			t.Errorf("expected StateFailed, got %s", b.State())
		}
		if !errors.Is(b.LastError(), testErr) {
			t.Errorf("expected %v, got %v", testErr, b.LastError())
		}

		select {
		case err := <-b.Err():
			if !errors.Is(err, testErr) {
				t.Errorf("expected %v from error channel, got %v", testErr, err)
			}
		default:
			t.Error("expected error in channel")
		}
	})
}

func TestShutdown(t *testing.T) {
	t.Parallel()

	t.Run("waits for tracked goroutines", func(t *testing.T) {
		t.Parallel()

		b := NewBase()
		if err := b.TransitionToStarting(context.Background()); err != nil {
			t.Fatalf("TransitionToStarting failed: %v", err)
		}
		b.TransitionToRunning()

		var finished atomic.Int32
		for range 4 {
			b.Go(func(ctx context.Context) {
				<-ctx.Done()
				finished.Add(1)
			})
		}

		released := false
		if err := b.Shutdown(func() error {
			released = true
			return nil
		}); err != nil {
			t.Fatalf("Shutdown() = %v", err)
		}

		if !released {
			t.Error("release func was not called")
		}
		if got := finished.Load(); got != 4 {
			t.Errorf("finished goroutines = %d, want 4", got)
		}
		if b.State() != StateStopped {
			t.Errorf("expected StateStopped, got %s", b.State())
		}
		if _, ok := <-b.Err(); ok {
			t.Error("error channel should be closed after Shutdown")
		}
	})

	t.Run("second call is a no-op", func(t *testing.T) {
		t.Parallel()

		b := NewBase()
		if err := b.TransitionToStarting(context.Background()); err != nil {
			t.Fatalf("TransitionToStarting failed: %v", err)
		}
		b.TransitionToRunning()

		calls := 0
		release := func() error {
			calls++
			return nil
		}
		_ = b.Shutdown(release)
		_ = b.Shutdown(release)

		if calls != 1 {
			t.Errorf("release called %d times, want 1", calls)
		}
	})

	t.Run("release error is returned", func(t *testing.T) {
		t.Parallel()

		b := NewBase()
		if err := b.TransitionToStarting(context.Background()); err != nil {
			t.Fatalf("TransitionToStarting failed: %v", err)
		}
		wantErr := errors.New("close listener")
		if err := b.Shutdown(func() error { return wantErr }); !errors.Is(err, wantErr) {
			t.Errorf("Shutdown() = %v, want %v", err, wantErr)
		}
	})
}

func TestRaceConditions(t *testing.T) {
	t.Parallel()

	t.Run("concurrent state reads during transitions", func(t *testing.T) {
		t.Parallel()

		b := NewBase()

		var wg sync.WaitGroup
		for range 10 {
			wg.Go(func() {
				for range 100 {
					_ = b.State()
					_ = b.IsRunning()
				}
			})
		}

		_ = b.TransitionToStarting(context.Background())
		b.TransitionToRunning()
		b.TransitionToStopping()
		b.TransitionToStopped()

		wg.Wait()
	})

	t.Run("concurrent Stop calls", func(t *testing.T) {
		t.Parallel()

		b := NewBase()
		if err := b.TransitionToStarting(context.Background()); err != nil {
			t.Fatalf("TransitionToStarting failed: %v", err)
		}
		b.TransitionToRunning()

		var owners atomic.Int32
		var wg sync.WaitGroup
		for range 10 {
			wg.Go(func() {
				if b.TransitionToStopping() {
					owners.Add(1)
				}
			})
		}
		wg.Wait()

		if got := owners.Load(); got != 1 {
			t.Errorf("stop owners = %d, want exactly 1", got)
		}
	})
}

func TestIdempotency(t *testing.T) {
	t.Parallel()

	t.Run("double Start returns error", func(t *testing.T) {
		t.Parallel()

		b := NewBase()
		if err := b.TransitionToStarting(context.Background()); err != nil {
			t.Fatalf("first TransitionToStarting failed: %v", err)
		}
		if err := b.TransitionToStarting(context.Background()); err == nil {
			t.Error("expected error on second TransitionToStarting")
		}
	})

	t.Run("Stop without Start is safe", func(t *testing.T) {
		t.Parallel()

		b := NewBase()
		if b.TransitionToStopping() {
			t.Error("TransitionToStopping from Created should return false")
		}
		if b.State() != StateStopped {
			t.Errorf("expected StateStopped, got %s", b.State())
		}
	})

	t.Run("Stop on Failed is safe", func(t *testing.T) {
		t.Parallel()

		b := NewBase()
		if err := b.TransitionToStarting(context.Background()); err != nil {
			t.Fatalf("TransitionToStarting failed: %v", err)
		}
		b.TransitionToFailed(context.DeadlineExceeded)

		if b.TransitionToStopping() {
			t.Error("TransitionToStopping from Failed should return false")
		}
		if b.State() != StateFailed {
			t.Errorf("expected StateFailed, got %s", b.State())
		}
	})
}

func TestCancelledContext(t *testing.T) {
	t.Parallel()

	t.Run("Start with already cancelled context fails immediately", func(t *testing.T) {
		t.Parallel()

		b := NewBase()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		if err := b.TransitionToStarting(ctx); err == nil {
			t.Error("expected error with cancelled context")
		}
		if b.State() != StateFailed {
			t.Errorf("expected StateFailed, got %s", b.State())
		}
	})

	t.Run("WaitForReady respects context cancellation", func(t *testing.T) {
		t.Parallel()

		b := NewBase()
		if err := b.TransitionToStarting(context.Background()); err != nil {
			t.Fatalf("TransitionToStarting failed: %v", err)
		}

		waitCtx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()

		if err := b.WaitForReady(waitCtx); err == nil {
			t.Error("expected timeout error")
		}
	})
}

func TestStateHelpers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		state    State
		name     string
		terminal bool
		active   bool
	}{
		{StateCreated, "created", false, false},
		{StateStarting, "starting", false, true},
		{StateRunning, "running", false, true},
		{StateStopping, "stopping", false, true},
		{StateStopped, "stopped", true, false},
		{StateFailed, "failed", true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := tt.state.String(); got != tt.name {
				t.Errorf("String() = %q, want %q", got, tt.name)
			}
			if got := tt.state.IsTerminal(); got != tt.terminal {
				t.Errorf("IsTerminal() = %v, want %v", got, tt.terminal)
			}
			if got := tt.state.IsActive(); got != tt.active {
				t.Errorf("IsActive() = %v, want %v", got, tt.active)
			}
			if err := tt.state.Validate(); err != nil {
				t.Errorf("Validate() = %v", err)
			}
		})
	}

	if err := State(99).Validate(); !errors.Is(err, ErrInvalidState) {
		t.Errorf("State(99).Validate() = %v, want ErrInvalidState", err)
	}
}

func TestWithErrorChannel(t *testing.T) {
	t.Parallel()

	b := NewBase(WithErrorChannel(5))
	for range 5 {
		b.SendError(context.DeadlineExceeded)
	}
	for i := range 5 {
		select {
		case <-b.Err():
		default:
			t.Errorf("expected error %d in channel", i)
		}
	}

	b.CloseErrChannel()
	b.SendError(context.Canceled) // must not panic after close
}
