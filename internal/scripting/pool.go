// SPDX-License-Identifier: MPL-2.0

package scripting

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
)

// Pool runs detached background work. It is unbounded: each submission gets
// its own goroutine. Errors are logged, never returned to the submitter.
type Pool struct {
	ctx    context.Context
	cancel context.CancelFunc
	logger *log.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
	active atomic.Int64
}

// NewPool creates a pool whose work is cancelled by Close.
func NewPool(logger *log.Logger) *Pool {
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{ctx: ctx, cancel: cancel, logger: logger}
}

// Go schedules fn. It reports false once the pool is closed.
func (p *Pool) Go(name string, fn func(ctx context.Context) error) bool {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return false
	}
	p.wg.Add(1)
	p.mu.Unlock()

	p.active.Add(1)
	go func() {
		defer p.wg.Done()
		defer p.active.Add(-1)
		if err := fn(p.ctx); err != nil {
			p.logger.Warn("background task failed", "task", name, "err", err)
		}
	}()
	return true
}

// Active returns the number of running tasks.
func (p *Pool) Active() int { return int(p.active.Load()) }

// Wait blocks until all scheduled work has finished.
func (p *Pool) Wait() { p.wg.Wait() }

// Close cancels running work and waits for it.
func (p *Pool) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	p.cancel()
	p.wg.Wait()
}
