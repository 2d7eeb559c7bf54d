// SPDX-License-Identifier: MPL-2.0

package scripting

import (
	"os"
	"sync"
	"sync/atomic"

	"github.com/remcon/remcon/internal/console"

	"github.com/charmbracelet/log"
)

type (
	// Runners maps isolation domains to their Runner. Get is safe for
	// concurrent use and constructs at most one Runner per domain.
	Runners struct {
		logger   *log.Logger
		pool     *Pool
		onCreate func(total int)

		system  *Runner
		entries sync.Map // console.Domain -> *runnerEntry
		created atomic.Int64
		closed  atomic.Bool
	}

	runnerEntry struct {
		once   sync.Once
		runner *Runner
	}

	// Option configures Runners.
	Option func(*Runners)
)

// WithLogger sets the logger for runners and background work.
func WithLogger(l *log.Logger) Option {
	return func(rs *Runners) { rs.logger = l }
}

// WithCreateHook is called after each runner construction with the total
// number of runners, including the system runner.
func WithCreateHook(fn func(total int)) Option {
	return func(rs *Runners) { rs.onCreate = fn }
}

// NewRunners creates the domain map with the system runner pre-seeded.
func NewRunners(opts ...Option) *Runners {
	rs := &Runners{}
	for _, opt := range opts {
		opt(rs)
	}
	if rs.logger == nil {
		rs.logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "scripting"})
	}
	rs.pool = NewPool(rs.logger)
	rs.system = rs.build(console.SystemDomain)
	return rs
}

func (rs *Runners) build(domain console.Domain) *Runner {
	r := newRunner(domain, rs.pool, rs.logger)
	total := rs.created.Add(1)
	rs.logger.Debug("script runner created", "domain", domain.String(), "total", total)
	if rs.onCreate != nil {
		rs.onCreate(int(total))
	}
	return r
}

// System returns the pre-seeded system runner.
func (rs *Runners) System() *Runner { return rs.system }

// Get returns the runner for domain, creating it on first use. Concurrent
// first calls for the same domain all receive the same instance.
func (rs *Runners) Get(domain console.Domain) *Runner {
	if domain.IsSystem() {
		return rs.system
	}
	v, _ := rs.entries.LoadOrStore(domain, &runnerEntry{})
	e := v.(*runnerEntry)
	e.once.Do(func() { e.runner = rs.build(domain) })
	return e.runner
}

// Created returns how many runners were ever constructed.
func (rs *Runners) Created() int { return int(rs.created.Load()) }

// Domains lists every domain with a runner, system first.
func (rs *Runners) Domains() []console.Domain {
	domains := []console.Domain{console.SystemDomain}
	rs.entries.Range(func(k, _ any) bool {
		domains = append(domains, k.(console.Domain))
		return true
	})
	return domains
}

// Pool returns the background pool used by runLater.
func (rs *Runners) Pool() *Pool { return rs.pool }

// Close stops background work and closes every runner.
func (rs *Runners) Close() error {
	if !rs.closed.CompareAndSwap(false, true) {
		return nil
	}
	rs.pool.Close()
	rs.entries.Range(func(k, _ any) bool {
		// Get waits for an in-flight construction before returning.
		_ = rs.Get(k.(console.Domain)).Close()
		return true
	})
	return rs.system.Close()
}
