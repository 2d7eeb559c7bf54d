// SPDX-License-Identifier: MPL-2.0

package filechannel

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/remcon/remcon/internal/console"
	"github.com/remcon/remcon/internal/core/clock"
	"github.com/remcon/remcon/internal/core/serverbase"
	"github.com/remcon/remcon/internal/watch"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
)

const (
	defaultPollInterval  = 200 * time.Millisecond
	defaultWorkers       = 4
	defaultOrphanTimeout = 30 * time.Second
	defaultRetention     = 5 * time.Minute
)

type (
	// BrokerConfig holds immutable configuration for a Broker.
	BrokerConfig struct {
		// BaseDir is the selected transport base directory. Required.
		BaseDir string
		// PollInterval is the scan period (default: 200ms).
		PollInterval time.Duration
		// Workers bounds concurrently running sessions (default: 4).
		Workers int
		// OrphanTimeout is how long a session directory may exist without an
		// input file before it is removed (default: 30s).
		OrphanTimeout time.Duration
		// Retention is how long a completed session is kept for a client
		// that never collected it (default: 5m).
		Retention time.Duration
		// Watch enables fsnotify wake-ups between polls.
		Watch bool
		// Executor dispatches session input. Required.
		Executor console.Executor
		// Values are exposed to commands as host-provided context.
		Values map[string]string
		// Observer is told about session start and end. Optional.
		Observer console.SessionObserver
		// OnResult is called with the status of every completed session.
		OnResult func(status console.Status)
		// Logger defaults to stderr with the "file-broker" prefix.
		Logger *log.Logger
		// Clock defaults to the real clock.
		Clock clock.Clock
	}

	// Broker serves file sessions.
	// A Broker instance is single-use: once stopped or failed, create a new instance.
	Broker struct {
		*serverbase.Base

		cfg    BrokerConfig
		layout Layout
		logger *log.Logger
		clock  clock.Clock

		group *errgroup.Group
		wake  chan struct{}

		mu      sync.Mutex
		claimed map[string]struct{}
		served  int64
	}
)

var (
	// ErrNoBaseDir is returned by NewBroker without a base directory.
	ErrNoBaseDir = errors.New("file broker: no base directory configured")
	// ErrNoExecutor is returned by NewBroker without an executor.
	ErrNoExecutor = errors.New("file broker: no executor configured")
)

// NewBroker creates a broker. It does not touch the filesystem until Start.
func NewBroker(cfg BrokerConfig) (*Broker, error) {
	if cfg.BaseDir == "" {
		return nil, ErrNoBaseDir
	}
	if cfg.Executor == nil {
		return nil, ErrNoExecutor
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if cfg.OrphanTimeout <= 0 {
		cfg.OrphanTimeout = defaultOrphanTimeout
	}
	if cfg.Retention <= 0 {
		cfg.Retention = defaultRetention
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "file-broker"})
	}

	group := &errgroup.Group{}
	group.SetLimit(cfg.Workers)

	return &Broker{
		Base:    serverbase.NewBase(serverbase.WithName("file broker")),
		cfg:     cfg,
		layout:  Layout{Base: cfg.BaseDir},
		logger:  logger,
		clock:   clock.OrReal(cfg.Clock),
		group:   group,
		wake:    make(chan struct{}, 1),
		claimed: make(map[string]struct{}),
	}, nil
}

// Layout returns the broker's directory layout.
func (b *Broker) Layout() Layout { return b.layout }

// Served returns how many sessions have completed.
func (b *Broker) Served() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.served
}

// Start creates the sessions directory and starts polling.
func (b *Broker) Start(ctx context.Context) error {
	if err := b.TransitionToStarting(ctx); err != nil {
		return err
	}

	dir := b.layout.SessionsDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		b.TransitionToFailed(fmt.Errorf("create %s: %w", dir, err))
		return b.LastError()
	}

	if b.cfg.Watch {
		b.startWatcher(dir)
	}

	b.Go(b.pollLoop)
	b.TransitionToRunning()
	b.logger.Info("file broker started", "dir", dir, "poll", b.cfg.PollInterval)
	return nil
}

// Stop stops polling and waits for running sessions. Safe to call multiple times.
func (b *Broker) Stop() error {
	return b.Shutdown(nil)
}

// Wake requests an immediate scan.
func (b *Broker) Wake() {
	select {
	case b.wake <- struct{}{}:
	default:
	}
}

func (b *Broker) startWatcher(dir string) {
	w, err := watch.New(watch.Config{
		Dir:      dir,
		Patterns: []string{SessionPrefix + "*/" + InputFile},
		OnChange: func(context.Context, []string) { b.Wake() },
		Logger:   b.logger,
	})
	if err != nil {
		b.logger.Warn("file watching unavailable, polling only", "err", err)
		return
	}
	b.Go(func(ctx context.Context) {
		if err := w.Run(ctx); err != nil {
			b.logger.Warn("file watcher stopped, polling only", "err", err)
		}
	})
}

func (b *Broker) pollLoop(ctx context.Context) {
	// Running sessions finish before the loop returns.
	defer func() { _ = b.group.Wait() }()

	for {
		b.scan(ctx)
		select {
		case <-ctx.Done():
			return
		case <-b.wake:
		case <-b.clock.After(b.cfg.PollInterval):
		}
	}
}

// scan claims ready sessions and removes stale ones. A ready session that
// finds every worker busy stays unclaimed until a later scan.
func (b *Broker) scan(ctx context.Context) {
	entries, err := os.ReadDir(b.layout.SessionsDir())
	if err != nil {
		b.logger.Warn("scan failed", "err", err)
		return
	}

	now := b.clock.Now()
	for _, e := range entries {
		if ctx.Err() != nil {
			return
		}
		if !e.IsDir() {
			continue
		}
		if _, ok := ParseSessionName(e.Name()); !ok {
			continue
		}
		dir := filepath.Join(b.layout.SessionsDir(), e.Name())

		switch {
		case exists(filepath.Join(dir, ResultFile)):
			b.expire(dir, ResultFile, b.cfg.Retention, now)
		case exists(filepath.Join(dir, InputFile)):
			b.dispatch(ctx, dir)
		default:
			b.expire(dir, "", b.cfg.OrphanTimeout, now)
		}
	}
}

func (b *Broker) dispatch(ctx context.Context, dir string) {
	name := filepath.Base(dir)

	b.mu.Lock()
	if _, busy := b.claimed[name]; busy {
		b.mu.Unlock()
		return
	}
	b.claimed[name] = struct{}{}
	b.mu.Unlock()

	// A worker may have finished this session and dropped its claim after
	// scan looked for the result.
	if exists(filepath.Join(dir, ResultFile)) {
		b.release(name)
		return
	}

	started := b.group.TryGo(func() error {
		defer b.release(name)
		b.process(ctx, dir)
		return nil
	})
	if !started {
		b.release(name)
	}
}

func (b *Broker) release(name string) {
	b.mu.Lock()
	delete(b.claimed, name)
	b.mu.Unlock()
}

// expire removes dir when the file named by ref (or the directory itself
// when ref is empty) is older than ttl.
func (b *Broker) expire(dir, ref string, ttl time.Duration, now time.Time) {
	info, err := os.Stat(filepath.Join(dir, ref))
	if err != nil {
		return
	}
	if now.Sub(info.ModTime()) < ttl {
		return
	}
	if err := os.RemoveAll(dir); err != nil {
		b.logger.Warn("remove stale session", "session", filepath.Base(dir), "err", err)
		return
	}
	b.logger.Debug("removed stale session", "session", filepath.Base(dir), "age", now.Sub(info.ModTime()))
}

// process runs one session. output.txt and result.txt are only created
// here, after input.txt was observed complete.
func (b *Broker) process(ctx context.Context, dir string) {
	session := filepath.Base(dir)
	if b.cfg.Observer != nil {
		b.cfg.Observer.SessionStarted(console.TransportFile)
		defer b.cfg.Observer.SessionEnded(console.TransportFile)
	}

	data, err := os.ReadFile(filepath.Join(dir, InputFile))
	if err != nil {
		b.logger.Warn("read input", "session", session, "err", err)
		return
	}
	line, _, _ := strings.Cut(string(data), "\n")
	line = strings.TrimSuffix(line, "\r")

	out, err := os.OpenFile(filepath.Join(dir, OutputFile), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			b.logger.Warn("open output", "session", session, "err", err)
		}
		return
	}

	values := map[string]string{"session": session}
	maps.Copy(values, b.cfg.Values)

	var outcome console.Outcome
	if strings.TrimSpace(line) == "" {
		outcome = console.Outcome{Status: console.StatusError, Err: console.ErrEmptyLine}
	} else {
		outcome = b.cfg.Executor.Execute(ctx, line, console.ExecOptions{
			Sink:      console.NewWriterSink(ctx, out),
			Input:     console.NoInput,
			Transport: console.TransportFile,
			Values:    values,
		})
	}
	if err := out.Close(); err != nil {
		b.logger.Warn("close output", "session", session, "err", err)
	}

	if err := writeFileAtomic(filepath.Join(dir, ResultFile), encodeResult(outcome)); err != nil {
		// The client removed the directory (cancelled) or the disk is gone.
		b.logger.Debug("write result", "session", session, "err", err)
		return
	}

	b.mu.Lock()
	b.served++
	b.mu.Unlock()
	if b.cfg.OnResult != nil {
		b.cfg.OnResult(outcome.Status)
	}
	b.logger.Debug("file session done", "session", session, "command", outcome.Command, "status", outcome.Status)
}
