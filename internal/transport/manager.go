// SPDX-License-Identifier: MPL-2.0

package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/remcon/remcon/internal/config"
	"github.com/remcon/remcon/internal/console"
	"github.com/remcon/remcon/internal/core/clock"
	"github.com/remcon/remcon/internal/filechannel"
	"github.com/remcon/remcon/internal/issue"
	"github.com/remcon/remcon/internal/sessionserver"
	"github.com/remcon/remcon/pkg/types"

	"github.com/charmbracelet/log"
)

const (
	// ModeNone means the manager is not serving.
	ModeNone Mode = iota
	// ModeSocket serves over the TCP session server.
	ModeSocket
	// ModeFile serves over the file channel broker.
	ModeFile
)

var (
	// ErrNotSocketMode is returned by Rebind while the file channel is active.
	ErrNotSocketMode = errors.New("rebind requires the socket transport")
	// ErrAlreadyStarted is returned by a second Start.
	ErrAlreadyStarted = errors.New("transport manager already started")
)

type (
	// Mode is the active transport.
	Mode int

	// ManagerConfig holds immutable configuration for a Manager.
	ManagerConfig struct {
		Host string
		Port types.ListenPort
		// BaseDirs are the base directory candidates in preference order.
		BaseDirs []string
		// MarkerPath remembers the chosen base directory; empty disables it.
		MarkerPath string

		StartupTimeout  time.Duration
		ShutdownTimeout time.Duration

		PollInterval  time.Duration
		Workers       int
		OrphanTimeout time.Duration
		Retention     time.Duration
		Watch         bool

		// Executor dispatches lines from either transport. Required.
		Executor console.Executor
		Values   map[string]string
		Observer console.SessionObserver
		// OnFileResult sees the status of every completed file session.
		OnFileResult func(console.Status)

		Logger *log.Logger
		Clock  clock.Clock
	}

	// Manager owns the active transport and the port record.
	Manager struct {
		cfg    ManagerConfig
		logger *log.Logger
		clock  clock.Clock

		mu      sync.Mutex
		mode    Mode
		baseDir string
		server  *sessionserver.Server
		// drained servers stopped listening after a rebind but may still
		// carry the session that asked for it.
		drained []*sessionserver.Server
		broker  *filechannel.Broker
	}
)

// ErrNoExecutor is returned by NewManager without an executor.
var ErrNoExecutor = errors.New("transport manager: no executor configured")

func (m Mode) String() string {
	switch m {
	case ModeSocket:
		return "socket"
	case ModeFile:
		return "file"
	default:
		return "none"
	}
}

// ManagerConfigFrom copies the transport settings out of cfg.
func ManagerConfigFrom(cfg *config.Config) ManagerConfig {
	return ManagerConfig{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		BaseDirs:        cfg.FileChannel.BaseDirs,
		StartupTimeout:  cfg.Server.StartupTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		PollInterval:    cfg.FileChannel.PollInterval,
		Workers:         cfg.FileChannel.Workers,
		OrphanTimeout:   cfg.FileChannel.OrphanTimeout,
		Retention:       cfg.FileChannel.Retention,
		Watch:           cfg.FileChannel.Watch,
	}
}

// NewManager creates a manager. Nothing is bound until Start.
func NewManager(cfg ManagerConfig) (*Manager, error) {
	if cfg.Executor == nil {
		return nil, ErrNoExecutor
	}
	if err := cfg.Port.Validate(); err != nil {
		return nil, err
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "transport"})
	}
	return &Manager{cfg: cfg, logger: logger, clock: clock.OrReal(cfg.Clock)}, nil
}

// Start selects the base directory and brings up a transport: the session
// server when its port binds, the file channel broker otherwise. It fails
// only when the base directory is unusable or both transports fail.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.mode != ModeNone {
		return ErrAlreadyStarted
	}

	base, err := Probe(m.cfg.BaseDirs, m.cfg.MarkerPath)
	if err != nil {
		return err
	}
	m.baseDir = base

	srv, sockErr := m.startServer(ctx, nil, m.cfg.Port)
	if sockErr == nil {
		if err := m.writeRecord(srv.Port()); err != nil {
			m.logger.Warn("failed to write port record", "base", base, "error", err)
		}
		m.server = srv
		m.mode = ModeSocket
		m.logger.Info("console transport ready", "mode", m.mode, "address", srv.Address(), "base", base)
		return nil
	}

	m.logger.Warn("socket transport unavailable, falling back to file channel", "port", m.cfg.Port, "error", sockErr)
	// A leftover record would point clients at whoever owns the port now.
	if err := RemovePortRecord(base); err != nil {
		m.logger.Warn("failed to remove stale port record", "error", err)
	}

	broker, fileErr := m.startBroker(ctx, base)
	if fileErr != nil {
		return issue.NewErrorContext().
			WithOperation("start console transport").
			WithResource(fmt.Sprintf("%s:%d, %s", m.cfg.Host, m.cfg.Port, base)).
			WithSuggestion("Free the port or choose another with server.port").
			WithSuggestion("Check that the base directory is writable").
			WithIssue(issue.PortUnavailableId).
			Wrap(errors.Join(sockErr, fileErr)).
			BuildError()
	}
	m.broker = broker
	m.mode = ModeFile
	m.logger.Info("console transport ready", "mode", m.mode, "base", base)
	return nil
}

// Rebind moves the socket transport to newPort. The new port is bound before
// anything else changes, so a failed bind leaves the old server serving. A
// pending update artifact announces the new port until the record is
// replaced. The old server stops accepting but keeps its live sessions.
func (m *Manager) Rebind(ctx context.Context, newPort types.ListenPort) error {
	if err := newPort.ValidateRebind(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.mode != ModeSocket || m.server == nil {
		return ErrNotSocketMode
	}
	old := m.server
	if old.Port() == newPort {
		return nil
	}

	addr := net.JoinHostPort(m.cfg.Host, newPort.String())
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return issue.NewErrorContext().
			WithOperation("rebind console socket").
			WithResource(addr).
			WithSuggestionf("The console keeps listening on port %d", old.Port()).
			WithIssue(issue.PortUnavailableId).
			Wrap(err).
			BuildError()
	}

	pending, err := writePendingUpdate(m.baseDir, newPort, m.clock.Now())
	if err != nil {
		_ = ln.Close()
		return fmt.Errorf("announce port %d: %w", newPort, err)
	}

	srv, err := m.startServer(ctx, ln, newPort)
	if err != nil {
		_ = ln.Close()
		_ = os.Remove(pending)
		return fmt.Errorf("start server on port %d: %w", newPort, err)
	}

	if err := m.writeRecord(srv.Port()); err != nil {
		_ = srv.Stop()
		_ = os.Remove(pending)
		return fmt.Errorf("write port record: %w", err)
	}

	m.pruneDrained()
	old.Drain()
	m.drained = append(m.drained, old)
	m.server = srv

	if err := os.Remove(pending); err != nil {
		m.logger.Warn("failed to remove pending port update", "path", pending, "error", err)
	}
	m.logger.Info("console socket rebound", "from", old.Port(), "to", srv.Port())
	return nil
}

// Stop shuts down every transport. The port record is removed so clients
// stop dialing a dead socket.
func (m *Manager) Stop() error {
	m.mu.Lock()
	server, drained, broker, base := m.server, m.drained, m.broker, m.baseDir
	m.server, m.drained, m.broker = nil, nil, nil
	m.mode = ModeNone
	m.mu.Unlock()

	// Sessions being closed may still query the manager, so stop outside mu.
	var errs []error
	if server != nil {
		errs = append(errs, server.Stop())
		if err := RemovePortRecord(base); err != nil {
			errs = append(errs, err)
		}
	}
	for _, srv := range drained {
		errs = append(errs, srv.Stop())
	}
	if broker != nil {
		errs = append(errs, broker.Stop())
	}
	return errors.Join(errs...)
}

// Mode returns the active transport.
func (m *Manager) Mode() Mode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mode
}

// Port returns the socket port, or 0 outside socket mode.
func (m *Manager) Port() types.ListenPort {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.server == nil {
		return 0
	}
	return m.server.Port()
}

// Address returns the socket address, or "" outside socket mode.
func (m *Manager) Address() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.server == nil {
		return ""
	}
	return m.server.Address()
}

// BaseDir returns the selected base directory.
func (m *Manager) BaseDir() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.baseDir
}

// Sessions lists live socket sessions, including those on drained servers.
func (m *Manager) Sessions() []sessionserver.SessionInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []sessionserver.SessionInfo
	if m.server != nil {
		out = append(out, m.server.Sessions()...)
	}
	for _, srv := range m.drained {
		out = append(out, srv.Sessions()...)
	}
	return out
}

func (m *Manager) startServer(ctx context.Context, ln net.Listener, port types.ListenPort) (*sessionserver.Server, error) {
	srv, err := sessionserver.New(sessionserver.Config{
		Host:            m.cfg.Host,
		Port:            port,
		Listener:        ln,
		StartupTimeout:  m.cfg.StartupTimeout,
		ShutdownTimeout: m.cfg.ShutdownTimeout,
		Executor:        m.cfg.Executor,
		Values:          m.cfg.Values,
		Observer:        m.cfg.Observer,
		Logger:          m.logger.WithPrefix("session-server"),
		Clock:           m.clock,
	})
	if err != nil {
		return nil, err
	}
	if err := srv.Start(ctx); err != nil {
		return nil, err
	}
	return srv, nil
}

func (m *Manager) startBroker(ctx context.Context, base string) (*filechannel.Broker, error) {
	broker, err := filechannel.NewBroker(filechannel.BrokerConfig{
		BaseDir:       base,
		PollInterval:  m.cfg.PollInterval,
		Workers:       m.cfg.Workers,
		OrphanTimeout: m.cfg.OrphanTimeout,
		Retention:     m.cfg.Retention,
		Watch:         m.cfg.Watch,
		Executor:      m.cfg.Executor,
		Values:        m.cfg.Values,
		Observer:      m.cfg.Observer,
		OnResult:      m.cfg.OnFileResult,
		Logger:        m.logger.WithPrefix("file-broker"),
		Clock:         m.clock,
	})
	if err != nil {
		return nil, err
	}
	if err := broker.Start(ctx); err != nil {
		return nil, err
	}
	return broker, nil
}

func (m *Manager) writeRecord(port types.ListenPort) error {
	return WritePortRecord(m.baseDir, PortRecord{
		Port:    port,
		PID:     os.Getpid(),
		Written: m.clock.Now(),
	})
}

// pruneDrained stops drained servers whose sessions have all ended.
func (m *Manager) pruneDrained() {
	kept := m.drained[:0]
	for _, srv := range m.drained {
		if srv.ActiveSessions() > 0 {
			kept = append(kept, srv)
			continue
		}
		if err := srv.Stop(); err != nil {
			m.logger.Warn("failed to stop drained server", "error", err)
		}
	}
	m.drained = kept
}
