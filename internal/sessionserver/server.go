// SPDX-License-Identifier: MPL-2.0

package sessionserver

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"net"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/remcon/remcon/internal/console"
	"github.com/remcon/remcon/internal/core/clock"
	"github.com/remcon/remcon/internal/core/serverbase"
	"github.com/remcon/remcon/pkg/types"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

const (
	defaultStartupTimeout  = 5 * time.Second
	defaultShutdownTimeout = 5 * time.Second
)

type (
	// Config holds immutable configuration for the server.
	Config struct {
		// Host is the address to bind to (default: 127.0.0.1).
		Host string
		// Port is the port to listen on; 0 selects a free one.
		Port types.ListenPort
		// Listener, when set, is used instead of binding Host:Port. Rebinds
		// pass an already bound listener so the bind can fail before the
		// old server is touched.
		Listener net.Listener
		// StartupTimeout bounds Start (default: 5s).
		StartupTimeout time.Duration
		// ShutdownTimeout bounds how long Stop waits for sessions to end
		// after closing them (default: 5s).
		ShutdownTimeout time.Duration
		// Executor dispatches received lines. Required.
		Executor console.Executor
		// Values are exposed to commands as host-provided context.
		Values map[string]string
		// Observer is told about session start and end. Optional.
		Observer console.SessionObserver
		// Logger defaults to stderr with the "session-server" prefix.
		Logger *log.Logger
		// Clock defaults to the real clock.
		Clock clock.Clock
	}

	// Server accepts console sessions over TCP.
	// A Server instance is single-use: once stopped or failed, create a new instance.
	Server struct {
		*serverbase.Base

		cfg    Config
		logger *log.Logger
		clock  clock.Clock

		mu       sync.Mutex
		listener net.Listener
		addr     string
		sessions map[string]*Session
	}
)

// ErrNoExecutor is returned by New when Config.Executor is nil.
var ErrNoExecutor = errors.New("session server: no executor configured")

// New creates a server. It does not bind until Start.
func New(cfg Config) (*Server, error) {
	if cfg.Executor == nil {
		return nil, ErrNoExecutor
	}
	if cfg.Listener == nil {
		if err := cfg.Port.Validate(); err != nil {
			return nil, err
		}
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.StartupTimeout <= 0 {
		cfg.StartupTimeout = defaultStartupTimeout
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "session-server"})
	}

	return &Server{
		Base:     serverbase.NewBase(serverbase.WithName("session server")),
		cfg:      cfg,
		logger:   logger,
		clock:    clock.OrReal(cfg.Clock),
		sessions: make(map[string]*Session),
	}, nil
}

// Start binds the listener and blocks until the server accepts connections,
// startup fails, or the startup timeout expires.
func (s *Server) Start(ctx context.Context) error {
	if err := s.TransitionToStarting(ctx); err != nil {
		return err
	}

	startupCtx, startupCancel := context.WithTimeout(ctx, s.cfg.StartupTimeout)
	defer startupCancel()

	listener := s.cfg.Listener
	if listener == nil {
		addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(int(s.cfg.Port)))
		var lc net.ListenConfig
		var err error
		listener, err = lc.Listen(startupCtx, "tcp", addr)
		if err != nil {
			s.TransitionToFailed(fmt.Errorf("failed to listen on %s: %w", addr, err))
			return s.LastError()
		}
	}

	s.mu.Lock()
	s.listener = listener
	s.addr = listener.Addr().String()
	s.mu.Unlock()

	s.AddGoroutine()
	go s.serve(listener)

	select {
	case <-s.StartedChannel():
		s.logger.Info("session server started", "address", s.Address())
		return nil

	case err := <-s.Err():
		_ = listener.Close()
		s.TransitionToFailed(err)
		return err

	case <-startupCtx.Done():
		_ = listener.Close()
		s.TransitionToFailed(fmt.Errorf("startup timeout: %w", startupCtx.Err()))
		return s.LastError()
	}
}

// Stop closes the listener and every live session, then waits for their
// goroutines up to the shutdown timeout. Safe to call multiple times.
func (s *Server) Stop() error {
	done := make(chan error, 1)
	go func() { done <- s.Shutdown(s.release) }()

	select {
	case err := <-done:
		return err
	case <-s.clock.After(s.cfg.ShutdownTimeout):
		s.logger.Warn("sessions still running after shutdown timeout", "timeout", s.cfg.ShutdownTimeout)
		return fmt.Errorf("session server shutdown timeout after %s", s.cfg.ShutdownTimeout)
	}
}

func (s *Server) release() error {
	s.mu.Lock()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	live := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		live = append(live, sess)
	}
	s.mu.Unlock()

	for _, sess := range live {
		sess.close()
	}
	return nil
}

// Drain stops accepting connections. Live sessions keep running until they
// end or Stop is called.
func (s *Server) Drain() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		_ = s.listener.Close()
	}
}

// Address returns the bound host:port, or "" before Start.
func (s *Server) Address() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Port returns the bound port, or 0 before Start.
func (s *Server) Port() types.ListenPort {
	_, portStr, err := net.SplitHostPort(s.Address())
	if err != nil {
		return 0
	}
	port, err := types.ParseListenPort(portStr)
	if err != nil {
		return 0
	}
	return port
}

// Sessions lists live sessions, oldest first.
func (s *Server) Sessions() []SessionInfo {
	s.mu.Lock()
	infos := make([]SessionInfo, 0, len(s.sessions))
	for _, sess := range s.sessions {
		infos = append(infos, sess.Info())
	}
	s.mu.Unlock()

	sort.Slice(infos, func(i, j int) bool { return infos[i].Started.Before(infos[j].Started) })
	return infos
}

// ActiveSessions returns the number of live sessions.
func (s *Server) ActiveSessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Server) serve(listener net.Listener) {
	defer s.DoneGoroutine()

	s.TransitionToRunning()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if s.Context().Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			s.logger.Error("accept failed", "err", err)
			s.SendError(fmt.Errorf("accept: %w", err))
			return
		}

		sess := newSession(s.Context(), uuid.NewString(), conn, s.clock.Now())
		if !s.track(sess) {
			_ = conn.Close()
			return
		}

		s.AddGoroutine()
		go s.handle(sess)
	}
}

// track registers sess unless the server is shutting down.
func (s *Server) track(sess *Session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Context().Err() != nil {
		return false
	}
	s.sessions[sess.id] = sess
	return true
}

func (s *Server) untrack(sess *Session) {
	s.mu.Lock()
	delete(s.sessions, sess.id)
	s.mu.Unlock()
}

func (s *Server) handle(sess *Session) {
	defer s.DoneGoroutine()
	defer func() {
		sess.close()
		sess.setState(SessionClosed)
		s.untrack(sess)
		if s.cfg.Observer != nil {
			s.cfg.Observer.SessionEnded(console.TransportSocket)
		}
		s.logger.Debug("session closed", "session", sess.id, "commands", sess.commands.Load())
	}()

	if s.cfg.Observer != nil {
		s.cfg.Observer.SessionStarted(console.TransportSocket)
	}
	s.logger.Debug("session opened", "session", sess.id, "remote", sess.conn.RemoteAddr().String())

	s.AddGoroutine()
	go func() {
		defer s.DoneGoroutine()
		sess.readLoop()
	}()

	for {
		line, ok := sess.next(sess.ctx)
		if !ok {
			return
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		if err := s.run(sess, line); err != nil {
			s.logger.Debug("session write failed", "session", sess.id, "err", err)
			return
		}
	}
}

// run executes one line and terminates its output with an END control line.
func (s *Server) run(sess *Session, line string) error {
	sess.commands.Add(1)

	values := map[string]string{"session": sess.id}
	maps.Copy(values, s.cfg.Values)

	if s.interactive(line) {
		sess.interactive.Store(true)
		sess.setState(SessionAwaitingInput)
	}
	out := s.cfg.Executor.Execute(sess.ctx, line, console.ExecOptions{
		Sink:      console.NewWriterSink(sess.ctx, sess.out),
		Input:     sessionInput{s: sess},
		Transport: console.TransportSocket,
		Values:    values,
	})
	if sess.interactive.Swap(false) && sess.State() == SessionAwaitingInput {
		sess.setState(SessionOpen)
	}

	if text := out.Text(); text != "" {
		if !strings.HasSuffix(text, "\n") {
			text += "\n"
		}
		if _, err := sess.out.Write([]byte(text)); err != nil {
			return err
		}
	}

	status := EndOK
	if !out.OK() {
		status = EndError
	}
	return sess.writeControl(VerbEnd, status)
}

// commandLookup is implemented by executors that resolve command names,
// such as *console.Registry.
type commandLookup interface {
	Lookup(name string) (console.Command, bool)
}

// interactive reports whether line invokes an interactive command.
func (s *Server) interactive(line string) bool {
	lookup, ok := s.cfg.Executor.(commandLookup)
	if !ok {
		return false
	}
	inv, err := console.ParseLine(line)
	if err != nil {
		return false
	}
	cmd, ok := lookup.Lookup(inv.Name)
	return ok && console.IsInteractive(cmd, inv.Args)
}
