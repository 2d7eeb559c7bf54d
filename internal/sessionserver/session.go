// SPDX-License-Identifier: MPL-2.0

package sessionserver

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/remcon/remcon/internal/console"
)

// maxLineSize bounds one received line.
const maxLineSize = 1 << 20

// SessionState is the lifecycle state of a connection.
type SessionState int32

const (
	// SessionOpen means the session is idle or running a command.
	SessionOpen SessionState = iota
	// SessionAwaitingInput means a command is blocked reading a line, or an
	// interactive command owns the session's input.
	SessionAwaitingInput
	// SessionClosing means the connection is being torn down.
	SessionClosing
	// SessionClosed is terminal.
	SessionClosed
)

func (s SessionState) String() string {
	switch s {
	case SessionOpen:
		return "open"
	case SessionAwaitingInput:
		return "awaiting-input"
	case SessionClosing:
		return "closing"
	case SessionClosed:
		return "closed"
	default:
		return fmt.Sprintf("unknown(%d)", int32(s))
	}
}

type (
	// Session is one client connection.
	Session struct {
		id      string
		conn    net.Conn
		started time.Time

		state  atomic.Int32
		ctx    context.Context
		cancel context.CancelFunc

		lines chan string
		out   *lineWriter

		commands atomic.Int64
		// interactive is set while an interactive command owns the
		// session's input.
		interactive atomic.Bool
	}

	// SessionInfo is a snapshot of a session for listings.
	SessionInfo struct {
		ID       string
		Remote   string
		State    SessionState
		Started  time.Time
		Commands int64
	}

	// lineWriter serializes writes to the connection and tracks whether the
	// cursor is at the start of a line, so control lines never share a line
	// with command output.
	lineWriter struct {
		mu          sync.Mutex
		w           io.Writer
		atLineStart bool
		onError     func()
	}

	// sessionInput implements console.LineReader over the session.
	sessionInput struct {
		s *Session
	}
)

func newSession(parent context.Context, id string, conn net.Conn, now time.Time) *Session {
	ctx, cancel := context.WithCancel(parent)
	s := &Session{
		id:      id,
		conn:    conn,
		started: now,
		ctx:     ctx,
		cancel:  cancel,
		lines:   make(chan string),
	}
	s.out = &lineWriter{w: conn, atLineStart: true, onError: cancel}
	return s
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// State returns the current state.
func (s *Session) State() SessionState { return SessionState(s.state.Load()) }

func (s *Session) setState(st SessionState) { s.state.Store(int32(st)) }

// Info returns a snapshot.
func (s *Session) Info() SessionInfo {
	return SessionInfo{
		ID:       s.id,
		Remote:   s.conn.RemoteAddr().String(),
		State:    s.State(),
		Started:  s.started,
		Commands: s.commands.Load(),
	}
}

// close cancels the session context and closes the connection. Safe to call
// more than once.
func (s *Session) close() {
	if st := s.State(); st == SessionClosing || st == SessionClosed {
		return
	}
	s.setState(SessionClosing)
	s.cancel()
	_ = s.conn.Close()
}

// readLoop feeds received lines to the session. A clean EOF only means the
// client sent its last line: lines is closed so pending reads see io.EOF and
// the running command still gets to deliver its result. A read error means
// the connection is broken and cancels the session.
func (s *Session) readLoop() {
	defer close(s.lines)

	scanner := bufio.NewScanner(s.conn)
	scanner.Buffer(make([]byte, 0, 4096), maxLineSize)
	for scanner.Scan() {
		line := strings.TrimSuffix(scanner.Text(), "\r")
		select {
		case s.lines <- line:
		case <-s.ctx.Done():
			return
		}
	}
	if err := scanner.Err(); err != nil {
		s.cancel()
	}
}

// next returns the next line, or false when the client is gone.
func (s *Session) next(ctx context.Context) (string, bool) {
	select {
	case line, ok := <-s.lines:
		return line, ok
	case <-ctx.Done():
		return "", false
	}
}

func (s *Session) writeControl(verb, arg string) error {
	return s.out.control(FormatControl(verb, arg))
}

func (in sessionInput) ReadLine(ctx context.Context, prompt string) (string, error) {
	return in.read(ctx, VerbInput, prompt)
}

func (in sessionInput) ReadPassword(ctx context.Context, prompt string) (string, error) {
	return in.read(ctx, VerbSecret, prompt)
}

func (in sessionInput) read(ctx context.Context, verb, prompt string) (string, error) {
	s := in.s
	if err := s.writeControl(verb, prompt); err != nil {
		return "", console.ErrInterrupted
	}

	s.setState(SessionAwaitingInput)
	defer func() {
		if !s.interactive.Load() && s.State() == SessionAwaitingInput {
			s.setState(SessionOpen)
		}
	}()

	select {
	case line, ok := <-s.lines:
		if !ok {
			return "", io.EOF
		}
		return line, nil
	case <-ctx.Done():
		return "", console.ErrInterrupted
	}
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.write(p)
}

func (w *lineWriter) write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	n, err := w.w.Write(p)
	if err != nil {
		if w.onError != nil {
			w.onError()
		}
		return n, err
	}
	w.atLineStart = p[len(p)-1] == '\n'
	return n, nil
}

// control writes line on a line of its own.
func (w *lineWriter) control(line string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.atLineStart {
		if _, err := w.write([]byte("\n")); err != nil {
			return err
		}
	}
	_, err := w.write([]byte(line))
	return err
}
