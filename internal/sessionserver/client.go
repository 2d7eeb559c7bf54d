// SPDX-License-Identifier: MPL-2.0

package sessionserver

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
)

type (
	// Prompter answers INPUT and SECRET requests on the client side.
	Prompter interface {
		Prompt(prompt string, secret bool) (string, error)
	}

	// Conn is a client connection to a session server.
	Conn struct {
		conn net.Conn
		r    *bufio.Reader
	}
)

// ErrNoPrompter is returned when the server asks for input and the client
// has no way to answer.
var ErrNoPrompter = errors.New("server requested input but no prompter is available")

// Dial connects to addr.
func Dial(ctx context.Context, addr string) (*Conn, error) {
	var d net.Dialer
	c, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Conn{conn: c, r: bufio.NewReaderSize(c, 64*1024)}, nil
}

// Close closes the connection, which cancels a running command.
func (c *Conn) Close() error { return c.conn.Close() }

// Execute sends line and copies the command's output to out until the END
// control line. Input requests are answered through p. ok is the END status.
// Cancelling ctx closes the connection.
func (c *Conn) Execute(ctx context.Context, line string, out io.Writer, p Prompter) (ok bool, err error) {
	stop := context.AfterFunc(ctx, func() { _ = c.conn.Close() })
	defer stop()

	if _, err := io.WriteString(c.conn, line+"\n"); err != nil {
		return false, c.ctxErr(ctx, fmt.Errorf("send command: %w", err))
	}

	for {
		text, err := c.r.ReadString('\n')
		if err != nil {
			if text != "" {
				_, _ = io.WriteString(out, text)
			}
			return false, c.ctxErr(ctx, fmt.Errorf("connection closed before the command finished: %w", err))
		}

		ctl, isControl := ParseControl(strings.TrimSuffix(text, "\n"))
		if !isControl {
			if _, err := io.WriteString(out, text); err != nil {
				return false, err
			}
			continue
		}

		switch ctl.Verb {
		case VerbEnd:
			return ctl.Arg == EndOK, nil
		case VerbInput, VerbSecret:
			if p == nil {
				return false, ErrNoPrompter
			}
			answer, err := p.Prompt(ctl.Arg, ctl.Verb == VerbSecret)
			if err != nil {
				return false, err
			}
			if _, err := io.WriteString(c.conn, answer+"\n"); err != nil {
				return false, c.ctxErr(ctx, fmt.Errorf("send input: %w", err))
			}
		}
	}
}

func (c *Conn) ctxErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}
