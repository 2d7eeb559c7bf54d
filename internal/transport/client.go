// SPDX-License-Identifier: MPL-2.0

package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/remcon/remcon/internal/console"
	"github.com/remcon/remcon/internal/filechannel"
	"github.com/remcon/remcon/internal/issue"
	"github.com/remcon/remcon/internal/sessionserver"
)

const defaultDialTimeout = 2 * time.Second

// Client runs command lines against a console host, over the socket named
// by the port record when it answers and over the file channel otherwise.
type Client struct {
	// BaseDir is the host's transport base directory. Required.
	BaseDir string
	// Host is dialed with the recorded port (default: 127.0.0.1).
	Host string
	// DialTimeout bounds the socket attempt (default: 2s).
	DialTimeout time.Duration
	// FilePoll is the file channel poll interval.
	FilePoll time.Duration
	// FileTimeout bounds a file channel round trip; zero waits for ctx.
	FileTimeout time.Duration
	// Prompter answers input requests on the socket.
	Prompter sessionserver.Prompter
}

// ClientResult describes a finished remote command.
type ClientResult struct {
	Mode   Mode
	Status console.Status
}

// OK reports whether the command succeeded.
func (r ClientResult) OK() bool { return r.Status == console.StatusOK }

// Dial connects to the socket the port record currently names.
func (c *Client) Dial(ctx context.Context) (*sessionserver.Conn, error) {
	rec, err := ReadPortRecord(c.BaseDir)
	if err != nil {
		return nil, err
	}
	host := c.Host
	if host == "" {
		host = "127.0.0.1"
	}
	timeout := c.DialTimeout
	if timeout <= 0 {
		timeout = defaultDialTimeout
	}
	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	addr := net.JoinHostPort(host, rec.Port.String())
	conn, err := sessionserver.Dial(dialCtx, addr)
	if err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("connect to console").
			WithResource(addr).
			WithSuggestion("Check that the host process is running").
			WithIssue(issue.ServerUnreachableId).
			Wrap(err).
			BuildError()
	}
	return conn, nil
}

// Execute runs line and writes its output to out. The port record is read
// again on every call so rebinds are followed.
func (c *Client) Execute(ctx context.Context, line string, out io.Writer) (ClientResult, error) {
	conn, dialErr := c.Dial(ctx)
	if dialErr == nil {
		defer conn.Close()
		ok, err := conn.Execute(ctx, line, out, c.Prompter)
		if err != nil {
			return ClientResult{Mode: ModeSocket, Status: console.StatusUnknown}, err
		}
		status := console.StatusError
		if ok {
			status = console.StatusOK
		}
		return ClientResult{Mode: ModeSocket, Status: status}, nil
	}
	if ctx.Err() != nil {
		return ClientResult{}, ctx.Err()
	}

	fc := filechannel.NewClient(c.BaseDir, c.FilePoll)
	fc.Timeout = c.FileTimeout
	res, err := fc.Execute(ctx, line, out)
	if err != nil {
		if errors.Is(err, filechannel.ErrTimeout) {
			return ClientResult{Mode: ModeFile, Status: console.StatusUnknown}, issue.NewErrorContext().
				WithOperation("run command over the file channel").
				WithResource(c.BaseDir).
				WithSuggestion("Check that the host process is running and uses the same base directory").
				WithIssue(issue.FileChannelTimeoutId).
				Wrap(errors.Join(err, fmt.Errorf("socket: %w", dialErr))).
				BuildError()
		}
		return ClientResult{Mode: ModeFile, Status: console.StatusUnknown}, err
	}
	if res.Text != "" {
		text := res.Text
		if !strings.HasSuffix(text, "\n") {
			text += "\n"
		}
		if _, err := io.WriteString(out, text); err != nil {
			return ClientResult{Mode: ModeFile, Status: res.Status}, err
		}
	}
	return ClientResult{Mode: ModeFile, Status: res.Status}, nil
}
