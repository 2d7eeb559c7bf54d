// SPDX-License-Identifier: MPL-2.0

package filechannel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// ErrTimeout is returned when no broker completes the session in time.
var ErrTimeout = errors.New("file channel: no result before timeout")

// Client submits command lines through the file channel.
type Client struct {
	layout Layout
	poll   time.Duration
	// Timeout bounds one Execute; zero waits until ctx is done.
	Timeout time.Duration
	// Keep leaves the session directory in place after completion.
	Keep bool
}

// NewClient creates a client for the base directory. A zero poll uses the
// broker default.
func NewClient(baseDir string, poll time.Duration) *Client {
	if poll <= 0 {
		poll = defaultPollInterval
	}
	return &Client{layout: Layout{Base: baseDir}, poll: poll}
}

// Execute runs line and copies output.txt to out as it grows. The session
// directory is removed afterwards unless Keep is set; it is also removed when
// ctx ends first, which makes the broker's writes fail.
func (c *Client) Execute(ctx context.Context, line string, out io.Writer) (Result, error) {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	dir, err := c.allocate()
	if err != nil {
		return Result{}, err
	}
	if !c.Keep {
		defer func() { _ = os.RemoveAll(dir) }()
	}

	if err := writeFileAtomic(filepath.Join(dir, InputFile), []byte(line+"\n")); err != nil {
		return Result{}, err
	}

	tail := &tailer{path: filepath.Join(dir, OutputFile)}
	ticker := time.NewTicker(c.poll)
	defer ticker.Stop()

	for {
		done := exists(filepath.Join(dir, ResultFile))
		// Output is complete once the result exists, so drain it after the check.
		if err := tail.copyTo(out); err != nil {
			return Result{}, err
		}
		if done {
			data, err := os.ReadFile(filepath.Join(dir, ResultFile))
			if err != nil {
				return Result{}, fmt.Errorf("read result: %w", err)
			}
			return decodeResult(data), nil
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return Result{}, fmt.Errorf("%w (session %s)", ErrTimeout, filepath.Base(dir))
			}
			return Result{}, ctx.Err()
		case <-ticker.C:
		}
	}
}

// allocate creates the next session directory. os.Mkdir fails on an existing
// name, so two clients never share a session.
func (c *Client) allocate() (string, error) {
	root := c.layout.SessionsDir()
	if err := os.MkdirAll(root, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", root, err)
	}

	seq, err := nextSeq(root)
	if err != nil {
		return "", err
	}
	for range 1000 {
		dir := c.layout.SessionDir(seq)
		err := os.Mkdir(dir, 0o755)
		if err == nil {
			// Best effort: a lost high-water mark only risks reusing a
			// number whose directory is already gone.
			_ = writeFileAtomic(filepath.Join(root, lastSeqFile), []byte(strconv.FormatInt(seq, 10)))
			return dir, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", fmt.Errorf("create session: %w", err)
		}
		seq++
	}
	return "", errors.New("create session: too many concurrent sessions")
}

// lastSeqFile records the highest allocated session number, so numbers
// keep increasing after completed sessions are removed.
const lastSeqFile = ".last_seq"

// nextSeq returns one past the highest existing or recorded session number.
func nextSeq(root string) (int64, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", root, err)
	}
	var next int64 = 1
	if data, err := os.ReadFile(filepath.Join(root, lastSeqFile)); err == nil {
		if last, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64); err == nil && last >= next {
			next = last + 1
		}
	}
	for _, e := range entries {
		if seq, ok := ParseSessionName(e.Name()); ok && seq >= next {
			next = seq + 1
		}
	}
	return next, nil
}

// tailer copies the bytes appended to a file since the last call.
type tailer struct {
	path   string
	offset int64
}

func (t *tailer) copyTo(w io.Writer) error {
	f, err := os.Open(t.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("open output: %w", err)
	}
	defer f.Close()

	if _, err := f.Seek(t.offset, io.SeekStart); err != nil {
		return fmt.Errorf("seek output: %w", err)
	}
	n, err := io.Copy(w, f)
	t.offset += n
	if err != nil {
		return fmt.Errorf("copy output: %w", err)
	}
	return nil
}
