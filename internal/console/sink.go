// SPDX-License-Identifier: MPL-2.0

package console

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
)

// Sink streams text back to the caller of a command.
//
// Progress overwrites the current line (carriage-return style). The next
// Print or Println after a progress update starts on a fresh line.
type Sink interface {
	Print(s string) error
	Println(s string) error
	Progress(s string) error
}

// WriterSink writes to an io.Writer until its context is cancelled; from then
// on every write fails with ErrInterrupted. Safe for concurrent use.
type WriterSink struct {
	ctx context.Context
	w   io.Writer

	mu         sync.Mutex
	inProgress bool
}

// NewWriterSink returns a sink bound to ctx. Cancelling ctx is how callers
// abort an in-flight command that is blocked on output.
func NewWriterSink(ctx context.Context, w io.Writer) *WriterSink {
	return &WriterSink{ctx: ctx, w: w}
}

func (s *WriterSink) Print(str string) error {
	return s.write(str, false)
}

func (s *WriterSink) Println(str string) error {
	return s.write(str+"\n", false)
}

func (s *WriterSink) Progress(str string) error {
	return s.write("\r"+str, true)
}

func (s *WriterSink) write(str string, progress bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctx.Err() != nil {
		return ErrInterrupted
	}
	if s.inProgress && !progress {
		str = "\n" + str
	}
	if _, err := io.WriteString(s.w, str); err != nil {
		if s.ctx.Err() != nil {
			return ErrInterrupted
		}
		return fmt.Errorf("write output: %w", err)
	}
	s.inProgress = progress
	return nil
}

// BufferSink collects output in memory. Progress updates replace the
// previous progress text instead of accumulating.
type BufferSink struct {
	mu         sync.Mutex
	sb         strings.Builder
	progressAt int
	inProgress bool
}

func (b *BufferSink) Print(s string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.inProgress {
		b.sb.WriteString("\n")
		b.inProgress = false
	}
	b.sb.WriteString(s)
	return nil
}

func (b *BufferSink) Println(s string) error {
	return b.Print(s + "\n")
}

func (b *BufferSink) Progress(s string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.inProgress {
		cur := b.sb.String()[:b.progressAt]
		b.sb.Reset()
		b.sb.WriteString(cur)
	}
	b.progressAt = b.sb.Len()
	b.inProgress = true
	b.sb.WriteString("\r" + s)
	return nil
}

// String returns everything written so far.
func (b *BufferSink) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sb.String()
}

// Discard drops all output.
var Discard Sink = discardSink{}

type discardSink struct{}

func (discardSink) Print(string) error    { return nil }
func (discardSink) Println(string) error  { return nil }
func (discardSink) Progress(string) error { return nil }
