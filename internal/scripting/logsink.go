// SPDX-License-Identifier: MPL-2.0

package scripting

import (
	"strings"
	"sync"

	"github.com/charmbracelet/log"
)

// logSink receives output from background work, which has no client to
// write to. Complete lines are logged at info level.
type logSink struct {
	logger *log.Logger

	mu      sync.Mutex
	pending strings.Builder
}

func newLogSink(logger *log.Logger) *logSink {
	return &logSink{logger: logger}
}

func (s *logSink) Print(str string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending.WriteString(str)
	buf := s.pending.String()
	for {
		i := strings.IndexByte(buf, '\n')
		if i < 0 {
			break
		}
		s.logger.Info("background output", "line", buf[:i])
		buf = buf[i+1:]
	}
	s.pending.Reset()
	s.pending.WriteString(buf)
	return nil
}

func (s *logSink) Println(str string) error {
	return s.Print(str + "\n")
}

func (s *logSink) Progress(str string) error {
	s.logger.Debug("background progress", "line", str)
	return nil
}
