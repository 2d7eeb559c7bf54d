// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

type stubStopper struct {
	calls int
	err   error
}

func (s *stubStopper) Stop() error {
	s.calls++
	return s.err
}

func TestMustSetenv(t *testing.T) {
	const key = "REMCON_TESTUTIL_ENV"
	t.Run("set", func(t *testing.T) {
		MustSetenv(t, key, "value")
		if got := os.Getenv(key); got != "value" {
			t.Errorf("Getenv() = %q, want value", got)
		}
	})
	if _, ok := os.LookupEnv(key); ok {
		t.Error("variable should be unset after subtest cleanup")
	}
}

func TestFileHelpers(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "a", "b")
	MustMkdirAll(t, dir, 0o755)

	path := filepath.Join(dir, "input.txt")
	MustWriteFile(t, path, "help")
	if got := MustReadFile(t, path); got != "help" {
		t.Errorf("MustReadFile() = %q, want help", got)
	}
}

func TestStopHelpers(t *testing.T) {
	t.Parallel()

	s := &stubStopper{err: errors.New("already closed")}
	MustStop(t, s)
	DeferStop(t, s)()

	if s.calls != 2 {
		t.Errorf("Stop called %d times, want 2", s.calls)
	}
}

func TestEventually(t *testing.T) {
	t.Parallel()

	start := time.Now()
	Eventually(t, time.Second, "three ticks", func() bool {
		return time.Since(start) > 30*time.Millisecond
	})
}
