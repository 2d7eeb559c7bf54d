// SPDX-License-Identifier: MPL-2.0

package filechannel

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	// SessionsDirName holds one directory per file session.
	SessionsDirName = "execute_sessions"
	// SessionPrefix starts every session directory name.
	SessionPrefix = "session_"

	InputFile  = "input.txt"
	OutputFile = "output.txt"
	ResultFile = "result.txt"

	tmpSuffix = ".tmp"
)

// Layout resolves file channel paths under a base directory.
type Layout struct {
	Base string
}

// SessionsDir returns <base>/execute_sessions.
func (l Layout) SessionsDir() string {
	return filepath.Join(l.Base, SessionsDirName)
}

// SessionDir returns the directory of session seq.
func (l Layout) SessionDir(seq int64) string {
	return filepath.Join(l.SessionsDir(), SessionName(seq))
}

// SessionName returns session_<seq>.
func SessionName(seq int64) string {
	return SessionPrefix + strconv.FormatInt(seq, 10)
}

// ParseSessionName extracts seq from a session directory name.
func ParseSessionName(name string) (int64, bool) {
	digits, ok := strings.CutPrefix(name, SessionPrefix)
	if !ok || digits == "" {
		return 0, false
	}
	seq, err := strconv.ParseInt(digits, 10, 64)
	if err != nil || seq < 0 {
		return 0, false
	}
	return seq, true
}

// writeFileAtomic writes data to a uniquely named file next to path and
// renames it into place, so readers see either nothing or the complete file
// and concurrent writers never share a temp file.
func writeFileAtomic(path string, data []byte) error {
	f, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+tmpSuffix+"-*")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", filepath.Base(path), err)
	}
	tmp := f.Name()
	defer func() { _ = os.Remove(tmp) }()

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", filepath.Base(tmp), err)
	}
	if err := f.Chmod(0o644); err != nil {
		_ = f.Close()
		return fmt.Errorf("chmod %s: %w", filepath.Base(tmp), err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", filepath.Base(tmp), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename %s: %w", filepath.Base(path), err)
	}
	return nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
