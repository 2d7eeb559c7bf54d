// SPDX-License-Identifier: MPL-2.0

package transport

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/remcon/remcon/internal/config"
	"github.com/remcon/remcon/internal/issue"
)

// MarkerFileName records the base directory chosen by the last Probe.
const MarkerFileName = "base_dir_record"

// ErrNoBaseDirs is returned when Probe has no candidates to try.
var ErrNoBaseDirs = errors.New("no base directory candidates")

// DefaultMarkerPath returns the marker location inside the config directory.
func DefaultMarkerPath() (string, error) {
	dir, err := config.ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, MarkerFileName), nil
}

// Probe picks the transport base directory. A directory named by the marker
// file is reused while it stays writable; otherwise the candidates are tried
// in order and the first writable one is recorded in the marker. An empty
// markerPath disables the marker.
func Probe(dirs []string, markerPath string) (string, error) {
	if markerPath != "" {
		if data, err := os.ReadFile(markerPath); err == nil {
			if recorded := strings.TrimSpace(string(data)); recorded != "" && IsWritable(recorded) {
				return recorded, nil
			}
		}
	}

	var errs []error
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := checkWritable(dir); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", dir, err))
			continue
		}
		if markerPath != "" {
			// A stale marker only costs another probe next time.
			_ = recordBaseDir(markerPath, dir)
		}
		return dir, nil
	}

	cause := ErrNoBaseDirs
	if len(errs) > 0 {
		cause = errors.Join(errs...)
	}
	return "", issue.NewErrorContext().
		WithOperation("select transport base directory").
		WithResource(strings.Join(dirs, ", ")).
		WithSuggestion("Set file_channel.base_dirs to a directory this process can write").
		WithIssue(issue.BaseDirUnavailableId).
		Wrap(cause).
		BuildError()
}

// IsWritable reports whether dir exists or can be created and accepts a
// new file.
func IsWritable(dir string) bool {
	return checkWritable(dir) == nil
}

func checkWritable(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, ".probe-*")
	if err != nil {
		return err
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(name)
}

func recordBaseDir(markerPath, dir string) error {
	if err := os.MkdirAll(filepath.Dir(markerPath), 0o755); err != nil {
		return err
	}
	return writeFileAtomic(markerPath, []byte(dir+"\n"))
}

// writeFileAtomic renames a uniquely named temp file over path.
func writeFileAtomic(path string, data []byte) error {
	f, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer func() { _ = os.Remove(tmp) }()

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Chmod(0o644); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
