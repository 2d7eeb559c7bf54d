// SPDX-License-Identifier: MPL-2.0

package scriptstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const scriptExt = ".lua"

// DefaultDir returns the file store directory under a transport base dir.
func DefaultDir(baseDir string) string {
	return filepath.Join(baseDir, "scripts")
}

// FileStore keeps one <name>.lua file per script. The file modification time
// is the Updated timestamp.
type FileStore struct {
	dir string
}

// NewFileStore creates a store rooted at dir. The directory is created on
// first write.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// Dir returns the store directory.
func (s *FileStore) Dir() string { return s.dir }

func (s *FileStore) path(name string) string {
	return filepath.Join(s.dir, name+scriptExt)
}

// List implements Store.
func (s *FileStore) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read script directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), scriptExt) {
			continue
		}
		name := strings.TrimSuffix(e.Name(), scriptExt)
		if ValidateName(name) == nil {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// Get implements Store.
func (s *FileStore) Get(ctx context.Context, name string) (Script, error) {
	if err := ValidateName(name); err != nil {
		return Script{}, err
	}
	if err := ctx.Err(); err != nil {
		return Script{}, err
	}

	p := s.path(name)
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Script{}, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return Script{}, fmt.Errorf("failed to read script %s: %w", name, err)
	}
	info, err := os.Stat(p)
	if err != nil {
		return Script{}, fmt.Errorf("failed to stat script %s: %w", name, err)
	}
	return Script{Name: name, Code: string(data), Updated: info.ModTime()}, nil
}

// Put writes the script to a temp file in the store directory and renames it
// into place.
func (s *FileStore) Put(ctx context.Context, sc Script) error {
	if err := ValidateName(sc.Name); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create script directory: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, ".tmp-"+sc.Name+"-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmp.WriteString(sc.Code); err != nil {
		return fmt.Errorf("failed to write script %s: %w", sc.Name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if !sc.Updated.IsZero() {
		if err := os.Chtimes(tmpPath, sc.Updated, sc.Updated); err != nil {
			return fmt.Errorf("failed to set script time: %w", err)
		}
	}
	if err := os.Rename(tmpPath, s.path(sc.Name)); err != nil {
		return fmt.Errorf("failed to store script %s: %w", sc.Name, err)
	}
	return nil
}

// Delete implements Store.
func (s *FileStore) Delete(ctx context.Context, name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Remove(s.path(name)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return fmt.Errorf("failed to delete script %s: %w", name, err)
	}
	return nil
}

// Close implements Store.
func (s *FileStore) Close() error { return nil }
