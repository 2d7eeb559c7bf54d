// SPDX-License-Identifier: MPL-2.0

package scriptstore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/remcon/remcon/internal/config"
)

var (
	// ErrNotFound is returned when a script name has no stored script.
	ErrNotFound = errors.New("script not found")

	// ErrInvalidName is the sentinel wrapped by InvalidNameError.
	ErrInvalidName = errors.New("invalid script name")

	validName = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)
)

type (
	// Script is one saved script.
	Script struct {
		Name    string    `yaml:"name"`
		Code    string    `yaml:"code"`
		Updated time.Time `yaml:"updated"`
	}

	// Store is implemented by every backend.
	Store interface {
		// List returns script names in ascending order.
		List(ctx context.Context) ([]string, error)
		// Get returns ErrNotFound for unknown names.
		Get(ctx context.Context, name string) (Script, error)
		// Put creates or replaces a script. A zero Updated is set to now.
		Put(ctx context.Context, s Script) error
		// Delete returns ErrNotFound for unknown names.
		Delete(ctx context.Context, name string) error
		Close() error
	}

	// InvalidNameError reports a name that cannot be used as a key or file name.
	InvalidNameError struct {
		Name string
	}
)

func (e *InvalidNameError) Error() string {
	return fmt.Sprintf("invalid script name %q (letters, digits, '_', '.', '-'; must not start with a symbol)", e.Name)
}

func (e *InvalidNameError) Unwrap() error { return ErrInvalidName }

// ValidateName checks that name is usable by every backend.
func ValidateName(name string) error {
	if !validName.MatchString(name) {
		return &InvalidNameError{Name: name}
	}
	return nil
}

// Open builds the store selected by cfg. An empty file store directory
// resolves to <baseDir>/scripts.
func Open(cfg config.ScriptsConfig, baseDir string) (Store, error) {
	switch cfg.Store {
	case config.ScriptStoreRedis:
		return NewRedisStore(cfg.Redis.Addr, cfg.Redis.DB, WithPrefix(cfg.Redis.Prefix)), nil
	case config.ScriptStoreFile, "":
		dir := cfg.Dir
		if dir == "" {
			if baseDir == "" {
				return nil, errors.New("script store: no directory configured")
			}
			dir = DefaultDir(baseDir)
		}
		return NewFileStore(dir), nil
	default:
		return nil, &config.InvalidScriptStoreKindError{Value: cfg.Store}
	}
}
