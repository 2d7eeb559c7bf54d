// SPDX-License-Identifier: MPL-2.0

package scriptstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/remcon/remcon/internal/config"
)

func TestFileStore_Contract(t *testing.T) {
	t.Parallel()

	runStoreContract(t, NewFileStore(filepath.Join(t.TempDir(), "scripts")))
}

func TestFileStore_IgnoresForeignFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	for _, name := range []string{"notes.txt", ".tmp-x-123", "ok.lua"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	names, err := NewFileStore(dir).List(context.Background())
	if err != nil {
		t.Fatalf("List() returned error: %v", err)
	}
	if len(names) != 1 || names[0] != "ok" {
		t.Errorf("List() = %v, want [ok]", names)
	}
}

func TestOpen(t *testing.T) {
	t.Parallel()

	base := t.TempDir()

	store, err := Open(config.ScriptsConfig{Store: config.ScriptStoreFile}, base)
	if err != nil {
		t.Fatalf("Open(file) returned error: %v", err)
	}
	fs, ok := store.(*FileStore)
	if !ok {
		t.Fatalf("Open(file) returned %T", store)
	}
	if fs.Dir() != DefaultDir(base) {
		t.Errorf("Dir() = %q, want %q", fs.Dir(), DefaultDir(base))
	}

	store, err = Open(config.ScriptsConfig{Store: config.ScriptStoreRedis, Redis: config.RedisConfig{Addr: "127.0.0.1:1"}}, base)
	if err != nil {
		t.Fatalf("Open(redis) returned error: %v", err)
	}
	if _, ok := store.(*RedisStore); !ok {
		t.Errorf("Open(redis) returned %T", store)
	}
	_ = store.Close()

	if _, err := Open(config.ScriptsConfig{Store: "sqlite"}, base); !errors.Is(err, config.ErrInvalidScriptStoreKind) {
		t.Errorf("Open(sqlite) error = %v, want ErrInvalidScriptStoreKind", err)
	}
}
