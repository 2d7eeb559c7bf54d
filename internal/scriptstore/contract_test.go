// SPDX-License-Identifier: MPL-2.0

package scriptstore

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"
)

// runStoreContract checks the behaviour every backend shares.
func runStoreContract(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("empty", func(t *testing.T) {
		names, err := store.List(ctx)
		if err != nil {
			t.Fatalf("List() returned error: %v", err)
		}
		if len(names) != 0 {
			t.Errorf("List() = %v, want empty", names)
		}
	})

	t.Run("put and get", func(t *testing.T) {
		updated := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		if err := store.Put(ctx, Script{Name: "hello", Code: "println('hi')", Updated: updated}); err != nil {
			t.Fatalf("Put() returned error: %v", err)
		}
		sc, err := store.Get(ctx, "hello")
		if err != nil {
			t.Fatalf("Get() returned error: %v", err)
		}
		if sc.Name != "hello" || sc.Code != "println('hi')" {
			t.Errorf("Get() = %+v", sc)
		}
		if !sc.Updated.Equal(updated) {
			t.Errorf("Updated = %v, want %v", sc.Updated, updated)
		}
	})

	t.Run("overwrite", func(t *testing.T) {
		if err := store.Put(ctx, Script{Name: "hello", Code: "return 2"}); err != nil {
			t.Fatalf("Put() returned error: %v", err)
		}
		sc, err := store.Get(ctx, "hello")
		if err != nil {
			t.Fatalf("Get() returned error: %v", err)
		}
		if sc.Code != "return 2" {
			t.Errorf("Code = %q, want overwritten value", sc.Code)
		}
		if sc.Updated.IsZero() {
			t.Error("Updated was not set for a zero timestamp")
		}
	})

	t.Run("list sorted", func(t *testing.T) {
		if err := store.Put(ctx, Script{Name: "a.first", Code: "1"}); err != nil {
			t.Fatalf("Put() returned error: %v", err)
		}
		names, err := store.List(ctx)
		if err != nil {
			t.Fatalf("List() returned error: %v", err)
		}
		if want := []string{"a.first", "hello"}; !slices.Equal(names, want) {
			t.Errorf("List() = %v, want %v", names, want)
		}
	})

	t.Run("missing", func(t *testing.T) {
		if _, err := store.Get(ctx, "nope"); !errors.Is(err, ErrNotFound) {
			t.Errorf("Get(nope) error = %v, want ErrNotFound", err)
		}
		if err := store.Delete(ctx, "nope"); !errors.Is(err, ErrNotFound) {
			t.Errorf("Delete(nope) error = %v, want ErrNotFound", err)
		}
	})

	t.Run("invalid name", func(t *testing.T) {
		for _, name := range []string{"", "../etc", "a b", "-x"} {
			if err := store.Put(ctx, Script{Name: name, Code: "1"}); !errors.Is(err, ErrInvalidName) {
				t.Errorf("Put(%q) error = %v, want ErrInvalidName", name, err)
			}
		}
	})

	t.Run("delete", func(t *testing.T) {
		if err := store.Delete(ctx, "hello"); err != nil {
			t.Fatalf("Delete() returned error: %v", err)
		}
		if _, err := store.Get(ctx, "hello"); !errors.Is(err, ErrNotFound) {
			t.Errorf("Get after Delete error = %v, want ErrNotFound", err)
		}
		names, err := store.List(ctx)
		if err != nil {
			t.Fatalf("List() returned error: %v", err)
		}
		if !slices.Equal(names, []string{"a.first"}) {
			t.Errorf("List() after Delete = %v", names)
		}
	})
}
