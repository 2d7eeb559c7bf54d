// SPDX-License-Identifier: MPL-2.0

package scriptstore

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
)

func newTestRedisStore(t *testing.T, opts ...RedisOption) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	store := NewRedisStoreFromClient(backend.NewClient(&backend.Options{Addr: mr.Addr()}), opts...)
	t.Cleanup(func() { _ = store.Close() })
	return store, mr
}

func TestRedisStore_Contract(t *testing.T) {
	t.Parallel()

	store, _ := newTestRedisStore(t)
	runStoreContract(t, store)
}

func TestRedisStore_KeyLayout(t *testing.T) {
	t.Parallel()

	store, mr := newTestRedisStore(t, WithPrefix("test:scripts"))
	ctx := context.Background()

	if err := store.Ping(ctx); err != nil {
		t.Fatalf("Ping() returned error: %v", err)
	}
	if err := store.Put(ctx, Script{Name: "job", Code: "return 1"}); err != nil {
		t.Fatalf("Put() returned error: %v", err)
	}

	if got := mr.HGet("test:scripts:job", "code"); got != "return 1" {
		t.Errorf("hash code field = %q", got)
	}
	ok, err := mr.SIsMember("test:scripts:index", "job")
	if err != nil || !ok {
		t.Errorf("index membership = %v, %v", ok, err)
	}
}
