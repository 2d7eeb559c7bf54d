// SPDX-License-Identifier: MPL-2.0

package scriptstore

import (
	"context"
	"fmt"
	"sort"
	"time"

	backend "github.com/redis/go-redis/v9"
)

const (
	// DefaultRedisPrefix namespaces every key the store writes.
	DefaultRedisPrefix = "remcon:scripts"

	fieldCode    = "code"
	fieldUpdated = "updated"
)

type (
	// RedisStore keeps each script in a hash <prefix>:<name> and the set of
	// names in <prefix>:index.
	RedisStore struct {
		client *backend.Client
		prefix string
		now    func() time.Time
	}

	// RedisOption configures a RedisStore.
	RedisOption func(*RedisStore)
)

// WithPrefix sets the key prefix. An empty prefix keeps the default.
func WithPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// NewRedisStore connects lazily to addr.
func NewRedisStore(addr string, db int, opts ...RedisOption) *RedisStore {
	return NewRedisStoreFromClient(backend.NewClient(&backend.Options{Addr: addr, DB: db}), opts...)
}

// NewRedisStoreFromClient wraps an existing client. Close closes the client.
func NewRedisStoreFromClient(client *backend.Client, opts ...RedisOption) *RedisStore {
	s := &RedisStore{client: client, prefix: DefaultRedisPrefix, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) key(name string) string { return s.prefix + ":" + name }

func (s *RedisStore) indexKey() string { return s.prefix + ":index" }

// List implements Store.
func (s *RedisStore) List(ctx context.Context) ([]string, error) {
	names, err := s.client.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list scripts: %w", err)
	}
	sort.Strings(names)
	return names, nil
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, name string) (Script, error) {
	if err := ValidateName(name); err != nil {
		return Script{}, err
	}
	fields, err := s.client.HGetAll(ctx, s.key(name)).Result()
	if err != nil {
		return Script{}, fmt.Errorf("failed to get script %s: %w", name, err)
	}
	code, ok := fields[fieldCode]
	if !ok {
		return Script{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	sc := Script{Name: name, Code: code}
	if raw := fields[fieldUpdated]; raw != "" {
		if sc.Updated, err = time.Parse(time.RFC3339Nano, raw); err != nil {
			return Script{}, fmt.Errorf("script %s has a malformed timestamp: %w", name, err)
		}
	}
	return sc, nil
}

// Put writes the hash and the index entry in one pipeline.
func (s *RedisStore) Put(ctx context.Context, sc Script) error {
	if err := ValidateName(sc.Name); err != nil {
		return err
	}
	if sc.Updated.IsZero() {
		sc.Updated = s.now()
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, s.key(sc.Name), fieldCode, sc.Code, fieldUpdated, sc.Updated.UTC().Format(time.RFC3339Nano))
	pipe.SAdd(ctx, s.indexKey(), sc.Name)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store script %s: %w", sc.Name, err)
	}
	return nil
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	del := pipe.Del(ctx, s.key(name))
	pipe.SRem(ctx, s.indexKey(), name)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete script %s: %w", name, err)
	}
	if del.Val() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return nil
}

// Ping checks connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close implements Store.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
