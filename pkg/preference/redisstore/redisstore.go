// Package redisstore persists camera preferences in Redis.
package redisstore

import (
	"context"
	"errors"

	"github.com/pion/camconfig/pkg/preference"
	"github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces the preference keys.
const DefaultPrefix = "camconfig:pref:"

// Store is a preference.KeyValueStore backed by Redis. Keys never expire.
type Store struct {
	rdb    redis.Cmdable
	prefix string
}

var _ preference.KeyValueStore = (*Store)(nil)

// New returns a Store using rdb with DefaultPrefix.
func New(rdb redis.Cmdable) *Store { return &Store{rdb: rdb, prefix: DefaultPrefix} }

// NewWithPrefix returns a Store namespacing its keys with prefix.
func NewWithPrefix(rdb redis.Cmdable, prefix string) *Store {
	return &Store{rdb: rdb, prefix: prefix}
}

func (s *Store) key(k string) string { return s.prefix + k }

// Get implements preference.KeyValueStore.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.rdb.Get(ctx, s.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

// Set implements preference.KeyValueStore.
func (s *Store) Set(ctx context.Context, key, value string) error {
	return s.rdb.Set(ctx, s.key(key), value, 0).Err()
}
