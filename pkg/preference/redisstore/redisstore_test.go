package redisstore

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memRedis answers GET and SET from a map. Other commands are not
// implemented and panic through the nil embedded Cmdable.
type memRedis struct {
	redis.Cmdable
	data map[string]string
	ttls map[string]time.Duration
}

func newMemRedis() *memRedis {
	return &memRedis{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memRedis) Get(_ context.Context, key string) *redis.StringCmd {
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *memRedis) Set(_ context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	m.data[key] = fmt.Sprint(value)
	m.ttls[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func unreachable(t *testing.T) *redis.Client {
	t.Helper()
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestKey(t *testing.T) {
	assert.Equal(t, "camconfig:pref:photoLevel.cam", New(nil).key("photoLevel.cam"))
	assert.Equal(t, "x/videoFps.FHD.cam", NewWithPrefix(nil, "x/").key("videoFps.FHD.cam"))
}

func TestUnreachableServer(t *testing.T) {
	s := New(unreachable(t))
	ctx := context.Background()

	_, ok, err := s.Get(ctx, "photoLevel.cam")
	assert.Error(t, err)
	assert.False(t, ok)
	assert.Error(t, s.Set(ctx, "photoLevel.cam", "full"))
}

func TestGetSet(t *testing.T) {
	rdb := newMemRedis()
	s := New(rdb)
	ctx := context.Background()

	v, ok, err := s.Get(ctx, "photoLevel.cam")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, v)

	require.NoError(t, s.Set(ctx, "photoLevel.cam", "full"))
	assert.Equal(t, "full", rdb.data["camconfig:pref:photoLevel.cam"])
	assert.Zero(t, rdb.ttls["camconfig:pref:photoLevel.cam"])

	v, ok, err = s.Get(ctx, "photoLevel.cam")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "full", v)

	_, ok, err = NewWithPrefix(rdb, "other:").Get(ctx, "photoLevel.cam")
	require.NoError(t, err)
	assert.False(t, ok)
}
