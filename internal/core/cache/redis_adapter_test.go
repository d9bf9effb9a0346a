package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAdapter(t *testing.T) (*RedisAdapter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)

	adapter, err := NewRedisAdapter("redis://" + mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { adapter.Close() })

	return adapter, mr
}

func TestRedisAdapter_GetSet(t *testing.T) {
	adapter, _ := newTestAdapter(t)
	ctx := context.Background()

	err := adapter.Set(ctx, "test_key", []byte("test_value"), 10*time.Second)
	assert.NoError(t, err)

	retrievedValue, err := adapter.Get(ctx, "test_key")
	assert.NoError(t, err)
	assert.Equal(t, []byte("test_value"), retrievedValue)
}

func TestRedisAdapter_GetNotFound(t *testing.T) {
	adapter, _ := newTestAdapter(t)

	_, err := adapter.Get(context.Background(), "non_existent_key")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestRedisAdapter_SetNX(t *testing.T) {
	adapter, mr := newTestAdapter(t)
	ctx := context.Background()

	stored, err := adapter.SetNX(ctx, "webhook:event:evt_1", []byte("1"), time.Minute)
	require.NoError(t, err)
	assert.True(t, stored)

	stored, err = adapter.SetNX(ctx, "webhook:event:evt_1", []byte("2"), time.Minute)
	require.NoError(t, err)
	assert.False(t, stored)

	value, err := adapter.Get(ctx, "webhook:event:evt_1")
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), value)

	mr.FastForward(2 * time.Minute)

	stored, err = adapter.SetNX(ctx, "webhook:event:evt_1", []byte("3"), time.Minute)
	require.NoError(t, err)
	assert.True(t, stored)
}

func TestRedisAdapter_Delete(t *testing.T) {
	adapter, _ := newTestAdapter(t)
	ctx := context.Background()

	require.NoError(t, adapter.Set(ctx, "delete_test", []byte("value"), 0))

	assert.NoError(t, adapter.Delete(ctx, "delete_test"))

	_, err := adapter.Get(ctx, "delete_test")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestRedisAdapter_TTL(t *testing.T) {
	adapter, mr := newTestAdapter(t)
	ctx := context.Background()

	require.NoError(t, adapter.Set(ctx, "ttl_test", []byte("expires_soon"), 1*time.Second))

	_, err := adapter.Get(ctx, "ttl_test")
	assert.NoError(t, err)

	mr.FastForward(2 * time.Second)

	_, err = adapter.Get(ctx, "ttl_test")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestRedisAdapter_Ping(t *testing.T) {
	adapter, _ := newTestAdapter(t)
	assert.NoError(t, adapter.Ping(context.Background()))
}

func TestRedisAdapter_InvalidURL(t *testing.T) {
	_, err := NewRedisAdapter("invalid://url")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse Redis URL")
}

func TestRedisAdapter_Namespace(t *testing.T) {
	mr := miniredis.RunT(t)
	adapter, err := NewRedisAdapter("redis://"+mr.Addr(), WithNamespace("commerce"))
	require.NoError(t, err)
	t.Cleanup(func() { adapter.Close() })
	ctx := context.Background()

	require.NoError(t, adapter.Set(ctx, "k", []byte("v"), 0))
	assert.True(t, mr.Exists("commerce:k"))
	assert.False(t, mr.Exists("k"))

	val, err := adapter.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), val)

	stored, err := adapter.SetNX(ctx, "k", []byte("other"), 0)
	require.NoError(t, err)
	assert.False(t, stored)

	require.NoError(t, adapter.Delete(ctx, "k"))
	assert.False(t, mr.Exists("commerce:k"))
}
