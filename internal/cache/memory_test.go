package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryProviderSetGet(t *testing.T) {
	m := NewMemoryProvider()
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "key", []byte("value"), 0))

	got, err := m.Get(ctx, "key")
	require.NoError(t, err)
	assert.Equal(t, []byte("value"), got)
}

func TestMemoryProviderMiss(t *testing.T) {
	m := NewMemoryProvider()

	_, err := m.Get(context.Background(), "absent")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryProviderTTL(t *testing.T) {
	m := NewMemoryProvider()
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "key", []byte("value"), 10*time.Millisecond))
	time.Sleep(30 * time.Millisecond)

	_, err := m.Get(ctx, "key")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryProviderIncr(t *testing.T) {
	m := NewMemoryProvider()
	ctx := context.Background()

	n, err := m.Incr(ctx, "counter")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = m.Incr(ctx, "counter")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestMemoryProviderDel(t *testing.T) {
	m := NewMemoryProvider()
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "key", []byte("value"), 0))
	require.NoError(t, m.Del(ctx, "key"))

	_, err := m.Get(ctx, "key")
	assert.ErrorIs(t, err, ErrCacheMiss)
}
