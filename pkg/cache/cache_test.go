package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T, ttl time.Duration) (*Cache[int, string], *time.Time) {
	t.Helper()
	c := New[int, string](ttl)
	t.Cleanup(c.Stop)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	return c, &now
}

func TestCache_SetGetExpire(t *testing.T) {
	c, now := newTestCache(t, time.Minute)

	c.Set(1, "one")
	v, ok := c.Get(1)
	require.True(t, ok)
	assert.Equal(t, "one", v)

	*now = now.Add(time.Minute)
	_, ok = c.Get(1)
	assert.False(t, ok)
	assert.Equal(t, 1, c.Len())

	c.Purge()
	assert.Equal(t, 0, c.Len())
}

func TestCache_Delete(t *testing.T) {
	c, _ := newTestCache(t, time.Minute)
	c.Set(1, "one")
	c.Delete(1)
	_, ok := c.Get(1)
	assert.False(t, ok)
}

func TestCache_GetOrLoad(t *testing.T) {
	c, now := newTestCache(t, time.Minute)
	calls := 0
	load := func(context.Context) (string, error) {
		calls++
		return "loaded", nil
	}

	for i := 0; i < 3; i++ {
		v, err := c.GetOrLoad(context.Background(), 7, load)
		require.NoError(t, err)
		assert.Equal(t, "loaded", v)
	}
	assert.Equal(t, 1, calls)

	*now = now.Add(2 * time.Minute)
	_, err := c.GetOrLoad(context.Background(), 7, load)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestCache_GetOrLoadDoesNotCacheErrors(t *testing.T) {
	c, _ := newTestCache(t, time.Minute)
	boom := errors.New("boom")

	_, err := c.GetOrLoad(context.Background(), 1, func(context.Context) (string, error) { return "", boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, c.Len())
}

func TestCache_StopTwice(t *testing.T) {
	c := New[string, int](time.Millisecond)
	c.Stop()
	assert.NotPanics(t, c.Stop)
}
