package redisclient

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := NewClientFromRedis(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { c.Close() })
	return c, mr
}

func TestIdempotencyKey(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()

	seen, err := c.CheckIdempotencyKey(ctx, "evt_1")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, c.SetIdempotencyKey(ctx, "evt_1", "1", time.Minute))

	seen, err = c.CheckIdempotencyKey(ctx, "evt_1")
	require.NoError(t, err)
	assert.True(t, seen)

	mr.FastForward(2 * time.Minute)

	seen, err = c.CheckIdempotencyKey(ctx, "evt_1")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestOrderStatus(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	_, found, err := c.GetOrderStatus(ctx, "o1")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, c.SetOrderStatus(ctx, "o1", "completed", time.Hour))

	status, found, err := c.GetOrderStatus(ctx, "o1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "completed", status)
}

func TestJSONCache(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()

	var out []string
	found, err := c.GetJSON(ctx, "k", &out)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, c.SetJSON(ctx, "k", []string{"a", "b"}, time.Minute))

	found, err = c.GetJSON(ctx, "k", &out)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []string{"a", "b"}, out)

	require.NoError(t, mr.Set("bad", "{"))
	_, err = c.GetJSON(ctx, "bad", &out)
	assert.Error(t, err)
}
