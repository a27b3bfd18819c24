package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type entry struct {
	AccountID string `json:"account_id"`
	Role      string `json:"role"`
}

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return New(client, "test:"), mr
}

func TestCache_SetGet(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "cred:abc", entry{AccountID: "a1", Role: "DOCTOR"}, time.Minute))
	assert.True(t, mr.Exists("test:cred:abc"))

	var got entry
	require.NoError(t, c.Get(ctx, "cred:abc", &got))
	assert.Equal(t, entry{AccountID: "a1", Role: "DOCTOR"}, got)
}

func TestCache_MissAndExpiry(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	var got entry
	err := c.Get(ctx, "nope", &got)
	require.Error(t, err)
	assert.True(t, IsMiss(err))

	require.NoError(t, c.Set(ctx, "short", entry{AccountID: "a"}, time.Second))
	mr.FastForward(2 * time.Second)
	assert.True(t, IsMiss(c.Get(ctx, "short", &got)))
}

func TestCache_DeleteAndPattern(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "cred:1", entry{}, time.Minute))
	require.NoError(t, c.Set(ctx, "cred:2", entry{}, time.Minute))
	require.NoError(t, c.Set(ctx, "other", entry{}, time.Minute))

	require.NoError(t, c.Delete(ctx, "other"))
	assert.False(t, mr.Exists("test:other"))

	require.NoError(t, c.DeletePattern(ctx, "cred:*"))
	assert.False(t, mr.Exists("test:cred:1"))
	assert.False(t, mr.Exists("test:cred:2"))
}

func TestCache_NilClientIsNoop(t *testing.T) {
	c := New(nil, "x:")
	ctx := context.Background()

	assert.False(t, c.Enabled())
	assert.NoError(t, c.Set(ctx, "k", 1, time.Minute))
	assert.True(t, IsMiss(c.Get(ctx, "k", new(int))))
	assert.NoError(t, c.Delete(ctx, "k"))
}
