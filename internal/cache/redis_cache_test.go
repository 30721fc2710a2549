package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *RedisViewCache) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
		mr.Close()
	})
	return mr, NewRedisViewCacheFromClient(client)
}

type view struct {
	ID    string `json:"id"`
	Stock int    `json:"stock"`
}

func TestRedisViewCacheRoundTrip(t *testing.T) {
	mr, c := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, ProductKey("p1"), view{ID: "p1", Stock: 12}, time.Minute))
	assert.True(t, mr.Exists("kopiadmin:products:p1"))

	var got view
	hit, err := c.Get(ctx, ProductKey("p1"), &got)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, view{ID: "p1", Stock: 12}, got)

	hit, err = c.Get(ctx, ProductKey("missing"), &got)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestRedisViewCacheExpires(t *testing.T) {
	mr, c := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, KeyReceiptList, []view{{ID: "r1"}}, 30*time.Second))
	mr.FastForward(31 * time.Second)

	var got []view
	hit, err := c.Get(ctx, KeyReceiptList, &got)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestRedisViewCacheInvalidatesPrefixes(t *testing.T) {
	mr, c := setupTestRedis(t)
	ctx := context.Background()

	for _, key := range []string{
		ProductListKey("", "", false),
		ProductListKey("cat-tea", "", true),
		ProductKey("p1"),
		ProductKey("p2"),
		DashboardKey(7, 10),
		KeyVoucherList,
	} {
		require.NoError(t, c.Set(ctx, key, view{ID: key}, time.Minute))
	}

	require.NoError(t, c.Invalidate(ctx, KeysFor(EntityProduct, "p1")...))

	assert.False(t, mr.Exists("kopiadmin:"+ProductListKey("", "", false)))
	assert.False(t, mr.Exists("kopiadmin:"+ProductListKey("cat-tea", "", true)))
	assert.False(t, mr.Exists("kopiadmin:"+ProductKey("p1")))
	assert.False(t, mr.Exists("kopiadmin:"+DashboardKey(7, 10)))
	assert.True(t, mr.Exists("kopiadmin:"+ProductKey("p2")))
	assert.True(t, mr.Exists("kopiadmin:"+KeyVoucherList))
}

func TestKeysForReceipt(t *testing.T) {
	keys := KeysFor(EntityReceipt, "rcp-1")
	assert.Contains(t, keys, KeyReceiptList)
	assert.Contains(t, keys, ReceiptLinesKey("rcp-1"))
	assert.Contains(t, keys, "dashboard:*")
	assert.Nil(t, KeysFor("unknown", "x"))
}

func TestNoopViewCache(t *testing.T) {
	var c ViewCache = NoopViewCache{}
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "k", 1, time.Minute))
	hit, err := c.Get(ctx, "k", new(int))
	require.NoError(t, err)
	assert.False(t, hit)
	require.NoError(t, c.Invalidate(ctx, "k", "x:*"))
}
