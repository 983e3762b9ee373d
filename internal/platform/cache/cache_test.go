package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestFetchJSONPopulatesAndReuses(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c := NewCache(client, time.Minute)
	ctx := context.Background()

	calls := 0
	loader := func(context.Context) (any, error) {
		calls++
		return map[string]float64{"qty": 42}, nil
	}

	var got map[string]float64
	require.NoError(t, c.FetchJSON(ctx, Key("onhand", "1", "2"), &got, loader))
	require.Equal(t, 42.0, got["qty"])
	require.Equal(t, 1, calls)

	got = nil
	require.NoError(t, c.FetchJSON(ctx, Key("onhand", "1", "2"), &got, loader))
	require.Equal(t, 42.0, got["qty"])
	require.Equal(t, 1, calls)
}

func TestInvalidateForcesReload(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c := NewCache(client, time.Minute)
	ctx := context.Background()

	calls := 0
	loader := func(context.Context) (any, error) {
		calls++
		return calls, nil
	}

	var got int
	require.NoError(t, c.FetchJSON(ctx, "k", &got, loader))
	require.Equal(t, 1, got)

	require.NoError(t, c.Invalidate(ctx, "k"))
	require.NoError(t, c.FetchJSON(ctx, "k", &got, loader))
	require.Equal(t, 2, got)
}

func TestNilCacheFallsThrough(t *testing.T) {
	var c *Cache
	var got int
	err := c.FetchJSON(context.Background(), "k", &got, func(context.Context) (any, error) { return 7, nil })
	require.NoError(t, err)
	require.Equal(t, 7, got)
}
