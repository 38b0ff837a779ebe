package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cachedThing struct {
	Name string `json:"name"`
}

func withMiniredis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	SetClient(rdb)
	t.Cleanup(func() {
		SetClient(nil)
		_ = rdb.Close()
	})
	return mr
}

func TestAside_CachesOnMiss(t *testing.T) {
	mr := withMiniredis(t)
	ctx := context.Background()

	calls := 0
	fetch := func(dest *cachedThing) func() error {
		return func() error {
			calls++
			dest.Name = "villa"
			return nil
		}
	}

	var first cachedThing
	require.NoError(t, Aside(ctx, PropertyKey(7), &first, time.Minute, fetch(&first)))
	var second cachedThing
	require.NoError(t, Aside(ctx, PropertyKey(7), &second, time.Minute, fetch(&second)))

	assert.Equal(t, 1, calls)
	assert.Equal(t, "villa", second.Name)
	assert.True(t, mr.Exists("property:7"))
	assert.Equal(t, time.Minute, mr.TTL("property:7"))
}

func TestAside_FetchErrorIsNotCached(t *testing.T) {
	mr := withMiniredis(t)

	var dest cachedThing
	err := Aside(context.Background(), PropertyKey(8), &dest, time.Minute, func() error {
		return errors.New("db down")
	})
	assert.Error(t, err)
	assert.False(t, mr.Exists("property:8"))
}

func TestAside_WithoutRedisCallsFetch(t *testing.T) {
	SetClient(nil)

	var dest cachedThing
	err := Aside(context.Background(), PropertyKey(1), &dest, time.Minute, func() error {
		dest.Name = "plot"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "plot", dest.Name)
}

func TestInvalidateProperty_DropsRecordAndLists(t *testing.T) {
	mr := withMiniredis(t)
	ctx := context.Background()

	require.NoError(t, SetJSON(ctx, PropertyKey(3), cachedThing{Name: "a"}, time.Minute))
	require.NoError(t, SetJSON(ctx, PropertyListKey("city=pune"), []cachedThing{{Name: "a"}}, time.Minute))
	require.NoError(t, SetJSON(ctx, PropertyListKey("all"), []cachedThing{{Name: "a"}}, time.Minute))
	require.NoError(t, SetJSON(ctx, PropertyKey(4), cachedThing{Name: "b"}, time.Minute))

	InvalidateProperty(ctx, 3)

	assert.False(t, mr.Exists("property:3"))
	assert.False(t, mr.Exists("properties:list:city=pune"))
	assert.False(t, mr.Exists("properties:list:all"))
	assert.True(t, mr.Exists("property:4"))
}
