package containers

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/framegraph/engine/core"
)

type object struct {
	name string
}

func TestCacheMapGetBuildsOnce(t *testing.T) {
	cache, err := NewCacheMap[string, *object](4)
	require.NoError(t, err)

	builds := 0
	build := func(key string) (*object, error) {
		builds++
		return &object{name: key}, nil
	}

	first, err := cache.Get("fxaa", build)
	require.NoError(t, err)
	second, err := cache.Get("fxaa", build)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, builds)
	assert.Equal(t, 1, cache.Len())
}

func TestCacheMapEvictsLeastRecentlyUsed(t *testing.T) {
	cache, err := NewCacheMap[int, *object](3)
	require.NoError(t, err)

	build := func(key int) (*object, error) {
		return &object{name: string(rune('a' + key))}, nil
	}
	for i := 0; i < 3; i++ {
		_, err := cache.Get(i, build)
		require.NoError(t, err)
	}
	// touch 0 so 1 becomes the oldest
	_, err = cache.Get(0, build)
	require.NoError(t, err)

	_, err = cache.Get(3, build)
	require.NoError(t, err)

	assert.Equal(t, 3, cache.Len())
	assert.False(t, cache.Contains(1))
	assert.True(t, cache.Contains(0))
	assert.True(t, cache.Contains(2))
	assert.True(t, cache.Contains(3))

	unused := cache.Unused()
	require.Len(t, unused, 1)
	assert.Equal(t, "b", unused[0].name)
}

func TestCacheMapGarbageCollectKeepsLiveEntries(t *testing.T) {
	cache, err := NewCacheMap[int, *object](2)
	require.NoError(t, err)

	build := func(key int) (*object, error) {
		return &object{}, nil
	}
	for i := 0; i < 5; i++ {
		_, err := cache.Get(i, build)
		require.NoError(t, err)
	}
	require.Len(t, cache.Unused(), 3)

	var destroyed []*object
	n := cache.GarbageCollect(func(o *object) {
		destroyed = append(destroyed, o)
	})

	assert.Equal(t, 3, n)
	assert.Len(t, destroyed, 3)
	assert.Empty(t, cache.Unused())
	assert.Equal(t, 2, cache.Len())
	assert.True(t, cache.Contains(3))
	assert.True(t, cache.Contains(4))
}

func TestCacheMapBuildErrorLeavesCacheUntouched(t *testing.T) {
	cache, err := NewCacheMap[string, *object](1)
	require.NoError(t, err)

	live, err := cache.Get("depth", func(key string) (*object, error) {
		return &object{name: key}, nil
	})
	require.NoError(t, err)

	_, err = cache.Get("color", func(string) (*object, error) {
		return nil, core.ErrDeviceAllocation
	})
	assert.True(t, errors.Is(err, core.ErrDeviceAllocation))

	got, ok := cache.Peek("depth")
	require.True(t, ok)
	assert.Same(t, live, got)
	assert.Empty(t, cache.Unused())
}

func TestCacheMapCollectHonoursFrameTags(t *testing.T) {
	cache, err := NewCacheMap[int, int](1)
	require.NoError(t, err)

	build := func(key int) (int, error) { return key * 10, nil }

	cache.SetFrame(1)
	_, _ = cache.Get(1, build)
	_, _ = cache.Get(2, build) // retires 10 at frame 1
	cache.SetFrame(3)
	_, _ = cache.Get(3, build) // retires 20 at frame 3

	var destroyed []int
	collect := func(v int) { destroyed = append(destroyed, v) }

	assert.Equal(t, 0, cache.Collect(0, collect))
	assert.Equal(t, 1, cache.Collect(2, collect))
	assert.Equal(t, []int{10}, destroyed)
	assert.Equal(t, []int{20}, cache.Unused())
	assert.Equal(t, 1, cache.Collect(3, collect))
	assert.Equal(t, []int{10, 20}, destroyed)
}

func TestCacheMapRetireAll(t *testing.T) {
	cache, err := NewCacheMap[int, int](4)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, _ = cache.Get(i, func(k int) (int, error) { return k, nil })
	}

	cache.RetireAll()

	assert.Equal(t, 0, cache.Len())
	assert.ElementsMatch(t, []int{0, 1, 2}, cache.Unused())
}

func TestNewCacheMapRejectsZeroCapacity(t *testing.T) {
	_, err := NewCacheMap[int, int](0)
	assert.ErrorIs(t, err, core.ErrInvalidConfig)
}
