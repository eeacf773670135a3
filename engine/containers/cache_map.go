package containers

import (
	"fmt"

	"github.com/hashicorp/golang-lru/v2/simplelru"
	"github.com/spaghettifunk/framegraph/engine/core"
)

// CacheMap is a bounded LRU cache for GPU objects. Entries that fall out of
// the cache are not destroyed: they are moved to an unused list tagged with
// the current frame, because in-flight command buffers may still reference
// them. The owner releases them with GarbageCollect or Collect.
type CacheMap[K comparable, V any] struct {
	lru      *simplelru.LRU[K, V]
	unused   *Graveyard[V]
	frame    uint64
	capacity int
}

func NewCacheMap[K comparable, V any](capacity int) (*CacheMap[K, V], error) {
	if capacity < 1 {
		return nil, fmt.Errorf("%w: cache capacity must be positive, got %d", core.ErrInvalidConfig, capacity)
	}
	c := &CacheMap[K, V]{
		unused:   NewGraveyard[V](),
		capacity: capacity,
	}
	lru, err := simplelru.NewLRU[K, V](capacity, func(_ K, value V) {
		c.unused.Bury(value, c.frame)
	})
	if err != nil {
		return nil, err
	}
	c.lru = lru
	return c, nil
}

// Get returns the cached value for key and marks it most recently used.
// On a miss build is called; if it fails the cache is left untouched.
func (c *CacheMap[K, V]) Get(key K, build func(K) (V, error)) (V, error) {
	if v, ok := c.lru.Get(key); ok {
		return v, nil
	}
	v, err := build(key)
	if err != nil {
		var zero V
		return zero, err
	}
	c.lru.Add(key, v)
	return v, nil
}

// Peek looks a key up without touching its recency.
func (c *CacheMap[K, V]) Peek(key K) (V, bool) {
	return c.lru.Peek(key)
}

func (c *CacheMap[K, V]) Contains(key K) bool {
	return c.lru.Contains(key)
}

func (c *CacheMap[K, V]) Len() int {
	return c.lru.Len()
}

func (c *CacheMap[K, V]) Cap() int {
	return c.capacity
}

// Keys returns the live keys from oldest to newest.
func (c *CacheMap[K, V]) Keys() []K {
	return c.lru.Keys()
}

// Values returns the live values from oldest to newest.
func (c *CacheMap[K, V]) Values() []V {
	return c.lru.Values()
}

// Unused returns the values waiting for destruction.
func (c *CacheMap[K, V]) Unused() []V {
	return c.unused.Values()
}

// SetFrame sets the frame index used to tag entries retired from now on.
func (c *CacheMap[K, V]) SetFrame(frame uint64) {
	c.frame = frame
}

// Retire moves a single live entry to the unused list.
func (c *CacheMap[K, V]) Retire(key K) bool {
	return c.lru.Remove(key)
}

// RetireAll moves every live entry to the unused list.
func (c *CacheMap[K, V]) RetireAll() {
	c.lru.Purge()
}

// GarbageCollect destroys every unused entry. Live entries are untouched.
// The caller asserts that the GPU is done with everything that was retired.
func (c *CacheMap[K, V]) GarbageCollect(destroy func(V)) int {
	return c.unused.CollectAll(destroy)
}

// Collect destroys unused entries retired at or before completedFrame.
func (c *CacheMap[K, V]) Collect(completedFrame uint64, destroy func(V)) int {
	return c.unused.Collect(completedFrame, destroy)
}

// Destroy releases live and unused entries. Only safe once the device is idle.
func (c *CacheMap[K, V]) Destroy(destroy func(V)) {
	c.lru.Purge()
	c.unused.CollectAll(destroy)
}
