package containers

import (
	"fmt"
	"sync/atomic"

	"github.com/spaghettifunk/framegraph/engine/core"
)

var storageOwners atomic.Uint32

// Handle is an opaque reference into a Storage. It does not own the value:
// the storage does. A handle becomes stale when its slot is removed, and it
// never resolves inside a storage other than the one that issued it.
type Handle[T any] struct {
	index      uint32
	generation uint32
	owner      uint32
}

// IsValid reports whether the handle was ever issued by a storage.
func (h Handle[T]) IsValid() bool {
	return h.owner != 0
}

// Index is the slot index; only useful for debugging and ordering.
func (h Handle[T]) Index() uint32 {
	return h.index
}

func (h Handle[T]) Generation() uint32 {
	return h.generation
}

func (h Handle[T]) String() string {
	if !h.IsValid() {
		return "Handle(invalid)"
	}
	return fmt.Sprintf("Handle(%d#%d@%d)", h.index, h.generation, h.owner)
}

type slot[T any, M any] struct {
	value      T
	metadata   M
	generation uint32
	occupied   bool
}

// Storage is a flat arena of T values with per-slot metadata M. Removed
// slots are recycled and their generation is bumped so outstanding handles
// to the old value are detected.
type Storage[T any, M any] struct {
	owner uint32
	slots []slot[T, M]
	free  []uint32
	count int
}

func NewStorage[T any, M any]() *Storage[T, M] {
	return &Storage[T, M]{
		owner: storageOwners.Add(1),
	}
}

// Add stores value and returns its handle.
func (s *Storage[T, M]) Add(value T, metadata M) Handle[T] {
	var index uint32
	if n := len(s.free); n > 0 {
		index = s.free[n-1]
		s.free = s.free[:n-1]
	} else {
		index = uint32(len(s.slots))
		s.slots = append(s.slots, slot[T, M]{generation: 1})
	}
	sl := &s.slots[index]
	sl.value = value
	sl.metadata = metadata
	sl.occupied = true
	s.count++

	return Handle[T]{index: index, generation: sl.generation, owner: s.owner}
}

func (s *Storage[T, M]) lookup(h Handle[T]) (*slot[T, M], error) {
	if h.owner != s.owner || int(h.index) >= len(s.slots) {
		return nil, fmt.Errorf("%w: %s", core.ErrUnknownHandle, h)
	}
	sl := &s.slots[h.index]
	if !sl.occupied || sl.generation != h.generation {
		return nil, fmt.Errorf("%w: %s", core.ErrStaleHandle, h)
	}
	return sl, nil
}

// Check returns nil when h resolves in this storage, otherwise
// core.ErrUnknownHandle or core.ErrStaleHandle.
func (s *Storage[T, M]) Check(h Handle[T]) error {
	_, err := s.lookup(h)
	return err
}

func (s *Storage[T, M]) Get(h Handle[T]) (T, bool) {
	sl, err := s.lookup(h)
	if err != nil {
		var zero T
		return zero, false
	}
	return sl.value, true
}

func (s *Storage[T, M]) GetWithMetadata(h Handle[T]) (T, M, bool) {
	sl, err := s.lookup(h)
	if err != nil {
		var zeroT T
		var zeroM M
		return zeroT, zeroM, false
	}
	return sl.value, sl.metadata, true
}

// Replace swaps the value and metadata stored under h and returns the
// previous ones. The handle stays valid.
func (s *Storage[T, M]) Replace(h Handle[T], value T, metadata M) (T, M, error) {
	sl, err := s.lookup(h)
	if err != nil {
		var zeroT T
		var zeroM M
		return zeroT, zeroM, err
	}
	oldValue, oldMetadata := sl.value, sl.metadata
	sl.value = value
	sl.metadata = metadata
	return oldValue, oldMetadata, nil
}

// Remove frees the slot and invalidates every handle pointing at it.
func (s *Storage[T, M]) Remove(h Handle[T]) (T, error) {
	sl, err := s.lookup(h)
	if err != nil {
		var zero T
		return zero, err
	}
	value := sl.value
	var zeroT T
	var zeroM M
	sl.value = zeroT
	sl.metadata = zeroM
	sl.occupied = false
	sl.generation++
	s.free = append(s.free, h.index)
	s.count--
	return value, nil
}

func (s *Storage[T, M]) Len() int {
	return s.count
}

// Each visits live values in slot order. Returning false stops the walk.
func (s *Storage[T, M]) Each(fn func(h Handle[T], value T, metadata M) bool) {
	for i := range s.slots {
		sl := &s.slots[i]
		if !sl.occupied {
			continue
		}
		h := Handle[T]{index: uint32(i), generation: sl.generation, owner: s.owner}
		if !fn(h, sl.value, sl.metadata) {
			return
		}
	}
}
