package containers

import (
	"fmt"

	"github.com/spaghettifunk/framegraph/engine/core"
)

// PerFrame holds one T per frame in flight. The cursor is advanced once per
// frame, so the CPU writes slot i while the GPU may still read the others.
type PerFrame[T any] struct {
	items  []T
	cursor int
}

func NewPerFrame[T any](frames int, init func(index int) (T, error)) (*PerFrame[T], error) {
	if frames < 1 {
		return nil, fmt.Errorf("%w: per frame ring needs at least one slot, got %d", core.ErrInvalidConfig, frames)
	}
	items := make([]T, frames)
	if init != nil {
		for i := range items {
			v, err := init(i)
			if err != nil {
				return nil, err
			}
			items[i] = v
		}
	}
	return &PerFrame[T]{items: items}, nil
}

func (p *PerFrame[T]) Get() T {
	return p.items[p.cursor]
}

func (p *PerFrame[T]) GetMut() *T {
	return &p.items[p.cursor]
}

// Index is the slot the cursor points at.
func (p *PerFrame[T]) Index() int {
	return p.cursor
}

func (p *PerFrame[T]) Len() int {
	return len(p.items)
}

func (p *PerFrame[T]) Advance() {
	p.cursor = (p.cursor + 1) % len(p.items)
}

// Each visits every slot, not only the current one.
func (p *PerFrame[T]) Each(fn func(index int, item *T)) {
	for i := range p.items {
		fn(i, &p.items[i])
	}
}
