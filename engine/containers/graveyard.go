package containers

type retired[T any] struct {
	value T
	frame uint64
}

// Graveyard holds values that are no longer wanted but may still be in use
// by GPU work. Each value is tagged with the frame index it was retired at
// and is only released once that frame is known to be complete.
type Graveyard[T any] struct {
	entries []retired[T]
}

func NewGraveyard[T any]() *Graveyard[T] {
	return &Graveyard[T]{}
}

func (g *Graveyard[T]) Bury(value T, frame uint64) {
	g.entries = append(g.entries, retired[T]{value: value, frame: frame})
}

func (g *Graveyard[T]) Len() int {
	return len(g.entries)
}

// Values returns the retired values, oldest first.
func (g *Graveyard[T]) Values() []T {
	values := make([]T, 0, len(g.entries))
	for _, e := range g.entries {
		values = append(values, e.value)
	}
	return values
}

// Collect destroys every value retired at or before completedFrame and
// returns how many were destroyed. Values retired later stay buried.
func (g *Graveyard[T]) Collect(completedFrame uint64, destroy func(T)) int {
	kept := g.entries[:0]
	n := 0
	for _, e := range g.entries {
		if e.frame <= completedFrame {
			if destroy != nil {
				destroy(e.value)
			}
			n++
			continue
		}
		kept = append(kept, e)
	}
	clear(g.entries[len(kept):])
	g.entries = kept
	return n
}

// CollectAll destroys everything regardless of frame. Only safe once the
// device is idle.
func (g *Graveyard[T]) CollectAll(destroy func(T)) int {
	n := len(g.entries)
	for _, e := range g.entries {
		if destroy != nil {
			destroy(e.value)
		}
	}
	clear(g.entries)
	g.entries = g.entries[:0]
	return n
}
