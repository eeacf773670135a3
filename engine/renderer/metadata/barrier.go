package metadata

import "fmt"

/** @brief Image aspect flags. Bit values match the Vulkan flags. */
type ImageAspect uint32

const (
	ImageAspectColor   ImageAspect = 0x1
	ImageAspectDepth   ImageAspect = 0x2
	ImageAspectStencil ImageAspect = 0x4
)

// AspectOf returns the aspects an image of the given format exposes.
func AspectOf(format Format) ImageAspect {
	if !format.IsDepth() {
		return ImageAspectColor
	}
	if format.HasStencil() {
		return ImageAspectDepth | ImageAspectStencil
	}
	return ImageAspectDepth
}

/** @brief Execution and memory dependency between two sets of accesses. */
type Transition struct {
	SrcStages PipelineStage
	DstStages PipelineStage
	SrcAccess Access
	DstAccess Access
	OldLayout ImageLayout
	NewLayout ImageLayout
}

func (t Transition) String() string {
	return fmt.Sprintf("[%s, %s, %s] -> [%s, %s, %s]",
		t.SrcStages, t.SrcAccess, t.OldLayout,
		t.DstStages, t.DstAccess, t.NewLayout)
}

// TransitionOf computes the dependency from prev to next. Only writes in
// prev make memory available; the next accesses are made visible when
// something was written or the layout changes. An empty prev means the
// contents are discarded and the old layout is Undefined.
func TransitionOf(prev, next []AccessType) Transition {
	var t Transition

	for _, a := range prev {
		info := AccessInfoOf(a)
		t.SrcStages |= info.Stages
		if a.IsWrite() {
			t.SrcAccess |= info.Access
		}
	}
	t.OldLayout = layoutOf(prev)

	for _, a := range next {
		info := AccessInfoOf(a)
		t.DstStages |= info.Stages
	}
	t.NewLayout = layoutOf(next)

	if t.SrcAccess != AccessNone || t.OldLayout != t.NewLayout {
		for _, a := range next {
			t.DstAccess |= AccessInfoOf(a).Access
		}
	}

	if t.SrcStages == PipelineStageNone {
		t.SrcStages = PipelineStageTopOfPipe
	}
	if t.DstStages == PipelineStageNone {
		t.DstStages = PipelineStageBottomOfPipe
	}
	return t
}

// layoutOf returns the single layout every access agrees on, or General
// when they disagree.
func layoutOf(accesses []AccessType) ImageLayout {
	if len(accesses) == 0 {
		return ImageLayoutUndefined
	}
	layout := AccessInfoOf(accesses[0]).Layout
	for _, a := range accesses[1:] {
		if AccessInfoOf(a).Layout != layout {
			return ImageLayoutGeneral
		}
	}
	return layout
}

/** @brief A layout transition and memory dependency on one image. */
type ImageBarrier struct {
	Image  *Image
	Aspect ImageAspect
	Transition
}

func (b ImageBarrier) String() string {
	name := "<nil>"
	if b.Image != nil {
		name = b.Image.Name
	}
	return fmt.Sprintf("image %q %s", name, b.Transition)
}

/** @brief A memory dependency on one buffer. Layouts are ignored. */
type BufferBarrier struct {
	Buffer *Buffer
	Transition
}

func (b BufferBarrier) String() string {
	name := "<nil>"
	if b.Buffer != nil {
		name = b.Buffer.Name
	}
	return fmt.Sprintf("buffer %q [%s, %s] -> [%s, %s]", name,
		b.SrcStages, b.SrcAccess, b.DstStages, b.DstAccess)
}

/** @brief Barriers recorded before a pass. */
type Barriers struct {
	Images  []ImageBarrier
	Buffers []BufferBarrier
}

func (b Barriers) Len() int {
	return len(b.Images) + len(b.Buffers)
}

func (b Barriers) IsEmpty() bool {
	return b.Len() == 0
}
