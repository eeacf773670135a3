package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spaghettifunk/framegraph/engine/containers"
	"github.com/spaghettifunk/framegraph/engine/core"
	"github.com/spaghettifunk/framegraph/engine/renderer"
	"github.com/spaghettifunk/framegraph/engine/renderer/metadata"
)

// PlannedImageBarrier is an image barrier whose image is resolved when the
// plan is replayed, so the plan survives images being recreated.
type PlannedImageBarrier struct {
	Image  ImageHandle
	Name   string
	Aspect metadata.ImageAspect
	metadata.Transition
}

type PlannedBufferBarrier struct {
	Buffer BufferHandle
	Name   string
	metadata.Transition
}

// SampledImage is an input image bound to a sampler before recording.
type SampledImage struct {
	Binding uint32
	Image   ImageHandle
}

// Step is one pass of a compiled plan.
type Step struct {
	// Pass is the declaration index of the pass.
	Pass int
	Name string
	Kind PassKind

	// Barriers recorded before the pass.
	ImageBarriers  []PlannedImageBarrier
	BufferBarriers []PlannedBufferBarrier

	// Graphics passes only. Attachments are ordered like the renderpass:
	// color slots ascending, depth last.
	RenderpassKey     uint64
	RenderpassDesc    metadata.RenderpassDesc
	Attachments       []ImageHandle
	ClearValues       []metadata.ClearValue
	FramebufferWidth  uint32
	FramebufferHeight uint32

	Area    metadata.Rect
	Samples []SampledImage

	// Present is the transition of color attachment 0 to the present
	// layout, recorded after the pass.
	Present *PlannedImageBarrier

	barriers metadata.Barriers
}

func (s *Step) BarrierCount() int {
	return len(s.ImageBarriers) + len(s.BufferBarriers)
}

// Plan is the compiled, replayable form of a graph at a given size.
type Plan struct {
	Width  uint32
	Height uint32
	// Order lists declaration indices in execution order.
	Order []int
	Steps []Step
}

// BarrierCount counts the barriers recorded between passes.
func (p *Plan) BarrierCount() int {
	n := 0
	for i := range p.Steps {
		n += p.Steps[i].BarrierCount()
	}
	return n
}

func (p *Plan) PassNames() []string {
	names := make([]string, len(p.Steps))
	for i := range p.Steps {
		names[i] = p.Steps[i].Name
	}
	return names
}

func (p *Plan) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "plan %dx%d, %d passes, %d barriers\n", p.Width, p.Height, len(p.Steps), p.BarrierCount())
	for i := range p.Steps {
		s := &p.Steps[i]
		fmt.Fprintf(&sb, "%2d. %s (%s) area %dx%d\n", i, s.Name, s.Kind, s.Area.Width, s.Area.Height)
		for _, b := range s.ImageBarriers {
			fmt.Fprintf(&sb, "      barrier image %q %s\n", b.Name, b.Transition)
		}
		for _, b := range s.BufferBarriers {
			fmt.Fprintf(&sb, "      barrier buffer %q [%s, %s] -> [%s, %s]\n", b.Name,
				b.SrcStages, b.SrcAccess, b.DstStages, b.DstAccess)
		}
		if s.Kind == PassGraphics {
			fmt.Fprintf(&sb, "      renderpass %016x %s\n", s.RenderpassKey, s.RenderpassDesc)
			fmt.Fprintf(&sb, "      framebuffer %dx%d\n", s.FramebufferWidth, s.FramebufferHeight)
		}
		for _, smp := range s.Samples {
			fmt.Fprintf(&sb, "      sample binding %d\n", smp.Binding)
		}
		if s.Present != nil {
			fmt.Fprintf(&sb, "      present %q %s\n", s.Present.Name, s.Present.Transition)
		}
	}
	return sb.String()
}

// compiled is the size independent result of compiling the passes.
type compiled struct {
	order    []int
	accesses [][]resourceAccess
}

// compilePasses validates the passes, builds the dependency graph and sorts
// it.
func compilePasses[A any](passes []*Pass[A], res *GraphResources) (*compiled, error) {
	if err := validatePasses(passes, res); err != nil {
		return nil, err
	}

	names := make([]string, len(passes))
	accesses := make([][]resourceAccess, len(passes))
	for i, p := range passes {
		names[i] = p.name
		accesses[i] = passAccesses(p)
	}

	g, err := dependencyGraph(names, accesses)
	if err != nil {
		return nil, err
	}
	order, err := sortPasses(g, len(passes))
	if err != nil {
		return nil, err
	}

	for i, idx := range order {
		if passes[idx].present && i != len(order)-1 {
			return nil, fmt.Errorf("%w: %q runs before %q", core.ErrPresentNotLast,
				passes[idx].name, passes[order[len(order)-1]].name)
		}
	}
	return &compiled{order: order, accesses: accesses}, nil
}

type attachmentRef struct {
	image  ImageHandle
	config metadata.AttachmentConfig
}

func orderedAttachments[A any](p *Pass[A]) []attachmentRef {
	var refs []attachmentRef
	for _, o := range p.outputs {
		if o.Kind == OutputDrawImage {
			refs = append(refs, attachmentRef{image: o.Image, config: o.Attachment})
		}
	}
	sort.SliceStable(refs, func(i, j int) bool {
		a, b := refs[i].config.Kind, refs[j].config.Kind
		if a.IsDepth() != b.IsDepth() {
			return !a.IsDepth()
		}
		return a.Slot() < b.Slot()
	})
	return refs
}

// buildPlan walks the passes in execution order and derives the barriers,
// renderpasses and areas for a graph of width x height. Renderpasses are
// created through the cache.
func buildPlan[A any](
	passes []*Pass[A],
	c *compiled,
	res *GraphResources,
	renderpasses *containers.CacheMap[uint64, *metadata.Renderpass],
	device renderer.Device,
	width, height uint32,
) (*Plan, error) {
	plan := &Plan{
		Width:  width,
		Height: height,
		Order:  append([]int(nil), c.order...),
		Steps:  make([]Step, 0, len(c.order)),
	}
	last := make(map[resourceKey][]metadata.AccessType)

	for _, idx := range c.order {
		p := passes[idx]
		step := Step{
			Pass: idx,
			Name: p.name,
			Kind: p.kind,
		}
		initialLayouts := make(map[resourceKey]metadata.ImageLayout)

		for _, ra := range c.accesses[idx] {
			prev := last[ra.key]
			next := ra.accesses
			last[ra.key] = next

			var t metadata.Transition
			switch {
			case len(prev) == 0:
				if ra.key.buffer || ra.attachment {
					continue
				}
				t = metadata.TransitionOf(nil, next)
				if t.NewLayout == metadata.ImageLayoutUndefined {
					continue
				}
			case metadata.IsHazard(prev, next):
				t = metadata.TransitionOf(prev, next)
			default:
				continue
			}

			if ra.key.buffer {
				buf, _ := res.GetBuffer(ra.buffer)
				step.BufferBarriers = append(step.BufferBarriers, PlannedBufferBarrier{
					Buffer:     ra.buffer,
					Name:       buf.Name,
					Transition: t,
				})
				continue
			}
			img, _ := res.GetImage(ra.image)
			step.ImageBarriers = append(step.ImageBarriers, PlannedImageBarrier{
				Image:      ra.image,
				Name:       img.Name,
				Aspect:     img.Aspect(),
				Transition: t,
			})
			initialLayouts[ra.key] = t.NewLayout
		}

		if p.kind == PassGraphics {
			desc := metadata.RenderpassDesc{Name: p.name}
			for _, ref := range orderedAttachments(p) {
				img, _ := res.GetImage(ref.image)
				ad := metadata.AttachmentDesc{
					Kind:           ref.config.Kind,
					Format:         img.Config.Format,
					Samples:        img.Config.SampleCount(),
					LoadOp:         ref.config.LoadOp,
					StoreOp:        ref.config.StoreOp,
					StencilLoadOp:  ref.config.StencilLoadOp,
					StencilStoreOp: ref.config.StencilStoreOp,
					InitialLayout:  initialLayouts[resourceKey{index: ref.image.Index()}],
					Layout:         metadata.AccessInfoOf(ref.config.Access).Layout,
				}
				if ref.config.Kind.IsDepth() {
					depth := ad
					desc.Depth = &depth
				} else {
					desc.Color = append(desc.Color, ad)
				}
				step.Attachments = append(step.Attachments, ref.image)
				step.ClearValues = append(step.ClearValues, metadata.ClearValueFor(ref.config.Kind))

				// every attachment must cover the whole framebuffer
				w, h := res.physicalSize(ref.image, width, height)
				if len(step.Attachments) == 1 {
					step.FramebufferWidth, step.FramebufferHeight = w, h
				} else if w != step.FramebufferWidth || h != step.FramebufferHeight {
					return nil, fmt.Errorf("%w: pass %q mixes attachment sizes %dx%d and %dx%d (%q)",
						core.ErrInvalidAttachment, p.name, step.FramebufferWidth, step.FramebufferHeight, w, h, img.Name)
				}
			}

			key := desc.Key()
			if _, err := renderpasses.Get(key, func(uint64) (*metadata.Renderpass, error) {
				return device.CreateRenderpass(desc)
			}); err != nil {
				return nil, fmt.Errorf("pass %q: failed to create renderpass: %w", p.name, err)
			}
			step.RenderpassKey = key
			step.RenderpassDesc = desc
		}

		switch {
		case p.renderArea != nil:
			w, h := p.renderArea.PhysicalSize(width, height)
			step.Area = metadata.Rect{Width: w, Height: h}
		case p.kind == PassGraphics:
			step.Area = metadata.Rect{Width: step.FramebufferWidth, Height: step.FramebufferHeight}
		default:
			step.Area = metadata.Rect{Width: width, Height: height}
		}

		for _, in := range p.inputs {
			if in.Kind == InputSampleImage {
				step.Samples = append(step.Samples, SampledImage{Binding: in.Binding, Image: in.Image})
			}
		}

		if p.present {
			target := step.Attachments[0]
			key := resourceKey{index: target.Index()}
			present := []metadata.AccessType{metadata.AccessTypePresent}
			img, _ := res.GetImage(target)
			step.Present = &PlannedImageBarrier{
				Image:      target,
				Name:       img.Name,
				Aspect:     img.Aspect(),
				Transition: metadata.TransitionOf(last[key], present),
			}
			last[key] = present
		}

		plan.Steps = append(plan.Steps, step)
	}
	return plan, nil
}
