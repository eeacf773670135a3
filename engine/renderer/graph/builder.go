package graph

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/spaghettifunk/framegraph/engine/containers"
	"github.com/spaghettifunk/framegraph/engine/core"
	"github.com/spaghettifunk/framegraph/engine/renderer"
	"github.com/spaghettifunk/framegraph/engine/renderer/metadata"
)

// Builder collects the resources and passes of a graph. Images are
// allocated as soon as they are declared; if Build fails everything the
// builder allocated is destroyed again.
type Builder[A any] struct {
	device    renderer.Device
	config    Config
	width     uint32
	height    uint32
	resources *GraphResources
	passes    []*Pass[A]
	done      bool
}

func NewBuilder[A any](device renderer.Device, config Config, width, height uint32) *Builder[A] {
	return &Builder[A]{
		device:    device,
		config:    config,
		width:     width,
		height:    height,
		resources: NewGraphResources(),
	}
}

func (b *Builder[A]) check() error {
	if b.done {
		return fmt.Errorf("%w: builder already used", core.ErrInvalidConfig)
	}
	if b.width == 0 || b.height == 0 {
		return fmt.Errorf("%w: %dx%d", core.ErrInvalidSize, b.width, b.height)
	}
	return nil
}

// CreateImage allocates an image sized by size relative to the graph.
func (b *Builder[A]) CreateImage(name string, config metadata.ImageConfig, size metadata.ImageSize) (ImageHandle, error) {
	if err := b.check(); err != nil {
		return ImageHandle{}, err
	}
	if err := size.Validate(); err != nil {
		return ImageHandle{}, fmt.Errorf("image %q: %w", name, err)
	}
	if _, exists := b.resources.GetImageByName(name); exists {
		return ImageHandle{}, fmt.Errorf("%w: image %q", core.ErrDuplicateName, name)
	}
	w, h := size.PhysicalSize(b.width, b.height)
	img, err := b.device.CreateImage(name, config, w, h)
	if err != nil {
		return ImageHandle{}, fmt.Errorf("failed to create image %q: %w", name, err)
	}
	handle, err := b.resources.AddImage(name, img, size)
	if err != nil {
		b.device.DestroyImage(img)
		return ImageHandle{}, err
	}
	return handle, nil
}

// ImportImage adds an image the caller owns, e.g. a swapchain image. The
// graph never resizes nor destroys it.
func (b *Builder[A]) ImportImage(name string, image *metadata.Image) (ImageHandle, error) {
	if b.done {
		return ImageHandle{}, fmt.Errorf("%w: builder already used", core.ErrInvalidConfig)
	}
	return b.resources.ImportImage(name, image)
}

func (b *Builder[A]) CreateBuffer(name string, config metadata.BufferConfig) (BufferHandle, error) {
	if b.done {
		return BufferHandle{}, fmt.Errorf("%w: builder already used", core.ErrInvalidConfig)
	}
	if config.Size == 0 {
		return BufferHandle{}, fmt.Errorf("%w: buffer %q has no size", core.ErrInvalidConfig, name)
	}
	if _, exists := b.resources.GetBufferByName(name); exists {
		return BufferHandle{}, fmt.Errorf("%w: buffer %q", core.ErrDuplicateName, name)
	}
	buf, err := b.device.CreateBuffer(name, config)
	if err != nil {
		return BufferHandle{}, fmt.Errorf("failed to create buffer %q: %w", name, err)
	}
	handle, err := b.resources.AddBuffer(name, buf)
	if err != nil {
		b.device.DestroyBuffer(buf)
		return BufferHandle{}, err
	}
	return handle, nil
}

func (b *Builder[A]) ImportBuffer(name string, buffer *metadata.Buffer) (BufferHandle, error) {
	if b.done {
		return BufferHandle{}, fmt.Errorf("%w: builder already used", core.ErrInvalidConfig)
	}
	return b.resources.ImportBuffer(name, buffer)
}

// AddPass appends a pass. The declaration order breaks ties between
// independent passes.
func (b *Builder[A]) AddPass(pass *Pass[A]) {
	b.passes = append(b.passes, pass)
}

// Resources gives access to the declared images, e.g. to look one up by
// name while declaring passes.
func (b *Builder[A]) Resources() *GraphResources {
	return b.resources
}

// Build compiles the passes into a graph. On error nothing the builder
// allocated survives and the builder cannot be reused.
func (b *Builder[A]) Build() (*Graph[A], error) {
	g, err := b.build()
	if err != nil {
		core.LogError("failed to build graph: %v", err)
		if !b.done {
			b.resources.Destroy(b.device)
			b.done = true
		}
		return nil, err
	}
	b.done = true
	return g, nil
}

func (b *Builder[A]) build() (*Graph[A], error) {
	if err := b.check(); err != nil {
		return nil, err
	}
	if err := b.config.Validate(); err != nil {
		return nil, err
	}
	if len(b.passes) == 0 {
		return nil, fmt.Errorf("%w: graph has no passes", core.ErrInvalidConfig)
	}

	c, err := compilePasses(b.passes, b.resources)
	if err != nil {
		return nil, err
	}

	renderpasses, err := containers.NewCacheMap[uint64, *metadata.Renderpass](b.config.RenderpassCacheCapacity)
	if err != nil {
		return nil, err
	}
	plan, err := buildPlan(b.passes, c, b.resources, renderpasses, b.device, b.width, b.height)
	if err != nil {
		renderpasses.Destroy(b.device.DestroyRenderpass)
		return nil, err
	}

	executor, err := newExecutor(b.device, b.config, b.passes, plan, b.resources, renderpasses)
	if err != nil {
		renderpasses.Destroy(b.device.DestroyRenderpass)
		return nil, err
	}

	g := &Graph[A]{
		id:           uuid.New(),
		device:       b.device,
		config:       b.config,
		passes:       b.passes,
		compiled:     c,
		resources:    b.resources,
		renderpasses: renderpasses,
		executor:     executor,
		plan:         plan,
		width:        b.width,
		height:       b.height,
	}
	if renderpasses.Len() < countRenderpasses(plan) {
		core.LogWarn("graph %s: renderpass cache holds %d of %d renderpasses, they will be rebuilt every frame",
			g.id, renderpasses.Cap(), countRenderpasses(plan))
	}
	core.LogInfo("graph %s compiled: %d passes, %d barriers, %dx%d",
		g.id, len(plan.Steps), plan.BarrierCount(), b.width, b.height)
	return g, nil
}

func countRenderpasses(plan *Plan) int {
	keys := make(map[uint64]bool)
	for i := range plan.Steps {
		if plan.Steps[i].Kind == PassGraphics {
			keys[plan.Steps[i].RenderpassKey] = true
		}
	}
	return len(keys)
}
