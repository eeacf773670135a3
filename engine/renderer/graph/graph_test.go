package graph

import (
	"context"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/framegraph/engine/core"
	"github.com/spaghettifunk/framegraph/engine/renderer"
	"github.com/spaghettifunk/framegraph/engine/renderer/headless"
	"github.com/spaghettifunk/framegraph/engine/renderer/metadata"
)

type frameArgs struct {
	fail bool
}

func drawFullscreen(cmd renderer.CommandRecorder, _ *RecordContext, _ frameArgs) error {
	cmd.Draw(3, 1, 0, 0)
	return nil
}

func newTestBuilder(dev *headless.Device, width, height uint32) *Builder[frameArgs] {
	return NewBuilder[frameArgs](dev, DefaultConfig(), width, height)
}

func colorImage(t *testing.T, b *Builder[frameArgs], name string, size metadata.ImageSize) ImageHandle {
	t.Helper()
	h, err := b.CreateImage(name, metadata.ColorImageConfig(metadata.FormatR8G8B8A8Unorm), size)
	require.NoError(t, err)
	return h
}

// depthToFXAA declares a depth prepass followed by an FXAA pass sampling
// its depth.
func depthToFXAA(t *testing.T, b *Builder[frameArgs]) (ImageHandle, ImageHandle) {
	t.Helper()
	depth, err := b.CreateImage("Depth", metadata.DepthImageConfig(metadata.FormatD32Sfloat), metadata.FullScreen())
	require.NoError(t, err)
	out := colorImage(t, b, "FXAA", metadata.FullScreen())

	b.AddPass(NewGraphicsPass[frameArgs]("DepthPrepass").
		WithOutput("depth", DrawImage(depth, metadata.DepthOnlyDefault())).
		WithRecordFunc(drawFullscreen))
	b.AddPass(NewGraphicsPass[frameArgs]("FXAA").
		WithInput("depth", SampleImage(depth, metadata.AccessTypeFragmentShaderReadSampledImage, 0)).
		WithOutput("color", DrawImage(out, metadata.ColorDefault(0))).
		WithRecordFunc(drawFullscreen))
	return depth, out
}

func TestProducerRunsBeforeConsumer(t *testing.T) {
	dev := headless.NewDevice()
	b := newTestBuilder(dev, 1280, 720)
	color := colorImage(t, b, "Color", metadata.FullScreen())
	out := colorImage(t, b, "Out", metadata.FullScreen())

	// declared consumer first on purpose
	b.AddPass(NewGraphicsPass[frameArgs]("Consumer").
		WithInput("color", SampleImage(color, metadata.AccessTypeFragmentShaderReadSampledImage, 0)).
		WithOutput("out", DrawImage(out, metadata.ColorDefault(0))))
	b.AddPass(NewGraphicsPass[frameArgs]("Producer").
		WithOutput("color", DrawImage(color, metadata.ColorDefault(0))))

	g, err := b.Build()
	require.NoError(t, err)
	defer g.Destroy()

	plan := g.Plan()
	assert.Equal(t, []int{1, 0}, plan.Order)
	assert.Equal(t, []string{"Producer", "Consumer"}, plan.PassNames())
	require.Equal(t, 1, plan.BarrierCount())

	barrier := plan.Steps[1].ImageBarriers[0]
	assert.Equal(t, "Color", barrier.Name)
	assert.Equal(t, metadata.PipelineStageColorAttachmentOutput, barrier.SrcStages)
	assert.Equal(t, metadata.AccessColorAttachmentWrite, barrier.SrcAccess)
	assert.Equal(t, metadata.PipelineStageFragmentShader, barrier.DstStages)
	assert.Equal(t, metadata.AccessShaderRead, barrier.DstAccess)
	assert.Equal(t, metadata.ImageLayoutColorAttachmentOptimal, barrier.OldLayout)
	assert.Equal(t, metadata.ImageLayoutShaderReadOnlyOptimal, barrier.NewLayout)
}

func TestIndependentPassesKeepDeclarationOrder(t *testing.T) {
	dev := headless.NewDevice()
	b := newTestBuilder(dev, 640, 480)
	for _, name := range []string{"Shadow", "GBuffer", "Overlay"} {
		img := colorImage(t, b, name, metadata.FullScreen())
		b.AddPass(NewGraphicsPass[frameArgs](name).WithOutput("color", DrawImage(img, metadata.ColorDefault(0))))
	}

	g, err := b.Build()
	require.NoError(t, err)
	defer g.Destroy()

	assert.Equal(t, []int{0, 1, 2}, g.Plan().Order)
	assert.Zero(t, g.Plan().BarrierCount())
}

// dependencyEdges lists the successors of every pass.
func dependencyEdges(t *testing.T, passes ...*Pass[frameArgs]) map[int][]int {
	t.Helper()
	names := make([]string, len(passes))
	accesses := make([][]resourceAccess, len(passes))
	for i, p := range passes {
		names[i] = p.name
		accesses[i] = passAccesses(p)
	}
	g, err := dependencyGraph(names, accesses)
	require.NoError(t, err)
	adjacency, err := g.AdjacencyMap()
	require.NoError(t, err)

	edges := make(map[int][]int)
	for from, targets := range adjacency {
		for to := range targets {
			edges[from] = append(edges[from], to)
		}
		sort.Ints(edges[from])
	}
	return edges
}

func TestWriteAfterReadWaitsForReader(t *testing.T) {
	dev := headless.NewDevice()
	b := newTestBuilder(dev, 640, 480)
	luma, err := b.CreateImage("Luma", metadata.StorageImageConfig(metadata.FormatR32Sfloat), metadata.FullScreen())
	require.NoError(t, err)
	out := colorImage(t, b, "Out", metadata.FullScreen())

	first := NewComputePass[frameArgs]("FirstWrite").
		WithOutput("luma", WriteImage(luma, metadata.AccessTypeComputeShaderWrite))
	read := NewGraphicsPass[frameArgs]("Read").
		WithInput("luma", SampleImage(luma, metadata.AccessTypeFragmentShaderReadSampledImage, 0)).
		WithOutput("color", DrawImage(out, metadata.ColorDefault(0)))
	second := NewComputePass[frameArgs]("SecondWrite").
		WithOutput("luma", WriteImage(luma, metadata.AccessTypeComputeShaderWrite))
	b.AddPass(first)
	b.AddPass(read)
	b.AddPass(second)

	g, err := b.Build()
	require.NoError(t, err)
	defer g.Destroy()

	assert.Equal(t, map[int][]int{0: {1, 2}, 1: {2}}, dependencyEdges(t, first, read, second))

	plan := g.Plan()
	assert.Equal(t, []string{"FirstWrite", "Read", "SecondWrite"}, plan.PassNames())
	require.Len(t, plan.Steps[2].ImageBarriers, 1)
	barrier := plan.Steps[2].ImageBarriers[0]
	assert.Equal(t, "Luma", barrier.Name)
	assert.Equal(t, metadata.PipelineStageFragmentShader, barrier.SrcStages)
	assert.Equal(t, metadata.AccessNone, barrier.SrcAccess)
	assert.Equal(t, metadata.ImageLayoutShaderReadOnlyOptimal, barrier.OldLayout)
	assert.Equal(t, metadata.PipelineStageComputeShader, barrier.DstStages)
	assert.Equal(t, metadata.AccessShaderWrite, barrier.DstAccess)
	assert.Equal(t, metadata.ImageLayoutGeneral, barrier.NewLayout)
}

func TestWriteAfterWriteKeepsDeclarationOrder(t *testing.T) {
	dev := headless.NewDevice()
	b := newTestBuilder(dev, 640, 480)
	color := colorImage(t, b, "Color", metadata.FullScreen())
	other := colorImage(t, b, "Other", metadata.FullScreen())

	base := NewGraphicsPass[frameArgs]("Base").
		WithOutput("color", DrawImage(color, metadata.ColorDefault(0)))
	unrelated := NewGraphicsPass[frameArgs]("Unrelated").
		WithOutput("color", DrawImage(other, metadata.ColorDefault(0)))
	overlay := NewGraphicsPass[frameArgs]("Overlay").
		WithOutput("color", DrawImage(color, metadata.ColorDefault(0)))
	b.AddPass(base)
	b.AddPass(unrelated)
	b.AddPass(overlay)

	g, err := b.Build()
	require.NoError(t, err)
	defer g.Destroy()

	assert.Equal(t, map[int][]int{0: {2}}, dependencyEdges(t, base, unrelated, overlay))

	plan := g.Plan()
	assert.Equal(t, []string{"Base", "Unrelated", "Overlay"}, plan.PassNames())
	assert.Equal(t, 1, plan.BarrierCount())
	require.Len(t, plan.Steps[2].ImageBarriers, 1)
	barrier := plan.Steps[2].ImageBarriers[0]
	assert.Equal(t, "Color", barrier.Name)
	assert.Equal(t, metadata.PipelineStageColorAttachmentOutput, barrier.SrcStages)
	assert.Equal(t, metadata.AccessColorAttachmentWrite, barrier.SrcAccess)
	assert.Equal(t, metadata.PipelineStageColorAttachmentOutput, barrier.DstStages)
	assert.Equal(t, metadata.AccessColorAttachmentWrite, barrier.DstAccess)
	assert.Equal(t, metadata.ImageLayoutColorAttachmentOptimal, barrier.OldLayout)
	assert.Equal(t, metadata.ImageLayoutColorAttachmentOptimal, barrier.NewLayout)
	assert.Equal(t, metadata.ImageLayoutColorAttachmentOptimal, plan.Steps[2].RenderpassDesc.Color[0].InitialLayout)
}

func TestDepthPrepassToFXAA(t *testing.T) {
	dev := headless.NewDevice()
	b := newTestBuilder(dev, 1920, 1080)
	depth, _ := depthToFXAA(t, b)

	g, err := b.Build()
	require.NoError(t, err)

	plan := g.Plan()
	require.Len(t, plan.Steps, 2)
	assert.Equal(t, []string{"DepthPrepass", "FXAA"}, plan.PassNames())
	require.Equal(t, 1, plan.BarrierCount())

	barrier := plan.Steps[1].ImageBarriers[0]
	write := metadata.AccessInfoOf(metadata.AccessTypeDepthStencilAttachmentWrite)
	assert.Equal(t, "Depth", barrier.Name)
	assert.Equal(t, metadata.ImageAspectDepth, barrier.Aspect)
	assert.Equal(t, write.Stages, barrier.SrcStages)
	assert.Equal(t, metadata.AccessDepthStencilAttachmentWrite, barrier.SrcAccess)
	assert.Equal(t, metadata.PipelineStageFragmentShader, barrier.DstStages)
	assert.Equal(t, metadata.AccessShaderRead, barrier.DstAccess)
	assert.Equal(t, metadata.ImageLayoutDepthStencilAttachmentOptimal, barrier.OldLayout)
	assert.Equal(t, metadata.ImageLayoutShaderReadOnlyOptimal, barrier.NewLayout)

	assert.Equal(t, metadata.Rect{Width: 1920, Height: 1080}, plan.Steps[0].Area)
	require.NotNil(t, plan.Steps[0].RenderpassDesc.Depth)
	assert.Empty(t, plan.Steps[0].RenderpassDesc.Color)
	assert.Equal(t, []metadata.ClearValue{{Depth: 1}}, plan.Steps[0].ClearValues)

	byName, ok := g.Resources().GetImageByName("Depth")
	require.True(t, ok)
	assert.Equal(t, depth, byName)
	img, ok := g.Resources().GetImage(byName)
	require.True(t, ok)
	assert.Equal(t, uint32(1920), img.Width)
	assert.Equal(t, uint32(1080), img.Height)

	require.NoError(t, g.Execute(context.Background(), frameArgs{}))
	assert.Equal(t, 2, g.Framebuffers().Len())
	assert.Equal(t, 2, dev.Live(headless.KindFramebuffer))
	assert.Equal(t, 2, dev.Live(headless.KindRenderpass))

	frames := dev.Frames()
	require.Len(t, frames, 1)
	assert.Equal(t, []headless.Op{
		headless.OpBeginDebugRegion,
		headless.OpBeginRenderpass,
		headless.OpSetViewport,
		headless.OpSetScissor,
		headless.OpDraw,
		headless.OpEndRenderpass,
		headless.OpEndDebugRegion,
		headless.OpBeginDebugRegion,
		headless.OpBarrier,
		headless.OpBeginRenderpass,
		headless.OpSetViewport,
		headless.OpSetScissor,
		headless.OpBindImage,
		headless.OpDraw,
		headless.OpEndRenderpass,
		headless.OpEndDebugRegion,
	}, frames[0].Ops())

	bound := frames[0].Find(headless.OpBindImage)
	require.Len(t, bound, 1)
	assert.Same(t, img, bound[0].Image)

	require.NoError(t, g.Destroy())
	assert.Empty(t, dev.Leaks())
}

func TestComputeAndBufferBarriers(t *testing.T) {
	dev := headless.NewDevice()
	b := newTestBuilder(dev, 1920, 1080)
	luma, err := b.CreateImage("Luma", metadata.StorageImageConfig(metadata.FormatR32Sfloat), metadata.Relative(0.25, 0.25))
	require.NoError(t, err)
	histogram, err := b.CreateBuffer("Histogram", metadata.BufferConfig{Size: 256 * 4, Usage: metadata.BufferUsageStorage})
	require.NoError(t, err)
	out := colorImage(t, b, "Tonemapped", metadata.FullScreen())

	b.AddPass(NewGraphicsPass[frameArgs]("Tonemap").
		WithInput("histogram", ReadBuffer(histogram, metadata.AccessTypeFragmentShaderReadOther)).
		WithInput("luma", SampleImage(luma, metadata.AccessTypeFragmentShaderReadSampledImage, 1)).
		WithOutput("color", DrawImage(out, metadata.ColorDefault(0))))
	b.AddPass(NewComputePass[frameArgs]("Histogram").
		WithOutput("luma", WriteImage(luma, metadata.AccessTypeComputeShaderWrite)).
		WithOutput("histogram", StorageBuffer(histogram, metadata.AccessTypeComputeShaderWrite)))

	g, err := b.Build()
	require.NoError(t, err)
	defer g.Destroy()

	plan := g.Plan()
	assert.Equal(t, []string{"Histogram", "Tonemap"}, plan.PassNames())
	assert.Equal(t, 3, plan.BarrierCount())

	compute := plan.Steps[0]
	assert.Equal(t, metadata.Rect{Width: 1920, Height: 1080}, compute.Area)
	require.Len(t, compute.ImageBarriers, 1)
	assert.Equal(t, metadata.ImageLayoutUndefined, compute.ImageBarriers[0].OldLayout)
	assert.Equal(t, metadata.ImageLayoutGeneral, compute.ImageBarriers[0].NewLayout)
	assert.Empty(t, compute.BufferBarriers)

	graphics := plan.Steps[1]
	require.Len(t, graphics.BufferBarriers, 1)
	assert.Equal(t, "Histogram", graphics.BufferBarriers[0].Name)
	assert.Equal(t, metadata.PipelineStageComputeShader, graphics.BufferBarriers[0].SrcStages)
	assert.Equal(t, metadata.AccessShaderWrite, graphics.BufferBarriers[0].SrcAccess)
	require.Len(t, graphics.ImageBarriers, 1)
	assert.Equal(t, metadata.ImageLayoutGeneral, graphics.ImageBarriers[0].OldLayout)
	assert.Equal(t, []SampledImage{{Binding: 1, Image: luma}}, graphics.Samples)

	img, _ := g.Resources().GetImage(luma)
	assert.Equal(t, uint32(480), img.Width)
	assert.Equal(t, uint32(270), img.Height)
}

func TestPresentingPassTransitionsAfterRendering(t *testing.T) {
	dev := headless.NewDevice()
	b := newTestBuilder(dev, 1920, 1080)
	swapchain := metadata.NewImage("Swapchain", metadata.ColorImageConfig(metadata.FormatB8G8R8A8Unorm), 800, 600)
	target, err := b.ImportImage("Swapchain", swapchain)
	require.NoError(t, err)

	b.AddPass(NewGraphicsPass[frameArgs]("Blit").
		WithOutput("color", DrawImage(target, metadata.ColorDefault(0))).
		Presenting().
		WithRecordFunc(drawFullscreen))

	g, err := b.Build()
	require.NoError(t, err)

	step := g.Plan().Steps[0]
	assert.Equal(t, metadata.Rect{Width: 800, Height: 600}, step.Area)
	require.NotNil(t, step.Present)
	assert.Equal(t, metadata.ImageLayoutColorAttachmentOptimal, step.Present.OldLayout)
	assert.Equal(t, metadata.ImageLayoutPresentSrc, step.Present.NewLayout)

	require.NoError(t, g.Execute(context.Background(), frameArgs{}))
	ops := dev.Frames()[0].Ops()
	assert.Equal(t, []headless.Op{headless.OpEndRenderpass, headless.OpBarrier, headless.OpEndDebugRegion}, ops[len(ops)-3:])

	require.NoError(t, g.Destroy())
	assert.Empty(t, dev.Leaks())
}

func TestBuildRejectsInvalidGraphs(t *testing.T) {
	foreign, err := NewGraphResources().AddImage("Foreign",
		metadata.NewImage("Foreign", metadata.ColorImageConfig(metadata.FormatR8G8B8A8Unorm), 4, 4), metadata.FullScreen())
	require.NoError(t, err)

	tests := []struct {
		name    string
		config  func(*Config)
		declare func(t *testing.T, b *Builder[frameArgs])
		want    error
	}{
		{
			name:    "no passes",
			declare: func(t *testing.T, b *Builder[frameArgs]) {},
			want:    core.ErrInvalidConfig,
		},
		{
			name:   "too many frames in flight",
			config: func(c *Config) { c.FramesInFlight = MaxFramesInFlight + 1 },
			declare: func(t *testing.T, b *Builder[frameArgs]) {
				img := colorImage(t, b, "Color", metadata.FullScreen())
				b.AddPass(NewGraphicsPass[frameArgs]("A").WithOutput("color", DrawImage(img, metadata.ColorDefault(0))))
			},
			want: core.ErrInvalidConfig,
		},
		{
			name:   "zero frames in flight",
			config: func(c *Config) { c.FramesInFlight = 0 },
			declare: func(t *testing.T, b *Builder[frameArgs]) {
				img := colorImage(t, b, "Color", metadata.FullScreen())
				b.AddPass(NewGraphicsPass[frameArgs]("A").WithOutput("color", DrawImage(img, metadata.ColorDefault(0))))
			},
			want: core.ErrInvalidConfig,
		},
		{
			name: "duplicate pass name",
			declare: func(t *testing.T, b *Builder[frameArgs]) {
				a := colorImage(t, b, "A", metadata.FullScreen())
				c := colorImage(t, b, "B", metadata.FullScreen())
				b.AddPass(NewGraphicsPass[frameArgs]("Lighting").WithOutput("color", DrawImage(a, metadata.ColorDefault(0))))
				b.AddPass(NewGraphicsPass[frameArgs]("Lighting").WithOutput("color", DrawImage(c, metadata.ColorDefault(0))))
			},
			want: core.ErrDuplicatePassName,
		},
		{
			name: "handle of another graph",
			declare: func(t *testing.T, b *Builder[frameArgs]) {
				img := colorImage(t, b, "Color", metadata.FullScreen())
				b.AddPass(NewGraphicsPass[frameArgs]("A").
					WithInput("foreign", SampleImage(foreign, metadata.AccessTypeFragmentShaderReadSampledImage, 0)).
					WithOutput("color", DrawImage(img, metadata.ColorDefault(0))))
			},
			want: core.ErrUnknownHandle,
		},
		{
			name: "zero handle",
			declare: func(t *testing.T, b *Builder[frameArgs]) {
				b.AddPass(NewGraphicsPass[frameArgs]("A").WithOutput("color", DrawImage(ImageHandle{}, metadata.ColorDefault(0))))
			},
			want: core.ErrUnknownHandle,
		},
		{
			name: "graphics pass without attachments",
			declare: func(t *testing.T, b *Builder[frameArgs]) {
				img := colorImage(t, b, "Color", metadata.FullScreen())
				b.AddPass(NewGraphicsPass[frameArgs]("A").
					WithInput("color", SampleImage(img, metadata.AccessTypeFragmentShaderReadSampledImage, 0)))
			},
			want: core.ErrMissingAttachment,
		},
		{
			name: "color slots not dense",
			declare: func(t *testing.T, b *Builder[frameArgs]) {
				img := colorImage(t, b, "Color", metadata.FullScreen())
				b.AddPass(NewGraphicsPass[frameArgs]("A").WithOutput("color", DrawImage(img, metadata.ColorDefault(1))))
			},
			want: core.ErrInvalidAttachment,
		},
		{
			name: "depth attachment on a color image",
			declare: func(t *testing.T, b *Builder[frameArgs]) {
				img := colorImage(t, b, "Color", metadata.FullScreen())
				b.AddPass(NewGraphicsPass[frameArgs]("A").WithOutput("depth", DrawImage(img, metadata.DepthOnlyDefault())))
			},
			want: core.ErrInvalidAttachment,
		},
		{
			name: "compute pass drawing",
			declare: func(t *testing.T, b *Builder[frameArgs]) {
				img := colorImage(t, b, "Color", metadata.FullScreen())
				b.AddPass(NewComputePass[frameArgs]("A").WithOutput("color", DrawImage(img, metadata.ColorDefault(0))))
			},
			want: core.ErrInvalidAttachment,
		},
		{
			name: "sampling with a write access",
			declare: func(t *testing.T, b *Builder[frameArgs]) {
				in := colorImage(t, b, "In", metadata.FullScreen())
				out := colorImage(t, b, "Out", metadata.FullScreen())
				b.AddPass(NewGraphicsPass[frameArgs]("A").
					WithInput("in", SampleImage(in, metadata.AccessTypeColorAttachmentWrite, 0)).
					WithOutput("out", DrawImage(out, metadata.ColorDefault(0))))
			},
			want: core.ErrInvalidAccess,
		},
		{
			name: "writing with a read access",
			declare: func(t *testing.T, b *Builder[frameArgs]) {
				img := colorImage(t, b, "Color", metadata.FullScreen())
				b.AddPass(NewComputePass[frameArgs]("A").
					WithOutput("color", WriteImage(img, metadata.AccessTypeComputeShaderReadOther)))
			},
			want: core.ErrInvalidAccess,
		},
		{
			name: "same image read twice",
			declare: func(t *testing.T, b *Builder[frameArgs]) {
				in := colorImage(t, b, "In", metadata.FullScreen())
				out := colorImage(t, b, "Out", metadata.FullScreen())
				b.AddPass(NewGraphicsPass[frameArgs]("A").
					WithInput("first", SampleImage(in, metadata.AccessTypeFragmentShaderReadSampledImage, 0)).
					WithInput("second", SampleImage(in, metadata.AccessTypeFragmentShaderReadSampledImage, 1)).
					WithOutput("out", DrawImage(out, metadata.ColorDefault(0))))
			},
			want: core.ErrDuplicateInput,
		},
		{
			name: "presenting pass followed by a reader",
			declare: func(t *testing.T, b *Builder[frameArgs]) {
				swap := colorImage(t, b, "Swap", metadata.FullScreen())
				copyImg := colorImage(t, b, "Copy", metadata.FullScreen())
				b.AddPass(NewGraphicsPass[frameArgs]("Present").
					WithOutput("color", DrawImage(swap, metadata.ColorDefault(0))).
					Presenting())
				b.AddPass(NewGraphicsPass[frameArgs]("Readback").
					WithInput("swap", SampleImage(swap, metadata.AccessTypeFragmentShaderReadSampledImage, 0)).
					WithOutput("copy", DrawImage(copyImg, metadata.ColorDefault(0))))
			},
			want: core.ErrPresentNotLast,
		},
		{
			name: "two presenting passes",
			declare: func(t *testing.T, b *Builder[frameArgs]) {
				a := colorImage(t, b, "A", metadata.FullScreen())
				c := colorImage(t, b, "B", metadata.FullScreen())
				b.AddPass(NewGraphicsPass[frameArgs]("A").WithOutput("color", DrawImage(a, metadata.ColorDefault(0))).Presenting())
				b.AddPass(NewGraphicsPass[frameArgs]("B").WithOutput("color", DrawImage(c, metadata.ColorDefault(0))).Presenting())
			},
			want: core.ErrPresentNotLast,
		},
		{
			name: "cycle",
			declare: func(t *testing.T, b *Builder[frameArgs]) {
				x := colorImage(t, b, "X", metadata.FullScreen())
				y := colorImage(t, b, "Y", metadata.FullScreen())
				b.AddPass(NewGraphicsPass[frameArgs]("A").
					WithInput("x", SampleImage(x, metadata.AccessTypeFragmentShaderReadSampledImage, 0)).
					WithOutput("y", DrawImage(y, metadata.ColorDefault(0))))
				b.AddPass(NewGraphicsPass[frameArgs]("B").
					WithInput("y", SampleImage(y, metadata.AccessTypeFragmentShaderReadSampledImage, 0)).
					WithOutput("x", DrawImage(x, metadata.ColorDefault(0))))
			},
			want: core.ErrCyclicDependency,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := headless.NewDevice()
			cfg := DefaultConfig()
			if tt.config != nil {
				tt.config(&cfg)
			}
			b := NewBuilder[frameArgs](dev, cfg, 1920, 1080)
			tt.declare(t, b)

			g, err := b.Build()
			assert.Nil(t, g)
			assert.ErrorIs(t, err, tt.want)
			assert.Empty(t, dev.Leaks())
		})
	}
}

func TestDuplicateImageNameKeepsFirstHandle(t *testing.T) {
	dev := headless.NewDevice()
	b := newTestBuilder(dev, 1920, 1080)
	first, err := b.CreateImage("Depth", metadata.DepthImageConfig(metadata.FormatD32Sfloat), metadata.FullScreen())
	require.NoError(t, err)

	_, err = b.CreateImage("Depth", metadata.DepthImageConfig(metadata.FormatD32Sfloat), metadata.FullScreen())
	assert.ErrorIs(t, err, core.ErrDuplicateName)
	assert.Equal(t, 1, dev.Live(headless.KindImage))

	byName, ok := b.Resources().GetImageByName("Depth")
	require.True(t, ok)
	assert.Equal(t, first, byName)
	_, ok = b.Resources().GetImage(first)
	assert.True(t, ok)
}

func TestGraphResourcesRejectsDuplicateName(t *testing.T) {
	res := NewGraphResources()
	img := metadata.NewImage("Depth", metadata.DepthImageConfig(metadata.FormatD32Sfloat), 16, 16)
	first, err := res.AddImage("Depth", img, metadata.FullScreen())
	require.NoError(t, err)

	_, err = res.AddImage("Depth", metadata.NewImage("Depth", img.Config, 16, 16), metadata.FullScreen())
	require.ErrorIs(t, err, core.ErrDuplicateName)

	got, ok := res.GetImage(first)
	require.True(t, ok)
	assert.Same(t, img, got)
	assert.Equal(t, 1, res.ImageCount())
}

func TestBuilderRejectsZeroSize(t *testing.T) {
	dev := headless.NewDevice()
	b := newTestBuilder(dev, 0, 1080)
	_, err := b.CreateImage("Color", metadata.ColorImageConfig(metadata.FormatR8G8B8A8Unorm), metadata.FullScreen())
	assert.ErrorIs(t, err, core.ErrInvalidSize)
}

func TestBuildFailureReleasesRenderpasses(t *testing.T) {
	dev := headless.NewDevice()
	b := newTestBuilder(dev, 1920, 1080)
	depthToFXAA(t, b)
	dev.FailAfter(headless.KindRenderpass, 1)

	g, err := b.Build()
	assert.Nil(t, g)
	assert.ErrorIs(t, err, core.ErrDeviceAllocation)
	assert.Empty(t, dev.Leaks())

	_, err = b.Build()
	assert.ErrorIs(t, err, core.ErrInvalidConfig)
}

func TestAttachmentsMustShareOneSize(t *testing.T) {
	dev := headless.NewDevice()
	b := newTestBuilder(dev, 1280, 720)
	half := colorImage(t, b, "Half", metadata.Relative(0.5, 0.5))
	depth, err := b.CreateImage("Depth", metadata.DepthImageConfig(metadata.FormatD32Sfloat), metadata.FullScreen())
	require.NoError(t, err)
	b.AddPass(NewGraphicsPass[frameArgs]("Mixed").
		WithOutput("color", DrawImage(half, metadata.ColorDefault(0))).
		WithOutput("depth", DrawImage(depth, metadata.DepthOnlyDefault())))

	g, err := b.Build()
	assert.Nil(t, g)
	assert.ErrorIs(t, err, core.ErrInvalidAttachment)
	assert.Empty(t, dev.Leaks())
}

func TestResizeRejectsDivergingAttachments(t *testing.T) {
	dev := headless.NewDevice()
	b := newTestBuilder(dev, 640, 480)
	fixed := colorImage(t, b, "Fixed", metadata.Absolute(640, 480))
	depth, err := b.CreateImage("Depth", metadata.DepthImageConfig(metadata.FormatD32Sfloat), metadata.FullScreen())
	require.NoError(t, err)
	b.AddPass(NewGraphicsPass[frameArgs]("Overlay").
		WithOutput("color", DrawImage(fixed, metadata.ColorDefault(0))).
		WithOutput("depth", DrawImage(depth, metadata.DepthOnlyDefault())))

	g, err := b.Build()
	require.NoError(t, err)
	assert.Equal(t, uint32(640), g.Plan().Steps[0].FramebufferWidth)

	assert.ErrorIs(t, g.Resize(800, 600), core.ErrInvalidAttachment)
	w, h := g.Size()
	assert.Equal(t, uint32(640), w)
	assert.Equal(t, uint32(480), h)

	require.NoError(t, g.Destroy())
	assert.Empty(t, dev.Leaks())
}
