package views

import (
	"context"
	"encoding/binary"
	m "math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/framegraph/engine/math"
	"github.com/spaghettifunk/framegraph/engine/renderer/components"
	"github.com/spaghettifunk/framegraph/engine/renderer/graph"
	"github.com/spaghettifunk/framegraph/engine/renderer/headless"
	"github.com/spaghettifunk/framegraph/engine/renderer/metadata"
)

func buildForward(t *testing.T, dev *headless.Device, shaders *Shaders) (*graph.Graph[Frame], *Targets) {
	t.Helper()
	b := graph.NewBuilder[Frame](dev, graph.DefaultConfig(), 1280, 720)
	targets, err := Forward(b, shaders)
	require.NoError(t, err)
	g, err := b.Build()
	require.NoError(t, err)
	t.Cleanup(func() { _ = g.Destroy() })
	return g, targets
}

func testFrame() Frame {
	cam := components.NewCamera()
	cam.SetPosition(math.NewVec3(0, 2, 8))
	return Frame{
		Camera: cam,
		Draws:  []Draw{{VertexCount: 36, InstanceCount: 2}},
		Light:  Light{Direction: math.NewVec3(0, -1, -1), Intensity: 3},
	}
}

func TestForwardPlan(t *testing.T) {
	dev := headless.NewDevice()
	g, _ := buildForward(t, dev, BuiltinShaders())

	plan := g.Plan()
	assert.Equal(t, []string{"DepthPrepass", "Lighting", "LuminanceHistogram", "Tonemap", "FXAA"}, plan.PassNames())
	// depth->lighting, hdr->histogram, hdr->tonemap, histogram->tonemap, ldr->fxaa
	assert.Equal(t, 5, plan.BarrierCount())
	require.Len(t, plan.Steps[3].BufferBarriers, 1)
	assert.Equal(t, HistogramBuffer, plan.Steps[3].BufferBarriers[0].Name)
	assert.NotNil(t, plan.Steps[4].Present)

	for _, name := range []string{DepthImage, HDRImage, LDRImage, OutputImage} {
		_, ok := g.Resources().GetImageByName(name)
		assert.True(t, ok, name)
	}
}

func TestForwardRecordsEveryPass(t *testing.T) {
	dev := headless.NewDevice()
	g, _ := buildForward(t, dev, BuiltinShaders())

	require.NoError(t, g.ExecuteSync(context.Background(), testFrame()))
	frames := dev.Frames()
	require.Len(t, frames, 1)
	rec := frames[0]

	dispatch := rec.Find(headless.OpDispatch)
	require.Len(t, dispatch, 1)
	assert.Equal(t, [4]uint32{80, 45, 1, 0}, dispatch[0].Counts)

	draws := rec.Find(headless.OpDraw)
	require.Len(t, draws, 4)
	assert.Equal(t, uint32(36), draws[0].Counts[0])
	assert.Equal(t, uint32(2), draws[0].Counts[1])

	push := rec.Find(headless.OpPushConstants)
	require.Len(t, push, 5)
	assert.Len(t, push[0].Data, 64)
	assert.Len(t, push[1].Data, 32)
	intensity := m.Float32frombits(binary.LittleEndian.Uint32(push[1].Data[12:]))
	assert.Equal(t, float32(3), intensity)

	buffers := rec.Find(headless.OpBindBuffer)
	require.Len(t, buffers, 2)
	assert.Equal(t, HistogramBuffer, buffers[0].Buffer.Name)
	assert.Equal(t, uint32(1), buffers[0].Binding)

	assert.Equal(t, 5, dev.Created(headless.KindPipeline))
}

func TestDepthPrepassSkipsEmptyFrames(t *testing.T) {
	dev := headless.NewDevice()
	b := graph.NewBuilder[Frame](dev, graph.DefaultConfig(), 640, 480)
	_, err := DepthToFXAA(b, BuiltinShaders())
	require.NoError(t, err)
	g, err := b.Build()
	require.NoError(t, err)
	defer g.Destroy()

	require.NoError(t, g.ExecuteSync(context.Background(), Frame{}))
	// only FXAA draws
	assert.Len(t, dev.Frames()[0].Find(headless.OpDraw), 1)
}

func TestDepthToFXAA(t *testing.T) {
	dev := headless.NewDevice()
	b := graph.NewBuilder[Frame](dev, graph.DefaultConfig(), 1280, 720)
	_, err := DepthToFXAA(b, BuiltinShaders())
	require.NoError(t, err)
	g, err := b.Build()
	require.NoError(t, err)
	defer g.Destroy()

	plan := g.Plan()
	require.Len(t, plan.Steps, 2)
	assert.Equal(t, 1, plan.BarrierCount())
	barrier := plan.Steps[1].ImageBarriers[0]
	assert.Equal(t, DepthImage, barrier.Name)
	assert.Equal(t, metadata.ImageLayoutDepthStencilAttachmentOptimal, barrier.OldLayout)
	assert.Equal(t, metadata.ImageLayoutShaderReadOnlyOptimal, barrier.NewLayout)

	require.NoError(t, g.ExecuteSync(context.Background(), testFrame()))
	assert.Equal(t, 2, g.Framebuffers().Len())
}

func TestReplacedShaderIsUsedNextFrame(t *testing.T) {
	dev := headless.NewDevice()
	shaders := BuiltinShaders()
	g, _ := buildForward(t, dev, shaders)

	require.NoError(t, g.ExecuteSync(context.Background(), testFrame()))
	assert.Equal(t, 5, dev.Created(headless.KindPipeline))

	fxaa := *shaders.Get(FXAAShader)
	fxaa.Stages = []metadata.ShaderStageModule{
		{Stage: metadata.ShaderStageVertex, EntryPoint: "main", Code: []byte("v2")},
		{Stage: metadata.ShaderStageFragment, EntryPoint: "main", Code: []byte("f2")},
	}
	require.NoError(t, shaders.Replace(&fxaa))
	assert.Equal(t, 1, shaders.Reloaded())

	require.NoError(t, g.ExecuteSync(context.Background(), testFrame()))
	assert.Equal(t, 6, dev.Created(headless.KindPipeline))
}

func TestReplaceRejectsLayoutChanges(t *testing.T) {
	shaders := BuiltinShaders()
	bad := &metadata.ShaderProgram{Name: TonemapShader, PushConstantSize: 16}
	assert.Error(t, shaders.Replace(bad))
	assert.Error(t, shaders.Replace(&metadata.ShaderProgram{Name: "unknown"}))
	assert.Error(t, shaders.Reload(FXAAShader))
	assert.Zero(t, shaders.Reloaded())
}

func TestPrewarmBuildsEveryViewPipeline(t *testing.T) {
	for _, tt := range []struct {
		name string
		opts []headless.Option
	}{
		{name: "serial"},
		{name: "concurrent", opts: []headless.Option{headless.WithMultithreading()}},
	} {
		t.Run(tt.name, func(t *testing.T) {
			dev := headless.NewDevice(tt.opts...)
			shaders := BuiltinShaders()
			g, _ := buildForward(t, dev, shaders)

			n, err := g.Prewarm(context.Background())
			require.NoError(t, err)
			assert.Equal(t, 5, n)
			assert.Equal(t, 5, g.Pipelines().Len())

			// recording finds every pipeline in the cache
			require.NoError(t, g.ExecuteSync(context.Background(), testFrame()))
			assert.Equal(t, 5, dev.Created(headless.KindPipeline))

			fxaa := *shaders.Get(FXAAShader)
			fxaa.Stages = []metadata.ShaderStageModule{
				{Stage: metadata.ShaderStageVertex, EntryPoint: "main", Code: []byte("v3")},
				{Stage: metadata.ShaderStageFragment, EntryPoint: "main", Code: []byte("f3")},
			}
			require.NoError(t, shaders.Replace(&fxaa))
			n, err = g.Prewarm(context.Background())
			require.NoError(t, err)
			assert.Equal(t, 1, n)
			require.NoError(t, g.ExecuteSync(context.Background(), testFrame()))
			assert.Equal(t, 6, dev.Created(headless.KindPipeline))
		})
	}
}
