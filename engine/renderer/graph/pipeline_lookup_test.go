package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/framegraph/engine/core"
	"github.com/spaghettifunk/framegraph/engine/renderer/headless"
	"github.com/spaghettifunk/framegraph/engine/renderer/metadata"
)

func testRenderpass(t *testing.T, dev *headless.Device, format metadata.Format) *metadata.Renderpass {
	t.Helper()
	rp, err := dev.CreateRenderpass(metadata.RenderpassDesc{
		Name: "test",
		Color: []metadata.AttachmentDesc{{
			Kind:    metadata.ColorAttachment(0),
			Format:  format,
			Samples: 1,
			LoadOp:  metadata.LoadOpClear,
			StoreOp: metadata.StoreOpStore,
			Layout:  metadata.ImageLayoutColorAttachmentOptimal,
		}},
	})
	require.NoError(t, err)
	return rp
}

func computeShader(name string) *metadata.ShaderProgram {
	return &metadata.ShaderProgram{
		Name:   name,
		Stages: []metadata.ShaderStageModule{{Stage: metadata.ShaderStageCompute, EntryPoint: "main", Code: []byte(name)}},
	}
}

func TestPipelineLookupSharesIdenticalStates(t *testing.T) {
	dev := headless.NewDevice()
	lookup, err := NewPipelineLookup(dev, 8)
	require.NoError(t, err)
	rp := testRenderpass(t, dev, metadata.FormatR8G8B8A8Unorm)

	shader := testShader("lighting")
	a := metadata.PipelineStateVector{Shader: shader, State: metadata.DefaultPipelineState()}
	b := metadata.PipelineStateVector{Shader: shader, State: metadata.DefaultPipelineState()}

	first, err := lookup.GraphicsPipeline(a, rp)
	require.NoError(t, err)
	second, err := lookup.GraphicsPipeline(b, rp)
	require.NoError(t, err)
	assert.Same(t, first, second)

	other := b
	other.State.Rasterizer.Cull = metadata.FaceCullModeFront
	third, err := lookup.GraphicsPipeline(other, rp)
	require.NoError(t, err)
	assert.NotSame(t, first, third)
	assert.Equal(t, 2, dev.Created(headless.KindPipeline))

	c1, err := lookup.ComputePipeline(computeShader("histogram"))
	require.NoError(t, err)
	c2, err := lookup.ComputePipeline(computeShader("histogram"))
	require.NoError(t, err)
	assert.Same(t, c1, c2)
	assert.Equal(t, 3, lookup.Len())
}

func TestPipelineLookupRejectsMismatchedShaders(t *testing.T) {
	dev := headless.NewDevice()
	lookup, err := NewPipelineLookup(dev, 8)
	require.NoError(t, err)
	rp := testRenderpass(t, dev, metadata.FormatR8G8B8A8Unorm)

	_, err = lookup.GraphicsPipeline(metadata.PipelineStateVector{Shader: computeShader("cs")}, rp)
	assert.ErrorIs(t, err, core.ErrInvalidConfig)
	_, err = lookup.ComputePipeline(testShader("vs"))
	assert.ErrorIs(t, err, core.ErrInvalidConfig)
	_, err = lookup.GraphicsPipeline(metadata.PipelineStateVector{Shader: testShader("vs")}, nil)
	assert.ErrorIs(t, err, core.ErrInvalidConfig)
	assert.Zero(t, dev.Created(headless.KindPipeline))

	_, err = NewPipelineLookup(dev, 1)
	assert.ErrorIs(t, err, core.ErrInvalidConfig)
}

func prewarmRequests(rp *metadata.Renderpass) []PipelineRequest {
	shader := testShader("forward")
	var requests []PipelineRequest
	for _, cull := range []metadata.FaceCullMode{metadata.FaceCullModeNone, metadata.FaceCullModeFront, metadata.FaceCullModeBack} {
		state := metadata.DefaultPipelineState()
		state.Rasterizer.Cull = cull
		requests = append(requests, GraphicsRequest(metadata.PipelineStateVector{Shader: shader, State: state}, rp))
	}
	// duplicate of the first one
	requests = append(requests, requests[0])
	requests = append(requests, ComputeRequest(computeShader("histogram")))
	return requests
}

func TestPrewarmBuildsMissingPipelines(t *testing.T) {
	for _, tt := range []struct {
		name string
		opts []headless.Option
	}{
		{name: "serial"},
		{name: "concurrent", opts: []headless.Option{headless.WithMultithreading()}},
	} {
		t.Run(tt.name, func(t *testing.T) {
			dev := headless.NewDevice(tt.opts...)
			lookup, err := NewPipelineLookup(dev, 16)
			require.NoError(t, err)
			rp := testRenderpass(t, dev, metadata.FormatR8G8B8A8Unorm)
			requests := prewarmRequests(rp)

			n, err := lookup.Prewarm(context.Background(), requests)
			require.NoError(t, err)
			assert.Equal(t, 4, n)
			assert.Equal(t, 4, lookup.Len())

			n, err = lookup.Prewarm(context.Background(), requests)
			require.NoError(t, err)
			assert.Zero(t, n)
			assert.Equal(t, 4, dev.Created(headless.KindPipeline))

			cached, err := lookup.GraphicsPipeline(requests[0].State, rp)
			require.NoError(t, err)
			assert.Equal(t, requests[0].State.Digest(rp), cached.Key)
			assert.Equal(t, 4, dev.Created(headless.KindPipeline))
		})
	}
}

func TestPrewarmFailureInsertsNothing(t *testing.T) {
	dev := headless.NewDevice(headless.WithMultithreading())
	lookup, err := NewPipelineLookup(dev, 16)
	require.NoError(t, err)
	rp := testRenderpass(t, dev, metadata.FormatR8G8B8A8Unorm)

	dev.FailAfter(headless.KindPipeline, 2)
	_, err = lookup.Prewarm(context.Background(), prewarmRequests(rp))
	require.ErrorIs(t, err, core.ErrDeviceAllocation)

	assert.Zero(t, lookup.Len())
	assert.Zero(t, dev.Live(headless.KindPipeline))
}

func TestPipelineEvictionIsDeferred(t *testing.T) {
	dev := headless.NewDevice()
	lookup, err := NewPipelineLookup(dev, 2)
	require.NoError(t, err)

	lookup.SetFrame(7)
	_, err = lookup.ComputePipeline(computeShader("a"))
	require.NoError(t, err)
	_, err = lookup.ComputePipeline(computeShader("b"))
	require.NoError(t, err)
	assert.Equal(t, 1, lookup.UnusedLen())

	assert.Zero(t, lookup.Collect(6))
	assert.Equal(t, 1, lookup.Collect(7))
	assert.Equal(t, 1, dev.Live(headless.KindPipeline))

	lookup.Destroy()
	assert.Zero(t, dev.Live(headless.KindPipeline))
}
