package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsHazard(t *testing.T) {
	sampled := []AccessType{AccessTypeFragmentShaderReadSampledImage}
	depthWrite := []AccessType{AccessTypeDepthStencilAttachmentWrite}

	assert.False(t, IsHazard(nil, sampled))
	assert.False(t, IsHazard(sampled, nil))
	assert.False(t, IsHazard(sampled, sampled))
	assert.True(t, IsHazard(depthWrite, sampled))
	assert.True(t, IsHazard(sampled, depthWrite))
	assert.True(t, IsHazard(depthWrite, depthWrite))
	assert.True(t, IsHazard(sampled, []AccessType{AccessTypeComputeShaderReadSampledImage}))
}

func TestTransitionDepthWriteToSampled(t *testing.T) {
	tr := TransitionOf(
		[]AccessType{AccessTypeDepthStencilAttachmentWrite},
		[]AccessType{AccessTypeFragmentShaderReadSampledImage},
	)

	assert.Equal(t, PipelineStageEarlyFragmentTests|PipelineStageLateFragmentTests, tr.SrcStages)
	assert.Equal(t, AccessDepthStencilAttachmentWrite, tr.SrcAccess)
	assert.Equal(t, ImageLayoutDepthStencilAttachmentOptimal, tr.OldLayout)
	assert.Equal(t, PipelineStageFragmentShader, tr.DstStages)
	assert.Equal(t, AccessShaderRead, tr.DstAccess)
	assert.Equal(t, ImageLayoutShaderReadOnlyOptimal, tr.NewLayout)
}

func TestTransitionWriteAfterReadNeedsNoVisibility(t *testing.T) {
	tr := TransitionOf(
		[]AccessType{AccessTypeComputeShaderReadOther},
		[]AccessType{AccessTypeComputeShaderWrite},
	)

	assert.Equal(t, PipelineStageComputeShader, tr.SrcStages)
	assert.Equal(t, AccessNone, tr.SrcAccess)
	assert.Equal(t, AccessNone, tr.DstAccess)
	assert.Equal(t, ImageLayoutGeneral, tr.OldLayout)
	assert.Equal(t, ImageLayoutGeneral, tr.NewLayout)
}

func TestTransitionFromNothing(t *testing.T) {
	tr := TransitionOf(nil, []AccessType{AccessTypeComputeShaderWrite})

	assert.Equal(t, PipelineStageTopOfPipe, tr.SrcStages)
	assert.Equal(t, ImageLayoutUndefined, tr.OldLayout)
	assert.Equal(t, ImageLayoutGeneral, tr.NewLayout)
	assert.Equal(t, AccessShaderWrite, tr.DstAccess)
}

func TestImageSizeRelativeIsStable(t *testing.T) {
	half := Relative(0.5, 0.5)

	w1, h1 := half.PhysicalSize(1921, 1081)
	_, _ = half.PhysicalSize(640, 480)
	w2, h2 := half.PhysicalSize(1921, 1081)

	assert.Equal(t, uint32(960), w1)
	assert.Equal(t, uint32(540), h1)
	assert.Equal(t, w1, w2)
	assert.Equal(t, h1, h2)

	w, h := Relative(0.01, 0.01).PhysicalSize(10, 10)
	assert.Equal(t, uint32(1), w)
	assert.Equal(t, uint32(1), h)

	w, h = Absolute(256, 128).PhysicalSize(1920, 1080)
	assert.Equal(t, uint32(256), w)
	assert.Equal(t, uint32(128), h)

	assert.Error(t, Relative(0, 1).Validate())
	assert.Error(t, Absolute(0, 1).Validate())
	assert.NoError(t, FullScreen().Validate())
}

func TestAttachmentDefaults(t *testing.T) {
	color := ColorDefault(2)
	assert.True(t, color.Kind.IsColor())
	assert.Equal(t, uint32(2), color.Kind.Slot())
	assert.Equal(t, LoadOpClear, color.LoadOp)
	assert.Equal(t, StoreOpStore, color.StoreOp)
	assert.Equal(t, LoadOpDontCare, color.StencilLoadOp)

	ds := DepthStencilDefault()
	assert.True(t, ds.Kind.HasStencil())
	assert.Equal(t, LoadOpClear, ds.StencilLoadOp)
	assert.Equal(t, StoreOpStore, ds.StencilStoreOp)

	assert.NoError(t, color.Validate(FormatR8G8B8A8Unorm))
	assert.Error(t, color.Validate(FormatD32Sfloat))
	assert.NoError(t, DepthOnlyDefault().Validate(FormatD32Sfloat))
	assert.Error(t, ds.Validate(FormatD32Sfloat))
	assert.NoError(t, ds.Validate(FormatD24UnormS8Uint))

	assert.Equal(t, float32(1.0), ClearValueFor(DepthOnlyAttachment()).Depth)
	assert.Equal(t, [4]float32{}, ClearValueFor(ColorAttachment(0)).Color)
}

func TestPipelineDigest(t *testing.T) {
	shader := &ShaderProgram{Name: "fxaa", Hash: 42}
	rp := &Renderpass{Desc: RenderpassDesc{Color: []AttachmentDesc{{
		Kind:   ColorAttachment(0),
		Format: FormatB8G8R8A8Unorm,
	}}}}

	a := PipelineStateVector{Shader: shader, State: DefaultPipelineState()}
	b := PipelineStateVector{Shader: shader, State: DefaultPipelineState()}
	assert.Equal(t, a.Digest(rp), b.Digest(rp))

	b.State.Blend = AlphaBlend()
	assert.NotEqual(t, a.Digest(rp), b.Digest(rp))

	other := &ShaderProgram{Name: "copy", Hash: 7}
	c := PipelineStateVector{Shader: other, State: DefaultPipelineState()}
	assert.NotEqual(t, a.Digest(rp), c.Digest(rp))
}

func TestParseNames(t *testing.T) {
	at, err := ParseAccessType("fragmentshaderreadsampledimage")
	require.NoError(t, err)
	assert.Equal(t, AccessTypeFragmentShaderReadSampledImage, at)

	_, err = ParseAccessType("bogus")
	assert.Error(t, err)

	f, err := ParseFormat("d32_sfloat")
	require.NoError(t, err)
	assert.Equal(t, FormatD32Sfloat, f)

	st, err := ParseShaderStage("Fragment")
	require.NoError(t, err)
	assert.Equal(t, ShaderStageFragment, st)
	_, err = ParseShaderStage("tessellation")
	assert.Error(t, err)

	k, err := ParseBindingKind("storage_buffer")
	require.NoError(t, err)
	assert.Equal(t, BindingStorageBuffer, k)
}

func TestFramebufferKeyTracksImageIdentity(t *testing.T) {
	rp := &Renderpass{ID: 1, Key: 1}
	img := NewImage("Color", ColorImageConfig(FormatR8G8B8A8Unorm), 64, 64)
	replacement := NewImage("Color", ColorImageConfig(FormatR8G8B8A8Unorm), 64, 64)

	a := FramebufferDesc{Renderpass: rp, Attachments: []*Image{img}, Width: 64, Height: 64}.Key()
	b := FramebufferDesc{Renderpass: rp, Attachments: []*Image{img}, Width: 64, Height: 64}.Key()
	c := FramebufferDesc{Renderpass: rp, Attachments: []*Image{replacement}, Width: 64, Height: 64}.Key()

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}
