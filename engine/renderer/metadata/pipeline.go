package metadata

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"github.com/cespare/xxhash/v2"
)

/** @brief Shader stage flags. Bit values match the Vulkan flags. */
type ShaderStage uint32

const (
	ShaderStageVertex   ShaderStage = 0x01
	ShaderStageGeometry ShaderStage = 0x08
	ShaderStageFragment ShaderStage = 0x10
	ShaderStageCompute  ShaderStage = 0x20
)

func (s ShaderStage) String() string {
	switch s {
	case ShaderStageVertex:
		return "vertex"
	case ShaderStageGeometry:
		return "geometry"
	case ShaderStageFragment:
		return "fragment"
	case ShaderStageCompute:
		return "compute"
	}
	return fmt.Sprintf("ShaderStage(%d)", uint32(s))
}

func ParseShaderStage(name string) (ShaderStage, error) {
	for _, s := range []ShaderStage{ShaderStageVertex, ShaderStageGeometry, ShaderStageFragment, ShaderStageCompute} {
		if strings.EqualFold(s.String(), name) {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown shader stage %q", name)
}

/** @brief One compiled stage of a shader program. */
type ShaderStageModule struct {
	Stage      ShaderStage
	EntryPoint string
	/** @brief Compiled code, SPIR-V for the Vulkan backend. */
	Code []byte
}

/** @brief Kind of resource a shader binding expects. */
type BindingKind uint32

const (
	BindingSampledImage BindingKind = iota
	BindingStorageImage
	BindingUniformBuffer
	BindingStorageBuffer
)

func (k BindingKind) String() string {
	switch k {
	case BindingSampledImage:
		return "sampled_image"
	case BindingStorageImage:
		return "storage_image"
	case BindingUniformBuffer:
		return "uniform_buffer"
	case BindingStorageBuffer:
		return "storage_buffer"
	}
	return fmt.Sprintf("BindingKind(%d)", uint32(k))
}

func ParseBindingKind(name string) (BindingKind, error) {
	for k := BindingSampledImage; k <= BindingStorageBuffer; k++ {
		if strings.EqualFold(k.String(), name) {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown binding kind %q", name)
}

/** @brief One resource binding of descriptor set 0. */
type ShaderBinding struct {
	Binding uint32
	Kind    BindingKind
}

/**
 * @brief An already compiled shader program. The graph never compiles or
 * reflects shaders, it only uses the program as part of pipeline keys.
 */
type ShaderProgram struct {
	Name string
	/** @brief Identifies the compiled code. Zero means "hash the code". */
	Hash   uint64
	Stages []ShaderStageModule
	/** @brief Number of bytes of push constants used by the program. */
	PushConstantSize uint32
	/** @brief Resource layout, provided by whoever compiled the program. */
	Bindings     []ShaderBinding
	InternalData interface{}
}

// Identity returns Hash, or a digest of the stage code when Hash is zero.
func (s *ShaderProgram) Identity() uint64 {
	if s == nil {
		return 0
	}
	if s.Hash != 0 {
		return s.Hash
	}
	d := xxhash.New()
	_, _ = d.WriteString(s.Name)
	for _, st := range s.Stages {
		writeU32(d, uint32(st.Stage))
		_, _ = d.WriteString(st.EntryPoint)
		_, _ = d.Write(st.Code)
	}
	for _, b := range s.Bindings {
		writeU32(d, b.Binding)
		writeU32(d, uint32(b.Kind))
	}
	return d.Sum64()
}

func (s *ShaderProgram) IsCompute() bool {
	return s != nil && len(s.Stages) == 1 && s.Stages[0].Stage == ShaderStageCompute
}

type RasterizerState struct {
	Polygon   PolygonMode
	Cull      FaceCullMode
	FrontFace FrontFace
	LineWidth float32
	DepthBias bool
}

type DepthStencilState struct {
	DepthTest   bool
	DepthWrite  bool
	CompareOp   CompareOp
	StencilTest bool
}

type BlendState struct {
	Enabled  bool
	SrcColor BlendFactor
	DstColor BlendFactor
	ColorOp  BlendOp
	SrcAlpha BlendFactor
	DstAlpha BlendFactor
	AlphaOp  BlendOp
}

// AlphaBlend is the usual "over" operator.
func AlphaBlend() BlendState {
	return BlendState{
		Enabled:  true,
		SrcColor: BlendFactorSrcAlpha,
		DstColor: BlendFactorOneMinusSrcAlpha,
		ColorOp:  BlendOpAdd,
		SrcAlpha: BlendFactorOne,
		DstAlpha: BlendFactorZero,
		AlphaOp:  BlendOpAdd,
	}
}

type VertexBinding struct {
	Binding     uint32
	Stride      uint32
	PerInstance bool
}

type VertexAttribute struct {
	Location uint32
	Binding  uint32
	Format   Format
	Offset   uint32
}

type VertexLayout struct {
	Bindings   []VertexBinding
	Attributes []VertexAttribute
}

/** @brief Fixed function state of a graphics pipeline. */
type PipelineState struct {
	Topology     PrimitiveTopology
	Rasterizer   RasterizerState
	DepthStencil DepthStencilState
	Blend        BlendState
	VertexLayout VertexLayout
}

// DefaultPipelineState draws filled, back face culled triangle lists with no
// depth test and no blending.
func DefaultPipelineState() PipelineState {
	return PipelineState{
		Topology: PrimitiveTopologyTriangleList,
		Rasterizer: RasterizerState{
			Polygon:   PolygonModeFill,
			Cull:      FaceCullModeBack,
			FrontFace: FrontFaceCounterClockwise,
			LineWidth: 1,
		},
		DepthStencil: DepthStencilState{
			CompareOp: CompareOpLessOrEqual,
		},
	}
}

/**
 * @brief Cache key of a graphics pipeline: the shader program plus all of
 * its fixed function state.
 */
type PipelineStateVector struct {
	Shader *ShaderProgram
	State  PipelineState
}

// Digest hashes the vector together with the renderpass it will be used in.
// Equal vectors used with compatible renderpasses have equal digests.
func (v PipelineStateVector) Digest(renderpass *Renderpass) uint64 {
	d := xxhash.New()
	writeU64(d, v.Shader.Identity())

	s := v.State
	writeU32(d, uint32(s.Topology))
	writeU32(d, uint32(s.Rasterizer.Polygon))
	writeU32(d, uint32(s.Rasterizer.Cull))
	writeU32(d, uint32(s.Rasterizer.FrontFace))
	writeF32(d, s.Rasterizer.LineWidth)
	writeBool(d, s.Rasterizer.DepthBias)

	writeBool(d, s.DepthStencil.DepthTest)
	writeBool(d, s.DepthStencil.DepthWrite)
	writeU32(d, uint32(s.DepthStencil.CompareOp))
	writeBool(d, s.DepthStencil.StencilTest)

	writeBool(d, s.Blend.Enabled)
	writeU32(d, uint32(s.Blend.SrcColor))
	writeU32(d, uint32(s.Blend.DstColor))
	writeU32(d, uint32(s.Blend.ColorOp))
	writeU32(d, uint32(s.Blend.SrcAlpha))
	writeU32(d, uint32(s.Blend.DstAlpha))
	writeU32(d, uint32(s.Blend.AlphaOp))

	writeU32(d, uint32(len(s.VertexLayout.Bindings)))
	for _, b := range s.VertexLayout.Bindings {
		writeU32(d, b.Binding)
		writeU32(d, b.Stride)
		writeBool(d, b.PerInstance)
	}
	writeU32(d, uint32(len(s.VertexLayout.Attributes)))
	for _, a := range s.VertexLayout.Attributes {
		writeU32(d, a.Location)
		writeU32(d, a.Binding)
		writeU32(d, uint32(a.Format))
		writeU32(d, a.Offset)
	}

	if renderpass != nil {
		writeU64(d, renderpass.Desc.CompatibilityKey())
	}
	return d.Sum64()
}

type PipelineKind int

const (
	PipelineKindGraphics PipelineKind = iota
	PipelineKindCompute
)

/** @brief A compiled pipeline object. */
type Pipeline struct {
	ID     uint64
	Kind   PipelineKind
	Shader *ShaderProgram
	/** @brief Digest it was cached under. */
	Key          uint64
	InternalData interface{}
}

func writeU32(d *xxhash.Digest, v uint32) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	_, _ = d.Write(buf[:])
}

func writeU64(d *xxhash.Digest, v uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	_, _ = d.Write(buf[:])
}

func writeF32(d *xxhash.Digest, v float32) {
	writeU32(d, math.Float32bits(v))
}

func writeBool(d *xxhash.Digest, v bool) {
	if v {
		_, _ = d.Write([]byte{1})
		return
	}
	_, _ = d.Write([]byte{0})
}
