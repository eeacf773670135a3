package metadata

import (
	"fmt"
	"strings"
)

/** @brief Pipeline stage flags. Bit values match the Vulkan flags. */
type PipelineStage uint32

const (
	PipelineStageNone                  PipelineStage = 0
	PipelineStageTopOfPipe             PipelineStage = 0x00000001
	PipelineStageDrawIndirect          PipelineStage = 0x00000002
	PipelineStageVertexInput           PipelineStage = 0x00000004
	PipelineStageVertexShader          PipelineStage = 0x00000008
	PipelineStageGeometryShader        PipelineStage = 0x00000040
	PipelineStageFragmentShader        PipelineStage = 0x00000080
	PipelineStageEarlyFragmentTests    PipelineStage = 0x00000100
	PipelineStageLateFragmentTests     PipelineStage = 0x00000200
	PipelineStageColorAttachmentOutput PipelineStage = 0x00000400
	PipelineStageComputeShader         PipelineStage = 0x00000800
	PipelineStageTransfer              PipelineStage = 0x00001000
	PipelineStageBottomOfPipe          PipelineStage = 0x00002000
	PipelineStageHost                  PipelineStage = 0x00004000
	PipelineStageAllGraphics           PipelineStage = 0x00008000
	PipelineStageAllCommands           PipelineStage = 0x00010000
)

var pipelineStageNames = []struct {
	flag PipelineStage
	name string
}{
	{PipelineStageTopOfPipe, "TopOfPipe"},
	{PipelineStageDrawIndirect, "DrawIndirect"},
	{PipelineStageVertexInput, "VertexInput"},
	{PipelineStageVertexShader, "VertexShader"},
	{PipelineStageGeometryShader, "GeometryShader"},
	{PipelineStageFragmentShader, "FragmentShader"},
	{PipelineStageEarlyFragmentTests, "EarlyFragmentTests"},
	{PipelineStageLateFragmentTests, "LateFragmentTests"},
	{PipelineStageColorAttachmentOutput, "ColorAttachmentOutput"},
	{PipelineStageComputeShader, "ComputeShader"},
	{PipelineStageTransfer, "Transfer"},
	{PipelineStageBottomOfPipe, "BottomOfPipe"},
	{PipelineStageHost, "Host"},
	{PipelineStageAllGraphics, "AllGraphics"},
	{PipelineStageAllCommands, "AllCommands"},
}

func (s PipelineStage) String() string {
	if s == PipelineStageNone {
		return "None"
	}
	var parts []string
	for _, n := range pipelineStageNames {
		if s&n.flag != 0 {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}

/** @brief Memory access flags. Bit values match the Vulkan flags. */
type Access uint32

const (
	AccessNone                        Access = 0
	AccessIndirectCommandRead         Access = 0x00000001
	AccessIndexRead                   Access = 0x00000002
	AccessVertexAttributeRead         Access = 0x00000004
	AccessUniformRead                 Access = 0x00000008
	AccessInputAttachmentRead         Access = 0x00000010
	AccessShaderRead                  Access = 0x00000020
	AccessShaderWrite                 Access = 0x00000040
	AccessColorAttachmentRead         Access = 0x00000080
	AccessColorAttachmentWrite        Access = 0x00000100
	AccessDepthStencilAttachmentRead  Access = 0x00000200
	AccessDepthStencilAttachmentWrite Access = 0x00000400
	AccessTransferRead                Access = 0x00000800
	AccessTransferWrite               Access = 0x00001000
	AccessHostRead                    Access = 0x00002000
	AccessHostWrite                   Access = 0x00004000
	AccessMemoryRead                  Access = 0x00008000
	AccessMemoryWrite                 Access = 0x00010000
)

var accessNames = []struct {
	flag Access
	name string
}{
	{AccessIndirectCommandRead, "IndirectCommandRead"},
	{AccessIndexRead, "IndexRead"},
	{AccessVertexAttributeRead, "VertexAttributeRead"},
	{AccessUniformRead, "UniformRead"},
	{AccessInputAttachmentRead, "InputAttachmentRead"},
	{AccessShaderRead, "ShaderRead"},
	{AccessShaderWrite, "ShaderWrite"},
	{AccessColorAttachmentRead, "ColorAttachmentRead"},
	{AccessColorAttachmentWrite, "ColorAttachmentWrite"},
	{AccessDepthStencilAttachmentRead, "DepthStencilAttachmentRead"},
	{AccessDepthStencilAttachmentWrite, "DepthStencilAttachmentWrite"},
	{AccessTransferRead, "TransferRead"},
	{AccessTransferWrite, "TransferWrite"},
	{AccessHostRead, "HostRead"},
	{AccessHostWrite, "HostWrite"},
	{AccessMemoryRead, "MemoryRead"},
	{AccessMemoryWrite, "MemoryWrite"},
}

func (a Access) String() string {
	if a == AccessNone {
		return "None"
	}
	var parts []string
	for _, n := range accessNames {
		if a&n.flag != 0 {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}

/** @brief Image layouts. Values match the Vulkan enumeration. */
type ImageLayout uint32

const (
	ImageLayoutUndefined                             ImageLayout = 0
	ImageLayoutGeneral                               ImageLayout = 1
	ImageLayoutColorAttachmentOptimal                ImageLayout = 2
	ImageLayoutDepthStencilAttachmentOptimal         ImageLayout = 3
	ImageLayoutDepthStencilReadOnlyOptimal           ImageLayout = 4
	ImageLayoutShaderReadOnlyOptimal                 ImageLayout = 5
	ImageLayoutTransferSrcOptimal                    ImageLayout = 6
	ImageLayoutTransferDstOptimal                    ImageLayout = 7
	ImageLayoutPreinitialized                        ImageLayout = 8
	ImageLayoutDepthReadOnlyStencilAttachmentOptimal ImageLayout = 1000117000
	ImageLayoutDepthAttachmentStencilReadOnlyOptimal ImageLayout = 1000117001
	ImageLayoutPresentSrc                            ImageLayout = 1000001002
)

func (l ImageLayout) String() string {
	switch l {
	case ImageLayoutUndefined:
		return "Undefined"
	case ImageLayoutGeneral:
		return "General"
	case ImageLayoutColorAttachmentOptimal:
		return "ColorAttachmentOptimal"
	case ImageLayoutDepthStencilAttachmentOptimal:
		return "DepthStencilAttachmentOptimal"
	case ImageLayoutDepthStencilReadOnlyOptimal:
		return "DepthStencilReadOnlyOptimal"
	case ImageLayoutShaderReadOnlyOptimal:
		return "ShaderReadOnlyOptimal"
	case ImageLayoutTransferSrcOptimal:
		return "TransferSrcOptimal"
	case ImageLayoutTransferDstOptimal:
		return "TransferDstOptimal"
	case ImageLayoutPreinitialized:
		return "Preinitialized"
	case ImageLayoutDepthReadOnlyStencilAttachmentOptimal:
		return "DepthReadOnlyStencilAttachmentOptimal"
	case ImageLayoutDepthAttachmentStencilReadOnlyOptimal:
		return "DepthAttachmentStencilReadOnlyOptimal"
	case ImageLayoutPresentSrc:
		return "PresentSrc"
	}
	return fmt.Sprintf("ImageLayout(%d)", uint32(l))
}

/**
 * @brief Describes how a pass touches a resource. Each access type maps
 * to a pipeline stage mask, a memory access mask and an image layout.
 */
type AccessType uint32

const (
	AccessTypeNothing AccessType = iota
	AccessTypeIndirectBuffer
	AccessTypeIndexBuffer
	AccessTypeVertexBuffer
	AccessTypeVertexShaderReadUniformBuffer
	AccessTypeVertexShaderReadSampledImage
	AccessTypeVertexShaderReadOther
	AccessTypeGeometryShaderReadUniformBuffer
	AccessTypeGeometryShaderReadSampledImage
	AccessTypeGeometryShaderReadOther
	AccessTypeFragmentShaderReadUniformBuffer
	AccessTypeFragmentShaderReadSampledImage
	AccessTypeFragmentShaderReadColorInputAttachment
	AccessTypeFragmentShaderReadDepthStencilInputAttachment
	AccessTypeFragmentShaderReadOther
	AccessTypeColorAttachmentRead
	AccessTypeDepthStencilAttachmentRead
	AccessTypeComputeShaderReadUniformBuffer
	AccessTypeComputeShaderReadSampledImage
	AccessTypeComputeShaderReadOther
	AccessTypeAnyShaderReadUniformBuffer
	AccessTypeAnyShaderReadUniformBufferOrVertexBuffer
	AccessTypeAnyShaderReadSampledImage
	AccessTypeAnyShaderReadOther
	AccessTypeTransferRead
	AccessTypeHostRead
	AccessTypePresent
	AccessTypeVertexShaderWrite
	AccessTypeGeometryShaderWrite
	AccessTypeFragmentShaderWrite
	AccessTypeColorAttachmentWrite
	AccessTypeDepthStencilAttachmentWrite
	AccessTypeDepthAttachmentWriteStencilReadOnly
	AccessTypeStencilAttachmentWriteDepthReadOnly
	AccessTypeComputeShaderWrite
	AccessTypeAnyShaderWrite
	AccessTypeTransferWrite
	AccessTypeHostWrite
	AccessTypeColorAttachmentReadWrite
	AccessTypeGeneral

	accessTypeCount
)

/** @brief Stage, access mask and layout required by an access type. */
type AccessInfo struct {
	Stages PipelineStage
	Access Access
	Layout ImageLayout
}

type accessTypeInfo struct {
	name string
	read bool
	info AccessInfo
}

const depthTests = PipelineStageEarlyFragmentTests | PipelineStageLateFragmentTests

var accessTypes = [accessTypeCount]accessTypeInfo{
	AccessTypeNothing:                                       {"Nothing", true, AccessInfo{PipelineStageNone, AccessNone, ImageLayoutUndefined}},
	AccessTypeIndirectBuffer:                                {"IndirectBuffer", true, AccessInfo{PipelineStageDrawIndirect, AccessIndirectCommandRead, ImageLayoutUndefined}},
	AccessTypeIndexBuffer:                                   {"IndexBuffer", true, AccessInfo{PipelineStageVertexInput, AccessIndexRead, ImageLayoutUndefined}},
	AccessTypeVertexBuffer:                                  {"VertexBuffer", true, AccessInfo{PipelineStageVertexInput, AccessVertexAttributeRead, ImageLayoutUndefined}},
	AccessTypeVertexShaderReadUniformBuffer:                 {"VertexShaderReadUniformBuffer", true, AccessInfo{PipelineStageVertexShader, AccessShaderRead, ImageLayoutUndefined}},
	AccessTypeVertexShaderReadSampledImage:                  {"VertexShaderReadSampledImage", true, AccessInfo{PipelineStageVertexShader, AccessShaderRead, ImageLayoutShaderReadOnlyOptimal}},
	AccessTypeVertexShaderReadOther:                         {"VertexShaderReadOther", true, AccessInfo{PipelineStageVertexShader, AccessShaderRead, ImageLayoutGeneral}},
	AccessTypeGeometryShaderReadUniformBuffer:               {"GeometryShaderReadUniformBuffer", true, AccessInfo{PipelineStageGeometryShader, AccessUniformRead, ImageLayoutUndefined}},
	AccessTypeGeometryShaderReadSampledImage:                {"GeometryShaderReadSampledImage", true, AccessInfo{PipelineStageGeometryShader, AccessShaderRead, ImageLayoutShaderReadOnlyOptimal}},
	AccessTypeGeometryShaderReadOther:                       {"GeometryShaderReadOther", true, AccessInfo{PipelineStageGeometryShader, AccessShaderRead, ImageLayoutGeneral}},
	AccessTypeFragmentShaderReadUniformBuffer:               {"FragmentShaderReadUniformBuffer", true, AccessInfo{PipelineStageFragmentShader, AccessUniformRead, ImageLayoutUndefined}},
	AccessTypeFragmentShaderReadSampledImage:                {"FragmentShaderReadSampledImage", true, AccessInfo{PipelineStageFragmentShader, AccessShaderRead, ImageLayoutShaderReadOnlyOptimal}},
	AccessTypeFragmentShaderReadColorInputAttachment:        {"FragmentShaderReadColorInputAttachment", true, AccessInfo{PipelineStageFragmentShader, AccessInputAttachmentRead, ImageLayoutShaderReadOnlyOptimal}},
	AccessTypeFragmentShaderReadDepthStencilInputAttachment: {"FragmentShaderReadDepthStencilInputAttachment", true, AccessInfo{PipelineStageFragmentShader, AccessInputAttachmentRead, ImageLayoutDepthStencilReadOnlyOptimal}},
	AccessTypeFragmentShaderReadOther:                       {"FragmentShaderReadOther", true, AccessInfo{PipelineStageFragmentShader, AccessShaderRead, ImageLayoutGeneral}},
	AccessTypeColorAttachmentRead:                           {"ColorAttachmentRead", true, AccessInfo{PipelineStageColorAttachmentOutput, AccessColorAttachmentRead, ImageLayoutColorAttachmentOptimal}},
	AccessTypeDepthStencilAttachmentRead:                    {"DepthStencilAttachmentRead", true, AccessInfo{depthTests, AccessDepthStencilAttachmentRead, ImageLayoutDepthStencilReadOnlyOptimal}},
	AccessTypeComputeShaderReadUniformBuffer:                {"ComputeShaderReadUniformBuffer", true, AccessInfo{PipelineStageComputeShader, AccessUniformRead, ImageLayoutUndefined}},
	AccessTypeComputeShaderReadSampledImage:                 {"ComputeShaderReadSampledImage", true, AccessInfo{PipelineStageComputeShader, AccessShaderRead, ImageLayoutShaderReadOnlyOptimal}},
	AccessTypeComputeShaderReadOther:                        {"ComputeShaderReadOther", true, AccessInfo{PipelineStageComputeShader, AccessShaderRead, ImageLayoutGeneral}},
	AccessTypeAnyShaderReadUniformBuffer:                    {"AnyShaderReadUniformBuffer", true, AccessInfo{PipelineStageAllCommands, AccessUniformRead, ImageLayoutUndefined}},
	AccessTypeAnyShaderReadUniformBufferOrVertexBuffer:      {"AnyShaderReadUniformBufferOrVertexBuffer", true, AccessInfo{PipelineStageAllCommands, AccessUniformRead | AccessVertexAttributeRead, ImageLayoutUndefined}},
	AccessTypeAnyShaderReadSampledImage:                     {"AnyShaderReadSampledImage", true, AccessInfo{PipelineStageAllCommands, AccessShaderRead, ImageLayoutShaderReadOnlyOptimal}},
	AccessTypeAnyShaderReadOther:                            {"AnyShaderReadOther", true, AccessInfo{PipelineStageAllCommands, AccessShaderRead, ImageLayoutGeneral}},
	AccessTypeTransferRead:                                  {"TransferRead", true, AccessInfo{PipelineStageTransfer, AccessTransferRead, ImageLayoutTransferSrcOptimal}},
	AccessTypeHostRead:                                      {"HostRead", true, AccessInfo{PipelineStageHost, AccessHostRead, ImageLayoutGeneral}},
	AccessTypePresent:                                       {"Present", true, AccessInfo{PipelineStageNone, AccessNone, ImageLayoutPresentSrc}},
	AccessTypeVertexShaderWrite:                             {"VertexShaderWrite", false, AccessInfo{PipelineStageVertexShader, AccessShaderWrite, ImageLayoutGeneral}},
	AccessTypeGeometryShaderWrite:                           {"GeometryShaderWrite", false, AccessInfo{PipelineStageGeometryShader, AccessShaderWrite, ImageLayoutGeneral}},
	AccessTypeFragmentShaderWrite:                           {"FragmentShaderWrite", false, AccessInfo{PipelineStageFragmentShader, AccessShaderWrite, ImageLayoutGeneral}},
	AccessTypeColorAttachmentWrite:                          {"ColorAttachmentWrite", false, AccessInfo{PipelineStageColorAttachmentOutput, AccessColorAttachmentWrite, ImageLayoutColorAttachmentOptimal}},
	AccessTypeDepthStencilAttachmentWrite:                   {"DepthStencilAttachmentWrite", false, AccessInfo{depthTests, AccessDepthStencilAttachmentWrite, ImageLayoutDepthStencilAttachmentOptimal}},
	AccessTypeDepthAttachmentWriteStencilReadOnly:           {"DepthAttachmentWriteStencilReadOnly", false, AccessInfo{depthTests, AccessDepthStencilAttachmentWrite | AccessDepthStencilAttachmentRead, ImageLayoutDepthAttachmentStencilReadOnlyOptimal}},
	AccessTypeStencilAttachmentWriteDepthReadOnly:           {"StencilAttachmentWriteDepthReadOnly", false, AccessInfo{depthTests, AccessDepthStencilAttachmentWrite | AccessDepthStencilAttachmentRead, ImageLayoutDepthReadOnlyStencilAttachmentOptimal}},
	AccessTypeComputeShaderWrite:                            {"ComputeShaderWrite", false, AccessInfo{PipelineStageComputeShader, AccessShaderWrite, ImageLayoutGeneral}},
	AccessTypeAnyShaderWrite:                                {"AnyShaderWrite", false, AccessInfo{PipelineStageAllCommands, AccessShaderWrite, ImageLayoutGeneral}},
	AccessTypeTransferWrite:                                 {"TransferWrite", false, AccessInfo{PipelineStageTransfer, AccessTransferWrite, ImageLayoutTransferDstOptimal}},
	AccessTypeHostWrite:                                     {"HostWrite", false, AccessInfo{PipelineStageHost, AccessHostWrite, ImageLayoutGeneral}},
	AccessTypeColorAttachmentReadWrite:                      {"ColorAttachmentReadWrite", false, AccessInfo{PipelineStageColorAttachmentOutput, AccessColorAttachmentRead | AccessColorAttachmentWrite, ImageLayoutColorAttachmentOptimal}},
	AccessTypeGeneral:                                       {"General", false, AccessInfo{PipelineStageAllCommands, AccessMemoryRead | AccessMemoryWrite, ImageLayoutGeneral}},
}

func (a AccessType) Valid() bool {
	return a < accessTypeCount
}

func (a AccessType) String() string {
	if !a.Valid() {
		return fmt.Sprintf("AccessType(%d)", uint32(a))
	}
	return accessTypes[a].name
}

// IsRead reports whether the access only reads the resource.
func (a AccessType) IsRead() bool {
	return a.Valid() && accessTypes[a].read
}

func (a AccessType) IsWrite() bool {
	return a.Valid() && !accessTypes[a].read
}

// AccessInfoOf returns the stage, access mask and layout of an access type.
// Unknown access types resolve to Nothing.
func AccessInfoOf(a AccessType) AccessInfo {
	if !a.Valid() {
		return accessTypes[AccessTypeNothing].info
	}
	return accessTypes[a].info
}

func ParseAccessType(name string) (AccessType, error) {
	for i, t := range accessTypes {
		if strings.EqualFold(t.name, name) {
			return AccessType(i), nil
		}
	}
	return AccessTypeNothing, fmt.Errorf("unknown access type %q", name)
}

// IsHazard reports whether moving from the prev to the next set of accesses
// needs synchronization. Only an identical set of read-only accesses is
// free; any write on either side is a hazard. An empty side is never one.
func IsHazard(prev, next []AccessType) bool {
	if len(prev) == 0 || len(next) == 0 {
		return false
	}
	if !allRead(prev) || !allRead(next) {
		return true
	}
	return !sameAccesses(prev, next)
}

func allRead(accesses []AccessType) bool {
	for _, a := range accesses {
		if !a.IsRead() {
			return false
		}
	}
	return true
}

func sameAccesses(a, b []AccessType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
