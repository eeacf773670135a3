package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/framegraph/engine/core"
	"github.com/spaghettifunk/framegraph/engine/renderer/metadata"
)

/**
 * @brief Holds a Vulkan pipeline and its layout.
 */
type VulkanPipeline struct {
	/** @brief The internal pipeline handle. */
	Handle vk.Pipeline
	/** @brief The pipeline layout. */
	PipelineLayout vk.PipelineLayout
	/** @brief Layout of descriptor set 0, nil when the program binds nothing. */
	SetLayout vk.DescriptorSetLayout
	BindPoint vk.PipelineBindPoint
	/** @brief Bindings of set 0, copied from the program. */
	Bindings []metadata.ShaderBinding
	/** @brief Stages that can see the push constants. */
	PushConstantStages vk.ShaderStageFlags
}

// newPipelineLayout creates the descriptor set and pipeline layouts shared
// by graphics and compute pipelines.
func newPipelineLayout(context *VulkanContext, program *metadata.ShaderProgram, bindPoint vk.PipelineBindPoint) (*VulkanPipeline, error) {
	outPipeline := &VulkanPipeline{
		BindPoint:          bindPoint,
		Bindings:           append([]metadata.ShaderBinding(nil), program.Bindings...),
		PushConstantStages: stageFlags(program),
	}

	setLayout, err := NewDescriptorSetLayout(context, program)
	if err != nil {
		return nil, err
	}
	outPipeline.SetLayout = setLayout

	pipelineLayoutCreateInfo := vk.PipelineLayoutCreateInfo{
		SType: vk.StructureTypePipelineLayoutCreateInfo,
	}
	if setLayout != nil {
		pipelineLayoutCreateInfo.SetLayoutCount = 1
		pipelineLayoutCreateInfo.PSetLayouts = []vk.DescriptorSetLayout{setLayout}
	}
	if program.PushConstantSize > 0 {
		// every device supports at least 128 bytes of push constants.
		if program.PushConstantSize > 128 {
			outPipeline.Destroy(context)
			return nil, fmt.Errorf("%w: shader %q uses %d bytes of push constants, at most 128 are supported",
				core.ErrInvalidConfig, program.Name, program.PushConstantSize)
		}
		pipelineLayoutCreateInfo.PushConstantRangeCount = 1
		pipelineLayoutCreateInfo.PPushConstantRanges = []vk.PushConstantRange{{
			StageFlags: outPipeline.PushConstantStages,
			Offset:     0,
			Size:       program.PushConstantSize,
		}}
	}

	var pPipelineLayout vk.PipelineLayout
	if res := vk.CreatePipelineLayout(context.Device.LogicalDevice, &pipelineLayoutCreateInfo, context.Allocator, &pPipelineLayout); res != vk.Success {
		outPipeline.Destroy(context)
		return nil, vulkanError("vkCreatePipelineLayout", res)
	}
	outPipeline.PipelineLayout = pPipelineLayout
	return outPipeline, nil
}

func NewGraphicsPipeline(context *VulkanContext, psv metadata.PipelineStateVector, renderpass *VulkanRenderpass) (*VulkanPipeline, error) {
	state := psv.State
	outPipeline, err := newPipelineLayout(context, psv.Shader, vk.PipelineBindPointGraphics)
	if err != nil {
		return nil, err
	}

	stages, err := NewShaderStages(context, psv.Shader)
	if err != nil {
		outPipeline.Destroy(context)
		return nil, err
	}
	defer DestroyShaderStages(context, stages)
	stageInfos := make([]vk.PipelineShaderStageCreateInfo, len(stages))
	for i := range stages {
		stageInfos[i] = stages[i].ShaderStageCreateInfo
	}

	// Viewport and scissor are dynamic, set from the render area of the pass.
	viewportState := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		ScissorCount:  1,
	}

	rasterizerCreateInfo := vk.PipelineRasterizationStateCreateInfo{
		SType:                   vk.StructureTypePipelineRasterizationStateCreateInfo,
		DepthClampEnable:        vk.False,
		RasterizerDiscardEnable: vk.False,
		PolygonMode:             vk.PolygonMode(state.Rasterizer.Polygon),
		LineWidth:               state.Rasterizer.LineWidth,
		CullMode:                vkCullMode(state.Rasterizer.Cull),
		FrontFace:               vk.FrontFace(state.Rasterizer.FrontFace),
		DepthBiasEnable:         vkBool(state.Rasterizer.DepthBias),
	}
	if rasterizerCreateInfo.LineWidth == 0 {
		rasterizerCreateInfo.LineWidth = 1.0
	}

	multisamplingCreateInfo := vk.PipelineMultisampleStateCreateInfo{
		SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
		SampleShadingEnable:  vk.False,
		RasterizationSamples: vk.SampleCount1Bit,
		MinSampleShading:     1.0,
	}

	depthStencil := vk.PipelineDepthStencilStateCreateInfo{
		SType:             vk.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthTestEnable:   vkBool(state.DepthStencil.DepthTest),
		DepthWriteEnable:  vkBool(state.DepthStencil.DepthWrite),
		DepthCompareOp:    vk.CompareOp(state.DepthStencil.CompareOp),
		StencilTestEnable: vkBool(state.DepthStencil.StencilTest),
	}

	blend := state.Blend
	colorBlendAttachmentState := vk.PipelineColorBlendAttachmentState{
		BlendEnable:         vkBool(blend.Enabled),
		SrcColorBlendFactor: vk.BlendFactor(blend.SrcColor),
		DstColorBlendFactor: vk.BlendFactor(blend.DstColor),
		ColorBlendOp:        vk.BlendOp(blend.ColorOp),
		SrcAlphaBlendFactor: vk.BlendFactor(blend.SrcAlpha),
		DstAlphaBlendFactor: vk.BlendFactor(blend.DstAlpha),
		AlphaBlendOp:        vk.BlendOp(blend.AlphaOp),
		ColorWriteMask: vk.ColorComponentFlags(vk.ColorComponentRBit) | vk.ColorComponentFlags(vk.ColorComponentGBit) |
			vk.ColorComponentFlags(vk.ColorComponentBBit) | vk.ColorComponentFlags(vk.ColorComponentABit),
	}
	// Every color attachment of the renderpass needs a blend state.
	blendAttachments := make([]vk.PipelineColorBlendAttachmentState, renderpass.ColorCount)
	for i := range blendAttachments {
		blendAttachments[i] = colorBlendAttachmentState
	}
	colorBlendStateCreateInfo := vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		LogicOpEnable:   vk.False,
		LogicOp:         vk.LogicOpCopy,
		AttachmentCount: uint32(len(blendAttachments)),
		PAttachments:    blendAttachments,
	}

	dynamicStates := []vk.DynamicState{
		vk.DynamicStateViewport,
		vk.DynamicStateScissor,
		vk.DynamicStateLineWidth,
	}
	dynamicStateCreateInfo := vk.PipelineDynamicStateCreateInfo{
		SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: uint32(len(dynamicStates)),
		PDynamicStates:    dynamicStates,
	}

	layout := state.VertexLayout
	bindingDescriptions := make([]vk.VertexInputBindingDescription, len(layout.Bindings))
	for i, b := range layout.Bindings {
		bindingDescriptions[i] = vk.VertexInputBindingDescription{
			Binding:   b.Binding,
			Stride:    b.Stride,
			InputRate: vk.VertexInputRateVertex,
		}
		if b.PerInstance {
			bindingDescriptions[i].InputRate = vk.VertexInputRateInstance
		}
	}
	attributeDescriptions := make([]vk.VertexInputAttributeDescription, len(layout.Attributes))
	for i, a := range layout.Attributes {
		attributeDescriptions[i] = vk.VertexInputAttributeDescription{
			Location: a.Location,
			Binding:  a.Binding,
			Format:   vkFormat(a.Format),
			Offset:   a.Offset,
		}
	}
	vertexInputInfo := vk.PipelineVertexInputStateCreateInfo{
		SType:                           vk.StructureTypePipelineVertexInputStateCreateInfo,
		VertexBindingDescriptionCount:   uint32(len(bindingDescriptions)),
		PVertexBindingDescriptions:      bindingDescriptions,
		VertexAttributeDescriptionCount: uint32(len(attributeDescriptions)),
		PVertexAttributeDescriptions:    attributeDescriptions,
	}

	inputAssembly := vk.PipelineInputAssemblyStateCreateInfo{
		SType:                  vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology:               vk.PrimitiveTopology(state.Topology),
		PrimitiveRestartEnable: vk.False,
	}

	pipelineCreateInfo := vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          uint32(len(stageInfos)),
		PStages:             stageInfos,
		PVertexInputState:   &vertexInputInfo,
		PInputAssemblyState: &inputAssembly,
		PViewportState:      &viewportState,
		PRasterizationState: &rasterizerCreateInfo,
		PMultisampleState:   &multisamplingCreateInfo,
		PDepthStencilState:  &depthStencil,
		PColorBlendState:    &colorBlendStateCreateInfo,
		PDynamicState:       &dynamicStateCreateInfo,
		Layout:              outPipeline.PipelineLayout,
		RenderPass:          renderpass.Handle,
		Subpass:             0,
		BasePipelineHandle:  vk.NullPipeline,
		BasePipelineIndex:   -1,
	}

	pPipelines := make([]vk.Pipeline, 1)
	if err := context.locks.SafeCall(PipelineManagement, func() error {
		result := vk.CreateGraphicsPipelines(context.Device.LogicalDevice, vk.NullPipelineCache, 1,
			[]vk.GraphicsPipelineCreateInfo{pipelineCreateInfo}, context.Allocator, pPipelines)
		if result != vk.Success {
			return vulkanError(fmt.Sprintf("vkCreateGraphicsPipelines(%s)", psv.Shader.Name), result)
		}
		return nil
	}); err != nil {
		outPipeline.Destroy(context)
		return nil, err
	}
	outPipeline.Handle = pPipelines[0]

	core.LogDebug("Graphics pipeline created for shader %q", psv.Shader.Name)
	return outPipeline, nil
}

func NewComputePipeline(context *VulkanContext, program *metadata.ShaderProgram) (*VulkanPipeline, error) {
	outPipeline, err := newPipelineLayout(context, program, vk.PipelineBindPointCompute)
	if err != nil {
		return nil, err
	}
	stages, err := NewShaderStages(context, program)
	if err != nil {
		outPipeline.Destroy(context)
		return nil, err
	}
	defer DestroyShaderStages(context, stages)
	if len(stages) != 1 {
		outPipeline.Destroy(context)
		return nil, fmt.Errorf("%w: compute shader %q has %d stages", core.ErrInvalidConfig, program.Name, len(stages))
	}

	pipelineCreateInfo := vk.ComputePipelineCreateInfo{
		SType:              vk.StructureTypeComputePipelineCreateInfo,
		Stage:              stages[0].ShaderStageCreateInfo,
		Layout:             outPipeline.PipelineLayout,
		BasePipelineHandle: vk.NullPipeline,
		BasePipelineIndex:  -1,
	}
	pPipelines := make([]vk.Pipeline, 1)
	if err := context.locks.SafeCall(PipelineManagement, func() error {
		result := vk.CreateComputePipelines(context.Device.LogicalDevice, vk.NullPipelineCache, 1,
			[]vk.ComputePipelineCreateInfo{pipelineCreateInfo}, context.Allocator, pPipelines)
		if result != vk.Success {
			return vulkanError(fmt.Sprintf("vkCreateComputePipelines(%s)", program.Name), result)
		}
		return nil
	}); err != nil {
		outPipeline.Destroy(context)
		return nil, err
	}
	outPipeline.Handle = pPipelines[0]

	core.LogDebug("Compute pipeline created for shader %q", program.Name)
	return outPipeline, nil
}

func (pipeline *VulkanPipeline) Destroy(context *VulkanContext) {
	device := context.Device.LogicalDevice
	if pipeline.Handle != nil {
		vk.DestroyPipeline(device, pipeline.Handle, context.Allocator)
		pipeline.Handle = nil
	}
	if pipeline.PipelineLayout != nil {
		vk.DestroyPipelineLayout(device, pipeline.PipelineLayout, context.Allocator)
		pipeline.PipelineLayout = nil
	}
	if pipeline.SetLayout != nil {
		vk.DestroyDescriptorSetLayout(device, pipeline.SetLayout, context.Allocator)
		pipeline.SetLayout = nil
	}
}

func (pipeline *VulkanPipeline) Bind(commandBuffer *VulkanCommandBuffer) {
	vk.CmdBindPipeline(commandBuffer.Handle, pipeline.BindPoint, pipeline.Handle)
}

func vkBool(b bool) vk.Bool32 {
	if b {
		return vk.True
	}
	return vk.False
}
