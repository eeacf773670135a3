package vulkan

import (
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/framegraph/engine/core"
	"github.com/spaghettifunk/framegraph/engine/renderer"
	"github.com/spaghettifunk/framegraph/engine/renderer/metadata"
)

type VulkanCommandBufferState int

const (
	COMMAND_BUFFER_STATE_READY VulkanCommandBufferState = iota
	COMMAND_BUFFER_STATE_RECORDING
	COMMAND_BUFFER_STATE_IN_RENDER_PASS
	COMMAND_BUFFER_STATE_RECORDING_ENDED
	COMMAND_BUFFER_STATE_SUBMITTED
	COMMAND_BUFFER_STATE_NOT_ALLOCATED
)

// VulkanCommandBuffer is the command recorder of one frame slot. Recording
// methods cannot fail individually; the first error is kept and returned
// by Submit.
type VulkanCommandBuffer struct {
	Handle vk.CommandBuffer
	// Command buffer state.
	State VulkanCommandBufferState

	context        *VulkanContext
	descriptorPool vk.DescriptorPool
	descriptors    VulkanDescriptorState
	pipeline       *VulkanPipeline
	regions        []string
	err            error

	imageBarriers  []vk.ImageMemoryBarrier
	bufferBarriers []vk.BufferMemoryBarrier
}

var _ renderer.CommandRecorder = (*VulkanCommandBuffer)(nil)

func NewVulkanCommandBuffer(context *VulkanContext, pool vk.CommandPool, isPrimary bool) (*VulkanCommandBuffer, error) {
	vCommandBuffer := &VulkanCommandBuffer{
		State:   COMMAND_BUFFER_STATE_NOT_ALLOCATED,
		context: context,
	}

	level := vk.CommandBufferLevelSecondary
	if isPrimary {
		level = vk.CommandBufferLevelPrimary
	}

	allocateInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        pool,
		CommandBufferCount: 1,
		Level:              level,
	}

	handles := make([]vk.CommandBuffer, 1)
	if res := vk.AllocateCommandBuffers(context.Device.LogicalDevice, &allocateInfo, handles); res != vk.Success {
		err := vulkanError("vkAllocateCommandBuffers", res)
		core.LogError(err.Error())
		return nil, err
	}
	vCommandBuffer.Handle = handles[0]
	vCommandBuffer.State = COMMAND_BUFFER_STATE_READY
	return vCommandBuffer, nil
}

func (v *VulkanCommandBuffer) Free(context *VulkanContext, pool vk.CommandPool) {
	if v.Handle != nil {
		vk.FreeCommandBuffers(context.Device.LogicalDevice, pool, 1, []vk.CommandBuffer{v.Handle})
	}
	v.Handle = nil
	v.State = COMMAND_BUFFER_STATE_NOT_ALLOCATED
}

func (v *VulkanCommandBuffer) Begin(isSingleUse, isRenderpassContinue, isSimultaneousUse bool) error {
	beginInfo := &vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
	}
	if isSingleUse {
		beginInfo.Flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit)
	}
	if isRenderpassContinue {
		beginInfo.Flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageRenderPassContinueBit)
	}
	if isSimultaneousUse {
		beginInfo.Flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageSimultaneousUseBit)
	}

	if res := vk.BeginCommandBuffer(v.Handle, beginInfo); res != vk.Success {
		err := vulkanError("vkBeginCommandBuffer", res)
		core.LogError(err.Error())
		return err
	}
	v.State = COMMAND_BUFFER_STATE_RECORDING
	v.descriptors.reset()
	v.pipeline = nil
	v.regions = v.regions[:0]
	v.err = nil
	return nil
}

func (v *VulkanCommandBuffer) End() error {
	if v.State == COMMAND_BUFFER_STATE_IN_RENDER_PASS {
		vk.CmdEndRenderPass(v.Handle)
	}
	if res := vk.EndCommandBuffer(v.Handle); res != vk.Success {
		err := vulkanError("vkEndCommandBuffer", res)
		core.LogError(err.Error())
		return err
	}
	v.State = COMMAND_BUFFER_STATE_RECORDING_ENDED
	return nil
}

func (v *VulkanCommandBuffer) UpdateSubmitted() {
	v.State = COMMAND_BUFFER_STATE_SUBMITTED
}

func (v *VulkanCommandBuffer) Reset() {
	vk.ResetCommandBuffer(v.Handle, 0)
	v.State = COMMAND_BUFFER_STATE_READY
}

// fail keeps the first recording error, tagged with the debug region it
// happened in.
func (v *VulkanCommandBuffer) fail(err error) {
	if v.err != nil {
		return
	}
	if n := len(v.regions); n > 0 {
		core.LogError("%s: %s", v.regions[n-1], err.Error())
	} else {
		core.LogError(err.Error())
	}
	v.err = err
}

func (v *VulkanCommandBuffer) PipelineBarrier(barriers metadata.Barriers) {
	if barriers.IsEmpty() {
		return
	}
	var src, dst metadata.PipelineStage
	v.imageBarriers = v.imageBarriers[:0]
	v.bufferBarriers = v.bufferBarriers[:0]

	for _, b := range barriers.Images {
		img, err := imageOf(b.Image)
		if err != nil {
			v.fail(err)
			return
		}
		src |= b.SrcStages
		dst |= b.DstStages
		v.imageBarriers = append(v.imageBarriers, vk.ImageMemoryBarrier{
			SType:               vk.StructureTypeImageMemoryBarrier,
			SrcAccessMask:       vkAccess(b.SrcAccess),
			DstAccessMask:       vkAccess(b.DstAccess),
			OldLayout:           vkImageLayout(b.OldLayout),
			NewLayout:           vkImageLayout(b.NewLayout),
			SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
			DstQueueFamilyIndex: vk.QueueFamilyIgnored,
			Image:               img.Handle,
			SubresourceRange: vk.ImageSubresourceRange{
				AspectMask:     vkAspect(b.Aspect),
				BaseMipLevel:   0,
				LevelCount:     vk.RemainingMipLevels,
				BaseArrayLayer: 0,
				LayerCount:     vk.RemainingArrayLayers,
			},
		})
	}
	for _, b := range barriers.Buffers {
		buf, err := bufferOf(b.Buffer)
		if err != nil {
			v.fail(err)
			return
		}
		src |= b.SrcStages
		dst |= b.DstStages
		v.bufferBarriers = append(v.bufferBarriers, vk.BufferMemoryBarrier{
			SType:               vk.StructureTypeBufferMemoryBarrier,
			SrcAccessMask:       vkAccess(b.SrcAccess),
			DstAccessMask:       vkAccess(b.DstAccess),
			SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
			DstQueueFamilyIndex: vk.QueueFamilyIgnored,
			Buffer:              buf.Handle,
			Offset:              0,
			Size:                vk.DeviceSize(vk.WholeSize),
		})
	}

	dstStages := vkStages(dst)
	if dst == metadata.PipelineStageNone {
		dstStages = vk.PipelineStageFlags(vk.PipelineStageBottomOfPipeBit)
	}
	vk.CmdPipelineBarrier(v.Handle, vkStages(src), dstStages, 0,
		0, nil,
		uint32(len(v.bufferBarriers)), v.bufferBarriers,
		uint32(len(v.imageBarriers)), v.imageBarriers)
}

func (v *VulkanCommandBuffer) BeginRenderpass(renderpass *metadata.Renderpass, framebuffer *metadata.Framebuffer, area metadata.Rect, clear []metadata.ClearValue) {
	rp, ok := renderpass.InternalData.(*VulkanRenderpass)
	if !ok {
		v.fail(vulkanObjectError("renderpass", renderpass.Desc.Name))
		return
	}
	fb, ok := framebuffer.InternalData.(*VulkanFramebuffer)
	if !ok {
		v.fail(vulkanObjectError("framebuffer", renderpass.Desc.Name))
		return
	}
	rp.RenderpassBegin(v, fb.Handle, area, clear)
}

func (v *VulkanCommandBuffer) EndRenderpass() {
	if v.State != COMMAND_BUFFER_STATE_IN_RENDER_PASS {
		return
	}
	vk.CmdEndRenderPass(v.Handle)
	v.State = COMMAND_BUFFER_STATE_RECORDING
}

func (v *VulkanCommandBuffer) SetViewport(viewport metadata.Viewport) {
	vk.CmdSetViewport(v.Handle, 0, 1, []vk.Viewport{{
		X:        viewport.X,
		Y:        viewport.Y,
		Width:    viewport.Width,
		Height:   viewport.Height,
		MinDepth: viewport.MinDepth,
		MaxDepth: viewport.MaxDepth,
	}})
}

func (v *VulkanCommandBuffer) SetScissor(scissor metadata.Rect) {
	vk.CmdSetScissor(v.Handle, 0, 1, []vk.Rect2D{{
		Offset: vk.Offset2D{X: scissor.X, Y: scissor.Y},
		Extent: vk.Extent2D{Width: scissor.Width, Height: scissor.Height},
	}})
}

func (v *VulkanCommandBuffer) bindPipeline(pipeline *metadata.Pipeline) {
	p, ok := pipeline.InternalData.(*VulkanPipeline)
	if !ok {
		v.fail(vulkanObjectError("pipeline", pipeline.Shader.Name))
		return
	}
	p.Bind(v)
	v.pipeline = p
	// A new layout invalidates what was bound to set 0.
	v.descriptors.dirty = true
}

func (v *VulkanCommandBuffer) BindGraphicsPipeline(pipeline *metadata.Pipeline) {
	v.bindPipeline(pipeline)
}

func (v *VulkanCommandBuffer) BindComputePipeline(pipeline *metadata.Pipeline) {
	v.bindPipeline(pipeline)
}

func (v *VulkanCommandBuffer) BindImage(binding uint32, image *metadata.Image) {
	img, err := imageOf(image)
	if err != nil {
		v.fail(err)
		return
	}
	v.descriptors.setImage(binding, img)
}

func (v *VulkanCommandBuffer) BindBuffer(binding uint32, buffer *metadata.Buffer) {
	buf, err := bufferOf(buffer)
	if err != nil {
		v.fail(err)
		return
	}
	v.descriptors.setBuffer(binding, buf)
}

func (v *VulkanCommandBuffer) PushConstants(pipeline *metadata.Pipeline, stages metadata.ShaderStage, offset uint32, data []byte) {
	if len(data) == 0 {
		return
	}
	p, ok := pipeline.InternalData.(*VulkanPipeline)
	if !ok {
		v.fail(vulkanObjectError("pipeline", pipeline.Shader.Name))
		return
	}
	flags := vk.ShaderStageFlags(stages) & p.PushConstantStages
	if flags == 0 {
		flags = p.PushConstantStages
	}
	vk.CmdPushConstants(v.Handle, p.PipelineLayout, flags, offset, uint32(len(data)), unsafe.Pointer(&data[0]))
}

func (v *VulkanCommandBuffer) flushDescriptors() {
	if err := v.descriptors.flush(v.context, v.descriptorPool, v, v.pipeline); err != nil {
		v.fail(err)
	}
}

func (v *VulkanCommandBuffer) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	v.flushDescriptors()
	vk.CmdDraw(v.Handle, vertexCount, instanceCount, firstVertex, firstInstance)
}

func (v *VulkanCommandBuffer) DrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) {
	v.flushDescriptors()
	vk.CmdDrawIndexed(v.Handle, indexCount, instanceCount, firstIndex, vertexOffset, firstInstance)
}

func (v *VulkanCommandBuffer) Dispatch(x, y, z uint32) {
	v.flushDescriptors()
	vk.CmdDispatch(v.Handle, x, y, z)
}

// BeginDebugRegion only tracks the region names, used to tag recording
// errors. The debug report extension has no command labels.
func (v *VulkanCommandBuffer) BeginDebugRegion(name string, _ [4]float32) {
	v.regions = append(v.regions, name)
}

func (v *VulkanCommandBuffer) EndDebugRegion() {
	if n := len(v.regions); n > 0 {
		v.regions = v.regions[:n-1]
	}
}
