package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/framegraph/engine/renderer/metadata"
)

type VulkanRenderpass struct {
	Handle     vk.RenderPass
	ColorCount uint32
	HasDepth   bool
}

func attachmentDescription(a metadata.AttachmentDesc) vk.AttachmentDescription {
	return vk.AttachmentDescription{
		Format:         vkFormat(a.Format),
		Samples:        vkSamples(a.Samples),
		LoadOp:         vkLoadOp(a.LoadOp),
		StoreOp:        vkStoreOp(a.StoreOp),
		StencilLoadOp:  vkLoadOp(a.StencilLoadOp),
		StencilStoreOp: vkStoreOp(a.StencilStoreOp),
		// The graph records its own barriers, so the renderpass starts in
		// whatever layout the last barrier left and stays in the drawing
		// layout.
		InitialLayout: vkImageLayout(a.InitialLayout),
		FinalLayout:   vkImageLayout(a.Layout),
	}
}

// RenderpassCreate creates a single subpass renderpass. Color attachments
// come first in slot order, the depth attachment last.
func RenderpassCreate(context *VulkanContext, desc metadata.RenderpassDesc) (*VulkanRenderpass, error) {
	outRenderpass := &VulkanRenderpass{
		ColorCount: uint32(len(desc.Color)),
		HasDepth:   desc.Depth != nil,
	}

	attachmentDescriptions := make([]vk.AttachmentDescription, 0, desc.AttachmentCount())
	colorReferences := make([]vk.AttachmentReference, 0, len(desc.Color))
	for i, c := range desc.Color {
		attachmentDescriptions = append(attachmentDescriptions, attachmentDescription(c))
		colorReferences = append(colorReferences, vk.AttachmentReference{
			Attachment: uint32(i),
			Layout:     vkImageLayout(c.Layout),
		})
	}

	subpass := vk.SubpassDescription{
		PipelineBindPoint:    vk.PipelineBindPointGraphics,
		ColorAttachmentCount: uint32(len(colorReferences)),
		PColorAttachments:    colorReferences,
	}
	if desc.Depth != nil {
		attachmentDescriptions = append(attachmentDescriptions, attachmentDescription(*desc.Depth))
		subpass.PDepthStencilAttachment = &vk.AttachmentReference{
			Attachment: uint32(len(desc.Color)),
			Layout:     vkImageLayout(desc.Depth.Layout),
		}
	}

	renderpassCreateInfo := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(attachmentDescriptions)),
		PAttachments:    attachmentDescriptions,
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{subpass},
	}

	var pRenderPass vk.RenderPass
	if res := vk.CreateRenderPass(context.Device.LogicalDevice, &renderpassCreateInfo, context.Allocator, &pRenderPass); res != vk.Success {
		return nil, vulkanError("vkCreateRenderPass", res)
	}
	outRenderpass.Handle = pRenderPass
	return outRenderpass, nil
}

func (vr *VulkanRenderpass) RenderpassDestroy(context *VulkanContext) {
	if vr.Handle != nil {
		vk.DestroyRenderPass(context.Device.LogicalDevice, vr.Handle, context.Allocator)
		vr.Handle = nil
	}
}

func (vr *VulkanRenderpass) RenderpassBegin(commandBuffer *VulkanCommandBuffer, frameBuffer vk.Framebuffer, area metadata.Rect, clear []metadata.ClearValue) {
	beginInfo := vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  vr.Handle,
		Framebuffer: frameBuffer,
		RenderArea: vk.Rect2D{
			Offset: vk.Offset2D{X: area.X, Y: area.Y},
			Extent: vk.Extent2D{Width: area.Width, Height: area.Height},
		},
	}

	clearValues := make([]vk.ClearValue, len(clear))
	for i, c := range clear {
		if vr.HasDepth && uint32(i) == vr.ColorCount {
			clearValues[i].SetDepthStencil(c.Depth, c.Stencil)
			continue
		}
		clearValues[i].SetColor(c.Color[:])
	}
	beginInfo.ClearValueCount = uint32(len(clearValues))
	beginInfo.PClearValues = clearValues

	vk.CmdBeginRenderPass(commandBuffer.Handle, &beginInfo, vk.SubpassContentsInline)
	commandBuffer.State = COMMAND_BUFFER_STATE_IN_RENDER_PASS
}

func (vr *VulkanRenderpass) RenderpassEnd(commandBuffer *VulkanCommandBuffer) {
	vk.CmdEndRenderPass(commandBuffer.Handle)
	commandBuffer.State = COMMAND_BUFFER_STATE_RECORDING
}
