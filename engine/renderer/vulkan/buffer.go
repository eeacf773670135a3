package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/framegraph/engine/core"
	"github.com/spaghettifunk/framegraph/engine/math"
	"github.com/spaghettifunk/framegraph/engine/renderer/metadata"
)

type VulkanBuffer struct {
	Handle vk.Buffer
	Memory vk.DeviceMemory
	Size   uint64
}

func BufferCreate(context *VulkanContext, config metadata.BufferConfig) (*VulkanBuffer, error) {
	size := config.Size
	if config.Usage&metadata.BufferUsageUniform != 0 {
		limits := context.Device.Properties.Limits
		limits.Deref()
		size = math.AlignUp(size, uint64(limits.MinUniformBufferOffsetAlignment))
	}
	outBuffer := &VulkanBuffer{Size: size}

	bufferCreateInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(size),
		Usage:       vk.BufferUsageFlags(config.Usage),
		SharingMode: vk.SharingModeExclusive,
	}
	var handle vk.Buffer
	if res := vk.CreateBuffer(context.Device.LogicalDevice, &bufferCreateInfo, context.Allocator, &handle); res != vk.Success {
		return nil, vulkanError("vkCreateBuffer", res)
	}
	outBuffer.Handle = handle

	var requirements vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(context.Device.LogicalDevice, handle, &requirements)
	memory, err := context.allocateMemory(requirements, config.HostVisible)
	if err != nil {
		outBuffer.Destroy(context)
		return nil, err
	}
	outBuffer.Memory = memory
	if res := vk.BindBufferMemory(context.Device.LogicalDevice, handle, memory, 0); res != vk.Success {
		outBuffer.Destroy(context)
		return nil, vulkanError("vkBindBufferMemory", res)
	}
	return outBuffer, nil
}

func (vb *VulkanBuffer) Destroy(context *VulkanContext) {
	if vb.Memory != nil {
		vk.FreeMemory(context.Device.LogicalDevice, vb.Memory, context.Allocator)
		vb.Memory = nil
	}
	if vb.Handle != nil {
		vk.DestroyBuffer(context.Device.LogicalDevice, vb.Handle, context.Allocator)
		vb.Handle = nil
	}
}

func bufferOf(buffer *metadata.Buffer) (*VulkanBuffer, error) {
	if buffer == nil {
		return nil, fmt.Errorf("%w: nil buffer", core.ErrUnknownHandle)
	}
	vb, ok := buffer.InternalData.(*VulkanBuffer)
	if !ok {
		return nil, fmt.Errorf("%w: buffer %q was not created by the vulkan device", core.ErrInvalidConfig, buffer.Name)
	}
	return vb, nil
}
