package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/framegraph/engine/core"
)

type VulkanContext struct {
	Instance  vk.Instance
	Allocator *vk.AllocationCallbacks

	debugMessenger vk.DebugReportCallback

	Device *VulkanDevice

	// One command buffer, fence and descriptor pool per frame slot.
	GraphicsCommandBuffers []*VulkanCommandBuffer
	InFlightFences         []*VulkanFence
	DescriptorPools        []vk.DescriptorPool

	FramesInFlight int

	locks *VulkanLockPool
}

func (vc *VulkanContext) FindMemoryIndex(typeFilter, propertyFlags uint32) int32 {
	var memoryProperties vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(vc.Device.PhysicalDevice, &memoryProperties)
	memoryProperties.Deref()

	for i := uint32(0); i < memoryProperties.MemoryTypeCount; i++ {
		// Check each memory type to see if its bit is set to 1.
		memoryProperties.MemoryTypes[i].Deref()
		if (typeFilter&(1<<i)) != 0 && (uint32(memoryProperties.MemoryTypes[i].PropertyFlags)&propertyFlags) == propertyFlags {
			return int32(i)
		}
	}
	core.LogWarn("Unable to find suitable memory type!")
	return -1
}

// allocateMemory allocates and returns memory matching the requirements.
func (vc *VulkanContext) allocateMemory(requirements vk.MemoryRequirements, hostVisible bool) (vk.DeviceMemory, error) {
	requirements.Deref()
	flags := vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit)
	if hostVisible {
		flags = vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit) | vk.MemoryPropertyFlags(vk.MemoryPropertyHostCoherentBit)
	}
	var memory vk.DeviceMemory
	index := vc.FindMemoryIndex(requirements.MemoryTypeBits, uint32(flags))
	if index < 0 {
		return memory, vulkanError("no suitable memory type", vk.ErrorOutOfDeviceMemory)
	}
	allocateInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  requirements.Size,
		MemoryTypeIndex: uint32(index),
	}
	err := vc.locks.SafeCall(MemoryManagement, func() error {
		if res := vk.AllocateMemory(vc.Device.LogicalDevice, &allocateInfo, vc.Allocator, &memory); res != vk.Success {
			return vulkanError("vkAllocateMemory", res)
		}
		return nil
	})
	return memory, err
}
