package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/framegraph/engine/core"
)

type VulkanDevice struct {
	PhysicalDevice     vk.PhysicalDevice
	LogicalDevice      vk.Device
	GraphicsQueueIndex int32

	// The graph records graphics and compute work into one command buffer,
	// so a single queue supporting both is used.
	GraphicsQueue vk.Queue

	GraphicsCommandPool vk.CommandPool

	Properties vk.PhysicalDeviceProperties
	Features   vk.PhysicalDeviceFeatures
	Memory     vk.PhysicalDeviceMemoryProperties
}

type VulkanPhysicalDeviceRequirements struct {
	Graphics          bool
	Compute           bool
	SamplerAnisotropy bool
	DiscreteGPU       bool
}

func DeviceCreate(context *VulkanContext, requirements VulkanPhysicalDeviceRequirements) error {
	context.Device = &VulkanDevice{GraphicsQueueIndex: -1}
	if err := SelectPhysicalDevice(context, requirements); err != nil {
		return err
	}

	core.LogInfo("Creating logical device...")

	queueCreateInfos := []vk.DeviceQueueCreateInfo{{
		SType:            vk.StructureTypeDeviceQueueCreateInfo,
		QueueFamilyIndex: uint32(context.Device.GraphicsQueueIndex),
		QueueCount:       1,
		PQueuePriorities: []float32{1.0},
	}}

	deviceFeatures := vk.PhysicalDeviceFeatures{}
	if requirements.SamplerAnisotropy {
		deviceFeatures.SamplerAnisotropy = vk.True
	}

	var extensionNames []string
	if hasDeviceExtension(context.Device.PhysicalDevice, "VK_KHR_portability_subset") {
		core.LogInfo("Adding required extension 'VK_KHR_portability_subset'.")
		extensionNames = append(extensionNames, "VK_KHR_portability_subset")
	}

	deviceCreateInfo := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueCreateInfos)),
		PQueueCreateInfos:       queueCreateInfos,
		PEnabledFeatures:        []vk.PhysicalDeviceFeatures{deviceFeatures},
		EnabledExtensionCount:   uint32(len(extensionNames)),
		PpEnabledExtensionNames: VulkanSafeStrings(extensionNames),
	}

	var logicalDevice vk.Device
	if res := vk.CreateDevice(context.Device.PhysicalDevice, &deviceCreateInfo, context.Allocator, &logicalDevice); res != vk.Success {
		err := vulkanError("vkCreateDevice", res)
		core.LogError(err.Error())
		return err
	}
	context.Device.LogicalDevice = logicalDevice
	core.LogInfo("Logical device created.")

	var queue vk.Queue
	vk.GetDeviceQueue(logicalDevice, uint32(context.Device.GraphicsQueueIndex), 0, &queue)
	context.Device.GraphicsQueue = queue
	context.locks.SetQueueFamily(uint32(context.Device.GraphicsQueueIndex))
	core.LogInfo("Queues obtained.")

	poolCreateInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: uint32(context.Device.GraphicsQueueIndex),
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}
	var pool vk.CommandPool
	if res := vk.CreateCommandPool(logicalDevice, &poolCreateInfo, context.Allocator, &pool); res != vk.Success {
		err := vulkanError("vkCreateCommandPool", res)
		core.LogError(err.Error())
		return err
	}
	context.Device.GraphicsCommandPool = pool
	core.LogInfo("Graphics command pool created.")
	return nil
}

func DeviceDestroy(context *VulkanContext) {
	if context.Device == nil {
		return
	}
	context.Device.GraphicsQueue = nil

	if context.Device.LogicalDevice != nil {
		core.LogInfo("Destroying command pools...")
		vk.DestroyCommandPool(context.Device.LogicalDevice, context.Device.GraphicsCommandPool, context.Allocator)

		core.LogInfo("Destroying logical device...")
		vk.DestroyDevice(context.Device.LogicalDevice, context.Allocator)
		context.Device.LogicalDevice = nil
	}

	// Physical devices are not destroyed.
	context.Device.PhysicalDevice = nil
	context.Device.GraphicsQueueIndex = -1
}

func hasDeviceExtension(device vk.PhysicalDevice, name string) bool {
	var count uint32
	if res := vk.EnumerateDeviceExtensionProperties(device, "", &count, nil); res != vk.Success || count == 0 {
		return false
	}
	available := make([]vk.ExtensionProperties, count)
	if res := vk.EnumerateDeviceExtensionProperties(device, "", &count, available); res != vk.Success {
		return false
	}
	for i := range available {
		available[i].Deref()
		end := FindFirstZeroInByteArray(available[i].ExtensionName[:])
		if string(available[i].ExtensionName[:end]) == name {
			return true
		}
	}
	return false
}

func SelectPhysicalDevice(context *VulkanContext, requirements VulkanPhysicalDeviceRequirements) error {
	var physicalDeviceCount uint32
	if res := vk.EnumeratePhysicalDevices(context.Instance, &physicalDeviceCount, nil); res != vk.Success {
		return vulkanError("vkEnumeratePhysicalDevices", res)
	}
	if physicalDeviceCount == 0 {
		return fmt.Errorf("%w: no devices which support Vulkan were found", core.ErrDeviceAllocation)
	}

	physicalDevices := make([]vk.PhysicalDevice, physicalDeviceCount)
	if res := vk.EnumeratePhysicalDevices(context.Instance, &physicalDeviceCount, physicalDevices); res != vk.Success {
		return vulkanError("vkEnumeratePhysicalDevices", res)
	}

	for i := 0; i < int(physicalDeviceCount); i++ {
		properties := vk.PhysicalDeviceProperties{}
		vk.GetPhysicalDeviceProperties(physicalDevices[i], &properties)
		properties.Deref()

		features := vk.PhysicalDeviceFeatures{}
		vk.GetPhysicalDeviceFeatures(physicalDevices[i], &features)
		features.Deref()

		memory := vk.PhysicalDeviceMemoryProperties{}
		vk.GetPhysicalDeviceMemoryProperties(physicalDevices[i], &memory)
		memory.Deref()

		queueIndex, ok := PhysicalDeviceMeetsRequirements(physicalDevices[i], &properties, &features, requirements)
		if !ok {
			continue
		}

		end := FindFirstZeroInByteArray(properties.DeviceName[:])
		core.LogInfo("Selected device: '%s'.", string(properties.DeviceName[:end]))
		switch properties.DeviceType {
		case vk.PhysicalDeviceTypeIntegratedGpu:
			core.LogInfo("GPU type is Integrated.")
		case vk.PhysicalDeviceTypeDiscreteGpu:
			core.LogInfo("GPU type is Discrete.")
		case vk.PhysicalDeviceTypeVirtualGpu:
			core.LogInfo("GPU type is Virtual.")
		case vk.PhysicalDeviceTypeCpu:
			core.LogInfo("GPU type is CPU.")
		default:
			core.LogInfo("GPU type is Unknown.")
		}
		core.LogInfo(
			"Vulkan API version: %d.%d.%d",
			vk.Version.Major(vk.Version(properties.ApiVersion)),
			vk.Version.Minor(vk.Version(properties.ApiVersion)),
			vk.Version.Patch(vk.Version(properties.ApiVersion)),
		)
		for j := 0; j < int(memory.MemoryHeapCount); j++ {
			memory.MemoryHeaps[j].Deref()
			memorySizeGib := float64(memory.MemoryHeaps[j].Size) / 1024.0 / 1024.0 / 1024.0
			if vk.MemoryHeapFlagBits(memory.MemoryHeaps[j].Flags)&vk.MemoryHeapDeviceLocalBit != 0 {
				core.LogInfo("Local GPU memory: %.2f GiB", memorySizeGib)
			} else {
				core.LogInfo("Shared System memory: %.2f GiB", memorySizeGib)
			}
		}

		context.Device.PhysicalDevice = physicalDevices[i]
		context.Device.GraphicsQueueIndex = int32(queueIndex)
		context.Device.Properties = properties
		context.Device.Features = features
		context.Device.Memory = memory
		core.LogInfo("Physical device selected.")
		return nil
	}

	err := fmt.Errorf("%w: no physical devices were found which meet the requirements", core.ErrDeviceAllocation)
	core.LogError(err.Error())
	return err
}

// PhysicalDeviceMeetsRequirements returns the index of a queue family that
// supports every requested kind of work.
func PhysicalDeviceMeetsRequirements(device vk.PhysicalDevice, properties *vk.PhysicalDeviceProperties, features *vk.PhysicalDeviceFeatures, requirements VulkanPhysicalDeviceRequirements) (uint32, bool) {
	if requirements.DiscreteGPU && properties.DeviceType != vk.PhysicalDeviceTypeDiscreteGpu {
		core.LogInfo("Device is not a discrete GPU, and one is required. Skipping.")
		return 0, false
	}
	if requirements.SamplerAnisotropy && features.SamplerAnisotropy == vk.False {
		core.LogInfo("Device does not support samplerAnisotropy, skipping.")
		return 0, false
	}

	var queueFamilyCount uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &queueFamilyCount, nil)
	queueFamilies := make([]vk.QueueFamilyProperties, queueFamilyCount)
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &queueFamilyCount, queueFamilies)

	for i := range queueFamilies {
		queueFamilies[i].Deref()
		flags := vk.QueueFlagBits(queueFamilies[i].QueueFlags)
		graphics := flags&vk.QueueGraphicsBit != 0
		compute := flags&vk.QueueComputeBit != 0
		core.LogDebug("queue family %d: graphics %t compute %t", i, graphics, compute)
		if (!requirements.Graphics || graphics) && (!requirements.Compute || compute) {
			return uint32(i), true
		}
	}
	core.LogInfo("Device has no queue family with the required capabilities, skipping.")
	return 0, false
}
