package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/framegraph/engine/core"
	"github.com/spaghettifunk/framegraph/engine/renderer/metadata"
)

var resultNames = map[vk.Result]string{
	vk.Success:                   "VK_SUCCESS",
	vk.NotReady:                  "VK_NOT_READY",
	vk.Timeout:                   "VK_TIMEOUT",
	vk.EventSet:                  "VK_EVENT_SET",
	vk.EventReset:                "VK_EVENT_RESET",
	vk.Incomplete:                "VK_INCOMPLETE",
	vk.ErrorOutOfHostMemory:      "VK_ERROR_OUT_OF_HOST_MEMORY",
	vk.ErrorOutOfDeviceMemory:    "VK_ERROR_OUT_OF_DEVICE_MEMORY",
	vk.ErrorInitializationFailed: "VK_ERROR_INITIALIZATION_FAILED",
	vk.ErrorDeviceLost:           "VK_ERROR_DEVICE_LOST",
	vk.ErrorMemoryMapFailed:      "VK_ERROR_MEMORY_MAP_FAILED",
	vk.ErrorLayerNotPresent:      "VK_ERROR_LAYER_NOT_PRESENT",
	vk.ErrorExtensionNotPresent:  "VK_ERROR_EXTENSION_NOT_PRESENT",
	vk.ErrorFeatureNotPresent:    "VK_ERROR_FEATURE_NOT_PRESENT",
	vk.ErrorIncompatibleDriver:   "VK_ERROR_INCOMPATIBLE_DRIVER",
	vk.ErrorTooManyObjects:       "VK_ERROR_TOO_MANY_OBJECTS",
	vk.ErrorFormatNotSupported:   "VK_ERROR_FORMAT_NOT_SUPPORTED",
	vk.ErrorFragmentedPool:       "VK_ERROR_FRAGMENTED_POOL",
	vk.ErrorOutOfPoolMemory:      "VK_ERROR_OUT_OF_POOL_MEMORY",
	vk.ErrorInvalidShaderNv:      "VK_ERROR_INVALID_SHADER_NV",
	vk.ErrorFragmentation:        "VK_ERROR_FRAGMENTATION",
	vk.ErrorUnknown:              "VK_ERROR_UNKNOWN",
}

func VulkanResultString(result vk.Result) string {
	if name, ok := resultNames[result]; ok {
		return name
	}
	return fmt.Sprintf("VkResult(%d)", int32(result))
}

// vulkanError maps a failed call to the backend sentinel errors. A lost
// device is reported as such, everything else as an allocation failure.
func vulkanError(op string, result vk.Result) error {
	sentinel := core.ErrDeviceAllocation
	if result == vk.ErrorDeviceLost {
		sentinel = core.ErrDeviceLost
	}
	return fmt.Errorf("%w: %s failed with %s", sentinel, op, VulkanResultString(result))
}

var end = "\x00"
var endChar byte = '\x00'

func VulkanSafeString(s string) string {
	if len(s) == 0 {
		return end
	}
	if s[len(s)-1] != endChar {
		return s + end
	}
	return s
}

func VulkanSafeStrings(list []string) []string {
	out := make([]string, len(list))
	for i := range list {
		out[i] = VulkanSafeString(list[i])
	}
	return out
}

func FindFirstZeroInByteArray(arr []byte) int {
	for i, b := range arr {
		if b == 0 {
			return i
		}
	}
	return len(arr)
}

// The metadata enumerations and flags share their values with Vulkan, so
// the conversions below are plain casts. They are kept in one place to
// make that assumption easy to audit.

func vkFormat(f metadata.Format) vk.Format {
	return vk.Format(f)
}

func vkImageLayout(l metadata.ImageLayout) vk.ImageLayout {
	return vk.ImageLayout(l)
}

func vkStages(s metadata.PipelineStage) vk.PipelineStageFlags {
	if s == metadata.PipelineStageNone {
		// A zero stage mask is invalid without synchronization2.
		return vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit)
	}
	return vk.PipelineStageFlags(s)
}

func vkAccess(a metadata.Access) vk.AccessFlags {
	return vk.AccessFlags(a)
}

func vkAspect(a metadata.ImageAspect) vk.ImageAspectFlags {
	return vk.ImageAspectFlags(a)
}

func vkSamples(n uint32) vk.SampleCountFlagBits {
	switch n {
	case 2:
		return vk.SampleCount2Bit
	case 4:
		return vk.SampleCount4Bit
	case 8:
		return vk.SampleCount8Bit
	case 16:
		return vk.SampleCount16Bit
	}
	return vk.SampleCount1Bit
}

func vkLoadOp(op metadata.LoadOp) vk.AttachmentLoadOp {
	switch op {
	case metadata.LoadOpLoad:
		return vk.AttachmentLoadOpLoad
	case metadata.LoadOpClear:
		return vk.AttachmentLoadOpClear
	}
	return vk.AttachmentLoadOpDontCare
}

func vkStoreOp(op metadata.StoreOp) vk.AttachmentStoreOp {
	if op == metadata.StoreOpStore {
		return vk.AttachmentStoreOpStore
	}
	return vk.AttachmentStoreOpDontCare
}

func vkCullMode(mode metadata.FaceCullMode) vk.CullModeFlags {
	switch mode {
	case metadata.FaceCullModeNone:
		return vk.CullModeFlags(vk.CullModeNone)
	case metadata.FaceCullModeFront:
		return vk.CullModeFlags(vk.CullModeFrontBit)
	case metadata.FaceCullModeFrontAndBack:
		return vk.CullModeFlags(vk.CullModeFrontAndBack)
	}
	return vk.CullModeFlags(vk.CullModeBackBit)
}

func vkShaderStage(s metadata.ShaderStage) vk.ShaderStageFlagBits {
	return vk.ShaderStageFlagBits(s)
}

func vkDescriptorType(k metadata.BindingKind) vk.DescriptorType {
	switch k {
	case metadata.BindingStorageImage:
		return vk.DescriptorTypeStorageImage
	case metadata.BindingUniformBuffer:
		return vk.DescriptorTypeUniformBuffer
	case metadata.BindingStorageBuffer:
		return vk.DescriptorTypeStorageBuffer
	}
	return vk.DescriptorTypeCombinedImageSampler
}

func vkFilter(f metadata.FilterMode) vk.Filter {
	if f == metadata.FilterNearest {
		return vk.FilterNearest
	}
	return vk.FilterLinear
}

func vkAddressMode(w metadata.WrapMode) vk.SamplerAddressMode {
	switch w {
	case metadata.WrapMirroredRepeat:
		return vk.SamplerAddressModeMirroredRepeat
	case metadata.WrapClampToEdge:
		return vk.SamplerAddressModeClampToEdge
	case metadata.WrapClampToBorder:
		return vk.SamplerAddressModeClampToBorder
	}
	return vk.SamplerAddressModeRepeat
}
