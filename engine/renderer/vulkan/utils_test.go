package vulkan

import (
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/framegraph/engine/core"
	"github.com/spaghettifunk/framegraph/engine/renderer/metadata"
)

func TestMetadataValuesMatchVulkan(t *testing.T) {
	assert.Equal(t, vk.FormatR8g8b8a8Unorm, vkFormat(metadata.FormatR8G8B8A8Unorm))
	assert.Equal(t, vk.FormatR16g16b16a16Sfloat, vkFormat(metadata.FormatR16G16B16A16Sfloat))
	assert.Equal(t, vk.FormatD32Sfloat, vkFormat(metadata.FormatD32Sfloat))
	assert.Equal(t, vk.FormatD24UnormS8Uint, vkFormat(metadata.FormatD24UnormS8Uint))

	assert.Equal(t, vk.ImageLayoutColorAttachmentOptimal, vkImageLayout(metadata.ImageLayoutColorAttachmentOptimal))
	assert.Equal(t, vk.ImageLayoutShaderReadOnlyOptimal, vkImageLayout(metadata.ImageLayoutShaderReadOnlyOptimal))

	assert.Equal(t, vk.PipelineStageFlags(vk.PipelineStageComputeShaderBit), vkStages(metadata.PipelineStageComputeShader))
	assert.Equal(t, vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit), vkStages(metadata.PipelineStageNone))
	assert.Equal(t, vk.AccessFlags(vk.AccessShaderWriteBit), vkAccess(metadata.AccessShaderWrite))
	assert.Equal(t, vk.ShaderStageFlagBits(vk.ShaderStageFragmentBit), vkShaderStage(metadata.ShaderStageFragment))
	assert.Equal(t, vk.ShaderStageFlagBits(vk.ShaderStageComputeBit), vkShaderStage(metadata.ShaderStageCompute))
}

func TestAttachmentOps(t *testing.T) {
	assert.Equal(t, vk.AttachmentLoadOpClear, vkLoadOp(metadata.LoadOpClear))
	assert.Equal(t, vk.AttachmentLoadOpLoad, vkLoadOp(metadata.LoadOpLoad))
	assert.Equal(t, vk.AttachmentLoadOpDontCare, vkLoadOp(metadata.LoadOpDontCare))
	assert.Equal(t, vk.AttachmentStoreOpStore, vkStoreOp(metadata.StoreOpStore))
	assert.Equal(t, vk.AttachmentStoreOpDontCare, vkStoreOp(metadata.StoreOpDontCare))

	assert.Equal(t, vk.SampleCount4Bit, vkSamples(4))
	assert.Equal(t, vk.SampleCount1Bit, vkSamples(3))
}

func TestSpirvWords(t *testing.T) {
	words, err := spirvWords([]byte{0x03, 0x02, 0x23, 0x07, 0x00, 0x00, 0x01, 0x00})
	require.NoError(t, err)
	assert.Equal(t, []uint32{0x07230203, 0x00010000}, words)

	_, err = spirvWords([]byte{1, 2, 3})
	assert.ErrorIs(t, err, core.ErrInvalidConfig)
	_, err = spirvWords(nil)
	assert.ErrorIs(t, err, core.ErrInvalidConfig)
}

func TestShaderModuleCreateInfo(t *testing.T) {
	code := []byte{0x03, 0x02, 0x23, 0x07, 0x00, 0x00, 0x01, 0x00}
	info, err := shaderModuleCreateInfo(code)
	require.NoError(t, err)
	assert.Equal(t, vk.StructureTypeShaderModuleCreateInfo, info.SType)
	assert.Equal(t, uint64(len(code)), info.CodeSize)
	assert.Len(t, info.PCode, 2)

	_, err = shaderModuleCreateInfo([]byte{1, 2})
	assert.ErrorIs(t, err, core.ErrInvalidConfig)
}

func TestVulkanError(t *testing.T) {
	err := vulkanError("vkQueueSubmit", vk.ErrorDeviceLost)
	assert.ErrorIs(t, err, core.ErrDeviceLost)
	assert.Contains(t, err.Error(), "VK_ERROR_DEVICE_LOST")

	err = vulkanError("vkAllocateMemory", vk.ErrorOutOfDeviceMemory)
	assert.ErrorIs(t, err, core.ErrDeviceAllocation)
	assert.NotErrorIs(t, err, core.ErrDeviceLost)
}

func TestSafeStrings(t *testing.T) {
	assert.Equal(t, "\x00", VulkanSafeString(""))
	assert.Equal(t, "main\x00", VulkanSafeString("main"))
	assert.Equal(t, "main\x00", VulkanSafeString("main\x00"))

	in := []string{"a", "b\x00"}
	out := VulkanSafeStrings(in)
	assert.Equal(t, []string{"a\x00", "b\x00"}, out)
	assert.Equal(t, "a", in[0])

	assert.Equal(t, 2, FindFirstZeroInByteArray([]byte{'a', 'b', 0, 'c'}))
	assert.Equal(t, 2, FindFirstZeroInByteArray([]byte{'a', 'b'}))
}

func TestBindingDescriptorTypes(t *testing.T) {
	assert.Equal(t, vk.DescriptorTypeCombinedImageSampler, vkDescriptorType(metadata.BindingSampledImage))
	assert.Equal(t, vk.DescriptorTypeStorageImage, vkDescriptorType(metadata.BindingStorageImage))
	assert.Equal(t, vk.DescriptorTypeUniformBuffer, vkDescriptorType(metadata.BindingUniformBuffer))
	assert.Equal(t, vk.DescriptorTypeStorageBuffer, vkDescriptorType(metadata.BindingStorageBuffer))
}
