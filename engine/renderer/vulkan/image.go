package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/framegraph/engine/core"
	"github.com/spaghettifunk/framegraph/engine/renderer/metadata"
)

type VulkanImage struct {
	Handle  vk.Image
	Memory  vk.DeviceMemory
	View    vk.ImageView
	Sampler vk.Sampler
	Width   uint32
	Height  uint32
	Aspect  vk.ImageAspectFlags
}

func ImageCreate(context *VulkanContext, config metadata.ImageConfig, width, height uint32) (*VulkanImage, error) {
	outImage := &VulkanImage{
		Width:  width,
		Height: height,
		Aspect: vkAspect(metadata.AspectOf(config.Format)),
	}

	imageCreateInfo := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Format:    vkFormat(config.Format),
		Extent: vk.Extent3D{
			Width:  width,
			Height: height,
			Depth:  1,
		},
		MipLevels:     config.MipCount(),
		ArrayLayers:   1,
		Samples:       vkSamples(config.SampleCount()),
		Tiling:        vk.ImageTilingOptimal,
		Usage:         vk.ImageUsageFlags(config.Usage),
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}
	if config.HostVisible {
		imageCreateInfo.Tiling = vk.ImageTilingLinear
	}

	var handle vk.Image
	if res := vk.CreateImage(context.Device.LogicalDevice, &imageCreateInfo, context.Allocator, &handle); res != vk.Success {
		return nil, vulkanError("vkCreateImage", res)
	}
	outImage.Handle = handle

	var requirements vk.MemoryRequirements
	vk.GetImageMemoryRequirements(context.Device.LogicalDevice, handle, &requirements)
	memory, err := context.allocateMemory(requirements, config.HostVisible)
	if err != nil {
		outImage.Destroy(context)
		return nil, err
	}
	outImage.Memory = memory
	if res := vk.BindImageMemory(context.Device.LogicalDevice, handle, memory, 0); res != vk.Success {
		outImage.Destroy(context)
		return nil, vulkanError("vkBindImageMemory", res)
	}

	viewCreateInfo := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    handle,
		ViewType: vk.ImageViewType2d,
		Format:   vkFormat(config.Format),
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     outImage.Aspect,
			BaseMipLevel:   0,
			LevelCount:     config.MipCount(),
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	}
	var view vk.ImageView
	if res := vk.CreateImageView(context.Device.LogicalDevice, &viewCreateInfo, context.Allocator, &view); res != vk.Success {
		outImage.Destroy(context)
		return nil, vulkanError("vkCreateImageView", res)
	}
	outImage.View = view

	if config.Usage&metadata.ImageUsageSampled != 0 {
		samplerCreateInfo := vk.SamplerCreateInfo{
			SType:        vk.StructureTypeSamplerCreateInfo,
			MagFilter:    vkFilter(config.Filter),
			MinFilter:    vkFilter(config.Filter),
			MipmapMode:   vk.SamplerMipmapModeLinear,
			AddressModeU: vkAddressMode(config.Wrap),
			AddressModeV: vkAddressMode(config.Wrap),
			AddressModeW: vkAddressMode(config.Wrap),
			MaxLod:       float32(config.MipCount()),
			BorderColor:  vk.BorderColorFloatTransparentBlack,
		}
		var sampler vk.Sampler
		if res := vk.CreateSampler(context.Device.LogicalDevice, &samplerCreateInfo, context.Allocator, &sampler); res != vk.Success {
			outImage.Destroy(context)
			return nil, vulkanError("vkCreateSampler", res)
		}
		outImage.Sampler = sampler
	}
	return outImage, nil
}

func (vi *VulkanImage) Destroy(context *VulkanContext) {
	device := context.Device.LogicalDevice
	if vi.Sampler != nil {
		vk.DestroySampler(device, vi.Sampler, context.Allocator)
		vi.Sampler = nil
	}
	if vi.View != nil {
		vk.DestroyImageView(device, vi.View, context.Allocator)
		vi.View = nil
	}
	if vi.Memory != nil {
		vk.FreeMemory(device, vi.Memory, context.Allocator)
		vi.Memory = nil
	}
	if vi.Handle != nil {
		vk.DestroyImage(device, vi.Handle, context.Allocator)
		vi.Handle = nil
	}
}

func imageOf(image *metadata.Image) (*VulkanImage, error) {
	if image == nil {
		return nil, fmt.Errorf("%w: nil image", core.ErrUnknownHandle)
	}
	vi, ok := image.InternalData.(*VulkanImage)
	if !ok {
		return nil, fmt.Errorf("%w: image %q was not created by the vulkan device", core.ErrInvalidConfig, image.Name)
	}
	return vi, nil
}
