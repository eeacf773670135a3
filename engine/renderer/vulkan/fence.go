package vulkan

import (
	"context"
	"fmt"
	"time"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/framegraph/engine/core"
)

// fencePollInterval bounds a single vkWaitForFences call so cancellation
// of the waiting context is noticed.
const fencePollInterval = 5 * time.Millisecond

type VulkanFence struct {
	Handle     vk.Fence
	IsSignaled bool
}

func NewFence(context *VulkanContext, createSignaled bool) (*VulkanFence, error) {
	fence := &VulkanFence{
		// Make sure to signal the fence if required.
		IsSignaled: createSignaled,
	}

	fenceCreateInfo := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	if fence.IsSignaled {
		fenceCreateInfo.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}

	var pFence vk.Fence
	if res := vk.CreateFence(context.Device.LogicalDevice, &fenceCreateInfo, context.Allocator, &pFence); res != vk.Success {
		err := vulkanError("vkCreateFence", res)
		core.LogError(err.Error())
		return nil, err
	}
	fence.Handle = pFence
	return fence, nil
}

func (vf *VulkanFence) FenceDestroy(context *VulkanContext) {
	if vf.Handle != nil {
		vk.DestroyFence(context.Device.LogicalDevice, vf.Handle, context.Allocator)
		vf.Handle = nil
	}
	vf.IsSignaled = false
}

// FenceWait blocks until the fence is signaled or ctx is done.
func (vf *VulkanFence) FenceWait(ctx context.Context, vc *VulkanContext) error {
	for !vf.IsSignaled {
		if err := ctx.Err(); err != nil {
			return err
		}
		result := vk.WaitForFences(vc.Device.LogicalDevice, 1, []vk.Fence{vf.Handle}, vk.True, uint64(fencePollInterval.Nanoseconds()))
		switch result {
		case vk.Success:
			vf.IsSignaled = true
		case vk.Timeout:
			continue
		case vk.ErrorDeviceLost:
			core.LogError("vk_fence_wait - VK_ERROR_DEVICE_LOST.")
			return fmt.Errorf("%w: waiting for fence", core.ErrDeviceLost)
		default:
			err := vulkanError("vkWaitForFences", result)
			core.LogError(err.Error())
			return err
		}
	}
	return nil
}

func (vf *VulkanFence) FenceReset(context *VulkanContext) error {
	if vf.IsSignaled {
		if res := vk.ResetFences(context.Device.LogicalDevice, 1, []vk.Fence{vf.Handle}); res != vk.Success {
			err := vulkanError("vkResetFences", res)
			core.LogError(err.Error())
			return err
		}
		vf.IsSignaled = false
	}
	return nil
}
