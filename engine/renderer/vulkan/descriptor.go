package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/framegraph/engine/core"
	"github.com/spaghettifunk/framegraph/engine/renderer/metadata"
)

const (
	// VULKAN_MAX_DESCRIPTOR_SETS is the number of sets a frame can allocate
	// from its descriptor pool before the pool runs dry.
	VULKAN_MAX_DESCRIPTOR_SETS uint32 = 1024
	// VULKAN_SHADER_MAX_BINDINGS bounds the bindings of set 0.
	VULKAN_SHADER_MAX_BINDINGS uint32 = 16
)

// NewDescriptorSetLayout builds the layout of set 0 from the bindings the
// program declares. Programs without bindings get no layout.
func NewDescriptorSetLayout(context *VulkanContext, program *metadata.ShaderProgram) (vk.DescriptorSetLayout, error) {
	var layout vk.DescriptorSetLayout
	if len(program.Bindings) == 0 {
		return layout, nil
	}
	stages := stageFlags(program)
	bindings := make([]vk.DescriptorSetLayoutBinding, 0, len(program.Bindings))
	for _, b := range program.Bindings {
		if b.Binding >= VULKAN_SHADER_MAX_BINDINGS {
			core.LogWarn("shader %q: binding %d is out of range and ignored", program.Name, b.Binding)
			continue
		}
		bindings = append(bindings, vk.DescriptorSetLayoutBinding{
			Binding:         b.Binding,
			DescriptorType:  vkDescriptorType(b.Kind),
			DescriptorCount: 1,
			StageFlags:      stages,
		})
	}
	createInfo := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(bindings)),
		PBindings:    bindings,
	}
	if res := vk.CreateDescriptorSetLayout(context.Device.LogicalDevice, &createInfo, context.Allocator, &layout); res != vk.Success {
		return layout, vulkanError("vkCreateDescriptorSetLayout", res)
	}
	return layout, nil
}

// NewDescriptorPool creates the pool a frame slot allocates its sets from.
// It is reset, not freed set by set, when the slot is reused.
func NewDescriptorPool(context *VulkanContext) (vk.DescriptorPool, error) {
	sizes := []vk.DescriptorPoolSize{
		{Type: vk.DescriptorTypeCombinedImageSampler, DescriptorCount: VULKAN_MAX_DESCRIPTOR_SETS * 4},
		{Type: vk.DescriptorTypeStorageImage, DescriptorCount: VULKAN_MAX_DESCRIPTOR_SETS},
		{Type: vk.DescriptorTypeUniformBuffer, DescriptorCount: VULKAN_MAX_DESCRIPTOR_SETS},
		{Type: vk.DescriptorTypeStorageBuffer, DescriptorCount: VULKAN_MAX_DESCRIPTOR_SETS},
	}
	createInfo := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       VULKAN_MAX_DESCRIPTOR_SETS,
		PoolSizeCount: uint32(len(sizes)),
		PPoolSizes:    sizes,
	}
	var pool vk.DescriptorPool
	if res := vk.CreateDescriptorPool(context.Device.LogicalDevice, &createInfo, context.Allocator, &pool); res != vk.Success {
		return pool, vulkanError("vkCreateDescriptorPool", res)
	}
	return pool, nil
}

type descriptorBinding struct {
	image  *VulkanImage
	buffer *VulkanBuffer
	bound  bool
}

/**
 * @brief The resources bound to set 0 since the last draw or dispatch. A
 * descriptor set is written only when something changed.
 */
type VulkanDescriptorState struct {
	bindings [VULKAN_SHADER_MAX_BINDINGS]descriptorBinding
	dirty    bool
}

func (s *VulkanDescriptorState) reset() {
	s.bindings = [VULKAN_SHADER_MAX_BINDINGS]descriptorBinding{}
	s.dirty = false
}

func (s *VulkanDescriptorState) setImage(binding uint32, image *VulkanImage) {
	if binding >= VULKAN_SHADER_MAX_BINDINGS {
		core.LogWarn("image binding %d is out of range and ignored", binding)
		return
	}
	s.bindings[binding] = descriptorBinding{image: image, bound: true}
	s.dirty = true
}

func (s *VulkanDescriptorState) setBuffer(binding uint32, buffer *VulkanBuffer) {
	if binding >= VULKAN_SHADER_MAX_BINDINGS {
		core.LogWarn("buffer binding %d is out of range and ignored", binding)
		return
	}
	s.bindings[binding] = descriptorBinding{buffer: buffer, bound: true}
	s.dirty = true
}

// flush allocates a set from pool, writes the bindings the pipeline
// declares and binds it.
func (s *VulkanDescriptorState) flush(context *VulkanContext, pool vk.DescriptorPool, cmd *VulkanCommandBuffer, pipeline *VulkanPipeline) error {
	if !s.dirty || pipeline == nil || pipeline.SetLayout == nil {
		return nil
	}
	allocateInfo := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     pool,
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{pipeline.SetLayout},
	}
	var set vk.DescriptorSet
	if err := context.locks.SafeCall(DescriptorManagement, func() error {
		if res := vk.AllocateDescriptorSets(context.Device.LogicalDevice, &allocateInfo, &set); res != vk.Success {
			return vulkanError("vkAllocateDescriptorSets", res)
		}
		return nil
	}); err != nil {
		return err
	}

	writes := make([]vk.WriteDescriptorSet, 0, len(pipeline.Bindings))
	for _, b := range pipeline.Bindings {
		if b.Binding >= VULKAN_SHADER_MAX_BINDINGS || !s.bindings[b.Binding].bound {
			continue
		}
		bound := s.bindings[b.Binding]
		write := vk.WriteDescriptorSet{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          set,
			DstBinding:      b.Binding,
			DescriptorCount: 1,
			DescriptorType:  vkDescriptorType(b.Kind),
		}
		switch {
		case bound.image != nil && b.Kind == metadata.BindingSampledImage:
			write.PImageInfo = []vk.DescriptorImageInfo{{
				Sampler:     bound.image.Sampler,
				ImageView:   bound.image.View,
				ImageLayout: vk.ImageLayoutShaderReadOnlyOptimal,
			}}
		case bound.image != nil && b.Kind == metadata.BindingStorageImage:
			write.PImageInfo = []vk.DescriptorImageInfo{{
				ImageView:   bound.image.View,
				ImageLayout: vk.ImageLayoutGeneral,
			}}
		case bound.buffer != nil:
			write.PBufferInfo = []vk.DescriptorBufferInfo{{
				Buffer: bound.buffer.Handle,
				Offset: 0,
				Range:  vk.DeviceSize(vk.WholeSize),
			}}
		default:
			core.LogWarn("binding %d expects a %s, skipping", b.Binding, b.Kind)
			continue
		}
		writes = append(writes, write)
	}
	if len(writes) > 0 {
		vk.UpdateDescriptorSets(context.Device.LogicalDevice, uint32(len(writes)), writes, 0, nil)
	}
	vk.CmdBindDescriptorSets(cmd.Handle, pipeline.BindPoint, pipeline.PipelineLayout, 0, 1, []vk.DescriptorSet{set}, 0, nil)
	s.dirty = false
	return nil
}
