package vulkan

import (
	"encoding/binary"
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/framegraph/engine/core"
	"github.com/spaghettifunk/framegraph/engine/renderer/metadata"
)

/**
 * @brief Represents a single shader stage.
 */
type VulkanShaderStage struct {
	/** @brief The internal shader module Handle. */
	Handle vk.ShaderModule
	/** @brief The pipeline shader stage creation info. */
	ShaderStageCreateInfo vk.PipelineShaderStageCreateInfo
}

// spirvWords reinterprets little endian SPIR-V bytes as words.
func spirvWords(code []byte) ([]uint32, error) {
	if len(code) == 0 || len(code)%4 != 0 {
		return nil, fmt.Errorf("%w: SPIR-V code size %d is not a multiple of 4", core.ErrInvalidConfig, len(code))
	}
	words := make([]uint32, len(code)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(code[i*4:])
	}
	return words, nil
}

func shaderModuleCreateInfo(code []byte) (vk.ShaderModuleCreateInfo, error) {
	words, err := spirvWords(code)
	if err != nil {
		return vk.ShaderModuleCreateInfo{}, err
	}
	return vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint64(len(code)),
		PCode:    words,
	}, nil
}

// NewShaderStages creates one shader module per stage of the program. The
// caller destroys them with DestroyShaderStages once the pipeline exists.
func NewShaderStages(context *VulkanContext, program *metadata.ShaderProgram) ([]VulkanShaderStage, error) {
	stages := make([]VulkanShaderStage, 0, len(program.Stages))
	for _, st := range program.Stages {
		createInfo, err := shaderModuleCreateInfo(st.Code)
		if err != nil {
			DestroyShaderStages(context, stages)
			return nil, fmt.Errorf("shader %q stage %s: %w", program.Name, st.Stage, err)
		}
		var module vk.ShaderModule
		if res := vk.CreateShaderModule(context.Device.LogicalDevice, &createInfo, context.Allocator, &module); res != vk.Success {
			DestroyShaderStages(context, stages)
			return nil, vulkanError(fmt.Sprintf("vkCreateShaderModule(%s, %s)", program.Name, st.Stage), res)
		}
		entry := st.EntryPoint
		if entry == "" {
			entry = "main"
		}
		stages = append(stages, VulkanShaderStage{
			Handle: module,
			ShaderStageCreateInfo: vk.PipelineShaderStageCreateInfo{
				SType:  vk.StructureTypePipelineShaderStageCreateInfo,
				Stage:  vkShaderStage(st.Stage),
				Module: module,
				PName:  VulkanSafeString(entry),
			},
		})
	}
	return stages, nil
}

func DestroyShaderStages(context *VulkanContext, stages []VulkanShaderStage) {
	for i := range stages {
		if stages[i].Handle != nil {
			vk.DestroyShaderModule(context.Device.LogicalDevice, stages[i].Handle, context.Allocator)
			stages[i].Handle = nil
		}
	}
}

func stageFlags(program *metadata.ShaderProgram) vk.ShaderStageFlags {
	var flags vk.ShaderStageFlags
	for _, st := range program.Stages {
		flags |= vk.ShaderStageFlags(vkShaderStage(st.Stage))
	}
	return flags
}
