package vulkan

import (
	"context"
	"fmt"
	"runtime"
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/framegraph/engine/core"
	"github.com/spaghettifunk/framegraph/engine/renderer"
	"github.com/spaghettifunk/framegraph/engine/renderer/metadata"
)

type Config struct {
	ApplicationName string
	FramesInFlight  int
	// Validation enables VK_LAYER_KHRONOS_validation and the debug report
	// callback.
	Validation bool
	// Multithreaded allows pipelines to be created from several goroutines.
	Multithreaded bool
	DiscreteGPU   bool
}

// Device renders offscreen through Vulkan. It owns one command buffer, one
// fence and one descriptor pool per frame slot.
type Device struct {
	config  Config
	context *VulkanContext
}

var _ renderer.Device = (*Device)(nil)

func New(config Config) (*Device, error) {
	if config.FramesInFlight < 1 {
		return nil, fmt.Errorf("%w: frames in flight must be positive, got %d", core.ErrInvalidConfig, config.FramesInFlight)
	}
	d := &Device{
		config: config,
		context: &VulkanContext{
			FramesInFlight: config.FramesInFlight,
			locks:          NewVulkanLockPool(),
		},
	}
	if err := d.initialize(); err != nil {
		d.Shutdown()
		return nil, err
	}
	return d, nil
}

func (d *Device) initialize() error {
	if err := vk.SetDefaultGetInstanceProcAddr(); err != nil {
		core.LogError("failed to load the Vulkan loader: %s", err)
		return fmt.Errorf("%w: %s", core.ErrDeviceAllocation, err)
	}
	if err := vk.Init(); err != nil {
		core.LogError("failed to initialize vk: %s", err)
		return fmt.Errorf("%w: %s", core.ErrDeviceAllocation, err)
	}

	if err := d.createInstance(); err != nil {
		return err
	}

	requirements := VulkanPhysicalDeviceRequirements{
		Graphics:    true,
		Compute:     true,
		DiscreteGPU: d.config.DiscreteGPU && runtime.GOOS != "darwin",
	}
	if err := DeviceCreate(d.context, requirements); err != nil {
		return err
	}

	vc := d.context
	vc.GraphicsCommandBuffers = make([]*VulkanCommandBuffer, vc.FramesInFlight)
	vc.InFlightFences = make([]*VulkanFence, vc.FramesInFlight)
	vc.DescriptorPools = make([]vk.DescriptorPool, vc.FramesInFlight)
	for i := 0; i < vc.FramesInFlight; i++ {
		cb, err := NewVulkanCommandBuffer(vc, vc.Device.GraphicsCommandPool, true)
		if err != nil {
			return err
		}
		vc.GraphicsCommandBuffers[i] = cb

		// Signaled, so the first wait on a fresh slot returns at once.
		f, err := NewFence(vc, true)
		if err != nil {
			return err
		}
		vc.InFlightFences[i] = f

		pool, err := NewDescriptorPool(vc)
		if err != nil {
			return err
		}
		vc.DescriptorPools[i] = pool
	}

	core.LogInfo("Vulkan device initialized with %d frames in flight.", vc.FramesInFlight)
	return nil
}

func (d *Device) createInstance() error {
	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         uint32(vk.MakeVersion(1, 1, 0)),
		ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
		PApplicationName:   VulkanSafeString(d.config.ApplicationName),
		PEngineName:        VulkanSafeString("framegraph"),
	}
	createInfo := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: appInfo,
	}

	var requiredExtensions []string
	if runtime.GOOS == "darwin" {
		requiredExtensions = append(requiredExtensions,
			"VK_KHR_portability_enumeration",
			"VK_KHR_get_physical_device_properties2",
		)
		createInfo.Flags |= 1
	}

	var requiredLayers []string
	if d.config.Validation {
		requiredExtensions = append(requiredExtensions, vk.ExtDebugReportExtensionName)
		requiredLayers = append(requiredLayers, "VK_LAYER_KHRONOS_validation")
		if err := checkValidationLayers(requiredLayers); err != nil {
			return err
		}
	}

	createInfo.EnabledExtensionCount = uint32(len(requiredExtensions))
	createInfo.PpEnabledExtensionNames = VulkanSafeStrings(requiredExtensions)
	createInfo.EnabledLayerCount = uint32(len(requiredLayers))
	createInfo.PpEnabledLayerNames = VulkanSafeStrings(requiredLayers)

	var instance vk.Instance
	if res := vk.CreateInstance(&createInfo, d.context.Allocator, &instance); res != vk.Success {
		err := vulkanError("vkCreateInstance", res)
		core.LogError(err.Error())
		return err
	}
	d.context.Instance = instance
	if err := vk.InitInstance(instance); err != nil {
		core.LogError(err.Error())
		return fmt.Errorf("%w: %s", core.ErrDeviceAllocation, err)
	}
	core.LogInfo("Vulkan Instance created.")

	if d.config.Validation {
		core.LogDebug("Creating Vulkan debugger...")
		debugCreateInfo := vk.DebugReportCallbackCreateInfo{
			SType:       vk.StructureTypeDebugReportCallbackCreateInfo,
			Flags:       vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit | vk.DebugReportPerformanceWarningBit),
			PfnCallback: dbgCallbackFunc,
		}
		var dbg vk.DebugReportCallback
		if res := vk.CreateDebugReportCallback(instance, &debugCreateInfo, nil, &dbg); res != vk.Success {
			err := vulkanError("vkCreateDebugReportCallback", res)
			core.LogError(err.Error())
			return err
		}
		d.context.debugMessenger = dbg
		core.LogDebug("Vulkan debugger created.")
	}
	return nil
}

func checkValidationLayers(required []string) error {
	core.LogInfo("Validation layers enabled. Enumerating...")
	var availableCount uint32
	if res := vk.EnumerateInstanceLayerProperties(&availableCount, nil); res != vk.Success {
		return vulkanError("vkEnumerateInstanceLayerProperties", res)
	}
	available := make([]vk.LayerProperties, availableCount)
	if res := vk.EnumerateInstanceLayerProperties(&availableCount, available); res != vk.Success {
		return vulkanError("vkEnumerateInstanceLayerProperties", res)
	}
	for _, name := range required {
		found := false
		for j := range available {
			available[j].Deref()
			end := FindFirstZeroInByteArray(available[j].LayerName[:])
			if name == string(available[j].LayerName[:end]) {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("%w: required validation layer is missing: %s", core.ErrDeviceAllocation, name)
		}
	}
	core.LogInfo("All required validation layers are present.")
	return nil
}

// Shutdown destroys the per-frame objects, the device and the instance.
// Every graph object must have been destroyed before.
func (d *Device) Shutdown() {
	vc := d.context
	if vc.Device != nil && vc.Device.LogicalDevice != nil {
		vk.DeviceWaitIdle(vc.Device.LogicalDevice)

		for i := range vc.InFlightFences {
			if vc.InFlightFences[i] != nil {
				vc.InFlightFences[i].FenceDestroy(vc)
			}
		}
		for i := range vc.DescriptorPools {
			if vc.DescriptorPools[i] != vk.NullDescriptorPool {
				vk.DestroyDescriptorPool(vc.Device.LogicalDevice, vc.DescriptorPools[i], vc.Allocator)
			}
		}
		for i := range vc.GraphicsCommandBuffers {
			if vc.GraphicsCommandBuffers[i] != nil {
				vc.GraphicsCommandBuffers[i].Free(vc, vc.Device.GraphicsCommandPool)
			}
		}
	}
	vc.InFlightFences = nil
	vc.DescriptorPools = nil
	vc.GraphicsCommandBuffers = nil

	core.LogDebug("Destroying Vulkan device...")
	DeviceDestroy(vc)

	if vc.Instance != nil {
		if vc.debugMessenger != vk.NullDebugReportCallback {
			core.LogDebug("Destroying Vulkan debugger...")
			vk.DestroyDebugReportCallback(vc.Instance, vc.debugMessenger, vc.Allocator)
			vc.debugMessenger = vk.NullDebugReportCallback
		}
		core.LogDebug("Destroying Vulkan instance...")
		vk.DestroyInstance(vc.Instance, vc.Allocator)
		vc.Instance = nil
	}
}

func (d *Device) CreateImage(name string, config metadata.ImageConfig, width, height uint32) (*metadata.Image, error) {
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("%w: image %q has zero size", core.ErrDeviceAllocation, name)
	}
	vi, err := ImageCreate(d.context, config, width, height)
	if err != nil {
		return nil, fmt.Errorf("image %q: %w", name, err)
	}
	img := metadata.NewImage(name, config, width, height)
	img.InternalData = vi
	return img, nil
}

func (d *Device) DestroyImage(image *metadata.Image) {
	if vi, ok := image.InternalData.(*VulkanImage); ok {
		vi.Destroy(d.context)
	}
	image.InternalData = nil
}

func (d *Device) CreateBuffer(name string, config metadata.BufferConfig) (*metadata.Buffer, error) {
	vb, err := BufferCreate(d.context, config)
	if err != nil {
		return nil, fmt.Errorf("buffer %q: %w", name, err)
	}
	buf := metadata.NewBuffer(name, config)
	buf.InternalData = vb
	return buf, nil
}

func (d *Device) DestroyBuffer(buffer *metadata.Buffer) {
	if vb, ok := buffer.InternalData.(*VulkanBuffer); ok {
		vb.Destroy(d.context)
	}
	buffer.InternalData = nil
}

func (d *Device) CreateRenderpass(desc metadata.RenderpassDesc) (*metadata.Renderpass, error) {
	vr, err := RenderpassCreate(d.context, desc)
	if err != nil {
		return nil, fmt.Errorf("renderpass %q: %w", desc.Name, err)
	}
	rp := &metadata.Renderpass{
		ID:           metadata.NewObjectID(),
		Key:          desc.Key(),
		Desc:         desc,
		InternalData: vr,
	}
	for _, a := range desc.Attachments() {
		rp.ClearValues = append(rp.ClearValues, metadata.ClearValueFor(a.Kind))
	}
	return rp, nil
}

func (d *Device) DestroyRenderpass(renderpass *metadata.Renderpass) {
	if vr, ok := renderpass.InternalData.(*VulkanRenderpass); ok {
		vr.RenderpassDestroy(d.context)
	}
	renderpass.InternalData = nil
}

func (d *Device) CreateFramebuffer(desc metadata.FramebufferDesc) (*metadata.Framebuffer, error) {
	vr, ok := desc.Renderpass.InternalData.(*VulkanRenderpass)
	if !ok {
		return nil, vulkanObjectError("renderpass", desc.Renderpass.Desc.Name)
	}
	views := make([]vk.ImageView, 0, len(desc.Attachments))
	for _, img := range desc.Attachments {
		vi, err := imageOf(img)
		if err != nil {
			return nil, err
		}
		views = append(views, vi.View)
	}
	vfb, err := FramebufferCreate(d.context, vr, desc.Width, desc.Height, views)
	if err != nil {
		return nil, fmt.Errorf("framebuffer of %q: %w", desc.Renderpass.Desc.Name, err)
	}
	return &metadata.Framebuffer{
		ID:           metadata.NewObjectID(),
		Desc:         desc,
		InternalData: vfb,
	}, nil
}

func (d *Device) DestroyFramebuffer(framebuffer *metadata.Framebuffer) {
	if vfb, ok := framebuffer.InternalData.(*VulkanFramebuffer); ok {
		vfb.Destroy(d.context)
	}
	framebuffer.InternalData = nil
}

func (d *Device) CreateGraphicsPipeline(psv metadata.PipelineStateVector, renderpass *metadata.Renderpass) (*metadata.Pipeline, error) {
	vr, ok := renderpass.InternalData.(*VulkanRenderpass)
	if !ok {
		return nil, vulkanObjectError("renderpass", renderpass.Desc.Name)
	}
	vp, err := NewGraphicsPipeline(d.context, psv, vr)
	if err != nil {
		return nil, err
	}
	return &metadata.Pipeline{
		ID:           metadata.NewObjectID(),
		Kind:         metadata.PipelineKindGraphics,
		Shader:       psv.Shader,
		Key:          psv.Digest(renderpass),
		InternalData: vp,
	}, nil
}

func (d *Device) CreateComputePipeline(shader *metadata.ShaderProgram) (*metadata.Pipeline, error) {
	vp, err := NewComputePipeline(d.context, shader)
	if err != nil {
		return nil, err
	}
	return &metadata.Pipeline{
		ID:           metadata.NewObjectID(),
		Kind:         metadata.PipelineKindCompute,
		Shader:       shader,
		Key:          shader.Identity(),
		InternalData: vp,
	}, nil
}

func (d *Device) DestroyPipeline(pipeline *metadata.Pipeline) {
	if vp, ok := pipeline.InternalData.(*VulkanPipeline); ok {
		vp.Destroy(d.context)
	}
	pipeline.InternalData = nil
}

func (d *Device) slot(slot int) error {
	if slot < 0 || slot >= d.context.FramesInFlight {
		return fmt.Errorf("%w: frame slot %d out of range [0, %d)", core.ErrInvalidConfig, slot, d.context.FramesInFlight)
	}
	return nil
}

// BeginFrame resets the slot's command buffer and descriptor pool. The
// executor has already waited for the slot's previous frame.
func (d *Device) BeginFrame(frame uint64, slot int) (renderer.CommandRecorder, error) {
	if err := d.slot(slot); err != nil {
		return nil, err
	}
	vc := d.context
	if res := vk.ResetDescriptorPool(vc.Device.LogicalDevice, vc.DescriptorPools[slot], 0); res != vk.Success {
		return nil, vulkanError("vkResetDescriptorPool", res)
	}
	cb := vc.GraphicsCommandBuffers[slot]
	cb.Reset()
	cb.descriptorPool = vc.DescriptorPools[slot]
	if err := cb.Begin(true, false, false); err != nil {
		return nil, err
	}
	core.LogDebug("frame %d: recording into slot %d", frame, slot)
	return cb, nil
}

func (d *Device) Submit(cmd renderer.CommandRecorder, frame uint64, slot int) error {
	if err := d.slot(slot); err != nil {
		return err
	}
	cb, ok := cmd.(*VulkanCommandBuffer)
	if !ok {
		return fmt.Errorf("%w: recorder of frame %d was not created by the vulkan device", core.ErrInvalidConfig, frame)
	}
	if cb.State != COMMAND_BUFFER_STATE_RECORDING && cb.State != COMMAND_BUFFER_STATE_IN_RENDER_PASS {
		return core.ErrNotRecording
	}
	if err := cb.End(); err != nil {
		return err
	}
	if cb.err != nil {
		// Recording failed half way, so the commands are thrown away.
		return fmt.Errorf("frame %d: %w", frame, cb.err)
	}

	vc := d.context
	fence := vc.InFlightFences[slot]
	if err := fence.FenceReset(vc); err != nil {
		return err
	}
	submitInfo := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{cb.Handle},
	}
	err := vc.locks.SafeQueueCall(uint32(vc.Device.GraphicsQueueIndex), func() error {
		if res := vk.QueueSubmit(vc.Device.GraphicsQueue, 1, []vk.SubmitInfo{submitInfo}, fence.Handle); res != vk.Success {
			return vulkanError("vkQueueSubmit", res)
		}
		return nil
	})
	if err != nil {
		core.LogError(err.Error())
		// Nothing will signal the fence, put it back so the slot is usable.
		fence.IsSignaled = true
		return err
	}
	cb.UpdateSubmitted()
	return nil
}

func (d *Device) Abort(cmd renderer.CommandRecorder, slot int) {
	cb, ok := cmd.(*VulkanCommandBuffer)
	if !ok {
		return
	}
	if cb.State == COMMAND_BUFFER_STATE_RECORDING || cb.State == COMMAND_BUFFER_STATE_IN_RENDER_PASS {
		_ = cb.End()
	}
	cb.Reset()
}

func (d *Device) WaitFrame(ctx context.Context, slot int) error {
	if err := d.slot(slot); err != nil {
		return err
	}
	return d.context.InFlightFences[slot].FenceWait(ctx, d.context)
}

func (d *Device) WaitIdle() error {
	if res := vk.DeviceWaitIdle(d.context.Device.LogicalDevice); res != vk.Success {
		return vulkanError("vkDeviceWaitIdle", res)
	}
	return nil
}

func (d *Device) IsMultithreaded() bool {
	return d.config.Multithreaded
}

func vulkanObjectError(kind, name string) error {
	return fmt.Errorf("%w: %s %q was not created by the vulkan device", core.ErrInvalidConfig, kind, name)
}

func dbgCallbackFunc(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType, object uint64, location uint64, messageCode int32, pLayerPrefix string, pMessage string, pUserData unsafe.Pointer) vk.Bool32 {
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		core.LogError("ERROR: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit) != 0:
		core.LogWarn("WARNING: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportPerformanceWarningBit) != 0:
		core.LogWarn("PERFORMANCE WARNING: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	default:
		core.LogInfo("INFORMATION: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	}
	return vk.Bool32(vk.False)
}
