package renderer

import (
	"context"

	"github.com/spaghettifunk/framegraph/engine/renderer/metadata"
)

// Device is the backend the graph allocates GPU objects from and submits
// frames to. Creation failures are returned as errors wrapping
// core.ErrDeviceAllocation; a device never silently returns a nil object.
type Device interface {
	CreateImage(name string, config metadata.ImageConfig, width, height uint32) (*metadata.Image, error)
	DestroyImage(image *metadata.Image)
	CreateBuffer(name string, config metadata.BufferConfig) (*metadata.Buffer, error)
	DestroyBuffer(buffer *metadata.Buffer)

	CreateRenderpass(desc metadata.RenderpassDesc) (*metadata.Renderpass, error)
	DestroyRenderpass(renderpass *metadata.Renderpass)
	CreateFramebuffer(desc metadata.FramebufferDesc) (*metadata.Framebuffer, error)
	DestroyFramebuffer(framebuffer *metadata.Framebuffer)

	CreateGraphicsPipeline(psv metadata.PipelineStateVector, renderpass *metadata.Renderpass) (*metadata.Pipeline, error)
	CreateComputePipeline(shader *metadata.ShaderProgram) (*metadata.Pipeline, error)
	DestroyPipeline(pipeline *metadata.Pipeline)

	// BeginFrame starts recording the commands of frame. The slot is
	// frame modulo the number of frames in flight.
	BeginFrame(frame uint64, slot int) (CommandRecorder, error)
	// Submit ends recording and queues the commands. It signals the slot's
	// fence once the GPU is done with the frame.
	Submit(cmd CommandRecorder, frame uint64, slot int) error
	// Abort ends recording and throws the commands away.
	Abort(cmd CommandRecorder, slot int)
	// WaitFrame blocks until the fence of slot is signaled.
	WaitFrame(ctx context.Context, slot int) error
	WaitIdle() error

	// IsMultithreaded reports whether pipelines may be created from several
	// goroutines at once.
	IsMultithreaded() bool
}

// CommandRecorder records commands of a single frame.
type CommandRecorder interface {
	PipelineBarrier(barriers metadata.Barriers)
	BeginRenderpass(renderpass *metadata.Renderpass, framebuffer *metadata.Framebuffer, area metadata.Rect, clear []metadata.ClearValue)
	EndRenderpass()
	SetViewport(viewport metadata.Viewport)
	SetScissor(scissor metadata.Rect)
	BindGraphicsPipeline(pipeline *metadata.Pipeline)
	BindComputePipeline(pipeline *metadata.Pipeline)
	BindImage(binding uint32, image *metadata.Image)
	BindBuffer(binding uint32, buffer *metadata.Buffer)
	PushConstants(pipeline *metadata.Pipeline, stages metadata.ShaderStage, offset uint32, data []byte)
	Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32)
	DrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32)
	Dispatch(x, y, z uint32)
	BeginDebugRegion(name string, color [4]float32)
	EndDebugRegion()
}
