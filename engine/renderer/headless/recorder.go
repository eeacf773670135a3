package headless

import (
	"github.com/spaghettifunk/framegraph/engine/renderer"
	"github.com/spaghettifunk/framegraph/engine/renderer/metadata"
)

type Op string

const (
	OpBarrier          Op = "barrier"
	OpBeginRenderpass  Op = "begin_renderpass"
	OpEndRenderpass    Op = "end_renderpass"
	OpSetViewport      Op = "set_viewport"
	OpSetScissor       Op = "set_scissor"
	OpBindGraphics     Op = "bind_graphics_pipeline"
	OpBindCompute      Op = "bind_compute_pipeline"
	OpBindImage        Op = "bind_image"
	OpBindBuffer       Op = "bind_buffer"
	OpPushConstants    Op = "push_constants"
	OpDraw             Op = "draw"
	OpDrawIndexed      Op = "draw_indexed"
	OpDispatch         Op = "dispatch"
	OpBeginDebugRegion Op = "begin_debug_region"
	OpEndDebugRegion   Op = "end_debug_region"
)

// Command is one recorded call. Only the fields relevant to Op are set.
type Command struct {
	Op          Op
	Name        string
	Barriers    metadata.Barriers
	Renderpass  *metadata.Renderpass
	Framebuffer *metadata.Framebuffer
	Area        metadata.Rect
	Viewport    metadata.Viewport
	Clear       []metadata.ClearValue
	Pipeline    *metadata.Pipeline
	Image       *metadata.Image
	Buffer      *metadata.Buffer
	Binding     uint32
	Counts      [4]uint32
	Data        []byte
}

// Recorder is the headless renderer.CommandRecorder.
type Recorder struct {
	Frame    uint64
	Slot     int
	Commands []Command

	recording bool
}

var _ renderer.CommandRecorder = (*Recorder)(nil)

func (r *Recorder) push(c Command) {
	r.Commands = append(r.Commands, c)
}

func (r *Recorder) PipelineBarrier(barriers metadata.Barriers) {
	copied := metadata.Barriers{
		Images:  append([]metadata.ImageBarrier(nil), barriers.Images...),
		Buffers: append([]metadata.BufferBarrier(nil), barriers.Buffers...),
	}
	r.push(Command{Op: OpBarrier, Barriers: copied})
}

func (r *Recorder) BeginRenderpass(renderpass *metadata.Renderpass, framebuffer *metadata.Framebuffer, area metadata.Rect, clear []metadata.ClearValue) {
	r.push(Command{Op: OpBeginRenderpass, Renderpass: renderpass, Framebuffer: framebuffer, Area: area, Clear: clear})
}

func (r *Recorder) EndRenderpass() {
	r.push(Command{Op: OpEndRenderpass})
}

func (r *Recorder) SetViewport(viewport metadata.Viewport) {
	r.push(Command{Op: OpSetViewport, Viewport: viewport})
}

func (r *Recorder) SetScissor(scissor metadata.Rect) {
	r.push(Command{Op: OpSetScissor, Area: scissor})
}

func (r *Recorder) BindGraphicsPipeline(pipeline *metadata.Pipeline) {
	r.push(Command{Op: OpBindGraphics, Pipeline: pipeline})
}

func (r *Recorder) BindComputePipeline(pipeline *metadata.Pipeline) {
	r.push(Command{Op: OpBindCompute, Pipeline: pipeline})
}

func (r *Recorder) BindImage(binding uint32, image *metadata.Image) {
	r.push(Command{Op: OpBindImage, Binding: binding, Image: image})
}

func (r *Recorder) BindBuffer(binding uint32, buffer *metadata.Buffer) {
	r.push(Command{Op: OpBindBuffer, Binding: binding, Buffer: buffer})
}

func (r *Recorder) PushConstants(pipeline *metadata.Pipeline, stages metadata.ShaderStage, offset uint32, data []byte) {
	cp := make([]byte, len(data))
	copy(cp, data)
	r.push(Command{Op: OpPushConstants, Pipeline: pipeline, Counts: [4]uint32{uint32(stages), offset}, Data: cp})
}

func (r *Recorder) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	r.push(Command{Op: OpDraw, Counts: [4]uint32{vertexCount, instanceCount, firstVertex, firstInstance}})
}

func (r *Recorder) DrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) {
	r.push(Command{Op: OpDrawIndexed, Counts: [4]uint32{indexCount, instanceCount, firstIndex, firstInstance}, Binding: uint32(vertexOffset)})
}

func (r *Recorder) Dispatch(x, y, z uint32) {
	r.push(Command{Op: OpDispatch, Counts: [4]uint32{x, y, z}})
}

func (r *Recorder) BeginDebugRegion(name string, color [4]float32) {
	r.push(Command{Op: OpBeginDebugRegion, Name: name})
}

func (r *Recorder) EndDebugRegion() {
	r.push(Command{Op: OpEndDebugRegion})
}

// Ops lists the recorded operations in order.
func (r *Recorder) Ops() []Op {
	ops := make([]Op, len(r.Commands))
	for i, c := range r.Commands {
		ops[i] = c.Op
	}
	return ops
}

// Find returns every command with the given op.
func (r *Recorder) Find(op Op) []Command {
	var out []Command
	for _, c := range r.Commands {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}
