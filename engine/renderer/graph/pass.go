package graph

import (
	"github.com/spaghettifunk/framegraph/engine/renderer"
	"github.com/spaghettifunk/framegraph/engine/renderer/metadata"
)

type PassKind int

const (
	PassGraphics PassKind = iota
	PassCompute
)

func (k PassKind) String() string {
	if k == PassCompute {
		return "compute"
	}
	return "graphics"
}

type InputKind int

const (
	InputReadImage InputKind = iota
	InputSampleImage
	InputReadBuffer
)

// Input is a read dependency of a pass.
type Input struct {
	Kind    InputKind
	Image   ImageHandle
	Buffer  BufferHandle
	Access  metadata.AccessType
	Binding uint32
}

// ReadImage reads an image without binding it, e.g. as a storage image.
func ReadImage(h ImageHandle, access metadata.AccessType) Input {
	return Input{Kind: InputReadImage, Image: h, Access: access}
}

// SampleImage reads an image through a sampler bound at binding.
func SampleImage(h ImageHandle, access metadata.AccessType, binding uint32) Input {
	return Input{Kind: InputSampleImage, Image: h, Access: access, Binding: binding}
}

func ReadBuffer(h BufferHandle, access metadata.AccessType) Input {
	return Input{Kind: InputReadBuffer, Buffer: h, Access: access}
}

func (i Input) isBuffer() bool {
	return i.Kind == InputReadBuffer
}

type OutputKind int

const (
	OutputWriteImage OutputKind = iota
	OutputDrawImage
	OutputStorageBuffer
)

// Output is a write dependency of a pass.
type Output struct {
	Kind       OutputKind
	Image      ImageHandle
	Buffer     BufferHandle
	Access     metadata.AccessType
	Attachment metadata.AttachmentConfig
}

// WriteImage writes an image outside of a renderpass, e.g. from a compute
// shader.
func WriteImage(h ImageHandle, access metadata.AccessType) Output {
	return Output{Kind: OutputWriteImage, Image: h, Access: access}
}

// DrawImage renders into an image as a renderpass attachment.
func DrawImage(h ImageHandle, config metadata.AttachmentConfig) Output {
	return Output{Kind: OutputDrawImage, Image: h, Access: config.Access, Attachment: config}
}

func StorageBuffer(h BufferHandle, access metadata.AccessType) Output {
	return Output{Kind: OutputStorageBuffer, Buffer: h, Access: access}
}

func (o Output) isBuffer() bool {
	return o.Kind == OutputStorageBuffer
}

type NamedInput struct {
	Name string
	Input
}

type NamedOutput struct {
	Name string
	Output
}

// Recorder records the commands of a pass. A is the per frame argument
// type passed to Graph.Execute.
type Recorder[A any] interface {
	Record(cmd renderer.CommandRecorder, ctx *RecordContext, args A) error
}

// RecordFunc adapts a function to a Recorder.
type RecordFunc[A any] func(cmd renderer.CommandRecorder, ctx *RecordContext, args A) error

func (f RecordFunc[A]) Record(cmd renderer.CommandRecorder, ctx *RecordContext, args A) error {
	return f(cmd, ctx, args)
}

// Pass is one unit of GPU work. It is assembled with the With* methods and
// must not be changed once it was added to a builder.
type Pass[A any] struct {
	name       string
	kind       PassKind
	inputs     []NamedInput
	outputs    []NamedOutput
	renderArea *metadata.ImageSize
	present    bool
	recorder   Recorder[A]
	pipelines  func() []metadata.PipelineStateVector
	debugColor [4]float32
}

func NewGraphicsPass[A any](name string) *Pass[A] {
	return &Pass[A]{name: name, kind: PassGraphics, debugColor: [4]float32{0.2, 0.6, 1, 1}}
}

func NewComputePass[A any](name string) *Pass[A] {
	return &Pass[A]{name: name, kind: PassCompute, debugColor: [4]float32{1, 0.6, 0.2, 1}}
}

func (p *Pass[A]) WithInput(name string, in Input) *Pass[A] {
	p.inputs = append(p.inputs, NamedInput{Name: name, Input: in})
	return p
}

func (p *Pass[A]) WithOutput(name string, out Output) *Pass[A] {
	p.outputs = append(p.outputs, NamedOutput{Name: name, Output: out})
	return p
}

// WithRenderArea overrides the render area, which defaults to the size of
// the framebuffer for graphics passes and to the graph size for compute.
func (p *Pass[A]) WithRenderArea(size metadata.ImageSize) *Pass[A] {
	p.renderArea = &size
	return p
}

// Presenting marks the pass as the one whose color attachment 0 is
// presented. It has to be the last pass of the graph.
func (p *Pass[A]) Presenting() *Pass[A] {
	p.present = true
	return p
}

func (p *Pass[A]) WithRecorder(r Recorder[A]) *Pass[A] {
	p.recorder = r
	return p
}

func (p *Pass[A]) WithRecordFunc(fn func(cmd renderer.CommandRecorder, ctx *RecordContext, args A) error) *Pass[A] {
	p.recorder = RecordFunc[A](fn)
	return p
}

// WithPipelines declares the pipelines the recorder binds, so Graph.Prewarm
// can build them before the first frame. Compute passes only use the
// shader of each state.
func (p *Pass[A]) WithPipelines(fn func() []metadata.PipelineStateVector) *Pass[A] {
	p.pipelines = fn
	return p
}

func (p *Pass[A]) WithDebugColor(color [4]float32) *Pass[A] {
	p.debugColor = color
	return p
}

func (p *Pass[A]) Name() string {
	return p.name
}

func (p *Pass[A]) Kind() PassKind {
	return p.kind
}

func (p *Pass[A]) Inputs() []NamedInput {
	return p.inputs
}

func (p *Pass[A]) Outputs() []NamedOutput {
	return p.outputs
}

func (p *Pass[A]) IsPresenting() bool {
	return p.present
}
