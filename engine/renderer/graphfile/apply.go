package graphfile

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spaghettifunk/framegraph/engine/core"
	"github.com/spaghettifunk/framegraph/engine/renderer"
	"github.com/spaghettifunk/framegraph/engine/renderer/graph"
	"github.com/spaghettifunk/framegraph/engine/renderer/metadata"
)

const defaultGroupSize = 16

// Options controls how passes get their recorders. A pass listed in
// Recorders uses that recorder; otherwise a pass with a shader draws or
// dispatches it, and a pass without one only records its barriers.
type Options[A any] struct {
	Recorders map[string]graph.Recorder[A]
	Shaders   func(name string) *metadata.ShaderProgram
}

// Targets maps the names and aliases of the file to the handles declared
// on the builder.
type Targets struct {
	Images  map[string]graph.ImageHandle
	Buffers map[string]graph.BufferHandle
}

// Apply declares the resources and passes of f on b, in file order.
func Apply[A any](f *File, b *graph.Builder[A], opts Options[A]) (*Targets, error) {
	t := &Targets{
		Images:  make(map[string]graph.ImageHandle, len(f.Images)),
		Buffers: make(map[string]graph.BufferHandle, len(f.Buffers)),
	}
	for _, img := range f.Images {
		if err := declareImage(t, b, img); err != nil {
			return nil, err
		}
	}
	for _, buf := range f.Buffers {
		if err := declareBuffer(t, b, buf); err != nil {
			return nil, err
		}
	}
	for _, p := range f.Passes {
		pass, err := buildPass(p, t, opts)
		if err != nil {
			return nil, fmt.Errorf("pass %q: %w", p.Name, err)
		}
		b.AddPass(pass)
	}
	return t, nil
}

func declareImage[A any](t *Targets, b *graph.Builder[A], img Image) error {
	format, err := metadata.ParseFormat(img.Format)
	if err != nil {
		return fmt.Errorf("image %q: %w", img.Name, err)
	}
	var config metadata.ImageConfig
	switch img.Usage {
	case "", "color":
		config = metadata.ColorImageConfig(format)
	case "depth":
		config = metadata.DepthImageConfig(format)
	case "storage":
		config = metadata.StorageImageConfig(format)
	default:
		return fmt.Errorf("%w: image %q has unknown usage %q", core.ErrInvalidConfig, img.Name, img.Usage)
	}

	size := metadata.FullScreen()
	switch {
	case len(img.Scale) > 0 && len(img.Extent) > 0:
		return fmt.Errorf("%w: image %q has both scale and extent", core.ErrInvalidConfig, img.Name)
	case len(img.Scale) == 2:
		size = metadata.Relative(img.Scale[0], img.Scale[1])
	case len(img.Extent) == 2:
		size = metadata.Absolute(img.Extent[0], img.Extent[1])
	case len(img.Scale) > 0 || len(img.Extent) > 0:
		return fmt.Errorf("%w: image %q size needs two values", core.ErrInvalidConfig, img.Name)
	}

	// names and aliases share one namespace
	if _, exists := t.Images[img.Name]; exists {
		return fmt.Errorf("%w: image %q", core.ErrDuplicateName, img.Name)
	}
	if _, exists := t.Images[img.Alias]; img.Alias != "" && exists {
		return fmt.Errorf("%w: alias %q", core.ErrDuplicateName, img.Alias)
	}

	h, err := b.CreateImage(img.Name, config, size)
	if err != nil {
		return err
	}
	t.Images[img.Name] = h
	if img.Alias != "" {
		t.Images[img.Alias] = h
	}
	return nil
}

func declareBuffer[A any](t *Targets, b *graph.Builder[A], buf Buffer) error {
	config := metadata.BufferConfig{Size: buf.Size}
	if len(buf.Usage) == 0 {
		config.Usage = metadata.BufferUsageStorage
	}
	for _, u := range buf.Usage {
		switch strings.ToLower(u) {
		case "storage":
			config.Usage |= metadata.BufferUsageStorage
		case "uniform":
			config.Usage |= metadata.BufferUsageUniform
		case "vertex":
			config.Usage |= metadata.BufferUsageVertex
		case "index":
			config.Usage |= metadata.BufferUsageIndex
		case "indirect":
			config.Usage |= metadata.BufferUsageIndirect
		case "transfer_src":
			config.Usage |= metadata.BufferUsageTransferSrc
		case "transfer_dst":
			config.Usage |= metadata.BufferUsageTransferDst
		case "host_visible":
			config.HostVisible = true
		default:
			return fmt.Errorf("%w: buffer %q has unknown usage %q", core.ErrInvalidConfig, buf.Name, u)
		}
	}
	h, err := b.CreateBuffer(buf.Name, config)
	if err != nil {
		return err
	}
	t.Buffers[buf.Name] = h
	return nil
}

func (t *Targets) image(name string) (graph.ImageHandle, error) {
	h, ok := t.Images[name]
	if !ok {
		return graph.ImageHandle{}, fmt.Errorf("%w: image %q", core.ErrUnknownHandle, name)
	}
	return h, nil
}

func (t *Targets) buffer(name string) (graph.BufferHandle, error) {
	h, ok := t.Buffers[name]
	if !ok {
		return graph.BufferHandle{}, fmt.Errorf("%w: buffer %q", core.ErrUnknownHandle, name)
	}
	return h, nil
}

func accessOr(name string, fallback metadata.AccessType) (metadata.AccessType, error) {
	if name == "" {
		return fallback, nil
	}
	return metadata.ParseAccessType(name)
}

func buildPass[A any](p Pass, t *Targets, opts Options[A]) (*graph.Pass[A], error) {
	var pass *graph.Pass[A]
	compute := false
	switch p.Kind {
	case "", "graphics":
		pass = graph.NewGraphicsPass[A](p.Name)
	case "compute":
		pass = graph.NewComputePass[A](p.Name)
		compute = true
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", core.ErrInvalidConfig, p.Kind)
	}

	sampled, other := metadata.AccessTypeFragmentShaderReadSampledImage, metadata.AccessTypeFragmentShaderReadOther
	if compute {
		sampled, other = metadata.AccessTypeComputeShaderReadSampledImage, metadata.AccessTypeComputeShaderReadOther
	}

	for _, in := range p.Inputs {
		input, err := t.input(in, sampled, other)
		if err != nil {
			return nil, fmt.Errorf("input %q: %w", in.Name, err)
		}
		pass.WithInput(in.Name, input)
	}
	for _, out := range p.Outputs {
		output, err := t.output(out)
		if err != nil {
			return nil, fmt.Errorf("output %q: %w", out.Name, err)
		}
		pass.WithOutput(out.Name, output)
	}

	switch len(p.RenderArea) {
	case 0:
	case 2:
		pass.WithRenderArea(metadata.Relative(p.RenderArea[0], p.RenderArea[1]))
	default:
		return nil, fmt.Errorf("%w: render area needs two values", core.ErrInvalidConfig)
	}
	if p.Present {
		pass.Presenting()
	}

	if r, ok := opts.Recorders[p.Name]; ok {
		return pass.WithRecorder(r), nil
	}
	if p.Shader == "" {
		return pass, nil
	}
	var shader *metadata.ShaderProgram
	if opts.Shaders != nil {
		shader = opts.Shaders(p.Shader)
	}
	if shader == nil {
		return nil, fmt.Errorf("%w: shader %q", core.ErrAssetNotFound, p.Shader)
	}
	if compute {
		gx, gy := uint32(defaultGroupSize), uint32(defaultGroupSize)
		switch len(p.GroupSize) {
		case 0:
		case 2:
			gx, gy = p.GroupSize[0], p.GroupSize[1]
		default:
			return nil, fmt.Errorf("%w: group size needs two values", core.ErrInvalidConfig)
		}
		if gx == 0 || gy == 0 {
			return nil, fmt.Errorf("%w: zero group size", core.ErrInvalidConfig)
		}
		r := dispatchRecorder[A]{shader: shader, groupX: gx, groupY: gy}
		return pass.WithRecorder(r).WithPipelines(r.pipelines), nil
	}
	vertices := p.Vertices
	if vertices == 0 {
		vertices = 3
	}
	r := drawRecorder[A]{shader: shader, vertices: vertices}
	return pass.WithRecorder(r).WithPipelines(r.pipelines), nil
}

func (t *Targets) input(in Input, sampled, other metadata.AccessType) (graph.Input, error) {
	switch {
	case in.Image != "" && in.Buffer != "":
		return graph.Input{}, fmt.Errorf("%w: both image and buffer", core.ErrInvalidConfig)
	case in.Image != "":
		h, err := t.image(in.Image)
		if err != nil {
			return graph.Input{}, err
		}
		access, err := accessOr(in.Access, sampled)
		if err != nil {
			return graph.Input{}, err
		}
		if in.Binding != nil {
			return graph.SampleImage(h, access, *in.Binding), nil
		}
		return graph.ReadImage(h, access), nil
	case in.Buffer != "":
		h, err := t.buffer(in.Buffer)
		if err != nil {
			return graph.Input{}, err
		}
		access, err := accessOr(in.Access, other)
		if err != nil {
			return graph.Input{}, err
		}
		return graph.ReadBuffer(h, access), nil
	}
	return graph.Input{}, fmt.Errorf("%w: no image or buffer", core.ErrInvalidConfig)
}

func (t *Targets) output(out Output) (graph.Output, error) {
	switch {
	case out.Image != "" && out.Buffer != "":
		return graph.Output{}, fmt.Errorf("%w: both image and buffer", core.ErrInvalidConfig)
	case out.Buffer != "":
		h, err := t.buffer(out.Buffer)
		if err != nil {
			return graph.Output{}, err
		}
		access, err := accessOr(out.Access, metadata.AccessTypeComputeShaderWrite)
		if err != nil {
			return graph.Output{}, err
		}
		return graph.StorageBuffer(h, access), nil
	case out.Image == "":
		return graph.Output{}, fmt.Errorf("%w: no image or buffer", core.ErrInvalidConfig)
	}

	h, err := t.image(out.Image)
	if err != nil {
		return graph.Output{}, err
	}
	if out.Attachment == "" {
		access, err := accessOr(out.Access, metadata.AccessTypeComputeShaderWrite)
		if err != nil {
			return graph.Output{}, err
		}
		return graph.WriteImage(h, access), nil
	}

	config, err := attachmentConfig(out.Attachment)
	if err != nil {
		return graph.Output{}, err
	}
	if out.Access != "" {
		if config.Access, err = metadata.ParseAccessType(out.Access); err != nil {
			return graph.Output{}, err
		}
	}
	if out.Load != "" {
		if config.LoadOp, err = metadata.ParseLoadOp(out.Load); err != nil {
			return graph.Output{}, err
		}
	}
	if out.Store != "" {
		if config.StoreOp, err = metadata.ParseStoreOp(out.Store); err != nil {
			return graph.Output{}, err
		}
	}
	return graph.DrawImage(h, config), nil
}

func attachmentConfig(name string) (metadata.AttachmentConfig, error) {
	switch name {
	case "depth":
		return metadata.DepthOnlyDefault(), nil
	case "depth_stencil":
		return metadata.DepthStencilDefault(), nil
	}
	if slot, ok := strings.CutPrefix(name, "color"); ok {
		n, err := strconv.ParseUint(slot, 10, 32)
		if err == nil && n < 8 {
			return metadata.ColorDefault(uint32(n)), nil
		}
	}
	return metadata.AttachmentConfig{}, fmt.Errorf("%w: attachment %q", core.ErrInvalidAttachment, name)
}

type drawRecorder[A any] struct {
	shader   *metadata.ShaderProgram
	vertices uint32
}

func (r drawRecorder[A]) state() metadata.PipelineStateVector {
	state := metadata.DefaultPipelineState()
	state.Rasterizer.Cull = metadata.FaceCullModeNone
	return metadata.PipelineStateVector{Shader: r.shader, State: state}
}

func (r drawRecorder[A]) pipelines() []metadata.PipelineStateVector {
	return []metadata.PipelineStateVector{r.state()}
}

func (r drawRecorder[A]) Record(cmd renderer.CommandRecorder, ctx *graph.RecordContext, _ A) error {
	pipeline, err := ctx.GraphicsPipeline(r.state())
	if err != nil {
		return err
	}
	cmd.BindGraphicsPipeline(pipeline)
	cmd.Draw(r.vertices, 1, 0, 0)
	return nil
}

type dispatchRecorder[A any] struct {
	shader         *metadata.ShaderProgram
	groupX, groupY uint32
}

func (r dispatchRecorder[A]) pipelines() []metadata.PipelineStateVector {
	return []metadata.PipelineStateVector{{Shader: r.shader}}
}

func (r dispatchRecorder[A]) Record(cmd renderer.CommandRecorder, ctx *graph.RecordContext, _ A) error {
	pipeline, err := ctx.ComputePipeline(r.shader)
	if err != nil {
		return err
	}
	cmd.BindComputePipeline(pipeline)
	cmd.Dispatch((ctx.Area.Width+r.groupX-1)/r.groupX, (ctx.Area.Height+r.groupY-1)/r.groupY, 1)
	return nil
}
