package graph

import (
	"fmt"

	"github.com/spaghettifunk/framegraph/engine/core"
	"github.com/spaghettifunk/framegraph/engine/renderer/metadata"
)

// RecordContext is what a pass recorder sees while recording. It is only
// valid during the Record call.
type RecordContext struct {
	Pass  string
	Frame uint64
	// Slot is the frame in flight being recorded, for per frame data.
	Slot       int
	Area       metadata.Rect
	Renderpass *metadata.Renderpass
	Resources  *GraphResources
	Pipelines  *PipelineLookup

	inputs  []NamedInput
	outputs []NamedOutput
}

// Image resolves an input or output of the pass by its name.
func (c *RecordContext) Image(name string) (*metadata.Image, error) {
	for _, in := range c.inputs {
		if in.Name == name && !in.isBuffer() {
			return c.resolveImage(name, in.Image)
		}
	}
	for _, o := range c.outputs {
		if o.Name == name && !o.isBuffer() {
			return c.resolveImage(name, o.Image)
		}
	}
	return nil, fmt.Errorf("%w: pass %q has no image %q", core.ErrUnknownHandle, c.Pass, name)
}

func (c *RecordContext) Buffer(name string) (*metadata.Buffer, error) {
	for _, in := range c.inputs {
		if in.Name == name && in.isBuffer() {
			return c.resolveBuffer(name, in.Buffer)
		}
	}
	for _, o := range c.outputs {
		if o.Name == name && o.isBuffer() {
			return c.resolveBuffer(name, o.Buffer)
		}
	}
	return nil, fmt.Errorf("%w: pass %q has no buffer %q", core.ErrUnknownHandle, c.Pass, name)
}

func (c *RecordContext) resolveImage(name string, h ImageHandle) (*metadata.Image, error) {
	img, ok := c.Resources.GetImage(h)
	if !ok {
		return nil, fmt.Errorf("%w: image %q", core.ErrStaleHandle, name)
	}
	return img, nil
}

func (c *RecordContext) resolveBuffer(name string, h BufferHandle) (*metadata.Buffer, error) {
	buf, ok := c.Resources.GetBuffer(h)
	if !ok {
		return nil, fmt.Errorf("%w: buffer %q", core.ErrStaleHandle, name)
	}
	return buf, nil
}

// GraphicsPipeline looks psv up for the renderpass of the pass.
func (c *RecordContext) GraphicsPipeline(psv metadata.PipelineStateVector) (*metadata.Pipeline, error) {
	if c.Renderpass == nil {
		return nil, fmt.Errorf("%w: pass %q has no renderpass", core.ErrInvalidConfig, c.Pass)
	}
	return c.Pipelines.GraphicsPipeline(psv, c.Renderpass)
}

func (c *RecordContext) ComputePipeline(shader *metadata.ShaderProgram) (*metadata.Pipeline, error) {
	return c.Pipelines.ComputePipeline(shader)
}
