// Package graphfile reads render graph descriptions from TOML and declares
// them on a graph builder.
package graphfile

import (
	"bytes"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/pelletier/go-toml/v2"

	"github.com/spaghettifunk/framegraph/engine/core"
)

type File struct {
	Name    string   `toml:"name"`
	Width   uint32   `toml:"width"`
	Height  uint32   `toml:"height"`
	Images  []Image  `toml:"images,omitempty"`
	Buffers []Buffer `toml:"buffers,omitempty"`
	Passes  []Pass   `toml:"passes,omitempty"`
}

// Image declares a graph image. Usage is one of color, depth or storage.
// Size defaults to the full graph size; Scale makes it relative and Extent
// absolute. An image without a name gets a generated one and is referred
// to by its alias.
type Image struct {
	Name   string    `toml:"name"`
	Alias  string    `toml:"alias,omitempty"`
	Format string    `toml:"format,omitempty"`
	Usage  string    `toml:"usage,omitempty"`
	Scale  []float32 `toml:"scale,omitempty"`
	Extent []uint32  `toml:"extent,omitempty"`
}

type Buffer struct {
	Name  string   `toml:"name"`
	Size  uint64   `toml:"size,omitempty"`
	Usage []string `toml:"usage,omitempty"`
}

type Pass struct {
	Name    string   `toml:"name"`
	Kind    string   `toml:"kind,omitempty"`
	Present bool     `toml:"present,omitempty"`
	Inputs  []Input  `toml:"inputs,omitempty"`
	Outputs []Output `toml:"outputs,omitempty"`

	// Shader, Vertices and GroupSize drive the default recorder: a draw of
	// Vertices vertices, or one dispatch covering the render area.
	Shader    string   `toml:"shader,omitempty"`
	Vertices  uint32   `toml:"vertices,omitempty"`
	GroupSize []uint32 `toml:"group_size,omitempty"`
	// RenderArea scales the render area relative to the graph size.
	RenderArea []float32 `toml:"render_area,omitempty"`
}

// Input reads an image or a buffer. A Binding makes an image input
// sampled.
type Input struct {
	Name    string  `toml:"name"`
	Image   string  `toml:"image,omitempty"`
	Buffer  string  `toml:"buffer,omitempty"`
	Access  string  `toml:"access,omitempty"`
	Binding *uint32 `toml:"binding,omitempty"`
}

// Output writes an image or a buffer. Attachment is color0..color7, depth
// or depth_stencil and makes the image a renderpass attachment.
type Output struct {
	Name       string `toml:"name"`
	Image      string `toml:"image,omitempty"`
	Buffer     string `toml:"buffer,omitempty"`
	Access     string `toml:"access,omitempty"`
	Attachment string `toml:"attachment,omitempty"`
	Load       string `toml:"load,omitempty"`
	Store      string `toml:"store,omitempty"`
}

func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Parse decodes a graph file. Unknown keys are rejected so typos do not
// silently drop resources.
func Parse(data []byte) (*File, error) {
	f := &File{}
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(f); err != nil {
		return nil, fmt.Errorf("%w: %s", core.ErrInvalidConfig, err)
	}
	for i := range f.Images {
		img := &f.Images[i]
		if img.Name == "" {
			if img.Alias == "" {
				return nil, fmt.Errorf("%w: image %d has neither name nor alias", core.ErrInvalidConfig, i)
			}
			img.Name = img.Alias + "-" + uuid.NewString()[:8]
		}
	}
	if f.Name == "" {
		f.Name = "graph-" + uuid.NewString()[:8]
	}
	return f, nil
}

func (f *File) Encode() ([]byte, error) {
	return toml.Marshal(f)
}
