package views

import (
	"github.com/spaghettifunk/framegraph/engine/renderer/graph"
)

type Targets struct {
	Depth     graph.ImageHandle
	HDR       graph.ImageHandle
	Histogram graph.BufferHandle
	LDR       graph.ImageHandle
	Output    graph.ImageHandle
}

// Forward declares the whole built-in chain: depth prepass, lighting,
// luminance histogram, tonemap and FXAA.
func Forward(b *graph.Builder[Frame], shaders *Shaders) (*Targets, error) {
	t := &Targets{}
	var err error
	if t.Depth, err = DepthPrepass(b, shaders); err != nil {
		return nil, err
	}
	if t.HDR, err = Lighting(b, shaders, t.Depth); err != nil {
		return nil, err
	}
	if t.Histogram, err = LuminanceHistogram(b, shaders, t.HDR); err != nil {
		return nil, err
	}
	if t.LDR, err = Tonemap(b, shaders, t.HDR, t.Histogram); err != nil {
		return nil, err
	}
	if t.Output, err = FXAA(b, shaders, t.LDR); err != nil {
		return nil, err
	}
	return t, nil
}

// DepthToFXAA is the smallest useful chain: FXAA reads the depth prepass
// directly.
func DepthToFXAA(b *graph.Builder[Frame], shaders *Shaders) (*Targets, error) {
	t := &Targets{}
	var err error
	if t.Depth, err = DepthPrepass(b, shaders); err != nil {
		return nil, err
	}
	if t.Output, err = FXAA(b, shaders, t.Depth); err != nil {
		return nil, err
	}
	return t, nil
}
