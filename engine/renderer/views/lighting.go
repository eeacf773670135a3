package views

import (
	"github.com/spaghettifunk/framegraph/engine/renderer"
	"github.com/spaghettifunk/framegraph/engine/renderer/graph"
	"github.com/spaghettifunk/framegraph/engine/renderer/metadata"
)

// Lighting shades a full screen triangle into an HDR image, reconstructing
// positions from the depth it samples at binding 0.
func Lighting(b *graph.Builder[Frame], shaders *Shaders, depth graph.ImageHandle) (graph.ImageHandle, error) {
	hdr, err := b.CreateImage(HDRImage, metadata.ColorImageConfig(metadata.FormatR16G16B16A16Sfloat), metadata.FullScreen())
	if err != nil {
		return graph.ImageHandle{}, err
	}
	b.AddPass(graph.NewGraphicsPass[Frame]("Lighting").
		WithInput("depth", graph.SampleImage(depth, metadata.AccessTypeFragmentShaderReadSampledImage, 0)).
		WithOutput("hdr", graph.DrawImage(hdr, metadata.ColorDefault(0))).
		WithDebugColor([4]float32{1, 0.9, 0.3, 1}).
		WithPipelines(func() []metadata.PipelineStateVector {
			return []metadata.PipelineStateVector{fullscreenPipeline(shaders.Get(LightingShader))}
		}).
		WithRecordFunc(func(cmd renderer.CommandRecorder, ctx *graph.RecordContext, frame Frame) error {
			return recordLighting(cmd, ctx, frame, shaders)
		}))
	return hdr, nil
}

// fullscreenPipeline draws a single triangle covering the render area.
func fullscreenPipeline(shader *metadata.ShaderProgram) metadata.PipelineStateVector {
	state := metadata.DefaultPipelineState()
	state.Rasterizer.Cull = metadata.FaceCullModeNone
	return metadata.PipelineStateVector{Shader: shader, State: state}
}

func recordLighting(cmd renderer.CommandRecorder, ctx *graph.RecordContext, frame Frame, shaders *Shaders) error {
	pipeline, err := ctx.GraphicsPipeline(fullscreenPipeline(shaders.Get(LightingShader)))
	if err != nil {
		return err
	}
	cmd.BindGraphicsPipeline(pipeline)

	var near, far float32 = 0.1, 1000
	if frame.Camera != nil {
		near, far = frame.Camera.NearClip, frame.Camera.FarClip
	}
	dir := frame.Light.Direction.Normalized()
	cmd.PushConstants(pipeline, metadata.ShaderStageFragment, 0,
		float32Bytes(dir.X, dir.Y, dir.Z, frame.Light.Intensity, near, far, 0, 0))
	cmd.Draw(3, 1, 0, 0)
	return nil
}
