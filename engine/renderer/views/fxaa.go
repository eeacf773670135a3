package views

import (
	"github.com/spaghettifunk/framegraph/engine/renderer"
	"github.com/spaghettifunk/framegraph/engine/renderer/graph"
	"github.com/spaghettifunk/framegraph/engine/renderer/metadata"
)

// FXAA anti-aliases input into the output image, which is presented.
func FXAA(b *graph.Builder[Frame], shaders *Shaders, input graph.ImageHandle) (graph.ImageHandle, error) {
	out, err := b.CreateImage(OutputImage, metadata.ColorImageConfig(metadata.FormatB8G8R8A8Unorm), metadata.FullScreen())
	if err != nil {
		return graph.ImageHandle{}, err
	}
	b.AddPass(graph.NewGraphicsPass[Frame]("FXAA").
		WithInput("input", graph.SampleImage(input, metadata.AccessTypeFragmentShaderReadSampledImage, 0)).
		WithOutput("color", graph.DrawImage(out, metadata.ColorDefault(0))).
		Presenting().
		WithDebugColor([4]float32{0.3, 1, 0.4, 1}).
		WithPipelines(func() []metadata.PipelineStateVector {
			return []metadata.PipelineStateVector{fullscreenPipeline(shaders.Get(FXAAShader))}
		}).
		WithRecordFunc(func(cmd renderer.CommandRecorder, ctx *graph.RecordContext, _ Frame) error {
			return recordFXAA(cmd, ctx, shaders)
		}))
	return out, nil
}

func recordFXAA(cmd renderer.CommandRecorder, ctx *graph.RecordContext, shaders *Shaders) error {
	pipeline, err := ctx.GraphicsPipeline(fullscreenPipeline(shaders.Get(FXAAShader)))
	if err != nil {
		return err
	}
	cmd.BindGraphicsPipeline(pipeline)
	w, h := float32(ctx.Area.Width), float32(ctx.Area.Height)
	// 1/w, 1/h, edge threshold, subpixel quality
	cmd.PushConstants(pipeline, metadata.ShaderStageFragment, 0, float32Bytes(1/w, 1/h, 0.125, 0.75))
	cmd.Draw(3, 1, 0, 0)
	return nil
}
