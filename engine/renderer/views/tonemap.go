package views

import (
	"github.com/spaghettifunk/framegraph/engine/renderer"
	"github.com/spaghettifunk/framegraph/engine/renderer/graph"
	"github.com/spaghettifunk/framegraph/engine/renderer/metadata"
)

// Tonemap maps hdr to an LDR image. The exposure comes from the luminance
// histogram.
func Tonemap(b *graph.Builder[Frame], shaders *Shaders, hdr graph.ImageHandle, histogram graph.BufferHandle) (graph.ImageHandle, error) {
	ldr, err := b.CreateImage(LDRImage, metadata.ColorImageConfig(metadata.FormatR8G8B8A8Unorm), metadata.FullScreen())
	if err != nil {
		return graph.ImageHandle{}, err
	}
	b.AddPass(graph.NewGraphicsPass[Frame]("Tonemap").
		WithInput("hdr", graph.SampleImage(hdr, metadata.AccessTypeFragmentShaderReadSampledImage, 0)).
		WithInput("histogram", graph.ReadBuffer(histogram, metadata.AccessTypeFragmentShaderReadOther)).
		WithOutput("ldr", graph.DrawImage(ldr, metadata.ColorDefault(0))).
		WithPipelines(func() []metadata.PipelineStateVector {
			return []metadata.PipelineStateVector{fullscreenPipeline(shaders.Get(TonemapShader))}
		}).
		WithRecordFunc(func(cmd renderer.CommandRecorder, ctx *graph.RecordContext, frame Frame) error {
			return recordTonemap(cmd, ctx, frame, shaders)
		}))
	return ldr, nil
}

func recordTonemap(cmd renderer.CommandRecorder, ctx *graph.RecordContext, frame Frame, shaders *Shaders) error {
	pipeline, err := ctx.GraphicsPipeline(fullscreenPipeline(shaders.Get(TonemapShader)))
	if err != nil {
		return err
	}
	buf, err := ctx.Buffer("histogram")
	if err != nil {
		return err
	}
	cmd.BindGraphicsPipeline(pipeline)
	cmd.BindBuffer(1, buf)

	exposure := frame.Exposure
	if exposure <= 0 {
		exposure = 1
	}
	pixels := float32(ctx.Area.Width) * float32(ctx.Area.Height)
	cmd.PushConstants(pipeline, metadata.ShaderStageFragment, 0,
		float32Bytes(exposure, pixels, minLogLuminance, logLuminanceRange))
	cmd.Draw(3, 1, 0, 0)
	return nil
}
