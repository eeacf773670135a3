package views

import (
	"github.com/spaghettifunk/framegraph/engine/renderer"
	"github.com/spaghettifunk/framegraph/engine/renderer/graph"
	"github.com/spaghettifunk/framegraph/engine/renderer/metadata"
)

// Log2 luminance range covered by the histogram bins.
const (
	minLogLuminance   float32 = -10
	logLuminanceRange float32 = 12
)

// LuminanceHistogram bins the log luminance of hdr into a storage buffer of
// HistogramBins counters with a compute shader.
func LuminanceHistogram(b *graph.Builder[Frame], shaders *Shaders, hdr graph.ImageHandle) (graph.BufferHandle, error) {
	histogram, err := b.CreateBuffer(HistogramBuffer, metadata.BufferConfig{
		Size:  HistogramBins * 4,
		Usage: metadata.BufferUsageStorage | metadata.BufferUsageTransferDst,
	})
	if err != nil {
		return graph.BufferHandle{}, err
	}
	b.AddPass(graph.NewComputePass[Frame]("LuminanceHistogram").
		WithInput("hdr", graph.SampleImage(hdr, metadata.AccessTypeComputeShaderReadSampledImage, 0)).
		WithOutput("histogram", graph.StorageBuffer(histogram, metadata.AccessTypeComputeShaderWrite)).
		WithPipelines(func() []metadata.PipelineStateVector {
			return []metadata.PipelineStateVector{{Shader: shaders.Get(HistogramShader)}}
		}).
		WithRecordFunc(func(cmd renderer.CommandRecorder, ctx *graph.RecordContext, _ Frame) error {
			return recordHistogram(cmd, ctx, shaders)
		}))
	return histogram, nil
}

func recordHistogram(cmd renderer.CommandRecorder, ctx *graph.RecordContext, shaders *Shaders) error {
	pipeline, err := ctx.ComputePipeline(shaders.Get(HistogramShader))
	if err != nil {
		return err
	}
	buf, err := ctx.Buffer("histogram")
	if err != nil {
		return err
	}
	cmd.BindComputePipeline(pipeline)
	cmd.BindBuffer(1, buf)

	w, h := ctx.Area.Width, ctx.Area.Height
	cmd.PushConstants(pipeline, metadata.ShaderStageCompute, 0,
		float32Bytes(float32(w), float32(h), minLogLuminance, 1/logLuminanceRange))
	cmd.Dispatch(groups(w, histogramGroupSize), groups(h, histogramGroupSize), 1)
	return nil
}
