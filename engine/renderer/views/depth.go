package views

import (
	"github.com/spaghettifunk/framegraph/engine/renderer"
	"github.com/spaghettifunk/framegraph/engine/renderer/graph"
	"github.com/spaghettifunk/framegraph/engine/renderer/metadata"
)

// DepthPrepass draws the frame geometry into a full screen depth image.
func DepthPrepass(b *graph.Builder[Frame], shaders *Shaders) (graph.ImageHandle, error) {
	depth, err := b.CreateImage(DepthImage, metadata.DepthImageConfig(metadata.FormatD32Sfloat), metadata.FullScreen())
	if err != nil {
		return graph.ImageHandle{}, err
	}
	b.AddPass(graph.NewGraphicsPass[Frame]("DepthPrepass").
		WithOutput("depth", graph.DrawImage(depth, metadata.DepthOnlyDefault())).
		WithDebugColor([4]float32{0.4, 0.4, 0.4, 1}).
		WithPipelines(func() []metadata.PipelineStateVector {
			return []metadata.PipelineStateVector{depthPipeline(shaders)}
		}).
		WithRecordFunc(func(cmd renderer.CommandRecorder, ctx *graph.RecordContext, frame Frame) error {
			return recordDepth(cmd, ctx, frame, shaders)
		}))
	return depth, nil
}

func depthPipeline(shaders *Shaders) metadata.PipelineStateVector {
	state := metadata.DefaultPipelineState()
	state.DepthStencil.DepthTest = true
	state.DepthStencil.DepthWrite = true
	state.DepthStencil.CompareOp = metadata.CompareOpLess
	return metadata.PipelineStateVector{Shader: shaders.Get(DepthShader), State: state}
}

func recordDepth(cmd renderer.CommandRecorder, ctx *graph.RecordContext, frame Frame, shaders *Shaders) error {
	if len(frame.Draws) == 0 {
		return nil
	}
	pipeline, err := ctx.GraphicsPipeline(depthPipeline(shaders))
	if err != nil {
		return err
	}
	cmd.BindGraphicsPipeline(pipeline)
	if frame.Camera != nil {
		cmd.PushConstants(pipeline, metadata.ShaderStageVertex, 0, frame.Camera.ViewProjection().Bytes())
	}
	for _, d := range frame.Draws {
		instances := d.InstanceCount
		if instances == 0 {
			instances = 1
		}
		cmd.Draw(d.VertexCount, instances, 0, 0)
	}
	return nil
}
