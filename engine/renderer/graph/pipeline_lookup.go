package graph

import (
	"context"
	"fmt"

	"github.com/sourcegraph/conc/pool"

	"github.com/spaghettifunk/framegraph/engine/containers"
	"github.com/spaghettifunk/framegraph/engine/core"
	"github.com/spaghettifunk/framegraph/engine/renderer"
	"github.com/spaghettifunk/framegraph/engine/renderer/metadata"
)

// PipelineRequest names a pipeline to create ahead of time. Graphics
// requests need a renderpass, compute requests only a shader.
type PipelineRequest struct {
	Kind       metadata.PipelineKind
	State      metadata.PipelineStateVector
	Renderpass *metadata.Renderpass
	Shader     *metadata.ShaderProgram
}

func GraphicsRequest(psv metadata.PipelineStateVector, renderpass *metadata.Renderpass) PipelineRequest {
	return PipelineRequest{Kind: metadata.PipelineKindGraphics, State: psv, Renderpass: renderpass}
}

func ComputeRequest(shader *metadata.ShaderProgram) PipelineRequest {
	return PipelineRequest{Kind: metadata.PipelineKindCompute, Shader: shader}
}

func (r PipelineRequest) key() uint64 {
	if r.Kind == metadata.PipelineKindCompute {
		return r.Shader.Identity()
	}
	return r.State.Digest(r.Renderpass)
}

func (r PipelineRequest) validate() error {
	if r.Kind == metadata.PipelineKindCompute {
		if !r.Shader.IsCompute() {
			return fmt.Errorf("%w: compute pipeline needs a single compute stage", core.ErrInvalidConfig)
		}
		return nil
	}
	if r.State.Shader == nil || len(r.State.Shader.Stages) == 0 {
		return fmt.Errorf("%w: graphics pipeline without shader stages", core.ErrInvalidConfig)
	}
	if r.State.Shader.IsCompute() {
		return fmt.Errorf("%w: graphics pipeline with compute shader %q", core.ErrInvalidConfig, r.State.Shader.Name)
	}
	if r.Renderpass == nil {
		return fmt.Errorf("%w: graphics pipeline %q without renderpass", core.ErrInvalidConfig, r.State.Shader.Name)
	}
	return nil
}

// PipelineLookup caches pipelines by the digest of their state. Graphics
// and compute pipelines live in separate caches sharing the capacity.
type PipelineLookup struct {
	device   renderer.Device
	graphics *containers.CacheMap[uint64, *metadata.Pipeline]
	compute  *containers.CacheMap[uint64, *metadata.Pipeline]
}

func NewPipelineLookup(device renderer.Device, capacity int) (*PipelineLookup, error) {
	if capacity < 2 {
		return nil, fmt.Errorf("%w: pipeline cache capacity must be at least 2, got %d", core.ErrInvalidConfig, capacity)
	}
	graphics, err := containers.NewCacheMap[uint64, *metadata.Pipeline](capacity - capacity/2)
	if err != nil {
		return nil, err
	}
	compute, err := containers.NewCacheMap[uint64, *metadata.Pipeline](capacity / 2)
	if err != nil {
		return nil, err
	}
	return &PipelineLookup{device: device, graphics: graphics, compute: compute}, nil
}

// GraphicsPipeline returns the pipeline for psv in renderpass, creating it
// on first use.
func (l *PipelineLookup) GraphicsPipeline(psv metadata.PipelineStateVector, renderpass *metadata.Renderpass) (*metadata.Pipeline, error) {
	req := GraphicsRequest(psv, renderpass)
	if err := req.validate(); err != nil {
		return nil, err
	}
	return l.graphics.Get(req.key(), func(uint64) (*metadata.Pipeline, error) {
		return l.device.CreateGraphicsPipeline(psv, renderpass)
	})
}

func (l *PipelineLookup) ComputePipeline(shader *metadata.ShaderProgram) (*metadata.Pipeline, error) {
	req := ComputeRequest(shader)
	if err := req.validate(); err != nil {
		return nil, err
	}
	return l.compute.Get(req.key(), func(uint64) (*metadata.Pipeline, error) {
		return l.device.CreateComputePipeline(shader)
	})
}

func (l *PipelineLookup) cacheOf(kind metadata.PipelineKind) *containers.CacheMap[uint64, *metadata.Pipeline] {
	if kind == metadata.PipelineKindCompute {
		return l.compute
	}
	return l.graphics
}

func (l *PipelineLookup) create(req PipelineRequest) (*metadata.Pipeline, error) {
	if req.Kind == metadata.PipelineKindCompute {
		return l.device.CreateComputePipeline(req.Shader)
	}
	return l.device.CreateGraphicsPipeline(req.State, req.Renderpass)
}

// Prewarm creates the pipelines of requests that are not cached yet. When
// the device allows it they are created concurrently; either way they are
// inserted in request order. If any creation fails nothing is inserted and
// the pipelines already created are destroyed.
func (l *PipelineLookup) Prewarm(ctx context.Context, requests []PipelineRequest) (int, error) {
	type job struct {
		index int
		req   PipelineRequest
		key   uint64
	}
	var jobs []job
	seen := make(map[metadata.PipelineKind]map[uint64]bool)
	for i, req := range requests {
		if err := req.validate(); err != nil {
			return 0, fmt.Errorf("request %d: %w", i, err)
		}
		key := req.key()
		if seen[req.Kind] == nil {
			seen[req.Kind] = make(map[uint64]bool)
		}
		if seen[req.Kind][key] || l.cacheOf(req.Kind).Contains(key) {
			continue
		}
		seen[req.Kind][key] = true
		jobs = append(jobs, job{index: i, req: req, key: key})
	}
	if len(jobs) == 0 {
		return 0, nil
	}

	created := make([]*metadata.Pipeline, len(jobs))
	var err error
	if l.device.IsMultithreaded() {
		p := pool.New().WithErrors().WithContext(ctx)
		for i, j := range jobs {
			i, j := i, j
			p.Go(func(ctx context.Context) error {
				if err := ctx.Err(); err != nil {
					return err
				}
				pipeline, err := l.create(j.req)
				if err != nil {
					return fmt.Errorf("request %d: %w", j.index, err)
				}
				created[i] = pipeline
				return nil
			})
		}
		err = p.Wait()
	} else {
		for i, j := range jobs {
			if err = ctx.Err(); err != nil {
				break
			}
			pipeline, cerr := l.create(j.req)
			if cerr != nil {
				err = fmt.Errorf("request %d: %w", j.index, cerr)
				break
			}
			created[i] = pipeline
		}
	}

	if err != nil {
		for _, pipeline := range created {
			if pipeline != nil {
				l.device.DestroyPipeline(pipeline)
			}
		}
		core.LogError("pipeline prewarm failed: %v", err)
		return 0, err
	}

	for i, j := range jobs {
		pipeline := created[i]
		_, _ = l.cacheOf(j.req.Kind).Get(j.key, func(uint64) (*metadata.Pipeline, error) {
			return pipeline, nil
		})
	}
	core.LogDebug("prewarmed %d pipelines", len(jobs))
	return len(jobs), nil
}

// Len counts the live pipelines of both caches.
func (l *PipelineLookup) Len() int {
	return l.graphics.Len() + l.compute.Len()
}

func (l *PipelineLookup) UnusedLen() int {
	return len(l.graphics.Unused()) + len(l.compute.Unused())
}

func (l *PipelineLookup) SetFrame(frame uint64) {
	l.graphics.SetFrame(frame)
	l.compute.SetFrame(frame)
}

func (l *PipelineLookup) Collect(completedFrame uint64) int {
	return l.graphics.Collect(completedFrame, l.device.DestroyPipeline) +
		l.compute.Collect(completedFrame, l.device.DestroyPipeline)
}

// GarbageCollect destroys every evicted pipeline.
func (l *PipelineLookup) GarbageCollect() int {
	return l.graphics.GarbageCollect(l.device.DestroyPipeline) +
		l.compute.GarbageCollect(l.device.DestroyPipeline)
}

func (l *PipelineLookup) Destroy() {
	l.graphics.Destroy(l.device.DestroyPipeline)
	l.compute.Destroy(l.device.DestroyPipeline)
}
