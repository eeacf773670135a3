package graph

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/spaghettifunk/framegraph/engine/containers"
	"github.com/spaghettifunk/framegraph/engine/core"
	"github.com/spaghettifunk/framegraph/engine/renderer"
	"github.com/spaghettifunk/framegraph/engine/renderer/metadata"
)

// Graph is a compiled render graph. It is owned by a single render
// goroutine; A is the type of the per frame arguments handed to the pass
// recorders.
type Graph[A any] struct {
	id           uuid.UUID
	device       renderer.Device
	config       Config
	passes       []*Pass[A]
	compiled     *compiled
	resources    *GraphResources
	renderpasses *containers.CacheMap[uint64, *metadata.Renderpass]
	executor     *Executor[A]
	plan         *Plan
	width        uint32
	height       uint32
	destroyed    bool
}

func (g *Graph[A]) ID() uuid.UUID {
	return g.id
}

func (g *Graph[A]) Size() (uint32, uint32) {
	return g.width, g.height
}

func (g *Graph[A]) Config() Config {
	return g.config
}

// Plan is the compiled plan for the current size. It is replaced, not
// mutated, by Resize.
func (g *Graph[A]) Plan() *Plan {
	return g.plan
}

func (g *Graph[A]) Resources() *GraphResources {
	return g.resources
}

func (g *Graph[A]) Pipelines() *PipelineLookup {
	return g.executor.Pipelines()
}

func (g *Graph[A]) Framebuffers() *FramebufferCache {
	return g.executor.Framebuffers()
}

func (g *Graph[A]) Executor() *Executor[A] {
	return g.executor
}

// Passes returns the declared passes in declaration order.
func (g *Graph[A]) Passes() []*Pass[A] {
	return g.passes
}

func (g *Graph[A]) alive() error {
	if g.destroyed {
		return fmt.Errorf("%w: graph %s was destroyed", core.ErrInvalidConfig, g.id)
	}
	return nil
}

// Execute records and submits one frame.
func (g *Graph[A]) Execute(ctx context.Context, args A) error {
	if err := g.alive(); err != nil {
		return err
	}
	return g.executor.Execute(ctx, args)
}

// ExecuteSync executes a frame and waits until the GPU is done with it.
func (g *Graph[A]) ExecuteSync(ctx context.Context, args A) error {
	if err := g.Execute(ctx, args); err != nil {
		return err
	}
	return g.Finish(ctx)
}

// Finish waits for every frame in flight.
func (g *Graph[A]) Finish(ctx context.Context) error {
	if err := g.alive(); err != nil {
		return err
	}
	return g.executor.Finish(ctx)
}

// Prewarm builds the pipelines the passes declared with WithPipelines and
// returns how many were missing from the cache.
func (g *Graph[A]) Prewarm(ctx context.Context) (int, error) {
	if err := g.alive(); err != nil {
		return 0, err
	}
	var requests []PipelineRequest
	for i := range g.plan.Steps {
		step := &g.plan.Steps[i]
		pass := g.passes[step.Pass]
		if pass.pipelines == nil {
			continue
		}
		var renderpass *metadata.Renderpass
		if step.Kind == PassGraphics {
			rp, err := g.renderpasses.Get(step.RenderpassKey, func(uint64) (*metadata.Renderpass, error) {
				return g.device.CreateRenderpass(step.RenderpassDesc)
			})
			if err != nil {
				return 0, fmt.Errorf("pass %q: %w", step.Name, err)
			}
			renderpass = rp
		}
		for _, psv := range pass.pipelines() {
			if psv.Shader == nil {
				continue
			}
			if step.Kind == PassCompute {
				requests = append(requests, ComputeRequest(psv.Shader))
			} else {
				requests = append(requests, GraphicsRequest(psv, renderpass))
			}
		}
	}
	n, err := g.executor.Pipelines().Prewarm(ctx, requests)
	if err != nil {
		return 0, err
	}
	core.LogDebug("graph %s: prewarmed %d of %d pipelines", g.id, n, len(requests))
	return n, nil
}

// Resize recreates the images whose size depends on the graph size and
// recompiles the plan. The old images and every framebuffer are destroyed
// once the frames that may use them are complete. On error the graph keeps
// its previous size.
func (g *Graph[A]) Resize(width, height uint32) error {
	if err := g.alive(); err != nil {
		return err
	}
	if width == 0 || height == 0 {
		return fmt.Errorf("%w: %dx%d", core.ErrInvalidSize, width, height)
	}
	if width == g.width && height == g.height {
		return nil
	}

	plan, err := buildPlan(g.passes, g.compiled, g.resources, g.renderpasses, g.device, width, height)
	if err != nil {
		core.LogError("graph %s: failed to resize to %dx%d: %v", g.id, width, height, err)
		return err
	}
	frame := g.executor.NextFrame()
	recreated, err := g.resources.ResizeImages(g.device, width, height, frame)
	if err != nil {
		core.LogError("graph %s: failed to resize to %dx%d: %v", g.id, width, height, err)
		return err
	}

	g.executor.setPlan(plan)
	g.executor.Framebuffers().RetireAll(frame)
	g.plan = plan
	g.width, g.height = width, height
	core.LogInfo("graph %s resized to %dx%d, %d images recreated", g.id, width, height, recreated)
	return nil
}

// Destroy waits for the device to be idle and releases every GPU object
// the graph owns. Imported resources are left alone.
func (g *Graph[A]) Destroy() error {
	if g.destroyed {
		return nil
	}
	err := g.device.WaitIdle()
	if err != nil {
		core.LogError("graph %s: device did not become idle: %v", g.id, err)
	}
	g.executor.destroy()
	g.renderpasses.Destroy(g.device.DestroyRenderpass)
	g.resources.Destroy(g.device)
	g.destroyed = true
	core.LogDebug("graph %s destroyed", g.id)
	return err
}
