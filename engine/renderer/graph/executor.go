package graph

import (
	"context"
	"errors"
	"fmt"

	"github.com/spaghettifunk/framegraph/engine/containers"
	"github.com/spaghettifunk/framegraph/engine/core"
	"github.com/spaghettifunk/framegraph/engine/renderer"
	"github.com/spaghettifunk/framegraph/engine/renderer/metadata"
)

type frameSlot struct {
	// frame last submitted from the slot, zero if none.
	frame    uint64
	passes   int
	barriers int
}

type inflight struct {
	frame uint64
	slot  int
}

// Executor replays a plan once per frame. It waits on the oldest frame
// when all slots are busy, destroys the GPU objects retired before that
// frame, and records every step into one command recorder.
type Executor[A any] struct {
	device       renderer.Device
	config       Config
	passes       []*Pass[A]
	plan         *Plan
	resources    *GraphResources
	renderpasses *containers.CacheMap[uint64, *metadata.Renderpass]
	framebuffers *FramebufferCache
	pipelines    *PipelineLookup

	frames   *containers.PerFrame[frameSlot]
	inFlight *containers.RingQueue[inflight]
	// frame is the index of the next frame to record. Frames start at 1 so
	// zero can mean "nothing completed".
	frame     uint64
	completed uint64
	metrics   *core.FrameMetrics

	attachments []*metadata.Image
}

func newExecutor[A any](
	device renderer.Device,
	config Config,
	passes []*Pass[A],
	plan *Plan,
	resources *GraphResources,
	renderpasses *containers.CacheMap[uint64, *metadata.Renderpass],
) (*Executor[A], error) {
	frames, err := containers.NewPerFrame[frameSlot](config.FramesInFlight, nil)
	if err != nil {
		return nil, err
	}
	framebuffers, err := NewFramebufferCache(device, config.FramebufferCacheCapacity)
	if err != nil {
		return nil, err
	}
	pipelines, err := NewPipelineLookup(device, config.PipelineCacheCapacity)
	if err != nil {
		return nil, err
	}
	return &Executor[A]{
		device:       device,
		config:       config,
		passes:       passes,
		plan:         plan,
		resources:    resources,
		renderpasses: renderpasses,
		framebuffers: framebuffers,
		pipelines:    pipelines,
		frames:       frames,
		inFlight:     containers.NewRingQueue[inflight](config.FramesInFlight),
		frame:        1,
		metrics:      core.NewFrameMetrics(),
	}, nil
}

// NextFrame is the index the next Execute call records.
func (e *Executor[A]) NextFrame() uint64 {
	return e.frame
}

// CompletedFrame is the last frame known to be finished by the GPU.
func (e *Executor[A]) CompletedFrame() uint64 {
	return e.completed
}

// InFlight counts the submitted frames not waited for yet.
func (e *Executor[A]) InFlight() int {
	return e.inFlight.Len()
}

func (e *Executor[A]) Metrics() *core.FrameMetrics {
	return e.metrics
}

func (e *Executor[A]) Framebuffers() *FramebufferCache {
	return e.framebuffers
}

func (e *Executor[A]) Pipelines() *PipelineLookup {
	return e.pipelines
}

func (e *Executor[A]) setPlan(plan *Plan) {
	e.plan = plan
}

// Execute records and submits one frame. If a recorder fails the frame is
// aborted, nothing is submitted and the frame index does not advance.
func (e *Executor[A]) Execute(ctx context.Context, args A) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if e.inFlight.IsFull() {
		if err := e.waitOldest(ctx); err != nil {
			return err
		}
	}
	e.collect()

	slot := e.frames.Index()
	frame := e.frame
	e.setFrame(frame)

	cmd, err := e.device.BeginFrame(frame, slot)
	if err != nil {
		return fmt.Errorf("frame %d: failed to begin: %w", frame, err)
	}

	barriers := 0
	for i := range e.plan.Steps {
		step := &e.plan.Steps[i]
		if err := ctx.Err(); err != nil {
			e.device.Abort(cmd, slot)
			return err
		}
		if err := e.recordStep(ctx, cmd, step, frame, slot, args); err != nil {
			e.device.Abort(cmd, slot)
			return fmt.Errorf("frame %d: pass %q: %w", frame, step.Name, err)
		}
		barriers += step.BarrierCount()
	}

	if err := e.device.Submit(cmd, frame, slot); err != nil {
		return fmt.Errorf("frame %d: failed to submit: %w", frame, err)
	}
	if err := e.inFlight.Enqueue(inflight{frame: frame, slot: slot}); err != nil {
		// the oldest frame was waited for above
		return err
	}

	current := e.frames.GetMut()
	current.frame = frame
	current.passes = len(e.plan.Steps)
	current.barriers = barriers
	e.metrics.Record(len(e.plan.Steps), barriers)

	e.frames.Advance()
	e.frame++
	return nil
}

func (e *Executor[A]) recordStep(_ context.Context, cmd renderer.CommandRecorder, step *Step, frame uint64, slot int, args A) error {
	pass := e.passes[step.Pass]
	cmd.BeginDebugRegion(step.Name, pass.debugColor)

	if err := e.resolveBarriers(step); err != nil {
		return err
	}
	if !step.barriers.IsEmpty() {
		cmd.PipelineBarrier(step.barriers)
	}

	var renderpass *metadata.Renderpass
	if step.Kind == PassGraphics {
		rp, err := e.renderpasses.Get(step.RenderpassKey, func(uint64) (*metadata.Renderpass, error) {
			return e.device.CreateRenderpass(step.RenderpassDesc)
		})
		if err != nil {
			return err
		}
		renderpass = rp

		e.attachments = e.attachments[:0]
		for _, h := range step.Attachments {
			img, ok := e.resources.GetImage(h)
			if !ok {
				return fmt.Errorf("%w: attachment %s", core.ErrStaleHandle, h)
			}
			e.attachments = append(e.attachments, img)
		}
		fb, err := e.framebuffers.Get(metadata.FramebufferDesc{
			Renderpass:  rp,
			Attachments: e.attachments,
			Width:       step.FramebufferWidth,
			Height:      step.FramebufferHeight,
		})
		if err != nil {
			return err
		}
		cmd.BeginRenderpass(rp, fb, step.Area, step.ClearValues)
		cmd.SetViewport(metadata.ViewportOf(step.Area))
		cmd.SetScissor(step.Area)
	}

	for _, s := range step.Samples {
		img, ok := e.resources.GetImage(s.Image)
		if !ok {
			return fmt.Errorf("%w: sampled image %s", core.ErrStaleHandle, s.Image)
		}
		cmd.BindImage(s.Binding, img)
	}

	if pass.recorder != nil {
		rc := &RecordContext{
			Pass:       step.Name,
			Frame:      frame,
			Slot:       slot,
			Area:       step.Area,
			Renderpass: renderpass,
			Resources:  e.resources,
			Pipelines:  e.pipelines,
			inputs:     pass.inputs,
			outputs:    pass.outputs,
		}
		if err := pass.recorder.Record(cmd, rc, args); err != nil {
			return err
		}
	}

	if step.Kind == PassGraphics {
		cmd.EndRenderpass()
	}
	if step.Present != nil {
		img, ok := e.resources.GetImage(step.Present.Image)
		if !ok {
			return fmt.Errorf("%w: presented image %s", core.ErrStaleHandle, step.Present.Image)
		}
		cmd.PipelineBarrier(metadata.Barriers{Images: []metadata.ImageBarrier{{
			Image:      img,
			Aspect:     step.Present.Aspect,
			Transition: step.Present.Transition,
		}}})
	}
	cmd.EndDebugRegion()
	return nil
}

// resolveBarriers fills the scratch barriers of step with the images and
// buffers the planned barriers point at this frame.
func (e *Executor[A]) resolveBarriers(step *Step) error {
	step.barriers.Images = step.barriers.Images[:0]
	step.barriers.Buffers = step.barriers.Buffers[:0]
	for _, b := range step.ImageBarriers {
		img, ok := e.resources.GetImage(b.Image)
		if !ok {
			return fmt.Errorf("%w: image %q", core.ErrStaleHandle, b.Name)
		}
		step.barriers.Images = append(step.barriers.Images, metadata.ImageBarrier{
			Image:      img,
			Aspect:     b.Aspect,
			Transition: b.Transition,
		})
	}
	for _, b := range step.BufferBarriers {
		buf, ok := e.resources.GetBuffer(b.Buffer)
		if !ok {
			return fmt.Errorf("%w: buffer %q", core.ErrStaleHandle, b.Name)
		}
		step.barriers.Buffers = append(step.barriers.Buffers, metadata.BufferBarrier{
			Buffer:     buf,
			Transition: b.Transition,
		})
	}
	return nil
}

func (e *Executor[A]) waitOldest(ctx context.Context) error {
	oldest, err := e.inFlight.Peek()
	if err != nil {
		return err
	}
	waitCtx := ctx
	if e.config.FrameTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, e.config.FrameTimeout)
		defer cancel()
	}
	if err := e.device.WaitFrame(waitCtx, oldest.slot); err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return fmt.Errorf("%w: frame %d after %s", core.ErrFrameTimeout, oldest.frame, e.config.FrameTimeout)
		}
		return fmt.Errorf("frame %d: %w", oldest.frame, err)
	}
	_, _ = e.inFlight.Dequeue()
	e.completed = oldest.frame
	return nil
}

func (e *Executor[A]) setFrame(frame uint64) {
	e.renderpasses.SetFrame(frame)
	e.framebuffers.SetFrame(frame)
	e.pipelines.SetFrame(frame)
}

// collect destroys what was retired up to the last completed frame.
func (e *Executor[A]) collect() {
	if e.completed == 0 {
		return
	}
	e.collectUpTo(e.completed)
}

func (e *Executor[A]) collectUpTo(frame uint64) int {
	n := e.framebuffers.Collect(frame)
	n += e.pipelines.Collect(frame)
	n += e.renderpasses.Collect(frame, e.device.DestroyRenderpass)
	n += e.resources.CollectRetired(e.device, frame)
	if n > 0 {
		core.LogDebug("destroyed %d retired objects up to frame %d", n, frame)
	}
	return n
}

// Finish waits for every frame in flight and destroys everything retired,
// including what was retired for the next frame since no recorded frame
// can still reference it.
func (e *Executor[A]) Finish(ctx context.Context) error {
	for !e.inFlight.IsEmpty() {
		if err := e.waitOldest(ctx); err != nil {
			return err
		}
	}
	e.collectUpTo(e.frame)
	return nil
}

// destroy releases the caches. The device must be idle.
func (e *Executor[A]) destroy() {
	e.framebuffers.Destroy()
	e.pipelines.Destroy()
	for !e.inFlight.IsEmpty() {
		_, _ = e.inFlight.Dequeue()
	}
}
