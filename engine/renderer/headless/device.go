package headless

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/spaghettifunk/framegraph/engine/core"
	"github.com/spaghettifunk/framegraph/engine/renderer"
	"github.com/spaghettifunk/framegraph/engine/renderer/metadata"
)

// Object kinds, used for counters and failure injection.
const (
	KindImage       = "image"
	KindBuffer      = "buffer"
	KindRenderpass  = "renderpass"
	KindFramebuffer = "framebuffer"
	KindPipeline    = "pipeline"
	KindSubmit      = "submit"
)

type Option func(*Device)

// WithMultithreading makes the device report that pipelines may be created
// concurrently.
func WithMultithreading() Option {
	return func(d *Device) {
		d.multithreaded = true
	}
}

// Device is a renderer.Device that allocates nothing on a GPU. It keeps
// track of every object it hands out and records submitted frames so the
// command stream can be inspected.
type Device struct {
	mu            sync.Mutex
	multithreaded bool
	stalled       bool

	live      map[uint64]string
	created   map[string]int
	destroyed map[string]int
	failAfter map[string]int

	submitted []*Recorder
	aborted   int
	pending   map[int]uint64
	completed map[int]uint64
}

var _ renderer.Device = (*Device)(nil)

func NewDevice(opts ...Option) *Device {
	d := &Device{
		live:      make(map[uint64]string),
		created:   make(map[string]int),
		destroyed: make(map[string]int),
		failAfter: make(map[string]int),
		pending:   make(map[int]uint64),
		completed: make(map[int]uint64),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// FailAfter makes the creation of kind fail once n more objects of that
// kind have been created. A negative n removes the failure.
func (d *Device) FailAfter(kind string, n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if n < 0 {
		delete(d.failAfter, kind)
		return
	}
	d.failAfter[kind] = n
}

func (d *Device) allocate(kind string, id uint64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if n, ok := d.failAfter[kind]; ok {
		if n == 0 {
			return fmt.Errorf("%w: headless %s", core.ErrDeviceAllocation, kind)
		}
		d.failAfter[kind] = n - 1
	}
	d.live[id] = kind
	d.created[kind]++
	return nil
}

func (d *Device) release(kind string, id uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.live[id]; !ok {
		core.LogWarn("headless: %s %d destroyed twice or never created", kind, id)
		return
	}
	delete(d.live, id)
	d.destroyed[kind]++
}

func (d *Device) CreateImage(name string, config metadata.ImageConfig, width, height uint32) (*metadata.Image, error) {
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("%w: image %q has zero size", core.ErrDeviceAllocation, name)
	}
	img := metadata.NewImage(name, config, width, height)
	if err := d.allocate(KindImage, img.ID); err != nil {
		return nil, err
	}
	return img, nil
}

func (d *Device) DestroyImage(image *metadata.Image) {
	if image != nil {
		d.release(KindImage, image.ID)
	}
}

func (d *Device) CreateBuffer(name string, config metadata.BufferConfig) (*metadata.Buffer, error) {
	buf := metadata.NewBuffer(name, config)
	if err := d.allocate(KindBuffer, buf.ID); err != nil {
		return nil, err
	}
	return buf, nil
}

func (d *Device) DestroyBuffer(buffer *metadata.Buffer) {
	if buffer != nil {
		d.release(KindBuffer, buffer.ID)
	}
}

func (d *Device) CreateRenderpass(desc metadata.RenderpassDesc) (*metadata.Renderpass, error) {
	rp := &metadata.Renderpass{
		ID:   metadata.NewObjectID(),
		Key:  desc.Key(),
		Desc: desc,
	}
	for _, a := range desc.Attachments() {
		rp.ClearValues = append(rp.ClearValues, metadata.ClearValueFor(a.Kind))
	}
	if err := d.allocate(KindRenderpass, rp.ID); err != nil {
		return nil, err
	}
	return rp, nil
}

func (d *Device) DestroyRenderpass(renderpass *metadata.Renderpass) {
	if renderpass != nil {
		d.release(KindRenderpass, renderpass.ID)
	}
}

func (d *Device) CreateFramebuffer(desc metadata.FramebufferDesc) (*metadata.Framebuffer, error) {
	if desc.Renderpass == nil {
		return nil, fmt.Errorf("%w: framebuffer without renderpass", core.ErrDeviceAllocation)
	}
	if len(desc.Attachments) != desc.Renderpass.Desc.AttachmentCount() {
		return nil, fmt.Errorf("%w: framebuffer has %d attachments, renderpass expects %d",
			core.ErrDeviceAllocation, len(desc.Attachments), desc.Renderpass.Desc.AttachmentCount())
	}
	fb := &metadata.Framebuffer{
		ID:   metadata.NewObjectID(),
		Desc: desc,
	}
	if err := d.allocate(KindFramebuffer, fb.ID); err != nil {
		return nil, err
	}
	return fb, nil
}

func (d *Device) DestroyFramebuffer(framebuffer *metadata.Framebuffer) {
	if framebuffer != nil {
		d.release(KindFramebuffer, framebuffer.ID)
	}
}

func (d *Device) CreateGraphicsPipeline(psv metadata.PipelineStateVector, renderpass *metadata.Renderpass) (*metadata.Pipeline, error) {
	if psv.Shader == nil {
		return nil, fmt.Errorf("%w: graphics pipeline without shader", core.ErrDeviceAllocation)
	}
	p := &metadata.Pipeline{
		ID:     metadata.NewObjectID(),
		Kind:   metadata.PipelineKindGraphics,
		Shader: psv.Shader,
		Key:    psv.Digest(renderpass),
	}
	if err := d.allocate(KindPipeline, p.ID); err != nil {
		return nil, err
	}
	return p, nil
}

func (d *Device) CreateComputePipeline(shader *metadata.ShaderProgram) (*metadata.Pipeline, error) {
	if shader == nil {
		return nil, fmt.Errorf("%w: compute pipeline without shader", core.ErrDeviceAllocation)
	}
	p := &metadata.Pipeline{
		ID:     metadata.NewObjectID(),
		Kind:   metadata.PipelineKindCompute,
		Shader: shader,
		Key:    shader.Identity(),
	}
	if err := d.allocate(KindPipeline, p.ID); err != nil {
		return nil, err
	}
	return p, nil
}

func (d *Device) DestroyPipeline(pipeline *metadata.Pipeline) {
	if pipeline != nil {
		d.release(KindPipeline, pipeline.ID)
	}
}

func (d *Device) BeginFrame(frame uint64, slot int) (renderer.CommandRecorder, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, busy := d.pending[slot]; busy {
		return nil, fmt.Errorf("frame %d: slot %d still in flight", frame, slot)
	}
	return &Recorder{Frame: frame, Slot: slot, recording: true}, nil
}

func (d *Device) Submit(cmd renderer.CommandRecorder, frame uint64, slot int) error {
	rec, ok := cmd.(*Recorder)
	if !ok || !rec.recording {
		return core.ErrNotRecording
	}
	rec.recording = false

	d.mu.Lock()
	defer d.mu.Unlock()
	if n, ok := d.failAfter[KindSubmit]; ok {
		if n == 0 {
			return fmt.Errorf("%w: headless submit of frame %d", core.ErrDeviceLost, frame)
		}
		d.failAfter[KindSubmit] = n - 1
	}
	d.submitted = append(d.submitted, rec)
	d.pending[slot] = frame
	return nil
}

func (d *Device) Abort(cmd renderer.CommandRecorder, slot int) {
	if rec, ok := cmd.(*Recorder); ok {
		rec.recording = false
	}
	d.mu.Lock()
	d.aborted++
	d.mu.Unlock()
}

// Stall makes WaitFrame block until its context is done, as if the GPU
// never signaled the fence.
func (d *Device) Stall(stalled bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stalled = stalled
}

// WaitFrame completes the frame pending on slot immediately unless the
// device is stalled.
func (d *Device) WaitFrame(ctx context.Context, slot int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	stalled := d.stalled
	d.mu.Unlock()
	if stalled {
		<-ctx.Done()
		return ctx.Err()
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if frame, ok := d.pending[slot]; ok {
		d.completed[slot] = frame
		delete(d.pending, slot)
	}
	return nil
}

func (d *Device) WaitIdle() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for slot, frame := range d.pending {
		d.completed[slot] = frame
		delete(d.pending, slot)
	}
	return nil
}

func (d *Device) IsMultithreaded() bool {
	return d.multithreaded
}

// Live returns how many objects of kind are currently alive.
func (d *Device) Live(kind string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, k := range d.live {
		if k == kind {
			n++
		}
	}
	return n
}

func (d *Device) Created(kind string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.created[kind]
}

func (d *Device) Destroyed(kind string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.destroyed[kind]
}

// Leaks lists the kinds that still have live objects.
func (d *Device) Leaks() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	seen := make(map[string]bool)
	for _, k := range d.live {
		seen[k] = true
	}
	kinds := make([]string, 0, len(seen))
	for k := range seen {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// Frames returns the submitted frames in submission order.
func (d *Device) Frames() []*Recorder {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*Recorder, len(d.submitted))
	copy(out, d.submitted)
	return out
}

func (d *Device) Aborted() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.aborted
}
