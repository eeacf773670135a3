package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/spaghettifunk/framegraph/engine/assets"
	"github.com/spaghettifunk/framegraph/engine/config"
	"github.com/spaghettifunk/framegraph/engine/core"
	"github.com/spaghettifunk/framegraph/engine/math"
	"github.com/spaghettifunk/framegraph/engine/renderer"
	"github.com/spaghettifunk/framegraph/engine/renderer/components"
	"github.com/spaghettifunk/framegraph/engine/renderer/graph"
	"github.com/spaghettifunk/framegraph/engine/renderer/graphfile"
	"github.com/spaghettifunk/framegraph/engine/renderer/metadata"
	"github.com/spaghettifunk/framegraph/engine/renderer/views"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
)

const suspendedPoll = 10 * time.Millisecond

// pending collects what the watcher goroutines asked for. The render loop
// applies it between frames since the graph is not safe for concurrent use.
type pending struct {
	mu      sync.Mutex
	quit    bool
	resize  bool
	width   uint32
	height  uint32
	shaders map[string]struct{}
}

type Engine struct {
	currentStage Stage
	gameInstance *Game
	device       renderer.Device
	bus          *core.EventBus

	library *assets.ShaderLibrary
	shaders *views.Shaders
	watcher *config.Watcher
	graph   *graph.Graph[views.Frame]
	camera  *components.Camera

	isRunning   bool
	isSuspended bool
	width       uint32
	height      uint32
	frames      uint64
	clock       *core.Clock
	lastTime    float64
	metrics     *core.FrameMetrics

	pending pending
}

func New(g *Game, device renderer.Device) (*Engine, error) {
	if g == nil || g.ApplicationConfig == nil {
		return nil, fmt.Errorf("%w: game without application config", core.ErrInvalidConfig)
	}
	if device == nil {
		return nil, fmt.Errorf("%w: no device", core.ErrInvalidConfig)
	}
	ac := g.ApplicationConfig
	if ac.StartWidth == 0 || ac.StartHeight == 0 {
		return nil, fmt.Errorf("%w: %dx%d", core.ErrInvalidSize, ac.StartWidth, ac.StartHeight)
	}
	if ac.GraphFile == "" && g.FnBuild == nil {
		return nil, fmt.Errorf("%w: game declares no graph", core.ErrInvalidConfig)
	}
	if err := ac.Graph.Validate(); err != nil {
		return nil, err
	}
	camera := components.NewCamera()
	camera.Resize(ac.StartWidth, ac.StartHeight)
	return &Engine{
		currentStage: EngineStageUninitialized,
		gameInstance: g,
		device:       device,
		bus:          core.NewEventBus(),
		camera:       camera,
		width:        ac.StartWidth,
		height:       ac.StartHeight,
		clock:        core.NewClock(),
		metrics:      core.NewFrameMetrics(),
	}, nil
}

func (e *Engine) Bus() *core.EventBus {
	return e.bus
}

func (e *Engine) Camera() *components.Camera {
	return e.camera
}

func (e *Engine) Graph() *graph.Graph[views.Frame] {
	return e.graph
}

func (e *Engine) Shaders() *views.Shaders {
	return e.shaders
}

func (e *Engine) Metrics() *core.FrameMetrics {
	return e.metrics
}

func (e *Engine) Stage() Stage {
	return e.currentStage
}

// Initialize loads the shaders, builds the graph and starts the watchers.
func (e *Engine) Initialize() error {
	e.currentStage = EngineStageInitializing
	ac := e.gameInstance.ApplicationConfig
	if ac.LogLevel != "" {
		core.SetLogLevel(ac.LogLevel)
	}

	e.bus.Register(core.EVENT_CODE_APPLICATION_QUIT, e, e.onEvent)
	e.bus.Register(core.EVENT_CODE_RESIZED, e, e.onResized)
	e.bus.Register(core.EVENT_CODE_SHADER_CHANGED, e, e.onShaderChanged)
	e.bus.Register(core.EVENT_CODE_CONFIG_RELOADED, e, e.onEvent)

	if err := e.loadShaders(ac.ShaderDir); err != nil {
		return err
	}
	if ac.ConfigPath != "" {
		w, err := config.Watch(ac.ConfigPath, e.bus)
		if err != nil {
			return err
		}
		e.watcher = w
	}

	if e.gameInstance.FnInitialize != nil {
		if err := e.gameInstance.FnInitialize(); err != nil {
			return err
		}
	}
	if err := e.buildGraph(); err != nil {
		return err
	}
	if e.gameInstance.FnOnResize != nil {
		if err := e.gameInstance.FnOnResize(e.width, e.height); err != nil {
			return err
		}
	}
	e.currentStage = EngineStageInitialized
	return nil
}

func (e *Engine) loadShaders(dir string) error {
	if dir == "" {
		e.shaders = views.BuiltinShaders()
		return nil
	}
	lib, err := assets.NewShaderLibrary(e.bus)
	if err != nil {
		return err
	}
	if err := lib.Initialize(dir); err != nil {
		lib.Shutdown()
		return err
	}
	e.library = lib
	shaders, err := views.LoadShaders(lib)
	if err != nil {
		return err
	}
	e.shaders = shaders
	return nil
}

// shader resolves a program for graph files: the views' programs first,
// then anything else in the library.
func (e *Engine) shader(name string) *metadata.ShaderProgram {
	if p := e.shaders.Get(name); p != nil {
		return p
	}
	if e.library == nil {
		return nil
	}
	p, err := e.library.Load(name)
	if err != nil {
		core.LogWarn("failed to load shader %q: %v", name, err)
		return nil
	}
	return p
}

func (e *Engine) buildGraph() error {
	ac := e.gameInstance.ApplicationConfig
	b := graph.NewBuilder[views.Frame](e.device, ac.Graph, e.width, e.height)
	if ac.GraphFile != "" {
		f, err := graphfile.Load(ac.GraphFile)
		if err != nil {
			return err
		}
		if _, err := graphfile.Apply(f, b, graphfile.Options[views.Frame]{Shaders: e.shader}); err != nil {
			return err
		}
	} else if err := e.gameInstance.FnBuild(b, e.shaders); err != nil {
		return err
	}
	g, err := b.Build()
	if err != nil {
		return err
	}
	e.graph = g
	if _, err := g.Prewarm(context.Background()); err != nil {
		return fmt.Errorf("failed to prewarm pipelines: %w", err)
	}

	plan := g.Plan()
	ctx := core.EventContext{}
	ctx.Data.C[0] = g.ID().String()
	ctx.Data.U32[0] = uint32(len(plan.Steps))
	ctx.Data.U32[1] = uint32(plan.BarrierCount())
	e.bus.Fire(core.EVENT_CODE_GRAPH_COMPILED, e, ctx)
	core.LogInfo("graph %s compiled: %d passes, %d barriers", g.ID(), len(plan.Steps), plan.BarrierCount())
	return nil
}

// Run drives frames until quit, ctx is done or MaxFrames is reached.
func (e *Engine) Run(ctx context.Context) error {
	if e.currentStage != EngineStageInitialized {
		return fmt.Errorf("%w: engine not initialized", core.ErrInvalidConfig)
	}
	e.currentStage = EngineStageRunning
	e.isRunning = true
	e.clock.Start()
	e.clock.Update()
	e.lastTime = e.clock.Elapsed()
	maxFrames := e.gameInstance.ApplicationConfig.MaxFrames

	for e.isRunning {
		if err := ctx.Err(); err != nil {
			if errors.Is(err, context.Canceled) {
				break
			}
			return err
		}
		if err := e.applyPending(); err != nil {
			return err
		}
		if !e.isRunning {
			break
		}
		if e.isSuspended {
			time.Sleep(suspendedPoll)
			continue
		}

		e.clock.Update()
		currentTime := e.clock.Elapsed()
		delta := currentTime - e.lastTime

		if e.gameInstance.FnUpdate != nil {
			if err := e.gameInstance.FnUpdate(delta); err != nil {
				core.LogError("game update failed, shutting down: %v", err)
				return err
			}
		}

		frame := views.Frame{
			Camera:   e.camera,
			Light:    views.Light{Direction: math.NewVec3(-0.3, -1, -0.5), Intensity: 1},
			Exposure: 1,
		}
		if e.gameInstance.FnRender != nil {
			if err := e.gameInstance.FnRender(&frame, delta); err != nil {
				core.LogError("game render failed, shutting down: %v", err)
				return err
			}
		}

		if err := e.graph.Execute(ctx, frame); err != nil {
			if errors.Is(err, context.Canceled) {
				break
			}
			core.LogError("frame failed: %v", err)
			if errors.Is(err, core.ErrDeviceLost) {
				return err
			}
		}

		e.clock.Update()
		e.metrics.Update(e.clock.Elapsed() - currentTime)
		e.lastTime = currentTime
		e.frames++
		if maxFrames > 0 && e.frames >= maxFrames {
			e.isRunning = false
		}
	}
	e.isRunning = false
	return e.graph.Finish(context.Background())
}

// Frames counts the frames Run executed.
func (e *Engine) Frames() uint64 {
	return e.frames
}

func (e *Engine) Shutdown() error {
	e.currentStage = EngineStageShuttingDown
	var errs []error
	if e.watcher != nil {
		errs = append(errs, e.watcher.Close())
	}
	if e.library != nil {
		errs = append(errs, e.library.Shutdown())
	}
	if e.graph != nil {
		errs = append(errs, e.graph.Destroy())
	}
	if e.gameInstance.FnShutdown != nil {
		errs = append(errs, e.gameInstance.FnShutdown())
	}
	e.bus.Shutdown()
	e.currentStage = EngineStageUninitialized
	return errors.Join(errs...)
}

// GetFramebufferSize returns the width and height (in this order) of the
// graph.
func (e *Engine) GetFramebufferSize() (uint32, uint32) {
	return e.width, e.height
}

func (e *Engine) applyPending() error {
	e.pending.mu.Lock()
	quit, resize := e.pending.quit, e.pending.resize
	width, height := e.pending.width, e.pending.height
	shaders := e.pending.shaders
	e.pending.quit, e.pending.resize, e.pending.shaders = false, false, nil
	e.pending.mu.Unlock()

	if quit {
		core.LogInfo("EVENT_CODE_APPLICATION_QUIT received, shutting down.")
		e.isRunning = false
		return nil
	}
	reloaded := 0
	for name := range shaders {
		if err := e.shaders.Reload(name); err != nil {
			core.LogWarn("shader %q not reloaded: %v", name, err)
			continue
		}
		reloaded++
		core.LogInfo("shader %q reloaded", name)
	}
	if reloaded > 0 {
		if _, err := e.graph.Prewarm(context.Background()); err != nil {
			core.LogWarn("pipelines of reloaded shaders not prewarmed: %v", err)
		}
	}
	if resize {
		return e.resize(width, height)
	}
	return nil
}

func (e *Engine) resize(width, height uint32) error {
	if width == e.width && height == e.height && !e.isSuspended {
		return nil
	}
	core.LogDebug("resize: %d, %d", width, height)
	// Handle minimization
	if width == 0 || height == 0 {
		core.LogInfo("window minimized, suspending application.")
		e.isSuspended = true
		return nil
	}
	if e.isSuspended {
		core.LogInfo("window restored, resuming application.")
		e.isSuspended = false
	}
	if err := e.graph.Resize(width, height); err != nil {
		return err
	}
	e.width, e.height = width, height
	e.camera.Resize(width, height)
	if e.gameInstance.FnOnResize != nil {
		return e.gameInstance.FnOnResize(width, height)
	}
	return nil
}

func (e *Engine) onEvent(code core.SystemEventCode, _ interface{}, _ interface{}, context core.EventContext) bool {
	switch code {
	case core.EVENT_CODE_APPLICATION_QUIT:
		e.pending.mu.Lock()
		e.pending.quit = true
		e.pending.mu.Unlock()
		return true
	case core.EVENT_CODE_CONFIG_RELOADED:
		core.LogDebug("configuration %s reloaded", context.Data.C[0])
	}
	return false
}

func (e *Engine) onResized(_ core.SystemEventCode, _ interface{}, _ interface{}, context core.EventContext) bool {
	e.pending.mu.Lock()
	e.pending.resize = true
	e.pending.width = context.Data.U32[0]
	e.pending.height = context.Data.U32[1]
	e.pending.mu.Unlock()
	return false
}

func (e *Engine) onShaderChanged(_ core.SystemEventCode, _ interface{}, _ interface{}, context core.EventContext) bool {
	e.pending.mu.Lock()
	if e.pending.shaders == nil {
		e.pending.shaders = make(map[string]struct{})
	}
	e.pending.shaders[context.Data.C[0]] = struct{}{}
	e.pending.mu.Unlock()
	return false
}
