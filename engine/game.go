package engine

import (
	"github.com/spaghettifunk/framegraph/engine/renderer/graph"
	"github.com/spaghettifunk/framegraph/engine/renderer/views"
)

// Game plugs user code into the engine. Only FnBuild is required when no
// graph file is configured.
type Game struct {
	ApplicationConfig *ApplicationConfig
	State             interface{}
	FnInitialize      Initialize
	FnBuild           Build
	FnUpdate          Update
	FnRender          Render
	FnOnResize        OnResize
	FnShutdown        Shutdown
}

type Initialize func() error
type Build func(b *graph.Builder[views.Frame], shaders *views.Shaders) error
type Update func(deltaTime float64) error
type Render func(frame *views.Frame, deltaTime float64) error
type OnResize func(width uint32, height uint32) error
type Shutdown func() error
