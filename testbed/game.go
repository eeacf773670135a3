package testbed

import (
	"github.com/spaghettifunk/framegraph/engine"
	"github.com/spaghettifunk/framegraph/engine/core"
	"github.com/spaghettifunk/framegraph/engine/math"
	"github.com/spaghettifunk/framegraph/engine/renderer/components"
	"github.com/spaghettifunk/framegraph/engine/renderer/graph"
	"github.com/spaghettifunk/framegraph/engine/renderer/views"
)

// TestGame orbits the camera around a few procedural cubes rendered by the
// forward views.
type TestGame struct {
	*engine.Game
}

type gameState struct {
	WorldCamera *components.Camera
	Targets     *views.Targets

	width  uint32
	height uint32
	cubes  []views.Draw
}

const cubeVertices = 36

var tempOrbitSpeed float32 = 0.5

func NewTestGame(config *engine.ApplicationConfig) *TestGame {
	tg := &TestGame{
		Game: &engine.Game{
			ApplicationConfig: config,
			State: &gameState{
				cubes: []views.Draw{
					{VertexCount: cubeVertices, InstanceCount: 1},
					{VertexCount: cubeVertices, InstanceCount: 4},
					{VertexCount: cubeVertices, InstanceCount: 16},
				},
			},
		},
	}
	tg.FnBuild = tg.Build
	tg.FnUpdate = tg.Update
	tg.FnRender = tg.Render
	tg.FnOnResize = tg.OnResize
	tg.FnShutdown = tg.Shutdown
	return tg
}

// Attach hands the engine camera to the game. It has to be called before
// the engine runs.
func (g *TestGame) Attach(e *engine.Engine) {
	state := g.State.(*gameState)
	state.WorldCamera = e.Camera()
	state.WorldCamera.SetPosition(math.NewVec3(10.5, 5.0, 9.5))
}

func (g *TestGame) Build(b *graph.Builder[views.Frame], shaders *views.Shaders) error {
	core.LogDebug("TestGame building forward views")
	targets, err := views.Forward(b, shaders)
	if err != nil {
		return err
	}
	g.State.(*gameState).Targets = targets
	return nil
}

func (g *TestGame) Update(deltaTime float64) error {
	state := g.State.(*gameState)
	if state.WorldCamera == nil {
		return nil
	}
	state.WorldCamera.Yaw(tempOrbitSpeed * float32(deltaTime))
	return nil
}

func (g *TestGame) Render(frame *views.Frame, _ float64) error {
	state := g.State.(*gameState)
	frame.Draws = append(frame.Draws, state.cubes...)
	frame.Light.Intensity = 2.5
	return nil
}

func (g *TestGame) OnResize(width uint32, height uint32) error {
	state := g.State.(*gameState)
	state.width = width
	state.height = height
	return nil
}

func (g *TestGame) Shutdown() error {
	state := g.State.(*gameState)
	core.LogInfo("testbed done at %dx%d", state.width, state.height)
	return nil
}
