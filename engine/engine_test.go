package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/framegraph/engine/core"
	"github.com/spaghettifunk/framegraph/engine/renderer/graph"
	"github.com/spaghettifunk/framegraph/engine/renderer/headless"
	"github.com/spaghettifunk/framegraph/engine/renderer/views"
)

func forwardGame(frames uint64) *Game {
	return &Game{
		ApplicationConfig: &ApplicationConfig{
			Name:        "test",
			StartWidth:  320,
			StartHeight: 240,
			Graph:       graph.DefaultConfig(),
			MaxFrames:   frames,
		},
		FnBuild: func(b *graph.Builder[views.Frame], shaders *views.Shaders) error {
			_, err := views.Forward(b, shaders)
			return err
		},
		FnRender: func(frame *views.Frame, _ float64) error {
			frame.Draws = append(frame.Draws, views.Draw{VertexCount: 36, InstanceCount: 1})
			return nil
		},
	}
}

func TestEngineRunsFrames(t *testing.T) {
	dev := headless.NewDevice()
	e, err := New(forwardGame(3), dev)
	require.NoError(t, err)

	compiled := 0
	e.Bus().Register(core.EVENT_CODE_GRAPH_COMPILED, t, func(_ core.SystemEventCode, _ interface{}, _ interface{}, data core.EventContext) bool {
		compiled = int(data.Data.U32[0])
		return true
	})

	require.NoError(t, e.Initialize())
	assert.Equal(t, 5, compiled)
	// pipelines are built before the first frame
	assert.Equal(t, 5, dev.Created(headless.KindPipeline))
	require.NoError(t, e.Run(context.Background()))
	assert.Equal(t, 5, dev.Created(headless.KindPipeline))
	assert.Equal(t, uint64(3), e.Frames())
	assert.Len(t, dev.Frames(), 3)
	assert.Equal(t, uint64(3), e.Metrics().TotalFrames)

	require.NoError(t, e.Shutdown())
	assert.Empty(t, dev.Leaks())
}

func TestEngineResizesBetweenFrames(t *testing.T) {
	dev := headless.NewDevice()
	game := forwardGame(4)
	e, err := New(game, dev)
	require.NoError(t, err)

	var resized [][2]uint32
	game.FnOnResize = func(w, h uint32) error {
		resized = append(resized, [2]uint32{w, h})
		return nil
	}
	updates := 0
	game.FnUpdate = func(float64) error {
		updates++
		if updates == 2 {
			ctx := core.EventContext{}
			ctx.Data.U32[0], ctx.Data.U32[1] = 640, 480
			e.Bus().Fire(core.EVENT_CODE_RESIZED, nil, ctx)
		}
		return nil
	}

	require.NoError(t, e.Initialize())
	require.NoError(t, e.Run(context.Background()))
	defer e.Shutdown()

	w, h := e.Graph().Size()
	assert.Equal(t, uint32(640), w)
	assert.Equal(t, uint32(480), h)
	assert.InDelta(t, 640.0/480.0, e.Camera().Aspect, 1e-6)
	assert.Equal(t, [][2]uint32{{320, 240}, {640, 480}}, resized)
}

func TestEngineStopsOnQuit(t *testing.T) {
	dev := headless.NewDevice()
	game := forwardGame(0)
	e, err := New(game, dev)
	require.NoError(t, err)
	game.FnUpdate = func(float64) error {
		if e.Frames() == 1 {
			e.Bus().Fire(core.EVENT_CODE_APPLICATION_QUIT, nil, core.EventContext{})
		}
		return nil
	}

	require.NoError(t, e.Initialize())
	require.NoError(t, e.Run(context.Background()))
	defer e.Shutdown()
	assert.Equal(t, uint64(2), e.Frames())
}

const blitGraph = `
[[images]]
name = "color"
format = "bgra8_unorm"

[[passes]]
name = "Blit"
present = true
shader = "fxaa"
  [[passes.outputs]]
  name = "color"
  image = "color"
  attachment = "color0"
`

func TestEngineLoadsGraphFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blit.toml")
	require.NoError(t, os.WriteFile(path, []byte(blitGraph), 0o644))

	dev := headless.NewDevice()
	game := forwardGame(2)
	game.FnBuild = nil
	game.ApplicationConfig.GraphFile = path
	e, err := New(game, dev)
	require.NoError(t, err)

	require.NoError(t, e.Initialize())
	assert.Equal(t, 1, e.Graph().Pipelines().Len())
	require.NoError(t, e.Run(context.Background()))
	assert.Equal(t, []string{"Blit"}, e.Graph().Plan().PassNames())
	assert.Equal(t, 1, dev.Created(headless.KindPipeline))
	assert.Len(t, dev.Frames()[1].Find(headless.OpDraw), 1)
	require.NoError(t, e.Shutdown())
}

func TestNewRejectsBadGames(t *testing.T) {
	dev := headless.NewDevice()

	_, err := New(&Game{}, dev)
	assert.ErrorIs(t, err, core.ErrInvalidConfig)

	game := forwardGame(1)
	game.FnBuild = nil
	_, err = New(game, dev)
	assert.ErrorIs(t, err, core.ErrInvalidConfig)

	game = forwardGame(1)
	game.ApplicationConfig.StartWidth = 0
	_, err = New(game, dev)
	assert.ErrorIs(t, err, core.ErrInvalidSize)

	game = forwardGame(1)
	game.ApplicationConfig.Graph.FramesInFlight = 0
	_, err = New(game, dev)
	assert.ErrorIs(t, err, core.ErrInvalidConfig)
}
