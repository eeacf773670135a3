package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/framegraph/engine/core"
	"github.com/spaghettifunk/framegraph/engine/renderer/graph"
)

func TestParseKeepsDefaults(t *testing.T) {
	c, err := Parse([]byte(`
[graph]
frames_in_flight = 3
frame_timeout = "250ms"

[window]
width = 640
`))
	require.NoError(t, err)
	assert.Equal(t, 3, c.Graph.FramesInFlight)
	assert.Equal(t, uint32(640), c.Window.Width)
	assert.Equal(t, uint32(720), c.Window.Height)

	gc := c.GraphConfig()
	assert.Equal(t, 250*time.Millisecond, gc.FrameTimeout)
	assert.Equal(t, graph.DefaultConfig().PipelineCacheCapacity, gc.PipelineCacheCapacity)
	assert.NoError(t, gc.Validate())
}

func TestParseRejectsInvalid(t *testing.T) {
	for _, tt := range []struct {
		name   string
		text   string
		target error
	}{
		{"unknown key", "[graph]\nframes = 2\n", core.ErrInvalidConfig},
		{"too many frames", "[graph]\nframes_in_flight = 9\n", core.ErrInvalidConfig},
		{"small pipeline cache", "[graph]\npipeline_cache_capacity = 1\n", core.ErrInvalidConfig},
		{"bad duration", "[graph]\nframe_timeout = \"soon\"\n", core.ErrInvalidConfig},
		{"empty window", "[window]\nheight = 0\n", core.ErrInvalidSize},
		{"log level", "[log]\nlevel = \"loud\"\n", core.ErrInvalidConfig},
	} {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.text))
			assert.ErrorIs(t, err, tt.target)
		})
	}
}

func TestEncodeParses(t *testing.T) {
	c := Default()
	c.Assets.ShaderDir = "assets/shaders"
	data, err := c.Encode()
	require.NoError(t, err)

	again, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, c, again)
}

func TestWatcherReloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "framegraph.toml")
	require.NoError(t, os.WriteFile(path, []byte("[window]\nwidth = 800\nheight = 600\n"), 0o644))

	bus := core.NewEventBus()
	reloaded := make(chan string, 8)
	resized := make(chan [2]uint32, 8)
	bus.Register(core.EVENT_CODE_CONFIG_RELOADED, t, func(_ core.SystemEventCode, _ interface{}, _ interface{}, data core.EventContext) bool {
		select {
		case reloaded <- data.Data.C[0]:
		default:
		}
		return true
	})
	bus.Register(core.EVENT_CODE_RESIZED, t, func(_ core.SystemEventCode, _ interface{}, _ interface{}, data core.EventContext) bool {
		select {
		case resized <- [2]uint32{data.Data.U32[0], data.Data.U32[1]}:
		default:
		}
		return true
	})

	w, err := Watch(path, bus)
	require.NoError(t, err)
	defer w.Close()
	assert.Equal(t, uint32(800), w.Current().Window.Width)

	// an invalid file keeps the current configuration
	require.NoError(t, os.WriteFile(path, []byte("[graph]\nframes_in_flight = 0\n"), 0o644))
	require.NoError(t, os.WriteFile(path, []byte("[window]\nwidth = 1024\nheight = 600\n"), 0o644))

	// a save can be seen half written, wait for the final size
	timeout := time.After(5 * time.Second)
	for done := false; !done; {
		select {
		case got := <-resized:
			done = got == [2]uint32{1024, 600}
		case <-timeout:
			t.Fatal("no resize event")
		}
	}
	assert.NotEmpty(t, reloaded)
	assert.Equal(t, uint32(1024), w.Current().Window.Width)
}
