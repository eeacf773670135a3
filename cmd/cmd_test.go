package cmd

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	color.NoColor = true
	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestPlanBuiltinViews(t *testing.T) {
	out, err := execute(t, "plan", "--width", "320", "--height", "240")
	require.NoError(t, err)
	assert.Contains(t, out, "plan 320x240, 5 passes, 5 barriers")
	assert.Contains(t, out, "LuminanceHistogram (compute)")
	assert.Contains(t, out, "renderpasses: 4")

	out, err = execute(t, "plan", "--views", "depth-fxaa")
	require.NoError(t, err)
	assert.Contains(t, out, "plan 1280x720, 2 passes, 1 barriers")

	_, err = execute(t, "plan", "--views", "deferred")
	assert.Error(t, err)
}

const blurGraph = `
name = "blur"
width = 256
height = 256

[[images]]
name = "scene"
format = "rgba8_unorm"

[[images]]
name = "blurred"
format = "rgba8_unorm"
usage = "storage"

[[passes]]
name = "Scene"
shader = "scene"
  [[passes.outputs]]
  name = "scene"
  image = "scene"
  attachment = "color0"

[[passes]]
name = "Blur"
kind = "compute"
shader = "blur"
  [[passes.inputs]]
  name = "scene"
  image = "scene"
  binding = 0
  [[passes.outputs]]
  name = "blurred"
  image = "blurred"
`

func TestPlanGraphFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "blur.toml")
	require.NoError(t, os.WriteFile(path, []byte(blurGraph), 0o644))

	out, err := execute(t, "plan", path)
	require.NoError(t, err)
	assert.Contains(t, out, "blur (")
	assert.Contains(t, out, "plan 256x256, 2 passes")
	assert.Contains(t, out, `barrier image "scene"`)

	_, err = execute(t, "plan", filepath.Join(dir, "missing.toml"))
	assert.Error(t, err)
}

func TestRunHeadless(t *testing.T) {
	out, err := execute(t, "run", "--frames", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "frames:      3")
	assert.Contains(t, out, "5 passes, 5 barriers")

	_, err = execute(t, "run", "--backend", "metal")
	assert.Error(t, err)
}

func TestRunWithConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "framegraph.toml")
	require.NoError(t, os.WriteFile(path, []byte("[graph]\nframes_in_flight = 3\n\n[window]\nwidth = 64\nheight = 64\n"), 0o644))

	out, err := execute(t, "--config", path, "run", "-n", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "frames:      5")

	require.NoError(t, os.WriteFile(path, []byte("[graph]\nframes_in_flight = 7\n"), 0o644))
	_, err = execute(t, "--config", path, "run", "-n", "1")
	assert.Error(t, err)
}
