package graphfile

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/framegraph/engine/core"
	"github.com/spaghettifunk/framegraph/engine/renderer"
	"github.com/spaghettifunk/framegraph/engine/renderer/graph"
	"github.com/spaghettifunk/framegraph/engine/renderer/headless"
	"github.com/spaghettifunk/framegraph/engine/renderer/metadata"
)

const deferred = `
name = "deferred"
width = 1280
height = 720

[[images]]
name = "albedo"
format = "rgba8_unorm"

[[images]]
alias = "depth"
format = "d32_sfloat"
usage = "depth"

[[images]]
name = "blurred"
format = "rgba8_unorm"
usage = "storage"
scale = [0.5, 0.5]

[[images]]
name = "swap"
format = "bgra8_unorm"

[[buffers]]
name = "stats"
size = 64
usage = ["storage", "transfer_dst"]

[[passes]]
name = "Geometry"
shader = "geometry"
vertices = 6
  [[passes.outputs]]
  name = "albedo"
  image = "albedo"
  attachment = "color0"
  [[passes.outputs]]
  name = "depth"
  image = "depth"
  attachment = "depth"

[[passes]]
name = "Blur"
kind = "compute"
shader = "blur"
group_size = [8, 8]
render_area = [0.5, 0.5]
  [[passes.inputs]]
  name = "albedo"
  image = "albedo"
  binding = 0
  [[passes.outputs]]
  name = "blurred"
  image = "blurred"
  [[passes.outputs]]
  name = "stats"
  buffer = "stats"

[[passes]]
name = "Present"
present = true
shader = "present"
  [[passes.inputs]]
  name = "blurred"
  image = "blurred"
  binding = 0
  [[passes.inputs]]
  name = "stats"
  buffer = "stats"
  [[passes.outputs]]
  name = "swap"
  image = "swap"
  attachment = "color0"
  load = "dont_care"
`

func program(name string, compute bool) *metadata.ShaderProgram {
	if compute {
		return &metadata.ShaderProgram{
			Name:   name,
			Stages: []metadata.ShaderStageModule{{Stage: metadata.ShaderStageCompute, EntryPoint: "main", Code: []byte(name)}},
		}
	}
	return &metadata.ShaderProgram{
		Name: name,
		Stages: []metadata.ShaderStageModule{
			{Stage: metadata.ShaderStageVertex, EntryPoint: "main", Code: []byte(name + ".vert")},
			{Stage: metadata.ShaderStageFragment, EntryPoint: "main", Code: []byte(name + ".frag")},
		},
	}
}

func shaders(name string) *metadata.ShaderProgram {
	switch name {
	case "geometry", "present":
		return program(name, false)
	case "blur":
		return program(name, true)
	}
	return nil
}

func TestParseNamesAliasedImages(t *testing.T) {
	f, err := Parse([]byte(deferred))
	require.NoError(t, err)

	assert.Equal(t, "deferred", f.Name)
	require.Len(t, f.Images, 4)
	assert.True(t, strings.HasPrefix(f.Images[1].Name, "depth-"), f.Images[1].Name)
	assert.Equal(t, "depth", f.Images[1].Alias)
	require.Len(t, f.Passes, 3)
	require.NotNil(t, f.Passes[1].Inputs[0].Binding)
	assert.Equal(t, []uint32{8, 8}, f.Passes[1].GroupSize)

	data, err := f.Encode()
	require.NoError(t, err)
	again, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, f.Images[1].Name, again.Images[1].Name)
}

func TestParseRejectsBadFiles(t *testing.T) {
	for name, text := range map[string]string{
		"unknown key":    "name = \"x\"\ncolour = 1\n",
		"nameless image": "[[images]]\nformat = \"rgba8_unorm\"\n",
		"not toml":       "[[passes]\nname = ",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(text))
			assert.ErrorIs(t, err, core.ErrInvalidConfig)
		})
	}
}

func TestApplyBuildsAndRecords(t *testing.T) {
	f, err := Parse([]byte(deferred))
	require.NoError(t, err)

	dev := headless.NewDevice()
	b := graph.NewBuilder[struct{}](dev, graph.DefaultConfig(), f.Width, f.Height)
	targets, err := Apply(f, b, Options[struct{}]{Shaders: shaders})
	require.NoError(t, err)
	assert.Equal(t, targets.Images["depth"], targets.Images[f.Images[1].Name])

	g, err := b.Build()
	require.NoError(t, err)
	t.Cleanup(func() { _ = g.Destroy() })

	plan := g.Plan()
	assert.Equal(t, []string{"Geometry", "Blur", "Present"}, plan.PassNames())
	require.Len(t, plan.Steps[2].BufferBarriers, 1)
	assert.Equal(t, "stats", plan.Steps[2].BufferBarriers[0].Name)
	var names []string
	for _, b := range plan.Steps[2].ImageBarriers {
		names = append(names, b.Name)
	}
	assert.Contains(t, names, "blurred")
	assert.NotNil(t, plan.Steps[2].Present)

	require.NoError(t, g.ExecuteSync(context.Background(), struct{}{}))
	rec := dev.Frames()[0]
	draws := rec.Find(headless.OpDraw)
	require.Len(t, draws, 2)
	assert.Equal(t, uint32(6), draws[0].Counts[0])
	assert.Equal(t, uint32(3), draws[1].Counts[0])
	dispatch := rec.Find(headless.OpDispatch)
	require.Len(t, dispatch, 1)
	// half of 1280x720 in 8x8 groups
	assert.Equal(t, [4]uint32{80, 45, 1, 0}, dispatch[0].Counts)
}

func TestApplyUsesCustomRecorders(t *testing.T) {
	f, err := Parse([]byte(deferred))
	require.NoError(t, err)

	calls := 0
	dev := headless.NewDevice()
	b := graph.NewBuilder[int](dev, graph.DefaultConfig(), 640, 480)
	_, err = Apply(f, b, Options[int]{
		Shaders: shaders,
		Recorders: map[string]graph.Recorder[int]{
			"Blur": graph.RecordFunc[int](func(cmd renderer.CommandRecorder, ctx *graph.RecordContext, n int) error {
				calls += n
				return nil
			}),
		},
	})
	require.NoError(t, err)
	g, err := b.Build()
	require.NoError(t, err)
	t.Cleanup(func() { _ = g.Destroy() })

	require.NoError(t, g.ExecuteSync(context.Background(), 2))
	assert.Equal(t, 2, calls)
	assert.Empty(t, dev.Frames()[0].Find(headless.OpDispatch))
}

func TestApplyErrors(t *testing.T) {
	for _, tt := range []struct {
		name   string
		edit   func(f *File)
		target error
	}{
		{
			name:   "unknown image",
			edit:   func(f *File) { f.Passes[1].Inputs[0].Image = "missing" },
			target: core.ErrUnknownHandle,
		},
		{
			name:   "unknown shader",
			edit:   func(f *File) { f.Passes[0].Shader = "missing" },
			target: core.ErrAssetNotFound,
		},
		{
			name:   "bad attachment",
			edit:   func(f *File) { f.Passes[0].Outputs[0].Attachment = "color9" },
			target: core.ErrInvalidAttachment,
		},
		{
			name:   "bad kind",
			edit:   func(f *File) { f.Passes[1].Kind = "raytracing" },
			target: core.ErrInvalidConfig,
		},
		{
			name:   "bad usage",
			edit:   func(f *File) { f.Images[0].Usage = "texture" },
			target: core.ErrInvalidConfig,
		},
		{
			name:   "name reuses an earlier alias",
			edit:   func(f *File) { f.Images[2].Name = "depth" },
			target: core.ErrDuplicateName,
		},
		{
			name:   "alias reuses an earlier name",
			edit:   func(f *File) { f.Images[3].Alias = "albedo" },
			target: core.ErrDuplicateName,
		},
		{
			name:   "name reused",
			edit:   func(f *File) { f.Images[3].Name = "albedo" },
			target: core.ErrDuplicateName,
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			f, err := Parse([]byte(deferred))
			require.NoError(t, err)
			tt.edit(f)

			b := graph.NewBuilder[struct{}](headless.NewDevice(), graph.DefaultConfig(), 64, 64)
			targets, err := Apply(f, b, Options[struct{}]{Shaders: shaders})
			assert.ErrorIs(t, err, tt.target)
			assert.Nil(t, targets)
		})
	}
}
