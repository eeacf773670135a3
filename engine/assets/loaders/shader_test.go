package loaders

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/framegraph/engine/core"
	"github.com/spaghettifunk/framegraph/engine/renderer/metadata"
)

func TestParseShaderConfig(t *testing.T) {
	cfg, err := ParseShaderConfig([]byte("name = \"histogram\"\n[[stages]]\nstage = \"compute\"\n[[bindings]]\nbinding = 1\nkind = \"storage_buffer\"\n"))
	require.NoError(t, err)
	assert.Equal(t, "histogram", cfg.Name)
	require.Len(t, cfg.Stages, 1)
	assert.Equal(t, "compute", cfg.Stages[0].Stage)

	_, err = ParseShaderConfig([]byte("name = \"x\"\n"))
	assert.ErrorIs(t, err, core.ErrInvalidConfig)
	_, err = ParseShaderConfig([]byte("[[stages]]\nstage = \"compute\"\n"))
	assert.ErrorIs(t, err, core.ErrInvalidConfig)
	_, err = ParseShaderConfig([]byte("name = \"x\"\ncolour = 1\n"))
	assert.ErrorIs(t, err, core.ErrInvalidConfig)
}

func TestShaderFileNames(t *testing.T) {
	assert.Equal(t, "depth.vert.spv", StageFileName("depth", metadata.ShaderStageVertex))
	assert.Equal(t, "histogram.comp.spv", StageFileName("histogram", metadata.ShaderStageCompute))
	assert.Equal(t, "depth", ProgramOf("/shaders/depth.vert.spv"))
	assert.Equal(t, "depth", ProgramOf("depth.shadercfg"))
}
