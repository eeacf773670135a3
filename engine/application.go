package engine

import (
	"github.com/spaghettifunk/framegraph/engine/config"
	"github.com/spaghettifunk/framegraph/engine/core"
	"github.com/spaghettifunk/framegraph/engine/renderer/graph"
)

type ApplicationConfig struct {
	// The application name used in logs and by the backend.
	Name string
	// Starting size of the graph.
	StartWidth  uint32
	StartHeight uint32
	LogLevel    core.LogLevel
	Graph       graph.Config
	// Directory of .shadercfg files, empty for the built-in programs.
	ShaderDir string
	// TOML graph description, empty for the game's own graph.
	GraphFile string
	// Configuration file watched for changes, if any.
	ConfigPath string
	// MaxFrames stops the loop after that many frames, zero runs until
	// quit.
	MaxFrames uint64
}

// ApplicationConfigFrom maps a loaded configuration file.
func ApplicationConfigFrom(c *config.Config, path string) *ApplicationConfig {
	return &ApplicationConfig{
		Name:        c.Window.Name,
		StartWidth:  c.Window.Width,
		StartHeight: c.Window.Height,
		LogLevel:    c.Log.Level,
		Graph:       c.GraphConfig(),
		ShaderDir:   c.Assets.ShaderDir,
		GraphFile:   c.Assets.GraphFile,
		ConfigPath:  path,
	}
}
