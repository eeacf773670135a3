// Package config loads the TOML configuration of the engine and reloads it
// when the file changes.
package config

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/spaghettifunk/framegraph/engine/core"
	"github.com/spaghettifunk/framegraph/engine/renderer/graph"
)

// Duration is a time.Duration written as "5s" or "250ms".
type Duration time.Duration

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

type Graph struct {
	FramesInFlight           int      `toml:"frames_in_flight"`
	PipelineCacheCapacity    int      `toml:"pipeline_cache_capacity"`
	FramebufferCacheCapacity int      `toml:"framebuffer_cache_capacity"`
	RenderpassCacheCapacity  int      `toml:"renderpass_cache_capacity"`
	FrameTimeout             Duration `toml:"frame_timeout"`
}

type Window struct {
	Width  uint32 `toml:"width"`
	Height uint32 `toml:"height"`
	Name   string `toml:"name"`
}

type Log struct {
	Level core.LogLevel `toml:"level"`
}

type Assets struct {
	// ShaderDir holds the .shadercfg files. Empty uses the built-in
	// placeholder programs.
	ShaderDir string `toml:"shader_dir"`
	// GraphFile describes the graph to run. Empty uses the built-in
	// forward views.
	GraphFile string `toml:"graph_file"`
}

type Config struct {
	Graph  Graph  `toml:"graph"`
	Window Window `toml:"window"`
	Log    Log    `toml:"log"`
	Assets Assets `toml:"assets"`
}

func Default() *Config {
	g := graph.DefaultConfig()
	return &Config{
		Graph: Graph{
			FramesInFlight:           g.FramesInFlight,
			PipelineCacheCapacity:    g.PipelineCacheCapacity,
			FramebufferCacheCapacity: g.FramebufferCacheCapacity,
			RenderpassCacheCapacity:  g.RenderpassCacheCapacity,
			FrameTimeout:             Duration(g.FrameTimeout),
		},
		Window: Window{
			Width:  1280,
			Height: 720,
			Name:   "framegraph",
		},
		Log: Log{Level: core.LogLevelInfo},
	}
}

// Load reads path over the defaults. Keys missing from the file keep their
// default value.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

func Parse(data []byte) (*Config, error) {
	c := Default()
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(c); err != nil {
		return nil, fmt.Errorf("%w: %s", core.ErrInvalidConfig, err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) Validate() error {
	if err := c.GraphConfig().Validate(); err != nil {
		return err
	}
	if c.Window.Width == 0 || c.Window.Height == 0 {
		return fmt.Errorf("%w: window %dx%d", core.ErrInvalidSize, c.Window.Width, c.Window.Height)
	}
	switch c.Log.Level {
	case core.LogLevelDebug, core.LogLevelInfo, core.LogLevelWarn, core.LogLevelError:
	default:
		return fmt.Errorf("%w: unknown log level %q", core.ErrInvalidConfig, c.Log.Level)
	}
	return nil
}

func (c *Config) GraphConfig() graph.Config {
	return graph.Config{
		FramesInFlight:           c.Graph.FramesInFlight,
		PipelineCacheCapacity:    c.Graph.PipelineCacheCapacity,
		FramebufferCacheCapacity: c.Graph.FramebufferCacheCapacity,
		RenderpassCacheCapacity:  c.Graph.RenderpassCacheCapacity,
		FrameTimeout:             time.Duration(c.Graph.FrameTimeout),
	}
}

func (c *Config) Encode() ([]byte, error) {
	return toml.Marshal(c)
}
