package graph

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/spaghettifunk/framegraph/engine/core"
)

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	for name, mutate := range map[string]func(*Config){
		"no frames in flight":  func(c *Config) { c.FramesInFlight = 0 },
		"too many frames":      func(c *Config) { c.FramesInFlight = MaxFramesInFlight + 1 },
		"tiny pipeline cache":  func(c *Config) { c.PipelineCacheCapacity = 1 },
		"no framebuffer cache": func(c *Config) { c.FramebufferCacheCapacity = 0 },
		"no renderpass cache":  func(c *Config) { c.RenderpassCacheCapacity = 0 },
		"negative timeout":     func(c *Config) { c.FrameTimeout = -time.Second },
	} {
		t.Run(name, func(t *testing.T) {
			c := DefaultConfig()
			mutate(&c)
			assert.ErrorIs(t, c.Validate(), core.ErrInvalidConfig)
		})
	}
}
