package graph

import (
	"fmt"
	"time"

	"github.com/spaghettifunk/framegraph/engine/core"
)

// MaxFramesInFlight bounds Config.FramesInFlight.
const MaxFramesInFlight = 4

// Config holds the knobs of a graph. FramesInFlight drives both the per
// frame ring of the executor and the delay before retired GPU objects are
// destroyed, so the two can never disagree.
type Config struct {
	FramesInFlight           int
	PipelineCacheCapacity    int
	FramebufferCacheCapacity int
	RenderpassCacheCapacity  int
	// FrameTimeout bounds the wait on a frame fence. Zero waits forever.
	FrameTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		FramesInFlight:           2,
		PipelineCacheCapacity:    100,
		FramebufferCacheCapacity: 32,
		RenderpassCacheCapacity:  32,
		FrameTimeout:             5 * time.Second,
	}
}

func (c Config) Validate() error {
	if c.FramesInFlight < 1 || c.FramesInFlight > MaxFramesInFlight {
		return fmt.Errorf("%w: frames in flight must be between 1 and %d, got %d",
			core.ErrInvalidConfig, MaxFramesInFlight, c.FramesInFlight)
	}
	if c.PipelineCacheCapacity < 2 {
		return fmt.Errorf("%w: pipeline cache capacity must be at least 2, got %d",
			core.ErrInvalidConfig, c.PipelineCacheCapacity)
	}
	if c.FramebufferCacheCapacity < 1 {
		return fmt.Errorf("%w: framebuffer cache capacity must be positive, got %d",
			core.ErrInvalidConfig, c.FramebufferCacheCapacity)
	}
	if c.RenderpassCacheCapacity < 1 {
		return fmt.Errorf("%w: renderpass cache capacity must be positive, got %d",
			core.ErrInvalidConfig, c.RenderpassCacheCapacity)
	}
	if c.FrameTimeout < 0 {
		return fmt.Errorf("%w: negative frame timeout %s", core.ErrInvalidConfig, c.FrameTimeout)
	}
	return nil
}
