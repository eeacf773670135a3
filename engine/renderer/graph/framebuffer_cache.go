package graph

import (
	"github.com/spaghettifunk/framegraph/engine/containers"
	"github.com/spaghettifunk/framegraph/engine/renderer"
	"github.com/spaghettifunk/framegraph/engine/renderer/metadata"
)

// FramebufferCache creates framebuffers on demand, keyed by the renderpass,
// the attachment images and the size.
type FramebufferCache struct {
	device renderer.Device
	cache  *containers.CacheMap[metadata.FramebufferKey, *metadata.Framebuffer]
}

func NewFramebufferCache(device renderer.Device, capacity int) (*FramebufferCache, error) {
	cache, err := containers.NewCacheMap[metadata.FramebufferKey, *metadata.Framebuffer](capacity)
	if err != nil {
		return nil, err
	}
	return &FramebufferCache{device: device, cache: cache}, nil
}

func (c *FramebufferCache) Get(desc metadata.FramebufferDesc) (*metadata.Framebuffer, error) {
	return c.cache.Get(desc.Key(), func(metadata.FramebufferKey) (*metadata.Framebuffer, error) {
		desc.Attachments = append([]*metadata.Image(nil), desc.Attachments...)
		return c.device.CreateFramebuffer(desc)
	})
}

func (c *FramebufferCache) Len() int {
	return c.cache.Len()
}

func (c *FramebufferCache) UnusedLen() int {
	return len(c.cache.Unused())
}

func (c *FramebufferCache) SetFrame(frame uint64) {
	c.cache.SetFrame(frame)
}

// RetireAll drops every framebuffer, e.g. after the attachments were
// recreated. They are destroyed once frame completes.
func (c *FramebufferCache) RetireAll(frame uint64) {
	c.cache.SetFrame(frame)
	c.cache.RetireAll()
}

func (c *FramebufferCache) Collect(completedFrame uint64) int {
	return c.cache.Collect(completedFrame, c.device.DestroyFramebuffer)
}

// GarbageCollect destroys every retired framebuffer.
func (c *FramebufferCache) GarbageCollect() int {
	return c.cache.GarbageCollect(c.device.DestroyFramebuffer)
}

func (c *FramebufferCache) Destroy() {
	c.cache.Destroy(c.device.DestroyFramebuffer)
}
