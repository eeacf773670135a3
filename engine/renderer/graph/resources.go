package graph

import (
	"fmt"
	"sort"

	"github.com/spaghettifunk/framegraph/engine/containers"
	"github.com/spaghettifunk/framegraph/engine/core"
	"github.com/spaghettifunk/framegraph/engine/renderer"
	"github.com/spaghettifunk/framegraph/engine/renderer/metadata"
)

type ImageHandle = containers.Handle[*metadata.Image]

type BufferHandle = containers.Handle[*metadata.Buffer]

type imageInfo struct {
	size metadata.ImageSize
	// imported images are owned by the caller: never resized nor destroyed.
	imported bool
}

// GraphResources owns the images and buffers of a graph and indexes them by
// name. Names are unique.
type GraphResources struct {
	images      *containers.Storage[*metadata.Image, imageInfo]
	imageNames  map[string]ImageHandle
	buffers     *containers.Storage[*metadata.Buffer, bool]
	bufferNames map[string]BufferHandle
	retired     *containers.Graveyard[*metadata.Image]
}

func NewGraphResources() *GraphResources {
	return &GraphResources{
		images:      containers.NewStorage[*metadata.Image, imageInfo](),
		imageNames:  make(map[string]ImageHandle),
		buffers:     containers.NewStorage[*metadata.Buffer, bool](),
		bufferNames: make(map[string]BufferHandle),
		retired:     containers.NewGraveyard[*metadata.Image](),
	}
}

// AddImage registers an image the graph owns. The size policy is used to
// recreate it when the graph is resized.
func (r *GraphResources) AddImage(name string, image *metadata.Image, size metadata.ImageSize) (ImageHandle, error) {
	return r.addImage(name, image, imageInfo{size: size})
}

// ImportImage registers an image owned by the caller.
func (r *GraphResources) ImportImage(name string, image *metadata.Image) (ImageHandle, error) {
	return r.addImage(name, image, imageInfo{size: metadata.Absolute(image.Width, image.Height), imported: true})
}

func (r *GraphResources) addImage(name string, image *metadata.Image, info imageInfo) (ImageHandle, error) {
	if image == nil {
		return ImageHandle{}, fmt.Errorf("%w: image %q is nil", core.ErrInvalidConfig, name)
	}
	if _, exists := r.imageNames[name]; exists {
		return ImageHandle{}, fmt.Errorf("%w: image %q", core.ErrDuplicateName, name)
	}
	h := r.images.Add(image, info)
	r.imageNames[name] = h
	return h, nil
}

// GetImage returns false only for handles of another graph or stale ones.
func (r *GraphResources) GetImage(h ImageHandle) (*metadata.Image, bool) {
	return r.images.Get(h)
}

// GetImageByName is a read-only lookup for tools inspecting the graph.
func (r *GraphResources) GetImageByName(name string) (ImageHandle, bool) {
	h, ok := r.imageNames[name]
	return h, ok
}

func (r *GraphResources) ImageSize(h ImageHandle) (metadata.ImageSize, bool) {
	_, info, ok := r.images.GetWithMetadata(h)
	return info.size, ok
}

// ImageNames returns the image names sorted alphabetically.
func (r *GraphResources) ImageNames() []string {
	names := make([]string, 0, len(r.imageNames))
	for name := range r.imageNames {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *GraphResources) ImageCount() int {
	return r.images.Len()
}

func (r *GraphResources) checkImage(h ImageHandle) error {
	return r.images.Check(h)
}

// physicalSize resolves the size an image has at the given graph size.
func (r *GraphResources) physicalSize(h ImageHandle, width, height uint32) (uint32, uint32) {
	img, info, ok := r.images.GetWithMetadata(h)
	if !ok {
		return 0, 0
	}
	if info.imported {
		return img.Width, img.Height
	}
	return info.size.PhysicalSize(width, height)
}

func (r *GraphResources) AddBuffer(name string, buffer *metadata.Buffer) (BufferHandle, error) {
	return r.addBuffer(name, buffer, false)
}

func (r *GraphResources) ImportBuffer(name string, buffer *metadata.Buffer) (BufferHandle, error) {
	return r.addBuffer(name, buffer, true)
}

func (r *GraphResources) addBuffer(name string, buffer *metadata.Buffer, imported bool) (BufferHandle, error) {
	if buffer == nil {
		return BufferHandle{}, fmt.Errorf("%w: buffer %q is nil", core.ErrInvalidConfig, name)
	}
	if _, exists := r.bufferNames[name]; exists {
		return BufferHandle{}, fmt.Errorf("%w: buffer %q", core.ErrDuplicateName, name)
	}
	h := r.buffers.Add(buffer, imported)
	r.bufferNames[name] = h
	return h, nil
}

func (r *GraphResources) GetBuffer(h BufferHandle) (*metadata.Buffer, bool) {
	return r.buffers.Get(h)
}

func (r *GraphResources) GetBufferByName(name string) (BufferHandle, bool) {
	h, ok := r.bufferNames[name]
	return h, ok
}

func (r *GraphResources) BufferCount() int {
	return r.buffers.Len()
}

func (r *GraphResources) checkBuffer(h BufferHandle) error {
	return r.buffers.Check(h)
}

type replacement struct {
	handle ImageHandle
	image  *metadata.Image
	info   imageInfo
}

// ResizeImages recomputes the physical size of every owned image and
// recreates the ones whose size changed. Handles stay valid; the replaced
// images are retired at frame and destroyed by CollectRetired once that
// frame is complete. If any creation fails the new images are destroyed and
// nothing changes.
func (r *GraphResources) ResizeImages(device renderer.Device, width, height uint32, frame uint64) (int, error) {
	var created []replacement

	var err error
	r.images.Each(func(h ImageHandle, img *metadata.Image, info imageInfo) bool {
		if info.imported {
			return true
		}
		w, hgt := info.size.PhysicalSize(width, height)
		if w == img.Width && hgt == img.Height {
			return true
		}
		var next *metadata.Image
		next, err = device.CreateImage(img.Name, img.Config, w, hgt)
		if err != nil {
			err = fmt.Errorf("failed to resize image %q to %dx%d: %w", img.Name, w, hgt, err)
			return false
		}
		created = append(created, replacement{handle: h, image: next, info: info})
		return true
	})
	if err != nil {
		for _, c := range created {
			device.DestroyImage(c.image)
		}
		return 0, err
	}

	for _, c := range created {
		old, _, err := r.images.Replace(c.handle, c.image, c.info)
		if err != nil {
			// handles were collected from the storage itself
			return 0, err
		}
		r.retired.Bury(old, frame)
	}
	return len(created), nil
}

// CollectRetired destroys the images retired at or before completedFrame.
func (r *GraphResources) CollectRetired(device renderer.Device, completedFrame uint64) int {
	return r.retired.Collect(completedFrame, device.DestroyImage)
}

func (r *GraphResources) RetiredCount() int {
	return r.retired.Len()
}

// Destroy releases every owned image and buffer. The device must be idle.
func (r *GraphResources) Destroy(device renderer.Device) {
	r.retired.CollectAll(device.DestroyImage)
	r.images.Each(func(_ ImageHandle, img *metadata.Image, info imageInfo) bool {
		if !info.imported {
			device.DestroyImage(img)
		}
		return true
	})
	r.buffers.Each(func(_ BufferHandle, buf *metadata.Buffer, imported bool) bool {
		if !imported {
			device.DestroyBuffer(buf)
		}
		return true
	})
	r.images = containers.NewStorage[*metadata.Image, imageInfo]()
	r.imageNames = make(map[string]ImageHandle)
	r.buffers = containers.NewStorage[*metadata.Buffer, bool]()
	r.bufferNames = make(map[string]BufferHandle)
}
