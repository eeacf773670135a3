package metadata

import (
	"fmt"
	"sync/atomic"

	"github.com/spaghettifunk/framegraph/engine/math"
)

var objectIDs atomic.Uint64

// NewObjectID returns a process-wide unique id for a GPU object. Cache keys
// are built from these ids, so a recreated object never aliases an old one.
func NewObjectID() uint64 {
	return objectIDs.Add(1)
}

/** @brief Usage flags of an image. Bit values match the Vulkan flags. */
type ImageUsage uint32

const (
	ImageUsageTransferSrc            ImageUsage = 0x01
	ImageUsageTransferDst            ImageUsage = 0x02
	ImageUsageSampled                ImageUsage = 0x04
	ImageUsageStorage                ImageUsage = 0x08
	ImageUsageColorAttachment        ImageUsage = 0x10
	ImageUsageDepthStencilAttachment ImageUsage = 0x20
	ImageUsageInputAttachment        ImageUsage = 0x80
)

type FilterMode uint32

const (
	FilterNearest FilterMode = 0
	FilterLinear  FilterMode = 1
)

type WrapMode uint32

const (
	WrapRepeat         WrapMode = 0
	WrapMirroredRepeat WrapMode = 1
	WrapClampToEdge    WrapMode = 2
	WrapClampToBorder  WrapMode = 3
)

/**
 * @brief Describes an image the device should create. Everything but the
 * size, which is resolved from an ImageSize policy.
 */
type ImageConfig struct {
	/** @brief The pixel format. */
	Format Format
	/** @brief How the image is going to be used. */
	Usage ImageUsage
	/** @brief Filter used when the image is sampled. */
	Filter FilterMode
	/** @brief Wrap mode used when the image is sampled. */
	Wrap WrapMode
	/** @brief Number of mip levels, 0 is treated as 1. */
	MipLevels uint32
	/** @brief MSAA sample count, 0 is treated as 1. */
	Samples uint32
	/** @brief Host visible images can be mapped by the CPU. */
	HostVisible bool
}

// ColorImageConfig is a sampled color attachment.
func ColorImageConfig(format Format) ImageConfig {
	return ImageConfig{
		Format: format,
		Usage:  ImageUsageColorAttachment | ImageUsageSampled,
		Filter: FilterLinear,
		Wrap:   WrapClampToEdge,
	}
}

// DepthImageConfig is a sampled depth attachment.
func DepthImageConfig(format Format) ImageConfig {
	return ImageConfig{
		Format: format,
		Usage:  ImageUsageDepthStencilAttachment | ImageUsageSampled,
		Filter: FilterNearest,
		Wrap:   WrapClampToEdge,
	}
}

// StorageImageConfig can be written by compute shaders.
func StorageImageConfig(format Format) ImageConfig {
	return ImageConfig{
		Format: format,
		Usage:  ImageUsageStorage | ImageUsageSampled,
		Filter: FilterLinear,
		Wrap:   WrapClampToEdge,
	}
}

func (c ImageConfig) SampleCount() uint32 {
	if c.Samples == 0 {
		return 1
	}
	return c.Samples
}

func (c ImageConfig) MipCount() uint32 {
	if c.MipLevels == 0 {
		return 1
	}
	return c.MipLevels
}

type imageSizeKind uint8

const (
	imageSizeRelative imageSizeKind = iota
	imageSizeAbsolute
)

/**
 * @brief Size policy of a graph image: either a ratio of the graph size or
 * an absolute size in pixels.
 */
type ImageSize struct {
	kind          imageSizeKind
	fw, fh        float32
	width, height uint32
}

// Relative sizes the image as a fraction of the graph size.
func Relative(fw, fh float32) ImageSize {
	return ImageSize{kind: imageSizeRelative, fw: fw, fh: fh}
}

// FullScreen is Relative(1, 1).
func FullScreen() ImageSize {
	return Relative(1, 1)
}

func Absolute(width, height uint32) ImageSize {
	return ImageSize{kind: imageSizeAbsolute, width: width, height: height}
}

func (s ImageSize) IsRelative() bool {
	return s.kind == imageSizeRelative
}

// PhysicalSize resolves the policy against a graph size. It only depends on
// its inputs, so resizing to the same size always gives the same result.
func (s ImageSize) PhysicalSize(graphWidth, graphHeight uint32) (uint32, uint32) {
	if s.kind == imageSizeAbsolute {
		return math.Max(s.width, 1), math.Max(s.height, 1)
	}
	w := uint32(s.fw * float32(graphWidth))
	h := uint32(s.fh * float32(graphHeight))
	return math.Max(w, 1), math.Max(h, 1)
}

func (s ImageSize) Validate() error {
	switch s.kind {
	case imageSizeRelative:
		if !(s.fw > 0) || !(s.fh > 0) {
			return fmt.Errorf("relative size must be positive, got %gx%g", s.fw, s.fh)
		}
	case imageSizeAbsolute:
		if s.width == 0 || s.height == 0 {
			return fmt.Errorf("absolute size must be positive, got %dx%d", s.width, s.height)
		}
	}
	return nil
}

func (s ImageSize) String() string {
	if s.kind == imageSizeAbsolute {
		return fmt.Sprintf("absolute(%dx%d)", s.width, s.height)
	}
	return fmt.Sprintf("relative(%gx%g)", s.fw, s.fh)
}

/**
 * @brief A device image. Replaced, never mutated, when the graph is resized.
 */
type Image struct {
	/** @brief Unique id, never reused. */
	ID uint64
	/** @brief The name of the image in the graph. */
	Name   string
	Config ImageConfig
	Width  uint32
	Height uint32
	/** @brief Backend specific data. */
	InternalData interface{}
}

func NewImage(name string, config ImageConfig, width, height uint32) *Image {
	return &Image{
		ID:     NewObjectID(),
		Name:   name,
		Config: config,
		Width:  width,
		Height: height,
	}
}

func (i *Image) Aspect() ImageAspect {
	return AspectOf(i.Config.Format)
}
