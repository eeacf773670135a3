package metadata

import (
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// MaxAttachments is the most attachments a single pass may draw into.
const MaxAttachments = 9

/** @brief Describes a single attachment of a renderpass. */
type AttachmentDesc struct {
	Kind           AttachmentKind
	Format         Format
	Samples        uint32
	LoadOp         LoadOp
	StoreOp        StoreOp
	StencilLoadOp  LoadOp
	StencilStoreOp StoreOp
	/** @brief Layout the image is in when the renderpass begins. */
	InitialLayout ImageLayout
	/** @brief Layout used while drawing, also the layout left at the end. */
	Layout ImageLayout
}

/**
 * @brief Describes a renderpass. Color attachments are ordered by slot,
 * the depth attachment (if any) comes last.
 */
type RenderpassDesc struct {
	Name  string
	Color []AttachmentDesc
	Depth *AttachmentDesc
}

// Attachments returns color attachments followed by the depth attachment.
func (d RenderpassDesc) Attachments() []AttachmentDesc {
	out := make([]AttachmentDesc, 0, len(d.Color)+1)
	out = append(out, d.Color...)
	if d.Depth != nil {
		out = append(out, *d.Depth)
	}
	return out
}

func (d RenderpassDesc) AttachmentCount() int {
	n := len(d.Color)
	if d.Depth != nil {
		n++
	}
	return n
}

// Key identifies the renderpass object. The name is not part of it.
func (d RenderpassDesc) Key() uint64 {
	h := xxhash.New()
	for _, a := range d.Attachments() {
		writeU32(h, uint32(a.Kind.tag))
		writeU32(h, a.Kind.slot)
		writeU32(h, uint32(a.Format))
		writeU32(h, a.Samples)
		writeU32(h, uint32(a.LoadOp))
		writeU32(h, uint32(a.StoreOp))
		writeU32(h, uint32(a.StencilLoadOp))
		writeU32(h, uint32(a.StencilStoreOp))
		writeU32(h, uint32(a.InitialLayout))
		writeU32(h, uint32(a.Layout))
	}
	return h.Sum64()
}

// CompatibilityKey only covers what pipelines depend on: attachment count,
// formats and sample counts.
func (d RenderpassDesc) CompatibilityKey() uint64 {
	h := xxhash.New()
	writeU32(h, uint32(len(d.Color)))
	for _, a := range d.Color {
		writeU32(h, uint32(a.Format))
		writeU32(h, a.Samples)
	}
	if d.Depth != nil {
		writeU32(h, uint32(d.Depth.Format))
		writeU32(h, d.Depth.Samples)
	}
	return h.Sum64()
}

func (d RenderpassDesc) String() string {
	var parts []string
	for _, a := range d.Attachments() {
		parts = append(parts, fmt.Sprintf("%s:%s %s/%s %s->%s",
			a.Kind, a.Format, a.LoadOp, a.StoreOp, a.InitialLayout, a.Layout))
	}
	return strings.Join(parts, ", ")
}

/** @brief A renderpass object created by the device. */
type Renderpass struct {
	ID   uint64
	Key  uint64
	Desc RenderpassDesc
	/** @brief Clear values in attachment order. */
	ClearValues  []ClearValue
	InternalData interface{}
}

/** @brief Cache key of a framebuffer. */
type FramebufferKey struct {
	Renderpass uint64
	Count      int
	Images     [MaxAttachments]uint64
	Width      uint32
	Height     uint32
}

/** @brief What the device needs to create a framebuffer. */
type FramebufferDesc struct {
	Renderpass  *Renderpass
	Attachments []*Image
	Width       uint32
	Height      uint32
}

// Key builds the cache key from the identities of the renderpass and the
// attached images, so replacing either produces a new key.
func (d FramebufferDesc) Key() FramebufferKey {
	k := FramebufferKey{
		Count:  len(d.Attachments),
		Width:  d.Width,
		Height: d.Height,
	}
	if d.Renderpass != nil {
		k.Renderpass = d.Renderpass.ID
	}
	for i, img := range d.Attachments {
		if i >= MaxAttachments {
			break
		}
		k.Images[i] = img.ID
	}
	return k
}

/** @brief A framebuffer object created by the device. */
type Framebuffer struct {
	ID           uint64
	Desc         FramebufferDesc
	InternalData interface{}
}
