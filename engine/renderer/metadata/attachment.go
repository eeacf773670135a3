package metadata

import "fmt"

type LoadOp uint32

const (
	LoadOpLoad     LoadOp = 0
	LoadOpClear    LoadOp = 1
	LoadOpDontCare LoadOp = 2
)

func (op LoadOp) String() string {
	switch op {
	case LoadOpLoad:
		return "load"
	case LoadOpClear:
		return "clear"
	case LoadOpDontCare:
		return "dont_care"
	}
	return fmt.Sprintf("LoadOp(%d)", uint32(op))
}

func ParseLoadOp(name string) (LoadOp, error) {
	for op := LoadOpLoad; op <= LoadOpDontCare; op++ {
		if op.String() == name {
			return op, nil
		}
	}
	return LoadOpLoad, fmt.Errorf("unknown load op %q", name)
}

type StoreOp uint32

const (
	StoreOpStore    StoreOp = 0
	StoreOpDontCare StoreOp = 1
)

func (op StoreOp) String() string {
	switch op {
	case StoreOpStore:
		return "store"
	case StoreOpDontCare:
		return "dont_care"
	}
	return fmt.Sprintf("StoreOp(%d)", uint32(op))
}

func ParseStoreOp(name string) (StoreOp, error) {
	for op := StoreOpStore; op <= StoreOpDontCare; op++ {
		if op.String() == name {
			return op, nil
		}
	}
	return StoreOpStore, fmt.Errorf("unknown store op %q", name)
}

type attachmentKindTag uint8

const (
	attachmentColor attachmentKindTag = iota
	attachmentDepthStencil
	attachmentDepthOnly
)

/** @brief Role of an attachment: a color slot or the depth/stencil target. */
type AttachmentKind struct {
	tag  attachmentKindTag
	slot uint32
}

func ColorAttachment(slot uint32) AttachmentKind {
	return AttachmentKind{tag: attachmentColor, slot: slot}
}

func DepthStencilAttachment() AttachmentKind {
	return AttachmentKind{tag: attachmentDepthStencil}
}

func DepthOnlyAttachment() AttachmentKind {
	return AttachmentKind{tag: attachmentDepthOnly}
}

func (k AttachmentKind) IsColor() bool {
	return k.tag == attachmentColor
}

// IsDepth is true for both depth only and depth/stencil attachments.
func (k AttachmentKind) IsDepth() bool {
	return k.tag == attachmentDepthStencil || k.tag == attachmentDepthOnly
}

func (k AttachmentKind) HasStencil() bool {
	return k.tag == attachmentDepthStencil
}

// Slot is the color slot; zero for depth attachments.
func (k AttachmentKind) Slot() uint32 {
	return k.slot
}

func (k AttachmentKind) String() string {
	switch k.tag {
	case attachmentColor:
		return fmt.Sprintf("color(%d)", k.slot)
	case attachmentDepthStencil:
		return "depth_stencil"
	default:
		return "depth_only"
	}
}

/**
 * @brief How a pass draws into an image: its role, the access used while
 * drawing and load/store behaviour for color/depth and stencil separately.
 */
type AttachmentConfig struct {
	Kind           AttachmentKind
	Access         AccessType
	LoadOp         LoadOp
	StoreOp        StoreOp
	StencilLoadOp  LoadOp
	StencilStoreOp StoreOp
}

func ColorDefault(slot uint32) AttachmentConfig {
	return AttachmentConfig{
		Kind:           ColorAttachment(slot),
		Access:         AccessTypeColorAttachmentWrite,
		LoadOp:         LoadOpClear,
		StoreOp:        StoreOpStore,
		StencilLoadOp:  LoadOpDontCare,
		StencilStoreOp: StoreOpDontCare,
	}
}

func DepthOnlyDefault() AttachmentConfig {
	return AttachmentConfig{
		Kind:           DepthOnlyAttachment(),
		Access:         AccessTypeDepthStencilAttachmentWrite,
		LoadOp:         LoadOpClear,
		StoreOp:        StoreOpStore,
		StencilLoadOp:  LoadOpDontCare,
		StencilStoreOp: StoreOpDontCare,
	}
}

func DepthStencilDefault() AttachmentConfig {
	return AttachmentConfig{
		Kind:           DepthStencilAttachment(),
		Access:         AccessTypeDepthStencilAttachmentWrite,
		LoadOp:         LoadOpClear,
		StoreOp:        StoreOpStore,
		StencilLoadOp:  LoadOpClear,
		StencilStoreOp: StoreOpStore,
	}
}

// Validate checks the access type is one an attachment can be drawn with.
func (c AttachmentConfig) Validate(format Format) error {
	info := AccessInfoOf(c.Access)
	if c.Kind.IsColor() {
		if format.IsDepth() {
			return fmt.Errorf("color attachment with depth format %s", format)
		}
		if info.Layout != ImageLayoutColorAttachmentOptimal && info.Layout != ImageLayoutGeneral {
			return fmt.Errorf("access %s is not a color attachment access", c.Access)
		}
		return nil
	}
	if !format.IsDepth() {
		return fmt.Errorf("%s attachment with color format %s", c.Kind, format)
	}
	if c.Kind.HasStencil() && !format.HasStencil() {
		return fmt.Errorf("depth/stencil attachment with format %s that has no stencil", format)
	}
	switch info.Layout {
	case ImageLayoutDepthStencilAttachmentOptimal,
		ImageLayoutDepthStencilReadOnlyOptimal,
		ImageLayoutDepthAttachmentStencilReadOnlyOptimal,
		ImageLayoutDepthReadOnlyStencilAttachmentOptimal,
		ImageLayoutGeneral:
		return nil
	}
	return fmt.Errorf("access %s is not a depth attachment access", c.Access)
}

/** @brief Clear value of an attachment. */
type ClearValue struct {
	Color   [4]float32
	Depth   float32
	Stencil uint32
}

// ClearValueFor returns the clear value used for an attachment kind: black
// for color, far plane and zero stencil for depth.
func ClearValueFor(kind AttachmentKind) ClearValue {
	if kind.IsDepth() {
		return ClearValue{Depth: 1.0, Stencil: 0}
	}
	return ClearValue{Color: [4]float32{0, 0, 0, 0}}
}
