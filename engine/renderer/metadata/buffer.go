package metadata

/** @brief Usage flags of a buffer. Bit values match the Vulkan flags. */
type BufferUsage uint32

const (
	BufferUsageTransferSrc BufferUsage = 0x001
	BufferUsageTransferDst BufferUsage = 0x002
	BufferUsageUniform     BufferUsage = 0x010
	BufferUsageStorage     BufferUsage = 0x020
	BufferUsageIndex       BufferUsage = 0x040
	BufferUsageVertex      BufferUsage = 0x080
	BufferUsageIndirect    BufferUsage = 0x100
)

type BufferConfig struct {
	Size        uint64
	Usage       BufferUsage
	HostVisible bool
}

/** @brief A device buffer. */
type Buffer struct {
	ID           uint64
	Name         string
	Config       BufferConfig
	InternalData interface{}
}

func NewBuffer(name string, config BufferConfig) *Buffer {
	return &Buffer{
		ID:     NewObjectID(),
		Name:   name,
		Config: config,
	}
}
