package vm

import (
	"unsafe"

	"github.com/eddy-ml/eddy/internal/device"
	"github.com/google/uuid"
)

// Buffer is the handle to one backing memory allocation. Host-memory devices
// populate Host; accelerator devices populate DeviceHandle with an opaque
// pointer owned by the allocator that produced the buffer.
type Buffer struct {
	ID       uuid.UUID
	Device   *device.Device
	ByteSize int

	Host         []byte
	DeviceHandle unsafe.Pointer
}

// NewHostBuffer wraps host memory as a buffer on the given device.
func NewHostBuffer(dev *device.Device, data []byte) *Buffer {
	return &Buffer{
		ID:       uuid.New(),
		Device:   dev,
		ByteSize: len(data),
		Host:     data,
	}
}

// NewDeviceBuffer wraps an opaque device allocation as a buffer.
func NewDeviceBuffer(dev *device.Device, byteSize int, handle unsafe.Pointer) *Buffer {
	return &Buffer{
		ID:           uuid.New(),
		Device:       dev,
		ByteSize:     byteSize,
		DeviceHandle: handle,
	}
}

// OnHost reports whether the buffer's bytes live in host memory.
func (b *Buffer) OnHost() bool {
	return b.Host != nil
}

// Allocator produces and reclaims buffers for a class of devices. The VM
// invokes it while executing OpAllocBuffer and OpReleaseBuffer.
type Allocator interface {
	Allocate(dev *device.Device, byteSize int) (*Buffer, error)
	Release(buf *Buffer) error
}

// AllocatorResolver picks the allocator for a device. The VM consults it per
// instruction, so mixed-device programs work on one VM.
type AllocatorResolver func(dev *device.Device) (Allocator, error)

// KernelExecutor is the kernel-execution capability supplied by the operator
// layer. The VM itself knows nothing about kernel algorithms.
type KernelExecutor interface {
	ExecuteKernel(name string, operands []*Buffer) error
}
