// Package alloc provides the device buffer allocators consumed by the
// instruction VM: host memory for CPU devices and WebGPU buffers for GPU
// devices.
package alloc

import (
	"github.com/eddy-ml/eddy/internal/device"
	"github.com/eddy-ml/eddy/internal/parallel"
	"github.com/eddy-ml/eddy/internal/vm"
	"github.com/pkg/errors"
)

// CPU allocates plain host byte slices.
type CPU struct {
	cfg parallel.Config
}

// NewCPU returns a host-memory allocator.
func NewCPU() *CPU {
	return &CPU{cfg: parallel.DefaultConfig()}
}

// Allocate returns a zeroed host buffer of the given size.
func (a *CPU) Allocate(dev *device.Device, byteSize int) (*vm.Buffer, error) {
	if dev.Type() != device.CPU {
		return nil, errors.Errorf("cpu allocator cannot serve device %s", dev)
	}
	if byteSize < 0 {
		return nil, errors.Errorf("negative buffer size %d", byteSize)
	}
	return vm.NewHostBuffer(dev, make([]byte, byteSize)), nil
}

// Release drops the buffer's host memory.
func (a *CPU) Release(buf *vm.Buffer) error {
	if !buf.OnHost() {
		return errors.Errorf("cpu allocator asked to release non-host buffer %s", buf.ID)
	}
	buf.Host = nil
	return nil
}

// Fill writes a repeating element pattern across the buffer, fanning large
// fills out across goroutines.
func (a *CPU) Fill(buf *vm.Buffer, pattern []byte) error {
	if !buf.OnHost() {
		return errors.Errorf("cannot fill non-host buffer %s", buf.ID)
	}
	n := len(pattern)
	if n == 0 || len(buf.Host)%n != 0 {
		return errors.Errorf("pattern of %d bytes does not tile buffer of %d bytes", n, len(buf.Host))
	}
	elems := len(buf.Host) / n
	return parallel.Chunks(elems, a.cfg, func(start, end int) error {
		for i := start; i < end; i++ {
			copy(buf.Host[i*n:(i+1)*n], pattern)
		}
		return nil
	})
}

// Resolver maps devices to allocators. GPU-class devices share the WebGPU
// allocator, which initializes lazily on first use.
func Resolver() vm.AllocatorResolver {
	cpu := NewCPU()
	gpu := NewWebGPU()
	return func(dev *device.Device) (vm.Allocator, error) {
		switch dev.Type() {
		case device.CPU:
			return cpu, nil
		case device.WebGPU, device.Vulkan, device.Metal:
			return gpu, nil
		default:
			return nil, errors.Errorf("no allocator for device %s", dev)
		}
	}
}
