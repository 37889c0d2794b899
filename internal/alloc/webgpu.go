package alloc

import (
	"sync"
	"unsafe"

	"github.com/eddy-ml/eddy/internal/device"
	"github.com/eddy-ml/eddy/internal/vm"
	"github.com/go-webgpu/webgpu/wgpu"
	"github.com/pkg/errors"
)

// WebGPU allocates storage buffers on a WebGPU device. Initialization is
// deferred to the first allocation so that building a CPU-only program never
// touches the native library.
type WebGPU struct {
	mu       sync.Mutex
	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue
	pool     *bufferPool
	initErr  error
	inited   bool
}

// NewWebGPU returns an uninitialized WebGPU allocator.
func NewWebGPU() *WebGPU {
	return &WebGPU{}
}

// init acquires the instance/adapter/device triple. Caller holds a.mu.
func (a *WebGPU) init() (err error) {
	if a.inited {
		return a.initErr
	}
	a.inited = true

	// The native library panics rather than erroring when absent.
	defer func() {
		if r := recover(); r != nil {
			a.initErr = errors.Errorf("webgpu: native library not available: %v", r)
			err = a.initErr
		}
	}()

	instance, err := wgpu.CreateInstance(nil)
	if err != nil {
		a.initErr = errors.Wrap(err, "webgpu: create instance")
		return a.initErr
	}
	adapter, err := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		PowerPreference: wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		instance.Release()
		a.initErr = errors.Wrap(err, "webgpu: request adapter")
		return a.initErr
	}
	dev, err := adapter.RequestDevice(nil)
	if err != nil {
		adapter.Release()
		instance.Release()
		a.initErr = errors.Wrap(err, "webgpu: request device")
		return a.initErr
	}
	queue := dev.GetQueue()
	if queue == nil {
		dev.Release()
		adapter.Release()
		instance.Release()
		a.initErr = errors.New("webgpu: no default queue")
		return a.initErr
	}

	a.instance = instance
	a.adapter = adapter
	a.device = dev
	a.queue = queue
	a.pool = newBufferPool(dev)
	return nil
}

const storageUsage = wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc | wgpu.BufferUsageCopyDst

// Allocate acquires a storage buffer, reusing a pooled one when possible.
func (a *WebGPU) Allocate(dev *device.Device, byteSize int) (*vm.Buffer, error) {
	if byteSize < 0 {
		return nil, errors.Errorf("negative buffer size %d", byteSize)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.init(); err != nil {
		return nil, err
	}
	buf := a.pool.acquire(uint64(byteSize), storageUsage)
	return vm.NewDeviceBuffer(dev, byteSize, unsafe.Pointer(buf)), nil
}

// Release returns the buffer to the pool.
func (a *WebGPU) Release(buf *vm.Buffer) error {
	if buf.DeviceHandle == nil {
		return errors.Errorf("webgpu allocator asked to release non-device buffer %s", buf.ID)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.inited || a.initErr != nil {
		return errors.New("webgpu: release on uninitialized allocator")
	}
	a.pool.put((*wgpu.Buffer)(buf.DeviceHandle), uint64(buf.ByteSize), storageUsage)
	buf.DeviceHandle = nil
	return nil
}

// Upload writes host bytes into a device buffer.
func (a *WebGPU) Upload(buf *vm.Buffer, data []byte) error {
	if buf.DeviceHandle == nil {
		return errors.Errorf("upload to non-device buffer %s", buf.ID)
	}
	if len(data) > buf.ByteSize {
		return errors.Errorf("upload of %d bytes into %d-byte buffer", len(data), buf.ByteSize)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.queue.WriteBuffer((*wgpu.Buffer)(buf.DeviceHandle), 0, data)
	return nil
}

// ReadBack copies a device buffer into host memory through a staging buffer.
func (a *WebGPU) ReadBack(buf *vm.Buffer) ([]byte, error) {
	if buf.DeviceHandle == nil {
		return nil, errors.Errorf("read-back of non-device buffer %s", buf.ID)
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	size := uint64(buf.ByteSize)
	staging := a.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
		Size:  size,
	})
	defer staging.Release()

	encoder := a.device.CreateCommandEncoder(nil)
	encoder.CopyBufferToBuffer((*wgpu.Buffer)(buf.DeviceHandle), 0, staging, 0, size)
	a.queue.Submit(encoder.Finish(nil))

	if err := staging.MapAsync(a.device, wgpu.MapModeRead, 0, size); err != nil {
		return nil, errors.Wrap(err, "webgpu: map staging buffer")
	}
	mapped := unsafe.Slice((*byte)(staging.GetMappedRange(0, size)), size)
	out := make([]byte, size)
	copy(out, mapped)
	staging.Unmap()
	return out, nil
}

// Close drains the pool and releases the device, adapter and instance.
func (a *WebGPU) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.inited || a.initErr != nil {
		return
	}
	a.pool.clear()
	a.device.Release()
	a.adapter.Release()
	a.instance.Release()
	a.inited = false
	a.initErr = errors.New("webgpu: allocator closed")
}
