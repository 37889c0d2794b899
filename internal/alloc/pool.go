package alloc

import (
	"math/bits"

	"github.com/go-webgpu/webgpu/wgpu"
)

// maxPooledPerClass bounds how many free buffers each size class retains;
// overflow is released to the driver immediately.
const maxPooledPerClass = 32

// bufferPool recycles GPU buffers to cut allocation overhead. Buffers are
// binned by power-of-two size class and allocated at the class boundary, so
// any pooled buffer of a class satisfies any request in that class.
//
// Not safe for concurrent use; the owning allocator serializes access.
type bufferPool struct {
	device  *wgpu.Device
	classes map[int][]*wgpu.Buffer

	hits, misses uint64
}

func newBufferPool(device *wgpu.Device) *bufferPool {
	return &bufferPool{
		device:  device,
		classes: make(map[int][]*wgpu.Buffer),
	}
}

// sizeClass returns the power-of-two class index for a byte size.
func sizeClass(size uint64) int {
	if size <= 1 {
		return 0
	}
	return bits.Len64(size - 1)
}

// classBytes is the allocation size for a class.
func classBytes(class int) uint64 {
	return uint64(1) << class
}

// acquire returns a buffer of at least size bytes with the given usage.
func (p *bufferPool) acquire(size uint64, usage wgpu.BufferUsage) *wgpu.Buffer {
	class := sizeClass(size)
	if free := p.classes[class]; len(free) > 0 {
		buf := free[len(free)-1]
		p.classes[class] = free[:len(free)-1]
		p.hits++
		return buf
	}
	p.misses++
	return p.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage: usage,
		Size:  classBytes(class),
	})
}

// put returns a buffer to its size class, or releases it when the class is
// full.
func (p *bufferPool) put(buf *wgpu.Buffer, size uint64, _ wgpu.BufferUsage) {
	class := sizeClass(size)
	if len(p.classes[class]) >= maxPooledPerClass {
		buf.Release()
		return
	}
	p.classes[class] = append(p.classes[class], buf)
}

// clear releases every pooled buffer.
func (p *bufferPool) clear() {
	for class, free := range p.classes {
		for _, buf := range free {
			buf.Release()
		}
		delete(p.classes, class)
	}
}

// stats reports pool effectiveness.
func (p *bufferPool) stats() (hits, misses uint64) {
	return p.hits, p.misses
}
