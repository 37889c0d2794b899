package tensor

import (
	"sync"
	"sync/atomic"

	"github.com/eddy-ml/eddy/internal/device"
	"github.com/eddy-ml/eddy/internal/sbp"
	"github.com/eddy-ml/eddy/internal/vm"
	"golang.org/x/sync/singleflight"
)

// EagerLocalTensor is the eager local tensor implementation: immutable
// metadata plus a VM-managed storage and the live buffer handle used to
// issue compute and release instructions.
type EagerLocalTensor struct {
	tensorBase

	meta *LocalMeta
	exec *vm.VM

	// storage, buffer and token are guarded by tensorBase.mu; token is
	// rewritten when AdoptStorage merges in another tensor's storage.
	storage *Storage
	buffer  *vm.Buffer
	token   *vm.Token

	matMu       sync.Mutex // serializes Materialize
	shapeSynced atomic.Bool
	syncGroup   singleflight.Group
}

// NewEagerLocal builds an eager local tensor from metadata. The metadata
// may still be a placeholder; any operation requiring a concrete tensor
// then fails with ConstructionError. No storage is allocated yet.
func NewEagerLocal(meta *LocalMeta, requiresGrad, isLeaf bool, exec *vm.VM) (*EagerLocalTensor, error) {
	if meta == nil {
		return nil, constructionErrorf("nil metadata")
	}
	if exec == nil {
		return nil, constructionErrorf("nil vm")
	}
	return &EagerLocalTensor{
		tensorBase: newTensorBase(requiresGrad, isLeaf),
		meta:       meta,
		exec:       exec,
		token:      vm.NewToken(),
	}, nil
}

// Meta returns the tensor's metadata.
func (t *EagerLocalTensor) Meta() *LocalMeta {
	return t.meta
}

// DType returns the declared element type.
func (t *EagerLocalTensor) DType() DataType {
	return t.meta.DType()
}

// Device returns the bound device, nil while the metadata is a
// placeholder.
func (t *EagerLocalTensor) Device() *device.Device {
	return t.meta.Device()
}

// Token returns the storage dependency token. The operator layer orders
// every read and write of this tensor's buffer on it.
func (t *EagerLocalTensor) Token() *vm.Token {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.token
}

// Buffer returns the live buffer handle, nil before materialization.
func (t *EagerLocalTensor) Buffer() *vm.Buffer {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.buffer
}

// Storage returns the owning storage, nil before materialization.
func (t *EagerLocalTensor) Storage() *Storage {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.storage
}

// AttachBuffer binds a backing buffer to the tensor. The buffer's declared
// shape and dtype must match the tensor metadata exactly; a mismatch fails
// with BufferMismatchError, a buffer on a different device fails with
// PlacementError, and in both cases any prior storage is left untouched.
// On success the new storage's release hook enqueues a release instruction
// on the tensor's token.
func (t *EagerLocalTensor) AttachBuffer(buf *vm.Buffer, shape Shape, dtype DataType) error {
	if t.meta.IsPlaceholder() {
		return constructionErrorf("cannot attach a buffer to placeholder metadata")
	}
	if buf == nil {
		return constructionErrorf("nil buffer")
	}
	if !shape.Equal(t.meta.Shape()) || dtype != t.meta.DType() ||
		buf.ByteSize != t.meta.Shape().ByteSize(t.meta.DType()) {
		return &BufferMismatchError{
			DeclaredShape: t.meta.Shape(),
			DeclaredDType: t.meta.DType(),
			BufferShape:   shape,
			BufferDType:   dtype,
			BufferBytes:   buf.ByteSize,
		}
	}
	if buf.Device != t.meta.Device() {
		return &sbp.PlacementError{
			Reason: "buffer on " + buf.Device.String() + ", tensor declared on " + t.meta.Device().String(),
		}
	}

	t.mu.Lock()
	storage := NewStorage(buf, t.token)
	t.installReleaser(storage)
	prior := t.storage
	t.storage = storage
	t.buffer = buf
	t.mu.Unlock()
	if prior != nil {
		prior.Release()
	}
	return nil
}

// AdoptStorage merges an existing storage into this tensor (the detach and
// view path). The buffer handle and the storage must reference the
// identical underlying buffer, otherwise AliasingError.
func (t *EagerLocalTensor) AdoptStorage(storage *Storage, buf *vm.Buffer) error {
	if storage == nil || buf == nil {
		return constructionErrorf("nil storage or buffer")
	}
	if storage.Buffer() != buf {
		return &AliasingError{Reason: "storage and buffer handle do not share the same underlying buffer"}
	}
	storage.Retain()
	t.mu.Lock()
	prior := t.storage
	t.storage = storage
	t.buffer = buf
	t.token = storage.Token()
	t.mu.Unlock()
	if prior != nil {
		prior.Release()
	}
	return nil
}

// installReleaser wires the deferred-release path: the hook enqueues an
// inspectable release request behind everything already ordered on the
// token.
func (t *EagerLocalTensor) installReleaser(storage *Storage) {
	exec := t.exec
	token := storage.Token()
	storage.SetReleaser(func(buf *vm.Buffer) {
		// Enqueue failure here means the VM is shut down; the allocator
		// reclaims everything on Close in that case.
		_ = exec.Enqueue(vm.NewReleaseInstruction(buf, []*vm.Token{token}, nil))
	})
}

// Materialize allocates the backing buffer through the VM and attaches it.
// It blocks until the allocation instruction retires. Materializing twice
// is a no-op, including from concurrent callers: at most one allocation
// instruction is ever issued.
func (t *EagerLocalTensor) Materialize() error {
	if t.meta.IsPlaceholder() {
		return constructionErrorf("cannot materialize placeholder metadata")
	}
	t.matMu.Lock()
	defer t.matMu.Unlock()

	t.mu.Lock()
	attached := t.storage != nil
	tok := t.token
	t.mu.Unlock()
	if attached {
		return nil
	}

	byteSize := t.meta.Shape().ByteSize(t.meta.DType())
	done := make(chan error, 1)
	inst := vm.NewAllocInstruction(t.meta.Device(), byteSize, []*vm.Token{tok}, func(err error) {
		done <- err
	})
	if err := t.exec.Enqueue(inst); err != nil {
		return err
	}
	if err := <-done; err != nil {
		return err
	}
	return t.AttachBuffer(inst.Alloc.Allocated, t.meta.Shape(), t.meta.DType())
}

// Shape returns the tensor's shape. When the shape is already known to be
// synchronized the cached value is returned and no instruction is issued.
// Otherwise a read-shape instruction is enqueued behind all pending writes
// and the call blocks until it retires. Racing callers collapse onto a
// single in-flight instruction.
func (t *EagerLocalTensor) Shape() (Shape, error) {
	if t.meta.IsPlaceholder() {
		return nil, constructionErrorf("shape of placeholder metadata")
	}
	t.mu.Lock()
	noStorage := t.storage == nil
	tok := t.token
	t.mu.Unlock()
	if noStorage || t.shapeSynced.Load() {
		return t.meta.Shape(), nil
	}

	_, err, _ := t.syncGroup.Do("shape", func() (any, error) {
		if t.shapeSynced.Load() {
			return nil, nil
		}
		var synced atomic.Bool
		var instErr error
		inst := vm.NewSyncShapeInstruction([]*vm.Token{tok}, func(err error) {
			instErr = err
			synced.Store(true)
		})
		if err := t.exec.Enqueue(inst); err != nil {
			return nil, err
		}
		if err := t.exec.BlockAndQuery(tok, synced.Load); err != nil {
			return nil, err
		}
		if instErr != nil {
			return nil, instErr
		}
		t.shapeSynced.Store(true)
		return nil, nil
	})
	if err != nil {
		return nil, err
	}
	return t.meta.Shape(), nil
}

// ShapeSynced reports whether Shape can answer from cache.
func (t *EagerLocalTensor) ShapeSynced() bool {
	return t.shapeSynced.Load()
}

// Detach returns a new tensor sharing this tensor's metadata, storage and
// live buffer handle, with requires-gradient forced to false and is-leaf
// forced to true.
func (t *EagerLocalTensor) Detach() *EagerLocalTensor {
	t.mu.Lock()
	storage := t.storage
	buffer := t.buffer
	token := t.token
	t.mu.Unlock()

	detached := &EagerLocalTensor{
		tensorBase: t.detachedBase(),
		meta:       t.meta,
		exec:       t.exec,
		storage:    storage,
		buffer:     buffer,
		token:      token,
	}
	detached.shapeSynced.Store(t.shapeSynced.Load())
	if storage != nil {
		storage.Retain()
	}
	return detached
}

// Release drops this tensor's ownership of its storage. The backing buffer
// is reclaimed through the VM once the last owner releases.
func (t *EagerLocalTensor) Release() {
	t.mu.Lock()
	storage := t.storage
	t.storage = nil
	t.buffer = nil
	t.mu.Unlock()
	if storage != nil {
		storage.Release()
	}
}

// IssueKernel enqueues a named kernel against this tensor's storage token.
// Additional operand tensors contribute their buffers and tokens, so the
// kernel orders behind every operand's pending work.
func (t *EagerLocalTensor) IssueKernel(name string, onDone func(error), operands ...*EagerLocalTensor) error {
	all := append([]*EagerLocalTensor{t}, operands...)
	buffers := make([]*vm.Buffer, len(all))
	tokens := make([]*vm.Token, len(all))
	for i, op := range all {
		op.mu.Lock()
		buf := op.buffer
		tok := op.token
		op.mu.Unlock()
		if buf == nil {
			return constructionErrorf("operand %d has no materialized storage", i)
		}
		buffers[i] = buf
		tokens[i] = tok
	}
	return t.exec.Enqueue(vm.NewKernelInstruction(name, buffers, tokens, onDone))
}

// IssueAccess enqueues a callback that runs with the buffer once every
// earlier instruction on the token has retired. Mutations must use
// readOnly=false so later readers order behind them.
func (t *EagerLocalTensor) IssueAccess(readOnly bool, access func(*vm.Buffer), onDone func(error)) error {
	t.mu.Lock()
	buf := t.buffer
	tok := t.token
	t.mu.Unlock()
	if buf == nil {
		return constructionErrorf("access on tensor with no materialized storage")
	}
	return t.exec.Enqueue(vm.NewAccessInstruction(buf, readOnly, access, []*vm.Token{tok}, onDone))
}
