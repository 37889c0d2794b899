package tensor

import "sync"

// TensorImpl is the mutable object a tensor handle refers to. The three
// implementations are EagerLocalTensor, LazyLocalTensor and GlobalTensor.
type TensorImpl interface {
	DType() DataType
	RequiresGrad() bool
	SetRequiresGrad(bool)
	IsLeaf() bool
}

// AutogradRecord is the per-tensor gradient record. It is created lazily,
// once per tensor identity, and shared by every view derived through
// Detach.
type AutogradRecord struct {
	mu          sync.Mutex
	accGrad     TensorImpl
	currentGrad TensorImpl
	retainGrad  bool
}

// autogradSlot is the shared holder that lets a record created after a
// Detach still be visible through earlier views.
type autogradSlot struct {
	mu  sync.Mutex
	rec *AutogradRecord
}

func (s *autogradSlot) record() *AutogradRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rec
}

// tensorBase carries the flags and autograd attachment common to all
// implementations.
type tensorBase struct {
	mu           sync.Mutex
	requiresGrad bool
	isLeaf       bool
	slot         *autogradSlot
}

func newTensorBase(requiresGrad, isLeaf bool) tensorBase {
	return tensorBase{requiresGrad: requiresGrad, isLeaf: isLeaf, slot: &autogradSlot{}}
}

// detachedBase shares the autograd slot but forces requiresGrad=false and
// isLeaf=true, independent of the source's flags.
func (b *tensorBase) detachedBase() tensorBase {
	return tensorBase{requiresGrad: false, isLeaf: true, slot: b.slot}
}

// RequiresGrad reports whether gradients are computed for this tensor.
func (b *tensorBase) RequiresGrad() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.requiresGrad
}

// SetRequiresGrad flips gradient tracking.
func (b *tensorBase) SetRequiresGrad(v bool) {
	b.mu.Lock()
	b.requiresGrad = v
	b.mu.Unlock()
}

// IsLeaf reports whether the tensor is a graph leaf.
func (b *tensorBase) IsLeaf() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.isLeaf
}

// EnsureAutograd creates the tensor's autograd record on first call and
// returns it; later calls, including through detached views, return the
// same record.
func (b *tensorBase) EnsureAutograd() *AutogradRecord {
	b.slot.mu.Lock()
	defer b.slot.mu.Unlock()
	if b.slot.rec == nil {
		b.slot.rec = &AutogradRecord{}
	}
	return b.slot.rec
}

// AccGrad returns the accumulated gradient.
func (b *tensorBase) AccGrad() (TensorImpl, error) {
	rec := b.slot.record()
	if rec == nil {
		return nil, &UninitializedAutogradState{}
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.accGrad, nil
}

// SetAccGrad replaces the accumulated gradient.
func (b *tensorBase) SetAccGrad(grad TensorImpl) error {
	rec := b.slot.record()
	if rec == nil {
		return &UninitializedAutogradState{}
	}
	rec.mu.Lock()
	rec.accGrad = grad
	rec.mu.Unlock()
	return nil
}

// MutAccGrad returns the accumulated gradient for in-place mutation.
func (b *tensorBase) MutAccGrad() (TensorImpl, error) {
	return b.AccGrad()
}

// CurrentGrad returns the gradient of the in-flight backward pass.
func (b *tensorBase) CurrentGrad() (TensorImpl, error) {
	rec := b.slot.record()
	if rec == nil {
		return nil, &UninitializedAutogradState{}
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.currentGrad, nil
}

// SetCurrentGrad replaces the in-flight gradient.
func (b *tensorBase) SetCurrentGrad(grad TensorImpl) error {
	rec := b.slot.record()
	if rec == nil {
		return &UninitializedAutogradState{}
	}
	rec.mu.Lock()
	rec.currentGrad = grad
	rec.mu.Unlock()
	return nil
}

// SetRetainGrad marks non-leaf gradients for retention.
func (b *tensorBase) SetRetainGrad(retain bool) error {
	rec := b.slot.record()
	if rec == nil {
		return &UninitializedAutogradState{}
	}
	rec.mu.Lock()
	rec.retainGrad = retain
	rec.mu.Unlock()
	return nil
}

// RetainGrad reports the retention flag.
func (b *tensorBase) RetainGrad() (bool, error) {
	rec := b.slot.record()
	if rec == nil {
		return false, &UninitializedAutogradState{}
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.retainGrad, nil
}
