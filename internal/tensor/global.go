package tensor

import (
	"github.com/eddy-ml/eddy/internal/device"
	"github.com/eddy-ml/eddy/internal/sbp"
	"github.com/eddy-ml/eddy/internal/vm"
)

// GlobalTensor is a distributed tensor: interned global metadata plus, for
// participants that own a placement slot, the local physical shard. A
// participant whose process rank falls outside the placement carries no
// local tensor; that is a valid state, not an error.
type GlobalTensor struct {
	tensorBase

	meta  *GlobalMeta
	local *EagerLocalTensor
}

// PromoteLocalToDistributed wraps an existing local tensor as this
// participant's shard of a distributed tensor. The local tensor's device
// must be the placement slot assigned to the current participant, and its
// shape must be a valid shard of some logical shape under the directive.
func PromoteLocalToDistributed(local *EagerLocalTensor, directive *sbp.Directive, placement *device.Placement) (*GlobalTensor, error) {
	if local == nil {
		return nil, constructionErrorf("nil local tensor")
	}
	slot, ok := placement.CurrentSlot()
	if !ok {
		return nil, &sbp.PlacementError{Reason: "current participant holds no slot in " + placement.String()}
	}
	if dev := placement.Device(slot); dev != local.Device() {
		return nil, &sbp.PlacementError{
			Reason: "local tensor on " + local.Device().String() + " but slot device is " + dev.String(),
		}
	}
	physical, err := local.Shape()
	if err != nil {
		return nil, err
	}
	logical, err := sbp.InferLogical(physical, directive, placement, slot)
	if err != nil {
		return nil, err
	}
	meta, err := NewGlobalMeta(Shape(logical), local.DType(), directive, placement)
	if err != nil {
		return nil, err
	}
	return &GlobalTensor{
		tensorBase: tensorBase{
			requiresGrad: local.RequiresGrad(),
			isLeaf:       local.IsLeaf(),
			slot:         local.tensorBase.slot,
		},
		meta:  meta,
		local: local,
	}, nil
}

// MaterializeFromDescriptor builds a distributed tensor from a logical
// descriptor. Participants holding a slot in the placement compute their
// physical shard shape and eagerly allocate it through the executor; the
// rest get a tensor with no local shard.
func MaterializeFromDescriptor(logical Shape, dtype DataType, directive *sbp.Directive, placement *device.Placement, exec *vm.VM, requiresGrad, isLeaf bool) (*GlobalTensor, error) {
	meta, err := NewGlobalMeta(logical, dtype, directive, placement)
	if err != nil {
		return nil, err
	}
	g := &GlobalTensor{
		tensorBase: newTensorBase(requiresGrad, isLeaf),
		meta:       meta,
	}
	slot, ok := placement.CurrentSlot()
	if !ok {
		return g, nil
	}
	physical, err := sbp.LogicalToPhysical(logical, directive, placement, slot)
	if err != nil {
		return nil, err
	}
	localMeta, err := NewLocalMeta(Shape(physical), dtype, placement.Device(slot))
	if err != nil {
		return nil, err
	}
	local, err := NewEagerLocal(localMeta, requiresGrad, isLeaf, exec)
	if err != nil {
		return nil, err
	}
	if err := local.Materialize(); err != nil {
		return nil, err
	}
	// The shard shares the global tensor's autograd slot so gradient state
	// set through either side is visible through both.
	local.tensorBase.slot = g.tensorBase.slot
	g.local = local
	return g, nil
}

// Meta returns the interned global metadata.
func (t *GlobalTensor) Meta() *GlobalMeta {
	return t.meta
}

// LogicalShape returns the logical shape across the whole placement.
func (t *GlobalTensor) LogicalShape() Shape {
	return t.meta.LogicalShape()
}

// DType returns the element type.
func (t *GlobalTensor) DType() DataType {
	return t.meta.DType()
}

// Directive returns the distribution directive.
func (t *GlobalTensor) Directive() *sbp.Directive {
	return t.meta.Directive()
}

// Placement returns the device placement.
func (t *GlobalTensor) Placement() *device.Placement {
	return t.meta.Placement()
}

// CurrentLocal returns this participant's shard, if it holds one.
func (t *GlobalTensor) CurrentLocal() (*EagerLocalTensor, bool) {
	if t.local == nil {
		return nil, false
	}
	return t.local, true
}

// Device returns the device of this participant's shard, if it holds one.
// It never allocates and never fails.
func (t *GlobalTensor) Device() (*device.Device, bool) {
	if t.local == nil {
		return nil, false
	}
	return t.local.Device(), true
}

// Detach returns a view sharing the metadata and shard, with
// requires-gradient forced to false and is-leaf forced to true.
func (t *GlobalTensor) Detach() *GlobalTensor {
	var local *EagerLocalTensor
	if t.local != nil {
		local = t.local.Detach()
	}
	return &GlobalTensor{
		tensorBase: t.detachedBase(),
		meta:       t.meta,
		local:      local,
	}
}

// Release drops this participant's shard reference, if any.
func (t *GlobalTensor) Release() {
	if t.local != nil {
		t.local.Release()
	}
}
