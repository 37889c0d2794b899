// Copyright 2026 Eddy ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/eddy-ml/eddy/internal/device"
	"github.com/eddy-ml/eddy/internal/sbp"
	"github.com/eddy-ml/eddy/internal/tensor"
	"github.com/eddy-ml/eddy/vm"
)

// DataType represents the element type of a tensor.
type DataType = tensor.DataType

// Data type constants.
const (
	Float32  DataType = tensor.Float32
	Float64  DataType = tensor.Float64
	Float16  DataType = tensor.Float16
	BFloat16 DataType = tensor.BFloat16
	Int32    DataType = tensor.Int32
	Int64    DataType = tensor.Int64
	Uint8    DataType = tensor.Uint8
	Bool     DataType = tensor.Bool
)

// Shape represents the dimensions of a tensor.
// Example: Shape{2, 3, 4} represents a 3D tensor with dimensions 2×3×4.
type Shape = tensor.Shape

// LocalMeta is the immutable descriptor of a local tensor.
type LocalMeta = tensor.LocalMeta

// GlobalMeta is the interned descriptor of a distributed tensor.
type GlobalMeta = tensor.GlobalMeta

// Local is an eager tensor bound to one device; its storage lives under
// the instruction executor.
type Local = tensor.EagerLocalTensor

// Lazy is a graph-construction-time tensor carrying metadata only.
type Lazy = tensor.LazyLocalTensor

// Global is a distributed tensor over a placement.
type Global = tensor.GlobalTensor

// Impl is the interface all tensor implementations satisfy.
type Impl = tensor.TensorImpl

// AutogradRecord is the per-tensor-identity gradient record.
type AutogradRecord = tensor.AutogradRecord

// Errors surfaced by tensor construction and storage binding.
type (
	ConstructionError          = tensor.ConstructionError
	BufferMismatchError        = tensor.BufferMismatchError
	AliasingError              = tensor.AliasingError
	UninitializedAutogradState = tensor.UninitializedAutogradState
)

// NewLocal builds an eager local tensor on the process-wide executor. The
// storage is not allocated until Materialize.
func NewLocal(shape Shape, dtype DataType, dev *device.Device) (*Local, error) {
	meta, err := tensor.NewLocalMeta(shape, dtype, dev)
	if err != nil {
		return nil, err
	}
	return tensor.NewEagerLocal(meta, false, true, vm.Default())
}

// NewLocalOn is NewLocal against an explicit executor.
func NewLocalOn(shape Shape, dtype DataType, dev *device.Device, exec *vm.VM) (*Local, error) {
	meta, err := tensor.NewLocalMeta(shape, dtype, dev)
	if err != nil {
		return nil, err
	}
	return tensor.NewEagerLocal(meta, false, true, exec)
}

// NewLazy builds a metadata-only tensor for graph construction.
func NewLazy(shape Shape, dtype DataType, dev *device.Device) (*Lazy, error) {
	meta, err := tensor.NewLocalMeta(shape, dtype, dev)
	if err != nil {
		return nil, err
	}
	return tensor.NewLazyLocal(meta, false, true)
}

// FromFloat32 builds a float32 local tensor on the process-wide executor,
// materializes it, and writes data into it through the executor.
func FromFloat32(data []float32, shape Shape, dev *device.Device) (*Local, error) {
	if len(data) != shape.NumElements() {
		return nil, &ConstructionError{
			Reason: fmt.Sprintf("%d values for shape %v (%d elements)", len(data), shape, shape.NumElements()),
		}
	}
	t, err := NewLocal(shape, Float32, dev)
	if err != nil {
		return nil, err
	}
	if err := t.Materialize(); err != nil {
		return nil, err
	}
	if !t.Buffer().OnHost() {
		return nil, &ConstructionError{Reason: "FromFloat32 requires a host-memory device"}
	}
	done := make(chan error, 1)
	err = t.IssueAccess(false, func(buf *vm.Buffer) {
		for i, f := range data {
			binary.LittleEndian.PutUint32(buf.Host[i*4:], math.Float32bits(f))
		}
	}, func(err error) { done <- err })
	if err != nil {
		return nil, err
	}
	if err := <-done; err != nil {
		return nil, err
	}
	return t, nil
}

// NewGlobal builds a distributed tensor from a logical descriptor on the
// process-wide executor, allocating this participant's shard if it holds a
// slot in the placement.
func NewGlobal(logical Shape, dtype DataType, directive *sbp.Directive, placement *device.Placement) (*Global, error) {
	return tensor.MaterializeFromDescriptor(logical, dtype, directive, placement, vm.Default(), false, true)
}

// Promote wraps an existing local tensor as this participant's shard of a
// distributed tensor.
func Promote(local *Local, directive *sbp.Directive, placement *device.Placement) (*Global, error) {
	return tensor.PromoteLocalToDistributed(local, directive, placement)
}
