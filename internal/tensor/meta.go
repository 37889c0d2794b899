package tensor

import (
	"fmt"
	"hash/fnv"
	"sync"
	"sync/atomic"

	"github.com/eddy-ml/eddy/internal/device"
	"github.com/eddy-ml/eddy/internal/sbp"
)

// LocalMeta describes one local tensor: shape, element type and the device
// the data lives on. It is immutable after construction except for the
// dynamic flag, which is deliberately excluded from Equal and HashValue.
type LocalMeta struct {
	shape  Shape
	dtype  DataType
	device *device.Device

	dynamic atomic.Bool
}

// NewLocalMeta builds concrete local metadata.
func NewLocalMeta(shape Shape, dtype DataType, dev *device.Device) (*LocalMeta, error) {
	if err := shape.Validate(); err != nil {
		return nil, constructionErrorf("invalid shape: %v", err)
	}
	if shape == nil {
		return nil, constructionErrorf("nil shape; use NewPlaceholderMeta for scaffolding")
	}
	if !dtype.Valid() {
		return nil, constructionErrorf("invalid dtype")
	}
	if dev == nil {
		return nil, constructionErrorf("unbound device")
	}
	return &LocalMeta{shape: shape.Clone(), dtype: dtype, device: dev}, nil
}

// NewPlaceholderMeta returns scaffolding metadata: nil shape, invalid dtype,
// unbound device. Operating on a tensor that still carries it fails with
// ConstructionError.
func NewPlaceholderMeta() *LocalMeta {
	return &LocalMeta{}
}

// IsPlaceholder reports whether any identifying field is still unassigned.
func (m *LocalMeta) IsPlaceholder() bool {
	return m.shape == nil || !m.dtype.Valid() || m.device == nil
}

// Shape returns the declared shape.
func (m *LocalMeta) Shape() Shape {
	return m.shape
}

// DType returns the element type.
func (m *LocalMeta) DType() DataType {
	return m.dtype
}

// Device returns the bound device, nil for a placeholder.
func (m *LocalMeta) Device() *device.Device {
	return m.device
}

// IsDynamic reports the dynamic/resizable flag.
func (m *LocalMeta) IsDynamic() bool {
	return m.dynamic.Load()
}

// SetDynamic flips the dynamic/resizable flag, the only mutable bit.
func (m *LocalMeta) SetDynamic(dynamic bool) {
	m.dynamic.Store(dynamic)
}

// Equal compares shape, dtype and device. The dynamic flag is ignored.
func (m *LocalMeta) Equal(other *LocalMeta) bool {
	if other == nil {
		return false
	}
	return m.shape.Equal(other.shape) && m.dtype == other.dtype && m.device == other.device
}

// HashValue combines shape, dtype and device. The dynamic flag is ignored,
// keeping the hash consistent with Equal.
func (m *LocalMeta) HashValue() uint64 {
	h := fnv.New64a()
	for _, dim := range m.shape {
		fmt.Fprintf(h, "%d,", dim)
	}
	fmt.Fprintf(h, "|%d|", m.dtype)
	if m.device != nil {
		fmt.Fprint(h, m.device)
	}
	return h.Sum64()
}

// String renders "float32[2 3]@CPU:0" style metadata.
func (m *LocalMeta) String() string {
	if m.IsPlaceholder() {
		return "placeholder"
	}
	return fmt.Sprintf("%s%v@%s", m.dtype, m.shape, m.device)
}

// GlobalMeta is the descriptor of a distributed tensor: logical shape,
// dtype, distribution directive and placement. Descriptors are interned
// process-wide, so two descriptors with identical fields are the same
// pointer.
type GlobalMeta struct {
	logical   Shape
	dtype     DataType
	directive *sbp.Directive
	placement *device.Placement
}

var (
	globalMetaMu sync.Mutex
	globalMetas  = map[string]*GlobalMeta{}
)

// NewGlobalMeta interns and returns the canonical descriptor for the given
// fields.
func NewGlobalMeta(logical Shape, dtype DataType, directive *sbp.Directive, placement *device.Placement) (*GlobalMeta, error) {
	if err := logical.Validate(); err != nil {
		return nil, constructionErrorf("invalid logical shape: %v", err)
	}
	if logical == nil || !dtype.Valid() {
		return nil, constructionErrorf("distributed descriptor requires concrete shape and dtype")
	}
	if directive == nil || placement == nil {
		return nil, constructionErrorf("distributed descriptor requires directive and placement")
	}

	key := fmt.Sprintf("%v|%d|%s|%s", logical, dtype, directive, placement)
	globalMetaMu.Lock()
	defer globalMetaMu.Unlock()
	if m, ok := globalMetas[key]; ok {
		return m, nil
	}
	m := &GlobalMeta{
		logical:   logical.Clone(),
		dtype:     dtype,
		directive: directive,
		placement: placement,
	}
	globalMetas[key] = m
	return m, nil
}

// LogicalShape returns the shape as seen by the whole program.
func (m *GlobalMeta) LogicalShape() Shape {
	return m.logical
}

// DType returns the element type.
func (m *GlobalMeta) DType() DataType {
	return m.dtype
}

// Directive returns the distribution directive.
func (m *GlobalMeta) Directive() *sbp.Directive {
	return m.directive
}

// Placement returns the participating device list.
func (m *GlobalMeta) Placement() *device.Placement {
	return m.placement
}

// HashValue combines all identifying fields.
func (m *GlobalMeta) HashValue() uint64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%v|%d|%s|%s", m.logical, m.dtype, m.directive, m.placement)
	return h.Sum64()
}

// String renders "float32[16 8] S(0) @ CPU:0,CPU:1" style descriptors.
func (m *GlobalMeta) String() string {
	return fmt.Sprintf("%s%v %s @ %s", m.dtype, m.logical, m.directive, m.placement)
}
