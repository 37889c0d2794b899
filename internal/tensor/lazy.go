package tensor

import "github.com/eddy-ml/eddy/internal/device"

// LazyLocalTensor is the graph-construction-time local tensor: metadata
// only, no storage. It exists so the lazy path can carry the same flags and
// autograd attachment without binding a buffer; any operation that needs
// one fails with ConstructionError.
type LazyLocalTensor struct {
	tensorBase

	meta *LocalMeta
}

// NewLazyLocal builds a lazy local tensor from metadata.
func NewLazyLocal(meta *LocalMeta, requiresGrad, isLeaf bool) (*LazyLocalTensor, error) {
	if meta == nil {
		return nil, constructionErrorf("nil metadata")
	}
	return &LazyLocalTensor{
		tensorBase: newTensorBase(requiresGrad, isLeaf),
		meta:       meta,
	}, nil
}

// Meta returns the tensor's metadata.
func (t *LazyLocalTensor) Meta() *LocalMeta {
	return t.meta
}

// Shape returns the declared shape; lazy tensors never need a sync.
func (t *LazyLocalTensor) Shape() (Shape, error) {
	if t.meta.IsPlaceholder() {
		return nil, constructionErrorf("shape of placeholder metadata")
	}
	return t.meta.Shape(), nil
}

// DType returns the declared element type.
func (t *LazyLocalTensor) DType() DataType {
	return t.meta.DType()
}

// Device returns the bound device.
func (t *LazyLocalTensor) Device() *device.Device {
	return t.meta.Device()
}

// Buffer always fails: lazy tensors carry no storage.
func (t *LazyLocalTensor) Buffer() (any, error) {
	return nil, constructionErrorf("lazy tensor has no storage")
}

// Detach returns a new lazy tensor sharing the metadata, with
// requires-gradient forced to false and is-leaf forced to true.
func (t *LazyLocalTensor) Detach() *LazyLocalTensor {
	return &LazyLocalTensor{
		tensorBase: t.detachedBase(),
		meta:       t.meta,
	}
}
