package tensor

import "fmt"

// Shape is the ordered sequence of extents of a tensor. A nil Shape is the
// placeholder used by scaffolding metadata; an empty non-nil Shape is a
// scalar.
type Shape []int

// NumElements returns the total number of elements in the tensor.
func (s Shape) NumElements() int {
	n := 1
	for _, dim := range s {
		n *= dim
	}
	return n
}

// Validate checks that every extent is non-negative.
func (s Shape) Validate() error {
	for i, dim := range s {
		if dim < 0 {
			return fmt.Errorf("invalid extent at axis %d: %d (must be >= 0)", i, dim)
		}
	}
	return nil
}

// Equal checks if two shapes are equal. A nil placeholder equals only
// another nil placeholder.
func (s Shape) Equal(other Shape) bool {
	if (s == nil) != (other == nil) {
		return false
	}
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// Clone returns a copy of the shape. Cloning the nil placeholder returns
// nil.
func (s Shape) Clone() Shape {
	if s == nil {
		return nil
	}
	clone := make(Shape, len(s))
	copy(clone, s)
	return clone
}

// ComputeStrides calculates row-major strides for the shape.
func (s Shape) ComputeStrides() []int {
	strides := make([]int, len(s))
	if len(s) == 0 {
		return strides
	}
	strides[len(s)-1] = 1
	for i := len(s) - 2; i >= 0; i-- {
		strides[i] = strides[i+1] * s[i+1]
	}
	return strides
}

// ByteSize returns the size of a contiguous buffer holding the shape's
// elements at the given dtype.
func (s Shape) ByteSize(dt DataType) int {
	return s.NumElements() * dt.Size()
}
