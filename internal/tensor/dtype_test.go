package tensor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDataTypeSizes(t *testing.T) {
	assert.Equal(t, 0, Invalid.Size())
	assert.Equal(t, 4, Float32.Size())
	assert.Equal(t, 8, Float64.Size())
	assert.Equal(t, 2, Float16.Size())
	assert.Equal(t, 2, BFloat16.Size())
	assert.Equal(t, 1, Uint8.Size())

	assert.False(t, Invalid.Valid())
	assert.True(t, Float32.Valid())
}

func TestFloat16RoundTrip(t *testing.T) {
	src := []float32{0, 1, -1, 0.5, 65504, -0.25}
	got := DecodeFloat16(EncodeFloat16(src))
	require.Len(t, got, len(src))
	for i := range src {
		assert.Equal(t, src[i], got[i], "index %d", i)
	}
}

func TestBFloat16RoundTrip(t *testing.T) {
	// Values exactly representable in bfloat16.
	src := []float32{0, 1, -2, 128, 0.5}
	got := DecodeBFloat16(EncodeBFloat16(src))
	require.Len(t, got, len(src))
	for i := range src {
		assert.Equal(t, src[i], got[i], "index %d", i)
	}
}

func TestShapeBasics(t *testing.T) {
	assert.Equal(t, 24, Shape{2, 3, 4}.NumElements())
	assert.Equal(t, 1, Shape{}.NumElements(), "scalar")
	assert.Equal(t, 0, Shape(nil).NumElements(), "placeholder")

	assert.Equal(t, []int{12, 4, 1}, Shape{2, 3, 4}.ComputeStrides())
	assert.Equal(t, 96, Shape{2, 3, 4}.ByteSize(Float32))

	require.Error(t, Shape{2, -1}.Validate())
	require.NoError(t, Shape{0, 4}.Validate(), "zero extents are legal")
}

func TestShapeEqualAndClone(t *testing.T) {
	assert.True(t, Shape{2, 3}.Equal(Shape{2, 3}))
	assert.False(t, Shape{2, 3}.Equal(Shape{3, 2}))
	assert.True(t, Shape(nil).Equal(nil))
	assert.False(t, Shape(nil).Equal(Shape{}), "placeholder is not scalar")

	s := Shape{2, 3}
	c := s.Clone()
	c[0] = 9
	assert.Equal(t, Shape{2, 3}, s)
	assert.Nil(t, Shape(nil).Clone())
}
