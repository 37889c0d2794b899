package tensor

import (
	"testing"

	"github.com/eddy-ml/eddy/internal/device"
	"github.com/eddy-ml/eddy/internal/sbp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalMetaEqualityIgnoresDynamicFlag(t *testing.T) {
	dev := device.MustNew(device.CPU, 0)
	a, err := NewLocalMeta(Shape{2, 3}, Float32, dev)
	require.NoError(t, err)
	b, err := NewLocalMeta(Shape{2, 3}, Float32, dev)
	require.NoError(t, err)

	a.SetDynamic(true)
	assert.True(t, a.Equal(b))
	assert.Equal(t, a.HashValue(), b.HashValue())

	c, err := NewLocalMeta(Shape{3, 2}, Float32, dev)
	require.NoError(t, err)
	assert.False(t, a.Equal(c))

	d, err := NewLocalMeta(Shape{2, 3}, Float64, dev)
	require.NoError(t, err)
	assert.False(t, a.Equal(d))
}

func TestLocalMetaValidation(t *testing.T) {
	dev := device.MustNew(device.CPU, 0)

	_, err := NewLocalMeta(Shape{2, -1}, Float32, dev)
	require.Error(t, err)

	_, err = NewLocalMeta(Shape{2, 3}, Invalid, dev)
	require.Error(t, err)

	_, err = NewLocalMeta(Shape{2, 3}, Float32, nil)
	require.Error(t, err)

	// Scalar (empty non-nil shape) is valid.
	m, err := NewLocalMeta(Shape{}, Float32, dev)
	require.NoError(t, err)
	assert.False(t, m.IsPlaceholder())
	assert.Equal(t, 1, m.Shape().NumElements())
}

func TestPlaceholderMeta(t *testing.T) {
	m := NewPlaceholderMeta()
	assert.True(t, m.IsPlaceholder())
	assert.Nil(t, m.Shape())
	assert.Equal(t, Invalid, m.DType())
}

func TestLocalMetaString(t *testing.T) {
	dev := device.MustNew(device.CPU, 0)
	m, err := NewLocalMeta(Shape{2, 3}, Float32, dev)
	require.NoError(t, err)
	assert.Equal(t, "float32[2 3]@CPU:0", m.String())
}

func TestGlobalMetaInterning(t *testing.T) {
	devs := []*device.Device{device.MustNew(device.CPU, 0), device.MustNew(device.CPU, 1)}
	p := device.MustNewPlacement(devs)
	d := sbp.MustNewDirective(sbp.Split(0))

	a, err := NewGlobalMeta(Shape{16, 8}, Float32, d, p)
	require.NoError(t, err)
	b, err := NewGlobalMeta(Shape{16, 8}, Float32, d, p)
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Equal(t, a.HashValue(), b.HashValue())

	c, err := NewGlobalMeta(Shape{16, 8}, Float32, sbp.MustNewDirective(sbp.Broadcast()), p)
	require.NoError(t, err)
	assert.NotSame(t, a, c)
}

func TestGlobalMetaValidation(t *testing.T) {
	p := device.MustNewPlacement([]*device.Device{device.MustNew(device.CPU, 0)})
	d := sbp.MustNewDirective(sbp.Broadcast())

	_, err := NewGlobalMeta(Shape{2, -1}, Float32, d, p)
	require.Error(t, err)

	_, err = NewGlobalMeta(Shape{2}, Float32, nil, p)
	require.Error(t, err)

	_, err = NewGlobalMeta(Shape{2}, Float32, d, nil)
	require.Error(t, err)
}
