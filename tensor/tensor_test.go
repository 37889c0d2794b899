// Copyright 2026 Eddy ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor_test

import (
	"testing"

	"github.com/eddy-ml/eddy/device"
	"github.com/eddy-ml/eddy/sbp"
	"github.com/eddy-ml/eddy/tensor"
	"github.com/eddy-ml/eddy/vm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromFloat32(t *testing.T) {
	defer vm.Shutdown()
	dev := device.MustNew(device.CPU, 0)

	x, err := tensor.FromFloat32([]float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3}, dev)
	require.NoError(t, err)

	shape, err := x.Shape()
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2, 3}, shape)
	require.NotNil(t, x.Buffer())
	assert.Equal(t, 24, x.Buffer().ByteSize)

	_, err = tensor.FromFloat32([]float32{1, 2}, tensor.Shape{2, 3}, dev)
	var cerr *tensor.ConstructionError
	require.ErrorAs(t, err, &cerr)
}

func TestGlobalRoundTrip(t *testing.T) {
	defer vm.Shutdown()
	devs := make([]*device.Device, 2)
	for i := range devs {
		devs[i] = device.MustNew(device.CPU, i)
	}
	placement := device.MustNewPlacement(devs)

	g, err := tensor.NewGlobal(tensor.Shape{8, 4}, tensor.Float32, sbp.MustNewDirective(sbp.Split(0)), placement)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{8, 4}, g.LogicalShape())

	local, ok := g.CurrentLocal()
	require.True(t, ok, "rank 0 owns slot 0")
	shape, err := local.Shape()
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{4, 4}, shape)

	promoted, err := tensor.Promote(local, sbp.MustNewDirective(sbp.Split(0)), placement)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{8, 4}, promoted.LogicalShape())
	assert.Same(t, g.Meta(), promoted.Meta())
}
