package tensor

import (
	"testing"

	"github.com/eddy-ml/eddy/internal/device"
	"github.com/eddy-ml/eddy/internal/sbp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cpuPlacement(t *testing.T, n int) *device.Placement {
	t.Helper()
	devs := make([]*device.Device, n)
	for i := range devs {
		devs[i] = device.MustNew(device.CPU, i)
	}
	return device.MustNewPlacement(devs)
}

func setRank(t *testing.T, rank int) {
	t.Helper()
	require.NoError(t, device.SetProcessRank(rank))
	t.Cleanup(func() { _ = device.SetProcessRank(0) })
}

func TestMaterializeFromDescriptorAllocatesLocalShard(t *testing.T) {
	setRank(t, 1)
	v := newTestVM(t)
	p := cpuPlacement(t, 4)
	d := sbp.MustNewDirective(sbp.Split(0))

	g, err := MaterializeFromDescriptor(Shape{16, 8}, Float32, d, p, v, false, true)
	require.NoError(t, err)
	assert.Equal(t, Shape{16, 8}, g.LogicalShape())

	local, ok := g.CurrentLocal()
	require.True(t, ok)
	shape, err := local.Shape()
	require.NoError(t, err)
	assert.Equal(t, Shape{4, 8}, shape, "slot 1 shard of [16,8] over 4")
	require.NotNil(t, local.Buffer())
	assert.Equal(t, 4*8*4, local.Buffer().ByteSize)

	dev, ok := g.Device()
	require.True(t, ok)
	assert.Same(t, device.MustNew(device.CPU, 1), dev)
}

func TestMaterializeFromDescriptorWithoutSlot(t *testing.T) {
	setRank(t, 9)
	v := newTestVM(t)
	p := cpuPlacement(t, 2)
	d := sbp.MustNewDirective(sbp.Broadcast())

	// A participant outside the placement gets a shard-less tensor, not an
	// error.
	g, err := MaterializeFromDescriptor(Shape{4, 4}, Float32, d, p, v, false, true)
	require.NoError(t, err)
	_, ok := g.CurrentLocal()
	assert.False(t, ok)
	_, ok = g.Device()
	assert.False(t, ok)
	assert.Equal(t, Shape{4, 4}, g.LogicalShape())
}

func TestMaterializeFromDescriptorInternsMetadata(t *testing.T) {
	setRank(t, 0)
	v := newTestVM(t)
	p := cpuPlacement(t, 2)
	d := sbp.MustNewDirective(sbp.PartialSum())

	a, err := MaterializeFromDescriptor(Shape{3, 3}, Float32, d, p, v, false, true)
	require.NoError(t, err)
	b, err := MaterializeFromDescriptor(Shape{3, 3}, Float32, d, p, v, false, true)
	require.NoError(t, err)
	assert.Same(t, a.Meta(), b.Meta())

	// Partial-sum shards carry the full logical shape.
	local, ok := a.CurrentLocal()
	require.True(t, ok)
	shape, err := local.Shape()
	require.NoError(t, err)
	assert.Equal(t, Shape{3, 3}, shape)
}

func TestMaterializeFromDescriptorCarriesAutogradFlags(t *testing.T) {
	setRank(t, 0)
	v := newTestVM(t)
	p := cpuPlacement(t, 2)
	d := sbp.MustNewDirective(sbp.Split(0))

	g, err := MaterializeFromDescriptor(Shape{8, 4}, Float32, d, p, v, true, false)
	require.NoError(t, err)
	assert.True(t, g.RequiresGrad())
	assert.False(t, g.IsLeaf(), "non-leaf flag must survive materialization")

	// The shard mirrors the global tensor's flags.
	local, ok := g.CurrentLocal()
	require.True(t, ok)
	assert.True(t, local.RequiresGrad())
	assert.False(t, local.IsLeaf())
}

func TestPromoteLocalToDistributed(t *testing.T) {
	setRank(t, 2)
	v := newTestVM(t)
	p := cpuPlacement(t, 4)
	d := sbp.MustNewDirective(sbp.Split(0))

	meta, err := NewLocalMeta(Shape{4, 8}, Float32, device.MustNew(device.CPU, 2))
	require.NoError(t, err)
	local, err := NewEagerLocal(meta, true, true, v)
	require.NoError(t, err)
	require.NoError(t, local.Materialize())

	g, err := PromoteLocalToDistributed(local, d, p)
	require.NoError(t, err)
	assert.Equal(t, Shape{16, 8}, g.LogicalShape())
	assert.True(t, g.RequiresGrad())

	got, ok := g.CurrentLocal()
	require.True(t, ok)
	assert.Same(t, local, got)
}

func TestPromoteRejectsDeviceSlotMismatch(t *testing.T) {
	setRank(t, 1)
	v := newTestVM(t)
	p := cpuPlacement(t, 4)
	d := sbp.MustNewDirective(sbp.Split(0))

	// Local tensor lives on CPU:3 but this participant's slot is CPU:1.
	meta, err := NewLocalMeta(Shape{4, 8}, Float32, device.MustNew(device.CPU, 3))
	require.NoError(t, err)
	local, err := NewEagerLocal(meta, false, true, v)
	require.NoError(t, err)

	_, err = PromoteLocalToDistributed(local, d, p)
	var perr *sbp.PlacementError
	require.ErrorAs(t, err, &perr)
}

func TestPromoteRejectsParticipantWithoutSlot(t *testing.T) {
	setRank(t, 7)
	v := newTestVM(t)
	p := cpuPlacement(t, 2)
	d := sbp.MustNewDirective(sbp.Broadcast())

	meta, err := NewLocalMeta(Shape{4}, Float32, device.MustNew(device.CPU, 0))
	require.NoError(t, err)
	local, err := NewEagerLocal(meta, false, true, v)
	require.NoError(t, err)

	_, err = PromoteLocalToDistributed(local, d, p)
	var perr *sbp.PlacementError
	require.ErrorAs(t, err, &perr)
}

func TestGlobalDetachSharesShardAndAutogradRecord(t *testing.T) {
	setRank(t, 0)
	v := newTestVM(t)
	p := cpuPlacement(t, 2)
	d := sbp.MustNewDirective(sbp.Split(0))

	g, err := MaterializeFromDescriptor(Shape{8, 2}, Float32, d, p, v, true, true)
	require.NoError(t, err)
	view := g.Detach()
	assert.False(t, view.RequiresGrad())
	assert.True(t, view.IsLeaf())
	assert.Same(t, g.Meta(), view.Meta())

	gl, ok := g.CurrentLocal()
	require.True(t, ok)
	vl, ok := view.CurrentLocal()
	require.True(t, ok)
	assert.Same(t, gl.Storage(), vl.Storage())

	// Gradient record initialized through the view is visible through the
	// original, and through the local shard.
	view.EnsureAutograd()
	grad := newTestTensor(t, v, Shape{4, 2})
	require.NoError(t, g.SetAccGrad(grad))
	got, err := gl.AccGrad()
	require.NoError(t, err)
	assert.Same(t, TensorImpl(grad), got)
}
