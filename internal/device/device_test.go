package device

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeviceInterning(t *testing.T) {
	ResetRegistry()

	a := MustNew(CPU, 0)
	b := MustNew(CPU, 0)
	c := MustNew(CPU, 1)
	g := MustNew(WebGPU, 0)

	assert.Same(t, a, b, "same identity must intern to the same pointer")
	assert.NotSame(t, a, c)
	assert.NotSame(t, a, g)
	assert.Equal(t, "CPU:0", a.String())
	assert.Equal(t, "WebGPU:0", g.String())
}

func TestDeviceInvalidOrdinal(t *testing.T) {
	_, err := New(CPU, -1)
	require.Error(t, err)
}

func TestPlacementInterning(t *testing.T) {
	ResetRegistry()

	d0 := MustNew(CPU, 0)
	d1 := MustNew(CPU, 1)

	p1 := MustNewPlacement([]*Device{d0, d1})
	p2 := MustNewPlacement([]*Device{d0, d1})
	p3 := MustNewPlacement([]*Device{d1, d0})

	assert.Same(t, p1, p2)
	assert.NotSame(t, p1, p3, "slot order is significant")
	assert.Equal(t, 2, p1.Size())
}

func TestPlacementValidation(t *testing.T) {
	ResetRegistry()
	d0 := MustNew(CPU, 0)

	_, err := NewPlacement(nil)
	require.Error(t, err)

	_, err = NewPlacement([]*Device{d0, d0})
	require.Error(t, err, "duplicate slots must be rejected")
}

func TestPlacementSlotOf(t *testing.T) {
	ResetRegistry()

	d0 := MustNew(CPU, 0)
	d1 := MustNew(CPU, 1)
	d2 := MustNew(CPU, 2)
	p := MustNewPlacement([]*Device{d0, d1})

	slot, ok := p.SlotOf(d1)
	require.True(t, ok)
	assert.Equal(t, 1, slot)

	_, ok = p.SlotOf(d2)
	assert.False(t, ok)
}

func TestCurrentSlotFollowsProcessRank(t *testing.T) {
	ResetRegistry()

	d0 := MustNew(CPU, 0)
	d1 := MustNew(CPU, 1)
	p := MustNewPlacement([]*Device{d0, d1})

	slot, ok := p.CurrentSlot()
	require.True(t, ok)
	assert.Equal(t, 0, slot)

	require.NoError(t, SetProcessRank(1))
	slot, ok = p.CurrentSlot()
	require.True(t, ok)
	assert.Equal(t, 1, slot)

	// Rank beyond the placement: participant owns no slot.
	require.NoError(t, SetProcessRank(5))
	_, ok = p.CurrentSlot()
	assert.False(t, ok)

	require.NoError(t, SetProcessRank(0))
}
