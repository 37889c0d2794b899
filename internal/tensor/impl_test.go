package tensor

import (
	"testing"

	"github.com/eddy-ml/eddy/internal/device"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAutogradAccessorsRequireInitialization(t *testing.T) {
	v := newTestVM(t)
	tt := newTestTensor(t, v, Shape{2})

	var uerr *UninitializedAutogradState
	_, err := tt.AccGrad()
	require.ErrorAs(t, err, &uerr)
	require.ErrorAs(t, tt.SetAccGrad(nil), &uerr)
	_, err = tt.CurrentGrad()
	require.ErrorAs(t, err, &uerr)
	require.ErrorAs(t, tt.SetRetainGrad(true), &uerr)
	_, err = tt.RetainGrad()
	require.ErrorAs(t, err, &uerr)

	rec := tt.EnsureAutograd()
	require.NotNil(t, rec)
	assert.Same(t, rec, tt.EnsureAutograd())

	require.NoError(t, tt.SetRetainGrad(true))
	retain, err := tt.RetainGrad()
	require.NoError(t, err)
	assert.True(t, retain)
}

func TestAutogradStateSharedAcrossDetach(t *testing.T) {
	v := newTestVM(t)
	meta, err := NewLocalMeta(Shape{2}, Float32, device.MustNew(device.CPU, 0))
	require.NoError(t, err)
	tt, err := NewEagerLocal(meta, true, true, v)
	require.NoError(t, err)

	// Detach before the record exists; a record created later through the
	// original must still be visible through the view.
	view := tt.Detach()
	_, err = view.AccGrad()
	var uerr *UninitializedAutogradState
	require.ErrorAs(t, err, &uerr)

	tt.EnsureAutograd()
	grad := newTestTensor(t, v, Shape{2})
	require.NoError(t, tt.SetAccGrad(grad))

	got, err := view.AccGrad()
	require.NoError(t, err)
	assert.Same(t, TensorImpl(grad), got)

	// And the other direction.
	require.NoError(t, view.SetCurrentGrad(grad))
	cur, err := tt.CurrentGrad()
	require.NoError(t, err)
	assert.Same(t, TensorImpl(grad), cur)
}

func TestMutAccGradReturnsTheStoredGradient(t *testing.T) {
	v := newTestVM(t)
	tt := newTestTensor(t, v, Shape{2})
	tt.EnsureAutograd()

	grad := newTestTensor(t, v, Shape{2})
	require.NoError(t, tt.SetAccGrad(grad))
	got, err := tt.MutAccGrad()
	require.NoError(t, err)
	assert.Same(t, TensorImpl(grad), got)
}
