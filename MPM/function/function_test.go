package function

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinear(t *testing.T) {
	f, err := New(1, "Linear", []float64{0, 1, 3}, []float64{0, 10, 10})
	require.NoError(t, err)
	assert.Equal(t, 1, f.ID())
	assert.InDelta(t, 5., f.Value(0.5), 1.e-14)
	assert.InDelta(t, 10., f.Value(2), 1.e-14)
	assert.InDelta(t, 0., f.Value(-1), 1.e-14)
	assert.InDelta(t, 10., f.Value(30), 1.e-14)

	_, err = New(2, "Linear", []float64{0, 1}, []float64{0})
	assert.Error(t, err)
	_, err = New(2, "Linear", []float64{0}, []float64{0})
	assert.Error(t, err)
	_, err = New(2, "Linear", []float64{1, 0}, []float64{0, 1})
	assert.Error(t, err)
}

func TestConstant(t *testing.T) {
	f, err := New(4, "Constant", nil, []float64{2.5})
	require.NoError(t, err)
	assert.Equal(t, 2.5, f.Value(100))
	_, err = New(4, "Constant", nil, nil)
	assert.Error(t, err)
	_, err = New(4, "Sine", nil, nil)
	assert.Error(t, err)
}
