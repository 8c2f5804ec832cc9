package material

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaterial(t *testing.T) {
	tests := []struct {
		name    string
		mtype   string
		density float64
		props   map[string]float64
		wantErr bool
	}{
		{"elastic", "LinearElastic2D", 1000, map[string]float64{"youngs_modulus": 1.e6, "poisson_ratio": 0.3}, false},
		{"unknown type", "Hyperelastic", 1000, nil, true},
		{"negative density", "LinearElastic3D", -1, map[string]float64{"youngs_modulus": 1.e6, "poisson_ratio": 0.3}, true},
		{"missing property", "MohrCoulomb2D", 1800, map[string]float64{"youngs_modulus": 1.e6, "poisson_ratio": 0.3}, true},
		{"mohr coulomb", "MohrCoulomb3D", 1800, map[string]float64{"youngs_modulus": 1.e6, "poisson_ratio": 0.3,
			"friction": 0.5, "dilation": 0.1, "cohesion": 2000}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := New(3, tt.mtype, tt.density, tt.props)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, uint32(3), m.ID)
			init := m.InitialStateVariables()
			assert.Equal(t, len(m.StateVariables()), len(init))
			for _, name := range m.StateVariables() {
				_, present := init[name]
				assert.True(t, present, name)
			}
		})
	}
	m, _ := New(0, "MohrCoulomb2D", 1800, map[string]float64{"youngs_modulus": 1.e6, "poisson_ratio": 0.3,
		"friction": 0.5, "dilation": 0.1, "cohesion": 2000})
	assert.Equal(t, 2, m.Dim())
	assert.Equal(t, 0.5, m.InitialStateVariables()["phi"])
	v, err := m.Property("cohesion")
	assert.NoError(t, err)
	assert.Equal(t, 2000., v)
	_, err = m.Property("density")
	assert.Error(t, err)
}
