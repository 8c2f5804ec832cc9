package InputParameters

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var columnInput = []byte(`
Title: Column
Mesh:
  Dimension: 2
  Grid:
    Cells: [4, 2]
    Lower: [0, 0]
    Upper: [4, 2]
  NodeSets:
    1: [0, 1, 2, 3, 4]
Materials:
  - ID: 1
    Type: MohrCoulomb2D
    Density: 1000
    Properties: {youngs_modulus: 1.e6, poisson_ratio: 0.3, friction: 30, dilation: 0, cohesion: 100}
Functions:
  - {ID: 0, Type: Linear, Xs: [0, 1], Fxs: [0.5, 1]}
Particles:
  - {Generator: gauss, MaterialID: 1, NPoints: 2, CellSet: -1}
ParticleSets:
  1: [0, 1]
BoundaryConditions:
  VelocityConstraints:
    - {NodeSet: 1, Dir: 1, Velocity: 0}
  Tractions:
    - {ParticleSet: 1, Dir: 1, Traction: -10, Function: 0}
  NodalForces:
    - {NodeSet: 1, Dir: 0, Force: 2}
`)

func TestParse(t *testing.T) {
	var ip InputParametersMPM
	require.NoError(t, ip.Parse(columnInput))
	assert.Equal(t, "Column", ip.Title)
	assert.Equal(t, 2, ip.Mesh.Dimension)
	assert.Equal(t, []int{4, 2}, ip.Mesh.Grid.Cells)
	assert.Equal(t, []uint64{0, 1, 2, 3, 4}, ip.Mesh.NodeSets[1])
	require.Len(t, ip.Materials, 1)
	assert.Equal(t, 0.3, ip.Materials[0].Properties["poisson_ratio"])
	assert.Equal(t, []float64{0.5, 1}, ip.Functions[0].Fxs)
	assert.Equal(t, -1, ip.Particles[0].CellSet)
	require.NotNil(t, ip.BoundaryConditions.Tractions[0].Function)
	assert.Equal(t, 0, *ip.BoundaryConditions.Tractions[0].Function)
	assert.Nil(t, ip.BoundaryConditions.NodalForces[0].Function)
	// Defaults
	assert.Equal(t, "N2D", ip.Mesh.NodeType)
	assert.Equal(t, "P2D", ip.Particles[0].ParticleType)
	assert.Equal(t, 1, ip.Partition.Ranks)
	assert.Equal(t, "block", ip.Partition.Partitioner)
	assert.Equal(t, "p2p", ip.Partition.Halo)
	assert.Equal(t, "binary", ip.Output.Format)
	ip.Print()
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"dimension", `
Mesh: {Dimension: 4}
`},
		{"no mesh source", `
Mesh: {Dimension: 2}
Materials: [{ID: 1, Type: LinearElastic2D, Density: 1}]
`},
		{"grid size", `
Mesh: {Dimension: 3, Grid: {Cells: [1, 1], Lower: [0, 0], Upper: [1, 1]}}
Materials: [{ID: 1, Type: LinearElastic3D, Density: 1}]
`},
		{"reader without file", `
Mesh: {Dimension: 2, Reader: Ascii2D}
Materials: [{ID: 1, Type: LinearElastic2D, Density: 1}]
`},
		{"undefined material", `
Mesh: {Dimension: 2, Grid: {Cells: [1, 1], Lower: [0, 0], Upper: [1, 1]}}
Materials: [{ID: 1, Type: LinearElastic2D, Density: 1}]
Particles: [{Generator: gauss, NPoints: 1, MaterialID: 2}]
`},
		{"unknown generator", `
Mesh: {Dimension: 2, Grid: {Cells: [1, 1], Lower: [0, 0], Upper: [1, 1]}}
Materials: [{ID: 1, Type: LinearElastic2D, Density: 1}]
Particles: [{Generator: random, MaterialID: 1}]
`},
		{"direction", `
Mesh: {Dimension: 2, Grid: {Cells: [1, 1], Lower: [0, 0], Upper: [1, 1]}}
Materials: [{ID: 1, Type: LinearElastic2D, Density: 1}]
BoundaryConditions: {VelocityConstraints: [{NodeSet: -1, Dir: 2, Velocity: 0}]}
`},
		{"friction sign", `
Mesh: {Dimension: 2, Grid: {Cells: [1, 1], Lower: [0, 0], Upper: [1, 1]}}
Materials: [{ID: 1, Type: LinearElastic2D, Density: 1}]
BoundaryConditions: {FrictionConstraints: [{NodeSet: -1, Dir: 1, Sign: 0, Friction: 0.3}]}
`},
		{"undefined function", `
Mesh: {Dimension: 2, Grid: {Cells: [1, 1], Lower: [0, 0], Upper: [1, 1]}}
Materials: [{ID: 1, Type: LinearElastic2D, Density: 1}]
BoundaryConditions: {Tractions: [{ParticleSet: -1, Dir: 1, Traction: 1, Function: 3}]}
`},
		{"output format", `
Mesh: {Dimension: 2, Grid: {Cells: [1, 1], Lower: [0, 0], Upper: [1, 1]}}
Materials: [{ID: 1, Type: LinearElastic2D, Density: 1}]
Output: {Format: hdf5}
`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ip InputParametersMPM
			assert.ErrorIs(t, ip.Parse([]byte(tt.input)), ErrInvalidInput)
		})
	}
}
