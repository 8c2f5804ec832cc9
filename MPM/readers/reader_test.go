package readers

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/gompm/MPM/material"
	"github.com/notargets/gompm/MPM/mesh"
	"github.com/notargets/gompm/types"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

const asciiMesh2D = `! two unit squares
6 2
0 0
1 0
2 0
0 1
1 1
2 1
0 1 4 3
1 2 5 4
`

func TestRegistry(t *testing.T) {
	assert.Equal(t, []string{"Ascii2D", "Ascii3D", "Gmsh2D", "Gmsh3D"}, Names())
	for _, name := range Names() {
		r, err := New(name)
		require.NoError(t, err)
		assert.Equal(t, name, r.Name())
	}
	_, err := New("Vtk2D")
	assert.ErrorIs(t, err, mesh.ErrInvalidValue)
	cr, err := Lookup("Ascii3D")
	require.NoError(t, err)
	assert.NotNil(t, cr)
}

func TestAsciiMesh(t *testing.T) {
	r, _ := New("Ascii2D")
	md, err := r.ReadMesh(writeTemp(t, "mesh.txt", asciiMesh2D))
	require.NoError(t, err)
	assert.Equal(t, "ED2Q4", md.Element)
	assert.Len(t, md.Coordinates, 6)
	assert.Equal(t, []float64{2, 1}, md.Coordinates[5])
	assert.Equal(t, [][]types.Index{{0, 1, 4, 3}, {1, 2, 5, 4}}, md.Cells)

	m, err := mesh.NewMesh(0, 2)
	require.NoError(t, err)
	require.NoError(t, md.Build(m, types.N_2D))
	assert.Equal(t, 6, m.NNodes())
	assert.Equal(t, 2, m.NCells())
	c, _ := m.Cell(0)
	assert.Equal(t, []types.Index{1}, c.Neighbours())

	for name, content := range map[string]string{
		"short":     "3 1\n0 0\n1 0\n",
		"bad node":  "3 1\n0 0\n1 0\n0 x\n0 1 2\n",
		"bad cell":  "3 1\n0 0\n1 0\n0 1\n0 1 7\n",
		"no shape":  "3 1\n0 0\n1 0\n0 1\n0 1\n",
		"no header": "",
	} {
		_, err = r.ReadMesh(writeTemp(t, "bad.txt", content))
		assert.Error(t, err, name)
	}
	_, err = r.ReadMesh(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}

func TestAsciiParticleFiles(t *testing.T) {
	r, _ := New("Ascii2D")
	coords, err := r.ReadParticles(writeTemp(t, "particles.txt", "3\n0.5 0.5\n1.5 0.5\n# outside\n9 9\n"))
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{0.5, 0.5}, {1.5, 0.5}, {9, 9}}, coords)
	_, err = r.ReadParticles(writeTemp(t, "short.txt", "3\n0.5 0.5\n"))
	assert.Error(t, err)

	volumes, err := r.ReadParticlesVolumes(writeTemp(t, "volumes.txt", "0 0.25\n2 0.5\n"))
	require.NoError(t, err)
	assert.Equal(t, []mesh.ParticleVolume{{Particle: 0, Volume: 0.25}, {Particle: 2, Volume: 0.5}}, volumes)

	pcs, err := r.ReadParticlesCells(writeTemp(t, "cells.txt", "0 1\n1 0\n"))
	require.NoError(t, err)
	assert.Equal(t, []mesh.ParticleCell{{Particle: 0, Cell: 1}, {Particle: 1, Cell: 0}}, pcs)
	_, err = r.ReadParticlesCells(writeTemp(t, "cells.txt", "0 -1\n"))
	assert.ErrorIs(t, err, mesh.ErrInvalidValue)

	stresses, err := r.ReadParticlesStresses(writeTemp(t, "stresses.txt", "1\n1 2 3 4 5 6\n"))
	require.NoError(t, err)
	assert.Equal(t, [][6]float64{{1, 2, 3, 4, 5, 6}}, stresses)
	_, err = r.ReadParticlesStresses(writeTemp(t, "stresses.txt", "1\n1 2 3\n"))
	assert.ErrorIs(t, err, mesh.ErrInvalidValue)

	vcs, err := r.ReadVelocityConstraints(writeTemp(t, "vel.txt", "! node dir velocity\n0 1 0.0\n3 0 -1.5\n"))
	require.NoError(t, err)
	assert.Equal(t, []mesh.NodalVelocityConstraint{{Node: 0, Dir: 1}, {Node: 3, Dir: 0, Velocity: -1.5}}, vcs)

	fcs, err := r.ReadFrictionConstraints(writeTemp(t, "friction.txt", "1 1 -1 0.3\n"))
	require.NoError(t, err)
	assert.Equal(t, []mesh.NodalFrictionConstraint{{Node: 1, Dir: 1, Sign: -1, Friction: 0.3}}, fcs)

	forces, err := r.ReadForces(writeTemp(t, "forces.txt", "5 0 12.5\n"))
	require.NoError(t, err)
	assert.Equal(t, []mesh.NodalForce{{Node: 5, Dir: 0, Force: 12.5}}, forces)

	angles, err := r.ReadEulerAngles(writeTemp(t, "euler.txt", "2 0.1 0.2\n4 0 0\n"))
	require.NoError(t, err)
	assert.Equal(t, map[types.Index][]float64{2: {0.1, 0.2}, 4: {0, 0}}, angles)
	_, err = r.ReadEulerAngles(writeTemp(t, "euler.txt", "2 0.1 0.2\n2 0 0\n"))
	assert.ErrorIs(t, err, mesh.ErrInvalidValue)
}

const gmshMesh2D = `$MeshFormat
2.2 0 8
$EndMeshFormat
$PhysicalNames
2
1 7 "bottom"
2 3 "soil"
$EndPhysicalNames
$Nodes
6
10 0 0 0
11 1 0 0
12 2 0 0
13 0 1 0
14 1 1 0
15 2 1 0
$EndNodes
$Elements
5
1 1 2 7 1 10 11
2 1 2 7 1 11 12
3 15 2 9 2 13
4 3 2 3 1 10 11 14 13
5 3 2 5 1 11 12 15 14
$EndElements
`

func TestGmshMesh(t *testing.T) {
	r, _ := New("Gmsh2D")
	md, err := r.ReadMesh(writeTemp(t, "mesh.msh", gmshMesh2D))
	require.NoError(t, err)
	assert.Equal(t, "ED2Q4", md.Element)
	assert.Equal(t, [][]types.Index{{0, 1, 4, 3}, {1, 2, 5, 4}}, md.Cells)
	assert.Equal(t, []float64{1, 1}, md.Coordinates[4])
	assert.Equal(t, map[int][]types.Index{3: {0}, 5: {1}}, md.CellSets)
	assert.Equal(t, map[int][]types.Index{7: {0, 1, 2}, 9: {3}}, md.NodeSets)

	m, err := mesh.NewMesh(0, 2)
	require.NoError(t, err)
	require.NoError(t, md.Build(m, types.N_2D))
	bottom, err := m.NodeSet(7)
	require.NoError(t, err)
	assert.Len(t, bottom, 3)
	soil, err := m.CellSet(3)
	require.NoError(t, err)
	assert.Equal(t, types.Index(0), soil[0].ID())

	mt, err := material.New(1, "LinearElastic2D", 2000, map[string]float64{"youngs_modulus": 1.e7, "poisson_ratio": 0.25})
	require.NoError(t, err)
	require.NoError(t, m.InitialiseMaterialModels([]*material.Material{mt}))
	unlocated, err := m.GenerateParticles(mesh.Generator{
		Type: "file", Reader: "Gmsh2D", File: writeTemp(t, "particles.txt", "2\n0.5 0.5\n1.25 0.75\n"),
		ParticleType: types.P_2D, MaterialID: 1,
	}, Lookup)
	require.NoError(t, err)
	assert.Empty(t, unlocated)
	assert.Equal(t, []mesh.ParticleCell{{Particle: 0, Cell: 0}, {Particle: 1, Cell: 1}}, m.ParticlesCells())

	for name, content := range map[string]string{
		"binary":    "$MeshFormat\n2.2 1 8\n$EndMeshFormat\n",
		"version 4": "$MeshFormat\n4.1 0 8\n$EndMeshFormat\n",
		"no format": "$Nodes\n1\n1 0 0 0\n$EndNodes\n",
		"no cells":  "$MeshFormat\n2.2 0 8\n$EndMeshFormat\n$Nodes\n1\n1 0 0 0\n$EndNodes\n",
		"bad node":  "$MeshFormat\n2.2 0 8\n$EndMeshFormat\n$Nodes\n1\n1 0 0 0\n$EndNodes\n$Elements\n1\n1 3 0 1 2 3 4\n$EndElements\n",
		"truncated": "$MeshFormat\n2.2 0 8\n$EndMeshFormat\n$Nodes\n2\n1 0 0 0\n",
	} {
		_, err = r.ReadMesh(writeTemp(t, "bad.msh", content))
		assert.Error(t, err, name)
	}
}

func TestGmshHexahedra(t *testing.T) {
	content := `$MeshFormat
2.2 0 8
$EndMeshFormat
$Nodes
8
1 0 0 0
2 1 0 0
3 1 1 0
4 0 1 0
5 0 0 1
6 1 0 1
7 1 1 1
8 0 1 1
$EndNodes
$Elements
2
1 3 2 4 1 1 2 3 4
2 5 2 1 1 1 2 3 4 5 6 7 8
$EndElements
`
	r, _ := New("Gmsh3D")
	md, err := r.ReadMesh(writeTemp(t, "cube.msh", content))
	require.NoError(t, err)
	assert.Equal(t, "ED3H8", md.Element)
	assert.Equal(t, [][]types.Index{{0, 1, 2, 3, 4, 5, 6, 7}}, md.Cells)
	assert.Equal(t, map[int][]types.Index{4: {0, 1, 2, 3}}, md.NodeSets)
	assert.Equal(t, map[int][]types.Index{1: {0}}, md.CellSets)
}
