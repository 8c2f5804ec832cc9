package model

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/gompm/InputParameters"
	"github.com/notargets/gompm/MPM/comm"
	"github.com/notargets/gompm/MPM/mesh"
	"github.com/notargets/gompm/MPM/partition"
	"github.com/notargets/gompm/types"
)

var columnInput = []byte(`
Title: Column
Mesh:
  Dimension: 2
  Grid: {Cells: [4, 2], Lower: [0, 0], Upper: [4, 2]}
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

func parse(t *testing.T, data []byte) *InputParameters.InputParametersMPM {
	ip := &InputParameters.InputParametersMPM{}
	require.NoError(t, ip.Parse(data))
	return ip
}

func TestNewFromGrid(t *testing.T) {
	md, err := New(parse(t, columnInput))
	require.NoError(t, err)
	m := md.Mesh
	assert.Equal(t, 15, m.NNodes())
	assert.Equal(t, 8, m.NCells())
	assert.Equal(t, 32, m.NParticles())
	assert.Empty(t, md.Unlocated)
	n0, _ := m.Node(0)
	dirs, vals := n0.VelocityConstraints()
	assert.Equal(t, []int{1}, dirs)
	assert.Equal(t, []float64{0}, vals)

	ctx := context.Background()
	require.NoError(t, md.MapParticlesToNodes(ctx, 0))
	st, err := md.GatherStatistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 32, st.Particles)
	assert.Zero(t, st.Unlocated)
	assert.InDelta(t, 8000., st.ParticleMass, 1e-9)
	assert.InDelta(t, st.ParticleMass, st.NodalMass, 1e-9)
	assert.Equal(t, 15, st.ActiveNodes)

	// Node 4 is outside the cell of the traction particles and only sees the concentrated force
	n4, _ := m.Node(4)
	assert.InDeltaSlice(t, []float64{2, 0}, n4.ExternalForce(types.SolidPhase), 1e-12)
	var want, got float64
	for _, id := range []types.Index{0, 1} {
		p, _ := m.Particle(id)
		want += p.Traction()[1]
	}
	for _, n := range m.Nodes() {
		got += n.ExternalForce(types.SolidPhase)[1]
	}
	assert.Less(t, want, 0.)
	assert.InDelta(t, want, got, 1e-9)
}

func writeFile(t *testing.T, dir, name, content string) string {
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestNewFromFiles(t *testing.T) {
	dir := t.TempDir()
	meshFile := writeFile(t, dir, "mesh.txt", "6 2\n0 0\n1 0\n2 0\n0 1\n1 1\n2 1\n0 1 4 3\n1 2 5 4\n")
	writeFile(t, dir, "particles.txt", "3\n0.5 0.5\n1.5 0.5\n5 5\n")
	writeFile(t, dir, "volumes.txt", "0 0.5\n1 0.5\n")
	writeFile(t, dir, "velocity.txt", "0 0 0.\n3 0 0.\n")
	input := []byte(`
Mesh:
  Dimension: 2
  Reader: Ascii2D
  File: ` + meshFile + `
  VelocityConstraintsFile: ` + filepath.Join(dir, "velocity.txt") + `
Materials:
  - {ID: 0, Type: LinearElastic2D, Density: 2000, Properties: {youngs_modulus: 1.e6, poisson_ratio: 0.3}}
Particles:
  - Generator: file
    Reader: Ascii2D
    File: ` + filepath.Join(dir, "particles.txt") + `
    MaterialID: 0
    CellSet: -1
    VolumesFile: ` + filepath.Join(dir, "volumes.txt") + `
`)
	md, err := New(parse(t, input))
	require.NoError(t, err)
	assert.Equal(t, 2, md.Mesh.NCells())
	assert.Equal(t, 3, md.Mesh.NParticles())
	require.Len(t, md.Unlocated, 1)
	assert.Equal(t, types.Index(2), md.Unlocated[0].ID())
	p, _ := md.Mesh.Particle(0)
	assert.Equal(t, 0.5, p.Volume())
	n3, _ := md.Mesh.Node(3)
	dirs, _ := n3.VelocityConstraints()
	assert.Equal(t, []int{0}, dirs)

	require.NoError(t, md.MapParticlesToNodes(context.Background(), 0))
	st, err := md.GatherStatistics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, st.Particles)
	assert.Equal(t, 1, st.Unlocated)
}

func TestNewErrors(t *testing.T) {
	ip := parse(t, columnInput)
	ip.Mesh.Reader, ip.Mesh.File = "Ascii3D", "mesh.txt"
	_, err := New(ip)
	assert.ErrorIs(t, err, mesh.ErrDimensionMismatch)

	ip = parse(t, columnInput)
	ip.BoundaryConditions.VelocityConstraints[0].NodeSet = 7
	_, err = New(ip)
	assert.ErrorIs(t, err, mesh.ErrSetNotFound)

	ip = parse(t, columnInput)
	ip.Materials[0].Type = "MohrCoulomb3D"
	_, err = New(ip)
	assert.ErrorIs(t, err, mesh.ErrDimensionMismatch)
}

func distribute(t *testing.T, ranks []comm.Communicator, p partition.Partitioner) {
	ip := parse(t, columnInput)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	var (
		wg    sync.WaitGroup
		stats = make([]Statistics, len(ranks))
		local = make([]int, len(ranks))
		errs  = make([]error, len(ranks))
	)
	for r, c := range ranks {
		wg.Add(1)
		go func(r int, c comm.Communicator) {
			defer wg.Done()
			md, err := New(ip, mesh.WithCommunicator(c))
			if err == nil {
				err = md.Distribute(ctx, p)
			}
			if err == nil {
				err = md.MapParticlesToNodes(ctx, 0)
			}
			if err == nil {
				local[r] = md.Mesh.NParticles()
				stats[r], err = md.GatherStatistics(ctx)
			}
			errs[r] = err
		}(r, c)
	}
	wg.Wait()
	for r, err := range errs {
		require.NoError(t, err, "rank %d", r)
	}
	for r := range ranks {
		assert.Equal(t, 32/len(ranks), local[r], "rank %d", r)
		assert.Equal(t, 32, stats[r].Particles)
		assert.InDelta(t, 8000., stats[r].ParticleMass, 1e-9)
		assert.InDelta(t, 8000., stats[r].NodalMass, 1e-9)
		assert.Equal(t, 15, stats[r].ActiveNodes)
	}
}

func TestDistribute(t *testing.T) {
	distribute(t, comm.NewLocalWorld(2), partition.Block{})
	distribute(t, comm.NewLocalWorld(4), partition.Coordinate{})
}

func TestDistributeGRPC(t *testing.T) {
	ranks, err := comm.NewGRPCWorld(2, nil)
	require.NoError(t, err)
	defer func() {
		for _, c := range ranks {
			_ = c.Close()
		}
	}()
	distribute(t, ranks, partition.Coordinate{})
}
