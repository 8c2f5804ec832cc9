package mesh

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/gompm/MPM/comm"
	"github.com/notargets/gompm/types"
)

// runMeshes calls fn once per rank concurrently and collects the errors
func runMeshes(t *testing.T, meshes []*Mesh, fn func(ctx context.Context, m *Mesh) error) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	var (
		wg   sync.WaitGroup
		errs = make([]error, len(meshes))
	)
	for r, m := range meshes {
		wg.Add(1)
		go func(r int, m *Mesh) {
			defer wg.Done()
			errs[r] = fn(ctx, m)
		}(r, m)
	}
	wg.Wait()
	for r, err := range errs {
		assert.NoError(t, err, "rank %d", r)
	}
}

// decompose builds one full copy of the grid per rank with the given cell ranks
func decompose(t *testing.T, n []int, ranks []comm.Communicator, cellRanks []int, opts ...Option) (meshes []*Mesh) {
	for _, c := range ranks {
		m := newGridMesh(t, n, append([]Option{WithCommunicator(c), WithParticleType(types.P_2D)}, opts...)...)
		assign := make(map[types.Index]int, len(cellRanks))
		for cid, r := range cellRanks {
			assign[types.Index(cid)] = r
		}
		require.NoError(t, m.AssignCellRanks(assign))
		require.NoError(t, m.FindDomainSharedNodes())
		require.NoError(t, m.FindGhostBoundaryCells())
		meshes = append(meshes, m)
	}
	return
}

func TestDecomposition(t *testing.T) {
	meshes := decompose(t, []int{3, 2}, comm.NewLocalWorld(2), []int{0, 0, 1, 0, 1, 1})
	m := meshes[0]
	assert.ErrorIs(t, m.AssignCellRanks(map[types.Index]int{0: 2}), ErrInvalidValue)
	assert.ErrorIs(t, m.AssignCellRanks(map[types.Index]int{9: 0}), ErrNotFound)
	// nodes (2,0), (1,1), (2,1) and (1,2) sit between the two ranks
	var shared []types.Index
	for k, n := range m.SharedNodes() {
		assert.Equal(t, k, n.GhostID())
		shared = append(shared, n.ID())
	}
	assert.Equal(t, []types.Index{2, 5, 6, 9}, shared)
	assert.Equal(t, 4, meshes[1].NSharedNodes())

	// every rank 1 cell touches rank 0
	assert.Equal(t, 3, m.NGhostCells())
	assert.Equal(t, []int{1}, m.GhostCellRanks(2))
	assert.Equal(t, 3, m.NLocalGhostCells())
	assert.Equal(t, []int{1}, m.LocalGhostCellRanks(0))

	ps, err := m.PartitionStatistics()
	require.NoError(t, err)
	assert.Equal(t, []int{3, 3}, ps.Cells)
	assert.Equal(t, 4, ps.SharedNodes)
	assert.Equal(t, 0., ps.Imbalance)
	assert.Greater(t, ps.CutPairs, 0)

	unready, err := NewMesh(0, 2)
	require.NoError(t, err)
	assert.ErrorIs(t, unready.FindDomainSharedNodes(), ErrNeighboursNotComputed)
	assert.ErrorIs(t, unready.FindGhostBoundaryCells(), ErrNeighboursNotComputed)
}

func testHaloExchange(t *testing.T, ranks []comm.Communicator, halo HaloExchange) {
	// one cell per rank around the centre node 4
	meshes := decompose(t, []int{2, 2}, ranks, []int{0, 1, 2, 3}, WithHaloExchange(halo))
	for r, m := range meshes {
		c, _ := m.Cell(types.Index(r))
		for _, n := range c.Nodes() {
			require.NoError(t, n.UpdateMass(types.SolidPhase, float64(r+1)))
			require.NoError(t, n.UpdateMomentum(types.SolidPhase, []float64{float64(r), 1}))
		}
	}
	runMeshes(t, meshes, func(ctx context.Context, m *Mesh) (err error) {
		if err = m.HaloExchangeMass(ctx, types.SolidPhase); err != nil {
			return
		}
		return m.HaloExchangeMomentum(ctx, types.SolidPhase)
	})
	for r, m := range meshes {
		centre, _ := m.Node(4)
		assert.Equal(t, 10., centre.Mass(types.SolidPhase), "rank %d", r)
		assert.Equal(t, []float64{6, 4}, centre.Momentum(types.SolidPhase), "rank %d", r)
	}
	// node 1 lies between cells 0 and 1
	for _, r := range []int{0, 1} {
		n, _ := meshes[r].Node(1)
		assert.Equal(t, 3., n.Mass(types.SolidPhase))
		assert.Equal(t, []float64{1, 2}, n.Momentum(types.SolidPhase))
	}
	// corners belong to one rank and keep their value
	n, _ := meshes[3].Node(8)
	assert.Equal(t, 4., n.Mass(types.SolidPhase))
}

func TestHaloExchange(t *testing.T) {
	for _, name := range []string{"p2p", "allreduce"} {
		t.Run(name, func(t *testing.T) {
			halo, err := NewHaloExchange(name)
			require.NoError(t, err)
			ranks := comm.NewLocalWorld(4)
			testHaloExchange(t, ranks, halo)
			for _, c := range ranks {
				assert.NoError(t, c.Close())
			}
		})
	}
	_, err := NewHaloExchange("butterfly")
	assert.ErrorIs(t, err, ErrInvalidValue)
}

func TestHaloExchangeGRPC(t *testing.T) {
	ranks, err := comm.NewGRPCWorld(4, nil)
	require.NoError(t, err)
	defer func() {
		for _, c := range ranks {
			_ = c.Close()
		}
	}()
	testHaloExchange(t, ranks, PointToPointHalo{})
}

func TestHaloExchangeSingleRank(t *testing.T) {
	m := newGridMesh(t, []int{1, 1})
	n, _ := m.Node(0)
	require.NoError(t, n.UpdateMass(types.SolidPhase, 2))
	require.NoError(t, m.HaloExchangeMass(context.Background(), types.SolidPhase))
	assert.Equal(t, 2., n.Mass(types.SolidPhase))
}

func TestHaloExchangeMissingPhase(t *testing.T) {
	m := newGridMesh(t, []int{1, 1})
	n, _ := m.Node(0)
	assert.ErrorIs(t, n.UpdateMass(types.LiquidPhase, 1), ErrInvalidValue)
	assert.ErrorIs(t, n.AssignMomentum(-1, []float64{1, 1}), ErrInvalidValue)
	assert.ErrorIs(t, n.ComputeAcceleration(types.LiquidPhase), ErrInvalidValue)
	assert.False(t, n.Status())
	// refused before any message is posted, so ranks called one after another return
	for _, dm := range decompose(t, []int{2, 1}, comm.NewLocalWorld(2), []int{0, 1}) {
		ctx := context.Background()
		assert.ErrorIs(t, dm.HaloExchangeMass(ctx, types.LiquidPhase), ErrInvalidValue)
		assert.ErrorIs(t, dm.HaloExchangeMomentum(ctx, types.LiquidPhase), ErrInvalidValue)
	}
}

func addParticle(t *testing.T, m *Mesh, id types.Index, x []float64) {
	p, err := NewParticle(id, types.P_2D, x)
	require.NoError(t, err)
	mt, _ := m.Material(1)
	require.NoError(t, p.AssignMaterial(mt))
	require.NoError(t, p.AssignVolume(0.25))
	require.NoError(t, p.ComputeMass())
	require.NoError(t, m.AddParticle(p, true))
	require.True(t, m.LocateParticle(p))
}

func testMigration(t *testing.T, ranks []comm.Communicator) {
	meshes := decompose(t, []int{4, 1}, ranks, []int{0, 0, 1, 1})
	addParticle(t, meshes[0], 0, []float64{0.5, 0.5})
	addParticle(t, meshes[0], 1, []float64{1.5, 0.5})
	addParticle(t, meshes[0], 2, []float64{0.2, 0.5})
	addParticle(t, meshes[1], 3, []float64{2.5, 0.5})
	addParticle(t, meshes[1], 4, []float64{3.5, 0.5})
	p1, _ := meshes[0].Particle(1)
	p1.AssignStress([6]float64{7, 8, 0, 9, 0, 0})

	move := map[types.Index][]float64{
		0: {3.5, 0.25}, // past the ghost cell
		1: {2.5, 0.75}, // into the ghost cell
		4: {1.5, 0.5},
	}
	for _, m := range meshes {
		for _, p := range m.Particles() {
			if x, ok := move[p.ID()]; ok {
				require.NoError(t, p.AssignCoordinates(x))
			}
		}
		assert.Empty(t, m.LocateParticles())
	}
	runMeshes(t, meshes, func(ctx context.Context, m *Mesh) error {
		return m.TransferNonRankParticles(ctx)
	})

	assert.Equal(t, []types.Index{2, 4}, meshes[0].particles.Ids())
	assert.Equal(t, []types.Index{0, 1, 3}, meshes[1].particles.Ids())
	for r, m := range meshes {
		checkMapsInSync(t, m)
		for _, p := range m.Particles() {
			require.NotNil(t, p.Cell())
			assert.Equal(t, r, p.Cell().Rank())
			assert.Equal(t, 250., p.Mass())
		}
		var resident int
		for _, c := range m.Cells() {
			resident += c.NParticles()
		}
		assert.Equal(t, m.NParticles(), resident)
	}
	p1, _ = meshes[1].Particle(1)
	assert.Equal(t, [6]float64{7, 8, 0, 9, 0, 0}, p1.Stress())
	assert.Equal(t, types.Index(2), p1.CellID())
	v, _ := p1.StateVariable("cohesion")
	assert.Equal(t, 100., v)

	// nothing left to move
	runMeshes(t, meshes, func(ctx context.Context, m *Mesh) error {
		return m.TransferNonRankParticles(ctx)
	})
	assert.Equal(t, 5, meshes[0].NParticles()+meshes[1].NParticles())
}

func TestTransferNonRankParticles(t *testing.T) {
	ranks := comm.NewLocalWorld(2)
	testMigration(t, ranks)
	for _, c := range ranks {
		assert.NoError(t, c.Close())
	}
}

func TestTransferNonRankParticlesGRPC(t *testing.T) {
	ranks, err := comm.NewGRPCWorld(2, nil)
	require.NoError(t, err)
	defer func() {
		for _, c := range ranks {
			_ = c.Close()
		}
	}()
	testMigration(t, ranks)
}

func TestTransferRenumbersTakenIDs(t *testing.T) {
	meshes := decompose(t, []int{2, 1}, comm.NewLocalWorld(2), []int{0, 1})
	addParticle(t, meshes[0], 0, []float64{0.5, 0.5})
	addParticle(t, meshes[1], 0, []float64{1.5, 0.5})
	p, _ := meshes[0].Particle(0)
	require.NoError(t, p.AssignCoordinates([]float64{1.25, 0.5}))
	assert.Empty(t, meshes[0].LocateParticles())
	runMeshes(t, meshes, func(ctx context.Context, m *Mesh) error {
		return m.TransferNonRankParticles(ctx)
	})

	assert.Equal(t, 0, meshes[0].NParticles())
	assert.Equal(t, []types.Index{0, 1}, meshes[1].particles.Ids())
	checkMapsInSync(t, meshes[1])
	moved, ok := meshes[1].Particle(1)
	require.True(t, ok)
	assert.Equal(t, []float64{1.25, 0.5}, moved.Coordinates())
	require.NotNil(t, moved.Cell())
	assert.Equal(t, types.Index(1), moved.CellID())
	c, _ := meshes[1].Cell(1)
	assert.Equal(t, 2, c.NParticles())
}

func TestRemoveAllNonRankParticles(t *testing.T) {
	meshes := decompose(t, []int{2, 1}, comm.NewLocalWorld(2), []int{0, 1})
	m := meshes[0]
	addParticle(t, m, 0, []float64{0.5, 0.5})
	addParticle(t, m, 1, []float64{1.5, 0.5})
	assert.Equal(t, 1, m.RemoveAllNonRankParticles())
	assert.Equal(t, []types.Index{0}, m.particles.Ids())
}
