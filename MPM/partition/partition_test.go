package partition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/gompm/MPM/comm"
	"github.com/notargets/gompm/MPM/mesh"
	"github.com/notargets/gompm/types"
)

func gridMesh(t *testing.T, n []int, opts ...mesh.Option) *mesh.Mesh {
	m, err := mesh.NewMesh(0, len(n), opts...)
	require.NoError(t, err)
	lo, hi := make([]float64, len(n)), make([]float64, len(n))
	for i := range n {
		hi[i] = float64(n[i])
	}
	g, err := mesh.StructuredGrid(n, lo, hi)
	require.NoError(t, err)
	require.NoError(t, g.Build(m, types.N_2D))
	return m
}

func TestRegistry(t *testing.T) {
	p, err := New("")
	require.NoError(t, err)
	assert.Equal(t, "block", p.Name())
	p, err = New("coordinate")
	require.NoError(t, err)
	assert.Equal(t, "coordinate", p.Name())
	_, err = New("scotch")
	assert.ErrorIs(t, err, mesh.ErrInvalidValue)
}

func TestBlock(t *testing.T) {
	m := gridMesh(t, []int{5, 1})
	ranks, err := Block{}.Partition(m, 2)
	require.NoError(t, err)
	assert.Equal(t, map[types.Index]int{0: 0, 1: 0, 2: 0, 3: 1, 4: 1}, ranks)
	_, err = Block{}.Partition(m, 0)
	assert.ErrorIs(t, err, mesh.ErrInvalidValue)
	_, err = Block{}.Partition(m, 6)
	assert.ErrorIs(t, err, mesh.ErrInvalidValue)
}

func TestCoordinate(t *testing.T) {
	m := gridMesh(t, []int{4, 2})
	ranks, err := Coordinate{}.Partition(m, 2)
	require.NoError(t, err)
	for cid, r := range ranks {
		want := 0
		if cid%4 >= 2 {
			want = 1
		}
		assert.Equal(t, want, r, "cell %d", cid)
	}

	m = gridMesh(t, []int{4, 4})
	ranks, err = Coordinate{}.Partition(m, 4)
	require.NoError(t, err)
	counts := make([]int, 4)
	for _, r := range ranks {
		counts[r]++
	}
	assert.Equal(t, []int{4, 4, 4, 4}, counts)
	assert.Equal(t, 0, ranks[0])
	assert.Equal(t, 1, ranks[12])
	assert.Equal(t, 2, ranks[3])
	assert.Equal(t, 3, ranks[15])

	ranks, err = Coordinate{}.Partition(m, 3)
	require.NoError(t, err)
	counts = make([]int, 3)
	for _, r := range ranks {
		counts[r]++
	}
	assert.Equal(t, []int{5, 5, 6}, counts)
}

func TestDecompose(t *testing.T) {
	world := comm.NewLocalWorld(2)
	m := gridMesh(t, []int{4, 1}, mesh.WithCommunicator(world[1]))
	require.NoError(t, Decompose(m, Block{}))
	assert.Equal(t, 2, m.NSharedNodes())
	assert.Equal(t, 1, m.NGhostCells())
	assert.Equal(t, 1, m.NLocalGhostCells())
	c, _ := m.Cell(3)
	assert.Equal(t, 1, c.Rank())

	single := gridMesh(t, []int{2, 1})
	require.NoError(t, Decompose(single, Coordinate{}))
	assert.Equal(t, 0, single.NSharedNodes())
}
