package partition

import (
	"fmt"
	"sort"

	"github.com/notargets/gompm/MPM/mesh"
	"github.com/notargets/gompm/types"
	"github.com/notargets/gompm/utils"
)

// Partitioner assigns an owning rank in [0, nranks) to every cell of m
type Partitioner interface {
	Name() string
	Partition(m *mesh.Mesh, nranks int) (map[types.Index]int, error)
}

var registry = map[string]func() Partitioner{
	"block":      func() Partitioner { return Block{} },
	"coordinate": func() Partitioner { return Coordinate{} },
}

func Names() (names []string) {
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return
}

// New returns the partitioner called name, "" being block
func New(name string) (Partitioner, error) {
	if name == "" {
		name = "block"
	}
	ctor, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: partitioner %q, available: %v", mesh.ErrInvalidValue, name, Names())
	}
	return ctor(), nil
}

func checkRanks(m *mesh.Mesh, nranks int) error {
	if nranks < 1 || nranks > m.NCells() {
		return fmt.Errorf("%w: %d ranks for %d cells", mesh.ErrInvalidValue, nranks, m.NCells())
	}
	return nil
}

func sortedCells(m *mesh.Mesh) (cells []*mesh.Cell) {
	cells = append(cells, m.Cells()...)
	sort.Slice(cells, func(i, j int) bool { return cells[i].ID() < cells[j].ID() })
	return
}

/*
Decompose partitions the cells of m over the ranks of its communicator, then finds the
shared nodes and the ghost cells. Every rank must hold the same mesh and use the same
deterministic partitioner so the ranks agree on the result.
*/
func Decompose(m *mesh.Mesh, p Partitioner) (err error) {
	ranks, err := p.Partition(m, m.Communicator().Size())
	if err != nil {
		return fmt.Errorf("%s partition: %w", p.Name(), err)
	}
	if err = m.AssignCellRanks(ranks); err != nil {
		return
	}
	if err = m.FindDomainSharedNodes(); err != nil {
		return
	}
	return m.FindGhostBoundaryCells()
}

// Block gives each rank a contiguous run of cells in id order
type Block struct{}

func (Block) Name() string { return "block" }

func (Block) Partition(m *mesh.Mesh, nranks int) (ranks map[types.Index]int, err error) {
	if err = checkRanks(m, nranks); err != nil {
		return
	}
	cells := sortedCells(m)
	pm := utils.NewPartitionMap(nranks, len(cells))
	ranks = make(map[types.Index]int, len(cells))
	for k, c := range cells {
		r, _, _ := pm.GetBucket(k)
		ranks[c.ID()] = r
	}
	return
}

// Coordinate bisects the cell centroids recursively across their longest extent
type Coordinate struct{}

func (Coordinate) Name() string { return "coordinate" }

func (Coordinate) Partition(m *mesh.Mesh, nranks int) (ranks map[types.Index]int, err error) {
	if err = checkRanks(m, nranks); err != nil {
		return
	}
	ranks = make(map[types.Index]int, m.NCells())
	bisect(sortedCells(m), 0, nranks, m.Dim(), ranks)
	return
}

func bisect(cells []*mesh.Cell, first, nranks, dim int, ranks map[types.Index]int) {
	if nranks == 1 {
		for _, c := range cells {
			ranks[c.ID()] = first
		}
		return
	}
	var (
		axis  int
		width = -1.
	)
	for i := 0; i < dim; i++ {
		lo, hi := cells[0].Centroid()[i], cells[0].Centroid()[i]
		for _, c := range cells {
			x := c.Centroid()[i]
			if x < lo {
				lo = x
			}
			if x > hi {
				hi = x
			}
		}
		if hi-lo > width {
			axis, width = i, hi-lo
		}
	}
	sort.Slice(cells, func(i, j int) bool {
		xi, xj := cells[i].Centroid()[axis], cells[j].Centroid()[axis]
		if xi != xj {
			return xi < xj
		}
		return cells[i].ID() < cells[j].ID()
	})
	nleft := nranks / 2
	split := len(cells) * nleft / nranks
	bisect(cells[:split], first, nleft, dim, ranks)
	bisect(cells[split:], first+nleft, nranks-nleft, dim, ranks)
}
