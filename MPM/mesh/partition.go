package mesh

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/notargets/gompm/internal/logging"
	"github.com/notargets/gompm/types"
)

// AssignCellRanks sets the owning rank per cell id from an external partitioner, all or none
func (m *Mesh) AssignCellRanks(ranks map[types.Index]int) (err error) {
	size := m.comm.Size()
	for cid, r := range ranks {
		if !m.cellMap.Has(cid) {
			err = fmt.Errorf("cell %d: %w", cid, ErrNotFound)
		} else if r < 0 || r >= size {
			err = fmt.Errorf("cell %d: %w: rank %d of %d", cid, ErrInvalidValue, r, size)
		}
		if err != nil {
			m.warn("assign cell ranks failed", err)
			return
		}
	}
	for cid, r := range ranks {
		c, _ := m.cellMap.Find(cid)
		c.AssignRank(r)
	}
	return
}

/*
FindDomainSharedNodes gives each node the ranks of its incident cells. Nodes with more
than one rank are domain shared and numbered 0..N-1 in node id order. Every rank holds
the whole topology, so ghost ids agree across ranks.
*/
func (m *Mesh) FindDomainSharedNodes() (err error) {
	if !m.neighboursComputed {
		err = fmt.Errorf("shared nodes: %w", ErrNeighboursNotComputed)
		m.warn("find shared nodes failed", err)
		return
	}
	m.sharedNodes = m.sharedNodes[:0]
	for _, nid := range m.nodes.Ids() {
		n, _ := m.nodeMap.Find(nid)
		n.ClearRanks()
		for _, cid := range m.nodeCells[nid] {
			c, _ := m.cellMap.Find(cid)
			n.AssignRank(c.Rank())
		}
		if n.IsShared() {
			n.AssignGhostID(len(m.sharedNodes))
			m.sharedNodes = append(m.sharedNodes, n)
		}
	}
	m.met.SetCounts(m.Rank(), m.NNodes(), m.NCells(), m.NParticles(), len(m.sharedNodes))
	m.log.Debug(context.Background(), "domain shared nodes", logging.Int("shared", len(m.sharedNodes)))
	return
}

func sortedRanks(set map[int]bool) (ranks []int) {
	for r := range set {
		ranks = append(ranks, r)
	}
	sort.Ints(ranks)
	return
}

/*
FindGhostBoundaryCells records the cells across the rank boundary. A ghost cell is a
cell owned by another rank next to a local cell: particles that move into it are sent
to its owner. A local ghost cell is a local cell next to another rank's cells, it
receives the particles those ranks send.
*/
func (m *Mesh) FindGhostBoundaryCells() (err error) {
	if !m.neighboursComputed {
		err = fmt.Errorf("ghost cells: %w", ErrNeighboursNotComputed)
		m.warn("find ghost cells failed", err)
		return
	}
	me := m.Rank()
	m.ghostCells.Clear()
	m.localGhostCells.Clear()
	clear(m.ghostCellRanks)
	clear(m.localGhostCellRanks)
	for _, cid := range m.cells.Ids() {
		c, _ := m.cellMap.Find(cid)
		foreign := make(map[int]bool)
		touchesLocal := false
		for _, nid := range c.Neighbours() {
			nb, _ := m.cellMap.Find(nid)
			if nb.Rank() == me {
				touchesLocal = true
			} else {
				foreign[nb.Rank()] = true
			}
		}
		switch {
		case c.Rank() != me && touchesLocal:
			_ = m.ghostCells.Add(c, false)
			m.ghostCellRanks[cid] = []int{c.Rank()}
		case c.Rank() == me && len(foreign) > 0:
			_ = m.localGhostCells.Add(c, false)
			m.localGhostCellRanks[cid] = sortedRanks(foreign)
		}
	}
	m.log.Debug(context.Background(), "ghost cells",
		logging.Int("ghost", m.ghostCells.Size()), logging.Int("localGhost", m.localGhostCells.Size()))
	return
}

// GhostCellRanks returns the ranks particles in ghost cell id go to
func (m *Mesh) GhostCellRanks(id types.Index) []int { return m.ghostCellRanks[id] }

// LocalGhostCellRanks returns the ranks local ghost cell id receives particles from
func (m *Mesh) LocalGhostCellRanks(id types.Index) []int { return m.localGhostCellRanks[id] }

// PartitionStats summarises the cell to rank assignment
type PartitionStats struct {
	NRanks      int
	Cells       []int         // cells per rank
	Neighbours  []map[int]int // per rank, neighbour rank to adjacent cell pairs
	CutPairs    int           // neighbouring cell pairs on different ranks
	SharedNodes int
	Imbalance   float64 // max load over mean load minus one
}

// PartitionStatistics measures the current decomposition of the cells
func (m *Mesh) PartitionStatistics() (ps PartitionStats, err error) {
	if !m.neighboursComputed {
		return ps, fmt.Errorf("partition statistics: %w", ErrNeighboursNotComputed)
	}
	ps.NRanks = m.comm.Size()
	ps.Cells = make([]int, ps.NRanks)
	ps.Neighbours = make([]map[int]int, ps.NRanks)
	for r := range ps.Neighbours {
		ps.Neighbours[r] = make(map[int]int)
	}
	for _, c := range m.cells.Items() {
		ps.Cells[c.Rank()]++
		for _, nid := range c.Neighbours() {
			if nid <= c.ID() {
				continue
			}
			nb, _ := m.cellMap.Find(nid)
			if nb.Rank() != c.Rank() {
				ps.CutPairs++
				ps.Neighbours[c.Rank()][nb.Rank()]++
				ps.Neighbours[nb.Rank()][c.Rank()]++
			}
		}
	}
	for _, n := range m.nodes.Items() {
		if n.IsShared() {
			ps.SharedNodes++
		}
	}
	var (
		maxLoad int
		avgLoad float64
	)
	for _, nc := range ps.Cells {
		avgLoad += float64(nc)
		maxLoad = int(math.Max(float64(maxLoad), float64(nc)))
	}
	avgLoad /= float64(ps.NRanks)
	if avgLoad > 0 {
		ps.Imbalance = float64(maxLoad)/avgLoad - 1
	}
	m.log.Info(context.Background(), "partition analysis",
		logging.Int("ranks", ps.NRanks), logging.Any("cells", ps.Cells),
		logging.Int("cutPairs", ps.CutPairs), logging.Int("sharedNodes", ps.SharedNodes),
		logging.Float("imbalance", ps.Imbalance))
	return
}
