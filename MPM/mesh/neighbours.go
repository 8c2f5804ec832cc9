package mesh

import (
	"fmt"
	"sort"

	"github.com/james-bowman/sparse"

	"github.com/notargets/gompm/types"
)

// Segment is a cell face on the mesh boundary
type Segment struct {
	Cell  types.Index
	Nodes []types.Index // sorted
}

func faceKey(nids []types.Index) string {
	sorted := append([]types.Index(nil), nids...)
	sort.Sort(types.IndexSlice(sorted))
	return fmt.Sprintf("%v", sorted)
}

/*
ComputeCellNeighbours rebuilds the cell adjacency from scratch. Cells sharing at least one
node are neighbours: with the cell to node incidence matrix C, the non zeros of C*C^T
off the diagonal give every neighbour pair. The node to incident cells map and the face
to cells multimap are rebuilt in the same pass.
*/
func (m *Mesh) ComputeCellNeighbours() (err error) {
	var (
		cellIDs = m.cells.Ids()
		nodeIDs = m.nodes.Ids()
		nodeCol = make(map[types.Index]int, len(nodeIDs))
	)
	if len(cellIDs) == 0 {
		return fmt.Errorf("cell neighbours: %w", ErrEmptyInput)
	}
	for j, nid := range nodeIDs {
		nodeCol[nid] = j
	}
	clear(m.nodeCells)
	clear(m.faceCells)
	CToN := sparse.NewDOK(len(cellIDs), len(nodeIDs))
	for i, cid := range cellIDs {
		c, _ := m.cellMap.Find(cid)
		nids := c.NodeIDs()
		for _, nid := range nids {
			j, ok := nodeCol[nid]
			if !ok {
				return fmt.Errorf("cell neighbours: cell %d: node %d: %w", cid, nid, ErrNotFound)
			}
			CToN.Set(i, j, 1)
			m.nodeCells[nid] = append(m.nodeCells[nid], cid)
		}
		for _, face := range c.Element().Faces() {
			fn := make([]types.Index, len(face))
			for k, local := range face {
				fn[k] = nids[local]
			}
			key := faceKey(fn)
			m.faceCells[key] = append(m.faceCells[key], cid)
		}
	}
	C := CToN.ToCSR()
	CToC := sparse.NewCSR(len(cellIDs), len(cellIDs), nil, nil, nil)
	CToC.Mul(C, C.T())
	neighbours := make([][]types.Index, len(cellIDs))
	CToC.DoNonZero(func(i, j int, v float64) {
		if i != j && v > 0 {
			neighbours[i] = append(neighbours[i], cellIDs[j])
		}
	})
	for i, cid := range cellIDs {
		sort.Sort(types.IndexSlice(neighbours[i]))
		c, _ := m.cellMap.Find(cid)
		c.AssignNeighbours(neighbours[i])
	}
	m.neighboursComputed = true
	return
}

// NodeCells returns the ids of the cells incident to node id, ascending
func (m *Mesh) NodeCells(id types.Index) []types.Index { return m.nodeCells[id] }

// FaceCells returns the cells sharing the face made of nids, in any node order
func (m *Mesh) FaceCells(nids []types.Index) []types.Index { return m.faceCells[faceKey(nids)] }

// BoundarySegments lists the faces that belong to exactly one cell, ordered by cell id
func (m *Mesh) BoundarySegments() (segs []Segment) {
	for _, c := range m.cells.Items() {
		nids := c.NodeIDs()
		for _, face := range c.Element().Faces() {
			fn := make([]types.Index, len(face))
			for k, local := range face {
				fn[k] = nids[local]
			}
			if len(m.faceCells[faceKey(fn)]) == 1 {
				sort.Sort(types.IndexSlice(fn))
				segs = append(segs, Segment{Cell: c.ID(), Nodes: fn})
			}
		}
	}
	sort.SliceStable(segs, func(i, j int) bool { return segs[i].Cell < segs[j].Cell })
	return
}

func (m *Mesh) IterateOverBoundarySegments(fn func(s Segment)) {
	for _, s := range m.BoundarySegments() {
		fn(s)
	}
}
