//go:build metis

package partition

import (
	"fmt"

	metis "github.com/notargets/go-metis"

	"github.com/notargets/gompm/MPM/mesh"
	"github.com/notargets/gompm/types"
)

func init() {
	registry["metis"] = func() Partitioner { return Metis{Objective: "vol", Imbalance: 1.05} }
}

/*
Metis partitions the cell adjacency graph. Cells weigh one plus the particles they
hold, so ranks balance the particle load rather than the cell count.
*/
type Metis struct {
	Objective string // "cut" or "vol"
	Imbalance float32
}

func (Metis) Name() string { return "metis" }

func (mp Metis) Partition(m *mesh.Mesh, nranks int) (ranks map[types.Index]int, err error) {
	if err = checkRanks(m, nranks); err != nil {
		return
	}
	cells := sortedCells(m)
	ranks = make(map[types.Index]int, len(cells))
	if nranks == 1 {
		for _, c := range cells {
			ranks[c.ID()] = 0
		}
		return
	}
	xadj, adjncy, vwgt := metisGraph(cells)

	opts := make([]int32, metis.NoOptions)
	if err = metis.SetDefaultOptions(opts); err != nil {
		return nil, fmt.Errorf("failed to set METIS options: %w", err)
	}
	if mp.Objective == "cut" {
		opts[metis.OptionObjType] = metis.ObjTypeCut
	} else {
		opts[metis.OptionObjType] = metis.ObjTypeVol
	}
	ubvec := []float32{mp.Imbalance}
	part, _, err := metis.PartGraphKwayWeighted(xadj, adjncy, vwgt, nil, int32(nranks), nil, ubvec, opts)
	if err != nil {
		return nil, fmt.Errorf("METIS partitioning failed: %w", err)
	}
	for k, c := range cells {
		ranks[c.ID()] = int(part[k])
	}
	return
}

// metisGraph converts the cell neighbours to CSR adjacency over the cell order given
func metisGraph(cells []*mesh.Cell) (xadj, adjncy, vwgt []int32) {
	index := make(map[types.Index]int32, len(cells))
	for k, c := range cells {
		index[c.ID()] = int32(k)
	}
	xadj = make([]int32, len(cells)+1)
	vwgt = make([]int32, len(cells))
	for k, c := range cells {
		for _, nid := range c.Neighbours() {
			if j, ok := index[nid]; ok {
				adjncy = append(adjncy, j)
			}
		}
		xadj[k+1] = int32(len(adjncy))
		vwgt[k] = int32(1 + c.NParticles())
	}
	return
}
