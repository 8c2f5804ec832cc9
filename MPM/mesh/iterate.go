package mesh

import (
	"fmt"

	"github.com/notargets/gompm/types"
	"github.com/notargets/gompm/utils"
)

// Iteration runs fn over static chunks of at least grainSize entities in parallel and
// returns once every chunk is done. fn may only mutate the entity it is given, nodal
// accumulation goes through the locking Update methods.

func (m *Mesh) IterateOverNodes(fn func(n *Node)) {
	items := m.nodes.Items()
	utils.ParallelFor(len(items), m.grainSize, func(k int) { fn(items[k]) })
}

func (m *Mesh) IterateOverNodesPredicate(fn func(n *Node), pred func(n *Node) bool) {
	items := m.nodes.Items()
	utils.ParallelFor(len(items), m.grainSize, func(k int) {
		if pred(items[k]) {
			fn(items[k])
		}
	})
}

// FindActiveNodes rebuilds the active node list from the node status flags
func (m *Mesh) FindActiveNodes() {
	m.activeNodes.Clear()
	for _, n := range m.nodes.Items() {
		if n.Status() {
			_ = m.activeNodes.Add(n, false)
		}
	}
}

func (m *Mesh) IterateOverActiveNodes(fn func(n *Node)) {
	items := m.activeNodes.Items()
	utils.ParallelFor(len(items), m.grainSize, func(k int) { fn(items[k]) })
}

func (m *Mesh) IterateOverCells(fn func(c *Cell)) {
	items := m.cells.Items()
	utils.ParallelFor(len(items), m.grainSize, func(k int) { fn(items[k]) })
}

func (m *Mesh) IterateOverParticles(fn func(p *Particle)) {
	items := m.particles.Items()
	utils.ParallelFor(len(items), m.grainSize, func(k int) { fn(items[k]) })
}

func (m *Mesh) IterateOverParticlesPredicate(fn func(p *Particle), pred func(p *Particle) bool) {
	items := m.particles.Items()
	utils.ParallelFor(len(items), m.grainSize, func(k int) {
		if pred(items[k]) {
			fn(items[k])
		}
	})
}

// IterateOverParticleSet runs fn over the members of set id, types.AllSet being every particle
func (m *Mesh) IterateOverParticleSet(id int, fn func(p *Particle)) (err error) {
	set, err := m.ParticleSet(id)
	if err != nil {
		return
	}
	utils.ParallelFor(len(set), m.grainSize, func(k int) { fn(set[k]) })
	return
}

func (m *Mesh) IterateOverNodeSet(id int, fn func(n *Node)) (err error) {
	set, err := m.NodeSet(id)
	if err != nil {
		return
	}
	utils.ParallelFor(len(set), m.grainSize, func(k int) { fn(set[k]) })
	return
}

func (m *Mesh) IterateOverCellSet(id int, fn func(c *Cell)) (err error) {
	set, err := m.CellSet(id)
	if err != nil {
		return
	}
	utils.ParallelFor(len(set), m.grainSize, func(k int) { fn(set[k]) })
	return
}

// IterateOverBoundaryParticles visits the particles in cells with a face on the mesh boundary
func (m *Mesh) IterateOverBoundaryParticles(fn func(p *Particle)) (err error) {
	if !m.neighboursComputed {
		return fmt.Errorf("boundary particles: %w", ErrNeighboursNotComputed)
	}
	boundary := make(map[types.Index]bool)
	for _, seg := range m.BoundarySegments() {
		boundary[seg.Cell] = true
	}
	m.IterateOverParticlesPredicate(fn, func(p *Particle) bool {
		return p.Cell() != nil && boundary[p.CellID()]
	})
	return
}
