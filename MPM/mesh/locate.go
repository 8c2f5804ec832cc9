package mesh

import (
	"context"
	"sort"
	"sync"

	"github.com/notargets/gompm/internal/logging"
	"github.com/notargets/gompm/types"
	"github.com/notargets/gompm/utils"
)

// LocateParticles binds every particle to the cell containing it and returns the
// particles no cell contains, ordered by id. Unlocated particles are left unbound and
// in the mesh, what to do with them is up to the caller.
func (m *Mesh) LocateParticles() (unlocated []*Particle) {
	var (
		items = m.particles.Items()
		mu    sync.Mutex
	)
	utils.ParallelFor(len(items), m.grainSize, func(k int) {
		if !m.locateParticleCells(items[k]) {
			mu.Lock()
			unlocated = append(unlocated, items[k])
			mu.Unlock()
		}
	})
	sort.Slice(unlocated, func(i, j int) bool { return unlocated[i].ID() < unlocated[j].ID() })
	m.met.ObserveLocate(m.Rank(), len(items)-len(unlocated), len(unlocated))
	if len(unlocated) > 0 {
		ids := make([]types.Index, len(unlocated))
		for k, p := range unlocated {
			ids[k] = p.ID()
		}
		m.log.Warn(context.Background(), "particles not located",
			logging.Int("unlocated", len(unlocated)), logging.Any("ids", ids))
	}
	return
}

/*
locateParticleCells tries in order: the current cell, the cell recorded by a restart,
the neighbours of either, and finally every cell. The exhaustive scan is parallel and
keeps the first containing cell found; on overlapping cells which one wins is not
fixed, it always contains the particle.
*/
func (m *Mesh) locateParticleCells(p *Particle) bool {
	if p.ComputeReferenceLocation() {
		return true
	}
	guess := p.Cell()
	if guess == nil && p.cellHint != types.MaxIndex {
		if c, ok := m.cellMap.Find(p.cellHint); ok {
			if p.AssignCell(c) == nil {
				return true
			}
			guess = c
		}
	}
	if guess != nil {
		for _, nid := range guess.Neighbours() {
			if c, ok := m.cellMap.Find(nid); ok && p.AssignCell(c) == nil {
				return true
			}
		}
	}
	cells := m.cells.Items()
	k := utils.ParallelFind(len(cells), m.grainSize, func(k int) bool {
		_, ok := cells[k].IsPointInCell(p.Coordinates())
		return ok
	})
	if k >= 0 && p.AssignCell(cells[k]) == nil {
		return true
	}
	p.RemoveCell()
	p.cellHint = types.MaxIndex
	return false
}

// LocateParticle binds one particle, false if no cell contains it
func (m *Mesh) LocateParticle(p *Particle) bool { return m.locateParticleCells(p) }
