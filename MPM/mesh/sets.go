package mesh

import (
	"fmt"

	"github.com/notargets/gompm/types"
)

func checkSetIDs(kind string, sets map[int][]types.Index, exists func(types.Index) bool, taken func(int) bool, checkDuplicates bool) error {
	for sid, ids := range sets {
		if sid == types.AllSet {
			return fmt.Errorf("%s set %d: %w: reserved set id", kind, sid, ErrInvalidValue)
		}
		if checkDuplicates && taken(sid) {
			return fmt.Errorf("%s set %d: %w", kind, sid, ErrDuplicateID)
		}
		for _, id := range ids {
			if !exists(id) {
				return fmt.Errorf("%s set %d: %s %d: %w", kind, sid, kind, id, ErrNotFound)
			}
		}
	}
	return nil
}

// CreateNodeSets registers named node sets. Sets are resolved to node handles here.
func (m *Mesh) CreateNodeSets(sets map[int][]types.Index, checkDuplicates bool) (err error) {
	taken := func(sid int) bool {
		_, ok := m.nodeSets[sid]
		return ok
	}
	if err = checkSetIDs("node", sets, m.nodeMap.Has, taken, checkDuplicates); err != nil {
		m.warn("create node sets failed", err)
		return
	}
	for sid, ids := range sets {
		set := make([]*Node, len(ids))
		for k, id := range ids {
			set[k], _ = m.nodeMap.Find(id)
		}
		m.nodeSets[sid] = set
	}
	return
}

func (m *Mesh) CreateCellSets(sets map[int][]types.Index, checkDuplicates bool) (err error) {
	taken := func(sid int) bool {
		_, ok := m.cellSets[sid]
		return ok
	}
	if err = checkSetIDs("cell", sets, m.cellMap.Has, taken, checkDuplicates); err != nil {
		m.warn("create cell sets failed", err)
		return
	}
	for sid, ids := range sets {
		set := make([]*Cell, len(ids))
		for k, id := range ids {
			set[k], _ = m.cellMap.Find(id)
		}
		m.cellSets[sid] = set
	}
	return
}

// CreateParticleSets registers named particle sets by id. Particles come and go with
// migration, so members are looked up each time the set is used.
func (m *Mesh) CreateParticleSets(sets map[int][]types.Index, checkDuplicates bool) (err error) {
	taken := func(sid int) bool {
		_, ok := m.particleSets[sid]
		return ok
	}
	if err = checkSetIDs("particle", sets, m.particleMap.Has, taken, checkDuplicates); err != nil {
		m.warn("create particle sets failed", err)
		return
	}
	for sid, ids := range sets {
		m.particleSets[sid] = append([]types.Index(nil), ids...)
	}
	return
}

// NodeSet resolves set id, types.AllSet gives every node
func (m *Mesh) NodeSet(id int) ([]*Node, error) {
	if id == types.AllSet {
		return m.nodes.Items(), nil
	}
	set, ok := m.nodeSets[id]
	if !ok {
		return nil, fmt.Errorf("node set %d: %w", id, ErrSetNotFound)
	}
	return set, nil
}

func (m *Mesh) CellSet(id int) ([]*Cell, error) {
	if id == types.AllSet {
		return m.cells.Items(), nil
	}
	set, ok := m.cellSets[id]
	if !ok {
		return nil, fmt.Errorf("cell set %d: %w", id, ErrSetNotFound)
	}
	return set, nil
}

// ParticleSet resolves set id to the members currently held by this rank
func (m *Mesh) ParticleSet(id int) (set []*Particle, err error) {
	if id == types.AllSet {
		return m.particles.Items(), nil
	}
	ids, ok := m.particleSets[id]
	if !ok {
		return nil, fmt.Errorf("particle set %d: %w", id, ErrSetNotFound)
	}
	set = make([]*Particle, 0, len(ids))
	for _, pid := range ids {
		if p, ok := m.particleMap.Find(pid); ok {
			set = append(set, p)
		}
	}
	return
}

func (m *Mesh) hasNodeSet(id int) bool {
	_, ok := m.nodeSets[id]
	return id == types.AllSet || ok
}

func (m *Mesh) hasParticleSet(id int) bool {
	_, ok := m.particleSets[id]
	return id == types.AllSet || ok
}
