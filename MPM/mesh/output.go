package mesh

import (
	"fmt"
	"sort"

	"github.com/notargets/gompm/types"
)

// Output getters pad vectors to three components and order entities by id.

func (m *Mesh) sortedParticles() (ps []*Particle) {
	ps = append(ps, m.particles.Items()...)
	sort.Slice(ps, func(i, j int) bool { return ps[i].ID() < ps[j].ID() })
	return
}

func pad3(v []float64) (out [3]float64) {
	copy(out[:], v)
	return
}

func (m *Mesh) ParticleCoordinates() (coords [][3]float64) {
	for _, p := range m.sortedParticles() {
		coords = append(coords, pad3(p.Coordinates()))
	}
	return
}

// ParticlesVectorData returns displacements, velocities, accelerations, normal_stresses,
// shear_stresses, normal_strains or shear_strains
func (m *Mesh) ParticlesVectorData(attr string) (data [][3]float64, err error) {
	var (
		get    func(p *Particle) [3]float64
		normal = func(s [6]float64) [3]float64 { return [3]float64{s[0], s[1], s[2]} }
		shear  = func(s [6]float64) [3]float64 { return [3]float64{s[3], s[4], s[5]} }
	)
	switch attr {
	case "displacements":
		get = func(p *Particle) [3]float64 { return pad3(p.Displacement()) }
	case "velocities":
		get = func(p *Particle) [3]float64 { return pad3(p.Velocity()) }
	case "accelerations":
		get = func(p *Particle) [3]float64 { return pad3(p.Acceleration()) }
	case "normal_stresses":
		get = func(p *Particle) [3]float64 { return normal(p.Stress()) }
	case "shear_stresses":
		get = func(p *Particle) [3]float64 { return shear(p.Stress()) }
	case "normal_strains":
		get = func(p *Particle) [3]float64 { return normal(p.Strain()) }
	case "shear_strains":
		get = func(p *Particle) [3]float64 { return shear(p.Strain()) }
	default:
		return nil, fmt.Errorf("%w: vector attribute %q", ErrInvalidValue, attr)
	}
	for _, p := range m.sortedParticles() {
		data = append(data, get(p))
	}
	return
}

// ParticlesScalarData returns mass, volume or pressure
func (m *Mesh) ParticlesScalarData(attr string) (data []float64, err error) {
	var get func(p *Particle) float64
	switch attr {
	case "mass":
		get = (*Particle).Mass
	case "volume":
		get = (*Particle).Volume
	case "pressure":
		get = (*Particle).Pressure
	default:
		return nil, fmt.Errorf("%w: scalar attribute %q", ErrInvalidValue, attr)
	}
	for _, p := range m.sortedParticles() {
		data = append(data, get(p))
	}
	return
}

// ParticlesStateVarsData returns state variable name of every particle, zero where the
// particle material does not carry it
func (m *Mesh) ParticlesStateVarsData(name string) (data []float64, err error) {
	var found bool
	ps := m.sortedParticles()
	data = make([]float64, len(ps))
	for k, p := range ps {
		var ok bool
		if data[k], ok = p.StateVariable(name); ok {
			found = true
		}
	}
	if !found && len(ps) > 0 {
		return nil, fmt.Errorf("%w: state variable %q", ErrNotFound, name)
	}
	return
}

func (m *Mesh) NodalCoordinates() (coords [][3]float64) {
	for _, id := range m.nodes.Ids() {
		n, _ := m.nodeMap.Find(id)
		coords = append(coords, pad3(n.Coordinates()))
	}
	return
}

// NodePairs returns every cell edge once, lower node id first
func (m *Mesh) NodePairs() (pairs [][2]types.Index) {
	seen := make(map[types.PairKey]bool)
	for _, c := range m.cells.Items() {
		for _, e := range c.SideNodeIDs() {
			seen[types.NewPairKey(e[0], e[1])] = true
		}
	}
	keys := make([]types.PairKey, 0, len(seen))
	for pk := range seen {
		keys = append(keys, pk)
	}
	sort.Sort(types.PairKeySlice(keys))
	for _, pk := range keys {
		pairs = append(pairs, pk.Nodes())
	}
	return
}
