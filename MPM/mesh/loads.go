package mesh

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"gonum.org/v1/gonum/mat"

	"github.com/notargets/gompm/MPM/function"
	"github.com/notargets/gompm/types"
)

type particleTraction struct {
	setID    int
	dir      int
	traction float64
	fn       function.Function // nil is a constant traction
}

type particleVelocityConstraint struct {
	setID    int
	dir      int
	velocity float64
}

type NodalVelocityConstraint struct {
	Node     types.Index
	Dir      int
	Velocity float64
}

type NodalFrictionConstraint struct {
	Node     types.Index
	Dir      int
	Sign     int
	Friction float64
}

type NodalForce struct {
	Node  types.Index
	Dir   int
	Force float64
}

type ParticleVolume struct {
	Particle types.Index
	Volume   float64
}

type ParticleCell struct {
	Particle types.Index
	Cell     types.Index
}

func (m *Mesh) checkDirection(dir int) error {
	if dir < 0 || dir >= m.dim {
		return fmt.Errorf("%w: direction %d, dimension %d", ErrInvalidDirection, dir, m.dim)
	}
	return nil
}

// CreateParticlesTractions registers a traction on particle set setID, scaled by fn
// at the time of application when fn is not nil
func (m *Mesh) CreateParticlesTractions(fn function.Function, setID, dir int, traction float64) (err error) {
	if err = m.checkDirection(dir); err == nil && !m.hasParticleSet(setID) {
		err = fmt.Errorf("particle set %d: %w", setID, ErrSetNotFound)
	}
	if err != nil {
		m.warn("create particle traction failed", err)
		return
	}
	m.tractions = append(m.tractions, particleTraction{setID: setID, dir: dir, traction: traction, fn: fn})
	return
}

// ApplyTractionOnParticles assigns every registered traction at time t, then maps the
// particle tractions onto the nodes
func (m *Mesh) ApplyTractionOnParticles(t float64) (err error) {
	var (
		mu    sync.Mutex
		errs  []error
		added = make(map[types.Index]*Particle)
	)
	for _, tr := range m.tractions {
		value := tr.traction
		if tr.fn != nil {
			value *= tr.fn.Value(t)
		}
		set, _ := m.ParticleSet(tr.setID)
		for _, p := range set {
			added[p.ID()] = p
		}
		dir := tr.dir
		_ = m.IterateOverParticleSet(tr.setID, func(p *Particle) {
			if e := p.AssignTraction(dir, value); e != nil {
				mu.Lock()
				errs = append(errs, e)
				mu.Unlock()
			}
		})
	}
	for _, p := range added {
		p.MapTractionForce()
	}
	if err = errors.Join(errs...); err != nil {
		m.warn("apply traction failed", err)
	}
	return
}

func (m *Mesh) CreateParticleVelocityConstraint(setID, dir int, velocity float64) (err error) {
	if err = m.checkDirection(dir); err == nil && !m.hasParticleSet(setID) {
		err = fmt.Errorf("particle set %d: %w", setID, ErrSetNotFound)
	}
	if err != nil {
		m.warn("create particle velocity constraint failed", err)
		return
	}
	m.velocityConstraints = append(m.velocityConstraints, particleVelocityConstraint{setID: setID, dir: dir, velocity: velocity})
	return
}

func (m *Mesh) ApplyParticleVelocityConstraints() {
	for _, vc := range m.velocityConstraints {
		vc := vc
		_ = m.IterateOverParticleSet(vc.setID, func(p *Particle) {
			_ = p.AssignParticleVelocityConstraint(vc.dir, vc.velocity)
			p.ApplyParticleVelocityConstraints()
		})
	}
}

// AssignNodalVelocityConstraint constrains direction dir of every node in set setID.
// An unknown set or a direction outside the mesh dimension changes nothing.
func (m *Mesh) AssignNodalVelocityConstraint(setID, dir int, velocity float64) (err error) {
	defer func() {
		if err != nil {
			m.warn("assign nodal velocity constraint failed", err)
		}
	}()
	if err = m.checkDirection(dir); err != nil {
		return
	}
	set, err := m.NodeSet(setID)
	if err != nil {
		return
	}
	for _, n := range set {
		if err = n.AssignVelocityConstraint(dir, velocity); err != nil {
			return
		}
	}
	return
}

func (m *Mesh) AssignNodalFrictionalConstraint(setID, dir, sign int, friction float64) (err error) {
	defer func() {
		if err != nil {
			m.warn("assign nodal friction constraint failed", err)
		}
	}()
	if err = m.checkDirection(dir); err != nil {
		return
	}
	if sign != 1 && sign != -1 {
		return fmt.Errorf("%w: friction sign %d", ErrInvalidValue, sign)
	}
	set, err := m.NodeSet(setID)
	if err != nil {
		return
	}
	for _, n := range set {
		if err = n.AssignFrictionConstraint(dir, sign, friction); err != nil {
			return
		}
	}
	return
}

func (m *Mesh) lookupNodes(ids []types.Index, dirs []int) (nodes []*Node, err error) {
	nodes = make([]*Node, len(ids))
	for k, id := range ids {
		var ok bool
		if nodes[k], ok = m.nodeMap.Find(id); !ok {
			return nil, fmt.Errorf("node %d: %w", id, ErrNotFound)
		}
		if err = m.checkDirection(dirs[k]); err != nil {
			return nil, fmt.Errorf("node %d: %w", id, err)
		}
	}
	return
}

// AssignNodalVelocityConstraints applies a list of per node constraints, all or none
func (m *Mesh) AssignNodalVelocityConstraints(constraints []NodalVelocityConstraint) (err error) {
	var (
		ids  = make([]types.Index, len(constraints))
		dirs = make([]int, len(constraints))
	)
	for k, vc := range constraints {
		ids[k], dirs[k] = vc.Node, vc.Dir
	}
	nodes, err := m.lookupNodes(ids, dirs)
	if err != nil {
		m.warn("assign nodal velocity constraints failed", err)
		return
	}
	for k, vc := range constraints {
		_ = nodes[k].AssignVelocityConstraint(vc.Dir, vc.Velocity)
	}
	return
}

func (m *Mesh) AssignNodalFrictionConstraints(constraints []NodalFrictionConstraint) (err error) {
	var (
		ids  = make([]types.Index, len(constraints))
		dirs = make([]int, len(constraints))
	)
	for k, fc := range constraints {
		ids[k], dirs[k] = fc.Node, fc.Dir
		if fc.Sign != 1 && fc.Sign != -1 {
			err = fmt.Errorf("node %d: %w: friction sign %d", fc.Node, ErrInvalidValue, fc.Sign)
			m.warn("assign nodal friction constraints failed", err)
			return
		}
	}
	nodes, err := m.lookupNodes(ids, dirs)
	if err != nil {
		m.warn("assign nodal friction constraints failed", err)
		return
	}
	for k, fc := range constraints {
		_ = nodes[k].AssignFrictionConstraint(fc.Dir, fc.Sign, fc.Friction)
	}
	return
}

// AssignNodalConcentratedForces adds constant forces on listed nodes, all or none
func (m *Mesh) AssignNodalConcentratedForces(forces []NodalForce) (err error) {
	var (
		ids  = make([]types.Index, len(forces))
		dirs = make([]int, len(forces))
	)
	for k, f := range forces {
		ids[k], dirs[k] = f.Node, f.Dir
	}
	nodes, err := m.lookupNodes(ids, dirs)
	if err != nil {
		m.warn("assign nodal forces failed", err)
		return
	}
	for k, f := range forces {
		_ = nodes[k].AssignConcentratedForce(types.SolidPhase, f.Dir, f.Force, nil)
	}
	return
}

// AssignNodalConcentratedForcesSet adds force along dir on every node of set setID,
// scaled by fn at the time of application
func (m *Mesh) AssignNodalConcentratedForcesSet(fn function.Function, setID, dir int, force float64) (err error) {
	defer func() {
		if err != nil {
			m.warn("assign nodal forces failed", err)
		}
	}()
	if err = m.checkDirection(dir); err != nil {
		return
	}
	set, err := m.NodeSet(setID)
	if err != nil {
		return
	}
	for _, n := range set {
		if err = n.AssignConcentratedForce(types.SolidPhase, dir, force, fn); err != nil {
			return
		}
	}
	return
}

func (m *Mesh) ApplyNodalConcentratedForces(t float64) {
	m.IterateOverNodes(func(n *Node) { n.ApplyConcentratedForce(t) })
}

// RotationMatrix builds the nodal frame from euler angles: in 2D a rotation by
// angles[0]+angles[1], in 3D Rz(alpha) Rx(beta) Rz(gamma)
func RotationMatrix(angles []float64) (R *mat.Dense, err error) {
	rz := func(a float64) *mat.Dense {
		c, s := math.Cos(a), math.Sin(a)
		return mat.NewDense(3, 3, []float64{c, -s, 0, s, c, 0, 0, 0, 1})
	}
	switch len(angles) {
	case 2:
		c, s := math.Cos(angles[0]+angles[1]), math.Sin(angles[0]+angles[1])
		R = mat.NewDense(2, 2, []float64{c, -s, s, c})
	case 3:
		c, s := math.Cos(angles[1]), math.Sin(angles[1])
		rx := mat.NewDense(3, 3, []float64{1, 0, 0, 0, c, -s, 0, s, c})
		var tmp mat.Dense
		tmp.Mul(rz(angles[0]), rx)
		R = mat.NewDense(3, 3, nil)
		R.Mul(&tmp, rz(angles[2]))
	default:
		err = fmt.Errorf("%w: %d euler angles", ErrDimensionMismatch, len(angles))
	}
	return
}

// ComputeNodalRotationMatrices assigns the frames given by euler angles per node id, all or none
func (m *Mesh) ComputeNodalRotationMatrices(angles map[types.Index][]float64) (err error) {
	var (
		nodes = make([]*Node, 0, len(angles))
		rots  = make([]*mat.Dense, 0, len(angles))
	)
	defer func() {
		if err != nil {
			m.warn("nodal rotation matrices failed", err)
		}
	}()
	if len(angles) == 0 {
		return fmt.Errorf("nodal rotation matrices: %w", ErrEmptyInput)
	}
	for id, a := range angles {
		n, ok := m.nodeMap.Find(id)
		if !ok {
			return fmt.Errorf("node %d: %w", id, ErrNotFound)
		}
		if len(a) != m.dim {
			return fmt.Errorf("node %d: %w: %d euler angles", id, ErrDimensionMismatch, len(a))
		}
		var R *mat.Dense
		if R, err = RotationMatrix(a); err != nil {
			return
		}
		nodes, rots = append(nodes, n), append(rots, R)
	}
	for k, n := range nodes {
		_ = n.AssignRotationMatrix(rots[k])
	}
	return
}

// AssignParticlesVolumes sets volume per particle id, all or none
func (m *Mesh) AssignParticlesVolumes(volumes []ParticleVolume) (err error) {
	ps := make([]*Particle, len(volumes))
	for k, pv := range volumes {
		var ok bool
		if ps[k], ok = m.particleMap.Find(pv.Particle); !ok {
			err = fmt.Errorf("particle %d: %w", pv.Particle, ErrNotFound)
		} else if pv.Volume <= 0 {
			err = fmt.Errorf("particle %d: %w: volume %g", pv.Particle, ErrInvalidValue, pv.Volume)
		}
		if err != nil {
			m.warn("assign particle volumes failed", err)
			return
		}
	}
	for k, p := range ps {
		_ = p.AssignVolume(volumes[k].Volume)
	}
	return
}

// AssignParticlesStresses sets the initial stresses in ascending particle id order
func (m *Mesh) AssignParticlesStresses(stresses [][6]float64) (err error) {
	if len(stresses) != m.particles.Size() {
		err = fmt.Errorf("%w: %d stresses for %d particles", ErrInvalidValue, len(stresses), m.particles.Size())
		m.warn("assign particle stresses failed", err)
		return
	}
	for k, id := range m.particles.Ids() {
		p, _ := m.particleMap.Find(id)
		p.AssignStress(stresses[k])
	}
	return
}

// AssignParticlesCells binds particles to given cells, all or none
func (m *Mesh) AssignParticlesCells(pcs []ParticleCell) (err error) {
	var (
		ps  = make([]*Particle, len(pcs))
		cs  = make([]*Cell, len(pcs))
		xis = make([][]float64, len(pcs))
	)
	for k, pc := range pcs {
		var ok bool
		if ps[k], ok = m.particleMap.Find(pc.Particle); !ok {
			err = fmt.Errorf("particle %d: %w", pc.Particle, ErrNotFound)
		} else if cs[k], ok = m.cellMap.Find(pc.Cell); !ok {
			err = fmt.Errorf("particle %d: cell %d: %w", pc.Particle, pc.Cell, ErrNotFound)
		} else if xis[k], ok = cs[k].IsPointInCell(ps[k].Coordinates()); !ok {
			err = fmt.Errorf("particle %d: cell %d: %w", pc.Particle, pc.Cell, ErrParticleNotLocated)
		}
		if err != nil {
			m.warn("assign particle cells failed", err)
			return
		}
	}
	for k, p := range ps {
		p.bind(cs[k], xis[k])
	}
	return
}

// ParticlesCells lists the located particles with their cells by particle id
func (m *Mesh) ParticlesCells() (pcs []ParticleCell) {
	for _, p := range m.particles.Items() {
		if p.Cell() != nil {
			pcs = append(pcs, ParticleCell{Particle: p.ID(), Cell: p.CellID()})
		}
	}
	sort.Slice(pcs, func(i, j int) bool { return pcs[i].Particle < pcs[j].Particle })
	return
}
