package mesh

import (
	"fmt"
	"sort"
	"sync"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/notargets/gompm/MPM/function"
	"github.com/notargets/gompm/types"
)

// Massless nodes below this mass keep a zero velocity
const massTolerance = 1.e-15

type FrictionConstraint struct {
	Dir      int
	Sign     int // direction of the outward normal along Dir, +1 or -1
	Friction float64
}

type concentratedForce struct {
	phase int
	dir   int
	force float64
	fn    function.Function // nil scales by one
}

/*
Node accumulates mass, momentum and forces from the particles around it. Accumulation
methods lock the node so concurrent cells and particles can scatter into it.
*/
type Node struct {
	id      types.Index
	ntype   types.NodeType
	dim     int
	nphases int
	coord   []float64

	mu            sync.Mutex
	active        bool
	mass          []float64   // [phase]
	momentum      [][]float64 // [phase][dim]
	velocity      [][]float64
	acceleration  [][]float64
	externalForce [][]float64
	internalForce [][]float64

	// Owning ranks of the incident cells, sorted
	ranks   []int
	ghostID int

	velocityConstraints map[int]float64
	friction            *FrictionConstraint
	rotation            *mat.Dense
	forces              []concentratedForce
}

func NewNode(id types.Index, ntype types.NodeType, coord []float64) (n *Node, err error) {
	if ntype.Dim() == 0 {
		return nil, fmt.Errorf("node %d: %w: node type %s", id, ErrInvalidValue, ntype)
	}
	if len(coord) != ntype.Dim() {
		return nil, fmt.Errorf("node %d: %w: %d coordinates for a %s node", id, ErrDimensionMismatch, len(coord), ntype)
	}
	n = &Node{
		id:                  id,
		ntype:               ntype,
		dim:                 ntype.Dim(),
		nphases:             ntype.NPhases(),
		coord:               append([]float64(nil), coord...),
		ghostID:             types.NoGhost,
		velocityConstraints: make(map[int]float64),
	}
	n.mass = make([]float64, n.nphases)
	alloc := func() (v [][]float64) {
		v = make([][]float64, n.nphases)
		for p := range v {
			v[p] = make([]float64, n.dim)
		}
		return
	}
	n.momentum, n.velocity, n.acceleration = alloc(), alloc(), alloc()
	n.externalForce, n.internalForce = alloc(), alloc()
	return
}

func (n *Node) ID() types.Index               { return n.id }
func (n *Node) Type() types.NodeType          { return n.ntype }
func (n *Node) Dim() int                      { return n.dim }
func (n *Node) NPhases() int                  { return n.nphases }
func (n *Node) Coordinates() []float64        { return n.coord }
func (n *Node) GhostID() int                  { return n.ghostID }
func (n *Node) AssignGhostID(gid int)         { n.ghostID = gid }
func (n *Node) Rotation() *mat.Dense          { return n.rotation }
func (n *Node) Friction() *FrictionConstraint { return n.friction }

// InitialiseNodal zeroes the accumulated quantities before a new step
func (n *Node) InitialiseNodal() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.active = false
	for p := 0; p < n.nphases; p++ {
		n.mass[p] = 0
		for _, v := range [][]float64{n.momentum[p], n.velocity[p], n.acceleration[p],
			n.externalForce[p], n.internalForce[p]} {
			floats.Scale(0, v)
		}
	}
}

func (n *Node) Status() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.active
}

func (n *Node) AssignStatus(active bool) {
	n.mu.Lock()
	n.active = active
	n.mu.Unlock()
}

func (n *Node) checkPhase(phase int) error {
	if phase < 0 || phase >= n.nphases {
		return fmt.Errorf("node %d: %w: phase %d of %d", n.id, ErrInvalidValue, phase, n.nphases)
	}
	return nil
}

// UpdateMass adds m, a node receiving mass becomes active
func (n *Node) UpdateMass(phase int, m float64) (err error) {
	if err = n.checkPhase(phase); err != nil {
		return
	}
	n.mu.Lock()
	n.mass[phase] += m
	n.active = true
	n.mu.Unlock()
	return
}

func (n *Node) UpdateMomentum(phase int, p []float64) (err error) {
	if err = n.checkPhase(phase); err != nil {
		return
	}
	n.mu.Lock()
	floats.Add(n.momentum[phase], p)
	n.mu.Unlock()
	return
}

func (n *Node) UpdateExternalForce(phase int, f []float64) (err error) {
	if err = n.checkPhase(phase); err != nil {
		return
	}
	n.mu.Lock()
	floats.Add(n.externalForce[phase], f)
	n.mu.Unlock()
	return
}

func (n *Node) UpdateInternalForce(phase int, f []float64) (err error) {
	if err = n.checkPhase(phase); err != nil {
		return
	}
	n.mu.Lock()
	floats.Add(n.internalForce[phase], f)
	n.mu.Unlock()
	return
}

// AssignMass overwrites the mass, used to scatter back halo sums
func (n *Node) AssignMass(phase int, m float64) (err error) {
	if err = n.checkPhase(phase); err != nil {
		return
	}
	n.mu.Lock()
	n.mass[phase] = m
	n.mu.Unlock()
	return
}

func (n *Node) AssignMomentum(phase int, p []float64) (err error) {
	if err = n.checkPhase(phase); err != nil {
		return
	}
	n.mu.Lock()
	copy(n.momentum[phase], p)
	n.mu.Unlock()
	return
}

func (n *Node) AssignExternalForce(phase int, f []float64) (err error) {
	if err = n.checkPhase(phase); err != nil {
		return
	}
	n.mu.Lock()
	copy(n.externalForce[phase], f)
	n.mu.Unlock()
	return
}

func (n *Node) AssignInternalForce(phase int, f []float64) (err error) {
	if err = n.checkPhase(phase); err != nil {
		return
	}
	n.mu.Lock()
	copy(n.internalForce[phase], f)
	n.mu.Unlock()
	return
}

func (n *Node) Mass(phase int) float64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.mass[phase]
}

func (n *Node) Momentum(phase int) []float64      { return n.snapshot(n.momentum[phase]) }
func (n *Node) Velocity(phase int) []float64      { return n.snapshot(n.velocity[phase]) }
func (n *Node) Acceleration(phase int) []float64  { return n.snapshot(n.acceleration[phase]) }
func (n *Node) ExternalForce(phase int) []float64 { return n.snapshot(n.externalForce[phase]) }
func (n *Node) InternalForce(phase int) []float64 { return n.snapshot(n.internalForce[phase]) }

func (n *Node) snapshot(v []float64) []float64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]float64(nil), v...)
}

// ComputeVelocity sets v = p/m for every phase with mass and enforces the constraints
func (n *Node) ComputeVelocity() {
	n.mu.Lock()
	for p := 0; p < n.nphases; p++ {
		if n.mass[p] > massTolerance {
			floats.ScaleTo(n.velocity[p], 1/n.mass[p], n.momentum[p])
		}
	}
	n.mu.Unlock()
	n.ApplyVelocityConstraints()
}

// ComputeAcceleration sets a = (f_ext + f_int)/m
func (n *Node) ComputeAcceleration(phase int) (err error) {
	if err = n.checkPhase(phase); err != nil {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.mass[phase] > massTolerance {
		floats.AddTo(n.acceleration[phase], n.externalForce[phase], n.internalForce[phase])
		floats.Scale(1/n.mass[phase], n.acceleration[phase])
	}
	return
}

func (n *Node) checkDirection(dir int) error {
	if dir < 0 || dir >= n.dim {
		return fmt.Errorf("node %d: %w: direction %d, dimension %d", n.id, ErrInvalidDirection, dir, n.dim)
	}
	return nil
}

func (n *Node) AssignVelocityConstraint(dir int, velocity float64) (err error) {
	if err = n.checkDirection(dir); err != nil {
		return
	}
	n.mu.Lock()
	n.velocityConstraints[dir] = velocity
	n.mu.Unlock()
	return
}

// VelocityConstraints returns the constrained directions in ascending order with their values
func (n *Node) VelocityConstraints() (dirs []int, vals []float64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for dir := range n.velocityConstraints {
		dirs = append(dirs, dir)
	}
	sort.Ints(dirs)
	for _, dir := range dirs {
		vals = append(vals, n.velocityConstraints[dir])
	}
	return
}

func (n *Node) AssignFrictionConstraint(dir, sign int, friction float64) (err error) {
	if err = n.checkDirection(dir); err != nil {
		return
	}
	if sign != 1 && sign != -1 {
		return fmt.Errorf("node %d: %w: friction sign %d", n.id, ErrInvalidValue, sign)
	}
	n.mu.Lock()
	n.friction = &FrictionConstraint{Dir: dir, Sign: sign, Friction: friction}
	n.mu.Unlock()
	return
}

// AssignRotationMatrix sets the local frame in which velocity constraints are applied
func (n *Node) AssignRotationMatrix(R *mat.Dense) (err error) {
	if r, c := R.Dims(); r != n.dim || c != n.dim {
		return fmt.Errorf("node %d: %w: %dx%d rotation for dimension %d", n.id, ErrDimensionMismatch, r, c, n.dim)
	}
	n.mu.Lock()
	n.rotation = mat.DenseCopyOf(R)
	n.mu.Unlock()
	return
}

// ApplyVelocityConstraints overwrites the constrained components of velocity and
// acceleration. With a rotation matrix R the constraints act on R^T v.
func (n *Node) ApplyVelocityConstraints() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.velocityConstraints) == 0 {
		return
	}
	for p := 0; p < n.nphases; p++ {
		if n.rotation == nil {
			for dir, v := range n.velocityConstraints {
				n.velocity[p][dir] = v
				n.acceleration[p][dir] = 0
			}
			continue
		}
		var (
			vel   = mat.NewVecDense(n.dim, n.velocity[p])
			acc   = mat.NewVecDense(n.dim, n.acceleration[p])
			local mat.VecDense
			accL  mat.VecDense
		)
		local.MulVec(n.rotation.T(), vel)
		accL.MulVec(n.rotation.T(), acc)
		for dir, v := range n.velocityConstraints {
			local.SetVec(dir, v)
			accL.SetVec(dir, 0)
		}
		vel.MulVec(n.rotation, &local)
		acc.MulVec(n.rotation, &accL)
	}
}

func (n *Node) AssignConcentratedForce(phase, dir int, force float64, fn function.Function) (err error) {
	if err = n.checkDirection(dir); err != nil {
		return
	}
	if phase < 0 || phase >= n.nphases {
		return fmt.Errorf("node %d: %w: phase %d", n.id, ErrInvalidValue, phase)
	}
	n.mu.Lock()
	n.forces = append(n.forces, concentratedForce{phase: phase, dir: dir, force: force, fn: fn})
	n.mu.Unlock()
	return
}

// ApplyConcentratedForce adds the concentrated forces scaled by their functions at time t
func (n *Node) ApplyConcentratedForce(t float64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, cf := range n.forces {
		scale := 1.
		if cf.fn != nil {
			scale = cf.fn.Value(t)
		}
		n.externalForce[cf.phase][cf.dir] += cf.force * scale
	}
}

// AssignRank records that a cell of rank is incident to the node
func (n *Node) AssignRank(rank int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	k := sort.SearchInts(n.ranks, rank)
	if k < len(n.ranks) && n.ranks[k] == rank {
		return
	}
	n.ranks = append(n.ranks, 0)
	copy(n.ranks[k+1:], n.ranks[k:])
	n.ranks[k] = rank
}

func (n *Node) ClearRanks() {
	n.mu.Lock()
	n.ranks = n.ranks[:0]
	n.ghostID = types.NoGhost
	n.mu.Unlock()
}

func (n *Node) Ranks() []int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]int(nil), n.ranks...)
}

func (n *Node) HasRank(rank int) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	k := sort.SearchInts(n.ranks, rank)
	return k < len(n.ranks) && n.ranks[k] == rank
}

// IsShared reports whether cells of more than one rank touch the node
func (n *Node) IsShared() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.ranks) > 1
}
