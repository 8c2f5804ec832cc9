package mesh

import (
	"context"
	"fmt"
	"sort"

	"github.com/notargets/gompm/MPM/comm"
	"github.com/notargets/gompm/MPM/container"
	"github.com/notargets/gompm/MPM/element"
	"github.com/notargets/gompm/MPM/function"
	"github.com/notargets/gompm/MPM/material"
	"github.com/notargets/gompm/internal/logging"
	"github.com/notargets/gompm/internal/observability"
	"github.com/notargets/gompm/types"
	"github.com/notargets/gompm/utils"
)

/*
Mesh owns every node, cell and particle of one rank. Cells and particles refer to nodes
and cells through non-owning handles, all lookups by id go through the paired maps.
*/
type Mesh struct {
	id   int
	dim  int
	comm comm.Communicator
	log  logging.Logger
	met  *observability.MeshCollector

	grainSize int
	halo      HaloExchange

	nodes       *container.Container[*Node]
	nodeMap     *container.Map[*Node]
	activeNodes *container.Container[*Node]
	cells       *container.Container[*Cell]
	cellMap     *container.Map[*Cell]
	particles   *container.Container[*Particle]
	particleMap *container.Map[*Particle]

	// Particle type fixed by the first particle added
	ptype types.ParticleType

	neighboursComputed bool
	nodeCells          map[types.Index][]types.Index // node id to incident cell ids
	faceCells          map[string][]types.Index      // sorted face node ids to cells sharing the face

	// Decomposition bookkeeping, see partition.go
	sharedNodes         []*Node // ordered by ghost id
	ghostCells          *container.Container[*Cell]
	ghostCellRanks      map[types.Index][]int
	localGhostCells     *container.Container[*Cell]
	localGhostCellRanks map[types.Index][]int

	materials map[uint32]*material.Material
	functions map[int]function.Function

	nodeSets     map[int][]*Node
	cellSets     map[int][]*Cell
	particleSets map[int][]types.Index

	tractions           []particleTraction
	velocityConstraints []particleVelocityConstraint
}

type Option func(m *Mesh)

func WithCommunicator(c comm.Communicator) Option { return func(m *Mesh) { m.comm = c } }
func WithLogger(l logging.Logger) Option          { return func(m *Mesh) { m.log = l } }
func WithMetrics(c *observability.MeshCollector) Option {
	return func(m *Mesh) { m.met = c }
}
func WithGrainSize(grain int) Option         { return func(m *Mesh) { m.grainSize = grain } }
func WithHaloExchange(h HaloExchange) Option { return func(m *Mesh) { m.halo = h } }

// WithParticleType fixes the particle type before any particle exists, ranks that start
// empty need it to decode migrated particles
func WithParticleType(pt types.ParticleType) Option { return func(m *Mesh) { m.ptype = pt } }

func NewMesh(id, dim int, opts ...Option) (m *Mesh, err error) {
	if dim != 2 && dim != 3 {
		return nil, fmt.Errorf("mesh %d: %w: dimension %d", id, ErrInvalidValue, dim)
	}
	m = &Mesh{
		id:                  id,
		dim:                 dim,
		grainSize:           utils.DefaultGrainSize,
		nodes:               container.NewContainer[*Node](),
		nodeMap:             container.NewMap[*Node](),
		activeNodes:         container.NewContainer[*Node](),
		cells:               container.NewContainer[*Cell](),
		cellMap:             container.NewMap[*Cell](),
		particles:           container.NewContainer[*Particle](),
		particleMap:         container.NewMap[*Particle](),
		ghostCells:          container.NewContainer[*Cell](),
		ghostCellRanks:      make(map[types.Index][]int),
		localGhostCells:     container.NewContainer[*Cell](),
		localGhostCellRanks: make(map[types.Index][]int),
		nodeCells:           make(map[types.Index][]types.Index),
		faceCells:           make(map[string][]types.Index),
		materials:           make(map[uint32]*material.Material),
		functions:           make(map[int]function.Function),
		nodeSets:            make(map[int][]*Node),
		cellSets:            make(map[int][]*Cell),
		particleSets:        make(map[int][]types.Index),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.comm == nil {
		m.comm = comm.Single()
	}
	if m.log == nil {
		m.log = logging.Noop()
	}
	if m.halo == nil {
		m.halo = PointToPointHalo{}
	}
	if m.ptype != types.P_None && m.ptype.Dim() != dim {
		return nil, fmt.Errorf("mesh %d: %w: %s particles in a %dD mesh", id, ErrDimensionMismatch, m.ptype, dim)
	}
	if m.grainSize < 1 {
		return nil, fmt.Errorf("mesh %d: %w: grain size %d", id, ErrInvalidValue, m.grainSize)
	}
	m.log = m.log.With(logging.Int("mesh", id), logging.Rank(m.comm.Rank()))
	return
}

func (m *Mesh) ID() int                                   { return m.id }
func (m *Mesh) Dim() int                                  { return m.dim }
func (m *Mesh) Rank() int                                 { return m.comm.Rank() }
func (m *Mesh) Communicator() comm.Communicator           { return m.comm }
func (m *Mesh) GrainSize() int                            { return m.grainSize }
func (m *Mesh) Halo() HaloExchange                        { return m.halo }
func (m *Mesh) NNodes() int                               { return m.nodes.Size() }
func (m *Mesh) NCells() int                               { return m.cells.Size() }
func (m *Mesh) NParticles() int                           { return m.particles.Size() }
func (m *Mesh) NActiveNodes() int                         { return m.activeNodes.Size() }
func (m *Mesh) NGhostCells() int                          { return m.ghostCells.Size() }
func (m *Mesh) NLocalGhostCells() int                     { return m.localGhostCells.Size() }
func (m *Mesh) NSharedNodes() int                         { return len(m.sharedNodes) }
func (m *Mesh) Nodes() []*Node                            { return m.nodes.Items() }
func (m *Mesh) Cells() []*Cell                            { return m.cells.Items() }
func (m *Mesh) Particles() []*Particle                    { return m.particles.Items() }
func (m *Mesh) SharedNodes() []*Node                      { return m.sharedNodes }
func (m *Mesh) Node(id types.Index) (*Node, bool)         { return m.nodeMap.Find(id) }
func (m *Mesh) Cell(id types.Index) (*Cell, bool)         { return m.cellMap.Find(id) }
func (m *Mesh) Particle(id types.Index) (*Particle, bool) { return m.particleMap.Find(id) }

// Status is true while the mesh holds at least one particle
func (m *Mesh) Status() bool { return m.particles.Size() > 0 }

func (m *Mesh) warn(msg string, err error, fields ...logging.Field) {
	m.log.Warn(context.Background(), msg, append(fields, logging.Err(err))...)
}

// CreateNodes makes one node per coordinate with consecutive ids from gnid. Nothing is
// added unless every node can be. The identity map refuses an id already in use, so
// that check runs before the first insert whatever checkDuplicates says.
func (m *Mesh) CreateNodes(gnid types.Index, ntype types.NodeType, coords [][]float64, checkDuplicates bool) (err error) {
	defer func() {
		if err != nil {
			m.warn("create nodes failed", err)
		}
	}()
	if len(coords) == 0 {
		return fmt.Errorf("create nodes: %w", ErrEmptyInput)
	}
	if ntype.Dim() != m.dim {
		return fmt.Errorf("create nodes: %w: %s nodes in a %dD mesh", ErrDimensionMismatch, ntype, m.dim)
	}
	ctor, err := nodeConstructor(ntype)
	if err != nil {
		return
	}
	created := make([]*Node, len(coords))
	for k, x := range coords {
		id := gnid + types.Index(k)
		if m.nodeMap.Has(id) {
			return fmt.Errorf("create nodes: node %d: %w", id, ErrDuplicateID)
		}
		if created[k], err = ctor(id, x); err != nil {
			return
		}
	}
	for _, n := range created {
		if err = m.addNode(n); err != nil {
			return
		}
	}
	return
}

// AddNode inserts n, replacing nothing: an existing id is refused when checking duplicates
func (m *Mesh) AddNode(n *Node, checkDuplicates bool) (err error) {
	if n.Dim() != m.dim {
		err = fmt.Errorf("add node %d: %w", n.ID(), ErrDimensionMismatch)
	} else if checkDuplicates && m.nodeMap.Has(n.ID()) {
		err = fmt.Errorf("add node %d: %w", n.ID(), ErrDuplicateID)
	} else {
		err = m.addNode(n)
	}
	if err != nil {
		m.warn("add node failed", err)
	}
	return
}

func (m *Mesh) addNode(n *Node) (err error) {
	if err = m.nodes.Add(n, false); err != nil {
		return
	}
	if err = m.nodeMap.Insert(n.ID(), n); err != nil {
		_ = m.nodes.Remove(n)
		return fmt.Errorf("node %d: %w", n.ID(), ErrDuplicateID)
	}
	return
}

func (m *Mesh) RemoveNode(n *Node) (err error) {
	if err = m.nodes.Remove(n); err != nil {
		m.warn("remove node failed", err, logging.Uint64("node", uint64(n.ID())))
		return
	}
	_ = m.nodeMap.Remove(n.ID())
	if m.activeNodes.Has(n) {
		_ = m.activeNodes.Remove(n)
	}
	return
}

// CreateCells builds cells of element type elName from node id lists with consecutive
// ids from gcid. The cells are initialised and owned by the local rank. As with
// CreateNodes a used id fails the whole batch before anything is added.
func (m *Mesh) CreateCells(gcid types.Index, elName string, connectivity [][]types.Index, checkDuplicates bool) (err error) {
	defer func() {
		if err != nil {
			m.warn("create cells failed", err)
		}
	}()
	if len(connectivity) == 0 {
		return fmt.Errorf("create cells: %w", ErrEmptyInput)
	}
	el, err := element.New(elName)
	if err != nil {
		return
	}
	if el.Dim() != m.dim {
		return fmt.Errorf("create cells: %w: %s cells in a %dD mesh", ErrDimensionMismatch, elName, m.dim)
	}
	created := make([]*Cell, len(connectivity))
	for k, nids := range connectivity {
		id := gcid + types.Index(k)
		if m.cellMap.Has(id) {
			return fmt.Errorf("create cells: cell %d: %w", id, ErrDuplicateID)
		}
		if created[k], err = m.newCell(id, el, nids); err != nil {
			return
		}
	}
	for _, c := range created {
		if err = m.addCell(c); err != nil {
			return
		}
	}
	return
}

func (m *Mesh) newCell(id types.Index, el element.Element, nids []types.Index) (c *Cell, err error) {
	if len(nids) != el.NNodes() {
		return nil, fmt.Errorf("cell %d: %w: %d node ids for %s", id, ErrInvalidValue, len(nids), el.Name())
	}
	c = NewCell(id, el)
	for k, nid := range nids {
		n, ok := m.nodeMap.Find(nid)
		if !ok {
			return nil, fmt.Errorf("cell %d: node %d: %w", id, nid, ErrNotFound)
		}
		if err = c.AddNode(k, n); err != nil {
			return
		}
	}
	if err = c.Initialise(); err != nil {
		return
	}
	c.AssignRank(m.Rank())
	return
}

// AddCell inserts an initialised cell, neighbours must be recomputed afterwards
func (m *Mesh) AddCell(c *Cell, checkDuplicates bool) (err error) {
	switch {
	case c.Element().Dim() != m.dim:
		err = fmt.Errorf("add cell %d: %w", c.ID(), ErrDimensionMismatch)
	case !c.IsInitialised():
		err = fmt.Errorf("add cell %d: %w", c.ID(), ErrCellNotInitialised)
	case checkDuplicates && m.cellMap.Has(c.ID()):
		err = fmt.Errorf("add cell %d: %w", c.ID(), ErrDuplicateID)
	default:
		err = m.addCell(c)
	}
	if err != nil {
		m.warn("add cell failed", err)
	}
	return
}

func (m *Mesh) addCell(c *Cell) (err error) {
	if err = m.cells.Add(c, false); err != nil {
		return
	}
	if err = m.cellMap.Insert(c.ID(), c); err != nil {
		_ = m.cells.Remove(c)
		return fmt.Errorf("cell %d: %w", c.ID(), ErrDuplicateID)
	}
	m.neighboursComputed = false
	return
}

// RemoveCell drops the cell and unbinds its particles
func (m *Mesh) RemoveCell(c *Cell) (err error) {
	if err = m.cells.Remove(c); err != nil {
		m.warn("remove cell failed", err, logging.Uint64("cell", uint64(c.ID())))
		return
	}
	_ = m.cellMap.Remove(c.ID())
	for _, pid := range c.ParticleIDs() {
		if p, ok := m.particleMap.Find(pid); ok {
			p.RemoveCell()
		}
	}
	m.neighboursComputed = false
	return
}

// nextParticleID starts the free id range: it and every id above it are unused. That is
// the particle count when the ids are exactly 0..count-1, else one past the largest id.
func (m *Mesh) nextParticleID() types.Index {
	next := types.Index(m.particles.Size())
	for _, p := range m.particles.Items() {
		if p.ID() >= next {
			next = p.ID() + 1
		}
	}
	return next
}

// CreateParticles makes particles of ptype at coords with material mid. Particles
// are not located here, LocateParticles binds them to cells.
func (m *Mesh) CreateParticles(ptype types.ParticleType, coords [][]float64, mid uint32, checkDuplicates bool) (err error) {
	defer func() {
		if err != nil {
			m.warn("create particles failed", err)
		}
	}()
	if len(coords) == 0 {
		return fmt.Errorf("create particles: %w", ErrEmptyInput)
	}
	mat, ok := m.materials[mid]
	if !ok {
		return fmt.Errorf("create particles: material %d: %w", mid, ErrMaterialNotFound)
	}
	if err = m.checkParticleType(ptype); err != nil {
		return
	}
	ctor, err := particleConstructor(ptype)
	if err != nil {
		return
	}
	created := make([]*Particle, len(coords))
	next := m.nextParticleID()
	for k, x := range coords {
		id := next + types.Index(k)
		if m.particleMap.Has(id) {
			return fmt.Errorf("create particles: particle %d: %w", id, ErrDuplicateID)
		}
		if created[k], err = ctor(id, x); err != nil {
			return
		}
		if err = created[k].AssignMaterial(mat); err != nil {
			return
		}
	}
	for _, p := range created {
		if err = m.addParticle(p); err != nil {
			return
		}
	}
	return
}

func (m *Mesh) checkParticleType(pt types.ParticleType) error {
	if pt.Dim() != m.dim {
		return fmt.Errorf("%w: %s particles in a %dD mesh", ErrDimensionMismatch, pt, m.dim)
	}
	if m.ptype != types.P_None && m.ptype != pt {
		return fmt.Errorf("%w: %s particle in a mesh of %s", ErrParticleTypeMismatch, pt, m.ptype)
	}
	return nil
}

// AddParticle inserts p. When p is already bound its cell keeps the membership.
func (m *Mesh) AddParticle(p *Particle, checkDuplicates bool) (err error) {
	if err = m.checkParticleType(p.Type()); err == nil {
		if checkDuplicates && m.particleMap.Has(p.ID()) {
			err = fmt.Errorf("add particle %d: %w", p.ID(), ErrDuplicateID)
		} else {
			err = m.addParticle(p)
		}
	}
	if err != nil {
		m.warn("add particle failed", err)
	}
	return
}

func (m *Mesh) addParticle(p *Particle) (err error) {
	if err = m.particles.Add(p, false); err != nil {
		return
	}
	if err = m.particleMap.Insert(p.ID(), p); err != nil {
		_ = m.particles.Remove(p)
		return fmt.Errorf("particle %d: %w", p.ID(), ErrDuplicateID)
	}
	m.ptype = p.Type()
	return
}

func (m *Mesh) RemoveParticle(p *Particle) (err error) {
	if err = m.particles.Remove(p); err != nil {
		m.warn("remove particle failed", err, logging.Uint64("particle", uint64(p.ID())))
		return
	}
	p.RemoveCell()
	if cur, ok := m.particleMap.Find(p.ID()); ok && cur == p {
		_ = m.particleMap.Remove(p.ID())
	}
	return
}

func (m *Mesh) RemoveParticleByID(id types.Index) (err error) {
	p, ok := m.particleMap.Find(id)
	if !ok {
		err = fmt.Errorf("remove particle %d: %w", id, ErrNotFound)
		m.warn("remove particle failed", err)
		return
	}
	return m.RemoveParticle(p)
}

// RemoveParticles removes every listed particle, or none if an id is unknown
func (m *Mesh) RemoveParticles(ids []types.Index) (err error) {
	doomed := make([]*Particle, 0, len(ids))
	for _, id := range ids {
		p, ok := m.particleMap.Find(id)
		if !ok {
			err = fmt.Errorf("remove particles: particle %d: %w", id, ErrNotFound)
			m.warn("remove particles failed", err)
			return
		}
		doomed = append(doomed, p)
	}
	for _, p := range doomed {
		if err = m.RemoveParticle(p); err != nil {
			return
		}
	}
	return
}

// RemoveAllNonRankParticles drops the particles located in cells owned by other ranks
func (m *Mesh) RemoveAllNonRankParticles() (removed int) {
	var doomed []*Particle
	for _, p := range m.particles.Items() {
		if c := p.Cell(); c != nil && c.Rank() != m.Rank() {
			doomed = append(doomed, p)
		}
	}
	for _, p := range doomed {
		if m.RemoveParticle(p) == nil {
			removed++
		}
	}
	return
}

// InitialiseMaterialModels registers the materials particles refer to by id
func (m *Mesh) InitialiseMaterialModels(mats []*material.Material) (err error) {
	seen := make(map[uint32]bool, len(mats))
	for _, mt := range mats {
		if mt.Dim() != m.dim {
			err = fmt.Errorf("material %d: %w: %s in a %dD mesh", mt.ID, ErrDimensionMismatch, mt.Type, m.dim)
		} else if seen[mt.ID] || m.materials[mt.ID] != nil {
			err = fmt.Errorf("material %d: %w", mt.ID, ErrDuplicateID)
		}
		if err != nil {
			m.warn("initialise materials failed", err)
			return
		}
		seen[mt.ID] = true
	}
	for _, mt := range mats {
		m.materials[mt.ID] = mt
	}
	return
}

func (m *Mesh) Material(id uint32) (mt *material.Material, ok bool) {
	mt, ok = m.materials[id]
	return
}

// Materials returns the registered materials ordered by id
func (m *Mesh) Materials() (mats []*material.Material) {
	for _, mt := range m.materials {
		mats = append(mats, mt)
	}
	sort.Slice(mats, func(i, j int) bool { return mats[i].ID < mats[j].ID })
	return
}

// AddFunction registers a load function for use by tractions and nodal forces
func (m *Mesh) AddFunction(f function.Function) (err error) {
	if _, ok := m.functions[f.ID()]; ok {
		return fmt.Errorf("function %d: %w", f.ID(), ErrDuplicateID)
	}
	m.functions[f.ID()] = f
	return
}

func (m *Mesh) Function(id int) (f function.Function, ok bool) {
	f, ok = m.functions[id]
	return
}
