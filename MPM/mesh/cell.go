package mesh

import (
	"fmt"
	"sort"
	"sync"

	"github.com/notargets/gompm/MPM/element"
	"github.com/notargets/gompm/types"
	"github.com/notargets/gompm/utils"
)

// Cell is an element of the background mesh. It references its nodes and keeps the ids
// of the particles it currently holds.
type Cell struct {
	id    types.Index
	el    element.Element
	nodes []*Node
	rank  int

	initialised bool
	coords      [][]float64 // node coordinates in element order
	lo, hi      []float64   // bounding box
	volume      float64
	centroid    []float64

	neighbours []types.Index

	mu        sync.Mutex
	particles map[types.Index]struct{}
}

func NewCell(id types.Index, el element.Element) *Cell {
	return &Cell{
		id:        id,
		el:        el,
		nodes:     make([]*Node, el.NNodes()),
		particles: make(map[types.Index]struct{}),
	}
}

func (c *Cell) ID() types.Index              { return c.id }
func (c *Cell) Element() element.Element     { return c.el }
func (c *Cell) Rank() int                    { return c.rank }
func (c *Cell) AssignRank(rank int)          { c.rank = rank }
func (c *Cell) IsInitialised() bool          { return c.initialised }
func (c *Cell) Volume() float64              { return c.volume }
func (c *Cell) Centroid() []float64          { return c.centroid }
func (c *Cell) Neighbours() []types.Index    { return c.neighbours }
func (c *Cell) NodeCoordinates() [][]float64 { return c.coords }

// AddNode binds node n to local position k
func (c *Cell) AddNode(k int, n *Node) (err error) {
	if k < 0 || k >= len(c.nodes) {
		return fmt.Errorf("cell %d: %w: local node %d of %d", c.id, ErrInvalidValue, k, len(c.nodes))
	}
	if n.Dim() != c.el.Dim() {
		return fmt.Errorf("cell %d: %w: node %d is %dD in a %dD cell", c.id, ErrDimensionMismatch, n.ID(), n.Dim(), c.el.Dim())
	}
	c.nodes[k] = n
	c.initialised = false
	return
}

// NNodes is the number of bound nodes
func (c *Cell) NNodes() (nn int) {
	for _, n := range c.nodes {
		if n != nil {
			nn++
		}
	}
	return
}

func (c *Cell) Nodes() []*Node { return c.nodes }

func (c *Cell) NodeIDs() (ids []types.Index) {
	ids = make([]types.Index, len(c.nodes))
	for k, n := range c.nodes {
		ids[k] = n.ID()
	}
	return
}

// Initialise caches the geometry once every declared node has been bound
func (c *Cell) Initialise() (err error) {
	if c.NNodes() != c.el.NNodes() {
		return fmt.Errorf("cell %d: %w: %d of %d nodes bound", c.id, ErrCellNotInitialised, c.NNodes(), c.el.NNodes())
	}
	c.coords = make([][]float64, len(c.nodes))
	for k, n := range c.nodes {
		c.coords[k] = n.Coordinates()
	}
	c.volume = element.Volume(c.el, c.coords)
	if c.volume <= 0 {
		return fmt.Errorf("cell %d: %w: non positive volume %g, check node ordering", c.id, ErrInvalidValue, c.volume)
	}
	c.lo, c.hi = element.BoundingBox(c.coords)
	c.centroid = element.GlobalCoordinates(c.el, c.el.Centroid(), c.coords)
	c.initialised = true
	return
}

// IsPointInCell returns the reference coordinates of x when the cell contains it
func (c *Cell) IsPointInCell(x []float64) (xi []float64, ok bool) {
	if !c.initialised || len(x) != c.el.Dim() {
		return nil, false
	}
	for i := range x {
		pad := utils.CELLTOL * (c.hi[i] - c.lo[i])
		if x[i] < c.lo[i]-pad || x[i] > c.hi[i]+pad {
			return nil, false
		}
	}
	if xi, ok = c.el.LocalCoordinates(x, c.coords); !ok {
		return nil, false
	}
	return xi, c.el.IsInside(xi, utils.CELLTOL)
}

// GlobalCoordinates maps reference coordinates into the cell
func (c *Cell) GlobalCoordinates(xi []float64) []float64 {
	return element.GlobalCoordinates(c.el, xi, c.coords)
}

func (c *Cell) AssignNeighbours(ids []types.Index) { c.neighbours = ids }

func (c *Cell) AddParticleID(id types.Index) {
	c.mu.Lock()
	c.particles[id] = struct{}{}
	c.mu.Unlock()
}

func (c *Cell) RemoveParticleID(id types.Index) {
	c.mu.Lock()
	delete(c.particles, id)
	c.mu.Unlock()
}

func (c *Cell) ClearParticleIDs() {
	c.mu.Lock()
	clear(c.particles)
	c.mu.Unlock()
}

func (c *Cell) NParticles() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.particles)
}

// ParticleIDs returns the resident particle ids in ascending order
func (c *Cell) ParticleIDs() (ids []types.Index) {
	c.mu.Lock()
	ids = make([]types.Index, 0, len(c.particles))
	for id := range c.particles {
		ids = append(ids, id)
	}
	c.mu.Unlock()
	sort.Sort(types.IndexSlice(ids))
	return
}

// Status is true while the cell holds particles
func (c *Cell) Status() bool { return c.NParticles() > 0 }

// SideNodeIDs returns the node id pairs of the cell edges
func (c *Cell) SideNodeIDs() (pairs [][2]types.Index) {
	for _, e := range c.el.Edges() {
		pairs = append(pairs, [2]types.Index{c.nodes[e[0]].ID(), c.nodes[e[1]].ID()})
	}
	return
}
