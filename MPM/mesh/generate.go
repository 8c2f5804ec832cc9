package mesh

import (
	"fmt"

	"github.com/notargets/gompm/MPM/element"
	"github.com/notargets/gompm/types"
)

// CoordinateReader reads particle coordinates from a file
type CoordinateReader interface {
	ReadParticles(path string) (coords [][]float64, err error)
}

// ReaderLookup resolves a reader type name such as "Ascii2D"
type ReaderLookup func(name string) (CoordinateReader, error)

// Generator selects how particles are made: "file" reads coordinates with Reader from
// File, "gauss" places NPoints per direction at the Gauss points of cell set CellSetID
type Generator struct {
	Type            string
	Reader          string
	File            string
	CheckDuplicates bool
	ParticleType    types.ParticleType
	MaterialID      uint32
	NPoints         int
	CellSetID       int
}

// GenerateParticles makes particles from gen and locates them, returning those outside the mesh
func (m *Mesh) GenerateParticles(gen Generator, readers ReaderLookup) (unlocated []*Particle, err error) {
	switch gen.Type {
	case "file":
		if err = m.readParticlesFile(gen, readers); err != nil {
			return
		}
	case "gauss":
		if err = m.GenerateMaterialPoints(gen.NPoints, gen.ParticleType, gen.MaterialID, gen.CellSetID); err != nil {
			return
		}
	default:
		err = fmt.Errorf("%w: particle generator %q", ErrInvalidValue, gen.Type)
		m.warn("generate particles failed", err)
		return
	}
	unlocated = m.LocateParticles()
	return
}

func (m *Mesh) readParticlesFile(gen Generator, readers ReaderLookup) (err error) {
	if readers == nil {
		return fmt.Errorf("%w: no particle readers", ErrInvalidValue)
	}
	rd, err := readers(gen.Reader)
	if err != nil {
		return
	}
	coords, err := rd.ReadParticles(gen.File)
	if err != nil {
		return fmt.Errorf("particle file %s: %w", gen.File, err)
	}
	return m.CreateParticles(gen.ParticleType, coords, gen.MaterialID, gen.CheckDuplicates)
}

/*
GenerateMaterialPoints places nquad points per direction at the Gauss points of every
cell in set csetID, types.AllSet meaning every cell. Each particle is bound to its cell
with the quadrature weight times the Jacobian as volume and the mass that volume holds.
*/
func (m *Mesh) GenerateMaterialPoints(nquad int, ptype types.ParticleType, mid uint32, csetID int) (err error) {
	defer func() {
		if err != nil {
			m.warn("generate material points failed", err)
		}
	}()
	if nquad < 1 {
		return fmt.Errorf("%w: %d points per direction", ErrInvalidValue, nquad)
	}
	mat, ok := m.materials[mid]
	if !ok {
		return fmt.Errorf("material %d: %w", mid, ErrMaterialNotFound)
	}
	if err = m.checkParticleType(ptype); err != nil {
		return
	}
	ctor, err := particleConstructor(ptype)
	if err != nil {
		return
	}
	cells, err := m.CellSet(csetID)
	if err != nil {
		return
	}
	type binding struct {
		c  *Cell
		xi []float64
	}
	var (
		created  []*Particle
		bindings []binding
		next     = m.nextParticleID()
	)
	for _, c := range cells {
		points, weights := c.Element().Quadrature(nquad)
		for q, xi := range points {
			var (
				p    *Particle
				detJ float64
			)
			if p, err = ctor(next+types.Index(len(created)), c.GlobalCoordinates(xi)); err != nil {
				return
			}
			if _, detJ, err = element.GlobalGradients(c.Element(), xi, c.NodeCoordinates()); err != nil {
				return fmt.Errorf("cell %d: %w", c.ID(), err)
			}
			if err = p.AssignMaterial(mat); err != nil {
				return
			}
			if err = p.AssignVolume(weights[q] * detJ); err != nil {
				return
			}
			_ = p.ComputeMass()
			created = append(created, p)
			bindings = append(bindings, binding{c: c, xi: xi})
		}
	}
	if len(created) == 0 {
		return fmt.Errorf("generate material points: %w", ErrEmptyInput)
	}
	for k, p := range created {
		if err = m.addParticle(p); err != nil {
			return
		}
		p.bind(bindings[k].c, bindings[k].xi)
	}
	return
}
