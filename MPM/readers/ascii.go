package readers

import (
	"fmt"

	"github.com/notargets/gompm/MPM/mesh"
	"github.com/notargets/gompm/types"
)

/*
Ascii reads the plain mesh format:

	! comment lines start with '!' or '#'
	nnodes ncells
	x y [z]            one line per node
	n0 n1 n2 ...       one line per cell, zero based node ids

Particle coordinate files hold a particle count then one coordinate per line.
*/
type Ascii struct {
	dim int
}

func (a Ascii) Name() string { return fmt.Sprintf("Ascii%dD", a.dim) }
func (a Ascii) Dim() int     { return a.dim }

func (a Ascii) ReadMesh(path string) (md *MeshData, err error) {
	ls, err := openLines(path)
	if err != nil {
		return
	}
	defer ls.Close()
	header, err := ls.Expect(2, "header")
	if err != nil {
		return
	}
	var nnodes, ncells int
	if nnodes, err = ls.Int(header[0]); err != nil {
		return
	}
	if ncells, err = ls.Int(header[1]); err != nil {
		return
	}
	if nnodes < 1 || ncells < 1 {
		return nil, ls.Errorf("%d nodes and %d cells", nnodes, ncells)
	}
	md = &MeshData{}
	md.Coordinates = make([][]float64, nnodes)
	for i := range md.Coordinates {
		var fields []string
		if fields, err = ls.Expect(a.dim, "node coordinates"); err != nil {
			return nil, err
		}
		if md.Coordinates[i], err = ls.Floats(fields[:a.dim]); err != nil {
			return nil, err
		}
	}
	md.Cells = make([][]types.Index, ncells)
	for i := range md.Cells {
		var (
			fields []string
			name   string
		)
		if fields, err = ls.Expect(1, "cell connectivity"); err != nil {
			return nil, err
		}
		if name, err = elementName(a.dim, len(fields)); err != nil {
			return nil, fmt.Errorf("%s: cell %d: %w", path, i, err)
		}
		if md.Element == "" {
			md.Element = name
		} else if name != md.Element {
			return nil, ls.Errorf("cell %d is %s in a mesh of %s", i, name, md.Element)
		}
		cell := make([]types.Index, len(fields))
		for k, f := range fields {
			if cell[k], err = ls.Index(f); err != nil {
				return nil, err
			}
			if int(cell[k]) >= nnodes {
				return nil, ls.Errorf("cell %d: node %d of %d", i, cell[k], nnodes)
			}
		}
		md.Cells[i] = cell
	}
	return
}

func (a Ascii) ReadParticles(path string) (coords [][]float64, err error) {
	ls, err := openLines(path)
	if err != nil {
		return
	}
	defer ls.Close()
	header, err := ls.Expect(1, "particle count")
	if err != nil {
		return
	}
	n, err := ls.Int(header[0])
	if err != nil {
		return
	}
	if n < 0 {
		return nil, ls.Errorf("%d particles", n)
	}
	coords = make([][]float64, n)
	for i := range coords {
		var fields []string
		if fields, err = ls.Expect(a.dim, "particle coordinates"); err != nil {
			return nil, err
		}
		if coords[i], err = ls.Floats(fields[:a.dim]); err != nil {
			return nil, err
		}
	}
	return
}

// ReadParticlesVolumes reads "id volume" lines
func (a Ascii) ReadParticlesVolumes(path string) (volumes []mesh.ParticleVolume, err error) {
	err = readRecords(path, 2, func(ls *lineScanner, fields []string) (err error) {
		var pv mesh.ParticleVolume
		if pv.Particle, err = ls.Index(fields[0]); err != nil {
			return
		}
		var v []float64
		if v, err = ls.Floats(fields[1:2]); err != nil {
			return
		}
		pv.Volume = v[0]
		volumes = append(volumes, pv)
		return
	})
	return
}

// ReadParticlesCells reads "particle_id cell_id" lines
func (a Ascii) ReadParticlesCells(path string) (pcs []mesh.ParticleCell, err error) {
	err = readRecords(path, 2, func(ls *lineScanner, fields []string) (err error) {
		var pc mesh.ParticleCell
		if pc.Particle, err = ls.Index(fields[0]); err != nil {
			return
		}
		if pc.Cell, err = ls.Index(fields[1]); err != nil {
			return
		}
		pcs = append(pcs, pc)
		return
	})
	return
}

// ReadParticlesStresses reads a particle count then six Voigt components per line
func (a Ascii) ReadParticlesStresses(path string) (stresses [][6]float64, err error) {
	ls, err := openLines(path)
	if err != nil {
		return
	}
	defer ls.Close()
	header, err := ls.Expect(1, "particle count")
	if err != nil {
		return
	}
	n, err := ls.Int(header[0])
	if err != nil {
		return
	}
	if n < 0 {
		return nil, ls.Errorf("%d stresses", n)
	}
	stresses = make([][6]float64, n)
	for i := range stresses {
		var (
			fields []string
			v      []float64
		)
		if fields, err = ls.Expect(6, "stress"); err != nil {
			return nil, err
		}
		if v, err = ls.Floats(fields[:6]); err != nil {
			return nil, err
		}
		copy(stresses[i][:], v)
	}
	return
}

// ReadVelocityConstraints reads "node dir velocity" lines
func (a Ascii) ReadVelocityConstraints(path string) (vcs []mesh.NodalVelocityConstraint, err error) {
	err = readRecords(path, 3, func(ls *lineScanner, fields []string) (err error) {
		var vc mesh.NodalVelocityConstraint
		if vc.Node, err = ls.Index(fields[0]); err != nil {
			return
		}
		if vc.Dir, err = ls.Int(fields[1]); err != nil {
			return
		}
		var v []float64
		if v, err = ls.Floats(fields[2:3]); err != nil {
			return
		}
		vc.Velocity = v[0]
		vcs = append(vcs, vc)
		return
	})
	return
}

// ReadFrictionConstraints reads "node dir sign friction" lines
func (a Ascii) ReadFrictionConstraints(path string) (fcs []mesh.NodalFrictionConstraint, err error) {
	err = readRecords(path, 4, func(ls *lineScanner, fields []string) (err error) {
		var fc mesh.NodalFrictionConstraint
		if fc.Node, err = ls.Index(fields[0]); err != nil {
			return
		}
		if fc.Dir, err = ls.Int(fields[1]); err != nil {
			return
		}
		if fc.Sign, err = ls.Int(fields[2]); err != nil {
			return
		}
		var v []float64
		if v, err = ls.Floats(fields[3:4]); err != nil {
			return
		}
		fc.Friction = v[0]
		fcs = append(fcs, fc)
		return
	})
	return
}

// ReadForces reads "node dir force" lines
func (a Ascii) ReadForces(path string) (forces []mesh.NodalForce, err error) {
	err = readRecords(path, 3, func(ls *lineScanner, fields []string) (err error) {
		var f mesh.NodalForce
		if f.Node, err = ls.Index(fields[0]); err != nil {
			return
		}
		if f.Dir, err = ls.Int(fields[1]); err != nil {
			return
		}
		var v []float64
		if v, err = ls.Floats(fields[2:3]); err != nil {
			return
		}
		f.Force = v[0]
		forces = append(forces, f)
		return
	})
	return
}

// ReadEulerAngles reads a node id followed by dim angles in radians
func (a Ascii) ReadEulerAngles(path string) (angles map[types.Index][]float64, err error) {
	angles = make(map[types.Index][]float64)
	err = readRecords(path, 1+a.dim, func(ls *lineScanner, fields []string) (err error) {
		var id types.Index
		if id, err = ls.Index(fields[0]); err != nil {
			return
		}
		if _, dup := angles[id]; dup {
			return ls.Errorf("node %d listed twice", id)
		}
		angles[id], err = ls.Floats(fields[1 : 1+a.dim])
		return
	})
	if err != nil {
		return nil, err
	}
	return
}
