package readers

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/notargets/gompm/MPM/mesh"
	"github.com/notargets/gompm/types"
)

/*
Reader loads a mesh and the particle and boundary condition files that go with it.
Every file other than the mesh is plain text, one record per line, with '!' or '#'
starting a comment.
*/
type Reader interface {
	Name() string
	Dim() int
	ReadMesh(path string) (*MeshData, error)
	ReadParticles(path string) ([][]float64, error)
	ReadParticlesVolumes(path string) ([]mesh.ParticleVolume, error)
	ReadParticlesCells(path string) ([]mesh.ParticleCell, error)
	ReadParticlesStresses(path string) ([][6]float64, error)
	ReadVelocityConstraints(path string) ([]mesh.NodalVelocityConstraint, error)
	ReadFrictionConstraints(path string) ([]mesh.NodalFrictionConstraint, error)
	ReadForces(path string) ([]mesh.NodalForce, error)
	ReadEulerAngles(path string) (map[types.Index][]float64, error)
}

// MeshData is a mesh as read from file, node and cell ids renumbered from zero
type MeshData struct {
	mesh.Grid
	NodeSets map[int][]types.Index
	CellSets map[int][]types.Index
}

// Build creates the nodes, cells and sets of md in m and computes the cell neighbours
func (md *MeshData) Build(m *mesh.Mesh, ntype types.NodeType) (err error) {
	if err = md.Grid.Build(m, ntype); err != nil {
		return
	}
	if len(md.NodeSets) > 0 {
		if err = m.CreateNodeSets(md.NodeSets, true); err != nil {
			return
		}
	}
	if len(md.CellSets) > 0 {
		err = m.CreateCellSets(md.CellSets, true)
	}
	return
}

var registry = map[string]func() Reader{
	"Ascii2D": func() Reader { return Ascii{dim: 2} },
	"Ascii3D": func() Reader { return Ascii{dim: 3} },
	"Gmsh2D":  func() Reader { return Gmsh{Ascii{dim: 2}} },
	"Gmsh3D":  func() Reader { return Gmsh{Ascii{dim: 3}} },
}

func Names() (names []string) {
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return
}

func New(name string) (Reader, error) {
	ctor, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: reader %q, available: %v", mesh.ErrInvalidValue, name, Names())
	}
	return ctor(), nil
}

// Lookup resolves particle coordinate readers for mesh.GenerateParticles
func Lookup(name string) (mesh.CoordinateReader, error) { return New(name) }

// elementName picks the element from the dimension and the nodes per cell
func elementName(dim, nnodes int) (string, error) {
	switch {
	case dim == 2 && nnodes == 4:
		return "ED2Q4", nil
	case dim == 2 && nnodes == 3:
		return "ED2T3", nil
	case dim == 3 && nnodes == 8:
		return "ED3H8", nil
	case dim == 3 && nnodes == 4:
		return "ED3T4", nil
	}
	return "", fmt.Errorf("%w: no %dD element with %d nodes", mesh.ErrInvalidValue, dim, nnodes)
}

// lineScanner yields the fields of the non blank, non comment lines of a file
type lineScanner struct {
	path    string
	file    *os.File
	scanner *bufio.Scanner
	line    int
}

func openLines(path string) (ls *lineScanner, err error) {
	ls = &lineScanner{path: path}
	if ls.file, err = os.Open(path); err != nil {
		return nil, err
	}
	ls.scanner = bufio.NewScanner(ls.file)
	const maxScanTokenSize = 1024 * 1024
	ls.scanner.Buffer(make([]byte, 64*1024), maxScanTokenSize)
	return
}

func (ls *lineScanner) Close() error { return ls.file.Close() }

// Next returns the next record, nil at the end of the file
func (ls *lineScanner) Next() (fields []string, err error) {
	for ls.scanner.Scan() {
		ls.line++
		line := strings.TrimSpace(ls.scanner.Text())
		if line == "" || line[0] == '!' || line[0] == '#' {
			continue
		}
		return strings.Fields(line), nil
	}
	return nil, ls.scanner.Err()
}

// Expect returns the next record, which must have at least n fields
func (ls *lineScanner) Expect(n int, what string) (fields []string, err error) {
	if fields, err = ls.Next(); err != nil {
		return
	}
	if fields == nil {
		return nil, fmt.Errorf("%s: unexpected EOF reading %s", ls.path, what)
	}
	if len(fields) < n {
		return nil, ls.Errorf("%s has %d fields, want %d", what, len(fields), n)
	}
	return
}

func (ls *lineScanner) Errorf(format string, args ...interface{}) error {
	return fmt.Errorf("%s:%d: %w: %s", ls.path, ls.line, mesh.ErrInvalidValue, fmt.Sprintf(format, args...))
}

func (ls *lineScanner) Floats(fields []string) (vals []float64, err error) {
	vals = make([]float64, len(fields))
	for k, f := range fields {
		if vals[k], err = strconv.ParseFloat(f, 64); err != nil {
			return nil, ls.Errorf("invalid number %q", f)
		}
	}
	return
}

func (ls *lineScanner) Int(field string) (val int, err error) {
	if val, err = strconv.Atoi(field); err != nil {
		return 0, ls.Errorf("invalid integer %q", field)
	}
	return
}

func (ls *lineScanner) Index(field string) (types.Index, error) {
	val, err := strconv.ParseUint(field, 10, 64)
	if err != nil {
		return 0, ls.Errorf("invalid id %q", field)
	}
	return types.Index(val), nil
}

// readRecords calls fn with every record of path that has at least n fields
func readRecords(path string, n int, fn func(ls *lineScanner, fields []string) error) (err error) {
	ls, err := openLines(path)
	if err != nil {
		return
	}
	defer ls.Close()
	for {
		var fields []string
		if fields, err = ls.Next(); err != nil || fields == nil {
			return
		}
		if len(fields) < n {
			return ls.Errorf("%d fields, want %d", len(fields), n)
		}
		if err = fn(ls, fields); err != nil {
			return
		}
	}
}
