package readers

import (
	"fmt"
	"sort"
	"strings"

	"github.com/notargets/gompm/types"
)

type gmshElement struct {
	dim, nnodes int
}

// gmshElementTypes maps the Gmsh 2.2 element types used by the reader
var gmshElementTypes = map[int]gmshElement{
	1:  {dim: 1, nnodes: 2}, // line
	2:  {dim: 2, nnodes: 3}, // triangle
	3:  {dim: 2, nnodes: 4}, // quadrangle
	4:  {dim: 3, nnodes: 4}, // tetrahedron
	5:  {dim: 3, nnodes: 8}, // hexahedron
	15: {dim: 0, nnodes: 1}, // point
}

/*
Gmsh reads Gmsh 2.2 ASCII meshes. Elements of the mesh dimension become cells, the
physical tag of a cell puts it in the cell set of that tag. Lower dimensional
elements with a physical tag put their nodes in the node set of that tag. Node and
cell ids are renumbered from zero in file order. Other files are read as Ascii does.
*/
type Gmsh struct {
	Ascii
}

func (g Gmsh) Name() string { return fmt.Sprintf("Gmsh%dD", g.dim) }

func (g Gmsh) ReadMesh(path string) (md *MeshData, err error) {
	ls, err := openLines(path)
	if err != nil {
		return
	}
	defer ls.Close()
	var (
		nodeIndex = make(map[int]types.Index)
		nodeSets  = make(map[int]map[types.Index]bool)
		sawFormat bool
	)
	md = &MeshData{CellSets: make(map[int][]types.Index)}
	for {
		var fields []string
		if fields, err = ls.Next(); err != nil {
			return nil, err
		}
		if fields == nil {
			break
		}
		switch fields[0] {
		case "$MeshFormat":
			if err = g.readFormat(ls); err != nil {
				return nil, err
			}
			sawFormat = true
		case "$Nodes":
			if err = g.readNodes(ls, md, nodeIndex); err != nil {
				return nil, err
			}
		case "$Elements":
			if err = g.readElements(ls, md, nodeIndex, nodeSets); err != nil {
				return nil, err
			}
		default:
			if strings.HasPrefix(fields[0], "$") && !strings.HasPrefix(fields[0], "$End") {
				if err = skipSection(ls, "$End"+fields[0][1:]); err != nil {
					return nil, err
				}
			}
		}
	}
	if !sawFormat {
		return nil, fmt.Errorf("%s: no $MeshFormat section found", path)
	}
	if len(md.Cells) == 0 {
		return nil, fmt.Errorf("%s: no %dD elements", path, g.dim)
	}
	if len(nodeSets) > 0 {
		md.NodeSets = make(map[int][]types.Index, len(nodeSets))
		for tag, set := range nodeSets {
			ids := make([]types.Index, 0, len(set))
			for id := range set {
				ids = append(ids, id)
			}
			sort.Sort(types.IndexSlice(ids))
			md.NodeSets[tag] = ids
		}
	}
	if len(md.CellSets) == 0 {
		md.CellSets = nil
	}
	return
}

func skipSection(ls *lineScanner, end string) error {
	for {
		fields, err := ls.Next()
		if err != nil {
			return err
		}
		if fields == nil {
			return fmt.Errorf("%s: unexpected EOF looking for %s", ls.path, end)
		}
		if fields[0] == end {
			return nil
		}
	}
}

func (g Gmsh) readFormat(ls *lineScanner) (err error) {
	fields, err := ls.Expect(3, "MeshFormat")
	if err != nil {
		return
	}
	if !strings.HasPrefix(fields[0], "2") {
		return ls.Errorf("unsupported Gmsh version %s", fields[0])
	}
	if fields[1] != "0" {
		return ls.Errorf("binary Gmsh files are not supported")
	}
	return skipSection(ls, "$EndMeshFormat")
}

func (g Gmsh) readNodes(ls *lineScanner, md *MeshData, nodeIndex map[int]types.Index) (err error) {
	header, err := ls.Expect(1, "number of nodes")
	if err != nil {
		return
	}
	n, err := ls.Int(header[0])
	if err != nil {
		return
	}
	for i := 0; i < n; i++ {
		var (
			fields []string
			id     int
			x      []float64
		)
		if fields, err = ls.Expect(4, "node"); err != nil {
			return
		}
		if id, err = ls.Int(fields[0]); err != nil {
			return
		}
		if _, dup := nodeIndex[id]; dup {
			return ls.Errorf("node %d listed twice", id)
		}
		if x, err = ls.Floats(fields[1 : 1+g.dim]); err != nil {
			return
		}
		nodeIndex[id] = types.Index(len(md.Coordinates))
		md.Coordinates = append(md.Coordinates, x)
	}
	return skipSection(ls, "$EndNodes")
}

func (g Gmsh) readElements(ls *lineScanner, md *MeshData, nodeIndex map[int]types.Index,
	nodeSets map[int]map[types.Index]bool) (err error) {
	header, err := ls.Expect(1, "number of elements")
	if err != nil {
		return
	}
	n, err := ls.Int(header[0])
	if err != nil {
		return
	}
	for i := 0; i < n; i++ {
		var (
			fields          []string
			gmshType, ntags int
		)
		if fields, err = ls.Expect(3, "element"); err != nil {
			return
		}
		if gmshType, err = ls.Int(fields[1]); err != nil {
			return
		}
		if ntags, err = ls.Int(fields[2]); err != nil {
			return
		}
		et, ok := gmshElementTypes[gmshType]
		if !ok || et.dim > g.dim {
			continue
		}
		if len(fields) != 3+ntags+et.nnodes {
			return ls.Errorf("element %s has %d fields, want %d", fields[0], len(fields), 3+ntags+et.nnodes)
		}
		physical := -1
		if ntags > 0 {
			if physical, err = ls.Int(fields[3]); err != nil {
				return
			}
		}
		nids := make([]types.Index, et.nnodes)
		for k, f := range fields[3+ntags:] {
			var gid int
			if gid, err = ls.Int(f); err != nil {
				return
			}
			if nids[k], ok = nodeIndex[gid]; !ok {
				return ls.Errorf("element %s: unknown node %d", fields[0], gid)
			}
		}
		if et.dim < g.dim {
			if physical > 0 {
				if nodeSets[physical] == nil {
					nodeSets[physical] = make(map[types.Index]bool)
				}
				for _, id := range nids {
					nodeSets[physical][id] = true
				}
			}
			continue
		}
		var name string
		if name, err = elementName(g.dim, et.nnodes); err != nil {
			return
		}
		if md.Element == "" {
			md.Element = name
		} else if name != md.Element {
			return ls.Errorf("element %s is %s in a mesh of %s", fields[0], name, md.Element)
		}
		if physical > 0 {
			md.CellSets[physical] = append(md.CellSets[physical], types.Index(len(md.Cells)))
		}
		md.Cells = append(md.Cells, nids)
	}
	return skipSection(ls, "$EndElements")
}
