package InputParameters

import (
	"errors"
	"fmt"
	"sort"

	"github.com/ghodss/yaml"
)

// Parameters obtained from the YAML input file
type InputParametersMPM struct {
	Title              string               `json:"Title"`
	Mesh               MeshParameters       `json:"Mesh"`
	Materials          []MaterialParameters `json:"Materials"`
	Functions          []FunctionParameters `json:"Functions,omitempty"`
	Particles          []ParticleParameters `json:"Particles"`
	ParticleSets       map[int][]uint64     `json:"ParticleSets,omitempty"`
	BoundaryConditions BoundaryParameters   `json:"BoundaryConditions,omitempty"`
	Partition          PartitionParameters  `json:"Partition,omitempty"`
	GrainSize          int                  `json:"GrainSize,omitempty"`
	Output             OutputParameters     `json:"Output,omitempty"`
}

// MeshParameters come from a Reader + File pair or, without a Reader, a structured Grid
type MeshParameters struct {
	Dimension               int              `json:"Dimension"`
	Reader                  string           `json:"Reader,omitempty"` // Ascii2D, Ascii3D, Gmsh2D, Gmsh3D
	File                    string           `json:"File,omitempty"`
	Grid                    *GridParameters  `json:"Grid,omitempty"`
	NodeType                string           `json:"NodeType"`
	CheckDuplicates         bool             `json:"CheckDuplicates"`
	NodeSets                map[int][]uint64 `json:"NodeSets,omitempty"`
	CellSets                map[int][]uint64 `json:"CellSets,omitempty"`
	VelocityConstraintsFile string           `json:"VelocityConstraintsFile,omitempty"`
	FrictionConstraintsFile string           `json:"FrictionConstraintsFile,omitempty"`
	NodalForcesFile         string           `json:"NodalForcesFile,omitempty"`
	NodalEulerAnglesFile    string           `json:"NodalEulerAnglesFile,omitempty"`
}

type GridParameters struct {
	Cells []int     `json:"Cells"`
	Lower []float64 `json:"Lower"`
	Upper []float64 `json:"Upper"`
}

type MaterialParameters struct {
	ID         uint32             `json:"ID"`
	Type       string             `json:"Type"`
	Density    float64            `json:"Density"`
	Properties map[string]float64 `json:"Properties,omitempty"`
}

type FunctionParameters struct {
	ID   int       `json:"ID"`
	Type string    `json:"Type"` // Constant or Linear
	Xs   []float64 `json:"Xs"`
	Fxs  []float64 `json:"Fxs"`
}

// ParticleParameters describe one particle generator and the per particle files that follow it
type ParticleParameters struct {
	Generator    string `json:"Generator"` // file or gauss
	Reader       string `json:"Reader,omitempty"`
	File         string `json:"File,omitempty"`
	ParticleType string `json:"ParticleType"`
	MaterialID   uint32 `json:"MaterialID"`
	NPoints      int    `json:"NPoints,omitempty"`
	CellSet      int    `json:"CellSet"`
	VolumesFile  string `json:"VolumesFile,omitempty"`
	StressesFile string `json:"StressesFile,omitempty"`
	CellsFile    string `json:"CellsFile,omitempty"`
}

type BoundaryParameters struct {
	VelocityConstraints         []NodalVelocityParameters    `json:"VelocityConstraints,omitempty"`
	FrictionConstraints         []NodalFrictionParameters    `json:"FrictionConstraints,omitempty"`
	NodalForces                 []NodalForceParameters       `json:"NodalForces,omitempty"`
	ParticleVelocityConstraints []ParticleVelocityParameters `json:"ParticleVelocityConstraints,omitempty"`
	Tractions                   []TractionParameters         `json:"Tractions,omitempty"`
}

type NodalVelocityParameters struct {
	NodeSet  int     `json:"NodeSet"`
	Dir      int     `json:"Dir"`
	Velocity float64 `json:"Velocity"`
}

type NodalFrictionParameters struct {
	NodeSet  int     `json:"NodeSet"`
	Dir      int     `json:"Dir"`
	Sign     int     `json:"Sign"`
	Friction float64 `json:"Friction"`
}

type NodalForceParameters struct {
	NodeSet  int     `json:"NodeSet"`
	Dir      int     `json:"Dir"`
	Force    float64 `json:"Force"`
	Function *int    `json:"Function,omitempty"`
}

type ParticleVelocityParameters struct {
	ParticleSet int     `json:"ParticleSet"`
	Dir         int     `json:"Dir"`
	Velocity    float64 `json:"Velocity"`
}

type TractionParameters struct {
	ParticleSet int     `json:"ParticleSet"`
	Dir         int     `json:"Dir"`
	Traction    float64 `json:"Traction"`
	Function    *int    `json:"Function,omitempty"`
}

type PartitionParameters struct {
	Ranks       int    `json:"Ranks,omitempty"`
	Partitioner string `json:"Partitioner,omitempty"` // block, coordinate, metis
	Halo        string `json:"Halo,omitempty"`        // p2p or allreduce
}

type OutputParameters struct {
	Checkpoint string `json:"Checkpoint,omitempty"`
	Format     string `json:"Format,omitempty"` // binary or sqlite
}

var ErrInvalidInput = errors.New("invalid input")

func (ip *InputParametersMPM) Parse(data []byte) (err error) {
	if err = yaml.Unmarshal(data, ip); err != nil {
		return
	}
	ip.setDefaults()
	return ip.Validate()
}

func (ip *InputParametersMPM) setDefaults() {
	if ip.Mesh.NodeType == "" {
		ip.Mesh.NodeType = fmt.Sprintf("N%dD", ip.Mesh.Dimension)
	}
	for i := range ip.Particles {
		if ip.Particles[i].ParticleType == "" {
			ip.Particles[i].ParticleType = fmt.Sprintf("P%dD", ip.Mesh.Dimension)
		}
	}
	if ip.Partition.Ranks == 0 {
		ip.Partition.Ranks = 1
	}
	if ip.Partition.Partitioner == "" {
		ip.Partition.Partitioner = "block"
	}
	if ip.Partition.Halo == "" {
		ip.Partition.Halo = "p2p"
	}
	if ip.Output.Format == "" {
		ip.Output.Format = "binary"
	}
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// Validate checks the required fields and the references between sections
func (ip *InputParametersMPM) Validate() (err error) {
	var errs []error
	dim := ip.Mesh.Dimension
	if dim != 2 && dim != 3 {
		return invalid("Mesh.Dimension %d", dim)
	}
	switch {
	case ip.Mesh.Reader != "" && ip.Mesh.File == "":
		errs = append(errs, invalid("Mesh.Reader %s without a File", ip.Mesh.Reader))
	case ip.Mesh.Reader == "" && ip.Mesh.Grid == nil:
		errs = append(errs, invalid("Mesh needs a Reader and File or a Grid"))
	case ip.Mesh.Grid != nil:
		g := ip.Mesh.Grid
		if len(g.Cells) != dim || len(g.Lower) != dim || len(g.Upper) != dim {
			errs = append(errs, invalid("Mesh.Grid needs %d Cells, Lower and Upper values", dim))
		}
	}
	if len(ip.Materials) == 0 {
		errs = append(errs, invalid("no Materials"))
	}
	mats := make(map[uint32]bool)
	for _, mp := range ip.Materials {
		if mats[mp.ID] {
			errs = append(errs, invalid("duplicate material %d", mp.ID))
		}
		mats[mp.ID] = true
	}
	fns := make(map[int]bool)
	for _, fp := range ip.Functions {
		if fns[fp.ID] {
			errs = append(errs, invalid("duplicate function %d", fp.ID))
		}
		fns[fp.ID] = true
	}
	for i, pp := range ip.Particles {
		switch pp.Generator {
		case "file":
			if pp.Reader == "" || pp.File == "" {
				errs = append(errs, invalid("Particles[%d]: file generator needs Reader and File", i))
			}
		case "gauss":
			if pp.NPoints < 1 {
				errs = append(errs, invalid("Particles[%d]: gauss generator needs NPoints", i))
			}
		default:
			errs = append(errs, invalid("Particles[%d]: generator %q", i, pp.Generator))
		}
		if !mats[pp.MaterialID] {
			errs = append(errs, invalid("Particles[%d]: material %d not defined", i, pp.MaterialID))
		}
	}
	checkDir := func(what string, i, dir int) {
		if dir < 0 || dir >= dim {
			errs = append(errs, invalid("%s[%d]: direction %d", what, i, dir))
		}
	}
	checkFn := func(what string, i int, id *int) {
		if id != nil && !fns[*id] {
			errs = append(errs, invalid("%s[%d]: function %d not defined", what, i, *id))
		}
	}
	bc := ip.BoundaryConditions
	for i, v := range bc.VelocityConstraints {
		checkDir("VelocityConstraints", i, v.Dir)
	}
	for i, f := range bc.FrictionConstraints {
		checkDir("FrictionConstraints", i, f.Dir)
		if f.Sign != -1 && f.Sign != 1 {
			errs = append(errs, invalid("FrictionConstraints[%d]: sign %d", i, f.Sign))
		}
	}
	for i, f := range bc.NodalForces {
		checkDir("NodalForces", i, f.Dir)
		checkFn("NodalForces", i, f.Function)
	}
	for i, v := range bc.ParticleVelocityConstraints {
		checkDir("ParticleVelocityConstraints", i, v.Dir)
	}
	for i, tr := range bc.Tractions {
		checkDir("Tractions", i, tr.Dir)
		checkFn("Tractions", i, tr.Function)
	}
	if ip.Partition.Ranks < 1 {
		errs = append(errs, invalid("Partition.Ranks %d", ip.Partition.Ranks))
	}
	if ip.GrainSize < 0 {
		errs = append(errs, invalid("GrainSize %d", ip.GrainSize))
	}
	switch ip.Output.Format {
	case "binary", "sqlite":
	default:
		errs = append(errs, invalid("Output.Format %q", ip.Output.Format))
	}
	return errors.Join(errs...)
}

func sortedSetIDs(sets map[int][]uint64) (ids []int) {
	for id := range sets {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return
}

func (ip *InputParametersMPM) Print() {
	fmt.Printf("\"%s\"\t\t= Title\n", ip.Title)
	fmt.Printf("[%d]\t\t\t\t= Dimension\n", ip.Mesh.Dimension)
	if ip.Mesh.Reader != "" {
		fmt.Printf("[%s] %s\t= Mesh\n", ip.Mesh.Reader, ip.Mesh.File)
	} else {
		fmt.Printf("%v %v:%v\t= Grid\n", ip.Mesh.Grid.Cells, ip.Mesh.Grid.Lower, ip.Mesh.Grid.Upper)
	}
	fmt.Printf("[%s]\t\t\t\t= Node Type\n", ip.Mesh.NodeType)
	for _, mp := range ip.Materials {
		fmt.Printf("Material[%d] = %s, density %8.5g\n", mp.ID, mp.Type, mp.Density)
	}
	for i, pp := range ip.Particles {
		fmt.Printf("Particles[%d] = %s %s, material %d\n", i, pp.Generator, pp.ParticleType, pp.MaterialID)
	}
	for _, id := range sortedSetIDs(ip.Mesh.NodeSets) {
		fmt.Printf("NodeSets[%d] = %d nodes\n", id, len(ip.Mesh.NodeSets[id]))
	}
	for _, id := range sortedSetIDs(ip.Mesh.CellSets) {
		fmt.Printf("CellSets[%d] = %d cells\n", id, len(ip.Mesh.CellSets[id]))
	}
	for _, id := range sortedSetIDs(ip.ParticleSets) {
		fmt.Printf("ParticleSets[%d] = %d particles\n", id, len(ip.ParticleSets[id]))
	}
	fmt.Printf("[%d] %s %s\t\t= Ranks, Partitioner, Halo\n",
		ip.Partition.Ranks, ip.Partition.Partitioner, ip.Partition.Halo)
}
