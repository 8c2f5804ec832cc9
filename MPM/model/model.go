package model

import (
	"context"
	"fmt"

	"github.com/notargets/gompm/InputParameters"
	"github.com/notargets/gompm/MPM/comm"
	"github.com/notargets/gompm/MPM/function"
	"github.com/notargets/gompm/MPM/material"
	"github.com/notargets/gompm/MPM/mesh"
	"github.com/notargets/gompm/MPM/partition"
	"github.com/notargets/gompm/MPM/readers"
	"github.com/notargets/gompm/types"
)

// Model is a mesh with its particles, materials and boundary conditions set up from an input file
type Model struct {
	Input     *InputParameters.InputParametersMPM
	Mesh      *mesh.Mesh
	Unlocated []*mesh.Particle
	reader    readers.Reader
}

func toIndexSets(sets map[int][]uint64) map[int][]types.Index {
	if len(sets) == 0 {
		return nil
	}
	out := make(map[int][]types.Index, len(sets))
	for id, ids := range sets {
		out[id] = make([]types.Index, len(ids))
		for k, v := range ids {
			out[id][k] = types.Index(v)
		}
	}
	return out
}

/*
New builds the mesh described by ip, generates and locates the particles and registers
the boundary conditions. Options such as the communicator and logger are passed through
to the mesh.
*/
func New(ip *InputParameters.InputParametersMPM, opts ...mesh.Option) (md *Model, err error) {
	md = &Model{Input: ip}
	if ip.GrainSize > 0 {
		opts = append(opts, mesh.WithGrainSize(ip.GrainSize))
	}
	halo, err := mesh.NewHaloExchange(ip.Partition.Halo)
	if err != nil {
		return nil, err
	}
	opts = append([]mesh.Option{mesh.WithHaloExchange(halo)}, opts...)
	if md.Mesh, err = mesh.NewMesh(0, ip.Mesh.Dimension, opts...); err != nil {
		return nil, err
	}
	for _, step := range []func() error{
		md.buildMesh,
		md.initialiseMaterials,
		md.initialiseFunctions,
		md.generateParticles,
	} {
		if err = step(); err != nil {
			return nil, err
		}
	}
	if err = md.Mesh.CreateParticleSets(toIndexSets(ip.ParticleSets), false); err != nil {
		return nil, err
	}
	if err = md.assignBoundaryConditions(); err != nil {
		return nil, err
	}
	return
}

// fileReader reads the side files, with the mesh reader when there is one
func (md *Model) fileReader() readers.Reader {
	if md.reader == nil {
		md.reader, _ = readers.New(fmt.Sprintf("Ascii%dD", md.Input.Mesh.Dimension))
	}
	return md.reader
}

func (md *Model) buildMesh() (err error) {
	mp := md.Input.Mesh
	ntype, err := mesh.NodeTypeByName(mp.NodeType)
	if err != nil {
		return
	}
	if mp.Reader != "" {
		if md.reader, err = readers.New(mp.Reader); err != nil {
			return
		}
		if md.reader.Dim() != mp.Dimension {
			return fmt.Errorf("%w: %s reader for a %dD mesh", mesh.ErrDimensionMismatch, mp.Reader, mp.Dimension)
		}
		var data *readers.MeshData
		if data, err = md.reader.ReadMesh(mp.File); err != nil {
			return
		}
		err = data.Build(md.Mesh, ntype)
	} else {
		var g *mesh.Grid
		if g, err = mesh.StructuredGrid(mp.Grid.Cells, mp.Grid.Lower, mp.Grid.Upper); err != nil {
			return
		}
		err = g.Build(md.Mesh, ntype)
	}
	if err != nil {
		return
	}
	if sets := toIndexSets(mp.NodeSets); sets != nil {
		if err = md.Mesh.CreateNodeSets(sets, mp.CheckDuplicates); err != nil {
			return
		}
	}
	if sets := toIndexSets(mp.CellSets); sets != nil {
		err = md.Mesh.CreateCellSets(sets, mp.CheckDuplicates)
	}
	return
}

func (md *Model) initialiseMaterials() (err error) {
	mats := make([]*material.Material, len(md.Input.Materials))
	for i, mp := range md.Input.Materials {
		if mats[i], err = material.New(mp.ID, mp.Type, mp.Density, mp.Properties); err != nil {
			return
		}
	}
	return md.Mesh.InitialiseMaterialModels(mats)
}

func (md *Model) initialiseFunctions() (err error) {
	for _, fp := range md.Input.Functions {
		var f function.Function
		if f, err = function.New(fp.ID, fp.Type, fp.Xs, fp.Fxs); err != nil {
			return
		}
		if err = md.Mesh.AddFunction(f); err != nil {
			return
		}
	}
	return
}

func (md *Model) generateParticles() (err error) {
	var (
		m  = md.Mesh
		rd = md.fileReader()
	)
	for i, pp := range md.Input.Particles {
		var ptype types.ParticleType
		if ptype, err = mesh.ParticleTypeByName(pp.ParticleType); err != nil {
			return
		}
		gen := mesh.Generator{
			Type:            pp.Generator,
			Reader:          pp.Reader,
			File:            pp.File,
			CheckDuplicates: md.Input.Mesh.CheckDuplicates,
			ParticleType:    ptype,
			MaterialID:      pp.MaterialID,
			NPoints:         pp.NPoints,
			CellSetID:       pp.CellSet,
		}
		var unlocated []*mesh.Particle
		if unlocated, err = m.GenerateParticles(gen, readers.Lookup); err != nil {
			return fmt.Errorf("particles %d: %w", i, err)
		}
		md.Unlocated = append(md.Unlocated, unlocated...)
		if pp.VolumesFile != "" {
			var vols []mesh.ParticleVolume
			if vols, err = rd.ReadParticlesVolumes(pp.VolumesFile); err != nil {
				return
			}
			if err = m.AssignParticlesVolumes(vols); err != nil {
				return
			}
		}
		if pp.StressesFile != "" {
			var stresses [][6]float64
			if stresses, err = rd.ReadParticlesStresses(pp.StressesFile); err != nil {
				return
			}
			if err = m.AssignParticlesStresses(stresses); err != nil {
				return
			}
		}
		if pp.CellsFile != "" {
			var pcs []mesh.ParticleCell
			if pcs, err = rd.ReadParticlesCells(pp.CellsFile); err != nil {
				return
			}
			if err = m.AssignParticlesCells(pcs); err != nil {
				return
			}
		}
	}
	return
}

func (md *Model) function(id *int) (f function.Function, err error) {
	if id == nil {
		return
	}
	f, ok := md.Mesh.Function(*id)
	if !ok {
		err = fmt.Errorf("function %d: %w", *id, mesh.ErrNotFound)
	}
	return
}

func (md *Model) assignBoundaryConditions() (err error) {
	var (
		m  = md.Mesh
		mp = md.Input.Mesh
		bc = md.Input.BoundaryConditions
		rd = md.fileReader()
	)
	for _, v := range bc.VelocityConstraints {
		if err = m.AssignNodalVelocityConstraint(v.NodeSet, v.Dir, v.Velocity); err != nil {
			return
		}
	}
	if mp.VelocityConstraintsFile != "" {
		var vcs []mesh.NodalVelocityConstraint
		if vcs, err = rd.ReadVelocityConstraints(mp.VelocityConstraintsFile); err != nil {
			return
		}
		if err = m.AssignNodalVelocityConstraints(vcs); err != nil {
			return
		}
	}
	for _, f := range bc.FrictionConstraints {
		if err = m.AssignNodalFrictionalConstraint(f.NodeSet, f.Dir, f.Sign, f.Friction); err != nil {
			return
		}
	}
	if mp.FrictionConstraintsFile != "" {
		var fcs []mesh.NodalFrictionConstraint
		if fcs, err = rd.ReadFrictionConstraints(mp.FrictionConstraintsFile); err != nil {
			return
		}
		if err = m.AssignNodalFrictionConstraints(fcs); err != nil {
			return
		}
	}
	for _, nf := range bc.NodalForces {
		var fn function.Function
		if fn, err = md.function(nf.Function); err != nil {
			return
		}
		if err = m.AssignNodalConcentratedForcesSet(fn, nf.NodeSet, nf.Dir, nf.Force); err != nil {
			return
		}
	}
	if mp.NodalForcesFile != "" {
		var forces []mesh.NodalForce
		if forces, err = rd.ReadForces(mp.NodalForcesFile); err != nil {
			return
		}
		if err = m.AssignNodalConcentratedForces(forces); err != nil {
			return
		}
	}
	if mp.NodalEulerAnglesFile != "" {
		var angles map[types.Index][]float64
		if angles, err = rd.ReadEulerAngles(mp.NodalEulerAnglesFile); err != nil {
			return
		}
		if err = m.ComputeNodalRotationMatrices(angles); err != nil {
			return
		}
	}
	for _, v := range bc.ParticleVelocityConstraints {
		if err = m.CreateParticleVelocityConstraint(v.ParticleSet, v.Dir, v.Velocity); err != nil {
			return
		}
	}
	for _, tr := range bc.Tractions {
		var fn function.Function
		if fn, err = md.function(tr.Function); err != nil {
			return
		}
		if err = m.CreateParticlesTractions(fn, tr.ParticleSet, tr.Dir, tr.Traction); err != nil {
			return
		}
	}
	return
}

/*
Distribute partitions the cells over the ranks of the mesh communicator and hands every
particle to the rank owning its cell. Every rank builds the same model; rank 0 keeps the
particles and sends them on with the particle migration, the other ranks start empty.
*/
func (md *Model) Distribute(ctx context.Context, p partition.Partitioner) (err error) {
	m := md.Mesh
	if err = partition.Decompose(m, p); err != nil {
		return
	}
	if m.Rank() != 0 {
		ids := make([]types.Index, 0, m.NParticles())
		for _, pt := range m.Particles() {
			ids = append(ids, pt.ID())
		}
		if err = m.RemoveParticles(ids); err != nil {
			return
		}
		md.Unlocated = nil
	}
	return m.TransferNonRankParticles(ctx)
}

/*
MapParticlesToNodes clears the nodes, maps particle mass and momentum onto them and
applies the loads at time t. Particles outside the mesh are skipped. Across ranks the shared nodes are summed with the halo
exchange so every rank sees the totals.
*/
func (md *Model) MapParticlesToNodes(ctx context.Context, t float64) (err error) {
	m := md.Mesh
	m.IterateOverNodes(func(n *mesh.Node) { n.InitialiseNodal() })
	m.ApplyParticleVelocityConstraints()
	for _, p := range m.Particles() {
		if p.Cell() == nil {
			continue
		}
		if err = p.MapMassMomentumToNodes(); err != nil {
			return
		}
	}
	if err = m.ApplyTractionOnParticles(t); err != nil {
		return
	}
	m.ApplyNodalConcentratedForces(t)
	m.FindActiveNodes()
	for phase := 0; phase < md.phases(); phase++ {
		if err = m.HaloExchangeMass(ctx, phase); err != nil {
			return
		}
		if err = m.HaloExchangeMomentum(ctx, phase); err != nil {
			return
		}
	}
	return
}

func (md *Model) phases() int {
	if nodes := md.Mesh.Nodes(); len(nodes) > 0 {
		return nodes[0].NPhases()
	}
	return 1
}

// Statistics are the global particle and nodal totals after MapParticlesToNodes
type Statistics struct {
	Particles    int
	Unlocated    int
	ParticleMass float64
	NodalMass    float64 // each shared node counted once, by its lowest rank
	ActiveNodes  int
}

// GatherStatistics sums the per rank totals over the communicator
func (md *Model) GatherStatistics(ctx context.Context) (st Statistics, err error) {
	var (
		m   = md.Mesh
		me  = m.Rank()
		buf = make([]float64, 5)
	)
	for _, p := range m.Particles() {
		buf[0]++
		if p.Cell() == nil {
			buf[1]++
		}
		buf[2] += p.Mass()
	}
	for _, n := range m.Nodes() {
		ranks := n.Ranks()
		if len(ranks) > 0 && ranks[0] != me {
			continue
		}
		buf[3] += n.Mass(types.SolidPhase)
		if n.Status() {
			buf[4]++
		}
	}
	if err = comm.AllReduceSum(ctx, m.Communicator(), buf); err != nil {
		return
	}
	st = Statistics{
		Particles:    int(buf[0]),
		Unlocated:    int(buf[1]),
		ParticleMass: buf[2],
		NodalMass:    buf[3],
		ActiveNodes:  int(buf[4]),
	}
	return
}
