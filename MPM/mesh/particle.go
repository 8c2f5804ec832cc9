package mesh

import (
	"fmt"
	"math"

	"github.com/notargets/gompm/MPM/checkpoint"
	"github.com/notargets/gompm/MPM/element"
	"github.com/notargets/gompm/MPM/material"
	"github.com/notargets/gompm/types"
	"github.com/notargets/gompm/utils"
)

// LiquidPhase is the pore fluid state carried by two phase particles
type LiquidPhase struct {
	Mass       float64
	Velocity   []float64
	Porosity   float64
	Saturation float64
	MaterialID uint32
	StateVars  []float64
}

/*
Particle is a material point. Its cell is a non-owning handle kept consistent with
cellID: both are set together by the binding methods, cellID is types.MaxIndex while
the particle is not located.
*/
type Particle struct {
	id    types.Index
	ptype types.ParticleType
	dim   int

	coord []float64
	xi    []float64

	cell     *Cell
	cellID   types.Index
	cellHint types.Index // cell id restored from a record, resolved by the next locate

	material  *material.Material
	stateVars map[string]float64

	status           bool
	mass             float64
	volume           float64
	pressure         float64
	naturalSize      []float64
	displacement     []float64
	velocity         []float64
	acceleration     []float64
	stress           [6]float64
	strain           [6]float64
	volumetricStrain float64
	defGrad          [9]float64

	shapefn []float64
	dNdx    [][]float64

	traction            []float64
	hasTraction         bool
	velocityConstraints map[int]float64

	liquid *LiquidPhase
}

func NewParticle(id types.Index, ptype types.ParticleType, coord []float64) (p *Particle, err error) {
	dim := ptype.Dim()
	if dim == 0 {
		return nil, fmt.Errorf("particle %d: %w: particle type %s", id, ErrInvalidValue, ptype)
	}
	if len(coord) != dim {
		return nil, fmt.Errorf("particle %d: %w: %d coordinates for a %s particle", id, ErrDimensionMismatch, len(coord), ptype)
	}
	p = &Particle{
		id:                  id,
		ptype:               ptype,
		dim:                 dim,
		coord:               append([]float64(nil), coord...),
		cellID:              types.MaxIndex,
		cellHint:            types.MaxIndex,
		stateVars:           make(map[string]float64),
		status:              true,
		naturalSize:         make([]float64, dim),
		displacement:        make([]float64, dim),
		velocity:            make([]float64, dim),
		acceleration:        make([]float64, dim),
		traction:            make([]float64, dim),
		velocityConstraints: make(map[int]float64),
	}
	for i := 0; i < 3; i++ {
		p.defGrad[4*i] = 1
	}
	if ptype.IsTwoPhase() {
		p.liquid = &LiquidPhase{Velocity: make([]float64, dim)}
	}
	return
}

func (p *Particle) ID() types.Index                     { return p.id }
func (p *Particle) Type() types.ParticleType            { return p.ptype }
func (p *Particle) Dim() int                            { return p.dim }
func (p *Particle) Coordinates() []float64              { return p.coord }
func (p *Particle) ReferenceLocation() []float64        { return p.xi }
func (p *Particle) Cell() *Cell                         { return p.cell }
func (p *Particle) CellID() types.Index                 { return p.cellID }
func (p *Particle) Material() *material.Material        { return p.material }
func (p *Particle) Status() bool                        { return p.status }
func (p *Particle) Mass() float64                       { return p.mass }
func (p *Particle) Volume() float64                     { return p.volume }
func (p *Particle) Pressure() float64                   { return p.pressure }
func (p *Particle) NaturalSize() []float64              { return p.naturalSize }
func (p *Particle) Displacement() []float64             { return p.displacement }
func (p *Particle) Velocity() []float64                 { return p.velocity }
func (p *Particle) Acceleration() []float64             { return p.acceleration }
func (p *Particle) Stress() [6]float64                  { return p.stress }
func (p *Particle) Strain() [6]float64                  { return p.strain }
func (p *Particle) Traction() []float64                 { return p.traction }
func (p *Particle) Liquid() *LiquidPhase                { return p.liquid }
func (p *Particle) ShapeFunctions() []float64           { return p.shapefn }
func (p *Particle) ShapeFunctionGradients() [][]float64 { return p.dNdx }

func (p *Particle) AssignStatus(active bool) { p.status = active }

// AssignCoordinates moves the particle, the cell binding is refreshed by the next locate
func (p *Particle) AssignCoordinates(x []float64) (err error) {
	if len(x) != p.dim {
		return fmt.Errorf("particle %d: %w: %d coordinates", p.id, ErrDimensionMismatch, len(x))
	}
	copy(p.coord, x)
	return
}

func (p *Particle) bind(c *Cell, xi []float64) {
	if p.cell != c {
		if p.cell != nil {
			p.cell.RemoveParticleID(p.id)
		}
		c.AddParticleID(p.id)
	}
	p.cell, p.cellID, p.xi = c, c.ID(), xi
	p.cellHint = types.MaxIndex
}

// AssignCell binds the particle to c if c contains it, computing reference coordinates
func (p *Particle) AssignCell(c *Cell) (err error) {
	if !c.IsInitialised() {
		return fmt.Errorf("particle %d: cell %d: %w", p.id, c.ID(), ErrCellNotInitialised)
	}
	xi, ok := c.IsPointInCell(p.coord)
	if !ok {
		return fmt.Errorf("particle %d: cell %d: %w", p.id, c.ID(), ErrParticleNotLocated)
	}
	p.bind(c, xi)
	return
}

// AssignCellXi binds the particle at known reference coordinates
func (p *Particle) AssignCellXi(c *Cell, xi []float64) (err error) {
	if !c.IsInitialised() {
		return fmt.Errorf("particle %d: cell %d: %w", p.id, c.ID(), ErrCellNotInitialised)
	}
	if len(xi) != c.Element().Dim() || !c.Element().IsInside(xi, utils.CELLTOL) {
		return fmt.Errorf("particle %d: cell %d: %w: reference coordinates %v", p.id, c.ID(), ErrParticleNotLocated, xi)
	}
	p.bind(c, append([]float64(nil), xi...))
	return
}

// AssignCellID records the cell a restarted particle was in. The handle is resolved by
// the next locate, until then the particle counts as not located.
func (p *Particle) AssignCellID(id types.Index) {
	p.RemoveCell()
	p.cellHint = id
}

func (p *Particle) RemoveCell() {
	if p.cell != nil {
		p.cell.RemoveParticleID(p.id)
	}
	p.cell, p.cellID, p.xi = nil, types.MaxIndex, nil
}

// ComputeReferenceLocation refreshes xi in the current cell, false if the particle left it
func (p *Particle) ComputeReferenceLocation() bool {
	if p.cell == nil {
		return false
	}
	xi, ok := p.cell.IsPointInCell(p.coord)
	if ok {
		p.xi = xi
	}
	return ok
}

func (p *Particle) ComputeShapeFn() (err error) {
	if p.cell == nil {
		return fmt.Errorf("particle %d: %w", p.id, ErrParticleNotLocated)
	}
	el := p.cell.Element()
	p.shapefn = el.ShapeFunctions(p.xi)
	if p.dNdx, _, err = element.GlobalGradients(el, p.xi, p.cell.NodeCoordinates()); err != nil {
		return fmt.Errorf("particle %d: cell %d: %w", p.id, p.cell.ID(), err)
	}
	return
}

// AssignMaterial shares m with the particle and resets the state variables to its initial values
func (p *Particle) AssignMaterial(m *material.Material) (err error) {
	if m == nil {
		return fmt.Errorf("particle %d: %w", p.id, ErrMaterialNotFound)
	}
	if m.Dim() != p.dim {
		return fmt.Errorf("particle %d: %w: %dD material %d", p.id, ErrDimensionMismatch, m.Dim(), m.ID)
	}
	p.material = m
	p.stateVars = m.InitialStateVariables()
	return
}

func (p *Particle) MaterialID() uint32 {
	if p.material == nil {
		return math.MaxUint32
	}
	return p.material.ID
}

func (p *Particle) StateVariable(name string) (val float64, ok bool) {
	val, ok = p.stateVars[name]
	return
}

func (p *Particle) AssignStateVariable(name string, val float64) (err error) {
	if _, ok := p.stateVars[name]; !ok {
		return fmt.Errorf("particle %d: %w: no state variable %q", p.id, ErrNotFound, name)
	}
	p.stateVars[name] = val
	return
}

// AssignVolume sets the volume and a cubic natural size
func (p *Particle) AssignVolume(volume float64) (err error) {
	if volume <= 0 {
		return fmt.Errorf("particle %d: %w: volume %g", p.id, ErrInvalidValue, volume)
	}
	p.volume = volume
	side := math.Pow(volume, 1/float64(p.dim))
	for i := range p.naturalSize {
		p.naturalSize[i] = side
	}
	return
}

// ComputeMass sets mass = density * volume
func (p *Particle) ComputeMass() (err error) {
	if p.material == nil {
		return fmt.Errorf("particle %d: %w", p.id, ErrMaterialNotFound)
	}
	if p.volume <= 0 {
		return fmt.Errorf("particle %d: %w: volume not assigned", p.id, ErrInvalidValue)
	}
	p.mass = p.material.Density * p.volume
	return
}

func (p *Particle) AssignMass(m float64)      { p.mass = m }
func (p *Particle) AssignPressure(pr float64) { p.pressure = pr }
func (p *Particle) AssignStress(s [6]float64) { p.stress = s }
func (p *Particle) AssignStrain(s [6]float64) { p.strain = s }

func (p *Particle) AssignVelocity(v []float64) (err error) {
	if len(v) != p.dim {
		return fmt.Errorf("particle %d: %w: %d velocity components", p.id, ErrDimensionMismatch, len(v))
	}
	copy(p.velocity, v)
	return
}

func (p *Particle) checkDirection(dir int) error {
	if dir < 0 || dir >= p.dim {
		return fmt.Errorf("particle %d: %w: direction %d, dimension %d", p.id, ErrInvalidDirection, dir, p.dim)
	}
	return nil
}

// AssignTraction converts a surface traction into a force over the particle face
// normal to dir, whose area is volume / size[dir]
func (p *Particle) AssignTraction(dir int, traction float64) (err error) {
	if err = p.checkDirection(dir); err != nil {
		return
	}
	if p.volume <= 0 {
		return fmt.Errorf("particle %d: %w: traction needs a volume", p.id, ErrInvalidValue)
	}
	area := math.Pow(p.volume, float64(p.dim-1)/float64(p.dim))
	if p.naturalSize[dir] > 0 {
		area = p.volume / p.naturalSize[dir]
	}
	p.traction[dir] = traction * area
	p.hasTraction = true
	return
}

// MapTractionForce scatters the traction force onto the cell nodes
func (p *Particle) MapTractionForce() {
	if !p.hasTraction || p.cell == nil || p.shapefn == nil {
		return
	}
	f := make([]float64, p.dim)
	for a, n := range p.cell.Nodes() {
		for i := range f {
			f[i] = p.shapefn[a] * p.traction[i]
		}
		_ = n.UpdateExternalForce(types.SolidPhase, f)
	}
}

func (p *Particle) AssignParticleVelocityConstraint(dir int, velocity float64) (err error) {
	if err = p.checkDirection(dir); err != nil {
		return
	}
	p.velocityConstraints[dir] = velocity
	return
}

func (p *Particle) ApplyParticleVelocityConstraints() {
	for dir, v := range p.velocityConstraints {
		p.velocity[dir] = v
		p.acceleration[dir] = 0
	}
}

// MapMassMomentumToNodes scatters N_a m and N_a m v onto the cell nodes. The liquid phase
// goes to the second nodal phase where the nodes carry one.
func (p *Particle) MapMassMomentumToNodes() (err error) {
	if p.cell == nil || p.shapefn == nil {
		return fmt.Errorf("particle %d: %w", p.id, ErrParticleNotLocated)
	}
	mv := make([]float64, p.dim)
	for a, n := range p.cell.Nodes() {
		N := p.shapefn[a]
		for i := range mv {
			mv[i] = N * p.mass * p.velocity[i]
		}
		_ = n.UpdateMass(types.SolidPhase, N*p.mass)
		_ = n.UpdateMomentum(types.SolidPhase, mv)
		if p.liquid != nil && n.NPhases() > 1 {
			for i := range mv {
				mv[i] = N * p.liquid.Mass * p.liquid.Velocity[i]
			}
			_ = n.UpdateMass(types.LiquidPhase, N*p.liquid.Mass)
			_ = n.UpdateMomentum(types.LiquidPhase, mv)
		}
	}
	return
}

// MapBodyForce scatters N_a m g
func (p *Particle) MapBodyForce(gravity []float64) {
	if p.cell == nil || p.shapefn == nil {
		return
	}
	f := make([]float64, p.dim)
	for a, n := range p.cell.Nodes() {
		for i := range f {
			f[i] = p.shapefn[a] * p.mass * gravity[i]
		}
		_ = n.UpdateExternalForce(types.SolidPhase, f)
	}
}

// MapInternalForce scatters -V B_a^T sigma using the Voigt stress
func (p *Particle) MapInternalForce() {
	if p.cell == nil || p.dNdx == nil {
		return
	}
	var (
		s = p.stress
		f = make([]float64, p.dim)
	)
	for a, n := range p.cell.Nodes() {
		dN := p.dNdx[a]
		switch p.dim {
		case 2:
			f[0] = -p.volume * (dN[0]*s[0] + dN[1]*s[3])
			f[1] = -p.volume * (dN[0]*s[3] + dN[1]*s[1])
		case 3:
			f[0] = -p.volume * (dN[0]*s[0] + dN[1]*s[3] + dN[2]*s[5])
			f[1] = -p.volume * (dN[0]*s[3] + dN[1]*s[1] + dN[2]*s[4])
			f[2] = -p.volume * (dN[0]*s[5] + dN[1]*s[4] + dN[2]*s[2])
		}
		_ = n.UpdateInternalForce(types.SolidPhase, f)
	}
}

// Record packs the particle into the checkpoint layout. State variables are written in
// the order the material declares them.
func (p *Particle) Record() (rec checkpoint.Record) {
	rec.ID = uint64(p.id)
	rec.Mass, rec.Volume, rec.Pressure = p.mass, p.volume, p.pressure
	copy(rec.Coord[:], p.coord)
	copy(rec.RefCoord[:], p.xi)
	copy(rec.Displacement[:], p.displacement)
	copy(rec.NaturalSize[:], p.naturalSize)
	copy(rec.Velocity[:], p.velocity)
	copy(rec.Acceleration[:], p.acceleration)
	rec.Stress, rec.Strain = p.stress, p.strain
	rec.VolumetricStrain = p.volumetricStrain
	rec.DeformationGradient = p.defGrad
	if p.status {
		rec.Status = 1
	}
	rec.CellID = uint64(p.cellID)
	if p.cell == nil && p.cellHint != types.MaxIndex {
		rec.CellID = uint64(p.cellHint)
	}
	rec.MaterialID = p.MaterialID()
	if p.material != nil {
		names := p.material.StateVariables()
		rec.NStateVars = uint32(len(names))
		for k, name := range names {
			rec.StateVars[k] = p.stateVars[name]
		}
	}
	return
}

func (p *Particle) TwoPhaseRecord() (rec checkpoint.TwoPhaseRecord) {
	rec.Record = p.Record()
	if p.liquid != nil {
		rec.LiquidMass = p.liquid.Mass
		copy(rec.LiquidVelocity[:], p.liquid.Velocity)
		rec.Porosity = p.liquid.Porosity
		rec.LiquidSaturation = p.liquid.Saturation
		rec.LiquidMaterialID = p.liquid.MaterialID
		rec.NLiquidStateVars = uint32(len(p.liquid.StateVars))
		copy(rec.LiquidStateVars[:], p.liquid.StateVars)
	}
	return
}

// InitialiseFromRecord restores the particle state from rec with material m. The cell
// id is kept as a hint for the next locate.
func (p *Particle) InitialiseFromRecord(rec checkpoint.Record, m *material.Material) (err error) {
	if types.Index(rec.ID) != p.id {
		return fmt.Errorf("particle %d: %w: record for particle %d", p.id, ErrInvalidValue, rec.ID)
	}
	if m == nil || m.ID != rec.MaterialID {
		return fmt.Errorf("particle %d: %w: material %d", p.id, ErrMaterialNotFound, rec.MaterialID)
	}
	if err = p.AssignMaterial(m); err != nil {
		return
	}
	names := m.StateVariables()
	if int(rec.NStateVars) != len(names) {
		return fmt.Errorf("particle %d: %w: %d state variables for material %s with %d",
			p.id, ErrInvalidValue, rec.NStateVars, m.Type, len(names))
	}
	for k, name := range names {
		p.stateVars[name] = rec.StateVars[k]
	}
	p.mass, p.volume, p.pressure = rec.Mass, rec.Volume, rec.Pressure
	copy(p.coord, rec.Coord[:p.dim])
	copy(p.displacement, rec.Displacement[:p.dim])
	copy(p.naturalSize, rec.NaturalSize[:p.dim])
	copy(p.velocity, rec.Velocity[:p.dim])
	copy(p.acceleration, rec.Acceleration[:p.dim])
	p.stress, p.strain = rec.Stress, rec.Strain
	p.volumetricStrain = rec.VolumetricStrain
	p.defGrad = rec.DeformationGradient
	p.status = rec.Status != 0
	p.RemoveCell()
	p.cellHint = types.Index(rec.CellID)
	return
}

func (p *Particle) InitialiseFromTwoPhaseRecord(rec checkpoint.TwoPhaseRecord, m *material.Material) (err error) {
	if err = p.InitialiseFromRecord(rec.Record, m); err != nil {
		return
	}
	if p.liquid == nil {
		return fmt.Errorf("particle %d: %w: two phase record for a %s particle", p.id, ErrParticleTypeMismatch, p.ptype)
	}
	if rec.NLiquidStateVars > checkpoint.MaxLiquidStateVars {
		return fmt.Errorf("particle %d: %w: %d liquid state variables", p.id, ErrInvalidValue, rec.NLiquidStateVars)
	}
	p.liquid.Mass = rec.LiquidMass
	copy(p.liquid.Velocity, rec.LiquidVelocity[:p.dim])
	p.liquid.Porosity = rec.Porosity
	p.liquid.Saturation = rec.LiquidSaturation
	p.liquid.MaterialID = rec.LiquidMaterialID
	p.liquid.StateVars = append([]float64(nil), rec.LiquidStateVars[:rec.NLiquidStateVars]...)
	return
}
