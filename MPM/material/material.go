package material

import (
	"fmt"
	"sort"
)

// Material is shared by pointer between every particle made of it
type Material struct {
	ID         uint32
	Type       string
	Density    float64
	Properties map[string]float64
	model      model
}

type model struct {
	dim       int
	required  []string
	stateVars []string
	// initial state values computed from the properties
	initial func(props map[string]float64) map[string]float64
}

func noState(map[string]float64) map[string]float64 { return map[string]float64{} }

func mohrCoulombState(props map[string]float64) map[string]float64 {
	return map[string]float64{
		"phi":      props["friction"],
		"psi":      props["dilation"],
		"cohesion": props["cohesion"],
		"epsilon":  0,
		"rho":      0,
		"theta":    0,
		"pdstrain": 0,
	}
}

var registry = map[string]model{
	"LinearElastic2D": {dim: 2, required: []string{"youngs_modulus", "poisson_ratio"}, initial: noState},
	"LinearElastic3D": {dim: 3, required: []string{"youngs_modulus", "poisson_ratio"}, initial: noState},
	"MohrCoulomb2D": {dim: 2, required: []string{"youngs_modulus", "poisson_ratio", "friction", "dilation", "cohesion"},
		stateVars: []string{"phi", "psi", "cohesion", "epsilon", "rho", "theta", "pdstrain"}, initial: mohrCoulombState},
	"MohrCoulomb3D": {dim: 3, required: []string{"youngs_modulus", "poisson_ratio", "friction", "dilation", "cohesion"},
		stateVars: []string{"phi", "psi", "cohesion", "epsilon", "rho", "theta", "pdstrain"}, initial: mohrCoulombState},
	"Newtonian2D": {dim: 2, required: []string{"bulk_modulus", "dynamic_viscosity"},
		stateVars: []string{"pressure"}, initial: func(map[string]float64) map[string]float64 {
			return map[string]float64{"pressure": 0}
		}},
	"Newtonian3D": {dim: 3, required: []string{"bulk_modulus", "dynamic_viscosity"},
		stateVars: []string{"pressure"}, initial: func(map[string]float64) map[string]float64 {
			return map[string]float64{"pressure": 0}
		}},
}

func Types() (names []string) {
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return
}

func New(id uint32, mtype string, density float64, props map[string]float64) (m *Material, err error) {
	mod, ok := registry[mtype]
	if !ok {
		err = fmt.Errorf("unknown material type %q, available: %v", mtype, Types())
		return
	}
	if density <= 0 {
		err = fmt.Errorf("material %d: density must be positive, got %g", id, density)
		return
	}
	for _, key := range mod.required {
		if _, present := props[key]; !present {
			err = fmt.Errorf("material %d (%s): missing property %q", id, mtype, key)
			return
		}
	}
	m = &Material{
		ID:         id,
		Type:       mtype,
		Density:    density,
		Properties: props,
		model:      mod,
	}
	return
}

func (m *Material) Dim() int { return m.model.dim }

// StateVariables returns the ordered names of the state variables the model carries
func (m *Material) StateVariables() []string { return m.model.stateVars }

func (m *Material) InitialStateVariables() map[string]float64 {
	return m.model.initial(m.Properties)
}

func (m *Material) Property(key string) (val float64, err error) {
	var ok bool
	if val, ok = m.Properties[key]; !ok {
		err = fmt.Errorf("material %d: no property %q", m.ID, key)
	}
	return
}
