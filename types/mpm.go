package types

//go:generate stringer -type=ParticleType

type ParticleType uint8

const (
	P_None ParticleType = iota
	P_2D
	P_3D
	P_2D2Phase
	P_3D2Phase
)

func (pt ParticleType) String() string {
	return [...]string{"None", "P2D", "P3D", "P2D2PHASE", "P3D2PHASE"}[pt]
}

// Dim is the spatial dimension of the particle type
func (pt ParticleType) Dim() int {
	switch pt {
	case P_2D, P_2D2Phase:
		return 2
	case P_3D, P_3D2Phase:
		return 3
	}
	return 0
}

// IsTwoPhase reports whether the particle carries a liquid phase
func (pt ParticleType) IsTwoPhase() bool {
	return pt == P_2D2Phase || pt == P_3D2Phase
}

var ParticleTypeMap = map[string]ParticleType{
	"P2D":       P_2D,
	"P3D":       P_3D,
	"P2D2PHASE": P_2D2Phase,
	"P3D2PHASE": P_3D2Phase,
}

type NodeType uint8

const (
	N_None NodeType = iota
	N_2D
	N_3D
	N_2D2Phase
	N_3D2Phase
)

func (nt NodeType) String() string {
	return [...]string{"None", "N2D", "N3D", "N2D2P", "N3D2P"}[nt]
}

func (nt NodeType) Dim() int {
	switch nt {
	case N_2D, N_2D2Phase:
		return 2
	case N_3D, N_3D2Phase:
		return 3
	}
	return 0
}

// NPhases is the number of material phases accumulated at the node
func (nt NodeType) NPhases() int {
	if nt == N_2D2Phase || nt == N_3D2Phase {
		return 2
	}
	return 1
}

var NodeTypeMap = map[string]NodeType{
	"N2D":   N_2D,
	"N3D":   N_3D,
	"N2D2P": N_2D2Phase,
	"N3D2P": N_3D2Phase,
}

// Phase indices into nodal and particle phase arrays
const (
	SolidPhase  = 0
	LiquidPhase = 1
)
