package mesh

import (
	"fmt"
	"sort"

	"github.com/notargets/gompm/types"
)

type (
	NodeConstructor     func(id types.Index, coord []float64) (*Node, error)
	ParticleConstructor func(id types.Index, coord []float64) (*Particle, error)
)

var (
	nodeFactory     = make(map[types.NodeType]NodeConstructor)
	particleFactory = make(map[types.ParticleType]ParticleConstructor)
)

func init() {
	for _, nt := range types.NodeTypeMap {
		nt := nt
		nodeFactory[nt] = func(id types.Index, coord []float64) (*Node, error) {
			return NewNode(id, nt, coord)
		}
	}
	for _, pt := range types.ParticleTypeMap {
		pt := pt
		particleFactory[pt] = func(id types.Index, coord []float64) (*Particle, error) {
			return NewParticle(id, pt, coord)
		}
	}
}

// NodeTypeByName resolves a configured node type name such as "N2D"
func NodeTypeByName(name string) (nt types.NodeType, err error) {
	var ok bool
	if nt, ok = types.NodeTypeMap[name]; !ok {
		err = fmt.Errorf("%w: node type %q, choose from %v", ErrInvalidValue, name, nodeTypeNames())
	}
	return
}

// ParticleTypeByName resolves a configured particle type name such as "P2D"
func ParticleTypeByName(name string) (pt types.ParticleType, err error) {
	var ok bool
	if pt, ok = types.ParticleTypeMap[name]; !ok {
		err = fmt.Errorf("%w: particle type %q, choose from %v", ErrInvalidValue, name, particleTypeNames())
	}
	return
}

func nodeConstructor(nt types.NodeType) (NodeConstructor, error) {
	ctor, ok := nodeFactory[nt]
	if !ok {
		return nil, fmt.Errorf("%w: node type %s", ErrInvalidValue, nt)
	}
	return ctor, nil
}

func particleConstructor(pt types.ParticleType) (ParticleConstructor, error) {
	ctor, ok := particleFactory[pt]
	if !ok {
		return nil, fmt.Errorf("%w: particle type %s", ErrInvalidValue, pt)
	}
	return ctor, nil
}

func nodeTypeNames() (names []string) {
	for name := range types.NodeTypeMap {
		names = append(names, name)
	}
	sort.Strings(names)
	return
}

func particleTypeNames() (names []string) {
	for name := range types.ParticleTypeMap {
		names = append(names, name)
	}
	sort.Strings(names)
	return
}
