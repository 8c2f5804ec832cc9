package types

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTypes(t *testing.T) {
	{ // Test packed node pair keys
		pk := NewPairKey(1, 0)
		assert.Equal(t, PairKey(1<<32), pk)
		assert.Equal(t, [2]Index{0, 1}, pk.Nodes())

		pk = NewPairKey(0, 1)
		assert.Equal(t, PairKey(1<<32), pk)

		pk = NewPairKey(100, 1)
		assert.Equal(t, PairKey(100*(1<<32)+1), pk)
		assert.Equal(t, [2]Index{1, 100}, pk.Nodes())

		pk = NewPairKey(1<<32-1, 1<<32-1)
		assert.Equal(t, PairKey(1<<64-1), pk)
		assert.Equal(t, [2]Index{1<<32 - 1, 1<<32 - 1}, pk.Nodes())

		assert.Panics(t, func() { NewPairKey(1<<32, 0) })

		keys := PairKeySlice{NewPairKey(3, 2), NewPairKey(0, 1), NewPairKey(2, 0)}
		sort.Sort(keys)
		assert.Equal(t, [2]Index{0, 1}, keys[0].Nodes())
		assert.Equal(t, [2]Index{0, 2}, keys[1].Nodes())
		assert.Equal(t, [2]Index{2, 3}, keys[2].Nodes())
	}
	{ // Particle and node type tables
		tokens := []string{"P2D", "P3D", "P2D2PHASE", "P3D2PHASE"}
		dims := []int{2, 3, 2, 3}
		twoPhase := []bool{false, false, true, true}
		for i, token := range tokens {
			pt, ok := ParticleTypeMap[token]
			assert.True(t, ok)
			assert.Equal(t, token, pt.String())
			assert.Equal(t, dims[i], pt.Dim())
			assert.Equal(t, twoPhase[i], pt.IsTwoPhase())
		}
		assert.Equal(t, 2, NodeTypeMap["N3D2P"].NPhases())
		assert.Equal(t, 1, NodeTypeMap["N2D"].NPhases())
		assert.Equal(t, 3, NodeTypeMap["N3D"].Dim())
	}
}
