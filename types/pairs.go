package types

import (
	"fmt"
	"math"
)

/*
PairKey packs an unordered pair of node ids into one comparable value.
A pair between nodes [4] and [0] is always stored as [0,4], lower id in the low 32 bits.
*/
type PairKey uint64

func NewPairKey(a, b Index) (packed PairKey) {
	if a > math.MaxUint32 || b > math.MaxUint32 {
		panic(fmt.Errorf("unable to pack node ids %d and %d into a pair key", a, b))
	}
	if a > b {
		a, b = b, a
	}
	packed = PairKey(uint64(a) | uint64(b)<<32)
	return
}

// Nodes returns the pair ordered low to high
func (pk PairKey) Nodes() (pair [2]Index) {
	pair[0] = Index(uint64(pk) & math.MaxUint32)
	pair[1] = Index(uint64(pk) >> 32)
	return
}

type PairKeySlice []PairKey

func (p PairKeySlice) Len() int           { return len(p) }
func (p PairKeySlice) Less(i, j int) bool { return p[i] < p[j] }
func (p PairKeySlice) Swap(i, j int)      { p[i], p[j] = p[j], p[i] }
