package types

import "math"

// Index is the global integer id of a node, cell or particle
type Index uint64

const (
	// MaxIndex marks an unassigned id, e.g. a particle that has not been located
	MaxIndex = Index(math.MaxUint64)
	// AllSet is the reserved set id that expands to the whole container
	AllSet = -1
	// NoGhost marks a node that is not shared across ranks
	NoGhost = -1
)

// IndexSlice sorts ids ascending
type IndexSlice []Index

func (p IndexSlice) Len() int           { return len(p) }
func (p IndexSlice) Less(i, j int) bool { return p[i] < p[j] }
func (p IndexSlice) Swap(i, j int)      { p[i], p[j] = p[j], p[i] }
