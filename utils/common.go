package utils

const (
	NODETOL = 1.e-12
	// Tolerance on reference coordinates when testing whether a point is inside a cell
	CELLTOL = 1.e-10
	// Default number of items per chunk in a fork-join loop
	DefaultGrainSize = 100
)
