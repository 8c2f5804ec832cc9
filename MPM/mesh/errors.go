package mesh

import (
	"errors"

	"github.com/notargets/gompm/MPM/container"
)

var (
	ErrDuplicateID           = container.ErrDuplicate
	ErrNotFound              = container.ErrNotFound
	ErrEmptyInput            = errors.New("empty input")
	ErrInvalidDirection      = errors.New("direction is not smaller than the spatial dimension")
	ErrSetNotFound           = errors.New("set not found")
	ErrMaterialNotFound      = errors.New("material not found")
	ErrCellNotInitialised    = errors.New("cell not initialised")
	ErrParticleNotLocated    = errors.New("particle not located")
	ErrDimensionMismatch     = errors.New("dimension mismatch")
	ErrParticleTypeMismatch  = errors.New("particle phase count differs from the mesh particles")
	ErrInvalidValue          = errors.New("invalid value")
	ErrNeighboursNotComputed = errors.New("cell neighbours not computed")
)
