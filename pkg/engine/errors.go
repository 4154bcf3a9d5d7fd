package engine

import "errors"

// Domain-level error values returned by the calculation engine.
var (
	ErrInvalidParameters = errors.New("invalid calculation parameters")
	ErrCapacityExceeded  = errors.New("allocated capacity exceeds project capacity")
	ErrInvalidRange      = errors.New("invalid generation range")
	ErrInvalidGap        = errors.New("invalid interpolation gap")
)
