package plant

import "errors"

// Domain-level error values returned by the plant service.
var (
	ErrProjectNotFound           = errors.New("project not found")
	ErrProjectExists             = errors.New("project already exists")
	ErrAllocationExists          = errors.New("allocation already exists")
	ErrAllocationExceedsCapacity = errors.New("allocation exceeds remaining project capacity")
	ErrReadingNotFound           = errors.New("generation reading not found")
	ErrReadingNotValidated       = errors.New("generation reading not validated")
	ErrInvalidProject            = errors.New("invalid project")
	ErrInvalidAllocation         = errors.New("invalid allocation")
	ErrInvalidReading            = errors.New("invalid generation reading")
	ErrInvalidPeriod             = errors.New("invalid period")
	ErrInvalidServiceConfig      = errors.New("invalid service config")
)
