// Package plant holds the solar-plant side of the platform: projects and
// their tariff/yield policy, confirmed capacity allocations, and metered
// generation readings with their validation lifecycle.
package plant

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Project is a solar plant whose capacity users reserve shares of.
type Project struct {
	ProjectID string
	Name      string
	// TotalKw is the rated output of the plant.
	TotalKw decimal.Decimal
	// TariffPerKwh is the credit rate applied to a user's generation share.
	TariffPerKwh decimal.Decimal
	// Expected monthly yield band per kW, used to derive the plausibility
	// range for a metered reading.
	ExpectedMinKwhPerKw decimal.Decimal
	ExpectedMaxKwhPerKw decimal.Decimal
	CreatedUnixUTC      int64
}

func (project *Project) validate() error {
	if strings.TrimSpace(project.ProjectID) == "" {
		return fmt.Errorf("%w: project id is required", ErrInvalidProject)
	}
	if !project.TotalKw.IsPositive() {
		return fmt.Errorf("%w: total kw must be greater than zero", ErrInvalidProject)
	}
	if !project.TariffPerKwh.IsPositive() {
		return fmt.Errorf("%w: tariff must be greater than zero", ErrInvalidProject)
	}
	if project.ExpectedMinKwhPerKw.IsNegative() {
		return fmt.Errorf("%w: expected minimum yield must not be negative", ErrInvalidProject)
	}
	if project.ExpectedMaxKwhPerKw.LessThan(project.ExpectedMinKwhPerKw) {
		return fmt.Errorf("%w: expected yield band is inverted", ErrInvalidProject)
	}
	return nil
}

// CapacityAllocation is a user's confirmed reservation of project capacity.
// Immutable once created; transfers and cancellations are handled outside
// the credit core.
type CapacityAllocation struct {
	AllocationID   string
	ProjectID      string
	UserID         string
	Kw             decimal.Decimal
	CreatedUnixUTC int64
}

// GenerationReading is the metered output of one project for one month.
// At most one reading exists per (project, month, year); a re-upload
// overwrites the figure and resets Validated.
type GenerationReading struct {
	ProjectID      string
	Month          int
	Year           int
	Kwh            decimal.Decimal
	Validated      bool
	Source         string
	UpdatedUnixUTC int64
}

func validatePeriod(month, year int) error {
	if month < 1 || month > 12 {
		return fmt.Errorf("%w: month must be between 1 and 12", ErrInvalidPeriod)
	}
	if year < 1 {
		return fmt.Errorf("%w: year must be greater than zero", ErrInvalidPeriod)
	}
	return nil
}

// Store is the persistence contract used by Service.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error
	CreateProject(ctx context.Context, project Project) error
	GetProject(ctx context.Context, projectID string) (Project, error)
	CreateAllocation(ctx context.Context, allocation CapacityAllocation) error
	SumAllocatedKw(ctx context.Context, projectID string) (decimal.Decimal, error)
	ListAllocations(ctx context.Context, projectID string) ([]CapacityAllocation, error)
	UpsertReading(ctx context.Context, reading GenerationReading) error
	GetReading(ctx context.Context, projectID string, month, year int) (GenerationReading, error)
	SetReadingValidated(ctx context.Context, projectID string, month, year int, validated bool) error
}
