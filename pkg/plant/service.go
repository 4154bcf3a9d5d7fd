package plant

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/solarshare/solarshare/pkg/engine"
)

// Service contains the plant-side domain logic over a Store.
type Service struct {
	store  Store
	nowFn  func() int64
	idFn   func() string
	logger *zap.Logger
}

// ServiceOption configures a Service instance.
type ServiceOption func(*Service)

// WithLogger wires a zap logger; defaults to a no-op logger.
func WithLogger(logger *zap.Logger) ServiceOption {
	return func(service *Service) {
		service.logger = logger
	}
}

// WithIDGenerator overrides allocation id generation.
func WithIDGenerator(generate func() string) ServiceOption {
	return func(service *Service) {
		service.idFn = generate
	}
}

// NewService wires a Service.
func NewService(store Store, now func() int64, options ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store dependency is nil", ErrInvalidServiceConfig)
	}
	if now == nil {
		return nil, fmt.Errorf("%w: clock dependency is nil", ErrInvalidServiceConfig)
	}
	service := &Service{store: store, nowFn: now, idFn: uuid.NewString, logger: zap.NewNop()}
	for _, option := range options {
		if option != nil {
			option(service)
		}
	}
	return service, nil
}

// RegisterProject persists a new project and its tariff/yield policy.
func (service *Service) RegisterProject(ctx context.Context, project Project) error {
	if err := project.validate(); err != nil {
		return err
	}
	project.CreatedUnixUTC = service.nowFn()
	return service.store.CreateProject(ctx, project)
}

// GetProject fetches one project by id.
func (service *Service) GetProject(ctx context.Context, projectID string) (Project, error) {
	return service.store.GetProject(ctx, projectID)
}

// CreateAllocation records a confirmed capacity reservation. The invariant
// that allocated capacity never exceeds the project total is enforced here,
// with the sum check and the insert in one transaction.
func (service *Service) CreateAllocation(ctx context.Context, projectID, userID string, kw decimal.Decimal) (string, error) {
	if strings.TrimSpace(userID) == "" {
		return "", fmt.Errorf("%w: user id is required", ErrInvalidAllocation)
	}
	if !kw.IsPositive() {
		return "", fmt.Errorf("%w: kw must be greater than zero", ErrInvalidAllocation)
	}
	allocationID := service.idFn()
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		project, err := transactionStore.GetProject(ctx, projectID)
		if err != nil {
			return err
		}
		allocated, err := transactionStore.SumAllocatedKw(ctx, projectID)
		if err != nil {
			return err
		}
		if allocated.Add(kw).GreaterThan(project.TotalKw) {
			return fmt.Errorf(
				"%w: %s kW requested, %s of %s kW already allocated",
				ErrAllocationExceedsCapacity, kw, allocated, project.TotalKw,
			)
		}
		return transactionStore.CreateAllocation(ctx, CapacityAllocation{
			AllocationID:   allocationID,
			ProjectID:      projectID,
			UserID:         userID,
			Kw:             kw,
			CreatedUnixUTC: service.nowFn(),
		})
	})
	if operationError != nil {
		return "", operationError
	}
	return allocationID, nil
}

// ListAllocations returns a project's confirmed allocations.
func (service *Service) ListAllocations(ctx context.Context, projectID string) ([]CapacityAllocation, error) {
	return service.store.ListAllocations(ctx, projectID)
}

// UpsertReading stores the metered output for one project-period. A repeat
// upload for the same period overwrites the figure and always resets the
// validated flag, forcing re-validation before calculation.
func (service *Service) UpsertReading(ctx context.Context, projectID string, month, year int, kwh decimal.Decimal, source string) error {
	if err := validatePeriod(month, year); err != nil {
		return err
	}
	if kwh.IsNegative() {
		return fmt.Errorf("%w: kwh must not be negative", ErrInvalidReading)
	}
	return service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		if _, err := transactionStore.GetProject(ctx, projectID); err != nil {
			return err
		}
		return transactionStore.UpsertReading(ctx, GenerationReading{
			ProjectID:      projectID,
			Month:          month,
			Year:           year,
			Kwh:            kwh,
			Validated:      false,
			Source:         source,
			UpdatedUnixUTC: service.nowFn(),
		})
	})
}

// ValidateReading checks a stored reading against the project's expected
// yield band and marks it validated when it passes. An out-of-band reading
// stays unvalidated; the returned validation carries the reason.
func (service *Service) ValidateReading(ctx context.Context, projectID string, month, year int) (engine.Validation, error) {
	var validation engine.Validation
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		project, err := transactionStore.GetProject(ctx, projectID)
		if err != nil {
			return err
		}
		reading, err := transactionStore.GetReading(ctx, projectID, month, year)
		if err != nil {
			return err
		}
		validation, err = engine.ValidateGeneration(reading.Kwh, ExpectedRange(project))
		if err != nil {
			return err
		}
		if !validation.Valid {
			service.logger.Warn("generation reading outside expected range",
				zap.String("project_id", projectID),
				zap.Int("month", month),
				zap.Int("year", year),
				zap.String("reason", validation.Reason),
			)
			return nil
		}
		return transactionStore.SetReadingValidated(ctx, projectID, month, year, true)
	})
	if operationError != nil {
		return engine.Validation{}, operationError
	}
	return validation, nil
}

// ValidatedReading fetches a reading that has passed validation. Unvalidated
// readings are not usable for credit calculation.
func (service *Service) ValidatedReading(ctx context.Context, projectID string, month, year int) (GenerationReading, error) {
	reading, err := service.store.GetReading(ctx, projectID, month, year)
	if err != nil {
		return GenerationReading{}, err
	}
	if !reading.Validated {
		return GenerationReading{}, fmt.Errorf("%w: project %s period %d/%d", ErrReadingNotValidated, projectID, month, year)
	}
	return reading, nil
}

// ExpectedRange derives the plausibility band for a project's monthly
// generation from its rated capacity and expected per-kW yield.
func ExpectedRange(project Project) engine.Range {
	return engine.Range{
		Min: project.TotalKw.Mul(project.ExpectedMinKwhPerKw),
		Max: project.TotalKw.Mul(project.ExpectedMaxKwhPerKw),
	}
}
