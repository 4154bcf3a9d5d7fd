package gormstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/solarshare/solarshare/pkg/plant"
)

// PlantStore implements plant.Store using GORM.
type PlantStore struct {
	db *gorm.DB
}

// NewPlantStore returns a PlantStore backed by gorm.DB.
func NewPlantStore(db *gorm.DB) *PlantStore {
	return &PlantStore{db: db}
}

// WithTx executes fn within a serializable transaction.
func (store *PlantStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore plant.Store) error) error {
	return runInTx(ctx, store.db, func(transaction *gorm.DB) error {
		return fn(ctx, &PlantStore{db: transaction})
	})
}

// CreateProject inserts a new project row.
func (store *PlantStore) CreateProject(ctx context.Context, project plant.Project) error {
	model := Project{
		ProjectID:           project.ProjectID,
		Name:                project.Name,
		TotalKw:             project.TotalKw,
		TariffPerKwh:        project.TariffPerKwh,
		ExpectedMinKwhPerKw: project.ExpectedMinKwhPerKw,
		ExpectedMaxKwhPerKw: project.ExpectedMaxKwhPerKw,
		CreatedAt:           time.Unix(project.CreatedUnixUTC, 0).UTC(),
	}
	if project.CreatedUnixUTC == 0 {
		model.CreatedAt = time.Now().UTC()
	}
	err := store.db.WithContext(ctx).Create(&model).Error
	if isUniqueViolation(err) {
		return wrapStoreError(errorSubjectProject, errorCodeDuplicate, plant.ErrProjectExists)
	}
	if err != nil {
		return wrapStoreError(errorSubjectProject, errorCodeInsert, err)
	}
	return nil
}

// GetProject fetches one project by id.
func (store *PlantStore) GetProject(ctx context.Context, projectID string) (plant.Project, error) {
	var model Project
	err := store.db.WithContext(ctx).Where("project_id = ?", projectID).Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return plant.Project{}, wrapStoreError(errorSubjectProject, errorCodeGet, fmt.Errorf("%w: %s", plant.ErrProjectNotFound, projectID))
		}
		return plant.Project{}, wrapStoreError(errorSubjectProject, errorCodeGet, err)
	}
	return plant.Project{
		ProjectID:           model.ProjectID,
		Name:                model.Name,
		TotalKw:             model.TotalKw,
		TariffPerKwh:        model.TariffPerKwh,
		ExpectedMinKwhPerKw: model.ExpectedMinKwhPerKw,
		ExpectedMaxKwhPerKw: model.ExpectedMaxKwhPerKw,
		CreatedUnixUTC:      model.CreatedAt.Unix(),
	}, nil
}

// CreateAllocation inserts a confirmed reservation row.
func (store *PlantStore) CreateAllocation(ctx context.Context, allocation plant.CapacityAllocation) error {
	model := CapacityAllocation{
		AllocationID: allocation.AllocationID,
		ProjectID:    allocation.ProjectID,
		UserID:       allocation.UserID,
		Kw:           allocation.Kw,
		CreatedAt:    time.Unix(allocation.CreatedUnixUTC, 0).UTC(),
	}
	if allocation.CreatedUnixUTC == 0 {
		model.CreatedAt = time.Now().UTC()
	}
	err := store.db.WithContext(ctx).Create(&model).Error
	if isUniqueViolation(err) {
		return wrapStoreError(errorSubjectAllocation, errorCodeDuplicate, plant.ErrAllocationExists)
	}
	if err != nil {
		return wrapStoreError(errorSubjectAllocation, errorCodeInsert, err)
	}
	return nil
}

// SumAllocatedKw totals confirmed allocations for a project.
func (store *PlantStore) SumAllocatedKw(ctx context.Context, projectID string) (decimal.Decimal, error) {
	var sum struct {
		Total decimal.Decimal
	}
	err := store.db.WithContext(ctx).
		Model(&CapacityAllocation{}).
		Select("coalesce(sum(kw),0) as total").
		Where("project_id = ?", projectID).
		Scan(&sum).Error
	if err != nil {
		return decimal.Decimal{}, wrapStoreError(errorSubjectAllocation, errorCodeSum, err)
	}
	return sum.Total, nil
}

// ListAllocations returns a project's allocations oldest first.
func (store *PlantStore) ListAllocations(ctx context.Context, projectID string) ([]plant.CapacityAllocation, error) {
	var rows []CapacityAllocation
	err := store.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectAllocation, errorCodeList, err)
	}
	allocations := make([]plant.CapacityAllocation, 0, len(rows))
	for _, row := range rows {
		allocations = append(allocations, plant.CapacityAllocation{
			AllocationID:   row.AllocationID,
			ProjectID:      row.ProjectID,
			UserID:         row.UserID,
			Kw:             row.Kw,
			CreatedUnixUTC: row.CreatedAt.Unix(),
		})
	}
	return allocations, nil
}

// UpsertReading inserts or overwrites the reading for one project-period.
func (store *PlantStore) UpsertReading(ctx context.Context, reading plant.GenerationReading) error {
	model := GenerationReading{
		ProjectID: reading.ProjectID,
		Month:     reading.Month,
		Year:      reading.Year,
		Kwh:       reading.Kwh,
		Validated: reading.Validated,
		Source:    reading.Source,
		UpdatedAt: time.Unix(reading.UpdatedUnixUTC, 0).UTC(),
	}
	if reading.UpdatedUnixUTC == 0 {
		model.UpdatedAt = time.Now().UTC()
	}
	err := store.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "project_id"}, {Name: "month"}, {Name: "year"}},
			DoUpdates: clause.AssignmentColumns([]string{"kwh", "validated", "source", "updated_at"}),
		}).
		Create(&model).Error
	if err != nil {
		return wrapStoreError(errorSubjectReading, errorCodeUpsert, err)
	}
	return nil
}

// GetReading fetches the reading for one project-period.
func (store *PlantStore) GetReading(ctx context.Context, projectID string, month, year int) (plant.GenerationReading, error) {
	var model GenerationReading
	err := store.db.WithContext(ctx).
		Where("project_id = ? AND month = ? AND year = ?", projectID, month, year).
		Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return plant.GenerationReading{}, wrapStoreError(errorSubjectReading, errorCodeGet,
				fmt.Errorf("%w: project %s period %d/%d", plant.ErrReadingNotFound, projectID, month, year))
		}
		return plant.GenerationReading{}, wrapStoreError(errorSubjectReading, errorCodeGet, err)
	}
	return plant.GenerationReading{
		ProjectID:      model.ProjectID,
		Month:          model.Month,
		Year:           model.Year,
		Kwh:            model.Kwh,
		Validated:      model.Validated,
		Source:         model.Source,
		UpdatedUnixUTC: model.UpdatedAt.Unix(),
	}, nil
}

// SetReadingValidated flips the validation flag for one project-period.
func (store *PlantStore) SetReadingValidated(ctx context.Context, projectID string, month, year int, validated bool) error {
	result := store.db.WithContext(ctx).
		Model(&GenerationReading{}).
		Where("project_id = ? AND month = ? AND year = ?", projectID, month, year).
		Update("validated", validated)
	if result.Error != nil {
		return wrapStoreError(errorSubjectReading, errorCodeUpdate, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectReading, errorCodeUpdate, plant.ErrReadingNotFound)
	}
	return nil
}
