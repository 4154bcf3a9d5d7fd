package gormstore

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Project mirrors the projects table.
type Project struct {
	ProjectID           string          `gorm:"primaryKey"`
	Name                string          `gorm:"not null"`
	TotalKw             decimal.Decimal `gorm:"type:numeric;not null"`
	TariffPerKwh        decimal.Decimal `gorm:"type:numeric;not null"`
	ExpectedMinKwhPerKw decimal.Decimal `gorm:"type:numeric;not null"`
	ExpectedMaxKwhPerKw decimal.Decimal `gorm:"type:numeric;not null"`
	CreatedAt           time.Time       `gorm:"not null"`
}

func (Project) TableName() string { return "projects" }

// CapacityAllocation mirrors the capacity_allocations table. One confirmed
// reservation per (project, user); rows are never updated.
type CapacityAllocation struct {
	AllocationID string          `gorm:"type:uuid;primaryKey"`
	ProjectID    string          `gorm:"not null;uniqueIndex:uniq_allocation_project_user,priority:1"`
	UserID       string          `gorm:"not null;index;uniqueIndex:uniq_allocation_project_user,priority:2"`
	Kw           decimal.Decimal `gorm:"type:numeric;not null"`
	CreatedAt    time.Time       `gorm:"not null"`
}

func (CapacityAllocation) TableName() string { return "capacity_allocations" }

// GenerationReading mirrors the generation_readings table. The unique period
// index backs the at-most-one-reading-per-month invariant.
type GenerationReading struct {
	ReadingID string          `gorm:"type:uuid;primaryKey"`
	ProjectID string          `gorm:"not null;uniqueIndex:uniq_reading_project_period,priority:1"`
	Month     int             `gorm:"not null;uniqueIndex:uniq_reading_project_period,priority:2"`
	Year      int             `gorm:"not null;uniqueIndex:uniq_reading_project_period,priority:3"`
	Kwh       decimal.Decimal `gorm:"type:numeric;not null"`
	Validated bool            `gorm:"not null"`
	Source    string          `gorm:""`
	CreatedAt time.Time       `gorm:"not null"`
	UpdatedAt time.Time       `gorm:"not null"`
}

func (GenerationReading) TableName() string { return "generation_readings" }

func (reading *GenerationReading) BeforeCreate(tx *gorm.DB) error {
	if reading.ReadingID == "" {
		reading.ReadingID = uuid.NewString()
	}
	return nil
}

// LedgerEntry mirrors the credit_ledger_entries table. Rows are insert-only;
// status is the single field the lifecycle transitions touch.
type LedgerEntry struct {
	EntryID        string         `gorm:"type:uuid;primaryKey"`
	UserID         string         `gorm:"not null;index:idx_ledger_user_created,priority:1"`
	Type           string         `gorm:"not null"`
	Status         string         `gorm:"not null"`
	AmountCents    int64          `gorm:"not null"`
	Month          *int           `gorm:""`
	Year           *int           `gorm:""`
	RefID          string         `gorm:""`
	RefType        string         `gorm:""`
	Description    string         `gorm:""`
	FormulaVersion string         `gorm:""`
	Metadata       datatypes.JSON `gorm:"not null"`
	IdempotencyKey string         `gorm:"not null;uniqueIndex:uniq_ledger_entry_idem"`
	CreatedAt      time.Time      `gorm:"not null;index:idx_ledger_user_created,priority:2"`
}

func (LedgerEntry) TableName() string { return "credit_ledger_entries" }

// AutoMigrate creates the full schema; used for sqlite deployments and tests.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&Project{}, &CapacityAllocation{}, &GenerationReading{}, &LedgerEntry{})
}
