package gormstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/solarshare/solarshare/pkg/ledger"
)

// LedgerStore implements ledger.Store using GORM.
type LedgerStore struct {
	db *gorm.DB
}

// NewLedgerStore returns a LedgerStore backed by gorm.DB.
func NewLedgerStore(db *gorm.DB) *LedgerStore {
	return &LedgerStore{db: db}
}

// WithTx executes fn within a serializable transaction.
func (store *LedgerStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore ledger.Store) error) error {
	return runInTx(ctx, store.db, func(transaction *gorm.DB) error {
		return fn(ctx, &LedgerStore{db: transaction})
	})
}

// InsertEntry appends one immutable ledger row.
func (store *LedgerStore) InsertEntry(ctx context.Context, entry ledger.Entry) error {
	model := LedgerEntry{
		EntryID:        entry.EntryID,
		UserID:         entry.UserID,
		Type:           entry.Type.String(),
		Status:         entry.Status.String(),
		AmountCents:    entry.AmountCents.Int64(),
		Month:          intOrNil(entry.Month),
		Year:           intOrNil(entry.Year),
		RefID:          entry.RefID,
		RefType:        entry.RefType.String(),
		Description:    entry.Description,
		FormulaVersion: entry.FormulaVersion,
		Metadata:       metadataJSON(entry.MetadataJSON),
		IdempotencyKey: entry.IdempotencyKey,
		CreatedAt:      time.Unix(entry.CreatedUnixUTC, 0).UTC(),
	}
	if entry.CreatedUnixUTC == 0 {
		model.CreatedAt = time.Now().UTC()
	}
	err := store.db.WithContext(ctx).Create(&model).Error
	if isUniqueViolation(err) {
		return wrapStoreError(errorSubjectEntry, errorCodeDuplicate, ledger.ErrDuplicateEntry)
	}
	if err != nil {
		return wrapStoreError(errorSubjectEntry, errorCodeInsert, err)
	}
	return nil
}

// GetEntry fetches one entry by id.
func (store *LedgerStore) GetEntry(ctx context.Context, entryID string) (ledger.Entry, error) {
	var model LedgerEntry
	err := store.db.WithContext(ctx).Where("entry_id = ?", entryID).Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ledger.Entry{}, wrapStoreError(errorSubjectEntry, errorCodeGet, fmt.Errorf("%w: %s", ledger.ErrEntryNotFound, entryID))
		}
		return ledger.Entry{}, wrapStoreError(errorSubjectEntry, errorCodeGet, err)
	}
	return mapLedgerEntry(model)
}

// FindEntryByKey looks up the entry carrying an idempotency key, if any.
func (store *LedgerStore) FindEntryByKey(ctx context.Context, idempotencyKey string) (ledger.Entry, bool, error) {
	var model LedgerEntry
	err := store.db.WithContext(ctx).Where("idempotency_key = ?", idempotencyKey).Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ledger.Entry{}, false, nil
		}
		return ledger.Entry{}, false, wrapStoreError(errorSubjectEntry, errorCodeFind, err)
	}
	entry, err := mapLedgerEntry(model)
	if err != nil {
		return ledger.Entry{}, false, err
	}
	return entry, true, nil
}

// UpdateEntryStatus performs the conditional lifecycle transition. The
// from-status guard keeps terminal states terminal without row locks.
func (store *LedgerStore) UpdateEntryStatus(ctx context.Context, entryID string, from, to ledger.EntryStatus) (bool, error) {
	result := store.db.WithContext(ctx).
		Model(&LedgerEntry{}).
		Where("entry_id = ? AND status = ?", entryID, from.String()).
		Update("status", to.String())
	if result.Error != nil {
		return false, wrapStoreError(errorSubjectEntry, errorCodeUpdate, result.Error)
	}
	return result.RowsAffected > 0, nil
}

// SignedBalanceCents computes earned minus applied and expired over confirmed
// entries in a single aggregate, so a concurrent write is never partially
// visible between per-type sums.
func (store *LedgerStore) SignedBalanceCents(ctx context.Context, userID string) (int64, error) {
	var sum sqlSum
	err := store.db.WithContext(ctx).
		Model(&LedgerEntry{}).
		Select(
			"coalesce(sum(case when type = ? then amount_cents else -amount_cents end),0) as total",
			ledger.EntryEarned.String(),
		).
		Where("user_id = ? AND status = ?", userID, ledger.StatusConfirmed.String()).
		Scan(&sum).Error
	if err != nil {
		return 0, wrapStoreError(errorSubjectBalance, errorCodeSum, err)
	}
	return sum.Total, nil
}

// SumConfirmedCents totals one entry type over confirmed entries.
func (store *LedgerStore) SumConfirmedCents(ctx context.Context, userID string, entryType ledger.EntryType) (int64, error) {
	var sum sqlSum
	err := store.db.WithContext(ctx).
		Model(&LedgerEntry{}).
		Select("coalesce(sum(amount_cents),0) as total").
		Where("user_id = ? AND status = ? AND type = ?", userID, ledger.StatusConfirmed.String(), entryType.String()).
		Scan(&sum).Error
	if err != nil {
		return 0, wrapStoreError(errorSubjectBalance, errorCodeSum, err)
	}
	return sum.Total, nil
}

// ListEntries returns a user's entries newest first.
func (store *LedgerStore) ListEntries(ctx context.Context, userID string, filter ledger.Filter) ([]ledger.Entry, error) {
	query := store.db.WithContext(ctx).Where("user_id = ?", userID)
	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type.String())
	}
	if filter.Month != 0 {
		query = query.Where("month = ?", filter.Month)
	}
	if filter.Year != 0 {
		query = query.Where("year = ?", filter.Year)
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = ledger.DefaultListLimit
	}
	var rows []LedgerEntry
	err := query.Order("created_at DESC, entry_id DESC").Limit(limit).Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectEntry, errorCodeList, err)
	}
	entries := make([]ledger.Entry, 0, len(rows))
	for _, row := range rows {
		entry, err := mapLedgerEntry(row)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func mapLedgerEntry(model LedgerEntry) (ledger.Entry, error) {
	entryType, err := ledger.ParseEntryType(model.Type)
	if err != nil {
		return ledger.Entry{}, wrapStoreError(errorSubjectEntry, errorCodeInvalid, err)
	}
	status, err := ledger.ParseEntryStatus(model.Status)
	if err != nil {
		return ledger.Entry{}, wrapStoreError(errorSubjectEntry, errorCodeInvalid, err)
	}
	return ledger.Entry{
		EntryID:        model.EntryID,
		UserID:         model.UserID,
		Type:           entryType,
		Status:         status,
		AmountCents:    ledger.AmountCents(model.AmountCents),
		Month:          intOrZero(model.Month),
		Year:           intOrZero(model.Year),
		RefID:          model.RefID,
		RefType:        ledger.RefType(model.RefType),
		Description:    model.Description,
		FormulaVersion: model.FormulaVersion,
		MetadataJSON:   string(model.Metadata),
		IdempotencyKey: model.IdempotencyKey,
		CreatedUnixUTC: model.CreatedAt.Unix(),
	}, nil
}

func intOrNil(value int) *int {
	if value == 0 {
		return nil
	}
	return &value
}

func intOrZero(value *int) int {
	if value == nil {
		return 0
	}
	return *value
}

func metadataJSON(raw string) datatypes.JSON {
	if raw == "" {
		return datatypes.JSON([]byte(defaultMetadataJSON))
	}
	return datatypes.JSON([]byte(raw))
}
