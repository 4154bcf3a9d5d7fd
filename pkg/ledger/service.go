// Package ledger implements the append-only credit ledger: earned, applied,
// and expired credit events per user, the derived available balance, and the
// atomic balance-check-and-debit used to offset electricity bills.
package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Service contains the domain logic over a Store.
type Service struct {
	store  Store
	nowFn  func() int64
	idFn   func() string
	logger OperationLogger
}

// NewService wires a Service.
func NewService(store Store, now func() int64, options ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store dependency is nil", ErrInvalidServiceConfig)
	}
	if now == nil {
		return nil, fmt.Errorf("%w: clock dependency is nil", ErrInvalidServiceConfig)
	}
	service := &Service{store: store, nowFn: now, idFn: uuid.NewString}
	for _, option := range options {
		if option != nil {
			option(service)
		}
	}
	return service, nil
}

// CreateEntry appends a new pending ledger entry and returns its id. A retry
// carrying the same (user, reference, type) resolves to the already-created
// entry instead of double-writing the credit event.
func (service *Service) CreateEntry(ctx context.Context, input EntryInput) (string, error) {
	var entryID string
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		if err := input.validate(); err != nil {
			return err
		}
		key := DeriveIdempotencyKey(input.UserID, input.RefType, input.RefID, input.Type)
		if key != "" {
			existing, found, err := transactionStore.FindEntryByKey(ctx, key)
			if err != nil {
				return err
			}
			if found {
				entryID = existing.EntryID
				return nil
			}
		}
		entry := service.newEntry(input, StatusPending, key)
		if err := transactionStore.InsertEntry(ctx, entry); err != nil {
			return err
		}
		entryID = entry.EntryID
		return nil
	})
	service.logOperation(ctx, OperationLog{
		Operation: operationCreateEntry,
		UserID:    input.UserID,
		EntryID:   entryID,
		Amount:    input.AmountCents,
		RefID:     input.RefID,
		RefType:   input.RefType,
		Error:     operationError,
	})
	return entryID, operationError
}

// ConfirmEntry transitions a pending entry to confirmed. Confirming an
// already-confirmed entry is a no-op so callers may retry after partial
// failures; a cancelled entry never leaves its terminal state.
func (service *Service) ConfirmEntry(ctx context.Context, entryID string) error {
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		entry, err := transactionStore.GetEntry(ctx, entryID)
		if err != nil {
			return err
		}
		switch entry.Status {
		case StatusConfirmed:
			return nil
		case StatusCancelled:
			return fmt.Errorf("%w: %s", ErrEntryCancelled, entryID)
		}
		updated, err := transactionStore.UpdateEntryStatus(ctx, entryID, StatusPending, StatusConfirmed)
		if err != nil {
			return err
		}
		if !updated {
			return fmt.Errorf("%w: %s", ErrEntryConflict, entryID)
		}
		return nil
	})
	service.logOperation(ctx, OperationLog{
		Operation: operationConfirmEntry,
		EntryID:   entryID,
		Error:     operationError,
	})
	return operationError
}

// CancelEntry transitions a pending entry to cancelled. Cancelling an
// already-cancelled entry is a no-op; a confirmed entry cannot be cancelled,
// corrections append offsetting entries instead.
func (service *Service) CancelEntry(ctx context.Context, entryID string) error {
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		entry, err := transactionStore.GetEntry(ctx, entryID)
		if err != nil {
			return err
		}
		switch entry.Status {
		case StatusCancelled:
			return nil
		case StatusConfirmed:
			return fmt.Errorf("%w: %s", ErrEntryConfirmed, entryID)
		}
		updated, err := transactionStore.UpdateEntryStatus(ctx, entryID, StatusPending, StatusCancelled)
		if err != nil {
			return err
		}
		if !updated {
			return fmt.Errorf("%w: %s", ErrEntryConflict, entryID)
		}
		return nil
	})
	service.logOperation(ctx, OperationLog{
		Operation: operationCancelEntry,
		EntryID:   entryID,
		Error:     operationError,
	})
	return operationError
}

// AvailableCredits returns the user's spendable balance: confirmed earned
// minus confirmed applied and expired, floored at zero. The ledger is the
// source of truth; there is no stored counter to drift.
func (service *Service) AvailableCredits(ctx context.Context, userID string) (AmountCents, error) {
	signed, err := service.store.SignedBalanceCents(ctx, userID)
	if err != nil {
		return 0, err
	}
	return floorAtZero(signed), nil
}

// LifetimeSavings returns the total confirmed credits a user has applied to
// bills over the account's lifetime.
func (service *Service) LifetimeSavings(ctx context.Context, userID string) (AmountCents, error) {
	applied, err := service.store.SumConfirmedCents(ctx, userID, EntryApplied)
	if err != nil {
		return 0, err
	}
	return AmountCents(applied), nil
}

// ListEntries returns a user's ledger entries, newest first.
func (service *Service) ListEntries(ctx context.Context, userID string, filter Filter) ([]Entry, error) {
	if filter.Limit <= 0 {
		filter.Limit = DefaultListLimit
	}
	return service.store.ListEntries(ctx, userID, filter)
}

// GetEntry fetches one ledger entry by id.
func (service *Service) GetEntry(ctx context.Context, entryID string) (Entry, error) {
	return service.store.GetEntry(ctx, entryID)
}

func (service *Service) newEntry(input EntryInput, status EntryStatus, idempotencyKey string) Entry {
	entryID := service.idFn()
	if strings.TrimSpace(input.MetadataJSON) == "" {
		input.MetadataJSON = defaultMetadataJSON
	}
	if idempotencyKey == "" {
		// Entries without a natural reference still need a unique key for
		// the dedup constraint; the entry id itself serves.
		idempotencyKey = DeriveIdempotencyKey(input.UserID, RefAdjustment, entryID, input.Type)
	}
	return Entry{
		EntryID:        entryID,
		UserID:         input.UserID,
		Type:           input.Type,
		Status:         status,
		AmountCents:    input.AmountCents,
		Month:          input.Month,
		Year:           input.Year,
		RefID:          input.RefID,
		RefType:        input.RefType,
		Description:    input.Description,
		FormulaVersion: input.FormulaVersion,
		MetadataJSON:   input.MetadataJSON,
		IdempotencyKey: idempotencyKey,
		CreatedUnixUTC: service.nowFn(),
	}
}

func (service *Service) logOperation(ctx context.Context, entry OperationLog) {
	if service.logger == nil {
		return
	}
	if entry.Status == "" {
		if entry.Error != nil {
			entry.Status = operationStatusError
		} else {
			entry.Status = operationStatusOK
		}
	}
	service.logger.LogOperation(ctx, entry)
}

func floorAtZero(signed int64) AmountCents {
	if signed < 0 {
		return 0
	}
	return AmountCents(signed)
}
