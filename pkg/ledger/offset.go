package ledger

import (
	"context"
	"fmt"
	"strings"
)

// ApplyCreditsToBill debits exactly amount from the user's available credits
// to offset a bill, or fails and debits nothing. The balance check and the
// applied-entry insert run inside one store transaction, so two concurrent
// offsets can never both pass the check against a stale balance. The entry is
// written confirmed: the check already happened, there is no pending step.
func (service *Service) ApplyCreditsToBill(ctx context.Context, userID string, billID string, amount AmountCents) (string, error) {
	var entryID string
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		if strings.TrimSpace(userID) == "" {
			return fmt.Errorf("%w: user id is required", ErrInvalidUserID)
		}
		if strings.TrimSpace(billID) == "" {
			return fmt.Errorf("%w: bill id is required", ErrInvalidBillID)
		}
		if amount <= 0 {
			return fmt.Errorf("%w: must be greater than zero", ErrInvalidAmountCents)
		}
		key := DeriveIdempotencyKey(userID, RefBill, billID, EntryApplied)
		existing, found, err := transactionStore.FindEntryByKey(ctx, key)
		if err != nil {
			return err
		}
		if found {
			// A retried offset for the same bill resolves to the original
			// debit instead of double-spending.
			entryID = existing.EntryID
			return nil
		}
		signed, err := transactionStore.SignedBalanceCents(ctx, userID)
		if err != nil {
			return err
		}
		available := floorAtZero(signed)
		if amount > available {
			return InsufficientCreditsError{AvailableCents: available, RequestedCents: amount}
		}
		entry := service.newEntry(EntryInput{
			UserID:      userID,
			Type:        EntryApplied,
			AmountCents: amount,
			RefID:       billID,
			RefType:     RefBill,
			Description: "credits applied to bill " + billID,
		}, StatusConfirmed, key)
		if err := transactionStore.InsertEntry(ctx, entry); err != nil {
			return err
		}
		entryID = entry.EntryID
		return nil
	})
	service.logOperation(ctx, OperationLog{
		Operation: operationApplyToBill,
		UserID:    userID,
		EntryID:   entryID,
		Amount:    amount,
		RefID:     billID,
		RefType:   RefBill,
		Error:     operationError,
	})
	return entryID, operationError
}

// ExpireCredits writes off up to amount of the user's available credits. The
// write-off is capped at the available balance so the ledger never goes
// negative; refID identifies the expiry run for retry dedup. Returns the
// entry id and the amount actually expired; both are zero when there was
// nothing to expire.
func (service *Service) ExpireCredits(ctx context.Context, userID string, amount AmountCents, refID string, description string) (string, AmountCents, error) {
	var (
		entryID string
		expired AmountCents
	)
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		if strings.TrimSpace(userID) == "" {
			return fmt.Errorf("%w: user id is required", ErrInvalidUserID)
		}
		if strings.TrimSpace(refID) == "" {
			return fmt.Errorf("%w: expiry ref id is required", ErrInvalidRefID)
		}
		if amount <= 0 {
			return fmt.Errorf("%w: must be greater than zero", ErrInvalidAmountCents)
		}
		key := DeriveIdempotencyKey(userID, RefExpiry, refID, EntryExpired)
		existing, found, err := transactionStore.FindEntryByKey(ctx, key)
		if err != nil {
			return err
		}
		if found {
			entryID = existing.EntryID
			expired = existing.AmountCents
			return nil
		}
		signed, err := transactionStore.SignedBalanceCents(ctx, userID)
		if err != nil {
			return err
		}
		available := floorAtZero(signed)
		if available == 0 {
			return nil
		}
		expired = amount
		if expired > available {
			expired = available
		}
		entry := service.newEntry(EntryInput{
			UserID:      userID,
			Type:        EntryExpired,
			AmountCents: expired,
			RefID:       refID,
			RefType:     RefExpiry,
			Description: description,
		}, StatusConfirmed, key)
		if err := transactionStore.InsertEntry(ctx, entry); err != nil {
			return err
		}
		entryID = entry.EntryID
		return nil
	})
	service.logOperation(ctx, OperationLog{
		Operation: operationExpire,
		UserID:    userID,
		EntryID:   entryID,
		Amount:    expired,
		RefID:     refID,
		RefType:   RefExpiry,
		Error:     operationError,
	})
	return entryID, expired, operationError
}
