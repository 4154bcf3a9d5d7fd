package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// AmountCents is an integer currency amount in cents (two implied decimals).
type AmountCents int64

// Int64 returns the raw cent value.
func (amount AmountCents) Int64() int64 {
	return int64(amount)
}

// Decimal returns the amount in currency units (cents shifted two places).
func (amount AmountCents) Decimal() decimal.Decimal {
	return decimal.New(int64(amount), -2)
}

// AmountCentsFromDecimal converts a currency amount with at most two decimal
// places into cents. Amounts carrying sub-cent precision are rejected rather
// than silently rounded; rounding is the calculation engine's job.
func AmountCentsFromDecimal(value decimal.Decimal) (AmountCents, error) {
	shifted := value.Shift(2)
	if !shifted.IsInteger() {
		return 0, fmt.Errorf("%w: %s carries sub-cent precision", ErrInvalidAmountCents, value)
	}
	return AmountCents(shifted.IntPart()), nil
}

// EntryType enumerates credit ledger entry kinds.
type EntryType string

const (
	EntryEarned  EntryType = "EARNED"
	EntryApplied EntryType = "APPLIED"
	EntryExpired EntryType = "EXPIRED"
)

// String returns the wire value of the entry type.
func (entryType EntryType) String() string {
	return string(entryType)
}

// ParseEntryType validates a raw entry type value.
func ParseEntryType(raw string) (EntryType, error) {
	switch EntryType(raw) {
	case EntryEarned, EntryApplied, EntryExpired:
		return EntryType(raw), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidEntryType, raw)
}

// EntryStatus enumerates the entry lifecycle. Pending is the only initial
// state; confirmed and cancelled are terminal.
type EntryStatus string

const (
	StatusPending   EntryStatus = "PENDING"
	StatusConfirmed EntryStatus = "CONFIRMED"
	StatusCancelled EntryStatus = "CANCELLED"
)

// String returns the wire value of the entry status.
func (status EntryStatus) String() string {
	return string(status)
}

// ParseEntryStatus validates a raw entry status value.
func ParseEntryStatus(raw string) (EntryStatus, error) {
	switch EntryStatus(raw) {
	case StatusPending, StatusConfirmed, StatusCancelled:
		return EntryStatus(raw), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidEntryStatus, raw)
}

// RefType names the external record an entry traces back to.
type RefType string

const (
	RefGeneration RefType = "GENERATION"
	RefBill       RefType = "BILL"
	RefExpiry     RefType = "EXPIRY"
	RefAdjustment RefType = "ADJUSTMENT"
)

// String returns the wire value of the reference type.
func (refType RefType) String() string {
	return string(refType)
}

// Entry is a single immutable line in the credit ledger. Corrections append
// offsetting entries; no code path mutates an existing row.
type Entry struct {
	EntryID        string
	UserID         string
	Type           EntryType
	Status         EntryStatus
	AmountCents    AmountCents
	Month          int
	Year           int
	RefID          string
	RefType        RefType
	Description    string
	FormulaVersion string
	MetadataJSON   string
	IdempotencyKey string
	CreatedUnixUTC int64
}

// EntryInput carries the caller-supplied fields of a new ledger entry.
type EntryInput struct {
	UserID         string
	Type           EntryType
	AmountCents    AmountCents
	Month          int
	Year           int
	RefID          string
	RefType        RefType
	Description    string
	FormulaVersion string
	MetadataJSON   string
}

func (input *EntryInput) validate() error {
	if strings.TrimSpace(input.UserID) == "" {
		return fmt.Errorf("%w: user id is required", ErrInvalidUserID)
	}
	if _, err := ParseEntryType(input.Type.String()); err != nil {
		return err
	}
	if input.AmountCents <= 0 {
		return fmt.Errorf("%w: must be greater than zero", ErrInvalidAmountCents)
	}
	if input.Month != 0 || input.Year != 0 {
		if input.Month < 1 || input.Month > 12 {
			return fmt.Errorf("%w: month must be between 1 and 12", ErrInvalidEntryInput)
		}
		if input.Year < 1 {
			return fmt.Errorf("%w: year must be greater than zero", ErrInvalidEntryInput)
		}
	}
	if (input.RefID == "") != (input.RefType == "") {
		return fmt.Errorf("%w: ref id and ref type must be set together", ErrInvalidEntryInput)
	}
	if strings.TrimSpace(input.MetadataJSON) != "" && !json.Valid([]byte(input.MetadataJSON)) {
		return fmt.Errorf("%w: must be valid json", ErrInvalidMetadataJSON)
	}
	return nil
}

// DeriveIdempotencyKey builds the natural dedup key for an entry: one logical
// credit event per (user, reference, entry type).
func DeriveIdempotencyKey(userID string, refType RefType, refID string, entryType EntryType) string {
	if refID == "" || refType == "" {
		return ""
	}
	return strings.Join(
		[]string{userID, refType.String(), refID, entryType.String()},
		idempotencyKeyDelimiter,
	)
}

// Filter narrows a ledger listing. Zero values leave a dimension open.
type Filter struct {
	Type  EntryType
	Month int
	Year  int
	Limit int
}

// Store is the persistence contract used by Service. Implementations must
// run fn against a transactional view in WithTx so a balance read and the
// debit insert that depends on it are never split across writes.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error
	InsertEntry(ctx context.Context, entry Entry) error
	GetEntry(ctx context.Context, entryID string) (Entry, error)
	FindEntryByKey(ctx context.Context, idempotencyKey string) (Entry, bool, error)
	UpdateEntryStatus(ctx context.Context, entryID string, from, to EntryStatus) (bool, error)
	SignedBalanceCents(ctx context.Context, userID string) (int64, error)
	SumConfirmedCents(ctx context.Context, userID string, entryType EntryType) (int64, error)
	ListEntries(ctx context.Context, userID string, filter Filter) ([]Entry, error)
}
