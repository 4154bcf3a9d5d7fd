package ledger

import (
	"errors"
	"fmt"
)

// Domain-level error values returned by the ledger service.
var (
	ErrInsufficientCredits  = errors.New("insufficient credits")
	ErrEntryNotFound        = errors.New("ledger entry not found")
	ErrEntryCancelled       = errors.New("ledger entry cancelled")
	ErrEntryConfirmed       = errors.New("ledger entry already confirmed")
	ErrEntryConflict        = errors.New("ledger entry changed concurrently")
	ErrDuplicateEntry       = errors.New("duplicate ledger entry")
	ErrInvalidUserID        = errors.New("invalid user id")
	ErrInvalidBillID        = errors.New("invalid bill id")
	ErrInvalidRefID         = errors.New("invalid ref id")
	ErrInvalidEntryType     = errors.New("invalid entry type")
	ErrInvalidEntryStatus   = errors.New("invalid entry status")
	ErrInvalidEntryInput    = errors.New("invalid entry input")
	ErrInvalidAmountCents   = errors.New("invalid amount cents")
	ErrInvalidMetadataJSON  = errors.New("invalid metadata json")
	ErrInvalidServiceConfig = errors.New("invalid service config")
)

// InsufficientCreditsError reports the precise shortfall of a rejected
// debit so callers can surface available versus requested amounts.
type InsufficientCreditsError struct {
	AvailableCents AmountCents
	RequestedCents AmountCents
}

// Error returns the formatted shortfall message.
func (shortfall InsufficientCreditsError) Error() string {
	return fmt.Sprintf(
		"insufficient credits: requested %s, available %s",
		shortfall.RequestedCents.Decimal(), shortfall.AvailableCents.Decimal(),
	)
}

// Unwrap lets errors.Is match the ErrInsufficientCredits sentinel.
func (shortfall InsufficientCreditsError) Unwrap() error {
	return ErrInsufficientCredits
}

// OperationError wraps a failure with a stable operation code.
type OperationError struct {
	operation string
	subject   string
	code      string
	err       error
}

// Error returns the formatted error message.
func (operationError OperationError) Error() string {
	return fmt.Sprintf("%s.%s.%s: %v", operationError.operation, operationError.subject, operationError.code, operationError.err)
}

// Unwrap returns the underlying error.
func (operationError OperationError) Unwrap() error {
	return operationError.err
}

// Operation returns the operation segment.
func (operationError OperationError) Operation() string {
	return operationError.operation
}

// Subject returns the subject segment.
func (operationError OperationError) Subject() string {
	return operationError.subject
}

// Code returns the stable error code segment.
func (operationError OperationError) Code() string {
	return operationError.code
}

// WrapError wraps an error with operation, subject, and code metadata.
func WrapError(operation string, subject string, code string, err error) error {
	if err == nil {
		return nil
	}
	return OperationError{
		operation: operation,
		subject:   subject,
		code:      code,
		err:       err,
	}
}
