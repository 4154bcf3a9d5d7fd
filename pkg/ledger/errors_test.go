package ledger

import (
	"errors"
	"strings"
	"testing"
)

func TestWrapErrorFormatsSegments(test *testing.T) {
	test.Parallel()
	base := errors.New("boom")
	wrapped := WrapError("store", "entry", "insert", base)

	var operationError OperationError
	if !errors.As(wrapped, &operationError) {
		test.Fatalf("expected OperationError, got %T", wrapped)
	}
	if operationError.Operation() != "store" || operationError.Subject() != "entry" || operationError.Code() != "insert" {
		test.Fatalf("unexpected segments: %+v", operationError)
	}
	if got := wrapped.Error(); got != "store.entry.insert: boom" {
		test.Fatalf("unexpected message: %s", got)
	}
	if !errors.Is(wrapped, base) {
		test.Fatalf("expected unwrap to reach base error")
	}
}

func TestWrapErrorPassesNil(test *testing.T) {
	test.Parallel()
	if WrapError("store", "entry", "insert", nil) != nil {
		test.Fatalf("expected nil for nil error")
	}
}

func TestInsufficientCreditsErrorReportsBothAmounts(test *testing.T) {
	test.Parallel()
	shortfall := InsufficientCreditsError{AvailableCents: 250, RequestedCents: 1000}
	message := shortfall.Error()
	if !strings.Contains(message, "10") || !strings.Contains(message, "2.5") {
		test.Fatalf("expected message to carry requested and available amounts, got %q", message)
	}
	if !errors.Is(shortfall, ErrInsufficientCredits) {
		test.Fatalf("expected sentinel match")
	}
}
