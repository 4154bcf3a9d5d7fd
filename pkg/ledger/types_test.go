package ledger

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestAmountCentsDecimalRoundTrip(test *testing.T) {
	test.Parallel()
	amount, err := AmountCentsFromDecimal(decimal.RequireFromString("3250.00"))
	if err != nil {
		test.Fatalf("convert: %v", err)
	}
	if amount != 325000 {
		test.Fatalf("expected 325000 cents, got %d", amount)
	}
	if amount.Decimal().String() != "3250" {
		test.Fatalf("expected 3250, got %s", amount.Decimal())
	}
}

func TestAmountCentsFromDecimalRejectsSubCentPrecision(test *testing.T) {
	test.Parallel()
	_, err := AmountCentsFromDecimal(decimal.RequireFromString("10.005"))
	if !errors.Is(err, ErrInvalidAmountCents) {
		test.Fatalf("expected ErrInvalidAmountCents, got %v", err)
	}
}

func TestParseEntryType(test *testing.T) {
	test.Parallel()
	for _, raw := range []string{"EARNED", "APPLIED", "EXPIRED"} {
		if _, err := ParseEntryType(raw); err != nil {
			test.Fatalf("parse %s: %v", raw, err)
		}
	}
	if _, err := ParseEntryType("earned"); !errors.Is(err, ErrInvalidEntryType) {
		test.Fatalf("expected rejection of lowercase value")
	}
}

func TestParseEntryStatus(test *testing.T) {
	test.Parallel()
	for _, raw := range []string{"PENDING", "CONFIRMED", "CANCELLED"} {
		if _, err := ParseEntryStatus(raw); err != nil {
			test.Fatalf("parse %s: %v", raw, err)
		}
	}
	if _, err := ParseEntryStatus("DONE"); !errors.Is(err, ErrInvalidEntryStatus) {
		test.Fatalf("expected rejection of unknown status")
	}
}

func TestDeriveIdempotencyKey(test *testing.T) {
	test.Parallel()
	key := DeriveIdempotencyKey("user-1", RefBill, "bill-9", EntryApplied)
	if key != "user-1:BILL:bill-9:APPLIED" {
		test.Fatalf("unexpected key %q", key)
	}
	if DeriveIdempotencyKey("user-1", "", "bill-9", EntryApplied) != "" {
		test.Fatalf("expected empty key without ref type")
	}
	if DeriveIdempotencyKey("user-1", RefBill, "", EntryApplied) != "" {
		test.Fatalf("expected empty key without ref id")
	}
}
