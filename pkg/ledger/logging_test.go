package ledger

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type recorderLogger struct {
	entries []OperationLog
}

func (logger *recorderLogger) LogOperation(_ context.Context, entry OperationLog) {
	logger.entries = append(logger.entries, entry)
}

func TestServiceLogsOffsetOperation(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	logger := &recorderLogger{}
	service := mustNewService(test, store, WithOperationLogger(logger))
	confirmEarned(test, service, "user-1", 10000, "reading-1")

	entryID, err := service.ApplyCreditsToBill(context.Background(), "user-1", "bill-1", 2500)
	if err != nil {
		test.Fatalf("apply: %v", err)
	}

	last := logger.entries[len(logger.entries)-1]
	if last.Operation != operationApplyToBill || last.UserID != "user-1" || last.EntryID != entryID {
		test.Fatalf("unexpected log entry: %+v", last)
	}
	if last.Amount != 2500 || last.RefID != "bill-1" || last.RefType != RefBill {
		test.Fatalf("unexpected log payload: %+v", last)
	}
	if last.Status != operationStatusOK || last.Error != nil {
		test.Fatalf("expected ok status, got %+v", last)
	}
}

func TestServiceLogsErrorStatus(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	store.balanceError = errors.New("balance query failed")
	logger := &recorderLogger{}
	service := mustNewService(test, store, WithOperationLogger(logger))

	_, err := service.ApplyCreditsToBill(context.Background(), "user-1", "bill-1", 100)
	if err == nil {
		test.Fatalf("expected error")
	}
	last := logger.entries[len(logger.entries)-1]
	if last.Status != operationStatusError || last.Error == nil {
		test.Fatalf("expected error log entry, got %+v", last)
	}
}

func TestZapOperationLoggerEmitsStructuredFields(test *testing.T) {
	test.Parallel()
	core, observed := observer.New(zapcore.InfoLevel)
	adapter := NewZapOperationLogger(zap.New(core))

	adapter.LogOperation(context.Background(), OperationLog{
		Operation: operationApplyToBill,
		UserID:    "user-1",
		EntryID:   "entry-1",
		Amount:    2500,
		RefID:     "bill-1",
		RefType:   RefBill,
		Status:    operationStatusOK,
	})
	adapter.LogOperation(context.Background(), OperationLog{
		Operation: operationApplyToBill,
		UserID:    "user-1",
		Status:    operationStatusError,
		Error:     errors.New("boom"),
	})

	if observed.Len() != 2 {
		test.Fatalf("expected 2 log records, got %d", observed.Len())
	}
	records := observed.All()
	if records[0].Level != zapcore.InfoLevel || records[1].Level != zapcore.ErrorLevel {
		test.Fatalf("unexpected levels: %v / %v", records[0].Level, records[1].Level)
	}
	fields := records[0].ContextMap()
	if fields["operation"] != operationApplyToBill || fields["entry_id"] != "entry-1" {
		test.Fatalf("unexpected fields: %v", fields)
	}
	if fields["amount_cents"] != int64(2500) {
		test.Fatalf("unexpected amount field: %v", fields["amount_cents"])
	}
}
