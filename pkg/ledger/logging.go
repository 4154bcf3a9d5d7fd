package ledger

import (
	"context"

	"go.uber.org/zap"
)

// ServiceOption configures a Service instance.
type ServiceOption func(*Service)

// OperationLogger records domain-level events emitted by Service operations.
type OperationLogger interface {
	LogOperation(ctx context.Context, entry OperationLog)
}

// OperationLog describes a state-changing ledger operation.
type OperationLog struct {
	Operation string
	UserID    string
	EntryID   string
	Amount    AmountCents
	RefID     string
	RefType   RefType
	Status    string
	Error     error
}

// WithOperationLogger wires a logger that receives callbacks for every operation.
func WithOperationLogger(logger OperationLogger) ServiceOption {
	return func(service *Service) {
		service.logger = logger
	}
}

// WithIDGenerator overrides entry id generation (tests pin deterministic ids).
func WithIDGenerator(generate func() string) ServiceOption {
	return func(service *Service) {
		service.idFn = generate
	}
}

type zapOperationLogger struct {
	logger *zap.Logger
}

// NewZapOperationLogger bridges operation callbacks onto a zap logger.
func NewZapOperationLogger(logger *zap.Logger) OperationLogger {
	return zapOperationLogger{logger: logger}
}

// LogOperation emits one structured record per ledger operation.
func (adapter zapOperationLogger) LogOperation(_ context.Context, entry OperationLog) {
	fields := []zap.Field{
		zap.String("operation", entry.Operation),
		zap.String("user_id", entry.UserID),
		zap.String("status", entry.Status),
		zap.Int64("amount_cents", entry.Amount.Int64()),
	}
	if entry.EntryID != "" {
		fields = append(fields, zap.String("entry_id", entry.EntryID))
	}
	if entry.RefID != "" {
		fields = append(fields, zap.String("ref_id", entry.RefID), zap.String("ref_type", entry.RefType.String()))
	}
	if entry.Error != nil {
		fields = append(fields, zap.Error(entry.Error))
		adapter.logger.Error("ledger operation failed", fields...)
		return
	}
	adapter.logger.Info("ledger operation", fields...)
}
