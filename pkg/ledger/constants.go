package ledger

const (
	operationCreateEntry  = "create_entry"
	operationConfirmEntry = "confirm_entry"
	operationCancelEntry  = "cancel_entry"
	operationApplyToBill  = "apply_to_bill"
	operationExpire       = "expire"

	operationStatusOK    = "ok"
	operationStatusError = "error"

	idempotencyKeyDelimiter = ":"
	defaultMetadataJSON     = "{}"

	// DefaultListLimit caps a ledger listing when the caller supplies none.
	DefaultListLimit = 100
)
