package log

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldError      = "error"
	FieldExpenseID  = "expense_id"
	FieldStatus     = "status"
	FieldAmountKobo = "amount_kobo"
	FieldUpdater    = "updater"
)

// Standard component names
const (
	ComponentApp     = "app"
	ComponentBackend = "backend"
)
