package logger

// Fields is an alias for map[string]interface{} for convenience.
type Fields map[string]interface{}

// Standard tracing fields, propagated through the call chain via context.
const (
	// FieldRequestID is the HTTP request ID (UUID)
	FieldRequestID = "request_id"

	// FieldTaskID is the queue task ID
	FieldTaskID = "task_id"

	// FieldRunID is the ingestion run ID
	FieldRunID = "run_id"

	// FieldASIN is the item identifier
	FieldASIN = "asin"

	// FieldComponent is the component/module name
	FieldComponent = "component"
)

// Standard metric fields, attached at the log call site.
const (
	// FieldDurationMs is the execution duration in milliseconds
	FieldDurationMs = "duration_ms"

	// FieldCount is a generic count field
	FieldCount = "count"

	// FieldStatus is the operation status
	FieldStatus = "status"
)
