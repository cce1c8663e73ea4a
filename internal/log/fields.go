package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldSessionID = "session_id"
	FieldRequestID = "request_id"
	FieldViewer    = "viewer"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"

	// Protocol fields
	FieldRequestType  = "request_type"
	FieldResponseType = "response_type"
	FieldStatus       = "status"
	FieldEffectCode   = "effect_code"
	FieldDuration     = "duration"

	// State fields
	FieldOldState = "old_state"
	FieldNewState = "new_state"

	// Network fields
	FieldRemoteAddr = "remote_addr"
	FieldTransport  = "transport"
)
