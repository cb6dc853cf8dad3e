package logging

// Standardized attribute keys used across components so log lines stay
// grep-able and machine-parseable.
const (
	FieldComponent  = "component"
	FieldTalkID     = "talk_id"
	FieldDocumentID = "document_id"
	FieldEntityID   = "entity_id"
	FieldStage      = "stage"
	FieldEventType  = "event_type"
	FieldErrorHint  = "error_hint"
	FieldRequestID  = "request_id"
)
