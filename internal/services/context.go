package services

import "context"

type contextKey string

const (
	talkIDKey     contextKey = "talk_id"
	documentIDKey contextKey = "document_id"
	stageKey      contextKey = "stage"
	requestIDKey  contextKey = "request_id"
)

// WithTalkID annotates context with the talk identifier.
func WithTalkID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, talkIDKey, id)
}

// TalkIDFromContext extracts the talk identifier if present.
func TalkIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(talkIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithDocumentID annotates context with the document identifier.
func WithDocumentID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, documentIDKey, id)
}

// DocumentIDFromContext extracts the document identifier if present.
func DocumentIDFromContext(ctx context.Context) (int64, bool) {
	v := ctx.Value(documentIDKey)
	if v == nil {
		return 0, false
	}
	switch val := v.(type) {
	case int64:
		return val, true
	case int:
		return int64(val), true
	default:
		return 0, false
	}
}

// WithStage annotates context with the processing stage name.
func WithStage(ctx context.Context, stage string) context.Context {
	if stage == "" {
		return ctx
	}
	return context.WithValue(ctx, stageKey, stage)
}

// StageFromContext returns the stage name if present.
func StageFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(stageKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
