package logging

import (
	"context"
	"log/slog"

	"redact/internal/services"
)

// WithContext derives a logger enriched with identifiers carried on the
// context (talk, document, stage, correlation id).
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	if ctx == nil {
		return logger
	}
	attrs := make([]any, 0, 4)
	if talkID, ok := services.TalkIDFromContext(ctx); ok {
		attrs = append(attrs, String(FieldTalkID, talkID))
	}
	if docID, ok := services.DocumentIDFromContext(ctx); ok {
		attrs = append(attrs, Int64(FieldDocumentID, docID))
	}
	if stage, ok := services.StageFromContext(ctx); ok {
		attrs = append(attrs, String(FieldStage, stage))
	}
	if requestID, ok := services.RequestIDFromContext(ctx); ok {
		attrs = append(attrs, String(FieldRequestID, requestID))
	}
	if len(attrs) == 0 {
		return logger
	}
	return logger.With(attrs...)
}
