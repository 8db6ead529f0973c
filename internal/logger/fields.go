package logger

import (
	"strings"

	"go.uber.org/zap"
)

// Structured field keys shared across the worker.
const (
	FieldProvider  = "ai_provider"
	FieldModel     = "ai_model"
	FieldMessageID = "message_id"
	FieldEvent     = "event"
	FieldSessionID = "session_id"
)

type StringField struct {
	Key   string
	Value string
}

// StringFields converts key/value pairs into zap fields. Keys and values are
// trimmed and pairs with an empty side are dropped.
func StringFields(fields ...StringField) []zap.Field {
	result := make([]zap.Field, 0, len(fields))
	for _, f := range fields {
		key, value := strings.TrimSpace(f.Key), strings.TrimSpace(f.Value)
		if key == "" || value == "" {
			continue
		}
		result = append(result, zap.String(key, value))
	}
	return result
}

// WithFields attaches fields to logger. A nil logger becomes a no-op logger.
func WithFields(logger *zap.Logger, fields ...zap.Field) *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(fields) == 0 {
		return logger
	}
	return logger.With(fields...)
}

// WithCompletion tags logger with the completion provider and model.
func WithCompletion(logger *zap.Logger, provider, model string) *zap.Logger {
	return WithFields(logger, StringFields(
		StringField{Key: FieldProvider, Value: provider},
		StringField{Key: FieldModel, Value: model},
	)...)
}

// MessageFields identifies one broker message.
func MessageFields(messageID, event string) []zap.Field {
	return StringFields(
		StringField{Key: FieldMessageID, Value: messageID},
		StringField{Key: FieldEvent, Value: event},
	)
}

func WithSession(logger *zap.Logger, sessionID int64) *zap.Logger {
	return WithFields(logger, zap.Int64(FieldSessionID, sessionID))
}
