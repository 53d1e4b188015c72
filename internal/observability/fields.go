// File: internal/observability/fields.go
package observability

import (
	"time"

	"go.uber.org/zap"
)

// Structured field keys shared by every component that reports on a
// browser operation.
const (
	KeyOp      = "op"
	KeyTarget  = "target"
	KeyFrame   = "frame"
	KeySession = "session"
	KeyAttempt = "attempt"
	KeyElapsed = "elapsed"
)

// OpFields builds the structured context for one operation: what is being
// done, to what, and in which frame.
func OpFields(op, target, frame string) []zap.Field {
	fields := []zap.Field{zap.String(KeyOp, op)}
	if target != "" {
		fields = append(fields, zap.String(KeyTarget, target))
	}
	if frame != "" {
		fields = append(fields, zap.String(KeyFrame, frame))
	}
	return fields
}

// OpLogger returns logger enriched with OpFields.
func OpLogger(logger *zap.Logger, op, target, frame string) *zap.Logger {
	return logger.With(OpFields(op, target, frame)...)
}

// Attempt tags a log line with a poll attempt number and elapsed time.
func Attempt(n int, elapsed time.Duration) []zap.Field {
	return []zap.Field{zap.Int(KeyAttempt, n), zap.Duration(KeyElapsed, elapsed)}
}
