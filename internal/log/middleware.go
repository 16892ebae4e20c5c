package log

import (
	"context"
	"log/slog"
	"net/http"
)

// ContextKey type for context keys
type ContextKey string

const (
	// LoggerContextKey is the context key for the logger
	LoggerContextKey ContextKey = "logger"
)

// NewContext returns a copy of ctx carrying logger.
func NewContext(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, LoggerContextKey, logger)
}

// FromContext extracts a logger from the request context
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(LoggerContextKey).(*Logger); ok {
		return logger
	}
	return &Logger{
		Logger:    slog.Default(),
		component: "unknown",
	}
}

// StructuredLogger emits the domain events the services report.
type StructuredLogger struct {
	logger *Logger
}

func NewStructuredLogger(logger *Logger) *StructuredLogger {
	return &StructuredLogger{logger: logger}
}

// LogHTTPEnd logs the completion of an HTTP request
func (sl *StructuredLogger) LogHTTPEnd(ctx context.Context, r *http.Request, statusCode int, durationMs int64, requestID string) {
	level := slog.LevelInfo
	if statusCode >= 400 && statusCode < 500 {
		level = slog.LevelWarn
	} else if statusCode >= 500 {
		level = slog.LevelError
	}

	fields := NewFields().
		WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery).
		WithHTTPResponse(statusCode, durationMs, statusCode < 400).
		WithRequestID(requestID).
		WithComponent(ComponentHTTP)

	sl.logger.Logger.Log(ctx, level, "HTTP request completed", fields.ToSlice()...)
}

// LogTransactionInserted logs a confirmed ledger entry
func (sl *StructuredLogger) LogTransactionInserted(ctx context.Context, id, kind, category, amount, date string, entries int) {
	fields := NewFields().
		WithTransaction(id, kind, category, amount, date).
		WithOperation(OpInsert).
		WithComponent(ComponentLedger).
		ToSlice()
	fields = append(fields, FieldEntries, entries)

	sl.logger.Logger.InfoContext(ctx, "Transaction recorded", fields...)
}

// LogScanCompleted logs the outcome of one ingestion cycle
func (sl *StructuredLogger) LogScanCompleted(ctx context.Context, fetched, presented, skipped int, checkpoint string) {
	fields := NewFields().
		WithScan(fetched, presented, skipped).
		WithOperation(OpScan).
		WithComponent(ComponentIngest).
		ToSlice()
	fields = append(fields, FieldCheckpoint, checkpoint)

	sl.logger.Logger.InfoContext(ctx, "Ingestion scan completed", fields...)
}

// LogError logs an error with structured context
func (sl *StructuredLogger) LogError(ctx context.Context, msg string, err error, component, operation, errorType string) {
	fields := NewFields().
		WithError(err).
		WithErrorType(errorType).
		WithOperation(operation).
		WithComponent(component)

	sl.logger.Logger.ErrorContext(ctx, msg, fields.ToSlice()...)
}
