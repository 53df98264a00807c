// Package logger provides structured logging with configurable log levels.
// It wraps the standard log/slog package by default and can switch to zap.
// Both backends are exposed through the small Logger interface that the
// event bus and circuit breakers depend on.
package logger
