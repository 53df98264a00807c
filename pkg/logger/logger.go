package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the logging collaborator injected wherever errors and metrics are
// surfaced. meta is a flat list of key/value pairs. *slog.Logger satisfies it.
type Logger interface {
	Debug(msg string, meta ...any)
	Info(msg string, meta ...any)
	Warn(msg string, meta ...any)
	Error(msg string, meta ...any)
}

const (
	BackendSlog = "slog"
	BackendZap  = "zap"
)

// New returns the default slog logger: text output in dev, JSON in prod.
func New(lvl string, addSource bool, enviroment string) *slog.Logger {

	level := parseLevel(lvl)

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: addSource,
	}
	var handler slog.Handler

	if strings.ToLower(enviroment) == "prod" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler).With(
		slog.String("environment", enviroment),
	)
}

// NewZap builds a zap-backed Logger with the same level and environment
// conventions as New.
func NewZap(lvl string, enviroment string) (Logger, error) {
	var cfg zap.Config
	if strings.ToLower(enviroment) == "prod" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(parseZapLevel(lvl))
	cfg.InitialFields = map[string]any{"environment": enviroment}

	z, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return FromZap(z), nil
}

// Build selects the backend named in configuration.
func Build(backend, lvl string, addSource bool, enviroment string) (Logger, error) {
	if strings.ToLower(backend) == BackendZap {
		return NewZap(lvl, enviroment)
	}
	return New(lvl, addSource, enviroment), nil
}

// FromZap adapts a *zap.Logger to Logger using its sugared key/value API.
func FromZap(z *zap.Logger) Logger {
	return &zapLogger{sugar: z.Sugar()}
}

// Nop discards everything. Used by tests and as a nil fallback.
func Nop() Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type zapLogger struct {
	sugar *zap.SugaredLogger
}

func (l *zapLogger) Debug(msg string, meta ...any) { l.sugar.Debugw(msg, meta...) }
func (l *zapLogger) Info(msg string, meta ...any)  { l.sugar.Infow(msg, meta...) }
func (l *zapLogger) Warn(msg string, meta ...any)  { l.sugar.Warnw(msg, meta...) }
func (l *zapLogger) Error(msg string, meta ...any) { l.sugar.Errorw(msg, meta...) }

func parseLevel(level string) slog.Level {

	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func parseZapLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Sync flushes buffered zap output.
func (l *zapLogger) Sync() error { return l.sugar.Sync() }
