package logging

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var base = zap.NewNop().Sugar()

// Init builds the process logger. Production uses JSON output, everything else the
// development console encoder.
func Init(env, level string) error {
	var cfg zap.Config
	if env == "production" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
	}

	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(strings.ToLower(level))); err == nil {
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}

	logger, err := cfg.Build()
	if err != nil {
		return err
	}
	base = logger.Sugar()
	return nil
}

// Sync flushes buffered entries.
func Sync() {
	_ = base.Sync()
}

// L returns the process logger.
func L() *zap.SugaredLogger {
	return base
}

type requestIDKey struct{}

// WithRequestID stores the request id on ctx.
func WithRequestID(ctx context.Context, rid string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, rid)
}

// RequestID returns the request id stored on ctx, or "unknown".
func RequestID(ctx context.Context) string {
	if ctx != nil {
		if rid, ok := ctx.Value(requestIDKey{}).(string); ok && rid != "" {
			return rid
		}
	}
	return "unknown"
}

// Logger provides structured logging bound to one request.
type Logger struct {
	s *zap.SugaredLogger
}

// NewLogger creates a logger carrying the request id found on ctx.
func NewLogger(ctx context.Context) *Logger {
	return &Logger{s: base.With("request_id", RequestID(ctx))}
}

// With returns a logger with extra key/value pairs.
func (l *Logger) With(kv ...any) *Logger {
	return &Logger{s: l.s.With(kv...)}
}

func (l *Logger) LogError(operation string, err error) {
	l.s.Errorw("operation failed", "operation", operation, "error", err)
}

func (l *Logger) LogErrorf(operation string, format string, args ...any) {
	l.s.With("operation", operation).Errorf(format, args...)
}

func (l *Logger) LogInfof(operation string, format string, args ...any) {
	l.s.With("operation", operation).Infof(format, args...)
}

func (l *Logger) LogWarnf(operation string, format string, args ...any) {
	l.s.With("operation", operation).Warnf(format, args...)
}
