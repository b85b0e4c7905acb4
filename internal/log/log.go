// Package log is a thin, context-aware wrapper around zap. Call sites pass
// a context.Context as the first argument so hooks can enrich every line
// with request-scoped fields (trace id, operation name) without plumbing
// them through every function signature.
package log

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/looplj/tzcore/internal/tracing"
)

// Field is a structured logging field. It mirrors zap.Field but keeps the
// package's public surface independent of zap so callers never import it
// directly.
type Field = zap.Field

func String(key, val string) Field        { return zap.String(key, val) }
func Strings(key string, val []string) Field { return zap.Strings(key, val) }
func Int(key string, val int) Field       { return zap.Int(key, val) }
func Int64(key string, val int64) Field   { return zap.Int64(key, val) }
func Float64(key string, val float64) Field { return zap.Float64(key, val) }
func Bool(key string, val bool) Field     { return zap.Bool(key, val) }
func Duration(key string, val time.Duration) Field { return zap.Duration(key, val) }
func Time(key string, val time.Time) Field { return zap.Time(key, val) }
func Any(key string, val any) Field       { return zap.Any(key, val) }

// Cause attaches an error under the conventional "error" key.
func Cause(err error) Field { return zap.Error(err) }

// Source attaches the originating component/file for cross-cutting audit logs.
func Source(val string) Field { return zap.String("source", val) }

// Hook derives extra fields from a request context. Hooks run on every log
// call so they should be cheap (map/context lookups, no I/O).
type Hook interface {
	Apply(ctx context.Context, msg string) []Field
}

// HookFunc adapts a function to the Hook interface.
type HookFunc func(ctx context.Context, msg string) []Field

func (f HookFunc) Apply(ctx context.Context, msg string) []Field { return f(ctx, msg) }

var (
	mu       sync.RWMutex
	base     *zap.Logger
	hooks    = []Hook{HookFunc(traceFields)}
)

func init() {
	l, err := zap.NewProduction()
	if err != nil {
		l = zap.NewNop()
	}

	base = l
}

// Config controls the process-wide default logger.
type Config struct {
	// Level is one of debug, info, warn, error.
	Level string
	// Development enables human-readable console output instead of JSON.
	Development bool
}

// SetGlobalConfig rebuilds the default logger from cfg. Safe to call once at
// startup before any request-serving goroutines start.
func SetGlobalConfig(cfg Config) error {
	zcfg := zap.NewProductionConfig()
	if cfg.Development {
		zcfg = zap.NewDevelopmentConfig()
	}

	if cfg.Level != "" {
		lvl, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return err
		}

		zcfg.Level = zap.NewAtomicLevelAt(lvl)
	}

	l, err := zcfg.Build()
	if err != nil {
		return err
	}

	SetDefault(l)

	return nil
}

// SetDefault replaces the process-wide logger, e.g. in tests that want to
// capture output with an observer core.
func SetDefault(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()

	base = l
}

// Default returns the current process-wide zap logger.
func Default() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()

	return base
}

// GetGlobalLogger is an alias for Default, matching call sites that prefer
// the more explicit name.
func GetGlobalLogger() *zap.Logger { return Default() }

func hookFields(ctx context.Context, msg string) []Field {
	var fields []Field

	for _, h := range hooks {
		fields = append(fields, h.Apply(ctx, msg)...)
	}

	return fields
}

func traceFields(ctx context.Context, _ string) []Field {
	var fields []Field

	if ctx == nil {
		return fields
	}

	if traceID, ok := tracing.TraceID(ctx); ok {
		fields = append(fields, String("trace_id", traceID))
	}

	if op, ok := tracing.OperationName(ctx); ok {
		fields = append(fields, String("operation_name", op))
	}

	return fields
}

func Debug(ctx context.Context, msg string, fields ...Field) {
	Default().Debug(msg, append(hookFields(ctx, msg), fields...)...)
}

func Info(ctx context.Context, msg string, fields ...Field) {
	Default().Info(msg, append(hookFields(ctx, msg), fields...)...)
}

func Warn(ctx context.Context, msg string, fields ...Field) {
	Default().Warn(msg, append(hookFields(ctx, msg), fields...)...)
}

func Error(ctx context.Context, msg string, fields ...Field) {
	Default().Error(msg, append(hookFields(ctx, msg), fields...)...)
}

func DebugContext(ctx context.Context, msg string, fields ...Field) { Debug(ctx, msg, fields...) }
func InfoContext(ctx context.Context, msg string, fields ...Field)  { Info(ctx, msg, fields...) }
func WarnContext(ctx context.Context, msg string, fields ...Field)  { Warn(ctx, msg, fields...) }
func ErrorContext(ctx context.Context, msg string, fields ...Field) { Error(ctx, msg, fields...) }

// DebugEnabled reports whether debug-level logs are currently emitted.
func DebugEnabled() bool {
	return Default().Core().Enabled(zapcore.DebugLevel)
}
