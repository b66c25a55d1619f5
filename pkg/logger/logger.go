// Package logger builds the zap logger used across academic-core and keeps
// the field helpers that give log lines a uniform shape.
package logger

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// Options configures the logger.
type Options struct {
	// Development switches to zap's development defaults (stack traces on
	// warnings, caller info, no sampling).
	Development bool
	// Level is a zap level name: debug, info, warn, error.
	Level string
	// Format is "json" or "console".
	Format string
}

// New builds a zap logger from opts. An unknown level falls back to info.
func New(opts Options) (*zap.Logger, error) {
	var cfg zap.Config
	if opts.Development {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}

	switch strings.ToLower(opts.Format) {
	case FormatConsole:
		cfg.Encoding = FormatConsole
	default:
		cfg.Encoding = FormatJSON
	}

	if opts.Level != "" {
		if err := cfg.Level.UnmarshalText([]byte(opts.Level)); err != nil {
			cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
		}
	}

	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

// Context key for logger.
type ctxKey struct{}

// WithContext returns a new context with the logger attached.
func WithContext(ctx context.Context, l *zap.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext retrieves the logger from context, or a no-op logger.
func FromContext(ctx context.Context) *zap.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*zap.Logger); ok {
		return l
	}
	return zap.NewNop()
}

// Domain logging helpers.
func SubjectID(id uuid.UUID) zap.Field    { return zap.Stringer("subject_id", id) }
func SubjectCode(code string) zap.Field   { return zap.String("subject_code", code) }
func EnrollmentID(id uuid.UUID) zap.Field { return zap.Stringer("enrollment_id", id) }
func TaskID(id uuid.UUID) zap.Field       { return zap.Stringer("task_id", id) }
func Period(p string) zap.Field           { return zap.String("period", p) }
func Status(s fmt.Stringer) zap.Field     { return zap.Stringer("status", s) }
func Component(name string) zap.Field     { return zap.String("component", name) }
func Operation(name string) zap.Field     { return zap.String("operation", name) }
