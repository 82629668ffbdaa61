// Package logging builds the slog handler used by the contract promoter.
// Records are encoded as JSON by zap and bridged to slog through logr.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Option configures the handler
type Option func(*options)

type options struct {
	level  slog.Level
	writer io.Writer
}

// WithLevel sets the minimum level
func WithLevel(level slog.Level) Option {
	return func(o *options) {
		o.level = level
	}
}

// WithWriter sets the destination. Defaults to stderr so stdout stays free
// for command output.
func WithWriter(w io.Writer) Option {
	return func(o *options) {
		o.writer = w
	}
}

// NewHandler returns a JSON slog handler that adds the active trace_id and
// span_id to every record. The returned function flushes buffered entries.
func NewHandler(opts ...Option) (slog.Handler, func() error) {
	o := &options{level: slog.LevelInfo, writer: os.Stderr}
	for _, opt := range opts {
		opt(o)
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.MessageKey = "msg"
	encoderCfg.TimeKey = "time"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderCfg.EncodeLevel = encodeLevel

	// logr checks warnings at info verbosity, so zap never filters above
	// info and the threshold is enforced by traceHandler
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderCfg),
		zapcore.Lock(zapcore.AddSync(o.writer)),
		zap.NewAtomicLevelAt(ZapLevel(min(o.level, slog.LevelInfo))),
	)
	logger := zap.New(core)

	handler := logr.ToSlogHandler(zapr.NewLogger(logger))
	return &traceHandler{Handler: handler, level: o.level}, logger.Sync
}

// ParseLevel maps a level name to a slog level. Unknown names yield info and
// false.
func ParseLevel(name string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug, true
	case "info", "":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}

// ZapLevel returns the zap level slog records of level l are written at.
// Levels below info become negative zap levels, one per logr verbosity.
func ZapLevel(l slog.Level) zapcore.Level {
	switch {
	case l >= slog.LevelError:
		return zapcore.ErrorLevel
	case l >= slog.LevelWarn:
		return zapcore.WarnLevel
	case l >= slog.LevelInfo:
		return zapcore.InfoLevel
	default:
		return zapcore.Level(l)
	}
}

// encodeLevel names verbosity levels below debug "debug"
func encodeLevel(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	if l < zapcore.DebugLevel {
		l = zapcore.DebugLevel
	}
	zapcore.LowercaseLevelEncoder(l, enc)
}

// traceHandler injects OpenTelemetry trace_id and span_id into every log
// record and drops records below level
type traceHandler struct {
	slog.Handler
	level slog.Level
}

func (h *traceHandler) Enabled(ctx context.Context, l slog.Level) bool {
	return l >= h.level && h.Handler.Enabled(ctx, l)
}

func (h *traceHandler) Handle(ctx context.Context, r slog.Record) error {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		r.AddAttrs(
			slog.String("trace_id", span.SpanContext().TraceID().String()),
			slog.String("span_id", span.SpanContext().SpanID().String()),
		)
	}
	return h.Handler.Handle(ctx, r)
}

func (h *traceHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &traceHandler{Handler: h.Handler.WithAttrs(attrs), level: h.level}
}

func (h *traceHandler) WithGroup(name string) slog.Handler {
	return &traceHandler{Handler: h.Handler.WithGroup(name), level: h.level}
}
