package logging

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// LogLevel represents the logging level
type LogLevel string

const (
	DebugLevel LogLevel = "debug"
	InfoLevel  LogLevel = "info"
	WarnLevel  LogLevel = "warn"
	ErrorLevel LogLevel = "error"
)

// Logger holds the zerolog logger instance
type Logger struct {
	logger zerolog.Logger
}

// NewLogger creates a new logger instance with the specified log level
func NewLogger(logLevel LogLevel, output io.Writer) *Logger {
	if output == nil {
		output = os.Stdout
	}

	level, err := zerolog.ParseLevel(string(logLevel))
	if err != nil || logLevel == "" {
		level = zerolog.InfoLevel
	}

	logger := zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		Logger()

	return &Logger{
		logger: logger,
	}
}

// NewFormattedLogger creates a logger for format "json" (structured lines) or
// anything else (a human-readable console stream)
func NewFormattedLogger(level LogLevel, format string, out io.Writer) *Logger {
	if out == nil {
		out = os.Stderr
	}
	if format == "json" {
		return NewLogger(level, out)
	}
	return NewLogger(level, zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"})
}

// Zerolog returns the underlying zerolog logger for components that take one directly
func (l *Logger) Zerolog() zerolog.Logger {
	return l.logger
}

// WithContext adds trace and span IDs from ctx when a span is active
func (l *Logger) WithContext(ctx context.Context) *zerolog.Logger {
	logCtx := l.logger.With()

	if spanCtx := trace.SpanContextFromContext(ctx); spanCtx.IsValid() {
		logCtx = logCtx.Str("trace_id", spanCtx.TraceID().String())
		logCtx = logCtx.Str("span_id", spanCtx.SpanID().String())
	}

	contextualLogger := logCtx.Logger()
	return &contextualLogger
}

// Module returns a child Logger tagged with the module name
func (l *Logger) Module(module string) *Logger {
	return &Logger{logger: l.logger.With().Str("module", module).Logger()}
}

// WithModule returns a zerolog child tagged with the module name
func (l *Logger) WithModule(module string) *zerolog.Logger {
	logger := l.Module(module).logger
	return &logger
}

// LogScan logs the outcome of one scan pipeline run with the trace of ctx.
// scanID is empty when nothing was saved.
func (l *Logger) LogScan(ctx context.Context, scanID string, quick bool, files, unique, warnings int, duration time.Duration, err error) {
	logCtx := l.WithContext(ctx).With()
	if scanID != "" {
		logCtx = logCtx.Str("scan_id", scanID)
	}
	event := logCtx.
		Bool("quick", quick).
		Int("total_files", files).
		Int("unique_plugins", unique).
		Int("warnings", warnings).
		Int64("duration_ms", duration.Milliseconds()).
		Logger()

	if err != nil {
		event.Error().Err(err).Msg("Plugin scan failed")
		return
	}
	event.Info().Msg("Plugin scan completed")
}

// LogHTTPRequest logs HTTP request information
func (l *Logger) LogHTTPRequest(c *fiber.Ctx, duration time.Duration) {
	l.logger.Info().
		Str("ip", c.IP()).
		Str("method", c.Method()).
		Str("url", c.OriginalURL()).
		Int("status", c.Response().StatusCode()).
		Int64("duration_ms", duration.Milliseconds()).
		Str("user_agent", c.Get("User-Agent")).
		Msg("HTTP request processed")
}

// FiberLoggerMiddleware creates a Fiber-compatible logging middleware
func (l *Logger) FiberLoggerMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		l.LogHTTPRequest(c, time.Since(start))
		return err
	}
}
