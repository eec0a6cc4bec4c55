// Package logging provides the structured logger used across folio.
//
// It wraps log/slog behind a small interface so that every component receives
// its logger by injection and tests can swap in Discard.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"strings"
	"time"
)

// LogLevel is the minimum severity a logger writes.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = map[LogLevel]string{
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARN",
	LevelError: "ERROR",
}

func (l LogLevel) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return "UNKNOWN"
}

// ParseLevel converts a config string (debug, info, warn, error) to a LogLevel.
// An empty string is info.
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	}
	return LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// slogLevel maps to the slog scale, where levels are four apart.
func (l LogLevel) slogLevel() slog.Level {
	return slog.LevelDebug + slog.Level(4*int(l))
}

// Logger is the logging interface components depend on. Fields are
// alternating keys and values.
type Logger interface {
	Debug(ctx context.Context, msg string, fields ...interface{})
	Info(ctx context.Context, msg string, fields ...interface{})
	Warn(ctx context.Context, err error, msg string, fields ...interface{})
	Error(ctx context.Context, err error, msg string, fields ...interface{})

	With(fields ...interface{}) Logger
	WithComponent(component string) Logger
}

// SiteLogger implements Logger on top of a slog handler. Fields added with
// With keep their order in the output.
type SiteLogger struct {
	handler   slog.Handler
	component string
	attrs     []slog.Attr
}

// LoggerConfig holds logger configuration.
type LoggerConfig struct {
	Level LogLevel
	// Format is "json" or "text".
	Format    string
	Output    io.Writer
	AddSource bool
	Component string
}

// DefaultConfig logs info and above as text to stderr.
func DefaultConfig() *LoggerConfig {
	return &LoggerConfig{
		Level:  LevelInfo,
		Format: "text",
		Output: os.Stderr,
	}
}

// NewLogger creates a logger. A nil config uses DefaultConfig.
func NewLogger(config *LoggerConfig) *SiteLogger {
	if config == nil {
		config = DefaultConfig()
	}
	output := config.Output
	if output == nil {
		output = os.Stderr
	}

	opts := &slog.HandlerOptions{
		Level:     config.Level.slogLevel(),
		AddSource: config.AddSource,
	}
	var handler slog.Handler
	if strings.EqualFold(config.Format, "json") {
		handler = slog.NewJSONHandler(output, opts)
	} else {
		handler = slog.NewTextHandler(output, opts)
	}
	return &SiteLogger{handler: handler, component: config.Component}
}

// Discard returns a logger that drops everything. Useful in tests.
func Discard() Logger {
	// Equivalent of slog.DiscardHandler (Go 1.24+): no level is enabled.
	return &SiteLogger{handler: slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(math.MaxInt)})}
}

func (l *SiteLogger) Debug(ctx context.Context, msg string, fields ...interface{}) {
	l.log(ctx, slog.LevelDebug, nil, msg, fields)
}

func (l *SiteLogger) Info(ctx context.Context, msg string, fields ...interface{}) {
	l.log(ctx, slog.LevelInfo, nil, msg, fields)
}

func (l *SiteLogger) Warn(ctx context.Context, err error, msg string, fields ...interface{}) {
	l.log(ctx, slog.LevelWarn, err, msg, fields)
}

func (l *SiteLogger) Error(ctx context.Context, err error, msg string, fields ...interface{}) {
	l.log(ctx, slog.LevelError, err, msg, fields)
}

// With returns a logger that adds fields to every record.
func (l *SiteLogger) With(fields ...interface{}) Logger {
	attrs := make([]slog.Attr, 0, len(l.attrs)+len(fields)/2)
	attrs = append(attrs, l.attrs...)
	return &SiteLogger{
		handler:   l.handler,
		component: l.component,
		attrs:     appendFields(attrs, fields),
	}
}

// WithComponent returns a logger tagging records with component, replacing
// any previous component.
func (l *SiteLogger) WithComponent(component string) Logger {
	return &SiteLogger{
		handler:   l.handler,
		component: component,
		attrs:     l.attrs,
	}
}

func (l *SiteLogger) log(ctx context.Context, level slog.Level, err error, msg string, fields []interface{}) {
	if ctx == nil {
		ctx = context.Background()
	}
	if !l.handler.Enabled(ctx, level) {
		return
	}

	record := slog.NewRecord(time.Now(), level, msg, 0)
	if l.component != "" {
		record.AddAttrs(slog.String("component", l.component))
	}
	if err != nil {
		record.AddAttrs(slog.String("error", err.Error()))
	}
	record.AddAttrs(l.attrs...)
	record.AddAttrs(appendFields(nil, fields)...)
	_ = l.handler.Handle(ctx, record)
}

// appendFields converts key/value pairs to attributes. Pairs whose key is
// not a string and a trailing odd value are dropped.
func appendFields(attrs []slog.Attr, fields []interface{}) []slog.Attr {
	for i := 0; i+1 < len(fields); i += 2 {
		if key, ok := fields[i].(string); ok {
			attrs = append(attrs, slog.Any(key, fields[i+1]))
		}
	}
	return attrs
}

// PerfLogger logs the duration of one operation.
type PerfLogger struct {
	Logger
	startTime time.Time
	operation string
}

// StartOperation starts timing operation.
func StartOperation(logger Logger, operation string) *PerfLogger {
	return &PerfLogger{
		Logger:    logger.With("operation", operation),
		startTime: time.Now(),
		operation: operation,
	}
}

// End logs "<operation> completed" with the elapsed milliseconds.
func (p *PerfLogger) End(ctx context.Context, fields ...interface{}) {
	fields = append(fields, "duration_ms", time.Since(p.startTime).Milliseconds())
	p.Info(ctx, p.operation+" completed", fields...)
}

// EndWithError logs "<operation> failed".
func (p *PerfLogger) EndWithError(ctx context.Context, err error) {
	p.Error(ctx, err, p.operation+" failed", "duration_ms", time.Since(p.startTime).Milliseconds())
}
