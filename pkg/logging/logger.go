package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/ingestsdk/go-sdk/metrics"
)

type contextKey string

const (
	ContextKeyCorrelationID     = contextKey("correlation_id")
	ContextKeyRequestID         = contextKey("request_id")
	ContextKeyUserID            = contextKey("user_id")
	ContextKeyOperationDuration = contextKey("operation_duration")
)

// Logger wraps slog.Logger with the handlers and config this module's
// components expect: a fixed-timezone clock, correlation/request id
// propagation from context, and optional sampling/metrics.
type Logger struct {
	*slog.Logger
	config      *Config
	mu          sync.RWMutex
	serviceName string
	environment string
	timezone    *time.Location
	levelVar    *slog.LevelVar
}

type Config struct {
	Level          slog.Level
	OutputFormat   string // "json" or "text"
	AddSource      bool
	EnableSampling bool
	SampleRate     float64
	MaxMessageSize int
	EnableMetrics  bool
	Meters         *metrics.Meters // where EnableMetrics records log-level counters; defaults to metrics.Default()
	Timezone       string          // IANA zone, e.g. "UTC" or "America/New_York"

	// SlowOperationThreshold, when set, flags any log carrying a
	// ContextKeyOperationDuration value above it as a performance
	// warning (see PerformanceHandler). 0 disables the check.
	SlowOperationThreshold time.Duration

	Output io.Writer
}

func DefaultConfig() *Config {
	return &Config{
		Level:          slog.LevelInfo,
		OutputFormat:   "json",
		AddSource:      false,
		EnableSampling: false,
		SampleRate:     1.0,
		EnableMetrics:  false,
		Timezone:       "UTC",
		Output:         os.Stdout,
	}
}

// fixedZoneHandler rewrites every record's timestamp into a fixed
// location before passing it on, so logs from a process running in any
// host timezone sort and read consistently.
type fixedZoneHandler struct {
	slog.Handler
	location *time.Location
}

func newFixedZoneHandler(h slog.Handler, loc *time.Location) *fixedZoneHandler {
	return &fixedZoneHandler{Handler: h, location: loc}
}

func (h *fixedZoneHandler) Handle(ctx context.Context, r slog.Record) error {
	r.Time = r.Time.In(h.location)
	return h.Handler.Handle(ctx, r)
}

func (h *fixedZoneHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &fixedZoneHandler{Handler: h.Handler.WithAttrs(attrs), location: h.location}
}

func (h *fixedZoneHandler) WithGroup(name string) slog.Handler {
	return &fixedZoneHandler{Handler: h.Handler.WithGroup(name), location: h.location}
}

func New(serviceName string, cfg *Config) (*Logger, error) {
	if cfg.Timezone == "" {
		cfg.Timezone = "UTC"
	}
	tz, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone %q: %w", cfg.Timezone, err)
	}

	if cfg.Output == nil {
		cfg.Output = os.Stdout
	}

	levelVar := &slog.LevelVar{}
	levelVar.Set(cfg.Level)

	opts := &slog.HandlerOptions{
		Level:     levelVar,
		AddSource: cfg.AddSource,
	}

	var handler slog.Handler
	if cfg.OutputFormat == "json" {
		handler = slog.NewJSONHandler(cfg.Output, opts)
	} else {
		handler = slog.NewTextHandler(cfg.Output, opts)
	}

	handler = newFixedZoneHandler(handler, tz)
	handler = NewContextualHandler(handler)

	if cfg.SlowOperationThreshold > 0 {
		handler = NewPerformanceHandler(handler, cfg.SlowOperationThreshold)
	}

	if cfg.EnableSampling && cfg.SampleRate < 1.0 {
		handler = NewSamplingHandler(handler, cfg.SampleRate)
	}

	if cfg.EnableMetrics {
		handler = NewMetricsHandler(handler, serviceName, cfg.Meters)
	}

	environment := os.Getenv("ENVIRONMENT")
	if environment == "" {
		environment = "development"
	}

	logger := slog.New(handler).With(
		slog.String("service", serviceName),
		slog.String("environment", environment),
		slog.Int("pid", os.Getpid()),
	)

	return &Logger{
		Logger:      logger,
		config:      cfg,
		serviceName: serviceName,
		environment: environment,
		timezone:    tz,
		levelVar:    levelVar,
	}, nil
}

// SetLevel dynamically changes the log level.
func (l *Logger) SetLevel(level slog.Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.levelVar.Set(level)
	l.config.Level = level
}

// GetLevel returns the current log level.
func (l *Logger) GetLevel() slog.Level {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.config.Level
}

// ForTransport scopes a logger to the HTTP transport component.
func (l *Logger) ForTransport() *slog.Logger {
	return l.With(slog.String("component", "transport"))
}

// ForConsumer scopes a logger to the async batch consumer.
func (l *Logger) ForConsumer() *slog.Logger {
	return l.With(slog.String("component", "consumer"))
}

// ForPager scopes a logger to the pager/quality channel.
func (l *Logger) ForPager() *slog.Logger {
	return l.With(
		slog.String("component", "pager"),
		slog.Bool("non_blocking", true),
	)
}

// WithOperation creates a logger with operation context.
func (l *Logger) WithOperation(operation string) *slog.Logger {
	return l.With(slog.String("operation", operation))
}

// LogRequest logs HTTP request details for the ops server.
func (l *Logger) LogRequest(ctx context.Context, method, path string, statusCode int, duration time.Duration) {
	level := slog.LevelInfo
	if statusCode >= 500 {
		level = slog.LevelError
	} else if statusCode >= 400 {
		level = slog.LevelWarn
	}

	l.LogAttrs(ctx, level, "http request",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status_code", statusCode),
		slog.Duration("duration", duration),
		slog.String("type", "http_request"),
	)
}

// GetTimezone returns the logger's timezone.
func (l *Logger) GetTimezone() *time.Location {
	return l.timezone
}
