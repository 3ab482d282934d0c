package infra

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	otellog "go.opentelemetry.io/otel/log"

	"github.com/Maestro-111/search-engine/config"
)

type logAttrsKey struct{}

// contextHandler appends attributes stored in the context to every record.
type contextHandler struct {
	slog.Handler
}

func (h contextHandler) Handle(ctx context.Context, r slog.Record) error {
	if attrs, ok := ctx.Value(logAttrsKey{}).([]slog.Attr); ok {
		r.AddAttrs(attrs...)
	}
	return h.Handler.Handle(ctx, r)
}

func (h contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return contextHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h contextHandler) WithGroup(name string) slog.Handler {
	return contextHandler{Handler: h.Handler.WithGroup(name)}
}

// WithLogAttrs returns a context whose log records carry attrs.
func WithLogAttrs(ctx context.Context, attrs ...slog.Attr) context.Context {
	existing, _ := ctx.Value(logAttrsKey{}).([]slog.Attr)
	merged := make([]slog.Attr, 0, len(existing)+len(attrs))
	merged = append(merged, existing...)
	merged = append(merged, attrs...)
	return context.WithValue(ctx, logAttrsKey{}, merged)
}

type LoggerClient struct {
	logger *slog.Logger
}

// InitLoggerClient ships records through the OpenTelemetry log bridge when a
// provider is configured and falls back to JSON on stdout otherwise.
func InitLoggerClient(cfg *config.EnvConfig, provider otellog.LoggerProvider) *LoggerClient {
	level := slog.LevelInfo
	if cfg.Environment.Mode == "development" {
		level = slog.LevelDebug
	}

	var handler slog.Handler
	if provider != nil {
		handler = otelslog.NewHandler(cfg.Grafana.ServiceName, otelslog.WithLoggerProvider(provider))
	} else {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	}

	logger := NewLoggerClient(handler).With(
		slog.String("environment", cfg.Environment.Mode),
		slog.String("group", cfg.Environment.Group),
	)
	return logger
}

func NewLoggerClient(handler slog.Handler) *LoggerClient {
	return &LoggerClient{logger: slog.New(contextHandler{Handler: handler})}
}

// NewNopLogger discards everything. Used by tests.
func NewNopLogger() *LoggerClient {
	return NewLoggerClient(slog.NewTextHandler(io.Discard, nil))
}

func (l *LoggerClient) With(attrs ...slog.Attr) *LoggerClient {
	args := make([]any, 0, len(attrs))
	for _, a := range attrs {
		args = append(args, a)
	}
	return &LoggerClient{logger: l.logger.With(args...)}
}

func (l *LoggerClient) Slog() *slog.Logger {
	return l.logger
}

func (l *LoggerClient) DebugWithContextf(ctx context.Context, format string, args ...any) {
	l.logger.DebugContext(ctx, fmt.Sprintf(format, args...))
}

func (l *LoggerClient) InfoWithContextf(ctx context.Context, format string, args ...any) {
	l.logger.InfoContext(ctx, fmt.Sprintf(format, args...))
}

func (l *LoggerClient) WarningWithContextf(ctx context.Context, format string, args ...any) {
	l.logger.WarnContext(ctx, fmt.Sprintf(format, args...))
}

func (l *LoggerClient) ErrorWithContextf(ctx context.Context, err error, format string, args ...any) {
	if err != nil {
		l.logger.ErrorContext(ctx, fmt.Sprintf(format, args...), slog.String("error", err.Error()))
		return
	}
	l.logger.ErrorContext(ctx, fmt.Sprintf(format, args...))
}
