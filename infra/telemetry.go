package infra

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/log/global"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/Maestro-111/search-engine/config"
)

// TelemetryClient owns the OTLP log, metric and trace providers. It is nil
// when no collector endpoint is configured; the global no-op providers apply.
type TelemetryClient struct {
	LoggerProvider *sdklog.LoggerProvider
	MeterProvider  *sdkmetric.MeterProvider
	TracerProvider *sdktrace.TracerProvider
}

func InitTelemetryClient(ctx context.Context, cfg *config.EnvConfig) (*TelemetryClient, error) {
	if cfg.Grafana.OTLPEndpoint == "" {
		return nil, nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			attribute.String("service.name", cfg.Grafana.ServiceName),
			attribute.String("deployment.environment", cfg.Environment.Mode),
			attribute.String("service.namespace", cfg.Environment.Group),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build otel resource: %w", err)
	}

	logOpts := []otlploghttp.Option{otlploghttp.WithEndpoint(cfg.Grafana.OTLPEndpoint)}
	metricOpts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(cfg.Grafana.OTLPEndpoint)}
	traceOpts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.Grafana.OTLPEndpoint)}
	if cfg.Grafana.Insecure {
		logOpts = append(logOpts, otlploghttp.WithInsecure())
		metricOpts = append(metricOpts, otlpmetrichttp.WithInsecure())
		traceOpts = append(traceOpts, otlptracehttp.WithInsecure())
	}

	logExporter, err := otlploghttp.New(ctx, logOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create otlp log exporter: %w", err)
	}
	metricExporter, err := otlpmetrichttp.New(ctx, metricOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create otlp metric exporter: %w", err)
	}
	traceExporter, err := otlptracehttp.New(ctx, traceOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create otlp trace exporter: %w", err)
	}

	client := &TelemetryClient{
		LoggerProvider: sdklog.NewLoggerProvider(
			sdklog.WithResource(res),
			sdklog.WithProcessor(sdklog.NewBatchProcessor(logExporter)),
		),
		MeterProvider: sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter, sdkmetric.WithInterval(30*time.Second))),
		),
		TracerProvider: sdktrace.NewTracerProvider(
			sdktrace.WithResource(res),
			sdktrace.WithBatcher(traceExporter),
		),
	}

	global.SetLoggerProvider(client.LoggerProvider)
	otel.SetMeterProvider(client.MeterProvider)
	otel.SetTracerProvider(client.TracerProvider)

	if err := runtime.Start(runtime.WithMeterProvider(client.MeterProvider)); err != nil {
		return nil, fmt.Errorf("failed to start runtime metrics: %w", err)
	}

	return client, nil
}

// Shutdown flushes and stops all providers.
func (t *TelemetryClient) Shutdown(ctx context.Context) error {
	if t == nil {
		return nil
	}
	return errors.Join(
		t.TracerProvider.Shutdown(ctx),
		t.MeterProvider.Shutdown(ctx),
		t.LoggerProvider.Shutdown(ctx),
	)
}
