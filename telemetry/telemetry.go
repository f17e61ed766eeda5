// Package telemetry builds the logger and tracer provider described by a
// config.Config.
package telemetry

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/wippyai/embed-runtime/config"
	"github.com/wippyai/embed-runtime/errors"
)

// NewLogger builds a zap logger: JSON production output for the "json"
// format, colored development output for "console".
func NewLogger(cfg config.Log) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "log level")
	}

	var zc zap.Config
	switch cfg.Format {
	case "console":
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	case "json", "":
		zc = zap.NewProductionConfig()
	default:
		return nil, errors.InvalidInput(errors.PhaseConfig, "unknown log format "+cfg.Format)
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

// Shutdown flushes and stops a tracer provider.
type Shutdown func(context.Context) error

// SetupTracing returns the tracer provider for cfg. Tracing is opt-in:
// when it is disabled or no endpoint is set, a no-op provider is returned
// and nothing is registered globally. Otherwise spans are batched to the
// OTLP/HTTP endpoint and the provider becomes the global one.
func SetupTracing(ctx context.Context, cfg config.Telemetry) (trace.TracerProvider, Shutdown, error) {
	none := func(context.Context) error { return nil }
	if !cfg.Enabled || cfg.Endpoint == "" {
		return noop.NewTracerProvider(), none, nil
	}

	endpoint := otlptracehttp.WithEndpoint(cfg.Endpoint)
	if strings.Contains(cfg.Endpoint, "://") {
		endpoint = otlptracehttp.WithEndpointURL(cfg.Endpoint)
	}
	exporter, err := otlptracehttp.New(ctx, endpoint)
	if err != nil {
		return nil, none, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "otlp exporter")
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
		),
	)
	if err != nil {
		return nil, none, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "otel resource")
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return tp, tp.Shutdown, nil
}
