// Package tracing provides OpenTelemetry tracing for the gateway.
package tracing

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/actual-software/socket-gateway/internal/config"
)

const (
	instrumentationName = "socket-gateway"
	shutdownTimeout     = 10 * time.Second
)

// OTelTracer owns the tracer provider for the process.
type OTelTracer struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
	logger   *zap.Logger
}

// InitOTelTracer builds a tracer provider from cfg and installs it globally.
// A disabled config yields a tracer whose spans are never recorded.
func InitOTelTracer(cfg config.TracingConfig, logger *zap.Logger) (*OTelTracer, error) {
	if !cfg.Enabled {
		logger.Info("OpenTelemetry tracing disabled")

		return &OTelTracer{
			tracer: noop.NewTracerProvider().Tracer(instrumentationName),
			logger: logger,
		}, nil
	}

	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(cfg.ServiceName),
			semconv.ServiceVersionKey.String(cfg.ServiceVersion),
			semconv.DeploymentEnvironmentKey.String(cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	exporter, err := createExporter(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(createSampler(cfg)),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.Info("OpenTelemetry tracing initialized",
		zap.String("service", cfg.ServiceName),
		zap.String("version", cfg.ServiceVersion),
		zap.String("environment", cfg.Environment),
		zap.String("exporter", cfg.ExporterType),
		zap.String("sampler", cfg.SamplerType),
	)

	return &OTelTracer{
		provider: tp,
		tracer:   tp.Tracer(instrumentationName),
		logger:   logger,
	}, nil
}

func createExporter(cfg config.TracingConfig) (sdktrace.SpanExporter, error) {
	switch cfg.ExporterType {
	case "otlp":
		opts := []otlptracegrpc.Option{
			otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
		}
		if cfg.OTLPInsecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}

		return otlptracegrpc.New(context.Background(), opts...)
	default:
		return stdouttrace.New()
	}
}

//nolint:ireturn // Returns OpenTelemetry interface
func createSampler(cfg config.TracingConfig) sdktrace.Sampler {
	switch cfg.SamplerType {
	case "always_off":
		return sdktrace.NeverSample()
	case "traceidratio":
		return sdktrace.TraceIDRatioBased(cfg.SamplerParam)
	default:
		return sdktrace.AlwaysSample()
	}
}

// Tracer returns the tracer the gateway should start spans from.
//
//nolint:ireturn // Returns OpenTelemetry interface
func (t *OTelTracer) Tracer() trace.Tracer {
	return t.tracer
}

// Enabled reports whether spans are exported.
func (t *OTelTracer) Enabled() bool {
	return t.provider != nil
}

// HTTPMiddleware wraps next with request spans when tracing is enabled.
func (t *OTelTracer) HTTPMiddleware(next http.Handler) http.Handler {
	if t.provider == nil {
		return next
	}

	return otelhttp.NewHandler(next, "socket-gateway-http",
		otelhttp.WithTracerProvider(t.provider),
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}

// Shutdown flushes buffered spans and stops the provider.
func (t *OTelTracer) Shutdown(ctx context.Context) error {
	if t.provider == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	t.logger.Info("Shutting down OpenTelemetry tracer")

	return t.provider.Shutdown(shutdownCtx)
}
