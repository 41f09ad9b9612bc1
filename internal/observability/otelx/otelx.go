// Package otelx wires OpenTelemetry tracing for digest runs.
package otelx

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.27.0"

	"github.com/bakkerme/digestbot/internal/config"
)

const (
	protocolGRPC = "grpc"
	protocolHTTP = "http/protobuf"
)

// ShutdownFunc flushes and stops the tracer provider.
type ShutdownFunc func(context.Context) error

type settings struct {
	serviceName string
	endpoint    string
	protocol    string
	headers     map[string]string
	insecure    bool
	sampleRatio float64
}

// Init installs a global tracer provider when tracing is enabled. The returned
// ShutdownFunc is never nil; when tracing is disabled it does nothing.
func Init(ctx context.Context, logger *slog.Logger, cfg config.OTelEnvConfig) (ShutdownFunc, error) {
	noop := func(context.Context) error { return nil }
	if logger == nil {
		logger = slog.Default()
	}
	if !cfg.Enabled {
		return noop, nil
	}

	s, err := resolve(cfg)
	if err != nil {
		return noop, err
	}

	exp, err := newExporter(ctx, s)
	if err != nil {
		return noop, fmt.Errorf("create otlp exporter: %w", err)
	}

	res, err := resource.New(
		ctx,
		resource.WithFromEnv(),
		resource.WithTelemetrySDK(),
		resource.WithProcess(),
		resource.WithHost(),
		resource.WithAttributes(semconv.ServiceName(s.serviceName)),
	)
	if err != nil {
		return noop, fmt.Errorf("build otel resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exp, sdktrace.WithBatchTimeout(2*time.Second)),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(s.sampleRatio))),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.Info("tracing enabled",
		"service_name", s.serviceName,
		"otlp_endpoint", s.endpoint,
		"otlp_protocol", s.protocol,
		"sample_ratio", s.sampleRatio,
	)
	return tp.Shutdown, nil
}

func resolve(cfg config.OTelEnvConfig) (settings, error) {
	s := settings{
		serviceName: strings.TrimSpace(cfg.ServiceName),
		endpoint:    strings.TrimSpace(cfg.Endpoint),
		headers:     cfg.Headers,
		insecure:    cfg.Insecure,
		sampleRatio: min(max(cfg.SampleRatio, 0), 1),
	}
	if s.serviceName == "" {
		s.serviceName = "digestbot"
	}

	switch p := strings.ToLower(strings.TrimSpace(cfg.Protocol)); p {
	case "", protocolGRPC:
		s.protocol = protocolGRPC
	case "http", protocolHTTP:
		s.protocol = protocolHTTP
	default:
		return s, fmt.Errorf("unsupported OTEL_EXPORTER_OTLP_PROTOCOL %q (expected grpc or http/protobuf)", p)
	}

	if s.endpoint == "" {
		if s.protocol == protocolHTTP {
			s.endpoint = "localhost:4318"
		} else {
			s.endpoint = "localhost:4317"
		}
	}
	if s.protocol == protocolGRPC && strings.Contains(s.endpoint, "://") {
		u, err := url.Parse(s.endpoint)
		if err != nil {
			return s, fmt.Errorf("parse OTEL_EXPORTER_OTLP_ENDPOINT: %w", err)
		}
		s.endpoint = u.Host
	}
	return s, nil
}

func newExporter(ctx context.Context, s settings) (*otlptrace.Exporter, error) {
	if s.protocol == protocolHTTP {
		var opts []otlptracehttp.Option
		if strings.Contains(s.endpoint, "://") {
			opts = append(opts, otlptracehttp.WithEndpointURL(s.endpoint))
		} else {
			opts = append(opts, otlptracehttp.WithEndpoint(s.endpoint))
		}
		if s.insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		if len(s.headers) > 0 {
			opts = append(opts, otlptracehttp.WithHeaders(s.headers))
		}
		return otlptracehttp.New(ctx, opts...)
	}

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(s.endpoint)}
	if s.insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	if len(s.headers) > 0 {
		opts = append(opts, otlptracegrpc.WithHeaders(s.headers))
	}
	return otlptracegrpc.New(ctx, opts...)
}
