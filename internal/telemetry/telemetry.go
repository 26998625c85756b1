// Package telemetry installs the global OpenTelemetry providers.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"runtime"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.30.0"
)

// Config selects exporters. The zero value installs a meter provider with
// no reader and leaves tracing disabled.
type Config struct {
	Service string
	Version string

	// MetricsAddr serves Prometheus metrics at /metrics when set.
	MetricsAddr string
	// OTLPEndpoint sends traces over gRPC when set.
	OTLPEndpoint string
	OTLPInsecure bool
	// StdoutTraces pretty-prints spans when no OTLP endpoint is set.
	StdoutTraces bool
}

// Telemetry owns the installed providers and the metrics listener.
type Telemetry struct {
	meter  *sdkmetric.MeterProvider
	tracer *sdktrace.TracerProvider
	server *http.Server
	addr   string
}

// Setup installs global providers and starts the metrics endpoint.
func Setup(ctx context.Context, cfg Config) (*Telemetry, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.Service),
			semconv.ServiceVersion(cfg.Version),
			attribute.String("host.os", runtime.GOOS),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("build resource: %w", err)
	}

	t := &Telemetry{}

	handler := t.initMetrics(res)
	otel.SetMeterProvider(t.meter)

	if err := t.initTracer(ctx, cfg, res); err != nil {
		_ = t.meter.Shutdown(ctx)
		return nil, err
	}
	if t.tracer != nil {
		otel.SetTracerProvider(t.tracer)
	}

	if addr := strings.TrimSpace(cfg.MetricsAddr); addr != "" && handler != nil {
		if err := t.serve(addr, handler); err != nil {
			_ = t.Shutdown(ctx)
			return nil, err
		}
	}
	return t, nil
}

// Addr returns the bound metrics address, or "" when not serving.
func (t *Telemetry) Addr() string {
	return t.addr
}

// Shutdown stops the listener and flushes the providers.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	var errs []error
	if t.server != nil {
		if err := t.server.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("metrics server: %w", err))
		}
	}
	if t.meter != nil {
		if err := t.meter.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider: %w", err))
		}
	}
	if t.tracer != nil {
		if err := t.tracer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (t *Telemetry) initMetrics(res *resource.Resource) http.Handler {
	exporter, err := prometheus.New()
	if err != nil {
		slog.Warn("init prometheus exporter", "error", err)
		t.meter = sdkmetric.NewMeterProvider(sdkmetric.WithResource(res))
		return nil
	}
	t.meter = sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
		sdkmetric.WithResource(res),
	)
	return promhttp.Handler()
}

func (t *Telemetry) initTracer(ctx context.Context, cfg Config, res *resource.Resource) error {
	var exporter sdktrace.SpanExporter
	switch endpoint := strings.TrimSpace(cfg.OTLPEndpoint); {
	case endpoint != "":
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(endpoint)}
		if cfg.OTLPInsecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		exp, err := otlptracegrpc.New(ctx, opts...)
		if err != nil {
			return fmt.Errorf("create otlp exporter: %w", err)
		}
		exporter = exp
		slog.Info("tracing enabled", "exporter", "otlp", "endpoint", endpoint)
	case cfg.StdoutTraces:
		exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return fmt.Errorf("create stdout exporter: %w", err)
		}
		exporter = exp
		slog.Info("tracing enabled", "exporter", "stdout")
	default:
		return nil
	}

	t.tracer = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	return nil
}

func (t *Telemetry) serve(addr string, handler http.Handler) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen metrics: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	t.server = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	t.addr = ln.Addr().String()

	go func() {
		if err := t.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server", "error", err)
		}
	}()
	slog.Info("metrics endpoint", "addr", t.addr)
	return nil
}
