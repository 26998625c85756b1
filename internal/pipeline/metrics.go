package pipeline

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"go.aimuz.me/whisperia/internal/status"
)

const meterName = "go.aimuz.me/whisperia/pipeline"

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(meterName).Start(ctx, name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, errMsg string) {
	if errMsg != "" {
		span.SetStatus(codes.Error, errMsg)
	}
	span.End()
}

// instruments are resolved from provider, or the global MeterProvider when
// nil; without one they are no-ops.
type instruments struct {
	runs     metric.Int64Counter
	rejected metric.Int64Counter
	stage    metric.Float64Histogram
	samples  metric.Int64Histogram

	busyReg metric.Registration
}

func newInstruments(provider metric.MeterProvider, store *status.Store) instruments {
	if provider == nil {
		provider = otel.GetMeterProvider()
	}
	meter := provider.Meter(meterName)

	var in instruments
	var err error
	if in.runs, err = meter.Int64Counter("whisperia.pipeline.runs",
		metric.WithDescription("Finished pipeline runs by outcome")); err != nil {
		slog.Warn("create metric", "name", "runs", "error", err)
	}
	if in.rejected, err = meter.Int64Counter("whisperia.pipeline.busy_rejections",
		metric.WithDescription("Triggers rejected while a run was in progress")); err != nil {
		slog.Warn("create metric", "name", "busy_rejections", "error", err)
	}
	if in.stage, err = meter.Float64Histogram("whisperia.pipeline.stage.duration",
		metric.WithDescription("Time spent per pipeline stage"),
		metric.WithUnit("s")); err != nil {
		slog.Warn("create metric", "name", "stage.duration", "error", err)
	}
	if in.samples, err = meter.Int64Histogram("whisperia.pipeline.samples",
		metric.WithDescription("16kHz samples handed to the transcriber")); err != nil {
		slog.Warn("create metric", "name", "samples", "error", err)
	}

	busy, err := meter.Int64ObservableGauge("whisperia.pipeline.busy",
		metric.WithDescription("1 while a run owns the pipeline"))
	if err == nil {
		in.busyReg, err = meter.RegisterCallback(func(_ context.Context, obs metric.Observer) error {
			var v int64
			if store.Read().Phase.Busy() {
				v = 1
			}
			obs.ObserveInt64(busy, v)
			return nil
		}, busy)
	}
	if err != nil {
		slog.Warn("create metric", "name", "busy", "error", err)
	}

	return in
}

// unregister stops observing the store.
func (in instruments) unregister() {
	if in.busyReg == nil {
		return
	}
	if err := in.busyReg.Unregister(); err != nil {
		slog.Warn("unregister metric", "name", "busy", "error", err)
	}
}

func (in instruments) run(outcome string) {
	if in.runs != nil {
		in.runs.Add(context.Background(), 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	}
}

func (in instruments) busy() {
	if in.rejected != nil {
		in.rejected.Add(context.Background(), 1)
	}
}

func (in instruments) observeStage(stage string, start time.Time) {
	if in.stage != nil {
		in.stage.Record(context.Background(), time.Since(start).Seconds(),
			metric.WithAttributes(attribute.String("stage", stage)))
	}
}

func (in instruments) observeSamples(n int) {
	if in.samples != nil {
		in.samples.Record(context.Background(), int64(n))
	}
}
