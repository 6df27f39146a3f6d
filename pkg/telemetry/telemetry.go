// Package telemetry wires optional OpenTelemetry tracing and Prometheus
// metrics around the Turn Pipeline's LM calls and the Round Runner's
// rounds, trimmed from hector/pkg/observability's tracer/metrics split to
// the handful of spans and counters this kernel actually exercises. A
// nil *Recorder is a valid no-op, matching the teacher's null-object
// pattern (hector/pkg/observability.NoopManager).
package telemetry

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Recorder bundles a tracer and a metrics registry. Every method is
// nil-receiver safe: a *Recorder obtained via zero value or never
// configured with Init behaves as a no-op.
type Recorder struct {
	tracer trace.Tracer

	turnsTotal      *prometheus.CounterVec
	skipsTotal      *prometheus.CounterVec
	roundDuration   *prometheus.HistogramVec
	llmCallDuration *prometheus.HistogramVec
}

// New builds a Recorder registered against reg, with spans emitted under
// tracerName. Passing a nil reg is valid — metrics collection is skipped
// but tracing still works, mirroring hector's independent tracer/metrics
// lifecycles.
func New(tracerName string, reg prometheus.Registerer) *Recorder {
	r := &Recorder{tracer: otel.Tracer(tracerName)}

	r.turnsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "simkernel_turns_total",
		Help: "Total agent turns committed, labeled by outcome.",
	}, []string{"outcome"})
	r.skipsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "simkernel_skips_total",
		Help: "Total agent turns skipped, labeled by reason.",
	}, []string{"reason"})
	r.roundDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name: "simkernel_round_duration_seconds",
		Help: "Wall-clock duration of one Round Runner pass.",
	}, []string{"visibility"})
	r.llmCallDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name: "simkernel_llm_call_duration_seconds",
		Help: "Duration of one LM chat call issued by the Turn Pipeline.",
	}, []string{"binding"})

	if reg != nil {
		reg.MustRegister(r.turnsTotal, r.skipsTotal, r.roundDuration, r.llmCallDuration)
	}
	return r
}

// StartLLMCall opens a span around one agent's LM call, following the
// hector/pkg/observability.Tracer.StartLLMCall naming convention.
func (r *Recorder) StartLLMCall(ctx context.Context, agentName, binding string) (context.Context, trace.Span) {
	if r == nil || r.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return r.tracer.Start(ctx, "turn.llm_call", trace.WithAttributes(
		attribute.String("agent", agentName),
		attribute.String("binding", binding),
	))
}

// StartRound opens a span around one Round Runner pass.
func (r *Recorder) StartRound(ctx context.Context, roundNum int, visibility string) (context.Context, trace.Span) {
	if r == nil || r.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return r.tracer.Start(ctx, "round.run", trace.WithAttributes(
		attribute.Int("round", roundNum),
		attribute.String("visibility", visibility),
	))
}

// RecordLLMCall records an LM call's duration and, on error, marks the
// still-open span failed.
func (r *Recorder) RecordLLMCall(span trace.Span, binding string, duration time.Duration, err error) {
	if span != nil {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
	if r == nil || r.llmCallDuration == nil {
		return
	}
	r.llmCallDuration.WithLabelValues(binding).Observe(duration.Seconds())
}

// RecordTurnOutcome increments the turns-committed counter for a single
// outcome label ("ok" or "skip").
func (r *Recorder) RecordTurnOutcome(outcome string) {
	if r == nil || r.turnsTotal == nil {
		return
	}
	r.turnsTotal.WithLabelValues(outcome).Inc()
}

// RecordSkip increments the skips counter for skipReason.
func (r *Recorder) RecordSkip(reason string) {
	if r == nil || r.skipsTotal == nil {
		return
	}
	r.skipsTotal.WithLabelValues(reason).Inc()
}

// RecordRound ends span, recording err if present, and observes the
// round's wall-clock duration under visibility.
func (r *Recorder) RecordRound(span trace.Span, visibility string, duration time.Duration, err error) {
	if span != nil {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
	if r == nil || r.roundDuration == nil {
		return
	}
	r.roundDuration.WithLabelValues(visibility).Observe(duration.Seconds())
}
