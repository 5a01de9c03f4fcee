// Package engine implements stage invocation, run watching and artifact
// retrieval over a persisted state document, and the orchestrator that
// drives a compiled pipeline through them.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/swap357/cirunner/internal/metrics"
	"github.com/swap357/cirunner/internal/provider"
	"github.com/swap357/cirunner/internal/trigger"
	"github.com/swap357/cirunner/internal/watcher"
	"github.com/swap357/cirunner/pkg/types"
)

// DefaultClockSkew is how far before the dispatch time a listed run may have
// been created and still be taken as the dispatched one.
const DefaultClockSkew = 2 * time.Minute

// Engine binds stage keys to remote runs. All state lives in the provider;
// every mutation is persisted before the operation returns.
type Engine struct {
	store      provider.Provider
	cp         trigger.ControlPlane
	logger     *slog.Logger
	alertFn    func(context.Context, types.Alert)
	resolve    types.RetryPolicy
	skew       time.Duration
	sleep      func(context.Context, time.Duration) error
	now        func() time.Time
	tracer     trace.Tracer
	metrics    *metrics.Recorder
	pipeline   string
	invocation string
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithAlertFunc sets the alert callback.
func WithAlertFunc(fn func(context.Context, types.Alert)) Option {
	return func(e *Engine) { e.alertFn = fn }
}

// WithResolvePolicy bounds the lookup of runs the dispatch did not report.
func WithResolvePolicy(p types.RetryPolicy) Option {
	return func(e *Engine) { e.resolve = p }
}

// WithClockSkew sets the tolerance used when matching listed runs.
func WithClockSkew(d time.Duration) Option {
	return func(e *Engine) { e.skew = d }
}

// WithSleep replaces the backoff sleep (useful for testing).
func WithSleep(fn func(context.Context, time.Duration) error) Option {
	return func(e *Engine) { e.sleep = fn }
}

// WithClock replaces time.Now.
func WithClock(fn func() time.Time) Option {
	return func(e *Engine) { e.now = fn }
}

// WithTracer sets the tracer spans are started on.
func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) { e.tracer = t }
}

// WithMetrics sets the counter recorder.
func WithMetrics(r *metrics.Recorder) Option {
	return func(e *Engine) { e.metrics = r }
}

// WithInvocation labels alerts with the pipeline name and invocation id.
func WithInvocation(pipeline, invocation string) Option {
	return func(e *Engine) {
		e.pipeline = pipeline
		e.invocation = invocation
	}
}

// New creates an Engine over a state store and a control plane.
func New(store provider.Provider, cp trigger.ControlPlane, opts ...Option) *Engine {
	e := &Engine{
		store:   store,
		cp:      cp,
		logger:  slog.Default(),
		resolve: watcher.DefaultResolvePolicy(),
		skew:    DefaultClockSkew,
		sleep:   watcher.Sleep,
		now:     time.Now,
		tracer:  tracenoop.NewTracerProvider().Tracer(""),
	}
	for _, o := range opts {
		o(e)
	}
	if e.metrics == nil {
		e.metrics = metrics.Noop()
	}
	if e.resolve.MaxAttempts <= 0 {
		e.resolve.MaxAttempts = watcher.DefaultResolvePolicy().MaxAttempts
	}
	return e
}

// State returns the current state document.
func (e *Engine) State(ctx context.Context) (types.StateDocument, error) {
	doc, err := e.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading state: %w", err)
	}
	return doc, nil
}

func (e *Engine) record(ctx context.Context, key string) (types.StageRecord, error) {
	doc, err := e.State(ctx)
	if err != nil {
		return types.StageRecord{}, err
	}
	return doc[key], nil
}

// put stores one record with a read-modify-write of the whole document.
func (e *Engine) put(ctx context.Context, key string, rec types.StageRecord) error {
	doc, err := e.State(ctx)
	if err != nil {
		return err
	}
	doc[key] = rec
	if err := e.store.Save(ctx, doc); err != nil {
		return fmt.Errorf("saving state: %w", err)
	}
	return nil
}

func (e *Engine) startSpan(ctx context.Context, name, key string, runID int64) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{attribute.String("cirunner.stage", key)}
	if runID > 0 {
		attrs = append(attrs, attribute.Int64("cirunner.run_id", runID))
	}
	return e.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (e *Engine) fireAlert(ctx context.Context, alert types.Alert) {
	if e.alertFn == nil {
		return
	}
	alert.Pipeline = e.pipeline
	alert.Invocation = e.invocation
	if alert.Timestamp.IsZero() {
		alert.Timestamp = e.now()
	}
	metrics.Inc(ctx, e.metrics.AlertsDispatched, alert.Stage)
	e.alertFn(context.WithoutCancel(ctx), alert)
}
