// Package metrics exposes orchestration counters as OpenTelemetry instruments.
package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// ScopeName is the instrumentation scope of every cirunner instrument.
const ScopeName = "github.com/swap357/cirunner"

// Recorder holds the counters the engine increments.
type Recorder struct {
	Dispatches       metric.Int64Counter
	Reuses           metric.Int64Counter
	Resumes          metric.Int64Counter
	Waits            metric.Int64Counter
	RunFailures      metric.Int64Counter
	Downloads        metric.Int64Counter
	ResolveAttempts  metric.Int64Counter
	AlertsDispatched metric.Int64Counter
}

// New creates the counters on a meter obtained from mp.
func New(mp metric.MeterProvider) (*Recorder, error) {
	m := mp.Meter(ScopeName)
	r := &Recorder{}

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&r.Dispatches, "cirunner.dispatches", "Workflow runs dispatched"},
		{&r.Reuses, "cirunner.reuses", "Stages satisfied by an earlier successful run"},
		{&r.Resumes, "cirunner.resumes", "Stages resumed from a recorded, unfinished run"},
		{&r.Waits, "cirunner.waits", "Runs watched to a terminal state"},
		{&r.RunFailures, "cirunner.run_failures", "Runs that concluded without success"},
		{&r.Downloads, "cirunner.downloads", "Artifact downloads completed"},
		{&r.ResolveAttempts, "cirunner.resolve_attempts", "Run listings made to find a dispatched run"},
		{&r.AlertsDispatched, "cirunner.alerts", "Alerts handed to sinks"},
	}
	for _, c := range counters {
		ctr, err := m.Int64Counter(c.name, metric.WithDescription(c.desc))
		if err != nil {
			return nil, fmt.Errorf("creating counter %s: %w", c.name, err)
		}
		*c.dst = ctr
	}
	return r, nil
}

// Noop returns a recorder whose counters discard everything.
func Noop() *Recorder {
	r, _ := New(noop.NewMeterProvider())
	return r
}

// Inc adds one to c, tagged with the stage key.
func Inc(ctx context.Context, c metric.Int64Counter, stage string) {
	c.Add(ctx, 1, metric.WithAttributes(attribute.String("stage", stage)))
}
