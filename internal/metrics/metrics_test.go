package metrics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestRecorder_CountsPerStage(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	rec, err := New(mp)
	require.NoError(t, err)

	ctx := context.Background()
	Inc(ctx, rec.Dispatches, "llvmdev")
	Inc(ctx, rec.Dispatches, "llvmdev")
	Inc(ctx, rec.Dispatches, "llvmlite_conda")

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	require.Len(t, rm.ScopeMetrics, 1)
	assert.Equal(t, ScopeName, rm.ScopeMetrics[0].Scope.Name)

	var sum metricdata.Sum[int64]
	for _, m := range rm.ScopeMetrics[0].Metrics {
		if m.Name == "cirunner.dispatches" {
			sum = m.Data.(metricdata.Sum[int64])
		}
	}
	require.Len(t, sum.DataPoints, 2)

	byStage := map[string]int64{}
	for _, dp := range sum.DataPoints {
		v, _ := dp.Attributes.Value(attribute.Key("stage"))
		byStage[v.AsString()] = dp.Value
	}
	assert.Equal(t, map[string]int64{"llvmdev": 2, "llvmlite_conda": 1}, byStage)
}

func TestNoop(t *testing.T) {
	rec := Noop()
	require.NotNil(t, rec)
	Inc(context.Background(), rec.Waits, "x")
}
