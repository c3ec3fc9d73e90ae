package otlp

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
	metricspb "go.opentelemetry.io/proto/otlp/metrics/v1"

	"github.com/statsforge/metrics"
)

// collectRecords runs build against a fresh provider with the given resource
// attributes and returns one collection cycle's checkpoint.
func collectRecords(t *testing.T, attrs map[string]any, build func(p *metrics.MeterProvider)) []metrics.Record {
	t.Helper()
	p := metrics.NewMeterProvider(metrics.WithResource(metrics.NewResource(attrs)))
	build(p)
	records, err := p.Collect(context.Background())
	require.NoError(t, err)
	return records
}

func TestTransformCounter(t *testing.T) {
	records := collectRecords(t, map[string]any{"region": "eu"}, func(p *metrics.MeterProvider) {
		c := p.Meter("pkg", metrics.WithVersion("1.2.3")).NewCounter("requests",
			metrics.WithDescription("handled requests"),
			metrics.WithUnit("1"),
		)
		c.Add(metrics.Int64(5), metrics.Labels{"route": "/a"})
	})

	req := transform(records, "svc", map[string]any{"env": "prod", "replicas": 3})
	require.Len(t, req.ResourceMetrics, 1)
	rm := req.ResourceMetrics[0]

	keys := make([]string, len(rm.Resource.Attributes))
	for i, kv := range rm.Resource.Attributes {
		keys[i] = kv.Key
	}
	// explicit service name first, record resource next, extras last
	assert.Equal(t, []string{"service.name", "region", "env", "replicas"}, keys)
	assert.Equal(t, "svc", rm.Resource.Attributes[0].Value.GetStringValue())
	assert.Equal(t, "eu", rm.Resource.Attributes[1].Value.GetStringValue())
	assert.Equal(t, "prod", rm.Resource.Attributes[2].Value.GetStringValue())
	assert.Equal(t, 3.0, rm.Resource.Attributes[3].Value.GetDoubleValue(), "numeric attributes become doubles")

	require.Len(t, rm.ScopeMetrics, 1)
	sm := rm.ScopeMetrics[0]
	assert.Equal(t, "pkg", sm.Scope.Name)
	assert.Equal(t, "1.2.3", sm.Scope.Version)

	require.Len(t, sm.Metrics, 1)
	m := sm.Metrics[0]
	assert.Equal(t, "requests", m.Name)
	assert.Equal(t, "handled requests", m.Description)
	assert.Equal(t, "1", m.Unit)

	sum := m.GetSum()
	require.NotNil(t, sum)
	assert.True(t, sum.IsMonotonic)
	assert.Equal(t, metricspb.AggregationTemporality_AGGREGATION_TEMPORALITY_CUMULATIVE, sum.AggregationTemporality)
	require.Len(t, sum.DataPoints, 1)
	point := sum.DataPoints[0]
	assert.Equal(t, int64(5), point.GetAsInt(), "int-valued instruments use integer points")
	require.Len(t, point.Attributes, 1)
	assert.Equal(t, &commonpb.KeyValue{
		Key:   "route",
		Value: &commonpb.AnyValue{Value: &commonpb.AnyValue_StringValue{StringValue: "/a"}},
	}, point.Attributes[0])
	assert.NotZero(t, point.TimeUnixNano)
}

func TestTransformUpDownCounterDouble(t *testing.T) {
	records := collectRecords(t, nil, func(p *metrics.MeterProvider) {
		c := p.Meter("pkg").NewUpDownCounter("inflight", metrics.WithValueKind(metrics.Float64Kind))
		c.Add(metrics.Float64(2.5), nil)
	})

	req := transform(records, "", nil)
	sum := req.ResourceMetrics[0].ScopeMetrics[0].Metrics[0].GetSum()
	require.NotNil(t, sum)
	assert.False(t, sum.IsMonotonic)
	assert.Equal(t, 2.5, sum.DataPoints[0].GetAsDouble(), "float-valued instruments use double points")
}

func TestTransformRecorderSummary(t *testing.T) {
	records := collectRecords(t, nil, func(p *metrics.MeterProvider) {
		r := p.Meter("pkg").NewValueRecorder("latency")
		r.Record(metrics.Float64(2), nil)
		r.Record(metrics.Float64(10), nil)
	})

	req := transform(records, "", nil)
	summary := req.ResourceMetrics[0].ScopeMetrics[0].Metrics[0].GetSummary()
	require.NotNil(t, summary)
	require.Len(t, summary.DataPoints, 1)
	point := summary.DataPoints[0]
	assert.Equal(t, uint64(2), point.Count)
	assert.Equal(t, 12.0, point.Sum)
	require.Len(t, point.QuantileValues, 2)
	assert.Equal(t, 0.0, point.QuantileValues[0].Quantile)
	assert.Equal(t, 2.0, point.QuantileValues[0].Value, "quantile 0 carries the minimum")
	assert.Equal(t, 1.0, point.QuantileValues[1].Quantile)
	assert.Equal(t, 10.0, point.QuantileValues[1].Value, "quantile 1 carries the maximum")
}

// sumBatcher forces Sum aggregation for every instrument so observed values
// checkpoint as sums rather than distributions.
type sumBatcher struct {
	metrics.Batcher
}

func (sumBatcher) AggregatorFor(desc *metrics.Descriptor) metrics.Aggregator {
	return metrics.NewSumAggregator(desc)
}

func TestTransformObserverGauge(t *testing.T) {
	p := metrics.NewMeterProvider(
		metrics.WithResource(metrics.NewResource(nil)),
		metrics.WithBatcher(func() metrics.Batcher {
			return sumBatcher{metrics.NewCumulativeBatcher()}
		}),
	)
	p.Meter("pkg").NewValueObserver("temperature", func(result *metrics.ObserverResult) {
		result.Observe(metrics.Float64(21.5), nil)
	})
	records, err := p.Collect(context.Background())
	require.NoError(t, err)

	req := transform(records, "", nil)
	m := req.ResourceMetrics[0].ScopeMetrics[0].Metrics[0]
	require.NotNil(t, m.GetGauge(), "observed sums are gauges, not sums")
	assert.Nil(t, m.GetSum())
	assert.Equal(t, 21.5, m.GetGauge().DataPoints[0].GetAsDouble())
}

func TestTransformGroupsByScope(t *testing.T) {
	records := collectRecords(t, nil, func(p *metrics.MeterProvider) {
		p.Meter("a").NewCounter("ca").Add(metrics.Int64(1), nil)
		p.Meter("b").NewCounter("cb").Add(metrics.Int64(2), nil)
	})

	req := transform(records, "", nil)
	require.Len(t, req.ResourceMetrics, 1)
	scopes := req.ResourceMetrics[0].ScopeMetrics
	require.Len(t, scopes, 2)
	assert.Equal(t, "a", scopes[0].Scope.Name)
	assert.Equal(t, "b", scopes[1].Scope.Name)
	require.Len(t, scopes[0].Metrics, 1)
	require.Len(t, scopes[1].Metrics, 1)
}

func TestTransformEmptyCheckpoint(t *testing.T) {
	req := transform(nil, "svc", nil)
	assert.Empty(t, req.ResourceMetrics)
}

func TestTemporality(t *testing.T) {
	assert.Equal(t, metricspb.AggregationTemporality_AGGREGATION_TEMPORALITY_CUMULATIVE, temporality(metrics.CounterKind))
	assert.Equal(t, metricspb.AggregationTemporality_AGGREGATION_TEMPORALITY_CUMULATIVE, temporality(metrics.UpDownCounterKind))
	assert.Equal(t, metricspb.AggregationTemporality_AGGREGATION_TEMPORALITY_DELTA, temporality(metrics.ValueRecorderKind))
	assert.Equal(t, metricspb.AggregationTemporality_AGGREGATION_TEMPORALITY_UNSPECIFIED, temporality(metrics.ValueObserverKind))
}
