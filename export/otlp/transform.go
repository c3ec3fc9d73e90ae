package otlp

import (
	"fmt"
	"time"

	collectormetricspb "go.opentelemetry.io/proto/otlp/collector/metrics/v1"
	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
	metricspb "go.opentelemetry.io/proto/otlp/metrics/v1"
	resourcepb "go.opentelemetry.io/proto/otlp/resource/v1"

	"github.com/statsforge/metrics"
)

const serviceNameKey = "service.name"

// transform converts one checkpoint into an export request: a single
// resource-metrics envelope (all records of a provider share one resource)
// with records grouped by instrumentation scope in first-seen order.
func transform(records []metrics.Record, serviceName string, extra map[string]any) *collectormetricspb.ExportMetricsServiceRequest {
	if len(records) == 0 {
		return &collectormetricspb.ExportMetricsServiceRequest{}
	}

	var scopes []*metricspb.ScopeMetrics
	index := make(map[metrics.Scope]*metricspb.ScopeMetrics)
	for _, rec := range records {
		sm, ok := index[rec.Scope()]
		if !ok {
			sm = &metricspb.ScopeMetrics{
				Scope: &commonpb.InstrumentationScope{
					Name:    rec.Scope().Name,
					Version: rec.Scope().Version,
				},
			}
			index[rec.Scope()] = sm
			scopes = append(scopes, sm)
		}
		sm.Metrics = append(sm.Metrics, transformRecord(rec))
	}

	return &collectormetricspb.ExportMetricsServiceRequest{
		ResourceMetrics: []*metricspb.ResourceMetrics{{
			Resource:     transformResource(records[0].Resource(), serviceName, extra),
			ScopeMetrics: scopes,
		}},
	}
}

func transformResource(res *metrics.Resource, serviceName string, extra map[string]any) *resourcepb.Resource {
	out := &resourcepb.Resource{}
	seen := make(map[string]bool)
	put := func(key string, value any) {
		if seen[key] {
			return
		}
		seen[key] = true
		out.Attributes = append(out.Attributes, &commonpb.KeyValue{Key: key, Value: anyValue(value)})
	}
	// later sources never override earlier ones, so the explicit service
	// name goes first
	if serviceName != "" {
		put(serviceNameKey, serviceName)
	}
	for _, kv := range res.Attributes() {
		put(kv.Key, kv.Value)
	}
	for _, kv := range metrics.NewResource(extra).Attributes() {
		put(kv.Key, kv.Value)
	}
	return out
}

// anyValue encodes an attribute value. Strings and bools keep their type;
// every numeric type becomes a double; anything else is stringified.
func anyValue(v any) *commonpb.AnyValue {
	switch t := v.(type) {
	case string:
		return &commonpb.AnyValue{Value: &commonpb.AnyValue_StringValue{StringValue: t}}
	case bool:
		return &commonpb.AnyValue{Value: &commonpb.AnyValue_BoolValue{BoolValue: t}}
	case float64:
		return &commonpb.AnyValue{Value: &commonpb.AnyValue_DoubleValue{DoubleValue: t}}
	case float32:
		return &commonpb.AnyValue{Value: &commonpb.AnyValue_DoubleValue{DoubleValue: float64(t)}}
	case int:
		return &commonpb.AnyValue{Value: &commonpb.AnyValue_DoubleValue{DoubleValue: float64(t)}}
	case int32:
		return &commonpb.AnyValue{Value: &commonpb.AnyValue_DoubleValue{DoubleValue: float64(t)}}
	case int64:
		return &commonpb.AnyValue{Value: &commonpb.AnyValue_DoubleValue{DoubleValue: float64(t)}}
	case uint:
		return &commonpb.AnyValue{Value: &commonpb.AnyValue_DoubleValue{DoubleValue: float64(t)}}
	case uint32:
		return &commonpb.AnyValue{Value: &commonpb.AnyValue_DoubleValue{DoubleValue: float64(t)}}
	case uint64:
		return &commonpb.AnyValue{Value: &commonpb.AnyValue_DoubleValue{DoubleValue: float64(t)}}
	default:
		return &commonpb.AnyValue{Value: &commonpb.AnyValue_StringValue{StringValue: fmt.Sprint(t)}}
	}
}

func transformRecord(rec metrics.Record) *metricspb.Metric {
	desc := rec.Descriptor()
	m := &metricspb.Metric{
		Name:        desc.Name(),
		Description: desc.Description(),
		Unit:        desc.Unit(),
	}

	switch agg := rec.Aggregation().(type) {
	case metrics.SumSnapshot:
		point := numberPoint(rec, agg.Value, agg.StartTime(), agg.Time())
		if desc.Kind() == metrics.ValueObserverKind {
			// observed sums are instantaneous gauges
			m.Data = &metricspb.Metric_Gauge{Gauge: &metricspb.Gauge{
				DataPoints: []*metricspb.NumberDataPoint{point},
			}}
		} else {
			m.Data = &metricspb.Metric_Sum{Sum: &metricspb.Sum{
				DataPoints:             []*metricspb.NumberDataPoint{point},
				AggregationTemporality: temporality(desc.Kind()),
				IsMonotonic:            desc.Monotonic(),
			}}
		}
	case metrics.DistributionSnapshot:
		m.Data = &metricspb.Metric_Summary{Summary: &metricspb.Summary{
			DataPoints: []*metricspb.SummaryDataPoint{{
				Attributes:        labelAttributes(rec.Labels()),
				StartTimeUnixNano: unixNanos(agg.StartTime()),
				TimeUnixNano:      unixNanos(agg.Time()),
				Count:             uint64(agg.Count),
				Sum:               agg.Sum.AsFloat64(),
				QuantileValues: []*metricspb.SummaryDataPoint_ValueAtQuantile{
					{Quantile: 0, Value: agg.Min.AsFloat64()},
					{Quantile: 1, Value: agg.Max.AsFloat64()},
				},
			}},
		}}
	}
	return m
}

// numberPoint branches on the record's value kind: int64-valued records
// populate integer data points, float64-valued records double data points.
func numberPoint(rec metrics.Record, value metrics.Number, start, at time.Time) *metricspb.NumberDataPoint {
	point := &metricspb.NumberDataPoint{
		Attributes:        labelAttributes(rec.Labels()),
		StartTimeUnixNano: unixNanos(start),
		TimeUnixNano:      unixNanos(at),
	}
	if rec.Descriptor().ValueKind() == metrics.Int64Kind {
		point.Value = &metricspb.NumberDataPoint_AsInt{AsInt: value.AsInt64()}
	} else {
		point.Value = &metricspb.NumberDataPoint_AsDouble{AsDouble: value.AsFloat64()}
	}
	return point
}

// labelAttributes encodes metric labels as plain string key-value pairs.
func labelAttributes(set metrics.LabelSet) []*commonpb.KeyValue {
	pairs := set.Pairs()
	if len(pairs) == 0 {
		return nil
	}
	out := make([]*commonpb.KeyValue, len(pairs))
	for i, p := range pairs {
		out[i] = &commonpb.KeyValue{
			Key:   p.Key,
			Value: &commonpb.AnyValue{Value: &commonpb.AnyValue_StringValue{StringValue: p.Value}},
		}
	}
	return out
}

// temporality maps instrument kind to wire temporality: counters are
// cumulative, recorders report per-interval deltas, observers are
// instantaneous (represented as gauges, which carry no temporality), and
// anything unrecognized gets the unspecified sentinel.
func temporality(kind metrics.Kind) metricspb.AggregationTemporality {
	switch kind {
	case metrics.CounterKind, metrics.UpDownCounterKind:
		return metricspb.AggregationTemporality_AGGREGATION_TEMPORALITY_CUMULATIVE
	case metrics.ValueRecorderKind:
		return metricspb.AggregationTemporality_AGGREGATION_TEMPORALITY_DELTA
	default:
		return metricspb.AggregationTemporality_AGGREGATION_TEMPORALITY_UNSPECIFIED
	}
}

func unixNanos(t time.Time) uint64 {
	if t.IsZero() {
		return 0
	}
	return uint64(t.UnixNano())
}
