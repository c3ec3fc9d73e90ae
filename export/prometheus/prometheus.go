// Package prometheus bridges checkpointed metric records into a Prometheus
// registry. The bridge runs a collection cycle on every scrape and emits
// const metrics, so the engine stays the single source of truth. The caller
// owns the Registerer, as with any other collector.
package prometheus

import (
	"context"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/statsforge/metrics"
)

// Gatherer is the engine surface the bridge scrapes; *metrics.Meter and
// *metrics.MeterProvider both satisfy it.
type Gatherer interface {
	Collect(ctx context.Context) ([]metrics.Record, error)
}

type config struct {
	namespace string
	onError   func(error)
}

// Option configures the bridge.
type Option func(*config)

// WithNamespace prefixes every exposed metric name.
func WithNamespace(ns string) Option {
	return func(c *config) { c.namespace = ns }
}

// WithErrorHandler sets the callback receiving collection and conversion
// errors. Errors are otherwise dropped; a scrape never fails half-way.
func WithErrorHandler(f func(error)) Option {
	return func(c *config) { c.onError = f }
}

// Bridge implements prometheus.Collector over the engine's checkpoints.
type Bridge struct {
	gatherer Gatherer
	cfg      config
}

// New constructs a Bridge and, when reg is non-nil, registers it.
func New(reg prometheus.Registerer, g Gatherer, opts ...Option) (*Bridge, error) {
	cfg := config{}
	for _, o := range opts {
		if o != nil {
			o(&cfg)
		}
	}
	b := &Bridge{gatherer: g, cfg: cfg}
	if reg != nil {
		if err := reg.Register(b); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// Describe sends no descriptors; the bridge is an unchecked collector since
// the instrument set grows at runtime.
func (b *Bridge) Describe(chan<- *prometheus.Desc) {}

// Collect runs a collection cycle and converts the checkpoint.
func (b *Bridge) Collect(ch chan<- prometheus.Metric) {
	records, err := b.gatherer.Collect(context.Background())
	if err != nil {
		b.report(err)
	}
	for _, rec := range records {
		m, err := b.convert(rec)
		if err != nil {
			b.report(err)
			continue
		}
		if m != nil {
			ch <- m
		}
	}
}

func (b *Bridge) convert(rec metrics.Record) (prometheus.Metric, error) {
	desc := rec.Descriptor()
	pairs := rec.Labels().Pairs()
	keys := make([]string, len(pairs))
	values := make([]string, len(pairs))
	for i, p := range pairs {
		keys[i] = sanitize(p.Key)
		values[i] = p.Value
	}
	name := sanitize(desc.Name())
	if b.cfg.namespace != "" {
		name = b.cfg.namespace + "_" + name
	}
	pdesc := prometheus.NewDesc(name, desc.Description(), keys, nil)

	switch agg := rec.Aggregation().(type) {
	case metrics.SumSnapshot:
		valueType := prometheus.GaugeValue
		if desc.Monotonic() {
			valueType = prometheus.CounterValue
		}
		return prometheus.NewConstMetric(pdesc, valueType, agg.Value.AsFloat64(), values...)
	case metrics.DistributionSnapshot:
		if agg.Count == 0 {
			// empty distribution: min/max sentinels are not observations
			return prometheus.NewConstSummary(pdesc, 0, 0, nil, values...)
		}
		quantiles := map[float64]float64{
			0: agg.Min.AsFloat64(),
			1: agg.Max.AsFloat64(),
		}
		return prometheus.NewConstSummary(pdesc, uint64(agg.Count), agg.Sum.AsFloat64(), quantiles, values...)
	default:
		return nil, nil
	}
}

func (b *Bridge) report(err error) {
	if b.cfg.onError != nil {
		b.cfg.onError(err)
	}
}

// sanitize maps a metric or label name onto the Prometheus charset.
func sanitize(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == ':':
			return r
		default:
			return '_'
		}
	}, name)
}
