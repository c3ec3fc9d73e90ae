package metrics

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

// instanceIDKey is the resource attribute identifying one process instance.
const instanceIDKey = "service.instance.id"

// Exporter consumes finalized checkpoints. Implementations live outside the
// engine (see export/otlp and export/prometheus); export failures must be
// reported through their own callbacks and never panic into the collection
// cycle.
type Exporter interface {
	Export(ctx context.Context, records []Record) error
}

// MeterProvider is the process-wide factory handing out Meters by scope
// name and version. It holds the shared Resource and the Batcher policy for
// all of them. Construct one at process start and pass it down; Shutdown
// flushes a final checkpoint through the configured exporter.
type MeterProvider struct {
	cfg providerConfig

	meters sync.Map // map[Scope]*Meter
	inits  sync.Map // map[Scope]*sync.Mutex

	orderMu sync.Mutex
	order   []*Meter

	shutdownOnce sync.Once
	shutdownErr  error
}

type providerConfig struct {
	resource   *Resource
	logger     Logger
	exporter   Exporter
	newBatcher func() Batcher
}

// ProviderOption configures a MeterProvider.
type ProviderOption func(*providerConfig)

// WithResource sets the shared resource attached to every record.
func WithResource(r *Resource) ProviderOption {
	return func(c *providerConfig) { c.resource = r }
}

// WithLogger sets the logger used for soft-failure diagnostics. The default
// discards everything.
func WithLogger(l Logger) ProviderOption {
	return func(c *providerConfig) { c.logger = l }
}

// WithExporter sets the exporter Shutdown flushes the final checkpoint to.
func WithExporter(e Exporter) ProviderOption {
	return func(c *providerConfig) { c.exporter = e }
}

// WithBatcher sets the factory producing each Meter's Batcher. The default
// is NewCumulativeBatcher.
func WithBatcher(newBatcher func() Batcher) ProviderOption {
	return func(c *providerConfig) { c.newBatcher = newBatcher }
}

// NewMeterProvider constructs a MeterProvider. Without WithResource the
// provider generates a resource holding only a fresh service.instance.id.
func NewMeterProvider(opts ...ProviderOption) *MeterProvider {
	cfg := providerConfig{}
	for _, o := range opts {
		if o != nil {
			o(&cfg)
		}
	}
	if cfg.resource == nil {
		cfg.resource = NewResource(map[string]any{instanceIDKey: uuid.NewString()})
	}
	if cfg.logger == nil {
		cfg.logger = newNoopLogger()
	}
	if cfg.newBatcher == nil {
		cfg.newBatcher = NewCumulativeBatcher
	}
	return &MeterProvider{cfg: cfg}
}

// Resource returns the provider's shared resource.
func (p *MeterProvider) Resource() *Resource { return p.cfg.resource }

// Meter returns the Meter for the given scope name, creating it on first
// use. Repeated calls with the same name and version return the same Meter.
func (p *MeterProvider) Meter(name string, opts ...MeterOption) *Meter {
	scope := Scope{Name: name}
	for _, o := range opts {
		if o != nil {
			o(&scope)
		}
	}

	if v, ok := p.meters.Load(scope); ok {
		return v.(*Meter)
	}

	mu, _ := p.inits.LoadOrStore(scope, &sync.Mutex{})
	km := mu.(*sync.Mutex)
	km.Lock()
	defer km.Unlock()

	if v, ok := p.meters.Load(scope); ok {
		return v.(*Meter)
	}
	m := newMeter(scope, p.cfg.resource, p.cfg.newBatcher(), p.cfg.logger)
	p.meters.Store(scope, m)
	p.orderMu.Lock()
	p.order = append(p.order, m)
	p.orderMu.Unlock()
	p.inits.Delete(scope)
	return m
}

// MeterOption configures the scope of a Meter handed out by Meter.
type MeterOption func(*Scope)

// WithVersion sets the instrumentation-scope version.
func WithVersion(version string) MeterOption {
	return func(s *Scope) { s.Version = version }
}

// Collect runs a collection cycle on every Meter, in creation order, and
// returns the concatenated checkpoints.
func (p *MeterProvider) Collect(ctx context.Context) ([]Record, error) {
	p.orderMu.Lock()
	meters := append([]*Meter(nil), p.order...)
	p.orderMu.Unlock()

	var out []Record
	var errs []error
	for _, m := range meters {
		records, err := m.Collect(ctx)
		out = append(out, records...)
		if err != nil {
			errs = append(errs, err)
		}
	}
	return out, errors.Join(errs...)
}

// Shutdown runs a final collection cycle and, when an exporter is
// configured, flushes the checkpoint through it. Subsequent calls return
// the first call's result.
func (p *MeterProvider) Shutdown(ctx context.Context) error {
	p.shutdownOnce.Do(func() {
		records, err := p.Collect(ctx)
		if err != nil {
			p.shutdownErr = err
			return
		}
		if p.cfg.exporter != nil && len(records) > 0 {
			p.shutdownErr = p.cfg.exporter.Export(ctx, records)
		}
	})
	return p.shutdownErr
}
