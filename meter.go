package metrics

import (
	"context"
	"sync"
)

// Meter owns the instrument registry for one instrumentation scope and
// drives the collection cycle end to end. Create Meters through a
// MeterProvider.
//
// Instrument names are unique per Meter across all five variants: a second
// New* call with an already-registered name returns the original instrument
// and silently ignores any differing configuration. If the original was
// registered with a different variant, the call returns the Meter's shared
// no-op instrument instead, since the original cannot be returned under the
// requested type.
type Meter struct {
	scope    Scope
	resource *Resource
	batcher  Batcher
	logger   Logger

	// instruments maps name to one of *Counter, *UpDownCounter,
	// *ValueRecorder, *ValueObserver or *BatchObserver. Per-name init
	// mutexes make check-then-insert atomic so the first registration
	// wins under concurrent creation.
	instruments sync.Map
	inits       sync.Map

	listMu         sync.Mutex
	order          []any
	observers      []*ValueObserver
	batchObservers []*BatchObserver

	noopOnce sync.Once
	noop     *instrument

	// collectMu serializes collection cycles and guards the cached
	// checkpoint of the last completed cycle.
	collectMu  sync.Mutex
	checkpoint []Record
}

func newMeter(scope Scope, resource *Resource, b Batcher, l Logger) *Meter {
	return &Meter{scope: scope, resource: resource, batcher: b, logger: l}
}

// Scope returns the Meter's instrumentation scope.
func (m *Meter) Scope() Scope { return m.scope }

// Resource returns the shared resource attached to the Meter's records.
func (m *Meter) Resource() *Resource { return m.resource }

// keyMu returns the per-name init mutex, creating one if necessary.
func (m *Meter) keyMu(name string) *sync.Mutex {
	mu, _ := m.inits.LoadOrStore(name, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// register returns the instrument stored under name, constructing and
// storing a new one on first registration. construct runs at most once per
// name across concurrent callers.
func (m *Meter) register(name string, construct func() any) any {
	// fast read path
	if v, ok := m.instruments.Load(name); ok {
		return v
	}

	km := m.keyMu(name)
	km.Lock()
	defer km.Unlock()

	// re-check after acquiring the per-name mutex
	if v, ok := m.instruments.Load(name); ok {
		return v
	}
	inst := construct()
	m.instruments.Store(name, inst)

	m.listMu.Lock()
	m.order = append(m.order, inst)
	switch t := inst.(type) {
	case *ValueObserver:
		m.observers = append(m.observers, t)
	case *BatchObserver:
		m.batchObservers = append(m.batchObservers, t)
	}
	m.listMu.Unlock()

	// allow GC of init mutexes for ephemeral names
	m.inits.Delete(name)
	return inst
}

// newInstrument wires a descriptor to the Meter's Batcher for aggregator
// selection.
func (m *Meter) newInstrument(desc Descriptor) *instrument {
	d := desc
	return newInstrument(d, func() Aggregator { return m.batcher.AggregatorFor(&d) })
}

// noopInstrument returns the Meter's shared discard instrument, handed out
// for invalid names and variant-mismatched duplicate registrations. It is
// never part of the registry, so it never contributes records.
func (m *Meter) noopInstrument() *instrument {
	m.noopOnce.Do(func() {
		desc := Descriptor{name: "noop", disabled: true}
		m.noop = newInstrument(desc, func() Aggregator { return NewSumAggregator(&desc) })
	})
	return m.noop
}

func (m *Meter) rejectName(name string) bool {
	if validInstrumentName(name) {
		return false
	}
	m.logger.Warnf("metrics: invalid instrument name %q, returning no-op instrument", name)
	return true
}

func (m *Meter) rejectKind(name string, got any) {
	m.logger.Warnf("metrics: instrument %q already registered as %T, returning no-op instrument", name, got)
}

// NewCounter creates (or returns the previously registered) monotonic
// counter with the given name.
func (m *Meter) NewCounter(name string, opts ...InstrumentOption) *Counter {
	if m.rejectName(name) {
		return &Counter{syncInstrument{m.noopInstrument()}}
	}
	cfg := applyInstrumentOptions(opts)
	v := m.register(name, func() any {
		return &Counter{syncInstrument{m.newInstrument(newDescriptor(name, CounterKind, cfg))}}
	})
	c, ok := v.(*Counter)
	if !ok {
		m.rejectKind(name, v)
		return &Counter{syncInstrument{m.noopInstrument()}}
	}
	return c
}

// NewUpDownCounter creates (or returns the previously registered)
// non-monotonic counter with the given name.
func (m *Meter) NewUpDownCounter(name string, opts ...InstrumentOption) *UpDownCounter {
	if m.rejectName(name) {
		return &UpDownCounter{syncInstrument{m.noopInstrument()}}
	}
	cfg := applyInstrumentOptions(opts)
	v := m.register(name, func() any {
		return &UpDownCounter{syncInstrument{m.newInstrument(newDescriptor(name, UpDownCounterKind, cfg))}}
	})
	c, ok := v.(*UpDownCounter)
	if !ok {
		m.rejectKind(name, v)
		return &UpDownCounter{syncInstrument{m.noopInstrument()}}
	}
	return c
}

// NewValueRecorder creates (or returns the previously registered)
// distribution recorder with the given name.
func (m *Meter) NewValueRecorder(name string, opts ...InstrumentOption) *ValueRecorder {
	if m.rejectName(name) {
		return &ValueRecorder{syncInstrument{m.noopInstrument()}}
	}
	cfg := applyInstrumentOptions(opts)
	v := m.register(name, func() any {
		return &ValueRecorder{syncInstrument{m.newInstrument(newDescriptor(name, ValueRecorderKind, cfg))}}
	})
	r, ok := v.(*ValueRecorder)
	if !ok {
		m.rejectKind(name, v)
		return &ValueRecorder{syncInstrument{m.noopInstrument()}}
	}
	return r
}

// NewValueObserver creates (or returns the previously registered) observer
// instrument. callback runs once per collection cycle; it may be nil for
// instruments fed exclusively through a BatchObserver.
func (m *Meter) NewValueObserver(name string, callback ObserverCallback, opts ...InstrumentOption) *ValueObserver {
	if m.rejectName(name) {
		return &ValueObserver{instrument: m.noopInstrument()}
	}
	cfg := applyInstrumentOptions(opts)
	v := m.register(name, func() any {
		return &ValueObserver{
			instrument: m.newInstrument(newDescriptor(name, ValueObserverKind, cfg)),
			callback:   callback,
		}
	})
	o, ok := v.(*ValueObserver)
	if !ok {
		m.rejectKind(name, v)
		return &ValueObserver{instrument: m.noopInstrument()}
	}
	return o
}

// NewBatchObserver registers a callback producing observations for multiple
// sibling ValueObserver instruments under shared label sets. The
// WithObserverTimeout option bounds how long each collection cycle waits
// for the callback.
func (m *Meter) NewBatchObserver(name string, callback BatchObserverCallback, opts ...InstrumentOption) *BatchObserver {
	if m.rejectName(name) || callback == nil {
		return &BatchObserver{name: name, timeout: defaultObserverTimeout}
	}
	cfg := applyInstrumentOptions(opts)
	v := m.register(name, func() any {
		return &BatchObserver{name: name, callback: callback, timeout: cfg.timeout}
	})
	b, ok := v.(*BatchObserver)
	if !ok {
		m.rejectKind(name, v)
		return &BatchObserver{name: name, timeout: defaultObserverTimeout}
	}
	return b
}

// Instruments returns a snapshot of the descriptors registered so far, in
// registration order. Batch observers carry no descriptor and are omitted.
func (m *Meter) Instruments() []Descriptor {
	m.listMu.Lock()
	defer m.listMu.Unlock()
	out := make([]Descriptor, 0, len(m.order))
	for _, v := range m.order {
		if inst := m.underlying(v); inst != nil {
			out = append(out, inst.desc)
		}
	}
	return out
}

// RecordBatch applies one measurement per instrument against a single label
// set. Each write goes through the owning instrument's policy, so e.g. a
// negative counter delta in the batch is still dropped.
func (m *Meter) RecordBatch(labels Labels, measurements ...Measurement) {
	set := NewLabelSet(labels)
	for _, meas := range measurements {
		if meas.inst == nil {
			continue
		}
		meas.inst.bind(set).update(meas.n)
	}
}

// Collect runs one collection cycle: refresh observer instruments (value
// observers synchronously, batch observers raced against their timeout),
// then snapshot every bound instrument into the Batcher and return the
// finalized checkpoint.
//
// Writes applied before checkpointing begins are reflected in the returned
// records; later writes land in the next cycle. If ctx ends mid-cycle the
// remaining batch-observer results are cancelled, the checkpoint still
// completes, and ctx's error is returned alongside it.
//
// Callbacks must not call Collect or CheckpointSet; the cycle is serialized
// and re-entry would deadlock.
func (m *Meter) Collect(ctx context.Context) ([]Record, error) {
	m.collectMu.Lock()
	defer m.collectMu.Unlock()

	m.listMu.Lock()
	observers := append([]*ValueObserver(nil), m.observers...)
	batchObservers := append([]*BatchObserver(nil), m.batchObservers...)
	order := append([]any(nil), m.order...)
	m.listMu.Unlock()

	// Refreshing: observer instruments report per cycle, so each drops last
	// cycle's bound instruments before its callback runs.
	for _, o := range observers {
		o.refresh()
	}
	for _, b := range batchObservers {
		if b.callback == nil {
			continue
		}
		b.await(ctx)
	}

	// Checkpointing: one fresh snapshot per bound instrument.
	for _, v := range order {
		inst := m.underlying(v)
		if inst == nil {
			continue
		}
		inst.each(func(bd *boundInstrument) {
			m.batcher.Process(Record{
				descriptor:  inst.desc,
				labels:      bd.labels,
				aggregation: bd.agg.Snapshot(),
				resource:    m.resource,
				scope:       m.scope,
			})
		})
	}
	m.checkpoint = m.batcher.CheckpointSet()
	return copyRecords(m.checkpoint), ctx.Err()
}

// CheckpointSet re-reads the checkpoint of the last completed cycle.
// Until the next Collect it returns the same contents. The returned slice is
// a copy; mutating it does not affect later re-reads.
func (m *Meter) CheckpointSet() []Record {
	m.collectMu.Lock()
	defer m.collectMu.Unlock()
	return copyRecords(m.checkpoint)
}

func copyRecords(records []Record) []Record {
	out := make([]Record, len(records))
	copy(out, records)
	return out
}

// underlying extracts the shared instrument core from a registry entry.
// Batch observers have none and return nil.
func (m *Meter) underlying(v any) *instrument {
	switch t := v.(type) {
	case *Counter:
		return t.instrument
	case *UpDownCounter:
		return t.instrument
	case *ValueRecorder:
		return t.instrument
	case *ValueObserver:
		return t.instrument
	case *BatchObserver:
		return nil
	default:
		if isDebugBuild() {
			panic("metrics: unknown instrument type in registry")
		}
		m.logger.Errorf("metrics: unknown instrument type %T in registry", v)
		return nil
	}
}
