package metrics

import "sync"

// instrument is the shared core of every instrument variant: a descriptor
// plus a table of bound instruments keyed by label-set fingerprint. Buckets
// hold collision lists; entries within a bucket are resolved on the
// canonical label encoding, so distinct label sets never share an
// aggregator even under a fingerprint collision.
type instrument struct {
	desc   Descriptor
	newAgg func() Aggregator

	mu    sync.Mutex
	bound map[uint64][]*boundInstrument
}

func newInstrument(desc Descriptor, newAgg func() Aggregator) *instrument {
	return &instrument{
		desc:   desc,
		newAgg: newAgg,
		bound:  make(map[uint64][]*boundInstrument),
	}
}

// bind returns the bound instrument for set, creating it on first use.
// Repeated calls with an equivalent label set return the same pointer.
func (i *instrument) bind(set LabelSet) *boundInstrument {
	i.mu.Lock()
	defer i.mu.Unlock()
	fp := set.Fingerprint()
	for _, b := range i.bound[fp] {
		if b.labels.Equal(set) {
			return b
		}
	}
	b := &boundInstrument{inst: i, labels: set, agg: i.newAgg()}
	i.bound[fp] = append(i.bound[fp], b)
	return b
}

// unbind drops the bound instrument for set, if any. A later bind with an
// equivalent set creates a fresh bound instrument with a zeroed aggregator.
func (i *instrument) unbind(set LabelSet) {
	i.mu.Lock()
	defer i.mu.Unlock()
	fp := set.Fingerprint()
	bucket := i.bound[fp]
	for n, b := range bucket {
		if b.labels.Equal(set) {
			bucket = append(bucket[:n], bucket[n+1:]...)
			if len(bucket) == 0 {
				delete(i.bound, fp)
			} else {
				i.bound[fp] = bucket
			}
			return
		}
	}
}

// clear drops every bound instrument of the instrument.
func (i *instrument) clear() {
	i.mu.Lock()
	i.bound = make(map[uint64][]*boundInstrument)
	i.mu.Unlock()
}

// each calls f for every bound instrument. It snapshots the table under the
// lock and runs f outside it, so f may bind or write without deadlocking.
func (i *instrument) each(f func(*boundInstrument)) {
	i.mu.Lock()
	all := make([]*boundInstrument, 0, len(i.bound))
	for _, bucket := range i.bound {
		all = append(all, bucket...)
	}
	i.mu.Unlock()
	for _, b := range all {
		f(b)
	}
}

// boundInstrument is a label-set-scoped handle owning one aggregator.
type boundInstrument struct {
	inst   *instrument
	labels LabelSet
	agg    Aggregator
}

// update applies one measurement, enforcing the write-path policy: disabled
// instruments discard everything, monotonic instruments drop negative
// values. Both cases are silent.
func (b *boundInstrument) update(n Number) {
	d := &b.inst.desc
	if d.disabled {
		return
	}
	if d.monotonic && n.IsNegative() {
		return
	}
	b.agg.Update(n.coerce(d.valueKind))
}

// Measurement pairs an instrument with a value for Meter.RecordBatch.
type Measurement struct {
	inst *instrument
	n    Number
}

// syncInstrument adds the operations shared by the synchronous instrument
// variants. Its methods are promoted onto Counter, UpDownCounter and
// ValueRecorder.
type syncInstrument struct {
	*instrument
}

// Descriptor returns a copy of the instrument's descriptor.
func (s syncInstrument) Descriptor() Descriptor { return s.desc }

// Unbind drops the bound instrument for labels, if one exists.
func (s syncInstrument) Unbind(labels Labels) { s.unbind(NewLabelSet(labels)) }

// Clear drops all bound instruments of this instrument.
func (s syncInstrument) Clear() { s.clear() }

// Counter is a monotonic adding instrument. Negative deltas are silently
// dropped at write time.
type Counter struct {
	syncInstrument
}

// Bind returns the bound counter for labels, creating it on first use.
func (c *Counter) Bind(labels Labels) *BoundCounter {
	return (*BoundCounter)(c.bind(NewLabelSet(labels)))
}

// Add records delta against labels, binding implicitly for the duration of
// the call. A nil labels map addresses the empty label set.
func (c *Counter) Add(delta Number, labels Labels) {
	c.bind(NewLabelSet(labels)).update(delta)
}

// Measurement returns a deferred measurement for Meter.RecordBatch.
func (c *Counter) Measurement(delta Number) Measurement {
	return Measurement{inst: c.instrument, n: delta}
}

// BoundCounter is a Counter bound to one label set.
type BoundCounter boundInstrument

// Add records delta into the bound aggregator.
func (b *BoundCounter) Add(delta Number) { (*boundInstrument)(b).update(delta) }

// UpDownCounter is a non-monotonic adding instrument; deltas of any sign
// are applied.
type UpDownCounter struct {
	syncInstrument
}

// Bind returns the bound counter for labels, creating it on first use.
func (c *UpDownCounter) Bind(labels Labels) *BoundUpDownCounter {
	return (*BoundUpDownCounter)(c.bind(NewLabelSet(labels)))
}

// Add records delta against labels, binding implicitly for the duration of
// the call.
func (c *UpDownCounter) Add(delta Number, labels Labels) {
	c.bind(NewLabelSet(labels)).update(delta)
}

// Measurement returns a deferred measurement for Meter.RecordBatch.
func (c *UpDownCounter) Measurement(delta Number) Measurement {
	return Measurement{inst: c.instrument, n: delta}
}

// BoundUpDownCounter is an UpDownCounter bound to one label set.
type BoundUpDownCounter boundInstrument

// Add records delta into the bound aggregator.
func (b *BoundUpDownCounter) Add(delta Number) { (*boundInstrument)(b).update(delta) }

// ValueRecorder is a synchronous distribution instrument. Absolute
// recorders (the default) silently drop negative values; construct with
// WithNonAbsolute to accept any sign.
type ValueRecorder struct {
	syncInstrument
}

// Bind returns the bound recorder for labels, creating it on first use.
func (r *ValueRecorder) Bind(labels Labels) *BoundValueRecorder {
	return (*BoundValueRecorder)(r.bind(NewLabelSet(labels)))
}

// Record folds value into the distribution for labels, binding implicitly
// for the duration of the call.
func (r *ValueRecorder) Record(value Number, labels Labels) {
	r.bind(NewLabelSet(labels)).update(value)
}

// Measurement returns a deferred measurement for Meter.RecordBatch.
func (r *ValueRecorder) Measurement(value Number) Measurement {
	return Measurement{inst: r.instrument, n: value}
}

// BoundValueRecorder is a ValueRecorder bound to one label set.
type BoundValueRecorder boundInstrument

// Record folds value into the bound distribution.
func (b *BoundValueRecorder) Record(value Number) { (*boundInstrument)(b).update(value) }
