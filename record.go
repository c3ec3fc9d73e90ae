package metrics

import "sort"

// Scope identifies the instrumentation scope (the code module) that created
// a Meter.
type Scope struct {
	Name    string
	Version string
}

// KeyValue is one resource attribute. Value is one of string, bool or a
// numeric type; exporters treat all numbers as doubles.
type KeyValue struct {
	Key   string
	Value any
}

// Resource is the shared, immutable attribute set describing the producing
// entity. It is set at MeterProvider construction and attached to every
// record of every Meter the provider hands out.
type Resource struct {
	attrs []KeyValue
}

// NewResource builds a Resource from attrs, sorted by key. The map is
// copied.
func NewResource(attrs map[string]any) *Resource {
	out := make([]KeyValue, 0, len(attrs))
	for k, v := range attrs {
		out = append(out, KeyValue{Key: k, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return &Resource{attrs: out}
}

// Attributes returns a copy of the attribute list, sorted by key.
func (r *Resource) Attributes() []KeyValue {
	if r == nil {
		return nil
	}
	out := make([]KeyValue, len(r.attrs))
	copy(out, r.attrs)
	return out
}

// Len returns the number of attributes.
func (r *Resource) Len() int {
	if r == nil {
		return 0
	}
	return len(r.attrs)
}

// Record is the export unit: one instrument, one label set, one checkpointed
// aggregation, plus the owning resource and instrumentation scope. Records
// are created fresh at each checkpoint and never mutated afterwards.
type Record struct {
	descriptor  Descriptor
	labels      LabelSet
	aggregation Aggregation
	resource    *Resource
	scope       Scope
}

// Descriptor returns a copy of the instrument descriptor.
func (r Record) Descriptor() Descriptor { return r.descriptor }

// Labels returns the record's label set.
func (r Record) Labels() LabelSet { return r.labels }

// Aggregation returns the checkpointed aggregator snapshot.
func (r Record) Aggregation() Aggregation { return r.aggregation }

// Resource returns the shared resource of the producing Meter.
func (r Record) Resource() *Resource { return r.resource }

// Scope returns the instrumentation scope of the producing Meter.
func (r Record) Scope() Scope { return r.scope }

// stateKey identifies a record's time series within a Batcher: instrument
// name plus the canonical label encoding (which starts with "|#", so names
// cannot collide with it).
func (r Record) stateKey() string {
	return r.descriptor.name + r.labels.encoded
}
