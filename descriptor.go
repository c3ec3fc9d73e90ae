package metrics

import "regexp"

// Kind identifies one of the five instrument variants. The set is closed;
// the Batcher selects an aggregator purely from this tag.
type Kind uint8

const (
	// CounterKind is a monotonic, synchronous adding instrument.
	CounterKind Kind = iota
	// UpDownCounterKind is a non-monotonic, synchronous adding instrument.
	UpDownCounterKind
	// ValueRecorderKind is a synchronous grouping (distribution) instrument.
	ValueRecorderKind
	// ValueObserverKind is an asynchronous instrument refreshed once per
	// collection cycle through a callback. Batch-observed metrics are
	// ValueObserver instruments updated by a shared batch callback.
	ValueObserverKind
)

// String returns a short lowercase name for the kind.
func (k Kind) String() string {
	switch k {
	case CounterKind:
		return "counter"
	case UpDownCounterKind:
		return "updowncounter"
	case ValueRecorderKind:
		return "valuerecorder"
	case ValueObserverKind:
		return "valueobserver"
	default:
		return "unknown"
	}
}

// Synchronous reports whether instruments of this kind are written directly
// by application code, as opposed to being refreshed by a collection-cycle
// callback.
func (k Kind) Synchronous() bool {
	return k == CounterKind || k == UpDownCounterKind || k == ValueRecorderKind
}

// Descriptor is the static, immutable description of an instrument, created
// once when the instrument is registered and never modified afterwards.
type Descriptor struct {
	name        string
	kind        Kind
	valueKind   ValueKind
	description string
	unit        string
	// monotonic instruments silently drop negative measurements. For a
	// ValueRecorder this reflects the absolute setting.
	monotonic bool
	disabled  bool
}

// Name returns the instrument name.
func (d Descriptor) Name() string { return d.name }

// Kind returns the instrument kind.
func (d Descriptor) Kind() Kind { return d.kind }

// ValueKind returns the numeric kind measurements carry.
func (d Descriptor) ValueKind() ValueKind { return d.valueKind }

// Description returns the advisory description.
func (d Descriptor) Description() string { return d.description }

// Unit returns the advisory unit.
func (d Descriptor) Unit() string { return d.unit }

// Monotonic reports whether negative measurements are dropped.
func (d Descriptor) Monotonic() bool { return d.monotonic }

// Disabled reports whether writes to the instrument are discarded.
func (d Descriptor) Disabled() bool { return d.disabled }

var instrumentNameRE = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_.\-]*$`)

// validInstrumentName reports whether name may identify a real instrument.
// Names must start with a letter and contain only ASCII letters, digits,
// '_', '.' and '-'. Invalid names yield a no-op instrument, not an error.
func validInstrumentName(name string) bool {
	return instrumentNameRE.MatchString(name)
}

func newDescriptor(name string, kind Kind, cfg InstrumentConfig) Descriptor {
	monotonic := false
	switch kind {
	case CounterKind:
		monotonic = true
	case ValueRecorderKind:
		monotonic = cfg.absolute
	}
	return Descriptor{
		name:        name,
		kind:        kind,
		valueKind:   cfg.valueKindFor(kind),
		description: cfg.Description,
		unit:        cfg.Unit,
		monotonic:   monotonic,
		disabled:    cfg.Disabled,
	}
}
