package metrics

import "time"

// defaultObserverTimeout bounds how long a collection cycle waits for a
// batch-observer callback that has not produced an observation yet.
const defaultObserverTimeout = 500 * time.Millisecond

// InstrumentConfig carries optional instrument settings built from options.
type InstrumentConfig struct {
	// Description is an advisory human-readable description.
	Description string
	// Unit is an advisory unit (e.g. "1", "By", "ms").
	Unit string
	// Disabled routes every write of the instrument to a discard path.
	// Bound instruments are still created so identity semantics hold, but
	// their aggregators never change.
	Disabled bool

	// absolute applies to ValueRecorder only; negative records are dropped
	// while it is set. Defaults to true.
	absolute bool
	// valueKind overrides the per-kind default when valueKindSet is true.
	valueKind    ValueKind
	valueKindSet bool
	// timeout applies to batch observers only.
	timeout time.Duration
}

// InstrumentOption mutates InstrumentConfig.
type InstrumentOption func(*InstrumentConfig)

// WithDescription sets an advisory description for the instrument.
func WithDescription(desc string) InstrumentOption {
	return func(c *InstrumentConfig) { c.Description = desc }
}

// WithUnit sets an advisory unit for the instrument.
func WithUnit(unit string) InstrumentOption {
	return func(c *InstrumentConfig) { c.Unit = unit }
}

// WithDisabled creates the instrument in the disabled state: all operations
// succeed but measurements are discarded.
func WithDisabled() InstrumentOption {
	return func(c *InstrumentConfig) { c.Disabled = true }
}

// WithNonAbsolute lets a ValueRecorder accept negative values. Recorders
// are absolute by default and silently drop negative records.
func WithNonAbsolute() InstrumentOption {
	return func(c *InstrumentConfig) { c.absolute = false }
}

// WithValueKind sets the numeric kind of the instrument's measurements.
// Defaults: counters use Int64Kind, recorders and observers Float64Kind.
func WithValueKind(kind ValueKind) InstrumentOption {
	return func(c *InstrumentConfig) { c.valueKind = kind; c.valueKindSet = true }
}

// WithObserverTimeout bounds how long one collection cycle waits for a
// batch-observer callback before cancelling its result. Non-positive values
// keep the default.
func WithObserverTimeout(d time.Duration) InstrumentOption {
	return func(c *InstrumentConfig) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// applyInstrumentOptions builds InstrumentConfig from options over the
// defaults.
func applyInstrumentOptions(opts []InstrumentOption) InstrumentConfig {
	cfg := InstrumentConfig{absolute: true, timeout: defaultObserverTimeout}
	for _, o := range opts {
		if o != nil {
			o(&cfg)
		}
	}
	return cfg
}

func (c InstrumentConfig) valueKindFor(kind Kind) ValueKind {
	if c.valueKindSet {
		return c.valueKind
	}
	switch kind {
	case ValueRecorderKind, ValueObserverKind:
		return Float64Kind
	default:
		return Int64Kind
	}
}
