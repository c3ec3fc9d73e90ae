package metrics

import (
	"math"
	"strconv"
)

// ValueKind is the numeric kind of an instrument's measurements.
type ValueKind uint8

const (
	// Int64Kind marks int64-valued instruments.
	Int64Kind ValueKind = iota
	// Float64Kind marks float64-valued instruments.
	Float64Kind
)

// String returns "int64" or "float64".
func (k ValueKind) String() string {
	if k == Float64Kind {
		return "float64"
	}
	return "int64"
}

// Number is a self-describing int64/float64 union. The raw word is
// interpreted according to the kind set at construction. Mixing kinds in
// arithmetic coerces the operand to the receiver's kind.
type Number struct {
	kind ValueKind
	raw  uint64
}

// Int64 constructs an int64-kind Number.
func Int64(v int64) Number {
	return Number{kind: Int64Kind, raw: uint64(v)}
}

// Float64 constructs a float64-kind Number.
func Float64(v float64) Number {
	return Number{kind: Float64Kind, raw: math.Float64bits(v)}
}

// zeroNumber returns the zero value for the given kind.
func zeroNumber(kind ValueKind) Number {
	if kind == Float64Kind {
		return Float64(0)
	}
	return Int64(0)
}

// Kind returns the numeric kind.
func (n Number) Kind() ValueKind { return n.kind }

// AsInt64 returns the value as int64, converting if the kind is float64.
func (n Number) AsInt64() int64 {
	if n.kind == Float64Kind {
		return int64(math.Float64frombits(n.raw))
	}
	return int64(n.raw)
}

// AsFloat64 returns the value as float64, converting if the kind is int64.
func (n Number) AsFloat64() float64 {
	if n.kind == Float64Kind {
		return math.Float64frombits(n.raw)
	}
	return float64(int64(n.raw))
}

// IsNegative reports whether the value is below zero.
func (n Number) IsNegative() bool {
	if n.kind == Float64Kind {
		return math.Float64frombits(n.raw) < 0
	}
	return int64(n.raw) < 0
}

// coerce converts n to the given kind. A Number already of that kind is
// returned unchanged.
func (n Number) coerce(kind ValueKind) Number {
	if n.kind == kind {
		return n
	}
	if kind == Float64Kind {
		return Float64(n.AsFloat64())
	}
	return Int64(n.AsInt64())
}

// add returns n + m in n's kind.
func (n Number) add(m Number) Number {
	if n.kind == Float64Kind {
		return Float64(n.AsFloat64() + m.AsFloat64())
	}
	return Int64(n.AsInt64() + m.AsInt64())
}

// less reports n < m, comparing in n's kind.
func (n Number) less(m Number) bool {
	if n.kind == Float64Kind {
		return n.AsFloat64() < m.AsFloat64()
	}
	return n.AsInt64() < m.AsInt64()
}

// greater reports n > m, comparing in n's kind.
func (n Number) greater(m Number) bool {
	if n.kind == Float64Kind {
		return n.AsFloat64() > m.AsFloat64()
	}
	return n.AsInt64() > m.AsInt64()
}

// String formats the value according to its kind.
func (n Number) String() string {
	if n.kind == Float64Kind {
		return strconv.FormatFloat(n.AsFloat64(), 'g', -1, 64)
	}
	return strconv.FormatInt(n.AsInt64(), 10)
}

// maxNumber returns the largest representable value of the kind, used as the
// empty-distribution minimum sentinel (+Inf for float64).
func maxNumber(kind ValueKind) Number {
	if kind == Float64Kind {
		return Float64(math.Inf(1))
	}
	return Int64(math.MaxInt64)
}

// minNumber returns the smallest representable value of the kind, used as
// the empty-distribution maximum sentinel (-Inf for float64).
func minNumber(kind ValueKind) Number {
	if kind == Float64Kind {
		return Float64(math.Inf(-1))
	}
	return Int64(math.MinInt64)
}
