package metrics

import (
	"sync"
	"time"
)

// Aggregator is the incremental state machine behind one bound instrument.
// Update is called on the application's write path; Snapshot is called by
// the collection cycle and must return an immutable copy that does not alias
// live state.
//
// The implementation set is closed: Sum and MinMaxLastSumCount. A custom
// Batcher chooses between them in AggregatorFor.
type Aggregator interface {
	Update(n Number)
	Snapshot() Aggregation
}

// Aggregation is an immutable point-in-time copy of an aggregator's state.
// The concrete types are SumSnapshot and DistributionSnapshot; exporters
// type-switch over them.
type Aggregation interface {
	// StartTime is when the aggregator began accumulating.
	StartTime() time.Time
	// Time is the last-update time, or the zero time if never updated.
	Time() time.Time

	aggregation() // closed set marker
}

// SumSnapshot is the checkpointed state of a Sum aggregator.
type SumSnapshot struct {
	Value Number
	Start time.Time
	At    time.Time
}

func (s SumSnapshot) StartTime() time.Time { return s.Start }
func (s SumSnapshot) Time() time.Time      { return s.At }
func (SumSnapshot) aggregation()           {}

// DistributionSnapshot is the checkpointed state of a MinMaxLastSumCount
// aggregator. With no updates recorded, Min/Max hold the +Inf/-Inf
// sentinels of the value kind, Last and Sum are zero and Count is 0.
type DistributionSnapshot struct {
	Min   Number
	Max   Number
	Last  Number
	Sum   Number
	Count int64
	Start time.Time
	At    time.Time
}

func (s DistributionSnapshot) StartTime() time.Time { return s.Start }
func (s DistributionSnapshot) Time() time.Time      { return s.At }
func (DistributionSnapshot) aggregation()           {}

// SumAggregator keeps a running total plus the last-update time.
type SumAggregator struct {
	mu      sync.Mutex
	value   Number
	start   time.Time
	updated time.Time
}

// NewSumAggregator returns a Sum aggregator accumulating in the
// descriptor's value kind.
func NewSumAggregator(desc *Descriptor) *SumAggregator {
	return &SumAggregator{
		value: zeroNumber(desc.ValueKind()),
		start: time.Now(),
	}
}

// Update adds n to the running total. The update timestamp strictly
// increases between consecutive updates even on coarse clocks.
func (a *SumAggregator) Update(n Number) {
	a.mu.Lock()
	a.value = a.value.add(n)
	a.updated = a.tick(a.updated)
	a.mu.Unlock()
}

// Snapshot returns an immutable copy of the current total.
func (a *SumAggregator) Snapshot() Aggregation {
	a.mu.Lock()
	s := SumSnapshot{Value: a.value, Start: a.start, At: a.updated}
	a.mu.Unlock()
	return s
}

func (a *SumAggregator) tick(prev time.Time) time.Time {
	now := time.Now()
	if !now.After(prev) {
		now = prev.Add(time.Nanosecond)
	}
	return now
}

// DistributionAggregator tracks min, max, last, sum and count of a stream
// of measurements.
type DistributionAggregator struct {
	mu      sync.Mutex
	min     Number
	max     Number
	last    Number
	sum     Number
	count   int64
	start   time.Time
	updated time.Time
}

// NewDistributionAggregator returns a MinMaxLastSumCount aggregator in its
// empty state: min at the kind's maximum sentinel, max at the minimum
// sentinel, last and sum zero, count zero.
func NewDistributionAggregator(desc *Descriptor) *DistributionAggregator {
	kind := desc.ValueKind()
	return &DistributionAggregator{
		min:   maxNumber(kind),
		max:   minNumber(kind),
		last:  zeroNumber(kind),
		sum:   zeroNumber(kind),
		start: time.Now(),
	}
}

// Update folds one measurement into the distribution.
func (a *DistributionAggregator) Update(n Number) {
	a.mu.Lock()
	if n.less(a.min) {
		a.min = n.coerce(a.min.Kind())
	}
	if n.greater(a.max) {
		a.max = n.coerce(a.max.Kind())
	}
	a.last = n.coerce(a.last.Kind())
	a.sum = a.sum.add(n)
	a.count++
	now := time.Now()
	if !now.After(a.updated) {
		now = a.updated.Add(time.Nanosecond)
	}
	a.updated = now
	a.mu.Unlock()
}

// Snapshot returns an immutable copy of the current distribution state.
func (a *DistributionAggregator) Snapshot() Aggregation {
	a.mu.Lock()
	s := DistributionSnapshot{
		Min:   a.min,
		Max:   a.max,
		Last:  a.last,
		Sum:   a.sum,
		Count: a.count,
		Start: a.start,
		At:    a.updated,
	}
	a.mu.Unlock()
	return s
}
