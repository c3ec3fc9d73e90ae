package metrics

// Batcher coordinates one collection cycle: it selects the aggregator
// variant for each instrument kind, receives one record per bound
// instrument per cycle, and produces the finalized checkpoint.
//
// Implementations decide temporality: whether records for label sets not
// re-observed in the current cycle are carried forward (cumulative) or
// dropped (stateless). Custom Batchers should embed UnimplementedBatcher so
// a missing method fails loudly rather than aggregating incorrectly.
type Batcher interface {
	// AggregatorFor returns a fresh aggregator for a newly bound
	// instrument of the described kind.
	AggregatorFor(desc *Descriptor) Aggregator
	// Process receives one freshly snapshotted record during the
	// checkpointing phase.
	Process(rec Record)
	// CheckpointSet ends the current cycle and returns its finalized
	// records. The Meter calls it exactly once per collection cycle and
	// caches the result for re-reads.
	CheckpointSet() []Record
}

// UnimplementedBatcher panics on every use. There is no safe default
// aggregation behavior, so a custom Batcher that embeds it and forgets a
// method fails on first invocation instead of dropping or misaggregating
// data.
type UnimplementedBatcher struct{}

func (UnimplementedBatcher) AggregatorFor(*Descriptor) Aggregator {
	panic("metrics: Batcher does not implement AggregatorFor")
}

func (UnimplementedBatcher) Process(Record) {
	panic("metrics: Batcher does not implement Process")
}

func (UnimplementedBatcher) CheckpointSet() []Record {
	panic("metrics: Batcher does not implement CheckpointSet")
}

// defaultAggregatorFor implements the default selection: adding instruments
// get a Sum aggregator, grouping and observer instruments get a
// MinMaxLastSumCount distribution.
func defaultAggregatorFor(desc *Descriptor) Aggregator {
	switch desc.Kind() {
	case CounterKind, UpDownCounterKind:
		return NewSumAggregator(desc)
	default:
		return NewDistributionAggregator(desc)
	}
}

// batcher is the built-in Batcher. With stateful set, records persist
// across cycles: a label set checkpointed once keeps appearing with its
// last aggregation until re-processed. Stateless batchers report only the
// records processed in the current cycle.
type batcher struct {
	stateful bool

	// working accumulates the current cycle between Process calls, keyed
	// by instrument name + encoded labels, insertion-ordered.
	working     map[string]int
	workingRecs []Record
	// state carries records across cycles when stateful.
	state     map[string]int
	stateRecs []Record
}

// NewCumulativeBatcher returns the built-in Batcher with cumulative
// temporality: checkpointed records persist across cycles until their label
// set is re-processed.
func NewCumulativeBatcher() Batcher {
	return &batcher{stateful: true, working: make(map[string]int), state: make(map[string]int)}
}

// NewStatelessBatcher returns the built-in Batcher with per-cycle
// temporality: the checkpoint holds exactly the records processed in the
// current cycle.
func NewStatelessBatcher() Batcher {
	return &batcher{working: make(map[string]int), state: make(map[string]int)}
}

func (b *batcher) AggregatorFor(desc *Descriptor) Aggregator {
	return defaultAggregatorFor(desc)
}

func (b *batcher) Process(rec Record) {
	key := rec.stateKey()
	if n, ok := b.working[key]; ok {
		b.workingRecs[n] = rec
		return
	}
	b.working[key] = len(b.workingRecs)
	b.workingRecs = append(b.workingRecs, rec)
}

func (b *batcher) CheckpointSet() []Record {
	var out []Record
	if b.stateful {
		for _, rec := range b.workingRecs {
			key := rec.stateKey()
			if n, ok := b.state[key]; ok {
				b.stateRecs[n] = rec
			} else {
				b.state[key] = len(b.stateRecs)
				b.stateRecs = append(b.stateRecs, rec)
			}
		}
		out = make([]Record, len(b.stateRecs))
		copy(out, b.stateRecs)
	} else {
		out = b.workingRecs
	}
	b.working = make(map[string]int)
	b.workingRecs = nil
	return out
}
