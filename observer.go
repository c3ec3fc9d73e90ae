package metrics

import (
	"context"
	"sync/atomic"
	"time"
)

// ObserverCallback is invoked once per collection cycle, synchronously,
// before checkpointing. It reports current values through the result.
type ObserverCallback func(result *ObserverResult)

// BatchObserverCallback produces values for multiple observer instruments
// against shared label sets. It may complete asynchronously: work started by
// the callback can call result.Observe later, racing the cycle's timeout.
type BatchObserverCallback func(ctx context.Context, result *BatchObserverResult)

// ValueObserver is a pull-model distribution instrument refreshed by
// callback at each collection cycle. A ValueObserver created with a nil
// callback is only fed through a BatchObserver's observations.
//
// Label sets not observed in a cycle produce no record from the instrument
// in that cycle; any carry-over of earlier values is Batcher policy.
type ValueObserver struct {
	*instrument
	callback ObserverCallback
}

// Descriptor returns a copy of the instrument's descriptor.
func (o *ValueObserver) Descriptor() Descriptor { return o.desc }

// Observation returns a deferred value attached to this instrument, for use
// with BatchObserverResult.Observe.
func (o *ValueObserver) Observation(value Number) Observation {
	return Observation{inst: o.instrument, n: value}
}

// refresh drops the previous cycle's bound instruments and, when a direct
// callback is configured, runs it.
func (o *ValueObserver) refresh() {
	o.clear()
	if o.callback != nil {
		o.callback(&ObserverResult{inst: o.instrument})
	}
}

// ObserverResult lets a ValueObserver callback report values for the
// current cycle.
type ObserverResult struct {
	inst *instrument
}

// Observe records value for labels. Each call binds (or reuses) the bound
// instrument for that label set and applies one aggregator update.
func (r *ObserverResult) Observe(value Number, labels Labels) {
	r.inst.bind(NewLabelSet(labels)).update(value)
}

// Observation is a deferred value attached to one observer instrument.
type Observation struct {
	inst *instrument
	n    Number
}

// BatchObserver runs one callback producing observations for several
// sibling ValueObserver instruments. The collection cycle waits until the
// callback has returned and its first observation is applied, or for the
// configured timeout, whichever comes first; once the timer has fired the
// result is permanently cancelled.
type BatchObserver struct {
	name     string
	callback BatchObserverCallback
	timeout  time.Duration
}

// Name returns the batch observer's registered name.
func (b *BatchObserver) Name() string { return b.name }

// Timeout returns how long a collection cycle waits for the callback.
func (b *BatchObserver) Timeout() time.Duration { return b.timeout }

// Batch-observer result states. Transitions are one-way: pending may become
// committed or cancelled, never both.
const (
	observerPending int32 = iota
	observerCommitted
	observerCancelled
)

// BatchObserverResult is handed to a BatchObserverCallback. Observe applies
// observations unless the result was cancelled by the cycle's timer first;
// cancelled results silently discard every subsequent call.
type BatchObserverResult struct {
	state atomic.Int32
	done  chan struct{}
}

func newBatchObserverResult() *BatchObserverResult {
	return &BatchObserverResult{done: make(chan struct{})}
}

// Observe applies one observation per sibling instrument under the shared
// label set. The first call commits the result; committing is terminal, so
// the cycle's timer can no longer cancel it. Updates are applied before the
// collection cycle's wait is released.
func (r *BatchObserverResult) Observe(labels Labels, observations ...Observation) {
	if r.state.CompareAndSwap(observerPending, observerCommitted) {
		// Release the collection cycle only after the updates below apply.
		defer close(r.done)
	} else if r.state.Load() == observerCancelled {
		return
	}
	set := NewLabelSet(labels)
	for _, o := range observations {
		o.inst.bind(set).update(o.n)
	}
}

// Cancelled reports whether the cycle's timer fired before the callback
// observed. Cancellation is terminal.
func (r *BatchObserverResult) Cancelled() bool {
	return r.state.Load() == observerCancelled
}

// cancel marks the result cancelled if still pending. Called by the
// collection cycle when its timer fires or its context ends.
func (r *BatchObserverResult) cancel() {
	r.state.CompareAndSwap(observerPending, observerCancelled)
}

// await runs the batch callback and blocks until its observations are in
// the aggregators: the callback must both return and commit a first
// observation before checkpointing proceeds, so every Observe call made
// inside the callback lands in the current cycle. The timer and ctx bound
// the wait; on either, the result is cancelled and later Observe calls
// become no-ops.
func (b *BatchObserver) await(ctx context.Context) {
	res := newBatchObserverResult()
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		b.callback(ctx, res)
	}()

	timer := time.NewTimer(b.timeout)
	defer timer.Stop()
	committed := res.done
	for committed != nil || finished != nil {
		select {
		case <-committed:
			committed = nil
		case <-finished:
			finished = nil
		case <-timer.C:
			res.cancel()
			return
		case <-ctx.Done():
			res.cancel()
			return
		}
	}
}
