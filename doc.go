/*
Package metrics is a client-side instrumentation and aggregation engine:
application code creates named instruments, records measurements against
dynamic label sets, and a periodic collection cycle snapshots accumulated
state into exportable records.

# Overview

The engine is organized around a small number of components:

1. MeterProvider: process-wide factory handing out Meters by scope name and
version, holding the shared Resource attached to every record.

2. Meter: owns the instrument registry for one instrumentation scope and
drives the collection cycle. Instruments are created lazily by name and
deduplicated; the first registration wins and later calls with the same name
return the original instrument unchanged.

3. Instruments: Counter (monotonic), UpDownCounter, ValueRecorder
(distribution), ValueObserver (per-cycle callback) and BatchObserver (one
callback feeding several observer instruments under shared label sets).
Synchronous instruments expose Bind/Unbind/Clear; Bind with an equivalent
label set always returns the same bound instrument, so repeated writes
accumulate into one aggregator.

4. Aggregators: Sum (running total) and MinMaxLastSumCount (distribution),
selected per instrument kind by the Batcher. Collection takes immutable
snapshots; a checkpoint never aliases live aggregator state.

5. Batcher: collection-cycle coordinator deciding temporality. The built-in
cumulative Batcher carries records forward across cycles; the stateless one
reports only the current cycle. Custom Batchers embed UnimplementedBatcher
so a missing method fails loudly on first use.

Data flows one way: application writes into bound instruments, Collect
snapshots them through the Batcher into records, and the export packages
(export/otlp, export/prometheus) convert records to their wire formats.

# Soft failures

Construction never fails. An invalid or empty instrument name yields a
shared no-op instrument; a negative write to a monotonic instrument is
silently dropped; a duplicate name keeps the original configuration. Attach
a Logger via WithLogger to see diagnostics for these cases.

# Collection and observers

Collect runs value-observer callbacks synchronously, then batch-observer
callbacks raced against their per-observer timeout: if the timer fires
before the callback's asynchronous work calls Observe, the result is
permanently cancelled and every later Observe on it is discarded. This
bounds collection-cycle latency regardless of how slow a batched fetch is.

# Example

	provider := metrics.NewMeterProvider(
	    metrics.WithResource(metrics.NewResource(map[string]any{"service.name": "billing"})),
	)
	meter := provider.Meter("billing/worker", metrics.WithVersion("1.4.0"))

	requests := meter.NewCounter("requests_total", metrics.WithUnit("1"))
	requests.Add(metrics.Int64(1), metrics.Labels{"route": "/charge"})

	records, _ := meter.Collect(context.Background())
	for _, r := range records {
	    _ = r // r.Descriptor(), r.Labels(), r.Aggregation()
	}

# Concurrency

Instrument creation and writes are safe for concurrent use. Collection
cycles are serialized per Meter; writes racing the checkpointing phase land
in the next cycle (best-effort snapshot, not a transaction).

# Build and test

Run unit tests with "go test ./...". Under the race detector or the "debug"
build tag, internal invariant violations panic to fail fast; release builds
log them and continue.
*/
package metrics
