package metrics

import (
	"context"
	"testing"
	"time"
)

func newStatelessMeter() *Meter {
	return newMeter(Scope{Name: "test"}, NewResource(nil), NewStatelessBatcher(), newNoopLogger())
}

func TestValueObserver(t *testing.T) {
	t.Run("callback_runs_each_cycle", func(t *testing.T) {
		m := newStatelessMeter()
		calls := 0
		m.NewValueObserver("queue_depth", func(result *ObserverResult) {
			calls++
			result.Observe(Float64(float64(calls)), Labels{"q": "ingest"})
		})
		for i := 1; i <= 3; i++ {
			records, err := m.Collect(context.Background())
			if err != nil {
				t.Fatalf("collect: %v", err)
			}
			if len(records) != 1 {
				t.Fatalf("cycle %d: expected 1 record; got %d", i, len(records))
			}
			s := records[0].Aggregation().(DistributionSnapshot)
			if got := s.Last.AsFloat64(); got != float64(i) {
				t.Fatalf("cycle %d: expected last %d; got %v", i, i, got)
			}
			if s.Count != 1 {
				t.Fatalf("cycle %d: expected fresh per-cycle count 1; got %d", i, s.Count)
			}
		}
		if calls != 3 {
			t.Fatalf("expected 3 callback invocations; got %d", calls)
		}
	})

	t.Run("unobserved_label_set_absent_from_cycle", func(t *testing.T) {
		m := newStatelessMeter()
		first := true
		m.NewValueObserver("g", func(result *ObserverResult) {
			if first {
				result.Observe(Float64(1), Labels{"k": "a"})
				first = false
				return
			}
			result.Observe(Float64(2), Labels{"k": "b"})
		})
		if records, _ := m.Collect(context.Background()); len(records) != 1 || records[0].Labels().Pairs()[0].Value != "a" {
			t.Fatalf("unexpected first cycle: %+v", records)
		}
		records, _ := m.Collect(context.Background())
		if len(records) != 1 || records[0].Labels().Pairs()[0].Value != "b" {
			t.Fatalf("expected only the observed label set; got %+v", records)
		}
	})

	t.Run("cumulative_batcher_carries_prior_value", func(t *testing.T) {
		m := newTestMeter()
		first := true
		m.NewValueObserver("g", func(result *ObserverResult) {
			if first {
				result.Observe(Float64(1), Labels{"k": "a"})
				first = false
			}
		})
		m.Collect(context.Background())
		records, _ := m.Collect(context.Background())
		if len(records) != 1 {
			t.Fatalf("expected prior record carried by batcher policy; got %d", len(records))
		}
	})
}

func TestBatchObserver(t *testing.T) {
	t.Run("observes_multiple_siblings", func(t *testing.T) {
		m := newStatelessMeter()
		cpu := m.NewValueObserver("cpu", nil)
		mem := m.NewValueObserver("mem", nil)
		m.NewBatchObserver("host_stats", func(ctx context.Context, result *BatchObserverResult) {
			result.Observe(Labels{"host": "h1"},
				cpu.Observation(Float64(0.5)),
				mem.Observation(Float64(128)),
			)
		})
		records, err := m.Collect(context.Background())
		if err != nil {
			t.Fatalf("collect: %v", err)
		}
		if len(records) != 2 {
			t.Fatalf("expected 2 records; got %d", len(records))
		}
		byName := map[string]float64{}
		for _, r := range records {
			byName[r.Descriptor().Name()] = r.Aggregation().(DistributionSnapshot).Last.AsFloat64()
			if r.Labels().Pairs()[0] != (Label{Key: "host", Value: "h1"}) {
				t.Fatalf("expected shared label set; got %+v", r.Labels().Pairs())
			}
		}
		if byName["cpu"] != 0.5 || byName["mem"] != 128 {
			t.Fatalf("unexpected values: %v", byName)
		}
	})

	t.Run("all_observations_applied_before_checkpoint", func(t *testing.T) {
		m := newStatelessMeter()
		a := m.NewValueObserver("a", nil)
		b := m.NewValueObserver("b", nil)
		m.NewBatchObserver("pair", func(ctx context.Context, result *BatchObserverResult) {
			result.Observe(Labels{"k": "v"}, a.Observation(Float64(1)))
			// checkpointing must wait for the callback to return, not just
			// for its first observation
			time.Sleep(50 * time.Millisecond)
			result.Observe(Labels{"k": "v"}, b.Observation(Float64(2)))
		}, WithObserverTimeout(time.Second))

		records, err := m.Collect(context.Background())
		if err != nil {
			t.Fatalf("collect: %v", err)
		}
		byName := map[string]float64{}
		for _, r := range records {
			byName[r.Descriptor().Name()] = r.Aggregation().(DistributionSnapshot).Last.AsFloat64()
		}
		if len(byName) != 2 || byName["a"] != 1 || byName["b"] != 2 {
			t.Fatalf("expected every observation of the callback in the checkpoint; got %v", byName)
		}
	})

	t.Run("timeout_cancels_late_observations", func(t *testing.T) {
		m := newStatelessMeter()
		g := m.NewValueObserver("slow", nil)
		observed := make(chan struct{})
		m.NewBatchObserver("slow_batch", func(ctx context.Context, result *BatchObserverResult) {
			go func() {
				time.Sleep(60 * time.Millisecond)
				result.Observe(Labels{"k": "v"}, g.Observation(Float64(42)))
				close(observed)
			}()
		}, WithObserverTimeout(10*time.Millisecond))

		records, err := m.Collect(context.Background())
		if err != nil {
			t.Fatalf("collect: %v", err)
		}
		if len(records) != 0 {
			t.Fatalf("expected empty record set after timeout; got %d", len(records))
		}

		// The late observation must be discarded, not deferred: the next
		// cycle's callback is a fresh result, and the old one stays
		// cancelled forever.
		<-observed
		records, err = m.Collect(context.Background())
		if err != nil {
			t.Fatalf("collect: %v", err)
		}
		for _, r := range records {
			s := r.Aggregation().(DistributionSnapshot)
			if s.Count != 0 {
				t.Fatalf("late observation leaked into aggregator: %+v", s)
			}
		}
	})

	t.Run("fast_observe_beats_timer", func(t *testing.T) {
		m := newStatelessMeter()
		g := m.NewValueObserver("fast", nil)
		m.NewBatchObserver("fast_batch", func(ctx context.Context, result *BatchObserverResult) {
			result.Observe(Labels{"k": "v"}, g.Observation(Float64(7)))
			if result.Cancelled() {
				t.Error("result cancelled despite in-time observation")
			}
		}, WithObserverTimeout(time.Second))
		records, err := m.Collect(context.Background())
		if err != nil {
			t.Fatalf("collect: %v", err)
		}
		if len(records) != 1 || records[0].Aggregation().(DistributionSnapshot).Last.AsFloat64() != 7 {
			t.Fatalf("expected committed observation; got %+v", records)
		}
	})

	t.Run("cancelled_context_cancels_result", func(t *testing.T) {
		m := newStatelessMeter()
		g := m.NewValueObserver("ctx", nil)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		m.NewBatchObserver("ctx_batch", func(ctx context.Context, result *BatchObserverResult) {
			<-ctx.Done()
			// block past cancellation; never observes in time
			go func() {
				time.Sleep(5 * time.Millisecond)
				result.Observe(nil, g.Observation(Float64(1)))
			}()
		}, WithObserverTimeout(time.Minute))
		records, err := m.Collect(ctx)
		if err == nil {
			t.Fatal("expected context error")
		}
		if len(records) != 0 {
			t.Fatalf("expected no records; got %d", len(records))
		}
	})
}
