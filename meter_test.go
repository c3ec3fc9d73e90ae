package metrics

import (
	"context"
	"sync"
	"testing"
)

func TestInstrumentNameValidation(t *testing.T) {
	cases := []struct {
		name  string
		valid bool
	}{
		{"", false},
		{"1name", false},
		{"_name", false},
		{"name with invalid characters^&*(", false},
		{"name1", true},
		{"Name_with-all.valid_CharacterClasses", true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			m := newTestMeter()
			counter := m.NewCounter(c.name)
			counter.Add(Int64(1), nil)
			registered := len(m.Instruments())
			records, err := m.Collect(context.Background())
			if err != nil {
				t.Fatalf("collect: %v", err)
			}
			if c.valid {
				if registered != 1 || len(records) != 1 {
					t.Fatalf("expected real instrument; registered=%d records=%d", registered, len(records))
				}
				return
			}
			if registered != 0 || len(records) != 0 {
				t.Fatalf("expected no-op instrument; registered=%d records=%d", registered, len(records))
			}
		})
	}
}

func TestDuplicateRegistration(t *testing.T) {
	t.Run("same_kind_returns_original", func(t *testing.T) {
		m := newTestMeter()
		c1 := m.NewCounter("dup", WithDescription("first"))
		c2 := m.NewCounter("dup", WithDescription("second"), WithValueKind(Float64Kind))
		if c1 != c2 {
			t.Fatal("expected the original instrument")
		}
		if got := c2.Descriptor().Description(); got != "first" {
			t.Fatalf("expected the original config to win; got %q", got)
		}
		if got := c2.Descriptor().ValueKind(); got != Int64Kind {
			t.Fatalf("expected the original value kind to win; got %v", got)
		}
	})

	t.Run("different_kind_returns_noop", func(t *testing.T) {
		m := newTestMeter()
		m.NewCounter("dup")
		r := m.NewValueRecorder("dup")
		r.Record(Float64(10), nil)
		records, err := m.Collect(context.Background())
		if err != nil {
			t.Fatalf("collect: %v", err)
		}
		for _, rec := range records {
			if rec.Descriptor().Kind() == ValueRecorderKind {
				t.Fatal("no-op recorder must not produce records")
			}
		}
		if got := len(m.Instruments()); got != 1 {
			t.Fatalf("expected only the counter registered; got %d", got)
		}
	})

	t.Run("concurrent_first_registration_wins_once", func(t *testing.T) {
		m := newTestMeter()
		var wg sync.WaitGroup
		out := make([]*Counter, 32)
		for i := range out {
			wg.Add(1)
			go func(n int) {
				defer wg.Done()
				out[n] = m.NewCounter("race")
			}(i)
		}
		wg.Wait()
		for _, c := range out[1:] {
			if c != out[0] {
				t.Fatal("expected one shared instrument across concurrent creators")
			}
		}
		if got := len(m.Instruments()); got != 1 {
			t.Fatalf("expected a single registration; got %d", got)
		}
	})
}

func TestCollectRoundTrip(t *testing.T) {
	m := newTestMeter()
	c := m.NewCounter("rt")
	c.Add(Int64(7), nil)

	records, err := m.Collect(context.Background())
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(records) != 1 || records[0].Aggregation().(SumSnapshot).Value.AsInt64() != 7 {
		t.Fatalf("expected single record with value 7; got %+v", records)
	}

	// Writes after checkpointing land in the next cycle; re-reading the
	// checkpoint returns the same contents.
	c.Add(Int64(3), nil)
	again := m.CheckpointSet()
	if len(again) != 1 || again[0].Aggregation().(SumSnapshot).Value.AsInt64() != 7 {
		t.Fatalf("expected idempotent re-read with value 7; got %+v", again)
	}

	records, err = m.Collect(context.Background())
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(records) != 1 || records[0].Aggregation().(SumSnapshot).Value.AsInt64() != 10 {
		t.Fatalf("expected next cycle to see 10; got %+v", records)
	}
}

func TestCheckpointReadsAreIsolated(t *testing.T) {
	m := newTestMeter()
	m.NewCounter("c").Add(Int64(7), nil)

	records, err := m.Collect(context.Background())
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	records[0] = Record{}

	again := m.CheckpointSet()
	if len(again) != 1 || again[0].Descriptor().Name() != "c" {
		t.Fatalf("re-read corrupted by caller mutation of Collect's result: %+v", again)
	}
	again[0] = Record{}

	if final := m.CheckpointSet(); final[0].Descriptor().Name() != "c" {
		t.Fatalf("re-read corrupted by caller mutation of a prior re-read: %+v", final)
	}
}

func TestRecordCarriesResourceAndScope(t *testing.T) {
	res := NewResource(map[string]any{"service.name": "test"})
	m := newMeter(Scope{Name: "pkg", Version: "1.2.3"}, res, NewCumulativeBatcher(), newNoopLogger())
	m.NewCounter("c").Add(Int64(1), nil)
	records, err := m.Collect(context.Background())
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	rec := records[0]
	if rec.Resource() != res {
		t.Fatal("expected the shared resource on the record")
	}
	if rec.Scope() != (Scope{Name: "pkg", Version: "1.2.3"}) {
		t.Fatalf("unexpected scope: %+v", rec.Scope())
	}
}
