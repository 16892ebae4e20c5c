package memory

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
	"fintrack/internal/ingest"
)

func TestLedgerIsCopied(t *testing.T) {
	ctx := context.Background()
	s := New()
	entries := []core.Transaction{{ID: "a", Date: core.NewDate(2025, time.January, 1), Kind: core.KindIncome, Amount: decimal.NewFromInt(5)}}
	if err := s.SaveLedger(ctx, entries); err != nil {
		t.Fatalf("SaveLedger() error = %v", err)
	}
	entries[0].ID = "mutated"

	got, _ := s.LoadLedger(ctx)
	if len(got) != 1 || got[0].ID != "a" {
		t.Fatalf("LoadLedger() = %+v, want the saved copy", got)
	}
}

func TestPendingKeepsPosition(t *testing.T) {
	ctx := context.Background()
	s := New()
	for _, id := range []string{"m1", "m2", "m1"} {
		if err := s.SavePending(ctx, core.CandidateTransaction{ID: id}); err != nil {
			t.Fatalf("SavePending() error = %v", err)
		}
	}
	pending, _ := s.ListPending(ctx)
	if len(pending) != 2 || pending[0].ID != "m1" || pending[1].ID != "m2" {
		t.Fatalf("pending = %+v, want m1,m2", pending)
	}
	_ = s.DeletePending(ctx, "m1")
	_ = s.DeletePending(ctx, "missing")
	pending, _ = s.ListPending(ctx)
	if len(pending) != 1 || pending[0].ID != "m2" {
		t.Errorf("pending after delete = %+v", pending)
	}
}

func TestInboxOrderingAndFilter(t *testing.T) {
	ctx := context.Background()
	s := New()
	base := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

	for _, m := range []ingest.Message{
		{ID: "b", Timestamp: base},
		{ID: "c", Timestamp: base.Add(time.Minute)},
		{ID: "a", Timestamp: base},
	} {
		if added, err := s.AddMessage(ctx, m); err != nil || !added {
			t.Fatalf("AddMessage(%s) = %v, %v", m.ID, added, err)
		}
	}
	if added, _ := s.AddMessage(ctx, ingest.Message{ID: "a", Timestamp: base}); added {
		t.Errorf("duplicate id was added")
	}

	got, _ := s.List(ctx, ingest.Filter{Since: base, MaxCount: 2})
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "b" {
		t.Errorf("List() = %+v, want a,b", got)
	}
	got, _ = s.List(ctx, ingest.Filter{Since: base.Add(time.Second)})
	if len(got) != 1 || got[0].ID != "c" {
		t.Errorf("List() after base = %+v, want c", got)
	}
}

func TestProcessedAndCursor(t *testing.T) {
	ctx := context.Background()
	s := New()
	if done, _ := s.IsProcessed(ctx, "x"); done {
		t.Fatalf("fresh store reports x processed")
	}
	_ = s.MarkProcessed(ctx, "x")
	if done, _ := s.IsProcessed(ctx, "x"); !done {
		t.Errorf("x not processed after MarkProcessed")
	}

	want := ingest.Cursor{Checkpoint: time.Unix(100, 0), ScanBound: time.Unix(200, 0)}
	_ = s.SaveCursor(ctx, want)
	got, _ := s.LoadCursor(ctx)
	if got != want {
		t.Errorf("cursor = %+v, want %+v", got, want)
	}
}
