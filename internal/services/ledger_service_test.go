package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
	"fintrack/internal/ledger"
	"fintrack/internal/log"
	"fintrack/internal/metrics"
	"fintrack/internal/storage/memory"
)

type failingRepo struct {
	loadErr error
	saveErr error
	entries []core.Transaction
	saves   int
}

func (r *failingRepo) LoadLedger(context.Context) ([]core.Transaction, error) {
	return r.entries, r.loadErr
}

func (r *failingRepo) SaveLedger(context.Context, []core.Transaction) error {
	r.saves++
	return r.saveErr
}

func newTx(day int, kind core.Kind, amount int64) core.Transaction {
	return core.NewTransaction(core.NewDate(2025, time.March, day), kind, "Food", decimal.NewFromInt(amount), "")
}

func TestLedgerServiceInsertPersists(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := NewLedgerService(store, metrics.New(), log.Discard())

	before := svc.Snapshot().Version
	inserted, err := svc.Insert(ctx, newTx(1, core.KindIncome, 100))
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if inserted.ID == "" || !inserted.RunningBalance.Equal(decimal.NewFromInt(100)) {
		t.Errorf("inserted = %+v", inserted)
	}
	if svc.Snapshot().Version != before+1 {
		t.Errorf("version = %d, want %d", svc.Snapshot().Version, before+1)
	}

	saved, _ := store.LoadLedger(ctx)
	if len(saved) != 1 || saved[0].ID != inserted.ID {
		t.Fatalf("store holds %+v, want the inserted entry", saved)
	}

	// A fresh service sees the persisted state.
	reloaded := NewLedgerService(store, nil, log.Discard())
	reloaded.Load(ctx)
	if got := reloaded.Snapshot().Ledger.CurrentBalance(core.NewDate(2025, time.March, 31)); !got.Equal(decimal.NewFromInt(100)) {
		t.Errorf("reloaded balance = %s, want 100", got)
	}
}

func TestLedgerServiceRejectsInvalid(t *testing.T) {
	svc := NewLedgerService(memory.New(), nil, log.Discard())
	before := svc.Snapshot().Version

	_, err := svc.Insert(context.Background(), core.Transaction{Kind: "transfer", Date: core.NewDate(2025, 1, 1)})
	var verr *core.ValidationError
	if !errors.As(err, &verr) || verr.Field != "type" {
		t.Fatalf("Insert() error = %v, want a validation error on type", err)
	}
	if svc.Snapshot().Version != before {
		t.Errorf("failed insert changed the snapshot")
	}
}

func TestLedgerServiceSaveFailureKeepsState(t *testing.T) {
	repo := &failingRepo{saveErr: errors.New("disk full")}
	svc := NewLedgerService(repo, metrics.New(), log.Discard())

	if _, err := svc.Insert(context.Background(), newTx(1, core.KindExpense, 20)); err != nil {
		t.Fatalf("Insert() error = %v, want nil on save failure", err)
	}
	if repo.saves != 1 {
		t.Errorf("saves = %d, want 1", repo.saves)
	}
	if svc.Snapshot().Ledger.Len() != 1 {
		t.Errorf("in-memory ledger rolled back after a save failure")
	}
}

func TestLedgerServiceLoadFallsBackToEmpty(t *testing.T) {
	tests := []struct {
		name string
		repo *failingRepo
	}{
		{"read error", &failingRepo{loadErr: errors.New("corrupt file")}},
		{"invalid entry", &failingRepo{entries: []core.Transaction{
			newTx(1, core.KindIncome, 10),
			{ID: "bad", Date: core.NewDate(2025, 3, 2), Kind: "refund", Amount: decimal.NewFromInt(1)},
		}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewLedgerService(tt.repo, nil, log.Discard())
			svc.Load(context.Background())
			if svc.Snapshot().Ledger.Len() != 0 {
				t.Errorf("ledger has %d entries, want 0", svc.Snapshot().Ledger.Len())
			}
		})
	}
}

func TestLedgerServiceDeleteAndClear(t *testing.T) {
	ctx := context.Background()
	svc := NewLedgerService(memory.New(), nil, log.Discard())

	a, _ := svc.Insert(ctx, newTx(1, core.KindIncome, 100))
	_, _ = svc.Insert(ctx, newTx(2, core.KindExpense, 30))

	if err := svc.Delete(ctx, "missing"); !errors.Is(err, ledger.ErrTransactionNotFound) {
		t.Errorf("Delete(missing) error = %v, want ErrTransactionNotFound", err)
	}
	if err := svc.Delete(ctx, a.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if got := svc.Snapshot().Ledger.CurrentBalance(core.NewDate(2025, 3, 31)); !got.Equal(decimal.NewFromInt(-30)) {
		t.Errorf("balance after delete = %s, want -30", got)
	}

	if err := svc.Clear(ctx); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if svc.Snapshot().Ledger.Len() != 0 {
		t.Errorf("ledger not empty after Clear")
	}
}

func TestLedgerServiceConcurrentInserts(t *testing.T) {
	ctx := context.Background()
	svc := NewLedgerService(memory.New(), nil, log.Discard())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(day int) {
			defer wg.Done()
			if _, err := svc.Insert(ctx, newTx(day, core.KindIncome, 1)); err != nil {
				t.Errorf("Insert() error = %v", err)
			}
		}(i%28 + 1)
	}
	wg.Wait()

	snap := svc.Snapshot()
	if snap.Ledger.Len() != 20 {
		t.Fatalf("ledger has %d entries, want 20", snap.Ledger.Len())
	}
	if got := snap.Ledger.CurrentBalance(core.NewDate(2025, 3, 31)); !got.Equal(decimal.NewFromInt(20)) {
		t.Errorf("balance = %s, want 20", got)
	}
}
