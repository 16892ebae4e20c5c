package services

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/ledger"
	"fintrack/internal/log"
	"fintrack/internal/metrics"
)

// LedgerRepository persists the full ledger. SaveLedger replaces whatever
// was stored before.
type LedgerRepository interface {
	LoadLedger(ctx context.Context) ([]core.Transaction, error)
	SaveLedger(ctx context.Context, entries []core.Transaction) error
}

// Snapshot is an immutable view of the ledger. Version increases with
// every mutation and keys derived views.
type Snapshot struct {
	Ledger  ledger.Ledger
	Version uint64
}

// LedgerService holds the current ledger snapshot and serializes writes
// to it. Readers load the snapshot without locking and never observe a
// partially applied mutation.
type LedgerService struct {
	repo    LedgerRepository
	metrics *metrics.Metrics
	logger  *log.Logger
	events  *log.StructuredLogger

	mu       sync.Mutex
	snapshot atomic.Pointer[Snapshot]
}

func NewLedgerService(repo LedgerRepository, m *metrics.Metrics, logger *log.Logger) *LedgerService {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	s := &LedgerService{
		repo:    repo,
		metrics: m,
		logger:  logger.WithComponent(log.ComponentLedger),
		events:  log.NewStructuredLogger(logger),
	}
	s.snapshot.Store(&Snapshot{Ledger: ledger.Empty()})
	return s
}

// Load replaces the snapshot with the persisted ledger. A store that
// cannot be read, or holds an invalid entry, leaves the service with an
// empty ledger.
func (s *LedgerService) Load(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	entries, err := s.repo.LoadLedger(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to read persisted ledger, starting empty",
			log.FieldError, err, log.FieldErrorType, log.ErrorTypeDatabase)
		s.swap(ledger.Empty())
		return
	}

	l, err := ledger.Load(entries)
	if err != nil {
		s.logger.WarnContext(ctx, "Persisted ledger is invalid, starting empty",
			log.FieldError, err, log.FieldErrorType, log.ErrorTypeValidation)
		s.swap(ledger.Empty())
		return
	}

	snap := s.swap(l)
	s.metrics.ObserveLedger(log.OpLoad, l.Len(), time.Since(start))
	s.logger.InfoContext(ctx, "Ledger loaded", log.FieldEntries, l.Len(), "version", snap.Version)
}

// Snapshot returns the current ledger view.
func (s *LedgerService) Snapshot() Snapshot {
	return *s.snapshot.Load()
}

// Insert normalizes tx and records it. The returned transaction carries
// its assigned id and running balance.
func (s *LedgerService) Insert(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	var inserted core.Transaction
	err := s.mutate(ctx, log.OpInsert, func(l ledger.Ledger) (ledger.Ledger, error) {
		next, out, err := l.Insert(tx)
		inserted = out
		return next, err
	})
	if err != nil {
		return core.Transaction{}, err
	}

	s.events.LogTransactionInserted(ctx, inserted.ID, string(inserted.Kind), inserted.Category,
		inserted.Amount.String(), inserted.Date.String(), s.Snapshot().Ledger.Len())
	return inserted, nil
}

func (s *LedgerService) Delete(ctx context.Context, id string) error {
	return s.mutate(ctx, log.OpDelete, func(l ledger.Ledger) (ledger.Ledger, error) {
		return l.Delete(id)
	})
}

// Clear removes every entry.
func (s *LedgerService) Clear(ctx context.Context) error {
	return s.mutate(ctx, log.OpClear, func(ledger.Ledger) (ledger.Ledger, error) {
		return ledger.Empty(), nil
	})
}

// mutate applies fn to the current ledger, publishes the result and then
// persists it. A persistence failure is logged and counted; the in-memory
// state is not rolled back.
func (s *LedgerService) mutate(ctx context.Context, op string, fn func(ledger.Ledger) (ledger.Ledger, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	next, err := fn(s.snapshot.Load().Ledger)
	if err != nil {
		return err
	}
	snap := s.swap(next)
	s.metrics.ObserveLedger(op, next.Len(), time.Since(start))

	if err := s.repo.SaveLedger(ctx, next.Entries()); err != nil {
		s.metrics.IncPersistFailure("ledger")
		s.events.LogError(ctx, "Failed to persist ledger", err,
			log.ComponentStorage, op, log.ErrorTypeDatabase)
		return nil
	}

	s.logger.DebugContext(ctx, "Ledger mutated",
		log.FieldOperation, op, log.FieldEntries, next.Len(), "version", snap.Version)
	return nil
}

func (s *LedgerService) swap(l ledger.Ledger) *Snapshot {
	prev := s.snapshot.Load()
	snap := &Snapshot{Ledger: l, Version: prev.Version + 1}
	s.snapshot.Store(snap)
	return snap
}
