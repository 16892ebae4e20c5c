// Package memory is a process-local store with the same surface as the
// SQLite repository. Nothing survives a restart.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"fintrack/internal/core"
	"fintrack/internal/ingest"
)

type Store struct {
	mu        sync.Mutex
	ledger    []core.Transaction
	cursor    ingest.Cursor
	processed map[string]struct{}
	pending   []core.CandidateTransaction
	inbox     []ingest.Message
	inboxIDs  map[string]struct{}
}

func New() *Store {
	return &Store{
		processed: make(map[string]struct{}),
		inboxIDs:  make(map[string]struct{}),
	}
}

func (s *Store) Close() error { return nil }

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) LoadLedger(context.Context) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Transaction(nil), s.ledger...), nil
}

func (s *Store) SaveLedger(_ context.Context, entries []core.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ledger = append([]core.Transaction(nil), entries...)
	return nil
}

func (s *Store) LoadCursor(context.Context) (ingest.Cursor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor, nil
}

func (s *Store) SaveCursor(_ context.Context, cursor ingest.Cursor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cursor = cursor
	return nil
}

func (s *Store) IsProcessed(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.processed[id]
	return ok, nil
}

func (s *Store) MarkProcessed(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processed[id] = struct{}{}
	return nil
}

func (s *Store) ListPending(context.Context) ([]core.CandidateTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.CandidateTransaction(nil), s.pending...), nil
}

// SavePending replaces a candidate in place or appends a new one.
func (s *Store) SavePending(_ context.Context, c core.CandidateTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.pending {
		if s.pending[i].ID == c.ID {
			s.pending[i] = c
			return nil
		}
	}
	s.pending = append(s.pending, c)
	return nil
}

func (s *Store) DeletePending(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.pending {
		if s.pending[i].ID == id {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			return nil
		}
	}
	return nil
}

// AddMessage stores a notification, keeping the inbox ordered by
// timestamp then id. It reports false for an id already seen.
func (s *Store) AddMessage(_ context.Context, msg ingest.Message) (bool, error) {
	if msg.ID == "" || msg.Timestamp.IsZero() {
		return false, fmt.Errorf("message requires id and timestamp")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.inboxIDs[msg.ID]; dup {
		return false, nil
	}
	s.inboxIDs[msg.ID] = struct{}{}
	s.inbox = append(s.inbox, msg)
	sort.SliceStable(s.inbox, func(i, j int) bool {
		a, b := s.inbox[i], s.inbox[j]
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.Before(b.Timestamp)
		}
		return a.ID < b.ID
	})
	return true, nil
}

// List implements ingest.Feed.
func (s *Store) List(_ context.Context, filter ingest.Filter) ([]ingest.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []ingest.Message
	for _, msg := range s.inbox {
		if msg.Timestamp.Before(filter.Since) {
			continue
		}
		out = append(out, msg)
		if filter.MaxCount > 0 && len(out) == filter.MaxCount {
			break
		}
	}
	return out, nil
}
