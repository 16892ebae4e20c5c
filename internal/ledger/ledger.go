// Package ledger maintains the transaction list and the running balance
// derived from it. A Ledger value is immutable; every mutation returns a
// new, fully recomputed Ledger.
package ledger

import (
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

var (
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrDuplicateID         = errors.New("transaction id already exists")
	// ErrDuplicateSource is returned when a candidate has already been
	// confirmed into the ledger.
	ErrDuplicateSource = errors.New("source already recorded")
)

type Ledger struct {
	entries []core.Transaction
}

// Empty returns a ledger with no entries.
func Empty() Ledger {
	return Ledger{}
}

// Recompute drops invalid entries, fixes amount signs for their kind,
// orders the rest by date (stable within a day) and assigns every entry
// its day's closing balance.
func Recompute(entries []core.Transaction) Ledger {
	valid := make([]core.Transaction, 0, len(entries))
	for _, tx := range entries {
		if tx.Validate() != nil {
			continue
		}
		tx.Amount = core.NormalizeAmount(tx.Kind, tx.Amount)
		valid = append(valid, tx)
	}

	sort.SliceStable(valid, func(i, j int) bool {
		return valid[i].Date.Before(valid[j].Date)
	})

	running := decimal.Zero
	for start := 0; start < len(valid); {
		end := start
		dayDelta := decimal.Zero
		for end < len(valid) && valid[end].Date.Equal(valid[start].Date) {
			dayDelta = dayDelta.Add(valid[end].Delta())
			end++
		}
		running = running.Add(dayDelta)
		for i := start; i < end; i++ {
			valid[i].RunningBalance = running
		}
		start = end
	}

	return Ledger{entries: valid}
}

// Load validates persisted entries before accepting them. A single bad
// entry rejects the whole set; callers fall back to an empty ledger.
func Load(entries []core.Transaction) (Ledger, error) {
	for i, tx := range entries {
		if err := tx.Validate(); err != nil {
			var verr *core.ValidationError
			if errors.As(err, &verr) {
				return Empty(), &core.ValidationError{
					Field:   fmt.Sprintf("entries[%d].%s", i, verr.Field),
					Message: verr.Message,
				}
			}
			return Empty(), err
		}
	}
	return Recompute(entries), nil
}

// Entries returns a copy of the ordered entries.
func (l Ledger) Entries() []core.Transaction {
	out := make([]core.Transaction, len(l.entries))
	copy(out, l.entries)
	return out
}

func (l Ledger) Len() int {
	return len(l.entries)
}

func (l Ledger) Find(id string) (core.Transaction, bool) {
	for _, tx := range l.entries {
		if tx.ID == id {
			return tx, true
		}
	}
	return core.Transaction{}, false
}

// HasSource reports whether an entry created from sourceID exists.
func (l Ledger) HasSource(sourceID string) bool {
	if sourceID == "" {
		return false
	}
	for _, tx := range l.entries {
		if tx.SourceID == sourceID {
			return true
		}
	}
	return false
}

// Insert normalizes tx, merges it and recomputes.
func (l Ledger) Insert(tx core.Transaction) (Ledger, core.Transaction, error) {
	tx = tx.Normalize()
	if err := tx.Validate(); err != nil {
		return l, core.Transaction{}, err
	}
	if l.HasSource(tx.SourceID) {
		return l, core.Transaction{}, fmt.Errorf("%w: %s", ErrDuplicateSource, tx.SourceID)
	}
	if _, exists := l.Find(tx.ID); exists {
		return l, core.Transaction{}, fmt.Errorf("%w: %s", ErrDuplicateID, tx.ID)
	}

	next := make([]core.Transaction, 0, len(l.entries)+1)
	next = append(next, l.entries...)
	next = append(next, tx)
	out := Recompute(next)

	inserted, _ := out.Find(tx.ID)
	return out, inserted, nil
}

// Delete removes the entry with id and recomputes.
func (l Ledger) Delete(id string) (Ledger, error) {
	next := make([]core.Transaction, 0, len(l.entries))
	found := false
	for _, tx := range l.entries {
		if tx.ID == id {
			found = true
			continue
		}
		next = append(next, tx)
	}
	if !found {
		return l, fmt.Errorf("%w: %s", ErrTransactionNotFound, id)
	}
	return Recompute(next), nil
}
