// Package ingest turns notification feed messages into deduplicated
// candidate transactions and tracks how far the feed has been classified.
package ingest

import (
	"context"
	"errors"
	"time"

	"fintrack/internal/core"
)

var (
	// ErrPermissionDenied means the feed refused access for this cycle.
	ErrPermissionDenied  = errors.New("notification feed access denied")
	ErrCandidateNotFound = errors.New("candidate not pending")
)

// Message is one notification as the feed reports it.
type Message struct {
	ID        string    `json:"id"`
	Address   string    `json:"address,omitempty"`
	Body      string    `json:"body"`
	Timestamp time.Time `json:"timestamp"`
}

// Filter selects messages with Timestamp >= Since, oldest first, at most
// MaxCount of them.
type Filter struct {
	Since    time.Time
	MaxCount int
}

// Feed is the read side of the notification source.
type Feed interface {
	List(ctx context.Context, filter Filter) ([]Message, error)
}

// PermissionGate reports whether the feed may be read right now.
type PermissionGate interface {
	FeedAccessGranted(ctx context.Context) (bool, error)
}

// StaticGate grants or denies access unconditionally.
type StaticGate bool

func (g StaticGate) FeedAccessGranted(context.Context) (bool, error) {
	return bool(g), nil
}

// Cursor is the durable scan position. Checkpoint is where the next scan
// starts; ScanBound is where the checkpoint moves once every outstanding
// candidate has been resolved.
type Cursor struct {
	Checkpoint time.Time
	ScanBound  time.Time
}

// StateStore persists the cursor, the processed id set and the pending
// candidates. A single process writes it.
type StateStore interface {
	LoadCursor(ctx context.Context) (Cursor, error)
	SaveCursor(ctx context.Context, cursor Cursor) error

	IsProcessed(ctx context.Context, id string) (bool, error)
	MarkProcessed(ctx context.Context, id string) error

	ListPending(ctx context.Context) ([]core.CandidateTransaction, error)
	SavePending(ctx context.Context, candidate core.CandidateTransaction) error
	DeletePending(ctx context.Context, id string) error
}

// Presenter offers a candidate to the user. Implementations must not
// block waiting for the decision.
type Presenter interface {
	Present(ctx context.Context, candidate core.CandidateTransaction) error
}

// PresenterFunc adapts a function to Presenter.
type PresenterFunc func(ctx context.Context, candidate core.CandidateTransaction) error

func (f PresenterFunc) Present(ctx context.Context, candidate core.CandidateTransaction) error {
	return f(ctx, candidate)
}
