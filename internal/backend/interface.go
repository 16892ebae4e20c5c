// Package backend selects and opens the storage behind the ledger, the
// ingestion state and the notification inbox.
package backend

import (
	"context"

	"fintrack/internal/ingest"
	"fintrack/internal/services"
)

// Store is everything the services need from storage.
type Store interface {
	services.LedgerRepository
	ingest.StateStore
	ingest.Feed

	// AddMessage stores a notification in the inbox, reporting false when
	// its ID was already present.
	AddMessage(ctx context.Context, msg ingest.Message) (bool, error)
	Ping(ctx context.Context) error
}

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the store and its cleanup function
type BackendResult struct {
	Store   Store
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath string
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
