package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/ingest"
	"fintrack/internal/ledger"
	"fintrack/internal/log"
)

// IngestProcessorConfig holds configuration for the ingest processor
type IngestProcessorConfig struct {
	// Interval is how often a scan runs without an explicit trigger (default: 5m)
	Interval time.Duration
}

// DefaultIngestProcessorConfig returns sensible defaults
func DefaultIngestProcessorConfig() IngestProcessorConfig {
	return IngestProcessorConfig{
		Interval: 5 * time.Minute,
	}
}

// Scanner is the part of the ingestion pipeline the processor drives.
type Scanner interface {
	Scan(ctx context.Context) (ingest.ScanResult, error)
	Pending(ctx context.Context) ([]core.CandidateTransaction, error)
	Accept(ctx context.Context, id string) (core.Transaction, error)
	Ignore(ctx context.Context, id string) error
}

// IngestProcessor runs scans in the background, on a ticker and on
// demand, and resolves candidates against the ledger.
type IngestProcessor struct {
	scanner Scanner
	ledger  *LedgerService
	config  IngestProcessorConfig
	logger  *log.Logger

	trigger chan struct{}

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewIngestProcessor(scanner Scanner, ledgerService *LedgerService, config IngestProcessorConfig, logger *log.Logger) *IngestProcessor {
	if config.Interval <= 0 {
		config.Interval = DefaultIngestProcessorConfig().Interval
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &IngestProcessor{
		scanner: scanner,
		ledger:  ledgerService,
		config:  config,
		logger:  logger.WithComponent(log.ComponentIngest),
		trigger: make(chan struct{}, 1),
	}
}

// Start begins the scan loop. Returns an error if already running.
func (p *IngestProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("ingest processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go p.runLoop(ctx)

	p.logger.InfoContext(ctx, "Ingest processor started", "interval", p.config.Interval)
	return nil
}

// Stop gracefully stops the processor and waits for the current scan.
func (p *IngestProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	close(p.stopCh)

	select {
	case <-p.doneCh:
		p.logger.InfoContext(ctx, "Ingest processor stopped gracefully")
	case <-ctx.Done():
		p.logger.WarnContext(ctx, "Ingest processor stop timed out")
		return ctx.Err()
	}

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()
	return nil
}

// IsRunning returns whether the processor is currently running
func (p *IngestProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Trigger requests a scan without waiting for it. Requests made while one
// is already queued collapse into it.
func (p *IngestProcessor) Trigger() {
	select {
	case p.trigger <- struct{}{}:
	default:
	}
}

// ScanNow runs a scan synchronously. A scan already in flight is joined.
func (p *IngestProcessor) ScanNow(ctx context.Context) (ingest.ScanResult, error) {
	return p.scanner.Scan(ctx)
}

func (p *IngestProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	// Scan immediately on startup
	p.scanOnce(ctx)

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.scanOnce(ctx)
		case <-p.trigger:
			p.scanOnce(ctx)
		}
	}
}

func (p *IngestProcessor) scanOnce(ctx context.Context) {
	res, err := p.scanner.Scan(ctx)
	switch {
	case errors.Is(err, ingest.ErrPermissionDenied):
		// Already reported by the pipeline; the next trigger retries.
	case err != nil:
		p.logger.ErrorContext(ctx, "Ingest scan failed",
			log.FieldError, err, log.FieldOperation, log.OpScan)
	case res.Presented > 0:
		p.logger.InfoContext(ctx, "New candidates awaiting review",
			log.FieldPresented, res.Presented, "pending", res.Pending)
	}
}

// Pending lists candidates awaiting a decision.
func (p *IngestProcessor) Pending(ctx context.Context) ([]core.CandidateTransaction, error) {
	return p.scanner.Pending(ctx)
}

// AcceptEdits are optional user changes applied to a candidate's draft.
type AcceptEdits struct {
	Category    string `json:"category,omitempty"`
	Description string `json:"description,omitempty"`
}

// Accept confirms a pending candidate into the ledger; the call is the
// user's confirmation, so no unconfirmed draft is kept. The ledger entry is
// written before the candidate is resolved, so an interrupted accept can
// be retried; the ledger refuses a second entry from the same candidate.
func (p *IngestProcessor) Accept(ctx context.Context, id string, edits AcceptEdits) (core.Transaction, error) {
	candidate, err := p.findPending(ctx, id)
	if err != nil {
		return core.Transaction{}, err
	}

	draft := candidate.Draft()
	if c := strings.TrimSpace(edits.Category); c != "" {
		draft.Category = c
	}
	if d := strings.TrimSpace(edits.Description); d != "" {
		draft.Description = d
	}

	inserted, err := p.ledger.Insert(ctx, draft)
	if err != nil && !errors.Is(err, ledger.ErrDuplicateSource) {
		return core.Transaction{}, fmt.Errorf("confirm candidate %s: %w", id, err)
	}
	if err != nil {
		p.logger.InfoContext(ctx, "Candidate already recorded, resolving",
			log.FieldCandidateID, id)
		inserted, _ = findBySource(p.ledger.Snapshot().Ledger, id)
	}

	if _, err := p.scanner.Accept(ctx, id); err != nil {
		return core.Transaction{}, err
	}
	return inserted, nil
}

// Ignore resolves a candidate without touching the ledger.
func (p *IngestProcessor) Ignore(ctx context.Context, id string) error {
	return p.scanner.Ignore(ctx, id)
}

func (p *IngestProcessor) findPending(ctx context.Context, id string) (core.CandidateTransaction, error) {
	pending, err := p.scanner.Pending(ctx)
	if err != nil {
		return core.CandidateTransaction{}, fmt.Errorf("list pending candidates: %w", err)
	}
	for _, c := range pending {
		if c.ID == id {
			return c, nil
		}
	}
	return core.CandidateTransaction{}, fmt.Errorf("%w: %s", ingest.ErrCandidateNotFound, id)
}

func findBySource(l ledger.Ledger, sourceID string) (core.Transaction, bool) {
	for _, tx := range l.Entries() {
		if tx.SourceID == sourceID {
			return tx, true
		}
	}
	return core.Transaction{}, false
}
