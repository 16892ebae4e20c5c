package ingest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/sync/singleflight"

	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/metrics"
	"fintrack/internal/resilience"
)

// PipelineConfig holds configuration for the ingestion pipeline
type PipelineConfig struct {
	// BatchSize caps how many feed messages one scan reads (default: 50)
	BatchSize int

	// Location is used to truncate message timestamps to calendar days
	// (default: time.Local)
	Location *time.Location
}

// DefaultPipelineConfig returns sensible defaults
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		BatchSize: 50,
		Location:  time.Local,
	}
}

// ScanResult summarizes one scan cycle.
type ScanResult struct {
	Fetched    int       `json:"fetched"`
	Presented  int       `json:"presented"`
	Duplicates int       `json:"duplicates"`
	Misses     int       `json:"misses"`
	Pending    int       `json:"pending"`
	Checkpoint time.Time `json:"checkpoint"`
	Advanced   bool      `json:"advanced"`
	// Shared is set when this call joined a scan already in flight.
	Shared bool `json:"shared"`
}

// Pipeline runs scan cycles against a feed and resolves the candidates
// they present. Scans are serialized: a scan requested while another is
// running joins it instead of starting a second one.
type Pipeline struct {
	feed      Feed
	gate      PermissionGate
	store     StateStore
	presenter Presenter
	config    PipelineConfig

	breaker *gobreaker.CircuitBreaker
	metrics *metrics.Metrics
	logger  *log.Logger
	events  *log.StructuredLogger
	now     func() time.Time

	// mu guards the durable state against interleaved scans and resolutions.
	mu    sync.Mutex
	group singleflight.Group
}

type Option func(*Pipeline)

func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

func WithLogger(l *log.Logger) Option {
	return func(p *Pipeline) {
		p.logger = l.WithComponent(log.ComponentIngest)
		p.events = log.NewStructuredLogger(l)
	}
}

func WithBreaker(cb *gobreaker.CircuitBreaker) Option {
	return func(p *Pipeline) { p.breaker = cb }
}

func NewPipeline(feed Feed, gate PermissionGate, store StateStore, presenter Presenter, config PipelineConfig, opts ...Option) *Pipeline {
	if config.BatchSize < 1 {
		config.BatchSize = DefaultPipelineConfig().BatchSize
	}
	if config.Location == nil {
		config.Location = time.Local
	}
	p := &Pipeline{
		feed:      feed,
		gate:      gate,
		store:     store,
		presenter: presenter,
		config:    config,
		now:       time.Now,
	}
	WithLogger(log.New(log.DefaultConfig()))(p)
	for _, opt := range opts {
		opt(p)
	}
	if p.breaker == nil {
		p.breaker = resilience.NewCircuitBreaker("notification-feed")
	}
	return p
}

// Scan runs one cycle: permission check, fetch, parse, dedup and present.
// The checkpoint advances only when no presented candidate is left
// unresolved.
func (p *Pipeline) Scan(ctx context.Context) (ScanResult, error) {
	v, err, shared := p.group.Do("scan", func() (interface{}, error) {
		return p.scan(ctx)
	})
	if shared {
		p.metrics.IncScan(metrics.ScanCoalesced)
	}
	res, _ := v.(ScanResult)
	res.Shared = shared
	return res, err
}

func (p *Pipeline) scan(ctx context.Context) (ScanResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	granted, err := p.gate.FeedAccessGranted(ctx)
	if err != nil {
		p.metrics.IncScan(metrics.ScanFailed)
		return ScanResult{}, fmt.Errorf("check feed permission: %w", err)
	}
	if !granted {
		p.metrics.IncScan(metrics.ScanPermissionDenied)
		p.logger.WarnContext(ctx, "Notification feed access denied, skipping scan")
		return ScanResult{}, ErrPermissionDenied
	}

	cursor, err := p.loadCursor(ctx)
	if err != nil {
		p.metrics.IncScan(metrics.ScanFailed)
		return ScanResult{}, err
	}

	scanTime := p.now()
	msgs, err := resilience.Execute(p.breaker, func() ([]Message, error) {
		return p.feed.List(ctx, Filter{Since: cursor.Checkpoint, MaxCount: p.config.BatchSize})
	})
	if err != nil {
		p.metrics.IncScan(metrics.ScanFailed)
		return ScanResult{}, fmt.Errorf("fetch feed: %w", err)
	}

	// A full batch may have left messages behind; only claim coverage up
	// to the last one read.
	bound := scanTime
	if len(msgs) >= p.config.BatchSize {
		bound = msgs[len(msgs)-1].Timestamp
	}

	pending, err := p.store.ListPending(ctx)
	if err != nil {
		p.metrics.IncScan(metrics.ScanFailed)
		return ScanResult{}, fmt.Errorf("list pending candidates: %w", err)
	}
	outstanding := make(map[string]struct{}, len(pending))
	for _, c := range pending {
		outstanding[c.ID] = struct{}{}
	}

	res := ScanResult{Fetched: len(msgs)}
	for _, msg := range msgs {
		candidate, ok := ParseMessage(msg, p.config.Location)
		if !ok {
			res.Misses++
			continue
		}
		if _, dup := outstanding[candidate.ID]; dup {
			res.Duplicates++
			continue
		}
		processed, err := p.store.IsProcessed(ctx, candidate.ID)
		if err != nil {
			p.metrics.IncScan(metrics.ScanFailed)
			return res, fmt.Errorf("check processed %s: %w", candidate.ID, err)
		}
		if processed {
			res.Duplicates++
			continue
		}

		if err := p.store.SavePending(ctx, candidate); err != nil {
			p.metrics.IncScan(metrics.ScanFailed)
			return res, fmt.Errorf("save pending %s: %w", candidate.ID, err)
		}
		outstanding[candidate.ID] = struct{}{}
		res.Presented++

		if err := p.presenter.Present(ctx, candidate); err != nil {
			// The candidate stays pending and can still be listed and resolved.
			p.logger.WarnContext(ctx, "Failed to present candidate",
				log.FieldCandidateID, candidate.ID, log.FieldError, err)
		}
	}

	// The bound belongs to this scan alone. Keeping an older, later bound
	// would let a truncated batch skip the messages it left behind.
	cursor.ScanBound = bound
	res.Advanced = advance(&cursor, len(outstanding))
	if err := p.store.SaveCursor(ctx, cursor); err != nil {
		p.metrics.IncScan(metrics.ScanFailed)
		return res, fmt.Errorf("save cursor: %w", err)
	}

	res.Pending = len(outstanding)
	res.Checkpoint = cursor.Checkpoint

	p.metrics.IncScan(metrics.ScanOK)
	p.metrics.AddCandidates(metrics.CandidatePresented, res.Presented)
	p.metrics.AddCandidates(metrics.CandidateDuplicate, res.Duplicates)
	p.metrics.AddCandidates(metrics.CandidateParseMiss, res.Misses)
	p.events.LogScanCompleted(ctx, res.Fetched, res.Presented, res.Duplicates+res.Misses, cursor.Checkpoint.Format(time.RFC3339))

	return res, nil
}

// loadCursor initializes the checkpoint to now on first run.
func (p *Pipeline) loadCursor(ctx context.Context) (Cursor, error) {
	cursor, err := p.store.LoadCursor(ctx)
	if err != nil {
		return Cursor{}, fmt.Errorf("load cursor: %w", err)
	}
	if cursor.Checkpoint.IsZero() {
		now := p.now()
		cursor = Cursor{Checkpoint: now, ScanBound: now}
		if err := p.store.SaveCursor(ctx, cursor); err != nil {
			return Cursor{}, fmt.Errorf("initialize cursor: %w", err)
		}
		p.logger.InfoContext(ctx, "Initialized ingestion checkpoint", log.FieldCheckpoint, now.Format(time.RFC3339))
	}
	return cursor, nil
}

// advance moves the checkpoint up to the scan bound once nothing is
// outstanding. It never moves backward.
func advance(cursor *Cursor, outstanding int) bool {
	if outstanding > 0 || !cursor.ScanBound.After(cursor.Checkpoint) {
		return false
	}
	cursor.Checkpoint = cursor.ScanBound
	return true
}

// Pending lists candidates awaiting a decision, in presentation order.
func (p *Pipeline) Pending(ctx context.Context) ([]core.CandidateTransaction, error) {
	return p.store.ListPending(ctx)
}

// Accept resolves a candidate and returns the draft transaction the caller
// must still confirm into the ledger.
func (p *Pipeline) Accept(ctx context.Context, id string) (core.Transaction, error) {
	c, err := p.resolve(ctx, id, metrics.CandidateAccepted)
	if err != nil {
		return core.Transaction{}, err
	}
	return c.Draft(), nil
}

// Ignore resolves a candidate without touching the ledger.
func (p *Pipeline) Ignore(ctx context.Context, id string) error {
	_, err := p.resolve(ctx, id, metrics.CandidateIgnored)
	return err
}

func (p *Pipeline) resolve(ctx context.Context, id, outcome string) (core.CandidateTransaction, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	pending, err := p.store.ListPending(ctx)
	if err != nil {
		return core.CandidateTransaction{}, fmt.Errorf("list pending candidates: %w", err)
	}
	var found *core.CandidateTransaction
	for i := range pending {
		if pending[i].ID == id {
			found = &pending[i]
			break
		}
	}
	if found == nil {
		return core.CandidateTransaction{}, fmt.Errorf("%w: %s", ErrCandidateNotFound, id)
	}

	if err := p.store.MarkProcessed(ctx, id); err != nil {
		return core.CandidateTransaction{}, fmt.Errorf("mark processed %s: %w", id, err)
	}
	if err := p.store.DeletePending(ctx, id); err != nil {
		return core.CandidateTransaction{}, fmt.Errorf("delete pending %s: %w", id, err)
	}
	p.metrics.AddCandidates(outcome, 1)

	// The resolution itself is durable at this point. A cursor failure only
	// delays the advance until the next scan.
	cursor, err := p.store.LoadCursor(ctx)
	if err != nil {
		p.logger.WarnContext(ctx, "Failed to load cursor after resolution", log.FieldError, err)
	} else if advance(&cursor, len(pending)-1) {
		if err := p.store.SaveCursor(ctx, cursor); err != nil {
			p.logger.WarnContext(ctx, "Failed to advance checkpoint", log.FieldError, err)
		} else {
			p.logger.InfoContext(ctx, "Ingestion checkpoint advanced",
				log.FieldCheckpoint, cursor.Checkpoint.Format(time.RFC3339))
		}
	}

	p.logger.DebugContext(ctx, "Candidate resolved", log.FieldCandidateID, id, log.FieldOperation, outcome)
	return *found, nil
}

// Cursor returns the current durable scan position.
func (p *Pipeline) Cursor(ctx context.Context) (Cursor, error) {
	return p.store.LoadCursor(ctx)
}
