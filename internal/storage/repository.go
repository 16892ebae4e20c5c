package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
	"fintrack/internal/ingest"

	_ "modernc.org/sqlite"
)

// SQLiteRepository persists the ledger, the ingestion state and the
// notification inbox in a single SQLite file.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	version, err := RunMigrations(dbPath)
	if err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One connection keeps writes serialized and the pragma below in effect.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	slog.Info("SQLite repository ready", "db_path", dbPath, "schema_version", version)
	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// LoadLedger returns the persisted entries in insertion order. Running
// balances are not stored; the caller recomputes them.
func (r *SQLiteRepository) LoadLedger(ctx context.Context) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, date, kind, category, amount, description, source_id
		FROM transactions
		ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		var (
			tx           core.Transaction
			date, amount string
			kind         string
		)
		if err := rows.Scan(&tx.ID, &date, &kind, &tx.Category, &amount, &tx.Description, &tx.SourceID); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		// A bad date is left zero so ledger validation reports it.
		if d, err := core.ParseDate(date); err == nil {
			tx.Date = d
		}
		tx.Amount, err = decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("transaction %s amount %q: %w", tx.ID, amount, err)
		}
		tx.Kind = core.Kind(kind)
		out = append(out, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}

// SaveLedger replaces the persisted ledger with entries in one transaction.
func (r *SQLiteRepository) SaveLedger(ctx context.Context, entries []core.Transaction) error {
	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer dbTx.Rollback()

	if _, err := dbTx.ExecContext(ctx, "DELETE FROM transactions"); err != nil {
		return fmt.Errorf("clear transactions: %w", err)
	}

	stmt, err := dbTx.PrepareContext(ctx, `
		INSERT INTO transactions (id, position, date, kind, category, amount, description, source_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, tx := range entries {
		if _, err := stmt.ExecContext(ctx,
			tx.ID, i, tx.Date.String(), string(tx.Kind), tx.Category,
			tx.Amount.String(), tx.Description, tx.SourceID,
		); err != nil {
			return fmt.Errorf("insert transaction %s: %w", tx.ID, err)
		}
	}

	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("commit ledger: %w", err)
	}

	slog.DebugContext(ctx, "Ledger saved to SQLite", "entries", len(entries))
	return nil
}

// LoadCursor implements ingest.StateStore. A zero cursor means no scan has
// run yet.
func (r *SQLiteRepository) LoadCursor(ctx context.Context) (ingest.Cursor, error) {
	var checkpoint, bound sql.NullInt64
	err := r.db.QueryRowContext(ctx,
		"SELECT checkpoint, scan_bound FROM ingest_state WHERE id = 1",
	).Scan(&checkpoint, &bound)
	if errors.Is(err, sql.ErrNoRows) {
		return ingest.Cursor{}, nil
	}
	if err != nil {
		return ingest.Cursor{}, fmt.Errorf("query ingest state: %w", err)
	}
	return ingest.Cursor{
		Checkpoint: fromNanos(checkpoint),
		ScanBound:  fromNanos(bound),
	}, nil
}

// SaveCursor implements ingest.StateStore.
func (r *SQLiteRepository) SaveCursor(ctx context.Context, cursor ingest.Cursor) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO ingest_state (id, checkpoint, scan_bound) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			checkpoint = excluded.checkpoint,
			scan_bound = excluded.scan_bound`,
		toNanos(cursor.Checkpoint), toNanos(cursor.ScanBound))
	if err != nil {
		return fmt.Errorf("save ingest state: %w", err)
	}
	return nil
}

// IsProcessed implements ingest.StateStore.
func (r *SQLiteRepository) IsProcessed(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM processed_candidates WHERE id = ?)", id,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("query processed candidate: %w", err)
	}
	return exists, nil
}

// MarkProcessed implements ingest.StateStore. Marking twice is a no-op.
func (r *SQLiteRepository) MarkProcessed(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO processed_candidates (id) VALUES (?)", id,
	); err != nil {
		return fmt.Errorf("insert processed candidate: %w", err)
	}
	return nil
}

// ListPending implements ingest.StateStore, in presentation order.
func (r *SQLiteRepository) ListPending(ctx context.Context) ([]core.CandidateTransaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, amount, date, kind, raw_text, merchant, received_at
		FROM pending_candidates
		ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("query pending candidates: %w", err)
	}
	defer rows.Close()

	var out []core.CandidateTransaction
	for rows.Next() {
		var (
			c                  core.CandidateTransaction
			amount, date, kind string
			received           int64
		)
		if err := rows.Scan(&c.ID, &amount, &date, &kind, &c.RawText, &c.Merchant, &received); err != nil {
			return nil, fmt.Errorf("scan pending candidate: %w", err)
		}
		if c.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("candidate %s amount %q: %w", c.ID, amount, err)
		}
		if c.Date, err = core.ParseDate(date); err != nil {
			return nil, fmt.Errorf("candidate %s: %w", c.ID, err)
		}
		if c.Kind, err = core.ParseKind(kind); err != nil {
			return nil, fmt.Errorf("candidate %s: %w", c.ID, err)
		}
		c.ReceivedAt = time.Unix(0, received).UTC()
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending candidates: %w", err)
	}
	return out, nil
}

// SavePending implements ingest.StateStore. Saving an id twice keeps its
// original position.
func (r *SQLiteRepository) SavePending(ctx context.Context, c core.CandidateTransaction) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO pending_candidates (id, amount, date, kind, raw_text, merchant, received_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			amount = excluded.amount,
			date = excluded.date,
			kind = excluded.kind,
			raw_text = excluded.raw_text,
			merchant = excluded.merchant,
			received_at = excluded.received_at`,
		c.ID, c.Amount.String(), c.Date.String(), string(c.Kind), c.RawText, c.Merchant, c.ReceivedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("save pending candidate %s: %w", c.ID, err)
	}
	return nil
}

// DeletePending implements ingest.StateStore.
func (r *SQLiteRepository) DeletePending(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM pending_candidates WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete pending candidate %s: %w", id, err)
	}
	return nil
}

// AddMessage stores a notification in the inbox. It reports false when a
// message with the same id was already there.
func (r *SQLiteRepository) AddMessage(ctx context.Context, msg ingest.Message) (bool, error) {
	if msg.ID == "" || msg.Timestamp.IsZero() {
		return false, fmt.Errorf("message requires id and timestamp")
	}
	res, err := r.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO inbox_messages (id, address, body, ts) VALUES (?, ?, ?, ?)",
		msg.ID, msg.Address, msg.Body, msg.Timestamp.UnixNano())
	if err != nil {
		return false, fmt.Errorf("insert inbox message %s: %w", msg.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("inbox rows affected: %w", err)
	}
	return n > 0, nil
}

// List implements ingest.Feed over the inbox.
func (r *SQLiteRepository) List(ctx context.Context, filter ingest.Filter) ([]ingest.Message, error) {
	since := int64(math.MinInt64)
	if !filter.Since.IsZero() {
		since = filter.Since.UnixNano()
	}
	limit := int64(-1)
	if filter.MaxCount > 0 {
		limit = int64(filter.MaxCount)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, address, body, ts
		FROM inbox_messages
		WHERE ts >= ?
		ORDER BY ts, id
		LIMIT ?`, since, limit)
	if err != nil {
		return nil, fmt.Errorf("query inbox: %w", err)
	}
	defer rows.Close()

	var out []ingest.Message
	for rows.Next() {
		var (
			msg ingest.Message
			ts  int64
		)
		if err := rows.Scan(&msg.ID, &msg.Address, &msg.Body, &ts); err != nil {
			return nil, fmt.Errorf("scan inbox message: %w", err)
		}
		msg.Timestamp = time.Unix(0, ts).UTC()
		out = append(out, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate inbox: %w", err)
	}
	return out, nil
}

func toNanos(t time.Time) sql.NullInt64 {
	if t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
}

func fromNanos(n sql.NullInt64) time.Time {
	if !n.Valid {
		return time.Time{}
	}
	return time.Unix(0, n.Int64).UTC()
}
