package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"tradealerter/internal/domain"
	"tradealerter/internal/ports"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Journal implements ports.FillJournal using SQLite: an append-only audit
// record of every fill the poll loop handled, including rejected ones. The
// position table stays in CSV for the UI consumer; the journal keeps the full
// normalized orders that the seen-id file no longer carries.
type Journal struct {
	db     *sql.DB
	logger ports.Logger
}

// Config holds configuration for the SQLite fill journal.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// NewJournal creates a new SQLite fill journal instance.
func NewJournal(cfg Config) (*Journal, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite journal")
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/fill_journal.db"
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		err = fmt.Errorf("failed to create data directory %q: %w", filepath.Dir(dbPath), err)
		cfg.Logger.Error(context.Background(), err, "SQLite journal initialization failed")
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000") // WAL mode for better concurrency
	if err != nil {
		err = fmt.Errorf("failed to open database at %q: %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite journal initialization failed")
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		err = fmt.Errorf("failed to ping database at %q: %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite journal initialization failed")
		return nil, err
	}

	// SQLite handles concurrency internally; the Go driver benefits from a
	// single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	j := &Journal{db: db, logger: cfg.Logger}
	if err := j.initializeSchema(context.Background()); err != nil {
		db.Close()
		err = fmt.Errorf("failed to initialize journal schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "SQLite journal initialization failed")
		return nil, err
	}
	cfg.Logger.Info(context.Background(), "Fill journal initialized", map[string]interface{}{"path": dbPath})
	return j, nil
}

func (j *Journal) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS fill_journal (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		order_id TEXT NOT NULL,
		broker TEXT NOT NULL,
		symbol TEXT NOT NULL,
		action TEXT NOT NULL,
		status TEXT NOT NULL,
		quantity REAL NOT NULL,
		filled_quantity REAL NOT NULL,
		price REAL NOT NULL,
		close_time TEXT NOT NULL,
		outcome TEXT NOT NULL,
		position_ref INTEGER DEFAULT NULL,
		processed_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_fill_journal_broker_order ON fill_journal (broker, order_id);
	CREATE INDEX IF NOT EXISTS idx_fill_journal_outcome ON fill_journal (outcome);
	`
	if _, err := j.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to execute schema initialization: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (j *Journal) Close() error {
	if j.db != nil {
		j.logger.Info(context.Background(), "Closing fill journal")
		return j.db.Close()
	}
	return nil
}

// Record appends one processed fill and returns its assigned ID.
func (j *Journal) Record(ctx context.Context, entry *domain.JournalEntry) (int64, error) {
	const query = `
	INSERT INTO fill_journal (order_id, broker, symbol, action, status, quantity,
	                          filled_quantity, price, close_time, outcome, position_ref, processed_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	var ref sql.NullInt64
	if entry.PositionRef != nil {
		ref = sql.NullInt64{Int64: int64(*entry.PositionRef), Valid: true}
	}
	processedAt := entry.ProcessedAt
	if processedAt.IsZero() {
		processedAt = time.Now().UTC()
	}

	result, err := j.db.ExecContext(ctx, query,
		entry.OrderID, entry.Broker, entry.Symbol, entry.Action, string(entry.Status),
		entry.Quantity, entry.FilledQuantity, entry.Price, entry.CloseTime,
		string(entry.Outcome), ref, processedAt)
	if err != nil {
		return 0, fmt.Errorf("failed to insert journal entry for order %s: %w", entry.OrderID, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for order %s: %w", entry.OrderID, err)
	}
	entry.ID = id
	entry.ProcessedAt = processedAt
	j.logger.Debug(ctx, "Journal entry recorded", map[string]interface{}{"journalID": id, "orderID": entry.OrderID, "outcome": string(entry.Outcome)})
	return id, nil
}

// FindByBroker retrieves the most recent entries for a broker, up to limit.
func (j *Journal) FindByBroker(ctx context.Context, broker string, limit int) ([]*domain.JournalEntry, error) {
	const query = `
	SELECT id, order_id, broker, symbol, action, status, quantity, filled_quantity,
	       price, close_time, outcome, position_ref, processed_at
	FROM fill_journal
	WHERE broker = ? ORDER BY processed_at DESC, id DESC LIMIT ?`

	rows, err := j.db.QueryContext(ctx, query, broker, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query journal for broker %s: %v: %w", broker, err, ports.ErrQueryFailed)
	}
	defer rows.Close()

	entries := make([]*domain.JournalEntry, 0)
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan journal entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating journal rows: %w", err)
	}
	return entries, nil
}

// CountByOutcome counts recorded fills with the given outcome.
func (j *Journal) CountByOutcome(ctx context.Context, outcome domain.JournalOutcome) (int, error) {
	const query = `SELECT COUNT(*) FROM fill_journal WHERE outcome = ?`
	var count int
	if err := j.db.QueryRowContext(ctx, query, string(outcome)).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count journal entries for outcome %s: %v: %w", outcome, err, ports.ErrQueryFailed)
	}
	return count, nil
}

// scanner defines an interface compatible with *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanEntry(s scanner) (*domain.JournalEntry, error) {
	e := &domain.JournalEntry{}
	var status, outcome string
	var ref sql.NullInt64
	err := s.Scan(
		&e.ID, &e.OrderID, &e.Broker, &e.Symbol, &e.Action, &status,
		&e.Quantity, &e.FilledQuantity, &e.Price, &e.CloseTime, &outcome, &ref, &e.ProcessedAt)
	if err != nil {
		return nil, err
	}
	e.Status = domain.OrderStatus(status)
	e.Outcome = domain.JournalOutcome(outcome)
	if ref.Valid {
		v := int(ref.Int64)
		e.PositionRef = &v
	}
	return e, nil
}
