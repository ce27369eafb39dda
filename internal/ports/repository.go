package ports

import (
	"context"

	"tradealerter/internal/domain"
)

// LedgerStore persists the full position table. The table is the sole durable
// representation of the ledger and is rewritten in full after every mutation;
// writes must be atomic so a concurrent reader never observes a torn file.
type LedgerStore interface {
	// Load reads the persisted table. A missing file yields an empty table;
	// a malformed one must return ErrStoreCorrupt (startup aborts on it).
	Load() ([]*domain.Position, error)
	// Save rewrites the entire table.
	Save(positions []*domain.Position) error
}

// SeenStore tracks which order identifiers have already been processed so a
// restart does not re-alert historical fills.
type SeenStore interface {
	// Seen reports whether the order id was already processed.
	Seen(orderID string) bool
	// MarkSeen records the id in memory; it becomes durable on Flush.
	MarkSeen(orderID string)
	// Flush persists the seen set. Called once per poll cycle; a crash loses
	// at most one unflushed cycle, which the next poll re-discovers upstream.
	Flush() error
	// Len returns the number of tracked identifiers.
	Len() int
}

// FillJournal is the append-only audit record of every fill the poll loop
// handled, including ones rejected as data-consistency faults.
type FillJournal interface {
	// Record appends one processed fill and returns its assigned ID.
	Record(ctx context.Context, entry *domain.JournalEntry) (int64, error)
	// FindByBroker retrieves the most recent entries for a broker, up to limit.
	FindByBroker(ctx context.Context, broker string, limit int) ([]*domain.JournalEntry, error)
	// CountByOutcome counts recorded fills with the given outcome.
	CountByOutcome(ctx context.Context, outcome domain.JournalOutcome) (int, error)
}
