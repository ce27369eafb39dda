package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradealerter/internal/domain"
)

type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

func setupTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := NewJournal(Config{
		DBPath: filepath.Join(t.TempDir(), "fill_journal.db"),
		Logger: &mockLogger{},
	})
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func sampleEntry(orderID string, outcome domain.JournalOutcome) *domain.JournalEntry {
	return &domain.JournalEntry{
		OrderID:        orderID,
		Broker:         "webull",
		Symbol:         "TSLA_060223P195",
		Action:         "BUY",
		Status:         domain.StatusFilled,
		Quantity:       2,
		FilledQuantity: 2,
		Price:          3.10,
		CloseTime:      "2023-06-01 10:30:00.000000",
		Outcome:        outcome,
	}
}

func TestJournal_RecordAndFind(t *testing.T) {
	j := setupTestJournal(t)
	ctx := context.Background()

	ref := 0
	entry := sampleEntry("ord-1", domain.OutcomeOpened)
	entry.PositionRef = &ref

	id, err := j.Record(ctx, entry)
	require.NoError(t, err)
	assert.Greater(t, id, int64(0))
	assert.Equal(t, id, entry.ID)
	assert.False(t, entry.ProcessedAt.IsZero(), "Record must stamp processed_at")

	entries, err := j.FindByBroker(ctx, "webull", 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	got := entries[0]
	assert.Equal(t, "ord-1", got.OrderID)
	assert.Equal(t, "webull", got.Broker)
	assert.Equal(t, "TSLA_060223P195", got.Symbol)
	assert.Equal(t, domain.StatusFilled, got.Status)
	assert.Equal(t, 3.10, got.Price)
	assert.Equal(t, domain.OutcomeOpened, got.Outcome)
	require.NotNil(t, got.PositionRef)
	assert.Equal(t, 0, *got.PositionRef)
}

func TestJournal_RecordWithoutPositionRef(t *testing.T) {
	j := setupTestJournal(t)
	ctx := context.Background()

	entry := sampleEntry("ord-9", domain.OutcomeOrphanExit)
	entry.Action = "SELL"
	_, err := j.Record(ctx, entry)
	require.NoError(t, err)

	entries, err := j.FindByBroker(ctx, "webull", 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Nil(t, entries[0].PositionRef, "orphan exits carry no position ref")
}

func TestJournal_FindByBroker_OrderAndLimit(t *testing.T) {
	j := setupTestJournal(t)
	ctx := context.Background()

	base := time.Date(2023, 6, 1, 10, 0, 0, 0, time.UTC)
	for i, id := range []string{"ord-1", "ord-2", "ord-3"} {
		entry := sampleEntry(id, domain.OutcomeOpened)
		entry.ProcessedAt = base.Add(time.Duration(i) * time.Minute)
		_, err := j.Record(ctx, entry)
		require.NoError(t, err)
	}

	entries, err := j.FindByBroker(ctx, "webull", 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "ord-3", entries[0].OrderID, "most recent first")
	assert.Equal(t, "ord-2", entries[1].OrderID)

	entries, err = j.FindByBroker(ctx, "etrade", 10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestJournal_CountByOutcome(t *testing.T) {
	j := setupTestJournal(t)
	ctx := context.Background()

	for _, outcome := range []domain.JournalOutcome{
		domain.OutcomeOpened, domain.OutcomeOpened, domain.OutcomeExited, domain.OutcomeOrphanExit,
	} {
		_, err := j.Record(ctx, sampleEntry("ord-x", outcome))
		require.NoError(t, err)
	}

	opened, err := j.CountByOutcome(ctx, domain.OutcomeOpened)
	require.NoError(t, err)
	assert.Equal(t, 2, opened)

	exited, err := j.CountByOutcome(ctx, domain.OutcomeExited)
	require.NoError(t, err)
	assert.Equal(t, 1, exited)

	averaged, err := j.CountByOutcome(ctx, domain.OutcomeAveragedEntry)
	require.NoError(t, err)
	assert.Equal(t, 0, averaged)
}
