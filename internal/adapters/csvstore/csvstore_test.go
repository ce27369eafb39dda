package csvstore

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradealerter/internal/domain"
	"tradealerter/internal/ports"
)

type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "portfolio.csv")
	store, err := New(Config{Path: path, Logger: &mockLogger{}})
	require.NoError(t, err)
	return store, path
}

func samplePositions() []*domain.Position {
	open := &domain.Position{
		Date:     "2023-06-01 10:30:00.000000",
		Symbol:   "TSLA_060223P195",
		Broker:   "webull",
		Asset:    domain.AssetOption,
		Qty:      3,
		Fills:    3,
		Price:    3.20,
		OrdID:    "ord-2",
		Avged:    1,
		BTOn:     2,
		AvgDate:  "2023-06-01 10:30:00.000000,2023-06-01 11:00:00.000000",
		AvgQty:   "2,1",
		AvgPrice: "3.1,3.4",
		AvgOrdID: "ord-1,ord-2",
	}
	closed := &domain.Position{
		Date:     "2023-05-30 09:45:00.000000",
		Symbol:   "AAPL",
		Broker:   "webull",
		Asset:    domain.AssetStock,
		Qty:      10,
		Fills:    10,
		Price:    180,
		OrdID:    "ord-3",
		BTOn:     1,
		STCPrice: 185.5,
		STCDate:  "2023-05-31 15:59:00.000000",
		STCOrdID: "ord-4",
		STCFills: 10,
		STCQty:   10,
		STCn:     1,
		PnL:      3.06,
		PnLD:     550.8,
		BTOsSent: 1,
		STCsSent: 1,
	}
	return []*domain.Position{open, closed}
}

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	store, _ := newTestStore(t)

	want := samplePositions()
	require.NoError(t, store.Save(want))

	got, err := store.Load()
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, want[0], got[0])
	assert.Equal(t, want[1], got[1])
	assert.True(t, got[0].IsOpen())
	assert.False(t, got[1].IsOpen())
}

func TestStore_LoadMissingFileIsEmpty(t *testing.T) {
	store, _ := newTestStore(t)

	positions, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, positions)
}

func TestStore_LoadCorruptFile(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "wrong column count", content: "date,symbol,qty\n2023-06-01,TSLA,2\n"},
		{name: "non numeric qty", content: corruptRow()},
		{name: "unbalanced quotes", content: "\"date,symbol\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store, path := newTestStore(t)
			require.NoError(t, os.WriteFile(path, []byte(tc.content), 0o644))

			_, err := store.Load()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ports.ErrStoreCorrupt))
		})
	}
}

// corruptRow builds a full-width row whose qty column is not a number.
func corruptRow() string {
	cols := make([]string, len(header))
	cols[4] = "not-a-number"
	return strings.Join(header, ",") + "\n" + strings.Join(cols, ",") + "\n"
}

func TestStore_SaveWritesHeaderForEmptyTable(t *testing.T) {
	store, path := newTestStore(t)

	require.NoError(t, store.Save(nil))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, strings.Join(header, ",")+"\n", string(data))
}

func TestStore_SaveLeavesNoTempFiles(t *testing.T) {
	store, path := newTestStore(t)
	require.NoError(t, store.Save(samplePositions()))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, filepath.Base(path), entries[0].Name())
}

func TestStore_ExitColumnsEmptyBeforeFirstExit(t *testing.T) {
	store, path := newTestStore(t)
	require.NoError(t, store.Save(samplePositions()[:1]))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	fields := records[1]
	require.Len(t, fields, len(header))
	assert.Empty(t, fields[9], "PnL must stay empty before the first exit")
	assert.Empty(t, fields[14], "STC-price must stay empty before the first exit")
	assert.Empty(t, fields[17], "STC-fills must stay empty before the first exit")
}

func TestNew_RequiresPath(t *testing.T) {
	_, err := New(Config{Logger: &mockLogger{}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ports.ErrConfigurationError))
}
