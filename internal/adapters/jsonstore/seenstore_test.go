package jsonstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradealerter/internal/ports"
)

type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

func TestSeenStore_MarkFlushReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orders.json")

	s, err := New(Config{Path: path, Logger: &mockLogger{}})
	require.NoError(t, err)
	assert.Equal(t, 0, s.Len())

	s.MarkSeen("ord-1")
	s.MarkSeen("ord-2")
	s.MarkSeen("ord-1") // duplicate, no-op
	assert.Equal(t, 2, s.Len())
	assert.True(t, s.Seen("ord-1"))
	assert.False(t, s.Seen("ord-3"))

	require.NoError(t, s.Flush())

	reloaded, err := New(Config{Path: path, Logger: &mockLogger{}})
	require.NoError(t, err)
	assert.Equal(t, 2, reloaded.Len())
	assert.True(t, reloaded.Seen("ord-1"))
	assert.True(t, reloaded.Seen("ord-2"))
}

func TestSeenStore_UnflushedMarksAreNotPersisted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orders.json")

	s, err := New(Config{Path: path, Logger: &mockLogger{}})
	require.NoError(t, err)
	s.MarkSeen("ord-1")

	reloaded, err := New(Config{Path: path, Logger: &mockLogger{}})
	require.NoError(t, err)
	assert.False(t, reloaded.Seen("ord-1"))
}

func TestSeenStore_PreservesDiscoveryOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orders.json")

	s, err := New(Config{Path: path, Logger: &mockLogger{}})
	require.NoError(t, err)
	s.MarkSeen("c")
	s.MarkSeen("a")
	s.MarkSeen("b")
	require.NoError(t, s.Flush())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `["c","a","b"]`, string(data))
}

func TestSeenStore_ReplayStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orders.json")
	require.NoError(t, os.WriteFile(path, []byte(`["ord-1","ord-2"]`), 0o644))

	s, err := New(Config{Path: path, Logger: &mockLogger{}, Replay: true})
	require.NoError(t, err)
	assert.Equal(t, 0, s.Len())
	assert.False(t, s.Seen("ord-1"))
}

func TestSeenStore_CorruptFileIsFatal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orders.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"not":"an array"`), 0o644))

	_, err := New(Config{Path: path, Logger: &mockLogger{}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ports.ErrStoreCorrupt))
}

func TestSeenStore_MissingFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orders.json")

	s, err := New(Config{Path: path, Logger: &mockLogger{}})
	require.NoError(t, err)
	assert.Equal(t, 0, s.Len())
}
