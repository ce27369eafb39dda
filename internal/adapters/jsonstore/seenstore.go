package jsonstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"tradealerter/internal/ports"
)

// SeenStore implements ports.SeenStore as a JSON array of order identifiers.
// MarkSeen only touches memory; Flush rewrites the file atomically, once per
// poll cycle. The upstream brokerage remains the source of truth, so losing an
// unflushed cycle only means re-discovering the same fills on the next poll.
type SeenStore struct {
	path string
	ids  []string
	seen map[string]struct{}
}

// Config holds configuration for the seen-order store.
type Config struct {
	Path   string
	Logger ports.Logger
	// Replay starts from an empty set, re-alerting the full upstream history.
	Replay bool
}

// New loads the persisted id list. Malformed JSON is fatal: an empty set would
// re-alert every historical fill.
func New(cfg Config) (*SeenStore, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for seen-order store")
	}
	if cfg.Path == "" {
		return nil, fmt.Errorf("path is required for seen-order store: %w", ports.ErrConfigurationError)
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory %q: %w", filepath.Dir(cfg.Path), err)
	}

	s := &SeenStore{path: cfg.Path, seen: make(map[string]struct{})}
	if cfg.Replay {
		cfg.Logger.Warn(context.Background(), "Replay mode: seen-order set cleared", map[string]interface{}{"path": cfg.Path})
		return s, nil
	}

	data, err := os.ReadFile(cfg.Path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg.Logger.Info(context.Background(), "No seen-order file found, starting empty", map[string]interface{}{"path": cfg.Path})
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read seen-order file %q: %w", cfg.Path, err)
	}
	if err := json.Unmarshal(data, &s.ids); err != nil {
		return nil, fmt.Errorf("seen-order file %q: %v: %w", cfg.Path, err, ports.ErrStoreCorrupt)
	}
	for _, id := range s.ids {
		s.seen[id] = struct{}{}
	}
	cfg.Logger.Info(context.Background(), "Seen-order set loaded", map[string]interface{}{"path": cfg.Path, "count": len(s.ids)})
	return s, nil
}

// Seen reports whether the order id was already processed.
func (s *SeenStore) Seen(orderID string) bool {
	_, ok := s.seen[orderID]
	return ok
}

// MarkSeen records the id in memory, preserving discovery order for the
// persisted array.
func (s *SeenStore) MarkSeen(orderID string) {
	if s.Seen(orderID) {
		return
	}
	s.seen[orderID] = struct{}{}
	s.ids = append(s.ids, orderID)
}

// Flush rewrites the persisted array through a temp-then-rename.
func (s *SeenStore) Flush() error {
	data, err := json.Marshal(s.ids)
	if err != nil {
		return fmt.Errorf("failed to encode seen-order set: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".orders-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp seen-order file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write seen-order set: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp seen-order file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace seen-order file %q: %w", s.path, err)
	}
	return nil
}

// Len returns the number of tracked identifiers.
func (s *SeenStore) Len() int {
	return len(s.ids)
}
