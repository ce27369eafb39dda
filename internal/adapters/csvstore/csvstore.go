package csvstore

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"tradealerter/internal/domain"
	"tradealerter/internal/ports"
)

// Column set of the position table, fixed so the UI/dispatch consumer can
// parse the file between polls.
var header = []string{
	"date", "symbol", "isopen", "broker", "qty", "avged", "fills", "price", "ordID",
	"PnL", "PnL$", "PnLs", "PnLs$", "asset",
	"STC-price", "STC-date", "STC-ordID", "STC-fills", "STC-qty",
	"STCs-price", "STCs-date", "STCs-ordID", "STCs-fills", "STCs-qty",
	"avg_date", "avg_qty", "avg_price", "avg_ordID",
	"BTO-n", "STC-n", "BTOs-sent", "STCs-sent",
}

// Store implements ports.LedgerStore over a flat CSV file, one row per
// position, header always present. Saves rewrite the whole file through a
// temp-then-rename so concurrent readers never see a torn table.
type Store struct {
	path   string
	logger ports.Logger
}

// Config holds configuration for the CSV ledger store.
type Config struct {
	Path   string
	Logger ports.Logger
}

// New creates a CSV-backed ledger store, creating the parent directory if
// needed.
func New(cfg Config) (*Store, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for CSV store")
	}
	if cfg.Path == "" {
		return nil, fmt.Errorf("path is required for CSV store: %w", ports.ErrConfigurationError)
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory %q: %w", filepath.Dir(cfg.Path), err)
	}
	return &Store{path: cfg.Path, logger: cfg.Logger}, nil
}

// Load reads the persisted table. A missing file is an empty ledger; a
// malformed one returns ErrStoreCorrupt so startup aborts instead of silently
// re-processing recorded history.
func (s *Store) Load() ([]*domain.Position, error) {
	f, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.logger.Info(context.Background(), "No position table found, starting empty", map[string]interface{}{"path": s.path})
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open position table %q: %w", s.path, err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("position table %q: %v: %w", s.path, err, ports.ErrStoreCorrupt)
	}
	if len(records) == 0 {
		return nil, nil
	}
	if len(records[0]) != len(header) {
		return nil, fmt.Errorf("position table %q: expected %d columns, got %d: %w",
			s.path, len(header), len(records[0]), ports.ErrStoreCorrupt)
	}

	positions := make([]*domain.Position, 0, len(records)-1)
	for i, rec := range records[1:] {
		pos, err := scanRow(rec)
		if err != nil {
			return nil, fmt.Errorf("position table %q row %d: %v: %w", s.path, i+1, err, ports.ErrStoreCorrupt)
		}
		positions = append(positions, pos)
	}
	s.logger.Info(context.Background(), "Position table loaded", map[string]interface{}{"path": s.path, "rows": len(positions)})
	return positions, nil
}

// Save rewrites the entire table atomically.
func (s *Store) Save(positions []*domain.Position) error {
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".portfolio-*.csv")
	if err != nil {
		return fmt.Errorf("failed to create temp table file: %w", err)
	}
	tmpName := tmp.Name()

	w := csv.NewWriter(tmp)
	if err := w.Write(header); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write table header: %w", err)
	}
	for _, p := range positions {
		if err := w.Write(renderRow(p)); err != nil {
			tmp.Close()
			os.Remove(tmpName)
			return fmt.Errorf("failed to write table row for %s/%s: %w", p.Symbol, p.Broker, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to flush table: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp table file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace position table %q: %w", s.path, err)
	}
	return nil
}

func renderRow(p *domain.Position) []string {
	isopen := "0"
	if p.IsOpen() {
		isopen = "1"
	}
	// Exit-side numerics stay empty until the first exit so the table reads
	// the same as before any exit was recorded.
	stcPrice, stcFills, stcQty, pnl, pnlD := "", "", "", "", ""
	if p.STCn > 0 {
		stcPrice = formatFloat(p.STCPrice)
		stcFills = formatFloat(p.STCFills)
		stcQty = formatFloat(p.STCQty)
		pnl = formatFloat(p.PnL)
		pnlD = formatFloat(p.PnLD)
	}
	return []string{
		p.Date, p.Symbol, isopen, p.Broker,
		formatFloat(p.Qty), strconv.Itoa(p.Avged), formatFloat(p.Fills), formatFloat(p.Price), p.OrdID,
		pnl, pnlD, p.PnLs, p.PnLsD, string(p.Asset),
		stcPrice, p.STCDate, p.STCOrdID, stcFills, stcQty,
		p.STCsPrice, p.STCsDate, p.STCsOrdID, p.STCsFills, p.STCsQty,
		p.AvgDate, p.AvgQty, p.AvgPrice, p.AvgOrdID,
		strconv.Itoa(p.BTOn), strconv.Itoa(p.STCn), strconv.Itoa(p.BTOsSent), strconv.Itoa(p.STCsSent),
	}
}

func scanRow(rec []string) (*domain.Position, error) {
	var err error
	p := &domain.Position{
		Date:      rec[0],
		Symbol:    rec[1],
		Broker:    rec[3],
		OrdID:     rec[8],
		PnLs:      rec[11],
		PnLsD:     rec[12],
		Asset:     domain.AssetClass(rec[13]),
		STCDate:   rec[15],
		STCOrdID:  rec[16],
		STCsPrice: rec[19],
		STCsDate:  rec[20],
		STCsOrdID: rec[21],
		STCsFills: rec[22],
		STCsQty:   rec[23],
		AvgDate:   rec[24],
		AvgQty:    rec[25],
		AvgPrice:  rec[26],
		AvgOrdID:  rec[27],
	}
	if p.Qty, err = parseFloat(rec[4]); err != nil {
		return nil, fmt.Errorf("qty: %v", err)
	}
	if p.Avged, err = parseInt(rec[5]); err != nil {
		return nil, fmt.Errorf("avged: %v", err)
	}
	if p.Fills, err = parseFloat(rec[6]); err != nil {
		return nil, fmt.Errorf("fills: %v", err)
	}
	if p.Price, err = parseFloat(rec[7]); err != nil {
		return nil, fmt.Errorf("price: %v", err)
	}
	if p.PnL, err = parseFloat(rec[9]); err != nil {
		return nil, fmt.Errorf("PnL: %v", err)
	}
	if p.PnLD, err = parseFloat(rec[10]); err != nil {
		return nil, fmt.Errorf("PnL$: %v", err)
	}
	if p.STCPrice, err = parseFloat(rec[14]); err != nil {
		return nil, fmt.Errorf("STC-price: %v", err)
	}
	if p.STCFills, err = parseFloat(rec[17]); err != nil {
		return nil, fmt.Errorf("STC-fills: %v", err)
	}
	if p.STCQty, err = parseFloat(rec[18]); err != nil {
		return nil, fmt.Errorf("STC-qty: %v", err)
	}
	if p.BTOn, err = parseInt(rec[28]); err != nil {
		return nil, fmt.Errorf("BTO-n: %v", err)
	}
	if p.STCn, err = parseInt(rec[29]); err != nil {
		return nil, fmt.Errorf("STC-n: %v", err)
	}
	if p.BTOsSent, err = parseInt(rec[30]); err != nil {
		return nil, fmt.Errorf("BTOs-sent: %v", err)
	}
	if p.STCsSent, err = parseInt(rec[31]); err != nil {
		return nil, fmt.Errorf("STCs-sent: %v", err)
	}
	return p, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func parseFloat(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

func parseInt(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}
