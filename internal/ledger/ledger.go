package ledger

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"sync"

	"tradealerter/internal/domain"
	"tradealerter/internal/ports"
)

// DeltaKind classifies the ledger mutation an applied fill produced.
type DeltaKind string

const (
	DeltaOpened            DeltaKind = "opened"
	DeltaAveragedEntry     DeltaKind = "averaged_entry"
	DeltaExited            DeltaKind = "exited"        // first exit against the position
	DeltaAveragedExit      DeltaKind = "averaged_exit" // subsequent exit, averaged in
	DeltaOrphanExit        DeltaKind = "orphan_exit"
	DeltaRejectedAveraging DeltaKind = "rejected_averaging" // averaging into a not-fully-filled position
	DeltaSkipped           DeltaKind = "skipped"            // order not filled, no-op
)

// Delta is the result of applying one fill. Ref indexes the mutated row in the
// table; it is meaningful only when HasRef is true (orphan exits and skips do
// not touch a row). Position is a copy of the row after the mutation.
type Delta struct {
	Kind     DeltaKind
	Ref      int
	HasRef   bool
	Position *domain.Position
}

// Ledger is the position-reconciliation state machine. It is the single writer
// of the durable position table: every mutating branch serializes the whole
// table through the store before returning, so a fill is never acknowledged
// upstream until its ledger effect is durable. One mutex guards the in-memory
// table against the external consumers that read snapshots and bump the
// *-sent counters between poll cycles.
type Ledger struct {
	mu     sync.Mutex
	store  ports.LedgerStore
	logger ports.Logger
	rows   []*domain.Position
}

// New builds a ledger over the persisted table. A malformed table is fatal:
// starting from an empty ledger would re-open and re-average already-recorded
// history on the next poll.
func New(store ports.LedgerStore, logger ports.Logger) (*Ledger, error) {
	if store == nil || logger == nil {
		return nil, fmt.Errorf("ledger requires a store and a logger")
	}
	rows, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("loading position table: %w", err)
	}
	return &Ledger{store: store, logger: logger, rows: rows}, nil
}

// Apply routes one normalized fill through the open/average/close/average-close
// transitions and persists the table. Orphan exits return ErrOrphanExit with no
// mutation; averaging into a not-fully-filled position returns
// ErrPositionNotFilled with no mutation. Non-FILLED orders are a no-op.
func (l *Ledger) Apply(ctx context.Context, order domain.Order) (Delta, error) {
	if order.Status != domain.StatusFilled {
		l.logger.Debug(ctx, "Order not filled, skipping", map[string]interface{}{"orderID": order.OrderID, "status": string(order.Status)})
		return Delta{Kind: DeltaSkipped}, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	ref, pos := l.findOpen(order.Symbol, order.Broker)

	switch {
	case order.IsEntry() && pos == nil:
		return l.openPosition(ctx, order)
	case order.IsEntry():
		return l.averageEntry(ctx, order, ref, pos)
	case order.IsExit() && pos == nil:
		l.logger.Warn(ctx, "Exit fill without open position", map[string]interface{}{
			"symbol": order.Symbol, "broker": order.Broker, "orderID": order.OrderID,
		})
		return Delta{Kind: DeltaOrphanExit}, fmt.Errorf("%s %s (order %s): %w", order.Symbol, order.Broker, order.OrderID, ports.ErrOrphanExit)
	case order.IsExit() && pos.STCn == 0:
		return l.closeFirst(ctx, order, ref, pos)
	case order.IsExit():
		return l.averageExit(ctx, order, ref, pos)
	default:
		return Delta{Kind: DeltaSkipped}, fmt.Errorf("unrecognized action %q for order %s", order.Action, order.OrderID)
	}
}

// findOpen returns the open row for (symbol, broker), if any. At most one open
// row may exist per identity; rows close themselves once exit fills cover
// entry fills, so a later entry for the same identity opens a fresh row.
func (l *Ledger) findOpen(symbol, broker string) (int, *domain.Position) {
	for i, p := range l.rows {
		if p.Symbol == symbol && p.Broker == broker && p.IsOpen() {
			return i, p
		}
	}
	return -1, nil
}

func (l *Ledger) openPosition(ctx context.Context, order domain.Order) (Delta, error) {
	pos := &domain.Position{
		Date:   order.CloseTime,
		Symbol: order.Symbol,
		Broker: order.Broker,
		Asset:  order.Asset,
		Qty:    order.Quantity,
		Fills:  order.FilledQuantity,
		Price:  order.Price,
		OrdID:  order.OrderID,
		BTOn:   1,
	}
	l.rows = append(l.rows, pos)
	ref := len(l.rows) - 1

	if err := l.persist(); err != nil {
		l.rows = l.rows[:ref] // roll back the in-memory append
		return Delta{}, err
	}
	l.logger.Info(ctx, "Position opened", map[string]interface{}{
		"symbol": pos.Symbol, "broker": pos.Broker, "qty": pos.Qty, "price": pos.Price, "ref": ref,
	})
	return delta(DeltaOpened, ref, pos), nil
}

func (l *Ledger) averageEntry(ctx context.Context, order domain.Order, ref int, pos *domain.Position) (Delta, error) {
	// Averaging into a position whose fills do not yet match its ordered size
	// is a data-consistency fault, never silently corrected.
	if pos.Fills != pos.Qty {
		return Delta{Kind: DeltaRejectedAveraging}, fmt.Errorf("%s %s: fills %s != qty %s: %w",
			pos.Symbol, pos.Broker, formatNum(pos.Fills), formatNum(pos.Qty), ports.ErrPositionNotFilled)
	}

	updated := *pos
	updated.Price = round2((pos.Price*pos.Fills + order.Price*order.FilledQuantity) / (pos.Fills + order.FilledQuantity))
	updated.AvgDate = combine(pos.AvgDate, pos.Date, order.CloseTime)
	updated.AvgQty = combine(pos.AvgQty, formatNum(pos.Qty), formatNum(order.Quantity))
	updated.AvgPrice = combine(pos.AvgPrice, formatNum(pos.Price), formatNum(order.Price))
	updated.AvgOrdID = combine(pos.AvgOrdID, pos.OrdID, order.OrderID)
	updated.Qty = pos.Qty + order.Quantity
	updated.Fills = pos.Fills + order.FilledQuantity
	updated.OrdID = order.OrderID
	updated.Avged = pos.Avged + 1
	updated.BTOn = pos.BTOn + 1

	if err := l.commit(ref, &updated); err != nil {
		return Delta{}, err
	}
	l.logger.Info(ctx, "Averaged into position", map[string]interface{}{
		"symbol": updated.Symbol, "broker": updated.Broker, "avgPrice": updated.Price, "avged": updated.Avged, "ref": ref,
	})
	return delta(DeltaAveragedEntry, ref, &updated), nil
}

func (l *Ledger) closeFirst(ctx context.Context, order domain.Order, ref int, pos *domain.Position) (Delta, error) {
	updated := *pos
	updated.STCPrice = order.Price
	updated.STCDate = order.CloseTime
	updated.STCOrdID = order.OrderID
	updated.STCFills = order.FilledQuantity
	updated.STCQty = order.Quantity
	updated.PnL = round2((updated.STCPrice - pos.Price) / pos.Price * 100)
	updated.PnLD = round2(updated.PnL * pos.Price * updated.STCQty * domain.PnLMultiplier(pos.Asset))
	updated.STCn = 1

	if err := l.commit(ref, &updated); err != nil {
		return Delta{}, err
	}
	l.logger.Info(ctx, "Exit applied to position", map[string]interface{}{
		"symbol": updated.Symbol, "broker": updated.Broker, "pnlPct": updated.PnL, "pnlUsd": updated.PnLD, "open": updated.IsOpen(), "ref": ref,
	})
	return delta(DeltaExited, ref, &updated), nil
}

func (l *Ledger) averageExit(ctx context.Context, order domain.Order, ref int, pos *domain.Position) (Delta, error) {
	mult := domain.PnLMultiplier(pos.Asset)
	totFills := pos.STCFills + order.FilledQuantity
	avgPrice := round2((pos.STCPrice*pos.STCFills + order.Price*order.FilledQuantity) / totFills)

	// This-exit-only figures go to the history columns; the headline PnL is
	// recomputed against the new running average.
	currPnL := round2((order.Price - pos.Price) / pos.Price * 100)
	currPnLD := round2(currPnL * pos.Price * order.Quantity * mult)

	updated := *pos
	updated.STCsDate = combine(pos.STCsDate, pos.STCDate, order.CloseTime)
	updated.STCsQty = combine(pos.STCsQty, formatNum(pos.STCQty), formatNum(order.Quantity))
	updated.STCsPrice = combine(pos.STCsPrice, formatNum(pos.STCPrice), formatNum(order.Price))
	updated.STCsOrdID = combine(pos.STCsOrdID, pos.STCOrdID, order.OrderID)
	updated.STCsFills = combine(pos.STCsFills, formatNum(pos.STCFills), formatNum(order.FilledQuantity))
	updated.PnLs = combine(pos.PnLs, formatNum(pos.PnL), formatNum(currPnL))
	updated.PnLsD = combine(pos.PnLsD, formatNum(pos.PnLD), formatNum(currPnLD))

	updated.STCPrice = avgPrice
	updated.STCDate = order.CloseTime
	updated.STCOrdID = order.OrderID
	updated.STCFills = totFills
	updated.STCQty = pos.STCQty + order.Quantity
	updated.PnL = round2((avgPrice - pos.Price) / pos.Price * 100)
	updated.PnLD = round2(updated.PnL * pos.Price * updated.STCQty * mult)
	updated.STCn = pos.STCn + 1

	if err := l.commit(ref, &updated); err != nil {
		return Delta{}, err
	}
	l.logger.Info(ctx, "Averaged exit applied to position", map[string]interface{}{
		"symbol": updated.Symbol, "broker": updated.Broker, "stcPrice": updated.STCPrice, "pnlPct": updated.PnL, "open": updated.IsOpen(), "ref": ref,
	})
	return delta(DeltaAveragedExit, ref, &updated), nil
}

// MarkAlertSent bumps a position's dispatched-alert counter on behalf of the
// outbound consumer. Routing the increment through the ledger keeps the table
// single-writer; entry selects BTOs-sent, otherwise STCs-sent.
func (l *Ledger) MarkAlertSent(ctx context.Context, ref int, entry bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if ref < 0 || ref >= len(l.rows) {
		return fmt.Errorf("position ref %d: %w", ref, ports.ErrNotFound)
	}
	updated := *l.rows[ref]
	if entry {
		updated.BTOsSent++
	} else {
		updated.STCsSent++
	}
	return l.commit(ref, &updated)
}

// Snapshot returns a deep copy of the table for concurrent readers.
func (l *Ledger) Snapshot() []domain.Position {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]domain.Position, len(l.rows))
	for i, p := range l.rows {
		out[i] = *p
	}
	return out
}

// OpenPositions returns copies of the rows still holding quantity.
func (l *Ledger) OpenPositions() []domain.Position {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []domain.Position
	for _, p := range l.rows {
		if p.IsOpen() {
			out = append(out, *p)
		}
	}
	return out
}

// commit swaps the updated row in and persists; on persistence failure the
// previous row is restored so memory never runs ahead of disk.
func (l *Ledger) commit(ref int, updated *domain.Position) error {
	prev := l.rows[ref]
	l.rows[ref] = updated
	if err := l.persist(); err != nil {
		l.rows[ref] = prev
		return err
	}
	return nil
}

func (l *Ledger) persist() error {
	if err := l.store.Save(l.rows); err != nil {
		return fmt.Errorf("persisting position table: %w", err)
	}
	return nil
}

func delta(kind DeltaKind, ref int, pos *domain.Position) Delta {
	cp := *pos
	return Delta{Kind: kind, Ref: ref, HasRef: true, Position: &cp}
}

// combine appends a value to a comma-joined history column. The first append
// seeds the history with the current main-column value so the trail always
// starts at the opening fill.
func combine(cum, main, next string) string {
	if cum == "" {
		return main + "," + next
	}
	return cum + "," + next
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// formatNum renders a float the way the audit columns expect: no exponent, no
// trailing zeros ("3" not "3.000000").
func formatNum(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
