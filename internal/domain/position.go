package domain

// Position is one row of the trading ledger: a single open-or-closed trade
// instance identified by (Symbol, Broker) while open. Entry fills average into
// it, exit fills accumulate against it; the comma-joined history columns are an
// append-only audit trail and are never rewritten.
type Position struct {
	Date   string // CloseTime of the first entry fill
	Symbol string
	Broker string
	Asset  AssetClass

	// Entry side. Qty is cumulative ordered size, Fills cumulative executed
	// size across all averaging entries; Price is the running weighted-average
	// entry cost, rounded to 2 decimals on every averaging entry.
	Qty   float64
	Fills float64
	Price float64
	OrdID string // most recent entry fill id
	Avged int    // averaging entries beyond the first
	BTOn  int    // entry fills applied

	// Entry averaging history, one element appended per averaging entry.
	AvgDate  string
	AvgQty   string
	AvgPrice string
	AvgOrdID string

	// Exit side. STCPrice is the running weighted-average exit cost over
	// cumulative STCFills, same averaging law as the entry side.
	STCPrice float64
	STCDate  string
	STCOrdID string
	STCFills float64
	STCQty   float64
	STCn     int // exit fills applied

	// Per-exit history, parallel to the avg_* columns.
	STCsPrice string
	STCsDate  string
	STCsOrdID string
	STCsFills string
	STCsQty   string

	// Realized PnL on the running average exit price against entry price,
	// recomputed fully on each new exit. PnL is percent, PnLD dollars, both
	// 2-decimal. PnLs/PnLsD hold the per-exit figures.
	PnL   float64
	PnLD  float64
	PnLs  string
	PnLsD string

	// Alert-dispatch counters, incremented by the outbound consumer.
	BTOsSent int
	STCsSent int
}

// IsOpen derives the open state: a position stays open until cumulative exit
// fills reach cumulative entry fills. Stored tables write the derived value so
// the flag cannot drift from the fill arithmetic.
func (p *Position) IsOpen() bool {
	return p.STCFills < p.Fills
}
