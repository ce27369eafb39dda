package domain

import "strings"

// CloseTimeLayout is the timestamp layout brokerage adapters produce for
// Order.CloseTime (microsecond precision, no timezone).
const CloseTimeLayout = "2006-01-02 15:04:05.000000"

// AssetClass distinguishes the instrument type of a fill.
type AssetClass string

const (
	AssetStock  AssetClass = "stock"
	AssetOption AssetClass = "option"
)

// OrderStatus represents the execution state reported by the brokerage.
type OrderStatus string

const (
	StatusFilled  OrderStatus = "FILLED"
	StatusWorking OrderStatus = "WORKING"
)

// Order is the normalized fill record every brokerage adapter must produce.
// It is immutable once received; option symbols embed expiry/type/strike as
// "UNDERLYING_MMDDYY[CP]STRIKE".
type Order struct {
	Symbol         string     // e.g. "TSLA" or "TSLA_060223P195"
	Asset          AssetClass // instrument type, selects the PnL$ multiplier
	Broker         string     // brokerage identifier (e.g. "webull")
	Action         string     // raw brokerage action, BUY*/SELL* family
	Status         OrderStatus
	Quantity       float64 // ordered size
	FilledQuantity float64 // executed size, <= Quantity
	Price          float64 // average execution price
	OrderID        string  // globally unique per broker
	CloseTime      string  // execution timestamp, CloseTimeLayout
}

// IsEntry reports whether the order opens or increases a position (BUY family,
// case and suffix insensitive: BUY, BUY_OPEN, buy-to-open variants).
func (o *Order) IsEntry() bool {
	return strings.HasPrefix(strings.ToUpper(o.Action), "BUY")
}

// IsExit reports whether the order reduces or closes a position (SELL family).
func (o *Order) IsExit() bool {
	return strings.HasPrefix(strings.ToUpper(o.Action), "SELL")
}

// IsOption reports whether the symbol carries an embedded option suffix.
func (o *Order) IsOption() bool {
	return strings.Contains(o.Symbol, "_")
}

// PnLMultiplier returns the dollar-PnL scaling constant for an asset class:
// 1 for options (per-contract figure), 0.1 for stocks (fixed convention carried
// over from the alerting format, not derived from lot size).
func PnLMultiplier(asset AssetClass) float64 {
	if asset == AssetOption {
		return 1
	}
	return 0.1
}
