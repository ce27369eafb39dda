// Package alert renders the human-readable alert line for a normalized fill.
package alert

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"tradealerter/internal/domain"
	"tradealerter/internal/ports"
)

// Option symbols embed expiry/type/strike as UNDERLYING_MMDDYY[CP]STRIKE.
var optionPattern = regexp.MustCompile(`(?i)(\w+)_(\d{6})([CP])([\d.]+)`)

// Render produces the alert text for a fill:
//
//	"BTO 2 TSLA 195P 06/02 @3.10"  (option)
//	"STC 10 AAPL @182.5"           (equity)
//
// Pure function, no side effects. An option-shaped symbol that fails to parse
// returns ErrOptionSymbolParse; the caller must still record the fill in the
// ledger but emit no alert.
func Render(order domain.Order) (string, error) {
	act, err := actionCode(order.Action)
	if err != nil {
		return "", err
	}
	qty := strconv.FormatFloat(order.Quantity, 'f', -1, 64)

	if !order.IsOption() {
		price := strconv.FormatFloat(order.Price, 'f', -1, 64)
		return fmt.Sprintf("%s %s %s @%s", act, qty, order.Symbol, price), nil
	}

	m := optionPattern.FindStringSubmatch(order.Symbol)
	if m == nil {
		return "", fmt.Errorf("symbol %q: %w", order.Symbol, ports.ErrOptionSymbolParse)
	}
	underlying, date, otype, strike := m[1], m[2], strings.ToUpper(m[3]), m[4]
	return fmt.Sprintf("%s %s %s %s%s %s/%s @%.2f",
		act, qty, underlying, strike, otype, date[:2], date[2:4], order.Price), nil
}

// actionCode maps the brokerage action family to the alert verb: BUY* becomes
// BTO, SELL* becomes STC, case and suffix insensitive.
func actionCode(action string) (string, error) {
	upper := strings.ToUpper(action)
	switch {
	case strings.HasPrefix(upper, "BUY"):
		return "BTO", nil
	case strings.HasPrefix(upper, "SELL"):
		return "STC", nil
	default:
		return "", fmt.Errorf("unrecognized order action %q", action)
	}
}
