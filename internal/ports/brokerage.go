package ports

import (
	"context"

	"tradealerter/internal/domain"
)

// Brokerage is the boundary contract every brokerage adapter implements. Each
// adapter owns authentication, rate limiting and translation of vendor JSON
// into the normalized domain.Order record; transient upstream failures are
// retried inside the adapter and only a terminal error escapes.
type Brokerage interface {
	// Name returns the broker identifier stamped on normalized orders.
	Name() string
	// GetFilledOrders returns the broker's executed orders, newest first.
	// Callers that need chronological order must iterate in reverse.
	GetFilledOrders(ctx context.Context) ([]domain.Order, error)
}
