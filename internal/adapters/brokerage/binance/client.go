// Package binance adapts Binance spot order history to the normalized fill
// contract consumed by the ledger.
package binance

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"tradealerter/internal/domain"
	"tradealerter/internal/ports"
	"tradealerter/internal/retry"

	"github.com/adshao/go-binance/v2"
)

const (
	baseURLProduction = "https://api.binance.com"
	baseURLTestnet    = "https://testnet.binance.vision"

	brokerName = "binance"
)

// Client implements ports.Brokerage over the Binance spot REST API. Binance
// only serves order history per symbol, so the adapter polls a configured
// symbol list and merges the results newest-first.
type Client struct {
	spot    *binance.Client
	symbols []string
	logger  ports.Logger
	retry   retry.Policy
}

// Config holds configuration specific to the Binance adapter.
type Config struct {
	APIKey     string
	SecretKey  string
	UseTestnet bool
	Symbols    []string // spot symbols to poll, e.g. ["ETHUSDT"]
	Logger     ports.Logger
	Retry      retry.Policy
}

// New creates a new Binance brokerage adapter.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for Binance adapter")
	}
	if cfg.APIKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("Binance API credentials are required: %w", ports.ErrConfigurationError)
	}
	if len(cfg.Symbols) == 0 {
		return nil, fmt.Errorf("at least one Binance symbol is required: %w", ports.ErrConfigurationError)
	}

	client := binance.NewClient(cfg.APIKey, cfg.SecretKey)
	if cfg.UseTestnet {
		client.BaseURL = baseURLTestnet
		cfg.Logger.Info(context.Background(), "Binance adapter configured for Testnet", map[string]interface{}{"baseURL": client.BaseURL})
	} else {
		client.BaseURL = baseURLProduction
	}

	policy := cfg.Retry
	if policy.MaxAttempts == 0 {
		policy = retry.DefaultPolicy()
	}
	return &Client{spot: client, symbols: cfg.Symbols, logger: cfg.Logger, retry: policy}, nil
}

// Name returns the broker identifier stamped on normalized orders.
func (c *Client) Name() string { return brokerName }

// GetFilledOrders returns executed spot orders across the configured symbols,
// newest first.
func (c *Client) GetFilledOrders(ctx context.Context) ([]domain.Order, error) {
	type rawOrder struct {
		order      *binance.Order
		updateTime int64
	}
	var raw []rawOrder

	for _, symbol := range c.symbols {
		var orders []*binance.Order
		err := c.retry.Do(ctx, func(ctx context.Context) error {
			var callErr error
			orders, callErr = c.spot.NewListOrdersService().Symbol(symbol).Do(ctx)
			return callErr
		})
		if err != nil {
			return nil, fmt.Errorf("listing Binance orders for %s: %v: %w", symbol, err, ports.ErrBrokerageUnavailable)
		}
		for _, o := range orders {
			if o.Status != binance.OrderStatusTypeFilled {
				continue
			}
			raw = append(raw, rawOrder{order: o, updateTime: o.UpdateTime})
		}
	}

	sort.Slice(raw, func(i, j int) bool { return raw[i].updateTime > raw[j].updateTime })

	out := make([]domain.Order, 0, len(raw))
	for _, r := range raw {
		order, err := normalizeOrder(r.order)
		if err != nil {
			c.logger.Warn(ctx, "Dropping unparseable Binance order", map[string]interface{}{
				"orderID": r.order.OrderID, "symbol": r.order.Symbol, "error": err.Error(),
			})
			continue
		}
		out = append(out, order)
	}
	return out, nil
}

// normalizeOrder maps one Binance spot order to the normalized record. The
// fill price is the volume-weighted average (cumulative quote over executed
// base), falling back to the limit price when the executed size is zero.
func normalizeOrder(o *binance.Order) (domain.Order, error) {
	origQty, err := strconv.ParseFloat(o.OrigQuantity, 64)
	if err != nil {
		return domain.Order{}, fmt.Errorf("orig quantity %q: %v", o.OrigQuantity, err)
	}
	execQty, err := strconv.ParseFloat(o.ExecutedQuantity, 64)
	if err != nil {
		return domain.Order{}, fmt.Errorf("executed quantity %q: %v", o.ExecutedQuantity, err)
	}

	price := 0.0
	if execQty > 0 {
		quote, err := strconv.ParseFloat(o.CummulativeQuoteQuantity, 64)
		if err != nil {
			return domain.Order{}, fmt.Errorf("quote quantity %q: %v", o.CummulativeQuoteQuantity, err)
		}
		price = quote / execQty
	}
	if price == 0 {
		if price, err = strconv.ParseFloat(o.Price, 64); err != nil {
			return domain.Order{}, fmt.Errorf("price %q: %v", o.Price, err)
		}
	}

	return domain.Order{
		Symbol:         o.Symbol,
		Asset:          domain.AssetStock,
		Broker:         brokerName,
		Action:         string(o.Side),
		Status:         domain.StatusFilled,
		Quantity:       origQty,
		FilledQuantity: execQty,
		Price:          price,
		OrderID:        strconv.FormatInt(o.OrderID, 10),
		CloseTime:      time.UnixMilli(o.UpdateTime).Format(domain.CloseTimeLayout),
	}, nil
}
