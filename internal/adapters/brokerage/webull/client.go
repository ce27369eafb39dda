// Package webull adapts the Webull order-history REST endpoint to the
// normalized fill contract consumed by the ledger.
package webull

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"tradealerter/internal/domain"
	"tradealerter/internal/ports"
	"tradealerter/internal/retry"

	"github.com/go-resty/resty/v2"
)

const (
	brokerName        = "webull"
	orderHistoryPath  = "/api/trading/v1/webull/order/list"
	defaultOrderCount = 50
)

// Client implements ports.Brokerage over Webull's order-history endpoint.
type Client struct {
	http      *resty.Client
	accountID string
	logger    ports.Logger
	retry     retry.Policy
}

// Config holds configuration specific to the Webull adapter.
type Config struct {
	BaseURL     string
	AccessToken string
	DeviceID    string
	AccountID   string
	Logger      ports.Logger
	Retry       retry.Policy
}

// New creates a new Webull brokerage adapter.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for Webull adapter")
	}
	if cfg.BaseURL == "" || cfg.AccessToken == "" || cfg.AccountID == "" {
		return nil, fmt.Errorf("Webull base URL, access token and account id are required: %w", ports.ErrConfigurationError)
	}

	http := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetHeader("access_token", cfg.AccessToken).
		SetHeader("did", cfg.DeviceID).
		SetTimeout(15 * time.Second)

	policy := cfg.Retry
	if policy.MaxAttempts == 0 {
		policy = retry.DefaultPolicy()
	}
	return &Client{http: http, accountID: cfg.AccountID, logger: cfg.Logger, retry: policy}, nil
}

// Name returns the broker identifier stamped on normalized orders.
func (c *Client) Name() string { return brokerName }

// historyOrder is the vendor shape of one order-history record. Webull nests
// the execution legs under "orders"; the first leg carries the fill data.
type historyOrder struct {
	Status         string `json:"status"`
	FilledQuantity string `json:"filledQuantity"`
	AuxPrice       string `json:"auxPrice"`
	OptionStrategy string `json:"optionStrategy"`
	Orders         []struct {
		OrderID             int64  `json:"orderId"`
		Symbol              string `json:"symbol"`
		Action              string `json:"action"`
		TickerType          string `json:"tickerType"`
		TotalQuantity       string `json:"totalQuantity"`
		FilledQuantity      string `json:"filledQuantity"`
		AvgFilledPrice      string `json:"avgFilledPrice"`
		LmtPrice            string `json:"lmtPrice"`
		UpdateTime0         int64  `json:"updateTime0"`
		OptionExpireDate    string `json:"optionExpireDate"`
		OptionType          string `json:"optionType"`
		OptionExercisePrice string `json:"optionExercisePrice"`
	} `json:"orders"`
}

// GetFilledOrders returns executed orders from the history endpoint, which
// serves them newest first; cancelled, failed and still-working orders are
// dropped.
func (c *Client) GetFilledOrders(ctx context.Context) ([]domain.Order, error) {
	var history []historyOrder
	err := c.retry.Do(ctx, func(ctx context.Context) error {
		resp, callErr := c.http.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"secAccountId": c.accountID,
				"startTime":    "1970-0-1",
				"dateType":     "ORDER",
				"pageSize":     strconv.Itoa(defaultOrderCount),
				"status":       "all",
			}).
			SetResult(&history).
			Get(orderHistoryPath)
		if callErr != nil {
			return callErr
		}
		if resp.IsError() {
			return fmt.Errorf("order history returned status %d", resp.StatusCode())
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing Webull orders: %v: %w", err, ports.ErrBrokerageUnavailable)
	}

	out := make([]domain.Order, 0, len(history))
	for _, h := range history {
		status := strings.ToUpper(h.Status)
		if status != "FILLED" {
			continue
		}
		order, err := normalizeOrder(h)
		if err != nil {
			c.logger.Warn(ctx, "Dropping unparseable Webull order", map[string]interface{}{"error": err.Error()})
			continue
		}
		out = append(out, order)
	}
	return out, nil
}

// normalizeOrder maps a vendor record to the normalized fill. Option fills
// synthesize the embedded symbol "UNDERLYING_MMDDYY[CP]STRIKE" from the
// expiry/type/strike fields, with a whole-dollar ".00" strike suffix trimmed.
func normalizeOrder(h historyOrder) (domain.Order, error) {
	if len(h.Orders) == 0 {
		return domain.Order{}, fmt.Errorf("order history record has no legs")
	}
	leg := h.Orders[0]

	qty, err := strconv.ParseFloat(leg.TotalQuantity, 64)
	if err != nil {
		return domain.Order{}, fmt.Errorf("total quantity %q: %v", leg.TotalQuantity, err)
	}
	filled, err := strconv.ParseFloat(leg.FilledQuantity, 64)
	if err != nil {
		return domain.Order{}, fmt.Errorf("filled quantity %q: %v", leg.FilledQuantity, err)
	}

	priceStr := leg.AvgFilledPrice
	if priceStr == "" {
		priceStr = leg.LmtPrice
	}
	if priceStr == "" {
		priceStr = h.AuxPrice
	}
	price, err := strconv.ParseFloat(priceStr, 64)
	if err != nil {
		return domain.Order{}, fmt.Errorf("price %q: %v", priceStr, err)
	}

	asset := domain.AssetStock
	symbol := leg.Symbol
	if strings.EqualFold(leg.TickerType, "option") {
		asset = domain.AssetOption
		symbol, err = optionSymbol(leg.Symbol, leg.OptionExpireDate, leg.OptionType, leg.OptionExercisePrice)
		if err != nil {
			return domain.Order{}, err
		}
	}

	return domain.Order{
		Symbol:         symbol,
		Asset:          asset,
		Broker:         brokerName,
		Action:         leg.Action,
		Status:         domain.StatusFilled,
		Quantity:       qty,
		FilledQuantity: filled,
		Price:          price,
		OrderID:        strconv.FormatInt(leg.OrderID, 10),
		CloseTime:      time.UnixMilli(leg.UpdateTime0).Format(domain.CloseTimeLayout),
	}, nil
}

func optionSymbol(underlying, expireDate, optionType, strike string) (string, error) {
	parts := strings.Split(expireDate, "-")
	if len(parts) != 3 || len(parts[0]) != 4 {
		return "", fmt.Errorf("option expire date %q is not YYYY-MM-DD", expireDate)
	}
	if optionType == "" {
		return "", fmt.Errorf("option record missing type")
	}
	year, month, day := parts[0], parts[1], parts[2]
	otype := strings.ToUpper(optionType[:1])
	strike = strings.TrimSuffix(strike, ".00")
	return fmt.Sprintf("%s_%s%s%s%s%s", underlying, month, day, year[2:], otype, strike), nil
}
