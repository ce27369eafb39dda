package webull

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradealerter/internal/retry"
)

type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

const historyResponse = `[
	{
		"status": "Filled",
		"orders": [{
			"orderId": 1001,
			"symbol": "TSLA",
			"action": "BUY",
			"tickerType": "OPTION",
			"totalQuantity": "2",
			"filledQuantity": "2",
			"avgFilledPrice": "3.10",
			"lmtPrice": "3.15",
			"updateTime0": 1685615400000,
			"optionExpireDate": "2023-06-02",
			"optionType": "put",
			"optionExercisePrice": "195.00"
		}]
	},
	{
		"status": "Filled",
		"orders": [{
			"orderId": 1002,
			"symbol": "AAPL",
			"action": "SELL",
			"tickerType": "EQUITY",
			"totalQuantity": "10",
			"filledQuantity": "10",
			"avgFilledPrice": "",
			"lmtPrice": "182.50",
			"updateTime0": 1685612000000
		}]
	},
	{
		"status": "Cancelled",
		"orders": [{
			"orderId": 1003,
			"symbol": "MSFT",
			"action": "BUY",
			"tickerType": "EQUITY",
			"totalQuantity": "5",
			"filledQuantity": "0",
			"lmtPrice": "400",
			"updateTime0": 1685610000000
		}]
	}
]`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := New(Config{
		BaseURL:     server.URL,
		AccessToken: "test-token",
		DeviceID:    "test-did",
		AccountID:   "12345",
		Logger:      &mockLogger{},
		Retry:       retry.Policy{MaxAttempts: 2, Delay: time.Millisecond},
	})
	require.NoError(t, err)
	return client
}

func TestGetFilledOrders(t *testing.T) {
	var gotPath, gotAccount, gotToken string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAccount = r.URL.Query().Get("secAccountId")
		gotToken = r.Header.Get("access_token")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(historyResponse))
	})

	orders, err := client.GetFilledOrders(context.Background())
	require.NoError(t, err)

	assert.Equal(t, orderHistoryPath, gotPath)
	assert.Equal(t, "12345", gotAccount)
	assert.Equal(t, "test-token", gotToken)

	require.Len(t, orders, 2, "cancelled orders are dropped")

	opt := orders[0]
	assert.Equal(t, "TSLA_060223P195", opt.Symbol, "option symbol synthesized from expiry/type/strike")
	assert.Equal(t, "webull", opt.Broker)
	assert.Equal(t, "BUY", opt.Action)
	assert.Equal(t, 2.0, opt.Quantity)
	assert.Equal(t, 3.10, opt.Price, "avgFilledPrice wins over lmtPrice")
	assert.Equal(t, "1001", opt.OrderID)
	assert.True(t, opt.IsOption())

	eq := orders[1]
	assert.Equal(t, "AAPL", eq.Symbol)
	assert.Equal(t, 182.50, eq.Price, "lmtPrice used when avgFilledPrice is empty")
	assert.False(t, eq.IsOption())
}

func TestGetFilledOrders_ServerErrorAfterRetries(t *testing.T) {
	calls := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.GetFilledOrders(context.Background())
	require.Error(t, err)
	assert.Equal(t, 2, calls, "one retry before surfacing the error")
}

func TestGetFilledOrders_RecordWithoutLegsIsDropped(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"status": "Filled", "orders": []}]`))
	})

	orders, err := client.GetFilledOrders(context.Background())
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestNew_RequiresCredentials(t *testing.T) {
	_, err := New(Config{Logger: &mockLogger{}})
	require.Error(t, err)
}

func TestOptionSymbol(t *testing.T) {
	tests := []struct {
		name       string
		underlying string
		expire     string
		otype      string
		strike     string
		want       string
		wantErr    bool
	}{
		{name: "whole dollar strike trimmed", underlying: "TSLA", expire: "2023-06-02", otype: "put", strike: "195.00", want: "TSLA_060223P195"},
		{name: "fractional strike kept", underlying: "SPY", expire: "2024-12-15", otype: "call", strike: "480.50", want: "SPY_121524C480.50"},
		{name: "capitalized type", underlying: "AAPL", expire: "2025-01-10", otype: "CALL", strike: "180.00", want: "AAPL_011025C180"},
		{name: "bad expiry", underlying: "AAPL", expire: "01/10/2025", otype: "call", strike: "180", wantErr: true},
		{name: "missing type", underlying: "AAPL", expire: "2025-01-10", otype: "", strike: "180", wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := optionSymbol(tc.underlying, tc.expire, tc.otype, tc.strike)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}
