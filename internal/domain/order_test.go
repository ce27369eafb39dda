package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrder_ActionFamily(t *testing.T) {
	tests := []struct {
		action  string
		isEntry bool
		isExit  bool
	}{
		{action: "BUY", isEntry: true},
		{action: "Buy to Open", isEntry: true},
		{action: "SELL", isExit: true},
		{action: "SELL_SHORT", isExit: true},
		{action: "TRANSFER"},
	}
	for _, tc := range tests {
		o := Order{Action: tc.action}
		assert.Equal(t, tc.isEntry, o.IsEntry(), tc.action)
		assert.Equal(t, tc.isExit, o.IsExit(), tc.action)
	}
}

func TestOrder_IsOption(t *testing.T) {
	opt := Order{Symbol: "TSLA_060223P195"}
	eq := Order{Symbol: "AAPL"}
	assert.True(t, opt.IsOption())
	assert.False(t, eq.IsOption())
}

func TestPnLMultiplier(t *testing.T) {
	assert.Equal(t, 1.0, PnLMultiplier(AssetOption))
	assert.Equal(t, 0.1, PnLMultiplier(AssetStock))
}

func TestPosition_IsOpen(t *testing.T) {
	assert.True(t, (&Position{Fills: 3}).IsOpen())
	assert.True(t, (&Position{Fills: 3, STCFills: 2}).IsOpen())
	assert.False(t, (&Position{Fills: 3, STCFills: 3}).IsOpen())
}
