// Package stats computes realized performance metrics over the position table.
package stats

import (
	"math"
	"sort"

	"tradealerter/internal/domain"
)

// PerformanceMetrics summarizes the realized outcome of the tracked positions.
type PerformanceMetrics struct {
	TotalPositions  int
	OpenPositions   int
	ClosedPositions int
	WinningTrades   int
	LosingTrades    int
	BreakEvenTrades int
	WinRate         float64 // winners over decided (non-break-even) trades
	TotalPnL        float64 // realized dollars across closed positions
	AveragePnLPct   float64
	AverageWin      float64
	AverageLoss     float64
	ProfitFactor    float64
	MaxDrawdown     float64 // deepest dip of the cumulative realized PnL

	PnLByBroker map[string]float64
}

// Analyze computes metrics over a table snapshot. Only fully closed positions
// contribute realized figures; open rows are counted but never valued, the
// tracker has no live quotes to mark them against.
func Analyze(positions []domain.Position) *PerformanceMetrics {
	m := &PerformanceMetrics{PnLByBroker: make(map[string]float64)}

	var closed []domain.Position
	for _, p := range positions {
		m.TotalPositions++
		if p.IsOpen() {
			m.OpenPositions++
			continue
		}
		if p.STCn == 0 {
			continue // never exited, nothing realized
		}
		closed = append(closed, p)
	}
	m.ClosedPositions = len(closed)
	if len(closed) == 0 {
		return m
	}

	// Exit order, so the drawdown walk follows realized history.
	sort.Slice(closed, func(i, j int) bool { return closed[i].STCDate < closed[j].STCDate })

	var grossWin, grossLoss, pctSum float64
	var equity, peak float64
	for _, p := range closed {
		pctSum += p.PnL
		m.PnLByBroker[p.Broker] += p.PnLD
		m.TotalPnL += p.PnLD

		switch {
		case p.PnLD > 0:
			m.WinningTrades++
			grossWin += p.PnLD
		case p.PnLD < 0:
			m.LosingTrades++
			grossLoss += math.Abs(p.PnLD)
		default:
			m.BreakEvenTrades++
		}

		equity += p.PnLD
		if equity > peak {
			peak = equity
		}
		if dd := peak - equity; dd > m.MaxDrawdown {
			m.MaxDrawdown = dd
		}
	}

	if decided := m.WinningTrades + m.LosingTrades; decided > 0 {
		m.WinRate = float64(m.WinningTrades) / float64(decided)
	}
	m.AveragePnLPct = pctSum / float64(len(closed))
	if m.WinningTrades > 0 {
		m.AverageWin = grossWin / float64(m.WinningTrades)
	}
	if m.LosingTrades > 0 {
		m.AverageLoss = grossLoss / float64(m.LosingTrades)
	}
	if grossLoss > 0 {
		m.ProfitFactor = grossWin / grossLoss
	} else if grossWin > 0 {
		m.ProfitFactor = math.Inf(1)
	}
	return m
}
