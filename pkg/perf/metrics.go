// Package perf computes performance metrics from an equity curve and a
// trade log.
package perf

import (
	"math"
	"time"

	"github.com/fingraph/simengine/pkg/portfolio"
)

// TradingDaysPerYear is the annualization factor for bar returns.
const TradingDaysPerYear = 252

// EquityPoint is the total portfolio value at a point in time.
type EquityPoint struct {
	Timestamp time.Time
	Value     float64
}

// EquityCurve is an ordered sequence of equity points, one per bar.
type EquityCurve []EquityPoint

// TotalReturn is the fractional gain from the first to the last equity point.
func TotalReturn(curve EquityCurve) float64 {
	if len(curve) == 0 {
		return 0
	}
	initial := curve[0].Value
	if initial == 0 {
		return 0
	}
	final := curve[len(curve)-1].Value
	return (final - initial) / initial
}

// MaxDrawdown is the largest fractional decline from a running peak of the
// equity curve. The result is in [0, 1].
func MaxDrawdown(curve EquityCurve) float64 {
	if len(curve) == 0 {
		return 0
	}

	maxDrawdown := 0.0
	peak := curve[0].Value
	for _, point := range curve {
		if point.Value > peak {
			peak = point.Value
		}
		drawdown := (peak - point.Value) / peak
		if drawdown > maxDrawdown {
			maxDrawdown = drawdown
		}
	}
	return maxDrawdown
}

// SharpeRatio is the annualized mean bar return minus the annualized
// risk-free rate, divided by the annualized standard deviation of bar
// returns (population, not sample). Zero when volatility is zero or there
// are no returns.
func SharpeRatio(curve EquityCurve, riskFreeRate float64) float64 {
	if len(curve) < 2 {
		return 0
	}

	var returns []float64
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Value
		if prev == 0 {
			continue
		}
		returns = append(returns, (curve[i].Value-prev)/prev)
	}
	if len(returns) == 0 {
		return 0
	}

	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	variance := 0.0
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	stdDev := math.Sqrt(variance / float64(len(returns)))

	annualizedMean := mean * TradingDaysPerYear
	annualizedStdDev := stdDev * math.Sqrt(TradingDaysPerYear)
	if annualizedStdDev == 0 {
		return 0
	}
	return (annualizedMean - riskFreeRate) / annualizedStdDev
}

// WinRate pairs trades by symbol in order: a BUY opens a slot and the next
// SELL for the same symbol closes it. A pair is profitable when the sell
// price exceeds the buy price. The result is profitable pairs over completed
// pairs, zero when nothing completed.
func WinRate(trades []portfolio.Trade) float64 {
	openPositions := make(map[string]float64) // symbol -> buy price
	profitable := 0
	completed := 0

	for _, trade := range trades {
		if trade.Side == portfolio.SideBuy {
			openPositions[trade.Symbol] = trade.Price
			continue
		}
		buyPrice, ok := openPositions[trade.Symbol]
		if !ok {
			continue
		}
		completed++
		if trade.Price > buyPrice {
			profitable++
		}
		delete(openPositions, trade.Symbol)
	}

	if completed == 0 {
		return 0
	}
	return float64(profitable) / float64(completed)
}
