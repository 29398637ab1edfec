package backtest

import (
	"fmt"
	"math"

	"github.com/fingraph/simengine/pkg/market"
	"github.com/fingraph/simengine/pkg/perf"
	"github.com/fingraph/simengine/pkg/portfolio"
	"github.com/fingraph/simengine/pkg/strategy"
)

// DefaultSymbol is the single instrument traded by the replay kernel.
const DefaultSymbol = "DEFAULT"

// ProgressFunc receives progress in [0, 1] and a human-readable step.
type ProgressFunc func(progress float64, step string)

// Run replays the strategy over the series bar by bar. Per bar, in fixed
// order: ask the strategy for a signal; on BUY with no open position go all-in
// at the close (floor(cash/close) units, at least one); on SELL liquidate the
// whole position at the close; then record an equity point. Fills are at the
// current bar's close with no fees or slippage.
//
// Progress is reported at roughly 10% bar-count milestones.
func Run(series *market.Series, strat strategy.Strategy, initialCash float64, riskFreeRate float64, onProgress ProgressFunc) (*Result, error) {
	book := portfolio.New(initialCash)
	n := series.Len()
	curve := make(perf.EquityCurve, 0, n)

	milestone := n / 10
	if milestone < 1 {
		milestone = 1
	}

	for i := 0; i < n; i++ {
		bar := series.Bar(i)
		signal := strat.GenerateSignal(i)

		switch {
		case signal == strategy.SignalBuy && book.Position(DefaultSymbol) == 0:
			quantity := math.Floor(book.Cash() / bar.Close)
			if quantity >= 1 {
				trade := portfolio.Trade{
					Symbol:    DefaultSymbol,
					Side:      portfolio.SideBuy,
					Quantity:  quantity,
					Price:     bar.Close,
					Timestamp: bar.Timestamp,
				}
				if err := book.Apply(trade); err != nil {
					return nil, fmt.Errorf("applying buy at bar %d: %w", i, err)
				}
			}
		case signal == strategy.SignalSell && book.Position(DefaultSymbol) > 0:
			trade := portfolio.Trade{
				Symbol:    DefaultSymbol,
				Side:      portfolio.SideSell,
				Quantity:  book.Position(DefaultSymbol),
				Price:     bar.Close,
				Timestamp: bar.Timestamp,
			}
			if err := book.Apply(trade); err != nil {
				return nil, fmt.Errorf("applying sell at bar %d: %w", i, err)
			}
		}

		curve = append(curve, perf.EquityPoint{
			Timestamp: bar.Timestamp,
			Value:     book.TotalValue(map[string]float64{DefaultSymbol: bar.Close}),
		})

		if onProgress != nil && ((i+1)%milestone == 0 || i+1 == n) {
			onProgress(float64(i+1)/float64(n), fmt.Sprintf("Processed %d/%d bars", i+1, n))
		}
	}

	return &Result{
		TotalReturn: perf.TotalReturn(curve),
		SharpeRatio: perf.SharpeRatio(curve, riskFreeRate),
		MaxDrawdown: perf.MaxDrawdown(curve),
		WinRate:     perf.WinRate(book.Trades()),
		Trades:      book.Trades(),
		EquityCurve: curve,
	}, nil
}
