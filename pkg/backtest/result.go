package backtest

import (
	"github.com/fingraph/simengine/pkg/dto"
	"github.com/fingraph/simengine/pkg/perf"
	"github.com/fingraph/simengine/pkg/portfolio"
)

// Result is the outcome of one backtest run.
type Result struct {
	TotalReturn float64
	SharpeRatio float64
	MaxDrawdown float64
	WinRate     float64
	Trades      []portfolio.Trade
	EquityCurve perf.EquityCurve
}

// ToDTO converts the result to its wire representation, tagging it with the
// originating job id.
func (r *Result) ToDTO(jobID string) *dto.BacktestResult {
	out := &dto.BacktestResult{
		JobID:       jobID,
		TotalReturn: r.TotalReturn,
		SharpeRatio: r.SharpeRatio,
		MaxDrawdown: r.MaxDrawdown,
		WinRate:     r.WinRate,
		Trades:      make([]dto.Trade, 0, len(r.Trades)),
		EquityCurve: make([]dto.EquityPoint, 0, len(r.EquityCurve)),
	}

	for _, trade := range r.Trades {
		out.Trades = append(out.Trades, dto.Trade{
			Symbol:    trade.Symbol,
			Type:      string(trade.Side),
			Quantity:  trade.Quantity,
			Price:     trade.Price,
			Timestamp: trade.Timestamp.UnixMilli(),
		})
	}

	for _, point := range r.EquityCurve {
		out.EquityCurve = append(out.EquityCurve, dto.EquityPoint{
			Timestamp: point.Timestamp.UnixMilli(),
			Value:     point.Value,
		})
	}

	return out
}
