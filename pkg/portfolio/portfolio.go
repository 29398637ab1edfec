package portfolio

import (
	"time"

	"github.com/fingraph/simengine/pkg/simerr"
)

// Side is the direction of a trade.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Trade is an executed fill. Immutable once applied.
type Trade struct {
	Symbol    string
	Side      Side
	Quantity  float64
	Price     float64
	Timestamp time.Time
}

// Value returns quantity x price.
func (t Trade) Value() float64 {
	return t.Quantity * t.Price
}

// Portfolio is a cash and positions ledger. Cash and every position stay
// non-negative; the trade log is append-only in application order.
type Portfolio struct {
	cash      float64
	positions map[string]float64
	trades    []Trade
}

// New creates a portfolio holding only the given cash.
func New(initialCash float64) *Portfolio {
	return &Portfolio{
		cash:      initialCash,
		positions: make(map[string]float64),
	}
}

// Apply executes a trade against the ledger. A BUY that would drive cash
// negative fails with INSUFFICIENT_CASH; a SELL that would drive the position
// negative fails with INSUFFICIENT_POSITION. Failed trades leave the ledger
// untouched and are not recorded.
func (p *Portfolio) Apply(trade Trade) error {
	value := trade.Value()

	switch trade.Side {
	case SideBuy:
		if p.cash < value {
			return simerr.Newf(simerr.CodeInsufficientCash,
				"trade needs %.2f but only %.2f cash available", value, p.cash)
		}
		p.cash -= value
		p.positions[trade.Symbol] += trade.Quantity
	case SideSell:
		if p.Position(trade.Symbol) < trade.Quantity {
			return simerr.Newf(simerr.CodeInsufficientPosition,
				"selling %.4f %s but only %.4f held", trade.Quantity, trade.Symbol, p.Position(trade.Symbol))
		}
		p.cash += value
		p.positions[trade.Symbol] -= trade.Quantity
	default:
		return simerr.Newf(simerr.CodeInvalidRequest, "unknown trade side: %s", trade.Side)
	}

	p.trades = append(p.trades, trade)
	return nil
}

// Cash returns the current cash balance.
func (p *Portfolio) Cash() float64 {
	return p.cash
}

// Position returns the held quantity for a symbol, zero if none.
func (p *Portfolio) Position(symbol string) float64 {
	return p.positions[symbol]
}

// EquityValue returns the market value of all positions at the given prices.
// Positions without a quoted price contribute nothing.
func (p *Portfolio) EquityValue(prices map[string]float64) float64 {
	total := 0.0
	for symbol, quantity := range p.positions {
		if price, ok := prices[symbol]; ok {
			total += quantity * price
		}
	}
	return total
}

// TotalValue returns cash plus the market value of all positions.
func (p *Portfolio) TotalValue(prices map[string]float64) float64 {
	return p.cash + p.EquityValue(prices)
}

// Trades returns the applied trades in order. Callers must not mutate the
// returned slice.
func (p *Portfolio) Trades() []Trade {
	return p.trades
}
