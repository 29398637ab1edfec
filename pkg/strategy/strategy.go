package strategy

import (
	"github.com/fingraph/simengine/pkg/market"
)

// Signal is a strategy's discrete output for a bar.
type Signal int

const (
	SignalNone Signal = iota
	SignalBuy
	SignalSell
)

// String returns the wire name of the signal.
func (s Signal) String() string {
	switch s {
	case SignalBuy:
		return "BUY"
	case SignalSell:
		return "SELL"
	default:
		return "NONE"
	}
}

// Strategy defines the interface that all trading strategies must implement.
// A strategy is configured with UpdateParameters, primed with Initialize
// (which may pre-compute indicators), and then queried one bar at a time.
type Strategy interface {
	// Initialize pre-computes indicators for the series. It must be
	// idempotent: calling it twice on the same series yields the same
	// signals. Returns an INSUFFICIENT_DATA error when the series is
	// shorter than the strategy's minimum window.
	Initialize(series *market.Series) error

	// GenerateSignal returns the signal at the given bar index. The result
	// depends only on bars [0..index]; it is SignalNone whenever the
	// indicators are not yet defined at that index.
	GenerateSignal(index int) Signal

	// UpdateParameters mutates the strategy configuration. Indicators are
	// NOT recomputed; the caller must Initialize again afterwards.
	UpdateParameters(params map[string]float64)

	// Name returns the registry name of the strategy.
	Name() string
}
