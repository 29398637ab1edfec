package strategy

import (
	"math"

	"github.com/fingraph/simengine/pkg/market"
	"github.com/fingraph/simengine/pkg/simerr"
)

// Default windows for the moving average crossover strategy.
const (
	DefaultShortPeriod = 10
	DefaultLongPeriod  = 30
)

// MovingAverageCrossover trades strict crossovers of two simple moving
// averages of the close: BUY when the short SMA crosses above the long SMA,
// SELL when it crosses below.
type MovingAverageCrossover struct {
	shortPeriod int
	longPeriod  int

	shortMA []float64 // NaN where the window is not yet full
	longMA  []float64
}

// NewMovingAverageCrossover creates the strategy with default periods.
func NewMovingAverageCrossover() *MovingAverageCrossover {
	return &MovingAverageCrossover{
		shortPeriod: DefaultShortPeriod,
		longPeriod:  DefaultLongPeriod,
	}
}

// Name returns the registry name of the strategy.
func (s *MovingAverageCrossover) Name() string {
	return "Moving Average Crossover"
}

// UpdateParameters applies shortPeriod and longPeriod. Indicators are not
// recomputed; Initialize must be called again.
func (s *MovingAverageCrossover) UpdateParameters(params map[string]float64) {
	if v, ok := params["shortPeriod"]; ok {
		s.shortPeriod = int(v)
	}
	if v, ok := params["longPeriod"]; ok {
		s.longPeriod = int(v)
	}
}

// Initialize pre-computes both SMA sequences over the series closes.
func (s *MovingAverageCrossover) Initialize(series *market.Series) error {
	if s.shortPeriod < 1 || s.longPeriod < 1 || s.shortPeriod >= s.longPeriod {
		return simerr.Newf(simerr.CodeInvalidRequest,
			"moving average periods must satisfy 0 < shortPeriod < longPeriod, got short=%d long=%d",
			s.shortPeriod, s.longPeriod)
	}
	if series.Len() < s.longPeriod {
		return simerr.Newf(simerr.CodeInsufficientData,
			"series has %d bars, need at least %d for the long moving average",
			series.Len(), s.longPeriod)
	}

	closes := make([]float64, series.Len())
	for i, bar := range series.Bars() {
		closes[i] = bar.Close
	}

	s.shortMA = sma(closes, s.shortPeriod)
	s.longMA = sma(closes, s.longPeriod)
	return nil
}

// GenerateSignal returns BUY on a bullish crossover at index, SELL on a
// bearish crossover, and NONE otherwise (including when the SMAs are equal).
func (s *MovingAverageCrossover) GenerateSignal(index int) Signal {
	// Both SMAs at index and index-1 must be defined
	if index < s.longPeriod || index >= len(s.shortMA) {
		return SignalNone
	}

	wasBelow := s.shortMA[index-1] < s.longMA[index-1]
	isAbove := s.shortMA[index] > s.longMA[index]
	if wasBelow && isAbove {
		return SignalBuy
	}

	wasAbove := s.shortMA[index-1] > s.longMA[index-1]
	isBelow := s.shortMA[index] < s.longMA[index]
	if wasAbove && isBelow {
		return SignalSell
	}

	return SignalNone
}

// sma computes the simple moving average of values over the given window.
// Indices before the window is full hold NaN.
func sma(values []float64, period int) []float64 {
	result := make([]float64, len(values))
	sum := 0.0
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i+1 >= period {
			result[i] = sum / float64(period)
		} else {
			result[i] = math.NaN()
		}
	}
	return result
}
