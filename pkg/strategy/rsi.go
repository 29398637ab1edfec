package strategy

import (
	"math"

	"github.com/fingraph/simengine/pkg/market"
	"github.com/fingraph/simengine/pkg/simerr"
)

// Defaults for the RSI mean reversion strategy.
const (
	DefaultRSIPeriod  = 14
	DefaultOversold   = 30.0
	DefaultOverbought = 70.0
)

// RSIMeanReversion buys when the RSI signals an oversold market and sells
// when it signals an overbought one.
type RSIMeanReversion struct {
	period     int
	oversold   float64
	overbought float64

	rsi []float64 // NaN where the indicator is not yet defined
}

// NewRSIMeanReversion creates the strategy with default parameters.
func NewRSIMeanReversion() *RSIMeanReversion {
	return &RSIMeanReversion{
		period:     DefaultRSIPeriod,
		oversold:   DefaultOversold,
		overbought: DefaultOverbought,
	}
}

// Name returns the registry name of the strategy.
func (s *RSIMeanReversion) Name() string {
	return "RSI Mean Reversion"
}

// UpdateParameters applies period, oversoldThreshold and overboughtThreshold.
// Indicators are not recomputed; Initialize must be called again.
func (s *RSIMeanReversion) UpdateParameters(params map[string]float64) {
	if v, ok := params["period"]; ok {
		s.period = int(v)
	}
	if v, ok := params["oversoldThreshold"]; ok {
		s.oversold = v
	}
	if v, ok := params["overboughtThreshold"]; ok {
		s.overbought = v
	}
}

// Initialize pre-computes the RSI sequence over the series closes.
func (s *RSIMeanReversion) Initialize(series *market.Series) error {
	if s.period < 1 {
		return simerr.Newf(simerr.CodeInvalidRequest, "RSI period must be positive, got %d", s.period)
	}
	if s.oversold <= 0 || s.overbought >= 100 || s.oversold >= s.overbought {
		return simerr.Newf(simerr.CodeInvalidRequest,
			"RSI thresholds must satisfy 0 < oversold < overbought < 100, got oversold=%v overbought=%v",
			s.oversold, s.overbought)
	}
	if series.Len() < s.period {
		return simerr.Newf(simerr.CodeInsufficientData,
			"series has %d bars, need at least %d for RSI", series.Len(), s.period)
	}

	s.rsi = computeRSI(series.Bars(), s.period)
	return nil
}

// GenerateSignal returns BUY when RSI <= oversold, SELL when
// RSI >= overbought, and NONE while the indicator is undefined.
func (s *RSIMeanReversion) GenerateSignal(index int) Signal {
	if index < s.period || index >= len(s.rsi) {
		return SignalNone
	}

	rsi := s.rsi[index]
	switch {
	case rsi <= s.oversold:
		return SignalBuy
	case rsi >= s.overbought:
		return SignalSell
	default:
		return SignalNone
	}
}

// computeRSI calculates the RSI at each index from close-to-close changes,
// using simple means of gains and losses over the trailing period bars.
// When the average loss is zero the RSI saturates at 100.
func computeRSI(bars []market.Bar, period int) []float64 {
	n := len(bars)
	gains := make([]float64, n)
	losses := make([]float64, n)
	for i := 1; i < n; i++ {
		change := bars[i].Close - bars[i-1].Close
		if change > 0 {
			gains[i] = change
		} else {
			losses[i] = -change
		}
	}

	rsi := make([]float64, n)
	for i := range rsi {
		rsi[i] = math.NaN()
	}

	for i := period; i < n; i++ {
		var sumGain, sumLoss float64
		for j := i - period + 1; j <= i; j++ {
			sumGain += gains[j]
			sumLoss += losses[j]
		}
		avgGain := sumGain / float64(period)
		avgLoss := sumLoss / float64(period)

		if avgLoss == 0 {
			rsi[i] = 100.0
			continue
		}
		rs := avgGain / avgLoss
		rsi[i] = 100.0 - 100.0/(1.0+rs)
	}
	return rsi
}
