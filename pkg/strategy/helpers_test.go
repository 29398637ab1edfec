package strategy

import (
	"time"

	"github.com/fingraph/simengine/pkg/market"
)

// seriesFromCloses builds a daily series where every price field equals the
// close, which is all the built-in strategies look at.
func seriesFromCloses(closes ...float64) *market.Series {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]market.Bar, len(closes))
	for i, c := range closes {
		bars[i] = market.Bar{
			Timestamp: start.AddDate(0, 0, i),
			Open:      c,
			High:      c,
			Low:       c,
			Close:     c,
			Volume:    100,
		}
	}
	return market.NewSeries(bars)
}
