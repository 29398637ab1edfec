package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(n int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func testBar(ts time.Time, close float64) Bar {
	return Bar{
		Timestamp: ts,
		Open:      close,
		High:      close,
		Low:       close,
		Close:     close,
		Volume:    100,
	}
}

func TestNewSeriesSortsByTimestamp(t *testing.T) {
	series := NewSeries([]Bar{
		testBar(day(2), 12),
		testBar(day(0), 10),
		testBar(day(1), 11),
	})

	require.Equal(t, 3, series.Len())
	assert.Equal(t, 10.0, series.Bar(0).Close)
	assert.Equal(t, 11.0, series.Bar(1).Close)
	assert.Equal(t, 12.0, series.Bar(2).Close)
}

func TestNewSeriesKeepsDuplicateTimestampsInInputOrder(t *testing.T) {
	series := NewSeries([]Bar{
		testBar(day(0), 10),
		testBar(day(1), 11),
		testBar(day(1), 12),
	})

	require.Equal(t, 3, series.Len())
	assert.Equal(t, 11.0, series.Bar(1).Close)
	assert.Equal(t, 12.0, series.Bar(2).Close)
	// IndexOf points at the first bar holding the timestamp
	assert.Equal(t, 1, series.IndexOf(day(1)))
}

func TestIndexOfMissingTimestamp(t *testing.T) {
	series := NewSeries([]Bar{testBar(day(0), 10)})
	assert.Equal(t, -1, series.IndexOf(day(5)))
}

func TestRangeIsInclusive(t *testing.T) {
	var bars []Bar
	for i := 0; i < 10; i++ {
		bars = append(bars, testBar(day(i), float64(10+i)))
	}
	series := NewSeries(bars)

	got := series.Range(day(2), day(5))
	require.Len(t, got, 4)
	assert.Equal(t, 12.0, got[0].Close)
	assert.Equal(t, 15.0, got[3].Close)

	assert.Empty(t, series.Range(day(20), day(30)))
	assert.Len(t, series.Range(day(0), day(100)), 10)
}

func TestTruncate(t *testing.T) {
	series := NewSeries([]Bar{
		testBar(day(0), 10),
		testBar(day(1), 11),
		testBar(day(2), 12),
	})

	short := series.Truncate(2)
	require.Equal(t, 2, short.Len())
	assert.Equal(t, 11.0, short.Bar(1).Close)

	// Truncating beyond the length is a full copy
	assert.Equal(t, 3, series.Truncate(10).Len())
}

func TestBarValid(t *testing.T) {
	valid := Bar{Timestamp: day(0), Open: 10, High: 12, Low: 9, Close: 11, Volume: 5}
	assert.True(t, valid.Valid())

	highBelowClose := Bar{Timestamp: day(0), Open: 10, High: 10.5, Low: 9, Close: 11, Volume: 5}
	assert.False(t, highBelowClose.Valid())

	negativePrice := Bar{Timestamp: day(0), Open: -1, High: 12, Low: 9, Close: 11, Volume: 5}
	assert.False(t, negativePrice.Valid())

	negativeVolume := Bar{Timestamp: day(0), Open: 10, High: 12, Low: 9, Close: 11, Volume: -1}
	assert.False(t, negativeVolume.Valid())
}
