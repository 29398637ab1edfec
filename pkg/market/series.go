package market

import (
	"sort"
	"time"
)

// Bar represents OHLCV data for a single time period.
type Bar struct {
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    int64
}

// Valid reports whether the bar satisfies the basic price invariants:
// all prices positive, low <= min(open, close) <= max(open, close) <= high,
// and volume non-negative.
func (b Bar) Valid() bool {
	if b.Open <= 0 || b.High <= 0 || b.Low <= 0 || b.Close <= 0 {
		return false
	}
	if b.Volume < 0 {
		return false
	}
	lo, hi := b.Open, b.Close
	if lo > hi {
		lo, hi = hi, lo
	}
	return b.Low <= lo && hi <= b.High
}

// Series is an immutable, timestamp-ordered sequence of bars with a lookup
// from timestamp to first index. Bars with duplicate timestamps keep their
// input order.
type Series struct {
	bars  []Bar
	index map[int64]int // unix nanos -> first index at that timestamp
}

// NewSeries builds a series from bars, sorting ascending by timestamp.
// The sort is stable so duplicate timestamps preserve input order.
func NewSeries(bars []Bar) *Series {
	sorted := make([]Bar, len(bars))
	copy(sorted, bars)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	index := make(map[int64]int, len(sorted))
	for i, bar := range sorted {
		key := bar.Timestamp.UnixNano()
		if _, exists := index[key]; !exists {
			index[key] = i
		}
	}

	return &Series{bars: sorted, index: index}
}

// Len returns the number of bars in the series.
func (s *Series) Len() int {
	return len(s.bars)
}

// Bar returns the bar at index i.
func (s *Series) Bar(i int) Bar {
	return s.bars[i]
}

// Bars returns the underlying bars in timestamp order. Callers must not
// mutate the returned slice.
func (s *Series) Bars() []Bar {
	return s.bars
}

// IndexOf returns the first index holding the given timestamp, or -1 if the
// timestamp is not present.
func (s *Series) IndexOf(ts time.Time) int {
	if i, ok := s.index[ts.UnixNano()]; ok {
		return i
	}
	return -1
}

// Range returns all bars with start <= timestamp <= end, preserving order.
// The start position is found by binary search; the scan from there is linear.
func (s *Series) Range(start, end time.Time) []Bar {
	from := sort.Search(len(s.bars), func(i int) bool {
		return !s.bars[i].Timestamp.Before(start)
	})

	var result []Bar
	for i := from; i < len(s.bars); i++ {
		if s.bars[i].Timestamp.After(end) {
			break
		}
		result = append(result, s.bars[i])
	}
	return result
}

// Truncate returns a new series holding only the first n bars.
func (s *Series) Truncate(n int) *Series {
	if n > len(s.bars) {
		n = len(s.bars)
	}
	return NewSeries(s.bars[:n])
}
