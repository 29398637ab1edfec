package market

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fingraph/simengine/pkg/logging"
	"github.com/fingraph/simengine/pkg/simerr"
)

// CSVHeader is the expected header row for OHLCV files.
const CSVHeader = "timestamp,open,high,low,close,volume"

const dateLayout = "2006-01-02"

// LoadCSV reads an OHLCV CSV file from disk and returns the parsed series.
// Rows that fail to parse are skipped with a warning; the load succeeds as
// long as at least one bar parsed.
func LoadCSV(path string) (*Series, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, simerr.Wrap(simerr.CodeIOError, fmt.Sprintf("could not open %s", path), err)
	}
	defer file.Close()

	return ReadCSV(file)
}

// ReadCSV parses OHLCV CSV data from a stream. The first row is the header
// and is skipped.
func ReadCSV(r io.Reader) (*Series, error) {
	logger := logging.GetLogger("market")

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // malformed rows are handled per-record
	reader.TrimLeadingSpace = true

	var bars []Bar
	line := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			if _, ok := err.(*csv.ParseError); ok {
				line++
				logger.Warn().Err(err).Int("line", line).Msg("Skipping unreadable CSV row")
				continue
			}
			return nil, simerr.Wrap(simerr.CodeIOError, "failed to read CSV stream", err)
		}

		line++
		if line == 1 {
			// Header row
			continue
		}

		bar, err := parseRow(record)
		if err != nil {
			logger.Warn().Err(err).Int("line", line).Str("row", strings.Join(record, ",")).Msg("Skipping malformed CSV row")
			continue
		}
		bars = append(bars, bar)
	}

	if len(bars) == 0 {
		return nil, simerr.New(simerr.CodeParseError, "no parsable rows in CSV input")
	}

	logger.Info().Int("bars", len(bars)).Msg("Loaded market data")
	return NewSeries(bars), nil
}

func parseRow(record []string) (Bar, error) {
	if len(record) != 6 {
		return Bar{}, fmt.Errorf("expected 6 fields, got %d", len(record))
	}

	ts, err := time.Parse(dateLayout, strings.TrimSpace(record[0]))
	if err != nil {
		return Bar{}, fmt.Errorf("invalid timestamp %q: %w", record[0], err)
	}

	prices := make([]float64, 4)
	for i := 0; i < 4; i++ {
		prices[i], err = strconv.ParseFloat(strings.TrimSpace(record[i+1]), 64)
		if err != nil {
			return Bar{}, fmt.Errorf("invalid price %q: %w", record[i+1], err)
		}
	}

	volume, err := strconv.ParseInt(strings.TrimSpace(record[5]), 10, 64)
	if err != nil {
		return Bar{}, fmt.Errorf("invalid volume %q: %w", record[5], err)
	}

	bar := Bar{
		Timestamp: ts,
		Open:      prices[0],
		High:      prices[1],
		Low:       prices[2],
		Close:     prices[3],
		Volume:    volume,
	}
	if !bar.Valid() {
		return Bar{}, fmt.Errorf("bar violates price invariants")
	}
	return bar, nil
}

// WriteCSV emits the series in the canonical CSV shape, header included.
// Prices use the shortest representation that round-trips exactly.
func WriteCSV(w io.Writer, s *Series) error {
	if _, err := fmt.Fprintln(w, CSVHeader); err != nil {
		return simerr.Wrap(simerr.CodeIOError, "failed to write CSV header", err)
	}

	for _, bar := range s.Bars() {
		_, err := fmt.Fprintf(w, "%s,%s,%s,%s,%s,%d\n",
			bar.Timestamp.Format(dateLayout),
			formatPrice(bar.Open),
			formatPrice(bar.High),
			formatPrice(bar.Low),
			formatPrice(bar.Close),
			bar.Volume,
		)
		if err != nil {
			return simerr.Wrap(simerr.CodeIOError, "failed to write CSV row", err)
		}
	}
	return nil
}

func formatPrice(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
