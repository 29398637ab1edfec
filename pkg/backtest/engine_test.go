package backtest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fingraph/simengine/pkg/dto"
	"github.com/fingraph/simengine/pkg/market"
	"github.com/fingraph/simengine/pkg/simerr"
)

func writeTestCSV(t *testing.T, closes ...float64) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bars.csv")

	data := market.CSVHeader + "\n"
	for i, c := range closes {
		data += fmt.Sprintf("2024-01-%02d,%g,%g,%g,%g,1000\n", i+1, c, c, c, c)
	}
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	return path
}

func TestEngineRunBacktest(t *testing.T) {
	path := writeTestCSV(t, 12, 10, 9, 12, 13)
	engine := NewEngine()

	params := map[string]float64{"shortPeriod": 2, "longPeriod": 3}
	result, err := engine.RunBacktest(path, "Moving Average Crossover", params, 1000, nil)
	require.NoError(t, err)

	require.Len(t, result.Trades, 1)
	assert.Equal(t, 83.0, result.Trades[0].Quantity)
	assert.InDelta(t, 0.083, result.TotalReturn, 1e-12)
}

func TestEngineRejectsNonPositiveCash(t *testing.T) {
	engine := NewEngine()
	_, err := engine.RunBacktest("ignored.csv", "Moving Average Crossover", nil, 0, nil)
	require.Error(t, err)
	assert.True(t, simerr.HasCode(err, simerr.CodeInvalidRequest))
}

func TestEngineUnknownStrategy(t *testing.T) {
	path := writeTestCSV(t, 12, 10, 9, 12, 13)
	engine := NewEngine()

	_, err := engine.RunBacktest(path, "Bogus", nil, 1000, nil)
	require.Error(t, err)
	assert.True(t, simerr.HasCode(err, simerr.CodeUnknownStrategy))
}

func TestEngineMissingDataFile(t *testing.T) {
	engine := NewEngine()
	_, err := engine.RunBacktest("/nonexistent/bars.csv", "Moving Average Crossover", nil, 1000, nil)
	require.Error(t, err)
	assert.True(t, simerr.HasCode(err, simerr.CodeIOError))
}

func TestEngineInsufficientData(t *testing.T) {
	path := writeTestCSV(t, 12, 10)
	engine := NewEngine()

	params := map[string]float64{"shortPeriod": 2, "longPeriod": 3}
	_, err := engine.RunBacktest(path, "Moving Average Crossover", params, 1000, nil)
	require.Error(t, err)
	assert.True(t, simerr.HasCode(err, simerr.CodeInsufficientData))
}

func TestEngineRunRequestProducesDTO(t *testing.T) {
	path := writeTestCSV(t, 12, 10, 9, 12, 13)
	engine := NewEngine()

	req := dto.BacktestRequest{
		DataPath:       path,
		StrategyName:   "Moving Average Crossover",
		StrategyParams: map[string]float64{"shortPeriod": 2, "longPeriod": 3},
		InitialCash:    1000,
		JobID:          "job_1_0_1234",
	}

	result, err := engine.RunRequest(req, nil)
	require.NoError(t, err)

	assert.Equal(t, "job_1_0_1234", result.JobID)
	require.Len(t, result.Trades, 1)
	assert.Equal(t, "BUY", result.Trades[0].Type)
	require.Len(t, result.EquityCurve, 5)
	// Wire timestamps are ms since epoch, matching the bar instants
	assert.Equal(t, result.Trades[0].Timestamp, result.EquityCurve[3].Timestamp)
}

func TestEngineDeterministicAcrossRuns(t *testing.T) {
	path := writeTestCSV(t, 12, 10, 9, 12, 13, 9, 8, 12, 14, 7)
	engine := NewEngine()

	req := dto.BacktestRequest{
		DataPath:       path,
		StrategyName:   "Moving Average Crossover",
		StrategyParams: map[string]float64{"shortPeriod": 2, "longPeriod": 3},
		InitialCash:    1000,
		JobID:          "job_fixed",
	}

	var first []byte
	for i := 0; i < 50; i++ {
		result, err := engine.RunRequest(req, nil)
		require.NoError(t, err)

		encoded, err := json.Marshal(result)
		require.NoError(t, err)

		if first == nil {
			first = encoded
			continue
		}
		require.Equal(t, string(first), string(encoded), "run %d diverged", i)
	}
}
