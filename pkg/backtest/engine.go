package backtest

import (
	"github.com/rs/zerolog"

	"github.com/fingraph/simengine/pkg/dto"
	"github.com/fingraph/simengine/pkg/logging"
	"github.com/fingraph/simengine/pkg/market"
	"github.com/fingraph/simengine/pkg/simerr"
	"github.com/fingraph/simengine/pkg/strategy"
)

// Engine maps a backtest request onto the replay kernel: it loads market
// data, instantiates and configures the named strategy, and runs the
// simulation. Engines are safe for concurrent use; all per-run state lives
// in the strategy instance and the kernel.
type Engine struct {
	registry     *strategy.Registry
	riskFreeRate float64
	logger       zerolog.Logger
}

// NewEngine creates an engine with the built-in strategy registry and a zero
// risk-free rate.
func NewEngine() *Engine {
	return &Engine{
		registry: strategy.NewRegistry(),
		logger:   logging.GetLogger("backtest"),
	}
}

// Registry returns the engine's strategy registry.
func (e *Engine) Registry() *strategy.Registry {
	return e.registry
}

// SetRiskFreeRate sets the annualized risk-free rate used for the Sharpe
// ratio. Call before running backtests.
func (e *Engine) SetRiskFreeRate(rate float64) {
	e.riskFreeRate = rate
}

// RunBacktest executes one backtest from a CSV path, a strategy name, its
// parameters and an initial cash amount.
func (e *Engine) RunBacktest(dataPath, strategyName string, params map[string]float64, initialCash float64, onProgress ProgressFunc) (*Result, error) {
	if initialCash <= 0 {
		return nil, simerr.Newf(simerr.CodeInvalidRequest, "initial cash must be positive, got %v", initialCash)
	}

	series, err := market.LoadCSV(dataPath)
	if err != nil {
		return nil, err
	}

	strat, err := e.registry.New(strategyName)
	if err != nil {
		return nil, err
	}
	strat.UpdateParameters(params)
	if err := strat.Initialize(series); err != nil {
		return nil, err
	}

	e.logger.Info().
		Str("strategy", strategyName).
		Str("data_path", dataPath).
		Int("bars", series.Len()).
		Float64("initial_cash", initialCash).
		Msg("Running backtest")

	result, err := Run(series, strat, initialCash, e.riskFreeRate, onProgress)
	if err != nil {
		return nil, err
	}

	e.logger.Info().
		Str("strategy", strategyName).
		Int("trades", len(result.Trades)).
		Float64("total_return", result.TotalReturn).
		Msg("Backtest completed")

	return result, nil
}

// RunRequest executes a backtest described by a request DTO and returns the
// result in wire form. It satisfies the job manager's Runner contract.
func (e *Engine) RunRequest(req dto.BacktestRequest, onProgress func(progress float64, step string)) (*dto.BacktestResult, error) {
	result, err := e.RunBacktest(req.DataPath, req.StrategyName, req.StrategyParams, req.InitialCash, onProgress)
	if err != nil {
		return nil, err
	}
	return result.ToDTO(req.JobID), nil
}
