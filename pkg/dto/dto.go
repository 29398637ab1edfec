// Package dto holds the wire types exchanged with clients. Timestamps are
// transported as milliseconds since the Unix epoch.
package dto

// BacktestRequest is a backtest submission. Immutable once submitted.
type BacktestRequest struct {
	DataPath       string             `json:"data_path"`
	StrategyName   string             `json:"strategy_name"`
	StrategyParams map[string]float64 `json:"strategy_params,omitempty"`
	InitialCash    float64            `json:"initial_cash"`
	JobID          string             `json:"job_id,omitempty"` // server-assigned if empty
}

// Trade is one executed fill in a result.
type Trade struct {
	Symbol    string  `json:"symbol"`
	Type      string  `json:"type"` // "BUY" or "SELL"
	Quantity  float64 `json:"quantity"`
	Price     float64 `json:"price"`
	Timestamp int64   `json:"timestamp"`
}

// EquityPoint is one point of the equity curve.
type EquityPoint struct {
	Timestamp int64   `json:"timestamp"`
	Value     float64 `json:"value"`
}

// BacktestResult is the outcome of a completed backtest. The zero value is
// the empty sentinel returned for jobs that have not completed.
type BacktestResult struct {
	JobID       string        `json:"job_id"`
	TotalReturn float64       `json:"total_return"`
	SharpeRatio float64       `json:"sharpe_ratio"`
	MaxDrawdown float64       `json:"max_drawdown"`
	WinRate     float64       `json:"win_rate"`
	Trades      []Trade       `json:"trades"`
	EquityCurve []EquityPoint `json:"equity_curve"`
}

// JobStatus is a snapshot of a job's lifecycle state.
type JobStatus struct {
	JobID                 string  `json:"job_id"`
	Status                string  `json:"status"`
	Progress              float64 `json:"progress"`
	Message               string  `json:"message"`
	StartTimeMs           int64   `json:"start_time_ms"`
	EstimatedCompletionMs int64   `json:"estimated_completion_ms"`
}
