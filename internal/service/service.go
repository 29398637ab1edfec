// Package service is the facade that maps request DTOs onto the job manager
// and the strategy registry. It is stateless and never calls back into its
// callers.
package service

import (
	"github.com/rs/zerolog"

	"github.com/fingraph/simengine/pkg/backtest"
	"github.com/fingraph/simengine/pkg/dto"
	"github.com/fingraph/simengine/pkg/jobs"
	"github.com/fingraph/simengine/pkg/logging"
	"github.com/fingraph/simengine/pkg/simerr"
	"github.com/fingraph/simengine/pkg/strategy"
)

// The engine doubles as the manager's runner
var _ jobs.Runner = (*backtest.Engine)(nil)

// Service exposes the engine's operations to front-ends.
type Service struct {
	manager  *jobs.Manager
	registry *strategy.Registry
	logger   zerolog.Logger
}

// New creates a facade over the given manager and registry.
func New(manager *jobs.Manager, registry *strategy.Registry) *Service {
	return &Service{
		manager:  manager,
		registry: registry,
		logger:   logging.GetLogger("service"),
	}
}

// SubmitBacktest validates the request and enqueues a job, returning its id.
func (s *Service) SubmitBacktest(request dto.BacktestRequest) (string, error) {
	if err := s.validate(request); err != nil {
		s.logger.Warn().Err(err).Str("strategy", request.StrategyName).Msg("Rejected backtest request")
		return "", err
	}

	jobID := s.manager.Submit(request)
	s.logger.Info().Str("job_id", jobID).Str("strategy", request.StrategyName).Msg("Backtest submitted")
	return jobID, nil
}

// GetJobStatus returns a status snapshot for the job id.
func (s *Service) GetJobStatus(jobID string) dto.JobStatus {
	return s.manager.GetStatus(jobID)
}

// GetJobResults returns the result for a completed job. The second return is
// false when the job is unknown or not COMPLETED; no partial result is ever
// returned.
func (s *Service) GetJobResults(jobID string) (dto.BacktestResult, bool) {
	result := s.manager.GetResult(jobID)
	return result, result.JobID != ""
}

// CancelJob cancels a PENDING job; it returns false for jobs in any other
// state.
func (s *Service) CancelJob(jobID string) bool {
	return s.manager.Cancel(jobID)
}

// ListStrategies returns the available strategies with their descriptions
// and parameter schemas.
func (s *Service) ListStrategies() []strategy.Info {
	return s.registry.List()
}

// GetStrategyParameters returns the typed parameter schema for a strategy.
func (s *Service) GetStrategyParameters(name string) ([]strategy.ParamSpec, error) {
	return s.registry.Parameters(name)
}

func (s *Service) validate(request dto.BacktestRequest) error {
	if request.DataPath == "" {
		return simerr.New(simerr.CodeInvalidRequest, "data_path is required")
	}
	if request.StrategyName == "" {
		return simerr.New(simerr.CodeInvalidRequest, "strategy_name is required")
	}
	if request.InitialCash <= 0 {
		return simerr.Newf(simerr.CodeInvalidRequest, "initial_cash must be positive, got %v", request.InitialCash)
	}

	specs, err := s.registry.Parameters(request.StrategyName)
	if err != nil {
		return err
	}

	// Range-check the parameters the schema knows about; unknown keys are
	// ignored by the strategies, so they pass through
	byName := make(map[string]strategy.ParamSpec, len(specs))
	for _, spec := range specs {
		byName[spec.Name] = spec
	}
	for name, value := range request.StrategyParams {
		spec, ok := byName[name]
		if !ok {
			continue
		}
		if value < spec.Min || value > spec.Max {
			return simerr.Newf(simerr.CodeInvalidRequest,
				"parameter %s=%v outside [%v, %v]", name, value, spec.Min, spec.Max)
		}
	}

	return nil
}
