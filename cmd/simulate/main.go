package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/fingraph/simengine/pkg/backtest"
	"github.com/fingraph/simengine/pkg/dto"
	"github.com/fingraph/simengine/pkg/logging"
)

// fileConfig is the on-disk job description. Both snake_case and camelCase
// keys are accepted for each field.
type fileConfig struct {
	DataPath     string             `json:"data_path"`
	DataPathAlt  string             `json:"dataPath"`
	Strategy     string             `json:"strategy_name"`
	StrategyAlt  string             `json:"strategy"`
	Params       map[string]float64 `json:"strategy_params"`
	ParamsAlt    map[string]float64 `json:"parameters"`
	InitialCash  float64            `json:"initial_cash"`
	InitialAlt   float64            `json:"initialCash"`
	RiskFreeRate float64            `json:"risk_free_rate"`
}

func (c fileConfig) toRequest() dto.BacktestRequest {
	req := dto.BacktestRequest{
		DataPath:       c.DataPath,
		StrategyName:   c.Strategy,
		StrategyParams: c.Params,
		InitialCash:    c.InitialCash,
	}
	if req.DataPath == "" {
		req.DataPath = c.DataPathAlt
	}
	if req.StrategyName == "" {
		req.StrategyName = c.StrategyAlt
	}
	if req.StrategyParams == nil {
		req.StrategyParams = c.ParamsAlt
	}
	if req.InitialCash == 0 {
		req.InitialCash = c.InitialAlt
	}
	return req
}

func main() {
	// Load environment variables from .env file
	envErr := godotenv.Load()

	// Logging configuration from environment; console output goes to stderr
	// so the result JSON on stdout stays machine-readable
	logConfig := logging.DefaultConfig()
	logConfig.Level = logging.LogLevel(getEnv("LOG_LEVEL", "info"))
	logConfig.Pretty = getEnvBool("LOG_PRETTY", true)
	logConfig.EnableFile = getEnvBool("LOG_TO_FILE", false)
	logConfig.LogDir = getEnv("LOG_DIR", "logs")
	logConfig.LogFileName = getEnv("LOG_FILE", "simulate.log")
	logging.Initialize(logConfig)

	logger := logging.GetLogger("main")

	if envErr != nil {
		logger.Debug().Err(envErr).Msg("Could not load .env file, using system environment variables")
	}

	if len(os.Args) != 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <config.json>\n", os.Args[0])
		os.Exit(1)
	}

	configPath := os.Args[1]
	raw, err := os.ReadFile(configPath)
	if err != nil {
		logger.Fatal().Err(err).Str("path", configPath).Msg("Failed to read config file")
	}

	var config fileConfig
	if err := json.Unmarshal(raw, &config); err != nil {
		logger.Fatal().Err(err).Str("path", configPath).Msg("Failed to parse config file")
	}

	req := config.toRequest()
	logger.Info().
		Str("data_path", req.DataPath).
		Str("strategy", req.StrategyName).
		Float64("initial_cash", req.InitialCash).
		Msg("Running backtest")

	engine := backtest.NewEngine()
	engine.SetRiskFreeRate(config.RiskFreeRate)

	result, err := engine.RunRequest(req, func(progress float64, step string) {
		logger.Debug().Float64("progress", progress).Str("step", step).Msg("Progress")
	})
	if err != nil {
		logger.Error().Err(err).Msg("Backtest failed")
		os.Exit(1)
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to encode result")
	}
	fmt.Println(string(out))
}

// Helper function to get environment variable with default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// Helper function to get boolean environment variable with default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
