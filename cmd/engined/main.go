package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fingraph/simengine/internal/service"
	"github.com/fingraph/simengine/internal/storage"
	"github.com/fingraph/simengine/pkg/backtest"
	"github.com/fingraph/simengine/pkg/jobs"
	"github.com/fingraph/simengine/pkg/logging"
)

func main() {
	// Load environment variables from .env file
	envErr := godotenv.Load()

	// Logging configuration from environment
	logConfig := logging.DefaultConfig()
	logConfig.Level = logging.LogLevel(getEnv("LOG_LEVEL", "info"))
	logConfig.Pretty = getEnvBool("LOG_PRETTY", true)
	logConfig.EnableFile = getEnvBool("LOG_TO_FILE", true)
	logConfig.LogDir = getEnv("LOG_DIR", "logs")
	logConfig.LogFileName = getEnv("LOG_FILE", "engined.log")
	logging.Initialize(logConfig)

	logger := logging.GetLogger("main")

	if envErr != nil {
		logger.Warn().Err(envErr).Msg("Could not load .env file, using system environment variables")
	} else {
		logger.Debug().Msg("Successfully loaded .env file")
	}

	logger.Info().Msg("Simulation Engine Daemon")
	logger.Info().Msg("========================")

	workers := getEnvInt("ENGINE_WORKERS", 4)
	riskFreeRate := getEnvFloat("RISK_FREE_RATE", 0.0)
	metricsAddr := getEnv("METRICS_ADDR", ":9100")
	cleanupInterval := getEnvDuration("JOB_CLEANUP_INTERVAL", time.Hour)
	jobMaxAge := getEnvDuration("JOB_MAX_AGE", 24*time.Hour)

	engine := backtest.NewEngine()
	engine.SetRiskFreeRate(riskFreeRate)

	// Durable job storage is optional; without DATABASE_URL jobs live only in
	// memory for the daemon's lifetime
	var opts []jobs.Option
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		logger.Info().Msg("Connecting to database...")
		store, err := storage.NewPostgresStore(dbURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to connect to database")
		}
		defer store.Close()

		if err := store.InitializeSchema(); err != nil {
			logger.Fatal().Err(err).Msg("Failed to initialize database schema")
		}
		opts = append(opts, jobs.WithPersister(storage.NewJobPersister(store)))
	}

	manager := jobs.NewManager(workers, engine, opts...)
	svc := service.New(manager, engine.Registry())
	for _, info := range svc.ListStrategies() {
		logger.Info().Str("strategy", info.Name).Int("params", len(info.Params)).Msg("Strategy available")
	}

	manager.Start()

	// Prometheus metrics endpoint
	metricsServer := &http.Server{Addr: metricsAddr, Handler: promhttp.Handler()}
	go func() {
		logger.Info().Str("addr", metricsAddr).Msg("Serving metrics")
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("Metrics server stopped")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Periodically evict old terminal jobs from the in-memory registry
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	logger.Info().Int("workers", workers).Msg("Engine running")
	for {
		select {
		case <-ticker.C:
			removed := manager.Cleanup(jobMaxAge)
			if removed > 0 {
				logger.Info().Int("removed", removed).Msg("Cleaned up old jobs")
			}
		case <-ctx.Done():
			logger.Info().Msg("Shutting down...")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				logger.Warn().Err(err).Msg("Metrics server shutdown failed")
			}
			cancel()

			manager.Stop()
			logger.Info().Msg("Shutdown complete")
			return
		}
	}
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

// Helper function to get integer environment variable with default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// Helper function to get float environment variable with default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// Helper function to get duration environment variable with default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
