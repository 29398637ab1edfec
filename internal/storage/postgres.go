package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/rs/zerolog"

	"github.com/fingraph/simengine/pkg/dto"
	"github.com/fingraph/simengine/pkg/jobs"
	"github.com/fingraph/simengine/pkg/logging"
	"github.com/fingraph/simengine/pkg/market"
)

// PostgresStore persists jobs and market data in PostgreSQL.
type PostgresStore struct {
	db     *sql.DB
	logger zerolog.Logger
}

// NewPostgresStore opens a connection and verifies it with a ping.
func NewPostgresStore(connectionString string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{
		db:     db,
		logger: logging.GetLogger("storage"),
	}, nil
}

// InitializeSchema creates the tables used by the store if they are missing.
func (s *PostgresStore) InitializeSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS backtest_jobs (
			id TEXT PRIMARY KEY,
			status TEXT NOT NULL,
			request JSONB,
			result JSONB,
			error_message TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL,
			started_at TIMESTAMPTZ,
			completed_at TIMESTAMPTZ
		)`,
		`CREATE INDEX IF NOT EXISTS idx_backtest_jobs_status ON backtest_jobs (status)`,
		`CREATE TABLE IF NOT EXISTS market_bars (
			symbol TEXT NOT NULL,
			timestamp TIMESTAMPTZ NOT NULL,
			open DOUBLE PRECISION NOT NULL,
			high DOUBLE PRECISION NOT NULL,
			low DOUBLE PRECISION NOT NULL,
			close DOUBLE PRECISION NOT NULL,
			volume BIGINT NOT NULL,
			PRIMARY KEY (symbol, timestamp)
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
	}
	return nil
}

// SaveJob inserts or replaces a job record.
func (s *PostgresStore) SaveJob(record JobRecord) error {
	query := `
		INSERT INTO backtest_jobs (id, status, request, result, error_message, created_at, started_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			request = EXCLUDED.request,
			result = EXCLUDED.result,
			error_message = EXCLUDED.error_message,
			started_at = EXCLUDED.started_at,
			completed_at = EXCLUDED.completed_at
	`

	_, err := s.db.Exec(query,
		record.ID,
		record.Status,
		nullableJSON(record.RequestJSON),
		nullableJSON(record.ResultJSON),
		record.ErrorMessage,
		record.CreatedAt,
		nullableTime(record.StartedAt),
		nullableTime(record.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save job %s: %w", record.ID, err)
	}
	return nil
}

// GetJob returns the record for a job id, or nil when not found.
func (s *PostgresStore) GetJob(id string) (*JobRecord, error) {
	query := `
		SELECT id, status, request, result, error_message, created_at, started_at, completed_at
		FROM backtest_jobs
		WHERE id = $1
	`

	record, err := scanJob(s.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job %s: %w", id, err)
	}
	return record, nil
}

// ListByStatus returns all job records in the given status, newest first.
func (s *PostgresStore) ListByStatus(status string) ([]JobRecord, error) {
	query := `
		SELECT id, status, request, result, error_message, created_at, started_at, completed_at
		FROM backtest_jobs
		WHERE status = $1
		ORDER BY created_at DESC
	`
	return s.queryJobs(query, status)
}

// ListRecent returns the most recently created job records.
func (s *PostgresStore) ListRecent(limit int) ([]JobRecord, error) {
	query := `
		SELECT id, status, request, result, error_message, created_at, started_at, completed_at
		FROM backtest_jobs
		ORDER BY created_at DESC
		LIMIT $1
	`
	return s.queryJobs(query, limit)
}

// UpdateStatus sets the status of a job, stamping the matching timestamp.
func (s *PostgresStore) UpdateStatus(id, status string) error {
	query := `
		UPDATE backtest_jobs SET
			status = $2,
			started_at = CASE WHEN $2 = 'RUNNING' THEN now() ELSE started_at END,
			completed_at = CASE WHEN $2 IN ('COMPLETED', 'FAILED', 'CANCELLED') THEN now() ELSE completed_at END
		WHERE id = $1
	`
	if _, err := s.db.Exec(query, id, status); err != nil {
		return fmt.Errorf("failed to update status of job %s: %w", id, err)
	}
	return nil
}

// UpdateResult stores the result document of a job.
func (s *PostgresStore) UpdateResult(id string, result []byte) error {
	query := `UPDATE backtest_jobs SET result = $2 WHERE id = $1`
	if _, err := s.db.Exec(query, id, nullableJSON(result)); err != nil {
		return fmt.Errorf("failed to update result of job %s: %w", id, err)
	}
	return nil
}

// DeleteJob removes a job record.
func (s *PostgresStore) DeleteJob(id string) error {
	if _, err := s.db.Exec(`DELETE FROM backtest_jobs WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete job %s: %w", id, err)
	}
	return nil
}

// CleanupJobs removes terminal job records completed before the cutoff and
// returns how many rows were deleted.
func (s *PostgresStore) CleanupJobs(olderThan time.Time) (int64, error) {
	query := `
		DELETE FROM backtest_jobs
		WHERE status IN ('COMPLETED', 'FAILED', 'CANCELLED')
		  AND completed_at IS NOT NULL
		  AND completed_at < $1
	`
	result, err := s.db.Exec(query, olderThan)
	if err != nil {
		return 0, fmt.Errorf("failed to clean up jobs: %w", err)
	}
	return result.RowsAffected()
}

// SaveBars upserts OHLCV rows for a symbol.
func (s *PostgresStore) SaveBars(symbol string, bars []market.Bar) error {
	query := `
		INSERT INTO market_bars (symbol, timestamp, open, high, low, close, volume)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (symbol, timestamp) DO UPDATE SET
			open = EXCLUDED.open,
			high = EXCLUDED.high,
			low = EXCLUDED.low,
			close = EXCLUDED.close,
			volume = EXCLUDED.volume
	`

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	for _, bar := range bars {
		if _, err := tx.Exec(query, symbol, bar.Timestamp, bar.Open, bar.High, bar.Low, bar.Close, bar.Volume); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to save bar for %s: %w", symbol, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit bars for %s: %w", symbol, err)
	}
	return nil
}

// GetBars returns OHLCV rows for a symbol within [start, end], ascending.
func (s *PostgresStore) GetBars(symbol string, start, end time.Time) ([]market.Bar, error) {
	query := `
		SELECT timestamp, open, high, low, close, volume
		FROM market_bars
		WHERE symbol = $1 AND timestamp >= $2 AND timestamp <= $3
		ORDER BY timestamp ASC
	`

	rows, err := s.db.Query(query, symbol, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query market_bars: %w", err)
	}
	defer rows.Close()

	var bars []market.Bar
	for rows.Next() {
		var bar market.Bar
		if err := rows.Scan(&bar.Timestamp, &bar.Open, &bar.High, &bar.Low, &bar.Close, &bar.Volume); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		bars = append(bars, bar)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return bars, nil
}

// ListSymbols returns the distinct symbols with stored bars.
func (s *PostgresStore) ListSymbols() ([]string, error) {
	rows, err := s.db.Query(`SELECT DISTINCT symbol FROM market_bars ORDER BY symbol`)
	if err != nil {
		return nil, fmt.Errorf("failed to list symbols: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var symbol string
		if err := rows.Scan(&symbol); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		symbols = append(symbols, symbol)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return symbols, nil
}

// DeleteBars removes a symbol's bars before the given instant; a zero time
// removes all of them.
func (s *PostgresStore) DeleteBars(symbol string, before time.Time) error {
	var err error
	if before.IsZero() {
		_, err = s.db.Exec(`DELETE FROM market_bars WHERE symbol = $1`, symbol)
	} else {
		_, err = s.db.Exec(`DELETE FROM market_bars WHERE symbol = $1 AND timestamp < $2`, symbol, before)
	}
	if err != nil {
		return fmt.Errorf("failed to delete bars for %s: %w", symbol, err)
	}
	return nil
}

// Close closes the database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// JobPersister adapts the store to the job manager's Persister contract,
// marshaling requests and results to JSON documents.
type JobPersister struct {
	store *PostgresStore
}

// NewJobPersister wraps a store for use by the job manager.
func NewJobPersister(store *PostgresStore) *JobPersister {
	return &JobPersister{store: store}
}

// SaveJob persists the initial record of a job.
func (p *JobPersister) SaveJob(job *jobs.Job) error {
	requestJSON, err := json.Marshal(job.Request)
	if err != nil {
		return fmt.Errorf("failed to marshal request of job %s: %w", job.ID, err)
	}
	return p.store.SaveJob(JobRecord{
		ID:          job.ID,
		Status:      string(job.Status),
		RequestJSON: requestJSON,
		CreatedAt:   job.CreatedAt,
		StartedAt:   job.StartedAt,
		CompletedAt: job.CompletedAt,
	})
}

// UpdateJobStatus persists a status transition.
func (p *JobPersister) UpdateJobStatus(id string, status jobs.Status, errorMessage string) error {
	if err := p.store.UpdateStatus(id, string(status)); err != nil {
		return err
	}
	if errorMessage == "" {
		return nil
	}
	if _, err := p.store.db.Exec(`UPDATE backtest_jobs SET error_message = $2 WHERE id = $1`, id, errorMessage); err != nil {
		return fmt.Errorf("failed to update error of job %s: %w", id, err)
	}
	return nil
}

// UpdateJobResult persists a job's result document.
func (p *JobPersister) UpdateJobResult(id string, result *dto.BacktestResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result of job %s: %w", id, err)
	}
	return p.store.UpdateResult(id, resultJSON)
}

// ---- helpers ----

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row rowScanner) (*JobRecord, error) {
	var record JobRecord
	var request, result []byte
	var startedAt, completedAt sql.NullTime

	err := row.Scan(
		&record.ID,
		&record.Status,
		&request,
		&result,
		&record.ErrorMessage,
		&record.CreatedAt,
		&startedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	record.RequestJSON = request
	record.ResultJSON = result
	if startedAt.Valid {
		record.StartedAt = startedAt.Time
	}
	if completedAt.Valid {
		record.CompletedAt = completedAt.Time
	}
	return &record, nil
}

func (s *PostgresStore) queryJobs(query string, args ...interface{}) ([]JobRecord, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query backtest_jobs: %w", err)
	}
	defer rows.Close()

	var records []JobRecord
	for rows.Next() {
		record, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		records = append(records, *record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return records, nil
}

func nullableJSON(data []byte) interface{} {
	if len(data) == 0 {
		return nil
	}
	return data
}

func nullableTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}

// Verify the implementations satisfy their contracts
var (
	_ Store          = (*PostgresStore)(nil)
	_ jobs.Persister = (*JobPersister)(nil)
)
