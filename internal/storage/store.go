// Package storage persists job records and market data behind a narrow
// interface so the engine never depends on a concrete database.
package storage

import (
	"time"

	"github.com/fingraph/simengine/pkg/market"
)

// JobRecord is the durable form of a job. Request and result are stored as
// opaque JSON documents.
type JobRecord struct {
	ID           string
	Status       string
	RequestJSON  []byte
	ResultJSON   []byte
	ErrorMessage string
	CreatedAt    time.Time
	StartedAt    time.Time
	CompletedAt  time.Time
}

// Store is the persistence contract required from the storage collaborator.
type Store interface {
	// Job records
	SaveJob(record JobRecord) error
	GetJob(id string) (*JobRecord, error)
	ListByStatus(status string) ([]JobRecord, error)
	ListRecent(limit int) ([]JobRecord, error)
	UpdateStatus(id, status string) error
	UpdateResult(id string, result []byte) error
	DeleteJob(id string) error
	CleanupJobs(olderThan time.Time) (int64, error)

	// Market data
	SaveBars(symbol string, bars []market.Bar) error
	GetBars(symbol string, start, end time.Time) ([]market.Bar, error)
	ListSymbols() ([]string, error)
	DeleteBars(symbol string, before time.Time) error

	Close() error
}
