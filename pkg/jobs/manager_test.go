package jobs

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fingraph/simengine/pkg/backtest"
	"github.com/fingraph/simengine/pkg/dto"
	"github.com/fingraph/simengine/pkg/market"
)

// stubRunner is a controllable Runner. When gate is non-nil every run blocks
// until the gate channel is closed.
type stubRunner struct {
	gate chan struct{}
	err  error

	mu   sync.Mutex
	runs []string
}

func (r *stubRunner) RunRequest(req dto.BacktestRequest, onProgress func(progress float64, step string)) (*dto.BacktestResult, error) {
	if r.gate != nil {
		<-r.gate
	}
	r.mu.Lock()
	r.runs = append(r.runs, req.JobID)
	r.mu.Unlock()

	if r.err != nil {
		return nil, r.err
	}
	if onProgress != nil {
		onProgress(0.5, "Processed 5/10 bars")
		onProgress(1.0, "Processed 10/10 bars")
	}
	return &dto.BacktestResult{JobID: req.JobID, TotalReturn: 0.1}, nil
}

func (r *stubRunner) ranJobs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.runs...)
}

func testRequest() dto.BacktestRequest {
	return dto.BacktestRequest{
		DataPath:     "bars.csv",
		StrategyName: "Moving Average Crossover",
		InitialCash:  1000,
	}
}

func waitTerminal(t *testing.T, m *Manager, jobID string) dto.JobStatus {
	t.Helper()
	var status dto.JobStatus
	require.Eventually(t, func() bool {
		status = m.GetStatus(jobID)
		return Status(status.Status).Terminal()
	}, 5*time.Second, time.Millisecond)
	return status
}

func TestSubmitAssignsUniqueIDs(t *testing.T) {
	m := NewManager(2, &stubRunner{})

	const n = 10000
	seen := make(map[string]struct{}, n)
	for i := 0; i < n; i++ {
		id := m.Submit(testRequest())
		assert.True(t, strings.HasPrefix(id, "job_"), "id %q", id)
		seen[id] = struct{}{}
	}
	assert.Len(t, seen, n)
	assert.Equal(t, n, m.QueueSize())
}

func TestSubmitHonorsClientJobID(t *testing.T) {
	m := NewManager(1, &stubRunner{})

	req := testRequest()
	req.JobID = "job_42_0_9999"
	id := m.Submit(req)

	assert.Equal(t, "job_42_0_9999", id)
	assert.Equal(t, "PENDING", m.GetStatus(id).Status)
}

func TestCancelPendingJob(t *testing.T) {
	m := NewManager(1, &stubRunner{}) // workers never started

	id := m.Submit(testRequest())
	assert.True(t, m.Cancel(id))

	status := m.GetStatus(id)
	assert.Equal(t, "CANCELLED", status.Status)

	// Already terminal: a second cancel is refused
	assert.False(t, m.Cancel(id))
	assert.False(t, m.Cancel("job_unknown"))
}

func TestCancelRunningJobIsRefused(t *testing.T) {
	runner := &stubRunner{gate: make(chan struct{})}
	m := NewManager(1, runner)
	m.Start()
	defer m.Stop()

	id := m.Submit(testRequest())
	require.Eventually(t, func() bool {
		return m.GetStatus(id).Status == "RUNNING"
	}, 5*time.Second, time.Millisecond)

	assert.False(t, m.Cancel(id))
	assert.Equal(t, "RUNNING", m.GetStatus(id).Status)

	close(runner.gate)
	status := waitTerminal(t, m, id)
	assert.Equal(t, "COMPLETED", status.Status)
}

func TestCancellationRace(t *testing.T) {
	// Two workers grab the first two jobs; cancelling everything else while
	// they are blocked must leave exactly those two to complete
	runner := &stubRunner{gate: make(chan struct{})}
	m := NewManager(2, runner)
	m.Start()
	defer m.Stop()

	var ids []string
	for i := 0; i < 100; i++ {
		ids = append(ids, m.Submit(testRequest()))
	}

	require.Eventually(t, func() bool {
		return m.RunningJobs() == 2
	}, 5*time.Second, time.Millisecond)

	cancelled := 0
	for _, id := range ids {
		if m.Cancel(id) {
			cancelled++
		}
	}
	assert.Equal(t, 98, cancelled)

	close(runner.gate)

	completed := 0
	for _, id := range ids {
		if waitTerminal(t, m, id).Status == "COMPLETED" {
			completed++
		}
	}
	assert.Equal(t, 2, completed)
	assert.Len(t, runner.ranJobs(), 2)
}

func TestJobTimestampsAreOrdered(t *testing.T) {
	m := NewManager(1, &stubRunner{})
	m.Start()
	defer m.Stop()

	id := m.Submit(testRequest())
	waitTerminal(t, m, id)

	job := m.GetJob(id)
	require.NotNil(t, job)
	assert.False(t, job.CreatedAt.After(job.StartedAt))
	assert.False(t, job.StartedAt.After(job.CompletedAt))
}

func TestGetStatusUnknownJob(t *testing.T) {
	m := NewManager(1, &stubRunner{})

	status := m.GetStatus("job_missing")
	assert.Equal(t, "FAILED", status.Status)
	assert.Equal(t, "Job not found", status.Message)
	assert.Equal(t, "job_missing", status.JobID)
}

func TestGetResultOnlyForCompletedJobs(t *testing.T) {
	m := NewManager(1, &stubRunner{})

	id := m.Submit(testRequest())
	assert.Empty(t, m.GetResult(id).JobID) // still pending

	m.Start()
	defer m.Stop()
	waitTerminal(t, m, id)

	result := m.GetResult(id)
	assert.Equal(t, id, result.JobID)
	assert.Equal(t, 0.1, result.TotalReturn)
}

func TestFailedJobReportsError(t *testing.T) {
	runner := &stubRunner{err: errors.New("IO_ERROR: could not open bars.csv")}
	m := NewManager(1, runner)

	var mu sync.Mutex
	var steps []string
	m.SetProgressCallback(func(jobID string, progress float64, step string) {
		mu.Lock()
		steps = append(steps, step)
		mu.Unlock()
	})

	m.Start()
	defer m.Stop()

	id := m.Submit(testRequest())
	status := waitTerminal(t, m, id)

	assert.Equal(t, "FAILED", status.Status)
	assert.Contains(t, status.Message, "Failed:")

	job := m.GetJob(id)
	require.NotNil(t, job)
	assert.Contains(t, job.ErrorMessage, "could not open bars.csv")

	// No partial result for failed jobs
	assert.Empty(t, m.GetResult(id).JobID)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, steps)
	assert.Contains(t, steps[len(steps)-1], "Failed:")
}

func TestProgressCallbackIsMonotone(t *testing.T) {
	m := NewManager(1, &stubRunner{})

	var mu sync.Mutex
	progress := make(map[string][]float64)
	m.SetProgressCallback(func(jobID string, p float64, step string) {
		mu.Lock()
		progress[jobID] = append(progress[jobID], p)
		mu.Unlock()
	})

	m.Start()
	defer m.Stop()

	id := m.Submit(testRequest())
	waitTerminal(t, m, id)

	mu.Lock()
	defer mu.Unlock()
	values := progress[id]
	require.NotEmpty(t, values)
	for i := 1; i < len(values); i++ {
		assert.GreaterOrEqual(t, values[i], values[i-1])
	}
	// Kernel progress is mapped into the run's middle band before completion
	assert.Equal(t, 0.05, values[0])
	assert.Equal(t, 1.0, values[len(values)-1])
}

func TestStopLeavesPendingJobsQueued(t *testing.T) {
	runner := &stubRunner{gate: make(chan struct{})}
	m := NewManager(1, runner)
	m.Start()

	first := m.Submit(testRequest())
	second := m.Submit(testRequest())
	third := m.Submit(testRequest())

	require.Eventually(t, func() bool {
		return m.GetStatus(first).Status == "RUNNING"
	}, 5*time.Second, time.Millisecond)

	done := make(chan struct{})
	go func() {
		m.Stop()
		close(done)
	}()

	close(runner.gate)
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return")
	}

	// The in-flight job finished; the queued ones were never picked up
	assert.Equal(t, "COMPLETED", m.GetStatus(first).Status)
	assert.Equal(t, "PENDING", m.GetStatus(second).Status)
	assert.Equal(t, "PENDING", m.GetStatus(third).Status)
	assert.Equal(t, 2, m.QueueSize())
}

func TestCleanupRemovesOldTerminalJobs(t *testing.T) {
	m := NewManager(1, &stubRunner{})
	m.Start()

	id := m.Submit(testRequest())
	waitTerminal(t, m, id)
	m.Stop()

	// Submitted after the workers drained, so it stays PENDING
	pending := m.Submit(testRequest())

	removed := m.Cleanup(0)
	assert.Equal(t, 1, removed)
	assert.Equal(t, "Job not found", m.GetStatus(id).Message)

	// Non-terminal jobs survive any max age
	assert.Equal(t, "PENDING", m.GetStatus(pending).Status)
}

func TestStartIsIdempotent(t *testing.T) {
	m := NewManager(2, &stubRunner{})
	m.Start()
	m.Start()
	m.Stop()
	m.Stop()
}

func TestDeterminismAcrossWorkers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bars.csv")
	closes := []float64{12, 10, 9, 12, 13, 9, 8, 12, 14, 7}
	data := market.CSVHeader + "\n"
	for i, c := range closes {
		data += fmt.Sprintf("2024-01-%02d,%g,%g,%g,%g,1000\n", i+1, c, c, c, c)
	}
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	engine := backtest.NewEngine()
	m := NewManager(4, engine)
	m.Start()
	defer m.Stop()

	var ids []string
	for i := 0; i < 50; i++ {
		ids = append(ids, m.Submit(dto.BacktestRequest{
			DataPath:       path,
			StrategyName:   "Moving Average Crossover",
			StrategyParams: map[string]float64{"shortPeriod": 2, "longPeriod": 3},
			InitialCash:    1000,
		}))
	}

	var first []byte
	for _, id := range ids {
		status := waitTerminal(t, m, id)
		require.Equal(t, "COMPLETED", status.Status)

		result := m.GetResult(id)
		result.JobID = "" // ids differ per job, everything else must not
		encoded, err := json.Marshal(result)
		require.NoError(t, err)

		if first == nil {
			first = encoded
			continue
		}
		require.Equal(t, string(first), string(encoded), "job %s diverged", id)
	}
}

// recordingPersister captures lifecycle notifications.
type recordingPersister struct {
	mu      sync.Mutex
	saved   []string
	updates []string
	results []string
	err     error
}

func (p *recordingPersister) SaveJob(job *Job) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.saved = append(p.saved, job.ID)
	return p.err
}

func (p *recordingPersister) UpdateJobStatus(id string, status Status, errorMessage string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.updates = append(p.updates, id+":"+string(status))
	return p.err
}

func (p *recordingPersister) UpdateJobResult(id string, result *dto.BacktestResult) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.results = append(p.results, id)
	return p.err
}

func TestPersisterObservesLifecycle(t *testing.T) {
	persister := &recordingPersister{}
	m := NewManager(1, &stubRunner{}, WithPersister(persister))
	m.Start()
	defer m.Stop()

	id := m.Submit(testRequest())
	waitTerminal(t, m, id)

	persister.mu.Lock()
	defer persister.mu.Unlock()
	assert.Contains(t, persister.saved, id)
	assert.Contains(t, persister.updates, id+":RUNNING")
	assert.Contains(t, persister.updates, id+":COMPLETED")
	assert.Contains(t, persister.results, id)
}

func TestPersisterErrorsDoNotFailJobs(t *testing.T) {
	persister := &recordingPersister{err: errors.New("db down")}
	m := NewManager(1, &stubRunner{}, WithPersister(persister))
	m.Start()
	defer m.Stop()

	id := m.Submit(testRequest())
	status := waitTerminal(t, m, id)
	assert.Equal(t, "COMPLETED", status.Status)
}
