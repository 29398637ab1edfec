package jobs

import (
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/fingraph/simengine/internal/telemetry"
	"github.com/fingraph/simengine/pkg/dto"
	"github.com/fingraph/simengine/pkg/logging"
)

// Runner executes one backtest request to completion, reporting progress in
// [0, 1] through the supplied function. *backtest.Engine satisfies this.
type Runner interface {
	RunRequest(req dto.BacktestRequest, onProgress func(progress float64, step string)) (*dto.BacktestResult, error)
}

// Persister receives best-effort copies of job transitions for durable
// storage. Errors are logged, never propagated into the job lifecycle.
type Persister interface {
	SaveJob(job *Job) error
	UpdateJobStatus(id string, status Status, errorMessage string) error
	UpdateJobResult(id string, result *dto.BacktestResult) error
}

// ProgressCallback observes job progress updates. At most one callback is
// registered; it runs on the worker goroutine and should return quickly.
type ProgressCallback func(jobID string, progress float64, step string)

// Manager queues backtest jobs and dispatches them across a fixed pool of
// workers in strict FIFO order. A job removed from the queue runs to a
// terminal state on the same worker.
type Manager struct {
	workers int
	runner  Runner
	logger  zerolog.Logger

	// registry of all known jobs; guards job field access too
	jobsMu   sync.Mutex
	jobs     map[string]*Job
	callback ProgressCallback

	// dispatch queue, guarded separately from the registry
	queueMu   sync.Mutex
	queueCond *sync.Cond
	queue     []*Job
	stopping  bool

	runningJobs atomic.Int64
	jobCounter  atomic.Uint64

	persister Persister

	wg      sync.WaitGroup
	started bool
}

// Option configures a Manager.
type Option func(*Manager)

// WithPersister attaches a durable store for job records.
func WithPersister(p Persister) Option {
	return func(m *Manager) { m.persister = p }
}

// NewManager creates a manager with the given worker count and runner.
// Workers do not start until Start is called.
func NewManager(workers int, runner Runner, opts ...Option) *Manager {
	if workers < 1 {
		workers = 1
	}
	m := &Manager{
		workers: workers,
		runner:  runner,
		jobs:    make(map[string]*Job),
		logger:  logging.GetLogger("jobs"),
	}
	m.queueCond = sync.NewCond(&m.queueMu)
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Submit creates a PENDING job for the request, appends it to the FIFO queue
// and returns its id. It never blocks. The request's job id is honored when
// set; otherwise a fresh one is assigned.
func (m *Manager) Submit(request dto.BacktestRequest) string {
	job := &Job{
		ID:        request.JobID,
		Status:    StatusPending,
		Request:   request,
		CreatedAt: time.Now(),
	}
	if job.ID == "" {
		job.ID = m.generateJobID()
		job.Request.JobID = job.ID
	}

	m.jobsMu.Lock()
	m.jobs[job.ID] = job
	m.jobsMu.Unlock()

	m.persist(func(p Persister) error { return p.SaveJob(job) })
	telemetry.JobsSubmitted.Inc()

	m.queueMu.Lock()
	m.queue = append(m.queue, job)
	m.queueCond.Signal()
	m.queueMu.Unlock()

	m.logger.Debug().Str("job_id", job.ID).Str("strategy", request.StrategyName).Msg("Job submitted")
	return job.ID
}

// Cancel transitions a PENDING job to CANCELLED and returns true. It returns
// false for unknown jobs and for any job that already left PENDING; RUNNING
// jobs always complete.
func (m *Manager) Cancel(jobID string) bool {
	m.jobsMu.Lock()
	job, ok := m.jobs[jobID]
	if !ok || job.Status != StatusPending {
		m.jobsMu.Unlock()
		return false
	}
	job.Status = StatusCancelled
	job.CompletedAt = time.Now()
	job.CurrentStep = "Cancelled"
	m.jobsMu.Unlock()

	m.persist(func(p Persister) error { return p.UpdateJobStatus(jobID, StatusCancelled, "") })
	telemetry.JobsCompleted.WithLabelValues("cancelled").Inc()

	m.logger.Debug().Str("job_id", jobID).Msg("Job cancelled")
	return true
}

// GetStatus returns a snapshot of the job's state. Unknown ids report a
// FAILED status with an explanatory message.
func (m *Manager) GetStatus(jobID string) dto.JobStatus {
	m.jobsMu.Lock()
	defer m.jobsMu.Unlock()

	job, ok := m.jobs[jobID]
	if !ok {
		return dto.JobStatus{
			JobID:   jobID,
			Status:  string(StatusFailed),
			Message: "Job not found",
		}
	}
	return job.snapshot()
}

// GetResult returns the result for a COMPLETED job; for any other state it
// returns the empty sentinel (zero job id).
func (m *Manager) GetResult(jobID string) dto.BacktestResult {
	m.jobsMu.Lock()
	defer m.jobsMu.Unlock()

	job, ok := m.jobs[jobID]
	if !ok || job.Status != StatusCompleted || job.Result == nil {
		return dto.BacktestResult{}
	}
	return *job.Result
}

// GetJob returns the job record for an id, or nil when unknown. The returned
// pointer is shared with the executing worker; treat it as read-only.
func (m *Manager) GetJob(jobID string) *Job {
	m.jobsMu.Lock()
	defer m.jobsMu.Unlock()
	return m.jobs[jobID]
}

// SetProgressCallback registers the single progress observer, replacing any
// previous one.
func (m *Manager) SetProgressCallback(callback ProgressCallback) {
	m.jobsMu.Lock()
	m.callback = callback
	m.jobsMu.Unlock()
}

// Start launches the worker pool. Calling Start twice is a no-op.
func (m *Manager) Start() {
	m.queueMu.Lock()
	if m.started {
		m.queueMu.Unlock()
		return
	}
	m.started = true
	m.stopping = false
	m.queueMu.Unlock()

	for i := 0; i < m.workers; i++ {
		m.wg.Add(1)
		go m.worker(i)
	}
	m.logger.Info().Int("workers", m.workers).Msg("Job manager started")
}

// Stop wakes all workers and waits for them to drain. In-flight jobs run to
// a terminal state; jobs still PENDING stay queued and are discarded with
// the manager.
func (m *Manager) Stop() {
	m.queueMu.Lock()
	if !m.started {
		m.queueMu.Unlock()
		return
	}
	m.started = false
	m.stopping = true
	m.queueCond.Broadcast()
	m.queueMu.Unlock()

	m.wg.Wait()
	m.logger.Info().Msg("Job manager stopped")
}

// QueueSize returns the number of jobs waiting in the queue.
func (m *Manager) QueueSize() int {
	m.queueMu.Lock()
	defer m.queueMu.Unlock()
	return len(m.queue)
}

// RunningJobs returns the number of jobs currently executing.
func (m *Manager) RunningJobs() int {
	return int(m.runningJobs.Load())
}

// Cleanup removes terminal jobs whose completion timestamp is older than
// now - maxAge from the in-memory registry and returns how many were
// removed. Durable records are untouched; the storage layer has its own
// retention.
func (m *Manager) Cleanup(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)

	m.jobsMu.Lock()
	defer m.jobsMu.Unlock()

	removed := 0
	for id, job := range m.jobs {
		if job.Status.Terminal() && !job.CompletedAt.IsZero() && job.CompletedAt.Before(cutoff) {
			delete(m.jobs, id)
			removed++
		}
	}
	return removed
}

// worker loops: wait until the queue is non-empty or the manager is
// stopping, pop one job, execute it to a terminal state, repeat.
func (m *Manager) worker(id int) {
	defer m.wg.Done()
	logger := logging.GetSubLogger(m.logger, fmt.Sprintf("worker-%d", id))

	for {
		m.queueMu.Lock()
		for len(m.queue) == 0 && !m.stopping {
			m.queueCond.Wait()
		}
		if m.stopping {
			// In-flight jobs already completed; queued jobs stay PENDING
			m.queueMu.Unlock()
			return
		}
		job := m.queue[0]
		m.queue = m.queue[1:]
		m.queueMu.Unlock()

		// Jobs cancelled while queued are skipped, not executed
		m.jobsMu.Lock()
		if job.Status != StatusPending {
			m.jobsMu.Unlock()
			continue
		}
		job.Status = StatusRunning
		job.StartedAt = time.Now()
		job.CurrentStep = "Starting execution"
		m.jobsMu.Unlock()

		m.persist(func(p Persister) error { return p.UpdateJobStatus(job.ID, StatusRunning, "") })

		m.runningJobs.Add(1)
		telemetry.JobsRunning.Inc()

		logger.Debug().Str("job_id", job.ID).Msg("Executing job")
		m.execute(job)

		m.runningJobs.Add(-1)
		telemetry.JobsRunning.Dec()
	}
}

// execute runs one job and records the terminal transition.
func (m *Manager) execute(job *Job) {
	start := time.Now()
	result, err := m.runJob(job)
	telemetry.BacktestDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		m.markFailed(job, err)
		return
	}
	m.markCompleted(job, result)
}

func (m *Manager) runJob(job *Job) (*dto.BacktestResult, error) {
	m.updateProgress(job.ID, 0.05, "Initializing backtest engine")

	result, err := m.runner.RunRequest(job.Request, func(progress float64, step string) {
		// Kernel progress occupies the 10%..95% band of the job
		m.updateProgress(job.ID, 0.1+0.85*progress, step)
	})
	if err != nil {
		return nil, err
	}

	m.updateProgress(job.ID, 1.0, "Backtest completed")
	return result, nil
}

func (m *Manager) markCompleted(job *Job, result *dto.BacktestResult) {
	m.jobsMu.Lock()
	job.Status = StatusCompleted
	job.Result = result
	job.Progress = 1.0
	job.CurrentStep = "Completed"
	job.CompletedAt = time.Now()
	m.jobsMu.Unlock()

	m.persist(func(p Persister) error { return p.UpdateJobResult(job.ID, result) })
	m.persist(func(p Persister) error { return p.UpdateJobStatus(job.ID, StatusCompleted, "") })
	telemetry.JobsCompleted.WithLabelValues("completed").Inc()

	m.logger.Info().Str("job_id", job.ID).Msg("Job completed")
}

func (m *Manager) markFailed(job *Job, err error) {
	step := "Failed: " + err.Error()

	m.jobsMu.Lock()
	job.Status = StatusFailed
	job.ErrorMessage = err.Error()
	job.CurrentStep = step
	job.CompletedAt = time.Now()
	progress := job.Progress
	callback := m.callback
	m.jobsMu.Unlock()

	// One final notification so observers see the failure step
	if callback != nil {
		callback(job.ID, progress, step)
	}

	m.persist(func(p Persister) error { return p.UpdateJobStatus(job.ID, StatusFailed, job.ErrorMessage) })
	telemetry.JobsCompleted.WithLabelValues("failed").Inc()

	m.logger.Warn().Str("job_id", job.ID).Err(err).Msg("Job failed")
}

// updateProgress records progress on the job and notifies the callback
// outside the registry lock so a slow observer cannot block readers.
func (m *Manager) updateProgress(jobID string, progress float64, step string) {
	m.jobsMu.Lock()
	job, ok := m.jobs[jobID]
	if !ok {
		m.jobsMu.Unlock()
		return
	}
	job.Progress = progress
	job.CurrentStep = step
	callback := m.callback
	m.jobsMu.Unlock()

	if callback != nil {
		callback(jobID, progress, step)
	}
}

func (m *Manager) persist(op func(Persister) error) {
	if m.persister == nil {
		return
	}
	if err := op(m.persister); err != nil {
		m.logger.Warn().Err(err).Msg("Job persistence failed")
	}
}

// generateJobID returns "job_<ms since epoch>_<counter>_<4-digit random>".
// The monotonic counter makes ids unique for the manager's lifetime even
// within one millisecond.
func (m *Manager) generateJobID() string {
	counter := m.jobCounter.Add(1) - 1
	return fmt.Sprintf("job_%d_%d_%04d", time.Now().UnixMilli(), counter, 1000+rand.IntN(9000))
}
