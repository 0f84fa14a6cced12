package extraction

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cardlens/backend/internal/model"
)

// JobStatus is the lifecycle state of an async analysis job.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// Job tracks an asynchronous statement analysis.
type Job struct {
	ID           string              `json:"id"`
	Status       JobStatus           `json:"status"`
	Filename     string              `json:"filename"`
	CreatedAt    time.Time           `json:"createdAt"`
	CompletedAt  time.Time           `json:"completedAt,omitempty"`
	Transactions []model.Transaction `json:"transactions,omitempty"`
	ErrorCode    ErrorCode           `json:"errorCode,omitempty"`
	ErrorDetail  string              `json:"errorDetail,omitempty"`
}

// JobStore manages in-memory async analysis jobs with TTL cleanup.
type JobStore struct {
	mu   sync.RWMutex
	jobs map[string]*Job
	ttl  time.Duration
	done chan struct{}
}

// NewJobStore creates a new job store with background cleanup.
func NewJobStore(ttl time.Duration) *JobStore {
	js := &JobStore{
		jobs: make(map[string]*Job),
		ttl:  ttl,
		done: make(chan struct{}),
	}
	go js.cleanup()
	return js
}

// Create registers a new pending job for the given upload.
func (js *JobStore) Create(filename string) *Job {
	job := &Job{
		ID:        uuid.NewString(),
		Status:    JobPending,
		Filename:  filename,
		CreatedAt: time.Now(),
	}
	js.mu.Lock()
	defer js.mu.Unlock()
	js.jobs[job.ID] = job
	return js.copyLocked(job)
}

// Get retrieves a job by ID.
func (js *JobStore) Get(id string) (*Job, error) {
	js.mu.RLock()
	defer js.mu.RUnlock()
	job, ok := js.jobs[id]
	if !ok {
		return nil, fmt.Errorf("job not found: %s", id)
	}
	return js.copyLocked(job), nil
}

// SetRunning marks a job as in progress.
func (js *JobStore) SetRunning(id string) {
	js.mu.Lock()
	defer js.mu.Unlock()
	if job, ok := js.jobs[id]; ok {
		job.Status = JobRunning
	}
}

// Complete stores a successful result.
func (js *JobStore) Complete(id string, txs []model.Transaction) {
	js.mu.Lock()
	defer js.mu.Unlock()
	if job, ok := js.jobs[id]; ok {
		job.Status = JobCompleted
		job.CompletedAt = time.Now()
		job.Transactions = txs
	}
}

// Fail stores a failure result.
func (js *JobStore) Fail(id string, err error) {
	js.mu.Lock()
	defer js.mu.Unlock()
	job, ok := js.jobs[id]
	if !ok {
		return
	}
	job.Status = JobFailed
	job.CompletedAt = time.Now()
	if extErr, isExt := err.(*Error); isExt {
		job.ErrorCode = extErr.Code
		job.ErrorDetail = extErr.Message
	} else {
		job.ErrorCode = ErrAllModelsFailed
		job.ErrorDetail = "Analysis failed. Please try again later."
	}
}

// Stop signals the background cleanup goroutine to exit.
func (js *JobStore) Stop() {
	close(js.done)
}

func (js *JobStore) copyLocked(job *Job) *Job {
	cp := *job
	cp.Transactions = append([]model.Transaction(nil), job.Transactions...)
	return &cp
}

func (js *JobStore) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-js.done:
			return
		case <-ticker.C:
			js.mu.Lock()
			now := time.Now()
			for id, job := range js.jobs {
				if now.Sub(job.CreatedAt) > js.ttl {
					delete(js.jobs, id)
				}
			}
			js.mu.Unlock()
		}
	}
}
