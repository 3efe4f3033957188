package handlers

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/et-316/ex-file-eraser/internal/pipeline"
)

// eventChannelBuffer is the per-listener buffer for job events. Slow SSE
// consumers drop events instead of blocking the job.
const eventChannelBuffer = 64

// JobStatus represents the status of an async job.
type JobStatus string

// JobStatus constants define the lifecycle states of an async job.
const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// JobKind distinguishes the two batch passes a run goes through.
type JobKind string

const (
	JobKindDetect JobKind = "detect"
	JobKindMatch  JobKind = "match"
)

// ErrJobActive is returned when a run already has a job in flight.
var ErrJobActive = errors.New("run already has an active job")

// JobSnapshot is the JSON view of a job at one point in time.
type JobSnapshot struct {
	ID          string     `json:"id"`
	RunID       string     `json:"run_id"`
	Kind        JobKind    `json:"kind"`
	Status      JobStatus  `json:"status"`
	Processed   int        `json:"processed"`
	Total       int        `json:"total"`
	Error       string     `json:"error,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Job represents an async detection or matching pass over a run.
type Job struct {
	EventBroadcaster

	id        string
	runID     string
	kind      JobKind
	status    JobStatus
	processed int
	total     int
	err       string
	startedAt time.Time
	doneAt    *time.Time
}

// GetStatus returns the current job status (implements SSEJob).
func (j *Job) GetStatus() JobStatus {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.status
}

// ID returns the job's identifier.
func (j *Job) ID() string {
	return j.id
}

// Snapshot returns a consistent copy of the job for JSON responses.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return JobSnapshot{
		ID:          j.id,
		RunID:       j.runID,
		Kind:        j.kind,
		Status:      j.status,
		Processed:   j.processed,
		Total:       j.total,
		Error:       j.err,
		StartedAt:   j.startedAt,
		CompletedAt: j.doneAt,
	}
}

// SetRunning marks the job as started.
func (j *Job) SetRunning() {
	j.mu.Lock()
	j.status = JobStatusRunning
	j.mu.Unlock()
}

// SetProgress records batch progress and notifies listeners with a typed
// report carrying the job's stage.
func (j *Job) SetProgress(processed, total int) {
	j.mu.Lock()
	j.processed = processed
	j.total = total
	j.mu.Unlock()
	j.SendEvent(JobEvent{Type: "progress", Data: pipeline.Progress{
		Current: processed,
		Total:   total,
		Stage:   j.stage(),
	}})
}

// stage maps the job kind to the batch stage reported to listeners.
func (j *Job) stage() pipeline.Stage {
	if j.kind == JobKindMatch {
		return pipeline.StageMatching
	}
	return pipeline.StageDetecting
}

// Complete marks the job as finished and notifies listeners.
func (j *Job) Complete(data any) {
	now := time.Now()
	j.mu.Lock()
	j.status = JobStatusCompleted
	j.doneAt = &now
	j.mu.Unlock()
	j.SendEvent(JobEvent{Type: "completed", Data: data})
}

// Fail marks the job as failed with the given message.
func (j *Job) Fail(message string) {
	now := time.Now()
	j.mu.Lock()
	j.status = JobStatusFailed
	j.err = message
	j.doneAt = &now
	j.mu.Unlock()
	j.SendEvent(JobEvent{Type: "failed", Message: message})
}

// Cancel cancels the job.
func (j *Job) Cancel() {
	j.EventBroadcaster.Cancel()
	now := time.Now()
	j.mu.Lock()
	j.status = JobStatusCancelled
	j.doneAt = &now
	j.mu.Unlock()
}

// JobEvent represents an event from a job.
type JobEvent struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// EventBroadcaster provides listener management and event broadcasting for async jobs.
// Embed this in job structs to get AddListener, RemoveListener, and SendEvent methods.
type EventBroadcaster struct {
	cancel    context.CancelFunc
	listeners []chan JobEvent
	mu        sync.RWMutex
}

// AddListener adds an event listener.
func (b *EventBroadcaster) AddListener() chan JobEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan JobEvent, eventChannelBuffer)
	b.listeners = append(b.listeners, ch)
	return ch
}

// RemoveListener removes an event listener.
func (b *EventBroadcaster) RemoveListener(ch chan JobEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, listener := range b.listeners {
		if listener == ch {
			b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
			close(ch)
			return
		}
	}
}

// SendEvent sends an event to all listeners.
func (b *EventBroadcaster) SendEvent(event JobEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, listener := range b.listeners {
		select {
		case listener <- event:
		default:
			// Listener buffer full, skip.
		}
	}
}

// Cancel cancels the job via context and sends a cancelled event.
func (b *EventBroadcaster) Cancel() {
	if b.cancel != nil {
		b.cancel()
	}
	b.SendEvent(JobEvent{Type: "cancelled", Message: "Job cancelled by user"})
}

// SSEJob is the interface required by streamSSEEvents to stream job events via SSE.
type SSEJob interface {
	AddListener() chan JobEvent
	RemoveListener(ch chan JobEvent)
	GetStatus() JobStatus
}

// JobManager manages async jobs. A run can have at most one job that is not
// in a terminal state; both job kinds mutate the run's working set.
type JobManager struct {
	jobs map[string]*Job
	mu   sync.RWMutex
}

// NewJobManager creates a new job manager.
func NewJobManager() *JobManager {
	return &JobManager{
		jobs: make(map[string]*Job),
	}
}

// StartJob creates a job for the run, rejecting it if one is still active.
// The returned context is cancelled when the job is cancelled.
func (m *JobManager) StartJob(runID string, kind JobKind) (*Job, context.Context, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, job := range m.jobs {
		if job.runID == runID && !isJobTerminal(job.GetStatus()) {
			return nil, nil, ErrJobActive
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	job := &Job{
		id:        uuid.NewString(),
		runID:     runID,
		kind:      kind,
		status:    JobStatusPending,
		startedAt: time.Now(),
	}
	job.EventBroadcaster.cancel = cancel

	m.jobs[job.id] = job
	return job, ctx, nil
}

// GetJob retrieves a job by ID.
func (m *JobManager) GetJob(id string) *Job {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.jobs[id]
}

// DeleteJob removes a job.
func (m *JobManager) DeleteJob(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.jobs, id)
}
