package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/readingpartner/scriptpipe/internal/observe"
)

// ErrBusy is returned by [Runner.Start] when all worker slots are taken.
var ErrBusy = errors.New("pipeline: all job slots are busy, try again shortly")

// JobStatus is a job's lifecycle state.
type JobStatus string

const (
	JobRunning JobStatus = "running"
	JobDone    JobStatus = "done"
	JobFailed  JobStatus = "failed"
)

// Event is one progress update emitted by a running job.
type Event struct {
	JobID     string    `json:"jobId"`
	ProjectID string    `json:"projectId"`
	Status    JobStatus `json:"status"`
	Stage     string    `json:"stage,omitempty"`
	Error     string    `json:"error,omitempty"`
	Time      time.Time `json:"time"`
}

// Job tracks one asynchronous pipeline run.
type Job struct {
	ID        string
	ProjectID string

	mu     sync.Mutex
	status JobStatus
	stage  string
	errMsg string
	result *Result
	events []Event
	subs   map[chan Event]struct{}
}

// Snapshot returns the job's most recent event.
func (j *Job) Snapshot() Event {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.eventLocked()
}

// Result returns the pipeline result once the job is done, or nil while it
// is still running or after a failure.
func (j *Job) Result() *Result {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.result
}

// Subscribe returns a channel that first replays the job's past events and
// then streams new ones. The returned cancel function must be called to
// release the subscription; the channel closes when the job finishes.
func (j *Job) Subscribe() (<-chan Event, func()) {
	j.mu.Lock()
	defer j.mu.Unlock()

	ch := make(chan Event, 16+len(j.events))
	for _, e := range j.events {
		ch <- e
	}
	if j.status != JobRunning {
		close(ch)
		return ch, func() {}
	}

	j.subs[ch] = struct{}{}
	cancel := func() {
		j.mu.Lock()
		defer j.mu.Unlock()
		if _, ok := j.subs[ch]; ok {
			delete(j.subs, ch)
			close(ch)
		}
	}
	return ch, cancel
}

func (j *Job) eventLocked() Event {
	return Event{
		JobID:     j.ID,
		ProjectID: j.ProjectID,
		Status:    j.status,
		Stage:     j.stage,
		Error:     j.errMsg,
		Time:      time.Now(),
	}
}

// publish records the current state as an event and fans it out. Must be
// called with j.mu NOT held.
func (j *Job) publish() {
	j.mu.Lock()
	defer j.mu.Unlock()

	e := j.eventLocked()
	j.events = append(j.events, e)
	for ch := range j.subs {
		select {
		case ch <- e:
		default:
			// Slow subscriber; it will catch up from Snapshot.
		}
	}
	if j.status != JobRunning {
		for ch := range j.subs {
			close(ch)
			delete(j.subs, ch)
		}
	}
}

// RunFunc is the unit of work a job executes, typically a closure over one
// of the Pipeline's Submit or Retry methods.
type RunFunc func(ctx context.Context) (*Result, error)

// Runner executes pipeline runs asynchronously with a bounded worker pool.
// Independent projects run concurrently; the bound protects the external
// services from unbounded fan-out.
type Runner struct {
	group   *errgroup.Group
	ctx     context.Context
	metrics *observe.Metrics

	mu   sync.Mutex
	jobs map[string]*Job
}

// NewRunner creates a Runner whose jobs inherit from ctx and run on at most
// maxConcurrent workers (default 4).
func NewRunner(ctx context.Context, maxConcurrent int, metrics *observe.Metrics) *Runner {
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}
	g := &errgroup.Group{}
	g.SetLimit(maxConcurrent)
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	return &Runner{
		group:   g,
		ctx:     ctx,
		metrics: metrics,
		jobs:    make(map[string]*Job),
	}
}

// Start launches fn as an asynchronous job for projectID. It returns
// [ErrBusy] when every worker slot is occupied rather than queueing
// unboundedly.
func (r *Runner) Start(projectID string, fn RunFunc) (*Job, error) {
	job := &Job{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		status:    JobRunning,
		subs:      make(map[chan Event]struct{}),
	}

	job.publish()

	started := r.group.TryGo(func() error {
		ctx := WithProgress(r.ctx, func(stage string) {
			job.mu.Lock()
			job.stage = stage
			job.mu.Unlock()
			job.publish()
		})

		r.metrics.ActiveJobs.Add(ctx, 1)
		defer r.metrics.ActiveJobs.Add(ctx, -1)

		result, err := fn(ctx)

		job.mu.Lock()
		if err != nil {
			job.status = JobFailed
			job.errMsg = err.Error()
		} else {
			job.status = JobDone
			job.result = result
		}
		job.mu.Unlock()
		job.publish()

		// Job errors are reported through the job itself, never up the group.
		return nil
	})
	if !started {
		return nil, ErrBusy
	}

	r.mu.Lock()
	r.jobs[job.ID] = job
	r.mu.Unlock()

	return job, nil
}

// Job returns the job with the given ID, or nil.
func (r *Runner) Job(id string) *Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.jobs[id]
}

// Wait blocks until all running jobs finish. Call during shutdown.
func (r *Runner) Wait() error {
	return r.group.Wait()
}
