package downloader

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// JobState is the lifecycle state of a job handle
type JobState int

const (
	JobRunning JobState = iota
	JobSucceeded
	JobFailed
	JobCancelled
)

func (s JobState) String() string {
	switch s {
	case JobRunning:
		return "running"
	case JobSucceeded:
		return "succeeded"
	case JobFailed:
		return "failed"
	case JobCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// JobResult is the terminal value of a job
type JobResult struct {
	State   JobState
	Err     error
	Entries MediaCollection
	// Progress is the last aggregate emitted by a download job
	Progress Progress
}

// Job is the future returned by Resolve and Submit
type Job struct {
	ID        string
	Kind      JobKind
	StartedAt time.Time

	cancel context.CancelFunc
	done   chan struct{}

	mu     sync.RWMutex
	result JobResult
}

func newJob(parent context.Context, kind JobKind) (*Job, context.Context) {
	ctx, cancel := context.WithCancel(parent)
	return &Job{
		ID:        uuid.NewString(),
		Kind:      kind,
		StartedAt: time.Now(),
		cancel:    cancel,
		done:      make(chan struct{}),
		result:    JobResult{State: JobRunning},
	}, ctx
}

// Done is closed when the job reaches a terminal state
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// Cancel requests cancellation. It is a no-op once the job has finished.
func (j *Job) Cancel() {
	j.cancel()
}

// Result returns the current result; State is JobRunning until Done closes
func (j *Job) Result() JobResult {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.result
}

// Wait blocks until the job finishes or ctx ends
func (j *Job) Wait(ctx context.Context) (JobResult, error) {
	select {
	case <-j.done:
		return j.Result(), nil
	case <-ctx.Done():
		return JobResult{State: JobRunning}, ctx.Err()
	}
}

func (j *Job) finish(result JobResult) {
	j.mu.Lock()
	j.result = result
	j.mu.Unlock()
	j.cancel()
	close(j.done)
}

// jobSlot enforces one in-flight job per component
type jobSlot struct {
	busy atomic.Bool
}

func (s *jobSlot) acquire() bool {
	return s.busy.CompareAndSwap(false, true)
}

func (s *jobSlot) release() {
	s.busy.Store(false)
}

func (s *jobSlot) active() bool {
	return s.busy.Load()
}

// guard runs fn and converts a panic into a failed result so the job slot
// is always released and the job always terminates.
func guard(fn func() JobResult) (result JobResult) {
	defer func() {
		if r := recover(); r != nil {
			result = JobResult{
				State: JobFailed,
				Err:   NewJobErrorWithCause(ErrorInternal, "job panicked", fmt.Errorf("panic: %v", r)),
			}
		}
	}()
	return fn()
}

// timedOut reports whether ctx ended because a deadline passed rather than
// an explicit cancel
func timedOut(ctx context.Context) bool {
	return errors.Is(ctx.Err(), context.DeadlineExceeded)
}
