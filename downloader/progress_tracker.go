package downloader

import (
	"context"
	"sync"
	"time"
)

// ProgressTracker throttles aggregate progress of one job to a reporter
type ProgressTracker struct {
	// Configuration
	updateInterval time.Duration
	reporter       ProgressReporter

	// State management
	mu              sync.RWMutex
	isRunning       bool
	currentPhase    Phase
	currentProgress Progress
	dirty           bool

	// Goroutine management
	ctx        context.Context
	cancel     context.CancelFunc
	ticker     *time.Ticker
	updateChan chan progressUpdate
	finishChan chan finishRequest
	stopChan   chan struct{}
	doneChan   chan struct{}
}

// progressUpdate represents an internal progress update
type progressUpdate struct {
	phase    Phase
	progress Progress
}

type finishRequest struct {
	evt  Event
	done chan struct{}
}

// NewProgressTracker creates a new ProgressTracker with the specified reporter
func NewProgressTracker(reporter ProgressReporter) *ProgressTracker {
	return &ProgressTracker{
		updateInterval: 500 * time.Millisecond,
		reporter:       reporter,
		currentPhase:   -1, // Initialize to invalid phase to detect first phase change
	}
}

// NewProgressTrackerWithInterval creates a ProgressTracker with a custom update interval
func NewProgressTrackerWithInterval(reporter ProgressReporter, interval time.Duration) *ProgressTracker {
	pt := NewProgressTracker(reporter)
	if interval > 0 {
		pt.updateInterval = interval
	}
	return pt
}

// Start begins the progress tracking with periodic updates
func (pt *ProgressTracker) Start(ctx context.Context) error {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	if pt.isRunning {
		return NewJobError(ErrorInternal, "progress tracker is already running")
	}

	// Create new channels for this session
	pt.updateChan = make(chan progressUpdate, 64)
	pt.finishChan = make(chan finishRequest)
	pt.stopChan = make(chan struct{})
	pt.doneChan = make(chan struct{})

	pt.ctx, pt.cancel = context.WithCancel(ctx)
	pt.ticker = time.NewTicker(pt.updateInterval)
	pt.isRunning = true

	go pt.updateLoop()

	return nil
}

// Stop stops the progress tracking and cleans up resources
func (pt *ProgressTracker) Stop() {
	pt.mu.Lock()
	if !pt.isRunning {
		pt.mu.Unlock()
		return
	}

	select {
	case <-pt.stopChan:
		// Already closed
	default:
		close(pt.stopChan)
	}

	if pt.cancel != nil {
		pt.cancel()
	}
	pt.isRunning = false
	pt.mu.Unlock()

	<-pt.doneChan

	if pt.ticker != nil {
		pt.ticker.Stop()
		pt.ticker = nil
	}

	if pt.reporter != nil {
		pt.reporter.Stop()
	}
}

// UpdateProgress queues a progress update for the next tick
func (pt *ProgressTracker) UpdateProgress(phase Phase, progress Progress) {
	pt.mu.RLock()
	if !pt.isRunning {
		pt.mu.RUnlock()
		return
	}
	updates := pt.updateChan
	pt.mu.RUnlock()

	select {
	case updates <- progressUpdate{phase: phase, progress: progress}:
	default:
		// Channel is full, skip this update to prevent blocking
	}
}

// GetCurrentProgress returns the current progress state (thread-safe)
func (pt *ProgressTracker) GetCurrentProgress() (Phase, Progress) {
	pt.mu.RLock()
	defer pt.mu.RUnlock()
	return pt.currentPhase, pt.currentProgress
}

// IsRunning returns whether the tracker is currently running
func (pt *ProgressTracker) IsRunning() bool {
	pt.mu.RLock()
	defer pt.mu.RUnlock()
	return pt.isRunning
}

// Follow feeds the tracker from a hub subscription until the terminal event
// of jobID arrives, then reports completion or error. It returns that
// terminal event.
func (pt *ProgressTracker) Follow(ctx context.Context, sub *Subscription, jobID string) (Event, error) {
	for {
		select {
		case <-ctx.Done():
			return Event{}, ctx.Err()
		case evt, ok := <-sub.C():
			if !ok {
				return Event{}, NewJobError(ErrorInternal, "event stream closed before job finished")
			}
			if evt.JobID != jobID {
				continue
			}
			switch {
			case evt.Type == EventProgress && evt.Progress != nil:
				pt.UpdateProgress(PhaseDownloading, *evt.Progress)
			case evt.Type.Terminal():
				pt.finish(evt)
				return evt, nil
			}
		}
	}
}

func (pt *ProgressTracker) finish(evt Event) {
	pt.mu.RLock()
	running := pt.isRunning
	finishChan := pt.finishChan
	doneChan := pt.doneChan
	pt.mu.RUnlock()

	if !running {
		pt.record(terminalUpdate(evt))
		pt.reportCurrent(-1)
		pt.reportTerminal(evt)
		return
	}

	req := finishRequest{evt: evt, done: make(chan struct{})}
	select {
	case finishChan <- req:
		<-req.done
	case <-doneChan:
	}
}

func terminalUpdate(evt Event) progressUpdate {
	phase := PhaseComplete
	switch evt.Type {
	case EventFailed:
		phase = PhaseFailed
	case EventCancelled:
		phase = PhaseCancelled
	}
	progress := Progress{}
	if evt.Progress != nil {
		progress = *evt.Progress
	}
	return progressUpdate{phase: phase, progress: progress}
}

func (pt *ProgressTracker) reportTerminal(evt Event) {
	if pt.reporter == nil {
		return
	}
	if evt.Type == EventCompleted || evt.Type == EventResolved {
		_ = pt.reporter.ReportComplete(time.Since(evt.Started), evt.Subject)
		return
	}
	_ = pt.reporter.ReportError(evt.Err)
}

// drainUpdates records every queued update; only the update loop calls it
func (pt *ProgressTracker) drainUpdates() {
	for {
		select {
		case u := <-pt.updateChan:
			pt.record(u)
		default:
			return
		}
	}
}

func (pt *ProgressTracker) record(update progressUpdate) {
	pt.mu.Lock()
	oldPhase := pt.currentPhase
	pt.currentPhase = update.phase
	pt.currentProgress = update.progress
	pt.dirty = true
	pt.mu.Unlock()

	if oldPhase != update.phase && pt.reporter != nil {
		// Reporter errors never interrupt the job
		_ = pt.reporter.ReportPhaseChange(oldPhase, update.phase)
	}
}

// reportCurrent sends the latest state when it changed since the last report
func (pt *ProgressTracker) reportCurrent(lastReportedPhase Phase) Phase {
	pt.mu.Lock()
	currentPhase := pt.currentPhase
	currentProgress := pt.currentProgress
	changed := pt.dirty || currentPhase != lastReportedPhase
	pt.dirty = false
	pt.mu.Unlock()

	if pt.reporter != nil && currentPhase >= 0 && changed {
		_ = pt.reporter.UpdateProgress(currentPhase, currentProgress)
		return currentPhase
	}
	return lastReportedPhase
}

// updateLoop runs the main update loop in a separate goroutine
func (pt *ProgressTracker) updateLoop() {
	defer close(pt.doneChan)

	var lastReportedPhase Phase = -1

	for {
		select {
		case <-pt.ctx.Done():
			return

		case <-pt.stopChan:
			return

		case update := <-pt.updateChan:
			pt.record(update)

		case req := <-pt.finishChan:
			pt.drainUpdates()
			pt.record(terminalUpdate(req.evt))
			lastReportedPhase = pt.reportCurrent(lastReportedPhase)
			pt.reportTerminal(req.evt)
			close(req.done)

		case <-pt.ticker.C:
			lastReportedPhase = pt.reportCurrent(lastReportedPhase)
		}
	}
}
