package downloader

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// MockProgressReporter is a mock implementation of ProgressReporter for testing
type MockProgressReporter struct {
	mu                    sync.RWMutex
	startTrackingCalls    []StartTrackingCall
	updateProgressCalls   []UpdateProgressCall
	phaseChangeCalls      []PhaseChangeCall
	errorCalls            []ErrorCall
	completeCalls         []CompleteCall
	stopCalls             int
	shouldFailUpdate      bool
	shouldFailPhaseChange bool
}

type StartTrackingCall struct {
	JobID string
	Title string
}

type UpdateProgressCall struct {
	Phase    Phase
	Progress Progress
}

type PhaseChangeCall struct {
	OldPhase Phase
	NewPhase Phase
}

type ErrorCall struct {
	Error error
}

type CompleteCall struct {
	Duration    time.Duration
	Destination string
}

func NewMockProgressReporter() *MockProgressReporter {
	return &MockProgressReporter{}
}

func (m *MockProgressReporter) StartTracking(ctx context.Context, jobID string, title string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startTrackingCalls = append(m.startTrackingCalls, StartTrackingCall{JobID: jobID, Title: title})
	return nil
}

func (m *MockProgressReporter) UpdateProgress(phase Phase, progress Progress) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateProgressCalls = append(m.updateProgressCalls, UpdateProgressCall{Phase: phase, Progress: progress})
	if m.shouldFailUpdate {
		return NewJobError(ErrorInternal, "mock update error")
	}
	return nil
}

func (m *MockProgressReporter) ReportPhaseChange(oldPhase, newPhase Phase) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.phaseChangeCalls = append(m.phaseChangeCalls, PhaseChangeCall{OldPhase: oldPhase, NewPhase: newPhase})
	if m.shouldFailPhaseChange {
		return NewJobError(ErrorInternal, "mock phase change error")
	}
	return nil
}

func (m *MockProgressReporter) ReportError(err error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCalls = append(m.errorCalls, ErrorCall{Error: err})
	return nil
}

func (m *MockProgressReporter) ReportComplete(duration time.Duration, destination string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completeCalls = append(m.completeCalls, CompleteCall{Duration: duration, Destination: destination})
	return nil
}

func (m *MockProgressReporter) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopCalls++
}

func (m *MockProgressReporter) GetUpdateProgressCalls() []UpdateProgressCall {
	m.mu.RLock()
	defer m.mu.RUnlock()
	calls := make([]UpdateProgressCall, len(m.updateProgressCalls))
	copy(calls, m.updateProgressCalls)
	return calls
}

func (m *MockProgressReporter) GetPhaseChangeCalls() []PhaseChangeCall {
	m.mu.RLock()
	defer m.mu.RUnlock()
	calls := make([]PhaseChangeCall, len(m.phaseChangeCalls))
	copy(calls, m.phaseChangeCalls)
	return calls
}

func (m *MockProgressReporter) GetErrorCalls() []ErrorCall {
	m.mu.RLock()
	defer m.mu.RUnlock()
	calls := make([]ErrorCall, len(m.errorCalls))
	copy(calls, m.errorCalls)
	return calls
}

func (m *MockProgressReporter) GetCompleteCalls() []CompleteCall {
	m.mu.RLock()
	defer m.mu.RUnlock()
	calls := make([]CompleteCall, len(m.completeCalls))
	copy(calls, m.completeCalls)
	return calls
}

func (m *MockProgressReporter) GetStopCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stopCalls
}

func TestProgressTracker_NewProgressTracker(t *testing.T) {
	reporter := NewMockProgressReporter()
	tracker := NewProgressTracker(reporter)

	if tracker == nil {
		t.Fatal("NewProgressTracker returned nil")
	}

	if tracker.updateInterval != 500*time.Millisecond {
		t.Errorf("Expected update interval to be 500ms, got %v", tracker.updateInterval)
	}

	if tracker.reporter != reporter {
		t.Error("Reporter not set correctly")
	}

	if tracker.isRunning {
		t.Error("Tracker should not be running initially")
	}
}

func TestProgressTracker_NewProgressTrackerWithInterval(t *testing.T) {
	reporter := NewMockProgressReporter()

	tracker := NewProgressTrackerWithInterval(reporter, 250*time.Millisecond)
	if tracker.updateInterval != 250*time.Millisecond {
		t.Errorf("Expected update interval to be 250ms, got %v", tracker.updateInterval)
	}

	tracker = NewProgressTrackerWithInterval(reporter, 0)
	if tracker.updateInterval != 500*time.Millisecond {
		t.Errorf("Non-positive interval should keep the default, got %v", tracker.updateInterval)
	}
}

func TestProgressTracker_StartAndStop(t *testing.T) {
	reporter := NewMockProgressReporter()
	tracker := NewProgressTracker(reporter)
	ctx := context.Background()

	if err := tracker.Start(ctx); err != nil {
		t.Fatalf("Failed to start tracker: %v", err)
	}

	if !tracker.IsRunning() {
		t.Error("Tracker should be running after Start()")
	}

	if err := tracker.Start(ctx); err == nil {
		t.Error("Expected error when starting already running tracker")
	}

	tracker.Stop()

	if tracker.IsRunning() {
		t.Error("Tracker should not be running after Stop()")
	}

	if reporter.GetStopCalls() != 1 {
		t.Errorf("Expected 1 Stop() call on reporter, got %d", reporter.GetStopCalls())
	}
}

func TestProgressTracker_UpdateProgress(t *testing.T) {
	reporter := NewMockProgressReporter()
	tracker := NewProgressTrackerWithInterval(reporter, 50*time.Millisecond)

	if err := tracker.Start(context.Background()); err != nil {
		t.Fatalf("Failed to start tracker: %v", err)
	}
	defer tracker.Stop()

	progress := Progress{Percent: 42, CompletedItems: 1, TotalItems: 3}
	tracker.UpdateProgress(PhaseDownloading, progress)

	time.Sleep(100 * time.Millisecond)

	phase, current := tracker.GetCurrentProgress()
	if phase != PhaseDownloading {
		t.Errorf("Expected phase %v, got %v", PhaseDownloading, phase)
	}
	if current != progress {
		t.Errorf("Expected progress %+v, got %+v", progress, current)
	}
}

func TestProgressTracker_PhaseChangeReporting(t *testing.T) {
	reporter := NewMockProgressReporter()
	tracker := NewProgressTrackerWithInterval(reporter, 50*time.Millisecond)

	if err := tracker.Start(context.Background()); err != nil {
		t.Fatalf("Failed to start tracker: %v", err)
	}
	defer tracker.Stop()

	tracker.UpdateProgress(PhaseResolving, Progress{})
	time.Sleep(60 * time.Millisecond)
	tracker.UpdateProgress(PhaseDownloading, Progress{Percent: 10, TotalItems: 2})
	time.Sleep(60 * time.Millisecond)

	phaseChanges := reporter.GetPhaseChangeCalls()
	expected := []PhaseChangeCall{
		{OldPhase: -1, NewPhase: PhaseResolving},
		{OldPhase: PhaseResolving, NewPhase: PhaseDownloading},
	}
	if len(phaseChanges) != len(expected) {
		t.Fatalf("Expected %d phase changes, got %d: %+v", len(expected), len(phaseChanges), phaseChanges)
	}
	for i, want := range expected {
		if phaseChanges[i] != want {
			t.Errorf("Phase change %d: expected %v->%v, got %v->%v",
				i, want.OldPhase, want.NewPhase, phaseChanges[i].OldPhase, phaseChanges[i].NewPhase)
		}
	}
}

func TestProgressTracker_ThrottlesUnchangedProgress(t *testing.T) {
	reporter := NewMockProgressReporter()
	tracker := NewProgressTrackerWithInterval(reporter, 30*time.Millisecond)

	if err := tracker.Start(context.Background()); err != nil {
		t.Fatalf("Failed to start tracker: %v", err)
	}
	defer tracker.Stop()

	for pct := 1; pct <= 20; pct++ {
		tracker.UpdateProgress(PhaseDownloading, Progress{Percent: pct, TotalItems: 1})
	}

	// several ticks pass with no new data
	time.Sleep(200 * time.Millisecond)

	calls := reporter.GetUpdateProgressCalls()
	if len(calls) == 0 {
		t.Fatal("Expected at least one reported update")
	}
	if len(calls) >= 20 {
		t.Errorf("Expected updates to be coalesced, got %d reporter calls", len(calls))
	}
	last := calls[len(calls)-1]
	if last.Progress.Percent != 20 {
		t.Errorf("Expected last reported percent 20, got %d", last.Progress.Percent)
	}
	for i := 1; i < len(calls); i++ {
		if calls[i].Progress == calls[i-1].Progress && calls[i].Phase == calls[i-1].Phase {
			t.Errorf("Unchanged progress reported twice at call %d", i)
		}
	}
}

func TestProgressTracker_UpdateProgressWhenNotRunning(t *testing.T) {
	reporter := NewMockProgressReporter()
	tracker := NewProgressTracker(reporter)

	tracker.UpdateProgress(PhaseDownloading, Progress{Percent: 10})

	phase, progress := tracker.GetCurrentProgress()
	if phase != -1 || progress.Percent != 0 {
		t.Error("Progress should not be updated when tracker is not running")
	}
}

func TestProgressTracker_ContextCancellation(t *testing.T) {
	reporter := NewMockProgressReporter()
	tracker := NewProgressTrackerWithInterval(reporter, 50*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())

	if err := tracker.Start(ctx); err != nil {
		t.Fatalf("Failed to start tracker: %v", err)
	}

	cancel()
	time.Sleep(100 * time.Millisecond)

	// Tracker should still report as running until Stop() is called
	if !tracker.IsRunning() {
		t.Error("Tracker should still report as running until Stop() is called")
	}

	tracker.Stop()

	if tracker.IsRunning() {
		t.Error("Tracker should not be running after Stop()")
	}
}

func TestProgressTracker_ResourceCleanup(t *testing.T) {
	reporter := NewMockProgressReporter()
	tracker := NewProgressTracker(reporter)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := tracker.Start(ctx); err != nil {
			t.Fatalf("Failed to start tracker on iteration %d: %v", i, err)
		}

		tracker.UpdateProgress(PhaseDownloading, Progress{Percent: i * 10})
		time.Sleep(10 * time.Millisecond)

		tracker.Stop()

		if tracker.IsRunning() {
			t.Errorf("Tracker should not be running after Stop() on iteration %d", i)
		}
	}

	if reporter.GetStopCalls() != 3 {
		t.Errorf("Expected 3 Stop() calls on reporter, got %d", reporter.GetStopCalls())
	}
}

func TestProgressTracker_ConcurrentUpdates(t *testing.T) {
	reporter := NewMockProgressReporter()
	tracker := NewProgressTrackerWithInterval(reporter, 50*time.Millisecond)

	if err := tracker.Start(context.Background()); err != nil {
		t.Fatalf("Failed to start tracker: %v", err)
	}
	defer tracker.Stop()

	var wg sync.WaitGroup
	numGoroutines := 10
	updatesPerGoroutine := 5

	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func(goroutineID int) {
			defer wg.Done()
			for j := 0; j < updatesPerGoroutine; j++ {
				tracker.UpdateProgress(PhaseDownloading, Progress{
					Percent:    goroutineID*10 + j,
					TotalItems: 10,
				})
				time.Sleep(5 * time.Millisecond)
			}
		}(i)
	}

	wg.Wait()
	time.Sleep(100 * time.Millisecond)

	phase, progress := tracker.GetCurrentProgress()
	if phase != PhaseDownloading {
		t.Errorf("Expected final phase to be %v, got %v", PhaseDownloading, phase)
	}
	if progress.TotalItems != 10 {
		t.Errorf("Expected total items to be 10, got %d", progress.TotalItems)
	}
}

func TestProgressTracker_FollowCompletedJob(t *testing.T) {
	hub := NewHub()
	sub := hub.Subscribe()
	defer sub.Close()

	reporter := NewMockProgressReporter()
	tracker := NewProgressTrackerWithInterval(reporter, time.Hour)
	if err := tracker.Start(context.Background()); err != nil {
		t.Fatalf("Failed to start tracker: %v", err)
	}
	defer tracker.Stop()

	started := time.Now().Add(-3 * time.Second)
	go func() {
		hub.Emit(Event{JobID: "other", Type: EventProgress, Progress: &Progress{Percent: 99}})
		hub.Emit(Event{JobID: "job-1", Type: EventProgress, Progress: &Progress{Percent: 33, CompletedItems: 1, TotalItems: 3}})
		hub.Emit(Event{JobID: "job-1", Type: EventLog, Log: &LogEvent{Level: LevelInfo, Message: "ignored"}})
		final := Progress{Percent: 100, CompletedItems: 3, TotalItems: 3}
		hub.Emit(Event{JobID: "job-1", Type: EventCompleted, Progress: &final, Subject: "/tmp/out", Started: started})
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	evt, err := tracker.Follow(ctx, sub, "job-1")
	if err != nil {
		t.Fatalf("Follow failed: %v", err)
	}
	if evt.Type != EventCompleted {
		t.Errorf("Expected completed event, got %s", evt.Type)
	}

	// the terminal state is flushed even though the ticker never fired
	calls := reporter.GetUpdateProgressCalls()
	if len(calls) != 1 {
		t.Fatalf("Expected exactly 1 flushed update, got %d", len(calls))
	}
	if calls[0].Phase != PhaseComplete || calls[0].Progress.Percent != 100 {
		t.Errorf("Expected final flush of Complete/100, got %v/%d", calls[0].Phase, calls[0].Progress.Percent)
	}

	completes := reporter.GetCompleteCalls()
	if len(completes) != 1 {
		t.Fatalf("Expected 1 ReportComplete call, got %d", len(completes))
	}
	if completes[0].Destination != "/tmp/out" {
		t.Errorf("Expected destination /tmp/out, got %s", completes[0].Destination)
	}
	if completes[0].Duration < 3*time.Second {
		t.Errorf("Expected duration measured from job start, got %v", completes[0].Duration)
	}
	if len(reporter.GetErrorCalls()) != 0 {
		t.Error("ReportError should not be called for a completed job")
	}
}

func TestProgressTracker_FollowFailedJob(t *testing.T) {
	hub := NewHub()
	sub := hub.Subscribe()
	defer sub.Close()

	reporter := NewMockProgressReporter()
	tracker := NewProgressTracker(reporter)

	jobErr := NewJobError(ErrorDownload, "batch download failed")
	go hub.Emit(Event{JobID: "job-2", Type: EventFailed, Err: jobErr})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	// not started: the terminal event is reported directly
	evt, err := tracker.Follow(ctx, sub, "job-2")
	if err != nil {
		t.Fatalf("Follow failed: %v", err)
	}
	if evt.Type != EventFailed {
		t.Errorf("Expected failed event, got %s", evt.Type)
	}

	errs := reporter.GetErrorCalls()
	if len(errs) != 1 || !errors.Is(errs[0].Error, jobErr) {
		t.Fatalf("Expected ReportError with the job error, got %+v", errs)
	}
	phase, _ := tracker.GetCurrentProgress()
	if phase != PhaseFailed {
		t.Errorf("Expected phase %v, got %v", PhaseFailed, phase)
	}
}

func TestProgressTracker_FollowClosedStream(t *testing.T) {
	hub := NewHub()
	sub := hub.Subscribe()
	hub.Close()

	tracker := NewProgressTracker(NewMockProgressReporter())
	_, err := tracker.Follow(context.Background(), sub, "job-3")
	if !IsJobError(err, ErrorInternal) {
		t.Errorf("Expected internal error for closed stream, got %v", err)
	}
}
