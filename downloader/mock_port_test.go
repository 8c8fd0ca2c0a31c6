package downloader

import (
	"context"
	"sync"
	"testing"
	"time"
)

// MockPort is a scripted MediaResolutionPort for testing
type MockPort struct {
	mu sync.Mutex

	resolveInfo  *RawInfo
	resolveErr   error
	resolveGate  chan struct{}
	resolveCalls []string

	// script holds the progress updates reported for each item in order
	script        [][]ProgressUpdate
	downloadErr   error
	ignoreContext bool
	itemDone      chan int
	proceed       chan struct{}
	downloadCalls []PortDownload
	itemsStarted  int
	hookErrors    []error
}

func NewMockPort() *MockPort {
	return &MockPort{}
}

func (m *MockPort) Resolve(ctx context.Context, link string, log Logger) (*RawInfo, error) {
	m.mu.Lock()
	m.resolveCalls = append(m.resolveCalls, link)
	gate := m.resolveGate
	info, err := m.resolveInfo, m.resolveErr
	m.mu.Unlock()

	log.Debug("extracting " + link)
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		log.Error(err.Error())
	}
	return info, err
}

func (m *MockPort) Download(ctx context.Context, req PortDownload, hook ProgressHook, log Logger) error {
	m.mu.Lock()
	m.downloadCalls = append(m.downloadCalls, req)
	script := m.script
	m.mu.Unlock()

	log.Info("engine started")
	for i, updates := range script {
		if !m.ignoreContext && ctx.Err() != nil {
			return ctx.Err()
		}
		m.mu.Lock()
		m.itemsStarted++
		m.mu.Unlock()

		for _, u := range updates {
			if err := hook(u); err != nil {
				m.mu.Lock()
				m.hookErrors = append(m.hookErrors, err)
				m.mu.Unlock()
				return err
			}
		}
		if m.itemDone != nil {
			m.itemDone <- i
			<-m.proceed
		}
	}
	return m.downloadErr
}

func (m *MockPort) GetDownloadCalls() []PortDownload {
	m.mu.Lock()
	defer m.mu.Unlock()
	calls := make([]PortDownload, len(m.downloadCalls))
	copy(calls, m.downloadCalls)
	return calls
}

func (m *MockPort) GetItemsStarted() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.itemsStarted
}

func (m *MockPort) GetResolveCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.resolveCalls...)
}

func downloading(pct string) ProgressUpdate {
	return ProgressUpdate{Status: StatusDownloading, Percent: pct}
}

func finished() ProgressUpdate {
	return ProgressUpdate{Status: StatusFinished}
}

// collectJob reads events for jobID until its terminal event arrives
func collectJob(t *testing.T, sub *Subscription, jobID string) []Event {
	t.Helper()
	var events []Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case evt, ok := <-sub.C():
			if !ok {
				t.Fatal("subscription closed before terminal event")
			}
			if evt.JobID != jobID {
				continue
			}
			events = append(events, evt)
			if evt.Type.Terminal() {
				return events
			}
		case <-timeout:
			t.Fatalf("timed out waiting for terminal event, got %d events", len(events))
		}
	}
}

func progressValues(events []Event) []int {
	var out []int
	for _, evt := range events {
		if evt.Type == EventProgress {
			out = append(out, evt.Progress.Percent)
		}
	}
	return out
}

func waitJob(t *testing.T, job *Job) JobResult {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	result, err := job.Wait(ctx)
	if err != nil {
		t.Fatalf("job did not finish: %v", err)
	}
	return result
}
