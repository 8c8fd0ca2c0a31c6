package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
)

// TerminalProgressReporter implements ProgressReporter with a terminal
// progress bar on a 0-100 scale
type TerminalProgressReporter struct {
	out      io.Writer
	colorful bool

	mu        sync.RWMutex
	bar       *progressbar.ProgressBar
	jobID     string
	title     string
	isActive  bool
	startTime time.Time
}

// NewTerminalProgressReporter creates a reporter writing to out
func NewTerminalProgressReporter(out io.Writer, colorful bool) *TerminalProgressReporter {
	return &TerminalProgressReporter{out: out, colorful: colorful}
}

// StartTracking begins progress tracking for a job
func (r *TerminalProgressReporter) StartTracking(ctx context.Context, jobID string, title string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.isActive {
		return NewJobError(ErrorInternal, "progress tracking is already active")
	}

	r.jobID = jobID
	r.title = title
	r.isActive = true
	r.startTime = time.Now()
	r.bar = progressbar.NewOptions(100,
		progressbar.OptionSetWriter(r.out),
		progressbar.OptionSetDescription(r.describe(PhaseDownloading)),
		progressbar.OptionSetWidth(30),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionEnableColorCodes(r.colorful),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
	return nil
}

// UpdateProgress moves the bar to the aggregate percentage
func (r *TerminalProgressReporter) UpdateProgress(phase Phase, progress Progress) error {
	r.mu.RLock()
	bar := r.bar
	active := r.isActive
	r.mu.RUnlock()
	if !active || bar == nil {
		return nil
	}
	if progress.TotalItems > 0 {
		bar.Describe(fmt.Sprintf("%s (%d/%d)", r.describe(phase), progress.CompletedItems, progress.TotalItems))
	}
	return bar.Set(progress.Percent)
}

// ReportPhaseChange updates the bar description
func (r *TerminalProgressReporter) ReportPhaseChange(oldPhase, newPhase Phase) error {
	r.mu.RLock()
	bar := r.bar
	active := r.isActive
	r.mu.RUnlock()
	if !active || bar == nil {
		return nil
	}
	bar.Describe(r.describe(newPhase))
	return nil
}

// ReportError abandons the bar and prints the failure
func (r *TerminalProgressReporter) ReportError(err error) error {
	r.mu.RLock()
	bar := r.bar
	active := r.isActive
	title := r.title
	startTime := r.startTime
	r.mu.RUnlock()
	if !active {
		return nil
	}

	errorMsg := "an error occurred"
	var je *JobError
	if errors.As(err, &je) {
		errorMsg = je.Message
	} else if err != nil {
		errorMsg = err.Error()
	}
	if bar != nil {
		_ = bar.Exit()
	}
	_, werr := fmt.Fprintf(r.out, "\n%s: %s (after %s)\n", title, errorMsg, time.Since(startTime).Round(time.Second))
	return werr
}

// ReportComplete fills the bar and prints a summary
func (r *TerminalProgressReporter) ReportComplete(duration time.Duration, destination string) error {
	r.mu.RLock()
	bar := r.bar
	active := r.isActive
	title := r.title
	r.mu.RUnlock()
	if !active {
		return nil
	}
	if bar != nil {
		_ = bar.Finish()
	}
	_, err := fmt.Fprintf(r.out, "\n%s: done in %s -> %s\n", title, duration.Round(time.Second), destination)
	return err
}

// Stop stops progress tracking and cleans up resources
func (r *TerminalProgressReporter) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.isActive = false
	r.bar = nil
	r.jobID = ""
	r.title = ""
}

// IsActive returns whether the reporter is currently tracking progress
func (r *TerminalProgressReporter) IsActive() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.isActive
}

func (r *TerminalProgressReporter) describe(phase Phase) string {
	switch phase {
	case PhaseResolving:
		return "Resolving"
	case PhaseDownloading:
		return "Downloading"
	case PhaseComplete:
		return "Done"
	case PhaseFailed:
		return "Failed"
	case PhaseCancelled:
		return "Cancelled"
	default:
		return "Working"
	}
}
