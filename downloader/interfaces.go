package downloader

import (
	"context"
	"time"
)

// Phase represents the lifecycle phase of a job as seen by progress reporters
type Phase int

const (
	PhaseResolving Phase = iota
	PhaseDownloading
	PhaseComplete
	PhaseFailed
	PhaseCancelled
)

// String returns the string representation of the phase
func (p Phase) String() string {
	switch p {
	case PhaseResolving:
		return "resolving"
	case PhaseDownloading:
		return "downloading"
	case PhaseComplete:
		return "complete"
	case PhaseFailed:
		return "failed"
	case PhaseCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Progress is the aggregated progress of a batch download
type Progress struct {
	Percent        int `json:"percent"`
	CompletedItems int `json:"completed_items"`
	TotalItems     int `json:"total_items"`
}

// Logger receives leveled text lines from the media engine and from jobs.
// Implementations must be safe for concurrent use.
type Logger interface {
	Debug(msg string)
	Info(msg string)
	Warning(msg string)
	Error(msg string)
}

// ProgressStatus is the per-item status tag reported by the engine
type ProgressStatus string

const (
	StatusDownloading ProgressStatus = "downloading"
	StatusFinished    ProgressStatus = "finished"
)

// ProgressUpdate is one progress callback from the engine. Percent is the
// engine's raw percent-complete string (for example " 45.3%") and is only
// meaningful for StatusDownloading.
type ProgressUpdate struct {
	Status  ProgressStatus
	Percent string
}

// ProgressHook is invoked by the engine for each progress update. A non-nil
// return value asks the engine to abort the transfer.
type ProgressHook func(update ProgressUpdate) error

// RawInfo is the engine's metadata for a link. Entries is nil when the
// engine reported no entries field (a single item).
type RawInfo struct {
	Title      string    `json:"title"`
	WebpageURL string    `json:"webpage_url"`
	URL        string    `json:"url"`
	Thumbnail  string    `json:"thumbnail"`
	Entries    []RawInfo `json:"entries"`
}

// PortDownload describes one batch transfer handed to the engine.
// OutputTemplate uses {title} and {ext} placeholders.
type PortDownload struct {
	URLs           []string
	OutputTemplate string
	FormatSpec     string
	Postprocessors []PostprocessorSpec
	MergeFormat    string
}

// MediaResolutionPort is the media engine consumed by the resolver and the
// orchestrator. Both calls may be made from background goroutines.
type MediaResolutionPort interface {
	// Resolve extracts metadata for link without downloading
	Resolve(ctx context.Context, link string, log Logger) (*RawInfo, error)

	// Download transfers every URL, calling hook for each progress update,
	// and returns the first unrecoverable error
	Download(ctx context.Context, req PortDownload, hook ProgressHook, log Logger) error
}

// ProgressReporter interface defines the contract for rendering progress
type ProgressReporter interface {
	// StartTracking begins progress tracking for a job
	StartTracking(ctx context.Context, jobID string, title string) error

	// UpdateProgress reports progress for the current phase
	UpdateProgress(phase Phase, progress Progress) error

	// ReportPhaseChange reports a transition between phases
	ReportPhaseChange(oldPhase, newPhase Phase) error

	// ReportError reports an error that ended the job
	ReportError(err error) error

	// ReportComplete reports successful completion with summary information
	ReportComplete(duration time.Duration, destination string) error

	// Stop stops progress tracking and cleans up resources
	Stop()
}
