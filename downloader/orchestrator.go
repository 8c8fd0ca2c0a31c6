package downloader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// OutputTemplateName is the per-item file name pattern inside the
// destination folder
const OutputTemplateName = "{title}.{ext}"

// DownloadOrchestrator runs one batch download at a time and reports a
// single monotonic aggregate percentage for it
type DownloadOrchestrator struct {
	port   MediaResolutionPort
	sink   EventSink
	logger *zap.Logger
	slot   jobSlot

	mu      sync.RWMutex
	current *Job
}

// NewDownloadOrchestrator creates an orchestrator that reports through sink
func NewDownloadOrchestrator(port MediaResolutionPort, sink EventSink, logger *zap.Logger) *DownloadOrchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DownloadOrchestrator{
		port:   port,
		sink:   sink,
		logger: logger.Named("orchestrator"),
	}
}

// Busy reports whether a download job is in flight
func (o *DownloadOrchestrator) Busy() bool {
	return o.slot.active()
}

// Current returns the in-flight job, or nil
func (o *DownloadOrchestrator) Current() *Job {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.current
}

// Cancel cancels the in-flight job
func (o *DownloadOrchestrator) Cancel() error {
	job := o.Current()
	if job == nil {
		return NewJobError(ErrorValidation, "no active download to cancel")
	}
	job.Cancel()
	return nil
}

// Submit validates req, snapshots it and starts the batch in the
// background. Validation failures start nothing and emit no events.
func (o *DownloadOrchestrator) Submit(ctx context.Context, req DownloadRequest) (*Job, error) {
	if len(req.URLs) == 0 {
		return nil, validationError("no items selected")
	}
	for i, u := range req.URLs {
		if strings.TrimSpace(u) == "" {
			return nil, validationError(fmt.Sprintf("selected item %d has no URL", i))
		}
	}
	if strings.TrimSpace(req.DestinationFolder) == "" {
		return nil, validationError("destination folder must not be empty")
	}
	if !o.slot.acquire() {
		o.logger.Debug("rejected overlapping download", zap.Int("items", len(req.URLs)))
		return nil, busyError(JobDownload)
	}

	req = req.snapshot()
	job, jobCtx := newJob(ctx, JobDownload)

	o.mu.Lock()
	o.current = job
	o.mu.Unlock()

	o.logger.Info("download job started",
		zap.String("job_id", job.ID),
		zap.Int("items", len(req.URLs)),
		zap.String("destination", req.DestinationFolder),
		zap.Stringer("platform", req.Platform),
		zap.Stringer("media_type", req.MediaType))
	go o.run(jobCtx, job, req)
	return job, nil
}

func (o *DownloadOrchestrator) run(ctx context.Context, job *Job, req DownloadRequest) {
	log := newJobLogger(o.sink, job.ID, JobDownload)
	state := newProgressState(len(req.URLs))
	var stateMu sync.Mutex

	emitProgress := func(pct int) {
		p := state.snapshot()
		p.Percent = pct
		o.sink.Emit(Event{JobID: job.ID, Kind: JobDownload, Type: EventProgress, Progress: &p})
	}

	hook := func(update ProgressUpdate) error {
		stateMu.Lock()
		defer stateMu.Unlock()
		if ctx.Err() != nil {
			return ErrCancelled
		}
		if pct, ok := state.apply(update); ok {
			emitProgress(pct)
		}
		if update.Status == StatusFinished && ctx.Err() != nil {
			return ErrCancelled
		}
		return nil
	}

	result := guard(func() JobResult {
		plan := BuildFormatPlan(req.Platform, req.MediaType)
		log.Info(fmt.Sprintf("Starting download of %d item(s) to %s (format %s)", len(req.URLs), req.DestinationFolder, plan.FormatSpec))

		if err := os.MkdirAll(req.DestinationFolder, 0o755); err != nil {
			return JobResult{
				State: JobFailed,
				Err:   NewJobErrorWithCause(ErrorDownload, "failed to create destination folder", err).WithContext("destination", req.DestinationFolder),
			}
		}

		err := o.port.Download(ctx, PortDownload{
			URLs:           req.URLs,
			OutputTemplate: filepath.Join(req.DestinationFolder, OutputTemplateName),
			FormatSpec:     plan.FormatSpec,
			Postprocessors: plan.Postprocessors,
			MergeFormat:    plan.MergeFormat,
		}, hook, log)

		stateMu.Lock()
		defer stateMu.Unlock()
		if err != nil {
			if timedOut(ctx) {
				log.Error(fmt.Sprintf("Download timed out after %d of %d item(s)", state.CompletedItems, state.TotalItems))
				return JobResult{
					State:    JobFailed,
					Err:      NewJobErrorWithCause(ErrorDownload, "download timed out", ctx.Err()).WithContext("completed_items", state.CompletedItems),
					Progress: state.snapshot(),
				}
			}
			if ctx.Err() != nil || errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled) {
				log.Warning(fmt.Sprintf("Download cancelled after %d of %d item(s)", state.CompletedItems, state.TotalItems))
				return JobResult{
					State:    JobCancelled,
					Err:      NewJobErrorWithCause(ErrorCancelled, "download cancelled", err),
					Progress: state.snapshot(),
				}
			}
			return JobResult{
				State:    JobFailed,
				Err:      NewJobErrorWithCause(ErrorDownload, "batch download failed", err).WithContext("completed_items", state.CompletedItems),
				Progress: state.snapshot(),
			}
		}
		if pct, ok := state.offer(100); ok {
			emitProgress(pct)
		}
		log.Info("Download complete")
		return JobResult{State: JobSucceeded, Progress: state.snapshot()}
	})

	o.terminate(job, req, result)
}

// terminate emits the single terminal event, frees the slot and resolves
// the handle, in that order
func (o *DownloadOrchestrator) terminate(job *Job, req DownloadRequest, result JobResult) {
	progress := result.Progress
	evt := Event{
		JobID:    job.ID,
		Kind:     JobDownload,
		Subject:  req.DestinationFolder,
		URLs:     req.URLs,
		Started:  job.StartedAt,
		Progress: &progress,
		Err:      result.Err,
	}
	switch result.State {
	case JobSucceeded:
		evt.Type = EventCompleted
	case JobCancelled:
		evt.Type = EventCancelled
	default:
		evt.Type = EventFailed
	}
	o.sink.Emit(evt)

	o.mu.Lock()
	if o.current == job {
		o.current = nil
	}
	o.mu.Unlock()
	o.slot.release()

	o.logger.Info("download job finished",
		zap.String("job_id", job.ID),
		zap.Stringer("state", result.State),
		zap.Int("completed_items", progress.CompletedItems),
		zap.Int("total_items", progress.TotalItems),
		zap.Duration("elapsed", time.Since(job.StartedAt)),
		zap.Error(result.Err))
	job.finish(result)
}
