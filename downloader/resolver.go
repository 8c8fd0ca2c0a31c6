package downloader

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// MetadataResolver runs metadata resolution jobs in the background. At most
// one job is in flight; overlapping requests are rejected with ErrBusy.
type MetadataResolver struct {
	port   MediaResolutionPort
	sink   EventSink
	logger *zap.Logger
	slot   jobSlot
}

// NewMetadataResolver creates a resolver that reports through sink
func NewMetadataResolver(port MediaResolutionPort, sink EventSink, logger *zap.Logger) *MetadataResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MetadataResolver{
		port:   port,
		sink:   sink,
		logger: logger.Named("resolver"),
	}
}

// Busy reports whether a resolution job is in flight
func (r *MetadataResolver) Busy() bool {
	return r.slot.active()
}

// Resolve starts a resolution job for link and returns its handle
// immediately. The collection is delivered as a single resolved event and
// through the handle's result.
func (r *MetadataResolver) Resolve(ctx context.Context, link string) (*Job, error) {
	link = strings.TrimSpace(link)
	if link == "" {
		return nil, validationError("link must not be empty")
	}
	if !r.slot.acquire() {
		r.logger.Debug("rejected overlapping resolve", zap.String("link", link))
		return nil, busyError(JobResolve)
	}

	job, jobCtx := newJob(ctx, JobResolve)
	r.logger.Info("resolve job started", zap.String("job_id", job.ID), zap.String("link", link))
	go r.run(jobCtx, job, link)
	return job, nil
}

func (r *MetadataResolver) run(ctx context.Context, job *Job, link string) {
	log := newJobLogger(r.sink, job.ID, JobResolve)
	result := guard(func() JobResult {
		log.Info(fmt.Sprintf("Fetching metadata for %s", link))
		info, err := r.port.Resolve(ctx, link, log)
		if err != nil {
			if timedOut(ctx) {
				return JobResult{
					State: JobFailed,
					Err:   NewJobErrorWithCause(ErrorResolution, "resolution timed out", ctx.Err()).WithContext("link", link),
				}
			}
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return JobResult{State: JobCancelled, Err: NewJobErrorWithCause(ErrorCancelled, "resolution cancelled", err)}
			}
			return JobResult{
				State: JobFailed,
				Err:   NewJobErrorWithCause(ErrorResolution, "failed to resolve link", err).WithContext("link", link),
			}
		}
		if info == nil {
			return JobResult{State: JobFailed, Err: NewJobError(ErrorResolution, "engine returned no metadata").WithContext("link", link)}
		}
		entries := Normalize(info)
		log.Info(fmt.Sprintf("Found %d item(s)", len(entries)))
		return JobResult{State: JobSucceeded, Entries: entries}
	})

	evt := Event{JobID: job.ID, Kind: JobResolve, Subject: link, Started: job.StartedAt, Err: result.Err}
	switch result.State {
	case JobSucceeded:
		evt.Type = EventResolved
		evt.Entries = result.Entries
	case JobCancelled:
		evt.Type = EventCancelled
	default:
		evt.Type = EventFailed
	}
	r.sink.Emit(evt)
	r.slot.release()

	r.logger.Info("resolve job finished",
		zap.String("job_id", job.ID),
		zap.Stringer("state", result.State),
		zap.Int("entries", len(result.Entries)),
		zap.Duration("elapsed", time.Since(job.StartedAt)),
		zap.Error(result.Err))
	job.finish(result)
}

// Normalize flattens engine output into an ordered collection. A result
// without an entries field becomes a one-element collection; entries are
// otherwise passed through in engine order.
func Normalize(info *RawInfo) MediaCollection {
	if info == nil {
		return MediaCollection{}
	}
	if info.Entries == nil {
		return MediaCollection{toEntry(info)}
	}
	out := make(MediaCollection, 0, len(info.Entries))
	for i := range info.Entries {
		out = append(out, toEntry(&info.Entries[i]))
	}
	return out
}

func toEntry(info *RawInfo) MediaEntry {
	title := info.Title
	if title == "" {
		title = UntitledPlaceholder
	}
	canonical := info.WebpageURL
	if canonical == "" {
		canonical = info.URL
	}
	return MediaEntry{
		Title:        title,
		CanonicalURL: canonical,
		ThumbnailURL: info.Thumbnail,
	}
}
