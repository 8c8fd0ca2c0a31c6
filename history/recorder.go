package history

import (
	"context"
	"time"

	"mediagrab/downloader"

	"go.uber.org/zap"
)

const recordTimeout = 5 * time.Second

// Recorder writes a JobRecord for every terminal event seen on a hub.
// Storage errors are logged and never reach the jobs.
type Recorder struct {
	store  *Store
	logger *zap.Logger
	sub    *downloader.Subscription
	done   chan struct{}
}

// NewRecorder subscribes to hub and starts recording in the background
func NewRecorder(store *Store, hub *downloader.Hub, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Recorder{
		store:  store,
		logger: logger.Named("history"),
		sub:    hub.Subscribe(),
		done:   make(chan struct{}),
	}
	go r.loop()
	return r
}

func (r *Recorder) loop() {
	defer close(r.done)
	for evt := range r.sub.C() {
		if !evt.Type.Terminal() {
			continue
		}
		rec, err := RecordFromEvent(evt)
		if err != nil {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		if err := r.store.Record(ctx, &rec); err != nil {
			r.logger.Warn("failed to record job history", zap.String("job_id", evt.JobID), zap.Error(err))
		} else {
			r.logger.Debug("recorded job", zap.String("job_id", evt.JobID), zap.String("outcome", rec.Outcome))
		}
		cancel()
	}
}

// Wait blocks until the hub is closed and every queued event is recorded
func (r *Recorder) Wait() {
	<-r.done
}

// Close detaches from the hub without draining queued events
func (r *Recorder) Close() {
	r.sub.Close()
	<-r.done
}
