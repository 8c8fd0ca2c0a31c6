package downloader

import (
	"sync"
	"time"
)

// JobKind distinguishes the two background job families
type JobKind string

const (
	JobResolve  JobKind = "resolve"
	JobDownload JobKind = "download"
)

// EventType tags the payload carried by an Event
type EventType string

const (
	EventLog       EventType = "log"
	EventProgress  EventType = "progress"
	EventResolved  EventType = "resolved"
	EventCompleted EventType = "completed"
	EventFailed    EventType = "failed"
	EventCancelled EventType = "cancelled"
)

// Terminal reports whether the event ends its job
func (t EventType) Terminal() bool {
	switch t {
	case EventResolved, EventCompleted, EventFailed, EventCancelled:
		return true
	}
	return false
}

// LogLevel is the severity of a log event
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarning
	LevelError
)

func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

// LogEvent is one leveled line produced by a worker
type LogEvent struct {
	Level   LogLevel `json:"level"`
	Message string   `json:"message"`
}

// Event is the unit delivered through an EventSink. Only the fields that
// belong to Type are populated.
type Event struct {
	JobID     string    `json:"job_id"`
	Kind      JobKind   `json:"kind"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"ts"`

	Log      *LogEvent       `json:"log,omitempty"`
	Progress *Progress       `json:"progress,omitempty"`
	Entries  MediaCollection `json:"entries,omitempty"`
	Err      error           `json:"-"`

	// Subject is the link for resolve jobs and the destination folder for
	// download jobs
	Subject string    `json:"subject,omitempty"`
	URLs    []string  `json:"urls,omitempty"`
	Started time.Time `json:"started,omitempty"`
}

// EventSink accepts events from any goroutine without blocking on consumers
type EventSink interface {
	Emit(evt Event)
}

// Hub fans events out to every attached Subscription. With no subscribers
// events are discarded.
type Hub struct {
	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	closed bool
}

// NewHub constructs an empty hub
func NewHub() *Hub {
	return &Hub{subs: make(map[*Subscription]struct{})}
}

// Emit enqueues evt on every subscription. It never blocks on delivery.
func (h *Hub) Emit(evt Event) {
	if h == nil {
		return
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	for sub := range h.subs {
		sub.push(evt)
	}
}

// Subscribe attaches a new consumer. Events emitted after Subscribe returns
// are delivered on the subscription's channel in emission order.
func (h *Hub) Subscribe() *Subscription {
	sub := newSubscription(h)
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		sub.shutdown()
		return sub
	}
	h.subs[sub] = struct{}{}
	h.mu.Unlock()
	return sub
}

// Close detaches every subscription. Queued events are still delivered
// before each subscription's channel closes.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	subs := h.subs
	h.subs = make(map[*Subscription]struct{})
	h.mu.Unlock()

	for sub := range subs {
		sub.shutdown()
	}
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	delete(h.subs, sub)
	h.mu.Unlock()
}

// Subscription is one consumer attached to a Hub. Its queue is unbounded so
// a slow reader never stalls producers and never loses events.
type Subscription struct {
	hub *Hub
	out chan Event

	mu       sync.Mutex
	queue    []Event
	wake     chan struct{}
	done     chan struct{}
	stopped  bool
	stopOnce sync.Once
	doneOnce sync.Once
}

func newSubscription(h *Hub) *Subscription {
	sub := &Subscription{
		hub:  h,
		out:  make(chan Event),
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go sub.pump()
	return sub
}

// C returns the delivery channel. After Hub.Close it is closed once every
// queued event has been received; after Close it is closed promptly.
func (s *Subscription) C() <-chan Event {
	return s.out
}

// Close detaches the subscription from its hub. Events still queued are
// discarded and C is closed.
func (s *Subscription) Close() {
	if s.hub != nil {
		s.hub.remove(s)
	}
	s.shutdown()
	s.doneOnce.Do(func() { close(s.done) })
}

func (s *Subscription) push(evt Event) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.queue = append(s.queue, evt)
	s.mu.Unlock()
	s.signal()
}

func (s *Subscription) shutdown() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.stopped = true
		s.mu.Unlock()
		s.signal()
	})
}

func (s *Subscription) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Subscription) pump() {
	defer close(s.out)
	for {
		s.mu.Lock()
		batch := s.queue
		s.queue = nil
		stopped := s.stopped
		s.mu.Unlock()

		for _, evt := range batch {
			select {
			case s.out <- evt:
			case <-s.done:
				return
			}
		}
		if len(batch) > 0 {
			continue
		}
		if stopped {
			return
		}
		select {
		case <-s.wake:
		case <-s.done:
			return
		}
	}
}
