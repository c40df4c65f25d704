package progress

import (
	"sync"
	"time"

	"exam-backend/internal/shared/telemetry"
)

// Event kinds delivered to subscribers.
const (
	KindProgress = "progress"
	KindComplete = "complete"
	KindError    = "error"
)

// Event is one update published for a job.
type Event struct {
	Kind      string         `json:"kind"`
	JobID     string         `json:"jobId"`
	Percent   int            `json:"percent,omitempty"`
	Step      string         `json:"step,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// listenerBuffer is the per-listener channel depth. Publishing never blocks:
// a listener that falls further behind than this loses events.
const listenerBuffer = 16

// Broadcaster fans job events out to subscribed listeners. It is safe for
// concurrent use and is constructed once at startup and injected where
// needed.
type Broadcaster struct {
	mu   sync.RWMutex
	jobs map[string]map[string]chan Event
}

// NewBroadcaster constructs an empty Broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{jobs: make(map[string]map[string]chan Event)}
}

// Subscribe registers a listener for a job and returns its receive channel.
// Subscribing the same listener to the same job again replaces the previous
// channel.
func (b *Broadcaster) Subscribe(listenerID, jobID string) <-chan Event {
	ch := make(chan Event, listenerBuffer)

	b.mu.Lock()
	defer b.mu.Unlock()
	listeners, ok := b.jobs[jobID]
	if !ok {
		listeners = make(map[string]chan Event)
		b.jobs[jobID] = listeners
	}
	if old, ok := listeners[listenerID]; ok {
		close(old)
	}
	listeners[listenerID] = ch
	return ch
}

// Unsubscribe removes a listener from every job and drops empty listener sets.
func (b *Broadcaster) Unsubscribe(listenerID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for jobID, listeners := range b.jobs {
		if ch, ok := listeners[listenerID]; ok {
			close(ch)
			delete(listeners, listenerID)
			if len(listeners) == 0 {
				delete(b.jobs, jobID)
			}
		}
	}
}

// Publish delivers the event to every current subscriber of the job,
// best-effort. Within one job, events reach each listener in publish order;
// a full listener buffer drops the event for that listener only.
func (b *Broadcaster) Publish(jobID string, event Event) {
	event.JobID = jobID
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for listenerID, ch := range b.jobs[jobID] {
		select {
		case ch <- event:
		default:
			telemetry.Warn("progress.event_dropped", map[string]any{
				"job_id":      jobID,
				"listener_id": listenerID,
				"kind":        event.Kind,
			})
		}
	}
}

// ListenerCount returns the number of listeners subscribed to a job.
func (b *Broadcaster) ListenerCount(jobID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.jobs[jobID])
}

// Close unsubscribes every listener, ending all event streams.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for jobID, listeners := range b.jobs {
		for _, ch := range listeners {
			close(ch)
		}
		delete(b.jobs, jobID)
	}
}

// Progress builds a progress event.
func Progress(percent int, step string) Event {
	return Event{Kind: KindProgress, Percent: percent, Step: step, Timestamp: time.Now().UTC()}
}

// Complete builds a completion event.
func Complete(outputRef string, totalQuestions, diagramCount int) Event {
	return Event{
		Kind:      KindComplete,
		Percent:   100,
		Timestamp: time.Now().UTC(),
		Payload: map[string]any{
			"outputRef":      outputRef,
			"totalQuestions": totalQuestions,
			"diagramCount":   diagramCount,
		},
	}
}

// Error builds an error event.
func Error(message string, detail map[string]any) Event {
	return Event{
		Kind:      KindError,
		Timestamp: time.Now().UTC(),
		Payload: map[string]any{
			"message": message,
			"detail":  detail,
		},
	}
}
