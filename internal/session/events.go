package session

import (
	crand "crypto/rand"
	"encoding/hex"
	"sync"

	"github.com/banshee-data/xrstate/internal/handle"
	"github.com/banshee-data/xrstate/internal/monitoring"
)

// DefaultEventQueueCapacity bounds the instance event queue.
const DefaultEventQueueCapacity = 256

// subscriberBuffer is the per-subscriber channel depth; slow subscribers
// miss events rather than stall the session that produced them.
const subscriberBuffer = 64

// EventType identifies an Event payload.
type EventType int

const (
	EventSessionStateChanged EventType = iota + 1
	EventDisplayRefreshRateChanged
)

func (t EventType) String() string {
	switch t {
	case EventSessionStateChanged:
		return "session_state_changed"
	case EventDisplayRefreshRateChanged:
		return "display_refresh_rate_changed"
	default:
		return "unknown"
	}
}

// Event is one entry of the instance event queue.
type Event struct {
	Type    EventType
	Session handle.ID
	// Time is external time.
	Time int64

	// EventSessionStateChanged
	State  State
	Reason string

	// EventDisplayRefreshRateChanged
	FromRate float32
	ToRate   float32
}

// eventQueue is a bounded FIFO plus a subscriber fan-out.
type eventQueue struct {
	mu       sync.Mutex
	buf      []Event
	capacity int
	dropped  int
	subs     map[string]chan Event
	closed   bool
}

func newEventQueue(capacity int) *eventQueue {
	if capacity <= 0 {
		capacity = DefaultEventQueueCapacity
	}
	return &eventQueue{capacity: capacity, subs: make(map[string]chan Event)}
}

func (q *eventQueue) push(e Event) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	if len(q.buf) == q.capacity {
		q.dropped++
		monitoring.Logf("[events] queue full, dropping %s for %s", q.buf[0].Type, q.buf[0].Session)
		q.buf = q.buf[1:]
	}
	q.buf = append(q.buf, e)
	for _, ch := range q.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

func (q *eventQueue) poll() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.buf) == 0 {
		return Event{}, false
	}
	e := q.buf[0]
	q.buf = q.buf[1:]
	return e, true
}

// removeSession drops queued events that name a destroyed session.
func (q *eventQueue) removeSession(id handle.ID) {
	q.mu.Lock()
	defer q.mu.Unlock()
	kept := q.buf[:0]
	for _, e := range q.buf {
		if e.Session != id {
			kept = append(kept, e)
		}
	}
	q.buf = kept
}

func (q *eventQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.buf)
}

func (q *eventQueue) subscribe() (string, <-chan Event) {
	b := make([]byte, 8)
	_, _ = crand.Read(b)
	id := hex.EncodeToString(b)
	ch := make(chan Event, subscriberBuffer)

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		close(ch)
		return id, ch
	}
	q.subs[id] = ch
	return id, ch
}

func (q *eventQueue) unsubscribe(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if ch, ok := q.subs[id]; ok {
		close(ch)
		delete(q.subs, id)
	}
}

func (q *eventQueue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	for id, ch := range q.subs {
		close(ch)
		delete(q.subs, id)
	}
}
