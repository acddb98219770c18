// file: internal/events/events.go
// version: 2.0.0
// guid: 9e8d7f6a-5c4b-3a21-0f9e-8d7c6b5a4392

package events

import (
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Type names a library change notification.
type Type string

const (
	TypeLibraryUpdated   Type = "library.updated"
	TypeFileAdded        Type = "library.file.added"
	TypeFileRemoved      Type = "library.file.removed"
	TypeMetadataUpdated  Type = "library.metadata.updated"
	TypeScanStarted      Type = "scan.started"
	TypeScanCompleted    Type = "scan.completed"
	TypeMatchProgress    Type = "match.progress"
	TypeWatcherTriggered Type = "watcher.triggered"
)

// Event is a single change notification.
type Event struct {
	ID        string                 `json:"id"`
	Type      Type                   `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// Hub fans library events out to subscribers. Publishing never blocks: a
// subscriber that stops draining its channel loses events rather than
// stalling the library.
type Hub struct {
	mu      sync.RWMutex
	subs    map[string]chan Event
	entropy *ulid.MonotonicEntropy
	entMu   sync.Mutex
}

// NewHub creates an event hub.
func NewHub() *Hub {
	return &Hub{
		subs:    make(map[string]chan Event),
		entropy: ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
	}
}

func (h *Hub) newID() string {
	h.entMu.Lock()
	defer h.entMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), h.entropy).String()
}

// Subscribe registers a listener. The returned cancel func removes the
// subscription and closes the channel; it is safe to call more than once.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 64)
	id := h.newID()

	h.mu.Lock()
	h.subs[id] = ch
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Publish delivers an event to every subscriber, assigning it an ID and
// timestamp. Slow subscribers are skipped.
func (h *Hub) Publish(t Type, data map[string]interface{}) {
	ev := Event{
		ID:        h.newID(),
		Type:      t,
		Timestamp: time.Now(),
		Data:      data,
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, ch := range h.subs {
		select {
		case ch <- ev:
		default:
			log.Printf("[WARN] events: subscriber %s is not draining, dropped %s", id, t)
		}
	}
}

// SubscriberCount returns the number of active subscriptions.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
