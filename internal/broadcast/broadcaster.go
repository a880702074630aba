package broadcast

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/jmcale/go-incident-dispatch/internal/models"
)

type EventType string

const (
	EventAssigned  EventType = "assigned"
	EventResolved  EventType = "resolved"
	EventCancelled EventType = "cancelled"
)

// Event describes one assignment lifecycle change for live consumers.
type Event struct {
	Type       EventType         `json:"type"`
	Assignment models.Assignment `json:"assignment"`
	Severity   models.Severity   `json:"severity"`
	At         time.Time         `json:"at"`
}

// Broadcaster fans assignment events out to subscribers. Slow subscribers
// are skipped rather than allowed to stall dispatch.
type Broadcaster struct {
	subscribers map[uint64]chan Event
	nextID      atomic.Uint64
	mu          sync.RWMutex
}

func New() *Broadcaster {
	return &Broadcaster{
		subscribers: make(map[uint64]chan Event),
	}
}

func (b *Broadcaster) Subscribe() (uint64, <-chan Event) {
	id := b.nextID.Add(1)
	ch := make(chan Event, 64)

	b.mu.Lock()
	b.subscribers[id] = ch
	b.mu.Unlock()

	return id, ch
}

func (b *Broadcaster) Unsubscribe(id uint64) {
	b.mu.Lock()
	if ch, ok := b.subscribers[id]; ok {
		close(ch)
		delete(b.subscribers, id)
	}
	b.mu.Unlock()
}

func (b *Broadcaster) Publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subscribers {
		select {
		case ch <- ev:
		default:
			// Skip slow subscribers
		}
	}
}

func (b *Broadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Close closes all subscriber channels, causing consumers to exit gracefully.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subscribers {
		close(ch)
		delete(b.subscribers, id)
	}
}
