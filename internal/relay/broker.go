// Package relay fans captured-request records and rendered snippets out
// to SSE subscribers, so a panel UI can follow the session live.
package relay

import (
	"sync"
	"sync/atomic"
)

// Feed names published by the session layer.
const (
	FeedRecords = "records"
	FeedScripts = "scripts"
)

const subscriberBufSize = 128

// Event is one relay event delivered to SSE clients.
type Event struct {
	Feed    string
	Payload string
}

// Broker fans out events to all subscribed clients. Delivery is
// best-effort: a subscriber that cannot keep up loses events instead of
// blocking the capture path.
type Broker struct {
	mu          sync.RWMutex
	subscribers map[int64]chan Event
	nextID      atomic.Int64
}

func NewBroker() *Broker {
	return &Broker{subscribers: make(map[int64]chan Event)}
}

// Subscribe registers a client and returns its ID and event channel.
func (b *Broker) Subscribe() (int64, <-chan Event) {
	id := b.nextID.Add(1)
	ch := make(chan Event, subscriberBufSize)
	b.mu.Lock()
	b.subscribers[id] = ch
	b.mu.Unlock()
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Broker) Unsubscribe(id int64) {
	b.mu.Lock()
	if ch, ok := b.subscribers[id]; ok {
		delete(b.subscribers, id)
		close(ch)
	}
	b.mu.Unlock()
}

// Publish delivers an event to every subscriber without blocking.
func (b *Broker) Publish(evt Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subscribers {
		select {
		case ch <- evt:
		default:
		}
	}
}

// ClientCount returns the number of active subscribers.
func (b *Broker) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
