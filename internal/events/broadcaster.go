// Package events broadcasts element change notifications to SSE subscribers.
package events

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/shelfd/shelfd/internal/logging"
	"github.com/shelfd/shelfd/internal/metrics"
)

// EventType classifies a change notification.
type EventType string

const (
	EventCreate EventType = "create"
	EventModify EventType = "modify"
	EventRename EventType = "rename"
	EventDelete EventType = "delete"
)

// Event is one element change notification.
type Event struct {
	Type       EventType `json:"type"`
	Collection string    `json:"collection"`
	Token      string    `json:"token"`
	Size       int64     `json:"size,omitempty"`
	Timestamp  int64     `json:"timestamp"`
}

// Broadcaster fans events out to subscribers. Subscriber channels are
// buffered; events to a full channel are dropped rather than blocking the
// publisher.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[chan Event]struct{}
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subscribers: make(map[chan Event]struct{}),
	}
}

// Subscribe registers a new subscriber and returns its channel.
func (b *Broadcaster) Subscribe() chan Event {
	ch := make(chan Event, 64)
	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	count := len(b.subscribers)
	b.mu.Unlock()
	metrics.SetSSEConnectionsActive(int64(count))
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Broadcaster) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	if _, ok := b.subscribers[ch]; ok {
		delete(b.subscribers, ch)
		close(ch)
	}
	count := len(b.subscribers)
	b.mu.Unlock()
	metrics.SetSSEConnectionsActive(int64(count))
}

// Publish delivers an event to all subscribers. Slow subscribers whose
// buffers are full miss the event.
func (b *Broadcaster) Publish(event Event) {
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().Unix()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subscribers {
		select {
		case ch <- event:
		default:
			logging.Debug("dropping event for slow subscriber",
				zap.String("type", string(event.Type)),
				zap.String("collection", event.Collection))
		}
	}
	metrics.RecordSSEEvent(string(event.Type))
}

// Count returns the number of active subscribers.
func (b *Broadcaster) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// MarshalEvent serializes an event as an SSE message body.
func MarshalEvent(event Event) ([]byte, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", event.Type, data)), nil
}
