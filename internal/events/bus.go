// Package events provides the in-process event bus for booth observability.
// Producers publish structured events; consumers (logging, SSE clients)
// subscribe without ever being able to block a producer.
package events

import (
	"encoding/json"
	"sync"
	"time"
)

// Type identifies the kind of event.
type Type string

const (
	// TypeCameraState is emitted on every camera supervisor state transition.
	TypeCameraState Type = "camera.state"
	// TypeCaptureStarted is emitted when a trigger is accepted.
	TypeCaptureStarted Type = "capture.started"
	// TypeCaptureCompleted is emitted when a capture produces a saved photo.
	TypeCaptureCompleted Type = "capture.completed"
	// TypeCaptureHeld is emitted when a dual-photo capture stores its first
	// shot and waits for the second trigger.
	TypeCaptureHeld Type = "capture.held"
	// TypeCaptureFailed is emitted when a capture ends in a typed failure.
	TypeCaptureFailed Type = "capture.failed"
	// TypePhotoSaved is emitted by the finisher after a durable write.
	TypePhotoSaved Type = "photo.saved"
	// TypeTemplateSelected is emitted when the active template changes.
	TypeTemplateSelected Type = "template.selected"
	// TypeRetentionPruned is emitted after a retention sweep removes photos.
	TypeRetentionPruned Type = "retention.pruned"
)

// Event is one structured booth event.
type Event struct {
	Type Type           `json:"type"`
	Time time.Time      `json:"time"`
	Data map[string]any `json:"data,omitempty"`
}

// JSON renders the event as a JSON payload for SSE delivery.
func (e Event) JSON() []byte {
	data, err := json.Marshal(e)
	if err != nil {
		return []byte("{}")
	}
	return data
}

// subscriberBuffer is the per-subscriber channel depth. A subscriber that
// falls further behind than this loses events rather than stalling producers.
const subscriberBuffer = 64

// Bus fans events out to subscribers. Publishing never blocks.
type Bus struct {
	mu   sync.RWMutex
	subs map[chan Event]struct{}
}

// NewBus creates a new event bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[chan Event]struct{})}
}

// Subscribe returns a channel that receives published events and a cleanup
// function. The caller must call the cleanup when done (e.g. on client
// disconnect); afterwards the channel is closed.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	unsub := func() {
		b.mu.Lock()
		if _, ok := b.subs[ch]; ok {
			delete(b.subs, ch)
			close(ch)
		}
		b.mu.Unlock()
	}
	return ch, unsub
}

// Publish delivers an event to every subscriber. Subscribers with a full
// buffer are skipped.
func (b *Bus) Publish(typ Type, data map[string]any) {
	evt := Event{Type: typ, Time: time.Now(), Data: data}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- evt:
		default:
			// subscriber buffer full, drop
		}
	}
}

// SubscriberCount returns the number of active subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
