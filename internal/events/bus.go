// Package events provides a publish/subscribe bus for operational
// visibility. Components (agent loop, scheduler, kiosk notifier)
// publish; subscribers (WebSocket handler, MQTT publisher) consume.
// The bus is nil-safe: Publish on a nil *Bus is a no-op, so components
// do not need guard checks.
package events

import (
	"sync"
	"time"
)

// Source constants identify which component published an event.
const (
	SourceAgent     = "agent"
	SourceScheduler = "scheduler"
	SourceDevice    = "device"
	SourceRoutine   = "routine"
)

// Kind constants describe the type of event within a source.
const (
	// KindRequestStart signals the beginning of an agent turn.
	// Data: session_id, message_len.
	KindRequestStart = "request_start"
	// KindToolCall signals the start of a tool execution.
	// Data: session_id, tool.
	KindToolCall = "tool_call"
	// KindToolDone signals completion of a tool execution.
	// Data: session_id, tool, ok, duration_ms.
	KindToolDone = "tool_done"
	// KindRequestComplete signals the end of an agent turn.
	// Data: session_id, iterations, elapsed_ms.
	KindRequestComplete = "request_complete"

	// KindDueScan signals a completed due-item scan.
	// Data: due, total.
	KindDueScan = "due_scan"
	// KindReminderDelivered signals a reminder was queued for the device.
	// Data: item_id, item_type, action_id.
	KindReminderDelivered = "reminder_delivered"

	// KindActionQueued signals a device action was created.
	// Data: action_id, action_type.
	KindActionQueued = "action_queued"
	// KindDeviceResponse signals the patient answered a device prompt.
	// Data: action_id, response.
	KindDeviceResponse = "device_response"

	// KindRoutineStart signals a background routine has begun.
	// Data: routine.
	KindRoutineStart = "routine_start"
	// KindRoutineComplete signals a background routine has finished.
	// Data: routine, ok.
	KindRoutineComplete = "routine_complete"
)

// Event is a single operational event published by a component.
type Event struct {
	Timestamp time.Time      `json:"ts"`
	Source    string         `json:"source"`
	Kind      string         `json:"kind"`
	Data      map[string]any `json:"data,omitempty"`
}

// Bus is a non-blocking broadcast bus. Subscribers receive events on
// buffered channels; a slow subscriber misses events instead of
// blocking publishers.
type Bus struct {
	mu   sync.RWMutex
	subs map[chan Event]struct{}
	// recvToSend maps the receive-only channel handed to subscribers
	// back to the bidirectional channel stored in subs, so Unsubscribe
	// can accept the caller's <-chan Event view.
	recvToSend map[<-chan Event]chan Event
}

// New creates an event bus ready for use.
func New() *Bus {
	return &Bus{
		subs:       make(map[chan Event]struct{}),
		recvToSend: make(map[<-chan Event]chan Event),
	}
}

// Publish sends an event to all subscribers without blocking: a full
// subscriber channel drops the event for that subscriber. Safe on a
// nil receiver.
func (b *Bus) Publish(e Event) {
	if b == nil {
		return
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// Subscribe returns a channel receiving published events. Callers must
// eventually Unsubscribe. bufSize controls the channel buffer; 64 is a
// reasonable default for WebSocket consumers.
func (b *Bus) Subscribe(bufSize int) <-chan Event {
	ch := make(chan Event, bufSize)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[ch] = struct{}{}
	b.recvToSend[ch] = ch
	return ch
}

// Unsubscribe removes a subscription and closes its channel. No-op for
// a channel that was already unsubscribed.
func (b *Bus) Unsubscribe(ch <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	sendCh, ok := b.recvToSend[ch]
	if !ok {
		return
	}
	delete(b.subs, sendCh)
	delete(b.recvToSend, ch)
	close(sendCh)
}

// SubscriberCount returns the number of active subscribers.
func (b *Bus) SubscriberCount() int {
	if b == nil {
		return 0
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
