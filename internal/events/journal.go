package events

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultBufferSize is the number of events kept in memory.
const DefaultBufferSize = 256

// Store persists journal entries.
type Store interface {
	Append(ts time.Time, level, event, msg string, fields map[string]interface{}) error
}

type Event struct {
	Timestamp string                 `json:"ts"`
	Level     string                 `json:"level"`
	Name      string                 `json:"event"`
	Message   string                 `json:"msg,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// Subscriber represents a channel that receives events.
type Subscriber chan Event

// Journal is the structured event log of an engine: it keeps recent events in
// memory, appends them to an optional store and fans them out to subscribers.
type Journal struct {
	buffer *Ring[Event]
	total  atomic.Int64

	storeMu          sync.RWMutex
	store            Store
	storeErrorLogged bool

	subMu       sync.RWMutex
	subscribers map[Subscriber]struct{}
}

// NewJournal creates a journal keeping size events in memory.
func NewJournal(size int) *Journal {
	if size <= 0 {
		size = DefaultBufferSize
	}
	return &Journal{
		buffer:      NewRing[Event](size),
		subscribers: make(map[Subscriber]struct{}),
	}
}

// SetStore sets the store used for persistence. nil disables persistence.
func (j *Journal) SetStore(s Store) {
	j.storeMu.Lock()
	j.store = s
	j.storeErrorLogged = false
	j.storeMu.Unlock()
}

// Emit records an event. Unknown event names are rejected.
// A nil journal accepts and discards everything.
func (j *Journal) Emit(level, name, msg string, fields map[string]interface{}) ([]byte, error) {
	if err := Validate(name); err != nil {
		return nil, err
	}

	ts := time.Now().UTC()
	e := Event{
		Timestamp: ts.Format(time.RFC3339Nano),
		Level:     level,
		Name:      name,
		Message:   msg,
		Fields:    fields,
	}

	if j == nil {
		return json.Marshal(e)
	}

	j.buffer.Add(e)
	j.total.Add(1)

	j.storeMu.RLock()
	store := j.store
	j.storeMu.RUnlock()

	if store != nil {
		if err := store.Append(ts, level, name, msg, fields); err != nil {
			j.reportStoreError(err)
		}
	}

	j.broadcast(e)

	b, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}
	return b, nil
}

// reportStoreError writes a single system.error straight into the buffer.
// It does not go through Emit so a failing store cannot recurse.
func (j *Journal) reportStoreError(err error) {
	j.storeMu.Lock()
	if j.storeErrorLogged {
		j.storeMu.Unlock()
		return
	}
	j.storeErrorLogged = true
	j.storeMu.Unlock()

	j.buffer.Add(Event{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Level:     "error",
		Name:      "system.error",
		Message:   "event store append failed",
		Fields: map[string]interface{}{
			"error": err.Error(),
		},
	})
}

// Snapshot returns the events currently in memory, oldest first.
func (j *Journal) Snapshot() []Event {
	return j.buffer.Last(0)
}

// RecentEvents returns the last n events from the ring buffer.
// If n is zero or greater than available events, returns all available.
func (j *Journal) RecentEvents(n int) []Event {
	return j.buffer.Last(n)
}

// TotalCount returns the number of events emitted since creation.
func (j *Journal) TotalCount() int64 {
	return j.total.Load()
}

// Clear resets the event buffer. Used for testing.
func (j *Journal) Clear() {
	j.buffer.Reset()
}

// Subscribe adds a new subscriber and returns its channel.
// The channel is buffered so a slow reader does not block Emit.
func (j *Journal) Subscribe() Subscriber {
	ch := make(Subscriber, 64)
	j.subMu.Lock()
	j.subscribers[ch] = struct{}{}
	j.subMu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (j *Journal) Unsubscribe(sub Subscriber) {
	j.subMu.Lock()
	defer j.subMu.Unlock()
	if _, ok := j.subscribers[sub]; !ok {
		return
	}
	delete(j.subscribers, sub)
	close(sub)
}

// CloseAllSubscribers closes every subscriber channel. Used on shutdown.
func (j *Journal) CloseAllSubscribers() {
	j.subMu.Lock()
	defer j.subMu.Unlock()
	for sub := range j.subscribers {
		close(sub)
	}
	j.subscribers = make(map[Subscriber]struct{})
}

// SubscriberCount returns the current number of subscribers.
func (j *Journal) SubscriberCount() int {
	j.subMu.RLock()
	defer j.subMu.RUnlock()
	return len(j.subscribers)
}

// broadcast sends an event to all subscribers.
// If a subscriber's buffer is full, the event is dropped for that subscriber.
func (j *Journal) broadcast(e Event) {
	j.subMu.RLock()
	defer j.subMu.RUnlock()

	for sub := range j.subscribers {
		select {
		case sub <- e:
		default:
		}
	}
}
