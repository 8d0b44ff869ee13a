package events

import (
	"encoding/json"
	"sync"
	"time"
)

const (
	EventBookingCreated          = "booking_created"
	EventBookingModified         = "booking_modified"
	EventBookingCancelled        = "booking_cancelled"
	EventBlackoutInserted        = "blackout_inserted"
	EventBanSet                  = "ban_set"
	EventBanLifted               = "ban_lifted"
	EventSeatAvailabilityChanged = "seat_availability_changed"
)

// BookingEventPayload is the booking snapshot sent to consumers.
type BookingEventPayload struct {
	BookingID     int64      `json:"booking_id"`
	User          string     `json:"user"`
	SeatID        int64      `json:"seat_id"`
	Start         time.Time  `json:"start"`
	End           time.Time  `json:"end"`
	PreviousStart *time.Time `json:"previous_start,omitempty"`
	PreviousEnd   *time.Time `json:"previous_end,omitempty"`
}

type BlackoutEventPayload struct {
	BlackoutID int64     `json:"blackout_id"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	Source     string    `json:"source"`
}

type BanEventPayload struct {
	User   string     `json:"user"`
	Start  *time.Time `json:"start,omitempty"`
	End    *time.Time `json:"end,omitempty"`
	Reason string     `json:"reason,omitempty"`
}

type SeatEventPayload struct {
	SeatID    int64 `json:"seat_id"`
	Available bool  `json:"available"`
}

// Event represents a lightweight domain event.
type Event struct {
	Type      string
	Key       string
	Payload   []byte
	CreatedAt time.Time
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	wildcard    []EventHandler
	mu          sync.RWMutex
}

func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// SubscribeAll registers a handler that sees every event type.
func (b *EventBus) SubscribeAll(handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.wildcard = append(b.wildcard, handler)
}

// Publish notifies subscribers of the event type, then wildcard subscribers.
func (b *EventBus) Publish(event *Event) {
	if b == nil {
		return
	}

	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	handlers = append(handlers, b.wildcard...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		// Handlers run synchronously; caller decides concurrency model.
		_ = handler(event)
	}
}

// PublishJSON serializes the payload and publishes an event keyed by key.
func (b *EventBus) PublishJSON(eventType, key string, payload any) error {
	if b == nil {
		return nil
	}

	event, err := NewJSONEvent(eventType, key, payload)
	if err != nil {
		return err
	}
	b.Publish(&event)
	return nil
}

// NewJSONEvent builds an Event with JSON payload for manual publishing.
func NewJSONEvent(eventType, key string, payload any) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}

	return Event{Type: eventType, Key: key, Payload: raw, CreatedAt: time.Now()}, nil
}
