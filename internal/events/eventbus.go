package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/DaDevFox/task-systems/feeding-core/internal/domain"
)

// EventType names a kind of engine event.
type EventType string

const (
	FeedingRecorded    EventType = "feeding.recorded"
	StockAdded         EventType = "stock.added"
	StockDebited       EventType = "stock.debited"
	StockDepleted      EventType = "stock.depleted"
	ReminderDispatched EventType = "reminder.dispatched"
)

// Event is the envelope delivered to handlers.
type Event struct {
	ID            string
	Type          EventType
	SourceService string
	Timestamp     time.Time
	Payload       any
}

// FeedingRecordedPayload is published after a feeding has been committed.
type FeedingRecordedPayload struct {
	AnimalID        string
	FeedingEventID  string
	FeedingDate     time.Time
	NextFeedingDate *time.Time
	SKU             *domain.SKUKey
	Debited         bool
}

// StockChangedPayload describes a committed ledger movement. Requested is the
// signed delta as asked for; Clamped is set when the floor at zero absorbed
// part of it.
type StockChangedPayload struct {
	SKU              domain.SKUKey
	TransactionType  domain.TransactionType
	Requested        int
	PreviousQuantity int
	NewQuantity      int
	Clamped          bool
	FeedingEventID   string
}

// ReminderDispatchedPayload records one notification attempt.
type ReminderDispatchedPayload struct {
	AnimalID string
	Channel  string
	Target   string
	Overdue  bool
	Error    string
}

// EventHandler defines the interface for handling events
type EventHandler func(ctx context.Context, event *Event) error

// EventBus provides in-memory pub/sub functionality. Handlers run
// asynchronously and never block the publisher.
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[EventType][]EventHandler
	serviceName string
	logger      *logrus.Logger
	inflight    sync.WaitGroup
}

// NewEventBus creates a new event bus for a service
func NewEventBus(serviceName string, logger *logrus.Logger) *EventBus {
	return &EventBus{
		subscribers: make(map[EventType][]EventHandler),
		serviceName: serviceName,
		logger:      logger,
	}
}

// Subscribe registers a handler for a specific event type
func (eb *EventBus) Subscribe(eventType EventType, handler EventHandler) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.subscribers[eventType] = append(eb.subscribers[eventType], handler)
}

// Publish sends an event to all registered handlers. The handlers' context
// keeps the caller's values but not its cancellation, since they usually
// outlive the request that published.
func (eb *EventBus) Publish(ctx context.Context, eventType EventType, payload any) {
	eb.mu.RLock()
	handlers := eb.subscribers[eventType]
	eb.mu.RUnlock()

	if len(handlers) == 0 {
		return
	}

	event := &Event{
		ID:            uuid.New().String(),
		Type:          eventType,
		SourceService: eb.serviceName,
		Timestamp:     time.Now(),
		Payload:       payload,
	}

	hctx := context.WithoutCancel(ctx)
	for _, handler := range handlers {
		eb.inflight.Add(1)
		go func(h EventHandler) {
			defer eb.inflight.Done()
			if err := h(hctx, event); err != nil {
				eb.logger.WithError(err).WithFields(logrus.Fields{
					"event_id":   event.ID,
					"event_type": event.Type,
				}).Error("Event handler failed")
			}
		}(handler)
	}
}

// Wait blocks until every handler started so far has returned.
func (eb *EventBus) Wait() {
	eb.inflight.Wait()
}
