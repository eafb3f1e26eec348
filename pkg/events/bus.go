package events

import (
	"sync"
	"time"

	"github.com/lexaid-ai/lexaid/pkg/logger"
	"go.uber.org/zap"
)

// Event types published by the voice engine.
const (
	TypeEmergencyDetected = "emergency.detected"
	TypeSessionEnded      = "session.ended"
)

// Event system event
type Event struct {
	Type      string                 `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
	Source    string                 `json:"source"`
}

// EventHandler event handler function
type EventHandler func(event Event) error

// EventBus event bus
type EventBus struct {
	handlers map[string][]EventHandler
	mu       sync.RWMutex
}

var globalEventBus *EventBus
var once sync.Once

// GetEventBus gets global event bus instance
func GetEventBus() *EventBus {
	once.Do(func() {
		globalEventBus = &EventBus{
			handlers: make(map[string][]EventHandler),
		}
	})
	return globalEventBus
}

// NewEventBus creates an isolated bus, used by tests
func NewEventBus() *EventBus {
	return &EventBus{handlers: make(map[string][]EventHandler)}
}

// Subscribe subscribes to events
func (bus *EventBus) Subscribe(eventType string, handler EventHandler) {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	bus.handlers[eventType] = append(bus.handlers[eventType], handler)
	logger.Info("Event handler subscribed", zap.String("eventType", eventType))
}

// Unsubscribe removes all handlers for the type
func (bus *EventBus) Unsubscribe(eventType string) {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	delete(bus.handlers, eventType)
}

// Publish publishes an event. Handlers run synchronously on the caller's
// goroutine; anything slow (alert delivery, persistence) must spawn its
// own goroutine so publishers are never blocked.
func (bus *EventBus) Publish(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	bus.mu.RLock()
	handlers := make([]EventHandler, len(bus.handlers[event.Type]))
	copy(handlers, bus.handlers[event.Type])
	bus.mu.RUnlock()

	for _, handler := range handlers {
		if err := handler(event); err != nil {
			logger.Error("Event handler failed",
				zap.String("eventType", event.Type),
				zap.Error(err))
		}
	}
}
