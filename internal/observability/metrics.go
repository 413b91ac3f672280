package observability

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/spec-kit/modmail-service/internal/events"
)

// Metrics provides basic in-memory counters for requests and domain events.
type Metrics struct {
	mu           sync.Mutex
	requestCount map[string]int64
	errorCount   map[string]int64
	eventCount   map[string]int64
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount: make(map[string]int64),
		errorCount:   make(map[string]int64),
		eventCount:   make(map[string]int64),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := pathKey(path, method, status)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[key]++
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + code
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[key]++
}

// RecordEvent increments the counter for a domain event type.
func (m *Metrics) RecordEvent(eventType string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.eventCount[eventType]++
}

// EventCount returns the observed count for an event type.
func (m *Metrics) EventCount(eventType string) int64 {
	if m == nil {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.eventCount[eventType]
}

// ObserveEvents subscribes the metrics sink to every domain event type.
func (m *Metrics) ObserveEvents(dispatcher events.Dispatcher) {
	for _, eventType := range []events.EventType{
		events.EventTicketOpened,
		events.EventTicketClosed,
		events.EventTicketRelayed,
		events.EventBroadcastCompleted,
	} {
		eventType := eventType
		dispatcher.Subscribe(eventType, func(ctx context.Context, event events.Event) error {
			m.RecordEvent(string(eventType))
			return nil
		})
	}
}

func pathKey(path, method string, status int) string {
	return path + "|" + method + "|" + strconv.Itoa(status)
}
