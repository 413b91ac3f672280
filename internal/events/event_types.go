package events

import (
	"time"

	"github.com/spec-kit/modmail-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketOpened       EventType = "ticket_opened"
	EventTicketClosed       EventType = "ticket_closed"
	EventTicketRelayed      EventType = "ticket_relayed"
	EventBroadcastCompleted EventType = "broadcast_completed"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketOpenedPayload payload.
type TicketOpenedPayload struct {
	UserID    string `json:"user_id"`
	ThreadID  string `json:"thread_id"`
	Name      string `json:"name"`
	OpenCount int    `json:"open_count"`
}

// TicketClosedPayload payload.
type TicketClosedPayload struct {
	UserID     string            `json:"user_id"`
	CloserRole domain.AuthorRole `json:"closer_role"`
	Reason     string            `json:"reason,omitempty"`
	OpenCount  int               `json:"open_count"`
}

// TicketRelayedPayload payload.
type TicketRelayedPayload struct {
	AuthorRole  domain.AuthorRole `json:"author_role"`
	Seq         int               `json:"seq"`
	BodyPreview string            `json:"body_preview"`
}

// BroadcastCompletedPayload payload.
type BroadcastCompletedPayload struct {
	TagName   string `json:"tag_name"`
	Delivered int    `json:"delivered"`
	Failed    int    `json:"failed"`
}
