package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen    TicketStatus = "OPEN"
	TicketStatusClosing TicketStatus = "CLOSING"
	TicketStatusClosed  TicketStatus = "CLOSED"
)

// Ticket is the aggregate for one support conversation. A user has at most one
// ticket in OPEN status at any time; the registry enforces that invariant.
type Ticket struct {
	ID        string
	UserID    string
	ThreadID  string
	Name      string
	Anonymous bool
	Status    TicketStatus
	Tags      []string
	OpenedAt  time.Time
	ClosedAt  *time.Time
}
