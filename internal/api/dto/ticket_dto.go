package dto

import (
	"time"

	"github.com/spec-kit/modmail-service/internal/domain"
)

// SendTicketRequest opens a ticket for one user and delivers a message.
type SendTicketRequest struct {
	UserID   string `json:"user_id"`
	UserName string `json:"user_name"`
	Body     string `json:"body"`
}

// ReplyRequest delivers a staff reply into an open ticket.
type ReplyRequest struct {
	Body    string `json:"body"`
	Snippet string `json:"snippet"`
}

// CloseRequest closes an open ticket.
type CloseRequest struct {
	Reason string `json:"reason"`
}

// TicketSummary response.
type TicketSummary struct {
	ID       string              `json:"id"`
	UserID   string              `json:"user_id"`
	ThreadID string              `json:"thread_id"`
	Name     string              `json:"name"`
	Status   domain.TicketStatus `json:"status"`
	Tags     []string            `json:"tags"`
	OpenedAt time.Time           `json:"opened_at"`
}

// TicketSummaryFrom maps a domain ticket snapshot.
func TicketSummaryFrom(ticket domain.Ticket) TicketSummary {
	return TicketSummary{
		ID:       ticket.ID,
		UserID:   ticket.UserID,
		ThreadID: ticket.ThreadID,
		Name:     ticket.Name,
		Status:   ticket.Status,
		Tags:     ticket.Tags,
		OpenedAt: ticket.OpenedAt,
	}
}
