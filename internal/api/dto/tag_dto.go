package dto

import (
	"time"

	"github.com/spec-kit/modmail-service/internal/domain"
)

// SendManyRequest opens tickets for many users under a tag.
type SendManyRequest struct {
	Tag     string   `json:"tag"`
	UserIDs []string `json:"user_ids"`
	Body    string   `json:"body"`
}

// BroadcastRequest applies a bulk action to every member of a tag.
type BroadcastRequest struct {
	Action string `json:"action"`
	Body   string `json:"body"`
	Reason string `json:"reason"`
}

// AttachRequest adds a ticket to a tag.
type AttachRequest struct {
	TicketID string `json:"ticket_id"`
}

// GroupTagResponse describes one live tag.
type GroupTagResponse struct {
	Name      string    `json:"name"`
	MemberIDs []string  `json:"member_ids"`
	Count     int       `json:"count"`
	CreatedAt time.Time `json:"created_at"`
}

// GroupTagFrom maps a domain group tag.
func GroupTagFrom(tag domain.GroupTag) GroupTagResponse {
	return GroupTagResponse{
		Name:      tag.Name,
		MemberIDs: tag.MemberIDs,
		Count:     len(tag.MemberIDs),
		CreatedAt: tag.CreatedAt,
	}
}
