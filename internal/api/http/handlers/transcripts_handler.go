package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/modmail-service/internal/api/dto"
	"github.com/spec-kit/modmail-service/internal/service"
	util "github.com/spec-kit/modmail-service/pkg/util"
)

// TranscriptsHandler exposes the persisted transcript store.
type TranscriptsHandler struct {
	tickets *service.TicketService
}

// NewTranscriptsHandler constructs the handler.
func NewTranscriptsHandler(tickets *service.TicketService) *TranscriptsHandler {
	return &TranscriptsHandler{tickets: tickets}
}

// List GET /api/transcripts?user_id= returns a user's records, most recently
// closed first.
func (h *TranscriptsHandler) List(c *fiber.Ctx) error {
	userID := c.Query("user_id")
	if userID == "" {
		return util.NewValidationError("user_id query parameter required", nil)
	}
	records, err := h.tickets.Transcripts(c.UserContext(), userID)
	if err != nil {
		return err
	}
	items := make([]dto.TranscriptResponse, 0, len(records))
	for _, record := range records {
		items = append(items, dto.TranscriptFrom(record))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Search GET /api/transcripts/search?phrase=&user_id= performs a
// case-insensitive substring search, optionally scoped to one user.
func (h *TranscriptsHandler) Search(c *fiber.Ctx) error {
	matches, err := h.tickets.SearchTranscripts(c.UserContext(), c.Query("user_id"), c.Query("phrase"))
	if err != nil {
		return err
	}
	items := make([]dto.SearchMatchResponse, 0, len(matches))
	for _, match := range matches {
		items = append(items, dto.SearchMatchFrom(match))
	}
	return c.JSON(fiber.Map{"data": items})
}
