package handlers

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/modmail-service/internal/api/dto"
	"github.com/spec-kit/modmail-service/internal/auth"
	"github.com/spec-kit/modmail-service/internal/domain"
	"github.com/spec-kit/modmail-service/internal/service"
	util "github.com/spec-kit/modmail-service/pkg/util"
)

// TicketsHandler exposes ticket lifecycle operations to operators.
type TicketsHandler struct {
	tickets  *service.TicketService
	snippets *service.SnippetService
}

// NewTicketsHandler constructs the handler.
func NewTicketsHandler(tickets *service.TicketService, snippets *service.SnippetService) *TicketsHandler {
	return &TicketsHandler{tickets: tickets, snippets: snippets}
}

// OpenCount GET /api/tickets/open-count.
func (h *TicketsHandler) OpenCount(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"data": fiber.Map{"open": h.tickets.OpenCount()}})
}

// Send POST /api/tickets/send opens a ticket for a user and delivers a
// message. A user with an open ticket fails with ALREADY_OPEN.
func (h *TicketsHandler) Send(c *fiber.Ctx) error {
	principal, _ := auth.PrincipalFromContext(c)
	var req dto.SendTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid payload", nil)
	}
	if req.UserID == "" || strings.TrimSpace(req.Body) == "" {
		return util.NewValidationError("user_id and body required", nil)
	}

	ticket, err := h.tickets.SendMessage(c.UserContext(), req.UserID, req.UserName, principal.OperatorID, req.Body)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.TicketSummaryFrom(ticket.Snapshot())})
}

// Reply POST /api/tickets/:id/reply delivers a staff reply, either a literal
// body or a named snippet.
func (h *TicketsHandler) Reply(c *fiber.Ctx) error {
	principal, _ := auth.PrincipalFromContext(c)
	ticketID := c.Params("id")
	var req dto.ReplyRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid payload", nil)
	}

	if req.Snippet != "" {
		return h.snippets.Deliver(c.UserContext(), ticketID, req.Snippet, principal.OperatorID)
	}
	if strings.TrimSpace(req.Body) == "" {
		return util.NewValidationError("body or snippet required", nil)
	}
	return h.tickets.RelayStaffReply(c.UserContext(), ticketID, principal.OperatorID, req.Body)
}

// Close POST /api/tickets/:id/close.
func (h *TicketsHandler) Close(c *fiber.Ctx) error {
	ticketID := c.Params("id")
	var req dto.CloseRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid payload", nil)
	}
	return h.tickets.CloseTicket(c.UserContext(), ticketID, domain.AuthorRoleStaff, req.Reason)
}
