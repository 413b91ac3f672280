package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/modmail-service/internal/api/dto"
	"github.com/spec-kit/modmail-service/internal/auth"
	"github.com/spec-kit/modmail-service/internal/service"
	util "github.com/spec-kit/modmail-service/pkg/util"
)

// SnippetsHandler manages canned replies.
type SnippetsHandler struct {
	snippets *service.SnippetService
}

// NewSnippetsHandler constructs the handler.
func NewSnippetsHandler(snippets *service.SnippetService) *SnippetsHandler {
	return &SnippetsHandler{snippets: snippets}
}

// List GET /api/snippets.
func (h *SnippetsHandler) List(c *fiber.Ctx) error {
	items, err := h.snippets.List(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": items})
}

// Get GET /api/snippets/:name.
func (h *SnippetsHandler) Get(c *fiber.Ctx) error {
	snippet, err := h.snippets.Get(c.UserContext(), c.Params("name"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": snippet})
}

// Create POST /api/snippets.
func (h *SnippetsHandler) Create(c *fiber.Ctx) error {
	principal, _ := auth.PrincipalFromContext(c)
	var req dto.SnippetRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid payload", nil)
	}
	snippet, err := h.snippets.Create(c.UserContext(), req.Name, req.Content, principal.OperatorID)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": snippet})
}

// Update PUT /api/snippets/:name.
func (h *SnippetsHandler) Update(c *fiber.Ctx) error {
	var req dto.SnippetRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid payload", nil)
	}
	return h.snippets.Update(c.UserContext(), c.Params("name"), req.Content)
}

// Delete DELETE /api/snippets/:name.
func (h *SnippetsHandler) Delete(c *fiber.Ctx) error {
	return h.snippets.Delete(c.UserContext(), c.Params("name"))
}
