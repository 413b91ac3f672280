package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/modmail-service/internal/api/dto"
	"github.com/spec-kit/modmail-service/internal/auth"
	"github.com/spec-kit/modmail-service/internal/service"
	util "github.com/spec-kit/modmail-service/pkg/util"
)

// BlacklistHandler manages the ignored-user list.
type BlacklistHandler struct {
	blacklist *service.BlacklistService
}

// NewBlacklistHandler constructs the handler.
func NewBlacklistHandler(blacklist *service.BlacklistService) *BlacklistHandler {
	return &BlacklistHandler{blacklist: blacklist}
}

// List GET /api/blacklist.
func (h *BlacklistHandler) List(c *fiber.Ctx) error {
	items, err := h.blacklist.List(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": items})
}

// Add POST /api/blacklist.
func (h *BlacklistHandler) Add(c *fiber.Ctx) error {
	principal, _ := auth.PrincipalFromContext(c)
	var req dto.BlacklistRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid payload", nil)
	}
	entry, err := h.blacklist.Add(c.UserContext(), req.UserID, req.Reason, principal.OperatorID)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": entry})
}

// Remove DELETE /api/blacklist/:userID.
func (h *BlacklistHandler) Remove(c *fiber.Ctx) error {
	return h.blacklist.Remove(c.UserContext(), c.Params("userID"))
}
