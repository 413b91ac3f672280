package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/modmail-service/internal/api/dto"
	"github.com/spec-kit/modmail-service/internal/auth"
	"github.com/spec-kit/modmail-service/internal/service"
	util "github.com/spec-kit/modmail-service/pkg/util"
)

// TagsHandler exposes group tag operations.
type TagsHandler struct {
	groups *service.GroupService
}

// NewTagsHandler constructs the handler.
func NewTagsHandler(groups *service.GroupService) *TagsHandler {
	return &TagsHandler{groups: groups}
}

// List GET /api/tags.
func (h *TagsHandler) List(c *fiber.Ctx) error {
	tags := h.groups.Tags()
	items := make([]dto.GroupTagResponse, 0, len(tags))
	for _, tag := range tags {
		items = append(items, dto.GroupTagFrom(tag))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Attach POST /api/tags/:name/members adds an open ticket to a tag.
func (h *TagsHandler) Attach(c *fiber.Ctx) error {
	var req dto.AttachRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid payload", nil)
	}
	if req.TicketID == "" {
		return util.NewValidationError("ticket_id required", nil)
	}
	return h.groups.AddMember(c.UserContext(), c.Params("name"), req.TicketID)
}

// Detach DELETE /api/tags/:name/members/:ticketID removes a ticket from a
// tag. Emptying the tag deletes it.
func (h *TagsHandler) Detach(c *fiber.Ctx) error {
	return h.groups.RemoveMember(c.UserContext(), c.Params("name"), c.Params("ticketID"))
}

// SendMany POST /api/tags/sendmany.
func (h *TagsHandler) SendMany(c *fiber.Ctx) error {
	principal, _ := auth.PrincipalFromContext(c)
	var req dto.SendManyRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid payload", nil)
	}
	if req.Tag == "" || len(req.UserIDs) == 0 || req.Body == "" {
		return util.NewValidationError("tag, user_ids and body required", nil)
	}

	results, err := h.groups.SendMany(c.UserContext(), req.Tag, principal.OperatorID, req.UserIDs, req.Body)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": results})
}

// Broadcast POST /api/tags/:name/broadcast applies a reply or close to every
// member of the tag.
func (h *TagsHandler) Broadcast(c *fiber.Ctx) error {
	principal, _ := auth.PrincipalFromContext(c)
	var req dto.BroadcastRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid payload", nil)
	}

	action := service.BulkAction{StaffName: principal.OperatorID}
	switch req.Action {
	case "close", "close-anonymous":
		action.Kind = service.BulkActionClose
		action.Reason = req.Reason
	case "", "reply", "reply-anonymous":
		action.Kind = service.BulkActionReply
		if req.Body == "" {
			return util.NewValidationError("body required for reply broadcast", nil)
		}
		action.Body = req.Body
	default:
		return util.NewValidationError("unknown action", map[string]any{"action": req.Action})
	}
	action.Anonymous = strings.HasSuffix(req.Action, "-anonymous")

	results, err := h.groups.Broadcast(c.UserContext(), c.Params("name"), action)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": results})
}
