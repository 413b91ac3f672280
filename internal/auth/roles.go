package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/modmail-service/internal/domain"
	util "github.com/spec-kit/modmail-service/pkg/util"
)

// RequireTier ensures the operator's tier meets or exceeds the required one.
func RequireTier(required domain.OperatorTier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return util.NewUnauthorized("authentication required")
		}
		if !principal.Tier.AtLeast(required) {
			return util.NewForbidden("insufficient operator tier")
		}
		return c.Next()
	}
}
