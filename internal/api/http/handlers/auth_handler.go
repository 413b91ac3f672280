package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/modmail-service/internal/api/dto"
	"github.com/spec-kit/modmail-service/internal/auth"
	"github.com/spec-kit/modmail-service/internal/config"
	"github.com/spec-kit/modmail-service/internal/domain"
	util "github.com/spec-kit/modmail-service/pkg/util"
)

// AuthHandler issues operator tokens.
type AuthHandler struct {
	tokens *TokenIssuer
}

// TokenIssuer checks the shared passphrase and signs tier-scoped tokens. The
// dispatcher calling this endpoint has already resolved the operator's tier
// from the platform's role system.
type TokenIssuer struct {
	manager        *auth.TokenManager
	passphraseHash string
}

// NewAuthHandler constructs the handler.
func NewAuthHandler(manager *auth.TokenManager, cfg config.AuthConfig) *AuthHandler {
	return &AuthHandler{tokens: &TokenIssuer{manager: manager, passphraseHash: cfg.OperatorPassphraseHash}}
}

// Token POST /auth/token.
func (h *AuthHandler) Token(c *fiber.Ctx) error {
	var req dto.TokenRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid payload", nil)
	}
	if req.OperatorID == "" || req.Passphrase == "" {
		return util.NewValidationError("operator_id and passphrase required", nil)
	}
	tier := domain.OperatorTier(req.Tier)
	if !tier.Valid() {
		return util.NewValidationError("unknown tier", map[string]any{"tier": req.Tier})
	}
	if !auth.VerifyPassphrase(h.tokens.passphraseHash, req.Passphrase) {
		return util.NewUnauthorized("invalid passphrase")
	}

	token, expiresAt, err := h.tokens.manager.GenerateToken(req.OperatorID, tier)
	if err != nil {
		return util.NewInternalError(err)
	}
	return c.JSON(fiber.Map{"data": dto.TokenResponse{
		Token:     token,
		ExpiresAt: expiresAt.Format(time.RFC3339),
	}})
}
