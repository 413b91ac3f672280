package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/modmail-service/internal/api/http/handlers"
	"github.com/spec-kit/modmail-service/internal/auth"
	"github.com/spec-kit/modmail-service/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Tickets        *handlers.TicketsHandler
	Tags           *handlers.TagsHandler
	Transcripts    *handlers.TranscriptsHandler
	Snippets       *handlers.SnippetsHandler
	Blacklist      *handlers.BlacklistHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes. Helpers can reply and broadcast,
// moderators close tickets and manage the blacklist, admins mutate snippets.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	app.Post("/auth/token", cfg.Auth.Token)

	api := app.Group("/api", cfg.AuthMiddleware.Handle)

	tickets := api.Group("/tickets")
	tickets.Get("/open-count", auth.RequireTier(domain.TierHelper), cfg.Tickets.OpenCount)
	tickets.Post("/send", auth.RequireTier(domain.TierHelper), cfg.Tickets.Send)
	tickets.Post("/:id/reply", auth.RequireTier(domain.TierHelper), cfg.Tickets.Reply)
	tickets.Post("/:id/close", auth.RequireTier(domain.TierModerator), cfg.Tickets.Close)

	tags := api.Group("/tags")
	tags.Get("/", auth.RequireTier(domain.TierHelper), cfg.Tags.List)
	tags.Post("/sendmany", auth.RequireTier(domain.TierHelper), cfg.Tags.SendMany)
	tags.Post("/:name/broadcast", auth.RequireTier(domain.TierHelper), cfg.Tags.Broadcast)
	tags.Post("/:name/members", auth.RequireTier(domain.TierHelper), cfg.Tags.Attach)
	tags.Delete("/:name/members/:ticketID", auth.RequireTier(domain.TierHelper), cfg.Tags.Detach)

	transcripts := api.Group("/transcripts", auth.RequireTier(domain.TierHelper))
	transcripts.Get("/", cfg.Transcripts.List)
	transcripts.Get("/search", cfg.Transcripts.Search)

	snippets := api.Group("/snippets")
	snippets.Get("/", auth.RequireTier(domain.TierHelper), cfg.Snippets.List)
	snippets.Get("/:name", auth.RequireTier(domain.TierHelper), cfg.Snippets.Get)
	snippets.Post("/", auth.RequireTier(domain.TierAdmin), cfg.Snippets.Create)
	snippets.Put("/:name", auth.RequireTier(domain.TierAdmin), cfg.Snippets.Update)
	snippets.Delete("/:name", auth.RequireTier(domain.TierAdmin), cfg.Snippets.Delete)

	blacklist := api.Group("/blacklist", auth.RequireTier(domain.TierModerator))
	blacklist.Get("/", cfg.Blacklist.List)
	blacklist.Post("/", cfg.Blacklist.Add)
	blacklist.Delete("/:userID", cfg.Blacklist.Remove)
}
