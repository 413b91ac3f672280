package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/modmail-service/internal/api/http"
	"github.com/spec-kit/modmail-service/internal/api/http/handlers"
	"github.com/spec-kit/modmail-service/internal/assist"
	"github.com/spec-kit/modmail-service/internal/auth"
	"github.com/spec-kit/modmail-service/internal/config"
	"github.com/spec-kit/modmail-service/internal/events"
	"github.com/spec-kit/modmail-service/internal/observability"
	"github.com/spec-kit/modmail-service/internal/persistence"
	"github.com/spec-kit/modmail-service/internal/platform/discord"
	"github.com/spec-kit/modmail-service/internal/registry"
	"github.com/spec-kit/modmail-service/internal/repository"
	"github.com/spec-kit/modmail-service/internal/service"
	"github.com/spec-kit/modmail-service/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	pool := pg.PoolHandle()
	transcriptRepo := repository.NewTranscriptRepository(pool)
	groupTagRepo := repository.NewGroupTagRepository(pool)
	snippetRepo := repository.NewSnippetRepository(pool)
	blacklistRepo := repository.NewBlacklistRepository(pool)

	dispatcher := events.NewInMemoryDispatcher(logger)
	metrics := observability.NewMetrics()
	metrics.ObserveEvents(dispatcher)

	platformAdapter, err := discord.New(discord.AdapterOpts{
		Config: cfg.Discord,
		Logger: logger,
	})
	if err != nil {
		logger.Fatal("failed to build discord adapter", zap.Error(err))
	}

	assistService := assist.New(cfg.Assist, redis, logger)
	ticketRegistry := registry.NewRegistry()

	ticketService := service.NewTicketService(service.TicketDependencies{
		Registry:       ticketRegistry,
		Threads:        platformAdapter,
		TranscriptRepo: transcriptRepo,
		BlacklistRepo:  blacklistRepo,
		Assist:         assistService,
		Numbers:        redis,
		Dispatcher:     dispatcher,
		Config:         cfg.Discord,
		Logger:         logger,
	})
	groupService := service.NewGroupService(service.GroupDependencies{
		GroupTagRepo: groupTagRepo,
		Registry:     ticketRegistry,
		Threads:      platformAdapter,
		Tickets:      ticketService,
		Dispatcher:   dispatcher,
		Logger:       logger,
	})
	snippetService := service.NewSnippetService(snippetRepo, ticketService)
	blacklistService := service.NewBlacklistService(blacklistRepo)

	if err := groupService.Restore(ctx); err != nil {
		logger.Warn("group tag restore failed", zap.Error(err))
	}

	if err := platformAdapter.Connect(ctx); err != nil {
		logger.Fatal("failed to connect to discord", zap.Error(err))
	}
	defer platformAdapter.Close() //nolint:errcheck

	worker.StartInboundWorker(ctx, platformAdapter, ticketService, logger)
	worker.StartCounterWorker(dispatcher, platformAdapter, logger)

	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	authMiddleware := auth.NewAuthMiddleware(tokenManager)

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Auth:           handlers.NewAuthHandler(tokenManager, cfg.Auth),
		Tickets:        handlers.NewTicketsHandler(ticketService, snippetService),
		Tags:           handlers.NewTagsHandler(groupService),
		Transcripts:    handlers.NewTranscriptsHandler(ticketService),
		Snippets:       handlers.NewSnippetsHandler(snippetService),
		Blacklist:      handlers.NewBlacklistHandler(blacklistService),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()
	logger.Info("modmail service started",
		zap.String("addr", cfg.App.Addr()),
		zap.String("env", cfg.App.Env),
	)

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
