package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/desk-kit/support-desk/internal/api/http"
	"github.com/desk-kit/support-desk/internal/api/http/handlers"
	"github.com/desk-kit/support-desk/internal/auth"
	"github.com/desk-kit/support-desk/internal/config"
	"github.com/desk-kit/support-desk/internal/events"
	"github.com/desk-kit/support-desk/internal/observability"
	"github.com/desk-kit/support-desk/internal/persistence"
	"github.com/desk-kit/support-desk/internal/realtime"
	"github.com/desk-kit/support-desk/internal/repository"
	"github.com/desk-kit/support-desk/internal/service"
	"github.com/desk-kit/support-desk/internal/worker"
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

	metrics := observability.NewMetrics()

	pool := pg.PoolHandle()
	userRepo := repository.NewUserRepository(pool)
	ticketRepo := repository.NewTicketRepository(pool)
	tagRepo := repository.NewTagRepository(pool)
	messageRepo := repository.NewTicketMessageRepository(pool)
	eventRepo := repository.NewTicketEventRepository(pool)
	teamRepo := repository.NewTeamRepository(pool)

	dispatcher := events.NewInMemoryDispatcher()
	transport := realtime.NewRedisTransport(redis.Client, logger)

	// One lock set shared across ticket and tag services so every
	// mutation against the same ticket serializes.
	locks := service.NewKeyedMutex()

	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:  ticketRepo,
		MessageRepo: messageRepo,
		EventRepo:   eventRepo,
		UserRepo:    userRepo,
		Locks:       locks,
		Dispatcher:  dispatcher,
		Notifier:    transport,
	})
	tagService := service.NewTagService(service.TagDependencies{
		TagRepo:    tagRepo,
		TicketRepo: ticketRepo,
		EventRepo:  eventRepo,
		Locks:      locks,
		Dispatcher: dispatcher,
		Notifier:   transport,
	})
	projectionService := service.NewProjectionService(service.ProjectionDependencies{
		TicketRepo:  ticketRepo,
		UserRepo:    userRepo,
		TagRepo:     tagRepo,
		MessageRepo: messageRepo,
		EventRepo:   eventRepo,
		TeamRepo:    teamRepo,
	})

	notificationService := service.NewNotificationService(dispatcher, logger, cfg.Notification)
	worker.StartNotificationWorker(notificationService)

	profileCache := auth.NewRedisProfileCache(redis.Client, cfg.Auth.ProfileCacheTTL())
	tokenVerifier := auth.NewTokenVerifier(cfg.Auth.JWTSecret)
	authMiddleware := auth.NewAuthMiddleware(tokenVerifier, userRepo, profileCache)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	healthHandler := handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis)
	ticketsHandler := handlers.NewTicketsHandler(ticketService, tagService, projectionService)
	directoryHandler := handlers.NewDirectoryHandler(projectionService)
	streamHandler := handlers.NewStreamHandler(transport, projectionService, logger, metrics,
		cfg.Realtime.ReconnectBase(), cfg.Realtime.ReconnectMax())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         healthHandler,
		Tickets:        ticketsHandler,
		Directory:      directoryHandler,
		Stream:         streamHandler,
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
