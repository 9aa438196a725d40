package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/quickdesk/internal/api/http"
	"github.com/spec-kit/quickdesk/internal/api/http/handlers"
	"github.com/spec-kit/quickdesk/internal/auth"
	"github.com/spec-kit/quickdesk/internal/cache"
	"github.com/spec-kit/quickdesk/internal/config"
	"github.com/spec-kit/quickdesk/internal/events"
	"github.com/spec-kit/quickdesk/internal/observability"
	"github.com/spec-kit/quickdesk/internal/persistence"
	"github.com/spec-kit/quickdesk/internal/repository"
	"github.com/spec-kit/quickdesk/internal/service"
	"github.com/spec-kit/quickdesk/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
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
	pool := pg.PoolHandle()
	if pool == nil {
		logger.Fatal("postgres is required; set POSTGRES_DSN")
	}

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pool, cfg.Postgres.MigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	userRepo := repository.NewUserRepository(pool)
	categoryRepo := repository.NewCategoryRepository(pool)
	ticketRepo := repository.NewTicketRepository(pool)
	commentRepo := repository.NewCommentRepository(pool)
	historyRepo := repository.NewTicketHistoryRepository(pool)
	txManager := repository.NewTxManager(pool)

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	revocations := auth.NewRedisRevocationStore(redis.Client)

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher(logger)

	var forwarder *events.NATSForwarder
	natsConn, err := events.ConnectNATS(cfg.NATS, logger)
	if err != nil {
		logger.Warn("NATS unavailable; event forwarding disabled", zap.Error(err))
	}
	if natsConn != nil {
		defer func() {
			if err := natsConn.Drain(); err != nil {
				logger.Warn("NATS drain", zap.Error(err))
			}
		}()
		forwarder = events.NewNATSForwarder(natsConn, cfg.NATS.SubjectPrefix, logger)
	}

	authService := service.NewAuthService(service.AuthDependencies{
		UserRepo:    userRepo,
		Tokens:      tokens,
		Hasher:      auth.NewPasswordHasher(cfg.Auth.BcryptCost),
		Revocations: revocations,
		Logger:      logger,
	})
	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:   ticketRepo,
		CommentRepo:  commentRepo,
		HistoryRepo:  historyRepo,
		CategoryRepo: categoryRepo,
		TxManager:    txManager,
		Dispatcher:   dispatcher,
		Logger:       logger,
	})
	dashboardService := service.NewDashboardService(service.DashboardDependencies{
		TicketRepo:  ticketRepo,
		TxManager:   txManager,
		Logger:      logger,
		PageSize:    cfg.Dashboard.PageSize,
		MaxPageSize: cfg.Dashboard.MaxPageSize,
	})
	categoryService := service.NewCategoryService(
		categoryRepo,
		cache.NewRedisCategoryCache(redis.Client, cfg.Cache.CategoryTTL()),
		logger,
	)
	assignmentService := service.NewAssignmentService(service.AssignmentDependencies{
		TicketRepo:  ticketRepo,
		UserRepo:    userRepo,
		HistoryRepo: historyRepo,
		TxManager:   txManager,
		Dispatcher:  dispatcher,
		Logger:      logger,
	})
	userService := service.NewUserService(userRepo, logger)

	worker.StartEventWorkers(dispatcher, worker.Subscribers{
		Notifications: service.NewNotificationService(dispatcher, logger, cfg.Notification),
		Metrics:       metrics,
		Forwarder:     forwarder,
	}, logger)

	bootstrap := service.NewBootstrap(cfg.Seed, userRepo, authService, categoryService, logger)
	if err := bootstrap.Run(ctx); err != nil {
		logger.Fatal("bootstrap failed", zap.Error(err))
	}

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, map[string]handlers.Pinger{
			"postgres": pg,
			"redis":    redis,
		}),
		Users:          handlers.NewUsersHandler(authService),
		Tickets:        handlers.NewTicketsHandler(ticketService, dashboardService),
		StaffTickets:   handlers.NewStaffTicketsHandler(assignmentService),
		Staff:          handlers.NewStaffHandler(userService),
		Categories:     handlers.NewCategoriesHandler(categoryService),
		Metrics:        metrics.Handler(),
		AuthMiddleware: auth.NewAuthMiddleware(tokens, userRepo, revocations, logger),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("shutdown", zap.Error(err))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
