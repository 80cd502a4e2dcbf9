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

	httptransport "github.com/spec-kit/triage-service/internal/api/http"
	"github.com/spec-kit/triage-service/internal/api/http/handlers"
	"github.com/spec-kit/triage-service/internal/auth"
	"github.com/spec-kit/triage-service/internal/cache"
	"github.com/spec-kit/triage-service/internal/classifier"
	"github.com/spec-kit/triage-service/internal/config"
	"github.com/spec-kit/triage-service/internal/domain"
	"github.com/spec-kit/triage-service/internal/events"
	"github.com/spec-kit/triage-service/internal/observability"
	"github.com/spec-kit/triage-service/internal/persistence"
	"github.com/spec-kit/triage-service/internal/repository"
	"github.com/spec-kit/triage-service/internal/service"
	"github.com/spec-kit/triage-service/internal/worker"
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

	pool := pg.PoolHandle()
	if pool != nil && cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pool, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	rdb := persistence.NewRedis(cfg.Redis, logger)
	defer rdb.Close()

	var (
		ticketRepo repository.TicketRepository
		auditRepo  repository.AuditRepository
		policyRepo repository.PolicyRepository
		userRepo   repository.UserRepository
	)
	if pool != nil {
		ticketRepo = repository.NewTicketRepository(pool)
		auditRepo = repository.NewAuditRepository(pool)
		policyRepo = repository.NewPolicyRepository(pool)
		userRepo = repository.NewUserRepository(pool)
	} else {
		ticketRepo = repository.NewMemoryTicketRepository()
		auditRepo = repository.NewMemoryAuditRepository()
		policyRepo = repository.NewMemoryPolicyRepository()
		userRepo = repository.NewMemoryUserRepository()
	}

	var suggestionCache cache.SuggestionCache
	pingCtx, pingCancel := context.WithTimeout(ctx, 2*time.Second)
	if err := rdb.Ping(pingCtx); err != nil {
		logger.Warn("redis unreachable, caching suggestions in memory", zap.Error(err))
		suggestionCache = cache.NewMemorySuggestionCache(cfg.Triage.SuggestionTTL())
	} else {
		suggestionCache = cache.NewRedisSuggestionCache(rdb.Client, cfg.Triage.SuggestionTTL())
	}
	pingCancel()

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher(logger)

	notificationService := service.NewNotificationService(dispatcher, logger, cfg.Notification)
	notificationService.RegisterHandlers()

	policyService := service.NewPolicyService(policyRepo, logger, cfg.Triage.PolicyCacheTTL())
	assignmentService := service.NewAssignmentService(ticketRepo, userRepo, logger)
	authService := service.NewAuthService(cfg.Auth, userRepo)

	triageService := service.NewTriageService(service.TriageDependencies{
		TicketRepo:  ticketRepo,
		AuditRepo:   auditRepo,
		Policies:    policyService,
		Classifier:  classifier.WithTimeout(classifier.NewKeywordClassifier(), cfg.Triage.ClassifierTimeout()),
		Suggestions: suggestionCache,
		Assignment:  assignmentService,
		Dispatcher:  dispatcher,
		Metrics:     metrics,
		Logger:      logger,
		Options: service.TriageOptions{
			MaxCommitRetries: cfg.Triage.MaxCommitRetries,
			RetryBackoff:     cfg.Triage.RetryBackoff(),
			AutoCloseTarget:  domain.TicketStatus(cfg.Triage.AutoCloseTarget),
		},
	})

	slaMonitor := worker.NewSLAMonitor(worker.SLAMonitorDependencies{
		TicketRepo: ticketRepo,
		AuditRepo:  auditRepo,
		Policies:   policyService,
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Logger:     logger,
		Interval:   cfg.Triage.SLATick(),
	})
	go slaMonitor.Run(ctx)

	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), userRepo)

	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		DisableStartupMessage: cfg.App.Env == "production",
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, rdb),
		Auth:           handlers.NewAuthHandler(authService),
		Tickets:        handlers.NewTicketsHandler(triageService),
		Triage:         handlers.NewTriageHandler(triageService),
		Config:         handlers.NewConfigHandler(policyService, metrics),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	cancel()
	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
