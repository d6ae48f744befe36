package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/atelier-crm/atelier-crm/internal/app"
	"github.com/atelier-crm/atelier-crm/internal/auth"
	"github.com/atelier-crm/atelier-crm/internal/authz"
	"github.com/atelier-crm/atelier-crm/internal/budgets"
	"github.com/atelier-crm/atelier-crm/internal/leads"
	"github.com/atelier-crm/atelier-crm/internal/observability"
	"github.com/atelier-crm/atelier-crm/internal/platform/db"
	"github.com/atelier-crm/atelier-crm/internal/shared"
	"github.com/atelier-crm/atelier-crm/internal/users"
	"github.com/atelier-crm/atelier-crm/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	if cfg.MigrateOnBoot {
		if err := db.Migrate(cfg.PGDSN); err != nil {
			logger.Error("run migrations", slog.Any("error", err))
			os.Exit(1)
		}
	}

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "atelier_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	authzRepo := authz.NewRepository(pool)
	resolver := authz.NewResolver(authzRepo)
	synchronizer := authz.NewSynchronizer(authzRepo, logger)
	authzService := authz.NewService(authzRepo, authzRepo, logger)
	authzMW := authz.Middleware{Members: authzRepo, Resolver: resolver, Logger: logger}
	authzHandler := authz.NewHandler(logger, authzService, synchronizer, authzMW)

	if cfg.SyncOnBoot {
		if err := synchronizer.Sync(ctx); err != nil {
			logger.Error("permission catalog sync", slog.Any("error", err))
			os.Exit(1)
		}
	}

	authRepo := auth.NewRepository(pool)
	authService := auth.NewService(authRepo)
	authHandler := auth.NewHandler(logger, authService, authzMW, sessionManager, csrfManager)

	usersRepo := users.NewRepository(pool)
	usersService := users.NewService(usersRepo, authzService, resolver, logger)
	usersHandler := users.NewHandler(logger, usersService, authzMW)

	leadsRepo := leads.NewRepository(pool)
	leadsService := leads.NewService(leadsRepo, logger)
	leadsHandler := leads.NewHandler(logger, leadsService)

	budgetsRepo := budgets.NewRepository(pool)
	budgetsService := budgets.NewService(budgetsRepo, leadsService, logger)
	budgetsHandler := budgets.NewHandler(logger, budgetsService)

	metrics := observability.NewMetrics()

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		SessionManager: sessionManager,
		CSRFManager:    csrfManager,
		AuthzMW:        authzMW,
		AuthHandler:    authHandler,
		AuthzHandler:   authzHandler,
		UsersHandler:   usersHandler,
		LeadsHandler:   leadsHandler,
		BudgetsHandler: budgetsHandler,
		JobHandler:     jobHandler,
		Metrics:        metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
