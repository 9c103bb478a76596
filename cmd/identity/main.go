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

	"github.com/inpetum/identity/internal/accounts"
	"github.com/inpetum/identity/internal/app"
	"github.com/inpetum/identity/internal/auth"
	"github.com/inpetum/identity/internal/observability"
	"github.com/inpetum/identity/internal/otp"
	"github.com/inpetum/identity/internal/platform/cache"
	"github.com/inpetum/identity/internal/platform/db"
	"github.com/inpetum/identity/internal/rbac"
	"github.com/inpetum/identity/internal/roles"
	"github.com/inpetum/identity/internal/session"
	"github.com/inpetum/identity/internal/users"
	"github.com/inpetum/identity/jobs"
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

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	if err := rbac.Seed(ctx, dbpool, logger); err != nil {
		logger.Error("seed rbac catalog", slog.Any("error", err))
		os.Exit(1)
	}

	sessionManager := session.NewManager(redisClient, cfg.JWTSecret, cfg.SessionTTL)

	dispatcher := jobs.NewDispatcher(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := dispatcher.Close(); err != nil {
			logger.Warn("dispatcher close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()

	accountsRepo := accounts.NewRepository(dbpool)
	rbacService := rbac.NewService(dbpool)
	rbacMiddleware := rbac.Middleware{Service: rbacService, Logger: logger}

	authService := auth.NewService(accountsRepo, rbacService, dbpool)
	authHandler := auth.NewHandler(logger, authService, sessionManager, dispatcher, metrics)

	usersService := users.NewService(logger, dbpool, sessionManager)
	usersHandler := users.NewHandler(logger, usersService, rbacMiddleware)

	rolesService := roles.NewService(logger, dbpool, sessionManager)
	rolesHandler := roles.NewHandler(logger, rolesService, rbacMiddleware)

	otpStore := otp.NewStore(redisClient, cfg.OTPTTL)
	otpService := otp.NewService(logger, otpStore, accountsRepo, dispatcher, sessionManager, otp.Config{
		TTL:                 cfg.OTPTTL,
		VerificationEnabled: cfg.OTPVerification,
		MaxAttempts:         cfg.OTPMaxAttempts,
	})
	otpHandler := otp.NewHandler(logger, otpService)

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		SessionManager: sessionManager,
		AuthHandler:    authHandler,
		UsersHandler:   usersHandler,
		RolesHandler:   rolesHandler,
		OTPHandler:     otpHandler,
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
