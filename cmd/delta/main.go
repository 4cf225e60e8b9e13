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

	"github.com/delta-app/delta/internal/analysis"
	"github.com/delta-app/delta/internal/app"
	"github.com/delta-app/delta/internal/auth"
	"github.com/delta-app/delta/internal/authz"
	"github.com/delta-app/delta/internal/comparisons"
	"github.com/delta-app/delta/internal/observability"
	"github.com/delta-app/delta/internal/pipeline"
	"github.com/delta-app/delta/internal/platform/cache"
	"github.com/delta-app/delta/internal/platform/db"
	"github.com/delta-app/delta/internal/profiles"
	"github.com/delta-app/delta/internal/reports"
	"github.com/delta-app/delta/internal/shared"
	"github.com/delta-app/delta/internal/support"
	"github.com/delta-app/delta/internal/uploads"
	"github.com/delta-app/delta/internal/users"
	"github.com/delta-app/delta/jobs"
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

	locales, err := app.NewLocales(cfg.SupportedLocales, cfg.DefaultLocale)
	if err != nil {
		logger.Error("configure locales", slog.Any("error", err))
		os.Exit(1)
	}

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

	sessionManager := shared.NewSessionManager(redisClient, "delta_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)
	auditLogger := shared.NewAuditLogger(dbpool)
	idemStore := shared.NewIdempotencyStore(dbpool)
	metrics := observability.NewMetrics()

	profileRepo := profiles.NewRepository(dbpool)
	profileService := profiles.NewService(profileRepo, logger)

	authRepo := auth.NewRepository(dbpool)
	authService := auth.NewService(authRepo)
	authHandler := auth.NewHandler(logger, authService, profileService, sessionManager, csrfManager, locales.Default())

	pipelineClient := pipeline.NewClient(cfg.PipelineURL)
	jobsClient := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()

	uploadRepo := uploads.NewRepository(dbpool)
	uploadService := uploads.NewService(uploadRepo)
	uploadHandler := uploads.NewHandler(logger, uploadService, idemStore)

	analysisRepo := analysis.NewRepository(dbpool)
	analysisService := analysis.NewService(analysisRepo, uploadService, jobsClient, pipelineClient, logger)
	analysisHandler := analysis.NewHandler(logger, analysisService)

	comparisonRepo := comparisons.NewRepository(dbpool)
	comparisonService := comparisons.NewService(comparisonRepo, analysisService)
	comparisonHandler := comparisons.NewHandler(logger, comparisonService)

	reportRepo := reports.NewRepository(dbpool)
	reportService := reports.NewService(reportRepo, analysisService, jobsClient, pipelineClient, logger)
	reportHandler := reports.NewHandler(logger, reportService)

	usersHandler := users.NewHandler(logger, profileService, auditLogger)
	supportHandler := support.NewHandler(logger, analysisService, auditLogger)

	table := authz.DefaultTable()
	edge := authz.Middleware{
		Table:            table,
		Verifier:         authService,
		Profiles:         profileService,
		Logger:           logger,
		Metrics:          metrics,
		Locales:          locales.Codes(),
		UserScopeAnyRole: cfg.UserScopeAnyRole,
	}
	guard := &authz.Guard{Profiles: profileService, Logger: logger, Metrics: metrics}
	checkHandler := authz.NewCheckHandler(table, profileService, logger, locales.Default())

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		Locales:            locales,
		SessionManager:     sessionManager,
		CSRFManager:        csrfManager,
		Metrics:            metrics,
		EdgeAuthz:          edge,
		Guard:              guard,
		AuthHandler:        authHandler,
		CheckHandler:       checkHandler,
		UploadsHandler:     uploadHandler,
		AnalysisHandler:    analysisHandler,
		ComparisonsHandler: comparisonHandler,
		ReportsHandler:     reportHandler,
		UsersHandler:       usersHandler,
		SupportHandler:     supportHandler,
		JobsHandler:        jobHandler,
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
