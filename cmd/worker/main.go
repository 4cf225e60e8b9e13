package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/delta-app/delta/internal/analysis"
	"github.com/delta-app/delta/internal/app"
	"github.com/delta-app/delta/internal/pipeline"
	"github.com/delta-app/delta/internal/platform/db"
	"github.com/delta-app/delta/internal/reports"
	"github.com/delta-app/delta/internal/uploads"
	"github.com/delta-app/delta/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
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

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	pipelineClient := pipeline.NewClient(cfg.PipelineURL)
	if err := pipelineClient.Ping(ctx); err != nil {
		logger.Warn("pipeline ping", slog.Any("error", err))
	}

	jobsClient := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()

	uploadService := uploads.NewService(uploads.NewRepository(pool))
	analysisService := analysis.NewService(analysis.NewRepository(pool), uploadService, jobsClient, pipelineClient, logger)
	reportService := reports.NewService(reports.NewRepository(pool), analysisService, jobsClient, pipelineClient, logger)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:      logger,
		AnalysisRun: &jobs.AnalysisRunJob{Service: analysisService, Logger: logger},
		ReportBuild: &jobs.ReportBuildJob{Service: reportService, Logger: logger},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
