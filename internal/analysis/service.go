package analysis

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/delta-app/delta/internal/shared"
	"github.com/delta-app/delta/internal/uploads"
)

// Enqueuer submits an analysis run to the background queue.
type Enqueuer interface {
	EnqueueAnalysisRun(ctx context.Context, analysisID uuid.UUID) error
}

// Runner invokes the external pipeline for a stored upload.
type Runner interface {
	Analyze(ctx context.Context, storageKey string) (string, error)
}

// Service sequences analysis runs. The computation itself happens in
// the external pipeline; this service records and transitions state.
type Service struct {
	repo     *Repository
	uploads  *uploads.Service
	enqueuer Enqueuer
	runner   Runner
	logger   *slog.Logger
}

// NewService constructs a Service.
func NewService(repo *Repository, uploadsSvc *uploads.Service, enqueuer Enqueuer, runner Runner, logger *slog.Logger) *Service {
	return &Service{repo: repo, uploads: uploadsSvc, enqueuer: enqueuer, runner: runner, logger: logger}
}

// Trigger creates a pending run for an upload the caller owns and
// enqueues it. The returned record is already visible to the caller.
func (s *Service) Trigger(ctx context.Context, ownerID int64, uploadID uuid.UUID) (Analysis, error) {
	if _, err := s.uploads.Get(ctx, uploadID, ownerID); err != nil {
		return Analysis{}, err
	}
	run, err := s.repo.Create(ctx, uuid.New(), uploadID, ownerID)
	if err != nil {
		return Analysis{}, err
	}
	if err := s.enqueuer.EnqueueAnalysisRun(ctx, run.ID); err != nil {
		// The row stays pending; a requeue sweep or retry can pick it up.
		if s.logger != nil {
			s.logger.Error("enqueue analysis run", slog.Any("error", err), slog.String("analysis_id", run.ID.String()))
		}
		return Analysis{}, err
	}
	return run, nil
}

// Get returns an analysis when the caller owns it.
func (s *Service) Get(ctx context.Context, id uuid.UUID, ownerID int64) (Analysis, error) {
	run, err := s.repo.Get(ctx, id)
	if err != nil {
		return Analysis{}, err
	}
	if run.OwnerID != ownerID {
		return Analysis{}, shared.ErrNotFound
	}
	return run, nil
}

// List returns the caller's analyses.
func (s *Service) List(ctx context.Context, ownerID int64) ([]Analysis, error) {
	return s.repo.ListByOwner(ctx, ownerID)
}

// ListRecent returns recent analyses across tenants for review.
func (s *Service) ListRecent(ctx context.Context, limit int) ([]Analysis, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.repo.ListRecent(ctx, limit)
}

// Flag marks an analysis for reviewer follow-up.
func (s *Service) Flag(ctx context.Context, id uuid.UUID, note string) error {
	return s.repo.Flag(ctx, id, note)
}

// Run executes a queued analysis on the worker: marks it running,
// invokes the pipeline, and records the outcome.
func (s *Service) Run(ctx context.Context, analysisID uuid.UUID) error {
	run, err := s.repo.Get(ctx, analysisID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			// Deleted before the worker got to it; nothing to retry.
			return nil
		}
		return err
	}
	if run.Status != StatusPending {
		return nil
	}
	if err := s.repo.SetStatus(ctx, analysisID, StatusRunning, "", ""); err != nil {
		return err
	}

	upload, err := s.uploads.Get(ctx, run.UploadID, run.OwnerID)
	if err != nil {
		return s.repo.SetStatus(ctx, analysisID, StatusFailed, "", "upload no longer available")
	}

	summary, err := s.runner.Analyze(ctx, upload.StorageKey)
	if err != nil {
		if s.logger != nil {
			s.logger.Error("pipeline analyze", slog.Any("error", err), slog.String("analysis_id", analysisID.String()))
		}
		return s.repo.SetStatus(ctx, analysisID, StatusFailed, "", err.Error())
	}
	return s.repo.SetStatus(ctx, analysisID, StatusCompleted, summary, "")
}
