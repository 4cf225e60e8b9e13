// Package reports sequences report builds. Formatting happens in the
// external pipeline; Delta records requests and outcomes.
package reports

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/delta-app/delta/internal/analysis"
	"github.com/delta-app/delta/internal/shared"
)

// Build statuses. Transitions are pending -> completed|failed.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Report kinds accepted from callers.
const (
	KindSummary  = "summary"
	KindDetailed = "detailed"
)

// Report records one build request.
type Report struct {
	ID         uuid.UUID
	OwnerID    int64
	Kind       string
	Status     string
	StorageKey string
	Error      string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const selectColumns = `id, owner_id, kind, status, storage_key, error, created_at, updated_at`

// Create inserts a pending report row.
func (r *Repository) Create(ctx context.Context, id uuid.UUID, ownerID int64, kind string) (Report, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO reports (id, owner_id, kind, status) VALUES ($1, $2, $3, $4)
		 RETURNING `+selectColumns, id, ownerID, kind, StatusPending)
	return scanReport(row)
}

// Get fetches a report by id.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (Report, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+selectColumns+` FROM reports WHERE id = $1`, id)
	return scanReport(row)
}

// ListByOwner returns the owner's reports, newest first.
func (r *Repository) ListByOwner(ctx context.Context, ownerID int64) ([]Report, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+selectColumns+` FROM reports WHERE owner_id = $1 ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Report
	for rows.Next() {
		rep, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rep)
	}
	return out, rows.Err()
}

// SetStatus transitions a build.
func (r *Repository) SetStatus(ctx context.Context, id uuid.UUID, status, storageKey, errMsg string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE reports SET status = $2, storage_key = $3, error = $4, updated_at = NOW() WHERE id = $1`,
		id, status, storageKey, errMsg)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func scanReport(row pgx.Row) (Report, error) {
	var rep Report
	if err := row.Scan(&rep.ID, &rep.OwnerID, &rep.Kind, &rep.Status, &rep.StorageKey, &rep.Error, &rep.CreatedAt, &rep.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Report{}, shared.ErrNotFound
		}
		return Report{}, err
	}
	return rep, nil
}

// Enqueuer submits a report build to the background queue.
type Enqueuer interface {
	EnqueueReportBuild(ctx context.Context, reportID uuid.UUID) error
}

// Builder invokes the external pipeline's report assembly.
type Builder interface {
	BuildReport(ctx context.Context, kind string, analysisIDs []string) (string, error)
}

// Service wraps report business rules.
type Service struct {
	repo     *Repository
	analyses *analysis.Service
	enqueuer Enqueuer
	builder  Builder
	logger   *slog.Logger
}

// NewService constructs a Service.
func NewService(repo *Repository, analyses *analysis.Service, enqueuer Enqueuer, builder Builder, logger *slog.Logger) *Service {
	return &Service{repo: repo, analyses: analyses, enqueuer: enqueuer, builder: builder, logger: logger}
}

// Request creates a pending report and enqueues its build.
func (s *Service) Request(ctx context.Context, ownerID int64, kind string) (Report, error) {
	if kind != KindSummary && kind != KindDetailed {
		return Report{}, errors.New("reports: unknown kind")
	}
	rep, err := s.repo.Create(ctx, uuid.New(), ownerID, kind)
	if err != nil {
		return Report{}, err
	}
	if err := s.enqueuer.EnqueueReportBuild(ctx, rep.ID); err != nil {
		if s.logger != nil {
			s.logger.Error("enqueue report build", slog.Any("error", err), slog.String("report_id", rep.ID.String()))
		}
		return Report{}, err
	}
	return rep, nil
}

// Get returns a report when the caller owns it.
func (s *Service) Get(ctx context.Context, id uuid.UUID, ownerID int64) (Report, error) {
	rep, err := s.repo.Get(ctx, id)
	if err != nil {
		return Report{}, err
	}
	if rep.OwnerID != ownerID {
		return Report{}, shared.ErrNotFound
	}
	return rep, nil
}

// List returns the caller's reports.
func (s *Service) List(ctx context.Context, ownerID int64) ([]Report, error) {
	return s.repo.ListByOwner(ctx, ownerID)
}

// Build executes a queued report build on the worker.
func (s *Service) Build(ctx context.Context, reportID uuid.UUID) error {
	rep, err := s.repo.Get(ctx, reportID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil
		}
		return err
	}
	if rep.Status != StatusPending {
		return nil
	}

	runs, err := s.analyses.List(ctx, rep.OwnerID)
	if err != nil {
		return err
	}
	ids := make([]string, 0, len(runs))
	for _, run := range runs {
		if run.Status == analysis.StatusCompleted {
			ids = append(ids, run.ID.String())
		}
	}

	storageKey, err := s.builder.BuildReport(ctx, rep.Kind, ids)
	if err != nil {
		if s.logger != nil {
			s.logger.Error("pipeline report build", slog.Any("error", err), slog.String("report_id", reportID.String()))
		}
		return s.repo.SetStatus(ctx, reportID, StatusFailed, "", err.Error())
	}
	return s.repo.SetStatus(ctx, reportID, StatusCompleted, storageKey, "")
}
