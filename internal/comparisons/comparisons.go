// Package comparisons pairs two completed analyses owned by the same
// caller and records the side-by-side result.
package comparisons

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/delta-app/delta/internal/analysis"
	"github.com/delta-app/delta/internal/shared"
)

// ErrNotComparable indicates one of the analyses is not completed.
var ErrNotComparable = errors.New("comparisons: analyses must be completed")

// Comparison links two analyses and their summaries at comparison time.
type Comparison struct {
	ID           uuid.UUID
	OwnerID      int64
	LeftID       uuid.UUID
	RightID      uuid.UUID
	LeftSummary  string
	RightSummary string
	CreatedAt    time.Time
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a comparison row.
func (r *Repository) Create(ctx context.Context, c Comparison) (Comparison, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO comparisons (id, owner_id, left_id, right_id, left_summary, right_summary)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, owner_id, left_id, right_id, left_summary, right_summary, created_at`,
		c.ID, c.OwnerID, c.LeftID, c.RightID, c.LeftSummary, c.RightSummary)
	return scanComparison(row)
}

// ListByOwner returns the owner's comparisons, newest first.
func (r *Repository) ListByOwner(ctx context.Context, ownerID int64) ([]Comparison, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, owner_id, left_id, right_id, left_summary, right_summary, created_at
		 FROM comparisons WHERE owner_id = $1 ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Comparison
	for rows.Next() {
		c, err := scanComparison(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanComparison(row pgx.Row) (Comparison, error) {
	var c Comparison
	if err := row.Scan(&c.ID, &c.OwnerID, &c.LeftID, &c.RightID, &c.LeftSummary, &c.RightSummary, &c.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Comparison{}, shared.ErrNotFound
		}
		return Comparison{}, err
	}
	return c, nil
}

// Service wraps comparison business rules.
type Service struct {
	repo     *Repository
	analyses *analysis.Service
}

// NewService constructs a Service.
func NewService(repo *Repository, analyses *analysis.Service) *Service {
	return &Service{repo: repo, analyses: analyses}
}

// Compare snapshots two completed analyses the caller owns.
func (s *Service) Compare(ctx context.Context, ownerID int64, leftID, rightID uuid.UUID) (Comparison, error) {
	left, err := s.analyses.Get(ctx, leftID, ownerID)
	if err != nil {
		return Comparison{}, err
	}
	right, err := s.analyses.Get(ctx, rightID, ownerID)
	if err != nil {
		return Comparison{}, err
	}
	if left.Status != analysis.StatusCompleted || right.Status != analysis.StatusCompleted {
		return Comparison{}, ErrNotComparable
	}
	return s.repo.Create(ctx, Comparison{
		ID:           uuid.New(),
		OwnerID:      ownerID,
		LeftID:       left.ID,
		RightID:      right.ID,
		LeftSummary:  left.Summary,
		RightSummary: right.Summary,
	})
}

// List returns the caller's comparisons.
func (s *Service) List(ctx context.Context, ownerID int64) ([]Comparison, error) {
	return s.repo.ListByOwner(ctx, ownerID)
}
