package analysis

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/delta-app/delta/internal/shared"
)

const selectColumns = `id, upload_id, owner_id, status, summary, error, flagged, flag_note, created_at, updated_at`

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a pending analysis row.
func (r *Repository) Create(ctx context.Context, id, uploadID uuid.UUID, ownerID int64) (Analysis, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO analyses (id, upload_id, owner_id, status) VALUES ($1, $2, $3, $4)
		 RETURNING `+selectColumns, id, uploadID, ownerID, StatusPending)
	return scanAnalysis(row)
}

// Get fetches an analysis by id without ownership filtering. Callers
// enforce access.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (Analysis, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+selectColumns+` FROM analyses WHERE id = $1`, id)
	return scanAnalysis(row)
}

// ListByOwner returns the owner's analyses, newest first.
func (r *Repository) ListByOwner(ctx context.Context, ownerID int64) ([]Analysis, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+selectColumns+` FROM analyses WHERE owner_id = $1 ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collect(rows)
}

// ListRecent returns the most recent analyses across all tenants, for
// the support review queue.
func (r *Repository) ListRecent(ctx context.Context, limit int) ([]Analysis, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+selectColumns+` FROM analyses ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collect(rows)
}

// SetStatus transitions a run, optionally recording summary or error.
func (r *Repository) SetStatus(ctx context.Context, id uuid.UUID, status, summary, errMsg string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE analyses SET status = $2, summary = $3, error = $4, updated_at = NOW() WHERE id = $1`,
		id, status, summary, errMsg)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Flag marks an analysis for follow-up with a reviewer note.
func (r *Repository) Flag(ctx context.Context, id uuid.UUID, note string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE analyses SET flagged = TRUE, flag_note = $2, updated_at = NOW() WHERE id = $1`, id, note)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func collect(rows pgx.Rows) ([]Analysis, error) {
	var out []Analysis
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func scanAnalysis(row pgx.Row) (Analysis, error) {
	var a Analysis
	if err := row.Scan(&a.ID, &a.UploadID, &a.OwnerID, &a.Status, &a.Summary, &a.Error, &a.Flagged, &a.FlagNote, &a.CreatedAt, &a.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Analysis{}, shared.ErrNotFound
		}
		return Analysis{}, err
	}
	return a, nil
}
