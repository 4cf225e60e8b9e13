package uploads

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/delta-app/delta/internal/shared"
)

// Repository defines persistence operations for upload metadata.
type Repository interface {
	Create(ctx context.Context, u Upload) (Upload, error)
	Get(ctx context.Context, id uuid.UUID, ownerID int64) (Upload, error)
	ListByOwner(ctx context.Context, ownerID int64, limit, offset int) ([]Upload, int, error)
	Delete(ctx context.Context, id uuid.UUID, ownerID int64) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// Create inserts an upload record.
func (r *PGRepository) Create(ctx context.Context, u Upload) (Upload, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO uploads (id, owner_id, filename, size_bytes, content_type, storage_key)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, owner_id, filename, size_bytes, content_type, storage_key, created_at, updated_at`,
		u.ID, u.OwnerID, u.Filename, u.SizeBytes, u.ContentType, u.StorageKey)
	return scanUpload(row)
}

// Get fetches an upload owned by the given user.
func (r *PGRepository) Get(ctx context.Context, id uuid.UUID, ownerID int64) (Upload, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, owner_id, filename, size_bytes, content_type, storage_key, created_at, updated_at
		 FROM uploads WHERE id = $1 AND owner_id = $2`, id, ownerID)
	return scanUpload(row)
}

// ListByOwner returns one page of the owner's uploads, newest first,
// along with the owner's total upload count.
func (r *PGRepository) ListByOwner(ctx context.Context, ownerID int64, limit, offset int) ([]Upload, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM uploads WHERE owner_id = $1`, ownerID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, owner_id, filename, size_bytes, content_type, storage_key, created_at, updated_at
		 FROM uploads WHERE owner_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		ownerID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Upload
	for rows.Next() {
		u, err := scanUpload(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, u)
	}
	return out, total, rows.Err()
}

// Delete removes an upload owned by the given user.
func (r *PGRepository) Delete(ctx context.Context, id uuid.UUID, ownerID int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM uploads WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func scanUpload(row pgx.Row) (Upload, error) {
	var u Upload
	if err := row.Scan(&u.ID, &u.OwnerID, &u.Filename, &u.SizeBytes, &u.ContentType, &u.StorageKey, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Upload{}, shared.ErrNotFound
		}
		return Upload{}, err
	}
	return u, nil
}
