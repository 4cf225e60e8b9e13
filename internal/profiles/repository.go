package profiles

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/delta-app/delta/internal/authz"
	"github.com/delta-app/delta/internal/shared"
)

// Repository defines persistence operations for profiles.
type Repository interface {
	Get(ctx context.Context, userID int64) (authz.Profile, error)
	Create(ctx context.Context, userID int64, role authz.Role) (authz.Profile, error)
	UpdateRole(ctx context.Context, userID int64, role authz.Role) error
	List(ctx context.Context) ([]authz.Profile, error)
}

const uniqueViolation = "23505"

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// Get fetches a profile by user id.
func (r *PGRepository) Get(ctx context.Context, userID int64) (authz.Profile, error) {
	row := r.pool.QueryRow(ctx, `SELECT id, user_id, role, display_name, created_at, updated_at FROM profiles WHERE user_id = $1`, userID)
	return scanProfile(row)
}

// Create inserts a profile for the user. A concurrent insert for the
// same user surfaces as ErrDuplicate so callers can re-read.
func (r *PGRepository) Create(ctx context.Context, userID int64, role authz.Role) (authz.Profile, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO profiles (user_id, role) VALUES ($1, $2) RETURNING id, user_id, role, display_name, created_at, updated_at`, userID, string(role))
	profile, err := scanProfile(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return authz.Profile{}, ErrDuplicate
		}
		return authz.Profile{}, err
	}
	return profile, nil
}

// UpdateRole changes the role stored for a user.
func (r *PGRepository) UpdateRole(ctx context.Context, userID int64, role authz.Role) error {
	tag, err := r.pool.Exec(ctx, `UPDATE profiles SET role = $2, updated_at = NOW() WHERE user_id = $1`, userID, string(role))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// List returns all profiles ordered by user id.
func (r *PGRepository) List(ctx context.Context) ([]authz.Profile, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, user_id, role, display_name, created_at, updated_at FROM profiles ORDER BY user_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []authz.Profile
	for rows.Next() {
		profile, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, profile)
	}
	return out, rows.Err()
}

func scanProfile(row pgx.Row) (authz.Profile, error) {
	var p authz.Profile
	var role string
	if err := row.Scan(&p.ID, &p.UserID, &role, &p.DisplayName, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return authz.Profile{}, shared.ErrNotFound
		}
		return authz.Profile{}, err
	}
	parsed, err := authz.ParseRole(role)
	if err != nil {
		// A role outside the closed set is a data fault, not a default.
		return authz.Profile{}, err
	}
	p.Role = parsed
	return p, nil
}

// ErrDuplicate signals a lost insert race on the user_id unique index.
var ErrDuplicate = errors.New("profiles: duplicate")

var _ Repository = (*PGRepository)(nil)
