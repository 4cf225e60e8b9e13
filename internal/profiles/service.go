package profiles

import (
	"context"
	"errors"
	"log/slog"

	"github.com/delta-app/delta/internal/authz"
	"github.com/delta-app/delta/internal/shared"
)

// Service exposes profile resolution to the authorization layer and
// profile administration to the admin surface.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

// NewService constructs a Service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// GetOrCreate returns the user's profile, provisioning a default
// user-role record when the identity exists without one. Idempotent
// under concurrent first requests.
func (s *Service) GetOrCreate(ctx context.Context, userID int64) (authz.Profile, error) {
	profile, err := s.repo.Get(ctx, userID)
	if err == nil {
		return profile, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return authz.Profile{}, err
	}

	profile, err = s.repo.Create(ctx, userID, authz.RoleUser)
	if err == nil {
		if s.logger != nil {
			s.logger.Info("provisioned default profile", slog.Int64("user_id", userID))
		}
		return profile, nil
	}
	if errors.Is(err, ErrDuplicate) {
		// Lost the insert race; the winner's row is authoritative.
		return s.repo.Get(ctx, userID)
	}
	return authz.Profile{}, err
}

// RoleOf reports the user's role. Missing profiles read as the lowest
// privilege; corrupt role values propagate as ErrUnknownRole.
func (s *Service) RoleOf(ctx context.Context, userID int64) (authz.Role, error) {
	profile, err := s.repo.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return authz.RoleUser, nil
		}
		return "", err
	}
	return profile.Role, nil
}

// List returns all profiles.
func (s *Service) List(ctx context.Context) ([]authz.Profile, error) {
	return s.repo.List(ctx)
}

// SetRole assigns a role from the closed set to a user.
func (s *Service) SetRole(ctx context.Context, userID int64, raw string) (authz.Role, error) {
	role, err := authz.ParseRole(raw)
	if err != nil {
		return "", err
	}
	if err := s.repo.UpdateRole(ctx, userID, role); err != nil {
		return "", err
	}
	return role, nil
}

var _ authz.ProfileSource = (*Service)(nil)
