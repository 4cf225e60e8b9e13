package profiles

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/delta-app/delta/internal/authz"
	"github.com/delta-app/delta/internal/shared"
	_ "github.com/delta-app/delta/testing"
)

type mockRepository struct {
	profiles map[int64]authz.Profile
	nextID   int64

	getErr       error
	createErr    error
	updateErr    error
	createdRoles []authz.Role
}

func newMockRepository() *mockRepository {
	return &mockRepository{profiles: make(map[int64]authz.Profile), nextID: 1}
}

func (m *mockRepository) Get(ctx context.Context, userID int64) (authz.Profile, error) {
	if m.getErr != nil {
		return authz.Profile{}, m.getErr
	}
	p, ok := m.profiles[userID]
	if !ok {
		return authz.Profile{}, shared.ErrNotFound
	}
	return p, nil
}

func (m *mockRepository) Create(ctx context.Context, userID int64, role authz.Role) (authz.Profile, error) {
	m.createdRoles = append(m.createdRoles, role)
	if m.createErr != nil {
		return authz.Profile{}, m.createErr
	}
	if _, exists := m.profiles[userID]; exists {
		return authz.Profile{}, ErrDuplicate
	}
	p := authz.Profile{ID: m.nextID, UserID: userID, Role: role}
	m.nextID++
	m.profiles[userID] = p
	return p, nil
}

func (m *mockRepository) UpdateRole(ctx context.Context, userID int64, role authz.Role) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	p, ok := m.profiles[userID]
	if !ok {
		return shared.ErrNotFound
	}
	p.Role = role
	m.profiles[userID] = p
	return nil
}

func (m *mockRepository) List(ctx context.Context) ([]authz.Profile, error) {
	out := make([]authz.Profile, 0, len(m.profiles))
	for _, p := range m.profiles {
		out = append(out, p)
	}
	return out, nil
}

func TestGetOrCreateProvisionsDefault(t *testing.T) {
	repo := newMockRepository()
	svc := NewService(repo, nil)

	p, err := svc.GetOrCreate(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, authz.RoleUser, p.Role, "new profiles start at the lowest privilege")
	assert.Equal(t, int64(42), p.UserID)

	// Second call reads the existing row, no second insert.
	again, err := svc.GetOrCreate(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, p.ID, again.ID)
	assert.Len(t, repo.createdRoles, 1)
}

func TestGetOrCreateLosesInsertRace(t *testing.T) {
	repo := newMockRepository()

	winner := authz.Profile{ID: 9, UserID: 42, Role: authz.RoleSupport}
	repo.createErr = ErrDuplicate
	repo.profiles[42] = winner

	// First read misses, insert collides, re-read returns the winner.
	calls := 0
	svc := NewService(&racingRepo{mockRepository: repo, missFirst: &calls}, nil)

	p, err := svc.GetOrCreate(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, winner, p)
}

// racingRepo reports NotFound on the first Get only, simulating a
// concurrent insert landing between the read and the create.
type racingRepo struct {
	*mockRepository
	missFirst *int
}

func (r *racingRepo) Get(ctx context.Context, userID int64) (authz.Profile, error) {
	*r.missFirst++
	if *r.missFirst == 1 {
		return authz.Profile{}, shared.ErrNotFound
	}
	p, ok := r.profiles[userID]
	if !ok {
		return authz.Profile{}, shared.ErrNotFound
	}
	return p, nil
}

func TestGetOrCreatePropagatesStoreFailure(t *testing.T) {
	repo := newMockRepository()
	repo.getErr = errors.New("pg down")
	svc := NewService(repo, nil)

	_, err := svc.GetOrCreate(context.Background(), 42)
	require.Error(t, err)
	assert.NotErrorIs(t, err, shared.ErrNotFound)
}

func TestRoleOfDefaultsMissingProfile(t *testing.T) {
	repo := newMockRepository()
	svc := NewService(repo, nil)

	role, err := svc.RoleOf(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, authz.RoleUser, role)
}

func TestRoleOfPropagatesUnknownRole(t *testing.T) {
	repo := newMockRepository()
	repo.getErr = authz.ErrUnknownRole
	svc := NewService(repo, nil)

	_, err := svc.RoleOf(context.Background(), 42)
	require.ErrorIs(t, err, authz.ErrUnknownRole)
}

func TestSetRole(t *testing.T) {
	repo := newMockRepository()
	repo.profiles[42] = authz.Profile{ID: 1, UserID: 42, Role: authz.RoleUser}
	svc := NewService(repo, nil)

	role, err := svc.SetRole(context.Background(), 42, "support")
	require.NoError(t, err)
	assert.Equal(t, authz.RoleSupport, role)
	assert.Equal(t, authz.RoleSupport, repo.profiles[42].Role)

	_, err = svc.SetRole(context.Background(), 42, "owner")
	require.ErrorIs(t, err, authz.ErrUnknownRole)
	assert.Equal(t, authz.RoleSupport, repo.profiles[42].Role, "invalid input leaves the row untouched")

	_, err = svc.SetRole(context.Background(), 99, "admin")
	require.ErrorIs(t, err, shared.ErrNotFound)
}
