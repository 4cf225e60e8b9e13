package uploads

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/delta-app/delta/internal/shared"
	_ "github.com/delta-app/delta/testing"
)

type stubRepository struct {
	uploads    []Upload
	total      int
	err        error
	lastLimit  int
	lastOffset int
}

func (s *stubRepository) Create(_ context.Context, u Upload) (Upload, error) {
	if s.err != nil {
		return Upload{}, s.err
	}
	s.uploads = append(s.uploads, u)
	return u, nil
}

func (s *stubRepository) Get(_ context.Context, id uuid.UUID, ownerID int64) (Upload, error) {
	for _, u := range s.uploads {
		if u.ID == id && u.OwnerID == ownerID {
			return u, nil
		}
	}
	return Upload{}, shared.ErrNotFound
}

func (s *stubRepository) ListByOwner(_ context.Context, _ int64, limit, offset int) ([]Upload, int, error) {
	s.lastLimit = limit
	s.lastOffset = offset
	if s.err != nil {
		return nil, 0, s.err
	}
	if offset >= len(s.uploads) {
		return nil, s.total, nil
	}
	end := offset + limit
	if end > len(s.uploads) {
		end = len(s.uploads)
	}
	return s.uploads[offset:end], s.total, nil
}

func (s *stubRepository) Delete(_ context.Context, id uuid.UUID, ownerID int64) error {
	for i, u := range s.uploads {
		if u.ID == id && u.OwnerID == ownerID {
			s.uploads = append(s.uploads[:i], s.uploads[i+1:]...)
			return nil
		}
	}
	return shared.ErrNotFound
}

func seedUploads(n int) []Upload {
	out := make([]Upload, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, Upload{ID: uuid.New(), OwnerID: 1, Filename: "f", SizeBytes: 1})
	}
	return out
}

func TestListPushesPagingIntoRepository(t *testing.T) {
	repo := &stubRepository{uploads: seedUploads(25), total: 25}
	svc := NewService(repo)

	items, meta, err := svc.List(context.Background(), 1, 2, 10)
	require.NoError(t, err)

	assert.Equal(t, 10, repo.lastLimit)
	assert.Equal(t, 10, repo.lastOffset)
	assert.Len(t, items, 10)
	assert.Equal(t, shared.Pagination{Page: 2, PerPage: 10, Total: 25, TotalPages: 3}, meta)
}

func TestListClampsPagingInputs(t *testing.T) {
	repo := &stubRepository{uploads: seedUploads(3), total: 3}
	svc := NewService(repo)

	items, meta, err := svc.List(context.Background(), 1, 0, -5)
	require.NoError(t, err)

	assert.Equal(t, 20, repo.lastLimit)
	assert.Equal(t, 0, repo.lastOffset)
	assert.Len(t, items, 3)
	assert.Equal(t, 1, meta.Page)
	assert.Equal(t, 20, meta.PerPage)
}

func TestListPropagatesRepositoryError(t *testing.T) {
	repo := &stubRepository{err: errors.New("connection refused")}
	svc := NewService(repo)

	_, _, err := svc.List(context.Background(), 1, 1, 10)
	require.Error(t, err)
}

func TestRegisterRejectsBlankFilename(t *testing.T) {
	repo := &stubRepository{}
	svc := NewService(repo)

	_, err := svc.Register(context.Background(), 1, "   ", "text/plain", 10)
	require.Error(t, err)
	assert.Empty(t, repo.uploads)
}
