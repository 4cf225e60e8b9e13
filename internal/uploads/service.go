package uploads

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/delta-app/delta/internal/shared"
)

// Service wraps upload metadata rules.
type Service struct {
	repo Repository
}

// NewService constructs a new Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Register records metadata for a file already placed in external
// storage by the client.
func (s *Service) Register(ctx context.Context, ownerID int64, filename, contentType string, sizeBytes int64) (Upload, error) {
	filename = strings.TrimSpace(filename)
	if filename == "" {
		return Upload{}, fmt.Errorf("uploads: filename required")
	}
	if sizeBytes <= 0 {
		return Upload{}, fmt.Errorf("uploads: size must be positive")
	}
	id := uuid.New()
	return s.repo.Create(ctx, Upload{
		ID:          id,
		OwnerID:     ownerID,
		Filename:    filename,
		SizeBytes:   sizeBytes,
		ContentType: contentType,
		StorageKey:  fmt.Sprintf("uploads/%d/%s", ownerID, id),
	})
}

// Get returns the owner's upload.
func (s *Service) Get(ctx context.Context, id uuid.UUID, ownerID int64) (Upload, error) {
	return s.repo.Get(ctx, id, ownerID)
}

// List returns one page of the owner's uploads plus pagination
// metadata. Out-of-range page and per_page values are clamped before
// the query runs, so the offset handed to the repository is never
// negative.
func (s *Service) List(ctx context.Context, ownerID int64, page, perPage int) ([]Upload, shared.Pagination, error) {
	meta := shared.NewPagination(page, perPage, 0)
	items, total, err := s.repo.ListByOwner(ctx, ownerID, meta.PerPage, (meta.Page-1)*meta.PerPage)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return items, shared.NewPagination(meta.Page, meta.PerPage, total), nil
}

// Delete removes the owner's upload record.
func (s *Service) Delete(ctx context.Context, id uuid.UUID, ownerID int64) error {
	return s.repo.Delete(ctx, id, ownerID)
}
