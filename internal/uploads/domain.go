package uploads

import (
	"time"

	"github.com/google/uuid"
)

// Upload is the metadata record for a file held in external storage.
// The bytes themselves never pass through this service.
type Upload struct {
	ID          uuid.UUID
	OwnerID     int64
	Filename    string
	SizeBytes   int64
	ContentType string
	StorageKey  string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
