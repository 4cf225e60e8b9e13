package analysis

import (
	"time"

	"github.com/google/uuid"
)

// Run statuses. Transitions are pending -> running -> completed|failed.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Analysis records a single pipeline run over an upload.
type Analysis struct {
	ID        uuid.UUID
	UploadID  uuid.UUID
	OwnerID   int64
	Status    string
	Summary   string
	Error     string
	Flagged   bool
	FlagNote  string
	CreatedAt time.Time
	UpdatedAt time.Time
}
