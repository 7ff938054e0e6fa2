package port

import (
	"context"
	"time"

	"github.com/google/uuid"

	"dealdossier/internal/domain"
)

// BatchSnapshot is the observable state of one upload batch.
type BatchSnapshot struct {
	ID        uuid.UUID             `json:"id" msgpack:"id"`
	ProjectID uuid.UUID             `json:"project_id" msgpack:"project_id"`
	UserID    uuid.UUID             `json:"user_id" msgpack:"user_id"`
	Files     []domain.UploadedFile `json:"files" msgpack:"files"`
	Done      bool                  `json:"done" msgpack:"done"`
	Cancelled bool                  `json:"cancelled" msgpack:"cancelled"`
	StartedAt time.Time             `json:"started_at" msgpack:"started_at"`
	UpdatedAt time.Time             `json:"updated_at" msgpack:"updated_at"`
}

// ProgressStore keeps batch snapshots so progress survives the request that started it.
type ProgressStore interface {
	Save(ctx context.Context, snap BatchSnapshot) error
	Get(ctx context.Context, batchID uuid.UUID) (*BatchSnapshot, error)
}
