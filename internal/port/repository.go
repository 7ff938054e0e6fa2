package port

import (
	"context"
	"time"

	"github.com/google/uuid"

	"dealdossier/internal/domain"
)

// UserRepository defines the contract for user persistence.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, userID uuid.UUID) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	// RevokeToken records a token id as unusable until expiresAt. It reports
	// false when the id was already revoked.
	RevokeToken(ctx context.Context, jti string, userID uuid.UUID, expiresAt time.Time) (bool, error)
	IsTokenRevoked(ctx context.Context, jti string) (bool, error)
}

// ProjectFilter narrows a project listing.
type ProjectFilter struct {
	Search string
	Offset int
	Limit  int
}

// ProjectRepository defines the contract for project persistence.
// Reads are scoped to the owning user.
type ProjectRepository interface {
	Create(ctx context.Context, project *domain.Project) error
	GetByID(ctx context.Context, userID, projectID uuid.UUID) (*domain.Project, error)
	List(ctx context.Context, userID uuid.UUID, filter ProjectFilter) ([]domain.Project, int, error)
	Update(ctx context.Context, project *domain.Project) error
	Delete(ctx context.Context, userID, projectID uuid.UUID) error
}

// FileRepository defines the contract for file record persistence.
type FileRepository interface {
	Create(ctx context.Context, file *domain.FileRecord) error
	GetByID(ctx context.Context, fileID uuid.UUID) (*domain.FileRecord, error)
	ListByProject(ctx context.Context, projectID uuid.UUID, status domain.FileStatus, offset, limit int) ([]domain.FileRecord, int, error)
	// ListCompleted returns every completed file of a project, newest first.
	ListCompleted(ctx context.Context, projectID uuid.UUID) ([]domain.FileRecord, error)
	MarkError(ctx context.Context, fileID uuid.UUID, message string) error
	// MarkStale flags uploads stuck before the cutoff as failed and returns how many changed.
	MarkStale(ctx context.Context, before time.Time, message string) (int64, error)
	ListByStatus(ctx context.Context, status domain.FileStatus, projectID *uuid.UUID, offset, limit int) ([]domain.FileRecord, error)
	Delete(ctx context.Context, fileID uuid.UUID) error
}

// EvidenceRepository reads evidence rows.
type EvidenceRepository interface {
	ListByFile(ctx context.Context, fileID uuid.UUID) ([]domain.Evidence, error)
	ListByProject(ctx context.Context, projectID uuid.UUID, offset, limit int) ([]domain.Evidence, int, error)
}

// InsightStore writes an insight and its evidence rows in one transaction.
type InsightStore interface {
	SaveInsight(ctx context.Context, fileID uuid.UUID, insight []byte, evidence []domain.Evidence) error
}

// StatsRepository provides aggregate statistics queries.
type StatsRepository interface {
	GetUserStats(ctx context.Context, userID uuid.UUID) (*domain.DashboardStats, error)
}
