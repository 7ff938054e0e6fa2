package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"dealdossier/internal/domain"
	"dealdossier/internal/port"
)

type evidenceRepo struct {
	db *sqlx.DB
}

// NewEvidenceRepo creates a new PostgreSQL-backed EvidenceRepository.
func NewEvidenceRepo(db *sqlx.DB) port.EvidenceRepository {
	return &evidenceRepo{db: db}
}

func (r *evidenceRepo) ListByFile(ctx context.Context, fileID uuid.UUID) ([]domain.Evidence, error) {
	var rows []domain.Evidence
	err := r.db.SelectContext(ctx, &rows,
		"SELECT * FROM evidence WHERE file_id = $1 ORDER BY created_at DESC, id", fileID)
	if err != nil {
		return nil, fmt.Errorf("evidenceRepo.ListByFile: %w", err)
	}
	return rows, nil
}

func (r *evidenceRepo) ListByProject(ctx context.Context, projectID uuid.UUID, offset, limit int) ([]domain.Evidence, int, error) {
	var total int
	err := r.db.GetContext(ctx, &total,
		`SELECT COUNT(*) FROM evidence e JOIN files f ON f.id = e.file_id WHERE f.project_id = $1`,
		projectID)
	if err != nil {
		return nil, 0, fmt.Errorf("evidenceRepo.ListByProject count: %w", err)
	}

	var rows []domain.Evidence
	err = r.db.SelectContext(ctx, &rows,
		`SELECT e.* FROM evidence e JOIN files f ON f.id = e.file_id
		 WHERE f.project_id = $1
		 ORDER BY e.created_at DESC, e.id LIMIT $2 OFFSET $3`,
		projectID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("evidenceRepo.ListByProject: %w", err)
	}
	return rows, total, nil
}
