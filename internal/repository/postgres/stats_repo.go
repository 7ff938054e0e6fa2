package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"dealdossier/internal/domain"
	"dealdossier/internal/port"
)

type statsRepo struct {
	db *sqlx.DB
}

// NewStatsRepo creates a new PostgreSQL-backed StatsRepository.
func NewStatsRepo(db *sqlx.DB) port.StatsRepository {
	return &statsRepo{db: db}
}

const userFileStatsQuery = `SELECT
	COUNT(f.id) AS total_files,
	COUNT(CASE WHEN f.upload_status = 'completed' THEN 1 END) AS files_processed,
	COUNT(CASE WHEN f.upload_status IN ('ready', 'uploading') THEN 1 END) AS files_processing,
	COUNT(CASE WHEN f.upload_status = 'error' THEN 1 END) AS files_failed,
	COALESCE(SUM(f.size), 0)::bigint AS storage_bytes
FROM files f
INNER JOIN projects p ON p.id = f.project_id
WHERE p.user_id = $1`

const userEvidenceCountQuery = `SELECT COUNT(e.id)
FROM evidence e
INNER JOIN files f ON f.id = e.file_id
INNER JOIN projects p ON p.id = f.project_id
WHERE p.user_id = $1`

func (r *statsRepo) GetUserStats(ctx context.Context, userID uuid.UUID) (*domain.DashboardStats, error) {
	var stats domain.DashboardStats
	if err := r.db.GetContext(ctx, &stats, userFileStatsQuery, userID); err != nil {
		return nil, fmt.Errorf("statsRepo.GetUserStats files: %w", err)
	}

	if err := r.db.GetContext(ctx, &stats.TotalProjects,
		"SELECT COUNT(*) FROM projects WHERE user_id = $1", userID); err != nil {
		return nil, fmt.Errorf("statsRepo.GetUserStats projects: %w", err)
	}

	if err := r.db.GetContext(ctx, &stats.InsightsGenerated, userEvidenceCountQuery, userID); err != nil {
		return nil, fmt.Errorf("statsRepo.GetUserStats evidence: %w", err)
	}

	return &stats, nil
}
