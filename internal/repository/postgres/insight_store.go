package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"dealdossier/internal/domain"
	"dealdossier/internal/port"
)

type insightStore struct {
	db *sqlx.DB
}

// NewInsightStore creates a PostgreSQL-backed InsightStore.
func NewInsightStore(db *sqlx.DB) port.InsightStore {
	return &insightStore{db: db}
}

// SaveInsight completes the file and replaces its evidence inside one transaction.
func (s *insightStore) SaveInsight(ctx context.Context, fileID uuid.UUID, insight []byte, evidence []domain.Evidence) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("insightStore.SaveInsight begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()
	result, err := tx.ExecContext(ctx,
		`UPDATE files SET insights = $1::jsonb, upload_status = $2, processing_progress = 100,
		 error_message = '', updated_at = $3 WHERE id = $4`,
		string(insight), domain.FileStatusCompleted, now, fileID)
	if err != nil {
		return fmt.Errorf("insightStore.SaveInsight update: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM evidence WHERE file_id = $1", fileID); err != nil {
		return fmt.Errorf("insightStore.SaveInsight clear evidence: %w", err)
	}

	for i := range evidence {
		ev := &evidence[i]
		if ev.ID == uuid.Nil {
			ev.ID = uuid.New()
		}
		ev.FileID = fileID
		ev.CreatedAt = now
		_, err := tx.ExecContext(ctx,
			`INSERT INTO evidence (id, file_id, content, confidence, created_at)
			 VALUES ($1, $2, $3, $4, $5)`,
			ev.ID, ev.FileID, ev.Content, domain.ClampConfidence(ev.Confidence), ev.CreatedAt)
		if err != nil {
			return fmt.Errorf("insightStore.SaveInsight evidence: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("insightStore.SaveInsight commit: %w", err)
	}
	return nil
}
