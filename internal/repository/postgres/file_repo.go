package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"dealdossier/internal/domain"
	"dealdossier/internal/port"
)

// fileRow scans the nullable insights column separately from the domain record.
type fileRow struct {
	domain.FileRecord
	RawInsights []byte `db:"insights"`
}

func (r fileRow) toDomain() domain.FileRecord {
	rec := r.FileRecord
	if len(r.RawInsights) > 0 {
		rec.Insights = json.RawMessage(r.RawInsights)
	}
	return rec
}

func toDomainFiles(rows []fileRow) []domain.FileRecord {
	out := make([]domain.FileRecord, len(rows))
	for i := range rows {
		out[i] = rows[i].toDomain()
	}
	return out
}

type fileRepo struct {
	db *sqlx.DB
}

// NewFileRepo creates a new PostgreSQL-backed FileRepository.
func NewFileRepo(db *sqlx.DB) port.FileRepository {
	return &fileRepo{db: db}
}

func (r *fileRepo) Create(ctx context.Context, file *domain.FileRecord) error {
	if file.ID == uuid.Nil {
		file.ID = uuid.New()
	}
	now := time.Now().UTC()
	file.CreatedAt = now
	file.UpdatedAt = now

	query := `INSERT INTO files
		(id, project_id, name, type, size, file_url, upload_status, processing_progress,
		 error_message, uploaded_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := r.db.ExecContext(ctx, query,
		file.ID, file.ProjectID, file.Name, file.Type, file.Size, file.FileURL,
		file.UploadStatus, file.ProcessingProgress, file.ErrorMessage, file.UploadedBy,
		file.CreatedAt, file.UpdatedAt)
	if err != nil {
		return fmt.Errorf("fileRepo.Create: %w", err)
	}
	return nil
}

func (r *fileRepo) GetByID(ctx context.Context, fileID uuid.UUID) (*domain.FileRecord, error) {
	var row fileRow
	err := r.db.GetContext(ctx, &row, "SELECT * FROM files WHERE id = $1", fileID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("fileRepo.GetByID: %w", err)
	}
	rec := row.toDomain()
	return &rec, nil
}

func (r *fileRepo) ListByProject(ctx context.Context, projectID uuid.UUID, status domain.FileStatus, offset, limit int) ([]domain.FileRecord, int, error) {
	where := "WHERE project_id = $1"
	args := []interface{}{projectID}
	if status != "" {
		where += " AND upload_status = $2"
		args = append(args, status)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM files "+where, args...); err != nil {
		return nil, 0, fmt.Errorf("fileRepo.ListByProject count: %w", err)
	}

	n := len(args)
	query := fmt.Sprintf("SELECT * FROM files %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d", where, n+1, n+2)
	args = append(args, limit, offset)

	var rows []fileRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("fileRepo.ListByProject: %w", err)
	}
	return toDomainFiles(rows), total, nil
}

func (r *fileRepo) ListCompleted(ctx context.Context, projectID uuid.UUID) ([]domain.FileRecord, error) {
	var rows []fileRow
	err := r.db.SelectContext(ctx, &rows,
		`SELECT * FROM files WHERE project_id = $1 AND upload_status = $2
		 ORDER BY created_at DESC, id`,
		projectID, domain.FileStatusCompleted)
	if err != nil {
		return nil, fmt.Errorf("fileRepo.ListCompleted: %w", err)
	}
	return toDomainFiles(rows), nil
}

// MarkError moves the record to the error state. Progress resets to 0 and any insight is cleared.
func (r *fileRepo) MarkError(ctx context.Context, fileID uuid.UUID, message string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE files SET upload_status = $1, processing_progress = 0, insights = NULL,
		 error_message = $2, updated_at = $3 WHERE id = $4`,
		domain.FileStatusError, message, time.Now().UTC(), fileID)
	if err != nil {
		return fmt.Errorf("fileRepo.MarkError: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *fileRepo) MarkStale(ctx context.Context, before time.Time, message string) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE files SET upload_status = $1, processing_progress = 0, error_message = $2, updated_at = $3
		 WHERE upload_status = $4 AND updated_at < $5`,
		domain.FileStatusError, message, time.Now().UTC(), domain.FileStatusUploading, before)
	if err != nil {
		return 0, fmt.Errorf("fileRepo.MarkStale: %w", err)
	}
	return result.RowsAffected()
}

func (r *fileRepo) ListByStatus(ctx context.Context, status domain.FileStatus, projectID *uuid.UUID, offset, limit int) ([]domain.FileRecord, error) {
	query := "SELECT * FROM files WHERE upload_status = $1"
	args := []interface{}{status}
	if projectID != nil {
		query += " AND project_id = $2"
		args = append(args, *projectID)
	}
	n := len(args)
	query += fmt.Sprintf(" ORDER BY created_at, id LIMIT $%d OFFSET $%d", n+1, n+2)
	args = append(args, limit, offset)

	var rows []fileRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("fileRepo.ListByStatus: %w", err)
	}
	return toDomainFiles(rows), nil
}

func (r *fileRepo) Delete(ctx context.Context, fileID uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM files WHERE id = $1", fileID)
	if err != nil {
		return fmt.Errorf("fileRepo.Delete: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}
