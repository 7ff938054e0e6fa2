package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// User represents an authenticated account.
type User struct {
	ID           uuid.UUID `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	FullName     string    `db:"full_name" json:"full_name"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Project groups the files of one deal.
type Project struct {
	ID          uuid.UUID `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
	UserID      uuid.UUID `db:"user_id" json:"user_id"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// FileRecord is the persisted row of an uploaded file.
type FileRecord struct {
	ID                 uuid.UUID       `db:"id" json:"id"`
	ProjectID          uuid.UUID       `db:"project_id" json:"project_id"`
	Name               string          `db:"name" json:"name"`
	Type               string          `db:"type" json:"type"`
	Size               int64           `db:"size" json:"size"`
	FileURL            string          `db:"file_url" json:"file_url"`
	UploadStatus       FileStatus      `db:"upload_status" json:"upload_status"`
	ProcessingProgress int             `db:"processing_progress" json:"processing_progress"`
	Insights           json.RawMessage `db:"-" json:"insights,omitempty"`
	ErrorMessage       string          `db:"error_message" json:"error_message,omitempty"`
	UploadedBy         uuid.UUID       `db:"uploaded_by" json:"uploaded_by"`
	CreatedAt          time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time       `db:"updated_at" json:"updated_at"`
}

// HasInsight reports whether the record carries a stored insight.
func (f *FileRecord) HasInsight() bool {
	return len(f.Insights) > 0 && string(f.Insights) != "null"
}

// ProcessingStatus is the polling view of one file.
type ProcessingStatus struct {
	UploadStatus       FileStatus      `json:"upload_status"`
	ProcessingProgress int             `json:"processing_progress"`
	Insights           json.RawMessage `json:"insights,omitempty"`
	ErrorMessage       string          `json:"error_message,omitempty"`
}

// Evidence links a key metric back to the file it came from.
type Evidence struct {
	ID         uuid.UUID `db:"id" json:"id"`
	FileID     uuid.UUID `db:"file_id" json:"file_id"`
	Content    string    `db:"content" json:"content"`
	Confidence float64   `db:"confidence" json:"confidence"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// UploadedFile is the in-memory state of one file during an upload batch.
type UploadedFile struct {
	ID        uuid.UUID  `json:"id"`
	ProjectID uuid.UUID  `json:"project_id"`
	Name      string     `json:"name"`
	MediaType string     `json:"type"`
	Size      int64      `json:"size"`
	Strategy  Strategy   `json:"strategy"`
	Status    FileStatus `json:"status"`
	Progress  int        `json:"progress"`
	Error     string     `json:"error,omitempty"`
	RecordID  *uuid.UUID `json:"record_id,omitempty"`
}

// Session is an authenticated user session passed explicitly to entry points.
type Session struct {
	User         User      `json:"user"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// UserID returns the session owner or uuid.Nil for a nil session.
func (s *Session) UserID() uuid.UUID {
	if s == nil {
		return uuid.Nil
	}
	return s.User.ID
}

// SessionEvent is delivered to session subscribers on every lifecycle change.
type SessionEvent struct {
	Kind    SessionEventKind `json:"kind"`
	UserID  uuid.UUID        `json:"user_id"`
	Session *Session         `json:"session,omitempty"`
	At      time.Time        `json:"at"`
}

// DashboardStats holds the per-user counters shown on the dashboard.
type DashboardStats struct {
	TotalProjects     int   `db:"total_projects" json:"total_projects"`
	TotalFiles        int   `db:"total_files" json:"total_files"`
	FilesProcessed    int   `db:"files_processed" json:"files_processed"`
	FilesProcessing   int   `db:"files_processing" json:"files_processing"`
	FilesFailed       int   `db:"files_failed" json:"files_failed"`
	InsightsGenerated int   `db:"insights_generated" json:"insights_generated"`
	StorageBytes      int64 `db:"storage_bytes" json:"storage_bytes"`
}
