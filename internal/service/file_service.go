package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"dealdossier/internal/domain"
	"dealdossier/internal/port"
)

// FileService defines the read and delete side of project files.
type FileService interface {
	ListByProject(ctx context.Context, sess *domain.Session, projectID uuid.UUID, status domain.FileStatus, offset, limit int) ([]domain.FileRecord, int, error)
	Get(ctx context.Context, sess *domain.Session, fileID uuid.UUID) (*domain.FileRecord, error)
	GetProcessingStatus(ctx context.Context, sess *domain.Session, fileID uuid.UUID) (*domain.ProcessingStatus, error)
	GetDownloadURL(ctx context.Context, sess *domain.Session, fileID uuid.UUID) (string, error)
	Delete(ctx context.Context, sess *domain.Session, fileID uuid.UUID) error
	ListEvidence(ctx context.Context, sess *domain.Session, fileID uuid.UUID) ([]domain.Evidence, error)
	ListProjectEvidence(ctx context.Context, sess *domain.Session, projectID uuid.UUID, offset, limit int) ([]domain.Evidence, int, error)
}

type fileService struct {
	fileRepo      port.FileRepository
	projectRepo   port.ProjectRepository
	evidenceRepo  port.EvidenceRepository
	storage       port.ObjectStorage
	bucket        string
	presignExpiry int64
	logger        *zap.Logger
}

// NewFileService creates a new FileService implementation.
func NewFileService(
	fileRepo port.FileRepository,
	projectRepo port.ProjectRepository,
	evidenceRepo port.EvidenceRepository,
	storage port.ObjectStorage,
	bucket string,
	presignExpiry int64,
	logger *zap.Logger,
) FileService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &fileService{
		fileRepo:      fileRepo,
		projectRepo:   projectRepo,
		evidenceRepo:  evidenceRepo,
		storage:       storage,
		bucket:        bucket,
		presignExpiry: presignExpiry,
		logger:        logger,
	}
}

func (s *fileService) ownedProject(ctx context.Context, sess *domain.Session, projectID uuid.UUID) error {
	if err := requireSession(sess); err != nil {
		return err
	}
	_, err := s.projectRepo.GetByID(ctx, sess.UserID(), projectID)
	return err
}

// ownedFile loads a file and hides it when its project belongs to someone else.
func (s *fileService) ownedFile(ctx context.Context, sess *domain.Session, fileID uuid.UUID) (*domain.FileRecord, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	file, err := s.fileRepo.GetByID(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if _, err := s.projectRepo.GetByID(ctx, sess.UserID(), file.ProjectID); err != nil {
		if errors.Is(err, domain.ErrProjectNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return file, nil
}

func (s *fileService) ListByProject(ctx context.Context, sess *domain.Session, projectID uuid.UUID, status domain.FileStatus, offset, limit int) ([]domain.FileRecord, int, error) {
	if err := s.ownedProject(ctx, sess, projectID); err != nil {
		return nil, 0, err
	}
	return s.fileRepo.ListByProject(ctx, projectID, status, offset, limit)
}

func (s *fileService) Get(ctx context.Context, sess *domain.Session, fileID uuid.UUID) (*domain.FileRecord, error) {
	return s.ownedFile(ctx, sess, fileID)
}

func (s *fileService) GetProcessingStatus(ctx context.Context, sess *domain.Session, fileID uuid.UUID) (*domain.ProcessingStatus, error) {
	file, err := s.ownedFile(ctx, sess, fileID)
	if err != nil {
		return nil, err
	}
	return &domain.ProcessingStatus{
		UploadStatus:       file.UploadStatus,
		ProcessingProgress: file.ProcessingProgress,
		Insights:           file.Insights,
		ErrorMessage:       file.ErrorMessage,
	}, nil
}

func (s *fileService) GetDownloadURL(ctx context.Context, sess *domain.Session, fileID uuid.UUID) (string, error) {
	file, err := s.ownedFile(ctx, sess, fileID)
	if err != nil {
		return "", err
	}
	if file.FileURL == "" {
		return "", domain.ErrFileNotReady
	}
	return s.storage.GetPresignedURL(ctx, s.bucket, file.FileURL, s.presignExpiry)
}

func (s *fileService) Delete(ctx context.Context, sess *domain.Session, fileID uuid.UUID) error {
	file, err := s.ownedFile(ctx, sess, fileID)
	if err != nil {
		return err
	}

	s.logger.Info("fileService.Delete: deleting file",
		zap.String("file_id", fileID.String()), zap.String("project_id", file.ProjectID.String()))

	if file.FileURL != "" {
		if err := s.storage.Delete(ctx, s.bucket, file.FileURL); err != nil {
			s.logger.Error("fileService.Delete: storage delete failed", zap.Error(err))
			return &domain.TransportError{Key: file.FileURL, Err: err}
		}
	}
	if err := s.fileRepo.Delete(ctx, fileID); err != nil {
		return fmt.Errorf("fileService.Delete: %w", err)
	}
	return nil
}

func (s *fileService) ListEvidence(ctx context.Context, sess *domain.Session, fileID uuid.UUID) ([]domain.Evidence, error) {
	if _, err := s.ownedFile(ctx, sess, fileID); err != nil {
		return nil, err
	}
	return s.evidenceRepo.ListByFile(ctx, fileID)
}

func (s *fileService) ListProjectEvidence(ctx context.Context, sess *domain.Session, projectID uuid.UUID, offset, limit int) ([]domain.Evidence, int, error) {
	if err := s.ownedProject(ctx, sess, projectID); err != nil {
		return nil, 0, err
	}
	return s.evidenceRepo.ListByProject(ctx, projectID, offset, limit)
}
