package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"dealdossier/internal/domain"
	"dealdossier/internal/port"
)

// CreateProjectInput is the DTO for creating a project.
type CreateProjectInput struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

// UpdateProjectInput is the DTO for updating a project. Nil fields are left unchanged.
type UpdateProjectInput struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

// ProjectService defines the project management contract.
type ProjectService interface {
	Create(ctx context.Context, sess *domain.Session, input CreateProjectInput) (*domain.Project, error)
	Get(ctx context.Context, sess *domain.Session, projectID uuid.UUID) (*domain.Project, error)
	List(ctx context.Context, sess *domain.Session, search string, offset, limit int) ([]domain.Project, int, error)
	Update(ctx context.Context, sess *domain.Session, projectID uuid.UUID, input UpdateProjectInput) (*domain.Project, error)
	Delete(ctx context.Context, sess *domain.Session, projectID uuid.UUID) error
}

type projectService struct {
	projectRepo port.ProjectRepository
	fileRepo    port.FileRepository
	storage     port.ObjectStorage
	bucket      string
	logger      *zap.Logger
}

// NewProjectService creates a new ProjectService implementation.
func NewProjectService(
	projectRepo port.ProjectRepository,
	fileRepo port.FileRepository,
	storage port.ObjectStorage,
	bucket string,
	logger *zap.Logger,
) ProjectService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &projectService{
		projectRepo: projectRepo,
		fileRepo:    fileRepo,
		storage:     storage,
		bucket:      bucket,
		logger:      logger,
	}
}

func (s *projectService) Create(ctx context.Context, sess *domain.Session, input CreateProjectInput) (*domain.Project, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, fmt.Errorf("project name is required: %w", domain.ErrValidation)
	}

	project := &domain.Project{
		Name:        name,
		Description: strings.TrimSpace(input.Description),
		UserID:      sess.UserID(),
	}
	if err := s.projectRepo.Create(ctx, project); err != nil {
		return nil, fmt.Errorf("projectService.Create: %w", err)
	}
	s.logger.Info("projectService.Create: project created",
		zap.String("project_id", project.ID.String()), zap.String("user_id", project.UserID.String()))
	return project, nil
}

func (s *projectService) Get(ctx context.Context, sess *domain.Session, projectID uuid.UUID) (*domain.Project, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	return s.projectRepo.GetByID(ctx, sess.UserID(), projectID)
}

func (s *projectService) List(ctx context.Context, sess *domain.Session, search string, offset, limit int) ([]domain.Project, int, error) {
	if err := requireSession(sess); err != nil {
		return nil, 0, err
	}
	return s.projectRepo.List(ctx, sess.UserID(), port.ProjectFilter{
		Search: strings.TrimSpace(search),
		Offset: offset,
		Limit:  limit,
	})
}

func (s *projectService) Update(ctx context.Context, sess *domain.Session, projectID uuid.UUID, input UpdateProjectInput) (*domain.Project, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	project, err := s.projectRepo.GetByID(ctx, sess.UserID(), projectID)
	if err != nil {
		return nil, err
	}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, fmt.Errorf("project name is required: %w", domain.ErrValidation)
		}
		project.Name = name
	}
	if input.Description != nil {
		project.Description = strings.TrimSpace(*input.Description)
	}
	if err := s.projectRepo.Update(ctx, project); err != nil {
		return nil, err
	}
	return project, nil
}

const deletePageSize = 200

// Delete removes the project row and then, best effort, the stored objects of its files.
func (s *projectService) Delete(ctx context.Context, sess *domain.Session, projectID uuid.UUID) error {
	if err := requireSession(sess); err != nil {
		return err
	}
	if _, err := s.projectRepo.GetByID(ctx, sess.UserID(), projectID); err != nil {
		return err
	}

	var keys []string
	for offset := 0; ; offset += deletePageSize {
		files, _, err := s.fileRepo.ListByProject(ctx, projectID, "", offset, deletePageSize)
		if err != nil {
			return fmt.Errorf("projectService.Delete listing files: %w", err)
		}
		for i := range files {
			if files[i].FileURL != "" {
				keys = append(keys, files[i].FileURL)
			}
		}
		if len(files) < deletePageSize {
			break
		}
	}

	if err := s.projectRepo.Delete(ctx, sess.UserID(), projectID); err != nil {
		return err
	}

	for _, key := range keys {
		if err := s.storage.Delete(ctx, s.bucket, key); err != nil {
			s.logger.Warn("projectService.Delete: object not removed",
				zap.String("key", key), zap.Error(err))
		}
	}
	s.logger.Info("projectService.Delete: project deleted",
		zap.String("project_id", projectID.String()), zap.Int("objects", len(keys)))
	return nil
}
