package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"dealdossier/internal/domain"
	"dealdossier/internal/service"
)

// MockProjectService is a mock implementation of service.ProjectService.
type MockProjectService struct {
	mock.Mock
}

func (m *MockProjectService) Create(ctx context.Context, sess *domain.Session, input service.CreateProjectInput) (*domain.Project, error) {
	args := m.Called(ctx, sess, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Project), args.Error(1)
}

func (m *MockProjectService) Get(ctx context.Context, sess *domain.Session, projectID uuid.UUID) (*domain.Project, error) {
	args := m.Called(ctx, sess, projectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Project), args.Error(1)
}

func (m *MockProjectService) List(ctx context.Context, sess *domain.Session, search string, offset, limit int) ([]domain.Project, int, error) {
	args := m.Called(ctx, sess, search, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]domain.Project), args.Int(1), args.Error(2)
}

func (m *MockProjectService) Update(ctx context.Context, sess *domain.Session, projectID uuid.UUID, input service.UpdateProjectInput) (*domain.Project, error) {
	args := m.Called(ctx, sess, projectID, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Project), args.Error(1)
}

func (m *MockProjectService) Delete(ctx context.Context, sess *domain.Session, projectID uuid.UUID) error {
	args := m.Called(ctx, sess, projectID)
	return args.Error(0)
}
