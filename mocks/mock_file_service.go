package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"dealdossier/internal/domain"
)

// MockFileService is a mock implementation of service.FileService.
type MockFileService struct {
	mock.Mock
}

func (m *MockFileService) ListByProject(ctx context.Context, sess *domain.Session, projectID uuid.UUID, status domain.FileStatus, offset, limit int) ([]domain.FileRecord, int, error) {
	args := m.Called(ctx, sess, projectID, status, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]domain.FileRecord), args.Int(1), args.Error(2)
}

func (m *MockFileService) Get(ctx context.Context, sess *domain.Session, fileID uuid.UUID) (*domain.FileRecord, error) {
	args := m.Called(ctx, sess, fileID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.FileRecord), args.Error(1)
}

func (m *MockFileService) GetProcessingStatus(ctx context.Context, sess *domain.Session, fileID uuid.UUID) (*domain.ProcessingStatus, error) {
	args := m.Called(ctx, sess, fileID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ProcessingStatus), args.Error(1)
}

func (m *MockFileService) GetDownloadURL(ctx context.Context, sess *domain.Session, fileID uuid.UUID) (string, error) {
	args := m.Called(ctx, sess, fileID)
	return args.String(0), args.Error(1)
}

func (m *MockFileService) Delete(ctx context.Context, sess *domain.Session, fileID uuid.UUID) error {
	args := m.Called(ctx, sess, fileID)
	return args.Error(0)
}

func (m *MockFileService) ListEvidence(ctx context.Context, sess *domain.Session, fileID uuid.UUID) ([]domain.Evidence, error) {
	args := m.Called(ctx, sess, fileID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Evidence), args.Error(1)
}

func (m *MockFileService) ListProjectEvidence(ctx context.Context, sess *domain.Session, projectID uuid.UUID, offset, limit int) ([]domain.Evidence, int, error) {
	args := m.Called(ctx, sess, projectID, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]domain.Evidence), args.Int(1), args.Error(2)
}
