package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"dealdossier/internal/domain"
)

// MockFileRepo is a mock implementation of port.FileRepository.
type MockFileRepo struct {
	mock.Mock
}

func (m *MockFileRepo) Create(ctx context.Context, file *domain.FileRecord) error {
	args := m.Called(ctx, file)
	return args.Error(0)
}

func (m *MockFileRepo) GetByID(ctx context.Context, fileID uuid.UUID) (*domain.FileRecord, error) {
	args := m.Called(ctx, fileID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.FileRecord), args.Error(1)
}

func (m *MockFileRepo) ListByProject(ctx context.Context, projectID uuid.UUID, status domain.FileStatus, offset, limit int) ([]domain.FileRecord, int, error) {
	args := m.Called(ctx, projectID, status, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]domain.FileRecord), args.Int(1), args.Error(2)
}

func (m *MockFileRepo) ListCompleted(ctx context.Context, projectID uuid.UUID) ([]domain.FileRecord, error) {
	args := m.Called(ctx, projectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.FileRecord), args.Error(1)
}

func (m *MockFileRepo) MarkError(ctx context.Context, fileID uuid.UUID, message string) error {
	args := m.Called(ctx, fileID, message)
	return args.Error(0)
}

func (m *MockFileRepo) MarkStale(ctx context.Context, before time.Time, message string) (int64, error) {
	args := m.Called(ctx, before, message)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockFileRepo) ListByStatus(ctx context.Context, status domain.FileStatus, projectID *uuid.UUID, offset, limit int) ([]domain.FileRecord, error) {
	args := m.Called(ctx, status, projectID, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.FileRecord), args.Error(1)
}

func (m *MockFileRepo) Delete(ctx context.Context, fileID uuid.UUID) error {
	args := m.Called(ctx, fileID)
	return args.Error(0)
}
