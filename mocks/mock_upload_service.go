package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"dealdossier/internal/domain"
	"dealdossier/internal/port"
	"dealdossier/internal/service"
)

// MockUploadService is a mock implementation of service.UploadService.
type MockUploadService struct {
	mock.Mock
}

func rejections(v interface{}) []service.Rejection {
	if v == nil {
		return nil
	}
	return v.([]service.Rejection)
}

func (m *MockUploadService) StartBatch(ctx context.Context, sess *domain.Session, projectID uuid.UUID, items []service.UploadItem, onComplete func(service.BatchResult)) (*service.BatchHandle, []service.Rejection, error) {
	args := m.Called(ctx, sess, projectID, items, onComplete)
	if args.Get(0) == nil {
		return nil, rejections(args.Get(1)), args.Error(2)
	}
	return args.Get(0).(*service.BatchHandle), rejections(args.Get(1)), args.Error(2)
}

func (m *MockUploadService) RunBatch(ctx context.Context, sess *domain.Session, projectID uuid.UUID, items []service.UploadItem) (*service.BatchResult, []service.Rejection, error) {
	args := m.Called(ctx, sess, projectID, items)
	if args.Get(0) == nil {
		return nil, rejections(args.Get(1)), args.Error(2)
	}
	return args.Get(0).(*service.BatchResult), rejections(args.Get(1)), args.Error(2)
}

func (m *MockUploadService) Cancel(ctx context.Context, sess *domain.Session, batchID uuid.UUID) error {
	args := m.Called(ctx, sess, batchID)
	return args.Error(0)
}

func (m *MockUploadService) Batch(ctx context.Context, sess *domain.Session, batchID uuid.UUID) (*port.BatchSnapshot, error) {
	args := m.Called(ctx, sess, batchID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*port.BatchSnapshot), args.Error(1)
}

func (m *MockUploadService) Subscribe(ctx context.Context, sess *domain.Session, batchID uuid.UUID) (<-chan service.BatchEvent, func(), error) {
	args := m.Called(ctx, sess, batchID)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	unsubscribe, _ := args.Get(1).(func())
	if unsubscribe == nil {
		unsubscribe = func() {}
	}
	return args.Get(0).(<-chan service.BatchEvent), unsubscribe, args.Error(2)
}

func (m *MockUploadService) Reprocess(ctx context.Context, file *domain.FileRecord) error {
	args := m.Called(ctx, file)
	return args.Error(0)
}

func (m *MockUploadService) Shutdown(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
