package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"dealdossier/internal/domain"
)

// MockEvidenceRepo is a mock implementation of port.EvidenceRepository.
type MockEvidenceRepo struct {
	mock.Mock
}

func (m *MockEvidenceRepo) ListByFile(ctx context.Context, fileID uuid.UUID) ([]domain.Evidence, error) {
	args := m.Called(ctx, fileID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Evidence), args.Error(1)
}

func (m *MockEvidenceRepo) ListByProject(ctx context.Context, projectID uuid.UUID, offset, limit int) ([]domain.Evidence, int, error) {
	args := m.Called(ctx, projectID, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]domain.Evidence), args.Int(1), args.Error(2)
}
