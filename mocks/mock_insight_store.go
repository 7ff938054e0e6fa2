package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"dealdossier/internal/domain"
)

// MockInsightStore is a mock implementation of port.InsightStore.
type MockInsightStore struct {
	mock.Mock
}

func (m *MockInsightStore) SaveInsight(ctx context.Context, fileID uuid.UUID, insight []byte, evidence []domain.Evidence) error {
	args := m.Called(ctx, fileID, insight, evidence)
	return args.Error(0)
}
