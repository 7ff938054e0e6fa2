package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"dealdossier/internal/port"
)

// MockProgressStore is a mock implementation of port.ProgressStore.
type MockProgressStore struct {
	mock.Mock
}

func (m *MockProgressStore) Save(ctx context.Context, snap port.BatchSnapshot) error {
	args := m.Called(ctx, snap)
	return args.Error(0)
}

func (m *MockProgressStore) Get(ctx context.Context, batchID uuid.UUID) (*port.BatchSnapshot, error) {
	args := m.Called(ctx, batchID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*port.BatchSnapshot), args.Error(1)
}
