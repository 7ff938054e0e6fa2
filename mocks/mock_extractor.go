package mocks

import (
	"context"
	"io"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"dealdossier/internal/domain"
)

// MockExtractor is a mock implementation of service.Extractor.
type MockExtractor struct {
	mock.Mock
}

func (m *MockExtractor) Extract(ctx context.Context, fileID uuid.UUID, strategy domain.Strategy, name string, r io.Reader) (domain.Insight, error) {
	args := m.Called(ctx, fileID, strategy, name, r)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(domain.Insight), args.Error(1)
}
