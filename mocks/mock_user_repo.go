package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"dealdossier/internal/domain"
)

// MockUserRepo is a mock implementation of port.UserRepository.
type MockUserRepo struct {
	mock.Mock
}

func (m *MockUserRepo) Create(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepo) GetByID(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

// RevokeToken accepts either a bool or a func(string) bool as its first return value.
func (m *MockUserRepo) RevokeToken(ctx context.Context, jti string, userID uuid.UUID, expiresAt time.Time) (bool, error) {
	args := m.Called(ctx, jti, userID, expiresAt)
	if fn, ok := args.Get(0).(func(string) bool); ok {
		return fn(jti), args.Error(1)
	}
	return args.Bool(0), args.Error(1)
}

// IsTokenRevoked accepts either a bool or a func(string) bool as its first return value.
func (m *MockUserRepo) IsTokenRevoked(ctx context.Context, jti string) (bool, error) {
	args := m.Called(ctx, jti)
	if fn, ok := args.Get(0).(func(string) bool); ok {
		return fn(jti), args.Error(1)
	}
	return args.Bool(0), args.Error(1)
}
