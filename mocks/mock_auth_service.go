package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"dealdossier/internal/domain"
	"dealdossier/internal/service"
)

// MockAuthService is a mock implementation of service.AuthService.
type MockAuthService struct {
	mock.Mock
}

func (m *MockAuthService) session(args mock.Arguments) (*domain.Session, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Session), args.Error(1)
}

func (m *MockAuthService) SignUp(ctx context.Context, input service.SignUpInput) (*domain.Session, error) {
	return m.session(m.Called(ctx, input))
}

func (m *MockAuthService) SignIn(ctx context.Context, input service.SignInInput) (*domain.Session, error) {
	return m.session(m.Called(ctx, input))
}

func (m *MockAuthService) Refresh(ctx context.Context, refreshToken string) (*domain.Session, error) {
	return m.session(m.Called(ctx, refreshToken))
}

func (m *MockAuthService) SignOut(ctx context.Context, accessToken, refreshToken string) error {
	args := m.Called(ctx, accessToken, refreshToken)
	return args.Error(0)
}

func (m *MockAuthService) RequestMagicLink(ctx context.Context, email string) error {
	args := m.Called(ctx, email)
	return args.Error(0)
}

func (m *MockAuthService) ExchangeCode(ctx context.Context, email, code string) (*domain.Session, error) {
	return m.session(m.Called(ctx, email, code))
}

func (m *MockAuthService) CurrentSession(ctx context.Context, accessToken string) (*domain.Session, error) {
	return m.session(m.Called(ctx, accessToken))
}

func (m *MockAuthService) ValidateToken(ctx context.Context, tokenString string) (*service.Claims, error) {
	args := m.Called(ctx, tokenString)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.Claims), args.Error(1)
}
