package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"dealdossier/internal/config"
	"dealdossier/internal/domain"
	"dealdossier/internal/service"
	"dealdossier/mocks"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:             "test-secret-key-for-unit-tests",
		AccessTokenExpiry:  15 * time.Minute,
		RefreshTokenExpiry: 24 * time.Hour,
		MagicLinkExpiry:    10 * time.Minute,
		Issuer:             "dealdossier-test",
	}
}

// revocations stands in for the revoked_tokens table.
type revocations struct {
	mu  sync.Mutex
	ids map[string]bool
}

func (r *revocations) add(jti string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ids[jti] {
		return false
	}
	r.ids[jti] = true
	return true
}

func (r *revocations) has(jti string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ids[jti]
}

func trackRevocations(userRepo *mocks.MockUserRepo) *revocations {
	r := &revocations{ids: make(map[string]bool)}
	userRepo.On("RevokeToken", mock.Anything, mock.AnythingOfType("string"), mock.Anything, mock.Anything).Return(r.add, nil)
	userRepo.On("IsTokenRevoked", mock.Anything, mock.AnythingOfType("string")).Return(r.has, nil)
	return r
}

func setupAuthService() (service.AuthService, *mocks.MockUserRepo, *mocks.MockEmailSender, *service.SessionHub) {
	userRepo := new(mocks.MockUserRepo)
	trackRevocations(userRepo)
	emailSender := new(mocks.MockEmailSender)
	hub := service.NewSessionHub(nil)
	svc := service.NewAuthService(userRepo, emailSender, hub, testJWTConfig(), nil)
	return svc, userRepo, emailSender, hub
}

func passwordUser(t *testing.T, password string) *domain.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return &domain.User{ID: uuid.New(), Email: "analyst@example.com", PasswordHash: string(hash), FullName: "Ana Lyst"}
}

func nextEvent(t *testing.T, ch <-chan domain.SessionEvent) domain.SessionEvent {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(time.Second):
		t.Fatal("no session event published")
		return domain.SessionEvent{}
	}
}

func TestAuthService_SignUp(t *testing.T) {
	svc, userRepo, _, hub := setupAuthService()
	events, unsubscribe := hub.Subscribe(uuid.Nil)
	defer unsubscribe()

	userID := uuid.New()
	userRepo.On("Create", mock.Anything, mock.MatchedBy(func(u *domain.User) bool {
		return u.Email == "new@example.com" && u.PasswordHash != "" && u.FullName == "New User"
	})).Run(func(args mock.Arguments) {
		args.Get(1).(*domain.User).ID = userID
	}).Return(nil)

	sess, err := svc.SignUp(context.Background(), service.SignUpInput{
		Email:    "  New@Example.com ",
		Password: "correct-horse",
		FullName: "New User",
	})
	require.NoError(t, err)
	assert.Equal(t, userID, sess.UserID())
	assert.NotEmpty(t, sess.AccessToken)
	assert.NotEmpty(t, sess.RefreshToken)
	assert.True(t, sess.ExpiresAt.After(time.Now()))

	ev := nextEvent(t, events)
	assert.Equal(t, domain.SessionSignedIn, ev.Kind)
	assert.Equal(t, userID, ev.UserID)

	claims, err := svc.ValidateToken(context.Background(), sess.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, "new@example.com", claims.Email)
}

func TestAuthService_SignUpDuplicateEmail(t *testing.T) {
	svc, userRepo, _, _ := setupAuthService()
	userRepo.On("Create", mock.Anything, mock.Anything).Return(domain.ErrDuplicateEmail)

	_, err := svc.SignUp(context.Background(), service.SignUpInput{Email: "dup@example.com", Password: "password123"})
	assert.ErrorIs(t, err, domain.ErrDuplicateEmail)
}

func TestAuthService_SignUpShortPassword(t *testing.T) {
	svc, userRepo, _, _ := setupAuthService()

	_, err := svc.SignUp(context.Background(), service.SignUpInput{Email: "a@example.com", Password: "short"})
	assert.ErrorIs(t, err, domain.ErrValidation)
	userRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestAuthService_SignIn(t *testing.T) {
	svc, userRepo, _, _ := setupAuthService()
	user := passwordUser(t, "correct-horse")
	userRepo.On("GetByEmail", mock.Anything, "analyst@example.com").Return(user, nil)
	userRepo.On("GetByEmail", mock.Anything, "ghost@example.com").Return(nil, domain.ErrNotFound)

	sess, err := svc.SignIn(context.Background(), service.SignInInput{Email: "Analyst@example.com", Password: "correct-horse"})
	require.NoError(t, err)
	assert.Equal(t, user.ID, sess.UserID())

	_, err = svc.SignIn(context.Background(), service.SignInInput{Email: "analyst@example.com", Password: "wrong-horse"})
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	_, err = svc.SignIn(context.Background(), service.SignInInput{Email: "ghost@example.com", Password: "correct-horse"})
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestAuthService_SignInPasswordlessAccount(t *testing.T) {
	svc, userRepo, _, _ := setupAuthService()
	userRepo.On("GetByEmail", mock.Anything, "link@example.com").
		Return(&domain.User{ID: uuid.New(), Email: "link@example.com"}, nil)

	_, err := svc.SignIn(context.Background(), service.SignInInput{Email: "link@example.com", Password: "anything"})
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestAuthService_RefreshRotates(t *testing.T) {
	svc, userRepo, _, hub := setupAuthService()
	user := passwordUser(t, "correct-horse")
	userRepo.On("GetByEmail", mock.Anything, user.Email).Return(user, nil)
	userRepo.On("GetByID", mock.Anything, user.ID).Return(user, nil)

	sess, err := svc.SignIn(context.Background(), service.SignInInput{Email: user.Email, Password: "correct-horse"})
	require.NoError(t, err)

	events, unsubscribe := hub.Subscribe(user.ID)
	defer unsubscribe()

	refreshed, err := svc.Refresh(context.Background(), sess.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, sess.RefreshToken, refreshed.RefreshToken)
	assert.Equal(t, domain.SessionTokenRefreshed, nextEvent(t, events).Kind)

	_, err = svc.Refresh(context.Background(), sess.RefreshToken)
	assert.ErrorIs(t, err, domain.ErrTokenRevoked)

	_, err = svc.Refresh(context.Background(), refreshed.AccessToken)
	assert.ErrorIs(t, err, domain.ErrInvalidToken)

	_, err = svc.ValidateToken(context.Background(), refreshed.RefreshToken)
	assert.ErrorIs(t, err, domain.ErrInvalidToken)
}

func TestAuthService_SignOut(t *testing.T) {
	svc, userRepo, _, hub := setupAuthService()
	user := passwordUser(t, "correct-horse")
	userRepo.On("GetByEmail", mock.Anything, user.Email).Return(user, nil)
	userRepo.On("GetByID", mock.Anything, user.ID).Return(user, nil)

	sess, err := svc.SignIn(context.Background(), service.SignInInput{Email: user.Email, Password: "correct-horse"})
	require.NoError(t, err)

	current, err := svc.CurrentSession(context.Background(), sess.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.Email, current.User.Email)

	events, unsubscribe := hub.Subscribe(user.ID)
	defer unsubscribe()

	require.NoError(t, svc.SignOut(context.Background(), sess.AccessToken, sess.RefreshToken))
	ev := nextEvent(t, events)
	assert.Equal(t, domain.SessionSignedOut, ev.Kind)
	assert.Nil(t, ev.Session)

	_, err = svc.ValidateToken(context.Background(), sess.AccessToken)
	assert.ErrorIs(t, err, domain.ErrTokenRevoked)
	_, err = svc.Refresh(context.Background(), sess.RefreshToken)
	assert.ErrorIs(t, err, domain.ErrTokenRevoked)
	_, err = svc.CurrentSession(context.Background(), sess.AccessToken)
	assert.ErrorIs(t, err, domain.ErrTokenRevoked)

	assert.ErrorIs(t, svc.SignOut(context.Background(), "garbage", ""), domain.ErrInvalidToken)
}

func TestAuthService_ValidateTokenForeignSecret(t *testing.T) {
	svc, userRepo, _, _ := setupAuthService()
	user := passwordUser(t, "correct-horse")
	userRepo.On("GetByEmail", mock.Anything, user.Email).Return(user, nil)

	cfg := testJWTConfig()
	cfg.Secret = "another-secret"
	other := service.NewAuthService(userRepo, new(mocks.MockEmailSender), nil, cfg, nil)
	sess, err := other.SignIn(context.Background(), service.SignInInput{Email: user.Email, Password: "correct-horse"})
	require.NoError(t, err)

	_, err = svc.ValidateToken(context.Background(), sess.AccessToken)
	assert.ErrorIs(t, err, domain.ErrInvalidToken)
}

func TestAuthService_MagicLink(t *testing.T) {
	svc, userRepo, emailSender, hub := setupAuthService()
	user := &domain.User{ID: uuid.New(), Email: "deal@example.com", FullName: "Deal Lead"}
	userRepo.On("GetByEmail", mock.Anything, "deal@example.com").Return(user, nil)
	userRepo.On("GetByID", mock.Anything, user.ID).Return(user, nil)

	var code string
	emailSender.On("SendMagicLink", mock.Anything, "deal@example.com", "Deal Lead", mock.AnythingOfType("string")).
		Run(func(args mock.Arguments) { code = args.String(3) }).
		Return(nil)

	require.NoError(t, svc.RequestMagicLink(context.Background(), " Deal@Example.com"))
	require.Len(t, code, 6)

	events, unsubscribe := hub.Subscribe(user.ID)
	defer unsubscribe()

	_, err := svc.ExchangeCode(context.Background(), "deal@example.com", "000000x")
	assert.ErrorIs(t, err, domain.ErrInvalidCode)

	sess, err := svc.ExchangeCode(context.Background(), "deal@example.com", code)
	require.NoError(t, err)
	assert.Equal(t, user.ID, sess.UserID())
	assert.Equal(t, domain.SessionSignedIn, nextEvent(t, events).Kind)

	_, err = svc.ExchangeCode(context.Background(), "deal@example.com", code)
	assert.ErrorIs(t, err, domain.ErrInvalidCode)
}

func TestAuthService_MagicLinkCreatesAccount(t *testing.T) {
	svc, userRepo, emailSender, _ := setupAuthService()
	newID := uuid.New()
	userRepo.On("GetByEmail", mock.Anything, "first@example.com").Return(nil, domain.ErrNotFound)
	userRepo.On("Create", mock.Anything, mock.MatchedBy(func(u *domain.User) bool {
		return u.Email == "first@example.com" && u.PasswordHash == ""
	})).Run(func(args mock.Arguments) {
		args.Get(1).(*domain.User).ID = newID
	}).Return(nil)
	emailSender.On("SendMagicLink", mock.Anything, "first@example.com", "", mock.Anything).Return(nil)

	require.NoError(t, svc.RequestMagicLink(context.Background(), "first@example.com"))
	userRepo.AssertExpectations(t)
	emailSender.AssertExpectations(t)
}

func TestAuthService_MagicLinkDeliveryFailure(t *testing.T) {
	svc, userRepo, emailSender, _ := setupAuthService()
	user := &domain.User{ID: uuid.New(), Email: "deal@example.com"}
	userRepo.On("GetByEmail", mock.Anything, user.Email).Return(user, nil)

	var code string
	emailSender.On("SendMagicLink", mock.Anything, user.Email, "", mock.Anything).
		Run(func(args mock.Arguments) { code = args.String(3) }).
		Return(errors.New("ses throttled"))

	err := svc.RequestMagicLink(context.Background(), user.Email)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ses throttled")

	_, err = svc.ExchangeCode(context.Background(), user.Email, code)
	assert.ErrorIs(t, err, domain.ErrInvalidCode)
}

func TestAuthService_RevocationOutlivesProcess(t *testing.T) {
	svc, userRepo, _, _ := setupAuthService()
	user := passwordUser(t, "correct-horse")
	userRepo.On("GetByEmail", mock.Anything, user.Email).Return(user, nil)
	userRepo.On("GetByID", mock.Anything, user.ID).Return(user, nil)

	sess, err := svc.SignIn(context.Background(), service.SignInInput{Email: user.Email, Password: "correct-horse"})
	require.NoError(t, err)
	rotated, err := svc.Refresh(context.Background(), sess.RefreshToken)
	require.NoError(t, err)
	require.NoError(t, svc.SignOut(context.Background(), rotated.AccessToken, rotated.RefreshToken))

	restarted := service.NewAuthService(userRepo, new(mocks.MockEmailSender), nil, testJWTConfig(), nil)

	_, err = restarted.Refresh(context.Background(), sess.RefreshToken)
	assert.ErrorIs(t, err, domain.ErrTokenRevoked)
	_, err = restarted.Refresh(context.Background(), rotated.RefreshToken)
	assert.ErrorIs(t, err, domain.ErrTokenRevoked)
	_, err = restarted.ValidateToken(context.Background(), rotated.AccessToken)
	assert.ErrorIs(t, err, domain.ErrTokenRevoked)
}

func TestAuthService_RefreshOldTokensStayRevoked(t *testing.T) {
	svc, userRepo, _, _ := setupAuthService()
	user := passwordUser(t, "correct-horse")
	userRepo.On("GetByEmail", mock.Anything, user.Email).Return(user, nil)
	userRepo.On("GetByID", mock.Anything, user.ID).Return(user, nil)

	sess, err := svc.SignIn(context.Background(), service.SignInInput{Email: user.Email, Password: "correct-horse"})
	require.NoError(t, err)
	first := sess.RefreshToken

	current := first
	for i := 0; i < 50; i++ {
		next, err := svc.Refresh(context.Background(), current)
		require.NoError(t, err)
		current = next.RefreshToken
	}

	_, err = svc.Refresh(context.Background(), first)
	assert.ErrorIs(t, err, domain.ErrTokenRevoked)
}

func TestAuthService_RefreshLosesConcurrentRotation(t *testing.T) {
	userRepo := new(mocks.MockUserRepo)
	user := passwordUser(t, "correct-horse")
	userRepo.On("GetByEmail", mock.Anything, user.Email).Return(user, nil)
	userRepo.On("GetByID", mock.Anything, user.ID).Return(user, nil)
	userRepo.On("IsTokenRevoked", mock.Anything, mock.Anything).Return(false, nil)
	userRepo.On("RevokeToken", mock.Anything, mock.Anything, user.ID, mock.Anything).Return(false, nil)
	svc := service.NewAuthService(userRepo, new(mocks.MockEmailSender), nil, testJWTConfig(), nil)

	sess, err := svc.SignIn(context.Background(), service.SignInInput{Email: user.Email, Password: "correct-horse"})
	require.NoError(t, err)

	_, err = svc.Refresh(context.Background(), sess.RefreshToken)
	assert.ErrorIs(t, err, domain.ErrTokenRevoked)
}

func TestAuthService_RevocationStoreFailure(t *testing.T) {
	userRepo := new(mocks.MockUserRepo)
	user := passwordUser(t, "correct-horse")
	cause := errors.New("connection refused")
	userRepo.On("GetByEmail", mock.Anything, user.Email).Return(user, nil)
	userRepo.On("GetByID", mock.Anything, user.ID).Return(user, nil)
	userRepo.On("IsTokenRevoked", mock.Anything, mock.Anything).Return(false, nil)
	userRepo.On("RevokeToken", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(false, cause)
	svc := service.NewAuthService(userRepo, new(mocks.MockEmailSender), nil, testJWTConfig(), nil)

	sess, err := svc.SignIn(context.Background(), service.SignInInput{Email: user.Email, Password: "correct-horse"})
	require.NoError(t, err)

	_, err = svc.Refresh(context.Background(), sess.RefreshToken)
	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, svc.SignOut(context.Background(), sess.AccessToken, ""), cause)
}

func TestAuthService_ExchangeCodeDiscardedAfterMisses(t *testing.T) {
	svc, userRepo, emailSender, _ := setupAuthService()
	user := &domain.User{ID: uuid.New(), Email: "deal@example.com"}
	userRepo.On("GetByEmail", mock.Anything, user.Email).Return(user, nil)
	userRepo.On("GetByID", mock.Anything, user.ID).Return(user, nil)

	var code string
	emailSender.On("SendMagicLink", mock.Anything, user.Email, "", mock.AnythingOfType("string")).
		Run(func(args mock.Arguments) { code = args.String(3) }).
		Return(nil)
	require.NoError(t, svc.RequestMagicLink(context.Background(), user.Email))

	for i := 0; i < 5; i++ {
		_, err := svc.ExchangeCode(context.Background(), user.Email, "not-a-code")
		require.ErrorIs(t, err, domain.ErrInvalidCode)
	}

	_, err := svc.ExchangeCode(context.Background(), user.Email, code)
	assert.ErrorIs(t, err, domain.ErrInvalidCode)
}
