package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"dealdossier/internal/config"
	"dealdossier/internal/domain"
	"dealdossier/internal/port"
)

const (
	audienceAccess  = "access"
	audienceRefresh = "refresh"

	bcryptCost       = 12
	magicCodeDigits  = 6
	magicCodeMaxMiss = 5
	authCacheEntries = 10000
)

// Claims represents the JWT claims of a session token.
type Claims struct {
	jwt.RegisteredClaims
	UserID uuid.UUID `json:"user_id"`
	Email  string    `json:"email"`
}

// SignUpInput is the DTO for account creation.
type SignUpInput struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	FullName string `json:"full_name"`
}

// SignInInput is the DTO for password sign-in.
type SignInInput struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// RefreshInput is the DTO for token refresh requests.
type RefreshInput struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// MagicLinkInput is the DTO for requesting a sign-in code.
type MagicLinkInput struct {
	Email string `json:"email" binding:"required,email"`
}

// ExchangeInput is the DTO for trading a sign-in code for a session.
type ExchangeInput struct {
	Email string `json:"email" binding:"required,email"`
	Code  string `json:"code" binding:"required"`
}

// AuthService defines the identity boundary. Every successful change is
// published on the SessionHub.
type AuthService interface {
	SignUp(ctx context.Context, input SignUpInput) (*domain.Session, error)
	SignIn(ctx context.Context, input SignInInput) (*domain.Session, error)
	Refresh(ctx context.Context, refreshToken string) (*domain.Session, error)
	SignOut(ctx context.Context, accessToken, refreshToken string) error
	RequestMagicLink(ctx context.Context, email string) error
	ExchangeCode(ctx context.Context, email, code string) (*domain.Session, error)
	CurrentSession(ctx context.Context, accessToken string) (*domain.Session, error)
	ValidateToken(ctx context.Context, tokenString string) (*Claims, error)
}

type magicCode struct {
	code   string
	userID uuid.UUID
	misses int
}

type authService struct {
	userRepo port.UserRepository
	email    port.EmailSender
	hub      *SessionHub
	cfg      config.JWTConfig
	logger   *zap.Logger

	// revoked caches ids known to be revoked; the user repository is authoritative.
	revoked *expirable.LRU[string, struct{}]

	codeMu sync.Mutex
	codes  *expirable.LRU[string, *magicCode]
}

// NewAuthService creates a new AuthService implementation.
func NewAuthService(
	userRepo port.UserRepository,
	emailSender port.EmailSender,
	hub *SessionHub,
	cfg config.JWTConfig,
	logger *zap.Logger,
) AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if hub == nil {
		hub = NewSessionHub(logger)
	}
	revokeTTL := cfg.RefreshTokenExpiry
	if cfg.AccessTokenExpiry > revokeTTL {
		revokeTTL = cfg.AccessTokenExpiry
	}
	return &authService{
		userRepo: userRepo,
		email:    emailSender,
		hub:      hub,
		cfg:      cfg,
		logger:   logger,
		revoked:  expirable.NewLRU[string, struct{}](authCacheEntries, nil, revokeTTL),
		codes:    expirable.NewLRU[string, *magicCode](authCacheEntries, nil, cfg.MagicLinkExpiry),
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *authService) SignUp(ctx context.Context, input SignUpInput) (*domain.Session, error) {
	email := normalizeEmail(input.Email)
	if email == "" || len(input.Password) < 8 {
		return nil, domain.ErrValidation
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("auth.SignUp hashing password: %w", err)
	}

	user := &domain.User{
		Email:        email,
		PasswordHash: string(hash),
		FullName:     strings.TrimSpace(input.FullName),
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, domain.ErrDuplicateEmail) {
			return nil, err
		}
		return nil, fmt.Errorf("auth.SignUp: %w", err)
	}

	s.logger.Info("auth.SignUp: account created", zap.String("user_id", user.ID.String()))
	return s.startSession(user, domain.SessionSignedIn)
}

func (s *authService) SignIn(ctx context.Context, input SignInInput) (*domain.Session, error) {
	user, err := s.userRepo.GetByEmail(ctx, normalizeEmail(input.Email))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("auth.SignIn: %w", err)
	}
	if user.PasswordHash == "" {
		return nil, domain.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		return nil, domain.ErrInvalidCredentials
	}
	return s.startSession(user, domain.SessionSignedIn)
}

func (s *authService) Refresh(ctx context.Context, refreshToken string) (*domain.Session, error) {
	claims, err := s.validateTokenString(ctx, refreshToken, audienceRefresh)
	if err != nil {
		return nil, err
	}

	user, err := s.userRepo.GetByID(ctx, claims.UserID)
	if err != nil {
		return nil, domain.ErrUnauthorized
	}

	// Refresh tokens rotate: the presented one cannot be used again. Only the
	// caller that records the revocation gets the new pair.
	first, err := s.revoke(ctx, claims)
	if err != nil {
		return nil, fmt.Errorf("auth.Refresh: %w", err)
	}
	if !first {
		return nil, domain.ErrTokenRevoked
	}
	return s.startSession(user, domain.SessionTokenRefreshed)
}

func (s *authService) SignOut(ctx context.Context, accessToken, refreshToken string) error {
	claims, err := s.validateTokenString(ctx, accessToken, audienceAccess)
	if err != nil {
		return err
	}
	if _, err := s.revoke(ctx, claims); err != nil {
		return fmt.Errorf("auth.SignOut: %w", err)
	}

	if refreshToken != "" {
		if rc, err := s.validateTokenString(ctx, refreshToken, audienceRefresh); err == nil && rc.UserID == claims.UserID {
			if _, err := s.revoke(ctx, rc); err != nil {
				return fmt.Errorf("auth.SignOut: %w", err)
			}
		}
	}

	s.hub.Publish(domain.SessionSignedOut, claims.UserID, nil)
	return nil
}

// RequestMagicLink emails a one-time code. Unknown addresses get a new passwordless account.
func (s *authService) RequestMagicLink(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if email == "" {
		return domain.ErrValidation
	}

	user, err := s.userRepo.GetByEmail(ctx, email)
	if errors.Is(err, domain.ErrNotFound) {
		user = &domain.User{Email: email}
		err = s.userRepo.Create(ctx, user)
		if errors.Is(err, domain.ErrDuplicateEmail) {
			user, err = s.userRepo.GetByEmail(ctx, email)
		}
	}
	if err != nil {
		return fmt.Errorf("auth.RequestMagicLink: %w", err)
	}

	code, err := generateCode(magicCodeDigits)
	if err != nil {
		return fmt.Errorf("auth.RequestMagicLink generating code: %w", err)
	}

	s.codeMu.Lock()
	s.codes.Add(email, &magicCode{code: code, userID: user.ID})
	s.codeMu.Unlock()

	if err := s.email.SendMagicLink(ctx, email, user.FullName, code); err != nil {
		s.codeMu.Lock()
		s.codes.Remove(email)
		s.codeMu.Unlock()
		return fmt.Errorf("auth.RequestMagicLink sending: %w", err)
	}
	return nil
}

func (s *authService) ExchangeCode(ctx context.Context, email, code string) (*domain.Session, error) {
	email = normalizeEmail(email)

	s.codeMu.Lock()
	entry, ok := s.codes.Peek(email)
	if !ok {
		s.codeMu.Unlock()
		return nil, domain.ErrInvalidCode
	}
	if subtle.ConstantTimeCompare([]byte(entry.code), []byte(strings.TrimSpace(code))) != 1 {
		entry.misses++
		if entry.misses >= magicCodeMaxMiss {
			s.codes.Remove(email)
			s.logger.Warn("auth.ExchangeCode: code discarded after repeated misses",
				zap.String("user_id", entry.userID.String()))
		}
		s.codeMu.Unlock()
		return nil, domain.ErrInvalidCode
	}
	s.codes.Remove(email)
	s.codeMu.Unlock()

	user, err := s.userRepo.GetByID(ctx, entry.userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrInvalidCode
		}
		return nil, fmt.Errorf("auth.ExchangeCode: %w", err)
	}
	return s.startSession(user, domain.SessionSignedIn)
}

func (s *authService) CurrentSession(ctx context.Context, accessToken string) (*domain.Session, error) {
	claims, err := s.ValidateToken(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	user, err := s.userRepo.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrUnauthorized
		}
		return nil, fmt.Errorf("auth.CurrentSession: %w", err)
	}
	sess := &domain.Session{User: *user, AccessToken: accessToken}
	if claims.ExpiresAt != nil {
		sess.ExpiresAt = claims.ExpiresAt.Time
	}
	return sess, nil
}

func (s *authService) ValidateToken(ctx context.Context, tokenString string) (*Claims, error) {
	return s.validateTokenString(ctx, tokenString, audienceAccess)
}

func (s *authService) startSession(user *domain.User, kind domain.SessionEventKind) (*domain.Session, error) {
	sess, err := s.issueSession(user)
	if err != nil {
		return nil, err
	}
	s.hub.Publish(kind, user.ID, sess)
	return sess, nil
}

func (s *authService) issueSession(user *domain.User) (*domain.Session, error) {
	now := time.Now()
	accessExpiry := now.Add(s.cfg.AccessTokenExpiry)

	access, err := s.sign(user, audienceAccess, now, accessExpiry)
	if err != nil {
		return nil, fmt.Errorf("signing access token: %w", err)
	}
	refresh, err := s.sign(user, audienceRefresh, now, now.Add(s.cfg.RefreshTokenExpiry))
	if err != nil {
		return nil, fmt.Errorf("signing refresh token: %w", err)
	}

	return &domain.Session{
		User:         *user,
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    accessExpiry,
	}, nil
}

func (s *authService) sign(user *domain.User, audience string, now, expiry time.Time) (string, error) {
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			Issuer:    s.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiry),
			ID:        uuid.New().String(),
			Audience:  jwt.ClaimStrings{audience},
		},
		UserID: user.ID,
		Email:  user.Email,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.Secret))
}

// revoke persists the token id and reports whether this call revoked it.
func (s *authService) revoke(ctx context.Context, claims *Claims) (bool, error) {
	if claims.ID == "" {
		return false, domain.ErrInvalidToken
	}
	expiresAt := time.Now().Add(s.cfg.RefreshTokenExpiry)
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	first, err := s.userRepo.RevokeToken(ctx, claims.ID, claims.UserID, expiresAt)
	if err != nil {
		return false, err
	}
	s.revoked.Add(claims.ID, struct{}{})
	return first, nil
}

func (s *authService) isRevoked(ctx context.Context, jti string) (bool, error) {
	if _, ok := s.revoked.Get(jti); ok {
		return true, nil
	}
	revoked, err := s.userRepo.IsTokenRevoked(ctx, jti)
	if err != nil {
		return false, err
	}
	if revoked {
		s.revoked.Add(jti, struct{}{})
	}
	return revoked, nil
}

func (s *authService) validateTokenString(ctx context.Context, tokenString, audience string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.cfg.Secret), nil
	}, jwt.WithAudience(audience))
	if err != nil || !token.Valid {
		return nil, domain.ErrInvalidToken
	}
	if claims.ID == "" {
		return nil, domain.ErrInvalidToken
	}
	revoked, err := s.isRevoked(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("auth.validateToken: %w", err)
	}
	if revoked {
		return nil, domain.ErrTokenRevoked
	}
	return claims, nil
}

func generateCode(digits int) (string, error) {
	var b strings.Builder
	ten := big.NewInt(10)
	for i := 0; i < digits; i++ {
		n, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + n.Int64()))
	}
	return b.String(), nil
}
