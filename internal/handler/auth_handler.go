package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"dealdossier/internal/middleware"
	"dealdossier/internal/service"
)

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	authService service.AuthService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// SignUp handles POST /api/v1/auth/signup
// @Summary Create an account
// @Description Create a password account and start a session
// @Tags auth
// @Accept json
// @Produce json
// @Param body body SignUpRequest true "Account details"
// @Success 201 {object} Response{data=domain.Session} "Account created"
// @Failure 400 {object} ErrorResponseBody "Validation error"
// @Failure 409 {object} ErrorResponseBody "Email already exists"
// @Router /auth/signup [post]
func (h *AuthHandler) SignUp(c *gin.Context) {
	var input service.SignUpInput
	if err := c.ShouldBindJSON(&input); err != nil {
		RespondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	sess, err := h.authService.SignUp(c.Request.Context(), input)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondCreated(c, sess)
}

// SignIn handles POST /api/v1/auth/signin
// @Summary Sign in with a password
// @Tags auth
// @Accept json
// @Produce json
// @Param body body SignInRequest true "Credentials"
// @Success 200 {object} Response{data=domain.Session} "Session"
// @Failure 400 {object} ErrorResponseBody "Validation error"
// @Failure 401 {object} ErrorResponseBody "Invalid credentials"
// @Router /auth/signin [post]
func (h *AuthHandler) SignIn(c *gin.Context) {
	var input service.SignInInput
	if err := c.ShouldBindJSON(&input); err != nil {
		RespondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	sess, err := h.authService.SignIn(c.Request.Context(), input)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondOK(c, sess)
}

// Refresh handles POST /api/v1/auth/refresh
// @Summary Refresh a session
// @Description Exchange a refresh token for a new token pair. The old refresh token is revoked.
// @Tags auth
// @Accept json
// @Produce json
// @Param body body RefreshRequest true "Refresh token"
// @Success 200 {object} Response{data=domain.Session} "New session"
// @Failure 401 {object} ErrorResponseBody "Invalid or revoked token"
// @Router /auth/refresh [post]
func (h *AuthHandler) Refresh(c *gin.Context) {
	var input service.RefreshInput
	if err := c.ShouldBindJSON(&input); err != nil {
		RespondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	sess, err := h.authService.Refresh(c.Request.Context(), input.RefreshToken)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondOK(c, sess)
}

// RequestMagicLink handles POST /api/v1/auth/magic-link
// @Summary Email a sign-in code
// @Description Always succeeds so the response does not reveal whether the address is known.
// @Tags auth
// @Accept json
// @Produce json
// @Param body body MagicLinkRequest true "Email"
// @Success 200 {object} Response{data=MessageResponse} "Code sent"
// @Failure 400 {object} ErrorResponseBody "Validation error"
// @Router /auth/magic-link [post]
func (h *AuthHandler) RequestMagicLink(c *gin.Context) {
	var input service.MagicLinkInput
	if err := c.ShouldBindJSON(&input); err != nil {
		RespondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	if err := h.authService.RequestMagicLink(c.Request.Context(), input.Email); err != nil {
		zap.L().Warn("authHandler.RequestMagicLink: delivery failed", zap.Error(err))
	}

	RespondOK(c, gin.H{"message": "if the address can receive mail, a sign-in link has been sent"})
}

// ExchangeCode handles POST /api/v1/auth/exchange
// @Summary Trade a sign-in code for a session
// @Tags auth
// @Accept json
// @Produce json
// @Param body body ExchangeRequest true "Email and code"
// @Success 200 {object} Response{data=domain.Session} "Session"
// @Failure 401 {object} ErrorResponseBody "Invalid or expired code"
// @Router /auth/exchange [post]
func (h *AuthHandler) ExchangeCode(c *gin.Context) {
	var input service.ExchangeInput
	if err := c.ShouldBindJSON(&input); err != nil {
		RespondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	sess, err := h.authService.ExchangeCode(c.Request.Context(), input.Email, input.Code)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondOK(c, sess)
}

// SignOut handles POST /api/v1/auth/signout
// @Summary Sign out
// @Description Revoke the access token and, when given, the refresh token.
// @Tags auth
// @Accept json
// @Produce json
// @Param body body SignOutRequest false "Refresh token to revoke"
// @Success 200 {object} Response{data=MessageResponse} "Signed out"
// @Failure 401 {object} ErrorResponseBody "Unauthorized"
// @Security BearerAuth
// @Router /auth/signout [post]
func (h *AuthHandler) SignOut(c *gin.Context) {
	var input struct {
		RefreshToken string `json:"refresh_token"`
	}
	// body is optional
	_ = c.ShouldBindJSON(&input)

	if err := h.authService.SignOut(c.Request.Context(), middleware.GetAccessToken(c), input.RefreshToken); err != nil {
		HandleError(c, err)
		return
	}

	RespondOK(c, gin.H{"message": "signed out"})
}

// Session handles GET /api/v1/auth/session
// @Summary Current session
// @Tags auth
// @Produce json
// @Success 200 {object} Response{data=domain.Session} "Session"
// @Failure 401 {object} ErrorResponseBody "Unauthorized"
// @Security BearerAuth
// @Router /auth/session [get]
func (h *AuthHandler) Session(c *gin.Context) {
	sess, ok := requireSession(c)
	if !ok {
		return
	}
	RespondOK(c, sess)
}
