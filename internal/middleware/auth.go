package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"dealdossier/internal/domain"
	"dealdossier/internal/service"
)

const (
	ContextKeyUserID      = "user_id"
	ContextKeyEmail       = "email"
	ContextKeySession     = "session"
	ContextKeyAccessToken = "access_token"
)

// AuthMiddleware returns Gin middleware that resolves the bearer token to a
// session and injects it into the request context. The access_token query
// parameter is accepted for websocket upgrades, which cannot set headers.
func AuthMiddleware(authService service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   gin.H{"code": "UNAUTHORIZED", "message": "missing or invalid authorization header"},
			})
			return
		}

		sess, err := authService.CurrentSession(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   gin.H{"code": "UNAUTHORIZED", "message": "invalid or expired token"},
			})
			return
		}

		c.Set(ContextKeySession, sess)
		c.Set(ContextKeyUserID, sess.UserID())
		c.Set(ContextKeyEmail, sess.User.Email)
		c.Set(ContextKeyAccessToken, token)
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	}
	if authHeader == "" && c.GetHeader("Upgrade") != "" {
		return c.Query("access_token")
	}
	return ""
}

// GetSession extracts the session from the Gin context.
func GetSession(c *gin.Context) (*domain.Session, error) {
	val, exists := c.Get(ContextKeySession)
	if !exists {
		return nil, domain.ErrUnauthorized
	}
	sess, ok := val.(*domain.Session)
	if !ok || sess == nil {
		return nil, domain.ErrUnauthorized
	}
	return sess, nil
}

// GetUserID extracts the user ID from the Gin context.
func GetUserID(c *gin.Context) (uuid.UUID, error) {
	val, exists := c.Get(ContextKeyUserID)
	if !exists {
		return uuid.Nil, domain.ErrUnauthorized
	}
	return val.(uuid.UUID), nil
}

// GetAccessToken returns the raw bearer token of the request.
func GetAccessToken(c *gin.Context) string {
	return c.GetString(ContextKeyAccessToken)
}
