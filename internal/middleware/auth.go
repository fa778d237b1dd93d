package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/retainly/retention-api/internal/handler"
	"github.com/retainly/retention-api/internal/service/auth"
)

const (
	ContextOwnerID      = "ownerID"
	ContextAccountEmail = "accountEmail"
)

type AuthMiddleware struct {
	authService *auth.Service
}

func NewAuthMiddleware(authService *auth.Service) *AuthMiddleware {
	return &AuthMiddleware{authService: authService}
}

// Authenticate verifies the bearer token and sets the owning account in
// context. Every repository call downstream is scoped to that owner, so a
// request can never see or touch another account's customers.
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("missing authorization header"))
			c.Abort()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("invalid authorization format"))
			c.Abort()
			return
		}

		claims, err := m.authService.ValidateToken(c.Request.Context(), parts[1])
		if err != nil {
			c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("invalid token"))
			c.Abort()
			return
		}

		c.Set(ContextOwnerID, claims.AccountID)
		c.Set(ContextAccountEmail, claims.Email)
		c.Next()
	}
}

// OwnerID extracts the authenticated account id set by Authenticate.
func OwnerID(c *gin.Context) (uuid.UUID, bool) {
	v, exists := c.Get(ContextOwnerID)
	if !exists {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}
