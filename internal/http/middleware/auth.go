package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/terrasense/agrigate/internal/domain"
	"github.com/terrasense/agrigate/internal/service"
)

const currentUserKey = "currentUser"

// Auth gates protected routes behind a bearer token.
type Auth struct {
	AuthService *service.AuthService
}

// RequireUser extracts the Authorization header, verifies the token, resolves
// the user and stores it in the request context. The "Bearer " prefix is
// matched verbatim: single space, case-sensitive.
func (m *Auth) RequireUser(c *gin.Context) {
	header := c.GetHeader("Authorization")
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if header == "" || !ok || raw == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error":   service.CodeMissingToken,
			"message": "Token d'authentification manquant",
		})
		return
	}

	user, err := m.AuthService.ResolveToken(c.Request.Context(), raw)
	if err != nil {
		var apiErr *service.APIError
		if errors.As(err, &apiErr) {
			c.AbortWithStatusJSON(apiErr.Status, gin.H{"error": apiErr.Code, "message": apiErr.Message})
			return
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error":   service.CodeInvalidToken,
			"message": "Token invalide ou expiré",
		})
		return
	}

	c.Set(currentUserKey, user)
	c.Next()
}

// CurrentUser returns the user resolved by RequireUser.
func CurrentUser(c *gin.Context) (domain.User, bool) {
	value, ok := c.Get(currentUserKey)
	if !ok {
		return domain.User{}, false
	}
	user, ok := value.(domain.User)
	return user, ok
}
