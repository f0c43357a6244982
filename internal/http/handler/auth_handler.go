package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/terrasense/agrigate/internal/http/middleware"
	"github.com/terrasense/agrigate/internal/service"
)

// AuthHandler exposes the authentication endpoints.
type AuthHandler struct {
	Auth *service.AuthService
}

// NewAuthHandler wires dependencies.
func NewAuthHandler(auth *service.AuthService) *AuthHandler {
	return &AuthHandler{Auth: auth}
}

// Register handles POST /api/auth/register.
func (h *AuthHandler) Register(c *gin.Context) {
	var req struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": service.CodeValidation, "message": "Les champs name, email et password sont requis"})
		return
	}

	session, err := h.Auth.Register(c.Request.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, session)
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": service.CodeValidation, "message": "L'email et le mot de passe sont requis"})
		return
	}

	session, err := h.Auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// Me handles GET /api/auth/me. The access gate already resolved the user.
func (h *AuthHandler) Me(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": service.CodeInvalidToken, "message": "Token invalide ou expiré"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user.Sanitize()})
}

// Logout handles POST /api/auth/logout. No server-side state changes; the
// client discards its token.
func (h *AuthHandler) Logout(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": h.Auth.Logout(c.Request.Context())})
}

func respondError(c *gin.Context, err error) {
	var apiErr *service.APIError
	if errors.As(err, &apiErr) {
		c.JSON(apiErr.Status, gin.H{"error": apiErr.Code, "message": apiErr.Message})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error", "message": "Erreur interne"})
}
