package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"chat-sync/internal/auth"
	"chat-sync/internal/models"
	"chat-sync/internal/telemetry"
)

type authService interface {
	Register(ctx context.Context, in auth.RegisterInput) (models.User, error)
	Login(ctx context.Context, email, password string) (auth.Token, error)
	Logout(ctx context.Context, token string) error
}

// AuthHandler serves account and session endpoints.
type AuthHandler struct {
	auth  authService
	audit *telemetry.AuditEmitter
}

func NewAuthHandler(auth authService, audit *telemetry.AuditEmitter) *AuthHandler {
	return &AuthHandler{auth: auth, audit: audit}
}

// Register handles POST /auth/register.
func (h *AuthHandler) Register(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
		Username string `json:"username"`
		Avatar   string `json:"avatar"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.auth.Register(c.Request.Context(), auth.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		Username: req.Username,
		Avatar:   req.Avatar,
	})
	switch {
	case errors.Is(err, auth.ErrEmailTaken):
		c.JSON(http.StatusConflict, gin.H{"error": "email already registered"})
		return
	case errors.Is(err, auth.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case err != nil:
		emitAudit(c, h.audit, "ERROR", "auth.register", "registration failed", "")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not register"})
		return
	}

	emitAudit(c, h.audit, "INFO", "auth.register", "User registered", user.ID)
	c.JSON(http.StatusCreated, user)
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	token, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		emitAudit(c, h.audit, "WARN", "auth.login", "Login rejected", "")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid email or password"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not sign in"})
		return
	}

	emitAudit(c, h.audit, "INFO", "auth.login", "User signed in", token.User.ID)
	c.JSON(http.StatusOK, token)
}

// Logout handles POST /auth/logout.
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.auth.Logout(c.Request.Context(), c.GetString("token")); err != nil {
		if errors.Is(err, auth.ErrInvalidToken) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not sign out"})
		return
	}

	emitAudit(c, h.audit, "INFO", "auth.logout", "User signed out", "")
	c.Status(http.StatusNoContent)
}
