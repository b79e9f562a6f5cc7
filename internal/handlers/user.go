package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"chat-sync/internal/repositories"
)

type avatarResolver interface {
	Resolve(ctx context.Context, ref string) string
}

// UserHandler serves profile endpoints.
type UserHandler struct {
	users   repositories.UserRepository
	avatars avatarResolver
}

func NewUserHandler(users repositories.UserRepository, avatars avatarResolver) *UserHandler {
	return &UserHandler{users: users, avatars: avatars}
}

type profileResponse struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email,omitempty"`
	AvatarRef string `json:"avatar_ref,omitempty"`
	AvatarURL string `json:"avatar_url"`
}

// Me handles GET /users/me.
func (h *UserHandler) Me(c *gin.Context) {
	user, err := h.users.GetUser(c.Request.Context(), c.GetString("userID"))
	if err != nil {
		writeUserError(c, err)
		return
	}
	c.JSON(http.StatusOK, profileResponse{
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
		AvatarRef: user.Avatar,
		AvatarURL: h.avatars.Resolve(c.Request.Context(), user.Avatar),
	})
}

// UpdateMe handles PATCH /users/me. Absent fields are left unchanged.
func (h *UserHandler) UpdateMe(c *gin.Context) {
	var req struct {
		Username *string `json:"username"`
		Avatar   *string `json:"avatar"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Username != nil && strings.TrimSpace(*req.Username) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username cannot be empty"})
		return
	}

	user, err := h.users.UpdateProfile(c.Request.Context(), c.GetString("userID"), req.Username, req.Avatar)
	if err != nil {
		writeUserError(c, err)
		return
	}
	c.JSON(http.StatusOK, profileResponse{
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
		AvatarRef: user.Avatar,
		AvatarURL: h.avatars.Resolve(c.Request.Context(), user.Avatar),
	})
}

// Search handles GET /users/search?email=.
func (h *UserHandler) Search(c *gin.Context) {
	email := strings.TrimSpace(c.Query("email"))
	if email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email is required"})
		return
	}
	user, err := h.users.FindByEmail(c.Request.Context(), email)
	if err != nil {
		writeUserError(c, err)
		return
	}
	c.JSON(http.StatusOK, profileResponse{
		ID:        user.ID,
		Username:  user.Username,
		AvatarURL: h.avatars.Resolve(c.Request.Context(), user.Avatar),
	})
}

// ResolveAvatar handles GET /avatars/resolve?ref=. It always answers with a
// displayable URL.
func (h *UserHandler) ResolveAvatar(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"url": h.avatars.Resolve(c.Request.Context(), c.Query("ref"))})
}

func writeUserError(c *gin.Context, err error) {
	if errors.Is(err, repositories.ErrUserNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load user"})
}
