package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"chat-sync/internal/groups"
	"chat-sync/internal/models"
	"chat-sync/internal/telemetry"
)

type groupService interface {
	Create(ctx context.Context, ownerID, name string, memberIDs []string, avatarRef string) (models.Conversation, error)
	ListForUser(ctx context.Context, userID string) ([]models.Conversation, error)
}

// GroupHandler manages group-related endpoints.
type GroupHandler struct {
	groups groupService
	audit  *telemetry.AuditEmitter
}

// NewGroupHandler constructs a GroupHandler.
func NewGroupHandler(groups groupService, audit *telemetry.AuditEmitter) *GroupHandler {
	return &GroupHandler{groups: groups, audit: audit}
}

// CreateGroup handles POST /groups.
func (h *GroupHandler) CreateGroup(c *gin.Context) {
	userID := c.GetString("userID")

	var req struct {
		Name      string   `json:"name" binding:"required"`
		MemberIDs []string `json:"member_ids"`
		Avatar    string   `json:"avatar"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		emitAudit(c, h.audit, "ERROR", "groups.create", "invalid request payload", "")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	group, err := h.groups.Create(c.Request.Context(), userID, req.Name, req.MemberIDs, req.Avatar)
	switch {
	case errors.Is(err, groups.ErrInvalidName):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case errors.Is(err, groups.ErrUnknownMember):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case err != nil:
		emitAudit(c, h.audit, "ERROR", "groups.create", "internal error", "")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create group"})
		return
	}

	emitAudit(c, h.audit, "INFO", "groups.create", "Group created", "")
	c.JSON(http.StatusCreated, gin.H{"group_id": group.ID, "members": group.Participants})
}

// ListGroups returns groups the caller belongs to.
func (h *GroupHandler) ListGroups(c *gin.Context) {
	list, err := h.groups.ListForUser(c.Request.Context(), c.GetString("userID"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load groups"})
		return
	}
	if list == nil {
		list = []models.Conversation{}
	}
	c.JSON(http.StatusOK, gin.H{"groups": list})
}
