package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"chat-sync/internal/friends"
	"chat-sync/internal/models"
	"chat-sync/internal/telemetry"
)

type friendWorkflow interface {
	Send(ctx context.Context, senderID, receiverID string) (models.FriendRequest, error)
	Accept(ctx context.Context, requestID, actorID string) (models.Conversation, error)
	Reject(ctx context.Context, requestID, actorID string) error
	Incoming(ctx context.Context, userID string) ([]models.FriendRequest, error)
	Outgoing(ctx context.Context, userID string) ([]models.FriendRequest, error)
}

// FriendHandler serves the friend request workflow.
type FriendHandler struct {
	workflow friendWorkflow
	audit    *telemetry.AuditEmitter
}

func NewFriendHandler(workflow friendWorkflow, audit *telemetry.AuditEmitter) *FriendHandler {
	return &FriendHandler{workflow: workflow, audit: audit}
}

// ListRequests handles GET /friends/requests.
func (h *FriendHandler) ListRequests(c *gin.Context) {
	userID := c.GetString("userID")
	incoming, err := h.workflow.Incoming(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load requests"})
		return
	}
	outgoing, err := h.workflow.Outgoing(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load requests"})
		return
	}
	if incoming == nil {
		incoming = []models.FriendRequest{}
	}
	if outgoing == nil {
		outgoing = []models.FriendRequest{}
	}
	c.JSON(http.StatusOK, gin.H{"incoming": incoming, "outgoing": outgoing})
}

// SendRequest handles POST /friends/requests.
func (h *FriendHandler) SendRequest(c *gin.Context) {
	var req struct {
		ReceiverID string `json:"receiver_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	fr, err := h.workflow.Send(c.Request.Context(), c.GetString("userID"), req.ReceiverID)
	if err != nil {
		writeFriendError(c, err)
		return
	}
	emitAudit(c, h.audit, "INFO", "friends.request", "Friend request sent", "")
	c.JSON(http.StatusCreated, fr)
}

// AcceptRequest handles POST /friends/requests/:id/accept.
func (h *FriendHandler) AcceptRequest(c *gin.Context) {
	conv, err := h.workflow.Accept(c.Request.Context(), c.Param("id"), c.GetString("userID"))
	if err != nil {
		writeFriendError(c, err)
		return
	}
	emitAudit(c, h.audit, "INFO", "friends.accept", "Friend request accepted", "")
	c.JSON(http.StatusOK, gin.H{"conversation_id": conv.ID})
}

// RejectRequest handles DELETE /friends/requests/:id. Either party may
// reject or withdraw a waiting request.
func (h *FriendHandler) RejectRequest(c *gin.Context) {
	if err := h.workflow.Reject(c.Request.Context(), c.Param("id"), c.GetString("userID")); err != nil {
		writeFriendError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func writeFriendError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, friends.ErrSelfRequest):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, friends.ErrUnknownUser), errors.Is(err, friends.ErrRequestNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, friends.ErrDuplicateRequest), errors.Is(err, friends.ErrNotWaiting):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, friends.ErrNotReceiver), errors.Is(err, friends.ErrNotParty):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "friend request failed"})
	}
}
