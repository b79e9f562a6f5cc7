package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"chat-sync/internal/observability"
	"chat-sync/internal/telemetry"
)

func requestIDFromContext(c *gin.Context) string {
	if id := c.GetString(observability.RequestIDKey); id != "" {
		return id
	}

	requestID := observability.RequestIDFromRequest(c.Request)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Set(observability.RequestIDKey, requestID)
	return requestID
}

// emitAudit records an action for the caller; userID defaults to the
// authenticated user.
func emitAudit(c *gin.Context, audit *telemetry.AuditEmitter, level, action, text, userID string) {
	if audit == nil {
		return
	}
	if userID == "" {
		userID = c.GetString("userID")
	}
	audit.Emit(c.Request.Context(), telemetry.AuditRecord{
		Level:     level,
		Action:    action,
		Text:      text,
		RequestID: requestIDFromContext(c),
		UserID:    userID,
		IP:        observability.IPFromRequest(c.Request),
	})
}
