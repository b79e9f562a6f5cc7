package ws

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"chat-sync/internal/chatlist"
	"chat-sync/internal/logger"
	"chat-sync/internal/models"
	"chat-sync/internal/observability"
)

// ChatListWebSocketHandler streams the caller's aggregated chat list.
type ChatListWebSocketHandler struct {
	hub        *Hub
	aggregator *chatlist.Aggregator
}

// NewChatListWebSocketHandler constructs a ChatListWebSocketHandler.
func NewChatListWebSocketHandler(hub *Hub, aggregator *chatlist.Aggregator) *ChatListWebSocketHandler {
	return &ChatListWebSocketHandler{hub: hub, aggregator: aggregator}
}

// Handle upgrades the connection and pushes a "chats" frame on every change.
func (h *ChatListWebSocketHandler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("chat-sync/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()

	userID := c.GetString("userID")
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	client := newClient(conn, kindChats, userID, connInfo(c, span.SpanContext().TraceID().String()))

	unsub := h.aggregator.Subscribe(userID, func(list []models.ChatPreview, err error) {
		event := models.ChatEvent{Type: "chats", Chats: list}
		if list == nil {
			event.Chats = []models.ChatPreview{}
		}
		if err != nil {
			event = models.ChatEvent{Type: "error", Error: "chat list unavailable"}
		}
		if werr := client.WriteJSON(event); werr != nil {
			logger.Log.Debug("websocket write error", zap.String("conn_id", client.info.ConnID), zap.Error(werr))
			client.Close()
		}
	})

	ctx = context.WithoutCancel(ctx)
	go func() {
		defer unsub()
		h.hub.serve(ctx, client, nil)
	}()
}

func connInfo(c *gin.Context, traceID string) ConnInfo {
	return ConnInfo{
		ConnID:      newConnID(),
		UserID:      c.GetString("userID"),
		SessionID:   c.GetString("sessionID"),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   observability.RequestIDFromRequest(c.Request),
		TraceID:     traceID,
		ConnectedAt: time.Now(),
	}
}
