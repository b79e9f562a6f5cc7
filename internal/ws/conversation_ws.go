package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"chat-sync/internal/chat"
	"chat-sync/internal/logger"
	"chat-sync/internal/middleware"
	"chat-sync/internal/models"
	"chat-sync/internal/repositories"
)

const maxFrameBytes = 8 << 20

type clientFrame struct {
	Type  string `json:"type"`
	Text  string `json:"text"`
	Image []byte `json:"image"`
}

// ConversationWebSocketHandler streams one conversation and accepts
// composer frames for it.
type ConversationWebSocketHandler struct {
	hub     *Hub
	chats   repositories.ChatRepository
	channel *chat.Channel
	sender  *chat.Sender
	limiter *middleware.LimiterPool
}

// NewConversationWebSocketHandler constructs the handler. limiter may be nil.
func NewConversationWebSocketHandler(
	hub *Hub,
	chats repositories.ChatRepository,
	channel *chat.Channel,
	sender *chat.Sender,
	limiter *middleware.LimiterPool,
) *ConversationWebSocketHandler {
	return &ConversationWebSocketHandler{hub: hub, chats: chats, channel: channel, sender: sender, limiter: limiter}
}

// Handle serves /ws/conversations/:id?peer=<uid>.
//
// Client frames: {"type":"draft","text":..,"image":<base64>} replaces the
// composer content; {"type":"send"} sends it. Server frames are
// "messages", "sent" and "send_failed".
func (h *ConversationWebSocketHandler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("chat-sync/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()

	userID := c.GetString("userID")
	conversationID := c.Param("id")
	peerID := c.Query("peer")

	if err := chat.Authorize(ctx, h.chats, conversationID, userID, peerID); err != nil {
		switch {
		case errors.Is(err, repositories.ErrChatNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
		case errors.Is(err, chat.ErrNotParticipant):
			c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load conversation"})
		}
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	conn.SetReadLimit(maxFrameBytes)
	client := newClient(conn, kindConversation, conversationID, connInfo(c, span.SpanContext().TraceID().String()))

	unsub := h.channel.Subscribe(conversationID, func(msgs []models.Message, err error) {
		event := models.ChatEvent{Type: "messages", Messages: msgs}
		if err != nil {
			event = models.ChatEvent{Type: "error", Error: "messages unavailable"}
		}
		if werr := client.WriteJSON(event); werr != nil {
			logger.Log.Debug("websocket write error", zap.String("conn_id", client.info.ConnID), zap.Error(werr))
			client.Close()
		}
	})

	// the feed and its sends outlive the handshake request
	ctx = context.WithoutCancel(ctx)
	var draft chat.Draft

	go func() {
		defer unsub()
		h.hub.serve(ctx, client, func(data []byte) {
			var frame clientFrame
			if err := json.Unmarshal(data, &frame); err != nil {
				_ = client.WriteJSON(models.ChatEvent{Type: "error", Error: "invalid frame"})
				return
			}
			switch frame.Type {
			case "draft":
				draft.SetText(frame.Text)
				draft.SetImage(frame.Image)
			case "send":
				if h.limiter != nil && !h.limiter.Allow(userID) {
					_ = client.WriteJSON(models.ChatEvent{Type: "send_failed", Error: "rate limit exceeded"})
					return
				}
				pending := h.sender.SendDraft(ctx, conversationID, userID, peerID, &draft)
				go h.report(client, pending)
			default:
				_ = client.WriteJSON(models.ChatEvent{Type: "error", Error: "unknown frame type"})
			}
		})
	}()
}

func (h *ConversationWebSocketHandler) report(client *Client, pending <-chan chat.Outcome) {
	outcome, ok := <-pending
	if !ok {
		return
	}
	if outcome.Err != nil {
		stage := "unknown"
		var sendErr *chat.SendError
		if errors.As(outcome.Err, &sendErr) {
			stage = sendErr.Stage
		}
		_ = client.WriteJSON(models.ChatEvent{Type: "send_failed", Error: stage})
		return
	}
	if !outcome.Result.Sent {
		return
	}
	_ = client.WriteJSON(models.ChatEvent{Type: "sent", MessageID: outcome.Result.Message.ID})
}
