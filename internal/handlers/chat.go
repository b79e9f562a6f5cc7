package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"chat-sync/internal/chat"
	"chat-sync/internal/models"
	"chat-sync/internal/repositories"
	"chat-sync/internal/storage"
)

type chatLister interface {
	Snapshot(ctx context.Context, userID string) ([]models.ChatPreview, error)
}

type messageSender interface {
	Send(ctx context.Context, req chat.SendRequest) (chat.SendResult, error)
}

// ChatHandler serves the chat list and conversation endpoints.
type ChatHandler struct {
	lister        chatLister
	chats         repositories.ChatRepository
	contacts      repositories.ContactRepository
	messages      repositories.MessageRepository
	sender        messageSender
	maxImageBytes int64
}

// NewChatHandler builds a ChatHandler.
func NewChatHandler(
	lister chatLister,
	chats repositories.ChatRepository,
	contacts repositories.ContactRepository,
	messages repositories.MessageRepository,
	sender messageSender,
	maxImageBytes int64,
) *ChatHandler {
	return &ChatHandler{
		lister:        lister,
		chats:         chats,
		contacts:      contacts,
		messages:      messages,
		sender:        sender,
		maxImageBytes: maxImageBytes,
	}
}

// ListChats returns the caller's aggregated chat list.
func (h *ChatHandler) ListChats(c *gin.Context) {
	list, err := h.lister.Snapshot(c.Request.Context(), c.GetString("userID"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load chats"})
		return
	}
	if list == nil {
		list = []models.ChatPreview{}
	}
	c.JSON(http.StatusOK, gin.H{"chats": list})
}

// StartChat creates or returns the direct conversation with an accepted
// contact.
func (h *ChatHandler) StartChat(c *gin.Context) {
	var req struct {
		PeerID string `json:"peer_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetString("userID")
	if userID == req.PeerID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot chat with yourself"})
		return
	}

	ok, err := h.contacts.IsContact(c.Request.Context(), userID, req.PeerID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to validate contact"})
		return
	}
	if !ok {
		c.JSON(http.StatusForbidden, gin.H{"error": "users are not contacts"})
		return
	}

	conv, err := h.chats.CreateOrGetDirect(c.Request.Context(), userID, req.PeerID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create chat"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"conversation_id": conv.ID})
}

// GetMessages returns the ordered message stream. A not yet created direct
// conversation reads as empty when ?peer= names the other party.
func (h *ChatHandler) GetMessages(c *gin.Context) {
	conversationID := c.Param("id")
	userID := c.GetString("userID")

	if err := chat.Authorize(c.Request.Context(), h.chats, conversationID, userID, c.Query("peer")); err != nil {
		writeAccessError(c, err)
		return
	}

	msgs, err := h.messages.ListMessages(c.Request.Context(), conversationID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// PostMessage sends a message. It accepts JSON {"text","peer_id"} or a
// multipart form with text, peer_id and an image file.
func (h *ChatHandler) PostMessage(c *gin.Context) {
	req := chat.SendRequest{
		ConversationID: c.Param("id"),
		SenderID:       c.GetString("userID"),
	}

	if strings.HasPrefix(c.ContentType(), "multipart/") {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxImageBytes+1<<20)
		req.Text = c.PostForm("text")
		req.PeerID = c.PostForm("peer_id")
		if fh, err := c.FormFile("image"); err == nil {
			if fh.Size > h.maxImageBytes {
				c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "image too large"})
				return
			}
			f, err := fh.Open()
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid image"})
				return
			}
			req.Image, err = io.ReadAll(io.LimitReader(f, h.maxImageBytes+1))
			f.Close()
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid image"})
				return
			}
			if int64(len(req.Image)) > h.maxImageBytes {
				c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "image too large"})
				return
			}
		} else if !errors.Is(err, http.ErrMissingFile) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	} else {
		var body struct {
			Text   string `json:"text"`
			PeerID string `json:"peer_id"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		req.Text = body.Text
		req.PeerID = body.PeerID
	}

	res, err := h.sender.Send(c.Request.Context(), req)
	if err != nil {
		writeSendError(c, err)
		return
	}
	if !res.Sent {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message is empty"})
		return
	}

	resp := gin.H{"message": res.Message}
	if len(res.FanoutFailures) > 0 {
		failed := make([]string, 0, len(res.FanoutFailures))
		for _, f := range res.FanoutFailures {
			failed = append(failed, f.UserID)
		}
		resp["fanout_failed"] = failed
	}
	c.JSON(http.StatusCreated, resp)
}

func writeAccessError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repositories.ErrChatNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
	case errors.Is(err, chat.ErrNotParticipant):
		c.JSON(http.StatusForbidden, gin.H{"error": "not a conversation member"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load conversation"})
	}
}

func writeSendError(c *gin.Context, err error) {
	var sendErr *chat.SendError
	stage := ""
	if errors.As(err, &sendErr) {
		stage = sendErr.Stage
	}
	switch {
	case errors.Is(err, storage.ErrNotImage):
		c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": "attachment is not an image", "stage": stage})
	case errors.Is(err, repositories.ErrChatNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found", "stage": stage})
	case errors.Is(err, chat.ErrNotParticipant):
		c.JSON(http.StatusForbidden, gin.H{"error": "not a conversation member", "stage": stage})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not send message", "stage": stage})
	}
}
