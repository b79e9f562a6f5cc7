package chat

import (
	"context"
	"sync"

	"chat-sync/internal/docstore"
	"chat-sync/internal/models"
	"chat-sync/internal/observability"
	"chat-sync/internal/repositories"
)

// Channel delivers a conversation's message stream, ordered by server time.
type Channel struct {
	messages repositories.MessageRepository
}

func NewChannel(messages repositories.MessageRepository) *Channel {
	return &Channel{messages: messages}
}

// Subscribe calls fn with the full ordered stream now and after every change
// until the returned func is called.
func (c *Channel) Subscribe(conversationID string, fn func([]models.Message, error)) docstore.Unsubscribe {
	observability.LiveSubscriptions.WithLabelValues("messages").Inc()
	stop := c.messages.WatchMessages(conversationID, fn)

	var once sync.Once
	return func() {
		once.Do(func() {
			stop()
			observability.LiveSubscriptions.WithLabelValues("messages").Dec()
		})
	}
}

// Snapshot reads the stream once.
func (c *Channel) Snapshot(ctx context.Context, conversationID string) ([]models.Message, error) {
	return c.messages.ListMessages(ctx, conversationID)
}
