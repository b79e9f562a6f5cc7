package repositories

import (
	"context"
	"fmt"
	"time"

	"chat-sync/internal/docstore"
	"chat-sync/internal/models"
)

// MessageRepository defines interactions with a conversation's message stream.
type MessageRepository interface {
	AppendMessage(ctx context.Context, msg models.Message) (models.Message, error)
	ListMessages(ctx context.Context, chatID string) ([]models.Message, error)
	WatchMessages(chatID string, fn func([]models.Message, error)) docstore.Unsubscribe
}

// MessageRepo is a docstore-backed repository.
type MessageRepo struct {
	store docstore.Store
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(store docstore.Store) *MessageRepo {
	return &MessageRepo{store: store}
}

// messageDoc is the stored shape; id and sent time belong to the store.
type messageDoc struct {
	Text         string `json:"text,omitempty"`
	ImageRef     string `json:"image_ref,omitempty"`
	SenderID     string `json:"sender_id"`
	SenderAvatar string `json:"sender_avatar,omitempty"`
}

func messagesCollection(chatID string) string {
	return docstore.Join(conversationsCollection, chatID, "messages")
}

var byServerTime = docstore.Query{OrderBy: docstore.CreateTimeField}

// AppendMessage adds msg to the stream. The returned message carries the
// store-assigned id and SentAt.
func (r *MessageRepo) AppendMessage(ctx context.Context, msg models.Message) (models.Message, error) {
	doc, err := r.store.Append(ctx, messagesCollection(msg.ConversationID), messageDoc{
		Text:         msg.Text,
		ImageRef:     msg.ImageRef,
		SenderID:     msg.SenderID,
		SenderAvatar: msg.SenderAvatar,
	})
	if err != nil {
		return models.Message{}, fmt.Errorf("append message: %w", err)
	}
	msg.ID = doc.ID
	msg.SentAt = doc.CreateTime
	return msg, nil
}

// ListMessages returns the stream ordered by server time ascending.
func (r *MessageRepo) ListMessages(ctx context.Context, chatID string) ([]models.Message, error) {
	docs, err := r.store.Query(ctx, messagesCollection(chatID), byServerTime)
	if err != nil {
		return nil, err
	}
	return messagesFromDocs(chatID, docs)
}

// WatchMessages emits the full ordered stream on every change.
func (r *MessageRepo) WatchMessages(chatID string, fn func([]models.Message, error)) docstore.Unsubscribe {
	return r.store.WatchQuery(messagesCollection(chatID), byServerTime, func(docs []docstore.Doc, err error) {
		if err != nil {
			fn(nil, err)
			return
		}
		fn(messagesFromDocs(chatID, docs))
	})
}

func messagesFromDocs(chatID string, docs []docstore.Doc) ([]models.Message, error) {
	msgs := make([]models.Message, 0, len(docs))
	for _, doc := range docs {
		var stored messageDoc
		if err := doc.DataTo(&stored); err != nil {
			return nil, fmt.Errorf("decode message %s: %w", doc.ID, err)
		}
		msgs = append(msgs, models.Message{
			ID:             doc.ID,
			ConversationID: chatID,
			Text:           stored.Text,
			ImageRef:       stored.ImageRef,
			SenderID:       stored.SenderID,
			SenderAvatar:   stored.SenderAvatar,
			SentAt:         doc.CreateTime.In(time.UTC),
		})
	}
	return msgs, nil
}

var _ MessageRepository = (*MessageRepo)(nil)
