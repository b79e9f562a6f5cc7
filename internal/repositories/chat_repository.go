package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"chat-sync/internal/docstore"
	"chat-sync/internal/identity"
	"chat-sync/internal/models"
)

var (
	ErrChatNotFound = errors.New("chat not found")
	ErrChatExists   = errors.New("chat already exists")
	ErrSelfChat     = errors.New("cannot create chat with self")
)

const conversationsCollection = "conversations"

// ChatRepository abstracts conversation records.
type ChatRepository interface {
	GetChat(ctx context.Context, chatID string) (models.Conversation, error)
	CreateChat(ctx context.Context, chat models.Conversation) (models.Conversation, error)
	CreateOrGetDirect(ctx context.Context, userID, peerID string) (models.Conversation, error)
}

// ChatRepo stores conversations as documents.
type ChatRepo struct {
	store docstore.Store
}

// NewChatRepo constructs a ChatRepo.
func NewChatRepo(store docstore.Store) *ChatRepo {
	return &ChatRepo{store: store}
}

func conversationPath(id string) string {
	return docstore.Join(conversationsCollection, id)
}

// GetChat fetches a conversation by id.
func (r *ChatRepo) GetChat(ctx context.Context, chatID string) (models.Conversation, error) {
	doc, err := r.store.Get(ctx, conversationPath(chatID))
	if errors.Is(err, docstore.ErrNotFound) {
		return models.Conversation{}, ErrChatNotFound
	}
	if err != nil {
		return models.Conversation{}, err
	}
	return conversationFromDoc(doc)
}

// CreateChat writes a new conversation record. The stored CreatedAt is the
// store's create time.
func (r *ChatRepo) CreateChat(ctx context.Context, chat models.Conversation) (models.Conversation, error) {
	if chat.CreatedAt.IsZero() {
		chat.CreatedAt = time.Now().UTC()
	}
	doc, err := r.store.Create(ctx, conversationPath(chat.ID), chat)
	if errors.Is(err, docstore.ErrAlreadyExists) {
		return models.Conversation{}, ErrChatExists
	}
	if err != nil {
		return models.Conversation{}, fmt.Errorf("create conversation %s: %w", chat.ID, err)
	}
	chat.CreatedAt = doc.CreateTime
	return chat, nil
}

// CreateOrGetDirect creates the two-party conversation between users if it
// does not already exist.
func (r *ChatRepo) CreateOrGetDirect(ctx context.Context, userID, peerID string) (models.Conversation, error) {
	if userID == peerID {
		return models.Conversation{}, ErrSelfChat
	}
	id := identity.DeriveConversationID(userID, peerID)
	chat, err := r.CreateChat(ctx, models.NewDirect(id, userID, peerID, time.Time{}))
	if errors.Is(err, ErrChatExists) {
		return r.GetChat(ctx, id)
	}
	return chat, err
}

func conversationFromDoc(doc docstore.Doc) (models.Conversation, error) {
	var chat models.Conversation
	if err := doc.DataTo(&chat); err != nil {
		return models.Conversation{}, fmt.Errorf("decode conversation %s: %w", doc.ID, err)
	}
	chat.ID = doc.ID
	chat.CreatedAt = doc.CreateTime
	return chat, nil
}

var _ ChatRepository = (*ChatRepo)(nil)
