package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"chat-sync/internal/auth"
	"chat-sync/internal/chat"
	"chat-sync/internal/docstore"
	"chat-sync/internal/models"
	"chat-sync/internal/observability"
	"chat-sync/internal/rabbitmq"
	"chat-sync/internal/repositories"
	"chat-sync/internal/telemetry"
)

type ChatRepositoryMock struct {
	mock.Mock
}

func (m *ChatRepositoryMock) GetChat(ctx context.Context, chatID string) (models.Conversation, error) {
	args := m.Called(ctx, chatID)
	var chat models.Conversation
	if val := args.Get(0); val != nil {
		chat = val.(models.Conversation)
	}
	return chat, args.Error(1)
}

func (m *ChatRepositoryMock) CreateChat(ctx context.Context, chat models.Conversation) (models.Conversation, error) {
	args := m.Called(ctx, chat)
	var created models.Conversation
	if val := args.Get(0); val != nil {
		created = val.(models.Conversation)
	}
	return created, args.Error(1)
}

func (m *ChatRepositoryMock) CreateOrGetDirect(ctx context.Context, userID, peerID string) (models.Conversation, error) {
	args := m.Called(ctx, userID, peerID)
	var chat models.Conversation
	if val := args.Get(0); val != nil {
		chat = val.(models.Conversation)
	}
	return chat, args.Error(1)
}

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) AppendMessage(ctx context.Context, msg models.Message) (models.Message, error) {
	args := m.Called(ctx, msg)
	var stored models.Message
	if val := args.Get(0); val != nil {
		stored = val.(models.Message)
	}
	return stored, args.Error(1)
}

func (m *MessageRepositoryMock) ListMessages(ctx context.Context, chatID string) ([]models.Message, error) {
	args := m.Called(ctx, chatID)
	var list []models.Message
	if val := args.Get(0); val != nil {
		list = val.([]models.Message)
	}
	return list, args.Error(1)
}

func (m *MessageRepositoryMock) WatchMessages(chatID string, fn func([]models.Message, error)) docstore.Unsubscribe {
	args := m.Called(chatID, fn)
	if val := args.Get(0); val != nil {
		return val.(docstore.Unsubscribe)
	}
	return func() {}
}

type ContactRepositoryMock struct {
	mock.Mock
}

func (m *ContactRepositoryMock) AddContact(ctx context.Context, ownerID, peerID string) error {
	args := m.Called(ctx, ownerID, peerID)
	return args.Error(0)
}

func (m *ContactRepositoryMock) IsContact(ctx context.Context, ownerID, peerID string) (bool, error) {
	args := m.Called(ctx, ownerID, peerID)
	return args.Bool(0), args.Error(1)
}

func (m *ContactRepositoryMock) ListContacts(ctx context.Context, ownerID string) ([]models.Contact, error) {
	args := m.Called(ctx, ownerID)
	var list []models.Contact
	if val := args.Get(0); val != nil {
		list = val.([]models.Contact)
	}
	return list, args.Error(1)
}

func (m *ContactRepositoryMock) WatchContacts(ownerID string, fn func([]models.Contact, error)) docstore.Unsubscribe {
	args := m.Called(ownerID, fn)
	if val := args.Get(0); val != nil {
		return val.(docstore.Unsubscribe)
	}
	return func() {}
}

type UserRepositoryMock struct {
	mock.Mock
}

func (m *UserRepositoryMock) GetUser(ctx context.Context, userID string) (models.User, error) {
	args := m.Called(ctx, userID)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *UserRepositoryMock) PutUser(ctx context.Context, user models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *UserRepositoryMock) UpdateProfile(ctx context.Context, userID string, username, avatar *string) (models.User, error) {
	args := m.Called(ctx, userID, username, avatar)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *UserRepositoryMock) FindByEmail(ctx context.Context, email string) (models.User, error) {
	args := m.Called(ctx, email)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

type AvatarResolverMock struct {
	mock.Mock
}

func (m *AvatarResolverMock) Resolve(ctx context.Context, ref string) string {
	args := m.Called(ctx, ref)
	return args.String(0)
}

type ChatListerMock struct {
	mock.Mock
}

func (m *ChatListerMock) Snapshot(ctx context.Context, userID string) ([]models.ChatPreview, error) {
	args := m.Called(ctx, userID)
	var list []models.ChatPreview
	if val := args.Get(0); val != nil {
		list = val.([]models.ChatPreview)
	}
	return list, args.Error(1)
}

type SenderMock struct {
	mock.Mock
}

func (m *SenderMock) Send(ctx context.Context, req chat.SendRequest) (chat.SendResult, error) {
	args := m.Called(ctx, req)
	var res chat.SendResult
	if val := args.Get(0); val != nil {
		res = val.(chat.SendResult)
	}
	return res, args.Error(1)
}

type AuthServiceMock struct {
	mock.Mock
}

func (m *AuthServiceMock) Register(ctx context.Context, in auth.RegisterInput) (models.User, error) {
	args := m.Called(ctx, in)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *AuthServiceMock) Login(ctx context.Context, email, password string) (auth.Token, error) {
	args := m.Called(ctx, email, password)
	var token auth.Token
	if val := args.Get(0); val != nil {
		token = val.(auth.Token)
	}
	return token, args.Error(1)
}

func (m *AuthServiceMock) Logout(ctx context.Context, token string) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

func (m *AuthServiceMock) Authenticate(ctx context.Context, token string) (auth.Claims, error) {
	args := m.Called(ctx, token)
	var claims auth.Claims
	if val := args.Get(0); val != nil {
		claims = val.(auth.Claims)
	}
	return claims, args.Error(1)
}

type FriendWorkflowMock struct {
	mock.Mock
}

func (m *FriendWorkflowMock) Send(ctx context.Context, senderID, receiverID string) (models.FriendRequest, error) {
	args := m.Called(ctx, senderID, receiverID)
	var req models.FriendRequest
	if val := args.Get(0); val != nil {
		req = val.(models.FriendRequest)
	}
	return req, args.Error(1)
}

func (m *FriendWorkflowMock) Accept(ctx context.Context, requestID, actorID string) (models.Conversation, error) {
	args := m.Called(ctx, requestID, actorID)
	var conv models.Conversation
	if val := args.Get(0); val != nil {
		conv = val.(models.Conversation)
	}
	return conv, args.Error(1)
}

func (m *FriendWorkflowMock) Reject(ctx context.Context, requestID, actorID string) error {
	args := m.Called(ctx, requestID, actorID)
	return args.Error(0)
}

func (m *FriendWorkflowMock) Incoming(ctx context.Context, userID string) ([]models.FriendRequest, error) {
	args := m.Called(ctx, userID)
	var list []models.FriendRequest
	if val := args.Get(0); val != nil {
		list = val.([]models.FriendRequest)
	}
	return list, args.Error(1)
}

func (m *FriendWorkflowMock) Outgoing(ctx context.Context, userID string) ([]models.FriendRequest, error) {
	args := m.Called(ctx, userID)
	var list []models.FriendRequest
	if val := args.Get(0); val != nil {
		list = val.([]models.FriendRequest)
	}
	return list, args.Error(1)
}

type GroupServiceMock struct {
	mock.Mock
}

func (m *GroupServiceMock) Create(ctx context.Context, ownerID, name string, memberIDs []string, avatarRef string) (models.Conversation, error) {
	args := m.Called(ctx, ownerID, name, memberIDs, avatarRef)
	var group models.Conversation
	if val := args.Get(0); val != nil {
		group = val.(models.Conversation)
	}
	return group, args.Error(1)
}

func (m *GroupServiceMock) ListForUser(ctx context.Context, userID string) ([]models.Conversation, error) {
	args := m.Called(ctx, userID)
	var list []models.Conversation
	if val := args.Get(0); val != nil {
		list = val.([]models.Conversation)
	}
	return list, args.Error(1)
}

var (
	_ repositories.ChatRepository    = (*ChatRepositoryMock)(nil)
	_ repositories.MessageRepository = (*MessageRepositoryMock)(nil)
	_ repositories.ContactRepository = (*ContactRepositoryMock)(nil)
	_ repositories.UserRepository    = (*UserRepositoryMock)(nil)
)

// PublisherMock stands in for the AMQP publisher, the audit emitter sink and
// the domain event publisher.
type PublisherMock struct {
	mock.Mock
}

func (m *PublisherMock) Publish(ctx context.Context, routingKey string, event any) error {
	return m.Called(ctx, routingKey, event).Error(0)
}

func (m *PublisherMock) Close() error {
	return m.Called().Error(0)
}

var (
	_ rabbitmq.Publisher      = (*PublisherMock)(nil)
	_ telemetry.Publisher     = (*PublisherMock)(nil)
	_ observability.Publisher = (*PublisherMock)(nil)
)
