package repositories

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"

	"chat-sync/internal/docstore"
	"chat-sync/internal/models"
)

var ErrGroupNotFound = errors.New("group not found")

// GroupRepository abstracts group conversations.
type GroupRepository interface {
	CreateGroup(ctx context.Context, ownerID, name, avatarRef string, memberIDs []string) (models.Conversation, error)
	ListGroupsForUser(ctx context.Context, userID string) ([]models.Conversation, error)
	GetGroup(ctx context.Context, groupID string) (models.Conversation, error)
}

// GroupRepo keeps groups in the conversations collection and finds a
// user's groups through their chat index.
type GroupRepo struct {
	chats     *ChatRepo
	summaries *SummaryRepo
}

// NewGroupRepo constructs a GroupRepo.
func NewGroupRepo(store docstore.Store) *GroupRepo {
	return &GroupRepo{chats: NewChatRepo(store), summaries: NewSummaryRepo(store)}
}

// CreateGroup writes a new group record. The owner is always a member.
func (r *GroupRepo) CreateGroup(ctx context.Context, ownerID, name, avatarRef string, memberIDs []string) (models.Conversation, error) {
	group := models.NewGroup(uuid.NewString(), ownerID, name, avatarRef, memberIDs, time.Time{})
	return r.chats.CreateChat(ctx, group)
}

// ListGroupsForUser returns groups present in the user's index, newest first.
func (r *GroupRepo) ListGroupsForUser(ctx context.Context, userID string) ([]models.Conversation, error) {
	summaries, err := r.summaries.GetSummaries(ctx, userID)
	if err != nil {
		return nil, err
	}

	var groups []models.Conversation
	for id, s := range summaries {
		if !s.IsGroup {
			continue
		}
		group, err := r.GetGroup(ctx, id)
		if errors.Is(err, ErrGroupNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if group.HasParticipant(userID) {
			groups = append(groups, group)
		}
	}
	sort.Slice(groups, func(i, j int) bool {
		if !groups[i].CreatedAt.Equal(groups[j].CreatedAt) {
			return groups[i].CreatedAt.After(groups[j].CreatedAt)
		}
		return groups[i].ID < groups[j].ID
	})
	return groups, nil
}

// GetGroup fetches a single group.
func (r *GroupRepo) GetGroup(ctx context.Context, groupID string) (models.Conversation, error) {
	chat, err := r.chats.GetChat(ctx, groupID)
	if errors.Is(err, ErrChatNotFound) {
		return models.Conversation{}, ErrGroupNotFound
	}
	if err != nil {
		return models.Conversation{}, err
	}
	if !chat.IsGroup() {
		return models.Conversation{}, ErrGroupNotFound
	}
	return chat, nil
}

var _ GroupRepository = (*GroupRepo)(nil)
