// Package groups creates group conversations and seeds their members'
// chat indexes.
package groups

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"chat-sync/internal/logger"
	"chat-sync/internal/models"
	"chat-sync/internal/observability"
	"chat-sync/internal/repositories"
)

var (
	ErrInvalidName   = errors.New("group name is required")
	ErrUnknownMember = errors.New("unknown group member")
)

type Service struct {
	groups    repositories.GroupRepository
	users     repositories.UserRepository
	summaries repositories.SummaryRepository
}

func NewService(groups repositories.GroupRepository, users repositories.UserRepository, summaries repositories.SummaryRepository) *Service {
	return &Service{groups: groups, users: users, summaries: summaries}
}

// Create writes the group record and gives every member an empty-preview
// index entry stamped with the record's create time. Seeding failures are
// logged; the member's entry appears with the first message.
func (s *Service) Create(ctx context.Context, ownerID, name string, memberIDs []string, avatarRef string) (models.Conversation, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Conversation{}, ErrInvalidName
	}
	for _, id := range memberIDs {
		if id == ownerID {
			continue
		}
		if _, err := s.users.GetUser(ctx, id); err != nil {
			if errors.Is(err, repositories.ErrUserNotFound) {
				return models.Conversation{}, ErrUnknownMember
			}
			return models.Conversation{}, err
		}
	}

	group, err := s.groups.CreateGroup(ctx, ownerID, name, avatarRef, memberIDs)
	if err != nil {
		return models.Conversation{}, err
	}

	createdAt := group.CreatedAt
	var g errgroup.Group
	for _, member := range group.Participants {
		member := member
		g.Go(func() error {
			err := s.summaries.MergeSummary(ctx, member, models.ChatSummary{
				ConversationID: group.ID,
				IsGroup:        true,
				Name:           group.Name,
				AvatarRef:      group.AvatarRef,
				UpdatedAt:      &createdAt,
			})
			if err != nil {
				observability.FanoutWrites.WithLabelValues("failed").Inc()
				logger.Log.Warn("group_seed_failed", zap.String("group_id", group.ID), zap.String("user_id", member), zap.Error(err))
				return nil
			}
			observability.FanoutWrites.WithLabelValues("ok").Inc()
			return nil
		})
	}
	_ = g.Wait()

	logger.Log.Info("group_created", zap.String("group_id", group.ID), zap.Int("members", len(group.Participants)))
	observability.PublishEvent(ctx, "group.created", group)
	return group, nil
}

// ListForUser returns the groups the user belongs to.
func (s *Service) ListForUser(ctx context.Context, userID string) ([]models.Conversation, error) {
	return s.groups.ListGroupsForUser(ctx, userID)
}
