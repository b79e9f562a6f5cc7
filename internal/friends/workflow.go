// Package friends implements the friend request lifecycle:
// none -> waiting -> accepted, or waiting -> removed (back to none).
package friends

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"chat-sync/internal/identity"
	"chat-sync/internal/logger"
	"chat-sync/internal/models"
	"chat-sync/internal/observability"
	"chat-sync/internal/repositories"
)

var (
	ErrSelfRequest      = errors.New("cannot send a friend request to yourself")
	ErrUnknownUser      = errors.New("receiver does not exist")
	ErrDuplicateRequest = errors.New("a request between these users already exists")
	ErrRequestNotFound  = errors.New("friend request not found")
	ErrNotReceiver      = errors.New("only the receiver can accept")
	ErrNotParty         = errors.New("not a party to this request")
	ErrNotWaiting       = errors.New("friend request is no longer waiting")
)

type Workflow struct {
	requests repositories.FriendRequestRepository
	users    repositories.UserRepository
	contacts repositories.ContactRepository
	chats    repositories.ChatRepository
}

func NewWorkflow(
	requests repositories.FriendRequestRepository,
	users repositories.UserRepository,
	contacts repositories.ContactRepository,
	chats repositories.ChatRepository,
) *Workflow {
	return &Workflow{requests: requests, users: users, contacts: contacts, chats: chats}
}

// Send creates a waiting request. The request id is the pair's
// conversation key, so the store rejects a second request for the pair
// while one is waiting or accepted.
func (w *Workflow) Send(ctx context.Context, senderID, receiverID string) (models.FriendRequest, error) {
	if senderID == receiverID {
		return models.FriendRequest{}, ErrSelfRequest
	}
	if _, err := w.users.GetUser(ctx, receiverID); err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return models.FriendRequest{}, ErrUnknownUser
		}
		return models.FriendRequest{}, err
	}

	req, err := w.requests.CreateRequest(ctx, models.FriendRequest{
		ID:         identity.DeriveConversationID(senderID, receiverID),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Status:     models.RequestWaiting,
	})
	if errors.Is(err, repositories.ErrRequestExists) {
		return models.FriendRequest{}, ErrDuplicateRequest
	}
	if err != nil {
		return models.FriendRequest{}, err
	}

	w.transition(ctx, "sent", req)
	return req, nil
}

// Accept moves a waiting request to accepted, ensures the conversation
// record exists and adds the users to each other's contacts.
func (w *Workflow) Accept(ctx context.Context, requestID, actorID string) (models.Conversation, error) {
	req, err := w.get(ctx, requestID)
	if err != nil {
		return models.Conversation{}, err
	}
	if req.ReceiverID != actorID {
		return models.Conversation{}, ErrNotReceiver
	}
	if req.Status != models.RequestWaiting {
		return models.Conversation{}, ErrNotWaiting
	}

	chat, err := w.chats.CreateOrGetDirect(ctx, req.SenderID, req.ReceiverID)
	if err != nil {
		return models.Conversation{}, fmt.Errorf("create conversation: %w", err)
	}
	if err := w.contacts.AddContact(ctx, req.SenderID, req.ReceiverID); err != nil {
		return models.Conversation{}, fmt.Errorf("add contact: %w", err)
	}
	if err := w.contacts.AddContact(ctx, req.ReceiverID, req.SenderID); err != nil {
		return models.Conversation{}, fmt.Errorf("add contact: %w", err)
	}
	// Status flips last: a failed accept stays waiting and can be retried.
	if err := w.requests.SetStatus(ctx, requestID, models.RequestAccepted); err != nil {
		return models.Conversation{}, fmt.Errorf("accept request: %w", err)
	}

	req.Status = models.RequestAccepted
	w.transition(ctx, "accepted", req)
	return chat, nil
}

// Reject deletes a waiting request. Either party may reject.
func (w *Workflow) Reject(ctx context.Context, requestID, actorID string) error {
	req, err := w.get(ctx, requestID)
	if err != nil {
		return err
	}
	if req.SenderID != actorID && req.ReceiverID != actorID {
		return ErrNotParty
	}
	if req.Status != models.RequestWaiting {
		return ErrNotWaiting
	}
	if err := w.requests.DeleteRequest(ctx, requestID); err != nil {
		return err
	}

	w.transition(ctx, "rejected", req)
	return nil
}

// Incoming lists waiting requests addressed to the user.
func (w *Workflow) Incoming(ctx context.Context, userID string) ([]models.FriendRequest, error) {
	return w.requests.ListIncoming(ctx, userID)
}

// Outgoing lists waiting requests the user sent.
func (w *Workflow) Outgoing(ctx context.Context, userID string) ([]models.FriendRequest, error) {
	return w.requests.ListOutgoing(ctx, userID)
}

func (w *Workflow) get(ctx context.Context, requestID string) (models.FriendRequest, error) {
	req, err := w.requests.GetRequest(ctx, requestID)
	if errors.Is(err, repositories.ErrRequestNotFound) {
		return models.FriendRequest{}, ErrRequestNotFound
	}
	return req, err
}

func (w *Workflow) transition(ctx context.Context, name string, req models.FriendRequest) {
	observability.FriendRequestTransitions.WithLabelValues(name).Inc()
	logger.Log.Info("friend_request_"+name,
		zap.String("request_id", req.ID),
		zap.String("sender_id", req.SenderID),
		zap.String("receiver_id", req.ReceiverID))
	observability.PublishEvent(ctx, "friend_request."+name, req)
}
