package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"chat-sync/internal/docstore"
	"chat-sync/internal/models"
)

var (
	ErrRequestNotFound = errors.New("friend request not found")
	ErrRequestExists   = errors.New("friend request already exists")
)

const friendRequestsCollection = "friend_requests"

// FriendRequestRepository stores friend requests under the pair's
// conversation key, so at most one request exists per unordered pair.
type FriendRequestRepository interface {
	CreateRequest(ctx context.Context, req models.FriendRequest) (models.FriendRequest, error)
	GetRequest(ctx context.Context, requestID string) (models.FriendRequest, error)
	SetStatus(ctx context.Context, requestID string, status models.FriendRequestStatus) error
	DeleteRequest(ctx context.Context, requestID string) error
	ListIncoming(ctx context.Context, userID string) ([]models.FriendRequest, error)
	ListOutgoing(ctx context.Context, userID string) ([]models.FriendRequest, error)
}

type FriendRequestRepo struct {
	store docstore.Store
}

func NewFriendRequestRepo(store docstore.Store) *FriendRequestRepo {
	return &FriendRequestRepo{store: store}
}

func requestPath(requestID string) string {
	return docstore.Join(friendRequestsCollection, requestID)
}

// CreateRequest fails with ErrRequestExists when any request for the pair
// is already stored.
func (r *FriendRequestRepo) CreateRequest(ctx context.Context, req models.FriendRequest) (models.FriendRequest, error) {
	if req.SentAt.IsZero() {
		req.SentAt = time.Now().UTC()
	}
	doc, err := r.store.Create(ctx, requestPath(req.ID), req)
	if errors.Is(err, docstore.ErrAlreadyExists) {
		return models.FriendRequest{}, ErrRequestExists
	}
	if err != nil {
		return models.FriendRequest{}, fmt.Errorf("create friend request: %w", err)
	}
	req.SentAt = doc.CreateTime
	return req, nil
}

func (r *FriendRequestRepo) GetRequest(ctx context.Context, requestID string) (models.FriendRequest, error) {
	doc, err := r.store.Get(ctx, requestPath(requestID))
	if errors.Is(err, docstore.ErrNotFound) {
		return models.FriendRequest{}, ErrRequestNotFound
	}
	if err != nil {
		return models.FriendRequest{}, err
	}
	return requestFromDoc(doc)
}

func (r *FriendRequestRepo) SetStatus(ctx context.Context, requestID string, status models.FriendRequestStatus) error {
	return r.store.Merge(ctx, requestPath(requestID), map[string]models.FriendRequestStatus{"status": status})
}

func (r *FriendRequestRepo) DeleteRequest(ctx context.Context, requestID string) error {
	return r.store.Delete(ctx, requestPath(requestID))
}

func (r *FriendRequestRepo) ListIncoming(ctx context.Context, userID string) ([]models.FriendRequest, error) {
	return r.list(ctx, "receiver_id", userID)
}

func (r *FriendRequestRepo) ListOutgoing(ctx context.Context, userID string) ([]models.FriendRequest, error) {
	return r.list(ctx, "sender_id", userID)
}

func (r *FriendRequestRepo) list(ctx context.Context, field, userID string) ([]models.FriendRequest, error) {
	docs, err := r.store.Query(ctx, friendRequestsCollection, docstore.Query{
		Filters: []docstore.Filter{
			docstore.Where(field, userID),
			docstore.Where("status", string(models.RequestWaiting)),
		},
		OrderBy:    docstore.CreateTimeField,
		Descending: true,
	})
	if err != nil {
		return nil, err
	}
	reqs := make([]models.FriendRequest, 0, len(docs))
	for _, doc := range docs {
		req, err := requestFromDoc(doc)
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, req)
	}
	return reqs, nil
}

func requestFromDoc(doc docstore.Doc) (models.FriendRequest, error) {
	var req models.FriendRequest
	if err := doc.DataTo(&req); err != nil {
		return models.FriendRequest{}, fmt.Errorf("decode friend request %s: %w", doc.ID, err)
	}
	req.ID = doc.ID
	req.SentAt = doc.CreateTime
	return req, nil
}

var _ FriendRequestRepository = (*FriendRequestRepo)(nil)
