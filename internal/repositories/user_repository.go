package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"chat-sync/internal/docstore"
	"chat-sync/internal/models"
)

var ErrUserNotFound = errors.New("user not found")

// UserRepository abstracts user profiles.
type UserRepository interface {
	GetUser(ctx context.Context, userID string) (models.User, error)
	PutUser(ctx context.Context, user models.User) error
	UpdateProfile(ctx context.Context, userID string, username, avatar *string) (models.User, error)
	FindByEmail(ctx context.Context, email string) (models.User, error)
}

type UserRepo struct {
	store docstore.Store
}

func NewUserRepo(store docstore.Store) *UserRepo {
	return &UserRepo{store: store}
}

func userPath(userID string) string {
	return docstore.Join("users", userID)
}

func (r *UserRepo) GetUser(ctx context.Context, userID string) (models.User, error) {
	doc, err := r.store.Get(ctx, userPath(userID))
	if errors.Is(err, docstore.ErrNotFound) {
		return models.User{}, ErrUserNotFound
	}
	if err != nil {
		return models.User{}, err
	}
	var user models.User
	if err := doc.DataTo(&user); err != nil {
		return models.User{}, fmt.Errorf("decode user %s: %w", userID, err)
	}
	user.ID = doc.ID
	return user, nil
}

func (r *UserRepo) PutUser(ctx context.Context, user models.User) error {
	user.Email = normalizeEmail(user.Email)
	return r.store.Set(ctx, userPath(user.ID), user)
}

// UpdateProfile changes only the fields that are non-nil.
func (r *UserRepo) UpdateProfile(ctx context.Context, userID string, username, avatar *string) (models.User, error) {
	if _, err := r.GetUser(ctx, userID); err != nil {
		return models.User{}, err
	}
	fields := map[string]string{}
	if username != nil {
		fields["username"] = *username
	}
	if avatar != nil {
		fields["avatar"] = *avatar
	}
	if len(fields) > 0 {
		if err := r.store.Merge(ctx, userPath(userID), fields); err != nil {
			return models.User{}, err
		}
	}
	return r.GetUser(ctx, userID)
}

func (r *UserRepo) FindByEmail(ctx context.Context, email string) (models.User, error) {
	docs, err := r.store.Query(ctx, "users", docstore.Query{
		Filters: []docstore.Filter{docstore.Where("email", normalizeEmail(email))},
	})
	if err != nil {
		return models.User{}, err
	}
	if len(docs) == 0 {
		return models.User{}, ErrUserNotFound
	}
	var user models.User
	if err := docs[0].DataTo(&user); err != nil {
		return models.User{}, err
	}
	user.ID = docs[0].ID
	return user, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

var _ UserRepository = (*UserRepo)(nil)
