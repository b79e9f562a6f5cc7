package repositories

import (
	"context"
	"errors"
	"fmt"

	"chat-sync/internal/docstore"
	"chat-sync/internal/models"
)

var (
	ErrCredentialNotFound = errors.New("credential not found")
	ErrEmailTaken         = errors.New("email already registered")
	ErrSessionNotFound    = errors.New("session not found")
)

// SessionRepository stores login credentials and live sessions.
type SessionRepository interface {
	CreateCredential(ctx context.Context, email string, cred models.Credential) error
	GetCredential(ctx context.Context, email string) (models.Credential, error)
	DeleteCredential(ctx context.Context, email string) error
	PutSession(ctx context.Context, session models.Session) error
	GetSession(ctx context.Context, sessionID string) (models.Session, error)
	DeleteSession(ctx context.Context, sessionID string) error
}

type SessionRepo struct {
	store docstore.Store
}

func NewSessionRepo(store docstore.Store) *SessionRepo {
	return &SessionRepo{store: store}
}

func credentialPath(email string) string {
	return docstore.Join("credentials", normalizeEmail(email))
}

func sessionPath(sessionID string) string {
	return docstore.Join("sessions", sessionID)
}

// CreateCredential claims the email; a second registration fails with
// ErrEmailTaken.
func (r *SessionRepo) CreateCredential(ctx context.Context, email string, cred models.Credential) error {
	_, err := r.store.Create(ctx, credentialPath(email), cred)
	if errors.Is(err, docstore.ErrAlreadyExists) {
		return ErrEmailTaken
	}
	return err
}

func (r *SessionRepo) GetCredential(ctx context.Context, email string) (models.Credential, error) {
	doc, err := r.store.Get(ctx, credentialPath(email))
	if errors.Is(err, docstore.ErrNotFound) {
		return models.Credential{}, ErrCredentialNotFound
	}
	if err != nil {
		return models.Credential{}, err
	}
	var cred models.Credential
	if err := doc.DataTo(&cred); err != nil {
		return models.Credential{}, fmt.Errorf("decode credential: %w", err)
	}
	return cred, nil
}

// DeleteCredential releases the email.
func (r *SessionRepo) DeleteCredential(ctx context.Context, email string) error {
	return r.store.Delete(ctx, credentialPath(email))
}

func (r *SessionRepo) PutSession(ctx context.Context, session models.Session) error {
	return r.store.Set(ctx, sessionPath(session.ID), session)
}

func (r *SessionRepo) GetSession(ctx context.Context, sessionID string) (models.Session, error) {
	doc, err := r.store.Get(ctx, sessionPath(sessionID))
	if errors.Is(err, docstore.ErrNotFound) {
		return models.Session{}, ErrSessionNotFound
	}
	if err != nil {
		return models.Session{}, err
	}
	var session models.Session
	if err := doc.DataTo(&session); err != nil {
		return models.Session{}, fmt.Errorf("decode session: %w", err)
	}
	session.ID = doc.ID
	return session, nil
}

func (r *SessionRepo) DeleteSession(ctx context.Context, sessionID string) error {
	return r.store.Delete(ctx, sessionPath(sessionID))
}

var _ SessionRepository = (*SessionRepo)(nil)
