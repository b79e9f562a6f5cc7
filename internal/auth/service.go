// Package auth registers users, signs them in and out and validates
// session tokens.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"chat-sync/internal/logger"
	"chat-sync/internal/models"
	"chat-sync/internal/observability"
	"chat-sync/internal/repositories"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid token")
	ErrInvalidInput       = errors.New("invalid registration input")
	ErrEmailTaken         = repositories.ErrEmailTaken
)

const minPasswordLen = 6

// Claims identify an authenticated session.
type Claims struct {
	UserID    string
	SessionID string
}

// Token is returned by Login.
type Token struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      models.User `json:"user"`
}

type RegisterInput struct {
	Email    string
	Password string
	Username string
	Avatar   string
}

type Service struct {
	users     repositories.UserRepository
	sessions  repositories.SessionRepository
	summaries repositories.SummaryRepository
	secret    []byte
	ttl       time.Duration
	events    *Events
	now       func() time.Time
}

func NewService(users repositories.UserRepository, sessions repositories.SessionRepository, summaries repositories.SummaryRepository, secret string, ttl time.Duration) *Service {
	return &Service{
		users:     users,
		sessions:  sessions,
		summaries: summaries,
		secret:    []byte(secret),
		ttl:       ttl,
		events:    NewEvents(),
		now:       time.Now,
	}
}

// Events returns the sign-in/sign-out stream.
func (s *Service) Events() *Events {
	return s.events
}

// Register creates the credential, profile and empty chat index of a new user.
func (s *Service) Register(ctx context.Context, in RegisterInput) (models.User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	username := strings.TrimSpace(in.Username)
	if !strings.Contains(email, "@") || strings.Contains(email, "/") || username == "" || len(in.Password) < minPasswordLen {
		return models.User{}, ErrInvalidInput
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return models.User{}, err
	}

	user := models.User{ID: uuid.NewString(), Username: username, Avatar: in.Avatar, Email: email}
	if err := s.sessions.CreateCredential(ctx, email, models.Credential{UserID: user.ID, PasswordHash: string(hash)}); err != nil {
		return models.User{}, err
	}
	// Profile last; on failure the email is released for a retry.
	if err := s.summaries.InitIndex(ctx, user.ID); err != nil {
		s.releaseCredential(ctx, email)
		return models.User{}, fmt.Errorf("init chat index: %w", err)
	}
	if err := s.users.PutUser(ctx, user); err != nil {
		s.releaseCredential(ctx, email)
		return models.User{}, fmt.Errorf("write profile: %w", err)
	}

	logger.Log.Info("user_registered", zap.String("user_id", user.ID))
	observability.PublishEvent(ctx, "user.registered", map[string]string{"user_id": user.ID})
	return user, nil
}

func (s *Service) releaseCredential(ctx context.Context, email string) {
	if err := s.sessions.DeleteCredential(ctx, email); err != nil {
		logger.Log.Error("release_credential_failed", zap.String("email", email), zap.Error(err))
	}
}

// Login verifies the password and opens a session.
func (s *Service) Login(ctx context.Context, email, password string) (Token, error) {
	cred, err := s.sessions.GetCredential(ctx, email)
	if errors.Is(err, repositories.ErrCredentialNotFound) {
		return Token{}, ErrInvalidCredentials
	}
	if err != nil {
		return Token{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(password)); err != nil {
		return Token{}, ErrInvalidCredentials
	}

	user, err := s.users.GetUser(ctx, cred.UserID)
	if err != nil {
		return Token{}, err
	}

	now := s.now().UTC()
	session := models.Session{ID: uuid.NewString(), UserID: user.ID, ExpiresAt: now.Add(s.ttl)}
	if err := s.sessions.PutSession(ctx, session); err != nil {
		return Token{}, fmt.Errorf("store session: %w", err)
	}
	signed, err := generateJWT(s.secret, user.ID, session.ID, now, session.ExpiresAt)
	if err != nil {
		return Token{}, err
	}

	s.events.Publish(Event{Kind: SignedIn, UserID: user.ID, SessionID: session.ID})
	observability.PublishEvent(ctx, "auth.signed_in", map[string]string{"user_id": user.ID})
	return Token{Token: signed, ExpiresAt: session.ExpiresAt, User: user}, nil
}

// Authenticate validates the token and that its session is still open.
func (s *Service) Authenticate(ctx context.Context, token string) (Claims, error) {
	claims, err := parseJWT(s.secret, token)
	if err != nil {
		return Claims{}, ErrInvalidToken
	}
	session, err := s.sessions.GetSession(ctx, claims.SessionID)
	if errors.Is(err, repositories.ErrSessionNotFound) {
		return Claims{}, ErrInvalidToken
	}
	if err != nil {
		return Claims{}, err
	}
	if session.UserID != claims.UserID || !s.now().Before(session.ExpiresAt) {
		return Claims{}, ErrInvalidToken
	}
	return claims, nil
}

// Logout closes the token's session.
func (s *Service) Logout(ctx context.Context, token string) error {
	claims, err := s.Authenticate(ctx, token)
	if err != nil {
		return err
	}
	if err := s.sessions.DeleteSession(ctx, claims.SessionID); err != nil {
		return err
	}

	s.events.Publish(Event{Kind: SignedOut, UserID: claims.UserID, SessionID: claims.SessionID})
	observability.PublishEvent(ctx, "auth.signed_out", map[string]string{"user_id": claims.UserID})
	return nil
}
