package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-sync/internal/docstore"
	"chat-sync/internal/models"
	"chat-sync/internal/repositories"
)

func newTestService(store docstore.Store) *Service {
	return NewService(
		repositories.NewUserRepo(store),
		repositories.NewSessionRepo(store),
		repositories.NewSummaryRepo(store),
		"test-secret",
		time.Hour,
	)
}

func TestRegisterLoginAuthenticateLogout(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemoryStore()
	svc := newTestService(store)

	var events []Event
	unsub := svc.Events().Subscribe(func(ev Event) { events = append(events, ev) })
	defer unsub()

	user, err := svc.Register(ctx, RegisterInput{Email: " Ann@Example.com", Password: "secret1", Username: "ann"})
	require.NoError(t, err)
	assert.Equal(t, "ann@example.com", user.Email)

	_, err = store.Get(ctx, docstore.Join("userchats", user.ID))
	assert.NoError(t, err)

	_, err = svc.Login(ctx, "ann@example.com", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	tok, err := svc.Login(ctx, "ann@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, user.ID, tok.User.ID)

	claims, err := svc.Authenticate(ctx, tok.Token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)

	require.NoError(t, svc.Logout(ctx, tok.Token))
	_, err = svc.Authenticate(ctx, tok.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	require.Len(t, events, 2)
	assert.Equal(t, SignedIn, events[0].Kind)
	assert.Equal(t, SignedOut, events[1].Kind)
	assert.Equal(t, claims.SessionID, events[1].SessionID)
}

func TestRegisterRejectsDuplicatesAndBadInput(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(docstore.NewMemoryStore())

	_, err := svc.Register(ctx, RegisterInput{Email: "a@b.c", Password: "secret1", Username: "a"})
	require.NoError(t, err)
	_, err = svc.Register(ctx, RegisterInput{Email: "A@b.c", Password: "secret2", Username: "b"})
	assert.ErrorIs(t, err, ErrEmailTaken)

	_, err = svc.Register(ctx, RegisterInput{Email: "nope", Password: "secret1", Username: "a"})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.Register(ctx, RegisterInput{Email: "x@y.z", Password: "123", Username: "a"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestAuthenticateRejectsForeignAndExpiredTokens(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemoryStore()
	svc := newTestService(store)
	_, err := svc.Register(ctx, RegisterInput{Email: "a@b.c", Password: "secret1", Username: "a"})
	require.NoError(t, err)
	tok, err := svc.Login(ctx, "a@b.c", "secret1")
	require.NoError(t, err)

	other := newTestService(store)
	other.secret = []byte("another-secret")
	_, err = other.Authenticate(ctx, tok.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = svc.Authenticate(ctx, "garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)

	svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = svc.Authenticate(ctx, tok.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestEventsUnsubscribeIsIdempotent(t *testing.T) {
	events := NewEvents()
	calls := 0
	unsub := events.Subscribe(func(Event) { calls++ })
	events.Publish(Event{Kind: SignedIn})
	unsub()
	unsub()
	events.Publish(Event{Kind: SignedOut})
	assert.Equal(t, 1, calls)
}

type flakyUsers struct {
	repositories.UserRepository
	failures int
}

func (f *flakyUsers) PutUser(ctx context.Context, user models.User) error {
	if f.failures > 0 {
		f.failures--
		return errors.New("transient")
	}
	return f.UserRepository.PutUser(ctx, user)
}

func TestRegisterRetriesAfterProfileWriteFailure(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemoryStore()
	users := &flakyUsers{UserRepository: repositories.NewUserRepo(store), failures: 1}
	svc := NewService(users, repositories.NewSessionRepo(store), repositories.NewSummaryRepo(store), "test-secret", time.Hour)

	_, err := svc.Register(ctx, RegisterInput{Email: "ann@example.com", Password: "secret1", Username: "ann"})
	require.Error(t, err)
	_, err = svc.Login(ctx, "ann@example.com", "secret1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	user, err := svc.Register(ctx, RegisterInput{Email: "ann@example.com", Password: "secret1", Username: "ann"})
	require.NoError(t, err)

	tok, err := svc.Login(ctx, "ann@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, user.ID, tok.User.ID)
}
