package chatlist

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"chat-sync/internal/docstore"
	"chat-sync/internal/identity"
	"chat-sync/internal/logger"
	"chat-sync/internal/models"
	"chat-sync/internal/observability"
	"chat-sync/internal/repositories"
)

const lookupLimit = 16

// AvatarResolver resolves a stored avatar reference; avatar.Resolver
// satisfies it.
type AvatarResolver interface {
	Resolve(ctx context.Context, ref string) string
}

// Aggregator produces a user's chat list from their added contacts and
// their chat index.
type Aggregator struct {
	contacts  repositories.ContactRepository
	summaries repositories.SummaryRepository
	users     repositories.UserRepository
	chats     repositories.ChatRepository
	avatars   AvatarResolver
}

func NewAggregator(
	contacts repositories.ContactRepository,
	summaries repositories.SummaryRepository,
	users repositories.UserRepository,
	chats repositories.ChatRepository,
	avatars AvatarResolver,
) *Aggregator {
	return &Aggregator{
		contacts:  contacts,
		summaries: summaries,
		users:     users,
		chats:     chats,
		avatars:   avatars,
	}
}

type pendingEvent struct {
	ev  Event
	err error
}

type subscription struct {
	userID string
	fn     func([]models.ChatPreview, error)

	mu      sync.Mutex
	pending []pendingEvent
	signal  chan struct{}
	closed  atomic.Bool
}

func (s *subscription) push(ev Event, err error) {
	s.mu.Lock()
	s.pending = append(s.pending, pendingEvent{ev: ev, err: err})
	s.mu.Unlock()
	select {
	case s.signal <- struct{}{}:
	default:
	}
}

func (s *subscription) take() []pendingEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	batch := s.pending
	s.pending = nil
	return batch
}

// Subscribe watches both sources and calls fn with the merged list every
// time either changes, once both have reported. Source errors are passed
// to fn and the last good snapshot of that source is kept.
func (a *Aggregator) Subscribe(userID string, fn func([]models.ChatPreview, error)) docstore.Unsubscribe {
	ctx, cancel := context.WithCancel(context.Background())
	sub := &subscription{userID: userID, fn: fn, signal: make(chan struct{}, 1)}

	stopContacts := a.contacts.WatchContacts(userID, func(contacts []models.Contact, err error) {
		sub.push(ContactsUpdated{Contacts: contacts}, err)
	})
	stopSummaries := a.summaries.WatchSummaries(userID, func(summaries map[string]models.ChatSummary, err error) {
		sub.push(SummariesUpdated{Summaries: summaries}, err)
	})
	observability.LiveSubscriptions.WithLabelValues("chatlist").Inc()

	go a.loop(ctx, sub)

	var once sync.Once
	return func() {
		once.Do(func() {
			sub.closed.Store(true)
			cancel()
			stopContacts()
			stopSummaries()
			observability.LiveSubscriptions.WithLabelValues("chatlist").Dec()
		})
	}
}

func (a *Aggregator) loop(ctx context.Context, sub *subscription) {
	var state State
	for {
		select {
		case <-ctx.Done():
			return
		case <-sub.signal:
		}

		var lastErr error
		changed := false
		for _, p := range sub.take() {
			if p.err != nil {
				lastErr = p.err
				continue
			}
			state = Reduce(state, p.ev)
			changed = true
		}

		if lastErr != nil && !sub.closed.Load() {
			logger.Log.Warn("chatlist_source_error", zap.String("user_id", sub.userID), zap.Error(lastErr))
			sub.fn(nil, lastErr)
		}
		if !changed || !state.Ready() {
			continue
		}

		previews := a.compute(ctx, sub.userID, state)
		if sub.closed.Load() || ctx.Err() != nil {
			return
		}
		sub.fn(previews, nil)
	}
}

// Snapshot computes the list once without subscribing.
func (a *Aggregator) Snapshot(ctx context.Context, userID string) ([]models.ChatPreview, error) {
	contacts, err := a.contacts.ListContacts(ctx, userID)
	if err != nil {
		return nil, err
	}
	summaries, err := a.summaries.GetSummaries(ctx, userID)
	if err != nil {
		return nil, err
	}
	state := Reduce(Reduce(State{}, ContactsUpdated{Contacts: contacts}), SummariesUpdated{Summaries: summaries})
	return a.compute(ctx, userID, state), nil
}

func (a *Aggregator) compute(ctx context.Context, userID string, state State) []models.ChatPreview {
	start := time.Now()
	defer func() { observability.ChatListRecompute.Observe(time.Since(start).Seconds()) }()

	merged := Merge(userID, state)
	resolved := make([]*models.ChatPreview, len(merged))

	var g errgroup.Group
	g.SetLimit(lookupLimit)
	for i := range merged {
		i := i
		g.Go(func() error {
			p, ok := a.decorate(ctx, userID, merged[i])
			if ok {
				resolved[i] = &p
			}
			return nil
		})
	}
	_ = g.Wait()

	out := make([]models.ChatPreview, 0, len(merged))
	for _, p := range resolved {
		if p != nil {
			out = append(out, *p)
		}
	}
	return out
}

// decorate fills display name and avatar. ok is false when the lookup fails
// and the entry must be left out.
func (a *Aggregator) decorate(ctx context.Context, userID string, p models.ChatPreview) (models.ChatPreview, bool) {
	if p.IsGroup {
		group, err := a.chats.GetChat(ctx, p.ConversationID)
		if err != nil {
			logger.Log.Debug("chatlist_group_lookup_failed", zap.String("conversation_id", p.ConversationID), zap.Error(err))
			return p, false
		}
		p.Name = group.Name
		p.Avatar = a.avatars.Resolve(ctx, group.AvatarRef)
		return p, true
	}

	if p.PeerID == "" {
		chat, err := a.chats.GetChat(ctx, p.ConversationID)
		if err != nil {
			return p, false
		}
		p.PeerID = identity.PeerOf(chat.Participants, userID)
		if p.PeerID == "" {
			return p, false
		}
	}
	peer, err := a.users.GetUser(ctx, p.PeerID)
	if err != nil {
		logger.Log.Debug("chatlist_profile_lookup_failed", zap.String("peer_id", p.PeerID), zap.Error(err))
		return p, false
	}
	p.Name = peer.Username
	p.Avatar = a.avatars.Resolve(ctx, peer.Avatar)
	return p, true
}
