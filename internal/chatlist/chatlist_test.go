package chatlist

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-sync/internal/avatar"
	"chat-sync/internal/docstore"
	"chat-sync/internal/models"
	"chat-sync/internal/repositories"
	"chat-sync/internal/storage"
)

func ts(min int) *time.Time {
	t := time.Date(2024, 5, 1, 12, min, 0, 0, time.UTC)
	return &t
}

func sampleEvents() (ContactsUpdated, SummariesUpdated) {
	contacts := ContactsUpdated{Contacts: []models.Contact{{UserID: "bob"}, {UserID: "carol"}}}
	summaries := SummariesUpdated{Summaries: map[string]models.ChatSummary{
		"alicebob": {ConversationID: "alicebob", PeerID: "bob", LastMessage: "hi", UpdatedAt: ts(1)},
		"g1":       {ConversationID: "g1", IsGroup: true, Name: "team", LastMessage: "yo", UpdatedAt: ts(5)},
	}}
	return contacts, summaries
}

func TestMergeDedupesAndPrefersIndex(t *testing.T) {
	contacts, summaries := sampleEvents()
	state := Reduce(Reduce(State{}, contacts), summaries)
	require.True(t, state.Ready())

	got := Merge("alice", state)
	require.Len(t, got, 3)

	assert.Equal(t, "g1", got[0].ConversationID)
	assert.True(t, got[0].IsGroup)

	assert.Equal(t, "alicebob", got[1].ConversationID)
	assert.Equal(t, "hi", got[1].LastMessage)

	assert.Equal(t, "alicecarol", got[2].ConversationID)
	assert.Equal(t, "carol", got[2].PeerID)
	assert.Empty(t, got[2].LastMessage)
	assert.Nil(t, got[2].UpdatedAt)
}

func TestReduceIsOrderIndependentAndIdempotent(t *testing.T) {
	contacts, summaries := sampleEvents()

	ab := Merge("alice", Reduce(Reduce(State{}, contacts), summaries))
	ba := Merge("alice", Reduce(Reduce(State{}, summaries), contacts))
	twice := Merge("alice", Reduce(Reduce(Reduce(Reduce(State{}, contacts), summaries), summaries), contacts))

	assert.Equal(t, ab, ba)
	assert.Equal(t, ab, twice)
}

func TestReduceKeepsOtherSourceSnapshot(t *testing.T) {
	contacts, summaries := sampleEvents()
	state := Reduce(Reduce(State{}, contacts), summaries)
	state = Reduce(state, ContactsUpdated{})

	got := Merge("alice", state)
	assert.Len(t, got, 2)
	assert.Equal(t, "alicebob", got[1].ConversationID)
}

func TestSortTiesAndMissingTimestamps(t *testing.T) {
	previews := []models.ChatPreview{
		{ConversationID: "z"},
		{ConversationID: "b", UpdatedAt: ts(3)},
		{ConversationID: "a", UpdatedAt: ts(3)},
		{ConversationID: "c", UpdatedAt: ts(9)},
		{ConversationID: "m"},
	}
	Sort(previews)

	ids := make([]string, 0, len(previews))
	for _, p := range previews {
		ids = append(ids, p.ConversationID)
	}
	assert.Equal(t, []string{"c", "a", "b", "m", "z"}, ids)
}

func TestMergeIgnoresSelfContact(t *testing.T) {
	state := Reduce(Reduce(State{}, ContactsUpdated{Contacts: []models.Contact{{UserID: "alice"}}}), SummariesUpdated{})
	assert.Empty(t, Merge("alice", state))
}

type fixture struct {
	store      *docstore.MemoryStore
	contacts   *repositories.ContactRepo
	summaries  *repositories.SummaryRepo
	users      *repositories.UserRepo
	chats      *repositories.ChatRepo
	aggregator *Aggregator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := docstore.NewMemoryStore()
	f := &fixture{
		store:     store,
		contacts:  repositories.NewContactRepo(store),
		summaries: repositories.NewSummaryRepo(store),
		users:     repositories.NewUserRepo(store),
		chats:     repositories.NewChatRepo(store),
	}
	resolver := avatar.NewResolver(storage.NewMemoryStore("http://media"), nil, time.Minute, "/placeholder.png")
	f.aggregator = NewAggregator(f.contacts, f.summaries, f.users, f.chats, resolver)

	ctx := context.Background()
	require.NoError(t, f.users.PutUser(ctx, models.User{ID: "alice", Username: "Alice"}))
	require.NoError(t, f.users.PutUser(ctx, models.User{ID: "bob", Username: "Bob", Avatar: "https://cdn/bob.png"}))
	return f
}

func TestSnapshotDropsEntriesWithFailedLookups(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.contacts.AddContact(ctx, "alice", "bob"))
	require.NoError(t, f.contacts.AddContact(ctx, "alice", "ghost"))
	require.NoError(t, f.summaries.MergeSummary(ctx, "alice", models.ChatSummary{ConversationID: "missing-group", IsGroup: true, UpdatedAt: ts(1)}))
	require.NoError(t, f.summaries.MergeSummary(ctx, "alice", models.ChatSummary{ConversationID: "aliceghost2", PeerID: "ghost2", UpdatedAt: ts(2)}))

	got, err := f.aggregator.Snapshot(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Bob", got[0].Name)
	assert.Equal(t, "https://cdn/bob.png", got[0].Avatar)
	assert.Equal(t, "alicebob", got[0].ConversationID)
}

func TestSnapshotResolvesGroups(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	group, err := repositories.NewGroupRepo(f.store).CreateGroup(ctx, "alice", "team", "", []string{"bob"})
	require.NoError(t, err)
	require.NoError(t, f.summaries.MergeSummary(ctx, "alice", models.ChatSummary{ConversationID: group.ID, IsGroup: true, Name: "stale", UpdatedAt: ts(1)}))

	got, err := f.aggregator.Snapshot(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "team", got[0].Name)
	assert.Equal(t, "/placeholder.png", got[0].Avatar)
}

func TestSubscribeFollowsBothSources(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	lists := make(chan []models.ChatPreview, 32)
	unsub := f.aggregator.Subscribe("alice", func(list []models.ChatPreview, err error) {
		assert.NoError(t, err)
		lists <- list
	})

	waitFor := func(match func([]models.ChatPreview) bool) {
		t.Helper()
		require.Eventually(t, func() bool {
			for {
				select {
				case list := <-lists:
					if match(list) {
						return true
					}
				default:
					return false
				}
			}
		}, 2*time.Second, 10*time.Millisecond)
	}

	waitFor(func(list []models.ChatPreview) bool { return len(list) == 0 })

	require.NoError(t, f.contacts.AddContact(ctx, "alice", "bob"))
	waitFor(func(list []models.ChatPreview) bool {
		return len(list) == 1 && list[0].PeerID == "bob" && list[0].LastMessage == ""
	})

	require.NoError(t, f.summaries.MergeSummary(ctx, "alice", models.ChatSummary{ConversationID: "alicebob", PeerID: "bob", LastMessage: "hello", UpdatedAt: ts(4)}))
	waitFor(func(list []models.ChatPreview) bool {
		return len(list) == 1 && list[0].LastMessage == "hello"
	})

	unsub()
	unsub()
	require.Eventually(t, func() bool { return f.store.Listeners() == 0 }, time.Second, 5*time.Millisecond)
}
