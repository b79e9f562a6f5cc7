// Package chatlist aggregates a user's added contacts and chat index into one
// deduplicated, ordered conversation list.
package chatlist

import (
	"sort"

	"chat-sync/internal/identity"
	"chat-sync/internal/models"
)

// Event is a snapshot emitted by one of the two sources.
type Event interface {
	isEvent()
}

// ContactsUpdated carries the full contacts/{uid}/added snapshot.
type ContactsUpdated struct {
	Contacts []models.Contact
}

// SummariesUpdated carries the full userchats/{uid} snapshot.
type SummariesUpdated struct {
	Summaries map[string]models.ChatSummary
}

func (ContactsUpdated) isEvent()  {}
func (SummariesUpdated) isEvent() {}

// State keeps the last snapshot of each source in isolation.
type State struct {
	Contacts      []models.Contact
	Summaries     map[string]models.ChatSummary
	ContactsSeen  bool
	SummariesSeen bool
}

// Ready reports whether both sources have reported at least once.
func (s State) Ready() bool {
	return s.ContactsSeen && s.SummariesSeen
}

// Reduce replaces the snapshot of the source that emitted ev.
func Reduce(s State, ev Event) State {
	switch e := ev.(type) {
	case ContactsUpdated:
		s.Contacts = e.Contacts
		s.ContactsSeen = true
	case SummariesUpdated:
		s.Summaries = e.Summaries
		s.SummariesSeen = true
	}
	return s
}

// Merge combines both sources. Direct conversations are keyed by peer and
// groups by conversation id; an index entry replaces a contact-only entry
// for the same peer. The result is sorted.
func Merge(ownerID string, s State) []models.ChatPreview {
	merged := map[string]models.ChatPreview{}

	for _, c := range s.Contacts {
		if c.UserID == "" || c.UserID == ownerID {
			continue
		}
		merged["peer:"+c.UserID] = models.ChatPreview{
			ConversationID: identity.DeriveConversationID(ownerID, c.UserID),
			PeerID:         c.UserID,
		}
	}

	for id, sum := range s.Summaries {
		if sum.ConversationID == "" {
			sum.ConversationID = id
		}
		p := models.ChatPreview{
			ConversationID: sum.ConversationID,
			IsGroup:        sum.IsGroup,
			PeerID:         sum.PeerID,
			Name:           sum.Name,
			Avatar:         sum.AvatarRef,
			LastMessage:    sum.LastMessage,
			UpdatedAt:      sum.UpdatedAt,
		}
		key := "conv:" + sum.ConversationID
		if !sum.IsGroup && sum.PeerID != "" {
			key = "peer:" + sum.PeerID
		}
		merged[key] = p
	}

	out := make([]models.ChatPreview, 0, len(merged))
	for _, p := range merged {
		out = append(out, p)
	}
	Sort(out)
	return out
}

// Sort orders by UpdatedAt descending, entries without a timestamp last,
// ties broken by conversation id then peer id.
func Sort(previews []models.ChatPreview) {
	sort.Slice(previews, func(i, j int) bool {
		a, b := previews[i], previews[j]
		switch {
		case a.UpdatedAt != nil && b.UpdatedAt == nil:
			return true
		case a.UpdatedAt == nil && b.UpdatedAt != nil:
			return false
		case a.UpdatedAt != nil && !a.UpdatedAt.Equal(*b.UpdatedAt):
			return a.UpdatedAt.After(*b.UpdatedAt)
		}
		if a.ConversationID != b.ConversationID {
			return a.ConversationID < b.ConversationID
		}
		return a.PeerID < b.PeerID
	})
}
