package models

import (
	"slices"
	"time"
)

// NewGroup builds a group conversation record. The owner is always a
// member; members are deduplicated and sorted.
func NewGroup(id, ownerID, name, avatarRef string, memberIDs []string, createdAt time.Time) Conversation {
	members := append([]string{ownerID}, memberIDs...)
	slices.Sort(members)
	members = slices.Compact(members)
	return Conversation{
		ID:           id,
		Kind:         KindGroup,
		Participants: members,
		Name:         name,
		AvatarRef:    avatarRef,
		OwnerID:      ownerID,
		CreatedAt:    createdAt,
	}
}

// NewDirect builds the record for a two-party conversation.
func NewDirect(id, a, b string, createdAt time.Time) Conversation {
	participants := []string{a, b}
	slices.Sort(participants)
	return Conversation{
		ID:           id,
		Kind:         KindDirect,
		Participants: participants,
		CreatedAt:    createdAt,
	}
}
