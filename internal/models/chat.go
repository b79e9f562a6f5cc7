package models

import (
	"slices"
	"time"
)

// ConversationKind distinguishes two-party chats from groups.
type ConversationKind string

const (
	KindDirect ConversationKind = "direct"
	KindGroup  ConversationKind = "group"
)

// Conversation is the record stored at conversations/{id}.
type Conversation struct {
	ID           string           `json:"id"`
	Kind         ConversationKind `json:"kind"`
	Participants []string         `json:"participants"`
	Name         string           `json:"name,omitempty"`
	AvatarRef    string           `json:"avatar_ref,omitempty"`
	OwnerID      string           `json:"owner_id,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
}

// IsGroup reports whether the conversation is a group.
func (c Conversation) IsGroup() bool {
	return c.Kind == KindGroup
}

// HasParticipant reports whether userID belongs to the conversation.
func (c Conversation) HasParticipant(userID string) bool {
	return slices.Contains(c.Participants, userID)
}

// ChatSummary is one entry of a user's chat index (userchats/{uid}),
// keyed by ConversationID.
type ChatSummary struct {
	ConversationID string     `json:"conversation_id"`
	IsGroup        bool       `json:"is_group"`
	PeerID         string     `json:"peer_id,omitempty"`
	Name           string     `json:"name,omitempty"`
	AvatarRef      string     `json:"avatar_ref,omitempty"`
	LastMessage    string     `json:"last_message"`
	UpdatedAt      *time.Time `json:"updated_at,omitempty"`
}

// ChatPreview is a row of the aggregated chat list shown to a user.
type ChatPreview struct {
	ConversationID string     `json:"conversation_id"`
	IsGroup        bool       `json:"is_group"`
	PeerID         string     `json:"peer_id,omitempty"`
	Name           string     `json:"name"`
	Avatar         string     `json:"avatar"`
	LastMessage    string     `json:"last_message"`
	UpdatedAt      *time.Time `json:"updated_at,omitempty"`
}

// Contact is an entry of contacts/{uid}/added.
type Contact struct {
	UserID  string    `json:"user_id"`
	AddedAt time.Time `json:"added_at"`
}
