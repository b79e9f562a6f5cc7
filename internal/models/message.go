package models

import "time"

// Message is an immutable entry of conversations/{id}/messages.
// SentAt is assigned by the store.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Text           string    `json:"text,omitempty"`
	ImageRef       string    `json:"image_ref,omitempty"`
	SenderID       string    `json:"sender_id"`
	SenderAvatar   string    `json:"sender_avatar,omitempty"`
	SentAt         time.Time `json:"sent_at"`
}

// ChatEvent is pushed through websockets.
type ChatEvent struct {
	Type      string        `json:"type"`
	Messages  []Message     `json:"messages,omitempty"`
	Chats     []ChatPreview `json:"chats,omitempty"`
	MessageID string        `json:"message_id,omitempty"`
	Error     string        `json:"error,omitempty"`
}
