package chat

import (
	"context"
	"errors"

	"chat-sync/internal/identity"
	"chat-sync/internal/repositories"
)

// Authorize reports whether userID may read and write conversationID. A
// missing conversation is allowed when its id is the derived key of userID
// and peerID; it will be created by the first message.
func Authorize(ctx context.Context, chats repositories.ChatRepository, conversationID, userID, peerID string) error {
	chat, err := chats.GetChat(ctx, conversationID)
	if errors.Is(err, repositories.ErrChatNotFound) {
		if peerID != "" && peerID != userID && identity.DeriveConversationID(userID, peerID) == conversationID {
			return nil
		}
		return err
	}
	if err != nil {
		return err
	}
	if !chat.HasParticipant(userID) {
		return ErrNotParticipant
	}
	return nil
}
