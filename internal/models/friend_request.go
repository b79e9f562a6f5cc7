package models

import "time"

type FriendRequestStatus string

const (
	RequestWaiting  FriendRequestStatus = "waiting"
	RequestAccepted FriendRequestStatus = "accepted"
)

// FriendRequest is stored at friend_requests/{id}, where id is the
// conversation key of the pair.
type FriendRequest struct {
	ID         string              `json:"id"`
	SenderID   string              `json:"sender_id"`
	ReceiverID string              `json:"receiver_id"`
	Status     FriendRequestStatus `json:"status"`
	SentAt     time.Time           `json:"sent_at"`
}
