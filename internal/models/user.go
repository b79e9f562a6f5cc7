package models

import "time"

// User is the profile stored at users/{uid}.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar,omitempty"`
	Email    string `json:"email"`
}

// Credential is stored at credentials/{email}.
type Credential struct {
	UserID       string `json:"user_id"`
	PasswordHash string `json:"password_hash"`
}

// Session is stored at sessions/{id}.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
}
