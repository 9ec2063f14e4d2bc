// Package model defines the domain types shared by the store, the auth
// service, the JSON API, and the realtime server.
package model

import (
	"errors"
	"time"
)

// Sentinel errors returned by the store and mapped to user-facing messages
// at the API and connection boundaries.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrAlreadyMember = errors.New("already a member")
	ErrNotMember     = errors.New("not a member")
)

// SentAtLayout is the timestamp format used on the wire and in history
// responses.
const SentAtLayout = "2006-01-02 15:04:05"

// User is a registered account. The password hash never leaves the store
// layer.
type User struct {
	ID           int64
	Username     string
	CreatedAt    time.Time
	LastActiveAt time.Time
}

// Channel is a named group chat with a member set.
type Channel struct {
	ID          int64
	Name        string
	Description string
	Private     bool
	CreatedBy   int64
	Members     []int64
}

// HasMember reports whether the given user belongs to the channel.
func (c *Channel) HasMember(userID int64) bool {
	for _, id := range c.Members {
		if id == userID {
			return true
		}
	}
	return false
}

// ChannelSummary is the listing shape for channels (no member set, just the
// count).
type ChannelSummary struct {
	ID          int64
	Name        string
	Description string
	Private     bool
	MemberCount int
}

// Message is a persisted chat message. Exactly one of ChannelID/ReceiverID is
// non-zero: ChannelID for channel messages, ReceiverID for direct messages.
type Message struct {
	ID             int64
	SenderID       int64
	SenderUsername string
	ChannelID      int64
	ReceiverID     int64
	Content        string
	SentAt         time.Time
}
