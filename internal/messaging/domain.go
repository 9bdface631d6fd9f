// internal/messaging/domain.go

// Package messaging handles direct messages between users: sending,
// conversation history, and read tracking. Conversations are implicit;
// a conversation is simply the set of messages exchanged between two
// users in either direction.
package messaging

import (
	"time"

	"github.com/google/uuid"
)

// Message is a single direct message between two users.
type Message struct {
	ID         uuid.UUID `json:"id"`
	SenderID   uuid.UUID `json:"sender_id"`
	ReceiverID uuid.UUID `json:"receiver_id"`
	Content    string    `json:"content"`
	Read       bool      `json:"read"`
	CreatedAt  time.Time `json:"created_at"`
}

// Correspondent is the profile summary attached to conversation views.
type Correspondent struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	ProfilePic string    `json:"profile_pic"`
}

// Conversation is the full message history between the requesting user
// and one other user, oldest first.
type Conversation struct {
	With     Correspondent `json:"with"`
	Messages []*Message    `json:"messages"`
}
