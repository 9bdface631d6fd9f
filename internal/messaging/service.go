// internal/messaging/service.go
package messaging

import (
	"context"

	"github.com/google/uuid"
)

// Service defines the operations for the messaging domain.
type Service interface {
	// Send delivers a message from sender to receiver. Empty or
	// whitespace-only content is rejected with store.ErrValidation.
	Send(ctx context.Context, senderID, receiverID uuid.UUID, content string) (*Message, error)

	// Conversation returns the message history between userID and otherID,
	// oldest first, and marks every message otherID sent to userID as read.
	Conversation(ctx context.Context, userID, otherID uuid.UUID) (*Conversation, error)

	// MarkRead marks all messages from otherID to userID as read. It is
	// idempotent; marking an already-read conversation is not an error.
	MarkRead(ctx context.Context, userID, otherID uuid.UUID) error

	// UnreadCount returns the number of unread messages addressed to userID.
	UnreadCount(ctx context.Context, userID uuid.UUID) (int, error)
}
