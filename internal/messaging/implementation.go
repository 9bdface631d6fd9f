// internal/messaging/implementation.go
package messaging

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Jagadesh17/exchangeease/internal/catalog"
	"github.com/Jagadesh17/exchangeease/internal/store"
)

// service implements the Service interface.
type service struct {
	db     *sql.DB
	tracer trace.Tracer
}

// NewService creates a new messaging service instance.
func NewService(db *sql.DB) Service {
	return &service{
		db:     db,
		tracer: otel.Tracer("messaging-service"),
	}
}

// Send inserts the message unread. The receiving side flips the read flag
// when it loads the conversation.
func (s *service) Send(ctx context.Context, senderID, receiverID uuid.UUID, content string) (*Message, error) {
	ctx, span := s.tracer.Start(ctx, "messaging.Send", trace.WithAttributes(
		attribute.String("sender.id", senderID.String()),
		attribute.String("receiver.id", receiverID.String()),
	))
	defer span.End()

	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("message content is empty: %w", store.ErrValidation)
	}
	if senderID == receiverID {
		return nil, fmt.Errorf("cannot message yourself: %w", store.ErrValidation)
	}

	msg := Message{
		ID:         uuid.New(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    content,
		CreatedAt:  time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (id, sender_id, receiver_id, content, read, created_at)
		 VALUES ($1, $2, $3, $4, FALSE, $5)`,
		msg.ID, msg.SenderID, msg.ReceiverID, msg.Content, msg.CreatedAt)
	if err != nil {
		if store.IsForeignKeyViolation(err) {
			return nil, fmt.Errorf("receiver %s: %w", receiverID, store.ErrReferential)
		}
		return nil, fmt.Errorf("insert message: %w", store.Classify(err))
	}

	span.AddEvent("message sent")
	return &msg, nil
}

// Conversation loads both directions oldest first and marks the other
// side's messages read. The read flip happens before the load so the
// returned history reflects it.
func (s *service) Conversation(ctx context.Context, userID, otherID uuid.UUID) (*Conversation, error) {
	ctx, span := s.tracer.Start(ctx, "messaging.Conversation", trace.WithAttributes(
		attribute.String("user.id", userID.String()),
		attribute.String("other.id", otherID.String()),
	))
	defer span.End()

	if err := s.MarkRead(ctx, userID, otherID); err != nil {
		return nil, err
	}

	var (
		name, pic sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT name, profile_pic FROM profiles WHERE id = $1`, otherID).
		Scan(&name, &pic)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user %s: %w", otherID, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load correspondent: %w", store.Classify(err))
	}
	owner := catalog.NormalizeOwner(otherID, name, pic)

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, sender_id, receiver_id, content, read, created_at
		 FROM messages
		 WHERE (sender_id = $1 AND receiver_id = $2)
		    OR (sender_id = $2 AND receiver_id = $1)
		 ORDER BY created_at ASC`,
		userID, otherID)
	if err != nil {
		return nil, fmt.Errorf("query conversation: %w", store.Classify(err))
	}
	defer rows.Close()

	messages := []*Message{}
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.Content, &m.Read, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversation: %w", store.Classify(err))
	}

	span.SetAttributes(attribute.Int("conversation.size", len(messages)))
	return &Conversation{
		With: Correspondent{
			ID:         owner.ID,
			Name:       owner.Name,
			ProfilePic: owner.ProfilePic,
		},
		Messages: messages,
	}, nil
}

// MarkRead is idempotent; re-marking an already-read conversation
// affects zero rows and succeeds.
func (s *service) MarkRead(ctx context.Context, userID, otherID uuid.UUID) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE messages SET read = TRUE
		 WHERE receiver_id = $1 AND sender_id = $2 AND NOT read`,
		userID, otherID)
	if err != nil {
		return fmt.Errorf("mark messages read: %w", store.Classify(err))
	}
	return nil
}

func (s *service) UnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages WHERE receiver_id = $1 AND NOT read`,
		userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count unread messages: %w", store.Classify(err))
	}
	return count, nil
}
