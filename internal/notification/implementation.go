// internal/notification/implementation.go
package notification

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/Jagadesh17/exchangeease/internal/store"
)

// service implements the Service interface.
type service struct {
	db *sql.DB
}

// NewService creates a new notification service instance.
func NewService(db *sql.DB) Service {
	return &service{db: db}
}

// Create inserts an inbox entry. Callers treat failures as non-critical;
// this method still reports them so the caller can log.
func (s *service) Create(ctx context.Context, draft Draft) error {
	if draft.UserID == uuid.Nil || draft.Type == "" {
		return fmt.Errorf("notification needs a recipient and a type: %w", store.ErrValidation)
	}

	data, err := json.Marshal(draft.Data)
	if err != nil {
		return fmt.Errorf("marshal notification data: %w", err)
	}
	if draft.Data == nil {
		data = []byte("{}")
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO notifications (id, user_id, type, title, message, data)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, uuid.New(), draft.UserID, draft.Type, draft.Title, draft.Message, data)
	if err != nil {
		return fmt.Errorf("insert notification: %w", store.Classify(err))
	}
	return nil
}

// List returns the user's notifications, newest first.
func (s *service) List(ctx context.Context, userID uuid.UUID) ([]*Notification, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, type, title, message, data, read, created_at
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", store.Classify(err))
	}
	defer rows.Close()

	notifications := []*Notification{}
	for rows.Next() {
		n := &Notification{}
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Message,
			&n.Data, &n.Read, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		notifications = append(notifications, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notifications: %w", store.Classify(err))
	}

	return notifications, nil
}

// UnreadCount reports how many entries the user has not read yet.
func (s *service) UnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND NOT read`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", store.Classify(err))
	}
	return count, nil
}

// MarkRead flips one entry. Only the owner may do it.
func (s *service) MarkRead(ctx context.Context, id, userID uuid.UUID) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE notifications SET read = TRUE WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", store.Classify(err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("notification %s: %w", id, store.ErrNotFound)
	}
	return nil
}

// MarkAllRead flips every unread entry for the user. Idempotent.
func (s *service) MarkAllRead(ctx context.Context, userID uuid.UUID) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE notifications SET read = TRUE WHERE user_id = $1 AND NOT read`, userID)
	if err != nil {
		return fmt.Errorf("mark all notifications read: %w", store.Classify(err))
	}
	return nil
}
