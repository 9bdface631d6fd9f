// internal/notification/service.go
package notification

import (
	"context"

	"github.com/google/uuid"
)

// Service defines the interface for the notification sink and inbox.
type Service interface {
	Create(ctx context.Context, draft Draft) error
	List(ctx context.Context, userID uuid.UUID) ([]*Notification, error)
	UnreadCount(ctx context.Context, userID uuid.UUID) (int, error)
	MarkRead(ctx context.Context, id, userID uuid.UUID) error
	MarkAllRead(ctx context.Context, userID uuid.UUID) error
}
