// internal/interest/service.go
package interest

import (
	"context"

	"github.com/google/uuid"
)

// Service defines the interface for the interest tracker.
type Service interface {
	// Toggle flips the mark for (userID, bookID) and reports the new state.
	Toggle(ctx context.Context, userID, bookID uuid.UUID) (bool, error)
	// Check reports whether the mark exists. No side effects.
	Check(ctx context.Context, userID, bookID uuid.UUID) (bool, error)
	// ListInterested returns the user's marked books, newest mark first.
	// Marks whose book has been deleted are excluded.
	ListInterested(ctx context.Context, userID uuid.UUID) ([]*InterestedBook, error)
}
