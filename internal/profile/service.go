// internal/profile/service.go
package profile

import (
	"context"

	"github.com/google/uuid"
)

// Service defines the operations for the profile domain.
type Service interface {
	// Register creates a new account and returns a logged-in session.
	Register(ctx context.Context, email, name, password string) (*Session, error)

	// Authenticate verifies credentials and returns a session token.
	Authenticate(ctx context.Context, email, password string) (*Session, error)

	// Get returns the public profile for a user.
	Get(ctx context.Context, id uuid.UUID) (*Profile, error)

	// Update applies a partial edit. Only the profile owner may edit it.
	Update(ctx context.Context, id, actorID uuid.UUID, patch Patch) (*Profile, error)

	// UserStats returns listing and swap counts for the profile card.
	UserStats(ctx context.Context, id uuid.UUID) (*Stats, error)
}
