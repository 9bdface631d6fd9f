// internal/exchange/service.go
package exchange

import (
	"context"

	"github.com/google/uuid"
)

// Service defines the interface for the match engine.
type Service interface {
	// RequestMatch creates a pending match for bookRequestedID on behalf of
	// requesterID, optionally offering one of the requester's own books.
	RequestMatch(ctx context.Context, requesterID, bookRequestedID uuid.UUID, bookOfferedID *uuid.UUID) (*Match, error)

	// RespondToMatch moves a pending match to accepted or declined. Only the
	// owner of the requested book may respond; ownership is re-read from the
	// store, never trusted from the caller.
	RespondToMatch(ctx context.Context, matchID uuid.UUID, decision Decision, responderID uuid.UUID) (*Match, error)

	// UserMatches returns the matches a user requested and the matches other
	// users opened against the user's own books.
	UserMatches(ctx context.Context, userID uuid.UUID) (*Inbox, error)
}
