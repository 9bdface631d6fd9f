// internal/exchange/domain.go
package exchange

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Status of a match request. Accepted and declined are terminal.
type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusDeclined Status = "declined"
)

// Decision is a responder's answer to a pending match.
type Decision string

const (
	DecisionAccepted Decision = "accepted"
	DecisionDeclined Decision = "declined"
)

var (
	// ErrSelfMatch is returned when a user requests their own book.
	ErrSelfMatch = errors.New("cannot request your own book")
)

// Valid reports whether d is one of the two allowed answers.
func (d Decision) Valid() bool {
	return d == DecisionAccepted || d == DecisionDeclined
}

// Terminal reports whether s admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusAccepted || s == StatusDeclined
}

// Next returns the status a decision moves a pending match to.
func (d Decision) Next() Status {
	if d == DecisionAccepted {
		return StatusAccepted
	}
	return StatusDeclined
}

// Match is one exchange proposal between a requester and a book owner.
type Match struct {
	ID              uuid.UUID  `json:"id"`
	RequesterID     uuid.UUID  `json:"requester_id"`
	BookRequestedID uuid.UUID  `json:"book_requested_id"`
	BookOfferedID   *uuid.UUID `json:"book_offered_id,omitempty"`
	Status          Status     `json:"status"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// BookSummary is the slice of a listing shown inside a match. A deleted or
// missing related book degrades to placeholder values instead of failing
// the whole query.
type BookSummary struct {
	ID        uuid.UUID `json:"id"`
	OwnerID   uuid.UUID `json:"owner_id"`
	Title     string    `json:"title"`
	Author    string    `json:"author"`
	Cover     string    `json:"cover"`
	Condition string    `json:"condition"`
	Genre     string    `json:"genre"`
}

// RequesterSummary identifies who asked for the book.
type RequesterSummary struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	ProfilePic string    `json:"profile_pic"`
}

// MatchView is a match enriched for presentation.
type MatchView struct {
	Match
	RequestedBook BookSummary      `json:"requested_book"`
	OfferedBook   *BookSummary     `json:"offered_book,omitempty"`
	Requester     RequesterSummary `json:"requester"`
}

// Inbox splits a user's matches by role.
type Inbox struct {
	Requested []*MatchView `json:"requested"`
	Received  []*MatchView `json:"received"`
}

// AcceptedPayload is the structured data attached to a match_accepted
// notification.
type AcceptedPayload struct {
	MatchID   uuid.UUID `json:"match_id"`
	BookID    uuid.UUID `json:"book_id"`
	BookTitle string    `json:"book_title"`
}
