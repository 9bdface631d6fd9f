// internal/profile/domain.go

// Package profile owns user accounts: registration, login, the public
// profile card and the activity stats shown on it.
package profile

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrEmailTaken is returned when registering with an email that already
// has an account.
var ErrEmailTaken = errors.New("email already registered")

// Profile is the public view of a user account.
type Profile struct {
	ID         uuid.UUID `json:"id"`
	Email      string    `json:"email"`
	Name       string    `json:"name"`
	Bio        string    `json:"bio"`
	Location   string    `json:"location"`
	ProfilePic string    `json:"profile_pic"`
	CreatedAt  time.Time `json:"created_at"`
}

// Credential is the stored password material for one profile.
type Credential struct {
	ProfileID    uuid.UUID
	PasswordHash string
	Salt         string
}

// Patch carries a partial profile update; nil fields are left untouched.
type Patch struct {
	Name       *string `json:"name"`
	Bio        *string `json:"bio"`
	Location   *string `json:"location"`
	ProfilePic *string `json:"profile_pic"`
}

// Stats summarises a user's exchange activity.
type Stats struct {
	BooksListed     int       `json:"books_listed"`
	SuccessfulSwaps int       `json:"successful_swaps"`
	MemberSince     time.Time `json:"member_since"`
}

// Session is what a successful login returns.
type Session struct {
	Token   string   `json:"token"`
	Profile *Profile `json:"profile"`
}
