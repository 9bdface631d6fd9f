// internal/catalog/domain.go
package catalog

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Condition grades the physical state of a listed book.
type Condition string

const (
	ConditionNew  Condition = "New"
	ConditionGood Condition = "Good"
	ConditionWorn Condition = "Worn"
)

// ExchangeMethod says how the owner is willing to hand the book over.
type ExchangeMethod string

const (
	ExchangeInPerson ExchangeMethod = "In Person"
	ExchangeMail     ExchangeMethod = "Mail"
	ExchangeBoth     ExchangeMethod = "Both"
)

// Placeholders substituted for fields the owner never filled in. Applied once
// at the store boundary; nothing downstream deals with nullable columns.
const (
	PlaceholderCover = "/placeholder.svg"
	PlaceholderGenre = "Unknown"
	PlaceholderName  = "Unknown User"
)

// Book is a fully-populated listing. Every optional column has been
// normalized, so all fields are safe to render as-is.
type Book struct {
	ID             uuid.UUID      `json:"id"`
	OwnerID        uuid.UUID      `json:"owner_id"`
	Title          string         `json:"title"`
	Author         string         `json:"author"`
	ISBN           string         `json:"isbn,omitempty"`
	Genre          string         `json:"genre"`
	Condition      Condition      `json:"condition"`
	Description    string         `json:"description,omitempty"`
	CoverURL       string         `json:"cover_url"`
	Location       string         `json:"location,omitempty"`
	ExchangeMethod ExchangeMethod `json:"exchange_method"`
	ExchangeNotes  string         `json:"exchange_notes,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// Owner is the slice of a profile shown next to a listing.
type Owner struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	ProfilePic string    `json:"profile_pic"`
}

// BookWithOwner pairs a listing with its owner's public profile fields.
type BookWithOwner struct {
	Book
	Owner Owner `json:"owner"`
}

// Draft is the caller-supplied shape for a new listing.
type Draft struct {
	Title          string `json:"title"`
	Author         string `json:"author"`
	ISBN           string `json:"isbn"`
	Genre          string `json:"genre"`
	Condition      string `json:"condition"`
	Description    string `json:"description"`
	CoverURL       string `json:"cover_url"`
	Location       string `json:"location"`
	ExchangeMethod string `json:"exchange_method"`
	ExchangeNotes  string `json:"exchange_notes"`
}

// Patch carries partial edits. Nil fields keep the stored value.
type Patch struct {
	Title          *string `json:"title"`
	Author         *string `json:"author"`
	ISBN           *string `json:"isbn"`
	Genre          *string `json:"genre"`
	Condition      *string `json:"condition"`
	Description    *string `json:"description"`
	CoverURL       *string `json:"cover_url"`
	Location       *string `json:"location"`
	ExchangeMethod *string `json:"exchange_method"`
	ExchangeNotes  *string `json:"exchange_notes"`
}

// row mirrors the books table before normalization.
type row struct {
	id             uuid.UUID
	ownerID        uuid.UUID
	title          string
	author         string
	isbn           sql.NullString
	genre          sql.NullString
	condition      sql.NullString
	description    sql.NullString
	coverURL       sql.NullString
	location       sql.NullString
	exchangeMethod sql.NullString
	exchangeNotes  sql.NullString
	createdAt      time.Time
	updatedAt      time.Time
}

// normalize is the single place raw column values become a Book.
func normalize(r row) Book {
	return Book{
		ID:             r.id,
		OwnerID:        r.ownerID,
		Title:          r.title,
		Author:         r.author,
		ISBN:           r.isbn.String,
		Genre:          textOr(r.genre, PlaceholderGenre),
		Condition:      normalizeCondition(r.condition.String),
		Description:    r.description.String,
		CoverURL:       textOr(r.coverURL, PlaceholderCover),
		Location:       r.location.String,
		ExchangeMethod: normalizeExchangeMethod(r.exchangeMethod.String),
		ExchangeNotes:  r.exchangeNotes.String,
		CreatedAt:      r.createdAt,
		UpdatedAt:      r.updatedAt,
	}
}

func normalizeCondition(s string) Condition {
	switch Condition(s) {
	case ConditionNew, ConditionGood, ConditionWorn:
		return Condition(s)
	default:
		return ConditionGood
	}
}

func normalizeExchangeMethod(s string) ExchangeMethod {
	switch ExchangeMethod(s) {
	case ExchangeInPerson, ExchangeMail, ExchangeBoth:
		return ExchangeMethod(s)
	default:
		return ExchangeBoth
	}
}

func textOr(ns sql.NullString, fallback string) string {
	if ns.Valid && ns.String != "" {
		return ns.String
	}
	return fallback
}

// NormalizeOwner fills placeholder values for a missing or sparse profile.
func NormalizeOwner(id uuid.UUID, name, profilePic sql.NullString) Owner {
	return Owner{
		ID:         id,
		Name:       textOr(name, PlaceholderName),
		ProfilePic: textOr(profilePic, PlaceholderCover),
	}
}
