// internal/interest/domain.go
package interest

import (
	"time"

	"github.com/google/uuid"
)

// Mark records that a user flagged a book as interesting. Unique per pair.
type Mark struct {
	UserID    uuid.UUID `json:"user_id"`
	BookID    uuid.UUID `json:"book_id"`
	CreatedAt time.Time `json:"created_at"`
}

// InterestedBook is a marked book enriched with listing and owner fields,
// shaped the way the saved-books view renders it.
type InterestedBook struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	Author    string    `json:"author"`
	Cover     string    `json:"cover"`
	Condition string    `json:"condition"`
	Genre     string    `json:"genre"`
	OwnerID   uuid.UUID `json:"owner_id"`
	OwnerName string    `json:"owner_name"`
	OwnerPic  string    `json:"owner_pic"`
}
