// internal/notification/domain.go
package notification

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// TypeMatchAccepted is emitted to the requester when an owner accepts.
const TypeMatchAccepted = "match_accepted"

// Notification is one inbox entry. Mutable only by its owner, and only to
// flip the read flag.
type Notification struct {
	ID        uuid.UUID       `json:"id"`
	UserID    uuid.UUID       `json:"user_id"`
	Type      string          `json:"type"`
	Title     string          `json:"title"`
	Message   string          `json:"message"`
	Data      json.RawMessage `json:"data"`
	Read      bool            `json:"read"`
	CreatedAt time.Time       `json:"created_at"`
}

// Draft is what producers hand to the sink.
type Draft struct {
	UserID  uuid.UUID
	Type    string
	Title   string
	Message string
	Data    interface{}
}
