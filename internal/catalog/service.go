// internal/catalog/service.go
package catalog

import (
	"context"

	"github.com/google/uuid"
)

// Service defines the interface for the book catalog.
type Service interface {
	AddBook(ctx context.Context, ownerID uuid.UUID, draft Draft) (*Book, error)
	GetBook(ctx context.Context, id uuid.UUID) (*BookWithOwner, error)
	ListBooks(ctx context.Context) ([]*Book, error)
	ListOwnerBooks(ctx context.Context, ownerID uuid.UUID) ([]*Book, error)
	EditBook(ctx context.Context, id, actorID uuid.UUID, patch Patch) (*Book, error)
	DeleteBook(ctx context.Context, id, actorID uuid.UUID) error
	Search(ctx context.Context, query string) ([]*Book, error)
}
