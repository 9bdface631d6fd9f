// internal/interest/implementation.go
package interest

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/Jagadesh17/exchangeease/internal/catalog"
	"github.com/Jagadesh17/exchangeease/internal/store"
)

// service implements the Service interface.
type service struct {
	db *sql.DB
}

// NewService creates a new interest tracker instance.
func NewService(db *sql.DB) Service {
	return &service{db: db}
}

// Toggle removes the mark when present, inserts it when absent. A concurrent
// duplicate insert collapses into "already marked" via the primary key.
func (s *service) Toggle(ctx context.Context, userID, bookID uuid.UUID) (bool, error) {
	exists, err := s.Check(ctx, userID, bookID)
	if err != nil {
		return false, err
	}

	if exists {
		_, err := s.db.ExecContext(ctx,
			`DELETE FROM interested_books WHERE user_id = $1 AND book_id = $2`, userID, bookID)
		if err != nil {
			return false, fmt.Errorf("remove interest: %w", store.Classify(err))
		}
		return false, nil
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO interested_books (user_id, book_id) VALUES ($1, $2)
		 ON CONFLICT (user_id, book_id) DO NOTHING`, userID, bookID)
	if err != nil {
		if store.IsForeignKeyViolation(err) {
			return false, fmt.Errorf("book %s: %w", bookID, store.ErrReferential)
		}
		return false, fmt.Errorf("add interest: %w", store.Classify(err))
	}
	return true, nil
}

// Check reports mark existence without side effects.
func (s *service) Check(ctx context.Context, userID, bookID uuid.UUID) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM interested_books WHERE user_id = $1 AND book_id = $2)`,
		userID, bookID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check interest: %w", store.Classify(err))
	}
	return exists, nil
}

// ListInterested inner-joins marks to books and owner profiles; a deleted
// book drops its mark from the result.
func (s *service) ListInterested(ctx context.Context, userID uuid.UUID) ([]*InterestedBook, error) {
	query := `
		SELECT b.id, b.title, b.author, b.cover_url, b.condition, b.genre,
			b.owner_id, p.name, p.profile_pic
		FROM interested_books i
		JOIN books b ON b.id = i.book_id
		LEFT JOIN profiles p ON p.id = b.owner_id
		WHERE i.user_id = $1
		ORDER BY i.created_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query interested books: %w", store.Classify(err))
	}
	defer rows.Close()

	books := []*InterestedBook{}
	for rows.Next() {
		var (
			b            InterestedBook
			cover, genre sql.NullString
			condition    sql.NullString
			name, pic    sql.NullString
		)
		if err := rows.Scan(&b.ID, &b.Title, &b.Author, &cover, &condition, &genre,
			&b.OwnerID, &name, &pic); err != nil {
			return nil, fmt.Errorf("scan interested book: %w", err)
		}

		owner := catalog.NormalizeOwner(b.OwnerID, name, pic)
		b.Cover = catalog.PlaceholderCover
		if cover.Valid && cover.String != "" {
			b.Cover = cover.String
		}
		b.Condition = condition.String
		if b.Condition == "" {
			b.Condition = string(catalog.ConditionGood)
		}
		b.Genre = genre.String
		if b.Genre == "" {
			b.Genre = catalog.PlaceholderGenre
		}
		b.OwnerName = owner.Name
		b.OwnerPic = owner.ProfilePic
		books = append(books, &b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate interested books: %w", store.Classify(err))
	}

	return books, nil
}
