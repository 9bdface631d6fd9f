// internal/catalog/implementation.go
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/Jagadesh17/exchangeease/internal/store"
)

// service implements the Service interface.
type service struct {
	db *sql.DB
}

// NewService creates a new catalog service instance.
func NewService(db *sql.DB) Service {
	return &service{db: db}
}

const bookColumns = `id, owner_id, title, author, isbn, genre, condition, description,
		cover_url, location, exchange_method, exchange_notes, created_at, updated_at`

// AddBook creates a new listing owned by ownerID.
func (s *service) AddBook(ctx context.Context, ownerID uuid.UUID, draft Draft) (*Book, error) {
	if strings.TrimSpace(draft.Title) == "" || strings.TrimSpace(draft.Author) == "" {
		return nil, fmt.Errorf("title and author are required: %w", store.ErrValidation)
	}

	query := `
		INSERT INTO books (id, owner_id, title, author, isbn, genre, condition, description,
			cover_url, location, exchange_method, exchange_notes)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), $7, NULLIF($8, ''),
			NULLIF($9, ''), NULLIF($10, ''), $11, NULLIF($12, ''))
		RETURNING ` + bookColumns
	r, err := scanBook(s.db.QueryRowContext(ctx, query,
		uuid.New(), ownerID, draft.Title, draft.Author, draft.ISBN, draft.Genre,
		string(normalizeCondition(draft.Condition)), draft.Description,
		draft.CoverURL, draft.Location, string(normalizeExchangeMethod(draft.ExchangeMethod)),
		draft.ExchangeNotes,
	))
	if err != nil {
		return nil, fmt.Errorf("insert book: %w", store.Classify(err))
	}

	book := normalize(r)
	return &book, nil
}

// GetBook retrieves one listing together with its owner's public profile.
func (s *service) GetBook(ctx context.Context, id uuid.UUID) (*BookWithOwner, error) {
	query := `
		SELECT b.id, b.owner_id, b.title, b.author, b.isbn, b.genre, b.condition, b.description,
			b.cover_url, b.location, b.exchange_method, b.exchange_notes, b.created_at, b.updated_at,
			p.name, p.profile_pic
		FROM books b
		LEFT JOIN profiles p ON p.id = b.owner_id
		WHERE b.id = $1
	`
	var r row
	var ownerName, ownerPic sql.NullString
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&r.id, &r.ownerID, &r.title, &r.author, &r.isbn, &r.genre, &r.condition, &r.description,
		&r.coverURL, &r.location, &r.exchangeMethod, &r.exchangeNotes, &r.createdAt, &r.updatedAt,
		&ownerName, &ownerPic,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("book %s: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("get book: %w", store.Classify(err))
	}

	return &BookWithOwner{
		Book:  normalize(r),
		Owner: NormalizeOwner(r.ownerID, ownerName, ownerPic),
	}, nil
}

// ListBooks returns every listing, newest first.
func (s *service) ListBooks(ctx context.Context) ([]*Book, error) {
	return s.list(ctx, `SELECT `+bookColumns+` FROM books ORDER BY created_at DESC`)
}

// ListOwnerBooks returns the listings a single user owns, newest first.
func (s *service) ListOwnerBooks(ctx context.Context, ownerID uuid.UUID) ([]*Book, error) {
	return s.list(ctx, `SELECT `+bookColumns+` FROM books WHERE owner_id = $1 ORDER BY created_at DESC`, ownerID)
}

// EditBook applies a partial update. Only the owner may edit; absent patch
// fields keep their stored values, fields written last win.
func (s *service) EditBook(ctx context.Context, id, actorID uuid.UUID, patch Patch) (*Book, error) {
	existing, err := s.GetBook(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing.OwnerID != actorID {
		return nil, fmt.Errorf("book %s belongs to another user: %w", id, store.ErrNotAuthorized)
	}

	merged := mergePatch(existing.Book, patch)

	query := `
		UPDATE books
		SET title = $1, author = $2, isbn = NULLIF($3, ''), genre = NULLIF($4, ''),
			condition = $5, description = NULLIF($6, ''), cover_url = NULLIF($7, ''),
			location = NULLIF($8, ''), exchange_method = $9, exchange_notes = NULLIF($10, ''),
			updated_at = NOW()
		WHERE id = $11 AND owner_id = $12
		RETURNING ` + bookColumns
	r, err := scanBook(s.db.QueryRowContext(ctx, query,
		merged.Title, merged.Author, merged.ISBN, rawOr(merged.Genre, PlaceholderGenre),
		string(merged.Condition), merged.Description, rawOr(merged.CoverURL, PlaceholderCover),
		merged.Location, string(merged.ExchangeMethod), merged.ExchangeNotes,
		id, actorID,
	))
	if err != nil {
		return nil, fmt.Errorf("update book: %w", store.Classify(err))
	}

	book := normalize(r)
	return &book, nil
}

// DeleteBook removes a listing. The store cascades to dependent matches and
// interest marks.
func (s *service) DeleteBook(ctx context.Context, id, actorID uuid.UUID) error {
	var ownerID uuid.UUID
	err := s.db.QueryRowContext(ctx, `SELECT owner_id FROM books WHERE id = $1`, id).Scan(&ownerID)
	if err != nil {
		if err == sql.ErrNoRows {
			return fmt.Errorf("book %s: %w", id, store.ErrNotFound)
		}
		return fmt.Errorf("verify book ownership: %w", store.Classify(err))
	}
	if ownerID != actorID {
		return fmt.Errorf("book %s belongs to another user: %w", id, store.ErrNotAuthorized)
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM books WHERE id = $1 AND owner_id = $2`, id, actorID); err != nil {
		return fmt.Errorf("delete book: %w", store.Classify(err))
	}
	return nil
}

// Search finds listings by title or author.
func (s *service) Search(ctx context.Context, query string) ([]*Book, error) {
	dbQuery := `
		SELECT ` + bookColumns + `
		FROM books
		WHERE to_tsvector('english', title || ' ' || author) @@ plainto_tsquery('english', $1)
		ORDER BY created_at DESC
		LIMIT 20
	`
	return s.list(ctx, dbQuery, query)
}

func (s *service) list(ctx context.Context, query string, args ...interface{}) ([]*Book, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query books: %w", store.Classify(err))
	}
	defer rows.Close()

	books := []*Book{}
	for rows.Next() {
		var r row
		if err := rows.Scan(
			&r.id, &r.ownerID, &r.title, &r.author, &r.isbn, &r.genre, &r.condition, &r.description,
			&r.coverURL, &r.location, &r.exchangeMethod, &r.exchangeNotes, &r.createdAt, &r.updatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan book: %w", err)
		}
		book := normalize(r)
		books = append(books, &book)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate books: %w", store.Classify(err))
	}

	return books, nil
}

func scanBook(scanner interface{ Scan(...interface{}) error }) (row, error) {
	var r row
	err := scanner.Scan(
		&r.id, &r.ownerID, &r.title, &r.author, &r.isbn, &r.genre, &r.condition, &r.description,
		&r.coverURL, &r.location, &r.exchangeMethod, &r.exchangeNotes, &r.createdAt, &r.updatedAt,
	)
	return r, err
}

func mergePatch(b Book, p Patch) Book {
	apply := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	apply(&b.Title, p.Title)
	apply(&b.Author, p.Author)
	apply(&b.ISBN, p.ISBN)
	apply(&b.Genre, p.Genre)
	apply(&b.Description, p.Description)
	apply(&b.CoverURL, p.CoverURL)
	apply(&b.Location, p.Location)
	apply(&b.ExchangeNotes, p.ExchangeNotes)
	if p.Condition != nil {
		b.Condition = normalizeCondition(*p.Condition)
	}
	if p.ExchangeMethod != nil {
		b.ExchangeMethod = normalizeExchangeMethod(*p.ExchangeMethod)
	}
	return b
}

// rawOr undoes a placeholder before writing back, so normalization stays a
// read-side concern and the column keeps its NULL.
func rawOr(value, placeholder string) string {
	if value == placeholder {
		return ""
	}
	return value
}
