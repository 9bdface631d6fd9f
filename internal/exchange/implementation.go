// internal/exchange/implementation.go
package exchange

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/Jagadesh17/exchangeease/internal/catalog"
	"github.com/Jagadesh17/exchangeease/internal/notification"
	"github.com/Jagadesh17/exchangeease/internal/store"
)

// Notifier is the sink the engine pushes acceptance notifications into.
// Failures are logged, never propagated; the status update stands on its own.
type Notifier interface {
	Create(ctx context.Context, draft notification.Draft) error
}

// service implements the Service interface.
type service struct {
	db       *sql.DB
	notifier Notifier
	breaker  *gobreaker.CircuitBreaker
	tracer   trace.Tracer

	transitions   metric.Int64Counter
	notifications metric.Int64Counter
}

// NewService creates a new match engine instance.
func NewService(db *sql.DB, notifier Notifier) Service {
	meter := otel.Meter("exchangeease/exchange")
	transitions, _ := meter.Int64Counter("exchange.match.transitions")
	notifications, _ := meter.Int64Counter("exchange.notifications.emitted")

	return &service{
		db:       db,
		notifier: notifier,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "notification-sink",
			Timeout: 30 * time.Second,
		}),
		tracer:        otel.Tracer("exchangeease/exchange"),
		transitions:   transitions,
		notifications: notifications,
	}
}

const matchColumns = `id, requester_id, book_requested_id, book_offered_id, status, created_at, updated_at`

// RequestMatch validates the request and inserts a pending match. The
// existence pre-check is advisory; two racing requests can both pass it, and
// the partial unique index on open matches is what actually rejects the
// loser. Its violation maps back to ErrDuplicateRequest.
func (s *service) RequestMatch(ctx context.Context, requesterID, bookRequestedID uuid.UUID, bookOfferedID *uuid.UUID) (*Match, error) {
	ctx, span := s.tracer.Start(ctx, "exchange.request_match",
		trace.WithAttributes(
			attribute.String("requester.id", requesterID.String()),
			attribute.String("book.requested.id", bookRequestedID.String()),
		),
	)
	defer span.End()

	var ownerID uuid.UUID
	err := s.db.QueryRowContext(ctx,
		`SELECT owner_id FROM books WHERE id = $1`, bookRequestedID).Scan(&ownerID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("book %s: %w", bookRequestedID, store.ErrNotFound)
		}
		return nil, fmt.Errorf("load requested book: %w", store.Classify(err))
	}
	if ownerID == requesterID {
		return nil, fmt.Errorf("%w: %w", ErrSelfMatch, store.ErrValidation)
	}

	if bookOfferedID != nil {
		var offeredOwner uuid.UUID
		err := s.db.QueryRowContext(ctx,
			`SELECT owner_id FROM books WHERE id = $1`, *bookOfferedID).Scan(&offeredOwner)
		if err != nil {
			if err == sql.ErrNoRows {
				return nil, fmt.Errorf("offered book %s: %w", *bookOfferedID, store.ErrReferential)
			}
			return nil, fmt.Errorf("load offered book: %w", store.Classify(err))
		}
		if offeredOwner != requesterID {
			return nil, fmt.Errorf("offered book %s is not yours: %w", *bookOfferedID, store.ErrReferential)
		}
	}

	// Advisory fast path only. Only open matches conflict; a declined match
	// frees the pair, mirroring the partial unique index.
	var exists bool
	err = s.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM matches
			WHERE requester_id = $1 AND book_requested_id = $2 AND status IN ($3, $4)
		)`, requesterID, bookRequestedID, StatusPending, StatusAccepted).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("check existing match: %w", store.Classify(err))
	}
	if exists {
		return nil, fmt.Errorf("match for book %s: %w", bookRequestedID, store.ErrDuplicateRequest)
	}

	match, err := scanMatch(s.db.QueryRowContext(ctx, `
		INSERT INTO matches (id, requester_id, book_requested_id, book_offered_id, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+matchColumns,
		uuid.New(), requesterID, bookRequestedID, nullUUID(bookOfferedID), StatusPending,
	))
	if err != nil {
		if store.IsUniqueViolation(err) {
			span.SetAttributes(attribute.Bool("duplicate.lost_race", true))
			return nil, fmt.Errorf("match for book %s: %w", bookRequestedID, store.ErrDuplicateRequest)
		}
		if store.IsForeignKeyViolation(err) {
			return nil, fmt.Errorf("insert match: %w", store.ErrReferential)
		}
		return nil, fmt.Errorf("insert match: %w", store.Classify(err))
	}

	s.transitions.Add(ctx, 1, metric.WithAttributes(attribute.String("transition", "requested")))
	return match, nil
}

// RespondToMatch applies an accept/decline decision. The UPDATE is guarded by
// status = 'pending', so of two concurrent responses exactly one lands and
// the other reports ErrAlreadyResolved.
func (s *service) RespondToMatch(ctx context.Context, matchID uuid.UUID, decision Decision, responderID uuid.UUID) (*Match, error) {
	ctx, span := s.tracer.Start(ctx, "exchange.respond_to_match",
		trace.WithAttributes(
			attribute.String("match.id", matchID.String()),
			attribute.String("decision", string(decision)),
		),
	)
	defer span.End()

	if !decision.Valid() {
		return nil, fmt.Errorf("decision %q: %w", decision, store.ErrValidation)
	}

	current, err := scanMatch(s.db.QueryRowContext(ctx,
		`SELECT `+matchColumns+` FROM matches WHERE id = $1`, matchID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("match %s: %w", matchID, store.ErrNotFound)
		}
		return nil, fmt.Errorf("load match: %w", store.Classify(err))
	}

	var ownerID uuid.UUID
	var bookTitle string
	err = s.db.QueryRowContext(ctx,
		`SELECT owner_id, title FROM books WHERE id = $1`, current.BookRequestedID,
	).Scan(&ownerID, &bookTitle)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("requested book %s: %w", current.BookRequestedID, store.ErrNotFound)
		}
		return nil, fmt.Errorf("verify book ownership: %w", store.Classify(err))
	}
	if ownerID != responderID {
		return nil, fmt.Errorf("match %s: %w", matchID, store.ErrNotAuthorized)
	}

	if current.Status.Terminal() {
		return nil, fmt.Errorf("match %s is %s: %w", matchID, current.Status, store.ErrAlreadyResolved)
	}

	match, err := scanMatch(s.db.QueryRowContext(ctx, `
		UPDATE matches
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3
		RETURNING `+matchColumns,
		decision.Next(), matchID, StatusPending,
	))
	if err != nil {
		if err == sql.ErrNoRows {
			// Lost the race to another response.
			return nil, fmt.Errorf("match %s: %w", matchID, store.ErrAlreadyResolved)
		}
		return nil, fmt.Errorf("update match status: %w", store.Classify(err))
	}

	s.transitions.Add(ctx, 1, metric.WithAttributes(attribute.String("transition", string(match.Status))))

	if decision == DecisionAccepted {
		s.notifyAccepted(ctx, match, bookTitle)
	}

	return match, nil
}

// notifyAccepted is best-effort. The status update already committed; a sink
// failure is logged and the breaker keeps a dead sink from slowing responses.
func (s *service) notifyAccepted(ctx context.Context, match *Match, bookTitle string) {
	_, err := s.breaker.Execute(func() (interface{}, error) {
		return nil, s.notifier.Create(ctx, notification.Draft{
			UserID:  match.RequesterID,
			Type:    notification.TypeMatchAccepted,
			Title:   "Match Request Accepted!",
			Message: fmt.Sprintf("Your request for %q has been accepted", bookTitle),
			Data: AcceptedPayload{
				MatchID:   match.ID,
				BookID:    match.BookRequestedID,
				BookTitle: bookTitle,
			},
		})
	})
	if err != nil {
		log.Printf("failed to create match_accepted notification for match %s: %v", match.ID, err)
		return
	}
	s.notifications.Add(ctx, 1)
}

// UserMatches resolves the user's own book ids first and filters matches
// against that set, rather than leaning on a correlated subquery against the
// joined table.
func (s *service) UserMatches(ctx context.Context, userID uuid.UUID) (*Inbox, error) {
	requested, err := s.matchViews(ctx, `WHERE m.requester_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("fetch requested matches: %w", err)
	}

	bookIDs, err := s.ownedBookIDs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("resolve owned books: %w", err)
	}

	received := []*MatchView{}
	if len(bookIDs) > 0 {
		received, err = s.matchViews(ctx, `WHERE m.book_requested_id = ANY($1::uuid[])`, uuidArray(bookIDs))
		if err != nil {
			return nil, fmt.Errorf("fetch received matches: %w", err)
		}
	}

	return &Inbox{Requested: requested, Received: received}, nil
}

func (s *service) ownedBookIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM books WHERE owner_id = $1`, userID)
	if err != nil {
		return nil, store.Classify(err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *service) matchViews(ctx context.Context, where string, arg interface{}) ([]*MatchView, error) {
	query := `
		SELECT m.id, m.requester_id, m.book_requested_id, m.book_offered_id, m.status,
			m.created_at, m.updated_at,
			rb.id, rb.owner_id, rb.title, rb.author, rb.cover_url, rb.condition, rb.genre,
			ob.id, ob.owner_id, ob.title, ob.author, ob.cover_url, ob.condition, ob.genre,
			p.name, p.profile_pic
		FROM matches m
		LEFT JOIN books rb ON rb.id = m.book_requested_id
		LEFT JOIN books ob ON ob.id = m.book_offered_id
		LEFT JOIN profiles p ON p.id = m.requester_id
		` + where + `
		ORDER BY m.created_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, store.Classify(err)
	}
	defer rows.Close()

	views := []*MatchView{}
	for rows.Next() {
		view, err := scanMatchView(rows)
		if err != nil {
			return nil, err
		}
		views = append(views, view)
	}
	return views, rows.Err()
}

type bookCols struct {
	id        uuid.NullUUID
	ownerID   uuid.NullUUID
	title     sql.NullString
	author    sql.NullString
	cover     sql.NullString
	condition sql.NullString
	genre     sql.NullString
}

func (b bookCols) summary(fallbackID uuid.UUID) BookSummary {
	summary := BookSummary{
		ID:        fallbackID,
		Title:     "Unknown Book",
		Author:    catalog.PlaceholderName,
		Cover:     catalog.PlaceholderCover,
		Condition: string(catalog.ConditionGood),
		Genre:     catalog.PlaceholderGenre,
	}
	if !b.id.Valid {
		return summary
	}
	summary.ID = b.id.UUID
	summary.OwnerID = b.ownerID.UUID
	summary.Title = b.title.String
	summary.Author = b.author.String
	if b.cover.Valid && b.cover.String != "" {
		summary.Cover = b.cover.String
	}
	if b.condition.Valid && b.condition.String != "" {
		summary.Condition = b.condition.String
	}
	if b.genre.Valid && b.genre.String != "" {
		summary.Genre = b.genre.String
	}
	return summary
}

func scanMatchView(rows *sql.Rows) (*MatchView, error) {
	var (
		view          MatchView
		offeredID     uuid.NullUUID
		requestedB    bookCols
		offeredB      bookCols
		requesterName sql.NullString
		requesterPic  sql.NullString
	)
	err := rows.Scan(
		&view.ID, &view.RequesterID, &view.BookRequestedID, &offeredID, &view.Status,
		&view.CreatedAt, &view.UpdatedAt,
		&requestedB.id, &requestedB.ownerID, &requestedB.title, &requestedB.author,
		&requestedB.cover, &requestedB.condition, &requestedB.genre,
		&offeredB.id, &offeredB.ownerID, &offeredB.title, &offeredB.author,
		&offeredB.cover, &offeredB.condition, &offeredB.genre,
		&requesterName, &requesterPic,
	)
	if err != nil {
		return nil, fmt.Errorf("scan match: %w", err)
	}

	if offeredID.Valid {
		view.BookOfferedID = &offeredID.UUID
	}
	view.RequestedBook = requestedB.summary(view.BookRequestedID)
	if view.BookOfferedID != nil || offeredB.id.Valid {
		offered := offeredB.summary(uuid.Nil)
		view.OfferedBook = &offered
	}

	requester := catalog.NormalizeOwner(view.RequesterID, requesterName, requesterPic)
	view.Requester = RequesterSummary{
		ID:         requester.ID,
		Name:       requester.Name,
		ProfilePic: requester.ProfilePic,
	}

	return &view, nil
}

// scanMatch reads one match row. The raw error comes back unwrapped so
// callers can branch on sql.ErrNoRows.
func scanMatch(row *sql.Row) (*Match, error) {
	var (
		match   Match
		offered uuid.NullUUID
	)
	err := row.Scan(&match.ID, &match.RequesterID, &match.BookRequestedID, &offered,
		&match.Status, &match.CreatedAt, &match.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if offered.Valid {
		match.BookOfferedID = &offered.UUID
	}
	return &match, nil
}

func nullUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}

func uuidArray(ids []uuid.UUID) interface{} {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return pq.Array(out)
}
