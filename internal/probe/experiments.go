// internal/probe/experiments.go
package probe

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/google/uuid"

	"github.com/Jagadesh17/exchangeease/internal/catalog"
	"github.com/Jagadesh17/exchangeease/internal/clients"
	"github.com/Jagadesh17/exchangeease/internal/exchange"
	"github.com/Jagadesh17/exchangeease/internal/profile"
)

// RegisterExperiments registers the standard invariant suite.
func (r *Runner) RegisterExperiments() {
	r.Register(r.DuplicateRequestStormExperiment(10))
	r.Register(r.ConcurrentRespondExperiment(8))
	r.Register(r.CascadeDeleteOrphanExperiment())
}

const probePassword = "Pr0bePassword!"

func (r *Runner) registerUser(ctx context.Context, name string) (*profile.Session, error) {
	email := fmt.Sprintf("probe-%s@exchangeease.local", uuid.New())
	return r.profiles.Register(ctx, email, name, probePassword)
}

func (r *Runner) listBook(ctx context.Context, session *profile.Session, title string) (*catalog.Book, error) {
	client := clients.NewCatalogClient(r.catalogURL, session.Token)
	return client.AddBook(ctx, catalog.Draft{Title: title, Author: "Probe Author"})
}

// openMatchCount counts open matches for one requester/book pair. Anything
// above one means the duplicate guard failed.
func (r *Runner) openMatchCount(ctx context.Context, requesterID, bookID uuid.UUID) (float64, error) {
	var count float64
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM matches
		WHERE requester_id = $1 AND book_requested_id = $2
		  AND status IN ('pending', 'accepted')
	`, requesterID, bookID).Scan(&count)
	return count, err
}

// DuplicateRequestStormExperiment fires concurrent identical match requests
// and expects the unique index to let exactly one through.
func (r *Runner) DuplicateRequestStormExperiment(storm int) Experiment {
	var (
		owner, requester *profile.Session
		book             *catalog.Book
		created, dupes   int
	)

	return Experiment{
		Name:       "duplicate-request-storm",
		Hypothesis: "Concurrent identical match requests produce exactly one open match",
		SteadyState: []Metric{
			{
				Name: "total_open_matches",
				Query: func(ctx context.Context) (float64, error) {
					var count float64
					err := r.db.QueryRowContext(ctx,
						`SELECT COUNT(*) FROM matches WHERE status = 'pending'`).Scan(&count)
					return count, err
				},
				Want: func(v float64) bool { return v >= 0 },
			},
		},
		Method: []Action{
			{
				Name: "setup-owner-and-book",
				Execute: func(ctx context.Context) error {
					var err error
					if owner, err = r.registerUser(ctx, "Probe Owner"); err != nil {
						return err
					}
					if requester, err = r.registerUser(ctx, "Probe Requester"); err != nil {
						return err
					}
					book, err = r.listBook(ctx, owner, "Storm Target")
					return err
				},
			},
			{
				Name: "fire-request-storm",
				Execute: func(ctx context.Context) error {
					client := clients.NewExchangeClient(r.exchangeURL, requester.Token)
					var wg sync.WaitGroup
					var mu sync.Mutex
					for i := 0; i < storm; i++ {
						wg.Add(1)
						go func() {
							defer wg.Done()
							_, status, err := client.RequestMatch(ctx, book.ID, nil)
							if err != nil {
								return
							}
							mu.Lock()
							defer mu.Unlock()
							switch status {
							case http.StatusCreated:
								created++
							case http.StatusConflict:
								dupes++
							}
						}()
					}
					wg.Wait()
					return nil
				},
			},
		},
		Validation: []Assertion{
			{
				Name: "exactly-one-created",
				Check: func(ctx context.Context) (bool, string) {
					if created != 1 {
						return false, fmt.Sprintf("expected 1 created, got %d (%d conflicts)", created, dupes)
					}
					return true, ""
				},
				Message: "exactly one request of the storm must be accepted",
			},
			{
				Name: "one-open-match-in-database",
				Check: func(ctx context.Context) (bool, string) {
					count, err := r.openMatchCount(ctx, requester.Profile.ID, book.ID)
					if err != nil {
						return false, err.Error()
					}
					if count != 1 {
						return false, fmt.Sprintf("found %.0f open matches", count)
					}
					return true, ""
				},
				Message: "the partial unique index must hold under concurrency",
			},
		},
	}
}

// ConcurrentRespondExperiment races accepts and declines against one
// pending match and expects a single winner.
func (r *Runner) ConcurrentRespondExperiment(racers int) Experiment {
	var (
		owner, requester *profile.Session
		match            *exchange.Match
		wins, conflicts  int
	)

	return Experiment{
		Name:       "concurrent-respond-single-winner",
		Hypothesis: "Racing responses resolve a match exactly once and the loser sees a conflict",
		Method: []Action{
			{
				Name: "setup-pending-match",
				Execute: func(ctx context.Context) error {
					var err error
					if owner, err = r.registerUser(ctx, "Probe Owner"); err != nil {
						return err
					}
					if requester, err = r.registerUser(ctx, "Probe Requester"); err != nil {
						return err
					}
					book, err := r.listBook(ctx, owner, "Race Target")
					if err != nil {
						return err
					}
					client := clients.NewExchangeClient(r.exchangeURL, requester.Token)
					match, _, err = client.RequestMatch(ctx, book.ID, nil)
					if err == nil && match == nil {
						err = fmt.Errorf("match request refused")
					}
					return err
				},
			},
			{
				Name: "race-responses",
				Execute: func(ctx context.Context) error {
					client := clients.NewExchangeClient(r.exchangeURL, owner.Token)
					var wg sync.WaitGroup
					var mu sync.Mutex
					for i := 0; i < racers; i++ {
						wg.Add(1)
						go func(i int) {
							defer wg.Done()
							decision := exchange.DecisionAccepted
							if i%2 == 1 {
								decision = exchange.DecisionDeclined
							}
							_, status, err := client.Respond(ctx, match.ID, decision)
							if err != nil {
								return
							}
							mu.Lock()
							defer mu.Unlock()
							switch status {
							case http.StatusOK:
								wins++
							case http.StatusConflict:
								conflicts++
							}
						}(i)
					}
					wg.Wait()
					return nil
				},
			},
		},
		Validation: []Assertion{
			{
				Name: "single-winner",
				Check: func(ctx context.Context) (bool, string) {
					if wins != 1 {
						return false, fmt.Sprintf("expected 1 winning response, got %d (%d conflicts)", wins, conflicts)
					}
					return true, ""
				},
				Message: "the pending-status guard must admit exactly one transition",
			},
			{
				Name: "at-most-one-notification",
				Check: func(ctx context.Context) (bool, string) {
					var count int
					err := r.db.QueryRowContext(ctx, `
						SELECT COUNT(*) FROM notifications
						WHERE user_id = $1 AND type = 'match_accepted'
					`, requester.Profile.ID).Scan(&count)
					if err != nil {
						return false, err.Error()
					}
					if count > 1 {
						return false, fmt.Sprintf("requester received %d accept notifications", count)
					}
					return true, ""
				},
				Message: "a race must never double-notify the requester",
			},
		},
	}
}

// CascadeDeleteOrphanExperiment deletes a book out from under its matches
// and interest marks and scans for orphaned rows.
func (r *Runner) CascadeDeleteOrphanExperiment() Experiment {
	var (
		owner *profile.Session
		book  *catalog.Book
	)

	return Experiment{
		Name:       "cascade-delete-orphan-scan",
		Hypothesis: "Deleting a book leaves no matches or interest marks pointing at it",
		Method: []Action{
			{
				Name: "setup-book-with-references",
				Execute: func(ctx context.Context) error {
					var err error
					if owner, err = r.registerUser(ctx, "Probe Owner"); err != nil {
						return err
					}
					book, err = r.listBook(ctx, owner, "Doomed Book")
					return err
				},
			},
			{
				Name: "delete-book",
				Execute: func(ctx context.Context) error {
					client := clients.NewCatalogClient(r.catalogURL, owner.Token)
					return client.DeleteBook(ctx, book.ID)
				},
			},
		},
		Validation: []Assertion{
			{
				Name: "no-orphaned-matches",
				Check: func(ctx context.Context) (bool, string) {
					var count int
					err := r.db.QueryRowContext(ctx, `
						SELECT COUNT(*) FROM matches m
						LEFT JOIN books b ON b.id = m.book_requested_id
						WHERE b.id IS NULL
					`).Scan(&count)
					if err != nil {
						return false, err.Error()
					}
					if count > 0 {
						return false, fmt.Sprintf("found %d matches pointing at deleted books", count)
					}
					return true, ""
				},
				Message: "matches must cascade with their requested book",
			},
			{
				Name: "no-orphaned-interest-marks",
				Check: func(ctx context.Context) (bool, string) {
					var count int
					err := r.db.QueryRowContext(ctx, `
						SELECT COUNT(*) FROM interested_books i
						LEFT JOIN books b ON b.id = i.book_id
						WHERE b.id IS NULL
					`).Scan(&count)
					if err != nil {
						return false, err.Error()
					}
					if count > 0 {
						return false, fmt.Sprintf("found %d interest marks pointing at deleted books", count)
					}
					return true, ""
				},
				Message: "interest marks must cascade with their book",
			},
		},
	}
}
