// internal/feed/feed.go

// Package feed turns Postgres NOTIFY traffic into per-subscriber change
// streams. Row triggers publish a JSON payload on the matches_feed and
// messages_feed channels carrying the fields subscribers filter on, so the
// feed never reads the database.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var ErrClosed = errors.New("feed is closed")

// Channels published by the schema triggers.
const (
	ChannelMatches  = "matches_feed"
	ChannelMessages = "messages_feed"
)

// Operations carried in the payload's op field.
const (
	OpInsert = "INSERT"
	OpUpdate = "UPDATE"
	OpDelete = "DELETE"
)

// Change is one row-level event. Values are immutable once dispatched;
// subscribers share them. Fields beyond Table, Op and ID are populated
// only when the originating trigger includes them.
type Change struct {
	Table           string        `json:"table"`
	Op              string        `json:"op"`
	ID              uuid.UUID     `json:"id"`
	RequesterID     uuid.NullUUID `json:"requester_id"`
	BookRequestedID uuid.NullUUID `json:"book_requested_id"`
	OwnerID         uuid.NullUUID `json:"owner_id"`
	Status          string        `json:"status"`
	SenderID        uuid.NullUUID `json:"sender_id"`
	ReceiverID      uuid.NullUUID `json:"receiver_id"`
}

// Predicate filters changes per subscription. It must be fast and
// side-effect free; it runs on the dispatcher goroutine.
type Predicate func(Change) bool

// MatchesFor selects match changes visible to one user: requests they made
// and requests against their books. Changes whose owner could not be
// resolved (the book was already cascade-deleted) pass through so every
// consumer gets a chance to reload.
func MatchesFor(userID uuid.UUID) Predicate {
	return func(c Change) bool {
		if c.RequesterID.Valid && c.RequesterID.UUID == userID {
			return true
		}
		if !c.OwnerID.Valid {
			return true
		}
		return c.OwnerID.UUID == userID
	}
}

// MessagesFor selects message changes on either side of a conversation
// involving the user.
func MessagesFor(userID uuid.UUID) Predicate {
	return func(c Change) bool {
		return (c.SenderID.Valid && c.SenderID.UUID == userID) ||
			(c.ReceiverID.Valid && c.ReceiverID.UUID == userID)
	}
}

// source is the part of *pq.Listener the feed depends on. Tests swap in
// a synthetic source.
type source interface {
	Listen(channel string) error
	NotificationChannel() <-chan *pq.Notification
	Close() error
}

// Subscription is one consumer's view of the feed. Read from C; Close
// when done. A subscriber that stops reading loses changes rather than
// blocking the dispatcher.
type Subscription struct {
	feed      *Feed
	channel   string
	predicate Predicate
	ch        chan Change
	closeOnce sync.Once
}

// C delivers matching changes until the subscription or the feed closes.
func (s *Subscription) C() <-chan Change {
	return s.ch
}

// Close detaches the subscription. Idempotent.
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		s.feed.unsubscribe(s)
	})
}

// Feed fans database notifications out to subscriptions. A single
// dispatcher goroutine reads the listener; the subscriber set is guarded
// by mu and sends never block.
type Feed struct {
	listener source

	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	closed bool
	done   chan struct{}

	tracer    trace.Tracer
	delivered metric.Int64Counter
	dropped   metric.Int64Counter
}

const subscriptionBuffer = 64

// Listen connects a feed to the database at the given URL. The listener
// re-establishes its connection after outages; changes committed while
// disconnected are lost, which is why consumers reload on reconnect.
func Listen(databaseURL string, channels ...string) (*Feed, error) {
	listener := pq.NewListener(databaseURL, 10*time.Second, time.Minute,
		func(ev pq.ListenerEventType, err error) {
			if err != nil {
				log.Printf("feed listener event %v: %v", ev, err)
			}
		})
	f, err := newFeed(listener, channels...)
	if err != nil {
		listener.Close()
		return nil, err
	}
	return f, nil
}

func newFeed(listener source, channels ...string) (*Feed, error) {
	if len(channels) == 0 {
		channels = []string{ChannelMatches, ChannelMessages}
	}
	for _, channel := range channels {
		if err := listener.Listen(channel); err != nil {
			return nil, fmt.Errorf("listen on %s: %w", channel, err)
		}
	}

	meter := otel.Meter("exchangeease/feed")
	delivered, _ := meter.Int64Counter("feed.changes.delivered")
	dropped, _ := meter.Int64Counter("feed.changes.dropped")

	f := &Feed{
		listener:  listener,
		subs:      make(map[*Subscription]struct{}),
		done:      make(chan struct{}),
		tracer:    otel.Tracer("exchangeease/feed"),
		delivered: delivered,
		dropped:   dropped,
	}
	go f.dispatch()
	return f, nil
}

// Subscribe registers a consumer for one channel. A nil predicate
// matches everything.
func (f *Feed) Subscribe(channel string, predicate Predicate) (*Subscription, error) {
	if predicate == nil {
		predicate = func(Change) bool { return true }
	}
	sub := &Subscription{
		feed:      f,
		channel:   channel,
		predicate: predicate,
		ch:        make(chan Change, subscriptionBuffer),
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, ErrClosed
	}
	f.subs[sub] = struct{}{}
	return sub, nil
}

func (f *Feed) unsubscribe(sub *Subscription) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.subs[sub]; ok {
		delete(f.subs, sub)
		close(sub.ch)
	}
}

// Close shuts the feed down. All subscription channels are closed before
// Close returns.
func (f *Feed) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	f.mu.Unlock()

	err := f.listener.Close()
	<-f.done

	f.mu.Lock()
	for sub := range f.subs {
		delete(f.subs, sub)
		close(sub.ch)
	}
	f.mu.Unlock()
	return err
}

// dispatch is the single goroutine that reads notifications and fans
// them out. It exits when the listener's channel closes.
func (f *Feed) dispatch() {
	defer close(f.done)
	for notification := range f.listener.NotificationChannel() {
		if notification == nil {
			// pq signals a reconnect with a nil notification. Changes
			// committed during the outage were not seen.
			continue
		}
		f.deliver(notification.Channel, notification.Extra)
	}
}

func (f *Feed) deliver(channel, payload string) {
	ctx, span := f.tracer.Start(context.Background(), "feed.deliver",
		trace.WithAttributes(attribute.String("feed.channel", channel)))
	defer span.End()

	var change Change
	if err := json.Unmarshal([]byte(payload), &change); err != nil {
		log.Printf("feed: discarding malformed payload on %s: %v", channel, err)
		span.RecordError(err)
		return
	}

	// Sends are non-blocking, so holding the lock through the fan-out is
	// cheap and keeps unsubscribe from closing a channel mid-send.
	f.mu.Lock()
	defer f.mu.Unlock()
	for sub := range f.subs {
		if sub.channel != channel || !sub.predicate(change) {
			continue
		}
		select {
		case sub.ch <- change:
			f.delivered.Add(ctx, 1)
		default:
			// Subscriber is not keeping up. Dropping here keeps one slow
			// consumer from stalling everyone else.
			f.dropped.Add(ctx, 1)
		}
	}
}
