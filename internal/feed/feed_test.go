// internal/feed/feed_test.go
package feed

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSource stands in for *pq.Listener so dispatch can be driven
// synthetically.
type fakeSource struct {
	notifications chan *pq.Notification
	channels      []string
}

func newFakeSource() *fakeSource {
	return &fakeSource{notifications: make(chan *pq.Notification, 16)}
}

func (f *fakeSource) Listen(channel string) error {
	f.channels = append(f.channels, channel)
	return nil
}

func (f *fakeSource) NotificationChannel() <-chan *pq.Notification {
	return f.notifications
}

func (f *fakeSource) Close() error {
	close(f.notifications)
	return nil
}

func (f *fakeSource) publish(channel, payload string) {
	f.notifications <- &pq.Notification{Channel: channel, Extra: payload}
}

func matchPayload(id, requester, book, owner uuid.UUID, op, status string) string {
	return fmt.Sprintf(
		`{"table":"matches","op":%q,"id":%q,"requester_id":%q,"book_requested_id":%q,"owner_id":%q,"status":%q}`,
		op, id, requester, book, owner, status)
}

func receive(t *testing.T, sub *Subscription) Change {
	t.Helper()
	select {
	case change, ok := <-sub.C():
		require.True(t, ok, "subscription closed unexpectedly")
		return change
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for change")
		return Change{}
	}
}

func TestFeedListensOnDefaultChannels(t *testing.T) {
	source := newFakeSource()
	f, err := newFeed(source)
	require.NoError(t, err)
	defer f.Close()

	assert.ElementsMatch(t, []string{ChannelMatches, ChannelMessages}, source.channels)
}

func TestSubscriberReceivesMatchingChange(t *testing.T) {
	source := newFakeSource()
	f, err := newFeed(source)
	require.NoError(t, err)
	defer f.Close()

	requester := uuid.New()
	sub, err := f.Subscribe(ChannelMatches, MatchesFor(requester))
	require.NoError(t, err)

	matchID, bookID, ownerID := uuid.New(), uuid.New(), uuid.New()
	source.publish(ChannelMatches, matchPayload(matchID, requester, bookID, ownerID, OpInsert, "pending"))

	change := receive(t, sub)
	assert.Equal(t, "matches", change.Table)
	assert.Equal(t, OpInsert, change.Op)
	assert.Equal(t, matchID, change.ID)
	assert.Equal(t, "pending", change.Status)
	require.True(t, change.RequesterID.Valid)
	assert.Equal(t, requester, change.RequesterID.UUID)
}

func TestPredicateFiltersForeignChanges(t *testing.T) {
	source := newFakeSource()
	f, err := newFeed(source)
	require.NoError(t, err)
	defer f.Close()

	me := uuid.New()
	sub, err := f.Subscribe(ChannelMatches, MatchesFor(me))
	require.NoError(t, err)

	// A change between two strangers, then one addressed to me.
	source.publish(ChannelMatches, matchPayload(uuid.New(), uuid.New(), uuid.New(), uuid.New(), OpInsert, "pending"))
	mine := uuid.New()
	source.publish(ChannelMatches, matchPayload(mine, uuid.New(), uuid.New(), me, OpUpdate, "accepted"))

	change := receive(t, sub)
	assert.Equal(t, mine, change.ID, "the foreign change must be filtered out")
	assert.Equal(t, "accepted", change.Status)
}

func TestOwnerSideSubscriberSeesIncomingRequest(t *testing.T) {
	source := newFakeSource()
	f, err := newFeed(source)
	require.NoError(t, err)
	defer f.Close()

	owner := uuid.New()
	sub, err := f.Subscribe(ChannelMatches, MatchesFor(owner))
	require.NoError(t, err)

	matchID := uuid.New()
	source.publish(ChannelMatches, matchPayload(matchID, uuid.New(), uuid.New(), owner, OpInsert, "pending"))

	change := receive(t, sub)
	assert.Equal(t, matchID, change.ID)
}

func TestUnresolvedOwnerPassesThrough(t *testing.T) {
	source := newFakeSource()
	f, err := newFeed(source)
	require.NoError(t, err)
	defer f.Close()

	sub, err := f.Subscribe(ChannelMatches, MatchesFor(uuid.New()))
	require.NoError(t, err)

	// Cascade delete: the book row is gone, owner_id comes through null.
	id := uuid.New()
	source.publish(ChannelMatches, fmt.Sprintf(
		`{"table":"matches","op":"DELETE","id":%q,"requester_id":%q,"owner_id":null}`,
		id, uuid.New()))

	change := receive(t, sub)
	assert.Equal(t, OpDelete, change.Op)
	assert.False(t, change.OwnerID.Valid)
}

func TestChannelsAreIsolated(t *testing.T) {
	source := newFakeSource()
	f, err := newFeed(source)
	require.NoError(t, err)
	defer f.Close()

	me := uuid.New()
	matches, err := f.Subscribe(ChannelMatches, nil)
	require.NoError(t, err)
	messages, err := f.Subscribe(ChannelMessages, MessagesFor(me))
	require.NoError(t, err)

	msgID := uuid.New()
	source.publish(ChannelMessages, fmt.Sprintf(
		`{"table":"messages","op":"INSERT","id":%q,"sender_id":%q,"receiver_id":%q}`,
		msgID, uuid.New(), me))

	change := receive(t, messages)
	assert.Equal(t, msgID, change.ID)

	select {
	case c := <-matches.C():
		t.Fatalf("match subscriber received message change: %+v", c)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestMalformedPayloadIsDiscarded(t *testing.T) {
	source := newFakeSource()
	f, err := newFeed(source)
	require.NoError(t, err)
	defer f.Close()

	sub, err := f.Subscribe(ChannelMatches, nil)
	require.NoError(t, err)

	source.publish(ChannelMatches, "{not json")
	id := uuid.New()
	source.publish(ChannelMatches, matchPayload(id, uuid.New(), uuid.New(), uuid.New(), OpInsert, "pending"))

	change := receive(t, sub)
	assert.Equal(t, id, change.ID, "the feed must survive a malformed payload")
}

func TestSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	source := newFakeSource()
	f, err := newFeed(source)
	require.NoError(t, err)
	defer f.Close()

	slow, err := f.Subscribe(ChannelMatches, nil)
	require.NoError(t, err)

	// Overfill the subscription buffer without reading.
	for i := 0; i < subscriptionBuffer+10; i++ {
		source.publish(ChannelMatches, matchPayload(uuid.New(), uuid.New(), uuid.New(), uuid.New(), OpInsert, "pending"))
	}

	// The dispatcher must still be alive for a fresh subscriber.
	id := uuid.New()
	fresh, err := f.Subscribe(ChannelMatches, func(c Change) bool { return c.ID == id })
	require.NoError(t, err)
	source.publish(ChannelMatches, matchPayload(id, uuid.New(), uuid.New(), uuid.New(), OpInsert, "pending"))

	change := receive(t, fresh)
	assert.Equal(t, id, change.ID)

	drained := 0
	for {
		select {
		case <-slow.C():
			drained++
			continue
		default:
		}
		break
	}
	assert.Equal(t, subscriptionBuffer, drained, "overflow beyond the buffer is dropped")
}

func TestSubscriptionCloseIsIdempotent(t *testing.T) {
	source := newFakeSource()
	f, err := newFeed(source)
	require.NoError(t, err)
	defer f.Close()

	sub, err := f.Subscribe(ChannelMatches, nil)
	require.NoError(t, err)

	sub.Close()
	sub.Close()

	_, ok := <-sub.C()
	assert.False(t, ok)
}

func TestFeedCloseClosesSubscriptions(t *testing.T) {
	source := newFakeSource()
	f, err := newFeed(source)
	require.NoError(t, err)

	sub, err := f.Subscribe(ChannelMatches, nil)
	require.NoError(t, err)

	require.NoError(t, f.Close())
	require.NoError(t, f.Close(), "double close is safe")

	_, ok := <-sub.C()
	assert.False(t, ok)

	_, err = f.Subscribe(ChannelMatches, nil)
	assert.ErrorIs(t, err, ErrClosed)
}
