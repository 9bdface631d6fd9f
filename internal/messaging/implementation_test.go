// internal/messaging/implementation_test.go
package messaging

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jagadesh17/exchangeease/internal/store"
)

func setupTestDB(t testing.TB) *sql.DB {
	t.Helper()

	pgUser := os.Getenv("PGUSER")
	pgPassword := os.Getenv("PGPASSWORD")
	pgHost := os.Getenv("PGHOST")
	pgPort := os.Getenv("PGPORT")
	pgDB := os.Getenv("PGDATABASE")

	if pgUser == "" {
		pgUser = "user"
	}
	if pgPassword == "" {
		pgPassword = "password"
	}
	if pgHost == "" {
		pgHost = "localhost"
	}
	if pgPort == "" {
		pgPort = "5432"
	}
	if pgDB == "" {
		pgDB = "testdb"
	}

	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		pgHost, pgPort, pgUser, pgPassword, pgDB)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		t.Fatalf("failed to open database connection: %v", err)
	}
	if err := db.Ping(); err != nil {
		t.Skipf("skipping database tests: could not connect to postgres: %v", err)
	}

	schema, err := os.ReadFile("../../migrations/schema.sql")
	if err != nil {
		t.Fatalf("failed to read schema: %v", err)
	}
	if _, err := db.Exec(string(schema)); err != nil {
		t.Fatalf("failed to apply schema: %v", err)
	}
	if _, err := db.Exec("TRUNCATE TABLE messages, notifications, interested_books, matches, books, credentials, profiles CASCADE"); err != nil {
		t.Fatalf("failed to truncate tables: %v", err)
	}

	return db
}

func createTestProfile(t testing.TB, db *sql.DB, name string) uuid.UUID {
	t.Helper()
	id := uuid.New()
	_, err := db.Exec(
		`INSERT INTO profiles (id, name, email) VALUES ($1, $2, $3)`,
		id, name, fmt.Sprintf("%s@test.local", id))
	require.NoError(t, err)
	return id
}

func TestSendRejectsEmptyContent(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	svc := NewService(db)

	a := createTestProfile(t, db, "Alice")
	b := createTestProfile(t, db, "Bob")

	_, err := svc.Send(context.Background(), a, b, "")
	assert.ErrorIs(t, err, store.ErrValidation)

	_, err = svc.Send(context.Background(), a, b, "   \n\t")
	assert.ErrorIs(t, err, store.ErrValidation)
}

func TestSendRejectsSelfMessage(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	svc := NewService(db)

	a := createTestProfile(t, db, "Alice")

	_, err := svc.Send(context.Background(), a, a, "hello me")
	assert.ErrorIs(t, err, store.ErrValidation)
}

func TestSendRejectsUnknownReceiver(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	svc := NewService(db)

	a := createTestProfile(t, db, "Alice")

	_, err := svc.Send(context.Background(), a, uuid.New(), "anyone there?")
	assert.ErrorIs(t, err, store.ErrReferential)
}

func TestConversationOrdersBothDirectionsAscending(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	svc := NewService(db)
	ctx := context.Background()

	a := createTestProfile(t, db, "Alice")
	b := createTestProfile(t, db, "Bob")
	c := createTestProfile(t, db, "Carol")

	_, err := svc.Send(ctx, a, b, "want to swap Dune?")
	require.NoError(t, err)
	_, err = svc.Send(ctx, b, a, "sure, for Hyperion")
	require.NoError(t, err)
	_, err = svc.Send(ctx, a, b, "deal")
	require.NoError(t, err)
	// Noise from a third conversation must not leak in.
	_, err = svc.Send(ctx, c, a, "unrelated")
	require.NoError(t, err)

	conv, err := svc.Conversation(ctx, a, b)
	require.NoError(t, err)

	assert.Equal(t, "Bob", conv.With.Name)
	require.Len(t, conv.Messages, 3)
	assert.Equal(t, "want to swap Dune?", conv.Messages[0].Content)
	assert.Equal(t, "sure, for Hyperion", conv.Messages[1].Content)
	assert.Equal(t, "deal", conv.Messages[2].Content)
	for i := 1; i < len(conv.Messages); i++ {
		assert.False(t, conv.Messages[i].CreatedAt.Before(conv.Messages[i-1].CreatedAt))
	}
}

func TestConversationMarksIncomingRead(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	svc := NewService(db)
	ctx := context.Background()

	a := createTestProfile(t, db, "Alice")
	b := createTestProfile(t, db, "Bob")

	_, err := svc.Send(ctx, b, a, "ping")
	require.NoError(t, err)
	_, err = svc.Send(ctx, a, b, "pong")
	require.NoError(t, err)

	conv, err := svc.Conversation(ctx, a, b)
	require.NoError(t, err)

	for _, m := range conv.Messages {
		if m.ReceiverID == a {
			assert.True(t, m.Read, "incoming messages are read after loading the conversation")
		}
		if m.ReceiverID == b {
			assert.False(t, m.Read, "outgoing messages stay unread until the other side loads")
		}
	}

	count, err := svc.UnreadCount(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	count, err = svc.UnreadCount(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestConversationWithUnknownUser(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	svc := NewService(db)

	a := createTestProfile(t, db, "Alice")

	_, err := svc.Conversation(context.Background(), a, uuid.New())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestMarkReadIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	svc := NewService(db)
	ctx := context.Background()

	a := createTestProfile(t, db, "Alice")
	b := createTestProfile(t, db, "Bob")

	_, err := svc.Send(ctx, b, a, "hello")
	require.NoError(t, err)

	require.NoError(t, svc.MarkRead(ctx, a, b))
	require.NoError(t, svc.MarkRead(ctx, a, b))

	count, err := svc.UnreadCount(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}
