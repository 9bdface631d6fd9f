// internal/notification/implementation_test.go
package notification

import (
	"context"
	"database/sql"
	"encoding/json"
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

func createTestProfile(t testing.TB, db *sql.DB) uuid.UUID {
	t.Helper()
	id := uuid.New()
	_, err := db.Exec(
		`INSERT INTO profiles (id, name, email) VALUES ($1, 'Test User', $2)`,
		id, fmt.Sprintf("%s@test.local", id))
	require.NoError(t, err)
	return id
}

func TestCreateAndList(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	svc := NewService(db)
	ctx := context.Background()

	user := createTestProfile(t, db)

	err := svc.Create(ctx, Draft{
		UserID:  user,
		Type:    TypeMatchAccepted,
		Title:   "Match accepted!",
		Message: "Your request for Dune was accepted",
		Data:    map[string]string{"book_title": "Dune"},
	})
	require.NoError(t, err)

	list, err := svc.List(ctx, user)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, TypeMatchAccepted, list[0].Type)
	assert.False(t, list[0].Read)

	var data map[string]string
	require.NoError(t, json.Unmarshal(list[0].Data, &data))
	assert.Equal(t, "Dune", data["book_title"])
}

func TestCreateRequiresRecipientAndType(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	svc := NewService(db)
	ctx := context.Background()

	err := svc.Create(ctx, Draft{Type: TypeMatchAccepted})
	assert.ErrorIs(t, err, store.ErrValidation)

	err = svc.Create(ctx, Draft{UserID: uuid.New()})
	assert.ErrorIs(t, err, store.ErrValidation)
}

func TestReadTracking(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	svc := NewService(db)
	ctx := context.Background()

	user := createTestProfile(t, db)
	other := createTestProfile(t, db)

	for i := 0; i < 3; i++ {
		require.NoError(t, svc.Create(ctx, Draft{
			UserID: user,
			Type:   TypeMatchAccepted,
			Title:  fmt.Sprintf("Notification %d", i),
		}))
	}

	count, err := svc.UnreadCount(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	list, err := svc.List(ctx, user)
	require.NoError(t, err)

	// Only the owner can mark an entry read.
	err = svc.MarkRead(ctx, list[0].ID, other)
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, svc.MarkRead(ctx, list[0].ID, user))
	count, err = svc.UnreadCount(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	require.NoError(t, svc.MarkAllRead(ctx, user))
	count, err = svc.UnreadCount(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	require.NoError(t, svc.MarkAllRead(ctx, user))
}

func TestMarkReadUnknownNotification(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	svc := NewService(db)

	err := svc.MarkRead(context.Background(), uuid.New(), uuid.New())
	assert.ErrorIs(t, err, store.ErrNotFound)
}
