// internal/profile/implementation_test.go
package profile

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

	"github.com/Jagadesh17/exchangeease/internal/identity"
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

func newTestService(db *sql.DB) (Service, *identity.Tokens) {
	tokens := identity.NewTokens("test-secret")
	return NewService(db, tokens), tokens
}

func TestRegisterAndAuthenticate(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	svc, tokens := newTestService(db)
	ctx := context.Background()

	session, err := svc.Register(ctx, "alice@example.com", "Alice", "SecurePass123!")
	require.NoError(t, err)
	assert.NotEmpty(t, session.Token)
	assert.Equal(t, "alice@example.com", session.Profile.Email)

	userID, err := tokens.Verify(session.Token)
	require.NoError(t, err)
	assert.Equal(t, session.Profile.ID, userID)

	login, err := svc.Authenticate(ctx, "alice@example.com", "SecurePass123!")
	require.NoError(t, err)
	assert.Equal(t, session.Profile.ID, login.Profile.ID)

	_, err = svc.Authenticate(ctx, "alice@example.com", "wrong password")
	assert.ErrorIs(t, err, store.ErrUnauthenticated)

	_, err = svc.Authenticate(ctx, "nobody@example.com", "SecurePass123!")
	assert.ErrorIs(t, err, store.ErrUnauthenticated)
}

func TestRegisterValidation(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	svc, _ := newTestService(db)
	ctx := context.Background()

	_, err := svc.Register(ctx, "not-an-email", "Alice", "SecurePass123!")
	assert.ErrorIs(t, err, store.ErrValidation)

	_, err = svc.Register(ctx, "alice@example.com", "", "SecurePass123!")
	assert.ErrorIs(t, err, store.ErrValidation)

	_, err = svc.Register(ctx, "alice@example.com", "Alice", "short")
	assert.ErrorIs(t, err, store.ErrValidation)
}

// The limiter runs before any validation or store access, so these tests
// need no database. One email being hammered must not throttle others.
func TestRateLimitIsPerEmail(t *testing.T) {
	svc, _ := newTestService(nil)
	ctx := context.Background()

	for i := 0; i < 2*limiterBurst; i++ {
		email := fmt.Sprintf("user%d@example.com", i)
		_, err := svc.Register(ctx, email, "User", "short")
		assert.ErrorIs(t, err, store.ErrValidation)
	}
}

func TestRateLimitThrottlesRepeatedAttempts(t *testing.T) {
	svc, _ := newTestService(nil)
	ctx := context.Background()

	for i := 0; i < limiterBurst; i++ {
		_, err := svc.Register(ctx, "bob@example.com", "Bob", "short")
		require.ErrorIs(t, err, store.ErrValidation)
	}

	_, err := svc.Register(ctx, "bob@example.com", "Bob", "short")
	assert.ErrorIs(t, err, ErrRateLimited)

	// Login attempts share the bucket, as do case and whitespace variants.
	_, err = svc.Authenticate(ctx, "  Bob@Example.com ", "irrelevant")
	assert.ErrorIs(t, err, ErrRateLimited)
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	svc, _ := newTestService(db)
	ctx := context.Background()

	_, err := svc.Register(ctx, "alice@example.com", "Alice", "SecurePass123!")
	require.NoError(t, err)

	_, err = svc.Register(ctx, "Alice@Example.com", "Other Alice", "SecurePass123!")
	assert.ErrorIs(t, err, ErrEmailTaken)
	assert.ErrorIs(t, err, store.ErrDuplicateRequest)
}

func TestUpdateOwnerOnly(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	svc, _ := newTestService(db)
	ctx := context.Background()

	alice, err := svc.Register(ctx, "alice@example.com", "Alice", "SecurePass123!")
	require.NoError(t, err)
	bob, err := svc.Register(ctx, "bob@example.com", "Bob", "SecurePass123!")
	require.NoError(t, err)

	bio := "Avid reader"
	updated, err := svc.Update(ctx, alice.Profile.ID, alice.Profile.ID, Patch{Bio: &bio})
	require.NoError(t, err)
	assert.Equal(t, "Avid reader", updated.Bio)
	assert.Equal(t, "Alice", updated.Name)

	_, err = svc.Update(ctx, alice.Profile.ID, bob.Profile.ID, Patch{Bio: &bio})
	assert.ErrorIs(t, err, store.ErrNotAuthorized)

	reloaded, err := svc.Get(ctx, alice.Profile.ID)
	require.NoError(t, err)
	assert.Equal(t, "Avid reader", reloaded.Bio)
}

func TestGetUnknownProfile(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	svc, _ := newTestService(db)

	_, err := svc.Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestUserStatsCountsAcceptedSwapsOnBothSides(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	svc, _ := newTestService(db)
	ctx := context.Background()

	alice := insertProfile(t, db, "alice@example.com")
	bob := insertProfile(t, db, "bob@example.com")

	aliceBook := insertBook(t, db, alice, "Dune")
	insertBook(t, db, alice, "Hyperion")
	bobBook := insertBook(t, db, bob, "Foundation")

	// Bob requested Alice's book and it was accepted: one swap each.
	insertMatch(t, db, bob, aliceBook, "accepted")
	// Alice's pending request toward Bob counts for neither.
	insertMatch(t, db, alice, bobBook, "pending")

	stats, err := svc.UserStats(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.BooksListed)
	assert.Equal(t, 1, stats.SuccessfulSwaps)
	assert.False(t, stats.MemberSince.IsZero())

	stats, err = svc.UserStats(ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.BooksListed)
	assert.Equal(t, 1, stats.SuccessfulSwaps)
}

func insertProfile(t testing.TB, db *sql.DB, email string) uuid.UUID {
	t.Helper()
	id := uuid.New()
	_, err := db.Exec(`INSERT INTO profiles (id, email, name) VALUES ($1, $2, 'Test User')`, id, email)
	require.NoError(t, err)
	return id
}

func insertBook(t testing.TB, db *sql.DB, ownerID uuid.UUID, title string) uuid.UUID {
	t.Helper()
	id := uuid.New()
	_, err := db.Exec(
		`INSERT INTO books (id, owner_id, title, author, condition, exchange_method)
		 VALUES ($1, $2, $3, 'Test Author', 'Good', 'Both')`,
		id, ownerID, title)
	require.NoError(t, err)
	return id
}

func insertMatch(t testing.TB, db *sql.DB, requesterID, bookID uuid.UUID, status string) uuid.UUID {
	t.Helper()
	id := uuid.New()
	_, err := db.Exec(
		`INSERT INTO matches (id, requester_id, book_requested_id, status) VALUES ($1, $2, $3, $4)`,
		id, requesterID, bookID, status)
	require.NoError(t, err)
	return id
}
