package identity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jagadesh17/exchangeease/internal/store"
)

func TestIssueVerifyRoundTrip(t *testing.T) {
	tokens := NewTokens("test-secret")
	userID := uuid.New()

	signed, err := tokens.Issue(userID, time.Now())
	require.NoError(t, err)

	got, err := tokens.Verify(signed)
	require.NoError(t, err)
	assert.Equal(t, userID, got)
}

func TestVerifyRejectsForeignSecret(t *testing.T) {
	signed, err := NewTokens("secret-a").Issue(uuid.New(), time.Now())
	require.NoError(t, err)

	_, err = NewTokens("secret-b").Verify(signed)
	assert.ErrorIs(t, err, store.ErrUnauthenticated)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	tokens := NewTokens("test-secret")
	signed, err := tokens.Issue(uuid.New(), time.Now().Add(-2*TokenTTL))
	require.NoError(t, err)

	_, err = tokens.Verify(signed)
	assert.ErrorIs(t, err, store.ErrUnauthenticated)
}

func TestFromContextWithoutUser(t *testing.T) {
	_, err := FromContext(context.Background())
	assert.ErrorIs(t, err, store.ErrUnauthenticated)
}

func TestMiddleware(t *testing.T) {
	tokens := NewTokens("test-secret")
	userID := uuid.New()
	signed, err := tokens.Issue(userID, time.Now())
	require.NoError(t, err)

	var seen uuid.UUID
	handler := tokens.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, userID, seen)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
