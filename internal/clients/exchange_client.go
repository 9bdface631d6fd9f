// internal/clients/exchange_client.go
package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/Jagadesh17/exchangeease/internal/exchange"
)

type ExchangeClient struct {
	baseURL string
	token   string
}

func NewExchangeClient(baseURL, token string) *ExchangeClient {
	return &ExchangeClient{baseURL: baseURL, token: token}
}

// RequestMatch returns the created match, or the HTTP status when the
// service refuses. Callers that race duplicates inspect the status.
func (c *ExchangeClient) RequestMatch(ctx context.Context, bookRequestedID uuid.UUID, bookOfferedID *uuid.UUID) (*exchange.Match, int, error) {
	matchReq := struct {
		BookRequestedID uuid.UUID  `json:"book_requested_id"`
		BookOfferedID   *uuid.UUID `json:"book_offered_id,omitempty"`
	}{
		BookRequestedID: bookRequestedID,
		BookOfferedID:   bookOfferedID,
	}

	body, err := json.Marshal(matchReq)
	if err != nil {
		return nil, 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s/matches", c.baseURL), bytes.NewBuffer(body))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return nil, resp.StatusCode, nil
	}

	var match exchange.Match
	if err := json.NewDecoder(resp.Body).Decode(&match); err != nil {
		return nil, resp.StatusCode, err
	}

	return &match, resp.StatusCode, nil
}

func (c *ExchangeClient) Respond(ctx context.Context, matchID uuid.UUID, decision exchange.Decision) (*exchange.Match, int, error) {
	respondReq := struct {
		Decision exchange.Decision `json:"decision"`
	}{Decision: decision}

	body, err := json.Marshal(respondReq)
	if err != nil {
		return nil, 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s/matches/%s/respond", c.baseURL, matchID), bytes.NewBuffer(body))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, resp.StatusCode, nil
	}

	var match exchange.Match
	if err := json.NewDecoder(resp.Body).Decode(&match); err != nil {
		return nil, resp.StatusCode, err
	}

	return &match, resp.StatusCode, nil
}

func (c *ExchangeClient) UserMatches(ctx context.Context) (*exchange.Inbox, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/matches", c.baseURL), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var inbox exchange.Inbox
	if err := json.NewDecoder(resp.Body).Decode(&inbox); err != nil {
		return nil, err
	}

	return &inbox, nil
}
