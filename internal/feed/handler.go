// internal/feed/handler.go
package feed

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Jagadesh17/exchangeease/internal/identity"
	"github.com/Jagadesh17/exchangeease/internal/web"
)

// Handler streams a user's changes over server-sent events. Clients treat
// every event as a reload hint, so dropped events cost a delayed refresh,
// never lost data.
type Handler struct {
	feed   *Feed
	tokens *identity.Tokens
}

func NewHandler(feed *Feed, tokens *identity.Tokens) *Handler {
	return &Handler{feed: feed, tokens: tokens}
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(h.tokens.Middleware)

	r.Get("/", h.handleStream)

	return r
}

func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	userID, err := identity.FromContext(r.Context())
	if err != nil {
		web.RespondError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	matches, err := h.feed.Subscribe(ChannelMatches, MatchesFor(userID))
	if err != nil {
		web.RespondError(w, err)
		return
	}
	defer matches.Close()

	messages, err := h.feed.Subscribe(ChannelMessages, MessagesFor(userID))
	if err != nil {
		web.RespondError(w, err)
		return
	}
	defer messages.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		var (
			change Change
			open   bool
		)
		select {
		case <-r.Context().Done():
			return
		case change, open = <-matches.C():
		case change, open = <-messages.C():
		}
		if !open {
			return
		}

		payload, err := json.Marshal(change)
		if err != nil {
			continue
		}
		fmt.Fprintf(w, "data: %s\n\n", payload)
		flusher.Flush()
	}
}
