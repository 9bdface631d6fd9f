// internal/exchange/handler.go
package exchange

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Jagadesh17/exchangeease/internal/identity"
	"github.com/Jagadesh17/exchangeease/internal/web"
)

type Handler struct {
	service Service
	tokens  *identity.Tokens
}

func NewHandler(service Service, tokens *identity.Tokens) *Handler {
	return &Handler{service: service, tokens: tokens}
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(h.tokens.Middleware)

	r.Get("/", h.handleUserMatches)
	r.Post("/", h.handleRequestMatch)
	r.Post("/{matchID}/respond", h.handleRespond)

	return r
}

func (h *Handler) handleRequestMatch(w http.ResponseWriter, r *http.Request) {
	userID, err := identity.FromContext(r.Context())
	if err != nil {
		web.RespondError(w, err)
		return
	}

	var req struct {
		BookRequestedID uuid.UUID  `json:"book_requested_id"`
		BookOfferedID   *uuid.UUID `json:"book_offered_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	match, err := h.service.RequestMatch(r.Context(), userID, req.BookRequestedID, req.BookOfferedID)
	if err != nil {
		web.RespondError(w, err)
		return
	}
	web.RespondJSON(w, http.StatusCreated, match)
}

func (h *Handler) handleRespond(w http.ResponseWriter, r *http.Request) {
	userID, err := identity.FromContext(r.Context())
	if err != nil {
		web.RespondError(w, err)
		return
	}

	matchID, err := uuid.Parse(chi.URLParam(r, "matchID"))
	if err != nil {
		http.Error(w, "invalid match ID", http.StatusBadRequest)
		return
	}

	var req struct {
		Decision Decision `json:"decision"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	match, err := h.service.RespondToMatch(r.Context(), matchID, req.Decision, userID)
	if err != nil {
		web.RespondError(w, err)
		return
	}
	web.RespondJSON(w, http.StatusOK, match)
}

func (h *Handler) handleUserMatches(w http.ResponseWriter, r *http.Request) {
	userID, err := identity.FromContext(r.Context())
	if err != nil {
		web.RespondError(w, err)
		return
	}

	inbox, err := h.service.UserMatches(r.Context(), userID)
	if err != nil {
		web.RespondError(w, err)
		return
	}
	web.RespondJSON(w, http.StatusOK, inbox)
}
