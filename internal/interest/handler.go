// internal/interest/handler.go
package interest

import (
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

	r.Get("/", h.handleList)
	r.Get("/{bookID}", h.handleCheck)
	r.Post("/{bookID}/toggle", h.handleToggle)

	return r
}

func (h *Handler) handleToggle(w http.ResponseWriter, r *http.Request) {
	userID, err := identity.FromContext(r.Context())
	if err != nil {
		web.RespondError(w, err)
		return
	}

	bookID, err := uuid.Parse(chi.URLParam(r, "bookID"))
	if err != nil {
		http.Error(w, "invalid book ID", http.StatusBadRequest)
		return
	}

	interested, err := h.service.Toggle(r.Context(), userID, bookID)
	if err != nil {
		web.RespondError(w, err)
		return
	}
	web.RespondJSON(w, http.StatusOK, map[string]bool{"interested": interested})
}

func (h *Handler) handleCheck(w http.ResponseWriter, r *http.Request) {
	userID, err := identity.FromContext(r.Context())
	if err != nil {
		web.RespondError(w, err)
		return
	}

	bookID, err := uuid.Parse(chi.URLParam(r, "bookID"))
	if err != nil {
		http.Error(w, "invalid book ID", http.StatusBadRequest)
		return
	}

	interested, err := h.service.Check(r.Context(), userID, bookID)
	if err != nil {
		web.RespondError(w, err)
		return
	}
	web.RespondJSON(w, http.StatusOK, map[string]bool{"interested": interested})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	userID, err := identity.FromContext(r.Context())
	if err != nil {
		web.RespondError(w, err)
		return
	}

	books, err := h.service.ListInterested(r.Context(), userID)
	if err != nil {
		web.RespondError(w, err)
		return
	}
	web.RespondJSON(w, http.StatusOK, books)
}
