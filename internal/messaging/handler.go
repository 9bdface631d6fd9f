// internal/messaging/handler.go
package messaging

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

	r.Post("/", h.handleSend)
	r.Get("/unread-count", h.handleUnreadCount)
	r.Get("/{userID}", h.handleConversation)
	r.Post("/{userID}/read", h.handleMarkRead)

	return r
}

func (h *Handler) handleSend(w http.ResponseWriter, r *http.Request) {
	userID, err := identity.FromContext(r.Context())
	if err != nil {
		web.RespondError(w, err)
		return
	}

	var req struct {
		ReceiverID uuid.UUID `json:"receiver_id"`
		Content    string    `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	msg, err := h.service.Send(r.Context(), userID, req.ReceiverID, req.Content)
	if err != nil {
		web.RespondError(w, err)
		return
	}
	web.RespondJSON(w, http.StatusCreated, msg)
}

func (h *Handler) handleConversation(w http.ResponseWriter, r *http.Request) {
	userID, err := identity.FromContext(r.Context())
	if err != nil {
		web.RespondError(w, err)
		return
	}

	otherID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		http.Error(w, "invalid user ID", http.StatusBadRequest)
		return
	}

	conv, err := h.service.Conversation(r.Context(), userID, otherID)
	if err != nil {
		web.RespondError(w, err)
		return
	}
	web.RespondJSON(w, http.StatusOK, conv)
}

func (h *Handler) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	userID, err := identity.FromContext(r.Context())
	if err != nil {
		web.RespondError(w, err)
		return
	}

	otherID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		http.Error(w, "invalid user ID", http.StatusBadRequest)
		return
	}

	if err := h.service.MarkRead(r.Context(), userID, otherID); err != nil {
		web.RespondError(w, err)
		return
	}
	web.RespondJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handler) handleUnreadCount(w http.ResponseWriter, r *http.Request) {
	userID, err := identity.FromContext(r.Context())
	if err != nil {
		web.RespondError(w, err)
		return
	}

	count, err := h.service.UnreadCount(r.Context(), userID)
	if err != nil {
		web.RespondError(w, err)
		return
	}
	web.RespondJSON(w, http.StatusOK, map[string]int{"unread": count})
}
