// internal/catalog/handler.go
package catalog

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

	r.Get("/books", h.handleListBooks)
	r.Get("/books/{bookID}", h.handleGetBook)
	r.Get("/search", h.handleSearch)

	r.Group(func(r chi.Router) {
		r.Use(h.tokens.Middleware)
		r.Post("/books", h.handleAddBook)
		r.Get("/books/mine", h.handleMyBooks)
		r.Patch("/books/{bookID}", h.handleEditBook)
		r.Delete("/books/{bookID}", h.handleDeleteBook)
	})

	return r
}

func (h *Handler) handleListBooks(w http.ResponseWriter, r *http.Request) {
	books, err := h.service.ListBooks(r.Context())
	if err != nil {
		web.RespondError(w, err)
		return
	}
	web.RespondJSON(w, http.StatusOK, books)
}

func (h *Handler) handleGetBook(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "bookID"))
	if err != nil {
		http.Error(w, "invalid book ID", http.StatusBadRequest)
		return
	}

	book, err := h.service.GetBook(r.Context(), id)
	if err != nil {
		web.RespondError(w, err)
		return
	}
	web.RespondJSON(w, http.StatusOK, book)
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		http.Error(w, "missing search query", http.StatusBadRequest)
		return
	}

	books, err := h.service.Search(r.Context(), query)
	if err != nil {
		web.RespondError(w, err)
		return
	}
	web.RespondJSON(w, http.StatusOK, books)
}

func (h *Handler) handleAddBook(w http.ResponseWriter, r *http.Request) {
	userID, err := identity.FromContext(r.Context())
	if err != nil {
		web.RespondError(w, err)
		return
	}

	var draft Draft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	book, err := h.service.AddBook(r.Context(), userID, draft)
	if err != nil {
		web.RespondError(w, err)
		return
	}
	web.RespondJSON(w, http.StatusCreated, book)
}

func (h *Handler) handleMyBooks(w http.ResponseWriter, r *http.Request) {
	userID, err := identity.FromContext(r.Context())
	if err != nil {
		web.RespondError(w, err)
		return
	}

	books, err := h.service.ListOwnerBooks(r.Context(), userID)
	if err != nil {
		web.RespondError(w, err)
		return
	}
	web.RespondJSON(w, http.StatusOK, books)
}

func (h *Handler) handleEditBook(w http.ResponseWriter, r *http.Request) {
	userID, err := identity.FromContext(r.Context())
	if err != nil {
		web.RespondError(w, err)
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "bookID"))
	if err != nil {
		http.Error(w, "invalid book ID", http.StatusBadRequest)
		return
	}

	var patch Patch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	book, err := h.service.EditBook(r.Context(), id, userID, patch)
	if err != nil {
		web.RespondError(w, err)
		return
	}
	web.RespondJSON(w, http.StatusOK, book)
}

func (h *Handler) handleDeleteBook(w http.ResponseWriter, r *http.Request) {
	userID, err := identity.FromContext(r.Context())
	if err != nil {
		web.RespondError(w, err)
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "bookID"))
	if err != nil {
		http.Error(w, "invalid book ID", http.StatusBadRequest)
		return
	}

	if err := h.service.DeleteBook(r.Context(), id, userID); err != nil {
		web.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
