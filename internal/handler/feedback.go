package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mmeshcher/fitfinder/internal/model"
)

type ratingRequest struct {
	model.CategoryRating
	UserName string `json:"userName"`
}

type commentRequest struct {
	Comment  string `json:"comment"`
	UserName string `json:"userName"`
}

// SubmitRating сохраняет оценку академии от текущего или анонимного пользователя.
func (h *Handler) SubmitRating(w http.ResponseWriter, r *http.Request) {
	var req ratingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeStatus(w, http.StatusBadRequest)
		return
	}

	author, err := h.service.ResolveAttribution(r.Context(), currentUser(r), req.UserName)
	if err != nil {
		h.writeError(w, err, "resolve attribution error")
		return
	}

	saved, err := h.service.SubmitRating(r.Context(), chi.URLParam(r, "id"), author, req.CategoryRating)
	if err != nil {
		h.writeError(w, err, "submit rating error")
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

// ListComments возвращает комментарии академии.
func (h *Handler) ListComments(w http.ResponseWriter, r *http.Request) {
	comments, err := h.service.ListComments(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err, "list comments error")
		return
	}
	writeJSON(w, http.StatusOK, comments)
}

// AddComment сохраняет комментарий к академии.
func (h *Handler) AddComment(w http.ResponseWriter, r *http.Request) {
	var req commentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeStatus(w, http.StatusBadRequest)
		return
	}

	author, err := h.service.ResolveAttribution(r.Context(), currentUser(r), req.UserName)
	if err != nil {
		h.writeError(w, err, "resolve attribution error")
		return
	}

	saved, err := h.service.AddComment(r.Context(), chi.URLParam(r, "id"), author, req.Comment)
	if err != nil {
		h.writeError(w, err, "add comment error")
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}
