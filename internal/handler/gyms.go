package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mmeshcher/fitfinder/internal/model"
	"github.com/mmeshcher/fitfinder/internal/service"
)

// multipartOverhead допускает служебные поля multipart сверх размера изображения.
const multipartOverhead = 1 << 20

// ListGyms возвращает академии по штату и городу.
func (h *Handler) ListGyms(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := model.GymFilter{
		State: q.Get("state"),
		City:  q.Get("city"),
	}

	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			writeStatus(w, http.StatusBadRequest)
			return
		}
		f.Limit = limit
	}

	gyms, err := h.service.SearchGyms(r.Context(), f)
	if err != nil {
		h.writeError(w, err, "list gyms error")
		return
	}
	writeJSON(w, http.StatusOK, gyms)
}

// RegisterGym регистрирует академию текущего пользователя.
func (h *Handler) RegisterGym(w http.ResponseWriter, r *http.Request) {
	var in model.GymInput
	if err := decodeJSON(r, &in); err != nil {
		writeStatus(w, http.StatusBadRequest)
		return
	}

	g, err := h.service.RegisterGym(r.Context(), currentUser(r), in)
	if err != nil {
		h.writeError(w, err, "register gym error")
		return
	}
	writeJSON(w, http.StatusCreated, g)
}

// MyGym возвращает академию текущего пользователя.
func (h *Handler) MyGym(w http.ResponseWriter, r *http.Request) {
	g, err := h.service.MyGym(r.Context(), currentUser(r))
	if err != nil {
		h.writeError(w, err, "get own gym error")
		return
	}
	writeJSON(w, http.StatusOK, g)
}

// UpdateMyGym обновляет академию текущего пользователя.
func (h *Handler) UpdateMyGym(w http.ResponseWriter, r *http.Request) {
	var in model.GymInput
	if err := decodeJSON(r, &in); err != nil {
		writeStatus(w, http.StatusBadRequest)
		return
	}

	g, err := h.service.UpdateGym(r.Context(), currentUser(r), in)
	if err != nil {
		h.writeError(w, err, "update gym error")
		return
	}
	writeJSON(w, http.StatusOK, g)
}

// UploadGymImage принимает изображение из поля формы "image".
func (h *Handler) UploadGymImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, service.MaxImageSize+multipartOverhead)

	file, header, err := r.FormFile("image")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(w, service.ErrImageTooLarge, "upload image error")
			return
		}
		writeStatus(w, http.StatusBadRequest)
		return
	}
	defer file.Close()

	g, err := h.service.AddGymImage(r.Context(), currentUser(r), model.ImageUpload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	})
	if err != nil {
		h.writeError(w, err, "upload image error")
		return
	}
	writeJSON(w, http.StatusOK, g)
}

// GetGym возвращает академию с рейтингом и комментариями.
func (h *Handler) GetGym(w http.ResponseWriter, r *http.Request) {
	d, err := h.service.GetGymDetail(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err, "get gym error")
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// GetGymRating возвращает агрегированный рейтинг академии.
func (h *Handler) GetGymRating(w http.ResponseWriter, r *http.Request) {
	agg, err := h.service.GetGymRating(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err, "get gym rating error")
		return
	}
	writeJSON(w, http.StatusOK, agg)
}
