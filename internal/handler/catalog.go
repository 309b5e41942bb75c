package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mmeshcher/fitfinder/internal/locations"
)

type cnpjRequest struct {
	CNPJ string `json:"cnpj"`
}

// States возвращает список штатов.
func (h *Handler) States(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, locations.States())
}

// Cities возвращает города штата по аббревиатуре.
func (h *Handler) Cities(w http.ResponseWriter, r *http.Request) {
	st, ok := locations.StateByAbbr(chi.URLParam(r, "abbr"))
	if !ok {
		writeStatus(w, http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, locations.Cities(st.Abbr))
}

// ValidateCNPJ проверяет CNPJ без сохранения.
func (h *Handler) ValidateCNPJ(w http.ResponseWriter, r *http.Request) {
	var req cnpjRequest
	if err := decodeJSON(r, &req); err != nil {
		writeStatus(w, http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, h.service.CheckCNPJ(req.CNPJ))
}
