package handler

import (
	"net/http"

	"go.uber.org/zap"
)

type credentialsRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

type profileRequest struct {
	Username  *string `json:"username"`
	AvatarURL *string `json:"avatarUrl"`
}

// Register обрабатывает регистрацию нового пользователя.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeStatus(w, http.StatusBadRequest)
		return
	}

	if req.Login == "" || req.Password == "" {
		writeStatus(w, http.StatusBadRequest)
		return
	}

	userID, err := h.service.RegisterUser(r.Context(), req.Login, req.Password)
	if err != nil {
		h.writeError(w, err, "register user error")
		return
	}

	h.authMiddleware.SetAuthCookie(w, userID)
	w.WriteHeader(http.StatusOK)
}

// Login выполняет аутентификацию пользователя и устанавливает cookie.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeStatus(w, http.StatusBadRequest)
		return
	}

	if req.Login == "" || req.Password == "" {
		writeStatus(w, http.StatusBadRequest)
		return
	}

	userID, err := h.service.AuthenticateUser(r.Context(), req.Login, req.Password)
	if err != nil {
		h.writeError(w, err, "login user error")
		return
	}

	h.authMiddleware.SetAuthCookie(w, userID)
	w.WriteHeader(http.StatusOK)
}

// Logout удаляет cookie авторизации.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.authMiddleware.ClearAuthCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

// GetProfile возвращает профиль текущего пользователя.
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.GetProfile(r.Context(), currentUser(r))
	if err != nil {
		h.writeError(w, err, "get profile error")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// UpdateProfile сохраняет имя и аватар текущего пользователя.
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := decodeJSON(r, &req); err != nil {
		writeStatus(w, http.StatusBadRequest)
		return
	}

	userID := currentUser(r)
	p, err := h.service.UpdateProfile(r.Context(), userID, req.Username, req.AvatarURL)
	if err != nil {
		h.writeError(w, err, "update profile error")
		return
	}

	h.logger.Debug("profile updated", zap.String("user_id", userID))
	writeJSON(w, http.StatusOK, p)
}
