// Package handler содержит HTTP-обработчики API каталога академий.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/mmeshcher/fitfinder/internal/middleware"
	"github.com/mmeshcher/fitfinder/internal/model"
	"github.com/mmeshcher/fitfinder/internal/realtime"
	"github.com/mmeshcher/fitfinder/internal/repository"
	"github.com/mmeshcher/fitfinder/internal/service"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	RegisterUser(ctx context.Context, login, password string) (string, error)
	AuthenticateUser(ctx context.Context, login, password string) (string, error)
	GetProfile(ctx context.Context, userID string) (*model.Profile, error)
	UpdateProfile(ctx context.Context, userID string, username, avatarURL *string) (*model.Profile, error)
	ResolveAttribution(ctx context.Context, userID, displayName string) (model.Attribution, error)

	RegisterGym(ctx context.Context, ownerID string, in model.GymInput) (*model.Gym, error)
	UpdateGym(ctx context.Context, ownerID string, in model.GymInput) (*model.Gym, error)
	MyGym(ctx context.Context, ownerID string) (*model.Gym, error)
	AddGymImage(ctx context.Context, ownerID string, up model.ImageUpload) (*model.Gym, error)
	SearchGyms(ctx context.Context, f model.GymFilter) ([]model.GymSummary, error)
	GetGymDetail(ctx context.Context, id string) (*model.GymDetail, error)
	GetGymRating(ctx context.Context, id string) (model.AggregateRating, error)

	SubmitRating(ctx context.Context, gymID string, author model.Attribution, c model.CategoryRating) (*model.RatingSubmission, error)
	AddComment(ctx context.Context, gymID string, author model.Attribution, text string) (*model.Comment, error)
	ListComments(ctx context.Context, gymID string) ([]model.Comment, error)

	CheckCNPJ(raw string) service.CNPJCheck
}

// Feed подписывает WebSocket-клиентов на события каталога.
type Feed interface {
	Serve(w http.ResponseWriter, r *http.Request, f realtime.Filter) error
}

// Handler реализует HTTP-обработчики API каталога академий.
type Handler struct {
	service        Service
	feed           Feed
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
	allowedOrigins []string
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
// feed может быть nil, тогда WebSocket-маршруты отвечают 503.
func NewHandler(s Service, feed Feed, logger *zap.Logger, auth *middleware.AuthMiddleware, allowedOrigins []string) *Handler {
	return &Handler{
		service:        s,
		feed:           feed,
		logger:         logger,
		authMiddleware: auth,
		allowedOrigins: allowedOrigins,
	}
}

type errorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeStatus(w http.ResponseWriter, status int) {
	writeJSON(w, status, errorResponse{Error: http.StatusText(status)})
}

// writeError переводит ошибки сервиса и репозитория в HTTP-статусы.
// Непредвиденные ошибки логируются с сообщением op.
func (h *Handler) writeError(w http.ResponseWriter, err error, op string) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: "validation failed", Fields: verr.Fields})
	case errors.Is(err, service.ErrInvalidCredentials):
		writeStatus(w, http.StatusUnauthorized)
	case errors.Is(err, repository.ErrGymNotFound),
		errors.Is(err, repository.ErrUserNotFound):
		writeStatus(w, http.StatusNotFound)
	case errors.Is(err, repository.ErrUserExists),
		errors.Is(err, repository.ErrGymAlreadyRegistered),
		errors.Is(err, repository.ErrCNPJTaken),
		errors.Is(err, repository.ErrGymModified),
		errors.Is(err, service.ErrTooManyImages):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.Is(err, service.ErrImageTooLarge):
		writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: err.Error()})
	case errors.Is(err, service.ErrUnsupportedImage):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
	case errors.Is(err, service.ErrStorageUnavailable):
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
	default:
		h.logger.Error(op, zap.Error(err))
		writeStatus(w, http.StatusInternalServerError)
	}
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func currentUser(r *http.Request) string {
	id, _ := middleware.GetUserIDFromContext(r.Context())
	return id
}
