// Package service реализует бизнес-логику каталога академий.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/mmeshcher/fitfinder/internal/events"
	"github.com/mmeshcher/fitfinder/internal/model"
	"github.com/mmeshcher/fitfinder/internal/repository"
)

var (
	// ErrInvalidCredentials возвращается при неверной паре логин/пароль.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrStorageUnavailable возвращается, если хранилище изображений не настроено.
	ErrStorageUnavailable = errors.New("image storage is not configured")
	ErrTooManyImages      = errors.New("gym already has the maximum number of images")
	ErrUnsupportedImage   = errors.New("unsupported image type")
	ErrImageTooLarge      = errors.New("image is too large")
)

const maxDisplayNameLength = 60

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error
	CreateUser(ctx context.Context, login string, passwordHash []byte) (string, error)
	GetUserByLogin(ctx context.Context, login string) (*model.User, error)
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetProfile(ctx context.Context, userID string) (*model.Profile, error)
	UpsertProfile(ctx context.Context, p model.Profile) (*model.Profile, error)
	CreateGym(ctx context.Context, g model.Gym) (*model.Gym, error)
	UpdateGym(ctx context.Context, g model.Gym) (*model.Gym, error)
	AppendGymImage(ctx context.Context, ownerID, url string) (*model.Gym, error)
	GetGym(ctx context.Context, id string) (*model.Gym, error)
	GetGymByOwner(ctx context.Context, ownerID string) (*model.Gym, error)
	ListGyms(ctx context.Context, f model.GymFilter) ([]model.Gym, error)
	CreateRating(ctx context.Context, s model.RatingSubmission) (*model.RatingSubmission, error)
	ListRatingsByGym(ctx context.Context, gymID string) ([]model.RatingSubmission, error)
	ListRatingsByGyms(ctx context.Context, gymIDs []string) (map[string][]model.RatingSubmission, error)
	CreateComment(ctx context.Context, c model.Comment) (*model.Comment, error)
	ListCommentsByGym(ctx context.Context, gymID string) ([]model.Comment, error)
}

// BlobStore сохраняет файлы и возвращает их публичные URL.
type BlobStore interface {
	Upload(ctx context.Context, folder, filename, contentType string, body io.Reader, size int64) (string, error)
	Delete(ctx context.Context, url string) error
}

// Publisher публикует события о созданных записях.
type Publisher interface {
	Publish(ctx context.Context, ev events.Event) error
}

// Service содержит бизнес-логику каталога академий.
type Service struct {
	repo     Repository
	blobs    BlobStore
	events   Publisher
	validate *validator.Validate
	log      *zap.Logger
}

// NewService создаёт сервис. blobs и pub могут быть nil: тогда загрузка
// изображений недоступна, а события не публикуются.
func NewService(repo Repository, blobs BlobStore, pub Publisher, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		repo:     repo,
		blobs:    blobs,
		events:   pub,
		validate: newValidator(),
		log:      log,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// RegisterUser регистрирует нового пользователя.
func (s *Service) RegisterUser(ctx context.Context, login, password string) (string, error) {
	creds := model.Credentials{Login: strings.TrimSpace(login), Password: password}
	if err := s.validateStruct(creds); err != nil {
		return "", err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(creds.Password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}

	id, err := s.repo.CreateUser(ctx, creds.Login, hashed)
	if err != nil {
		if errors.Is(err, repository.ErrUserExists) {
			return "", repository.ErrUserExists
		}
		return "", err
	}
	return id, nil
}

// AuthenticateUser проверяет логин и пароль пользователя и возвращает его идентификатор.
func (s *Service) AuthenticateUser(ctx context.Context, login, password string) (string, error) {
	u, err := s.repo.GetUserByLogin(ctx, strings.TrimSpace(login))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", err
	}

	if err := bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}

	return u.ID, nil
}

// GetProfile возвращает профиль пользователя. Если профиль ещё не заполнен,
// возвращается пустой профиль.
func (s *Service) GetProfile(ctx context.Context, userID string) (*model.Profile, error) {
	p, err := s.repo.GetProfile(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrProfileNotFound) {
			return &model.Profile{ID: userID}, nil
		}
		return nil, err
	}
	return p, nil
}

// UpdateProfile сохраняет имя и аватар пользователя. Пустые значения очищают поле.
func (s *Service) UpdateProfile(ctx context.Context, userID string, username, avatarURL *string) (*model.Profile, error) {
	p := model.Profile{
		ID:        userID,
		Username:  trimmedOrNil(username),
		AvatarURL: trimmedOrNil(avatarURL),
	}
	if p.Username != nil && utf8.RuneCountInString(*p.Username) > maxDisplayNameLength {
		return nil, newValidationError("username", fmt.Sprintf("máximo de %d caracteres", maxDisplayNameLength))
	}
	if p.AvatarURL != nil {
		if err := s.validate.Var(*p.AvatarURL, "url"); err != nil {
			return nil, newValidationError("avatarUrl", "URL inválida")
		}
	}
	return s.repo.UpsertProfile(ctx, p)
}

// ResolveAttribution определяет автора оценки или комментария. Для вошедшего
// пользователя используется имя из профиля или логин, displayName игнорируется.
// Анонимный автор обязан указать displayName.
func (s *Service) ResolveAttribution(ctx context.Context, userID, displayName string) (model.Attribution, error) {
	if userID == "" {
		name := strings.TrimSpace(displayName)
		if name == "" {
			return model.Attribution{}, newValidationError("userName", "Informe seu nome")
		}
		if utf8.RuneCountInString(name) > maxDisplayNameLength {
			return model.Attribution{}, newValidationError("userName", fmt.Sprintf("máximo de %d caracteres", maxDisplayNameLength))
		}
		return model.Attribution{DisplayName: name}, nil
	}

	p, err := s.repo.GetProfile(ctx, userID)
	switch {
	case err == nil && p.Username != nil && strings.TrimSpace(*p.Username) != "":
		return model.Attribution{UserID: &userID, DisplayName: strings.TrimSpace(*p.Username)}, nil
	case err != nil && !errors.Is(err, repository.ErrProfileNotFound):
		return model.Attribution{}, err
	}

	u, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return model.Attribution{}, err
	}
	return model.Attribution{UserID: &userID, DisplayName: u.Login}, nil
}

func (s *Service) publish(ctx context.Context, ev events.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, ev); err != nil {
		s.log.Warn("publish event",
			zap.String("kind", string(ev.Kind)),
			zap.String("entity_id", ev.EntityID),
			zap.Error(err),
		)
	}
}

func trimmedOrNil(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	if t == "" {
		return nil
	}
	return &t
}
