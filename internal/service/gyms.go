package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/mmeshcher/fitfinder/internal/events"
	"github.com/mmeshcher/fitfinder/internal/locations"
	"github.com/mmeshcher/fitfinder/internal/model"
	"github.com/mmeshcher/fitfinder/internal/rating"
	"github.com/mmeshcher/fitfinder/internal/repository"
	"github.com/mmeshcher/fitfinder/internal/validation"
)

// MaxImageSize ограничивает размер одного изображения академии.
const MaxImageSize = 5 << 20

var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

// CNPJCheck — результат проверки CNPJ для формы регистрации.
type CNPJCheck struct {
	Valid     bool   `json:"valid"`
	Digits    string `json:"digits"`
	Formatted string `json:"formatted"`
}

// CheckCNPJ проверяет CNPJ и возвращает его цифры и форматированное представление.
func (s *Service) CheckCNPJ(raw string) CNPJCheck {
	return CNPJCheck{
		Valid:     validation.IsValidCNPJ(raw),
		Digits:    validation.NormalizeCNPJ(raw),
		Formatted: validation.FormatCNPJ(raw),
	}
}

func normalizeGymInput(in model.GymInput) model.GymInput {
	in.CNPJ = strings.TrimSpace(in.CNPJ)
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	in.ShortDescription = strings.TrimSpace(in.ShortDescription)
	in.State = strings.TrimSpace(in.State)
	in.City = strings.TrimSpace(in.City)
	in.Address = strings.TrimSpace(in.Address)
	in.Phone = strings.TrimSpace(in.Phone)
	in.Email = strings.TrimSpace(in.Email)
	in.Website = strings.TrimSpace(in.Website)
	in.Instagram = strings.TrimSpace(in.Instagram)
	in.OpeningHours = strings.TrimSpace(in.OpeningHours)

	amenities := make([]string, 0, len(in.Amenities))
	for _, a := range in.Amenities {
		if a = strings.TrimSpace(a); a != "" {
			amenities = append(amenities, a)
		}
	}
	in.Amenities = amenities

	if st, ok := locations.StateByName(in.State); ok {
		in.State = st.Name
	}
	if city, ok := locations.CityName(in.State, in.City); ok {
		in.City = city
	}
	return in
}

func (s *Service) validateGymInput(in model.GymInput) error {
	verr := &ValidationError{}
	if err := s.validateStruct(in); err != nil {
		if !errors.As(err, &verr) {
			return err
		}
	}

	if _, ok := verr.Fields["state"]; !ok && in.City != "" && !locations.IsKnownCity(in.State, in.City) {
		verr.add("city", "Selecione uma cidade")
	}

	if len(verr.Fields) > 0 {
		return verr
	}
	return nil
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func applyGymInput(g *model.Gym, in model.GymInput) {
	g.Name = in.Name
	g.Location = model.Location{State: in.State, City: in.City}
	g.Address = in.Address
	g.Description = in.Description
	g.ShortDescription = in.ShortDescription
	g.Phone = in.Phone
	g.Email = optional(in.Email)
	g.Website = optional(in.Website)
	g.Instagram = optional(in.Instagram)
	g.OpeningHours = in.OpeningHours
	g.Amenities = in.Amenities
	g.Pricing = in.Pricing
}

func setImages(g *model.Gym, images []string) {
	g.Images = images
	g.MainImage = nil
	if len(images) > 0 {
		main := images[0]
		g.MainImage = &main
	}
}

// RegisterGym регистрирует академию владельца. Новая академия получает статус pending,
// изображения добавляются отдельно через AddGymImage.
func (s *Service) RegisterGym(ctx context.Context, ownerID string, in model.GymInput) (*model.Gym, error) {
	in = normalizeGymInput(in)
	if err := s.validateGymInput(in); err != nil {
		return nil, err
	}

	g := model.Gym{
		OwnerID: ownerID,
		CNPJ:    validation.NormalizeCNPJ(in.CNPJ),
		Status:  model.GymStatusPending,
	}
	applyGymInput(&g, in)
	setImages(&g, []string{})

	created, err := s.repo.CreateGym(ctx, g)
	if err != nil {
		return nil, err
	}

	s.publishCreated(ctx, events.KindGymCreated, created.ID, created, model.GymSummary{Gym: *created})

	return created, nil
}

// UpdateGym обновляет академию владельца. CNPJ изменить нельзя, список изображений
// можно только переупорядочить или сократить. Главным становится первое изображение.
// Если Images равен nil, изображения не меняются. Если академия изменилась после
// чтения, возвращается repository.ErrGymModified.
func (s *Service) UpdateGym(ctx context.Context, ownerID string, in model.GymInput) (*model.Gym, error) {
	current, err := s.repo.GetGymByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	in = normalizeGymInput(in)
	if err := s.validateGymInput(in); err != nil {
		return nil, err
	}

	if validation.NormalizeCNPJ(in.CNPJ) != current.CNPJ {
		return nil, newValidationError("cnpj", "CNPJ não pode ser alterado")
	}

	g := *current
	applyGymInput(&g, in)

	if in.Images != nil {
		images, err := keepExistingImages(current.Images, in.Images)
		if err != nil {
			return nil, err
		}
		setImages(&g, images)
	}

	return s.repo.UpdateGym(ctx, g)
}

func keepExistingImages(current, requested []string) ([]string, error) {
	known := make(map[string]bool, len(current))
	for _, u := range current {
		known[u] = true
	}

	out := make([]string, 0, len(requested))
	seen := make(map[string]bool, len(requested))
	for _, u := range requested {
		if !known[u] {
			return nil, newValidationError("images", "imagem desconhecida")
		}
		if seen[u] {
			continue
		}
		seen[u] = true
		out = append(out, u)
	}
	return out, nil
}

// MyGym возвращает академию владельца.
func (s *Service) MyGym(ctx context.Context, ownerID string) (*model.Gym, error) {
	return s.repo.GetGymByOwner(ctx, ownerID)
}

// AddGymImage сохраняет изображение в хранилище и добавляет его в конец списка.
func (s *Service) AddGymImage(ctx context.Context, ownerID string, up model.ImageUpload) (*model.Gym, error) {
	if s.blobs == nil {
		return nil, ErrStorageUnavailable
	}

	g, err := s.repo.GetGymByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if len(g.Images) >= model.MaxGymImages {
		return nil, ErrTooManyImages
	}
	if up.Size > MaxImageSize {
		return nil, ErrImageTooLarge
	}

	data, err := io.ReadAll(io.LimitReader(up.Body, MaxImageSize+1))
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	if len(data) > MaxImageSize {
		return nil, ErrImageTooLarge
	}
	if len(data) == 0 {
		return nil, ErrUnsupportedImage
	}

	contentType := http.DetectContentType(data)
	ext, ok := imageExtensions[contentType]
	if !ok {
		return nil, ErrUnsupportedImage
	}

	url, err := s.blobs.Upload(ctx, "gyms/"+g.ID, "image"+ext, contentType, bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("upload image: %w", err)
	}

	updated, err := s.repo.AppendGymImage(ctx, ownerID, url)
	if err != nil {
		s.discardUpload(ctx, url)
		if errors.Is(err, repository.ErrGymImageLimit) {
			return nil, ErrTooManyImages
		}
		return nil, err
	}
	return updated, nil
}

// discardUpload удаляет загруженный объект, который не удалось привязать к академии.
func (s *Service) discardUpload(ctx context.Context, url string) {
	if err := s.blobs.Delete(context.WithoutCancel(ctx), url); err != nil {
		s.log.Warn("orphaned gym image", zap.String("url", url), zap.Error(err))
	}
}

// SearchGyms возвращает академии по фильтру с рейтингом, пересчитанным по всем оценкам.
func (s *Service) SearchGyms(ctx context.Context, f model.GymFilter) ([]model.GymSummary, error) {
	if st, ok := locations.StateByAbbr(f.State); ok {
		f.State = st.Name
	}
	if city, ok := locations.CityName(f.State, f.City); ok {
		f.City = city
	}

	gyms, err := s.repo.ListGyms(ctx, f)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(gyms))
	for _, g := range gyms {
		ids = append(ids, g.ID)
	}

	ratings, err := s.repo.ListRatingsByGyms(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]model.GymSummary, 0, len(gyms))
	for _, g := range gyms {
		out = append(out, summarize(g, ratings[g.ID]))
	}
	return out, nil
}

func summarize(g model.Gym, submissions []model.RatingSubmission) model.GymSummary {
	agg := rating.Aggregate(submissions)
	return model.GymSummary{Gym: g, Rating: agg, Reviews: agg.Count}
}

// GetGymDetail возвращает академию с рейтингом и комментариями.
func (s *Service) GetGymDetail(ctx context.Context, id string) (*model.GymDetail, error) {
	g, err := s.repo.GetGym(ctx, id)
	if err != nil {
		return nil, err
	}

	submissions, err := s.repo.ListRatingsByGym(ctx, id)
	if err != nil {
		return nil, err
	}

	comments, err := s.repo.ListCommentsByGym(ctx, id)
	if err != nil {
		return nil, err
	}

	return &model.GymDetail{
		GymSummary: summarize(*g, submissions),
		Comments:   comments,
	}, nil
}

// GetGymRating возвращает агрегированный рейтинг академии.
func (s *Service) GetGymRating(ctx context.Context, id string) (model.AggregateRating, error) {
	if _, err := s.repo.GetGym(ctx, id); err != nil {
		return model.AggregateRating{}, err
	}

	submissions, err := s.repo.ListRatingsByGym(ctx, id)
	if err != nil {
		return model.AggregateRating{}, err
	}
	return rating.Aggregate(submissions), nil
}
