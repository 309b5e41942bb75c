package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/mmeshcher/fitfinder/internal/events"
	"github.com/mmeshcher/fitfinder/internal/model"
	"github.com/mmeshcher/fitfinder/internal/rating"
)

// MaxCommentLength ограничивает длину комментария в символах.
const MaxCommentLength = 2000

func categoryErrors(c model.CategoryRating) *ValidationError {
	if rating.InRange(c) {
		return nil
	}

	verr := &ValidationError{}
	fields := []struct {
		name  string
		value float64
	}{
		{"space", c.Space},
		{"equipment", c.Equipment},
		{"valueForMoney", c.ValueForMoney},
		{"services", c.Services},
		{"water", c.Water},
	}
	for _, f := range fields {
		if !rating.InRange(model.CategoryRating{Space: f.value}) {
			verr.add(f.name, fmt.Sprintf("nota deve estar entre %.0f e %.0f", rating.MinScore, rating.MaxScore))
		}
	}
	return verr
}

// SubmitRating сохраняет оценку академии. Общая оценка вычисляется из пяти
// категорий и сохраняется вместе с ними.
func (s *Service) SubmitRating(ctx context.Context, gymID string, author model.Attribution, c model.CategoryRating) (*model.RatingSubmission, error) {
	if verr := categoryErrors(c); verr != nil {
		return nil, verr
	}

	g, err := s.repo.GetGym(ctx, gymID)
	if err != nil {
		return nil, err
	}

	saved, err := s.repo.CreateRating(ctx, model.RatingSubmission{
		GymID:      g.ID,
		Categories: c,
		Overall:    rating.ComputeOverall(c),
		Author:     author,
	})
	if err != nil {
		return nil, err
	}

	s.publishCreated(ctx, events.KindRatingCreated, saved.ID, g, saved)
	return saved, nil
}

// AddComment сохраняет комментарий к академии.
func (s *Service) AddComment(ctx context.Context, gymID string, author model.Attribution, text string) (*model.Comment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, newValidationError("comment", "Escreva um comentário")
	}
	if utf8.RuneCountInString(text) > MaxCommentLength {
		return nil, newValidationError("comment", fmt.Sprintf("máximo de %d caracteres", MaxCommentLength))
	}

	g, err := s.repo.GetGym(ctx, gymID)
	if err != nil {
		return nil, err
	}

	saved, err := s.repo.CreateComment(ctx, model.Comment{
		GymID:  g.ID,
		Author: author,
		Text:   text,
	})
	if err != nil {
		return nil, err
	}

	s.publishCreated(ctx, events.KindCommentCreated, saved.ID, g, saved)
	return saved, nil
}

// ListComments возвращает комментарии академии, новые первыми.
func (s *Service) ListComments(ctx context.Context, gymID string) ([]model.Comment, error) {
	if _, err := s.repo.GetGym(ctx, gymID); err != nil {
		return nil, err
	}
	return s.repo.ListCommentsByGym(ctx, gymID)
}

func (s *Service) publishCreated(ctx context.Context, kind events.Kind, entityID string, g *model.Gym, payload any) {
	ev, err := events.NewEvent(kind, entityID, g.ID, g.Location, payload)
	if err != nil {
		s.log.Warn("build event", zap.String("kind", string(kind)), zap.Error(err))
		return
	}
	s.publish(ctx, ev)
}
