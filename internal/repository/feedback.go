package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/fitfinder/internal/model"
)

const ratingColumns = `id, gym_id, user_id, user_name,
	space_rating, equipment_rating, value_rating, services_rating, water_rating,
	overall_rating, created_at`

// CreateRating сохраняет оценку академии.
func (r *PostgresRepository) CreateRating(ctx context.Context, s model.RatingSubmission) (*model.RatingSubmission, error) {
	if !isUUID(s.GymID) {
		return nil, ErrGymNotFound
	}
	if s.ID == "" {
		s.ID = uuid.NewString()
	}

	var out model.RatingSubmission
	err := r.withRetry(ctx, func() error {
		row := r.pool.QueryRow(ctx,
			`INSERT INTO gym_ratings (id, gym_id, user_id, user_name,
				space_rating, equipment_rating, value_rating, services_rating, water_rating, overall_rating)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			 RETURNING `+ratingColumns,
			s.ID, s.GymID, s.Author.UserID, s.Author.DisplayName,
			s.Categories.Space, s.Categories.Equipment, s.Categories.ValueForMoney,
			s.Categories.Services, s.Categories.Water, s.Overall,
		)
		return scanRating(row, &out)
	})
	if err != nil {
		if cerr := classifyError(err); cerr != err {
			return nil, cerr
		}
		return nil, fmt.Errorf("create rating: %w", err)
	}
	return &out, nil
}

// ListRatingsByGym возвращает все оценки академии.
func (r *PostgresRepository) ListRatingsByGym(ctx context.Context, gymID string) ([]model.RatingSubmission, error) {
	if !isUUID(gymID) {
		return []model.RatingSubmission{}, nil
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+ratingColumns+` FROM gym_ratings WHERE gym_id = $1 ORDER BY created_at`,
		gymID,
	)
	if err != nil {
		return nil, fmt.Errorf("list ratings: %w", err)
	}
	return collectRatings(rows)
}

// ListRatingsByGyms возвращает оценки нескольких академий, сгруппированные по академии.
func (r *PostgresRepository) ListRatingsByGyms(ctx context.Context, gymIDs []string) (map[string][]model.RatingSubmission, error) {
	out := make(map[string][]model.RatingSubmission, len(gymIDs))

	ids := make([]string, 0, len(gymIDs))
	for _, id := range gymIDs {
		if isUUID(id) {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+ratingColumns+` FROM gym_ratings WHERE gym_id = ANY($1::uuid[]) ORDER BY created_at`,
		ids,
	)
	if err != nil {
		return nil, fmt.Errorf("list ratings: %w", err)
	}

	list, err := collectRatings(rows)
	if err != nil {
		return nil, err
	}
	for _, s := range list {
		out[s.GymID] = append(out[s.GymID], s)
	}
	return out, nil
}

func scanRating(row pgx.Row, s *model.RatingSubmission) error {
	return row.Scan(
		&s.ID, &s.GymID, &s.Author.UserID, &s.Author.DisplayName,
		&s.Categories.Space, &s.Categories.Equipment, &s.Categories.ValueForMoney,
		&s.Categories.Services, &s.Categories.Water,
		&s.Overall, &s.CreatedAt,
	)
}

func collectRatings(rows pgx.Rows) ([]model.RatingSubmission, error) {
	defer rows.Close()

	list := make([]model.RatingSubmission, 0)
	for rows.Next() {
		var s model.RatingSubmission
		if err := scanRating(rows, &s); err != nil {
			return nil, fmt.Errorf("scan rating: %w", err)
		}
		list = append(list, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ratings: %w", err)
	}
	return list, nil
}

// CreateComment сохраняет комментарий к академии.
func (r *PostgresRepository) CreateComment(ctx context.Context, c model.Comment) (*model.Comment, error) {
	if !isUUID(c.GymID) {
		return nil, ErrGymNotFound
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}

	var out model.Comment
	err := r.withRetry(ctx, func() error {
		return r.pool.QueryRow(ctx,
			`INSERT INTO gym_comments (id, gym_id, user_id, user_name, comment)
			 VALUES ($1, $2, $3, $4, $5)
			 RETURNING id, gym_id, user_id, user_name, comment, created_at`,
			c.ID, c.GymID, c.Author.UserID, c.Author.DisplayName, c.Text,
		).Scan(&out.ID, &out.GymID, &out.Author.UserID, &out.Author.DisplayName, &out.Text, &out.CreatedAt)
	})
	if err != nil {
		if cerr := classifyError(err); cerr != err {
			return nil, cerr
		}
		return nil, fmt.Errorf("create comment: %w", err)
	}
	return &out, nil
}

// ListCommentsByGym возвращает комментарии академии, новые первыми.
func (r *PostgresRepository) ListCommentsByGym(ctx context.Context, gymID string) ([]model.Comment, error) {
	comments := make([]model.Comment, 0)
	if !isUUID(gymID) {
		return comments, nil
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, gym_id, user_id, user_name, comment, created_at
		 FROM gym_comments WHERE gym_id = $1 ORDER BY created_at DESC`,
		gymID,
	)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var c model.Comment
		if err := rows.Scan(&c.ID, &c.GymID, &c.Author.UserID, &c.Author.DisplayName, &c.Text, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		comments = append(comments, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate comments: %w", err)
	}
	return comments, nil
}
