package repository

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/fitfinder/internal/model"
)

const (
	defaultGymLimit = 50
	maxGymLimit     = 100
)

const gymColumns = `id, owner_id, cnpj, name, state, city, address, description, short_description,
	phone, email, website, instagram, opening_hours, amenities,
	daily_price_cents, monthly_price_cents, quarterly_price_cents, yearly_price_cents,
	images, main_image, status, created_at, updated_at`

// gymRow повторяет строку таблицы gyms.
type gymRow struct {
	ID                  string
	OwnerID             string
	CNPJ                string
	Name                string
	State               string
	City                string
	Address             string
	Description         string
	ShortDescription    string
	Phone               string
	Email               *string
	Website             *string
	Instagram           *string
	OpeningHours        string
	Amenities           []string
	DailyPriceCents     int64
	MonthlyPriceCents   int64
	QuarterlyPriceCents int64
	YearlyPriceCents    int64
	Images              []string
	MainImage           *string
	Status              string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

func (r *gymRow) scanTargets() []any {
	return []any{
		&r.ID, &r.OwnerID, &r.CNPJ, &r.Name, &r.State, &r.City, &r.Address, &r.Description, &r.ShortDescription,
		&r.Phone, &r.Email, &r.Website, &r.Instagram, &r.OpeningHours, &r.Amenities,
		&r.DailyPriceCents, &r.MonthlyPriceCents, &r.QuarterlyPriceCents, &r.YearlyPriceCents,
		&r.Images, &r.MainImage, &r.Status, &r.CreatedAt, &r.UpdatedAt,
	}
}

func (r gymRow) toModel() model.Gym {
	images := r.Images
	if images == nil {
		images = []string{}
	}
	amenities := r.Amenities
	if amenities == nil {
		amenities = []string{}
	}

	return model.Gym{
		ID:               r.ID,
		OwnerID:          r.OwnerID,
		CNPJ:             r.CNPJ,
		Name:             r.Name,
		Location:         model.Location{State: r.State, City: r.City},
		Address:          r.Address,
		Description:      r.Description,
		ShortDescription: r.ShortDescription,
		Phone:            r.Phone,
		Email:            r.Email,
		Website:          r.Website,
		Instagram:        r.Instagram,
		OpeningHours:     r.OpeningHours,
		Amenities:        amenities,
		Pricing: model.Pricing{
			Daily:     fromCents(r.DailyPriceCents),
			Monthly:   fromCents(r.MonthlyPriceCents),
			Quarterly: fromCents(r.QuarterlyPriceCents),
			Yearly:    fromCents(r.YearlyPriceCents),
		},
		Images:    images,
		MainImage: r.MainImage,
		Status:    model.GymStatus(r.Status),
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func gymRowFromModel(g model.Gym) gymRow {
	images := g.Images
	if images == nil {
		images = []string{}
	}
	amenities := g.Amenities
	if amenities == nil {
		amenities = []string{}
	}
	status := string(g.Status)
	if status == "" {
		status = string(model.GymStatusPending)
	}

	return gymRow{
		ID:                  g.ID,
		OwnerID:             g.OwnerID,
		CNPJ:                g.CNPJ,
		Name:                g.Name,
		State:               g.Location.State,
		City:                g.Location.City,
		Address:             g.Address,
		Description:         g.Description,
		ShortDescription:    g.ShortDescription,
		Phone:               g.Phone,
		Email:               g.Email,
		Website:             g.Website,
		Instagram:           g.Instagram,
		OpeningHours:        g.OpeningHours,
		Amenities:           amenities,
		DailyPriceCents:     toCents(g.Pricing.Daily),
		MonthlyPriceCents:   toCents(g.Pricing.Monthly),
		QuarterlyPriceCents: toCents(g.Pricing.Quarterly),
		YearlyPriceCents:    toCents(g.Pricing.Yearly),
		Images:              images,
		MainImage:           g.MainImage,
		Status:              status,
	}
}

func toCents(v float64) int64 {
	return int64(math.Round(v * 100))
}

func fromCents(c int64) float64 {
	return float64(c) / 100
}

// CreateGym сохраняет новую академию. Идентификатор генерируется, если не задан.
func (r *PostgresRepository) CreateGym(ctx context.Context, g model.Gym) (*model.Gym, error) {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	row := gymRowFromModel(g)

	var out gymRow
	err := r.withRetry(ctx, func() error {
		return r.pool.QueryRow(ctx,
			`INSERT INTO gyms (id, owner_id, cnpj, name, state, city, address, description, short_description,
				phone, email, website, instagram, opening_hours, amenities,
				daily_price_cents, monthly_price_cents, quarterly_price_cents, yearly_price_cents,
				images, main_image, status)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
				$16, $17, $18, $19, $20, $21, $22)
			 RETURNING `+gymColumns,
			row.ID, row.OwnerID, row.CNPJ, row.Name, row.State, row.City, row.Address, row.Description, row.ShortDescription,
			row.Phone, row.Email, row.Website, row.Instagram, row.OpeningHours, row.Amenities,
			row.DailyPriceCents, row.MonthlyPriceCents, row.QuarterlyPriceCents, row.YearlyPriceCents,
			row.Images, row.MainImage, row.Status,
		).Scan(out.scanTargets()...)
	})
	if err != nil {
		if cerr := classifyError(err); cerr != err {
			return nil, cerr
		}
		return nil, fmt.Errorf("create gym: %w", err)
	}

	gym := out.toModel()
	return &gym, nil
}

// UpdateGym обновляет редактируемые поля академии. CNPJ, владелец и статус не меняются.
// Запись обновляется, только если updated_at совпадает с g.UpdatedAt, иначе возвращается ErrGymModified.
func (r *PostgresRepository) UpdateGym(ctx context.Context, g model.Gym) (*model.Gym, error) {
	if !isUUID(g.ID) {
		return nil, ErrGymNotFound
	}
	row := gymRowFromModel(g)

	var out gymRow
	err := r.withRetry(ctx, func() error {
		return r.pool.QueryRow(ctx,
			`UPDATE gyms SET
				name = $2, state = $3, city = $4, address = $5, description = $6, short_description = $7,
				phone = $8, email = $9, website = $10, instagram = $11, opening_hours = $12, amenities = $13,
				daily_price_cents = $14, monthly_price_cents = $15, quarterly_price_cents = $16, yearly_price_cents = $17,
				images = $18, main_image = $19, updated_at = now()
			 WHERE id = $1 AND updated_at = $20
			 RETURNING `+gymColumns,
			row.ID, row.Name, row.State, row.City, row.Address, row.Description, row.ShortDescription,
			row.Phone, row.Email, row.Website, row.Instagram, row.OpeningHours, row.Amenities,
			row.DailyPriceCents, row.MonthlyPriceCents, row.QuarterlyPriceCents, row.YearlyPriceCents,
			row.Images, row.MainImage, g.UpdatedAt,
		).Scan(out.scanTargets()...)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			if _, gerr := r.GetGym(ctx, g.ID); gerr != nil {
				return nil, gerr
			}
			return nil, ErrGymModified
		}
		return nil, fmt.Errorf("update gym: %w", err)
	}

	gym := out.toModel()
	return &gym, nil
}

// AppendGymImage добавляет изображение в конец списка академии владельца одним запросом.
// Первое изображение становится главным. При заполненном списке возвращается ErrGymImageLimit.
func (r *PostgresRepository) AppendGymImage(ctx context.Context, ownerID, url string) (*model.Gym, error) {
	if !isUUID(ownerID) {
		return nil, ErrGymNotFound
	}

	var out gymRow
	err := r.withRetry(ctx, func() error {
		return r.pool.QueryRow(ctx,
			`UPDATE gyms SET
				images = array_append(images, $2::text),
				main_image = COALESCE(main_image, $2::text),
				updated_at = now()
			 WHERE owner_id = $1 AND cardinality(images) < $3
			 RETURNING `+gymColumns,
			ownerID, url, model.MaxGymImages,
		).Scan(out.scanTargets()...)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			if _, gerr := r.GetGymByOwner(ctx, ownerID); gerr != nil {
				return nil, gerr
			}
			return nil, ErrGymImageLimit
		}
		return nil, fmt.Errorf("append gym image: %w", err)
	}

	gym := out.toModel()
	return &gym, nil
}

// GetGym возвращает академию по идентификатору.
func (r *PostgresRepository) GetGym(ctx context.Context, id string) (*model.Gym, error) {
	if !isUUID(id) {
		return nil, ErrGymNotFound
	}
	return r.getGym(ctx, `SELECT `+gymColumns+` FROM gyms WHERE id = $1`, id)
}

// GetGymByOwner возвращает академию владельца.
func (r *PostgresRepository) GetGymByOwner(ctx context.Context, ownerID string) (*model.Gym, error) {
	if !isUUID(ownerID) {
		return nil, ErrGymNotFound
	}
	return r.getGym(ctx, `SELECT `+gymColumns+` FROM gyms WHERE owner_id = $1`, ownerID)
}

func (r *PostgresRepository) getGym(ctx context.Context, query string, arg string) (*model.Gym, error) {
	var row gymRow
	if err := r.pool.QueryRow(ctx, query, arg).Scan(row.scanTargets()...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrGymNotFound
		}
		return nil, fmt.Errorf("get gym: %w", err)
	}
	gym := row.toModel()
	return &gym, nil
}

// ListGyms возвращает академии по фильтру, новые первыми.
// Штат и город сравниваются без учёта регистра.
func (r *PostgresRepository) ListGyms(ctx context.Context, f model.GymFilter) ([]model.Gym, error) {
	var (
		conds []string
		args  []any
	)
	if s := strings.TrimSpace(f.State); s != "" {
		args = append(args, s)
		conds = append(conds, fmt.Sprintf("lower(state) = lower($%d)", len(args)))
	}
	if c := strings.TrimSpace(f.City); c != "" {
		args = append(args, c)
		conds = append(conds, fmt.Sprintf("lower(city) = lower($%d)", len(args)))
	}

	limit := f.Limit
	if limit <= 0 {
		limit = defaultGymLimit
	}
	if limit > maxGymLimit {
		limit = maxGymLimit
	}

	query := `SELECT ` + gymColumns + ` FROM gyms`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	args = append(args, limit)
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list gyms: %w", err)
	}
	defer rows.Close()

	gyms := make([]model.Gym, 0)
	for rows.Next() {
		var row gymRow
		if err := rows.Scan(row.scanTargets()...); err != nil {
			return nil, fmt.Errorf("scan gym: %w", err)
		}
		gyms = append(gyms, row.toModel())
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate gyms: %w", err)
	}

	return gyms, nil
}
