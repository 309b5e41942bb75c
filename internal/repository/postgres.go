// Package repository содержит реализацию доступа к данным в PostgreSQL.
//
// Строки таблиц используют snake_case; преобразование в модели выполняется
// только в этом пакете.
package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/mmeshcher/fitfinder/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrUserExists возвращается при попытке создать пользователя с уже существующим логином.
var (
	ErrUserExists = errors.New("user already exists")
	// ErrUserNotFound возвращается, если пользователь не найден.
	ErrUserNotFound = errors.New("user not found")
	// ErrProfileNotFound возвращается, если профиль пользователя ещё не создан.
	ErrProfileNotFound = errors.New("profile not found")
	// ErrGymNotFound возвращается, если академия не найдена.
	ErrGymNotFound = errors.New("gym not found")
	// ErrGymAlreadyRegistered возвращается, если у владельца уже есть академия.
	ErrGymAlreadyRegistered = errors.New("owner already has a gym")
	// ErrCNPJTaken возвращается, если CNPJ уже использован другой академией.
	ErrCNPJTaken = errors.New("cnpj already registered")
	// ErrGymModified возвращается, если академия изменилась после чтения.
	ErrGymModified = errors.New("gym was modified concurrently")
	// ErrGymImageLimit возвращается, если у академии уже максимум изображений.
	ErrGymImageLimit = errors.New("gym image limit reached")
)

const (
	constraintUsersLogin = "users_login_key"
	constraintGymOwner   = "gyms_owner_id_key"
	constraintGymCNPJ    = "gyms_cnpj_key"
)

// PostgresRepository предоставляет доступ к хранилищу данных в PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{pool: pool}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

func (r *PostgresRepository) withRetry(ctx context.Context, fn func() error) error {
	var err error
	delays := []time.Duration{1 * time.Second, 3 * time.Second, 5 * time.Second}

	for i := 0; i <= len(delays); i++ {
		err = fn()
		if err == nil {
			return nil
		}

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		if !isRetryable(err) || i == len(delays) {
			break
		}

		timer := time.NewTimer(delays[i])
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return err
}

func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected
	}
	return isConnectionError(err)
}

func isConnectionError(err error) bool {
	// Упрощенная проверка на ошибки соединения
	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

// classifyError переводит ошибки ограничений PostgreSQL в ошибки репозитория.
func classifyError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Code {
	case pgerrcode.UniqueViolation:
		switch pgErr.ConstraintName {
		case constraintUsersLogin:
			return ErrUserExists
		case constraintGymOwner:
			return ErrGymAlreadyRegistered
		case constraintGymCNPJ:
			return ErrCNPJTaken
		}
	case pgerrcode.ForeignKeyViolation:
		if strings.HasPrefix(pgErr.ConstraintName, "gym_") {
			return ErrGymNotFound
		}
	}
	return err
}

func isUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// Ping проверяет доступность БД.
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// CreateUser создаёт нового пользователя и возвращает его идентификатор.
func (r *PostgresRepository) CreateUser(ctx context.Context, login string, passwordHash []byte) (string, error) {
	id := uuid.NewString()
	err := r.withRetry(ctx, func() error {
		_, err := r.pool.Exec(ctx,
			`INSERT INTO users (id, login, password_hash) VALUES ($1, $2, $3)`,
			id, login, passwordHash,
		)
		return err
	})
	if err != nil {
		if errors.Is(classifyError(err), ErrUserExists) {
			return "", fmt.Errorf("%w: %s", ErrUserExists, login)
		}
		return "", fmt.Errorf("create user: %w", err)
	}
	return id, nil
}

// GetUserByLogin возвращает пользователя по логину.
func (r *PostgresRepository) GetUserByLogin(ctx context.Context, login string) (*model.User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, login, password_hash, created_at FROM users WHERE login = $1`,
		login,
	)
	return scanUser(row)
}

// GetUserByID возвращает пользователя по идентификатору.
func (r *PostgresRepository) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	if !isUUID(id) {
		return nil, ErrUserNotFound
	}
	row := r.pool.QueryRow(ctx,
		`SELECT id, login, password_hash, created_at FROM users WHERE id = $1`,
		id,
	)
	return scanUser(row)
}

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Login, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

// GetProfile возвращает профиль пользователя.
func (r *PostgresRepository) GetProfile(ctx context.Context, userID string) (*model.Profile, error) {
	if !isUUID(userID) {
		return nil, ErrProfileNotFound
	}

	var p model.Profile
	err := r.pool.QueryRow(ctx,
		`SELECT id, username, avatar_url, updated_at FROM profiles WHERE id = $1`,
		userID,
	).Scan(&p.ID, &p.Username, &p.AvatarURL, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return &p, nil
}

// UpsertProfile создаёт или обновляет профиль пользователя.
func (r *PostgresRepository) UpsertProfile(ctx context.Context, p model.Profile) (*model.Profile, error) {
	var out model.Profile
	err := r.withRetry(ctx, func() error {
		return r.pool.QueryRow(ctx,
			`INSERT INTO profiles (id, username, avatar_url, updated_at)
			 VALUES ($1, $2, $3, now())
			 ON CONFLICT (id) DO UPDATE
			 SET username = EXCLUDED.username, avatar_url = EXCLUDED.avatar_url, updated_at = now()
			 RETURNING id, username, avatar_url, updated_at`,
			p.ID, p.Username, p.AvatarURL,
		).Scan(&out.ID, &out.Username, &out.AvatarURL, &out.UpdatedAt)
	})
	if err != nil {
		return nil, fmt.Errorf("upsert profile: %w", err)
	}
	return &out, nil
}
