// Package postgres implements the user datastore on PostgreSQL via pgx.
// Schema changes ship as embedded goose migrations (see migrations/).
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/literati-app/auth-service/internal/models"
	"github.com/literati-app/auth-service/internal/store"
)

// Store is a pgx-backed user datastore.
type Store struct {
	db *pgxpool.Pool
}

// New connects to PostgreSQL and verifies the connection with a ping.
func New(ctx context.Context, dbURL string) (*Store, error) {
	config, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}

	db, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.db.Close()
}

// Ping reports database reachability, used by the readiness probe.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

var _ store.UserStore = (*Store)(nil)

const userColumns = "id, email, password_hash, active, token_version, created_at"

func (s *Store) UserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return s.scanUser(s.db.QueryRow(ctx, query, id))
}

func (s *Store) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE lower(email) = lower($1)`
	return s.scanUser(s.db.QueryRow(ctx, query, email))
}

func (s *Store) CreateUser(ctx context.Context, email, passwordHash string) (*models.User, error) {
	query := `
		INSERT INTO users (id, email, password_hash)
		VALUES ($1, lower($2), $3)
		RETURNING ` + userColumns

	user, err := s.scanUser(s.db.QueryRow(ctx, query, uuid.New(), email, passwordHash))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return nil, store.ErrAlreadyExists
		}
		return nil, err
	}
	return user, nil
}

func (s *Store) BumpTokenVersion(ctx context.Context, id uuid.UUID) (int, error) {
	query := `
		UPDATE users
		SET token_version = token_version + 1
		WHERE id = $1
		RETURNING token_version`

	var version int
	if err := s.db.QueryRow(ctx, query, id).Scan(&version); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, store.ErrNotFound
		}
		return 0, fmt.Errorf("bump token version: %w", err)
	}
	return version, nil
}

func (s *Store) scanUser(row pgx.Row) (*models.User, error) {
	var user models.User
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.Active,
		&user.TokenVersion,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &user, nil
}
