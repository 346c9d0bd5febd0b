package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/user/papercex/backend/internal/models"
)

// CreateUser inserts a new user together with its starting wallet.
func (s *PostgresStore) CreateUser(ctx context.Context, user *models.User, wallet map[string]float64) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	raw, err := json.Marshal(wallet)
	if err != nil {
		return fmt.Errorf("encode wallet for %s: %w", user.Username, err)
	}

	query := `INSERT INTO users (id, email, username, password_hash, wallet, created_at)
			  VALUES ($1, $2, $3, $4, $5, $6)`

	_, err = s.pool.Exec(ctx, query, user.ID, user.Email, user.Username, user.Password, raw, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("error creating user %s: %w", user.Username, err)
	}
	return nil
}

const userColumns = `id, email, username, password_hash, created_at`

func (s *PostgresStore) getUser(ctx context.Context, where string, arg any) (*models.User, error) {
	user := &models.User{}
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + where

	err := s.pool.QueryRow(ctx, query, arg).
		Scan(&user.ID, &user.Email, &user.Username, &user.Password, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

// GetUserByID retrieves a user by their ID.
func (s *PostgresStore) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return s.getUser(ctx, `id = $1`, id)
}

// GetUserByEmail matches email case-insensitively.
func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getUser(ctx, `lower(email) = lower($1)`, email)
}

// GetUserByUsername retrieves a user by their username.
func (s *PostgresStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.getUser(ctx, `username = $1`, username)
}
