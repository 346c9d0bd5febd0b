package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/user/papercex/backend/internal/models"
)

const tokenColumns = `id, symbol, name, enabled, created_at, updated_at`

func scanToken(row pgx.Row) (*models.Token, error) {
	t := &models.Token{}
	if err := row.Scan(&t.ID, &t.Symbol, &t.Name, &t.Enabled, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	return t, nil
}

// ListTokens returns the catalog ordered by symbol.
func (s *PostgresStore) ListTokens(ctx context.Context, enabledOnly bool) ([]*models.Token, error) {
	query := `SELECT ` + tokenColumns + ` FROM tokens`
	if enabledOnly {
		query += ` WHERE enabled`
	}
	query += ` ORDER BY symbol`
	return queryTokens(ctx, s.pool, query)
}

func queryTokens(ctx context.Context, q PgxQuerier, query string, args ...any) ([]*models.Token, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying tokens: %w", err)
	}
	defer rows.Close()

	tokens := make([]*models.Token, 0)
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning token row: %w", err)
		}
		tokens = append(tokens, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating token rows: %w", err)
	}
	return tokens, nil
}

// GetToken retrieves a catalog entry by id.
func (s *PostgresStore) GetToken(ctx context.Context, id uuid.UUID) (*models.Token, error) {
	t, err := scanToken(s.pool.QueryRow(ctx, `SELECT `+tokenColumns+` FROM tokens WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("error getting token %s: %w", id, err)
	}
	return t, nil
}

// CreateToken inserts a catalog entry; ErrDuplicate if the symbol exists.
func (s *PostgresStore) CreateToken(ctx context.Context, token *models.Token) error {
	if token.ID == uuid.Nil {
		token.ID = uuid.New()
	}
	now := time.Now().UTC()
	if token.CreatedAt.IsZero() {
		token.CreatedAt = now
	}
	if token.UpdatedAt.IsZero() {
		token.UpdatedAt = token.CreatedAt
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO tokens (`+tokenColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
		token.ID, token.Symbol, token.Name, token.Enabled, token.CreatedAt, token.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("error creating token %s: %w", token.Symbol, err)
	}
	return nil
}

// UpdateToken overwrites name and enabled flag; ErrNotFound if absent.
func (s *PostgresStore) UpdateToken(ctx context.Context, token *models.Token) error {
	if token.UpdatedAt.IsZero() {
		token.UpdatedAt = time.Now().UTC()
	}
	cmdTag, err := s.pool.Exec(ctx,
		`UPDATE tokens SET name = $1, enabled = $2, updated_at = $3 WHERE id = $4`,
		token.Name, token.Enabled, token.UpdatedAt, token.ID)
	if err != nil {
		return fmt.Errorf("error updating token %s: %w", token.ID, err)
	}
	if cmdTag.RowsAffected() != 1 {
		return ErrNotFound
	}
	return nil
}

// DeleteToken removes a catalog entry; ErrNotFound if absent.
func (s *PostgresStore) DeleteToken(ctx context.Context, id uuid.UUID) error {
	cmdTag, err := s.pool.Exec(ctx, `DELETE FROM tokens WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("error deleting token %s: %w", id, err)
	}
	if cmdTag.RowsAffected() != 1 {
		return ErrNotFound
	}
	return nil
}
