package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Wallets live in users.wallet as a JSON object of symbol -> number. Values
// are decoded loosely; the wallet package decides which entries are usable.

func scanWallet(row pgx.Row, userID uuid.UUID) (map[string]any, error) {
	var raw []byte
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error reading wallet for user %s: %w", userID, err)
	}
	balances := make(map[string]any)
	if len(raw) == 0 {
		return balances, nil
	}
	if err := json.Unmarshal(raw, &balances); err != nil {
		return nil, fmt.Errorf("error decoding wallet for user %s: %w", userID, err)
	}
	return balances, nil
}

// GetWallet reads the wallet without taking a lock.
func (s *PostgresStore) GetWallet(ctx context.Context, userID uuid.UUID) (map[string]any, error) {
	row := s.pool.QueryRow(ctx, `SELECT wallet FROM users WHERE id = $1`, userID)
	return scanWallet(row, userID)
}

// LockWallet reads the wallet with FOR UPDATE so concurrent order placement,
// fulfillment and transfers for the same user are serialized.
func (t *pgTx) LockWallet(ctx context.Context, userID uuid.UUID) (map[string]any, error) {
	row := t.tx.QueryRow(ctx, `SELECT wallet FROM users WHERE id = $1 FOR UPDATE`, userID)
	return scanWallet(row, userID)
}

// SaveWallet overwrites the persisted wallet.
func (t *pgTx) SaveWallet(ctx context.Context, userID uuid.UUID, balances map[string]float64) error {
	raw, err := json.Marshal(balances)
	if err != nil {
		return fmt.Errorf("error encoding wallet for user %s: %w", userID, err)
	}
	cmdTag, err := t.tx.Exec(ctx, `UPDATE users SET wallet = $1 WHERE id = $2`, raw, userID)
	if err != nil {
		return fmt.Errorf("error saving wallet for user %s: %w", userID, err)
	}
	if cmdTag.RowsAffected() != 1 {
		return fmt.Errorf("saving wallet for user %s: %w", userID, ErrNotFound)
	}
	return nil
}
