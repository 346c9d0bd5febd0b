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

const orderColumns = `id, user_id, side, kind, symbol, quantity, price, total, status, created_at, updated_at`

func scanOrder(row pgx.Row) (*models.Order, error) {
	order := &models.Order{}
	err := row.Scan(
		&order.ID, &order.UserID, &order.Side, &order.Kind, &order.Symbol,
		&order.Quantity, &order.Price, &order.Total, &order.Status,
		&order.CreatedAt, &order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return order, nil
}

// queryOrders fails the whole listing on the first row that does not scan,
// since pgx closes the result set on a scan error.
func queryOrders(ctx context.Context, q PgxQuerier, query string, args ...any) ([]*models.Order, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying orders: %w", err)
	}
	defer rows.Close()

	orders := make([]*models.Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning order row: %w", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating order rows: %w", err)
	}
	return orders, nil
}

// GetOrder retrieves a specific order by its ID.
func (s *PostgresStore) GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("error getting order by id %s: %w", id, err)
	}
	return order, nil
}

// ListOrders returns all of a user's orders, newest first.
func (s *PostgresStore) ListOrders(ctx context.Context, userID uuid.UUID) ([]*models.Order, error) {
	return queryOrders(ctx, s.pool,
		`SELECT `+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`, userID)
}

// PendingOrders returns a user's pending orders for one symbol, oldest first.
func (s *PostgresStore) PendingOrders(ctx context.Context, userID uuid.UUID, symbol string) ([]*models.Order, error) {
	return queryOrders(ctx, s.pool,
		`SELECT `+orderColumns+` FROM orders
		 WHERE user_id = $1 AND symbol = $2 AND status = 'PENDING'
		 ORDER BY created_at ASC`, userID, symbol)
}

// PendingBySymbol returns every pending order for symbol, oldest first.
func (s *PostgresStore) PendingBySymbol(ctx context.Context, symbol string) ([]*models.Order, error) {
	return queryOrders(ctx, s.pool,
		`SELECT `+orderColumns+` FROM orders
		 WHERE symbol = $1 AND status = 'PENDING'
		 ORDER BY created_at ASC`, symbol)
}

// CreateOrder inserts a new order. Balance checks and wallet updates are
// expected to happen in the same transaction.
func (t *pgTx) CreateOrder(ctx context.Context, order *models.Order) error {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now().UTC()
	}
	if order.UpdatedAt.IsZero() {
		order.UpdatedAt = order.CreatedAt
	}

	query := `INSERT INTO orders (` + orderColumns + `)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := t.tx.Exec(ctx, query,
		order.ID, order.UserID, order.Side, order.Kind, order.Symbol,
		order.Quantity, order.Price, order.Total, order.Status,
		order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("error creating order for user %s: %w", order.UserID, err)
	}
	return nil
}

// LockOrder selects the order FOR UPDATE.
func (t *pgTx) LockOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id)
	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("error locking order %s: %w", id, err)
	}
	return order, nil
}

// UpdateOrderStatus performs a conditional status transition.
func (t *pgTx) UpdateOrderStatus(ctx context.Context, id uuid.UUID, from, to models.OrderStatus) error {
	cmdTag, err := t.tx.Exec(ctx,
		`UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3`,
		to, id, from)
	if err != nil {
		return fmt.Errorf("error updating order %s status to %s: %w", id, to, err)
	}
	if cmdTag.RowsAffected() != 1 {
		return fmt.Errorf("order %s is no longer %s: %w", id, from, ErrConflict)
	}
	return nil
}
