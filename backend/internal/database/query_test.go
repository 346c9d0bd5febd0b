package database

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/papercex/backend/internal/models"
)

var errBadColumn = errors.New("cannot scan NULL into *string")

// fakeRows mimics pgx: a failed Scan closes the result set.
type fakeRows struct {
	rows   [][]any
	badRow int // index whose Scan fails, -1 for none
	next   int
	err    error
	closed bool
}

func (r *fakeRows) Close()                                       { r.closed = true }
func (r *fakeRows) Err() error                                   { return r.err }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) Values() ([]any, error)                       { return r.rows[r.next-1], nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	if r.closed || r.err != nil || r.next >= len(r.rows) {
		return false
	}
	r.next++
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	if r.next-1 == r.badRow {
		r.err = errBadColumn
		r.closed = true
		return r.err
	}
	for i, v := range r.rows[r.next-1] {
		reflect.ValueOf(dest[i]).Elem().Set(reflect.ValueOf(v))
	}
	return nil
}

type fakeQuerier struct {
	rows *fakeRows
}

func (q *fakeQuerier) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return q.rows, nil
}

func (q *fakeQuerier) QueryRow(context.Context, string, ...any) pgx.Row {
	return q.rows
}

func (q *fakeQuerier) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func orderRow(symbol string) []any {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return []any{
		uuid.New(), uuid.New(), models.SideBuy, models.KindLimit, symbol,
		0.1, 50000.0, 5000.0, models.StatusPending, now, now,
	}
}

func tokenRow(symbol string) []any {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return []any{uuid.New(), symbol, symbol + " coin", true, now, now}
}

func TestQueryOrdersScansEveryRow(t *testing.T) {
	rows := &fakeRows{rows: [][]any{orderRow("BTC"), orderRow("ETH")}, badRow: -1}
	orders, err := queryOrders(context.Background(), &fakeQuerier{rows: rows}, "SELECT")
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, "BTC", orders[0].Symbol)
	assert.Equal(t, models.StatusPending, orders[1].Status)
	assert.True(t, rows.closed)
}

func TestQueryOrdersFailsOnUnreadableRow(t *testing.T) {
	rows := &fakeRows{rows: [][]any{orderRow("BTC"), orderRow("ETH"), orderRow("SOL")}, badRow: 1}
	orders, err := queryOrders(context.Background(), &fakeQuerier{rows: rows}, "SELECT")
	assert.ErrorIs(t, err, errBadColumn)
	assert.Nil(t, orders)
	assert.True(t, rows.closed)
}

func TestQueryTokensFailsOnUnreadableRow(t *testing.T) {
	rows := &fakeRows{rows: [][]any{tokenRow("ADA"), tokenRow("XRP")}, badRow: 0}
	tokens, err := queryTokens(context.Background(), &fakeQuerier{rows: rows}, "SELECT")
	assert.ErrorIs(t, err, errBadColumn)
	assert.Nil(t, tokens)

	rows = &fakeRows{rows: [][]any{tokenRow("ADA"), tokenRow("XRP")}, badRow: -1}
	tokens, err = queryTokens(context.Background(), &fakeQuerier{rows: rows}, "SELECT")
	require.NoError(t, err)
	require.Len(t, tokens, 2)
	assert.Equal(t, "XRP", tokens[1].Symbol)
}
