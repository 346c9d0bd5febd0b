package database

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/user/papercex/backend/internal/config"
	"github.com/user/papercex/backend/internal/models"
)

// TEST_DATABASE_URL points the contract tests at a disposable Postgres.
func postgresStore(t *testing.T) Store {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	logger := zap.NewNop()

	require.NoError(t, Migrate(ctx, dsn, logger))
	pool, err := Connect(ctx, config.Database{DSN: dsn, ConnectTimeout: 5 * time.Second}, logger)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, `TRUNCATE orders, tokens, users`)
	require.NoError(t, err)

	s := NewPostgresStore(pool, logger)
	t.Cleanup(s.Close)
	return s
}

func TestMemoryStore(t *testing.T) {
	runStoreContract(t, func(t *testing.T) Store { return NewMemoryStore() })
}

func TestPostgresStore(t *testing.T) {
	runStoreContract(t, postgresStore)
}

func runStoreContract(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("users", func(t *testing.T) { testUsers(t, newStore(t)) })
	t.Run("orders", func(t *testing.T) { testOrders(t, newStore(t)) })
	t.Run("rollback", func(t *testing.T) { testRollback(t, newStore(t)) })
	t.Run("status transitions", func(t *testing.T) { testStatusTransitions(t, newStore(t)) })
	t.Run("tokens", func(t *testing.T) { testTokens(t, newStore(t)) })
}

func mustUser(t *testing.T, s Store, name string) *models.User {
	t.Helper()
	u := &models.User{Email: name + "@example.com", Username: name, Password: "hash"}
	require.NoError(t, s.CreateUser(context.Background(), u, map[string]float64{"USDT": 10000, "BTC": 0}))
	return u
}

func testUsers(t *testing.T, s Store) {
	ctx := context.Background()
	alice := mustUser(t, s, "alice")
	require.NotEqual(t, uuid.Nil, alice.ID)

	dup := &models.User{Email: "ALICE@example.com", Username: "other", Password: "x"}
	assert.ErrorIs(t, s.CreateUser(ctx, dup, nil), ErrDuplicate)

	got, err := s.GetUserByEmail(ctx, "Alice@Example.com")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, alice.ID, got.ID)

	got, err = s.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "hash", got.Password)

	got, err = s.GetUserByID(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, got)

	w, err := s.GetWallet(ctx, alice.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 10000, w["USDT"])

	_, err = s.GetWallet(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func newOrder(userID uuid.UUID, symbol string, status models.OrderStatus, at time.Time) *models.Order {
	return &models.Order{
		UserID:    userID,
		Side:      models.SideBuy,
		Kind:      models.KindLimit,
		Symbol:    symbol,
		Quantity:  1,
		Price:     100,
		Total:     100,
		Status:    status,
		CreatedAt: at,
		UpdatedAt: at,
	}
}

func testOrders(t *testing.T, s Store) {
	ctx := context.Background()
	alice := mustUser(t, s, "alice")
	bob := mustUser(t, s, "bob")
	base := time.Now().UTC().Truncate(time.Millisecond)

	first := newOrder(alice.ID, "BTC", models.StatusPending, base)
	second := newOrder(alice.ID, "BTC", models.StatusCompleted, base.Add(time.Second))
	third := newOrder(alice.ID, "BTC", models.StatusPending, base.Add(2*time.Second))
	other := newOrder(bob.ID, "BTC", models.StatusPending, base.Add(3*time.Second))
	eth := newOrder(alice.ID, "ETH", models.StatusPending, base.Add(4*time.Second))

	require.NoError(t, s.InTx(ctx, func(tx Tx) error {
		for _, o := range []*models.Order{first, second, third, other, eth} {
			if err := tx.CreateOrder(ctx, o); err != nil {
				return err
			}
		}
		return nil
	}))

	all, err := s.ListOrders(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, eth.ID, all[0].ID, "newest first")
	assert.Equal(t, first.ID, all[3].ID)

	pending, err := s.PendingOrders(ctx, alice.ID, "BTC")
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, first.ID, pending[0].ID, "oldest first")
	assert.Equal(t, third.ID, pending[1].ID)

	book, err := s.PendingBySymbol(ctx, "BTC")
	require.NoError(t, err)
	assert.Len(t, book, 3)

	got, err := s.GetOrder(ctx, second.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, models.StatusCompleted, got.Status)

	got, err = s.GetOrder(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func testRollback(t *testing.T, s Store) {
	ctx := context.Background()
	alice := mustUser(t, s, "alice")
	boom := errors.New("boom")

	order := newOrder(alice.ID, "BTC", models.StatusPending, time.Now().UTC())
	err := s.InTx(ctx, func(tx Tx) error {
		if _, err := tx.LockWallet(ctx, alice.ID); err != nil {
			return err
		}
		if err := tx.SaveWallet(ctx, alice.ID, map[string]float64{"USDT": 1}); err != nil {
			return err
		}
		if err := tx.CreateOrder(ctx, order); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	w, err := s.GetWallet(ctx, alice.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 10000, w["USDT"])

	got, err := s.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	err = s.InTx(ctx, func(tx Tx) error {
		_, err := tx.LockWallet(ctx, uuid.New())
		return err
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

func testStatusTransitions(t *testing.T, s Store) {
	ctx := context.Background()
	alice := mustUser(t, s, "alice")
	order := newOrder(alice.ID, "BTC", models.StatusPending, time.Now().UTC())

	require.NoError(t, s.InTx(ctx, func(tx Tx) error { return tx.CreateOrder(ctx, order) }))

	require.NoError(t, s.InTx(ctx, func(tx Tx) error {
		locked, err := tx.LockOrder(ctx, order.ID)
		if err != nil {
			return err
		}
		require.NotNil(t, locked)
		assert.Equal(t, models.StatusPending, locked.Status)
		return tx.UpdateOrderStatus(ctx, order.ID, models.StatusPending, models.StatusCancelled)
	}))

	err := s.InTx(ctx, func(tx Tx) error {
		return tx.UpdateOrderStatus(ctx, order.ID, models.StatusPending, models.StatusCompleted)
	})
	assert.ErrorIs(t, err, ErrConflict)

	got, err := s.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, got.Status)
}

func testTokens(t *testing.T, s Store) {
	ctx := context.Background()

	btc := &models.Token{Symbol: "BTC", Name: "Bitcoin", Enabled: true}
	doge := &models.Token{Symbol: "DOGE", Name: "Dogecoin", Enabled: false}
	require.NoError(t, s.CreateToken(ctx, btc))
	require.NoError(t, s.CreateToken(ctx, doge))
	assert.ErrorIs(t, s.CreateToken(ctx, &models.Token{Symbol: "BTC", Name: "again"}), ErrDuplicate)

	all, err := s.ListTokens(ctx, false)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "BTC", all[0].Symbol)

	enabled, err := s.ListTokens(ctx, true)
	require.NoError(t, err)
	require.Len(t, enabled, 1)

	doge.Enabled = true
	doge.Name = "Doge"
	doge.UpdatedAt = time.Time{}
	require.NoError(t, s.UpdateToken(ctx, doge))
	got, err := s.GetToken(ctx, doge.ID)
	require.NoError(t, err)
	assert.True(t, got.Enabled)
	assert.Equal(t, "Doge", got.Name)

	require.NoError(t, s.DeleteToken(ctx, btc.ID))
	assert.ErrorIs(t, s.DeleteToken(ctx, btc.ID), ErrNotFound)
	assert.ErrorIs(t, s.UpdateToken(ctx, &models.Token{ID: uuid.New()}), ErrNotFound)

	got, err = s.GetToken(ctx, btc.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}
