package database

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/user/papercex/backend/internal/models"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("record already exists")
	// ErrConflict means a conditional update matched no row.
	ErrConflict = errors.New("record changed concurrently")
)

// Store is the persistence collaborator for users, wallets, orders and the
// token catalog. Single-record getters return nil, nil when nothing matches.
type Store interface {
	CreateUser(ctx context.Context, user *models.User, wallet map[string]float64) error
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	// GetWallet returns the raw persisted balance map without locking.
	GetWallet(ctx context.Context, userID uuid.UUID) (map[string]any, error)

	GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
	// ListOrders returns every order of the user, newest first.
	ListOrders(ctx context.Context, userID uuid.UUID) ([]*models.Order, error)
	// PendingOrders returns the user's PENDING orders for symbol, oldest first.
	PendingOrders(ctx context.Context, userID uuid.UUID, symbol string) ([]*models.Order, error)
	// PendingBySymbol returns every user's PENDING orders for symbol.
	PendingBySymbol(ctx context.Context, symbol string) ([]*models.Order, error)

	ListTokens(ctx context.Context, enabledOnly bool) ([]*models.Token, error)
	GetToken(ctx context.Context, id uuid.UUID) (*models.Token, error)
	CreateToken(ctx context.Context, token *models.Token) error
	UpdateToken(ctx context.Context, token *models.Token) error
	DeleteToken(ctx context.Context, id uuid.UUID) error

	// InTx runs fn as one unit of work. Nothing fn wrote is visible if it
	// returns an error.
	InTx(ctx context.Context, fn func(Tx) error) error
	Close()
}

// Tx is the write side of a unit of work. Locks taken through it are held
// until the unit of work ends.
type Tx interface {
	// LockWallet reads and locks the user's wallet. ErrNotFound if no user.
	LockWallet(ctx context.Context, userID uuid.UUID) (map[string]any, error)
	SaveWallet(ctx context.Context, userID uuid.UUID, balances map[string]float64) error
	CreateOrder(ctx context.Context, order *models.Order) error
	// LockOrder reads and locks an order, nil if it does not exist.
	LockOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
	// UpdateOrderStatus moves the order from -> to, ErrConflict if it is not
	// currently in from.
	UpdateOrderStatus(ctx context.Context, id uuid.UUID, from, to models.OrderStatus) error
}
