package database

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/user/papercex/backend/internal/models"
)

// MemoryStore is an in-process Store. Units of work are serialized and
// applied only when they succeed.
type MemoryStore struct {
	txMu sync.Mutex

	mu     sync.RWMutex
	users  map[uuid.UUID]*memUser
	orders map[uuid.UUID]*models.Order
	tokens map[uuid.UUID]*models.Token
	now    func() time.Time
}

type memUser struct {
	user   models.User
	wallet map[string]any
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:  make(map[uuid.UUID]*memUser),
		orders: make(map[uuid.UUID]*models.Order),
		tokens: make(map[uuid.UUID]*models.Token),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) Close() {}

func copyWallet(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func toAnyWallet(m map[string]float64) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *MemoryStore) CreateUser(_ context.Context, user *models.User, wallet map[string]float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if strings.EqualFold(u.user.Email, user.Email) || u.user.Username == user.Username {
			return ErrDuplicate
		}
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = s.now()
	}
	s.users[user.ID] = &memUser{user: *user, wallet: toAnyWallet(wallet)}
	return nil
}

func (s *MemoryStore) findUser(match func(*models.User) bool) *models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if match(&u.user) {
			cp := u.user
			return &cp
		}
	}
	return nil
}

func (s *MemoryStore) GetUserByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	return s.findUser(func(u *models.User) bool { return u.ID == id }), nil
}

func (s *MemoryStore) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	return s.findUser(func(u *models.User) bool { return strings.EqualFold(u.Email, email) }), nil
}

func (s *MemoryStore) GetUserByUsername(_ context.Context, username string) (*models.User, error) {
	return s.findUser(func(u *models.User) bool { return u.Username == username }), nil
}

func (s *MemoryStore) GetWallet(_ context.Context, userID uuid.UUID) (map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return copyWallet(u.wallet), nil
}

// SetWallet overwrites a raw wallet. Intended for seeding fixtures.
func (s *MemoryStore) SetWallet(userID uuid.UUID, wallet map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return ErrNotFound
	}
	u.wallet = copyWallet(wallet)
	return nil
}

func (s *MemoryStore) GetOrder(_ context.Context, id uuid.UUID) (*models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, nil
	}
	cp := *o
	return &cp, nil
}

func (s *MemoryStore) filterOrders(match func(*models.Order) bool, newestFirst bool) []*models.Order {
	s.mu.RLock()
	out := make([]*models.Order, 0)
	for _, o := range s.orders {
		if match(o) {
			cp := *o
			out = append(out, &cp)
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if newestFirst {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (s *MemoryStore) ListOrders(_ context.Context, userID uuid.UUID) ([]*models.Order, error) {
	return s.filterOrders(func(o *models.Order) bool { return o.UserID == userID }, true), nil
}

func (s *MemoryStore) PendingOrders(_ context.Context, userID uuid.UUID, symbol string) ([]*models.Order, error) {
	return s.filterOrders(func(o *models.Order) bool {
		return o.UserID == userID && o.Symbol == symbol && o.Status == models.StatusPending
	}, false), nil
}

func (s *MemoryStore) PendingBySymbol(_ context.Context, symbol string) ([]*models.Order, error) {
	return s.filterOrders(func(o *models.Order) bool {
		return o.Symbol == symbol && o.Status == models.StatusPending
	}, false), nil
}

func (s *MemoryStore) ListTokens(_ context.Context, enabledOnly bool) ([]*models.Token, error) {
	s.mu.RLock()
	out := make([]*models.Token, 0, len(s.tokens))
	for _, t := range s.tokens {
		if enabledOnly && !t.Enabled {
			continue
		}
		cp := *t
		out = append(out, &cp)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

func (s *MemoryStore) GetToken(_ context.Context, id uuid.UUID) (*models.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tokens[id]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (s *MemoryStore) CreateToken(_ context.Context, token *models.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tokens {
		if t.Symbol == token.Symbol {
			return ErrDuplicate
		}
	}
	if token.ID == uuid.Nil {
		token.ID = uuid.New()
	}
	if token.CreatedAt.IsZero() {
		token.CreatedAt = s.now()
	}
	if token.UpdatedAt.IsZero() {
		token.UpdatedAt = token.CreatedAt
	}
	cp := *token
	s.tokens[token.ID] = &cp
	return nil
}

func (s *MemoryStore) UpdateToken(_ context.Context, token *models.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[token.ID]
	if !ok {
		return ErrNotFound
	}
	if token.UpdatedAt.IsZero() {
		token.UpdatedAt = s.now()
	}
	t.Name = token.Name
	t.Enabled = token.Enabled
	t.UpdatedAt = token.UpdatedAt
	return nil
}

func (s *MemoryStore) DeleteToken(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tokens[id]; !ok {
		return ErrNotFound
	}
	delete(s.tokens, id)
	return nil
}

// InTx stages every write of fn and applies them only if fn succeeds.
func (s *MemoryStore) InTx(ctx context.Context, fn func(Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	tx := &memTx{
		store:    s,
		wallets:  make(map[uuid.UUID]map[string]any),
		orders:   make(map[uuid.UUID]*models.Order),
		statuses: make(map[uuid.UUID]models.OrderStatus),
	}
	if err := fn(tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

type memTx struct {
	store    *MemoryStore
	wallets  map[uuid.UUID]map[string]any
	orders   map[uuid.UUID]*models.Order // created in this unit of work
	statuses map[uuid.UUID]models.OrderStatus
}

func (t *memTx) LockWallet(_ context.Context, userID uuid.UUID) (map[string]any, error) {
	if w, ok := t.wallets[userID]; ok {
		return copyWallet(w), nil
	}
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	u, ok := t.store.users[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return copyWallet(u.wallet), nil
}

func (t *memTx) SaveWallet(_ context.Context, userID uuid.UUID, balances map[string]float64) error {
	t.store.mu.RLock()
	_, ok := t.store.users[userID]
	t.store.mu.RUnlock()
	if !ok {
		return fmt.Errorf("saving wallet for user %s: %w", userID, ErrNotFound)
	}
	t.wallets[userID] = toAnyWallet(balances)
	return nil
}

func (t *memTx) CreateOrder(_ context.Context, order *models.Order) error {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = t.store.now()
	}
	if order.UpdatedAt.IsZero() {
		order.UpdatedAt = order.CreatedAt
	}
	cp := *order
	t.orders[order.ID] = &cp
	return nil
}

func (t *memTx) current(id uuid.UUID) *models.Order {
	var o models.Order
	if staged, ok := t.orders[id]; ok {
		o = *staged
	} else {
		t.store.mu.RLock()
		stored, ok := t.store.orders[id]
		if ok {
			o = *stored
		}
		t.store.mu.RUnlock()
		if !ok {
			return nil
		}
	}
	if st, ok := t.statuses[id]; ok {
		o.Status = st
	}
	return &o
}

func (t *memTx) LockOrder(_ context.Context, id uuid.UUID) (*models.Order, error) {
	return t.current(id), nil
}

func (t *memTx) UpdateOrderStatus(_ context.Context, id uuid.UUID, from, to models.OrderStatus) error {
	o := t.current(id)
	if o == nil || o.Status != from {
		return fmt.Errorf("order %s is no longer %s: %w", id, from, ErrConflict)
	}
	t.statuses[id] = to
	return nil
}

func (t *memTx) commit() {
	s := t.store
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	for id, w := range t.wallets {
		if u, ok := s.users[id]; ok {
			u.wallet = w
		}
	}
	for id, o := range t.orders {
		s.orders[id] = o
	}
	for id, st := range t.statuses {
		if o, ok := s.orders[id]; ok {
			o.Status = st
			o.UpdatedAt = now
		}
	}
}
