package trading

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/user/papercex/backend/internal/database"
	"github.com/user/papercex/backend/internal/models"
	"github.com/user/papercex/backend/internal/wallet"
)

// PlaceOrderRequest is a validated-on-entry trade intent.
type PlaceOrderRequest struct {
	UserID     uuid.UUID
	Side       models.Side
	Kind       models.OrderKind
	Symbol     string
	Quantity   float64
	LimitPrice float64 // LIMIT only
}

// LimitSatisfied reports whether a limit order at limit fills at market.
// The same comparison applies to both sides: a BUY limit also fills when
// the market is at or above the limit.
func LimitSatisfied(market, limit float64) bool {
	return market >= limit
}

func orderTotal(price, quantity float64) decimal.Decimal {
	return decimal.NewFromFloat(price).Mul(decimal.NewFromFloat(quantity))
}

func (r *PlaceOrderRequest) normalize(marketPrice float64) (price float64, err error) {
	r.Symbol = wallet.Canonical(r.Symbol)
	switch {
	case r.Symbol == "":
		return 0, fmt.Errorf("%w: symbol is required", ErrInvalidOrder)
	case r.Symbol == wallet.Quote:
		return 0, fmt.Errorf("%w: cannot trade %s against itself", ErrInvalidOrder, wallet.Quote)
	case r.Side != models.SideBuy && r.Side != models.SideSell:
		return 0, fmt.Errorf("%w: side must be BUY or SELL", ErrInvalidOrder)
	case r.Quantity <= 0:
		return 0, fmt.Errorf("%w: quantity must be positive", ErrInvalidOrder)
	case marketPrice <= 0:
		return 0, fmt.Errorf("%w: market price unavailable", ErrInvalidOrder)
	}

	switch r.Kind {
	case models.KindMarket:
		return marketPrice, nil
	case models.KindLimit:
		if r.LimitPrice <= 0 {
			return 0, fmt.Errorf("%w: limit price must be positive", ErrInvalidOrder)
		}
		return r.LimitPrice, nil
	default:
		return 0, fmt.Errorf("%w: kind must be MARKET or LIMIT", ErrInvalidOrder)
	}
}

// PlaceOrder creates an order against the given market price.
//
// MARKET orders execute at marketPrice. LIMIT orders execute at their limit
// price right away when LimitSatisfied, otherwise they stay PENDING with the
// paying leg debited. The wallet update and the order insert commit together.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest, marketPrice float64) (*models.Order, error) {
	price, err := req.normalize(marketPrice)
	if err != nil {
		return nil, err
	}

	filled := req.Kind == models.KindMarket || LimitSatisfied(marketPrice, price)
	qty := decimal.NewFromFloat(req.Quantity)
	total := orderTotal(price, req.Quantity)

	now := s.now().UTC()
	order := &models.Order{
		ID:        uuid.New(),
		UserID:    req.UserID,
		Side:      req.Side,
		Kind:      req.Kind,
		Symbol:    req.Symbol,
		Quantity:  req.Quantity,
		Price:     price,
		Total:     total.InexactFloat64(),
		Status:    models.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if filled {
		order.Status = models.StatusCompleted
	}

	err = s.store.InTx(ctx, func(tx database.Tx) error {
		w, err := s.lockWallet(ctx, tx, req.UserID)
		if err != nil {
			return err
		}

		switch req.Side {
		case models.SideBuy:
			if !w.Covers(wallet.Quote, total) {
				return fmt.Errorf("%w: need %s %s, have %v", ErrInsufficientBalance,
					total.String(), wallet.Quote, w.Balance(wallet.Quote))
			}
			w.Debit(wallet.Quote, total)
			if filled {
				w.Credit(req.Symbol, qty)
			}
		case models.SideSell:
			if !w.Covers(req.Symbol, qty) {
				return fmt.Errorf("%w: need %s %s, have %v", ErrInsufficientBalance,
					qty.String(), req.Symbol, w.Balance(req.Symbol))
			}
			w.Debit(req.Symbol, qty)
			if filled {
				w.Credit(wallet.Quote, total)
			}
		}

		if err := tx.SaveWallet(ctx, req.UserID, w.ToMap()); err != nil {
			return err
		}
		return tx.CreateOrder(ctx, order)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("order placed",
		zap.Stringer("order_id", order.ID), zap.Stringer("user_id", order.UserID),
		zap.String("side", string(order.Side)), zap.String("kind", string(order.Kind)),
		zap.String("symbol", order.Symbol), zap.Float64("quantity", order.Quantity),
		zap.Float64("price", order.Price), zap.String("status", string(order.Status)))
	return order, nil
}

// Evaluate settles the user's pending orders for symbol that marketPrice
// satisfies. Each order settles in its own unit of work which re-reads the
// wallet, then re-checks the order is still PENDING, then credits the
// receiving leg. A failing order is logged and skipped.
func (s *Service) Evaluate(ctx context.Context, userID uuid.UUID, symbol string, marketPrice float64) ([]*models.Order, error) {
	sym := wallet.Canonical(symbol)
	if marketPrice <= 0 {
		return nil, fmt.Errorf("%w: market price unavailable", ErrInvalidOrder)
	}

	pending, err := s.store.PendingOrders(ctx, userID, sym)
	if err != nil {
		return nil, fmt.Errorf("list pending orders: %w", err)
	}

	filled := make([]*models.Order, 0)
	for _, o := range pending {
		if !LimitSatisfied(marketPrice, o.Price) {
			continue
		}
		done, err := s.settle(ctx, userID, o.ID, marketPrice)
		if err != nil {
			s.logger.Warn("pending order evaluation failed",
				zap.Stringer("order_id", o.ID), zap.Error(err))
			continue
		}
		if done != nil {
			filled = append(filled, done)
		}
	}
	return filled, nil
}

// settle returns nil, nil when the order no longer qualifies.
func (s *Service) settle(ctx context.Context, userID, orderID uuid.UUID, marketPrice float64) (*models.Order, error) {
	var settled *models.Order
	err := s.store.InTx(ctx, func(tx database.Tx) error {
		w, err := s.lockWallet(ctx, tx, userID)
		if err != nil {
			return err
		}
		o, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if o == nil || o.UserID != userID {
			return ErrOrderNotFound
		}
		if o.Status != models.StatusPending || !LimitSatisfied(marketPrice, o.Price) {
			return nil
		}

		switch o.Side {
		case models.SideBuy:
			w.Credit(o.Symbol, decimal.NewFromFloat(o.Quantity))
		case models.SideSell:
			w.Credit(wallet.Quote, orderTotal(o.Price, o.Quantity))
		default:
			return fmt.Errorf("order %s has unknown side %q", o.ID, o.Side)
		}

		if err := tx.UpdateOrderStatus(ctx, o.ID, models.StatusPending, models.StatusCompleted); err != nil {
			return err
		}
		if err := tx.SaveWallet(ctx, userID, w.ToMap()); err != nil {
			return err
		}
		o.Status = models.StatusCompleted
		o.UpdatedAt = s.now().UTC()
		settled = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	if settled != nil {
		s.logger.Info("pending order filled",
			zap.Stringer("order_id", settled.ID), zap.Float64("market_price", marketPrice))
	}
	return settled, nil
}

// CancelOrder cancels a PENDING order of the user and refunds the reserved
// amount: the total in USDT for BUY, the quantity for SELL.
func (s *Service) CancelOrder(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error) {
	var cancelled *models.Order
	err := s.store.InTx(ctx, func(tx database.Tx) error {
		w, err := s.lockWallet(ctx, tx, userID)
		if err != nil {
			return err
		}
		o, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if o == nil || o.UserID != userID {
			return ErrOrderNotFound
		}
		if o.Status != models.StatusPending {
			return fmt.Errorf("%w: order is %s", ErrNotCancellable, o.Status)
		}

		switch o.Side {
		case models.SideBuy:
			w.Credit(wallet.Quote, orderTotal(o.Price, o.Quantity))
		case models.SideSell:
			w.Credit(o.Symbol, decimal.NewFromFloat(o.Quantity))
		default:
			return fmt.Errorf("order %s has unknown side %q", o.ID, o.Side)
		}

		if err := tx.UpdateOrderStatus(ctx, o.ID, models.StatusPending, models.StatusCancelled); err != nil {
			return err
		}
		if err := tx.SaveWallet(ctx, userID, w.ToMap()); err != nil {
			return err
		}
		o.Status = models.StatusCancelled
		o.UpdatedAt = s.now().UTC()
		cancelled = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("order cancelled", zap.Stringer("order_id", orderID), zap.Stringer("user_id", userID))
	return cancelled, nil
}

// ListOrders returns the user's orders, newest first.
func (s *Service) ListOrders(ctx context.Context, userID uuid.UUID) ([]*models.Order, error) {
	return s.store.ListOrders(ctx, userID)
}

// GetOrder returns one of the user's orders.
func (s *Service) GetOrder(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error) {
	o, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, ErrOrderNotFound
	}
	if o.UserID != userID {
		return nil, ErrOrderForbidden
	}
	return o, nil
}
