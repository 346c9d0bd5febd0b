package trading

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/user/papercex/backend/internal/database"
	"github.com/user/papercex/backend/internal/wallet"
)

// TransferRequest sends tokens to another user identified by username.
type TransferRequest struct {
	SenderID  uuid.UUID
	Recipient string
	Symbol    string
	Amount    float64
}

// TransferReceipt describes a completed transfer.
type TransferReceipt struct {
	Symbol        string    `json:"symbol"`
	Amount        float64   `json:"amount"`
	RecipientID   uuid.UUID `json:"recipient_id"`
	Recipient     string    `json:"recipient"`
	SenderBalance float64   `json:"sender_balance"`
}

// Transfer moves Amount of Symbol from sender to recipient. Both wallets are
// locked in id order and written in the same unit of work.
func (s *Service) Transfer(ctx context.Context, req TransferRequest) (*TransferReceipt, error) {
	sym := wallet.Canonical(req.Symbol)
	name := strings.TrimSpace(req.Recipient)
	switch {
	case sym == "":
		return nil, fmt.Errorf("%w: symbol is required", ErrInvalidTransfer)
	case name == "":
		return nil, fmt.Errorf("%w: recipient is required", ErrInvalidTransfer)
	case req.Amount <= 0:
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidTransfer)
	}

	recipient, err := s.store.GetUserByUsername(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("look up recipient: %w", err)
	}
	if recipient == nil {
		return nil, ErrRecipientNotFound
	}
	if recipient.ID == req.SenderID {
		return nil, fmt.Errorf("%w: cannot transfer to yourself", ErrInvalidTransfer)
	}

	amount := decimal.NewFromFloat(req.Amount)
	receipt := &TransferReceipt{
		Symbol:      sym,
		Amount:      req.Amount,
		RecipientID: recipient.ID,
		Recipient:   recipient.Username,
	}

	err = s.store.InTx(ctx, func(tx database.Tx) error {
		ids := []uuid.UUID{req.SenderID, recipient.ID}
		if bytes.Compare(ids[1][:], ids[0][:]) < 0 {
			ids[0], ids[1] = ids[1], ids[0]
		}
		wallets := make(map[uuid.UUID]*wallet.Wallet, 2)
		for _, id := range ids {
			w, err := s.lockWallet(ctx, tx, id)
			if err != nil {
				return err
			}
			wallets[id] = w
		}

		from, to := wallets[req.SenderID], wallets[recipient.ID]
		if !from.Covers(sym, amount) {
			return fmt.Errorf("%w: have %v %s", ErrInsufficientBalance, from.Balance(sym), sym)
		}
		from.Debit(sym, amount)
		to.Credit(sym, amount)

		for _, id := range ids {
			if err := tx.SaveWallet(ctx, id, wallets[id].ToMap()); err != nil {
				return err
			}
		}
		receipt.SenderBalance = from.Balance(sym)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("tokens transferred",
		zap.Stringer("from", req.SenderID), zap.Stringer("to", recipient.ID),
		zap.String("symbol", sym), zap.Float64("amount", req.Amount))
	return receipt, nil
}
