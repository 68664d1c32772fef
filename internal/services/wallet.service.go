package services

import (
	"context"
	"errors"

	"github.com/nimasrn/voucher-wallet/internal/model"
	"github.com/nimasrn/voucher-wallet/internal/repository"
	"github.com/nimasrn/voucher-wallet/pkg/prom"
)

type WalletService struct {
	wallets WalletRepository
}

func NewWalletService(wallets WalletRepository) *WalletService {
	return &WalletService{wallets: wallets}
}

func (s *WalletService) Balance(ctx context.Context, userID int64) (*model.Wallet, error) {
	w, err := s.wallets.GetByUserID(ctx, userID)
	if err != nil {
		return nil, walletError("wallet balance", err)
	}
	return w, nil
}

func (s *WalletService) History(ctx context.Context, userID int64, f model.WalletHistoryFilter) ([]*model.WalletHistory, int64, error) {
	if f.Type != nil && !f.Type.Valid() {
		return nil, 0, newError(KindInvalidInput, "transaction_type must be credit or debit")
	}
	w, err := s.wallets.GetByUserID(ctx, userID)
	if err != nil {
		return nil, 0, walletError("wallet history", err)
	}
	f.WalletID = w.ID
	items, total, err := s.wallets.History(ctx, f)
	if err != nil {
		return nil, 0, ensure("wallet history", err)
	}
	return items, total, nil
}

func (s *WalletService) Credit(ctx context.Context, userID int64, mv model.WalletMovement) (*model.Wallet, error) {
	return s.move(ctx, userID, model.TransactionCredit, mv)
}

func (s *WalletService) Deduct(ctx context.Context, userID int64, mv model.WalletMovement) (*model.Wallet, error) {
	return s.move(ctx, userID, model.TransactionDebit, mv)
}

func (s *WalletService) move(ctx context.Context, userID int64, kind model.TransactionType, mv model.WalletMovement) (*model.Wallet, error) {
	if err := mv.Validate(); err != nil {
		return nil, invalidInput(err)
	}
	w, err := s.wallets.GetByUserID(ctx, userID)
	if err != nil {
		return nil, walletError("wallet "+string(kind), err)
	}

	var updated *model.Wallet
	if kind == model.TransactionCredit {
		updated, _, err = s.wallets.Credit(ctx, w.ID, mv)
	} else {
		updated, _, err = s.wallets.Deduct(ctx, w.ID, mv)
	}
	if err != nil {
		return nil, walletError("wallet "+string(kind), err)
	}
	prom.IncWalletMovement(string(kind))
	return updated, nil
}

// Reconcile compares the stored balance with the sum of the wallet's ledger.
func (s *WalletService) Reconcile(ctx context.Context, userID int64) (*model.Reconciliation, error) {
	w, err := s.wallets.GetByUserID(ctx, userID)
	if err != nil {
		return nil, walletError("reconcile", err)
	}
	total, err := s.wallets.SumHistory(ctx, w.ID)
	if err != nil {
		return nil, ensure("reconcile", err)
	}
	balance := w.Balance.Round(2)
	return &model.Reconciliation{
		WalletID:    w.ID,
		Balance:     balance,
		LedgerTotal: total,
		Consistent:  balance.Equal(total),
	}, nil
}

func walletError(op string, err error) error {
	switch {
	case errors.Is(err, repository.ErrWalletNotFound):
		return ErrWalletNotFound
	case errors.Is(err, repository.ErrInsufficientBalance):
		return ErrInsufficientBalance
	case errors.Is(err, model.ErrNonPositiveAmount), errors.Is(err, model.ErrAmountPrecision):
		return invalidInput(err)
	}
	return ensure(op, err)
}
