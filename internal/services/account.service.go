package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/nimasrn/voucher-wallet/internal/model"
	"github.com/nimasrn/voucher-wallet/internal/repository"
	"github.com/nimasrn/voucher-wallet/pkg/logger"
	"github.com/shopspring/decimal"
)

// AccountService owns user registration and the hooks that must run with it:
// every user gets a funded wallet, every merchant profile flags its user.
type AccountService struct {
	tx             Transactor
	users          UserRepository
	merchants      MerchantRepository
	wallets        WalletRepository
	openingBalance decimal.Decimal
}

func NewAccountService(tx Transactor, users UserRepository, merchants MerchantRepository, wallets WalletRepository, openingBalance decimal.Decimal) *AccountService {
	return &AccountService{
		tx:             tx,
		users:          users,
		merchants:      merchants,
		wallets:        wallets,
		openingBalance: openingBalance.Round(2),
	}
}

func (s *AccountService) RegisterUser(ctx context.Context, req model.UserCreateRequest) (*model.Account, error) {
	if err := req.Validate(); err != nil {
		return nil, invalidInput(err)
	}

	acc := &model.Account{}
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		user, err := s.users.Create(ctx, req)
		if err != nil {
			if errors.Is(err, repository.ErrUserExists) {
				return newError(KindConflict, "username already taken")
			}
			return err
		}
		acc.User = user

		wallet, err := s.wallets.Create(ctx, user.ID)
		if err != nil {
			return err
		}
		if s.openingBalance.IsPositive() {
			wallet, _, err = s.wallets.Credit(ctx, wallet.ID, model.WalletMovement{
				Amount:      s.openingBalance,
				Note:        model.OpeningBalanceNote,
				ReferenceID: fmt.Sprintf("user:%d", user.ID),
			})
			if err != nil {
				return err
			}
		}
		acc.Wallet = wallet
		return nil
	})
	if err != nil {
		return nil, ensure("register user", err)
	}

	logger.Info("user registered", "user_id", acc.User.ID, "wallet_id", acc.Wallet.ID)
	return acc, nil
}

func (s *AccountService) CreateMerchantProfile(ctx context.Context, userID int64, req model.MerchantCreateRequest) (*model.MerchantProfile, error) {
	if err := req.Validate(); err != nil {
		return nil, invalidInput(err)
	}

	var profile *model.MerchantProfile
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if _, err := s.users.GetByID(ctx, userID); err != nil {
			if errors.Is(err, repository.ErrUserNotFound) {
				return newError(KindNotFound, "user not found")
			}
			return err
		}

		var err error
		profile, err = s.merchants.Create(ctx, userID, req)
		if err != nil {
			if errors.Is(err, repository.ErrMerchantExists) {
				return newError(KindConflict, "merchant profile already exists")
			}
			return err
		}
		return s.users.MarkMerchant(ctx, userID)
	})
	if err != nil {
		return nil, ensure("create merchant", err)
	}
	return profile, nil
}

func (s *AccountService) Get(ctx context.Context, userID int64) (*model.Account, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, newError(KindNotFound, "user not found")
		}
		return nil, ensure("get account", err)
	}
	acc := &model.Account{User: user}

	if acc.Wallet, err = s.wallets.GetByUserID(ctx, userID); err != nil && !errors.Is(err, repository.ErrWalletNotFound) {
		return nil, ensure("get account", err)
	}
	if user.IsMerchant {
		if acc.Merchant, err = s.merchants.GetByUserID(ctx, userID); err != nil && !errors.Is(err, repository.ErrMerchantNotFound) {
			return nil, ensure("get account", err)
		}
	}
	return acc, nil
}
