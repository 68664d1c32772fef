package services

import (
	"context"
	"errors"
	"testing"

	"github.com/nimasrn/voucher-wallet/internal/model"
	"github.com/nimasrn/voucher-wallet/internal/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestWalletService_Deduct_InsufficientBalance(t *testing.T) {
	repo := new(MockWalletRepository)
	svc := NewWalletService(repo)
	ctx := context.Background()

	repo.On("GetByUserID", ctx, int64(1)).Return(&model.Wallet{ID: 9, UserID: 1, Balance: decimal.NewFromInt(5)}, nil)
	repo.On("Deduct", ctx, int64(9), mock.AnythingOfType("model.WalletMovement")).Return(nil, nil, repository.ErrInsufficientBalance)

	w, err := svc.Deduct(ctx, 1, model.WalletMovement{Amount: decimal.NewFromInt(10)})
	assert.Nil(t, w)
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	assert.Equal(t, KindInsufficientBalance, KindOf(err))
	repo.AssertExpectations(t)
}

func TestWalletService_Credit(t *testing.T) {
	repo := new(MockWalletRepository)
	svc := NewWalletService(repo)
	ctx := context.Background()

	repo.On("GetByUserID", ctx, int64(1)).Return(&model.Wallet{ID: 9, UserID: 1}, nil)
	repo.On("Credit", ctx, int64(9), mock.MatchedBy(func(mv model.WalletMovement) bool {
		return mv.Amount.Equal(decimal.RequireFromString("25.00")) && mv.Note == "Top-up"
	})).Return(&model.Wallet{ID: 9, Balance: decimal.RequireFromString("25.00")}, &model.WalletHistory{}, nil)

	w, err := svc.Credit(ctx, 1, model.WalletMovement{Amount: decimal.RequireFromString("25.00"), Note: "Top-up"})
	require.NoError(t, err)
	assert.True(t, w.Balance.Equal(decimal.RequireFromString("25")))
	repo.AssertExpectations(t)
}

func TestWalletService_InvalidAmount(t *testing.T) {
	repo := new(MockWalletRepository)
	svc := NewWalletService(repo)

	_, err := svc.Credit(context.Background(), 1, model.WalletMovement{Amount: decimal.RequireFromString("-1")})
	assert.Equal(t, KindInvalidInput, KindOf(err))
	repo.AssertNotCalled(t, "GetByUserID", mock.Anything, mock.Anything)
}

func TestWalletService_WalletNotFound(t *testing.T) {
	repo := new(MockWalletRepository)
	svc := NewWalletService(repo)
	ctx := context.Background()

	repo.On("GetByUserID", ctx, int64(3)).Return(nil, repository.ErrWalletNotFound)

	_, err := svc.Balance(ctx, 3)
	assert.ErrorIs(t, err, ErrWalletNotFound)
}

func TestWalletService_SystemError(t *testing.T) {
	repo := new(MockWalletRepository)
	svc := NewWalletService(repo)
	ctx := context.Background()

	dbErr := errors.New("connection reset")
	repo.On("GetByUserID", ctx, int64(3)).Return(nil, dbErr)

	_, err := svc.Balance(ctx, 3)
	assert.Equal(t, KindSystem, KindOf(err))
	assert.ErrorIs(t, err, dbErr)
}

func TestWalletService_History(t *testing.T) {
	repo := new(MockWalletRepository)
	svc := NewWalletService(repo)
	ctx := context.Background()

	repo.On("GetByUserID", ctx, int64(1)).Return(&model.Wallet{ID: 9}, nil)
	repo.On("History", ctx, model.WalletHistoryFilter{WalletID: 9, Limit: 5}).
		Return([]*model.WalletHistory{{ID: 1}}, int64(1), nil)

	items, total, err := svc.History(ctx, 1, model.WalletHistoryFilter{WalletID: 777, Limit: 5})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Len(t, items, 1)

	bogus := model.TransactionType("bonus")
	_, _, err = svc.History(ctx, 1, model.WalletHistoryFilter{Type: &bogus})
	assert.Equal(t, KindInvalidInput, KindOf(err))
}

func TestWalletService_Reconcile(t *testing.T) {
	repo := new(MockWalletRepository)
	svc := NewWalletService(repo)
	ctx := context.Background()

	repo.On("GetByUserID", ctx, int64(1)).Return(&model.Wallet{ID: 9, Balance: decimal.RequireFromString("990.00")}, nil)
	repo.On("SumHistory", ctx, int64(9)).Return(decimal.RequireFromString("990"), nil).Once()

	rec, err := svc.Reconcile(ctx, 1)
	require.NoError(t, err)
	assert.True(t, rec.Consistent)

	repo.On("SumHistory", ctx, int64(9)).Return(decimal.RequireFromString("1000"), nil).Once()
	rec, err = svc.Reconcile(ctx, 1)
	require.NoError(t, err)
	assert.False(t, rec.Consistent)
}
