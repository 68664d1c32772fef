package repository

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/nimasrn/voucher-wallet/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestWalletRepository_Create(t *testing.T) {
	db := setupTestDB(t)
	repo := NewWalletRepository(db.DB)
	ctx := context.Background()

	w, err := repo.Create(ctx, 10)
	require.NoError(t, err)
	assert.True(t, w.Balance.IsZero())

	_, err = repo.Create(ctx, 10)
	assert.ErrorIs(t, err, ErrWalletExists)

	got, err := repo.GetByUserID(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, w.ID, got.ID)

	_, err = repo.GetByUserID(ctx, 11)
	assert.ErrorIs(t, err, ErrWalletNotFound)
}

func TestWalletRepository_Credit(t *testing.T) {
	db := setupTestDB(t)
	repo := NewWalletRepository(db.DB)
	ctx := context.Background()
	w := seedWallet(t, db, 1, "100.00")

	updated, entry, err := repo.Credit(ctx, w.ID, model.WalletMovement{
		Amount:      dec("50.25"),
		Note:        "Voucher Refund: Coffee",
		ReferenceID: "VCH-ABCDEF12",
		Meta:        map[string]any{"source": "test"},
	})
	require.NoError(t, err)
	assert.True(t, updated.Balance.Equal(dec("150.25")), updated.Balance.String())
	assert.Equal(t, model.TransactionCredit, entry.TransactionType)
	assert.True(t, entry.Amount.Equal(dec("50.25")))
	assert.Equal(t, "VCH-ABCDEF12", entry.ReferenceID)
	assert.JSONEq(t, `{"source":"test"}`, string(entry.Meta))

	t.Run("rejects non positive", func(t *testing.T) {
		_, _, err := repo.Credit(ctx, w.ID, model.WalletMovement{Amount: decimal.Zero})
		assert.ErrorIs(t, err, model.ErrNonPositiveAmount)
	})

	t.Run("unknown wallet", func(t *testing.T) {
		_, _, err := repo.Credit(ctx, 999, model.WalletMovement{Amount: dec("1")})
		assert.ErrorIs(t, err, ErrWalletNotFound)
	})
}

func TestWalletRepository_Deduct(t *testing.T) {
	db := setupTestDB(t)
	repo := NewWalletRepository(db.DB)
	ctx := context.Background()

	t.Run("successful deduction", func(t *testing.T) {
		w := seedWallet(t, db, 1, "1000.00")
		updated, entry, err := repo.Deduct(ctx, w.ID, model.WalletMovement{Amount: dec("10.00"), Note: "Voucher Purchase: Coffee", ReferenceID: "1"})
		require.NoError(t, err)
		assert.True(t, updated.Balance.Equal(dec("990.00")))
		assert.Equal(t, model.TransactionDebit, entry.TransactionType)
		assert.True(t, entry.Amount.Equal(dec("-10.00")))
	})

	t.Run("insufficient balance", func(t *testing.T) {
		w := seedWallet(t, db, 2, "5.00")
		_, _, err := repo.Deduct(ctx, w.ID, model.WalletMovement{Amount: dec("10.00")})
		assert.ErrorIs(t, err, ErrInsufficientBalance)

		got, err := repo.GetByUserID(ctx, 2)
		require.NoError(t, err)
		assert.True(t, got.Balance.Equal(dec("5.00")))

		_, total, err := repo.History(ctx, model.WalletHistoryFilter{WalletID: w.ID})
		require.NoError(t, err)
		assert.Zero(t, total)
	})

	t.Run("exact balance", func(t *testing.T) {
		w := seedWallet(t, db, 3, "25.50")
		updated, _, err := repo.Deduct(ctx, w.ID, model.WalletMovement{Amount: dec("25.50")})
		require.NoError(t, err)
		assert.True(t, updated.Balance.IsZero())
	})
}

func TestWalletRepository_RollbackLeavesNothing(t *testing.T) {
	db := setupTestDB(t)
	repo := NewWalletRepository(db.DB)
	ctx := context.Background()
	w := seedWallet(t, db, 1, "100.00")

	boom := errors.New("boom")
	err := repo.WithinTransaction(ctx, func(ctx context.Context) error {
		if _, _, err := repo.Deduct(ctx, w.ID, model.WalletMovement{Amount: dec("40")}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := repo.GetByUserID(ctx, 1)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(dec("100.00")))

	_, total, err := repo.History(ctx, model.WalletHistoryFilter{WalletID: w.ID})
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestWalletRepository_LedgerMatchesBalance(t *testing.T) {
	db := setupTestDB(t)
	repo := NewWalletRepository(db.DB)
	ctx := context.Background()

	w, err := repo.Create(ctx, 1)
	require.NoError(t, err)

	ops := []struct {
		credit bool
		amount string
	}{
		{true, "1000.00"}, {false, "10.00"}, {false, "0.10"}, {true, "0.20"},
		{false, "333.33"}, {true, "12.34"}, {false, "600.00"},
	}
	for _, op := range ops {
		mv := model.WalletMovement{Amount: dec(op.amount)}
		if op.credit {
			_, _, err = repo.Credit(ctx, w.ID, mv)
		} else {
			_, _, err = repo.Deduct(ctx, w.ID, mv)
		}
		require.NoError(t, err)
	}

	got, err := repo.GetByUserID(ctx, 1)
	require.NoError(t, err)
	sum, err := repo.SumHistory(ctx, w.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.Round(2).Equal(sum), "balance %s, ledger %s", got.Balance, sum)
	assert.True(t, sum.Equal(dec("69.11")), sum.String())
}

func TestWalletRepository_ConcurrentDeduct(t *testing.T) {
	db := setupTestDB(t)
	repo := NewWalletRepository(db.DB)
	ctx := context.Background()
	w := seedWallet(t, db, 1, "100.00")

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		refused   int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := repo.Deduct(ctx, w.ID, model.WalletMovement{Amount: dec("20")})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, ErrInsufficientBalance):
				refused++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, succeeded)
	assert.Equal(t, 5, refused)

	got, err := repo.GetByUserID(ctx, 1)
	require.NoError(t, err)
	assert.True(t, got.Balance.IsZero(), got.Balance.String())
}

func TestWalletRepository_History(t *testing.T) {
	db := setupTestDB(t)
	repo := NewWalletRepository(db.DB)
	ctx := context.Background()
	w := seedWallet(t, db, 1, "0")

	for i := 0; i < 3; i++ {
		_, _, err := repo.Credit(ctx, w.ID, model.WalletMovement{Amount: dec("10"), ReferenceID: "top-up"})
		require.NoError(t, err)
	}
	_, _, err := repo.Deduct(ctx, w.ID, model.WalletMovement{Amount: dec("5"), ReferenceID: "42"})
	require.NoError(t, err)

	entries, total, err := repo.History(ctx, model.WalletHistoryFilter{WalletID: w.ID, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(4), total)
	require.Len(t, entries, 2)
	assert.Equal(t, model.TransactionDebit, entries[0].TransactionType)

	debit := model.TransactionDebit
	entries, total, err = repo.History(ctx, model.WalletHistoryFilter{WalletID: w.ID, Type: &debit})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "42", entries[0].ReferenceID)

	ref := "top-up"
	_, total, err = repo.History(ctx, model.WalletHistoryFilter{WalletID: w.ID, ReferenceID: &ref, Asc: true})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
}
