package services

import (
	"context"
	"testing"
	"time"

	"github.com/nimasrn/voucher-wallet/internal/model"
	"github.com/nimasrn/voucher-wallet/internal/pricing"
	"github.com/nimasrn/voucher-wallet/internal/repository"
	"github.com/nimasrn/voucher-wallet/pkg/pg"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// harness wires the real repositories on an in-memory sqlite database so the
// workflows run with real transactions.
type harness struct {
	raw         *gorm.DB
	db          *pg.DB
	users       *repository.UserRepository
	merchants   *repository.MerchantRepository
	wallets     *repository.WalletRepository
	vouchers    *repository.VoucherRepository
	redemptions *repository.RedemptionRepository
	settings    *repository.SettingRepository
	events      *recordingPublisher
	accounts    *AccountService
	purchases   *PurchaseService
	catalog     *VoucherService
	now         time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	raw, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := raw.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, repository.AutoMigrate(raw))

	db := pg.Wrap(raw, raw)
	h := &harness{
		raw:         raw,
		db:          db,
		users:       repository.NewUserRepository(db),
		merchants:   repository.NewMerchantRepository(db),
		wallets:     repository.NewWalletRepository(db),
		vouchers:    repository.NewVoucherRepository(db),
		redemptions: repository.NewRedemptionRepository(db),
		settings:    repository.NewSettingRepository(db),
		events:      &recordingPublisher{},
		now:         time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC),
	}

	resolver := pricing.NewResolver(h.settings, decimal.NewFromInt(10))
	h.accounts = NewAccountService(db, h.users, h.merchants, h.wallets, decimal.RequireFromString("1000.00"))
	h.purchases = NewPurchaseService(db, h.vouchers, h.wallets, h.redemptions, resolver,
		WithClock(func() time.Time { return h.now }),
		WithPublisher(h.events),
	)
	h.catalog = NewVoucherService(db, h.vouchers, h.wallets, h.merchants, resolver)
	return h
}

func (h *harness) register(t *testing.T, username string) *model.Account {
	t.Helper()
	acc, err := h.accounts.RegisterUser(context.Background(), model.UserCreateRequest{Username: username})
	require.NoError(t, err)
	return acc
}

// userWithBalance registers a user and moves the wallet to balance.
func (h *harness) userWithBalance(t *testing.T, username, balance string) int64 {
	t.Helper()
	acc := h.register(t, username)
	target := decimal.RequireFromString(balance)
	diff := acc.Wallet.Balance.Sub(target)
	ctx := context.Background()
	if diff.IsPositive() {
		_, _, err := h.wallets.Deduct(ctx, acc.Wallet.ID, model.WalletMovement{Amount: diff, Note: "test setup"})
		require.NoError(t, err)
	} else if diff.IsNegative() {
		_, _, err := h.wallets.Credit(ctx, acc.Wallet.ID, model.WalletMovement{Amount: diff.Neg(), Note: "test setup"})
		require.NoError(t, err)
	}
	return acc.User.ID
}

func (h *harness) voucher(t *testing.T, mut func(v *model.Voucher)) *model.Voucher {
	t.Helper()
	flat := decimal.NewFromInt(5)
	v := &model.Voucher{
		MerchantID:  1,
		Title:       "Coffee",
		Category:    "food",
		VoucherType: model.VoucherTypeFlat,
		FlatAmount:  &flat,
		IsActive:    true,
	}
	if mut != nil {
		mut(v)
	}
	out, err := h.vouchers.Create(context.Background(), v)
	require.NoError(t, err)
	return out
}

func (h *harness) balance(t *testing.T, userID int64) decimal.Decimal {
	t.Helper()
	w, err := h.wallets.GetByUserID(context.Background(), userID)
	require.NoError(t, err)
	return w.Balance
}

func (h *harness) ledgerCount(t *testing.T, userID int64) int64 {
	t.Helper()
	w, err := h.wallets.GetByUserID(context.Background(), userID)
	require.NoError(t, err)
	_, total, err := h.wallets.History(context.Background(), model.WalletHistoryFilter{WalletID: w.ID})
	require.NoError(t, err)
	return total
}

func (h *harness) setPrice(t *testing.T, key, value string) {
	t.Helper()
	_, err := h.settings.Upsert(context.Background(), model.SiteSetting{Key: key, Value: value})
	require.NoError(t, err)
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }
