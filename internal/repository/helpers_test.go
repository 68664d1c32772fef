package repository

import (
	"context"
	"testing"

	"github.com/nimasrn/voucher-wallet/internal/model"
	"github.com/nimasrn/voucher-wallet/pkg/pg"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type testDB struct {
	*pg.DB
	rawDB *gorm.DB
}

// setupTestDB opens a private in-memory sqlite database with the full schema.
// A single connection keeps every statement on the same database, so tests
// must route queries inside a transaction through the ctx.
func setupTestDB(t *testing.T) *testDB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, AutoMigrate(db))

	return &testDB{
		DB:    pg.Wrap(db, db),
		rawDB: db,
	}
}

func seedWallet(t *testing.T, db *testDB, userID int64, balance string) *model.Wallet {
	t.Helper()
	e := &WalletEntity{UserID: userID, Balance: decimal.RequireFromString(balance)}
	require.NoError(t, db.rawDB.Create(e).Error)
	return toWalletModel(e)
}

func seedVoucher(t *testing.T, db *testDB, mut func(v *model.Voucher)) *model.Voucher {
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
	out, err := NewVoucherRepository(db.DB).Create(context.Background(), v)
	require.NoError(t, err)
	return out
}
