package services

import (
	"context"
	"testing"

	"github.com/nimasrn/voucher-wallet/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func merchant(t *testing.T, h *harness, name, category string) int64 {
	t.Helper()
	acc := h.register(t, name)
	_, err := h.accounts.CreateMerchantProfile(context.Background(), acc.User.ID, model.MerchantCreateRequest{BusinessName: name, Category: category})
	require.NoError(t, err)
	return acc.User.ID
}

func flatRequest(title string) model.VoucherCreateRequest {
	amount := decimal.NewFromInt(5)
	return model.VoucherCreateRequest{Title: title, VoucherType: model.VoucherTypeFlat, FlatAmount: &amount}
}

func TestVoucherService_Create(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner := merchant(t, h, "cafe", "food")

	v, err := h.catalog.Create(ctx, owner, flatRequest("Free Coffee"))
	require.NoError(t, err)
	assert.Equal(t, "food", v.Category)
	assert.Equal(t, model.DefaultTermsConditions, v.TermsConditions)
	assert.True(t, v.IsActive)
	assert.True(t, h.balance(t, owner).Equal(dec("990.00")))

	w, err := h.wallets.GetByUserID(ctx, owner)
	require.NoError(t, err)
	ref := "Free Coffee"
	entries, _, err := h.wallets.History(ctx, model.WalletHistoryFilter{WalletID: w.ID, ReferenceID: &ref})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Voucher Creation", entries[0].ReferenceNote)
}

func TestVoucherService_Create_Rejections(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	plain := h.register(t, "plain").User.ID
	_, err := h.catalog.Create(ctx, plain, flatRequest("Nope"))
	assert.Equal(t, KindForbidden, KindOf(err))

	owner := merchant(t, h, "cafe", "food")
	bad := flatRequest("Bad")
	bad.FlatAmount = nil
	_, err = h.catalog.Create(ctx, owner, bad)
	assert.Equal(t, KindInvalidInput, KindOf(err))

	h.setPrice(t, model.SettingVoucherCost, "2000")
	_, err = h.catalog.Create(ctx, owner, flatRequest("Too expensive"))
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	assert.True(t, h.balance(t, owner).Equal(dec("1000.00")))

	_, total, err := h.catalog.ListByMerchant(ctx, owner, model.VoucherFilter{})
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestVoucherService_CatalogAndDeactivate(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner := merchant(t, h, "cafe", "food")
	rival := merchant(t, h, "spa", "wellness")

	coffee, err := h.catalog.Create(ctx, owner, flatRequest("Coffee"))
	require.NoError(t, err)
	gift := flatRequest("Gift")
	gift.IsGiftCard = true
	_, err = h.catalog.Create(ctx, owner, gift)
	require.NoError(t, err)
	_, err = h.catalog.Create(ctx, rival, flatRequest("Massage"))
	require.NoError(t, err)

	public, total, err := h.catalog.ListPublic(ctx, model.VoucherFilter{IncludeGiftCards: true})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, public, 2)

	_, total, err = h.catalog.ListByMerchant(ctx, owner, model.VoucherFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)

	assert.Equal(t, KindNotFound, KindOf(h.catalog.Deactivate(ctx, rival, coffee.ID)))
	require.NoError(t, h.catalog.Deactivate(ctx, owner, coffee.ID))

	_, err = h.catalog.Get(ctx, coffee.ID)
	assert.Equal(t, KindNotFound, KindOf(err))

	_, total, err = h.catalog.ListPublic(ctx, model.VoucherFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)

	bogus := model.VoucherType("bogus")
	_, _, err = h.catalog.ListPublic(ctx, model.VoucherFilter{VoucherType: &bogus})
	assert.Equal(t, KindInvalidInput, KindOf(err))
}

func TestVoucherService_Popular(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	buyer := h.register(t, "buyer").User.ID
	h.voucher(t, func(v *model.Voucher) { v.Title = "Quiet" })
	hot := h.voucher(t, func(v *model.Voucher) { v.Title = "Hot" })

	res, err := h.purchases.Purchase(ctx, buyer, hot.ID, false)
	require.NoError(t, err)
	_, err = h.purchases.Redeem(ctx, buyer, res.RedemptionID, "", "")
	require.NoError(t, err)

	list, err := h.catalog.Popular(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, hot.ID, list[0].ID)
}
