package model

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestWalletMovement_Validate(t *testing.T) {
	assert.NoError(t, WalletMovement{Amount: decimal.RequireFromString("10.50")}.Validate())
	assert.ErrorIs(t, WalletMovement{Amount: decimal.Zero}.Validate(), ErrNonPositiveAmount)
	assert.ErrorIs(t, WalletMovement{Amount: decimal.RequireFromString("-1")}.Validate(), ErrNonPositiveAmount)
	assert.ErrorIs(t, WalletMovement{Amount: decimal.RequireFromString("1.005")}.Validate(), ErrAmountPrecision)
}

func TestVoucherCreateRequest_Validate(t *testing.T) {
	tests := []struct {
		name string
		req  VoucherCreateRequest
		want error
	}{
		{
			name: "percentage ok",
			req:  VoucherCreateRequest{Title: "10% off", VoucherType: VoucherTypePercentage, PercentageValue: ptr(decimal.NewFromInt(10))},
		},
		{
			name: "percentage over 100",
			req:  VoucherCreateRequest{Title: "x", VoucherType: VoucherTypePercentage, PercentageValue: ptr(decimal.NewFromInt(101))},
			want: ErrInvalidPercentage,
		},
		{
			name: "flat with product fields",
			req:  VoucherCreateRequest{Title: "x", VoucherType: VoucherTypeFlat, FlatAmount: ptr(decimal.NewFromInt(5)), ProductName: ptr("mug")},
			want: ErrForeignTypeFields,
		},
		{
			name: "product without name",
			req:  VoucherCreateRequest{Title: "x", VoucherType: VoucherTypeProduct, ProductName: ptr("  ")},
			want: ErrProductNameRequired,
		},
		{
			name: "negative min bill",
			req:  VoucherCreateRequest{Title: "x", VoucherType: VoucherTypeFlat, FlatAmount: ptr(decimal.NewFromInt(5)), FlatMinBill: ptr(decimal.NewFromInt(-1))},
			want: ErrNegativeMinBill,
		},
		{
			name: "zero count",
			req:  VoucherCreateRequest{Title: "x", VoucherType: VoucherTypeFlat, FlatAmount: ptr(decimal.NewFromInt(5)), Count: ptr(0)},
			want: ErrInvalidCount,
		},
		{
			name: "blank title",
			req:  VoucherCreateRequest{Title: " ", VoucherType: VoucherTypeFlat},
			want: ErrTitleRequired,
		},
		{
			name: "unknown type",
			req:  VoucherCreateRequest{Title: "x", VoucherType: "bogus"},
			want: ErrInvalidVoucherType,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestVoucher_HasStock(t *testing.T) {
	unlimited := &Voucher{}
	assert.True(t, unlimited.HasStock(1_000_000))

	limited := &Voucher{Count: ptr(2)}
	assert.True(t, limited.HasStock(1))
	assert.False(t, limited.HasStock(2))

	redeemedOut := &Voucher{Count: ptr(1), RedemptionCount: 1}
	assert.False(t, redeemedOut.HasStock(0))
}

func TestRedemption_RedeemBlocker(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	live := func() *Redemption {
		return &Redemption{Status: StatusPurchased, IsActive: true, ExpiryDate: now.Add(48 * time.Hour)}
	}

	assert.NoError(t, live().RedeemBlocker(now))

	expired := live()
	expired.ExpiryDate = now.Add(-time.Second)
	assert.ErrorIs(t, expired.RedeemBlocker(now), ErrRedemptionExpired)

	redeemed := live()
	redeemed.MarkRedeemed(now, "store", "")
	assert.ErrorIs(t, redeemed.RedeemBlocker(now), ErrRedemptionAlreadyRedeemed)

	cancelled := live()
	cancelled.MarkCancelled(now, "changed mind")
	assert.ErrorIs(t, cancelled.RedeemBlocker(now), ErrRedemptionNotRedeemable)
}

func TestRedemption_ReleaseBlocker(t *testing.T) {
	now := time.Now().UTC()
	r := &Redemption{Status: StatusPurchased, IsActive: true, ExpiryDate: now.Add(time.Hour)}
	require.NoError(t, r.ReleaseBlocker())

	r.MarkRefunded(now, "dup")
	assert.ErrorIs(t, r.ReleaseBlocker(), ErrRedemptionTerminal)
	assert.Equal(t, "Refunded: dup", r.RedemptionNotes)

	r2 := &Redemption{Status: StatusPurchased, IsActive: true}
	r2.MarkRedeemed(now, "", "front desk")
	assert.ErrorIs(t, r2.ReleaseBlocker(), ErrRedemptionAlreadyRedeemed)

	r3 := &Redemption{Status: StatusExpired}
	assert.ErrorIs(t, r3.ReleaseBlocker(), ErrRedemptionTerminal)
}

func TestRedemption_Expiry(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	r := &Redemption{Status: StatusPurchased, IsActive: true, ExpiryDate: now.Add(5*24*time.Hour + time.Hour)}

	assert.Equal(t, 5, r.RemainingDays(now))
	assert.True(t, r.IsAboutToExpire(now))
	assert.False(t, r.IsAboutToExpire(now.Add(-30*24*time.Hour)))

	later := now.Add(10 * 24 * time.Hour)
	assert.True(t, r.IsExpired(later))
	assert.Equal(t, 0, r.RemainingDays(later))
	assert.False(t, r.IsAboutToExpire(later))
	assert.False(t, r.IsExpired(r.ExpiryDate))
}

func TestRedemption_AppendNote(t *testing.T) {
	r := &Redemption{}
	r.AppendNote("")
	assert.Empty(t, r.RedemptionNotes)
	r.AppendNote("a")
	r.AppendNote("b")
	assert.Equal(t, "a | b", r.RedemptionNotes)
}

func TestUserCreateRequest_Validate(t *testing.T) {
	assert.NoError(t, (&UserCreateRequest{Username: "ana", Email: "ana@example.com"}).Validate())
	assert.ErrorIs(t, (&UserCreateRequest{Username: " "}).Validate(), ErrUsernameRequired)
	assert.ErrorIs(t, (&UserCreateRequest{Username: "ana", Email: "nope"}).Validate(), ErrInvalidEmail)
	assert.ErrorIs(t, (&MerchantCreateRequest{BusinessName: "Cafe"}).Validate(), ErrCategoryRequired)
}
