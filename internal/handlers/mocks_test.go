package handlers

import (
	"context"
	"time"

	"github.com/nimasrn/voucher-wallet/internal/model"
	xhttp "github.com/nimasrn/voucher-wallet/pkg/http"
	"github.com/stretchr/testify/mock"
	"github.com/valyala/fasthttp"
)

func setupTestContext(method, path string, body []byte) *xhttp.RequestCtx {
	ctx := &fasthttp.RequestCtx{}
	ctx.Request.Header.SetMethod(method)
	ctx.Request.SetRequestURI(path)
	if body != nil {
		ctx.Request.SetBody(body)
	}
	return ctx
}

func asUser(ctx *xhttp.RequestCtx, id int64, admin bool) *xhttp.RequestCtx {
	ctx.SetUserValue(xhttp.UserIDKey, id)
	ctx.SetUserValue(xhttp.IsAdminKey, admin)
	return ctx
}

type MockPurchaseService struct {
	mock.Mock
}

func (m *MockPurchaseService) Purchase(ctx context.Context, userID, voucherID int64, gift bool) (*model.PurchaseResult, error) {
	args := m.Called(ctx, userID, voucherID, gift)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PurchaseResult), args.Error(1)
}

func (m *MockPurchaseService) Redeem(ctx context.Context, userID, redemptionID int64, location, notes string) (*model.Redemption, error) {
	args := m.Called(ctx, userID, redemptionID, location, notes)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Redemption), args.Error(1)
}

func (m *MockPurchaseService) Cancel(ctx context.Context, userID, redemptionID int64, reason string) (*model.Redemption, error) {
	args := m.Called(ctx, userID, redemptionID, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Redemption), args.Error(1)
}

func (m *MockPurchaseService) Refund(ctx context.Context, userID, redemptionID int64, reason string) (*model.RefundResult, error) {
	args := m.Called(ctx, userID, redemptionID, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.RefundResult), args.Error(1)
}

func (m *MockPurchaseService) ExpireDue(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockPurchaseService) PreviewExpiry(ctx context.Context) (*model.ExpiryPreview, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ExpiryPreview), args.Error(1)
}

func (m *MockPurchaseService) Get(ctx context.Context, userID, redemptionID int64) (*model.Redemption, error) {
	args := m.Called(ctx, userID, redemptionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Redemption), args.Error(1)
}

func (m *MockPurchaseService) ListUserVouchers(ctx context.Context, f model.RedemptionFilter) ([]*model.Redemption, int64, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*model.Redemption), args.Get(1).(int64), args.Error(2)
}

func (m *MockPurchaseService) Summary(ctx context.Context, userID int64) (*model.PurchaseSummary, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PurchaseSummary), args.Error(1)
}

func (m *MockPurchaseService) Now() time.Time {
	return time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
}

type MockWalletService struct {
	mock.Mock
}

func (m *MockWalletService) Balance(ctx context.Context, userID int64) (*model.Wallet, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Wallet), args.Error(1)
}

func (m *MockWalletService) History(ctx context.Context, userID int64, f model.WalletHistoryFilter) ([]*model.WalletHistory, int64, error) {
	args := m.Called(ctx, userID, f)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*model.WalletHistory), args.Get(1).(int64), args.Error(2)
}

func (m *MockWalletService) Credit(ctx context.Context, userID int64, mv model.WalletMovement) (*model.Wallet, error) {
	args := m.Called(ctx, userID, mv)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Wallet), args.Error(1)
}

func (m *MockWalletService) Deduct(ctx context.Context, userID int64, mv model.WalletMovement) (*model.Wallet, error) {
	args := m.Called(ctx, userID, mv)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Wallet), args.Error(1)
}

func (m *MockWalletService) Reconcile(ctx context.Context, userID int64) (*model.Reconciliation, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Reconciliation), args.Error(1)
}

type MockVoucherService struct {
	mock.Mock
}

func (m *MockVoucherService) Create(ctx context.Context, merchantUserID int64, req model.VoucherCreateRequest) (*model.Voucher, error) {
	args := m.Called(ctx, merchantUserID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Voucher), args.Error(1)
}

func (m *MockVoucherService) Deactivate(ctx context.Context, merchantUserID, voucherID int64) error {
	return m.Called(ctx, merchantUserID, voucherID).Error(0)
}

func (m *MockVoucherService) Get(ctx context.Context, id int64) (*model.Voucher, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Voucher), args.Error(1)
}

func (m *MockVoucherService) ListPublic(ctx context.Context, f model.VoucherFilter) ([]*model.Voucher, int64, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*model.Voucher), args.Get(1).(int64), args.Error(2)
}

func (m *MockVoucherService) Popular(ctx context.Context) ([]*model.Voucher, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Voucher), args.Error(1)
}

func (m *MockVoucherService) ListByMerchant(ctx context.Context, merchantUserID int64, f model.VoucherFilter) ([]*model.Voucher, int64, error) {
	args := m.Called(ctx, merchantUserID, f)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*model.Voucher), args.Get(1).(int64), args.Error(2)
}

type MockSettingsService struct {
	mock.Mock
}

func (m *MockSettingsService) Get(ctx context.Context, key string) (*model.SiteSetting, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.SiteSetting), args.Error(1)
}

func (m *MockSettingsService) Set(ctx context.Context, in model.SiteSetting) (*model.SiteSetting, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.SiteSetting), args.Error(1)
}

func (m *MockSettingsService) List(ctx context.Context) ([]*model.SiteSetting, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.SiteSetting), args.Error(1)
}

type MockAccountService struct {
	mock.Mock
}

func (m *MockAccountService) RegisterUser(ctx context.Context, req model.UserCreateRequest) (*model.Account, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Account), args.Error(1)
}

func (m *MockAccountService) CreateMerchantProfile(ctx context.Context, userID int64, req model.MerchantCreateRequest) (*model.MerchantProfile, error) {
	args := m.Called(ctx, userID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.MerchantProfile), args.Error(1)
}

func (m *MockAccountService) Get(ctx context.Context, userID int64) (*model.Account, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Account), args.Error(1)
}

type MockHealthService struct {
	mock.Mock
}

func (m *MockHealthService) Get(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}
