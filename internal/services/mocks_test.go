package services

import (
	"context"

	"github.com/nimasrn/voucher-wallet/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

type MockTransactor struct {
	mock.Mock
}

func (m *MockTransactor) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	args := m.Called(ctx, fn)
	if args.Error(0) != nil {
		return args.Error(0)
	}
	return fn(ctx)
}

type MockWalletRepository struct {
	mock.Mock
}

func (m *MockWalletRepository) Create(ctx context.Context, userID int64) (*model.Wallet, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Wallet), args.Error(1)
}

func (m *MockWalletRepository) GetByUserID(ctx context.Context, userID int64) (*model.Wallet, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Wallet), args.Error(1)
}

func (m *MockWalletRepository) LockByUserID(ctx context.Context, userID int64) (*model.Wallet, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Wallet), args.Error(1)
}

func (m *MockWalletRepository) Credit(ctx context.Context, walletID int64, mv model.WalletMovement) (*model.Wallet, *model.WalletHistory, error) {
	args := m.Called(ctx, walletID, mv)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*model.Wallet), args.Get(1).(*model.WalletHistory), args.Error(2)
}

func (m *MockWalletRepository) Deduct(ctx context.Context, walletID int64, mv model.WalletMovement) (*model.Wallet, *model.WalletHistory, error) {
	args := m.Called(ctx, walletID, mv)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*model.Wallet), args.Get(1).(*model.WalletHistory), args.Error(2)
}

func (m *MockWalletRepository) History(ctx context.Context, f model.WalletHistoryFilter) ([]*model.WalletHistory, int64, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*model.WalletHistory), args.Get(1).(int64), args.Error(2)
}

func (m *MockWalletRepository) SumHistory(ctx context.Context, walletID int64) (decimal.Decimal, error) {
	args := m.Called(ctx, walletID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

type MockSettingRepository struct {
	mock.Mock
}

func (m *MockSettingRepository) Get(ctx context.Context, key string) (*model.SiteSetting, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.SiteSetting), args.Error(1)
}

func (m *MockSettingRepository) Upsert(ctx context.Context, s model.SiteSetting) (*model.SiteSetting, error) {
	args := m.Called(ctx, s)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.SiteSetting), args.Error(1)
}

func (m *MockSettingRepository) List(ctx context.Context) ([]*model.SiteSetting, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.SiteSetting), args.Error(1)
}

type MockPriceCache struct {
	mock.Mock
}

func (m *MockPriceCache) Invalidate(ctx context.Context, key string) {
	m.Called(ctx, key)
}

type MockPinger struct {
	mock.Mock
}

func (m *MockPinger) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

type recordingPublisher struct {
	events []model.VoucherEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, evt model.VoucherEvent) error {
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, evt)
	return nil
}

func (p *recordingPublisher) types() []model.EventType {
	out := make([]model.EventType, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}
