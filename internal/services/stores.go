package services

import (
	"context"
	"time"

	"github.com/nimasrn/voucher-wallet/internal/model"
	"github.com/shopspring/decimal"
)

type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type WalletRepository interface {
	Create(ctx context.Context, userID int64) (*model.Wallet, error)
	GetByUserID(ctx context.Context, userID int64) (*model.Wallet, error)
	LockByUserID(ctx context.Context, userID int64) (*model.Wallet, error)
	Credit(ctx context.Context, walletID int64, mv model.WalletMovement) (*model.Wallet, *model.WalletHistory, error)
	Deduct(ctx context.Context, walletID int64, mv model.WalletMovement) (*model.Wallet, *model.WalletHistory, error)
	History(ctx context.Context, f model.WalletHistoryFilter) ([]*model.WalletHistory, int64, error)
	SumHistory(ctx context.Context, walletID int64) (decimal.Decimal, error)
}

type VoucherRepository interface {
	Create(ctx context.Context, v *model.Voucher) (*model.Voucher, error)
	GetByID(ctx context.Context, id int64) (*model.Voucher, error)
	LockByID(ctx context.Context, id int64) (*model.Voucher, error)
	IncrementRedemptionCount(ctx context.Context, id int64) error
	List(ctx context.Context, f model.VoucherFilter) ([]*model.Voucher, int64, error)
	Popular(ctx context.Context, limit int) ([]*model.Voucher, error)
	SoftDelete(ctx context.Context, id, merchantID int64) error
}

type RedemptionRepository interface {
	Create(ctx context.Context, r *model.Redemption) (*model.Redemption, error)
	GetByID(ctx context.Context, id int64) (*model.Redemption, error)
	LockByID(ctx context.Context, id int64) (*model.Redemption, error)
	ExistsForUser(ctx context.Context, userID, voucherID int64) (bool, error)
	CountClaimed(ctx context.Context, voucherID int64) (int64, error)
	SaveTransition(ctx context.Context, r *model.Redemption, from model.PurchaseStatus) error
	LockDue(ctx context.Context, now time.Time) ([]*model.Redemption, error)
	ExpireDue(ctx context.Context, now time.Time, note string) (int64, error)
	CountDue(ctx context.Context, now time.Time) (int64, error)
	ListDue(ctx context.Context, now time.Time, limit int) ([]*model.Redemption, error)
	ListByUser(ctx context.Context, f model.RedemptionFilter) ([]*model.Redemption, int64, error)
	Summary(ctx context.Context, userID int64) (*model.PurchaseSummary, error)
}

type SettingRepository interface {
	Get(ctx context.Context, key string) (*model.SiteSetting, error)
	Upsert(ctx context.Context, s model.SiteSetting) (*model.SiteSetting, error)
	List(ctx context.Context) ([]*model.SiteSetting, error)
}

type UserRepository interface {
	Create(ctx context.Context, req model.UserCreateRequest) (*model.User, error)
	GetByID(ctx context.Context, id int64) (*model.User, error)
	MarkMerchant(ctx context.Context, id int64) error
}

type MerchantRepository interface {
	Create(ctx context.Context, userID int64, req model.MerchantCreateRequest) (*model.MerchantProfile, error)
	GetByUserID(ctx context.Context, userID int64) (*model.MerchantProfile, error)
}

// PriceResolver never fails; see pricing.Resolver.
type PriceResolver interface {
	Resolve(ctx context.Context, isGiftCard bool) decimal.Decimal
}

type EventPublisher interface {
	Publish(ctx context.Context, evt model.VoucherEvent) error
}
