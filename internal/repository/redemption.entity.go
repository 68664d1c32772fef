package repository

import (
	"time"

	"github.com/nimasrn/voucher-wallet/internal/model"
	"github.com/shopspring/decimal"
)

type RedemptionEntity struct {
	ID                  int64           `gorm:"primaryKey;autoIncrement;column:id"`
	UserID              int64           `gorm:"column:user_id;not null;uniqueIndex:uq_redemption_user_voucher"`
	VoucherID           int64           `gorm:"column:voucher_id;not null;uniqueIndex:uq_redemption_user_voucher;index"`
	PurchaseReference   string          `gorm:"column:purchase_reference;not null;uniqueIndex"`
	PurchaseStatus      string          `gorm:"column:purchase_status;not null;index"`
	PurchasedAt         time.Time       `gorm:"column:purchased_at;not null"`
	RedeemedAt          *time.Time      `gorm:"column:redeemed_at"`
	ExpiryDate          time.Time       `gorm:"column:expiry_date;not null;index"`
	PurchaseCost        decimal.Decimal `gorm:"column:purchase_cost;type:numeric(12,2);not null"`
	IsActive            bool            `gorm:"column:is_active;not null"`
	IsGiftVoucher       bool            `gorm:"column:is_gift_voucher;not null"`
	RedemptionLocation  string          `gorm:"column:redemption_location"`
	RedemptionNotes     string          `gorm:"column:redemption_notes"`
	WalletTransactionID string          `gorm:"column:wallet_transaction_id"`
	UpdatedAt           time.Time       `gorm:"column:updated_at;autoUpdateTime"`

	Voucher *VoucherEntity `gorm:"foreignKey:VoucherID"`
}

func (RedemptionEntity) TableName() string {
	return "user_voucher_redemptions"
}

func toRedemptionEntity(m *model.Redemption) *RedemptionEntity {
	if m == nil {
		return nil
	}
	return &RedemptionEntity{
		ID:                  m.ID,
		UserID:              m.UserID,
		VoucherID:           m.VoucherID,
		PurchaseReference:   m.PurchaseReference,
		PurchaseStatus:      string(m.Status),
		PurchasedAt:         m.PurchasedAt,
		RedeemedAt:          m.RedeemedAt,
		ExpiryDate:          m.ExpiryDate,
		PurchaseCost:        m.PurchaseCost,
		IsActive:            m.IsActive,
		IsGiftVoucher:       m.IsGiftVoucher,
		RedemptionLocation:  m.RedemptionLocation,
		RedemptionNotes:     m.RedemptionNotes,
		WalletTransactionID: m.WalletTransactionID,
		UpdatedAt:           m.UpdatedAt,
	}
}

func toRedemptionModel(e *RedemptionEntity) *model.Redemption {
	if e == nil {
		return nil
	}
	return &model.Redemption{
		ID:                  e.ID,
		UserID:              e.UserID,
		VoucherID:           e.VoucherID,
		PurchaseReference:   e.PurchaseReference,
		Status:              model.PurchaseStatus(e.PurchaseStatus),
		PurchasedAt:         e.PurchasedAt,
		RedeemedAt:          e.RedeemedAt,
		ExpiryDate:          e.ExpiryDate,
		PurchaseCost:        e.PurchaseCost,
		IsActive:            e.IsActive,
		IsGiftVoucher:       e.IsGiftVoucher,
		RedemptionLocation:  e.RedemptionLocation,
		RedemptionNotes:     e.RedemptionNotes,
		WalletTransactionID: e.WalletTransactionID,
		UpdatedAt:           e.UpdatedAt,
		Voucher:             toVoucherModel(e.Voucher),
	}
}

func toRedemptionModels(entities []*RedemptionEntity) []*model.Redemption {
	if entities == nil {
		return nil
	}
	models := make([]*model.Redemption, len(entities))
	for i, e := range entities {
		models[i] = toRedemptionModel(e)
	}
	return models
}
