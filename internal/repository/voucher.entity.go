package repository

import (
	"time"

	"github.com/nimasrn/voucher-wallet/internal/model"
	"github.com/shopspring/decimal"
)

type VoucherEntity struct {
	ID                int64            `gorm:"primaryKey;autoIncrement;column:id"`
	MerchantID        int64            `gorm:"column:merchant_id;not null;index"`
	Title             string           `gorm:"column:title;not null"`
	Message           string           `gorm:"column:message"`
	TermsConditions   string           `gorm:"column:terms_conditions"`
	Category          string           `gorm:"column:category;index"`
	VoucherType       string           `gorm:"column:voucher_type;not null"`
	Count             *int             `gorm:"column:count"`
	RedemptionCount   int              `gorm:"column:redemption_count;not null;default:0"`
	PercentageValue   *decimal.Decimal `gorm:"column:percentage_value;type:numeric(5,2)"`
	PercentageMinBill *decimal.Decimal `gorm:"column:percentage_min_bill;type:numeric(12,2)"`
	FlatAmount        *decimal.Decimal `gorm:"column:flat_amount;type:numeric(12,2)"`
	FlatMinBill       *decimal.Decimal `gorm:"column:flat_min_bill;type:numeric(12,2)"`
	ProductName       *string          `gorm:"column:product_name"`
	ProductMinBill    *decimal.Decimal `gorm:"column:product_min_bill;type:numeric(12,2)"`
	IsGiftCard        bool             `gorm:"column:is_gift_card;not null;default:false"`
	IsActive          bool             `gorm:"column:is_active;not null"`
	IsDelete          bool             `gorm:"column:is_delete;not null;default:false"`
	CreatedAt         time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

func (VoucherEntity) TableName() string {
	return "vouchers"
}

func toVoucherEntity(m *model.Voucher) *VoucherEntity {
	if m == nil {
		return nil
	}
	return &VoucherEntity{
		ID:                m.ID,
		MerchantID:        m.MerchantID,
		Title:             m.Title,
		Message:           m.Message,
		TermsConditions:   m.TermsConditions,
		Category:          m.Category,
		VoucherType:       string(m.VoucherType),
		Count:             m.Count,
		RedemptionCount:   m.RedemptionCount,
		PercentageValue:   m.PercentageValue,
		PercentageMinBill: m.PercentageMinBill,
		FlatAmount:        m.FlatAmount,
		FlatMinBill:       m.FlatMinBill,
		ProductName:       m.ProductName,
		ProductMinBill:    m.ProductMinBill,
		IsGiftCard:        m.IsGiftCard,
		IsActive:          m.IsActive,
		IsDelete:          m.IsDelete,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}

func toVoucherModel(e *VoucherEntity) *model.Voucher {
	if e == nil {
		return nil
	}
	return &model.Voucher{
		ID:                e.ID,
		MerchantID:        e.MerchantID,
		Title:             e.Title,
		Message:           e.Message,
		TermsConditions:   e.TermsConditions,
		Category:          e.Category,
		VoucherType:       model.VoucherType(e.VoucherType),
		Count:             e.Count,
		RedemptionCount:   e.RedemptionCount,
		PercentageValue:   e.PercentageValue,
		PercentageMinBill: e.PercentageMinBill,
		FlatAmount:        e.FlatAmount,
		FlatMinBill:       e.FlatMinBill,
		ProductName:       e.ProductName,
		ProductMinBill:    e.ProductMinBill,
		IsGiftCard:        e.IsGiftCard,
		IsActive:          e.IsActive,
		IsDelete:          e.IsDelete,
		CreatedAt:         e.CreatedAt,
		UpdatedAt:         e.UpdatedAt,
	}
}

func toVoucherModels(entities []*VoucherEntity) []*model.Voucher {
	if entities == nil {
		return nil
	}
	models := make([]*model.Voucher, len(entities))
	for i, e := range entities {
		models[i] = toVoucherModel(e)
	}
	return models
}
