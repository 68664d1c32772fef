package model

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrTitleRequired        = errors.New("title is required")
	ErrInvalidVoucherType   = errors.New("voucher_type must be one of percentage, flat, product")
	ErrInvalidPercentage    = errors.New("percentage value must be between 0 and 100")
	ErrInvalidFlatAmount    = errors.New("flat amount must be greater than 0")
	ErrProductNameRequired  = errors.New("product name is required for product vouchers")
	ErrNegativeMinBill      = errors.New("minimum bill cannot be negative")
	ErrInvalidCount         = errors.New("count must be greater than 0 when set")
	ErrForeignTypeFields    = errors.New("only the fields of the selected voucher_type may be set")
)

type VoucherType string

const (
	VoucherTypePercentage VoucherType = "percentage"
	VoucherTypeFlat       VoucherType = "flat"
	VoucherTypeProduct    VoucherType = "product"
)

func (t VoucherType) Valid() bool {
	switch t {
	case VoucherTypePercentage, VoucherTypeFlat, VoucherTypeProduct:
		return true
	}
	return false
}

const DefaultTermsConditions = `1. This voucher is valid for one-time use only.
2. The voucher cannot be exchanged for cash.
3. The voucher must be presented at the time of redemption.
4. The merchant reserves the right to refuse redemption of damaged or altered vouchers.
5. The voucher is non-transferable unless issued as a gift card.`

type Voucher struct {
	ID                int64            `json:"id"`
	MerchantID        int64            `json:"merchant_id"`
	Title             string           `json:"title"`
	Message           string           `json:"message"`
	TermsConditions   string           `json:"terms_conditions"`
	Category          string           `json:"category"`
	VoucherType       VoucherType      `json:"voucher_type"`
	Count             *int             `json:"count"`
	RedemptionCount   int              `json:"redemption_count"`
	PercentageValue   *decimal.Decimal `json:"percentage_value,omitempty"`
	PercentageMinBill *decimal.Decimal `json:"percentage_min_bill,omitempty"`
	FlatAmount        *decimal.Decimal `json:"flat_amount,omitempty"`
	FlatMinBill       *decimal.Decimal `json:"flat_min_bill,omitempty"`
	ProductName       *string          `json:"product_name,omitempty"`
	ProductMinBill    *decimal.Decimal `json:"product_min_bill,omitempty"`
	IsGiftCard        bool             `json:"is_gift_card"`
	IsActive          bool             `json:"is_active"`
	IsDelete          bool             `json:"-"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
}

// Available reports whether the voucher can still be bought at all.
func (v *Voucher) Available() bool {
	return v.IsActive && !v.IsDelete
}

// HasStock reports whether another purchase fits the capacity, given the
// number of purchase records that already hold a unit.
func (v *Voucher) HasStock(claimed int64) bool {
	if v.Count == nil {
		return true
	}
	limit := int64(*v.Count)
	return int64(v.RedemptionCount) < limit && claimed < limit
}

type VoucherCreateRequest struct {
	Title             string           `json:"title"`
	Message           string           `json:"message"`
	TermsConditions   string           `json:"terms_conditions"`
	VoucherType       VoucherType      `json:"voucher_type"`
	Count             *int             `json:"count"`
	PercentageValue   *decimal.Decimal `json:"percentage_value"`
	PercentageMinBill *decimal.Decimal `json:"percentage_min_bill"`
	FlatAmount        *decimal.Decimal `json:"flat_amount"`
	FlatMinBill       *decimal.Decimal `json:"flat_min_bill"`
	ProductName       *string          `json:"product_name"`
	ProductMinBill    *decimal.Decimal `json:"product_min_bill"`
	IsGiftCard        bool             `json:"is_gift_card"`
}

func (r *VoucherCreateRequest) Validate() error {
	r.Title = strings.TrimSpace(r.Title)
	if r.Title == "" {
		return ErrTitleRequired
	}
	if !r.VoucherType.Valid() {
		return ErrInvalidVoucherType
	}
	if r.Count != nil && *r.Count <= 0 {
		return ErrInvalidCount
	}

	percentage := r.PercentageValue != nil || r.PercentageMinBill != nil
	flat := r.FlatAmount != nil || r.FlatMinBill != nil
	product := r.ProductName != nil || r.ProductMinBill != nil

	switch r.VoucherType {
	case VoucherTypePercentage:
		if flat || product {
			return ErrForeignTypeFields
		}
		if r.PercentageValue == nil || !r.PercentageValue.IsPositive() || r.PercentageValue.GreaterThan(decimal.NewFromInt(100)) {
			return ErrInvalidPercentage
		}
		return nonNegative(r.PercentageMinBill)
	case VoucherTypeFlat:
		if percentage || product {
			return ErrForeignTypeFields
		}
		if r.FlatAmount == nil || !r.FlatAmount.IsPositive() {
			return ErrInvalidFlatAmount
		}
		return nonNegative(r.FlatMinBill)
	default:
		if percentage || flat {
			return ErrForeignTypeFields
		}
		if r.ProductName == nil || strings.TrimSpace(*r.ProductName) == "" {
			return ErrProductNameRequired
		}
		return nonNegative(r.ProductMinBill)
	}
}

func nonNegative(d *decimal.Decimal) error {
	if d != nil && d.IsNegative() {
		return ErrNegativeMinBill
	}
	return nil
}

type VoucherFilter struct {
	MerchantID       *int64
	Category         *string
	VoucherType      *VoucherType
	IncludeGiftCards bool
	IncludeInactive  bool
	Limit            int
	Offset           int
}
