package model

import (
	"errors"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrRedemptionExpired         = errors.New("voucher has expired")
	ErrRedemptionAlreadyRedeemed = errors.New("voucher has already been redeemed")
	ErrRedemptionNotRedeemable   = errors.New("voucher cannot be redeemed")
	ErrRedemptionTerminal        = errors.New("purchase is already in a final state")
)

type PurchaseStatus string

const (
	StatusPurchased PurchaseStatus = "purchased"
	StatusRedeemed  PurchaseStatus = "redeemed"
	StatusExpired   PurchaseStatus = "expired"
	StatusCancelled PurchaseStatus = "cancelled"
	StatusRefunded  PurchaseStatus = "refunded"
)

// ClaimingStatuses hold a unit of voucher stock.
var ClaimingStatuses = []PurchaseStatus{StatusPurchased, StatusRedeemed, StatusExpired}

func (s PurchaseStatus) Valid() bool {
	switch s {
	case StatusPurchased, StatusRedeemed, StatusExpired, StatusCancelled, StatusRefunded:
		return true
	}
	return false
}

func (s PurchaseStatus) Terminal() bool {
	return s.Valid() && s != StatusPurchased
}

const AboutToExpireDays = 7

type Redemption struct {
	ID                  int64           `json:"id"`
	UserID              int64           `json:"user_id"`
	VoucherID           int64           `json:"voucher_id"`
	PurchaseReference   string          `json:"purchase_reference"`
	Status              PurchaseStatus  `json:"status"`
	PurchasedAt         time.Time       `json:"purchased_at"`
	RedeemedAt          *time.Time      `json:"redeemed_at"`
	ExpiryDate          time.Time       `json:"expiry_date"`
	PurchaseCost        decimal.Decimal `json:"purchase_cost"`
	IsActive            bool            `json:"is_active"`
	IsGiftVoucher       bool            `json:"is_gift_voucher"`
	RedemptionLocation  string          `json:"redemption_location,omitempty"`
	RedemptionNotes     string          `json:"redemption_notes,omitempty"`
	WalletTransactionID string          `json:"wallet_transaction_id,omitempty"`
	UpdatedAt           time.Time       `json:"updated_at"`

	Voucher *Voucher `json:"voucher,omitempty"`
}

func (r *Redemption) IsExpired(now time.Time) bool {
	return now.After(r.ExpiryDate)
}

// RemainingDays is zero for expired records and never negative.
func (r *Redemption) RemainingDays(now time.Time) int {
	if r.IsExpired(now) {
		return 0
	}
	return int(math.Floor(r.ExpiryDate.Sub(now).Hours() / 24))
}

func (r *Redemption) IsAboutToExpire(now time.Time) bool {
	if r.Status != StatusPurchased || r.IsExpired(now) {
		return false
	}
	return r.RemainingDays(now) <= AboutToExpireDays
}

// RedeemBlocker returns nil when the record can be redeemed at now.
func (r *Redemption) RedeemBlocker(now time.Time) error {
	switch {
	case r.RedeemedAt != nil || r.Status == StatusRedeemed:
		return ErrRedemptionAlreadyRedeemed
	case r.Status == StatusExpired || r.IsExpired(now):
		return ErrRedemptionExpired
	case r.Status != StatusPurchased || !r.IsActive:
		return ErrRedemptionNotRedeemable
	}
	return nil
}

func (r *Redemption) CanRedeem(now time.Time) bool {
	return r.RedeemBlocker(now) == nil
}

// ReleaseBlocker guards cancel and refund: only a live purchase can be undone.
func (r *Redemption) ReleaseBlocker() error {
	if r.RedeemedAt != nil || r.Status == StatusRedeemed {
		return ErrRedemptionAlreadyRedeemed
	}
	if r.Status.Terminal() {
		return ErrRedemptionTerminal
	}
	return nil
}

func (r *Redemption) MarkRedeemed(now time.Time, location, notes string) {
	r.Status = StatusRedeemed
	r.RedeemedAt = &now
	r.IsActive = false
	r.RedemptionLocation = location
	r.AppendNote(notes)
	r.UpdatedAt = now
}

func (r *Redemption) MarkCancelled(now time.Time, reason string) {
	r.Status = StatusCancelled
	r.IsActive = false
	r.AppendNote("Cancelled: " + reason)
	r.UpdatedAt = now
}

func (r *Redemption) MarkRefunded(now time.Time, reason string) {
	r.Status = StatusRefunded
	r.IsActive = false
	r.AppendNote("Refunded: " + reason)
	r.UpdatedAt = now
}

func (r *Redemption) AppendNote(note string) {
	if note == "" {
		return
	}
	if r.RedemptionNotes == "" {
		r.RedemptionNotes = note
		return
	}
	r.RedemptionNotes += " | " + note
}

type RedemptionFilter struct {
	UserID    int64
	VoucherID *int64
	Statuses  []PurchaseStatus
	From      *time.Time
	To        *time.Time
	Limit     int
	Offset    int
}

type PurchaseSummary struct {
	TotalPurchases int64           `json:"total_purchases"`
	TotalSpent     decimal.Decimal `json:"total_spent"`
	Active         int64           `json:"active"`
	Redeemed       int64           `json:"redeemed"`
	Expired        int64           `json:"expired"`
	Cancelled      int64           `json:"cancelled"`
	Refunded       int64           `json:"refunded"`
	TotalRefunded  decimal.Decimal `json:"total_refunded"`
	GiftVouchers   int64           `json:"gift_vouchers"`
}

type PurchaseResult struct {
	VoucherID         int64           `json:"voucher_id"`
	VoucherTitle      string          `json:"voucher_title"`
	PurchaseCost      decimal.Decimal `json:"purchase_cost"`
	RemainingBalance  decimal.Decimal `json:"remaining_balance"`
	RedemptionID      int64           `json:"redemption_id"`
	PurchaseReference string          `json:"purchase_reference"`
	ExpiryDate        time.Time       `json:"expiry_date"`
	TransactionID     string          `json:"transaction_id"`
	IsGiftVoucher     bool            `json:"is_gift_voucher"`
}

type RefundResult struct {
	Redemption   *Redemption     `json:"redemption"`
	RefundAmount decimal.Decimal `json:"refund_amount"`
	NewBalance   decimal.Decimal `json:"new_balance"`
}

type ExpiryPreview struct {
	Count  int64         `json:"count"`
	Sample []*Redemption `json:"sample"`
}
