package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type EventType string

const (
	EventVoucherPurchased EventType = "voucher.purchased"
	EventVoucherRedeemed  EventType = "voucher.redeemed"
	EventVoucherCancelled EventType = "voucher.cancelled"
	EventVoucherRefunded  EventType = "voucher.refunded"
	EventVoucherExpired   EventType = "voucher.expired"
)

// VoucherEvent is published after a lifecycle transition commits.
type VoucherEvent struct {
	ID                string          `json:"id"`
	Type              EventType       `json:"type"`
	UserID            int64           `json:"user_id"`
	VoucherID         int64           `json:"voucher_id"`
	RedemptionID      int64           `json:"redemption_id"`
	PurchaseReference string          `json:"purchase_reference"`
	Amount            decimal.Decimal `json:"amount"`
	Status            PurchaseStatus  `json:"status"`
	OccurredAt        time.Time       `json:"occurred_at"`
}
