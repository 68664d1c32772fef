package model

import "time"

const (
	SettingVoucherCost  = "voucher_cost"
	SettingGiftCardCost = "gift_card_cost"
)

type SiteSetting struct {
	Key         string    `json:"key" yaml:"key"`
	Value       string    `json:"value" yaml:"value"`
	Description string    `json:"description,omitempty" yaml:"description"`
	UpdatedAt   time.Time `json:"updated_at" yaml:"-"`
}
