package fixtures

import (
	"github.com/nimasrn/voucher-wallet/internal/model"
	"github.com/shopspring/decimal"
)

var (
	TestUser1 = model.UserCreateRequest{
		Username: "alice",
		Email:    "alice@example.com",
	}

	TestUser2 = model.UserCreateRequest{
		Username: "bob",
		Email:    "bob@example.com",
	}

	TestMerchantOwner = model.UserCreateRequest{
		Username: "corner-cafe",
		Email:    "owner@cornercafe.example",
	}

	TestMerchant = model.MerchantCreateRequest{
		BusinessName: "Corner Cafe",
		Category:     "food",
	}

	TestSettings = []model.SiteSetting{
		{Key: model.SettingVoucherCost, Value: "10.00", Description: "voucher creation fee"},
		{Key: model.SettingGiftCardCost, Value: "25.00", Description: "gift card creation fee"},
	}
)

func NewFlatVoucherRequest(title string, amount int64, count *int) model.VoucherCreateRequest {
	flat := decimal.NewFromInt(amount)
	return model.VoucherCreateRequest{
		Title:       title,
		Message:     "Enjoy " + title,
		VoucherType: model.VoucherTypeFlat,
		FlatAmount:  &flat,
		Count:       count,
	}
}

func NewPercentageVoucherRequest(title string, percent int64) model.VoucherCreateRequest {
	p := decimal.NewFromInt(percent)
	return model.VoucherCreateRequest{
		Title:           title,
		VoucherType:     model.VoucherTypePercentage,
		PercentageValue: &p,
	}
}

func NewGiftCardRequest(title string, amount int64) model.VoucherCreateRequest {
	req := NewFlatVoucherRequest(title, amount, nil)
	req.IsGiftCard = true
	return req
}
