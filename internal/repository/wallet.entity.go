package repository

import (
	"encoding/json"
	"time"

	"github.com/nimasrn/voucher-wallet/internal/model"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type WalletEntity struct {
	ID        int64           `gorm:"primaryKey;autoIncrement;column:id"`
	UserID    int64           `gorm:"column:user_id;not null;uniqueIndex"`
	Balance   decimal.Decimal `gorm:"column:balance;type:numeric(12,2);not null;default:0"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (WalletEntity) TableName() string {
	return "wallets"
}

type WalletHistoryEntity struct {
	ID              int64           `gorm:"primaryKey;autoIncrement;column:id"`
	WalletID        int64           `gorm:"column:wallet_id;not null;index"`
	TransactionType string          `gorm:"column:transaction_type;not null"`
	Amount          decimal.Decimal `gorm:"column:amount;type:numeric(12,2);not null"`
	ReferenceNote   string          `gorm:"column:reference_note"`
	ReferenceID     string          `gorm:"column:reference_id;index"`
	Meta            datatypes.JSON  `gorm:"column:meta"`
	CreatedAt       time.Time       `gorm:"column:create_time;autoCreateTime"`
}

func (WalletHistoryEntity) TableName() string {
	return "wallet_histories"
}

func toWalletModel(e *WalletEntity) *model.Wallet {
	if e == nil {
		return nil
	}
	return &model.Wallet{
		ID:        e.ID,
		UserID:    e.UserID,
		Balance:   e.Balance,
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}
}

func newHistoryEntity(walletID int64, kind model.TransactionType, mv model.WalletMovement) (*WalletHistoryEntity, error) {
	amount := mv.Amount.Round(2)
	if kind == model.TransactionDebit {
		amount = amount.Neg()
	}
	e := &WalletHistoryEntity{
		WalletID:        walletID,
		TransactionType: string(kind),
		Amount:          amount,
		ReferenceNote:   mv.Note,
		ReferenceID:     mv.ReferenceID,
	}
	if len(mv.Meta) > 0 {
		raw, err := json.Marshal(mv.Meta)
		if err != nil {
			return nil, err
		}
		e.Meta = datatypes.JSON(raw)
	}
	return e, nil
}

func toWalletHistoryModel(e *WalletHistoryEntity) *model.WalletHistory {
	if e == nil {
		return nil
	}
	return &model.WalletHistory{
		ID:              e.ID,
		WalletID:        e.WalletID,
		TransactionType: model.TransactionType(e.TransactionType),
		Amount:          e.Amount,
		ReferenceNote:   e.ReferenceNote,
		ReferenceID:     e.ReferenceID,
		Meta:            json.RawMessage(e.Meta),
		CreatedAt:       e.CreatedAt,
	}
}

func toWalletHistoryModels(entities []*WalletHistoryEntity) []*model.WalletHistory {
	if entities == nil {
		return nil
	}
	models := make([]*model.WalletHistory, len(entities))
	for i, e := range entities {
		models[i] = toWalletHistoryModel(e)
	}
	return models
}
