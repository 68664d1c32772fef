package repository

import (
	"time"

	"github.com/nimasrn/voucher-wallet/internal/model"
)

type UserEntity struct {
	ID         int64     `gorm:"primaryKey;autoIncrement;column:id"`
	Username   string    `gorm:"column:username;not null;uniqueIndex"`
	Email      string    `gorm:"column:email"`
	IsMerchant bool      `gorm:"column:is_merchant;not null"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (UserEntity) TableName() string {
	return "users"
}

type MerchantEntity struct {
	ID           int64     `gorm:"primaryKey;autoIncrement;column:id"`
	UserID       int64     `gorm:"column:user_id;not null;uniqueIndex"`
	BusinessName string    `gorm:"column:business_name;not null"`
	Category     string    `gorm:"column:category;not null"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (MerchantEntity) TableName() string {
	return "merchant_profiles"
}

func toUserModel(e *UserEntity) *model.User {
	if e == nil {
		return nil
	}
	return &model.User{
		ID:         e.ID,
		Username:   e.Username,
		Email:      e.Email,
		IsMerchant: e.IsMerchant,
		CreatedAt:  e.CreatedAt,
	}
}

func toMerchantModel(e *MerchantEntity) *model.MerchantProfile {
	if e == nil {
		return nil
	}
	return &model.MerchantProfile{
		ID:           e.ID,
		UserID:       e.UserID,
		BusinessName: e.BusinessName,
		Category:     e.Category,
		CreatedAt:    e.CreatedAt,
	}
}
