package repository

import (
	"context"
	"errors"

	"github.com/nimasrn/voucher-wallet/internal/model"
	"github.com/nimasrn/voucher-wallet/pkg/pg"
	"gorm.io/gorm"
)

var (
	ErrUserNotFound     = errors.New("user not found")
	ErrUserExists       = errors.New("username already taken")
	ErrMerchantNotFound = errors.New("merchant profile not found")
	ErrMerchantExists   = errors.New("user already has a merchant profile")
)

type UserRepository struct {
	*pg.DB
}

func NewUserRepository(db *pg.DB) *UserRepository {
	return &UserRepository{
		db,
	}
}

func (r *UserRepository) Create(ctx context.Context, req model.UserCreateRequest) (*model.User, error) {
	entity := &UserEntity{Username: req.Username, Email: req.Email}
	if err := r.Write(ctx).Create(entity).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrUserExists
		}
		return nil, err
	}
	return toUserModel(entity), nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*model.User, error) {
	var entity UserEntity
	if err := r.Read(ctx).Where("id = ?", id).First(&entity).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return toUserModel(&entity), nil
}

func (r *UserRepository) MarkMerchant(ctx context.Context, id int64) error {
	result := r.Write(ctx).Model(&UserEntity{}).Where("id = ?", id).Update("is_merchant", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

type MerchantRepository struct {
	*pg.DB
}

func NewMerchantRepository(db *pg.DB) *MerchantRepository {
	return &MerchantRepository{
		db,
	}
}

func (r *MerchantRepository) Create(ctx context.Context, userID int64, req model.MerchantCreateRequest) (*model.MerchantProfile, error) {
	entity := &MerchantEntity{UserID: userID, BusinessName: req.BusinessName, Category: req.Category}
	if err := r.Write(ctx).Create(entity).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrMerchantExists
		}
		return nil, err
	}
	return toMerchantModel(entity), nil
}

func (r *MerchantRepository) GetByUserID(ctx context.Context, userID int64) (*model.MerchantProfile, error) {
	var entity MerchantEntity
	if err := r.Read(ctx).Where("user_id = ?", userID).First(&entity).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMerchantNotFound
		}
		return nil, err
	}
	return toMerchantModel(&entity), nil
}
