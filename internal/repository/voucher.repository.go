package repository

import (
	"context"
	"errors"

	"github.com/nimasrn/voucher-wallet/internal/model"
	"github.com/nimasrn/voucher-wallet/pkg/pg"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrVoucherNotFound  = errors.New("voucher not found")
	ErrVoucherExhausted = errors.New("voucher redemption limit reached")
)

type VoucherRepository struct {
	*pg.DB
}

func NewVoucherRepository(db *pg.DB) *VoucherRepository {
	return &VoucherRepository{
		db,
	}
}

func (r *VoucherRepository) Create(ctx context.Context, v *model.Voucher) (*model.Voucher, error) {
	entity := toVoucherEntity(v)
	if err := r.Write(ctx).Create(entity).Error; err != nil {
		return nil, err
	}
	return toVoucherModel(entity), nil
}

// GetByID ignores soft-deleted vouchers. Inactive ones are returned so callers
// can tell them apart.
func (r *VoucherRepository) GetByID(ctx context.Context, id int64) (*model.Voucher, error) {
	var entity VoucherEntity
	err := r.Read(ctx).Where("id = ? AND is_delete = ?", id, false).First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrVoucherNotFound
		}
		return nil, err
	}
	return toVoucherModel(&entity), nil
}

func (r *VoucherRepository) LockByID(ctx context.Context, id int64) (*model.Voucher, error) {
	var entity VoucherEntity
	err := r.Write(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ? AND is_delete = ?", id, false).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrVoucherNotFound
		}
		return nil, err
	}
	return toVoucherModel(&entity), nil
}

// IncrementRedemptionCount bumps the counter in a single UPDATE. The cap is
// part of the WHERE clause, so a limited voucher never passes its count.
func (r *VoucherRepository) IncrementRedemptionCount(ctx context.Context, id int64) error {
	result := r.Write(ctx).
		Model(&VoucherEntity{}).
		Where("id = ?", id).
		Where("count IS NULL OR redemption_count < count").
		Update("redemption_count", gorm.Expr("redemption_count + 1"))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrVoucherExhausted
	}
	return nil
}

// List returns the public catalog: active, not deleted, and gift cards only
// when asked for.
func (r *VoucherRepository) List(ctx context.Context, f model.VoucherFilter) ([]*model.Voucher, int64, error) {
	q := r.Read(ctx).Model(&VoucherEntity{}).Where("is_delete = ?", false)

	if !f.IncludeInactive {
		q = q.Where("is_active = ?", true)
	}
	if !f.IncludeGiftCards {
		q = q.Where("is_gift_card = ?", false)
	}
	if f.MerchantID != nil {
		q = q.Where("merchant_id = ?", *f.MerchantID)
	}
	if f.Category != nil && *f.Category != "" {
		q = q.Where("category = ?", *f.Category)
	}
	if f.VoucherType != nil {
		q = q.Where("voucher_type = ?", string(*f.VoucherType))
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit, offset := page(f.Limit, f.Offset)
	var entities []*VoucherEntity
	if err := q.Order("created_at DESC, id DESC").Limit(limit).Offset(offset).Find(&entities).Error; err != nil {
		return nil, 0, err
	}
	return toVoucherModels(entities), total, nil
}

func (r *VoucherRepository) Popular(ctx context.Context, limit int) ([]*model.Voucher, error) {
	limit, _ = page(limit, 0)
	var entities []*VoucherEntity
	err := r.Read(ctx).
		Where("is_delete = ? AND is_active = ? AND is_gift_card = ?", false, true, false).
		Where("redemption_count > 0").
		Order("redemption_count DESC, id ASC").
		Limit(limit).
		Find(&entities).
		Error
	if err != nil {
		return nil, err
	}
	return toVoucherModels(entities), nil
}

// SoftDelete hides the voucher while keeping it for existing purchase records.
func (r *VoucherRepository) SoftDelete(ctx context.Context, id, merchantID int64) error {
	result := r.Write(ctx).
		Model(&VoucherEntity{}).
		Where("id = ? AND merchant_id = ? AND is_delete = ?", id, merchantID, false).
		Updates(map[string]any{"is_delete": true, "is_active": false})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrVoucherNotFound
	}
	return nil
}
