package repository

import (
	"context"
	"errors"
	"time"

	"github.com/nimasrn/voucher-wallet/internal/model"
	"github.com/nimasrn/voucher-wallet/pkg/pg"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrRedemptionNotFound = errors.New("purchase record not found")
	ErrRedemptionExists   = errors.New("voucher already purchased by user")
)

type RedemptionRepository struct {
	*pg.DB
}

func NewRedemptionRepository(db *pg.DB) *RedemptionRepository {
	return &RedemptionRepository{
		db,
	}
}

// Create inserts a purchase record. The (user, voucher) unique index turns a
// lost race into ErrRedemptionExists.
func (r *RedemptionRepository) Create(ctx context.Context, m *model.Redemption) (*model.Redemption, error) {
	entity := toRedemptionEntity(m)
	if err := r.Write(ctx).Omit("Voucher").Create(entity).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrRedemptionExists
		}
		return nil, err
	}
	return toRedemptionModel(entity), nil
}

func (r *RedemptionRepository) GetByID(ctx context.Context, id int64) (*model.Redemption, error) {
	var entity RedemptionEntity
	err := r.Read(ctx).Preload("Voucher").Where("id = ?", id).First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRedemptionNotFound
		}
		return nil, err
	}
	return toRedemptionModel(&entity), nil
}

func (r *RedemptionRepository) GetByReference(ctx context.Context, ref string) (*model.Redemption, error) {
	var entity RedemptionEntity
	err := r.Read(ctx).Preload("Voucher").Where("purchase_reference = ?", ref).First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRedemptionNotFound
		}
		return nil, err
	}
	return toRedemptionModel(&entity), nil
}

// LockByID locks the record and returns it with its voucher attached.
func (r *RedemptionRepository) LockByID(ctx context.Context, id int64) (*model.Redemption, error) {
	var entity RedemptionEntity
	err := r.Write(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRedemptionNotFound
		}
		return nil, err
	}

	var voucher VoucherEntity
	if err := r.Write(ctx).Where("id = ?", entity.VoucherID).First(&voucher).Error; err == nil {
		entity.Voucher = &voucher
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	return toRedemptionModel(&entity), nil
}

func (r *RedemptionRepository) ExistsForUser(ctx context.Context, userID, voucherID int64) (bool, error) {
	var n int64
	err := r.Read(ctx).
		Model(&RedemptionEntity{}).
		Where("user_id = ? AND voucher_id = ?", userID, voucherID).
		Count(&n).
		Error
	return n > 0, err
}

// CountClaimed counts records that still hold a unit of the voucher's stock.
func (r *RedemptionRepository) CountClaimed(ctx context.Context, voucherID int64) (int64, error) {
	var n int64
	err := r.Read(ctx).
		Model(&RedemptionEntity{}).
		Where("voucher_id = ? AND purchase_status IN ?", voucherID, statusStrings(model.ClaimingStatuses)).
		Count(&n).
		Error
	return n, err
}

// SaveTransition persists a state change. The previous status is part of the
// WHERE clause, so a record that moved on in the meantime is not overwritten.
func (r *RedemptionRepository) SaveTransition(ctx context.Context, m *model.Redemption, from model.PurchaseStatus) error {
	result := r.Write(ctx).
		Model(&RedemptionEntity{}).
		Where("id = ? AND purchase_status = ?", m.ID, string(from)).
		Updates(map[string]any{
			"purchase_status":     string(m.Status),
			"redeemed_at":         m.RedeemedAt,
			"is_active":           m.IsActive,
			"redemption_location": m.RedemptionLocation,
			"redemption_notes":    m.RedemptionNotes,
			"updated_at":          m.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRedemptionNotFound
	}
	return nil
}

func dueQuery(db *gorm.DB, now time.Time) *gorm.DB {
	return db.Model(&RedemptionEntity{}).
		Where("purchase_status = ? AND redeemed_at IS NULL AND expiry_date < ?", string(model.StatusPurchased), now)
}

// LockDue locks every overdue live record so the following ExpireDue in the
// same transaction updates exactly this set.
func (r *RedemptionRepository) LockDue(ctx context.Context, now time.Time) ([]*model.Redemption, error) {
	var entities []*RedemptionEntity
	err := dueQuery(r.Write(ctx), now).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Order("id ASC").
		Find(&entities).
		Error
	if err != nil {
		return nil, err
	}
	return toRedemptionModels(entities), nil
}

// ExpireDue moves every overdue live record to expired in one statement and
// appends note to its notes.
func (r *RedemptionRepository) ExpireDue(ctx context.Context, now time.Time, note string) (int64, error) {
	result := dueQuery(r.Write(ctx), now).
		Updates(map[string]any{
			"purchase_status": string(model.StatusExpired),
			"is_active":       false,
			"updated_at":      now,
			"redemption_notes": gorm.Expr(
				"CASE WHEN redemption_notes IS NULL OR redemption_notes = '' THEN ? ELSE redemption_notes || ' | ' || ? END",
				note, note,
			),
		})
	return result.RowsAffected, result.Error
}

func (r *RedemptionRepository) CountDue(ctx context.Context, now time.Time) (int64, error) {
	var n int64
	err := dueQuery(r.Read(ctx), now).Count(&n).Error
	return n, err
}

func (r *RedemptionRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]*model.Redemption, error) {
	limit, _ = page(limit, 0)
	var entities []*RedemptionEntity
	err := dueQuery(r.Read(ctx), now).
		Order("expiry_date ASC, id ASC").
		Limit(limit).
		Find(&entities).
		Error
	if err != nil {
		return nil, err
	}
	return toRedemptionModels(entities), nil
}

func (r *RedemptionRepository) ListByUser(ctx context.Context, f model.RedemptionFilter) ([]*model.Redemption, int64, error) {
	q := r.Read(ctx).Model(&RedemptionEntity{}).Where("user_id = ?", f.UserID)

	if f.VoucherID != nil {
		q = q.Where("voucher_id = ?", *f.VoucherID)
	}
	if len(f.Statuses) > 0 {
		q = q.Where("purchase_status IN ?", statusStrings(f.Statuses))
	}
	if f.From != nil {
		q = q.Where("purchased_at >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("purchased_at < ?", *f.To)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit, offset := page(f.Limit, f.Offset)
	var entities []*RedemptionEntity
	err := q.Preload("Voucher").
		Order("purchased_at DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&entities).
		Error
	if err != nil {
		return nil, 0, err
	}
	return toRedemptionModels(entities), total, nil
}

type statusAggregate struct {
	PurchaseStatus string
	N              int64
	Total          decimal.NullDecimal
	Gifts          int64
}

func (r *RedemptionRepository) Summary(ctx context.Context, userID int64) (*model.PurchaseSummary, error) {
	var rows []statusAggregate
	err := r.Read(ctx).
		Model(&RedemptionEntity{}).
		Select("purchase_status, COUNT(*) AS n, SUM(purchase_cost) AS total, "+
			"SUM(CASE WHEN is_gift_voucher THEN 1 ELSE 0 END) AS gifts").
		Where("user_id = ?", userID).
		Group("purchase_status").
		Scan(&rows).
		Error
	if err != nil {
		return nil, err
	}

	s := &model.PurchaseSummary{TotalSpent: decimal.Zero, TotalRefunded: decimal.Zero}
	for _, row := range rows {
		total := decimal.Zero
		if row.Total.Valid {
			total = row.Total.Decimal.Round(2)
		}
		s.TotalPurchases += row.N
		s.GiftVouchers += row.Gifts

		switch model.PurchaseStatus(row.PurchaseStatus) {
		case model.StatusPurchased:
			s.Active = row.N
		case model.StatusRedeemed:
			s.Redeemed = row.N
		case model.StatusExpired:
			s.Expired = row.N
		case model.StatusCancelled:
			s.Cancelled = row.N
		case model.StatusRefunded:
			s.Refunded = row.N
			s.TotalRefunded = total
			continue
		}
		s.TotalSpent = s.TotalSpent.Add(total)
	}
	return s, nil
}

func statusStrings(statuses []model.PurchaseStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
