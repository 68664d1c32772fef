package repository

import (
	"context"
	"errors"

	"github.com/nimasrn/voucher-wallet/internal/model"
	"github.com/nimasrn/voucher-wallet/pkg/pg"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrWalletNotFound      = errors.New("wallet not found")
	ErrWalletExists        = errors.New("wallet already exists for user")
	ErrInsufficientBalance = errors.New("insufficient balance")
)

type WalletRepository struct {
	*pg.DB
}

func NewWalletRepository(db *pg.DB) *WalletRepository {
	return &WalletRepository{
		db,
	}
}

func (r *WalletRepository) Create(ctx context.Context, userID int64) (*model.Wallet, error) {
	entity := &WalletEntity{UserID: userID, Balance: decimal.Zero}
	if err := r.Write(ctx).Create(entity).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrWalletExists
		}
		return nil, err
	}
	return toWalletModel(entity), nil
}

func (r *WalletRepository) GetByUserID(ctx context.Context, userID int64) (*model.Wallet, error) {
	var entity WalletEntity
	err := r.Read(ctx).Where("user_id = ?", userID).First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWalletNotFound
		}
		return nil, err
	}
	return toWalletModel(&entity), nil
}

// LockByUserID takes the row lock on the user's wallet. It must run inside
// WithinTransaction for the lock to be held until commit.
func (r *WalletRepository) LockByUserID(ctx context.Context, userID int64) (*model.Wallet, error) {
	var entity WalletEntity
	err := r.Write(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWalletNotFound
		}
		return nil, err
	}
	return toWalletModel(&entity), nil
}

// Credit adds to the balance and appends the matching ledger line in one unit.
func (r *WalletRepository) Credit(ctx context.Context, walletID int64, mv model.WalletMovement) (*model.Wallet, *model.WalletHistory, error) {
	if err := mv.Validate(); err != nil {
		return nil, nil, err
	}
	return r.move(ctx, walletID, model.TransactionCredit, mv)
}

// Deduct subtracts from the balance. The update is guarded by balance >= amount
// so the balance can never go negative even without a prior lock.
func (r *WalletRepository) Deduct(ctx context.Context, walletID int64, mv model.WalletMovement) (*model.Wallet, *model.WalletHistory, error) {
	if err := mv.Validate(); err != nil {
		return nil, nil, err
	}
	return r.move(ctx, walletID, model.TransactionDebit, mv)
}

func (r *WalletRepository) move(ctx context.Context, walletID int64, kind model.TransactionType, mv model.WalletMovement) (*model.Wallet, *model.WalletHistory, error) {
	var (
		wallet  WalletEntity
		history *WalletHistoryEntity
	)
	amount := mv.Amount.Round(2)

	err := r.WithinTransaction(ctx, func(ctx context.Context) error {
		err := r.Write(ctx).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", walletID).
			First(&wallet).
			Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrWalletNotFound
			}
			return err
		}

		q := r.Write(ctx).Model(&WalletEntity{}).Where("id = ?", walletID)
		expr := gorm.Expr("balance + ?", amount)
		if kind == model.TransactionDebit {
			if wallet.Balance.LessThan(amount) {
				return ErrInsufficientBalance
			}
			q = q.Where("balance >= ?", amount)
			expr = gorm.Expr("balance - ?", amount)
		}

		result := q.Update("balance", expr)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrInsufficientBalance
		}

		history, err = newHistoryEntity(walletID, kind, mv)
		if err != nil {
			return err
		}
		if err := r.Write(ctx).Create(history).Error; err != nil {
			return err
		}

		return r.Write(ctx).Where("id = ?", walletID).First(&wallet).Error
	})
	if err != nil {
		return nil, nil, err
	}
	return toWalletModel(&wallet), toWalletHistoryModel(history), nil
}

func (r *WalletRepository) History(ctx context.Context, f model.WalletHistoryFilter) ([]*model.WalletHistory, int64, error) {
	q := r.Read(ctx).Model(&WalletHistoryEntity{}).Where("wallet_id = ?", f.WalletID)

	if f.Type != nil {
		q = q.Where("transaction_type = ?", string(*f.Type))
	}
	if f.ReferenceID != nil && *f.ReferenceID != "" {
		q = q.Where("reference_id = ?", *f.ReferenceID)
	}
	if f.From != nil {
		q = q.Where("create_time >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("create_time < ?", *f.To)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	order := "create_time DESC, id DESC"
	if f.Asc {
		order = "create_time ASC, id ASC"
	}
	limit, offset := page(f.Limit, f.Offset)

	var entities []*WalletHistoryEntity
	if err := q.Order(order).Limit(limit).Offset(offset).Find(&entities).Error; err != nil {
		return nil, 0, err
	}
	return toWalletHistoryModels(entities), total, nil
}

// SumHistory totals every ledger line of the wallet.
func (r *WalletRepository) SumHistory(ctx context.Context, walletID int64) (decimal.Decimal, error) {
	var sum decimal.NullDecimal
	err := r.Read(ctx).
		Model(&WalletHistoryEntity{}).
		Select("SUM(amount)").
		Where("wallet_id = ?", walletID).
		Row().
		Scan(&sum)
	if err != nil {
		return decimal.Zero, err
	}
	if !sum.Valid {
		return decimal.Zero, nil
	}
	return sum.Decimal.Round(2), nil
}

func page(limit, offset int) (int, int) {
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
