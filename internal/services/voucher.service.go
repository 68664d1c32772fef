package services

import (
	"context"
	"errors"
	"strings"

	"github.com/nimasrn/voucher-wallet/internal/model"
	"github.com/nimasrn/voucher-wallet/internal/repository"
	"github.com/nimasrn/voucher-wallet/pkg/logger"
)

const popularLimit = 10

type VoucherService struct {
	tx        Transactor
	vouchers  VoucherRepository
	wallets   WalletRepository
	merchants MerchantRepository
	pricing   PriceResolver
}

func NewVoucherService(tx Transactor, vouchers VoucherRepository, wallets WalletRepository, merchants MerchantRepository, pricing PriceResolver) *VoucherService {
	return &VoucherService{
		tx:        tx,
		vouchers:  vouchers,
		wallets:   wallets,
		merchants: merchants,
		pricing:   pricing,
	}
}

// Create lists a new voucher for the merchant owned by merchantUserID. The
// listing fee is taken from the merchant's wallet in the same transaction.
func (s *VoucherService) Create(ctx context.Context, merchantUserID int64, req model.VoucherCreateRequest) (*model.Voucher, error) {
	if err := req.Validate(); err != nil {
		return nil, invalidInput(err)
	}

	var created *model.Voucher
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		merchant, err := s.merchantFor(ctx, merchantUserID)
		if err != nil {
			return err
		}

		wallet, err := s.wallets.LockByUserID(ctx, merchantUserID)
		if err != nil {
			return walletError("create voucher", err)
		}

		fee := s.pricing.Resolve(ctx, req.IsGiftCard)
		if !wallet.CanAfford(fee) {
			return ErrInsufficientBalance
		}
		if _, _, err := s.wallets.Deduct(ctx, wallet.ID, model.WalletMovement{
			Amount:      fee,
			Note:        "Voucher Creation",
			ReferenceID: req.Title,
		}); err != nil {
			return walletError("create voucher", err)
		}

		terms := strings.TrimSpace(req.TermsConditions)
		if terms == "" {
			terms = model.DefaultTermsConditions
		}

		created, err = s.vouchers.Create(ctx, &model.Voucher{
			MerchantID:        merchant.ID,
			Title:             req.Title,
			Message:           req.Message,
			TermsConditions:   terms,
			Category:          merchant.Category,
			VoucherType:       req.VoucherType,
			Count:             req.Count,
			PercentageValue:   req.PercentageValue,
			PercentageMinBill: req.PercentageMinBill,
			FlatAmount:        req.FlatAmount,
			FlatMinBill:       req.FlatMinBill,
			ProductName:       req.ProductName,
			ProductMinBill:    req.ProductMinBill,
			IsGiftCard:        req.IsGiftCard,
			IsActive:          true,
		})
		return err
	})
	if err != nil {
		return nil, ensure("create voucher", err)
	}

	logger.Info("voucher created", "voucher_id", created.ID, "merchant_id", created.MerchantID)
	return created, nil
}

// Deactivate soft deletes a voucher. Only its merchant may do that.
func (s *VoucherService) Deactivate(ctx context.Context, merchantUserID, voucherID int64) error {
	merchant, err := s.merchantFor(ctx, merchantUserID)
	if err != nil {
		return ensure("deactivate voucher", err)
	}
	if err := s.vouchers.SoftDelete(ctx, voucherID, merchant.ID); err != nil {
		if errors.Is(err, repository.ErrVoucherNotFound) {
			return newError(KindNotFound, "voucher not found")
		}
		return ensure("deactivate voucher", err)
	}
	return nil
}

// Get returns a voucher that is visible in the catalog.
func (s *VoucherService) Get(ctx context.Context, id int64) (*model.Voucher, error) {
	v, err := s.vouchers.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrVoucherNotFound) {
			return nil, newError(KindNotFound, "voucher not found")
		}
		return nil, ensure("get voucher", err)
	}
	if !v.Available() {
		return nil, newError(KindNotFound, "voucher not found")
	}
	return v, nil
}

func (s *VoucherService) ListPublic(ctx context.Context, f model.VoucherFilter) ([]*model.Voucher, int64, error) {
	if f.VoucherType != nil && !f.VoucherType.Valid() {
		return nil, 0, invalidInput(model.ErrInvalidVoucherType)
	}
	f.IncludeGiftCards = false
	f.IncludeInactive = false
	items, total, err := s.vouchers.List(ctx, f)
	if err != nil {
		return nil, 0, ensure("list vouchers", err)
	}
	return items, total, nil
}

func (s *VoucherService) Popular(ctx context.Context) ([]*model.Voucher, error) {
	items, err := s.vouchers.Popular(ctx, popularLimit)
	return items, ensure("popular vouchers", err)
}

// ListByMerchant shows the merchant every voucher it owns, including inactive
// ones and gift cards.
func (s *VoucherService) ListByMerchant(ctx context.Context, merchantUserID int64, f model.VoucherFilter) ([]*model.Voucher, int64, error) {
	merchant, err := s.merchantFor(ctx, merchantUserID)
	if err != nil {
		return nil, 0, ensure("merchant vouchers", err)
	}
	f.MerchantID = &merchant.ID
	f.IncludeGiftCards = true
	f.IncludeInactive = true
	items, total, err := s.vouchers.List(ctx, f)
	if err != nil {
		return nil, 0, ensure("merchant vouchers", err)
	}
	return items, total, nil
}

func (s *VoucherService) merchantFor(ctx context.Context, userID int64) (*model.MerchantProfile, error) {
	m, err := s.merchants.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrMerchantNotFound) {
			return nil, newError(KindForbidden, "merchant profile required")
		}
		return nil, err
	}
	return m, nil
}
