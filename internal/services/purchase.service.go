package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nimasrn/voucher-wallet/internal/model"
	"github.com/nimasrn/voucher-wallet/internal/repository"
	"github.com/nimasrn/voucher-wallet/pkg/logger"
	"github.com/nimasrn/voucher-wallet/pkg/prom"
	"github.com/nimasrn/voucher-wallet/pkg/tracing"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultValidity   = 365 * 24 * time.Hour
	expirySampleLimit = 10
)

type PurchaseService struct {
	tx          Transactor
	vouchers    VoucherRepository
	wallets     WalletRepository
	redemptions RedemptionRepository
	pricing     PriceResolver
	events      EventPublisher
	validity    time.Duration
	now         func() time.Time
	tracer      trace.Tracer
}

type PurchaseOption func(*PurchaseService)

func WithClock(now func() time.Time) PurchaseOption {
	return func(s *PurchaseService) { s.now = now }
}

func WithValidity(d time.Duration) PurchaseOption {
	return func(s *PurchaseService) {
		if d > 0 {
			s.validity = d
		}
	}
}

func WithPublisher(p EventPublisher) PurchaseOption {
	return func(s *PurchaseService) { s.events = p }
}

func NewPurchaseService(tx Transactor, vouchers VoucherRepository, wallets WalletRepository, redemptions RedemptionRepository, pricing PriceResolver, opts ...PurchaseOption) *PurchaseService {
	s := &PurchaseService{
		tx:          tx,
		vouchers:    vouchers,
		wallets:     wallets,
		redemptions: redemptions,
		pricing:     pricing,
		validity:    DefaultValidity,
		now:         func() time.Time { return time.Now().UTC() },
		tracer:      otel.Tracer("purchase-service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Purchase buys voucherID for userID. Locks are taken voucher first, then
// wallet. gift buys the voucher as a gift and allows gift-card vouchers.
func (s *PurchaseService) Purchase(ctx context.Context, userID, voucherID int64, gift bool) (res *model.PurchaseResult, err error) {
	ctx, span := s.tracer.Start(ctx, "purchase.Purchase", trace.WithAttributes(
		attribute.Int64("user.id", userID),
		attribute.Int64("voucher.id", voucherID),
	))
	defer s.finish(span, "purchase", time.Now(), &err)

	var record *model.Redemption
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		voucher, err := s.vouchers.LockByID(ctx, voucherID)
		if err != nil {
			if errors.Is(err, repository.ErrVoucherNotFound) {
				return newError(KindNotFound, "voucher not found")
			}
			return err
		}
		wallet, walletErr := s.wallets.LockByUserID(ctx, userID)

		if !voucher.Available() || (voucher.IsGiftCard && !gift) {
			return newError(KindNotFound, "voucher not found or inactive")
		}

		exists, err := s.redemptions.ExistsForUser(ctx, userID, voucherID)
		if err != nil {
			return err
		}
		if exists {
			return ErrAlreadyPurchased
		}

		if voucher.Count != nil {
			claimed, err := s.redemptions.CountClaimed(ctx, voucherID)
			if err != nil {
				return err
			}
			if !voucher.HasStock(claimed) {
				return ErrOutOfStock
			}
		}

		if walletErr != nil {
			if errors.Is(walletErr, repository.ErrWalletNotFound) {
				return ErrWalletNotFound
			}
			return walletErr
		}

		cost := s.pricing.Resolve(ctx, voucher.IsGiftCard)
		if !wallet.CanAfford(cost) {
			return ErrInsufficientBalance
		}

		now := s.now()
		updated, entry, err := s.wallets.Deduct(ctx, wallet.ID, model.WalletMovement{
			Amount:      cost,
			Note:        "Voucher Purchase: " + voucher.Title,
			ReferenceID: strconv.FormatInt(voucher.ID, 10),
			Meta:        map[string]any{"voucher_id": voucher.ID, "gift": gift},
		})
		if err != nil {
			if errors.Is(err, repository.ErrInsufficientBalance) {
				return ErrInsufficientBalance
			}
			return err
		}

		txID := TransactionID(wallet.ID, now, entry.ID)
		record, err = s.redemptions.Create(ctx, &model.Redemption{
			UserID:              userID,
			VoucherID:           voucher.ID,
			PurchaseReference:   NewPurchaseReference(),
			Status:              model.StatusPurchased,
			PurchasedAt:         now,
			ExpiryDate:          now.Add(s.validity),
			PurchaseCost:        cost,
			IsActive:            true,
			IsGiftVoucher:       gift,
			WalletTransactionID: txID,
			UpdatedAt:           now,
		})
		if err != nil {
			if errors.Is(err, repository.ErrRedemptionExists) {
				return ErrAlreadyPurchased
			}
			return err
		}
		record.Voucher = voucher

		res = &model.PurchaseResult{
			VoucherID:         voucher.ID,
			VoucherTitle:      voucher.Title,
			PurchaseCost:      cost,
			RemainingBalance:  updated.Balance,
			RedemptionID:      record.ID,
			PurchaseReference: record.PurchaseReference,
			ExpiryDate:        record.ExpiryDate,
			TransactionID:     txID,
			IsGiftVoucher:     gift,
		}
		return nil
	})
	if err != nil {
		return nil, ensure("purchase", err)
	}

	prom.IncWalletMovement(string(model.TransactionDebit))
	s.publish(ctx, model.EventVoucherPurchased, record, record.PurchaseCost)
	return res, nil
}

// Redeem marks the caller's purchase record as used and bumps the voucher's
// redemption counter in the same transaction.
func (s *PurchaseService) Redeem(ctx context.Context, userID, redemptionID int64, location, notes string) (rec *model.Redemption, err error) {
	ctx, span := s.tracer.Start(ctx, "purchase.Redeem", trace.WithAttributes(
		attribute.Int64("user.id", userID),
		attribute.Int64("redemption.id", redemptionID),
	))
	defer s.finish(span, "redeem", time.Now(), &err)

	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		r, err := s.lockOwned(ctx, userID, redemptionID)
		if err != nil {
			return err
		}

		now := s.now()
		if blocker := r.RedeemBlocker(now); blocker != nil {
			return redeemError(blocker)
		}

		from := r.Status
		r.MarkRedeemed(now, strings.TrimSpace(location), strings.TrimSpace(notes))
		if err := s.redemptions.SaveTransition(ctx, r, from); err != nil {
			return err
		}

		if err := s.vouchers.IncrementRedemptionCount(ctx, r.VoucherID); err != nil {
			if errors.Is(err, repository.ErrVoucherExhausted) {
				return notRedeemable(ReasonOther, "voucher redemption limit reached")
			}
			return err
		}
		if r.Voucher != nil {
			r.Voucher.RedemptionCount++
		}
		rec = r
		return nil
	})
	if err != nil {
		return nil, ensure("redeem", err)
	}

	s.publish(ctx, model.EventVoucherRedeemed, rec, rec.PurchaseCost)
	return rec, nil
}

// Cancel ends a live purchase without giving money back.
func (s *PurchaseService) Cancel(ctx context.Context, userID, redemptionID int64, reason string) (rec *model.Redemption, err error) {
	ctx, span := s.tracer.Start(ctx, "purchase.Cancel", trace.WithAttributes(
		attribute.Int64("user.id", userID),
		attribute.Int64("redemption.id", redemptionID),
	))
	defer s.finish(span, "cancel", time.Now(), &err)

	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		r, err := s.lockOwned(ctx, userID, redemptionID)
		if err != nil {
			return err
		}
		if blocker := r.ReleaseBlocker(); blocker != nil {
			return releaseError(blocker)
		}

		from := r.Status
		r.MarkCancelled(s.now(), reasonOrDefault(reason, "cancelled by user"))
		if err := s.redemptions.SaveTransition(ctx, r, from); err != nil {
			return err
		}
		rec = r
		return nil
	})
	if err != nil {
		return nil, ensure("cancel", err)
	}

	s.publish(ctx, model.EventVoucherCancelled, rec, decimal.Zero)
	return rec, nil
}

// Refund ends a live purchase and credits purchase_cost back to the wallet.
// The status change and the credit commit together or not at all.
func (s *PurchaseService) Refund(ctx context.Context, userID, redemptionID int64, reason string) (res *model.RefundResult, err error) {
	ctx, span := s.tracer.Start(ctx, "purchase.Refund", trace.WithAttributes(
		attribute.Int64("user.id", userID),
		attribute.Int64("redemption.id", redemptionID),
	))
	defer s.finish(span, "refund", time.Now(), &err)

	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		r, err := s.lockOwned(ctx, userID, redemptionID)
		if err != nil {
			return err
		}
		if blocker := r.ReleaseBlocker(); blocker != nil {
			return releaseError(blocker)
		}

		from := r.Status
		r.MarkRefunded(s.now(), reasonOrDefault(reason, "refund requested"))
		if err := s.redemptions.SaveTransition(ctx, r, from); err != nil {
			return err
		}

		wallet, err := s.wallets.LockByUserID(ctx, r.UserID)
		if err != nil {
			if errors.Is(err, repository.ErrWalletNotFound) {
				return ErrWalletNotFound
			}
			return err
		}

		title := ""
		if r.Voucher != nil {
			title = r.Voucher.Title
		}
		updated, _, err := s.wallets.Credit(ctx, wallet.ID, model.WalletMovement{
			Amount:      r.PurchaseCost,
			Note:        "Voucher Refund: " + title,
			ReferenceID: r.PurchaseReference,
			Meta:        map[string]any{"redemption_id": r.ID},
		})
		if err != nil {
			return err
		}

		res = &model.RefundResult{Redemption: r, RefundAmount: r.PurchaseCost, NewBalance: updated.Balance}
		return nil
	})
	if err != nil {
		return nil, ensure("refund", err)
	}

	prom.IncWalletMovement(string(model.TransactionCredit))
	s.publish(ctx, model.EventVoucherRefunded, res.Redemption, res.RefundAmount)
	return res, nil
}

// ExpireDue expires every overdue live purchase in one update. Running it
// again right away returns zero.
func (s *PurchaseService) ExpireDue(ctx context.Context) (n int64, err error) {
	ctx, span := s.tracer.Start(ctx, "purchase.ExpireDue")
	defer s.finish(span, "expire", time.Now(), &err)

	now := s.now()
	note := "Auto-expired on " + now.Format(time.RFC3339)

	var due []*model.Redemption
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		if due, err = s.redemptions.LockDue(ctx, now); err != nil {
			return err
		}
		n, err = s.redemptions.ExpireDue(ctx, now, note)
		return err
	})
	if err != nil {
		return 0, ensure("expire", err)
	}

	prom.AddExpired(n)
	span.SetAttributes(attribute.Int64("expired.count", n))
	for _, r := range due {
		r.Status = model.StatusExpired
		s.publish(ctx, model.EventVoucherExpired, r, decimal.Zero)
	}
	return n, nil
}

// PreviewExpiry reports what ExpireDue would do without changing anything.
func (s *PurchaseService) PreviewExpiry(ctx context.Context) (*model.ExpiryPreview, error) {
	now := s.now()
	n, err := s.redemptions.CountDue(ctx, now)
	if err != nil {
		return nil, ensure("preview expiry", err)
	}
	sample, err := s.redemptions.ListDue(ctx, now, expirySampleLimit)
	if err != nil {
		return nil, ensure("preview expiry", err)
	}
	return &model.ExpiryPreview{Count: n, Sample: sample}, nil
}

// Get returns one of the caller's purchase records.
func (s *PurchaseService) Get(ctx context.Context, userID, redemptionID int64) (*model.Redemption, error) {
	r, err := s.redemptions.GetByID(ctx, redemptionID)
	if err != nil {
		if errors.Is(err, repository.ErrRedemptionNotFound) {
			return nil, newError(KindNotFound, "purchase not found")
		}
		return nil, ensure("get purchase", err)
	}
	if r.UserID != userID {
		return nil, newError(KindNotFound, "purchase not found")
	}
	return r, nil
}

func (s *PurchaseService) ListUserVouchers(ctx context.Context, f model.RedemptionFilter) ([]*model.Redemption, int64, error) {
	for _, st := range f.Statuses {
		if !st.Valid() {
			return nil, 0, newError(KindInvalidInput, fmt.Sprintf("unknown status %q", st))
		}
	}
	list, total, err := s.redemptions.ListByUser(ctx, f)
	if err != nil {
		return nil, 0, ensure("list purchases", err)
	}
	return list, total, nil
}

func (s *PurchaseService) Summary(ctx context.Context, userID int64) (*model.PurchaseSummary, error) {
	sum, err := s.redemptions.Summary(ctx, userID)
	return sum, ensure("purchase summary", err)
}

// Now is the service clock, exposed for handlers computing derived fields.
func (s *PurchaseService) Now() time.Time {
	return s.now()
}

func (s *PurchaseService) lockOwned(ctx context.Context, userID, redemptionID int64) (*model.Redemption, error) {
	r, err := s.redemptions.LockByID(ctx, redemptionID)
	if err != nil {
		if errors.Is(err, repository.ErrRedemptionNotFound) {
			return nil, newError(KindNotFound, "purchase not found")
		}
		return nil, err
	}
	if r.UserID != userID {
		return nil, newError(KindNotFound, "purchase not found")
	}
	return r, nil
}

func (s *PurchaseService) publish(ctx context.Context, typ model.EventType, r *model.Redemption, amount decimal.Decimal) {
	if s.events == nil || r == nil {
		return
	}
	evt := model.VoucherEvent{
		ID:                uuid.NewString(),
		Type:              typ,
		UserID:            r.UserID,
		VoucherID:         r.VoucherID,
		RedemptionID:      r.ID,
		PurchaseReference: r.PurchaseReference,
		Amount:            amount,
		Status:            r.Status,
		OccurredAt:        s.now(),
	}
	if err := s.events.Publish(ctx, evt); err != nil {
		logger.Warn("event publish failed", "type", string(typ), "redemption_id", r.ID, "error", err)
	}
}

func (s *PurchaseService) finish(span trace.Span, op string, started time.Time, errp *error) {
	result := "ok"
	if err := *errp; err != nil {
		kind := KindOf(err)
		result = string(kind)
		if kind == KindSystem {
			tracing.Fail(span, err, op+" failed")
			logger.Error("workflow failed", "operation", op, "error", err, "detail", Detail(err))
		} else {
			span.SetAttributes(attribute.String("error.kind", result))
		}
	}
	prom.ObserveWorkflow(op, result, started)
	span.End()
}

func redeemError(blocker error) error {
	switch {
	case errors.Is(blocker, model.ErrRedemptionExpired):
		return notRedeemable(ReasonExpired, "voucher has expired")
	case errors.Is(blocker, model.ErrRedemptionAlreadyRedeemed):
		return notRedeemable(ReasonAlreadyRedeemed, "voucher has already been redeemed")
	default:
		return notRedeemable(ReasonOther, "voucher cannot be redeemed")
	}
}

func releaseError(blocker error) error {
	if errors.Is(blocker, model.ErrRedemptionAlreadyRedeemed) {
		return ErrAlreadyRedeemed
	}
	return ErrAlreadyTerminal
}

func reasonOrDefault(reason, def string) string {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return def
	}
	return reason
}

// NewPurchaseReference returns a reference like VCH-1A2B3C4D.
func NewPurchaseReference() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "VCH-" + strings.ToUpper(id[:8])
}

// TransactionID correlates a purchase record with its ledger line.
func TransactionID(walletID int64, at time.Time, entryID int64) string {
	return fmt.Sprintf("WT-%d-%s-%d", walletID, at.UTC().Format("20060102150405"), entryID)
}
