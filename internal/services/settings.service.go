package services

import (
	"context"
	"errors"
	"strings"

	"github.com/nimasrn/voucher-wallet/internal/model"
	"github.com/nimasrn/voucher-wallet/internal/repository"
	"github.com/shopspring/decimal"
)

type PriceCache interface {
	Invalidate(ctx context.Context, key string)
}

type SettingsService struct {
	settings SettingRepository
	cache    PriceCache
}

func NewSettingsService(settings SettingRepository, cache PriceCache) *SettingsService {
	return &SettingsService{settings: settings, cache: cache}
}

func (s *SettingsService) Get(ctx context.Context, key string) (*model.SiteSetting, error) {
	st, err := s.settings.Get(ctx, key)
	if err != nil {
		if errors.Is(err, repository.ErrSettingNotFound) {
			return nil, newError(KindNotFound, "setting not found")
		}
		return nil, ensure("get setting", err)
	}
	return st, nil
}

// Set stores a setting. Price keys must hold a positive decimal.
func (s *SettingsService) Set(ctx context.Context, in model.SiteSetting) (*model.SiteSetting, error) {
	in.Key = strings.TrimSpace(in.Key)
	in.Value = strings.TrimSpace(in.Value)
	if in.Key == "" {
		return nil, newError(KindInvalidInput, "key is required")
	}
	if in.Key == model.SettingVoucherCost || in.Key == model.SettingGiftCardCost {
		d, err := decimal.NewFromString(in.Value)
		if err != nil || !d.Round(2).IsPositive() {
			return nil, newError(KindInvalidInput, in.Key+" must be a positive amount")
		}
	}

	out, err := s.settings.Upsert(ctx, in)
	if err != nil {
		return nil, ensure("set setting", err)
	}
	if s.cache != nil {
		s.cache.Invalidate(ctx, in.Key)
	}
	return out, nil
}

func (s *SettingsService) List(ctx context.Context) ([]*model.SiteSetting, error) {
	list, err := s.settings.List(ctx)
	return list, ensure("list settings", err)
}
