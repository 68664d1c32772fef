package pricing

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/nimasrn/voucher-wallet/internal/model"
	"github.com/nimasrn/voucher-wallet/internal/repository"
	"github.com/nimasrn/voucher-wallet/pkg/logger"
	"github.com/shopspring/decimal"
)

const cacheKeyPrefix = "pricing:"

// SettingsProvider is the read side of the site settings store.
type SettingsProvider interface {
	Get(ctx context.Context, key string) (*model.SiteSetting, error)
}

// Cache is satisfied by pkg/redis.RedisAdapter.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

type Resolver struct {
	settings    SettingsProvider
	cache       Cache
	ttl         time.Duration
	defaultCost decimal.Decimal
}

type Option func(*Resolver)

// WithCache keeps resolved raw values in cache for ttl.
func WithCache(c Cache, ttl time.Duration) Option {
	return func(r *Resolver) {
		if c != nil && ttl > 0 {
			r.cache = c
			r.ttl = ttl
		}
	}
}

// NewResolver builds a resolver. A non-positive defaultCost falls back to 10.
func NewResolver(settings SettingsProvider, defaultCost decimal.Decimal, opts ...Option) *Resolver {
	if !defaultCost.IsPositive() {
		defaultCost = decimal.NewFromInt(10)
	}
	r := &Resolver{settings: settings, defaultCost: defaultCost.Round(2)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Resolver) DefaultCost() decimal.Decimal {
	return r.defaultCost
}

func KeyFor(isGiftCard bool) string {
	if isGiftCard {
		return model.SettingGiftCardCost
	}
	return model.SettingVoucherCost
}

// Resolve returns the price of a voucher. It never fails: a missing,
// malformed or non-positive setting degrades to the default cost.
func (r *Resolver) Resolve(ctx context.Context, isGiftCard bool) decimal.Decimal {
	key := KeyFor(isGiftCard)
	raw, ok := r.lookup(ctx, key)
	if !ok {
		return r.defaultCost
	}

	cost, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil || !cost.IsPositive() {
		logger.Warn("invalid price setting, using default", "key", key, "value", raw)
		return r.defaultCost
	}
	cost = cost.Round(2)
	if !cost.IsPositive() {
		return r.defaultCost
	}
	return cost
}

func (r *Resolver) lookup(ctx context.Context, key string) (string, bool) {
	if r.cache != nil {
		if b, err := r.cache.Get(ctx, cacheKeyPrefix+key); err == nil && len(b) > 0 {
			return string(b), true
		}
	}
	if r.settings == nil {
		return "", false
	}

	s, err := r.settings.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, repository.ErrSettingNotFound) {
			logger.Warn("price setting lookup failed, using default", "key", key, "error", err)
		}
		return "", false
	}
	if s == nil {
		return "", false
	}

	if r.cache != nil {
		if err := r.cache.Set(ctx, cacheKeyPrefix+key, []byte(s.Value), r.ttl); err != nil {
			logger.Debug("pricing cache write failed", "key", key, "error", err)
		}
	}
	return s.Value, true
}

// Invalidate drops a cached value after the setting changed.
func (r *Resolver) Invalidate(ctx context.Context, key string) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Del(ctx, cacheKeyPrefix+key); err != nil {
		logger.Warn("pricing cache invalidate failed", "key", key, "error", err)
	}
}
