package processor

import (
	"context"
	"strconv"
	"time"

	"github.com/nimasrn/voucher-wallet/pkg/logger"
	"github.com/nimasrn/voucher-wallet/pkg/redis"
)

const sweepLockKey = "expiry-sweep:lock"

type Expirer interface {
	ExpireDue(ctx context.Context) (int64, error)
}

// ExpirySweeper runs the bulk expiry pass every interval. A redis lock that
// lives for one interval keeps concurrent processor instances from sweeping
// the same period twice.
type ExpirySweeper struct {
	expirer  Expirer
	redis    redis.RedisAdapter
	interval time.Duration
}

func NewExpirySweeper(expirer Expirer, adapter redis.RedisAdapter, interval time.Duration) *ExpirySweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	return &ExpirySweeper{expirer: expirer, redis: adapter, interval: interval}
}

// Run blocks until ctx is done. The first sweep starts immediately.
func (s *ExpirySweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if _, err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
			logger.Error("expiry sweep failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Sweep expires due purchases if no other instance swept this interval. It
// reports whether this instance did the work.
func (s *ExpirySweeper) Sweep(ctx context.Context) (bool, error) {
	stamp := []byte(strconv.FormatInt(time.Now().Unix(), 10))
	ok, err := s.redis.SetNX(ctx, sweepLockKey, stamp, s.interval)
	if err != nil {
		return false, err
	}
	if !ok {
		logger.Debug("expiry sweep skipped, lock held")
		return false, nil
	}

	n, err := s.expirer.ExpireDue(ctx)
	if err != nil {
		// Let the next tick retry instead of waiting out the interval.
		_ = s.redis.Del(ctx, sweepLockKey)
		return true, err
	}
	logger.Info("expiry sweep finished", "expired", n)
	return true, nil
}
