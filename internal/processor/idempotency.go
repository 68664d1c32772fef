package processor

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/nimasrn/voucher-wallet/pkg/logger"
	"github.com/nimasrn/voucher-wallet/pkg/redis"
)

var (
	ErrAlreadyProcessed  = errors.New("event already processed")
	ErrLockAcquireFailed = errors.New("event is being processed by another consumer")
)

type IdempotencyConfig struct {
	// LockTTL bounds how long a crashed consumer can hold an event.
	LockTTL time.Duration
	// ProcessedTTL is how long a delivered event id is remembered.
	ProcessedTTL       time.Duration
	LockKeyPrefix      string
	ProcessedKeyPrefix string
}

func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{
		LockTTL:            30 * time.Second,
		ProcessedTTL:       24 * time.Hour,
		LockKeyPrefix:      "notify:lock:",
		ProcessedKeyPrefix: "notify:done:",
	}
}

// IdempotencyService makes webhook delivery at-most-once per event id on top
// of an at-least-once stream.
type IdempotencyService struct {
	redis  redis.RedisAdapter
	config IdempotencyConfig
}

func NewIdempotencyService(adapter redis.RedisAdapter, config IdempotencyConfig) *IdempotencyService {
	return &IdempotencyService{redis: adapter, config: config}
}

// Claim is held while one consumer works on an event.
type Claim struct {
	EventID string
	token   []byte
	held    bool
}

func (s *IdempotencyService) Acquire(ctx context.Context, eventID string) (*Claim, error) {
	done, err := s.IsProcessed(ctx, eventID)
	if err != nil {
		// Delivering twice beats never delivering.
		logger.Warn("processed marker check failed", "event_id", eventID, "error", err)
	} else if done {
		return nil, ErrAlreadyProcessed
	}

	token := []byte(strconv.FormatInt(time.Now().UnixNano(), 10))
	ok, err := s.redis.SetNX(ctx, s.config.LockKeyPrefix+eventID, token, s.config.LockTTL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLockAcquireFailed, err)
	}
	if !ok {
		return nil, ErrLockAcquireFailed
	}
	return &Claim{EventID: eventID, token: token, held: true}, nil
}

// Complete records the event as delivered and drops the lock.
func (s *IdempotencyService) Complete(ctx context.Context, c *Claim) error {
	if err := s.redis.Set(ctx, s.config.ProcessedKeyPrefix+c.EventID, []byte("1"), s.config.ProcessedTTL); err != nil {
		return fmt.Errorf("mark processed: %w", err)
	}
	return s.Release(ctx, c)
}

// Release drops the lock so a later delivery may try again.
func (s *IdempotencyService) Release(ctx context.Context, c *Claim) error {
	if c == nil || !c.held {
		return nil
	}
	if err := s.redis.Del(ctx, s.config.LockKeyPrefix+c.EventID); err != nil {
		logger.Warn("lock release failed", "event_id", c.EventID, "error", err)
		return err
	}
	c.held = false
	return nil
}

func (s *IdempotencyService) IsProcessed(ctx context.Context, eventID string) (bool, error) {
	n, err := s.redis.Exist(ctx, s.config.ProcessedKeyPrefix+eventID)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
