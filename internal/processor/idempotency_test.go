package processor

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/nimasrn/voucher-wallet/pkg/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedis(t *testing.T) (*miniredis.Miniredis, redis.RedisAdapter) {
	t.Helper()
	mr := miniredis.RunT(t)
	adapter, err := redis.NewRedisAdapter(t.Name()+"-"+mr.Addr(), "", &redis.Options{Addrs: []string{mr.Addr()}})
	require.NoError(t, err)
	return mr, adapter
}

func TestIdempotencyService_AcquireAndComplete(t *testing.T) {
	mr, adapter := setupRedis(t)
	svc := NewIdempotencyService(adapter, DefaultIdempotencyConfig())
	ctx := context.Background()

	claim, err := svc.Acquire(ctx, "evt-1")
	require.NoError(t, err)
	assert.True(t, mr.Exists("notify:lock:evt-1"))

	require.NoError(t, svc.Complete(ctx, claim))
	assert.False(t, mr.Exists("notify:lock:evt-1"))
	assert.True(t, mr.Exists("notify:done:evt-1"))
	assert.Equal(t, 24*time.Hour, mr.TTL("notify:done:evt-1"))

	_, err = svc.Acquire(ctx, "evt-1")
	assert.ErrorIs(t, err, ErrAlreadyProcessed)
}

func TestIdempotencyService_ConcurrentAcquire(t *testing.T) {
	_, adapter := setupRedis(t)
	svc := NewIdempotencyService(adapter, DefaultIdempotencyConfig())
	ctx := context.Background()

	var won atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Acquire(ctx, "evt-2"); err == nil {
				won.Add(1)
			} else {
				assert.ErrorIs(t, err, ErrLockAcquireFailed)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), won.Load())
}

func TestIdempotencyService_ReleaseAllowsRetry(t *testing.T) {
	_, adapter := setupRedis(t)
	svc := NewIdempotencyService(adapter, DefaultIdempotencyConfig())
	ctx := context.Background()

	claim, err := svc.Acquire(ctx, "evt-3")
	require.NoError(t, err)
	require.NoError(t, svc.Release(ctx, claim))
	require.NoError(t, svc.Release(ctx, claim))
	require.NoError(t, svc.Release(ctx, nil))

	done, err := svc.IsProcessed(ctx, "evt-3")
	require.NoError(t, err)
	assert.False(t, done)

	_, err = svc.Acquire(ctx, "evt-3")
	assert.NoError(t, err)
}

func TestIdempotencyService_LockExpires(t *testing.T) {
	mr, adapter := setupRedis(t)
	cfg := DefaultIdempotencyConfig()
	cfg.LockTTL = time.Second
	svc := NewIdempotencyService(adapter, cfg)
	ctx := context.Background()

	_, err := svc.Acquire(ctx, "evt-4")
	require.NoError(t, err)
	_, err = svc.Acquire(ctx, "evt-4")
	assert.ErrorIs(t, err, ErrLockAcquireFailed)

	mr.FastForward(2 * time.Second)
	_, err = svc.Acquire(ctx, "evt-4")
	assert.NoError(t, err)
}
