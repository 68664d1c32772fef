package processor

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	gateway "github.com/nimasrn/voucher-wallet/internal/gateways"
	"github.com/nimasrn/voucher-wallet/internal/model"
	"github.com/nimasrn/voucher-wallet/internal/queue"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, n *gateway.Notification) (*gateway.NotifyResponse, error) {
	args := m.Called(ctx, n)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.NotifyResponse), args.Error(1)
}

type MockExpirer struct {
	mock.Mock
}

func (m *MockExpirer) ExpireDue(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func eventMessage(t *testing.T, evt model.VoucherEvent) *queue.Message {
	t.Helper()
	data, err := json.Marshal(evt)
	require.NoError(t, err)
	return &queue.Message{ID: "1-0", Data: data, Attempts: 1}
}

func redeemedEvent(id string) model.VoucherEvent {
	return model.VoucherEvent{
		ID:           id,
		Type:         model.EventVoucherRedeemed,
		UserID:       1,
		RedemptionID: 2,
		Amount:       decimal.NewFromInt(10),
		Status:       model.StatusRedeemed,
	}
}

func TestNotificationProcessor_DeliversOnce(t *testing.T) {
	_, adapter := setupRedis(t)
	notifier := new(MockNotifier)
	p := NewNotificationProcessor(notifier, NewIdempotencyService(adapter, DefaultIdempotencyConfig()))
	ctx := context.Background()

	notifier.On("Notify", mock.Anything, mock.MatchedBy(func(n *gateway.Notification) bool {
		return n.EventID == "evt-1" && n.Amount == "10.00"
	})).Return(&gateway.NotifyResponse{Accepted: true}, nil).Once()

	msg := eventMessage(t, redeemedEvent("evt-1"))
	require.NoError(t, p.Process(ctx, msg))
	require.NoError(t, p.Process(ctx, msg))
	notifier.AssertExpectations(t)
}

func TestNotificationProcessor_TransientFailureIsRetried(t *testing.T) {
	_, adapter := setupRedis(t)
	notifier := new(MockNotifier)
	idem := NewIdempotencyService(adapter, DefaultIdempotencyConfig())
	p := NewNotificationProcessor(notifier, idem)
	ctx := context.Background()

	notifier.On("Notify", mock.Anything, mock.Anything).Return(nil, errors.New("timeout")).Once()
	notifier.On("Notify", mock.Anything, mock.Anything).Return(&gateway.NotifyResponse{Accepted: true}, nil).Once()

	msg := eventMessage(t, redeemedEvent("evt-2"))
	assert.Error(t, p.Process(ctx, msg))
	done, err := idem.IsProcessed(ctx, "evt-2")
	require.NoError(t, err)
	assert.False(t, done)

	require.NoError(t, p.Process(ctx, msg))
	done, err = idem.IsProcessed(ctx, "evt-2")
	require.NoError(t, err)
	assert.True(t, done)
	notifier.AssertExpectations(t)
}

func TestNotificationProcessor_PermanentRejectionIsAcked(t *testing.T) {
	_, adapter := setupRedis(t)
	notifier := new(MockNotifier)
	p := NewNotificationProcessor(notifier, NewIdempotencyService(adapter, DefaultIdempotencyConfig()))

	notifier.On("Notify", mock.Anything, mock.Anything).Return(nil, &gateway.PermanentError{StatusCode: 400})
	assert.NoError(t, p.Process(context.Background(), eventMessage(t, redeemedEvent("evt-3"))))
}

func TestNotificationProcessor_MalformedIsAcked(t *testing.T) {
	_, adapter := setupRedis(t)
	notifier := new(MockNotifier)
	p := NewNotificationProcessor(notifier, NewIdempotencyService(adapter, DefaultIdempotencyConfig()))

	assert.NoError(t, p.Process(context.Background(), &queue.Message{ID: "1-0", Data: []byte("{nope")}))
	assert.NoError(t, p.Process(context.Background(), &queue.Message{ID: "2-0", Data: []byte(`{"type":"voucher.redeemed"}`)}))
	notifier.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything)
}

func TestNotificationProcessor_LockHeldIsRetried(t *testing.T) {
	_, adapter := setupRedis(t)
	idem := NewIdempotencyService(adapter, DefaultIdempotencyConfig())
	notifier := new(MockNotifier)
	p := NewNotificationProcessor(notifier, idem)
	ctx := context.Background()

	_, err := idem.Acquire(ctx, "evt-4")
	require.NoError(t, err)
	assert.ErrorIs(t, p.Process(ctx, eventMessage(t, redeemedEvent("evt-4"))), ErrLockAcquireFailed)
}

func TestExpirySweeper_SingleSweepPerInterval(t *testing.T) {
	mr, adapter := setupRedis(t)
	expirer := new(MockExpirer)
	expirer.On("ExpireDue", mock.Anything).Return(int64(3), nil).Once()
	ctx := context.Background()

	a := NewExpirySweeper(expirer, adapter, time.Minute)
	b := NewExpirySweeper(expirer, adapter, time.Minute)

	ran, err := a.Sweep(ctx)
	require.NoError(t, err)
	assert.True(t, ran)

	ran, err = b.Sweep(ctx)
	require.NoError(t, err)
	assert.False(t, ran)
	expirer.AssertExpectations(t)

	mr.FastForward(2 * time.Minute)
	expirer.On("ExpireDue", mock.Anything).Return(int64(0), nil).Once()
	ran, err = b.Sweep(ctx)
	require.NoError(t, err)
	assert.True(t, ran)
}

func TestExpirySweeper_FailureReleasesLock(t *testing.T) {
	mr, adapter := setupRedis(t)
	expirer := new(MockExpirer)
	expirer.On("ExpireDue", mock.Anything).Return(int64(0), errors.New("db down"))

	s := NewExpirySweeper(expirer, adapter, time.Minute)
	ran, err := s.Sweep(context.Background())
	assert.True(t, ran)
	assert.Error(t, err)
	assert.False(t, mr.Exists(sweepLockKey))
}

type countingProcessor struct {
	calls atomic.Int32
	fail  bool
}

func (p *countingProcessor) Process(context.Context, *queue.Message) error {
	p.calls.Add(1)
	if p.fail {
		return errors.New("boom")
	}
	return nil
}

func (p *countingProcessor) GetType() string { return "counting" }

func TestProcessorService_ConsumesThroughWorkers(t *testing.T) {
	_, adapter := setupRedis(t)
	ctx := context.Background()
	cfg := queue.Config{
		Name:          "voucher:events",
		ConsumerGroup: "notifier",
		ConsumerName:  "test",
		PollInterval:  20 * time.Millisecond,
	}

	producer, err := queue.New(ctx, adapter, cfg)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		_, err := producer.PublishJSON(ctx, redeemedEvent("evt"), nil)
		require.NoError(t, err)
	}

	proc := &countingProcessor{}
	svc := NewProcessorService(adapter, proc, Options{Queue: cfg, Consumers: 2, Workers: 3})
	require.NoError(t, svc.Start(ctx))

	require.Eventually(t, func() bool {
		stats, err := producer.Stats(ctx)
		return err == nil && proc.calls.Load() == 5 && stats.PendingMessages == 0
	}, 3*time.Second, 20*time.Millisecond)

	svc.Stop()
	assert.Equal(t, int64(5), svc.Metrics().Snapshot().Processed)
}

func TestProcessorService_FailuresStayPending(t *testing.T) {
	_, adapter := setupRedis(t)
	ctx := context.Background()
	cfg := queue.Config{
		Name:              "voucher:events",
		ConsumerGroup:     "notifier",
		ConsumerName:      "test",
		PollInterval:      20 * time.Millisecond,
		VisibilityTimeout: time.Minute,
	}
	producer, err := queue.New(ctx, adapter, cfg)
	require.NoError(t, err)
	_, err = producer.PublishJSON(ctx, redeemedEvent("evt"), nil)
	require.NoError(t, err)

	proc := &countingProcessor{fail: true}
	svc := NewProcessorService(adapter, proc, Options{Queue: cfg})
	require.NoError(t, svc.Start(ctx))
	defer svc.Stop()

	require.Eventually(t, func() bool {
		stats, err := producer.Stats(ctx)
		return err == nil && stats.PendingMessages == 1 && svc.Metrics().Snapshot().Failed == 1
	}, 3*time.Second, 20*time.Millisecond)
	assert.Equal(t, int32(1), proc.calls.Load())
}

func TestServiceMetrics(t *testing.T) {
	m := NewServiceMetrics()
	m.RecordSuccess(10 * time.Millisecond)
	m.RecordSuccess(30 * time.Millisecond)
	m.RecordFailure()

	snap := m.Snapshot()
	assert.Equal(t, int64(2), snap.Processed)
	assert.Equal(t, int64(1), snap.Failed)
	assert.Equal(t, 20*time.Millisecond, snap.AvgDuration)

	m.Reset()
	assert.Zero(t, m.Snapshot().Processed)
}
