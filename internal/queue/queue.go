package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nimasrn/voucher-wallet/pkg/logger"
	"github.com/nimasrn/voucher-wallet/pkg/redis"
)

const (
	fieldData        = "data"
	fieldPublishedAt = "published_at"
	metaPrefix       = "meta_"
	dlqSuffix        = ":dlq"
	reclaimBatch     = 100
)

var (
	ErrNameRequired    = errors.New("queue name is required")
	ErrHandlerRequired = errors.New("message handler is required")
	ErrAlreadyRunning  = errors.New("queue consumer already running")
	ErrStopTimeout     = errors.New("timeout waiting for queue to stop")
)

// Message is one stream entry handed to a Handler. Attempts counts how many
// times the entry has been delivered to the consumer group.
type Message struct {
	ID          string
	Data        []byte
	Metadata    map[string]string
	PublishedAt time.Time
	Attempts    int64
}

func (m *Message) Unmarshal(v interface{}) error {
	return json.Unmarshal(m.Data, v)
}

// Handler returns nil to ack the message. Any error leaves it pending so it
// is reclaimed after VisibilityTimeout.
type Handler func(ctx context.Context, msg *Message) error

type Config struct {
	Name              string
	ConsumerGroup     string
	ConsumerName      string
	MaxRetries        int
	VisibilityTimeout time.Duration
	PollInterval      time.Duration
	BatchSize         int64
	MaxLen            int64
	EnableDLQ         bool
}

func (c *Config) applyDefaults() {
	if c.ConsumerGroup == "" {
		c.ConsumerGroup = "default-group"
	}
	if c.ConsumerName == "" {
		c.ConsumerName = fmt.Sprintf("consumer-%d", time.Now().UnixNano())
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.VisibilityTimeout <= 0 {
		c.VisibilityTimeout = 30 * time.Second
	}
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 10
	}
}

type Stats struct {
	TotalMessages   int64
	PendingMessages int64
	ConsumerCount   int64
	DeadLetters     int64
}

// Queue is a Redis stream with one consumer group. The same value is used by
// producers (Publish) and consumers (Consume).
type Queue struct {
	adapter redis.RedisAdapter
	config  Config

	mu      sync.Mutex
	cancel  context.CancelFunc
	running bool
	wg      sync.WaitGroup
}

func New(ctx context.Context, adapter redis.RedisAdapter, config Config) (*Queue, error) {
	if config.Name == "" {
		return nil, ErrNameRequired
	}
	config.applyDefaults()

	q := &Queue{adapter: adapter, config: config}
	if err := adapter.XGroupCreateMkStream(ctx, config.Name, config.ConsumerGroup, "0"); err != nil && !isBusyGroup(err) {
		return nil, fmt.Errorf("create consumer group %s: %w", config.ConsumerGroup, err)
	}
	return q, nil
}

func (q *Queue) Name() string { return q.config.Name }

func (q *Queue) DeadLetterName() string { return q.config.Name + dlqSuffix }

func (q *Queue) Publish(ctx context.Context, data []byte, metadata map[string]string) (string, error) {
	values := map[string]interface{}{
		fieldData:        string(data),
		fieldPublishedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
	for k, v := range metadata {
		values[metaPrefix+k] = v
	}

	id, err := q.adapter.XAdd(ctx, q.config.Name, values)
	if err != nil {
		return "", fmt.Errorf("publish to %s: %w", q.config.Name, err)
	}
	if q.config.MaxLen > 0 {
		if err := q.adapter.XTrimApprox(ctx, q.config.Name, q.config.MaxLen); err != nil {
			logger.Warn("queue trim failed", "queue", q.config.Name, "error", err)
		}
	}
	return id, nil
}

func (q *Queue) PublishJSON(ctx context.Context, v interface{}, metadata map[string]string) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal message: %w", err)
	}
	return q.Publish(ctx, data, metadata)
}

// Consume polls the stream in a background goroutine until ctx is done or
// Stop is called.
func (q *Queue) Consume(ctx context.Context, handler Handler) error {
	if handler == nil {
		return ErrHandlerRequired
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.running {
		return ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	q.cancel = cancel
	q.running = true
	q.wg.Add(1)
	go q.loop(ctx, handler)
	return nil
}

func (q *Queue) loop(ctx context.Context, handler Handler) {
	defer q.wg.Done()

	ticker := time.NewTicker(q.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			q.readNew(ctx, handler)
			q.reclaim(ctx, handler)
		}
	}
}

func (q *Queue) readNew(ctx context.Context, handler Handler) {
	entries, err := q.adapter.XReadGroup(ctx, q.config.ConsumerGroup, q.config.ConsumerName, q.config.Name, ">", q.config.BatchSize)
	if err != nil {
		if !errors.Is(err, redis.NilError) && ctx.Err() == nil {
			logger.Error("queue read failed", "queue", q.config.Name, "error", err)
		}
		return
	}
	for _, entry := range entries {
		msg := toMessage(entry)
		msg.Attempts = 1
		q.handle(ctx, handler, msg)
	}
}

// reclaim takes over entries another consumer (or this one) left pending for
// longer than VisibilityTimeout.
func (q *Queue) reclaim(ctx context.Context, handler Handler) {
	pending, err := q.adapter.XPendingExt(ctx, q.config.Name, q.config.ConsumerGroup, "-", "+", reclaimBatch)
	if err != nil || len(pending) == 0 {
		return
	}

	attempts := make(map[string]int64, len(pending))
	ids := make([]string, 0, len(pending))
	for _, p := range pending {
		if p.Idle >= q.config.VisibilityTimeout {
			ids = append(ids, p.ID)
			attempts[p.ID] = p.RetryCount
		}
	}
	if len(ids) == 0 {
		return
	}

	entries, err := q.adapter.XClaim(ctx, q.config.Name, q.config.ConsumerGroup, q.config.ConsumerName, q.config.VisibilityTimeout, ids...)
	if err != nil {
		logger.Warn("queue claim failed", "queue", q.config.Name, "error", err)
		return
	}
	for _, entry := range entries {
		msg := toMessage(entry)
		// XCLAIM itself counts as a delivery.
		msg.Attempts = attempts[entry.ID] + 1
		q.handle(ctx, handler, msg)
	}
}

func (q *Queue) handle(ctx context.Context, handler Handler, msg *Message) {
	if msg.Attempts > int64(q.config.MaxRetries) {
		logger.Warn("message exceeded retries", "queue", q.config.Name, "id", msg.ID, "attempts", msg.Attempts)
		q.deadLetter(ctx, msg)
		q.ack(ctx, msg.ID)
		return
	}

	hctx, cancel := context.WithTimeout(ctx, q.config.VisibilityTimeout)
	defer cancel()

	if err := handler(hctx, msg); err != nil {
		logger.Warn("message handler failed", "queue", q.config.Name, "id", msg.ID, "attempts", msg.Attempts, "error", err)
		return
	}
	q.ack(ctx, msg.ID)
}

func (q *Queue) ack(ctx context.Context, id string) {
	if err := q.adapter.XAck(ctx, q.config.Name, q.config.ConsumerGroup, id); err != nil {
		logger.Error("queue ack failed", "queue", q.config.Name, "id", id, "error", err)
	}
}

func (q *Queue) deadLetter(ctx context.Context, msg *Message) {
	if !q.config.EnableDLQ {
		return
	}
	values := map[string]interface{}{
		fieldData:        string(msg.Data),
		"original_id":    msg.ID,
		"original_queue": q.config.Name,
		"attempts":       msg.Attempts,
		"failed_at":      time.Now().UTC().Format(time.RFC3339Nano),
	}
	for k, v := range msg.Metadata {
		values[metaPrefix+k] = v
	}
	if _, err := q.adapter.XAdd(ctx, q.DeadLetterName(), values); err != nil {
		logger.Error("dead letter publish failed", "queue", q.config.Name, "id", msg.ID, "error", err)
	}
}

func toMessage(entry redis.StreamMessage) *Message {
	msg := &Message{ID: entry.ID, Metadata: make(map[string]string)}
	for k, v := range entry.Values {
		s := fmt.Sprint(v)
		switch {
		case k == fieldData:
			msg.Data = []byte(s)
		case k == fieldPublishedAt:
			if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
				msg.PublishedAt = t
			}
		case strings.HasPrefix(k, metaPrefix):
			msg.Metadata[strings.TrimPrefix(k, metaPrefix)] = s
		}
	}
	if msg.PublishedAt.IsZero() {
		msg.PublishedAt = idTime(entry.ID)
	}
	return msg
}

// idTime reads the millisecond timestamp redis puts in front of an entry id.
func idTime(id string) time.Time {
	ms, _, _ := strings.Cut(id, "-")
	n, err := strconv.ParseInt(ms, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMilli(n).UTC()
}

func (q *Queue) Stop(timeout time.Duration) error {
	q.mu.Lock()
	if q.cancel != nil {
		q.cancel()
	}
	q.running = false
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return ErrStopTimeout
	}
}

func (q *Queue) Stats(ctx context.Context) (*Stats, error) {
	total, err := q.adapter.XLen(ctx, q.config.Name)
	if err != nil {
		return nil, err
	}
	stats := &Stats{TotalMessages: total}

	if pending, err := q.adapter.XPending(ctx, q.config.Name, q.config.ConsumerGroup); err == nil && pending != nil {
		stats.PendingMessages = pending.Count
		stats.ConsumerCount = int64(len(pending.Consumers))
	}
	if q.config.EnableDLQ {
		if n, err := q.adapter.XLen(ctx, q.DeadLetterName()); err == nil {
			stats.DeadLetters = n
		}
	}
	return stats, nil
}

func isBusyGroup(err error) bool {
	return err != nil && strings.HasPrefix(err.Error(), "BUSYGROUP")
}
