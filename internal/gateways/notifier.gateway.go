package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nimasrn/voucher-wallet/internal/model"
	"github.com/nimasrn/voucher-wallet/pkg/logger"
	"github.com/valyala/fasthttp"
)

const NotifyPath = "/api/v1/notifications"

var (
	ErrURLRequired = errors.New("notifier url is required")
	ErrCircuitOpen = errors.New("notifier circuit is open")
)

// PermanentError is a rejection the webhook will repeat on every retry.
type PermanentError struct {
	StatusCode int
	Body       string
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("notifier rejected event: status %d: %s", e.StatusCode, e.Body)
}

type Notification struct {
	EventID           string          `json:"event_id"`
	Type              model.EventType `json:"type"`
	UserID            int64           `json:"user_id"`
	VoucherID         int64           `json:"voucher_id"`
	RedemptionID      int64           `json:"redemption_id"`
	PurchaseReference string          `json:"purchase_reference"`
	Amount            string          `json:"amount"`
	Status            string          `json:"status"`
	OccurredAt        time.Time       `json:"occurred_at"`
}

func NotificationFrom(evt model.VoucherEvent) *Notification {
	return &Notification{
		EventID:           evt.ID,
		Type:              evt.Type,
		UserID:            evt.UserID,
		VoucherID:         evt.VoucherID,
		RedemptionID:      evt.RedemptionID,
		PurchaseReference: evt.PurchaseReference,
		Amount:            evt.Amount.StringFixed(2),
		Status:            string(evt.Status),
		OccurredAt:        evt.OccurredAt,
	}
}

type NotifyResponse struct {
	EventID    string    `json:"event_id"`
	Accepted   bool      `json:"accepted"`
	ReceivedAt time.Time `json:"received_at"`
}

type Config struct {
	URL                     string
	Timeout                 time.Duration
	MaxRetries              int
	RetryDelay              time.Duration
	MaxConns                int
	CircuitBreakerThreshold int
	CircuitBreakerTimeout   time.Duration
}

func (c *Config) applyDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Second
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 200 * time.Millisecond
	}
	if c.MaxConns <= 0 {
		c.MaxConns = 64
	}
	if c.CircuitBreakerThreshold <= 0 {
		c.CircuitBreakerThreshold = 5
	}
	if c.CircuitBreakerTimeout <= 0 {
		c.CircuitBreakerTimeout = 30 * time.Second
	}
}

type Metrics struct {
	TotalRequests    atomic.Int64
	SuccessfulReqs   atomic.Int64
	FailedReqs       atomic.Int64
	TotalLatencyMs   atomic.Int64
	ConsecutiveFails atomic.Int32
}

func (m *Metrics) recordSuccess(latencyMs int64) {
	m.TotalRequests.Add(1)
	m.SuccessfulReqs.Add(1)
	m.TotalLatencyMs.Add(latencyMs)
	m.ConsecutiveFails.Store(0)
}

func (m *Metrics) recordFailure() int32 {
	m.TotalRequests.Add(1)
	m.FailedReqs.Add(1)
	return m.ConsecutiveFails.Add(1)
}

func (m *Metrics) SuccessRate() float64 {
	total := m.TotalRequests.Load()
	if total == 0 {
		return 1.0
	}
	return float64(m.SuccessfulReqs.Load()) / float64(total)
}

func (m *Metrics) AvgLatencyMs() int64 {
	ok := m.SuccessfulReqs.Load()
	if ok == 0 {
		return 0
	}
	return m.TotalLatencyMs.Load() / ok
}

// NotifierClient posts voucher notifications to one webhook. Transport errors
// and 5xx answers are retried. After CircuitBreakerThreshold consecutive
// failures every call fails fast until CircuitBreakerTimeout has passed.
type NotifierClient struct {
	config  Config
	client  *fasthttp.Client
	metrics Metrics

	mu        sync.Mutex
	openUntil time.Time
	now       func() time.Time
}

func NewNotifierClient(config Config) (*NotifierClient, error) {
	if config.URL == "" {
		return nil, ErrURLRequired
	}
	config.applyDefaults()
	config.URL = strings.TrimRight(config.URL, "/")

	c := &NotifierClient{
		config: config,
		client: &fasthttp.Client{
			MaxConnsPerHost:     config.MaxConns,
			ReadTimeout:         config.Timeout,
			WriteTimeout:        config.Timeout,
			MaxIdleConnDuration: 60 * time.Second,
		},
		now: time.Now,
	}
	logger.Info("notifier client initialized", "url", config.URL, "timeout", config.Timeout)
	return c, nil
}

func (c *NotifierClient) Metrics() *Metrics { return &c.metrics }

func (c *NotifierClient) CircuitOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now().Before(c.openUntil)
}

func (c *NotifierClient) Notify(ctx context.Context, n *Notification) (*NotifyResponse, error) {
	body, err := json.Marshal(n)
	if err != nil {
		return nil, fmt.Errorf("marshal notification: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.config.RetryDelay):
			}
		}
		if c.CircuitOpen() {
			return nil, ErrCircuitOpen
		}

		started := time.Now()
		raw, err := c.post(ctx, body)
		if err != nil {
			var perm *PermanentError
			if errors.As(err, &perm) {
				c.metrics.recordFailure()
				return nil, err
			}
			c.failed()
			logger.Warn("notify failed", "event_id", n.EventID, "attempt", attempt+1, "error", err)
			lastErr = err
			continue
		}
		c.metrics.recordSuccess(time.Since(started).Milliseconds())

		var resp NotifyResponse
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &resp); err != nil {
				return nil, fmt.Errorf("decode notifier response: %w", err)
			}
		}
		if resp.EventID == "" {
			resp.EventID = n.EventID
			resp.Accepted = true
		}
		return &resp, nil
	}
	return nil, fmt.Errorf("notify failed after %d attempts: %w", c.config.MaxRetries+1, lastErr)
}

func (c *NotifierClient) failed() {
	fails := c.metrics.recordFailure()
	if fails < int32(c.config.CircuitBreakerThreshold) {
		return
	}
	c.mu.Lock()
	c.openUntil = c.now().Add(c.config.CircuitBreakerTimeout)
	c.mu.Unlock()
	c.metrics.ConsecutiveFails.Store(0)
	logger.Warn("notifier circuit opened", "consecutive_fails", fails, "timeout", c.config.CircuitBreakerTimeout)
}

func (c *NotifierClient) post(ctx context.Context, body []byte) ([]byte, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.config.URL + NotifyPath)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.SetBody(body)

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(c.config.Timeout)
	}
	if err := c.client.DoDeadline(req, resp, deadline); err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	status := resp.StatusCode()
	switch {
	case status == fasthttp.StatusOK || status == fasthttp.StatusAccepted || status == fasthttp.StatusNoContent:
	case status >= 400 && status < 500 && status != fasthttp.StatusTooManyRequests:
		return nil, &PermanentError{StatusCode: status, Body: string(resp.Body())}
	default:
		return nil, fmt.Errorf("unexpected status code: %d", status)
	}

	out := make([]byte, len(resp.Body()))
	copy(out, resp.Body())
	return out, nil
}

func (c *NotifierClient) Close() {
	c.client.CloseIdleConnections()
}
