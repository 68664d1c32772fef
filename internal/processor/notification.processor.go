package processor

import (
	"context"
	"errors"

	gateway "github.com/nimasrn/voucher-wallet/internal/gateways"
	"github.com/nimasrn/voucher-wallet/internal/model"
	"github.com/nimasrn/voucher-wallet/internal/queue"
	"github.com/nimasrn/voucher-wallet/pkg/logger"
	"github.com/nimasrn/voucher-wallet/pkg/prom"
)

type Notifier interface {
	Notify(ctx context.Context, n *gateway.Notification) (*gateway.NotifyResponse, error)
}

// NotificationProcessor forwards voucher lifecycle events to the webhook
// notifier, once per event id.
type NotificationProcessor struct {
	notifier    Notifier
	idempotency *IdempotencyService
}

func NewNotificationProcessor(notifier Notifier, idempotency *IdempotencyService) *NotificationProcessor {
	return &NotificationProcessor{notifier: notifier, idempotency: idempotency}
}

func (p *NotificationProcessor) GetType() string {
	return "notification"
}

// Process returns nil when the stream entry should be acked.
func (p *NotificationProcessor) Process(ctx context.Context, msg *queue.Message) error {
	var evt model.VoucherEvent
	if err := msg.Unmarshal(&evt); err != nil || evt.ID == "" {
		// A malformed entry will never parse, acking drops it.
		logger.Error("discarding malformed event", "stream_id", msg.ID, "error", err)
		prom.IncEventDelivered("unknown", "malformed")
		return nil
	}

	claim, err := p.idempotency.Acquire(ctx, evt.ID)
	switch {
	case errors.Is(err, ErrAlreadyProcessed):
		logger.Info("event already delivered", "event_id", evt.ID)
		return nil
	case err != nil:
		return err
	}

	if _, err := p.notifier.Notify(ctx, gateway.NotificationFrom(evt)); err != nil {
		_ = p.idempotency.Release(ctx, claim)

		var perm *gateway.PermanentError
		if errors.As(err, &perm) {
			logger.Error("notifier rejected event", "event_id", evt.ID, "type", string(evt.Type), "status", perm.StatusCode)
			prom.IncEventDelivered(string(evt.Type), "rejected")
			return nil
		}
		prom.IncEventDelivered(string(evt.Type), "error")
		return err
	}

	if err := p.idempotency.Complete(ctx, claim); err != nil {
		logger.Error("failed to record delivery", "event_id", evt.ID, "error", err)
	}
	prom.IncEventDelivered(string(evt.Type), "ok")
	logger.Info("event delivered", "event_id", evt.ID, "type", string(evt.Type), "redemption_id", evt.RedemptionID)
	return nil
}
