package events

import (
	"context"
	"errors"
	"fmt"

	"github.com/nimasrn/voucher-wallet/internal/model"
	"github.com/nimasrn/voucher-wallet/pkg/logger"
	"github.com/nimasrn/voucher-wallet/pkg/prom"
)

const (
	BackendRedis = "redis"
	BackendKafka = "kafka"
	BackendNone  = "none"

	MetaEventID   = "event_id"
	MetaEventType = "type"
)

var ErrUnknownBackend = errors.New("unknown event backend")

// Publisher hands a committed lifecycle event to the outside world.
type Publisher interface {
	Publish(ctx context.Context, evt model.VoucherEvent) error
	Close() error
}

// Stream is the producer half of queue.Queue.
type Stream interface {
	PublishJSON(ctx context.Context, v interface{}, metadata map[string]string) (string, error)
}

type QueuePublisher struct {
	stream Stream
}

func NewQueuePublisher(stream Stream) *QueuePublisher {
	return &QueuePublisher{stream: stream}
}

func (p *QueuePublisher) Publish(ctx context.Context, evt model.VoucherEvent) error {
	id, err := p.stream.PublishJSON(ctx, evt, Metadata(evt))
	if err != nil {
		prom.IncEventPublished(string(evt.Type), "error")
		return fmt.Errorf("publish %s: %w", evt.Type, err)
	}
	prom.IncEventPublished(string(evt.Type), "ok")
	logger.Debug("event published", "type", string(evt.Type), "event_id", evt.ID, "stream_id", id)
	return nil
}

func (p *QueuePublisher) Close() error { return nil }

type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, model.VoucherEvent) error { return nil }

func (NopPublisher) Close() error { return nil }

func Metadata(evt model.VoucherEvent) map[string]string {
	return map[string]string{
		MetaEventID:   evt.ID,
		MetaEventType: string(evt.Type),
	}
}
