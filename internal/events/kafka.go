package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nimasrn/voucher-wallet/internal/model"
	"github.com/nimasrn/voucher-wallet/pkg/logger"
	"github.com/nimasrn/voucher-wallet/pkg/prom"
	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes every event to one topic keyed by purchase reference,
// so the events of a single purchase stay ordered within a partition.
type KafkaPublisher struct {
	writer messageWriter
	topic  string
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
		},
		topic: topic,
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, evt model.VoucherEvent) error {
	msg, err := buildMessage(evt)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		prom.IncEventPublished(string(evt.Type), "error")
		logger.Error("kafka write failed", "topic", p.topic, "type", string(evt.Type), "error", err)
		return fmt.Errorf("kafka publish %s: %w", evt.Type, err)
	}
	prom.IncEventPublished(string(evt.Type), "ok")
	return nil
}

func (p *KafkaPublisher) Close() error {
	if err := p.writer.Close(); err != nil {
		logger.Error("kafka writer close failed", "error", err)
		return err
	}
	return nil
}

func buildMessage(evt model.VoucherEvent) (kafka.Message, error) {
	value, err := json.Marshal(evt)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal event: %w", err)
	}
	key := evt.PurchaseReference
	if key == "" {
		key = fmt.Sprintf("redemption:%d", evt.RedemptionID)
	}

	headers := make([]kafka.Header, 0, 2)
	for k, v := range Metadata(evt) {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}
	return kafka.Message{
		Key:     []byte(key),
		Value:   value,
		Headers: headers,
		Time:    evt.OccurredAt,
	}, nil
}
