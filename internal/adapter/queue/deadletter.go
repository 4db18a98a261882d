package queue

import (
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"

	"github.com/flaviosmedeiros/placar-realtime-sub000/internal/adapter/metrics"
)

// OriginalUUIDKey holds the UUID of the message a dead letter was copied from.
const OriginalUUIDKey = "original_uuid"

// deadLetterPublisher republishes failed messages under a fresh UUID.
// JetStream drops publishes whose Nats-Msg-Id it has already stored, and the
// original message lives in the same stream.
type deadLetterPublisher struct {
	pub     message.Publisher
	metrics *metrics.IntakeMetrics
}

func (p *deadLetterPublisher) Publish(topic string, msgs ...*message.Message) error {
	copies := make([]*message.Message, 0, len(msgs))
	for _, msg := range msgs {
		copies = append(copies, deadLetterCopy(msg))
	}

	if err := p.pub.Publish(topic, copies...); err != nil {
		// the handler error now surfaces to the router, which nacks
		for _, msg := range msgs {
			slog.Error("Dead letter publish failed, message will be redelivered",
				"message_uuid", msg.UUID,
				"dlq_topic", topic,
				"reason", msg.Metadata.Get(middleware.ReasonForPoisonedKey),
				"error", err)
		}
		return err
	}

	if p.metrics != nil {
		p.metrics.DeadLettered.Add(float64(len(msgs)))
	}
	for _, msg := range msgs {
		slog.Warn("Message dead-lettered",
			"message_uuid", msg.UUID,
			"dlq_topic", topic,
			"reason", msg.Metadata.Get(middleware.ReasonForPoisonedKey))
	}
	return nil
}

func (p *deadLetterPublisher) Close() error {
	return p.pub.Close()
}

func deadLetterCopy(msg *message.Message) *message.Message {
	dead := message.NewMessage(watermill.NewUUID(), msg.Payload)
	for k, v := range msg.Metadata {
		dead.Metadata.Set(k, v)
	}
	dead.Metadata.Set(OriginalUUIDKey, msg.UUID)
	return dead
}
