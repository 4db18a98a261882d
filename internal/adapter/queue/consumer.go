package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"

	"github.com/flaviosmedeiros/placar-realtime-sub000/internal/adapter/metrics"
	"github.com/flaviosmedeiros/placar-realtime-sub000/internal/domain"
	"github.com/flaviosmedeiros/placar-realtime-sub000/internal/platform/correlation"
)

const handlerName = "score-events"

// EventHandler processes one decoded score event. A non-nil error means the
// message can never succeed.
type EventHandler interface {
	Handle(ctx context.Context, event *domain.ScoreEvent) error
}

type ConsumerConfig struct {
	Topic        string
	DLQTopic     string
	CloseTimeout time.Duration
}

// Consumer runs the Watermill router that feeds the intake pipeline.
type Consumer struct {
	router  *message.Router
	handler EventHandler
	metrics *metrics.IntakeMetrics
}

// NewConsumer wires sub to handler. Failed messages are copied to
// cfg.DLQTopic through dlq under a new UUID. When that publish fails the
// message is nacked and redelivered. m may be nil.
func NewConsumer(
	cfg ConsumerConfig,
	sub message.Subscriber,
	dlq message.Publisher,
	handler EventHandler,
	m *metrics.IntakeMetrics,
	logger watermill.LoggerAdapter,
) (*Consumer, error) {
	if cfg.CloseTimeout <= 0 {
		cfg.CloseTimeout = 30 * time.Second
	}

	router, err := message.NewRouter(message.RouterConfig{CloseTimeout: cfg.CloseTimeout}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create router: %w", err)
	}

	poisonQueue, err := middleware.PoisonQueue(&deadLetterPublisher{pub: dlq, metrics: m}, cfg.DLQTopic)
	if err != nil {
		return nil, fmt.Errorf("failed to create poison queue middleware: %w", err)
	}

	c := &Consumer{router: router, handler: handler, metrics: m}

	// outermost first: panics become errors before they reach the poison queue
	router.AddMiddleware(
		poisonQueue,
		middleware.Recoverer,
	)
	router.AddNoPublisherHandler(handlerName, cfg.Topic, sub, c.handle)

	return c, nil
}

// Run blocks until ctx is cancelled or Close is called.
func (c *Consumer) Run(ctx context.Context) error {
	if err := c.router.Run(ctx); err != nil {
		return fmt.Errorf("score event router: %w", err)
	}
	return nil
}

// Running is closed once every handler subscription is up.
func (c *Consumer) Running() chan struct{} {
	return c.router.Running()
}

// Close stops consuming and waits for in-flight messages up to CloseTimeout.
func (c *Consumer) Close() error {
	return c.router.Close()
}

func (c *Consumer) handle(msg *message.Message) error {
	id := middleware.MessageCorrelationID(msg)
	if id == "" {
		id = msg.UUID
	}
	ctx := correlation.Ensure(msg.Context(), id)

	event, err := Decode(msg.Payload)
	if err != nil {
		if c.metrics != nil {
			c.metrics.EventsProcessed.WithLabelValues(metrics.ResultRejected).Inc()
		}
		return err
	}
	return c.handler.Handle(ctx, event)
}

// Decode parses a queue payload into a score event.
func Decode(payload []byte) (*domain.ScoreEvent, error) {
	var event domain.ScoreEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("%w: undecodable payload: %v", domain.ErrInvalidEvent, err)
	}
	return &event, nil
}

// Encode builds a Watermill message for event, using a fresh UUID that
// doubles as the correlation id.
func Encode(event *domain.ScoreEvent) (*message.Message, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to encode game %d: %w", event.ID, err)
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	middleware.SetCorrelationID(msg.UUID, msg)
	return msg, nil
}
