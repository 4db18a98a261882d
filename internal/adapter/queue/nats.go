package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmnats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	nc "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// NATSConfig describes the JetStream topology used by the consumer and
// the score feeder.
type NATSConfig struct {
	URL         string
	Stream      string
	Subjects    []string
	QueueGroup  string
	Subscribers int
	ClientName  string
}

// Connect opens a NATS connection that keeps reconnecting in the background.
func Connect(cfg NATSConfig) (*nc.Conn, error) {
	conn, err := nc.Connect(cfg.URL, connectOptions(cfg)...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return conn, nil
}

// EnsureStream creates the JetStream stream that captures the score and
// dead-letter subjects, or updates its subject list when it already exists.
func EnsureStream(ctx context.Context, conn *nc.Conn, cfg NATSConfig) error {
	js, err := jetstream.New(conn)
	if err != nil {
		return fmt.Errorf("failed to initialize JetStream: %w", err)
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     cfg.Stream,
		Subjects: cfg.Subjects,
		Storage:  jetstream.FileStorage,
	})
	if err != nil {
		return fmt.Errorf("failed to provision stream %s: %w", cfg.Stream, err)
	}

	slog.Info("JetStream stream ready", "stream", cfg.Stream, "subjects", cfg.Subjects)
	return nil
}

// NewSubscriber returns a durable, queue-grouped JetStream subscriber so
// several service instances share the score topic.
func NewSubscriber(cfg NATSConfig, logger watermill.LoggerAdapter) (*wmnats.Subscriber, error) {
	sub, err := wmnats.NewSubscriber(wmnats.SubscriberConfig{
		URL:              cfg.URL,
		QueueGroupPrefix: cfg.QueueGroup,
		SubscribersCount: max(cfg.Subscribers, 1),
		AckWaitTimeout:   30 * time.Second,
		CloseTimeout:     30 * time.Second,
		NatsOptions:      connectOptions(cfg),
		Unmarshaler:      &wmnats.NATSMarshaler{},
		JetStream: wmnats.JetStreamConfig{
			AutoProvision: false,
			SubscribeOptions: []nc.SubOpt{
				nc.DeliverAll(),
				nc.AckExplicit(),
			},
			DurablePrefix:     cfg.QueueGroup,
			DurableCalculator: durableName,
		},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create NATS subscriber: %w", err)
	}
	return sub, nil
}

// NewPublisher returns a JetStream publisher used for dead letters and by
// the score feeder.
func NewPublisher(cfg NATSConfig, logger watermill.LoggerAdapter) (*wmnats.Publisher, error) {
	pub, err := wmnats.NewPublisher(wmnats.PublisherConfig{
		URL:         cfg.URL,
		NatsOptions: connectOptions(cfg),
		Marshaler:   &wmnats.NATSMarshaler{},
		JetStream: wmnats.JetStreamConfig{
			AutoProvision: false,
			TrackMsgId:    true,
		},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create NATS publisher: %w", err)
	}
	return pub, nil
}

// CheckConnection reports whether conn is currently connected.
func CheckConnection(conn *nc.Conn) error {
	if conn == nil {
		return errors.New("nats connection not initialized")
	}
	if status := conn.Status(); status != nc.CONNECTED {
		return fmt.Errorf("nats connection is %s", status)
	}
	return nil
}

// durableName derives a JetStream consumer name; durable names may not
// contain dots.
func durableName(prefix, topic string) string {
	return prefix + "_" + strings.NewReplacer(".", "_", "*", "_", ">", "_").Replace(topic)
}

func connectOptions(cfg NATSConfig) []nc.Option {
	name := cfg.ClientName
	if name == "" {
		name = "placar-realtime"
	}
	return []nc.Option{
		nc.Name(name),
		nc.RetryOnFailedConnect(true),
		nc.MaxReconnects(-1),
		nc.ReconnectWait(2 * time.Second),
		nc.DisconnectErrHandler(func(_ *nc.Conn, err error) {
			if err != nil {
				slog.Warn("NATS disconnected", "error", err)
			}
		}),
		nc.ReconnectHandler(func(conn *nc.Conn) {
			slog.Info("NATS reconnected", "url", conn.ConnectedUrl())
		}),
	}
}
