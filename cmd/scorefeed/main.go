package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/urfave/cli/v2"

	"github.com/flaviosmedeiros/placar-realtime-sub000/internal/adapter/queue"
	"github.com/flaviosmedeiros/placar-realtime-sub000/internal/domain"
	"github.com/flaviosmedeiros/placar-realtime-sub000/internal/platform/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cliApp := &cli.App{
		Name:  "scorefeed",
		Usage: "publish synthetic match lifecycles for local development",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "log-level", Value: "info", EnvVars: []string{"LOG_LEVEL"}},
		},
		Before: func(c *cli.Context) error {
			logging.InitLogger(c.String("log-level"), "text")
			return nil
		},
		Commands: []*cli.Command{
			newPublishCommand(),
			newPrintCommand(),
		},
	}

	if err := cliApp.RunContext(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}

func lifecycleFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{Name: "matches", Value: 3, Usage: "number of matches to simulate"},
		&cli.Int64Flag{Name: "first-id", Value: 1, Usage: "id of the first simulated match"},
		&cli.IntFlag{Name: "max-goals", Value: 5, Usage: "upper bound of goals per match"},
		&cli.Uint64Flag{Name: "seed", Usage: "faker seed, 0 picks a random one"},
		&cli.BoolFlag{Name: "delete", Usage: "remove each match after its final whistle"},
	}
}

func newPublishCommand() *cli.Command {
	return &cli.Command{
		Name:  "publish",
		Usage: "publish the simulated events to the score topic",
		Flags: append(lifecycleFlags(),
			&cli.StringFlag{Name: "nats-url", Value: "nats://localhost:4222", EnvVars: []string{"NATS_URL"}},
			&cli.StringFlag{Name: "stream", Value: "GAMES", EnvVars: []string{"QUEUE_STREAM"}},
			&cli.StringFlag{Name: "topic", Value: "games.matches", EnvVars: []string{"QUEUE_TOPIC"}},
			&cli.StringFlag{Name: "dlq-topic", Value: "games.matches.dlq", EnvVars: []string{"QUEUE_DLQ_TOPIC"}},
			&cli.DurationFlag{Name: "interval", Value: time.Second, Usage: "pause between published events"},
		),
		Action: func(c *cli.Context) error {
			cfg := queue.NATSConfig{
				URL:        c.String("nats-url"),
				Stream:     c.String("stream"),
				Subjects:   []string{c.String("topic"), c.String("dlq-topic")},
				ClientName: "placar-scorefeed",
			}

			conn, err := queue.Connect(cfg)
			if err != nil {
				return err
			}
			defer conn.Close()

			if err := queue.EnsureStream(c.Context, conn, cfg); err != nil {
				return err
			}

			pub, err := queue.NewPublisher(cfg, watermill.NewSlogLogger(slog.Default()))
			if err != nil {
				return err
			}
			defer func() { _ = pub.Close() }()

			topic := c.String("topic")
			interval := c.Duration("interval")
			return feed(c.Context, timelines(c), interval, func(event *domain.ScoreEvent) error {
				msg, err := queue.Encode(event)
				if err != nil {
					return err
				}
				if err := pub.Publish(topic, msg); err != nil {
					return fmt.Errorf("failed to publish game %d: %w", event.ID, err)
				}
				slog.Info("Published score event",
					"game_id", event.ID,
					"status", event.Status,
					"minute", event.ElapsedMinutes,
					"score", fmt.Sprintf("%d-%d", event.ScoreA, event.ScoreB))
				return nil
			})
		},
	}
}

func newPrintCommand() *cli.Command {
	return &cli.Command{
		Name:  "print",
		Usage: "write the simulated events to stdout as JSON lines",
		Flags: lifecycleFlags(),
		Action: func(c *cli.Context) error {
			return feed(c.Context, timelines(c), 0, jsonLines(c.App.Writer))
		},
	}
}

func timelines(c *cli.Context) [][]*domain.ScoreEvent {
	seed := c.Uint64("seed")
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	slog.Debug("Generating matches", "seed", seed)

	gen := newLifecycleGenerator(seed, c.Int("max-goals"), time.Now())
	first := c.Int64("first-id")

	matches := make([][]*domain.ScoreEvent, 0, c.Int("matches"))
	for i := range c.Int("matches") {
		matches = append(matches, gen.Match(first+int64(i), c.Bool("delete")))
	}
	return matches
}

// feed emits the timelines round-robin so matches progress side by side,
// pausing interval between events. Order within one match is preserved.
func feed(ctx context.Context, matches [][]*domain.ScoreEvent, interval time.Duration, emit func(*domain.ScoreEvent) error) error {
	for step := 0; ; step++ {
		emitted := false
		for _, events := range matches {
			if step >= len(events) {
				continue
			}
			emitted = true

			if err := emit(events[step]); err != nil {
				return err
			}
			if interval <= 0 {
				continue
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(interval):
			}
		}
		if !emitted {
			return nil
		}
	}
}

func jsonLines(w io.Writer) func(*domain.ScoreEvent) error {
	enc := json.NewEncoder(w)
	return func(event *domain.ScoreEvent) error {
		return enc.Encode(event)
	}
}
