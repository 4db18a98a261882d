package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/flaviosmedeiros/placar-realtime-sub000/internal/adapter/metrics"
	"github.com/flaviosmedeiros/placar-realtime-sub000/internal/domain"
)

type Config struct {
	Workers           int
	QueueSize         int
	SubscriberBuffer  int
	HeartbeatInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		Workers:           4,
		QueueSize:         1000,
		SubscriberBuffer:  32,
		HeartbeatInterval: 10 * time.Second,
	}
}

// Hub tracks subscriber connections per channel and fans events out to them.
type Hub struct {
	cfg        Config
	clock      clockwork.Clock
	metrics    *metrics.HubMetrics
	dispatcher *Dispatcher

	mu      sync.RWMutex
	conns   map[domain.Channel][]Conn
	stopped bool
}

var _ domain.Broadcaster = (*Hub)(nil)

// NewHub starts the dispatcher workers. m may be nil.
func NewHub(cfg Config, clock clockwork.Clock, m *metrics.HubMetrics) *Hub {
	h := &Hub{
		cfg:     cfg,
		clock:   clock,
		metrics: m,
		conns:   make(map[domain.Channel][]Conn),
	}

	var onDrop func()
	if m != nil {
		onDrop = m.DroppedTasks.Inc
	}
	h.dispatcher = NewDispatcher(cfg.Workers, cfg.QueueSize, onDrop)
	return h
}

// Register creates a buffered Stream and attaches it to channel.
func (h *Hub) Register(channel domain.Channel) (*Stream, error) {
	s := NewStream(h.cfg.SubscriberBuffer)
	if err := h.Attach(channel, s); err != nil {
		return nil, err
	}
	return s, nil
}

// Attach adds conn to channel and removes it again once conn.Done() closes.
func (h *Hub) Attach(channel domain.Channel, conn Conn) error {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return ErrHubStopped
	}
	h.conns[channel] = append(h.conns[channel], conn)
	count := len(h.conns[channel])
	h.mu.Unlock()

	h.setGauge(channel, count)
	slog.Info("Subscriber registered", "channel", channel, "conn_id", conn.ID(), "subscribers", count)

	go func() {
		<-conn.Done()
		h.Remove(channel, conn)
	}()
	return nil
}

// Remove detaches conn from channel and closes it. Removing a connection that
// is not attached is a no-op.
func (h *Hub) Remove(channel domain.Channel, conn Conn) {
	h.mu.Lock()
	list := h.conns[channel]
	idx := slices.Index(list, conn)
	if idx < 0 {
		h.mu.Unlock()
		conn.Close()
		return
	}

	// copy on write: snapshots taken by in-flight fan-outs keep their view
	next := make([]Conn, 0, len(list)-1)
	next = append(next, list[:idx]...)
	next = append(next, list[idx+1:]...)
	if len(next) == 0 {
		delete(h.conns, channel)
	} else {
		h.conns[channel] = next
	}
	h.mu.Unlock()

	conn.Close()
	h.setGauge(channel, len(next))
	slog.Info("Subscriber removed", "channel", channel, "conn_id", conn.ID(), "subscribers", len(next))
}

// Broadcast queues event for delivery to every connection on channel and
// returns without waiting for delivery.
func (h *Hub) Broadcast(channel domain.Channel, event *domain.ScoreEvent) error {
	if event == nil {
		return nil
	}

	h.mu.RLock()
	stopped := h.stopped
	n := len(h.conns[channel])
	h.mu.RUnlock()

	if stopped {
		return ErrHubStopped
	}
	if n == 0 {
		slog.Debug("No subscribers, skipping broadcast", "channel", channel, "game_id", event.ID)
		return nil
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode game %d: %w", event.ID, err)
	}

	if h.metrics != nil {
		h.metrics.BroadcastsTotal.WithLabelValues(channel.String()).Inc()
	}
	frame := EventFrame(channel, data)
	return h.dispatcher.Submit(func() { h.fanOut(channel, frame) })
}

func (h *Hub) fanOut(channel domain.Channel, frame Frame) {
	conns := h.snapshot(channel)
	for _, conn := range conns {
		if err := conn.Send(frame); err != nil {
			slog.Warn("Failed to send event, removing subscriber", "channel", channel, "conn_id", conn.ID(), "error", err)
			if h.metrics != nil {
				h.metrics.SendFailures.WithLabelValues(channel.String()).Inc()
			}
			h.Remove(channel, conn)
			continue
		}
		if h.metrics != nil {
			h.metrics.FramesSent.WithLabelValues(channel.String()).Inc()
		}
	}
	slog.Debug("Broadcast delivered", "channel", channel, "subscribers", len(conns))
}

// Heartbeat sends a keep-alive to every connection and removes those that
// fail.
func (h *Hub) Heartbeat() {
	h.mu.RLock()
	all := make(map[domain.Channel][]Conn, len(h.conns))
	for channel, list := range h.conns {
		all[channel] = list
	}
	h.mu.RUnlock()

	if h.metrics != nil {
		h.metrics.HeartbeatsTotal.Inc()
	}

	frame := KeepAliveFrame()
	for channel, list := range all {
		for _, conn := range list {
			if err := conn.Send(frame); err != nil {
				slog.Debug("Heartbeat failed, removing subscriber", "channel", channel, "conn_id", conn.ID(), "error", err)
				h.Remove(channel, conn)
			}
		}
	}
}

// RunHeartbeat calls Heartbeat every HeartbeatInterval until ctx is cancelled.
func (h *Hub) RunHeartbeat(ctx context.Context) {
	ticker := h.clock.NewTicker(h.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			h.Heartbeat()
		}
	}
}

// ChannelStatus returns the live connection count of every channel that has
// at least one connection.
func (h *Hub) ChannelStatus() map[string]int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	status := make(map[string]int, len(h.conns))
	for channel, list := range h.conns {
		status[channel.String()] = len(list)
	}
	return status
}

// Subscribers returns the total number of live connections.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	total := 0
	for _, list := range h.conns {
		total += len(list)
	}
	return total
}

// Stop rejects new subscribers and broadcasts, drains queued fan-outs, and
// closes every connection.
func (h *Hub) Stop() {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return
	}
	h.stopped = true
	h.mu.Unlock()

	h.dispatcher.Stop()

	h.mu.Lock()
	all := h.conns
	h.conns = make(map[domain.Channel][]Conn)
	h.mu.Unlock()

	closed := 0
	for channel, list := range all {
		for _, conn := range list {
			conn.Close()
			closed++
		}
		h.setGauge(channel, 0)
	}
	slog.Info("Broadcast hub stopped", "closed_subscribers", closed, "dropped_tasks", h.dispatcher.Dropped())
}

func (h *Hub) snapshot(channel domain.Channel) []Conn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.conns[channel]
}

func (h *Hub) setGauge(channel domain.Channel, n int) {
	if h.metrics != nil {
		h.metrics.Subscribers.WithLabelValues(channel.String()).Set(float64(n))
	}
}
