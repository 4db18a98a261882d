package httpserver

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	wsadapter "github.com/flaviosmedeiros/placar-realtime-sub000/internal/adapter/websocket"
	"github.com/flaviosmedeiros/placar-realtime-sub000/internal/broadcast"
	"github.com/flaviosmedeiros/placar-realtime-sub000/internal/domain"
	apperrors "github.com/flaviosmedeiros/placar-realtime-sub000/internal/platform/errors"
)

const sseWriteTimeout = 10 * time.Second

func (s *Server) registerStreamRoutes(api *echo.Group) {
	api.GET("/sse/games/status", s.handleChannelStatus)
	api.GET("/sse/games/:channel", s.handleSSE)
	api.GET("/ws/games/:channel", s.handleWebSocket)
}

func (s *Server) handleChannelStatus(c echo.Context) error {
	if err := c.JSON(http.StatusOK, s.hub.ChannelStatus()); err != nil {
		return fmt.Errorf("failed to write channel status: %w", err)
	}
	return nil
}

// handleSSE streams one channel as Server-Sent Events until the client goes
// away or the hub drops the subscription.
func (s *Server) handleSSE(c echo.Context) error {
	channel, err := parseChannel(c)
	if err != nil {
		return err
	}

	ip := c.RealIP()
	if err := s.admit(ip); err != nil {
		return err
	}
	defer s.limits.Release(ip)

	stream, err := s.hub.Register(channel)
	if err != nil {
		return apperrors.UnavailableError("subscriptions are closed", err)
	}
	defer stream.Close()

	ctx := c.Request().Context()
	res := c.Response()
	rc := http.NewResponseController(res)
	defer func() { _ = rc.SetWriteDeadline(time.Time{}) }()

	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set(echo.HeaderCacheControl, "no-cache")
	res.Header().Set(echo.HeaderConnection, "keep-alive")
	res.Header().Set("X-Accel-Buffering", "no")
	res.WriteHeader(http.StatusOK)

	if err := s.writeSSE(rc, res, ": connected\n\n"); err != nil {
		return nil
	}

	slog.DebugContext(ctx, "SSE subscriber connected", "channel", channel, "conn_id", stream.ID())
	for {
		select {
		case <-ctx.Done():
			slog.DebugContext(ctx, "SSE subscriber disconnected", "channel", channel, "conn_id", stream.ID())
			return nil
		case <-s.closing:
			return nil
		case <-stream.Done():
			return nil
		case frame := <-stream.Frames():
			if err := s.writeSSE(rc, res, formatSSEFrame(frame)); err != nil {
				slog.DebugContext(ctx, "SSE write failed", "channel", channel, "conn_id", stream.ID(), "error", err)
				return nil
			}
		}
	}
}

// writeSSE writes and flushes chunk under a per-write deadline so a stalled
// peer cannot hold the handler.
func (s *Server) writeSSE(rc *http.ResponseController, res *echo.Response, chunk string) error {
	err := rc.SetWriteDeadline(s.clock.Now().Add(sseWriteTimeout))
	if err != nil && !errors.Is(err, http.ErrNotSupported) {
		return err
	}
	if _, err := io.WriteString(res, chunk); err != nil {
		return err
	}
	res.Flush()
	return nil
}

// handleWebSocket upgrades the request and attaches the connection to the
// channel. It blocks until the connection ends.
func (s *Server) handleWebSocket(c echo.Context) error {
	channel, err := parseChannel(c)
	if err != nil {
		return err
	}

	ip := c.RealIP()
	if err := s.admit(ip); err != nil {
		return err
	}
	defer s.limits.Release(ip)

	ws, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// the upgrader has already written the error response
		slog.DebugContext(c.Request().Context(), "WebSocket upgrade failed", "channel", channel, "error", err)
		return nil
	}

	conn := wsadapter.NewConn(ws, s.clock, s.config.SubscriberBuffer)
	if err := s.hub.Attach(channel, conn); err != nil {
		conn.Close()
		conn.Wait()
		return nil
	}

	select {
	case <-conn.Done():
	case <-s.closing:
		conn.Close()
	}
	conn.Wait()
	return nil
}

// admit applies the subscriber limits for ip. On success the caller must
// release the slot.
func (s *Server) admit(ip string) error {
	ok, reason := s.limits.Acquire(ip)
	if ok {
		return nil
	}

	if s.hubMetrics != nil {
		s.hubMetrics.SubscriberRejected.WithLabelValues(string(reason)).Inc()
	}
	return apperrors.UnavailableError("subscriber limit reached", nil).
		WithContext("reason", string(reason))
}

func parseChannel(c echo.Context) (domain.Channel, error) {
	name := c.Param("channel")
	channel, ok := domain.ParseChannel(name)
	if !ok {
		return "", apperrors.NotFoundError("unknown channel").WithContext("channel", name)
	}
	return channel, nil
}

func formatSSEFrame(frame broadcast.Frame) string {
	if frame.KeepAlive {
		return ": heartbeat\n\n"
	}
	return fmt.Sprintf("event: %s\ndata: %s\n\n", frame.Name, frame.Data)
}

func newUpgrader(cfg Config) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     wsadapter.NewCheckOrigin(cfg.AllowedOrigins, cfg.AppEnv == "development"),
	}
}
