package broadcast

import (
	"errors"

	"github.com/flaviosmedeiros/placar-realtime-sub000/internal/domain"
)

var (
	// ErrSlowSubscriber is returned by Send when the subscriber's buffer is full.
	ErrSlowSubscriber = errors.New("subscriber buffer full")
	// ErrConnClosed is returned by Send after the connection was closed.
	ErrConnClosed = errors.New("connection closed")
	// ErrHubStopped is returned once Stop has been called.
	ErrHubStopped = errors.New("broadcast hub stopped")
)

// Frame is one unit written to a subscriber: either a named event carrying
// a JSON payload, or a keep-alive.
type Frame struct {
	Name      string
	Data      []byte
	KeepAlive bool
}

func EventFrame(channel domain.Channel, data []byte) Frame {
	return Frame{Name: channel.String(), Data: data}
}

func KeepAliveFrame() Frame {
	return Frame{KeepAlive: true}
}

// Conn is a subscriber connection attached to a hub channel.
//
// Send must not block indefinitely; it either queues the frame or fails.
// Done is closed when the connection ends for any reason. Close is idempotent.
type Conn interface {
	ID() string
	Send(frame Frame) error
	Done() <-chan struct{}
	Close()
}
