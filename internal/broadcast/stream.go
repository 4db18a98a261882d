package broadcast

import (
	"sync"

	"github.com/google/uuid"
)

// Stream is the in-process Conn handed to transports. Frames are buffered;
// the transport drains Frames() until Done() is closed.
type Stream struct {
	id     string
	frames chan Frame
	done   chan struct{}

	mu     sync.RWMutex
	closed bool
}

var _ Conn = (*Stream)(nil)

func NewStream(buffer int) *Stream {
	if buffer < 1 {
		buffer = 1
	}
	return &Stream{
		id:     uuid.NewString(),
		frames: make(chan Frame, buffer),
		done:   make(chan struct{}),
	}
}

func (s *Stream) ID() string { return s.id }

// Send queues frame without blocking.
func (s *Stream) Send(frame Frame) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ErrConnClosed
	}
	select {
	case s.frames <- frame:
		return nil
	default:
		return ErrSlowSubscriber
	}
}

// Frames is never closed; select on Done to detect the end of the stream.
func (s *Stream) Frames() <-chan Frame { return s.frames }

func (s *Stream) Done() <-chan struct{} { return s.done }

func (s *Stream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		s.closed = true
		close(s.done)
	}
}
