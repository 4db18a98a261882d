package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/flaviosmedeiros/placar-realtime-sub000/internal/broadcast"
)

const (
	writeDeadline = 5 * time.Second
	pongDeadline  = 60 * time.Second
	maxReadSize   = 512
)

// envelope is the JSON text message written for each event frame.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Conn adapts a gorilla WebSocket connection to broadcast.Conn. A single
// writer goroutine owns all data writes; keep-alive frames become pings.
// A read loop consumes pongs and ends the connection when the peer goes away.
type Conn struct {
	id     string
	conn   *websocket.Conn
	clock  clockwork.Clock
	frames chan broadcast.Frame
	done   chan struct{}

	mu       sync.RWMutex
	closed   bool
	stopOnce sync.Once
	wg       sync.WaitGroup
}

var _ broadcast.Conn = (*Conn)(nil)

// NewConn starts the writer and reader goroutines for conn.
func NewConn(conn *websocket.Conn, clock clockwork.Clock, buffer int) *Conn {
	if buffer < 1 {
		buffer = 1
	}
	c := &Conn{
		id:     uuid.NewString(),
		conn:   conn,
		clock:  clock,
		frames: make(chan broadcast.Frame, buffer),
		done:   make(chan struct{}),
	}

	c.configureReads()
	c.wg.Add(2)
	go c.writeLoop()
	go c.readLoop()
	return c
}

func (c *Conn) ID() string { return c.id }

// Send queues frame for the writer without blocking.
func (c *Conn) Send(frame broadcast.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return broadcast.ErrConnClosed
	}
	select {
	case c.frames <- frame:
		return nil
	default:
		return broadcast.ErrSlowSubscriber
	}
}

func (c *Conn) Done() <-chan struct{} { return c.done }

// Close sends a close frame and tears down the connection. Safe to call more
// than once and from any goroutine.
func (c *Conn) Close() {
	c.stopOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		close(c.done)
		c.mu.Unlock()

		closeMsg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server closing")
		_ = c.conn.WriteControl(websocket.CloseMessage, closeMsg, c.clock.Now().Add(writeDeadline))
		_ = c.conn.Close()
	})
}

// Wait blocks until both connection goroutines have exited.
func (c *Conn) Wait() {
	c.wg.Wait()
}

func (c *Conn) writeLoop() {
	defer c.wg.Done()
	defer c.Close()

	for {
		select {
		case frame := <-c.frames:
			if err := c.write(frame); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *Conn) write(frame broadcast.Frame) error {
	deadline := c.clock.Now().Add(writeDeadline)
	if frame.KeepAlive {
		return c.conn.WriteControl(websocket.PingMessage, nil, deadline)
	}

	msg, err := json.Marshal(envelope{Event: frame.Name, Data: frame.Data})
	if err != nil {
		return err
	}
	_ = c.conn.SetWriteDeadline(deadline)
	return c.conn.WriteMessage(websocket.TextMessage, msg)
}

func (c *Conn) readLoop() {
	defer c.wg.Done()
	defer c.Close()

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *Conn) configureReads() {
	c.conn.SetReadLimit(maxReadSize)
	c.updateReadDeadline()
	c.conn.SetPongHandler(func(string) error {
		c.updateReadDeadline()
		return nil
	})
}

func (c *Conn) updateReadDeadline() {
	_ = c.conn.SetReadDeadline(c.clock.Now().Add(pongDeadline))
}
