package server

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/avollmer/chatrelay/internal/metrics"
)

const (
	writeDeadline    = 5 * time.Second
	pingInterval     = 30 * time.Second
	pongDeadline     = 60 * time.Second
	sendBufferSize   = 16
	closeGracePeriod = time.Second
)

var (
	errConnClosed     = errors.New("connection closed")
	errSendBufferFull = errors.New("send buffer full")
)

// wsConn adapts a gorilla WebSocket connection to the registry.Connection
// contract. Writes go through a buffered channel drained by a single write
// goroutine, so Send never blocks a broadcast scan: a full buffer or a dead
// writer surfaces as a send error, which drives eviction.
type wsConn struct {
	conn   *websocket.Conn
	clock  clockwork.Clock
	sendCh chan string

	done     chan struct{} // closed by Close to stop the writer
	exited   chan struct{} // closed when the write goroutine returns
	stopOnce sync.Once
}

func newWSConn(conn *websocket.Conn, clock clockwork.Clock) *wsConn {
	c := &wsConn{
		conn:   conn,
		clock:  clock,
		sendCh: make(chan string, sendBufferSize),
		done:   make(chan struct{}),
		exited: make(chan struct{}),
	}
	c.configurePongHandler()
	go c.run()
	return c
}

func (c *wsConn) run() {
	defer close(c.exited)

	ticker := c.clock.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg := <-c.sendCh:
			start := c.clock.Now()
			c.updateWriteDeadline()
			if err := c.conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return
			}
			metrics.WebSocketMessageSendDuration.Observe(c.clock.Since(start).Seconds())
		case <-ticker.Chan():
			c.updateWriteDeadline()
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				metrics.WebSocketPingFailures.Inc()
				return
			}
		case <-c.done:
			return
		}
	}
}

// Send enqueues one text message for delivery. It fails when the write
// goroutine has exited (peer gone) or the buffer is exhausted (slow client).
func (c *wsConn) Send(text string) error {
	select {
	case <-c.exited:
		return errConnClosed
	default:
	}

	select {
	case c.sendCh <- text:
		return nil
	case <-c.exited:
		return errConnClosed
	default:
		return errSendBufferFull
	}
}

// Close stops the writer and closes the underlying connection. A normal
// close frame is written best-effort once the write goroutine has exited,
// so the peer sees a clean shutdown rather than an abrupt drop.
func (c *wsConn) Close() error {
	c.stopOnce.Do(func() {
		close(c.done)

		select {
		case <-c.exited:
			closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			c.updateWriteDeadline()
			_ = c.conn.WriteMessage(websocket.CloseMessage, closeMsg)
		case <-c.clock.After(closeGracePeriod):
		}

		_ = c.conn.Close()
	})
	return nil
}

func (c *wsConn) configurePongHandler() {
	c.updateReadDeadline()
	c.conn.SetPongHandler(func(string) error {
		c.updateReadDeadline()
		return nil
	})
}

func (c *wsConn) updateWriteDeadline() {
	_ = c.conn.SetWriteDeadline(c.clock.Now().Add(writeDeadline))
}

func (c *wsConn) updateReadDeadline() {
	_ = c.conn.SetReadDeadline(c.clock.Now().Add(pongDeadline))
}
