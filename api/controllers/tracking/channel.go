package tracking

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait    = 10 * time.Second
	pingInterval = 30 * time.Second
	maxFrameSize = 512
)

var (
	errChannelClosed = errors.New("channel closed")
	errSendQueueFull = errors.New("send queue full")
)

// wsChannel adapts a websocket connection to tracking.Channel. Send only
// enqueues; a single writer goroutine owns all writes to the connection.
type wsChannel struct {
	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newWSChannel(conn *websocket.Conn, buffer int) *wsChannel {
	if buffer <= 0 {
		buffer = 16
	}
	return &wsChannel{
		conn: conn,
		send: make(chan []byte, buffer),
		done: make(chan struct{}),
	}
}

// Send fails once the connection is closed or when the client is too slow to
// drain its queue. Either way the registry prunes the channel.
func (c *wsChannel) Send(_ context.Context, payload []byte) error {
	select {
	case <-c.done:
		return errChannelClosed
	default:
	}
	select {
	case c.send <- payload:
		return nil
	case <-c.done:
		return errChannelClosed
	default:
		c.close()
		return errSendQueueFull
	}
}

func (c *wsChannel) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.close()
	}()
	for {
		select {
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *wsChannel) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		_ = c.conn.Close()
	})
}
