package server

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// inboundQueueSize bounds how many frames a connection may have
// waiting for the room before reads start blocking.
const inboundQueueSize = 64

// client bridges one WebSocket connection and a room. Inbound frames
// flow through a buffered queue so the read loop never runs room code;
// closing the queue is the end-of-stream signal to the serve loop.
type client struct {
	id     string
	conn   *websocket.Conn
	logger *slog.Logger

	queue        chan []byte
	closed       atomic.Bool
	writeMu      sync.Mutex
	writeTimeout time.Duration
}

func newClient(id string, conn *websocket.Conn, writeTimeout time.Duration, logger *slog.Logger) *client {
	return &client{
		id:           id,
		conn:         conn,
		logger:       logger.With("client_id", id),
		queue:        make(chan []byte, inboundQueueSize),
		writeTimeout: writeTimeout,
	}
}

// ID implements room.Client.
func (c *client) ID() string { return c.id }

// Send implements room.Client. Write failures are logged and the
// message dropped; the connection stays open and the read side decides
// when the client is really gone.
func (c *client) Send(msg []byte) {
	if c.closed.Load() {
		return
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	if err := c.conn.WriteMessage(websocket.BinaryMessage, msg); err != nil {
		c.logger.Warn("write failed, message dropped", "error", err)
	}
}

// readLoop reads frames into the queue until the connection ends, then
// closes the queue. It runs on its own goroutine.
func (c *client) readLoop() {
	defer close(c.queue)

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				c.logger.Error("read error", "error", err)
			}
			return
		}
		if len(msg) == 0 {
			continue
		}
		c.queue <- msg
	}
}

// serve drains the queue in order, handing each frame to handle. It
// returns when the read loop signals end of stream.
func (c *client) serve(handle func(msg []byte)) {
	for msg := range c.queue {
		handle(msg)
	}
}

// close marks the client closed and closes the connection, which in
// turn ends the read loop.
func (c *client) close() {
	if c.closed.CompareAndSwap(false, true) {
		c.conn.Close()
	}
}

// closeWithCode sends a close frame with the given code and text, then
// closes the connection.
func (c *client) closeWithCode(code int, text string) {
	c.writeMu.Lock()
	c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, text))
	c.writeMu.Unlock()
	c.close()
}
