package notification

import (
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBufferSize = 16
)

// Client is one connected kitchen or counter station.
type Client struct {
	tenantID uuid.UUID
	conn     *websocket.Conn
	send     chan []byte
	logger   *zap.Logger
}

// ServeClient registers a websocket connection with the broadcaster and
// starts its pump goroutines. The connection is owned by the client
// from here on.
func ServeClient(b *Broadcaster, tenantID uuid.UUID, conn *websocket.Conn, logger *zap.Logger) {
	client := &Client{
		tenantID: tenantID,
		conn:     conn,
		send:     make(chan []byte, sendBufferSize),
		logger:   logger,
	}

	select {
	case b.register <- client:
	case <-b.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump(b)
}

// readPump drains inbound frames so pings and close frames are
// processed. Stations only listen; inbound payloads are discarded.
func (c *Client) readPump(b *Broadcaster) {
	defer func() {
		// A stopped broadcaster no longer drains unregister; bail out
		// instead of blocking the pump forever.
		select {
		case b.unregister <- c:
		case <-b.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("station connection closed unexpectedly",
					zap.String("tenant_id", c.tenantID.String()),
					zap.Error(err))
			}
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
