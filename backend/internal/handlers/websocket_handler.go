package handlers

import (
	"time"

	"github.com/gofiber/contrib/websocket"
	"go.uber.org/zap"

	internalws "github.com/user/papercex/backend/internal/websocket"
)

const (
	clientBuffer   = 256
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 512
)

// PriceFeed is the handler for the WebSocket price feed. The feed is public
// and read-only; inbound messages are discarded.
func (h *Handler) PriceFeed(c *websocket.Conn) {
	client := internalws.NewClient(c.RemoteAddr().String(), clientBuffer)
	if !h.hub.Register(client) {
		_ = c.Close()
		return
	}
	h.logger.Debug("websocket connection established", zap.String("client", client.ID))

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.writePump(c, client)
	}()

	h.readPump(c, client)
	h.hub.Unregister(client)
	// the connection is recycled once this handler returns
	<-done
}

// writePump pumps messages from the hub to the websocket connection.
func (h *Handler) writePump(c *websocket.Conn, client *internalws.Client) {
	ping := time.NewTicker(pingPeriod)
	defer func() {
		ping.Stop()
		_ = c.Close()
	}()

	for {
		select {
		case message, ok := <-client.Send:
			_ = c.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.WriteMessage(websocket.TextMessage, message); err != nil {
				h.logger.Debug("websocket write failed", zap.String("client", client.ID), zap.Error(err))
				return
			}
		case <-ping.C:
			_ = c.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump blocks until the peer disconnects or stops answering pings.
func (h *Handler) readPump(c *websocket.Conn, client *internalws.Client) {
	c.SetReadLimit(maxMessageSize)
	_ = c.SetReadDeadline(time.Now().Add(pongWait))
	c.SetPongHandler(func(string) error {
		return c.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("client disconnected unexpectedly", zap.String("client", client.ID), zap.Error(err))
			}
			return
		}
	}
}
