// Package websocket fans price updates out to live feed subscribers.
package websocket

import (
	"context"
	"sort"
	"sync"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/user/papercex/backend/internal/ticker"
)

// Client is one subscriber. The hub closes Send when it drops the client.
type Client struct {
	ID   string
	Send chan []byte
}

func NewClient(id string, buffer int) *Client {
	return &Client{ID: id, Send: make(chan []byte, buffer)}
}

// Hub manages WebSocket clients and broadcasts messages. Only the Run
// goroutine mutates the client set.
type Hub struct {
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	logger     *zap.Logger

	mu      sync.RWMutex
	clients map[*Client]struct{}
	latest  map[string][]byte // last message per symbol, replayed on register
}

func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logger,
		clients:    make(map[*Client]struct{}),
		latest:     make(map[string][]byte),
	}
}

// Register adds c to the hub. It reports false once the hub has stopped.
func (h *Hub) Register(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes c and closes its Send channel if still registered.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Run starts the Hub's event loop. It returns when ctx is done or updates is
// closed, closing every client's Send channel.
func (h *Hub) Run(ctx context.Context, updates <-chan ticker.PriceUpdate) {
	defer h.shutdown()
	h.logger.Info("websocket hub started")

	for {
		select {
		case <-ctx.Done():
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			h.replay(c)
			h.mu.Unlock()
			h.logger.Debug("client registered", zap.String("client", c.ID))

		case c := <-h.unregister:
			h.mu.Lock()
			h.drop(c)
			h.mu.Unlock()

		case u, ok := <-updates:
			if !ok {
				return
			}
			msg, err := json.Marshal(u)
			if err != nil {
				h.logger.Error("marshal price update", zap.String("symbol", u.Symbol), zap.Error(err))
				continue
			}
			h.broadcast(u.Symbol, msg)
		}
	}
}

func (h *Hub) broadcast(symbol string, msg []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.latest[symbol] = msg
	for c := range h.clients {
		select {
		case c.Send <- msg:
		default:
			h.logger.Warn("client send buffer full, dropping client", zap.String("client", c.ID))
			h.drop(c)
		}
	}
}

// replay sends the latest known prices without blocking. Caller holds mu.
func (h *Hub) replay(c *Client) {
	symbols := make([]string, 0, len(h.latest))
	for s := range h.latest {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	for _, s := range symbols {
		select {
		case c.Send <- h.latest[s]:
		default:
			return
		}
	}
}

// drop expects mu held.
func (h *Hub) drop(c *Client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.Send)
	h.logger.Debug("client unregistered", zap.String("client", c.ID))
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	for c := range h.clients {
		h.drop(c)
	}
	h.mu.Unlock()
	close(h.done)
	h.logger.Info("websocket hub stopped")
}
