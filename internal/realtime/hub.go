package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
)

// Message types pushed to clients.
const (
	MessageStockUpdate = "stock.update"
	MessageRestock     = "stock.restock"
)

// Message is the envelope for every frame pushed to a client.
type Message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// StockUpdate is the payload of a stock.update message.
type StockUpdate struct {
	ProductID string `json:"product_id"`
	Color     string `json:"color,omitempty"`
	Material  string `json:"material,omitempty"`
	Size      string `json:"size"`
	Quantity  int    `json:"quantity"`
	InStock   bool   `json:"in_stock"`
}

// Restock is the payload of a stock.restock message.
type Restock struct {
	ProductID string   `json:"product_id"`
	Sizes     []string `json:"sizes"`
}

// Broadcaster is what services publish through. The hub implements it for a
// single instance; the Redis bridge implements it across instances.
type Broadcaster interface {
	BroadcastStockUpdate(ctx context.Context, u StockUpdate)
	BroadcastRestock(ctx context.Context, r Restock)
}

// clientBufferSize bounds the per-client outbound queue. A client that cannot
// drain this many frames is dropped rather than allowed to stall the hub.
const clientBufferSize = 64

// Client is one connected consumer. Frames are queued in order on send and
// the transport goroutine drains them, so each client observes updates in
// publish order.
type Client struct {
	hub    *Hub
	send   chan []byte
	userID string

	mu       sync.Mutex
	products map[string]struct{}
	all      bool
	closed   bool
}

// UserID returns the authenticated user of the connection, if any.
func (c *Client) UserID() string {
	return c.userID
}

// Receive returns the channel the transport drains. The channel is closed
// when the client is dropped.
func (c *Client) Receive() <-chan []byte {
	return c.send
}

// Subscribe adds a product subscription for this client.
func (c *Client) Subscribe(productID string) {
	c.hub.subscribe(c, productID)
}

// Unsubscribe removes a product subscription.
func (c *Client) Unsubscribe(productID string) {
	c.hub.unsubscribe(c, productID)
}

// SubscribeAll opts the client into the firehose of all stock updates.
func (c *Client) SubscribeAll() {
	c.hub.setAll(c, true)
}

// UnsubscribeAll opts the client out of the firehose.
func (c *Client) UnsubscribeAll() {
	c.hub.setAll(c, false)
}

// enqueue queues a frame without blocking. It reports false when the buffer is
// full. A client that disconnected between the hub's snapshot and this call
// counts as delivered; its queue is gone and there is nothing to drop.
func (c *Client) enqueue(frame []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return true
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// Hub fans messages out to connected clients of this instance. A message for
// a product reaches the clients subscribed to that product plus the clients
// subscribed to everything; each client receives it once.
type Hub struct {
	logger *slog.Logger

	mu       sync.RWMutex
	clients  map[*Client]struct{}
	products map[string]map[*Client]struct{}
	all      map[*Client]struct{}
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		logger:   logger,
		clients:  make(map[*Client]struct{}),
		products: make(map[string]map[*Client]struct{}),
		all:      make(map[*Client]struct{}),
	}
}

// Register adds a connection and returns its client handle.
func (h *Hub) Register(userID string) *Client {
	c := &Client{
		hub:      h,
		send:     make(chan []byte, clientBufferSize),
		userID:   userID,
		products: make(map[string]struct{}),
	}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	return c
}

// Unregister removes a connection and all its subscriptions. The send channel
// is closed under the client mutex so it cannot race an in-flight enqueue.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	delete(h.all, c)
	c.mu.Lock()
	for productID := range c.products {
		h.removeSubscription(c, productID)
	}
	c.closed = true
	close(c.send)
	c.mu.Unlock()
	h.mu.Unlock()
}

func (h *Hub) setAll(c *Client, on bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c]; !ok {
		return
	}
	if on {
		h.all[c] = struct{}{}
	} else {
		delete(h.all, c)
	}

	c.mu.Lock()
	c.all = on
	c.mu.Unlock()
}

func (h *Hub) subscribe(c *Client, productID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c]; !ok {
		return
	}
	subs, ok := h.products[productID]
	if !ok {
		subs = make(map[*Client]struct{})
		h.products[productID] = subs
	}
	subs[c] = struct{}{}

	c.mu.Lock()
	c.products[productID] = struct{}{}
	c.mu.Unlock()
}

func (h *Hub) unsubscribe(c *Client, productID string) {
	h.mu.Lock()
	h.removeSubscription(c, productID)
	h.mu.Unlock()

	c.mu.Lock()
	delete(c.products, productID)
	c.mu.Unlock()
}

// removeSubscription must be called with h.mu held.
func (h *Hub) removeSubscription(c *Client, productID string) {
	if subs, ok := h.products[productID]; ok {
		delete(subs, c)
		if len(subs) == 0 {
			delete(h.products, productID)
		}
	}
}

// BroadcastStockUpdate delivers a stock update to the product's subscribers
// and the firehose group.
func (h *Hub) BroadcastStockUpdate(ctx context.Context, u StockUpdate) {
	h.deliver(ctx, MessageStockUpdate, u.ProductID, u)
}

// BroadcastRestock delivers a restock notice to the product's subscribers and
// the firehose group.
func (h *Hub) BroadcastRestock(ctx context.Context, r Restock) {
	h.deliver(ctx, MessageRestock, r.ProductID, r)
}

func (h *Hub) deliver(ctx context.Context, msgType, productID string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to encode realtime payload",
			slog.String("type", msgType),
			slog.String("error", err.Error()),
		)
		return
	}
	frame, err := json.Marshal(Message{Type: msgType, Data: data})
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to encode realtime frame",
			slog.String("type", msgType),
			slog.String("error", err.Error()),
		)
		return
	}

	h.mu.RLock()
	seen := make(map[*Client]struct{}, len(h.products[productID])+len(h.all))
	for c := range h.products[productID] {
		seen[c] = struct{}{}
	}
	for c := range h.all {
		seen[c] = struct{}{}
	}
	targets := make([]*Client, 0, len(seen))
	for c := range seen {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	var dropped []*Client
	for _, c := range targets {
		if !c.enqueue(frame) {
			// Slow consumer: its buffer is full. Drop the connection so one
			// stalled reader cannot block broadcasting to the rest.
			dropped = append(dropped, c)
		}
	}

	for _, c := range dropped {
		h.logger.WarnContext(ctx, "dropping slow realtime client",
			slog.String("user_id", c.userID),
		)
		h.Unregister(c)
	}
}

// SubscriberCount returns how many clients are subscribed to a product.
func (h *Hub) SubscriberCount(productID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.products[productID])
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
