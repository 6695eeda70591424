package realtime

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHub() *Hub {
	return NewHub(slog.New(slog.NewJSONHandler(io.Discard, nil)))
}

func drainOne(t *testing.T, c *Client) Message {
	t.Helper()
	select {
	case frame, ok := <-c.Receive():
		require.True(t, ok, "client channel closed unexpectedly")
		var msg Message
		require.NoError(t, json.Unmarshal(frame, &msg))
		return msg
	default:
		t.Fatal("expected a frame, channel was empty")
		return Message{}
	}
}

func assertEmpty(t *testing.T, c *Client) {
	t.Helper()
	select {
	case frame := <-c.Receive():
		t.Fatalf("expected no frame, got %s", frame)
	default:
	}
}

func TestHub_DeliversToProductSubscribers(t *testing.T) {
	hub := newTestHub()
	ctx := context.Background()

	sub := hub.Register("user-1")
	other := hub.Register("user-2")
	sub.Subscribe("prod-1")
	other.Subscribe("prod-2")

	hub.BroadcastStockUpdate(ctx, StockUpdate{ProductID: "prod-1", Size: "M", Quantity: 3, InStock: true})

	msg := drainOne(t, sub)
	assert.Equal(t, MessageStockUpdate, msg.Type)
	var update StockUpdate
	require.NoError(t, json.Unmarshal(msg.Data, &update))
	assert.Equal(t, "prod-1", update.ProductID)
	assert.Equal(t, 3, update.Quantity)

	assertEmpty(t, other)
}

func TestHub_FirehoseReceivesEverything(t *testing.T) {
	hub := newTestHub()
	ctx := context.Background()

	fire := hub.Register("admin-1")
	fire.SubscribeAll()

	hub.BroadcastStockUpdate(ctx, StockUpdate{ProductID: "prod-1", Size: "M", Quantity: 1})
	hub.BroadcastStockUpdate(ctx, StockUpdate{ProductID: "prod-2", Size: "L", Quantity: 2})

	drainOne(t, fire)
	drainOne(t, fire)
	assertEmpty(t, fire)

	fire.UnsubscribeAll()
	hub.BroadcastStockUpdate(ctx, StockUpdate{ProductID: "prod-3", Size: "S", Quantity: 9})
	assertEmpty(t, fire)
}

func TestHub_SubscriberAndFirehoseGetOneFrameEach(t *testing.T) {
	hub := newTestHub()
	ctx := context.Background()

	c := hub.Register("user-1")
	c.Subscribe("prod-1")
	c.SubscribeAll()

	hub.BroadcastStockUpdate(ctx, StockUpdate{ProductID: "prod-1", Size: "M", Quantity: 5})

	drainOne(t, c)
	assertEmpty(t, c)
}

func TestHub_FramesArriveInPublishOrder(t *testing.T) {
	hub := newTestHub()
	ctx := context.Background()

	c := hub.Register("user-1")
	c.Subscribe("prod-1")

	for q := 1; q <= 5; q++ {
		hub.BroadcastStockUpdate(ctx, StockUpdate{ProductID: "prod-1", Size: "M", Quantity: q})
	}

	for q := 1; q <= 5; q++ {
		msg := drainOne(t, c)
		var update StockUpdate
		require.NoError(t, json.Unmarshal(msg.Data, &update))
		assert.Equal(t, q, update.Quantity)
	}
}

func TestHub_SlowConsumerIsDropped(t *testing.T) {
	hub := newTestHub()
	ctx := context.Background()

	slow := hub.Register("user-1")
	slow.Subscribe("prod-1")
	healthy := hub.Register("user-2")
	healthy.Subscribe("prod-1")

	// Fill the slow client's buffer, then one more to overflow it.
	for q := 0; q <= clientBufferSize; q++ {
		hub.BroadcastStockUpdate(ctx, StockUpdate{ProductID: "prod-1", Size: "M", Quantity: q})
		// Keep the healthy client drained so only the slow one backs up.
		<-healthy.Receive()
	}

	assert.Equal(t, 1, hub.ClientCount())
	assert.Equal(t, 1, hub.SubscriberCount("prod-1"))

	// The dropped client's channel is closed after its buffer drains.
	for range slow.Receive() {
	}
}

func TestHub_UnsubscribeStopsDelivery(t *testing.T) {
	hub := newTestHub()
	ctx := context.Background()

	c := hub.Register("user-1")
	c.Subscribe("prod-1")
	c.Unsubscribe("prod-1")

	hub.BroadcastStockUpdate(ctx, StockUpdate{ProductID: "prod-1", Size: "M", Quantity: 1})
	assertEmpty(t, c)
	assert.Equal(t, 0, hub.SubscriberCount("prod-1"))
}

func TestHub_UnregisterClosesChannel(t *testing.T) {
	hub := newTestHub()

	c := hub.Register("user-1")
	c.Subscribe("prod-1")
	hub.Unregister(c)

	_, ok := <-c.Receive()
	assert.False(t, ok)
	assert.Equal(t, 0, hub.ClientCount())
	assert.Equal(t, 0, hub.SubscriberCount("prod-1"))

	// A second unregister is a no-op, not a double close.
	hub.Unregister(c)
}

func TestHub_BroadcastRestock(t *testing.T) {
	hub := newTestHub()
	ctx := context.Background()

	c := hub.Register("user-1")
	c.Subscribe("prod-1")

	hub.BroadcastRestock(ctx, Restock{ProductID: "prod-1", Sizes: []string{"M", "L"}})

	msg := drainOne(t, c)
	assert.Equal(t, MessageRestock, msg.Type)
	var restock Restock
	require.NoError(t, json.Unmarshal(msg.Data, &restock))
	assert.Equal(t, []string{"M", "L"}, restock.Sizes)
}

func TestHub_BroadcastDuringDisconnectDoesNotPanic(t *testing.T) {
	hub := newTestHub()
	ctx := context.Background()

	const rounds = 500
	var wg sync.WaitGroup
	wg.Add(2)

	clients := make(chan *Client, rounds)
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			c := hub.Register("user-1")
			c.Subscribe("prod-1")
			clients <- c
		}
		close(clients)
	}()
	go func() {
		defer wg.Done()
		for c := range clients {
			// Disconnect while the broadcaster may hold a snapshot that
			// still includes this client.
			hub.Unregister(c)
		}
	}()

	for i := 0; i < rounds; i++ {
		hub.BroadcastStockUpdate(ctx, StockUpdate{ProductID: "prod-1", Size: "M", Quantity: i, InStock: true})
	}

	wg.Wait()
	assert.Equal(t, 0, hub.ClientCount())
}
