package realtime

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

const channelStock = "realtime:stock"

// wireMessage is what crosses Redis between instances.
type wireMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// RedisBridge fans messages out across service instances through Redis
// pub/sub. Publishing goes to Redis only; local delivery happens when the
// subscription loop receives the message back, so every instance, including
// the publisher, delivers through the same path.
type RedisBridge struct {
	hub    *Hub
	client *redis.Client
	logger *slog.Logger
}

// NewRedisBridge creates a cross-instance broadcaster on top of a local hub.
func NewRedisBridge(hub *Hub, client *redis.Client, log *slog.Logger) *RedisBridge {
	return &RedisBridge{hub: hub, client: client, logger: log}
}

// BroadcastStockUpdate publishes the update onto the shared channel.
func (b *RedisBridge) BroadcastStockUpdate(ctx context.Context, u StockUpdate) {
	b.publish(ctx, MessageStockUpdate, u)
}

// BroadcastRestock publishes the restock notice onto the shared channel.
func (b *RedisBridge) BroadcastRestock(ctx context.Context, r Restock) {
	b.publish(ctx, MessageRestock, r)
}

func (b *RedisBridge) publish(ctx context.Context, msgType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		b.logger.ErrorContext(ctx, "failed to encode realtime payload",
			slog.String("type", msgType),
			slog.String("error", err.Error()),
		)
		return
	}
	wire, err := json.Marshal(wireMessage{Type: msgType, Payload: data})
	if err != nil {
		b.logger.ErrorContext(ctx, "failed to encode wire message",
			slog.String("type", msgType),
			slog.String("error", err.Error()),
		)
		return
	}

	if err := b.client.Publish(ctx, channelStock, wire).Err(); err != nil {
		b.logger.ErrorContext(ctx, "failed to publish realtime message",
			slog.String("type", msgType),
			slog.String("error", err.Error()),
		)
	}
}

// Run subscribes to the shared channel and delivers received messages to the
// local hub until ctx is cancelled. It is meant to run in its own goroutine.
func (b *RedisBridge) Run(ctx context.Context) error {
	sub := b.client.Subscribe(ctx, channelStock)
	defer func() { _ = sub.Close() }()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			b.dispatch(ctx, []byte(msg.Payload))
		}
	}
}

func (b *RedisBridge) dispatch(ctx context.Context, raw []byte) {
	var wire wireMessage
	if err := json.Unmarshal(raw, &wire); err != nil {
		b.logger.WarnContext(ctx, "discarding malformed realtime message",
			slog.String("error", err.Error()),
		)
		return
	}

	switch wire.Type {
	case MessageStockUpdate:
		var u StockUpdate
		if err := json.Unmarshal(wire.Payload, &u); err != nil {
			return
		}
		b.hub.BroadcastStockUpdate(ctx, u)
	case MessageRestock:
		var r Restock
		if err := json.Unmarshal(wire.Payload, &r); err != nil {
			return
		}
		b.hub.BroadcastRestock(ctx, r)
	}
}
