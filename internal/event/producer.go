package event

import (
	"context"
	"log/slog"

	"github.com/ecomstack/storefront/pkg/kafka"
	"github.com/ecomstack/storefront/pkg/logger"
)

// Kafka topics this service publishes to.
const (
	TopicStockUpdated   = "stock.updated"
	TopicStockRestocked = "stock.restocked"
	TopicOrderPaid      = "order.paid"
	TopicCouponRedeemed = "coupon.redeemed"
)

// Event types carried in the envelope.
const (
	TypeStockUpdated   = "stock.updated"
	TypeStockRestocked = "stock.restocked"
	TypeOrderPaid      = "order.paid"
	TypeCouponRedeemed = "coupon.redeemed"
)

const source = "storefront"

// StockUpdatedPayload describes one ledger quantity change.
type StockUpdatedPayload struct {
	ProductID        string `json:"product_id"`
	Color            string `json:"color,omitempty"`
	Material         string `json:"material,omitempty"`
	Size             string `json:"size"`
	PreviousQuantity int    `json:"previous_quantity"`
	NewQuantity      int    `json:"new_quantity"`
	MovementType     string `json:"movement_type"`
}

// StockRestockedPayload describes a zero-to-positive transition.
type StockRestockedPayload struct {
	ProductID string   `json:"product_id"`
	Sizes     []string `json:"sizes"`
}

// OrderPaidPayload describes a confirmed order.
type OrderPaidPayload struct {
	OrderID    string `json:"order_id"`
	UserID     string `json:"user_id"`
	Total      int64  `json:"total"`
	Currency   string `json:"currency"`
	CouponCode string `json:"coupon_code,omitempty"`
}

// CouponRedeemedPayload describes one consumed coupon use.
type CouponRedeemedPayload struct {
	CouponID  string `json:"coupon_id"`
	Code      string `json:"code"`
	OrderID   string `json:"order_id"`
	UsedCount int    `json:"used_count"`
	MaxUses   int    `json:"max_uses"`
}

// Publisher emits domain events. Publishing is best effort from the caller's
// point of view: implementations log failures instead of propagating them, so
// a broker outage never fails a checkout that already committed.
type Publisher interface {
	StockUpdated(ctx context.Context, p StockUpdatedPayload)
	StockRestocked(ctx context.Context, p StockRestockedPayload)
	OrderPaid(ctx context.Context, p OrderPaidPayload)
	CouponRedeemed(ctx context.Context, p CouponRedeemedPayload)
}

// KafkaPublisher publishes domain events through the shared Kafka producer.
type KafkaPublisher struct {
	producer *kafka.Producer
	logger   *slog.Logger
}

// NewKafkaPublisher creates a Kafka-backed event publisher.
func NewKafkaPublisher(producer *kafka.Producer, log *slog.Logger) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, logger: log}
}

func (k *KafkaPublisher) publish(ctx context.Context, topic, eventType, aggregateID, aggregateType string, payload any) {
	evt, err := kafka.NewEvent(eventType, aggregateID, aggregateType, source, payload)
	if err != nil {
		k.logger.ErrorContext(ctx, "failed to build event",
			slog.String("event_type", eventType),
			slog.String("error", err.Error()),
		)
		return
	}
	if cid := logger.CorrelationIDFromContext(ctx); cid != "" {
		evt.WithCorrelationID(cid)
	}

	// Publish errors are already logged by the producer.
	_ = k.producer.Publish(ctx, topic, evt)
}

func (k *KafkaPublisher) StockUpdated(ctx context.Context, p StockUpdatedPayload) {
	k.publish(ctx, TopicStockUpdated, TypeStockUpdated, p.ProductID, "sku", p)
}

func (k *KafkaPublisher) StockRestocked(ctx context.Context, p StockRestockedPayload) {
	k.publish(ctx, TopicStockRestocked, TypeStockRestocked, p.ProductID, "sku", p)
}

func (k *KafkaPublisher) OrderPaid(ctx context.Context, p OrderPaidPayload) {
	k.publish(ctx, TopicOrderPaid, TypeOrderPaid, p.OrderID, "order", p)
}

func (k *KafkaPublisher) CouponRedeemed(ctx context.Context, p CouponRedeemedPayload) {
	k.publish(ctx, TopicCouponRedeemed, TypeCouponRedeemed, p.CouponID, "coupon", p)
}

// NoopPublisher drops all events. Used when Kafka is disabled.
type NoopPublisher struct{}

func (NoopPublisher) StockUpdated(context.Context, StockUpdatedPayload)     {}
func (NoopPublisher) StockRestocked(context.Context, StockRestockedPayload) {}
func (NoopPublisher) OrderPaid(context.Context, OrderPaidPayload)           {}
func (NoopPublisher) CouponRedeemed(context.Context, CouponRedeemedPayload) {}
