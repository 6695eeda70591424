package payment

import (
	"context"
)

// Charge statuses reported by providers.
const (
	StatusSucceeded = "succeeded"
	StatusDeclined  = "declined"
)

// ChargeRequest describes one payment attempt. Amount is in minor units.
type ChargeRequest struct {
	CheckoutID string            `json:"checkout_id"`
	UserID     string            `json:"user_id"`
	Amount     int64             `json:"amount"`
	Currency   string            `json:"currency"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// ChargeResult is the provider's answer to a charge attempt. A declined
// charge is a result, not an error; errors mean the outcome is unknown.
type ChargeResult struct {
	PaymentRef string `json:"payment_ref"`
	Status     string `json:"status"`
	Reason     string `json:"reason,omitempty"`
}

// Succeeded reports whether the charge went through.
func (r *ChargeResult) Succeeded() bool {
	return r.Status == StatusSucceeded
}

// Provider is a payment backend. Charge must be treated as non-idempotent by
// callers: on an error the money state is unknown and reconciliation happens
// through the provider webhook.
type Provider interface {
	Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error)
	Refund(ctx context.Context, paymentRef string, amount int64) error
}
