// Package mock provides an in-process payment provider for development and
// tests. Outcomes are deterministic: charges succeed unless the request
// metadata asks for a decline or a simulated outage.
package mock

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ecomstack/storefront/internal/payment"
	apperrors "github.com/ecomstack/storefront/pkg/errors"
)

// Metadata keys understood by the mock provider.
const (
	KeyForceDecline = "mock_decline"
	KeyForceError   = "mock_error"
)

// Provider is a deterministic in-memory payment provider.
type Provider struct {
	logger  *slog.Logger
	latency time.Duration

	mu      sync.Mutex
	charges map[string]int64 // payment ref -> amount
}

// New creates a mock provider. Latency is applied to every call to make
// timeout behavior observable in development.
func New(logger *slog.Logger, latency time.Duration) *Provider {
	return &Provider{
		logger:  logger,
		latency: latency,
		charges: make(map[string]int64),
	}
}

func (p *Provider) wait(ctx context.Context) error {
	if p.latency <= 0 {
		return nil
	}
	select {
	case <-time.After(p.latency):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Charge records a successful charge unless the request metadata forces a
// decline or an error.
func (p *Provider) Charge(ctx context.Context, req payment.ChargeRequest) (*payment.ChargeResult, error) {
	if err := p.wait(ctx); err != nil {
		return nil, err
	}

	if req.Metadata[KeyForceError] == "true" {
		return nil, apperrors.ErrServiceUnavail
	}
	if req.Metadata[KeyForceDecline] == "true" {
		return &payment.ChargeResult{
			PaymentRef: "mock_" + uuid.New().String(),
			Status:     payment.StatusDeclined,
			Reason:     "card declined",
		}, nil
	}

	ref := "mock_" + uuid.New().String()
	p.mu.Lock()
	p.charges[ref] = req.Amount
	p.mu.Unlock()

	p.logger.InfoContext(ctx, "mock charge succeeded",
		slog.String("payment_ref", ref),
		slog.Int64("amount", req.Amount),
		slog.String("currency", req.Currency),
	)

	return &payment.ChargeResult{PaymentRef: ref, Status: payment.StatusSucceeded}, nil
}

// Refund reverses a previously recorded charge.
func (p *Provider) Refund(ctx context.Context, paymentRef string, amount int64) error {
	if err := p.wait(ctx); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	charged, ok := p.charges[paymentRef]
	if !ok {
		return apperrors.ErrNotFound
	}
	if amount > charged {
		return apperrors.InvalidInput("refund exceeds charged amount")
	}
	p.charges[paymentRef] = charged - amount

	p.logger.InfoContext(ctx, "mock refund applied",
		slog.String("payment_ref", paymentRef),
		slog.Int64("amount", amount),
	)

	return nil
}
