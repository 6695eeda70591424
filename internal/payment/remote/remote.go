// Package remote implements the payment Provider against an external HTTP
// payment gateway. Calls go through the shared circuit-breaker client so a
// degraded gateway fails fast instead of tying up checkout workers.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/ecomstack/storefront/internal/payment"
	apperrors "github.com/ecomstack/storefront/pkg/errors"
	"github.com/ecomstack/storefront/pkg/httpclient"
)

// Config holds the gateway endpoint and credentials.
type Config struct {
	BaseURL string
	APIKey  string
}

// Provider calls an external payment gateway over HTTP.
type Provider struct {
	cfg    Config
	client *httpclient.CircuitBreakerClient
	logger *slog.Logger
}

// New creates a gateway-backed payment provider.
func New(cfg Config, client *httpclient.CircuitBreakerClient, logger *slog.Logger) *Provider {
	return &Provider{cfg: cfg, client: client, logger: logger}
}

type chargePayload struct {
	Reference string            `json:"reference"`
	UserID    string            `json:"user_id"`
	Amount    int64             `json:"amount"`
	Currency  string            `json:"currency"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

type refundPayload struct {
	PaymentRef string `json:"payment_ref"`
	Amount     int64  `json:"amount"`
}

// Charge submits the payment to the gateway. A 402 response is a decline; any
// transport failure or unexpected status leaves the outcome unknown and is
// returned as an error for the caller to compensate.
func (p *Provider) Charge(ctx context.Context, req payment.ChargeRequest) (*payment.ChargeResult, error) {
	body := chargePayload{
		Reference: req.CheckoutID,
		UserID:    req.UserID,
		Amount:    req.Amount,
		Currency:  req.Currency,
		Metadata:  req.Metadata,
	}

	resp, err := p.post(ctx, p.cfg.BaseURL+"/v1/charges", body)
	if err != nil {
		if errors.Is(err, httpclient.ErrCircuitOpen) {
			return nil, apperrors.ServiceUnavailable("payment gateway unavailable")
		}
		return nil, fmt.Errorf("charge request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusPaymentRequired:
	default:
		return nil, fmt.Errorf("charge request: unexpected status %d", resp.StatusCode)
	}

	var result payment.ChargeResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode charge response: %w", err)
	}

	if !result.Succeeded() {
		p.logger.WarnContext(ctx, "charge declined",
			slog.String("checkout_id", req.CheckoutID),
			slog.String("reason", result.Reason),
		)
	}

	return &result, nil
}

// Refund asks the gateway to reverse part or all of a charge.
func (p *Provider) Refund(ctx context.Context, paymentRef string, amount int64) error {
	resp, err := p.post(ctx, p.cfg.BaseURL+"/v1/refunds", refundPayload{PaymentRef: paymentRef, Amount: amount})
	if err != nil {
		if errors.Is(err, httpclient.ErrCircuitOpen) {
			return apperrors.ServiceUnavailable("payment gateway unavailable")
		}
		return fmt.Errorf("refund request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return apperrors.ErrNotFound
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("refund request: unexpected status %d", resp.StatusCode)
	}

	return nil
}

func (p *Provider) post(ctx context.Context, url string, payload any) (*http.Response, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

	resp, err := p.client.Do(ctx, req)
	if err != nil {
		return nil, err
	}

	// Drain bodies of failure responses so connections are reused.
	if resp.StatusCode >= http.StatusInternalServerError {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
		return nil, fmt.Errorf("gateway returned status %d", resp.StatusCode)
	}

	return resp, nil
}
