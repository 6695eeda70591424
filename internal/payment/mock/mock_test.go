package mock

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecomstack/storefront/internal/payment"
	apperrors "github.com/ecomstack/storefront/pkg/errors"
)

func newProvider() *Provider {
	return New(slog.New(slog.NewJSONHandler(io.Discard, nil)), 0)
}

func TestCharge_Succeeds(t *testing.T) {
	p := newProvider()

	result, err := p.Charge(context.Background(), payment.ChargeRequest{
		CheckoutID: "co-1",
		UserID:     "user-1",
		Amount:     5000,
		Currency:   "EUR",
	})
	require.NoError(t, err)
	assert.True(t, result.Succeeded())
	assert.NotEmpty(t, result.PaymentRef)
}

func TestCharge_ForcedDecline(t *testing.T) {
	p := newProvider()

	result, err := p.Charge(context.Background(), payment.ChargeRequest{
		Amount:   5000,
		Currency: "EUR",
		Metadata: map[string]string{KeyForceDecline: "true"},
	})
	require.NoError(t, err)
	assert.False(t, result.Succeeded())
	assert.Equal(t, payment.StatusDeclined, result.Status)
}

func TestCharge_ForcedError(t *testing.T) {
	p := newProvider()

	_, err := p.Charge(context.Background(), payment.ChargeRequest{
		Amount:   5000,
		Currency: "EUR",
		Metadata: map[string]string{KeyForceError: "true"},
	})
	assert.ErrorIs(t, err, apperrors.ErrServiceUnavail)
}

func TestRefund_RoundTrip(t *testing.T) {
	p := newProvider()
	ctx := context.Background()

	result, err := p.Charge(ctx, payment.ChargeRequest{Amount: 5000, Currency: "EUR"})
	require.NoError(t, err)

	require.NoError(t, p.Refund(ctx, result.PaymentRef, 2000))
	require.NoError(t, p.Refund(ctx, result.PaymentRef, 3000))

	err = p.Refund(ctx, result.PaymentRef, 1)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestRefund_UnknownRef(t *testing.T) {
	p := newProvider()
	err := p.Refund(context.Background(), "mock_unknown", 100)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
