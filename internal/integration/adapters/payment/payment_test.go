package payment

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/gstbill/internal/integration/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMinorUnits(t *testing.T) {
	got, err := minorUnits(decimal.RequireFromString("1180.505"))
	require.NoError(t, err)
	assert.Equal(t, int64(118051), got)

	_, err = minorUnits(decimal.Zero)
	assert.True(t, errors.Is(err, domain.ErrInvalidAmount))

	_, err = minorUnits(decimal.NewFromInt(-5))
	assert.True(t, errors.Is(err, domain.ErrInvalidAmount))
}

func TestCurrencyDefaultsToINR(t *testing.T) {
	assert.Equal(t, "INR", currencyOr(""))
	assert.Equal(t, "USD", currencyOr(" usd "))
}

func TestGatewaysRejectNonPositiveAmountsBeforeCalling(t *testing.T) {
	ctx := context.Background()
	req := domain.PaymentRequest{Provider: "x", Amount: decimal.Zero}

	_, err := NewRazorpay("rzp_test", "secret", nil).ProcessPayment(ctx, req)
	assert.True(t, errors.Is(err, domain.ErrInvalidAmount))

	_, err = NewStripe("sk_test", nil).ProcessPayment(ctx, req)
	assert.True(t, errors.Is(err, domain.ErrInvalidAmount))

	negative := decimal.NewFromInt(-1)
	_, err = NewStripe("sk_test", nil).Refund(ctx, domain.RefundRequest{PaymentID: "pi_1", Amount: &negative})
	assert.True(t, errors.Is(err, domain.ErrInvalidAmount))
}

func TestStripeRecurringNeedsCustomer(t *testing.T) {
	_, err := NewStripe("sk_test", nil).CreateRecurring(context.Background(), domain.RecurringRequest{PlanID: "price_1"})
	assert.True(t, errors.Is(err, domain.ErrMissingCredential))
}

func TestGatewayCapabilities(t *testing.T) {
	want := []string{"process_payment", "recurring_payment", "refund"}
	assert.Equal(t, want, domain.Capabilities(NewRazorpay("k", "s", nil)))
	assert.Equal(t, want, domain.Capabilities(NewStripe("sk", nil)))
}

func TestNotesMergeMetadata(t *testing.T) {
	got := notes(map[string]string{"plan": "pro"}, "invoice_id", "123")
	assert.Equal(t, map[string]interface{}{"plan": "pro", "invoice_id": "123"}, got)
}
