package payment

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSealpay() Sealpay {
	return Sealpay{
		APIKey:        "sk_test_abc",
		WebhookSecret: "whsec_test",
		SkewTolerance: 5 * time.Minute,
	}
}

func TestSealpayCreateIntentDeterministic(t *testing.T) {
	sp := testSealpay()
	req := IntentRequest{
		BookingReference: "SW-AB12CD34",
		Amount:           decimal.RequireFromString("833.00"),
		Currency:         "EUR",
		ExpiresAtSec:     1800,
	}

	first, err := sp.CreateIntent(context.Background(), req)
	require.NoError(t, err)
	second, err := sp.CreateIntent(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first.IntentID, second.IntentID)
	assert.Contains(t, first.CheckoutURL, first.IntentID)
	assert.Equal(t, "sealpay", first.Provider)
}

func TestSealpayCreateIntentRejectsBadInput(t *testing.T) {
	sp := testSealpay()

	_, err := sp.CreateIntent(context.Background(), IntentRequest{Amount: decimal.NewFromInt(10)})
	assert.Error(t, err)

	_, err = sp.CreateIntent(context.Background(), IntentRequest{BookingReference: "SW-X", Amount: decimal.Zero})
	assert.Error(t, err)
}

func signedWebhookRequest(t *testing.T, sp Sealpay, ts time.Time, body string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/payment", nil)
	req.Header.Set(SignatureHeader, sp.SignBody(ts, []byte(body)))
	return req
}

func TestSealpayVerifyWebhook(t *testing.T) {
	sp := testSealpay()
	body := `{"id":"evt_1","type":"payment.succeeded","data":{"booking_reference":"SW-AB12CD34","intent_id":"spi_x"}}`

	t.Run("valid signature", func(t *testing.T) {
		req := signedWebhookRequest(t, sp, time.Now(), body)
		result, err := sp.VerifyWebhook(req, []byte(body))
		require.NoError(t, err)
		require.True(t, result.Valid)
		assert.Equal(t, "evt_1", result.EventID)
		assert.Equal(t, "SW-AB12CD34", result.BookingReference)
		assert.Equal(t, StatusPaid, result.Status)
	})

	t.Run("tampered body", func(t *testing.T) {
		req := signedWebhookRequest(t, sp, time.Now(), body)
		tampered := []byte(`{"id":"evt_1","type":"payment.succeeded","data":{"booking_reference":"SW-OTHER"}}`)
		result, err := sp.VerifyWebhook(req, tampered)
		require.NoError(t, err)
		assert.False(t, result.Valid)
	})

	t.Run("stale timestamp", func(t *testing.T) {
		req := signedWebhookRequest(t, sp, time.Now().Add(-time.Hour), body)
		result, err := sp.VerifyWebhook(req, []byte(body))
		require.NoError(t, err)
		assert.False(t, result.Valid)
	})

	t.Run("missing header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/payment", nil)
		result, err := sp.VerifyWebhook(req, []byte(body))
		require.NoError(t, err)
		assert.False(t, result.Valid)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := sp
		other.WebhookSecret = "whsec_other"
		req := signedWebhookRequest(t, other, time.Now(), body)
		result, err := sp.VerifyWebhook(req, []byte(body))
		require.NoError(t, err)
		assert.False(t, result.Valid)
	})
}

func TestNormaliseSealpayType(t *testing.T) {
	assert.Equal(t, StatusPaid, normaliseSealpayType("payment.succeeded"))
	assert.Equal(t, StatusFailed, normaliseSealpayType("payment.failed"))
	assert.Equal(t, StatusExpired, normaliseSealpayType("payment.expired"))
	assert.Equal(t, StatusPending, normaliseSealpayType("payment.created"))
}
