// Package payment abstracts the upstream payment provider and processes its
// webhook notifications.
package payment

import (
	"context"
	"net/http"

	"github.com/shopspring/decimal"
)

// Normalised payment statuses produced by webhook verification.
const (
	StatusPaid    = "PAID"
	StatusFailed  = "FAILED"
	StatusExpired = "EXPIRED"
	StatusPending = "PENDING"
)

// IntentRequest captures the information required to open a payment intent.
type IntentRequest struct {
	BookingReference string
	Amount           decimal.Decimal
	Currency         string
	GuestEmail       string
	ExpiresAtSec     int
	ReturnBaseURL    string
}

// IntentResponse is the minimal information returned when creating an intent.
type IntentResponse struct {
	Provider    string
	IntentID    string
	CheckoutURL string
	ExpiresAt   int64
}

// WebhookVerifyResult contains the normalised data extracted from a webhook
// notification after signature verification.
type WebhookVerifyResult struct {
	Valid            bool
	EventID          string
	BookingReference string
	IntentID         string
	Status           string
	ProviderPayload  []byte
	Err              error
}

// Provider abstracts the operations required from an upstream payment provider.
type Provider interface {
	Name() string
	CreateIntent(ctx context.Context, req IntentRequest) (IntentResponse, error)
	VerifyWebhook(r *http.Request, body []byte) (WebhookVerifyResult, error)
}
