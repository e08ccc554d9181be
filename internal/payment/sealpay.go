package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// SignatureHeader carries the webhook signature in Sealpay notifications.
const SignatureHeader = "Sealpay-Signature"

// Sealpay implements the Provider interface for a Stripe-style hosted
// checkout integration.
type Sealpay struct {
	APIKey        string
	WebhookSecret string
	BaseURL       string
	SkewTolerance time.Duration
}

// Name returns the provider identifier stored on bookings and events.
func (s Sealpay) Name() string { return "sealpay" }

// CreateIntent synthesises a deterministic checkout session without a network
// call. The real integration would POST to the Sealpay API; deriving the id
// from the booking reference keeps retries idempotent and the flow testable.
func (s Sealpay) CreateIntent(_ context.Context, req IntentRequest) (IntentResponse, error) {
	ref := strings.TrimSpace(req.BookingReference)
	if ref == "" {
		return IntentResponse{}, errors.New("booking reference is required")
	}
	if req.Amount.IsNegative() || req.Amount.IsZero() {
		return IntentResponse{}, fmt.Errorf("invalid amount %s for %s", req.Amount, ref)
	}

	mac := hmac.New(sha256.New, []byte(s.APIKey))
	mac.Write([]byte(ref))
	mac.Write([]byte(req.Amount.StringFixed(2)))
	mac.Write([]byte(req.Currency))
	intentID := "spi_" + hex.EncodeToString(mac.Sum(nil))[:24]

	expiresAt := time.Now().Add(time.Duration(req.ExpiresAtSec) * time.Second)
	return IntentResponse{
		Provider:    s.Name(),
		IntentID:    intentID,
		CheckoutURL: fmt.Sprintf("%s/checkout/%s", strings.TrimRight(s.host(), "/"), intentID),
		ExpiresAt:   expiresAt.Unix(),
	}, nil
}

func (s Sealpay) host() string {
	if host := strings.TrimSpace(s.BaseURL); host != "" {
		return host
	}
	return "https://pay.sealpay.io"
}

// VerifyWebhook validates the t=...,v1=... signature over "<timestamp>.<body>"
// and normalises the payload. A stale timestamp outside the skew tolerance is
// rejected to blunt replay of captured notifications.
func (s Sealpay) VerifyWebhook(r *http.Request, body []byte) (WebhookVerifyResult, error) {
	ts, provided, err := parseSignatureHeader(r.Header.Get(SignatureHeader))
	if err != nil {
		return WebhookVerifyResult{Valid: false, Err: err}, nil
	}

	skew := s.SkewTolerance
	if skew <= 0 {
		skew = 5 * time.Minute
	}
	eventTime := time.Unix(ts, 0)
	if d := time.Since(eventTime); d > skew || d < -skew {
		return WebhookVerifyResult{Valid: false, Err: errors.New("signature timestamp outside tolerance")}, nil
	}

	expected := s.sign(ts, body)
	if !hmac.Equal([]byte(expected), []byte(provided)) {
		return WebhookVerifyResult{Valid: false, Err: errors.New("invalid signature")}, nil
	}

	var payload struct {
		ID   string `json:"id"`
		Type string `json:"type"`
		Data struct {
			BookingReference string `json:"booking_reference"`
			IntentID         string `json:"intent_id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return WebhookVerifyResult{Valid: false, Err: err}, nil
	}
	if payload.ID == "" || payload.Data.BookingReference == "" {
		return WebhookVerifyResult{Valid: false, Err: errors.New("missing event id or booking reference")}, nil
	}

	return WebhookVerifyResult{
		Valid:            true,
		EventID:          payload.ID,
		BookingReference: payload.Data.BookingReference,
		IntentID:         payload.Data.IntentID,
		Status:           normaliseSealpayType(payload.Type),
		ProviderPayload:  body,
	}, nil
}

func (s Sealpay) sign(ts int64, body []byte) string {
	mac := hmac.New(sha256.New, []byte(s.WebhookSecret))
	fmt.Fprintf(mac, "%d.", ts)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// SignBody produces the signature header value for a payload. Used by tests
// and the local webhook replay tool.
func (s Sealpay) SignBody(ts time.Time, body []byte) string {
	unix := ts.Unix()
	return fmt.Sprintf("t=%d,v1=%s", unix, s.sign(unix, body))
}

func parseSignatureHeader(header string) (ts int64, v1 string, err error) {
	if strings.TrimSpace(header) == "" {
		return 0, "", errors.New("missing signature header")
	}
	for _, part := range strings.Split(header, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch key {
		case "t":
			ts, err = strconv.ParseInt(value, 10, 64)
			if err != nil {
				return 0, "", fmt.Errorf("malformed timestamp: %w", err)
			}
		case "v1":
			v1 = value
		}
	}
	if ts == 0 || v1 == "" {
		return 0, "", errors.New("malformed signature header")
	}
	return ts, v1, nil
}

func normaliseSealpayType(eventType string) string {
	switch strings.ToLower(strings.TrimSpace(eventType)) {
	case "payment.succeeded":
		return StatusPaid
	case "payment.failed":
		return StatusFailed
	case "payment.expired":
		return StatusExpired
	default:
		return StatusPending
	}
}
