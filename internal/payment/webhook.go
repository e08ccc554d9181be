package payment

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/swellway/swellway-api/internal/common"
	"github.com/swellway/swellway-api/internal/obs"
)

const maxWebhookBody = 1 << 20

// BookingUpdater applies a verified payment outcome to a booking.
type BookingUpdater interface {
	ApplyPaymentEvent(ctx context.Context, reference, status, intentID string) error
}

// EventStore persists webhook events for audit and replay detection.
type EventStore interface {
	RecordEvent(ctx context.Context, ev Event) (inserted bool, err error)
	DeleteEvent(ctx context.Context, provider, eventID string) error
}

// Event is an audit record of a received webhook notification.
type Event struct {
	Provider         string
	EventID          string
	BookingReference string
	Status           string
	Payload          []byte
}

// WebhookHandler receives, verifies, deduplicates, and applies payment
// notifications.
type WebhookHandler struct {
	Provider Provider
	Bookings BookingUpdater
	Events   EventStore
	Redis    *redis.Client
	ReplayTT time.Duration
	Metrics  *obs.BookingMetrics
	Log      zerolog.Logger
}

// ServeHTTP handles POST /webhooks/payment.
//
// Invalid signatures get a 400 so the provider stops retrying; transient
// failures after verification get a 500 so it retries. Duplicates are
// acknowledged with 200 without reapplying. On a transient failure both
// dedup records (the Redis replay key and the event row) are rolled back
// so the retry is processed instead of being swallowed as a duplicate.
func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		h.count("read_error")
		common.WriteError(w, common.BadRequest("unreadable body", err))
		return
	}

	result, err := h.Provider.VerifyWebhook(r, body)
	if err != nil {
		h.count("verify_error")
		common.WriteError(w, err)
		return
	}
	if !result.Valid {
		h.count("invalid_signature")
		h.Log.Warn().Err(result.Err).Msg("rejected payment webhook")
		common.WriteError(w, common.BadRequest("invalid webhook signature", result.Err))
		return
	}

	ctx := r.Context()
	logger := h.Log.With().
		Str("provider", h.Provider.Name()).
		Str("event_id", result.EventID).
		Str("reference", result.BookingReference).
		Str("status", result.Status).
		Logger()

	fresh, err := h.markSeen(ctx, result.EventID)
	if err != nil {
		logger.Error().Err(err).Msg("webhook replay guard unavailable")
		common.WriteError(w, err)
		return
	}
	if !fresh {
		h.count("duplicate")
		logger.Info().Msg("duplicate payment webhook acknowledged")
		common.JSON(w, http.StatusOK, map[string]string{"status": "duplicate"})
		return
	}

	inserted, err := h.Events.RecordEvent(ctx, Event{
		Provider:         h.Provider.Name(),
		EventID:          result.EventID,
		BookingReference: result.BookingReference,
		Status:           result.Status,
		Payload:          result.ProviderPayload,
	})
	if err != nil {
		h.unmarkSeen(ctx, result.EventID)
		logger.Error().Err(err).Msg("failed to persist payment event")
		common.WriteError(w, err)
		return
	}
	if !inserted {
		h.count("duplicate")
		common.JSON(w, http.StatusOK, map[string]string{"status": "duplicate"})
		return
	}

	if err := h.Bookings.ApplyPaymentEvent(ctx, result.BookingReference, result.Status, result.IntentID); err != nil {
		var appErr *common.AppError
		if errors.As(err, &appErr) && appErr.HTTPStatus == http.StatusNotFound {
			h.count("unknown_booking")
			logger.Warn().Msg("payment event for unknown booking")
			common.JSON(w, http.StatusOK, map[string]string{"status": "ignored"})
			return
		}
		h.count("apply_error")
		logger.Error().Err(err).Msg("failed to apply payment event")
		if delErr := h.Events.DeleteEvent(ctx, h.Provider.Name(), result.EventID); delErr != nil {
			logger.Error().Err(delErr).Msg("failed to roll back payment event")
		}
		h.unmarkSeen(ctx, result.EventID)
		common.WriteError(w, err)
		return
	}

	h.count("applied")
	logger.Info().Msg("payment webhook applied")
	common.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// markSeen reserves the event id in Redis. Without Redis the database unique
// constraint on (provider, event_id) still prevents double application.
func (h *WebhookHandler) markSeen(ctx context.Context, eventID string) (bool, error) {
	if h.Redis == nil {
		return true, nil
	}
	ttl := h.ReplayTT
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return h.Redis.SetNX(ctx, h.replayKey(eventID), 1, ttl).Result()
}

// unmarkSeen releases the replay reservation after a transient failure so the
// provider's retry is not acknowledged as a duplicate.
func (h *WebhookHandler) unmarkSeen(ctx context.Context, eventID string) {
	if h.Redis == nil {
		return
	}
	if err := h.Redis.Del(ctx, h.replayKey(eventID)).Err(); err != nil {
		h.Log.Error().Err(err).Str("event_id", eventID).Msg("failed to release replay key")
	}
}

func (h *WebhookHandler) replayKey(eventID string) string {
	return "payment:event:" + h.Provider.Name() + ":" + eventID
}

func (h *WebhookHandler) count(outcome string) {
	if h.Metrics != nil {
		h.Metrics.WebhookEvents.WithLabelValues(h.Provider.Name(), outcome).Inc()
	}
}
