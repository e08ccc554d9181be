package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"html"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/swellway/swellway-api/internal/common"
	"github.com/swellway/swellway-api/internal/i18n"
)

// BookingExpirer sweeps stale pending bookings. Implemented by the booking
// service.
type BookingExpirer interface {
	ExpireStale(ctx context.Context) (int, error)
}

// SitemapWarmer regenerates the cached sitemap. Implemented by the site
// service.
type SitemapWarmer interface {
	Warm(ctx context.Context) error
}

// Handler executes background tasks on the worker. Inbox, when set, receives
// a staff notification for each contact message.
type Handler struct {
	Mail     common.EmailSender
	Bundle   *i18n.Bundle
	Bookings BookingExpirer
	Sitemap  SitemapWarmer
	Inbox    string
	Log      zerolog.Logger
}

// Register wires every task type into the asynq mux.
func (h *Handler) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeBookingConfirmedEmail, h.HandleBookingConfirmedEmail)
	mux.HandleFunc(TypeContactAckEmail, h.HandleContactAckEmail)
	mux.HandleFunc(TypeExpireBookings, h.HandleExpireBookings)
	mux.HandleFunc(TypeWarmSitemap, h.HandleWarmSitemap)
}

// HandleBookingConfirmedEmail sends the localized booking confirmation.
func (h *Handler) HandleBookingConfirmedEmail(ctx context.Context, t *asynq.Task) error {
	var p BookingConfirmedPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("unmarshal payload: %w: %w", err, asynq.SkipRetry)
	}
	tag := i18n.Match(p.Locale)
	subject := h.Bundle.Tf(tag, "email.booking_confirmed.subject", p.Reference)
	body := h.Bundle.Tf(tag, "email.booking_confirmed.body",
		html.EscapeString(p.Reference), html.EscapeString(p.RetreatTitle))
	if err := h.Mail.Send(p.GuestEmail, subject, "<p>"+body+"</p>"); err != nil {
		return fmt.Errorf("send confirmation email for %s: %w", p.Reference, err)
	}
	h.Log.Info().Str("reference", p.Reference).Str("locale", i18n.Code(tag)).Msg("booking confirmation sent")
	return nil
}

// HandleContactAckEmail sends the localized contact acknowledgement, then a
// plain staff notification when an inbox address is configured.
func (h *Handler) HandleContactAckEmail(ctx context.Context, t *asynq.Task) error {
	var p ContactAckPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("unmarshal payload: %w: %w", err, asynq.SkipRetry)
	}
	tag := i18n.Match(p.Locale)
	subject := h.Bundle.T(tag, "email.contact_ack.subject")
	body := h.Bundle.T(tag, "email.contact_ack.body")
	if err := h.Mail.Send(p.Email, subject, "<p>"+body+"</p>"); err != nil {
		return fmt.Errorf("send contact ack to %s: %w", p.Email, err)
	}
	if h.Inbox != "" {
		notif := fmt.Sprintf("<p>New contact message from %s (%s): %s</p>",
			html.EscapeString(p.Name), html.EscapeString(p.Email), html.EscapeString(p.Subject))
		if err := h.Mail.Send(h.Inbox, "New contact message: "+p.Subject, notif); err != nil {
			h.Log.Error().Err(err).Str("email", p.Email).Msg("failed to notify inbox")
		}
	}
	return nil
}

// HandleExpireBookings transitions stale pending bookings to EXPIRED and
// releases their held spots.
func (h *Handler) HandleExpireBookings(ctx context.Context, t *asynq.Task) error {
	n, err := h.Bookings.ExpireStale(ctx)
	if err != nil {
		return fmt.Errorf("expire bookings: %w", err)
	}
	if n > 0 {
		h.Log.Info().Int("expired", n).Msg("expired stale bookings")
	}
	return nil
}

// HandleWarmSitemap regenerates the sitemap cache ahead of demand.
func (h *Handler) HandleWarmSitemap(ctx context.Context, t *asynq.Task) error {
	if err := h.Sitemap.Warm(ctx); err != nil {
		return fmt.Errorf("warm sitemap: %w", err)
	}
	return nil
}
