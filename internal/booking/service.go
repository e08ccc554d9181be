package booking

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/swellway/swellway-api/internal/common"
	"github.com/swellway/swellway-api/internal/obs"
	"github.com/swellway/swellway-api/internal/payment"
	"github.com/swellway/swellway-api/internal/tasks"
	"github.com/swellway/swellway-api/internal/vat"
)

// Service implements the booking lifecycle.
type Service struct {
	repo            Repository
	vat             *vat.Table
	provider        payment.Provider
	enqueuer        tasks.Enqueuer
	metrics         *obs.BookingMetrics
	log             zerolog.Logger
	referencePrefix string
	intentTTL       time.Duration
	pendingTTL      time.Duration
	publicBaseURL   string
}

// ServiceConfig groups the booking service dependencies.
type ServiceConfig struct {
	Repo            Repository
	VAT             *vat.Table
	Provider        payment.Provider
	Enqueuer        tasks.Enqueuer
	Metrics         *obs.BookingMetrics
	Log             zerolog.Logger
	ReferencePrefix string
	IntentTTL       time.Duration
	PendingTTL      time.Duration
	PublicBaseURL   string
}

// NewService constructs a booking Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Repo == nil || cfg.VAT == nil || cfg.Provider == nil {
		return nil, errors.New("booking: repo, vat table, and payment provider are required")
	}
	prefix := cfg.ReferencePrefix
	if prefix == "" {
		prefix = "SW"
	}
	intentTTL := cfg.IntentTTL
	if intentTTL <= 0 {
		intentTTL = 30 * time.Minute
	}
	pendingTTL := cfg.PendingTTL
	if pendingTTL <= 0 {
		pendingTTL = intentTTL + 15*time.Minute
	}
	return &Service{
		repo:            cfg.Repo,
		vat:             cfg.VAT,
		provider:        cfg.Provider,
		enqueuer:        cfg.Enqueuer,
		metrics:         cfg.Metrics,
		log:             cfg.Log,
		referencePrefix: prefix,
		intentTTL:       intentTTL,
		pendingTTL:      pendingTTL,
		publicBaseURL:   cfg.PublicBaseURL,
	}, nil
}

// CreateResult is the response of a successful booking creation.
type CreateResult struct {
	Booking     Booking `json:"booking"`
	CheckoutURL string  `json:"checkoutUrl"`
	ExpiresAt   int64   `json:"expiresAt"`
}

// Create quotes the departure, holds the seats, prices the booking with VAT
// for the billing country, and opens a payment intent.
func (s *Service) Create(ctx context.Context, in CreateInput, locale string) (CreateResult, error) {
	quote, err := s.repo.GetQuote(ctx, in.DepartureID, in.PackageID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return CreateResult{}, common.NotFound("departure or package not found", err)
		}
		return CreateResult{}, err
	}
	if in.GuestCount > quote.MaxGuests {
		return CreateResult{}, common.BadRequest(
			fmt.Sprintf("package allows at most %d guests", quote.MaxGuests), nil)
	}
	if quote.SpotsLeft < in.GuestCount {
		return CreateResult{}, noCapacityError(quote.SpotsLeft)
	}

	country := strings.ToUpper(strings.TrimSpace(in.BillingCountry))
	subtotal := quote.PackagePrice.Mul(decimalFromInt(in.GuestCount)).Round(2)
	tax := s.vat.Compute(subtotal, country)

	b := Booking{
		Reference:      s.newReference(),
		RetreatID:      quote.RetreatID,
		RetreatTitle:   quote.RetreatTitle,
		PackageID:      in.PackageID,
		DepartureID:    in.DepartureID,
		GuestName:      strings.TrimSpace(in.GuestName),
		GuestEmail:     strings.ToLower(strings.TrimSpace(in.GuestEmail)),
		GuestCount:     in.GuestCount,
		BillingCountry: country,
		Locale:         locale,
		Currency:       quote.Currency,
		AmountSubtotal: subtotal,
		VATRate:        tax.Rate,
		VATAmount:      tax.TaxAmount,
		AmountTotal:    tax.Total,
		Status:         StatusPendingPayment,
		Notes:          in.Notes,
	}
	if err := s.repo.Create(ctx, &b); err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return CreateResult{}, common.NotFound("departure not found", err)
		case errors.Is(err, ErrNoCapacity):
			return CreateResult{}, noCapacityError(quote.SpotsLeft)
		case errors.Is(err, ErrDeparted):
			return CreateResult{}, common.BadRequest("departure is no longer bookable", err)
		}
		return CreateResult{}, err
	}

	intent, err := s.provider.CreateIntent(ctx, payment.IntentRequest{
		BookingReference: b.Reference,
		Amount:           b.AmountTotal,
		Currency:         b.Currency,
		GuestEmail:       b.GuestEmail,
		ExpiresAtSec:     int(s.intentTTL.Seconds()),
		ReturnBaseURL:    s.publicBaseURL,
	})
	if err != nil {
		// The seat hold stays; the expiry sweep reclaims it if payment never starts.
		s.log.Error().Err(err).Str("reference", b.Reference).Msg("payment intent creation failed")
		return CreateResult{}, common.NewAppError("PAYMENT_UNAVAILABLE",
			"payment provider unavailable, try again shortly", http.StatusBadGateway, err)
	}
	if err := s.repo.SetPaymentIntent(ctx, b.ID, intent.Provider, intent.IntentID); err != nil {
		return CreateResult{}, err
	}
	b.PaymentProvider = &intent.Provider
	b.PaymentIntentID = &intent.IntentID

	if s.metrics != nil {
		s.metrics.BookingsCreated.WithLabelValues(quote.DestinationCountry).Inc()
		s.metrics.BookingStatus.WithLabelValues(StatusPendingPayment).Inc()
	}
	s.log.Info().
		Str("reference", b.Reference).
		Str("retreat", quote.RetreatTitle).
		Str("country", country).
		Str("total", b.AmountTotal.StringFixed(2)).
		Msg("booking created")

	return CreateResult{Booking: b, CheckoutURL: intent.CheckoutURL, ExpiresAt: intent.ExpiresAt}, nil
}

// GetByReference returns a booking when the caller knows both the reference
// and the guest email. The email acts as a shared secret for unauthenticated
// status lookups.
func (s *Service) GetByReference(ctx context.Context, reference, email string) (Booking, error) {
	b, err := s.repo.GetByReference(ctx, strings.TrimSpace(reference))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Booking{}, common.NotFound("booking not found", err)
		}
		return Booking{}, err
	}
	if !strings.EqualFold(strings.TrimSpace(email), b.GuestEmail) {
		return Booking{}, common.NotFound("booking not found", nil)
	}
	return b, nil
}

// ApplyPaymentEvent maps a verified payment outcome onto the booking status
// machine. Confirmed bookings get their email queued; failed and expired
// payments release the held seats.
func (s *Service) ApplyPaymentEvent(ctx context.Context, reference, status, intentID string) error {
	var to string
	var release bool
	switch status {
	case payment.StatusPaid:
		to, release = StatusConfirmed, false
	case payment.StatusFailed:
		to, release = StatusFailed, true
	case payment.StatusExpired:
		to, release = StatusExpired, true
	case payment.StatusPending:
		return nil
	default:
		return common.BadRequest("unknown payment status "+status, nil)
	}

	b, err := s.repo.Transition(ctx, reference, to, release)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return common.NotFound("booking not found", err)
		}
		if errors.Is(err, ErrWrongStatus) {
			s.log.Warn().Str("reference", reference).Str("status", status).Msg("payment event for settled booking ignored")
			return nil
		}
		return err
	}
	if s.metrics != nil {
		s.metrics.BookingStatus.WithLabelValues(to).Inc()
	}

	if to == StatusConfirmed {
		s.enqueueConfirmation(ctx, b)
	}
	return nil
}

// Cancel marks a pending booking cancelled and releases its seats. Admin only.
func (s *Service) Cancel(ctx context.Context, reference string) (Booking, error) {
	b, err := s.repo.Transition(ctx, reference, StatusCancelled, true)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Booking{}, common.NotFound("booking not found", err)
		}
		if errors.Is(err, ErrWrongStatus) {
			return Booking{}, common.NewAppError("NOT_CANCELLABLE",
				"only pending bookings can be cancelled", http.StatusConflict, err)
		}
		return Booking{}, err
	}
	if s.metrics != nil {
		s.metrics.BookingStatus.WithLabelValues(StatusCancelled).Inc()
	}
	return b, nil
}

// ExpireStale sweeps pending bookings past the payment window.
func (s *Service) ExpireStale(ctx context.Context) (int, error) {
	n, err := s.repo.ExpireStale(ctx, s.pendingTTL)
	if err != nil {
		return 0, err
	}
	if n > 0 && s.metrics != nil {
		s.metrics.BookingStatus.WithLabelValues(StatusExpired).Add(float64(n))
	}
	return n, nil
}

// List returns bookings for the admin UI.
func (s *Service) List(ctx context.Context, params AdminListParams) ([]Booking, int64, error) {
	return s.repo.List(ctx, params)
}

func (s *Service) enqueueConfirmation(ctx context.Context, b Booking) {
	if s.enqueuer == nil {
		return
	}
	task, err := tasks.NewBookingConfirmedEmailTask(tasks.BookingConfirmedPayload{
		Reference:    b.Reference,
		GuestName:    b.GuestName,
		GuestEmail:   b.GuestEmail,
		RetreatTitle: b.RetreatTitle,
		Locale:       b.Locale,
	})
	if err != nil {
		s.log.Error().Err(err).Str("reference", b.Reference).Msg("failed to build confirmation task")
		return
	}
	if _, err := s.enqueuer.EnqueueContext(ctx, task); err != nil {
		s.log.Error().Err(err).Str("reference", b.Reference).Msg("failed to enqueue confirmation email")
	}
}

// Reference alphabet excludes 0/O/1/I to keep references phone-friendly.
const referenceAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

func (s *Service) newReference() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand on supported platforms does not fail; fall back to time.
		for i := range buf {
			buf[i] = byte(time.Now().UnixNano() >> (i * 8))
		}
	}
	out := make([]byte, len(buf))
	for i, c := range buf {
		out[i] = referenceAlphabet[int(c)%len(referenceAlphabet)]
	}
	return s.referencePrefix + "-" + string(out)
}

func noCapacityError(spotsLeft int) *common.AppError {
	return &common.AppError{
		Code:       "NO_CAPACITY",
		Message:    "not enough spots left on this departure",
		HTTPStatus: http.StatusConflict,
		Details:    map[string]int{"spotsLeft": spotsLeft},
	}
}

func decimalFromInt(n int) decimal.Decimal { return decimal.NewFromInt(int64(n)) }
