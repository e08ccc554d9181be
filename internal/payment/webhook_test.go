package payment

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swellway/swellway-api/internal/common"
)

type fakeBookings struct {
	applied      []string
	applyErr     error
	applyErrOnce error
}

func (f *fakeBookings) ApplyPaymentEvent(ctx context.Context, reference, status, intentID string) error {
	if f.applyErrOnce != nil {
		err := f.applyErrOnce
		f.applyErrOnce = nil
		return err
	}
	if f.applyErr != nil {
		return f.applyErr
	}
	f.applied = append(f.applied, reference+":"+status)
	return nil
}

type fakeEvents struct {
	seen          map[string]bool
	recordErrOnce error
}

func (f *fakeEvents) RecordEvent(ctx context.Context, ev Event) (bool, error) {
	if f.recordErrOnce != nil {
		err := f.recordErrOnce
		f.recordErrOnce = nil
		return false, err
	}
	if f.seen == nil {
		f.seen = map[string]bool{}
	}
	key := ev.Provider + ":" + ev.EventID
	if f.seen[key] {
		return false, nil
	}
	f.seen[key] = true
	return true, nil
}

func (f *fakeEvents) DeleteEvent(ctx context.Context, provider, eventID string) error {
	delete(f.seen, provider+":"+eventID)
	return nil
}

func newWebhookHandler(t *testing.T) (*WebhookHandler, Sealpay, *fakeBookings) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sp := testSealpay()
	bookings := &fakeBookings{}
	return &WebhookHandler{
		Provider: sp,
		Bookings: bookings,
		Events:   &fakeEvents{},
		Redis:    client,
		ReplayTT: time.Hour,
		Log:      zerolog.Nop(),
	}, sp, bookings
}

func postWebhook(h *WebhookHandler, sp Sealpay, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/payment", strings.NewReader(body))
	req.Header.Set(SignatureHeader, sp.SignBody(time.Now(), []byte(body)))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestWebhookHandlerAppliesEvent(t *testing.T) {
	h, sp, bookings := newWebhookHandler(t)
	body := `{"id":"evt_ok","type":"payment.succeeded","data":{"booking_reference":"SW-AA11BB22","intent_id":"spi_1"}}`

	rec := postWebhook(h, sp, body)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, bookings.applied, 1)
	assert.Equal(t, "SW-AA11BB22:PAID", bookings.applied[0])
}

func TestWebhookHandlerDeduplicates(t *testing.T) {
	h, sp, bookings := newWebhookHandler(t)
	body := `{"id":"evt_dup","type":"payment.succeeded","data":{"booking_reference":"SW-AA11BB22"}}`

	first := postWebhook(h, sp, body)
	second := postWebhook(h, sp, body)

	require.Equal(t, http.StatusOK, first.Code)
	require.Equal(t, http.StatusOK, second.Code)
	assert.Contains(t, second.Body.String(), "duplicate")
	assert.Len(t, bookings.applied, 1)
}

func TestWebhookHandlerRetriesAfterStoreFailure(t *testing.T) {
	h, sp, bookings := newWebhookHandler(t)
	h.Events.(*fakeEvents).recordErrOnce = errors.New("connection reset")
	body := `{"id":"evt_retry","type":"payment.succeeded","data":{"booking_reference":"SW-AA11BB22","intent_id":"spi_1"}}`

	first := postWebhook(h, sp, body)
	require.Equal(t, http.StatusInternalServerError, first.Code)
	require.Empty(t, bookings.applied)

	second := postWebhook(h, sp, body)
	require.Equal(t, http.StatusOK, second.Code)
	assert.NotContains(t, second.Body.String(), "duplicate")
	require.Len(t, bookings.applied, 1)
	assert.Equal(t, "SW-AA11BB22:PAID", bookings.applied[0])
}

func TestWebhookHandlerRetriesAfterApplyFailure(t *testing.T) {
	h, sp, bookings := newWebhookHandler(t)
	bookings.applyErrOnce = errors.New("deadlock detected")
	body := `{"id":"evt_retry2","type":"payment.succeeded","data":{"booking_reference":"SW-AA11BB22","intent_id":"spi_1"}}`

	first := postWebhook(h, sp, body)
	require.Equal(t, http.StatusInternalServerError, first.Code)
	require.Empty(t, bookings.applied)

	second := postWebhook(h, sp, body)
	require.Equal(t, http.StatusOK, second.Code)
	assert.NotContains(t, second.Body.String(), "duplicate")
	require.Len(t, bookings.applied, 1)
	assert.Equal(t, "SW-AA11BB22:PAID", bookings.applied[0])
}

func TestWebhookHandlerRejectsBadSignature(t *testing.T) {
	h, _, bookings := newWebhookHandler(t)
	body := `{"id":"evt_bad","type":"payment.succeeded","data":{"booking_reference":"SW-AA11BB22"}}`

	req := httptest.NewRequest(http.MethodPost, "/webhooks/payment", strings.NewReader(body))
	req.Header.Set(SignatureHeader, "t=1,v1=deadbeef")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, bookings.applied)
}

func TestWebhookHandlerIgnoresUnknownBooking(t *testing.T) {
	h, sp, bookings := newWebhookHandler(t)
	bookings.applyErr = common.NotFound("booking not found", nil)
	body := `{"id":"evt_unknown","type":"payment.succeeded","data":{"booking_reference":"SW-NOPE"}}`

	rec := postWebhook(h, sp, body)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ignored")
}
