package tasks

import (
	"context"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swellway/swellway-api/internal/common"
	"github.com/swellway/swellway-api/internal/i18n"
)

type fakeExpirer struct {
	expired int
	err     error
}

func (f *fakeExpirer) ExpireStale(ctx context.Context) (int, error) {
	return f.expired, f.err
}

type fakeWarmer struct {
	warmed bool
}

func (f *fakeWarmer) Warm(ctx context.Context) error {
	f.warmed = true
	return nil
}

func newTaskHandler(t *testing.T) (*Handler, *common.InMemoryEmail, *fakeExpirer, *fakeWarmer) {
	t.Helper()
	bundle, err := i18n.LoadBundle()
	require.NoError(t, err)
	mail := &common.InMemoryEmail{}
	expirer := &fakeExpirer{}
	warmer := &fakeWarmer{}
	return &Handler{
		Mail:     mail,
		Bundle:   bundle,
		Bookings: expirer,
		Sitemap:  warmer,
		Log:      zerolog.Nop(),
	}, mail, expirer, warmer
}

func TestHandleBookingConfirmedEmail(t *testing.T) {
	h, mail, _, _ := newTaskHandler(t)
	task, err := NewBookingConfirmedEmailTask(BookingConfirmedPayload{
		Reference:    "SW-AB12CD34",
		GuestName:    "Ana",
		GuestEmail:   "ana@example.com",
		RetreatTitle: "Ericeira Swell Week",
		Locale:       "es",
	})
	require.NoError(t, err)

	require.NoError(t, h.HandleBookingConfirmedEmail(context.Background(), task))
	require.Len(t, mail.Outbox, 1)
	assert.Equal(t, "ana@example.com", mail.Outbox[0].To)
	assert.Contains(t, mail.Outbox[0].Subject, "SW-AB12CD34")
	assert.Contains(t, mail.Outbox[0].HTML, "Ericeira Swell Week")
}

func TestHandleBookingConfirmedEmailBadPayloadSkipsRetry(t *testing.T) {
	h, mail, _, _ := newTaskHandler(t)
	task := asynq.NewTask(TypeBookingConfirmedEmail, []byte("not json"))

	err := h.HandleBookingConfirmedEmail(context.Background(), task)
	require.Error(t, err)
	assert.True(t, errors.Is(err, asynq.SkipRetry))
	assert.Empty(t, mail.Outbox)
}

func TestHandleContactAckEmailFallsBackToEnglish(t *testing.T) {
	h, mail, _, _ := newTaskHandler(t)
	task, err := NewContactAckEmailTask(ContactAckPayload{Name: "Sam", Email: "sam@example.com", Locale: "ja"})
	require.NoError(t, err)

	require.NoError(t, h.HandleContactAckEmail(context.Background(), task))
	require.Len(t, mail.Outbox, 1)
	assert.Equal(t, "We received your message", mail.Outbox[0].Subject)
}

func TestHandleContactAckEmailNotifiesInbox(t *testing.T) {
	h, mail, _, _ := newTaskHandler(t)
	h.Inbox = "hello@swellway.com"
	task, err := NewContactAckEmailTask(ContactAckPayload{
		Name: "Sam", Email: "sam@example.com", Subject: "Group booking for 8", Locale: "en",
	})
	require.NoError(t, err)

	require.NoError(t, h.HandleContactAckEmail(context.Background(), task))
	require.Len(t, mail.Outbox, 2)
	assert.Equal(t, "sam@example.com", mail.Outbox[0].To)
	assert.Equal(t, "hello@swellway.com", mail.Outbox[1].To)
	assert.Contains(t, mail.Outbox[1].Subject, "Group booking for 8")
	assert.Contains(t, mail.Outbox[1].HTML, "sam@example.com")
}

func TestHandleExpireBookings(t *testing.T) {
	h, _, expirer, _ := newTaskHandler(t)
	expirer.expired = 3

	require.NoError(t, h.HandleExpireBookings(context.Background(), NewExpireBookingsTask()))

	expirer.err = errors.New("db down")
	assert.Error(t, h.HandleExpireBookings(context.Background(), NewExpireBookingsTask()))
}

func TestHandleWarmSitemap(t *testing.T) {
	h, _, _, warmer := newTaskHandler(t)
	require.NoError(t, h.HandleWarmSitemap(context.Background(), NewWarmSitemapTask()))
	assert.True(t, warmer.warmed)
}
