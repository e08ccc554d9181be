package payment

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PGEventStore persists webhook events in the payment_events table.
type PGEventStore struct {
	Pool *pgxpool.Pool
}

// RecordEvent inserts the event, reporting false when the (provider, event_id)
// pair was already recorded.
func (s *PGEventStore) RecordEvent(ctx context.Context, ev Event) (bool, error) {
	payload := ev.Payload
	if len(payload) == 0 {
		payload = []byte("{}")
	}
	tag, err := s.Pool.Exec(ctx, `
		INSERT INTO payment_events (provider, event_id, booking_reference, status, payload)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (provider, event_id) DO NOTHING`,
		ev.Provider, ev.EventID, ev.BookingReference, ev.Status, payload)
	if err != nil {
		return false, fmt.Errorf("record payment event: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// DeleteEvent removes a recorded event so the provider's retry can be
// reprocessed after the booking update failed.
func (s *PGEventStore) DeleteEvent(ctx context.Context, provider, eventID string) error {
	if _, err := s.Pool.Exec(ctx, `
		DELETE FROM payment_events
		WHERE provider = $1 AND event_id = $2`, provider, eventID); err != nil {
		return fmt.Errorf("delete payment event: %w", err)
	}
	return nil
}
